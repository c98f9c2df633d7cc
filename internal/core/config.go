package core

import (
	"encoding/json"
	"fmt"
	"github.com/pkg/errors"
	"reflect"
	"strings"
)

// 顶层公共Config
type Config struct {
	Dataset DatasetConfig
	Forest  ForestConfig
	Export  ExportConfig
}

// 训练数据由两组正态分布样本拼接而成，不保留标签
type DatasetConfig struct {
	Seed          int64
	NormalCount   int
	NormalMean    float64
	NormalStdDev  float64
	AnomalyCount  int
	AnomalyMean   float64
	AnomalyStdDev float64
	Column        string
}

// 与训练数据的总数无关，MaxSamples超过样本数时取样本数
type ForestConfig struct {
	Contamination float64
	NumTrees      int
	MaxSamples    int
}

type ExportConfig struct {
	OutputPath       string
	InputName        string
	OutputName       string
	Author           string
	ShortDescription string
}

const (
	DefaultOutputPath = "AnomalyDetector.mlmodel"
	DefaultInputName  = "request_rate"
	DefaultOutputName = "isAnomalous"
)

var RootConfig = DefaultConfig()

func DefaultConfig() *Config {
	return &Config{
		Dataset: DatasetConfig{
			Seed:          42,
			NormalCount:   1000,
			NormalMean:    100,
			NormalStdDev:  15,
			AnomalyCount:  20,
			AnomalyMean:   300,
			AnomalyStdDev: 5,
			Column:        DefaultInputName,
		},
		Forest: ForestConfig{
			Contamination: 0.02,
			NumTrees:      100,
			MaxSamples:    256,
		},
		Export: ExportConfig{
			OutputPath:       DefaultOutputPath,
			InputName:        DefaultInputName,
			OutputName:       DefaultOutputName,
			ShortDescription: "Isolation forest request rate anomaly detector",
		},
	}
}

// 只有样本数、树的数量与标准差必须大于0。均值可以为任意值，MaxSamples不大于0时取全部样本。
var positiveFields = map[string]bool{
	"Dataset.NormalCount":   true,
	"Dataset.NormalStdDev":  true,
	"Dataset.AnomalyCount":  true,
	"Dataset.AnomalyStdDev": true,
	"Forest.Contamination":  true,
	"Forest.NumTrees":       true,
}

func checkPositive(val reflect.Value, path []string) error {
	switch val.Kind() {
	case reflect.Ptr:
		return checkPositive(val.Elem(), path)
	case reflect.Struct:
		typ := val.Type()
		for i := 0; i < val.NumField(); i++ {
			err := checkPositive(val.Field(i), append(path, typ.Field(i).Name))
			if err != nil {
				return err
			}
		}
	case reflect.Float64:
		if positiveFields[strings.Join(path, ".")] && val.Float() <= 0 {
			return fmt.Errorf("字段 %s 必须大于0", strings.Join(path, "."))
		}
	case reflect.Int:
		if positiveFields[strings.Join(path, ".")] && val.Int() <= 0 {
			return fmt.Errorf("字段 %s 必须大于0", strings.Join(path, "."))
		}
	case reflect.String, reflect.Int64:
	default:
		panic(fmt.Sprintf("没有遇到的类型 %s", val.Kind()))
	}
	return nil
}

func (config *Config) Check() error {
	err := checkPositive(reflect.ValueOf(config), []string{})
	if err != nil {
		return errors.Wrap(err, "配置检查失败")
	}

	if config.Forest.Contamination > 0.5 {
		return fmt.Errorf("字段 Forest.Contamination 必须位于(0, 0.5]，当前为%g", config.Forest.Contamination)
	}
	if config.Export.OutputPath == "" {
		return fmt.Errorf("字段 Export.OutputPath 不能为空")
	}
	if config.Export.InputName == "" || config.Export.OutputName == "" {
		return fmt.Errorf("输入输出名称不能为空")
	}

	return nil
}

func (config *Config) String() string {
	marshal, _ := json.Marshal(config)
	return string(marshal)
}
