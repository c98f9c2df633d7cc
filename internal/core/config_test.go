package core

import (
	"github.com/packagewjx/anomalydetector/test"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"os"
	"strings"
	"testing"
)

func TestViper(t *testing.T) {
	configIN := strings.NewReader(`
dataset:
    seed: 1
    normalcount: 2
    anomalycount: 3
forest:
    contamination: 0.1
    numtrees: 4
export:
    outputpath: /tmp/model.mlmodel
`)
	v := viper.New()
	v.SetConfigType("yaml")
	err := v.ReadConfig(configIN)
	assert.NoError(t, err)
	c := DefaultConfig()
	err = v.Unmarshal(c)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), c.Dataset.Seed)
	assert.Equal(t, 2, c.Dataset.NormalCount)
	assert.Equal(t, 3, c.Dataset.AnomalyCount)
	assert.Equal(t, 0.1, c.Forest.Contamination)
	assert.Equal(t, 4, c.Forest.NumTrees)
	assert.Equal(t, "/tmp/model.mlmodel", c.Export.OutputPath)
	// 未出现的字段保持默认值
	assert.Equal(t, float64(100), c.Dataset.NormalMean)
	assert.Equal(t, 256, c.Forest.MaxSamples)
	assert.Equal(t, DefaultOutputName, c.Export.OutputName)
}

func TestViperFile(t *testing.T) {
	f, err := os.Open(test.DataFile("config.yaml"))
	assert.NoError(t, err)
	defer f.Close()

	v := viper.New()
	v.SetConfigType("yaml")
	assert.NoError(t, v.ReadConfig(f))
	c := DefaultConfig()
	assert.NoError(t, v.UnmarshalExact(c))
	assert.Equal(t, int64(7), c.Dataset.Seed)
	assert.Equal(t, 500, c.Dataset.NormalCount)
	assert.Equal(t, 50, c.Forest.NumTrees)
	assert.Equal(t, "Detector.mlmodel", c.Export.OutputPath)
	assert.Equal(t, "sre", c.Export.Author)
	assert.NoError(t, c.Check())
}

func TestDefaultConfig(t *testing.T) {
	c := DefaultConfig()
	assert.NoError(t, c.Check())
	assert.Equal(t, 0.02, c.Forest.Contamination)
	assert.Equal(t, 1020, c.Dataset.NormalCount+c.Dataset.AnomalyCount)
	assert.Equal(t, "AnomalyDetector.mlmodel", c.Export.OutputPath)
	assert.Equal(t, "request_rate", c.Export.InputName)
	assert.Equal(t, "isAnomalous", c.Export.OutputName)
	assert.Contains(t, c.String(), `"Contamination":0.02`)
}

func TestCheck(t *testing.T) {
	c := DefaultConfig()
	c.Forest.Contamination = 0
	assert.Error(t, c.Check())

	c = DefaultConfig()
	c.Forest.Contamination = 0.6
	assert.Error(t, c.Check())

	c = DefaultConfig()
	c.Dataset.NormalCount = 0
	assert.Error(t, c.Check())

	c = DefaultConfig()
	c.Dataset.AnomalyStdDev = -1
	assert.Error(t, c.Check())

	c = DefaultConfig()
	c.Export.OutputPath = ""
	assert.Error(t, c.Check())

	c = DefaultConfig()
	c.Forest.NumTrees = 0
	assert.Error(t, c.Check())

	c = DefaultConfig()
	c.Dataset.Seed = 0
	assert.NoError(t, c.Check())
}

// 均值可以为任意值，MaxSamples不大于0时表示使用全部样本
func TestCheckAllowsUnboundedFields(t *testing.T) {
	c := DefaultConfig()
	c.Dataset.NormalMean = -5
	assert.NoError(t, c.Check())

	c = DefaultConfig()
	c.Dataset.NormalMean = 0
	c.Dataset.AnomalyMean = 0
	assert.NoError(t, c.Check())

	c = DefaultConfig()
	c.Forest.MaxSamples = 0
	assert.NoError(t, c.Check())

	c = DefaultConfig()
	c.Forest.MaxSamples = -1
	assert.NoError(t, c.Check())

	c = DefaultConfig()
	c.Dataset.NormalStdDev = 0
	assert.Error(t, c.Check())
}
