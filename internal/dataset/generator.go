package dataset

import (
	"github.com/packagewjx/anomalydetector/internal/core"
	"gonum.org/v1/gonum/stat/distuv"
	"math/rand/v2"
)

// Frame 单列表格，列名即导出模型的输入名
type Frame struct {
	Column string
	Values []float64
}

func (f *Frame) Len() int {
	return len(f.Values)
}

// NewSource 每次训练都使用独立的随机源，不依赖全局状态
func NewSource(seed int64) rand.Source {
	return rand.NewPCG(uint64(seed), uint64(seed))
}

// Generate 先采样正常数据，再采样异常数据，两者直接拼接。
// 相同的随机源状态将得到完全相同的序列。
func Generate(config core.DatasetConfig, src rand.Source) *Frame {
	normal := distuv.Normal{
		Mu:    config.NormalMean,
		Sigma: config.NormalStdDev,
		Src:   src,
	}
	anomaly := distuv.Normal{
		Mu:    config.AnomalyMean,
		Sigma: config.AnomalyStdDev,
		Src:   src,
	}

	values := make([]float64, 0, config.NormalCount+config.AnomalyCount)
	for i := 0; i < config.NormalCount; i++ {
		values = append(values, normal.Rand())
	}
	for i := 0; i < config.AnomalyCount; i++ {
		values = append(values, anomaly.Rand())
	}

	column := config.Column
	if column == "" {
		column = core.DefaultInputName
	}
	return &Frame{
		Column: column,
		Values: values,
	}
}
