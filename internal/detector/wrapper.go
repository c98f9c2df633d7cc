package detector

import (
	"github.com/pkg/errors"
)

const (
	LabelNormal    int64 = 0
	LabelAnomalous int64 = 1
)

type Scorer interface {
	DecisionFunction(x []float64) ([]float64, error)
}

// Wrapper 将连续的决策分数二值化，导出模型的输出与之保持一致
type Wrapper struct {
	scorer Scorer
}

func New(scorer Scorer) *Wrapper {
	return &Wrapper{scorer: scorer}
}

// Label 分数严格小于0时为异常，等于0视为正常
func Label(score float64) int64 {
	if score < 0 {
		return LabelAnomalous
	}
	return LabelNormal
}

func (w *Wrapper) Predict(x []float64) ([]int64, error) {
	scores, err := w.scorer.DecisionFunction(x)
	if err != nil {
		return nil, errors.Wrap(err, "计算决策分数出错")
	}
	labels := make([]int64, len(scores))
	for i, s := range scores {
		labels[i] = Label(s)
	}
	return labels, nil
}

// CountAnomalies 统计被判定为异常的样本数
func CountAnomalies(labels []int64) int {
	count := 0
	for _, l := range labels {
		if l == LabelAnomalous {
			count++
		}
	}
	return count
}
