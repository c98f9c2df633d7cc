package detector

import (
	"fmt"
	"github.com/packagewjx/anomalydetector/internal/algorithm"
	"github.com/packagewjx/anomalydetector/internal/core"
	"github.com/packagewjx/anomalydetector/internal/dataset"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"math"
	"math/rand/v2"
	"testing"
)

// 直接返回输入作为分数
type identityScorer struct{}

func (identityScorer) DecisionFunction(x []float64) ([]float64, error) {
	out := make([]float64, len(x))
	copy(out, x)
	return out, nil
}

type failingScorer struct{}

func (failingScorer) DecisionFunction(x []float64) ([]float64, error) {
	return nil, fmt.Errorf("boom")
}

func TestLabel(t *testing.T) {
	assert.Equal(t, LabelAnomalous, Label(-0.1))
	assert.Equal(t, LabelAnomalous, Label(-math.SmallestNonzeroFloat64))
	assert.Equal(t, LabelNormal, Label(0))
	assert.Equal(t, LabelNormal, Label(math.Copysign(0, -1)))
	assert.Equal(t, LabelNormal, Label(0.3))
}

func TestWrapperPredict(t *testing.T) {
	w := New(identityScorer{})
	labels, err := w.Predict([]float64{-2, -1e-12, 0, 1e-12, 5})
	assert.NoError(t, err)
	assert.Equal(t, []int64{1, 1, 0, 0, 0}, labels)
	assert.Equal(t, 2, CountAnomalies(labels))

	_, err = New(failingScorer{}).Predict([]float64{1})
	assert.Error(t, err)
}

func TestWrapperWithForest(t *testing.T) {
	config := core.DefaultConfig()
	src := dataset.NewSource(config.Dataset.Seed)
	frame := dataset.Generate(config.Dataset, src)
	forest := algorithm.NewIsolationForest(config.Forest, rand.New(src))

	_, err := New(forest).Predict(frame.Values)
	assert.Equal(t, algorithm.ErrNotFitted, errors.Cause(err))

	assert.NoError(t, forest.Fit(frame.Values))
	labels, err := New(forest).Predict([]float64{100, 1000})
	assert.NoError(t, err)
	assert.Equal(t, []int64{LabelNormal, LabelAnomalous}, labels)
}
