package coreml

import (
	"bytes"
	"github.com/packagewjx/anomalydetector/internal/algorithm"
	"github.com/packagewjx/anomalydetector/internal/core"
	"github.com/packagewjx/anomalydetector/internal/dataset"
	"github.com/packagewjx/anomalydetector/internal/detector"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"
)

var (
	testInputs  = []TensorType{{Name: "request_rate", Shape: []int64{1}, DType: Float32}}
	testOutputs = []TensorType{{Name: "isAnomalous", Shape: []int64{1}, DType: Int64}}
)

func fitForest(t *testing.T) (*algorithm.IsolationForest, []float64) {
	t.Helper()
	config := core.DefaultConfig()
	src := dataset.NewSource(config.Dataset.Seed)
	frame := dataset.Generate(config.Dataset, src)
	forest := algorithm.NewIsolationForest(config.Forest, rand.New(src))
	require.NoError(t, forest.Fit(frame.Values))
	return forest, frame.Values
}

func TestConvert(t *testing.T) {
	forest, _ := fitForest(t)
	m, err := Convert(forest, testInputs, testOutputs, WithAuthor("sre"), WithUserDefined("seed", "42"))
	require.NoError(t, err)

	assert.Equal(t, SpecificationVersion, m.SpecificationVersion)
	assert.Equal(t, "isAnomalous", m.Description.PredictedFeatureName)
	assert.Equal(t, "sre", m.Description.Metadata.Author)
	assert.Equal(t, "0.02", m.Description.Metadata.UserDefined["contamination"])
	assert.Equal(t, "100", m.Description.Metadata.UserDefined["numTrees"])
	assert.Equal(t, "42", m.Description.Metadata.UserDefined["seed"])

	inputs, outputs := m.Interface()
	assert.Equal(t, testInputs, inputs)
	assert.Equal(t, testOutputs, outputs)

	c := m.Classifier
	require.NotNil(t, c)
	assert.Equal(t, []int64{0, 1}, c.Int64ClassLabels)
	assert.Equal(t, RegressionLogistic, c.PostEvaluationTransform)
	assert.Equal(t, []float64{forest.PathLengthThreshold()}, c.BasePredictionValue)

	roots := 0
	for _, n := range c.Nodes {
		if n.NodeID == 0 {
			roots++
			assert.Equal(t, 1.0, n.RelativeHitRate)
		}
		if n.Behavior == LeafNode {
			require.Equal(t, 1, len(n.EvaluationInfo))
			assert.LessOrEqual(t, n.EvaluationInfo[0].EvaluationValue, 0.0)
		} else {
			assert.Equal(t, BranchOnValueLessThan, n.Behavior)
		}
	}
	assert.Equal(t, 100, roots)
}

func TestConvertErrors(t *testing.T) {
	unfitted := algorithm.NewIsolationForest(core.DefaultConfig().Forest, rand.New(dataset.NewSource(1)))
	_, err := Convert(unfitted, testInputs, testOutputs)
	assert.Equal(t, ErrUnsupportedModel, err)

	forest, _ := fitForest(t)
	cases := []struct {
		name    string
		inputs  []TensorType
		outputs []TensorType
	}{
		{"no input", nil, testOutputs},
		{"two outputs", testInputs, append(testOutputs, testOutputs...)},
		{"vector input", []TensorType{{Name: "request_rate", Shape: []int64{3}, DType: Float32}}, testOutputs},
		{"int input", []TensorType{{Name: "request_rate", Shape: []int64{1}, DType: Int64}}, testOutputs},
		{"float output", testInputs, []TensorType{{Name: "isAnomalous", Shape: []int64{1}, DType: Float32}}},
		{"unnamed output", testInputs, []TensorType{{Shape: []int64{1}, DType: Int64}}},
	}
	for _, c := range cases {
		_, err := Convert(forest, c.inputs, c.outputs)
		assert.Equal(t, ErrUnsupportedTensor, errors.Cause(err), c.name)
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	forest, _ := fitForest(t)
	m, err := Convert(forest, testInputs, testOutputs, WithShortDescription("desc"))
	require.NoError(t, err)

	b, err := m.Marshal()
	require.NoError(t, err)
	decoded, err := Unmarshal(b)
	require.NoError(t, err)
	assert.Equal(t, m, decoded)

	again, err := decoded.Marshal()
	require.NoError(t, err)
	assert.True(t, bytes.Equal(b, again))
}

func TestUnmarshalMalformed(t *testing.T) {
	_, err := Unmarshal([]byte{0x0a, 0x05, 0x01})
	assert.Equal(t, ErrMalformedModel, errors.Cause(err))

	m, err := Unmarshal(nil)
	assert.NoError(t, err)
	assert.Nil(t, m.Classifier)
	_, err = m.Predict([]float64{1})
	assert.Equal(t, ErrUnsupportedModel, err)
}

// 导出模型与包装函数对训练样本给出相同的结果
func TestPredictMatchesWrapper(t *testing.T) {
	forest, x := fitForest(t)
	m, err := Convert(forest, testInputs, testOutputs)
	require.NoError(t, err)

	expected, err := detector.New(forest).Predict(x)
	require.NoError(t, err)
	decision, err := forest.DecisionFunction(x)
	require.NoError(t, err)
	actual, err := m.Predict(x)
	require.NoError(t, err)

	for i := range x {
		if math.Abs(decision[i]) < 1e-9 {
			continue
		}
		assert.Equal(t, expected[i], actual[i], "value %f", x[i])
	}
	assert.InDelta(t, detector.CountAnomalies(expected), detector.CountAnomalies(actual), 1)
}

func TestPredictBrokenTree(t *testing.T) {
	m := &Model{Classifier: &TreeEnsembleClassifier{
		Nodes: []TreeNode{
			{TreeID: 0, NodeID: 0, Behavior: BranchOnValueLessThan, TrueChildNodeID: 1, FalseChildNodeID: 2},
			{TreeID: 0, NodeID: 1, Behavior: LeafNode},
		},
		Int64ClassLabels: []int64{0, 1},
	}}
	_, err := m.Predict([]float64{5})
	assert.Equal(t, ErrMalformedModel, errors.Cause(err))

	m.Classifier.Nodes = append(m.Classifier.Nodes, TreeNode{
		TreeID: 0, NodeID: 2, Behavior: LeafNode,
		EvaluationInfo: []EvaluationInfo{{EvaluationValue: 1}},
	})
	labels, err := m.Predict([]float64{-1, 5})
	assert.NoError(t, err)
	assert.Equal(t, []int64{0, 1}, labels)
}

func TestSaveLoad(t *testing.T) {
	forest, _ := fitForest(t)
	m, err := Convert(forest, testInputs, testOutputs)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "AnomalyDetector.mlmodel")
	require.NoError(t, os.WriteFile(path, []byte("stale content"), 0644))
	require.NoError(t, Save(m, path))

	written, err := os.ReadFile(path)
	require.NoError(t, err)
	expected, err := m.Marshal()
	require.NoError(t, err)
	assert.Equal(t, expected, written)

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, m, loaded)

	_, err = Load(filepath.Join(t.TempDir(), "missing.mlmodel"))
	assert.Error(t, err)
}
