package coreml

import (
	"fmt"
	"github.com/packagewjx/anomalydetector/internal/algorithm"
	"github.com/pkg/errors"
	"strconv"
)

// Exportable 可以转换为树模型的异常检测器
type Exportable interface {
	Fitted() bool
	Trees() []*algorithm.Node
	PathLengthThreshold() float64
	Contamination() float64
}

var _ Exportable = &algorithm.IsolationForest{}

type Option func(m *Metadata)

func WithAuthor(author string) Option {
	return func(m *Metadata) {
		m.Author = author
	}
}

func WithShortDescription(desc string) Option {
	return func(m *Metadata) {
		m.ShortDescription = desc
	}
}

func WithUserDefined(key, value string) Option {
	return func(m *Metadata) {
		if m.UserDefined == nil {
			m.UserDefined = map[string]string{}
		}
		m.UserDefined[key] = value
	}
}

// Convert 把隔离森林转换为二分类树模型。
// 每个叶子节点的值为-pathLength/numTrees，基准值为路径长度阈值，
// 因此累加结果 = 阈值 - 平均路径长度，大于0即为异常，与detector.Label一致。
func Convert(model Exportable, inputs, outputs []TensorType, opts ...Option) (*Model, error) {
	if model == nil || !model.Fitted() || len(model.Trees()) == 0 {
		return nil, ErrUnsupportedModel
	}
	input, output, err := checkTensors(inputs, outputs)
	if err != nil {
		return nil, err
	}

	trees := model.Trees()
	classifier := &TreeEnsembleClassifier{
		NumPredictionDimensions: 1,
		BasePredictionValue:     []float64{model.PathLengthThreshold()},
		PostEvaluationTransform: RegressionLogistic,
		Int64ClassLabels:        []int64{0, 1},
	}
	weight := 1 / float64(len(trees))
	for treeID, root := range trees {
		classifier.Nodes = appendTree(classifier.Nodes, uint64(treeID), root, weight)
	}

	metadata := Metadata{}
	for _, opt := range opts {
		opt(&metadata)
	}
	WithUserDefined("contamination", strconv.FormatFloat(model.Contamination(), 'g', -1, 64))(&metadata)
	WithUserDefined("numTrees", strconv.Itoa(len(trees)))(&metadata)

	return &Model{
		SpecificationVersion: SpecificationVersion,
		Description: Description{
			Inputs:               []FeatureDescription{input},
			Outputs:              []FeatureDescription{output},
			PredictedFeatureName: output.Name,
			Metadata:             metadata,
		},
		Classifier: classifier,
	}, nil
}

func checkTensors(inputs, outputs []TensorType) (FeatureDescription, FeatureDescription, error) {
	var input, output FeatureDescription
	if len(inputs) != 1 || len(outputs) != 1 {
		return input, output, errors.Wrap(ErrUnsupportedTensor,
			fmt.Sprintf("需要1个输入和1个输出，实际为%d个输入和%d个输出", len(inputs), len(outputs)))
	}

	in := inputs[0]
	if in.Name == "" || !isScalarShape(in.Shape) {
		return input, output, errors.Wrap(ErrUnsupportedTensor, fmt.Sprintf("输入%s必须是单个数值", in))
	}
	input.Name = in.Name
	switch in.DType {
	case Float32, "":
		input.Type = FeatureType{Kind: FeatureKindMultiArray, Shape: []int64{1}, DataType: ArrayDataTypeFloat32}
	case Float64:
		input.Type = FeatureType{Kind: FeatureKindMultiArray, Shape: []int64{1}, DataType: ArrayDataTypeDouble}
	default:
		return input, output, errors.Wrap(ErrUnsupportedTensor, fmt.Sprintf("输入%s类型必须为浮点数", in))
	}

	out := outputs[0]
	if out.Name == "" || !isScalarShape(out.Shape) || out.DType != Int64 {
		return input, output, errors.Wrap(ErrUnsupportedTensor, fmt.Sprintf("输出%s必须是单个int64", out))
	}
	output.Name = out.Name
	output.Type = FeatureType{Kind: FeatureKindInt64}
	return input, output, nil
}

func isScalarShape(shape []int64) bool {
	size := int64(1)
	for _, s := range shape {
		size *= s
	}
	return size == 1
}

// 前序遍历，根节点编号为0
func appendTree(nodes []TreeNode, treeID uint64, root *algorithm.Node, weight float64) []TreeNode {
	nextID := uint64(0)
	var visit func(n *algorithm.Node) uint64
	visit = func(n *algorithm.Node) uint64 {
		id := nextID
		nextID++
		idx := len(nodes)
		nodes = append(nodes, TreeNode{
			TreeID:          treeID,
			NodeID:          id,
			RelativeHitRate: float64(n.Size) / float64(root.Size),
		})
		if n.Leaf {
			nodes[idx].Behavior = LeafNode
			nodes[idx].EvaluationInfo = []EvaluationInfo{{
				EvaluationIndex: 0,
				EvaluationValue: -n.PathLength() * weight,
			}}
			return id
		}
		left := visit(n.Left)
		right := visit(n.Right)
		nodes[idx].Behavior = BranchOnValueLessThan
		nodes[idx].BranchFeatureIndex = 0
		nodes[idx].BranchFeatureValue = n.Split
		nodes[idx].TrueChildNodeID = left
		nodes[idx].FalseChildNodeID = right
		return id
	}
	visit(root)
	return nodes
}
