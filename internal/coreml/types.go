package coreml

import (
	"fmt"
	"github.com/pkg/errors"
)

// 树模型从规范版本1开始支持
const SpecificationVersion int32 = 1

var (
	ErrUnsupportedModel  = errors.New("模型不支持转换")
	ErrUnsupportedTensor = errors.New("不支持的输入输出描述")
	ErrMalformedModel    = errors.New("模型文件格式错误")
)

type DType string

var (
	Float32 DType = "float32"
	Float64 DType = "float64"
	Int64   DType = "int64"
)

// TensorType 描述模型的一个输入或输出
type TensorType struct {
	Name  string  `yaml:"name" json:"name"`
	Shape []int64 `yaml:"shape" json:"shape"`
	DType DType   `yaml:"dtype" json:"dtype"`
}

func (t TensorType) String() string {
	return fmt.Sprintf("%s%v:%s", t.Name, t.Shape, t.DType)
}

type ArrayDataType int32

const (
	ArrayDataTypeInvalid ArrayDataType = 0
	ArrayDataTypeFloat32 ArrayDataType = 65568
	ArrayDataTypeDouble  ArrayDataType = 65600
	ArrayDataTypeInt32   ArrayDataType = 131104
)

type FeatureKind int

const (
	FeatureKindUnknown FeatureKind = iota
	FeatureKindInt64
	FeatureKindDouble
	FeatureKindMultiArray
)

type FeatureType struct {
	Kind     FeatureKind
	Shape    []int64
	DataType ArrayDataType
	Optional bool
}

type FeatureDescription struct {
	Name             string
	ShortDescription string
	Type             FeatureType
}

// Tensor 转换为TensorType，便于展示
func (f FeatureDescription) Tensor() TensorType {
	t := TensorType{Name: f.Name, Shape: []int64{1}}
	switch f.Type.Kind {
	case FeatureKindInt64:
		t.DType = Int64
	case FeatureKindDouble:
		t.DType = Float64
	case FeatureKindMultiArray:
		t.Shape = f.Type.Shape
		switch f.Type.DataType {
		case ArrayDataTypeFloat32:
			t.DType = Float32
		case ArrayDataTypeDouble:
			t.DType = Float64
		case ArrayDataTypeInt32:
			t.DType = "int32"
		default:
			t.DType = "invalid"
		}
	default:
		t.DType = "unknown"
	}
	return t
}

type Metadata struct {
	ShortDescription string
	VersionString    string
	Author           string
	License          string
	UserDefined      map[string]string
}

type Description struct {
	Inputs                     []FeatureDescription
	Outputs                    []FeatureDescription
	PredictedFeatureName       string
	PredictedProbabilitiesName string
	Metadata                   Metadata
}

type NodeBehavior int32

const (
	BranchOnValueLessThanEqual NodeBehavior = iota
	BranchOnValueLessThan
	BranchOnValueGreaterThanEqual
	BranchOnValueGreaterThan
	BranchOnValueEqual
	BranchOnValueNotEqual
	LeafNode
)

type EvaluationInfo struct {
	EvaluationIndex uint64
	EvaluationValue float64
}

type TreeNode struct {
	TreeID                      uint64
	NodeID                      uint64
	Behavior                    NodeBehavior
	BranchFeatureIndex          uint64
	BranchFeatureValue          float64
	TrueChildNodeID             uint64
	FalseChildNodeID            uint64
	MissingValueTracksTrueChild bool
	EvaluationInfo              []EvaluationInfo
	RelativeHitRate             float64
}

type PostEvaluationTransform int32

const (
	NoTransform PostEvaluationTransform = iota
	ClassificationSoftMax
	RegressionLogistic
	ClassificationSoftMaxWithZeroClassReference
)

type TreeEnsembleClassifier struct {
	Nodes                   []TreeNode
	NumPredictionDimensions uint64
	BasePredictionValue     []float64
	PostEvaluationTransform PostEvaluationTransform
	Int64ClassLabels        []int64
}

// Model Core ML模型中本项目用到的子集
type Model struct {
	SpecificationVersion int32
	Description          Description
	Classifier           *TreeEnsembleClassifier
}

// Interface 返回模型声明的输入与输出
func (m *Model) Interface() (inputs, outputs []TensorType) {
	for _, f := range m.Description.Inputs {
		inputs = append(inputs, f.Tensor())
	}
	for _, f := range m.Description.Outputs {
		outputs = append(outputs, f.Tensor())
	}
	return inputs, outputs
}
