package coreml

import (
	"google.golang.org/protobuf/encoding/protowire"
	"math"
	"sort"
)

// Model.proto中的字段编号
const (
	fieldModelSpecificationVersion   protowire.Number = 1
	fieldModelDescription            protowire.Number = 2
	fieldModelTreeEnsembleClassifier protowire.Number = 402

	fieldDescriptionInput                      protowire.Number = 1
	fieldDescriptionOutput                     protowire.Number = 10
	fieldDescriptionPredictedFeatureName       protowire.Number = 11
	fieldDescriptionPredictedProbabilitiesName protowire.Number = 12
	fieldDescriptionMetadata                   protowire.Number = 100

	fieldMetadataShortDescription protowire.Number = 1
	fieldMetadataVersionString    protowire.Number = 2
	fieldMetadataAuthor           protowire.Number = 3
	fieldMetadataLicense          protowire.Number = 4
	fieldMetadataUserDefined      protowire.Number = 100

	fieldMapKey   protowire.Number = 1
	fieldMapValue protowire.Number = 2

	fieldFeatureName             protowire.Number = 1
	fieldFeatureShortDescription protowire.Number = 2
	fieldFeatureType             protowire.Number = 3

	fieldTypeInt64      protowire.Number = 1
	fieldTypeDouble     protowire.Number = 2
	fieldTypeMultiArray protowire.Number = 5
	fieldTypeIsOptional protowire.Number = 1000

	fieldArrayShape    protowire.Number = 1
	fieldArrayDataType protowire.Number = 2

	fieldClassifierTreeEnsemble     protowire.Number = 1
	fieldClassifierPostEvaluation   protowire.Number = 2
	fieldClassifierInt64ClassLabels protowire.Number = 101

	fieldEnsembleNodes                   protowire.Number = 1
	fieldEnsembleNumPredictionDimensions protowire.Number = 2
	fieldEnsembleBasePredictionValue     protowire.Number = 3

	fieldNodeTreeID                      protowire.Number = 1
	fieldNodeNodeID                      protowire.Number = 2
	fieldNodeBehavior                    protowire.Number = 3
	fieldNodeBranchFeatureIndex          protowire.Number = 10
	fieldNodeBranchFeatureValue          protowire.Number = 11
	fieldNodeTrueChildNodeID             protowire.Number = 12
	fieldNodeFalseChildNodeID            protowire.Number = 13
	fieldNodeMissingValueTracksTrueChild protowire.Number = 14
	fieldNodeEvaluationInfo              protowire.Number = 20
	fieldNodeRelativeHitRate             protowire.Number = 30

	fieldEvaluationIndex protowire.Number = 1
	fieldEvaluationValue protowire.Number = 2

	fieldInt64Vector protowire.Number = 1
)

// 与proto3一致，标量零值不写入

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return b
	}
	return appendVarint(b, num, 1)
}

func appendDouble(b []byte, num protowire.Number, v float64) []byte {
	if v == 0 && !math.Signbit(v) {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, math.Float64bits(v))
}

func appendString(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

// 子消息即使为空也要写入，oneof依赖它的存在
func appendMessage(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}

func appendPackedInt64(b []byte, num protowire.Number, v []int64) []byte {
	if len(v) == 0 {
		return b
	}
	var packed []byte
	for _, x := range v {
		packed = protowire.AppendVarint(packed, uint64(x))
	}
	return appendMessage(b, num, packed)
}

func appendPackedDouble(b []byte, num protowire.Number, v []float64) []byte {
	if len(v) == 0 {
		return b
	}
	var packed []byte
	for _, x := range v {
		packed = protowire.AppendFixed64(packed, math.Float64bits(x))
	}
	return appendMessage(b, num, packed)
}

// Marshal 编码为.mlmodel文件内容。map按key排序，输出是确定的。
func (m *Model) Marshal() ([]byte, error) {
	var b []byte
	b = appendVarint(b, fieldModelSpecificationVersion, uint64(m.SpecificationVersion))
	b = appendMessage(b, fieldModelDescription, marshalDescription(&m.Description))
	if m.Classifier != nil {
		b = appendMessage(b, fieldModelTreeEnsembleClassifier, marshalClassifier(m.Classifier))
	}
	return b, nil
}

func marshalDescription(d *Description) []byte {
	var b []byte
	for i := range d.Inputs {
		b = appendMessage(b, fieldDescriptionInput, marshalFeature(&d.Inputs[i]))
	}
	for i := range d.Outputs {
		b = appendMessage(b, fieldDescriptionOutput, marshalFeature(&d.Outputs[i]))
	}
	b = appendString(b, fieldDescriptionPredictedFeatureName, d.PredictedFeatureName)
	b = appendString(b, fieldDescriptionPredictedProbabilitiesName, d.PredictedProbabilitiesName)
	b = appendMessage(b, fieldDescriptionMetadata, marshalMetadata(&d.Metadata))
	return b
}

func marshalMetadata(m *Metadata) []byte {
	var b []byte
	b = appendString(b, fieldMetadataShortDescription, m.ShortDescription)
	b = appendString(b, fieldMetadataVersionString, m.VersionString)
	b = appendString(b, fieldMetadataAuthor, m.Author)
	b = appendString(b, fieldMetadataLicense, m.License)

	keys := make([]string, 0, len(m.UserDefined))
	for k := range m.UserDefined {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		var entry []byte
		entry = appendString(entry, fieldMapKey, k)
		entry = appendString(entry, fieldMapValue, m.UserDefined[k])
		b = appendMessage(b, fieldMetadataUserDefined, entry)
	}
	return b
}

func marshalFeature(f *FeatureDescription) []byte {
	var b []byte
	b = appendString(b, fieldFeatureName, f.Name)
	b = appendString(b, fieldFeatureShortDescription, f.ShortDescription)

	var typ []byte
	switch f.Type.Kind {
	case FeatureKindInt64:
		typ = appendMessage(typ, fieldTypeInt64, nil)
	case FeatureKindDouble:
		typ = appendMessage(typ, fieldTypeDouble, nil)
	case FeatureKindMultiArray:
		var arr []byte
		arr = appendPackedInt64(arr, fieldArrayShape, f.Type.Shape)
		arr = appendVarint(arr, fieldArrayDataType, uint64(f.Type.DataType))
		typ = appendMessage(typ, fieldTypeMultiArray, arr)
	}
	typ = appendBool(typ, fieldTypeIsOptional, f.Type.Optional)
	return appendMessage(b, fieldFeatureType, typ)
}

func marshalClassifier(c *TreeEnsembleClassifier) []byte {
	var ensemble []byte
	for i := range c.Nodes {
		ensemble = appendMessage(ensemble, fieldEnsembleNodes, marshalNode(&c.Nodes[i]))
	}
	ensemble = appendVarint(ensemble, fieldEnsembleNumPredictionDimensions, c.NumPredictionDimensions)
	ensemble = appendPackedDouble(ensemble, fieldEnsembleBasePredictionValue, c.BasePredictionValue)

	var b []byte
	b = appendMessage(b, fieldClassifierTreeEnsemble, ensemble)
	b = appendVarint(b, fieldClassifierPostEvaluation, uint64(c.PostEvaluationTransform))

	var labels []byte
	labels = appendPackedInt64(labels, fieldInt64Vector, c.Int64ClassLabels)
	return appendMessage(b, fieldClassifierInt64ClassLabels, labels)
}

func marshalNode(n *TreeNode) []byte {
	var b []byte
	b = appendVarint(b, fieldNodeTreeID, n.TreeID)
	b = appendVarint(b, fieldNodeNodeID, n.NodeID)
	b = appendVarint(b, fieldNodeBehavior, uint64(n.Behavior))
	b = appendVarint(b, fieldNodeBranchFeatureIndex, n.BranchFeatureIndex)
	b = appendDouble(b, fieldNodeBranchFeatureValue, n.BranchFeatureValue)
	b = appendVarint(b, fieldNodeTrueChildNodeID, n.TrueChildNodeID)
	b = appendVarint(b, fieldNodeFalseChildNodeID, n.FalseChildNodeID)
	b = appendBool(b, fieldNodeMissingValueTracksTrueChild, n.MissingValueTracksTrueChild)
	for _, info := range n.EvaluationInfo {
		var e []byte
		e = appendVarint(e, fieldEvaluationIndex, info.EvaluationIndex)
		e = appendDouble(e, fieldEvaluationValue, info.EvaluationValue)
		b = appendMessage(b, fieldNodeEvaluationInfo, e)
	}
	b = appendDouble(b, fieldNodeRelativeHitRate, n.RelativeHitRate)
	return b
}
