package coreml

import (
	"fmt"
	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
	"math"
)

type field struct {
	num    protowire.Number
	typ    protowire.Type
	varint uint64
	fixed  uint64
	bytes  []byte
}

func (f field) double() float64 {
	return math.Float64frombits(f.fixed)
}

// 逐个读取字段，未知字段跳过
func parseFields(b []byte, fn func(f field) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		f := field{num: num, typ: typ}
		switch typ {
		case protowire.VarintType:
			f.varint, n = protowire.ConsumeVarint(b)
		case protowire.Fixed64Type:
			f.fixed, n = protowire.ConsumeFixed64(b)
		case protowire.BytesType:
			f.bytes, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}

// 兼容packed与非packed两种编码
func int64List(f field) ([]int64, error) {
	if f.typ == protowire.VarintType {
		return []int64{int64(f.varint)}, nil
	}
	if f.typ != protowire.BytesType {
		return nil, fmt.Errorf("字段%d类型错误", f.num)
	}
	var result []int64
	b := f.bytes
	for len(b) > 0 {
		v, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		result = append(result, int64(v))
		b = b[n:]
	}
	return result, nil
}

func doubleList(f field) ([]float64, error) {
	if f.typ == protowire.Fixed64Type {
		return []float64{f.double()}, nil
	}
	if f.typ != protowire.BytesType {
		return nil, fmt.Errorf("字段%d类型错误", f.num)
	}
	var result []float64
	b := f.bytes
	for len(b) > 0 {
		v, n := protowire.ConsumeFixed64(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		result = append(result, math.Float64frombits(v))
		b = b[n:]
	}
	return result, nil
}

// Unmarshal 解码Marshal写出的模型。其他类型的模型只保留描述部分。
func Unmarshal(b []byte) (*Model, error) {
	m := &Model{}
	err := parseFields(b, func(f field) error {
		switch f.num {
		case fieldModelSpecificationVersion:
			m.SpecificationVersion = int32(f.varint)
		case fieldModelDescription:
			return unmarshalDescription(f.bytes, &m.Description)
		case fieldModelTreeEnsembleClassifier:
			c := &TreeEnsembleClassifier{}
			if err := unmarshalClassifier(f.bytes, c); err != nil {
				return err
			}
			m.Classifier = c
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(ErrMalformedModel, err.Error())
	}
	return m, nil
}

func unmarshalDescription(b []byte, d *Description) error {
	return parseFields(b, func(f field) error {
		switch f.num {
		case fieldDescriptionInput, fieldDescriptionOutput:
			feature := FeatureDescription{}
			if err := unmarshalFeature(f.bytes, &feature); err != nil {
				return err
			}
			if f.num == fieldDescriptionInput {
				d.Inputs = append(d.Inputs, feature)
			} else {
				d.Outputs = append(d.Outputs, feature)
			}
		case fieldDescriptionPredictedFeatureName:
			d.PredictedFeatureName = string(f.bytes)
		case fieldDescriptionPredictedProbabilitiesName:
			d.PredictedProbabilitiesName = string(f.bytes)
		case fieldDescriptionMetadata:
			return unmarshalMetadata(f.bytes, &d.Metadata)
		}
		return nil
	})
}

func unmarshalMetadata(b []byte, m *Metadata) error {
	return parseFields(b, func(f field) error {
		switch f.num {
		case fieldMetadataShortDescription:
			m.ShortDescription = string(f.bytes)
		case fieldMetadataVersionString:
			m.VersionString = string(f.bytes)
		case fieldMetadataAuthor:
			m.Author = string(f.bytes)
		case fieldMetadataLicense:
			m.License = string(f.bytes)
		case fieldMetadataUserDefined:
			var key, value string
			err := parseFields(f.bytes, func(e field) error {
				switch e.num {
				case fieldMapKey:
					key = string(e.bytes)
				case fieldMapValue:
					value = string(e.bytes)
				}
				return nil
			})
			if err != nil {
				return err
			}
			if m.UserDefined == nil {
				m.UserDefined = map[string]string{}
			}
			m.UserDefined[key] = value
		}
		return nil
	})
}

func unmarshalFeature(b []byte, d *FeatureDescription) error {
	return parseFields(b, func(f field) error {
		switch f.num {
		case fieldFeatureName:
			d.Name = string(f.bytes)
		case fieldFeatureShortDescription:
			d.ShortDescription = string(f.bytes)
		case fieldFeatureType:
			return unmarshalFeatureType(f.bytes, &d.Type)
		}
		return nil
	})
}

func unmarshalFeatureType(b []byte, t *FeatureType) error {
	return parseFields(b, func(f field) error {
		switch f.num {
		case fieldTypeInt64:
			t.Kind = FeatureKindInt64
		case fieldTypeDouble:
			t.Kind = FeatureKindDouble
		case fieldTypeMultiArray:
			t.Kind = FeatureKindMultiArray
			return parseFields(f.bytes, func(a field) error {
				switch a.num {
				case fieldArrayShape:
					shape, err := int64List(a)
					if err != nil {
						return err
					}
					t.Shape = append(t.Shape, shape...)
				case fieldArrayDataType:
					t.DataType = ArrayDataType(a.varint)
				}
				return nil
			})
		case fieldTypeIsOptional:
			t.Optional = f.varint != 0
		}
		return nil
	})
}

func unmarshalClassifier(b []byte, c *TreeEnsembleClassifier) error {
	return parseFields(b, func(f field) error {
		switch f.num {
		case fieldClassifierTreeEnsemble:
			return unmarshalEnsemble(f.bytes, c)
		case fieldClassifierPostEvaluation:
			c.PostEvaluationTransform = PostEvaluationTransform(f.varint)
		case fieldClassifierInt64ClassLabels:
			return parseFields(f.bytes, func(v field) error {
				if v.num != fieldInt64Vector {
					return nil
				}
				labels, err := int64List(v)
				if err != nil {
					return err
				}
				c.Int64ClassLabels = append(c.Int64ClassLabels, labels...)
				return nil
			})
		}
		return nil
	})
}

func unmarshalEnsemble(b []byte, c *TreeEnsembleClassifier) error {
	return parseFields(b, func(f field) error {
		switch f.num {
		case fieldEnsembleNodes:
			node := TreeNode{}
			if err := unmarshalNode(f.bytes, &node); err != nil {
				return err
			}
			c.Nodes = append(c.Nodes, node)
		case fieldEnsembleNumPredictionDimensions:
			c.NumPredictionDimensions = f.varint
		case fieldEnsembleBasePredictionValue:
			values, err := doubleList(f)
			if err != nil {
				return err
			}
			c.BasePredictionValue = append(c.BasePredictionValue, values...)
		}
		return nil
	})
}

func unmarshalNode(b []byte, n *TreeNode) error {
	return parseFields(b, func(f field) error {
		switch f.num {
		case fieldNodeTreeID:
			n.TreeID = f.varint
		case fieldNodeNodeID:
			n.NodeID = f.varint
		case fieldNodeBehavior:
			n.Behavior = NodeBehavior(f.varint)
		case fieldNodeBranchFeatureIndex:
			n.BranchFeatureIndex = f.varint
		case fieldNodeBranchFeatureValue:
			n.BranchFeatureValue = f.double()
		case fieldNodeTrueChildNodeID:
			n.TrueChildNodeID = f.varint
		case fieldNodeFalseChildNodeID:
			n.FalseChildNodeID = f.varint
		case fieldNodeMissingValueTracksTrueChild:
			n.MissingValueTracksTrueChild = f.varint != 0
		case fieldNodeEvaluationInfo:
			info := EvaluationInfo{}
			err := parseFields(f.bytes, func(e field) error {
				switch e.num {
				case fieldEvaluationIndex:
					info.EvaluationIndex = e.varint
				case fieldEvaluationValue:
					info.EvaluationValue = e.double()
				}
				return nil
			})
			if err != nil {
				return err
			}
			n.EvaluationInfo = append(n.EvaluationInfo, info)
		case fieldNodeRelativeHitRate:
			n.RelativeHitRate = f.double()
		}
		return nil
	})
}
