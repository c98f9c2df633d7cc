package coreml

import (
	"fmt"
	"github.com/pkg/errors"
)

type treeIndex struct {
	roots []*TreeNode
	nodes map[uint64]map[uint64]*TreeNode
}

// 没有作为任何节点子节点的节点即为根节点
func buildIndex(c *TreeEnsembleClassifier) (*treeIndex, error) {
	index := &treeIndex{nodes: map[uint64]map[uint64]*TreeNode{}}
	children := map[uint64]map[uint64]struct{}{}
	var treeOrder []uint64
	for i := range c.Nodes {
		n := &c.Nodes[i]
		if index.nodes[n.TreeID] == nil {
			index.nodes[n.TreeID] = map[uint64]*TreeNode{}
			children[n.TreeID] = map[uint64]struct{}{}
			treeOrder = append(treeOrder, n.TreeID)
		}
		index.nodes[n.TreeID][n.NodeID] = n
		if n.Behavior != LeafNode {
			children[n.TreeID][n.TrueChildNodeID] = struct{}{}
			children[n.TreeID][n.FalseChildNodeID] = struct{}{}
		}
	}
	for _, treeID := range treeOrder {
		var root *TreeNode
		for nodeID, n := range index.nodes[treeID] {
			if _, ok := children[treeID][nodeID]; ok {
				continue
			}
			if root != nil {
				return nil, fmt.Errorf("树%d存在多个根节点", treeID)
			}
			root = n
		}
		if root == nil {
			return nil, fmt.Errorf("树%d没有根节点", treeID)
		}
		index.roots = append(index.roots, root)
	}
	return index, nil
}

func branch(n *TreeNode, v float64) bool {
	switch n.Behavior {
	case BranchOnValueLessThanEqual:
		return v <= n.BranchFeatureValue
	case BranchOnValueLessThan:
		return v < n.BranchFeatureValue
	case BranchOnValueGreaterThanEqual:
		return v >= n.BranchFeatureValue
	case BranchOnValueGreaterThan:
		return v > n.BranchFeatureValue
	case BranchOnValueEqual:
		return v == n.BranchFeatureValue
	default:
		return v != n.BranchFeatureValue
	}
}

func (idx *treeIndex) evaluate(v float64, base float64) (float64, error) {
	sum := base
	for _, root := range idx.roots {
		nodes := idx.nodes[root.TreeID]
		n := root
		for depth := 0; n.Behavior != LeafNode; depth++ {
			if depth > len(nodes) {
				return 0, fmt.Errorf("树%d存在环", root.TreeID)
			}
			next := n.FalseChildNodeID
			if branch(n, v) {
				next = n.TrueChildNodeID
			}
			child, ok := nodes[next]
			if !ok {
				return 0, fmt.Errorf("树%d缺少节点%d", root.TreeID, next)
			}
			n = child
		}
		for _, info := range n.EvaluationInfo {
			if info.EvaluationIndex == 0 {
				sum += info.EvaluationValue
			}
		}
	}
	return sum, nil
}

// Predict 按Core ML的规则计算单输入二分类树模型的输出标签
func (m *Model) Predict(x []float64) ([]int64, error) {
	c := m.Classifier
	if c == nil || len(c.Int64ClassLabels) != 2 {
		return nil, ErrUnsupportedModel
	}
	index, err := buildIndex(c)
	if err != nil {
		return nil, errors.Wrap(ErrMalformedModel, err.Error())
	}
	base := 0.0
	if len(c.BasePredictionValue) > 0 {
		base = c.BasePredictionValue[0]
	}

	labels := make([]int64, len(x))
	for i, v := range x {
		raw, err := index.evaluate(v, base)
		if err != nil {
			return nil, errors.Wrap(ErrMalformedModel, err.Error())
		}
		// Logistic变换单调，p > 0.5 等价于 raw > 0
		if raw > 0 {
			labels[i] = c.Int64ClassLabels[1]
		} else {
			labels[i] = c.Int64ClassLabels[0]
		}
	}
	return labels, nil
}
