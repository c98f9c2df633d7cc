package algorithm

import (
	"fmt"
	"github.com/packagewjx/anomalydetector/internal/core"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"math"
	"math/rand/v2"
	"sort"
)

const eulerGamma = 0.5772156649015329

var (
	ErrEmptySample          = errors.New("训练样本为空")
	ErrNotFitted            = errors.New("模型尚未训练")
	ErrInvalidContamination = errors.New("contamination必须位于(0, 0.5]")
)

// Detector 无监督异常检测模型，分数越小越异常
type Detector interface {
	Fit(x []float64) error
	ScoreSamples(x []float64) ([]float64, error)
	DecisionFunction(x []float64) ([]float64, error)
}

// Node 隔离树节点。value < Split 进入Left，否则进入Right。
type Node struct {
	Split float64
	Left  *Node
	Right *Node
	Depth int
	Size  int
	Leaf  bool
}

// PathLength 叶子节点的路径长度，包含对未继续划分的样本的平均路径补偿
func (n *Node) PathLength() float64 {
	return float64(n.Depth) + averagePathLength(n.Size)
}

type IsolationForest struct {
	contamination float64
	numTrees      int
	maxSamples    int
	rng           *rand.Rand

	sampleSize int
	trees      []*Node
	offset     float64
	fitted     bool
}

var _ Detector = &IsolationForest{}

func NewIsolationForest(config core.ForestConfig, rng *rand.Rand) *IsolationForest {
	return &IsolationForest{
		contamination: config.Contamination,
		numTrees:      config.NumTrees,
		maxSamples:    config.MaxSamples,
		rng:           rng,
	}
}

func (f *IsolationForest) Fit(x []float64) error {
	if len(x) == 0 {
		return ErrEmptySample
	}
	if f.contamination <= 0 || f.contamination > 0.5 {
		return errors.Wrap(ErrInvalidContamination, fmt.Sprintf("当前值%g", f.contamination))
	}
	if f.numTrees <= 0 {
		return fmt.Errorf("树的数量必须大于0，当前为%d", f.numTrees)
	}

	f.sampleSize = len(x)
	if f.maxSamples > 0 && f.maxSamples < f.sampleSize {
		f.sampleSize = f.maxSamples
	}
	maxDepth := int(math.Ceil(math.Log2(float64(f.sampleSize))))

	f.trees = make([]*Node, f.numTrees)
	for i := 0; i < f.numTrees; i++ {
		f.trees[i] = f.buildNode(f.subsample(x), 0, maxDepth)
	}
	f.fitted = true

	scores, _ := f.ScoreSamples(x)
	sort.Float64s(scores)
	f.offset = stat.Quantile(f.contamination, stat.LinInterp, scores, nil)
	return nil
}

// 不放回抽样
func (f *IsolationForest) subsample(x []float64) []float64 {
	if len(x) == f.sampleSize {
		sample := make([]float64, len(x))
		copy(sample, x)
		return sample
	}
	perm := f.rng.Perm(len(x))
	sample := make([]float64, f.sampleSize)
	for i := 0; i < f.sampleSize; i++ {
		sample[i] = x[perm[i]]
	}
	return sample
}

func (f *IsolationForest) buildNode(data []float64, depth, maxDepth int) *Node {
	if len(data) <= 1 || depth >= maxDepth {
		return &Node{Depth: depth, Size: len(data), Leaf: true}
	}

	minVal, maxVal := floats.Min(data), floats.Max(data)
	if minVal == maxVal {
		return &Node{Depth: depth, Size: len(data), Leaf: true}
	}

	split := minVal + f.rng.Float64()*(maxVal-minVal)
	var left, right []float64
	for _, v := range data {
		if v < split {
			left = append(left, v)
		} else {
			right = append(right, v)
		}
	}

	return &Node{
		Split: split,
		Left:  f.buildNode(left, depth+1, maxDepth),
		Right: f.buildNode(right, depth+1, maxDepth),
		Depth: depth,
		Size:  len(data),
	}
}

func (f *IsolationForest) pathLength(v float64) float64 {
	total := 0.0
	for _, root := range f.trees {
		node := root
		for !node.Leaf {
			if v < node.Split {
				node = node.Left
			} else {
				node = node.Right
			}
		}
		total += node.PathLength()
	}
	return total / float64(len(f.trees))
}

func (f *IsolationForest) normalizer() float64 {
	c := averagePathLength(f.sampleSize)
	if c <= 0 {
		return 1
	}
	return c
}

// ScoreSamples 返回-2^(-E(h)/c(ψ))，取值范围[-1, 0)，越小越异常
func (f *IsolationForest) ScoreSamples(x []float64) ([]float64, error) {
	if !f.fitted {
		return nil, ErrNotFitted
	}
	c := f.normalizer()
	result := make([]float64, len(x))
	for i, v := range x {
		result[i] = -math.Pow(2, -f.pathLength(v)/c)
	}
	return result, nil
}

// DecisionFunction 负数表示异常
func (f *IsolationForest) DecisionFunction(x []float64) ([]float64, error) {
	scores, err := f.ScoreSamples(x)
	if err != nil {
		return nil, err
	}
	for i := range scores {
		scores[i] -= f.offset
	}
	return scores, nil
}

// PathLengthThreshold 平均路径长度小于该值时DecisionFunction为负
func (f *IsolationForest) PathLengthThreshold() float64 {
	return -f.normalizer() * math.Log2(-f.offset)
}

func (f *IsolationForest) Contamination() float64 {
	return f.contamination
}

func (f *IsolationForest) Offset() float64 {
	return f.offset
}

func (f *IsolationForest) SampleSize() int {
	return f.sampleSize
}

func (f *IsolationForest) Trees() []*Node {
	return f.trees
}

func (f *IsolationForest) Fitted() bool {
	return f.fitted
}

// 二叉搜索树中未成功查找的平均路径长度
func averagePathLength(n int) float64 {
	if n <= 1 {
		return 0
	}
	if n == 2 {
		return 1
	}
	fn := float64(n)
	return 2*(math.Log(fn-1)+eulerGamma) - 2*(fn-1)/fn
}
