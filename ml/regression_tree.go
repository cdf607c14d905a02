package ml

import (
	"errors"
	"fmt"
	"sort"
)

const impurityEpsilon = 1e-12

// TreeParams controls how deep and how fine a regression tree may grow.
// MaxDepth <= 0 means unbounded.
type TreeParams struct {
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
}

func (p TreeParams) withDefaults() TreeParams {
	if p.MinSamplesSplit < 2 {
		p.MinSamplesSplit = 2
	}
	if p.MinSamplesLeaf < 1 {
		p.MinSamplesLeaf = 1
	}
	return p
}

type TreeNode struct {
	FeatureIdx int     `json:"feature_idx"`
	Threshold  float64 `json:"threshold"`
	LeftChild  int     `json:"left_child"`
	RightChild int     `json:"right_child"`
	Value      float64 `json:"value"`
	Samples    int     `json:"samples"`
	IsLeaf     bool    `json:"is_leaf"`
}

// RegressionTree is a CART tree with squared-error splits, stored as a flat
// node slice where node 0 is the root.
type RegressionTree struct {
	Nodes       []TreeNode `json:"nodes"`
	Importances []float64  `json:"importances,omitempty"`
}

func (t *RegressionTree) Fit(features [][]float64, targets []float64, params TreeParams) error {
	if err := validateInput(features, targets); err != nil {
		return err
	}
	params = params.withDefaults()

	b := &treeBuilder{
		features:    features,
		targets:     targets,
		params:      params,
		importances: make([]float64, len(features[0])),
	}
	idx := make([]int, len(targets))
	for i := range idx {
		idx[i] = i
	}

	t.Nodes = t.Nodes[:0]
	t.build(b, idx, 0)
	t.Importances = normalize(b.importances)
	return nil
}

func (t *RegressionTree) Predict(features []float64) (float64, error) {
	if len(t.Nodes) == 0 {
		return 0, ErrNotTrained
	}
	idx := 0
	for {
		node := t.Nodes[idx]
		if node.IsLeaf {
			return node.Value, nil
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= len(features) {
			return 0, errors.New("feature index out of range")
		}
		if features[node.FeatureIdx] <= node.Threshold {
			idx = node.LeftChild
		} else {
			idx = node.RightChild
		}
		if idx < 0 || idx >= len(t.Nodes) {
			return 0, errors.New("invalid tree state")
		}
	}
}

// Depth returns the number of edges on the longest root-to-leaf path.
func (t *RegressionTree) Depth() int {
	if len(t.Nodes) == 0 {
		return 0
	}
	var walk func(idx int) int
	walk = func(idx int) int {
		node := t.Nodes[idx]
		if node.IsLeaf {
			return 0
		}
		return 1 + max(walk(node.LeftChild), walk(node.RightChild))
	}
	return walk(0)
}

func (t *RegressionTree) build(b *treeBuilder, idx []int, depth int) int {
	nodeID := len(t.Nodes)
	t.Nodes = append(t.Nodes, TreeNode{})

	mean, sse := b.stats(idx)
	node := TreeNode{
		FeatureIdx: -1,
		LeftChild:  -1,
		RightChild: -1,
		Value:      mean,
		Samples:    len(idx),
		IsLeaf:     true,
	}

	if b.canSplit(len(idx), depth, sse) {
		if s, ok := b.bestSplit(idx); ok {
			left, right := b.partition(idx, s.feature, s.threshold)
			b.importances[s.feature] += sse - s.leftSSE - s.rightSSE

			node.IsLeaf = false
			node.FeatureIdx = s.feature
			node.Threshold = s.threshold
			node.LeftChild = t.build(b, left, depth+1)
			node.RightChild = t.build(b, right, depth+1)
		}
	}

	t.Nodes[nodeID] = node
	return nodeID
}

type split struct {
	feature   int
	threshold float64
	leftSSE   float64
	rightSSE  float64
}

type treeBuilder struct {
	features    [][]float64
	targets     []float64
	params      TreeParams
	importances []float64
}

func (b *treeBuilder) canSplit(n, depth int, sse float64) bool {
	if n < b.params.MinSamplesSplit || n < 2*b.params.MinSamplesLeaf {
		return false
	}
	if b.params.MaxDepth > 0 && depth >= b.params.MaxDepth {
		return false
	}
	return sse > impurityEpsilon
}

func (b *treeBuilder) stats(idx []int) (mean, sse float64) {
	for _, i := range idx {
		mean += b.targets[i]
	}
	mean /= float64(len(idx))
	for _, i := range idx {
		d := b.targets[i] - mean
		sse += d * d
	}
	return mean, sse
}

// bestSplit scans every feature in order and every boundary between distinct
// sorted values, keeping the first split with the lowest child SSE.
func (b *treeBuilder) bestSplit(idx []int) (split, bool) {
	n := len(idx)
	minLeaf := b.params.MinSamplesLeaf
	best := split{feature: -1}
	bestScore := 0.0

	sorted := make([]int, n)
	for f := range b.features[0] {
		copy(sorted, idx)
		sort.SliceStable(sorted, func(i, j int) bool {
			return b.features[sorted[i]][f] < b.features[sorted[j]][f]
		})

		var totalSum, totalSq float64
		for _, i := range sorted {
			y := b.targets[i]
			totalSum += y
			totalSq += y * y
		}

		var leftSum, leftSq float64
		for pos := 1; pos < n; pos++ {
			y := b.targets[sorted[pos-1]]
			leftSum += y
			leftSq += y * y

			if pos < minLeaf || n-pos < minLeaf {
				continue
			}
			lo := b.features[sorted[pos-1]][f]
			hi := b.features[sorted[pos]][f]
			if lo == hi {
				continue
			}

			nl := float64(pos)
			nr := float64(n - pos)
			rightSum := totalSum - leftSum
			rightSq := totalSq - leftSq
			leftSSE := nonNegative(leftSq - leftSum*leftSum/nl)
			rightSSE := nonNegative(rightSq - rightSum*rightSum/nr)
			score := leftSSE + rightSSE

			if best.feature == -1 || score < bestScore {
				bestScore = score
				threshold := lo + (hi-lo)/2
				if threshold >= hi {
					threshold = lo
				}
				best = split{feature: f, threshold: threshold, leftSSE: leftSSE, rightSSE: rightSSE}
			}
		}
	}
	return best, best.feature != -1
}

func (b *treeBuilder) partition(idx []int, feature int, threshold float64) ([]int, []int) {
	left := make([]int, 0, len(idx)/2)
	right := make([]int, 0, len(idx)/2)
	for _, i := range idx {
		if b.features[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	return left, right
}

func validateInput(features [][]float64, targets []float64) error {
	if len(features) == 0 || len(targets) == 0 {
		return ErrEmptyInput
	}
	if len(features) != len(targets) {
		return fmt.Errorf("features and targets size mismatch: %d != %d", len(features), len(targets))
	}
	width := len(features[0])
	if width == 0 {
		return errors.New("feature rows are empty")
	}
	for i, row := range features {
		if len(row) != width {
			return fmt.Errorf("row %d has %d features, expected %d", i, len(row), width)
		}
	}
	return nil
}

func nonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

func normalize(values []float64) []float64 {
	out := make([]float64, len(values))
	total := 0.0
	for _, v := range values {
		total += v
	}
	if total == 0 {
		return out
	}
	for i, v := range values {
		out[i] = v / total
	}
	return out
}
