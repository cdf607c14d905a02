package ml

import (
	"fmt"
	"math/rand"
)

const ModelTypeRandomForest = "random_forest"

// ForestParams mirrors the tunable knobs of the forest. MaxDepth 0 is unbounded.
type ForestParams struct {
	NEstimators     int   `json:"n_estimators" yaml:"n_estimators"`
	MaxDepth        int   `json:"max_depth" yaml:"max_depth"`
	MinSamplesSplit int   `json:"min_samples_split" yaml:"min_samples_split"`
	MinSamplesLeaf  int   `json:"min_samples_leaf" yaml:"min_samples_leaf"`
	Seed            int64 `json:"seed" yaml:"seed"`
}

func DefaultForestParams() ForestParams {
	return ForestParams{
		NEstimators:     100,
		MaxDepth:        0,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		Seed:            42,
	}
}

func (p ForestParams) String() string {
	depth := "None"
	if p.MaxDepth > 0 {
		depth = fmt.Sprintf("%d", p.MaxDepth)
	}
	return fmt.Sprintf("{max_depth: %s, min_samples_leaf: %d, min_samples_split: %d, n_estimators: %d}",
		depth, p.MinSamplesLeaf, p.MinSamplesSplit, p.NEstimators)
}

func (p ForestParams) treeParams() TreeParams {
	return TreeParams{
		MaxDepth:        p.MaxDepth,
		MinSamplesSplit: p.MinSamplesSplit,
		MinSamplesLeaf:  p.MinSamplesLeaf,
	}
}

// RandomForest averages bootstrap-trained regression trees. Every split
// considers all features.
type RandomForest struct {
	Params      ForestParams      `json:"params"`
	Trees       []*RegressionTree `json:"trees"`
	Importances []float64         `json:"importances"`
}

func NewRandomForest(params ForestParams) *RandomForest {
	return &RandomForest{Params: params}
}

func (rf *RandomForest) Name() string {
	return "Random Forest"
}

func (rf *RandomForest) Fit(features [][]float64, targets []float64) error {
	if err := validateInput(features, targets); err != nil {
		return err
	}
	if rf.Params.NEstimators <= 0 {
		return fmt.Errorf("n_estimators must be positive, got %d", rf.Params.NEstimators)
	}

	n := len(targets)
	rnd := rand.New(rand.NewSource(rf.Params.Seed))
	trees := make([]*RegressionTree, rf.Params.NEstimators)
	importances := make([]float64, len(features[0]))

	sampleX := make([][]float64, n)
	sampleY := make([]float64, n)
	for t := range trees {
		for i := 0; i < n; i++ {
			j := rnd.Intn(n)
			sampleX[i] = features[j]
			sampleY[i] = targets[j]
		}
		tree := &RegressionTree{}
		if err := tree.Fit(sampleX, sampleY, rf.Params.treeParams()); err != nil {
			return fmt.Errorf("fit tree %d: %w", t, err)
		}
		for f, v := range tree.Importances {
			importances[f] += v
		}
		trees[t] = tree
	}

	rf.Trees = trees
	rf.Importances = normalize(importances)
	return nil
}

func (rf *RandomForest) Predict(features []float64) (float64, error) {
	if len(rf.Trees) == 0 {
		return 0, ErrNotTrained
	}
	sum := 0.0
	for _, tree := range rf.Trees {
		v, err := tree.Predict(features)
		if err != nil {
			return 0, err
		}
		sum += v
	}
	return sum / float64(len(rf.Trees)), nil
}

func (rf *RandomForest) FeatureImportances() []float64 {
	return append([]float64(nil), rf.Importances...)
}
