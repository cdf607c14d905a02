package ml

import "fmt"

const ModelTypeGradientBoosting = "gradient_boosting"

type BoostingParams struct {
	NEstimators     int     `json:"n_estimators" yaml:"n_estimators"`
	LearningRate    float64 `json:"learning_rate" yaml:"learning_rate"`
	MaxDepth        int     `json:"max_depth" yaml:"max_depth"`
	MinSamplesSplit int     `json:"min_samples_split" yaml:"min_samples_split"`
	MinSamplesLeaf  int     `json:"min_samples_leaf" yaml:"min_samples_leaf"`
}

// DefaultBoostingParams are the stock least-squares boosting settings:
// 100 stages, shrinkage 0.1, depth-3 trees.
func DefaultBoostingParams() BoostingParams {
	return BoostingParams{
		NEstimators:     100,
		LearningRate:    0.1,
		MaxDepth:        3,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
	}
}

// GradientBoosting fits each stage to the residuals of the running ensemble,
// starting from the target mean.
type GradientBoosting struct {
	Params      BoostingParams    `json:"params"`
	Init        float64           `json:"init"`
	Stages      []*RegressionTree `json:"stages"`
	Importances []float64         `json:"importances"`
}

func NewGradientBoosting(params BoostingParams) *GradientBoosting {
	return &GradientBoosting{Params: params}
}

func (gb *GradientBoosting) Name() string {
	return "Gradient Boosting Regressor"
}

func (gb *GradientBoosting) Fit(features [][]float64, targets []float64) error {
	if err := validateInput(features, targets); err != nil {
		return err
	}
	if gb.Params.NEstimators <= 0 {
		return fmt.Errorf("n_estimators must be positive, got %d", gb.Params.NEstimators)
	}
	if gb.Params.LearningRate <= 0 {
		return fmt.Errorf("learning_rate must be positive, got %f", gb.Params.LearningRate)
	}

	n := len(targets)
	init := 0.0
	for _, y := range targets {
		init += y
	}
	init /= float64(n)

	current := make([]float64, n)
	for i := range current {
		current[i] = init
	}

	params := TreeParams{
		MaxDepth:        gb.Params.MaxDepth,
		MinSamplesSplit: gb.Params.MinSamplesSplit,
		MinSamplesLeaf:  gb.Params.MinSamplesLeaf,
	}
	residuals := make([]float64, n)
	stages := make([]*RegressionTree, gb.Params.NEstimators)
	importances := make([]float64, len(features[0]))

	for s := range stages {
		for i := range residuals {
			residuals[i] = targets[i] - current[i]
		}
		tree := &RegressionTree{}
		if err := tree.Fit(features, residuals, params); err != nil {
			return fmt.Errorf("fit stage %d: %w", s, err)
		}
		for i, row := range features {
			v, err := tree.Predict(row)
			if err != nil {
				return err
			}
			current[i] += gb.Params.LearningRate * v
		}
		for f, v := range tree.Importances {
			importances[f] += v
		}
		stages[s] = tree
	}

	gb.Init = init
	gb.Stages = stages
	gb.Importances = normalize(importances)
	return nil
}

func (gb *GradientBoosting) Predict(features []float64) (float64, error) {
	if len(gb.Stages) == 0 {
		return 0, ErrNotTrained
	}
	out := gb.Init
	for _, tree := range gb.Stages {
		v, err := tree.Predict(features)
		if err != nil {
			return 0, err
		}
		out += gb.Params.LearningRate * v
	}
	return out, nil
}

func (gb *GradientBoosting) FeatureImportances() []float64 {
	return append([]float64(nil), gb.Importances...)
}
