package ml

import "errors"

var (
	ErrNotTrained  = errors.New("model not trained")
	ErrEmptyInput  = errors.New("features or targets empty")
	ErrUnknownType = errors.New("unsupported model type")
)

// Regressor maps a feature vector to a continuous target.
type Regressor interface {
	Fit(features [][]float64, targets []float64) error
	Predict(features []float64) (float64, error)
	Name() string
}

// ImportanceProvider is implemented by models that expose impurity-based
// feature importances.
type ImportanceProvider interface {
	FeatureImportances() []float64
}

// PredictAll runs the model over every row.
func PredictAll(model Regressor, features [][]float64) ([]float64, error) {
	out := make([]float64, len(features))
	for i, row := range features {
		v, err := model.Predict(row)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
