package ml

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// Evaluation holds hold-out scores for one model.
type Evaluation struct {
	Model string  `json:"model"`
	MAE   float64 `json:"mae"`
	R2    float64 `json:"r2"`
}

func (e Evaluation) String() string {
	return fmt.Sprintf("%s - MAE: %.2f, R²: %.2f", e.Model, e.MAE, e.R2)
}

func MeanAbsoluteError(truth, predicted []float64) (float64, error) {
	if err := checkPairs(truth, predicted); err != nil {
		return 0, err
	}
	sum := 0.0
	for i := range truth {
		sum += math.Abs(predicted[i] - truth[i])
	}
	return sum / float64(len(truth)), nil
}

// R2Score is the coefficient of determination. A constant truth vector scores
// 1 when matched exactly and 0 otherwise.
func R2Score(truth, predicted []float64) (float64, error) {
	if err := checkPairs(truth, predicted); err != nil {
		return 0, err
	}
	mean := stat.Mean(truth, nil)
	ssTot := 0.0
	ssRes := 0.0
	for i, y := range truth {
		ssTot += (y - mean) * (y - mean)
		ssRes += (y - predicted[i]) * (y - predicted[i])
	}
	if ssTot == 0 {
		if ssRes == 0 {
			return 1, nil
		}
		return 0, nil
	}
	return stat.RSquaredFrom(predicted, truth, nil), nil
}

func Evaluate(model Regressor, features [][]float64, truth []float64) (Evaluation, error) {
	predicted, err := PredictAll(model, features)
	if err != nil {
		return Evaluation{}, err
	}
	mae, err := MeanAbsoluteError(truth, predicted)
	if err != nil {
		return Evaluation{}, err
	}
	r2, err := R2Score(truth, predicted)
	if err != nil {
		return Evaluation{}, err
	}
	return Evaluation{Model: model.Name(), MAE: mae, R2: r2}, nil
}

func checkPairs(truth, predicted []float64) error {
	if len(truth) == 0 {
		return ErrEmptyInput
	}
	if len(truth) != len(predicted) {
		return fmt.Errorf("truth and predictions size mismatch: %d != %d", len(truth), len(predicted))
	}
	return nil
}
