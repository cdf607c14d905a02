package ml

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Bundle is the on-disk form of a trained model together with the encoding
// context prediction needs: the sorted state list (index = State_Code) and the
// observed year range.
type Bundle struct {
	ModelType    string            `json:"model_type"`
	Forest       *RandomForest     `json:"forest,omitempty"`
	Boosting     *GradientBoosting `json:"boosting,omitempty"`
	FeatureNames []string          `json:"feature_names"`
	States       []string          `json:"states"`
	YearMin      int               `json:"year_min"`
	YearMax      int               `json:"year_max"`
	TrainedAt    time.Time         `json:"trained_at"`
}

func NewBundle(model Regressor, states []string, yearMin, yearMax int) (*Bundle, error) {
	b := &Bundle{
		FeatureNames: FeatureNames(),
		States:       append([]string(nil), states...),
		YearMin:      yearMin,
		YearMax:      yearMax,
		TrainedAt:    time.Now().UTC(),
	}
	switch m := model.(type) {
	case *RandomForest:
		b.ModelType = ModelTypeRandomForest
		b.Forest = m
	case *GradientBoosting:
		b.ModelType = ModelTypeGradientBoosting
		b.Boosting = m
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownType, model)
	}
	return b, nil
}

func (b *Bundle) Model() (Regressor, error) {
	switch b.ModelType {
	case ModelTypeRandomForest:
		if b.Forest == nil {
			return nil, ErrNotTrained
		}
		return b.Forest, nil
	case ModelTypeGradientBoosting:
		if b.Boosting == nil {
			return nil, ErrNotTrained
		}
		return b.Boosting, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, b.ModelType)
	}
}

func SaveModel(path string, b *Bundle) error {
	if _, err := b.Model(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	payload, err := json.Marshal(b)
	if err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o600)
}

func LoadModel(path string) (*Bundle, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var b Bundle
	if err := json.Unmarshal(payload, &b); err != nil {
		return nil, fmt.Errorf("decode model %s: %w", path, err)
	}
	if _, err := b.Model(); err != nil {
		return nil, err
	}
	return &b, nil
}
