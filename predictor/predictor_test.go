package predictor

import (
	"errors"
	"math"
	"path/filepath"
	"testing"

	"accidentlab/ml"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// stubModel 返回固定值并记录调用次数
type stubModel struct {
	value float64
	calls int
	last  []float64
}

func (s *stubModel) Fit([][]float64, []float64) error { return nil }
func (s *stubModel) Name() string                     { return "stub" }
func (s *stubModel) Predict(f []float64) (float64, error) {
	s.calls++
	s.last = f
	return s.value, nil
}

func TestClamp(t *testing.T) {
	tests := []struct {
		name string
		raw  float64
		want int
	}{
		{"positive truncates", 12.9, 12},
		{"zero", 0, 0},
		{"small negative", -0.4, 0},
		{"large negative", -1e12, 0},
		{"nan", math.NaN(), 0},
		{"negative infinity", math.Inf(-1), 0},
		{"positive infinity", math.Inf(1), math.MaxInt},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Clamp(tt.raw); got != tt.want {
				t.Fatalf("Clamp(%v) = %d, want %d", tt.raw, got, tt.want)
			}
		})
	}
}

func TestClampProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)
	properties.Property("clamped value is never negative", prop.ForAll(
		func(raw float64) bool {
			return Clamp(raw) >= 0
		},
		gen.Float64(),
	))
	properties.Property("clamp never exceeds positive input", prop.ForAll(
		func(raw float64) bool {
			return float64(Clamp(raw)) <= raw
		},
		gen.Float64Range(0, 1e9),
	))
	properties.TestingRun(t)
}

func TestPredictLooksUpStateCode(t *testing.T) {
	model := &stubModel{value: 41.7}
	p, err := New(model, []string{"Assam", "Goa", "Kerala"}, 2001, 2014, 8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := p.Predict(Query{Year: 2014, Month: 3, State: "Kerala"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Count != 41 {
		t.Fatalf("expected 41, got %d", got.Count)
	}
	if model.last[ml.FeatureStateCode] != 2 || model.last[ml.FeatureMonthNum] != 3 || model.last[ml.FeatureYear] != 2014 {
		t.Fatalf("unexpected features: %v", model.last)
	}
	want := "Predicted number of accidents in Kerala in MARCH, 2014: 41"
	if got.String() != want {
		t.Fatalf("expected %q, got %q", want, got.String())
	}

	if _, err := p.Predict(Query{Year: 2014, Month: 3, State: "Kerala"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if model.calls != 1 {
		t.Fatalf("expected cached second call, model called %d times", model.calls)
	}
}

func TestPredictNegativeOutputClamped(t *testing.T) {
	p, err := New(&stubModel{value: -250}, []string{"Goa"}, 2010, 2010, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := p.Predict(Query{Year: 2010, Month: 1, State: "Goa"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Count != 0 || got.Raw != -250 {
		t.Fatalf("unexpected prediction: %+v", got)
	}
}

func TestPredictValidation(t *testing.T) {
	p, err := New(&stubModel{value: 1}, []string{"Assam", "Goa"}, 2001, 2014, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tests := []struct {
		name  string
		query Query
		want  error
	}{
		{"month too small", Query{Year: 2010, Month: 0, State: "Goa"}, ErrMonthRange},
		{"month too large", Query{Year: 2010, Month: 13, State: "Goa"}, ErrMonthRange},
		{"year before range", Query{Year: 2000, Month: 1, State: "Goa"}, ErrYearRange},
		{"year after range", Query{Year: 2015, Month: 1, State: "Goa"}, ErrYearRange},
		{"unknown state", Query{Year: 2010, Month: 1, State: "Atlantis"}, ErrUnknownState},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := p.Predict(tt.query); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestNewRejectsUnsortedStates(t *testing.T) {
	if _, err := New(&stubModel{}, []string{"Goa", "Assam"}, 2001, 2002, 0); err == nil {
		t.Fatal("expected error for unsorted states")
	}
	if _, err := New(nil, []string{"Goa"}, 2001, 2002, 0); err == nil {
		t.Fatal("expected error for nil model")
	}
}

func TestFormDefaultsAndBounds(t *testing.T) {
	p, err := New(&stubModel{value: 9}, []string{"Assam", "Goa"}, 2001, 2003, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f := NewForm(p)
	if f.Year != 2003 || f.Month != 1 || f.State() != "Assam" {
		t.Fatalf("unexpected defaults: %+v state=%s", f, f.State())
	}

	f.NextYear()
	if f.Year != 2003 {
		t.Fatalf("year should stay at max, got %d", f.Year)
	}
	f.PrevMonth()
	if f.Month != 1 {
		t.Fatalf("month should stay at 1, got %d", f.Month)
	}
	for i := 0; i < 15; i++ {
		f.NextMonth()
	}
	if f.Month != 12 {
		t.Fatalf("month should stop at 12, got %d", f.Month)
	}
	f.NextState()
	f.NextState()
	if f.State() != "Goa" {
		t.Fatalf("expected Goa, got %s", f.State())
	}

	got, err := f.Submit(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.String() != "Predicted number of accidents in Goa in DECEMBER, 2003: 9" {
		t.Fatalf("unexpected output %q", got.String())
	}
}

func TestPersistedModelGivesSameClampedOutput(t *testing.T) {
	var features [][]float64
	var targets []float64
	for code := 0; code < 2; code++ {
		for year := 2001; year <= 2004; year++ {
			for month := 1; month <= 12; month++ {
				features = append(features, ml.FeatureVector(year, month, code))
				targets = append(targets, float64(50*(code+1)+month))
			}
		}
	}
	rf := ml.NewRandomForest(ml.ForestParams{NEstimators: 8, MinSamplesSplit: 2, MinSamplesLeaf: 1, Seed: 42})
	if err := rf.Fit(features, targets); err != nil {
		t.Fatalf("fit failed: %v", err)
	}
	states := []string{"Assam", "Goa"}
	bundle, err := ml.NewBundle(rf, states, 2001, 2004)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	path := filepath.Join(t.TempDir(), "model.json")
	if err := ml.SaveModel(path, bundle); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	loaded, err := ml.LoadModel(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	before, err := FromBundle(bundle, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	after, err := FromBundle(loaded, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	q := Query{Year: 2003, Month: 7, State: "Goa"}
	a, err := before.Predict(q)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := after.Predict(q)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Count != b.Count {
		t.Fatalf("round trip changed output: %d != %d", a.Count, b.Count)
	}
}
