package training

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"accidentlab/db"
	"accidentlab/ml"
	"accidentlab/monitoring"
	"accidentlab/predictor"
	"accidentlab/tuning"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCSV(t *testing.T, dir string) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("STATE/UT,YEAR,JANUARY,FEBRUARY,MARCH,APRIL,MAY,JUNE,JULY,AUGUST,SEPTEMBER,OCTOBER,NOVEMBER,DECEMBER,TOTAL\n")
	for s, state := range []string{"Kerala", "Assam", "Goa"} {
		for year := 2008; year <= 2012; year++ {
			b.WriteString(fmt.Sprintf("%s,%d", state, year))
			total := 0
			for m := 1; m <= 12; m++ {
				v := 100*(s+1) + 5*m + 3*(year-2008)
				total += v
				b.WriteString(fmt.Sprintf(",%d", v))
			}
			b.WriteString(fmt.Sprintf(",%d\n", total))
		}
	}
	path := filepath.Join(dir, "accidents.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o600))
	return path
}

func smallConfig(dir string) Config {
	return Config{
		InputPath: filepath.Join(dir, "accidents.csv"),
		ModelPath: filepath.Join(dir, "models", "rf.json"),
		TestRatio: 0.2,
		Seed:      42,
		Boosting:  ml.BoostingParams{NEstimators: 20, LearningRate: 0.1, MaxDepth: 3, MinSamplesSplit: 2, MinSamplesLeaf: 1},
		Search: tuning.SearchConfig{
			Parameters: map[string][]int{
				tuning.ParamNEstimators: {5, 10},
				tuning.ParamMaxDepth:    {0, 5},
			},
			Folds:      3,
			MaxWorkers: 2,
			RandomSeed: 42,
		},
	}
}

func TestRunEndToEnd(t *testing.T) {
	dir := t.TempDir()
	cfg := smallConfig(dir)
	cfg.InputPath = writeCSV(t, dir)

	store, err := db.Open(filepath.Join(dir, "accidentlab.db"), false)
	require.NoError(t, err)
	defer store.Close()
	metrics := monitoring.NewRegistry()

	report, err := NewTrainer(cfg, nil, metrics, store).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 180, report.Rows)
	assert.Equal(t, 36, report.TestRows)
	assert.Equal(t, 144, report.TrainRows)
	assert.GreaterOrEqual(t, report.Boosting.MAE, 0.0)
	assert.LessOrEqual(t, report.Tuned.R2, 1.0)
	assert.Equal(t, "Random Forest (Tuned)", report.Tuned.Model)
	assert.Len(t, report.Importances, 3)

	bundle, err := ml.LoadModel(cfg.ModelPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"Assam", "Goa", "Kerala"}, bundle.States)
	assert.Equal(t, 2008, bundle.YearMin)
	assert.Equal(t, 2012, bundle.YearMax)

	// 重新加载后的预测与内存中的模型一致
	before, err := predictor.FromBundle(report.Bundle, 0)
	require.NoError(t, err)
	after, err := predictor.FromBundle(bundle, 0)
	require.NoError(t, err)
	q := predictor.Query{Year: 2012, Month: 6, State: "Goa"}
	a, err := before.Predict(q)
	require.NoError(t, err)
	b, err := after.Predict(q)
	require.NoError(t, err)
	assert.Equal(t, a.Count, b.Count)

	logs, err := store.LoadTrainingLog(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, report.RunID, logs[0].RunID)

	records, err := store.QueryRecords(context.Background(), "Goa")
	require.NoError(t, err)
	assert.Len(t, records, 60)

	assert.Equal(t, 4, report.Search.Completed)
	assert.Equal(t, 0, report.Search.Failed)
	assert.Equal(t, 12, report.Search.Fits)
	require.Len(t, report.Top, 4)
	assert.Equal(t, report.BestCVScore, report.Top[0].Metric)
	assert.Equal(t, 12.0, testutil.ToFloat64(metrics.GridSearchFits))
	assert.Equal(t, 100.0, testutil.ToFloat64(metrics.GridSearchProgress))
	assert.Equal(t, report.Tuned.MAE, testutil.ToFloat64(metrics.ModelMAE.WithLabelValues("Random Forest (Tuned)")))

	var out bytes.Buffer
	PrintReport(&out, report)
	text := out.String()
	assert.Contains(t, text, "Gradient Boosting Regressor Evaluation:")
	assert.Contains(t, text, "Best Parameters: {max_depth:")
	assert.Contains(t, text, "Combinations evaluated: 4 (0 failed), 12 fits")
	assert.Contains(t, text, "Top Parameter Combinations (mean CV MAE):\n  1. ")
	assert.Contains(t, text, "--- Model Performance ---")
	assert.Contains(t, text, "Random Forest (Tuned) - MAE:")
}

func TestRunRejectsInvalidInput(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.csv")
	content := "STATE/UT,YEAR,JANUARY,FEBRUARY,MARCH,APRIL,MAY,JUNE,JULY,AUGUST,SEPTEMBER,OCTOBER,NOVEMBER,DECEMBER\n" +
		"Goa,2010,1,1,1,1,1,1,1,1,1,1,1,-4\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg := smallConfig(dir)
	cfg.InputPath = path
	_, err := NewTrainer(cfg, nil, nil, nil).Run(context.Background())
	assert.Error(t, err)

	cfg.InputPath = ""
	_, err = NewTrainer(cfg, nil, nil, nil).Run(context.Background())
	assert.Error(t, err)
}
