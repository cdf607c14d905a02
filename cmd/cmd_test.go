package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRules = `
time: {0: 2, 1: 0, 2: 0, 3: 1}
weather: {0: 0, 1: 1, 2: 2, 3: 2}
road: {0: 0, 1: 1, 2: 2}
traffic:
  - {min: 0, weight: 0}
  - {min: 200, weight: 2}
levels:
  - {min_score: 0, label: Quiet}
  - {min_score: 2, label: Busy}
`

func writeFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	var b strings.Builder
	b.WriteString("STATE/UT,YEAR,JANUARY,FEBRUARY,MARCH,APRIL,MAY,JUNE,JULY,AUGUST,SEPTEMBER,OCTOBER,NOVEMBER,DECEMBER,TOTAL\n")
	b.WriteString("Kerala,2014,10,11,12,13,14,15,16,17,18,19,20,21,186\n")
	b.WriteString("Assam,2014,1,2,3,4,5,6,7,8,9,10,11,12,78\n")
	b.WriteString("Kerala,2015,20,21,22,23,24,25,26,27,28,29,30,31,306\n")
	b.WriteString("Assam,2015,2,3,4,5,6,7,8,9,10,11,12,13,90\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "accidents.csv"), []byte(b.String()), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rules.yaml"), []byte(testRules), 0o600))

	config := `
data:
  input: accidents.csv
  output_dir: out
database:
  path: lab.db
  wal: false
log:
  level: error
ml:
  model_path: models/rf.json
  boosting:
    n_estimators: 10
    learning_rate: 0.1
    max_depth: 3
    min_samples_split: 2
    min_samples_leaf: 1
  search:
    parameters:
      n_estimators: [5]
      max_depth: [0, 3]
    folds: 3
    max_workers: 2
    random_seed: 42
risk:
  rules_path: rules.yaml
`
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(config), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestParseMonth(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"1", 1, true},
		{"12", 12, true},
		{"march", 3, true},
		{" December ", 12, true},
		{"0", 0, false},
		{"13", 0, false},
		{"smarch", 0, false},
	}
	for _, tt := range tests {
		got, err := parseMonth(tt.in)
		if !tt.ok {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestRiskCommand(t *testing.T) {
	config := writeFixture(t)
	out, err := run(t, "--config", config, "risk", "--time", "0", "--weather", "0", "--road", "0", "--traffic", "150")
	require.NoError(t, err)
	assert.Contains(t, out, "Predicted Accident Risk Level (Rule-Based): Busy")

	_, err = run(t, "--config", config, "risk", "--road", "7")
	assert.Error(t, err)
	riskInput.Road = 0
}

func TestTrainThenPredict(t *testing.T) {
	config := writeFixture(t)
	out, err := run(t, "--config", config, "train", "--no-charts")
	require.NoError(t, err)
	assert.Contains(t, out, "--- Model Performance ---")
	assert.FileExists(t, filepath.Join(filepath.Dir(config), "models", "rf.json"))

	out, err = run(t, "--config", config, "predict", "--year", "2015", "--month", "june", "--state", "Kerala")
	require.NoError(t, err)
	assert.Contains(t, out, "Predicted number of accidents in Kerala in JUNE, 2015:")

	_, err = run(t, "--config", config, "predict", "--state", "Atlantis")
	assert.Error(t, err)
	predictState = ""
}
