package risk

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixtureRules = `
time: {0: 3, 1: 1, 2: 0, 3: 2}
weather: {0: 0, 1: 2, 2: 3, 3: 4}
road: {0: 0, 1: 2, 2: 4}
traffic:
  - {min: 0, weight: 0}
  - {min: 100, weight: 1}
  - {min: 300, weight: 3}
levels:
  - {min_score: 0, label: Alpha}
  - {min_score: 4, label: Beta}
  - {min_score: 8, label: Gamma}
`

func fixtureScorer(t *testing.T) *RuleScorer {
	t.Helper()
	rules, err := ParseRules([]byte(fixtureRules))
	require.NoError(t, err)
	scorer, err := NewRuleScorer(rules)
	require.NoError(t, err)
	return scorer
}

func TestScoreDeterministic(t *testing.T) {
	scorer := fixtureScorer(t)
	in := Input{Time: 1, Weather: 0, Road: 0, Traffic: 150}

	first, err := scorer.Score(in)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := scorer.Score(in)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	assert.Equal(t, 2.0, first.Score)
	assert.Equal(t, "Alpha", first.Label)
}

func TestScoreLevels(t *testing.T) {
	scorer := fixtureScorer(t)
	tests := []struct {
		name  string
		input Input
		score float64
		label string
	}{
		{"afternoon clear dry empty", Input{2, 0, 0, 0}, 0, "Alpha"},
		{"exactly on boundary", Input{0, 0, 0, 100}, 4, "Beta"},
		{"night fog icy heavy", Input{0, 2, 2, 500}, 13, "Gamma"},
		{"traffic band edge", Input{2, 1, 0, 299}, 3, "Alpha"},
		{"traffic upper band", Input{2, 1, 0, 300}, 5, "Beta"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := scorer.Score(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.score, got.Score)
			assert.Equal(t, tt.label, got.Label)
		})
	}
}

func TestScoreRejectsOutOfRangeInput(t *testing.T) {
	scorer := fixtureScorer(t)
	for _, in := range []Input{
		{Time: 4}, {Weather: -1}, {Road: 3}, {Traffic: 501},
	} {
		_, err := scorer.Score(in)
		assert.ErrorIs(t, err, ErrInvalidInput, "%+v", in)
	}
}

func TestRulesNotConfigured(t *testing.T) {
	_, err := NewRuleScorer(nil)
	assert.ErrorIs(t, err, ErrRulesNotConfigured)

	_, err = LoadRules("")
	assert.ErrorIs(t, err, ErrRulesNotConfigured)

	var empty RuleScorer
	assert.False(t, empty.Ready())
	_, err = empty.Score(DefaultInput())
	assert.ErrorIs(t, err, ErrRulesNotConfigured)

	assert.True(t, fixtureScorer(t).Ready())
}

func TestParseRulesValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(string) string
		message string
	}{
		{"missing time code", func(s string) string { return strings.Replace(s, ", 3: 2}", "}", 1) }, "time code 3"},
		{"extra road code", func(s string) string { return strings.Replace(s, "2: 4}", "2: 4, 7: 1}", 1) }, "road code 7"},
		{"traffic not from zero", func(s string) string { return strings.Replace(s, "{min: 0, weight: 0}", "{min: 10, weight: 0}", 1) }, "start at 0"},
		{"levels not ascending", func(s string) string { return strings.Replace(s, "min_score: 8", "min_score: 2", 1) }, "ascending"},
		{"unreachable first level", func(s string) string { return strings.Replace(s, "min_score: 0,", "min_score: 1,", 1) }, "lowest reachable"},
		{"empty label", func(s string) string { return strings.Replace(s, "label: Gamma", "label: ''", 1) }, "Label"},
		{"unknown field", func(s string) string { return s + "season: {0: 1}\n" }, "season"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRules([]byte(tt.mutate(fixtureRules)))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidRules), "got %v", err)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestLoadRulesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fixtureRules), 0o600))
	rules, err := LoadRules(path)
	require.NoError(t, err)
	assert.Len(t, rules.Levels, 3)
}

func TestReloadSwapsRules(t *testing.T) {
	scorer := fixtureScorer(t)
	rules, err := ParseRules([]byte(strings.Replace(fixtureRules, "label: Alpha", "label: Calm", 1)))
	require.NoError(t, err)
	require.NoError(t, scorer.Reload(rules))

	got, err := scorer.Score(Input{2, 0, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, "Calm", got.Label)

	bad := *rules
	bad.Levels = nil
	assert.Error(t, scorer.Reload(&bad))
	got, err = scorer.Score(Input{2, 0, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, "Calm", got.Label, "failed reload keeps previous rules")
}

func TestWidgetRecomputesOnEveryChange(t *testing.T) {
	scorer := fixtureScorer(t)
	var calls int
	var last Assessment
	w := NewWidget(scorer, func(a Assessment, err error) {
		require.NoError(t, err)
		calls++
		last = a
	})

	assert.Equal(t, 1, calls, "computed eagerly at setup")
	assert.Equal(t, DefaultInput(), last.Input)
	assert.Equal(t, "Predicted Accident Risk Level (Rule-Based): Alpha", w.Line())

	w.SetTime(0)
	w.SetWeather(2)
	w.SetRoad(2)
	w.SetTraffic(400)
	assert.Equal(t, 5, calls)
	assert.Equal(t, "Gamma", last.Label)

	w.Apply(Input{2, 0, 0, 0})
	assert.Equal(t, 6, calls)
	got, err := w.Result()
	require.NoError(t, err)
	assert.Equal(t, "Alpha", got.Label)
}

func TestWidgetShowsError(t *testing.T) {
	w := NewWidget(fixtureScorer(t), nil)
	w.SetTraffic(900)
	_, err := w.Result()
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Contains(t, w.Line(), "Risk unavailable")
}

func TestOptionLabel(t *testing.T) {
	assert.Equal(t, "Night (0)", OptionLabel(TimeOptions, 0))
	assert.Equal(t, "Icy (2)", OptionLabel(RoadOptions, 2))
	assert.Equal(t, "9", OptionLabel(WeatherOptions, 9))
}

func TestExampleRulesFileIsValid(t *testing.T) {
	rules, err := LoadRules(filepath.Join("..", "risk_rules.example.yaml"))
	require.NoError(t, err)
	scorer, err := NewRuleScorer(rules)
	require.NoError(t, err)

	for tm := 0; tm <= TimeMax; tm++ {
		for w := 0; w <= WeatherMax; w++ {
			for r := 0; r <= RoadMax; r++ {
				for tr := 0; tr <= TrafficMax; tr += TrafficStep {
					a, err := scorer.Score(Input{tm, w, r, tr})
					require.NoError(t, err)
					assert.NotEmpty(t, a.Label)
				}
			}
		}
	}
}
