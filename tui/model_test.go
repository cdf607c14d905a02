package tui

import (
	"strings"
	"testing"

	"accidentlab/predictor"
	"accidentlab/risk"

	tea "github.com/charmbracelet/bubbletea"
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

type constModel struct{ value float64 }

func (m constModel) Fit([][]float64, []float64) error   { return nil }
func (m constModel) Predict([]float64) (float64, error) { return m.value, nil }
func (m constModel) Name() string                       { return "const" }

func newModel(t *testing.T) (Model, *risk.RuleScorer) {
	t.Helper()
	p, err := predictor.New(constModel{value: 1234.9}, []string{"Assam", "Goa"}, 2010, 2014, 0)
	require.NoError(t, err)
	rules, err := risk.ParseRules([]byte(testRules))
	require.NoError(t, err)
	scorer, err := risk.NewRuleScorer(rules)
	require.NoError(t, err)
	return New(p, scorer), scorer
}

func press(m Model, keys ...tea.KeyMsg) Model {
	for _, k := range keys {
		next, _ := m.Update(k)
		m = next.(Model)
	}
	return m
}

var (
	keyTab   = tea.KeyMsg{Type: tea.KeyTab}
	keyEnter = tea.KeyMsg{Type: tea.KeyEnter}
	keyDown  = tea.KeyMsg{Type: tea.KeyDown}
	keyLeft  = tea.KeyMsg{Type: tea.KeyLeft}
	keyRight = tea.KeyMsg{Type: tea.KeyRight}
)

func TestPredictorDefaultsAndSubmit(t *testing.T) {
	m, _ := newModel(t)
	assert.Equal(t, 2014, m.form.Year)
	assert.Equal(t, 1, m.form.Month)
	assert.Equal(t, "Assam", m.form.State())

	// 年份已是最大值，右移不变；下移到州再右移
	m = press(m, keyRight, keyDown, keyDown, keyRight, keyEnter)
	assert.Equal(t, 2014, m.form.Year)
	assert.Equal(t, "Goa", m.form.State())
	assert.Equal(t, "Predicted number of accidents in Goa in JANUARY, 2014: 1234", m.output)
	assert.False(t, m.outputErr)
	require.Len(t, m.history.Rows(), 1)
	assert.Equal(t, "1,234", m.history.Rows()[0][3])
	assert.Contains(t, m.View(), "Predicted number of accidents in Goa")
}

func TestPredictorWithoutModel(t *testing.T) {
	m := New(nil, nil)
	m = press(m, keyRight, keyEnter)
	assert.Empty(t, m.output)
	assert.Contains(t, m.View(), "No trained model loaded")

	m = press(m, keyTab)
	assert.Contains(t, m.View(), "Risk unavailable")
}

func TestRiskWidgetUpdatesOnEveryChange(t *testing.T) {
	m, _ := newModel(t)
	m = press(m, keyTab)
	assert.Contains(t, m.View(), "Predicted Accident Risk Level (Rule-Based): Quiet")

	// Morning -> Night 加 2 分
	m = press(m, keyLeft)
	assert.Equal(t, 0, m.widget.Input().Time)
	assert.Contains(t, m.View(), "Busy")

	// 流量按 10 调整
	m = press(m, keyRight, keyDown, keyDown, keyDown, keyRight)
	assert.Equal(t, 1, m.widget.Input().Time)
	assert.Equal(t, 160, m.widget.Input().Traffic)
	a, err := m.widget.Result()
	require.NoError(t, err)
	assert.Equal(t, "Quiet", a.Label)
}

func TestRiskInputsStayInRange(t *testing.T) {
	m, _ := newModel(t)
	m = press(m, keyTab, keyDown, keyDown)
	for i := 0; i < 5; i++ {
		m = press(m, keyRight)
	}
	assert.Equal(t, risk.RoadMax, m.widget.Input().Road)
	for i := 0; i < 5; i++ {
		m = press(m, keyLeft)
	}
	assert.Equal(t, 0, m.widget.Input().Road)
}

func TestRulesReloadedRefreshesWidget(t *testing.T) {
	m, scorer := newModel(t)
	m = press(m, keyTab)

	calm := strings.ReplaceAll(testRules, "Quiet", "Calm")
	rules, err := risk.ParseRules([]byte(calm))
	require.NoError(t, err)
	require.NoError(t, scorer.Reload(rules))

	next, _ := m.Update(RulesReloadedMsg{})
	m = next.(Model)
	assert.Contains(t, m.View(), "Calm")
	assert.Contains(t, m.View(), "rules reloaded")
}

func TestQuit(t *testing.T) {
	m, _ := newModel(t)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}
