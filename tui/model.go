// Package tui 终端界面：事故数预测表单与规则风险控件
package tui

import (
	"fmt"
	"strings"

	"accidentlab/pipeline"
	"accidentlab/predictor"
	"accidentlab/risk"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

type view int

const (
	predictView view = iota
	riskView
	historyView
	viewCount
)

var viewNames = []string{"Predictor", "Risk", "History"}

// 预测表单与风险控件各自的字段顺序
const (
	fieldYear = iota
	fieldMonth
	fieldState
	predictFields
)

const (
	fieldTime = iota
	fieldWeather
	fieldRoad
	fieldTraffic
	riskFields
)

// RulesReloadedMsg 评分表重载后由外部发送，控件据此重新计算
type RulesReloadedMsg struct{ Err error }

// Model bubbletea 模型；predictor 为空时预测页只显示提示
type Model struct {
	predictor *predictor.Predictor
	form      *predictor.Form
	widget    *risk.Widget

	current      view
	predictField int
	riskField    int

	output    string
	outputErr bool
	notice    string

	history table.Model
	help    help.Model
	keys    keyMap
	width   int
}

// New 创建界面模型；scorer 为空时风险控件显示不可用
func New(p *predictor.Predictor, scorer risk.Scorer) Model {
	if scorer == nil {
		scorer = &risk.RuleScorer{}
	}
	m := Model{
		predictor: p,
		widget:    risk.NewWidget(scorer, nil),
		help:      help.New(),
		keys:      keys,
		history:   newHistoryTable(),
	}
	if p != nil {
		m.form = predictor.NewForm(p)
	}
	return m
}

func newHistoryTable() table.Model {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "State", Width: 24},
			{Title: "Month", Width: 10},
			{Title: "Year", Width: 6},
			{Title: "Predicted", Width: 10},
		}),
		table.WithHeight(10),
	)
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("#FF8800")).
		BorderBottom(true).
		Bold(true)
	t.SetStyles(s)
	return t
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width

	case RulesReloadedMsg:
		if msg.Err != nil {
			m.notice = "rules reload failed: " + msg.Err.Error()
		} else {
			m.notice = "rules reloaded"
			m.widget.Refresh()
		}

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Tab):
			m.current = (m.current + 1) % viewCount
		case key.Matches(msg, m.keys.ShiftTab):
			m.current = (m.current + viewCount - 1) % viewCount
		case key.Matches(msg, m.keys.Up):
			m.moveField(-1)
		case key.Matches(msg, m.keys.Down):
			m.moveField(1)
		case key.Matches(msg, m.keys.Left):
			m.adjust(-1)
		case key.Matches(msg, m.keys.Right):
			m.adjust(1)
		case key.Matches(msg, m.keys.Enter):
			if m.current == predictView {
				m.submit()
			}
		}
	}

	if m.current == historyView {
		var cmd tea.Cmd
		m.history, cmd = m.history.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) moveField(delta int) {
	switch m.current {
	case predictView:
		m.predictField = wrap(m.predictField+delta, predictFields)
	case riskView:
		m.riskField = wrap(m.riskField+delta, riskFields)
	}
}

func wrap(v, n int) int {
	return ((v % n) + n) % n
}

func (m *Model) adjust(delta int) {
	switch m.current {
	case predictView:
		if m.form == nil {
			return
		}
		switch m.predictField {
		case fieldYear:
			step(delta, m.form.PrevYear, m.form.NextYear)
		case fieldMonth:
			step(delta, m.form.PrevMonth, m.form.NextMonth)
		case fieldState:
			step(delta, m.form.PrevState, m.form.NextState)
		}
	case riskView:
		in := m.widget.Input()
		switch m.riskField {
		case fieldTime:
			m.widget.SetTime(clamp(in.Time+delta, 0, risk.TimeMax))
		case fieldWeather:
			m.widget.SetWeather(clamp(in.Weather+delta, 0, risk.WeatherMax))
		case fieldRoad:
			m.widget.SetRoad(clamp(in.Road+delta, 0, risk.RoadMax))
		case fieldTraffic:
			m.widget.SetTraffic(clamp(in.Traffic+delta*risk.TrafficStep, 0, risk.TrafficMax))
		}
	}
}

func step(delta int, prev, next func()) {
	if delta < 0 {
		prev()
	} else {
		next()
	}
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}

func (m *Model) submit() {
	if m.form == nil {
		return
	}
	result, err := m.form.Submit(m.predictor)
	if err != nil {
		m.output = err.Error()
		m.outputErr = true
		return
	}
	m.output = result.String()
	m.outputErr = false

	rows := append([]table.Row{{
		result.State,
		result.MonthName,
		fmt.Sprintf("%d", result.Year),
		humanize.Comma(int64(result.Count)),
	}}, m.history.Rows()...)
	m.history.SetRows(rows)
}

func (m Model) View() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render("Road Accident Lab"))
	s.WriteString("\n\n")
	s.WriteString(m.renderTabs())
	s.WriteString("\n\n")

	switch m.current {
	case predictView:
		s.WriteString(contentStyle.Render(m.renderPredictor()))
	case riskView:
		s.WriteString(contentStyle.Render(m.renderRisk()))
	case historyView:
		s.WriteString(contentStyle.Render(m.history.View()))
	}

	if m.notice != "" {
		s.WriteString("\n\n")
		s.WriteString(contentStyle.Render(m.notice))
	}
	s.WriteString("\n")
	s.WriteString(helpStyle.Render(m.help.ShortHelpView(m.keys.ShortHelp())))
	return s.String()
}

func (m Model) renderTabs() string {
	rendered := make([]string, 0, len(viewNames))
	for i, name := range viewNames {
		if view(i) == m.current {
			rendered = append(rendered, activeTabStyle.Render(name))
		} else {
			rendered = append(rendered, inactiveTabStyle.Render(name))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
}

func (m Model) renderPredictor() string {
	if m.form == nil {
		return errorStyle.Render("No trained model loaded. Run `accidentlab train` first.")
	}
	month, _ := pipeline.MonthName(m.form.Month)
	rows := []string{
		field("Year:", fmt.Sprintf("%d", m.form.Year), m.predictField == fieldYear),
		field("Month:", month, m.predictField == fieldMonth),
		field("State/UT:", m.form.State(), m.predictField == fieldState),
	}
	out := strings.Join(rows, "\n")
	if m.output != "" {
		text := m.output
		if m.outputErr {
			text = errorStyle.Render(text)
		}
		out += "\n" + outputBoxStyle.Render(text)
	}
	return out
}

func (m Model) renderRisk() string {
	in := m.widget.Input()
	rows := []string{
		field("Time:", risk.OptionLabel(risk.TimeOptions, in.Time), m.riskField == fieldTime),
		field("Weather:", risk.OptionLabel(risk.WeatherOptions, in.Weather), m.riskField == fieldWeather),
		field("Road:", risk.OptionLabel(risk.RoadOptions, in.Road), m.riskField == fieldRoad),
		field("Traffic:", fmt.Sprintf("%d", in.Traffic), m.riskField == fieldTraffic),
	}
	line := m.widget.Line()
	if _, err := m.widget.Result(); err != nil {
		line = errorStyle.Render(line)
	}
	return strings.Join(rows, "\n") + "\n" + outputBoxStyle.Render(line)
}

func field(label, value string, focused bool) string {
	if focused {
		return focusedFieldStyle.Render(label) + "> " + value
	}
	return fieldStyle.Render(label) + "  " + value
}

// Run 启动全屏界面；reloads 非空时转发评分表重载事件
func Run(p *predictor.Predictor, scorer risk.Scorer, reloads <-chan error) error {
	program := tea.NewProgram(New(p, scorer), tea.WithAltScreen())
	if reloads != nil {
		go func() {
			for err := range reloads {
				program.Send(RulesReloadedMsg{Err: err})
			}
		}()
	}
	_, err := program.Run()
	return err
}
