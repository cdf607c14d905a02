package analytics

import (
	"fmt"
	"io"
	"math"

	"accidentlab/pipeline"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
)

// WriteSummary 打印描述性统计与汇总表，大数带千分位
func WriteSummary(w io.Writer, ds *pipeline.Dataset) error {
	summaries, err := DescribeDataset(ds)
	if err != nil {
		return err
	}

	fmt.Fprintln(w, "\nSummary Statistics:")
	header := []string{""}
	for _, s := range summaries {
		header = append(header, s.Name)
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(header...)

	rows := []struct {
		label string
		get   func(Summary) float64
	}{
		{"count", func(s Summary) float64 { return float64(s.Count) }},
		{"mean", func(s Summary) float64 { return s.Mean }},
		{"std", func(s Summary) float64 { return s.Std }},
		{"min", func(s Summary) float64 { return s.Min }},
		{"25%", func(s Summary) float64 { return s.Q25 }},
		{"50%", func(s Summary) float64 { return s.Q50 }},
		{"75%", func(s Summary) float64 { return s.Q75 }},
		{"max", func(s Summary) float64 { return s.Max }},
	}
	for _, row := range rows {
		cells := []string{row.label}
		for _, s := range summaries {
			cells = append(cells, formatStat(row.get(s)))
		}
		t.Row(cells...)
	}
	fmt.Fprintln(w, t.Render())

	top := TopStates(ds, topN)
	fmt.Fprintln(w, "\nTop 5 States by Total Accidents:")
	for i, st := range top {
		fmt.Fprintf(w, "  %d. %s: %s\n", i+1, st.State, humanize.Comma(int64(st.Total)))
	}

	fmt.Fprintln(w, "\nYearly Totals:")
	for _, y := range YearlyTotals(ds) {
		fmt.Fprintf(w, "  %d: %s\n", y.Year, humanize.Comma(int64(y.Total)))
	}
	return nil
}

func formatStat(v float64) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	return humanize.CommafWithDigits(v, 6)
}
