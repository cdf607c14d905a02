package analytics

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strings"

	"accidentlab/ml"
	"accidentlab/pipeline"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

const (
	topN          = 5
	histogramBins = 30
)

var teal = color.RGBA{R: 0, G: 128, B: 128, A: 255}

// chart 单张图表
type chart struct {
	file   string
	width  vg.Length
	height vg.Length
	build  func() (*plot.Plot, error)
}

// RenderCharts 将所有图表写入 dir，返回生成的文件路径；importances 为空时跳过特征重要性图
func RenderCharts(ds *pipeline.Dataset, dir string, importances []float64) ([]string, error) {
	if len(ds.Records) == 0 {
		return nil, ErrNoData
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create chart dir: %w", err)
	}

	top := StateNames(TopStates(ds, topN))
	charts := []chart{
		{"monthly_trends_top5.png", 16 * vg.Inch, 8 * vg.Inch, func() (*plot.Plot, error) { return monthlyTrends(ds, top) }},
		{"yearly_trends_top5.png", 12 * vg.Inch, 6 * vg.Inch, func() (*plot.Plot, error) { return yearlyTrends(ds, top) }},
		{"count_distribution.png", 8 * vg.Inch, 6 * vg.Inch, func() (*plot.Plot, error) { return distribution(ds) }},
		{"count_boxplot.png", 10 * vg.Inch, 6 * vg.Inch, func() (*plot.Plot, error) { return countBoxPlot(ds) }},
		{"state_month_heatmap.png", 12 * vg.Inch, 12 * vg.Inch, func() (*plot.Plot, error) { return heatmap(ds) }},
		{"state_totals.png", 10 * vg.Inch, 12 * vg.Inch, func() (*plot.Plot, error) { return stateTotals(ds) }},
		{"yearly_totals.png", 10 * vg.Inch, 5 * vg.Inch, func() (*plot.Plot, error) { return yearlyTotals(ds) }},
		{"monthwise_boxplot.png", 10 * vg.Inch, 5 * vg.Inch, func() (*plot.Plot, error) { return monthwiseBoxPlot(ds) }},
	}
	if len(importances) > 0 {
		charts = append(charts, chart{"feature_importance.png", 6 * vg.Inch, 4 * vg.Inch,
			func() (*plot.Plot, error) { return FeatureImportance(importances) }})
	}

	files := make([]string, 0, len(charts))
	for _, c := range charts {
		p, err := c.build()
		if err != nil {
			return files, fmt.Errorf("build %s: %w", c.file, err)
		}
		path := filepath.Join(dir, c.file)
		if err := p.Save(c.width, c.height, path); err != nil {
			return files, fmt.Errorf("save %s: %w", c.file, err)
		}
		files = append(files, path)
	}
	return files, nil
}

func monthlyTrends(ds *pipeline.Dataset, states []string) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Monthly Accident Trends for Top 5 States"
	p.X.Label.Text = "Month"
	p.Y.Label.Text = "Accident_Count"

	means := MonthlyMeanByState(ds, states)
	lines := make([]interface{}, 0, 2*len(states))
	for _, state := range states {
		series := means[state]
		xys := make(plotter.XYs, len(series))
		for m, v := range series {
			xys[m].X = float64(m)
			xys[m].Y = v
		}
		lines = append(lines, state, xys)
	}
	if err := plotutil.AddLinePoints(p, lines...); err != nil {
		return nil, err
	}
	p.NominalX(pipeline.Months...)
	return p, nil
}

func yearlyTrends(ds *pipeline.Dataset, states []string) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Yearly Accident Trends for " + strings.Join(states, ", ")
	p.X.Label.Text = "Year"
	p.Y.Label.Text = "Total Accidents"
	p.Legend.Top = true
	p.Add(plotter.NewGrid())

	byState := YearlyByState(ds, states)
	lines := make([]interface{}, 0, 2*len(states))
	for _, state := range states {
		lines = append(lines, state, yearXYs(byState[state]))
	}
	if err := plotutil.AddLinePoints(p, lines...); err != nil {
		return nil, err
	}
	return p, nil
}

func distribution(ds *pipeline.Dataset) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Distribution of Monthly Accident Counts"
	p.X.Label.Text = "Accident Count"
	p.Y.Label.Text = "Frequency"

	hist, err := plotter.NewHist(plotter.Values(ds.Counts()), histogramBins)
	if err != nil {
		return nil, err
	}
	hist.FillColor = teal
	p.Add(hist)
	return p, nil
}

func countBoxPlot(ds *pipeline.Dataset) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Boxplot of Monthly Accident Counts (Outlier Detection)"
	p.Y.Label.Text = "Accident Count"

	box, err := plotter.NewBoxPlot(vg.Points(60), 0, plotter.Values(ds.Counts()))
	if err != nil {
		return nil, err
	}
	p.Add(box)
	p.HideX()
	return p, nil
}

// pivotGrid 将 PivotTable 适配为 plotter.GridXYZ，列为月份，行为州
type pivotGrid struct {
	table *PivotTable
}

func (g pivotGrid) Dims() (c, r int)   { return 12, len(g.table.States) }
func (g pivotGrid) Z(c, r int) float64 { return g.table.Means[r][c] }
func (g pivotGrid) X(c int) float64    { return float64(c) }
func (g pivotGrid) Y(r int) float64    { return float64(r) }

func heatmap(ds *pipeline.Dataset) (*plot.Plot, error) {
	table := Pivot(ds)
	p := plot.New()
	p.Title.Text = "State-wise Monthly Road Accident Heatmap"
	p.X.Label.Text = "Month"
	p.Y.Label.Text = "State/UT"

	hm := plotter.NewHeatMap(pivotGrid{table: table}, palette.Heat(12, 1))
	if hm.Max == hm.Min {
		hm.Max = hm.Min + 1
	}
	p.Add(hm)
	p.NominalX(pipeline.Months...)
	p.NominalY(table.States...)
	return p, nil
}

func stateTotals(ds *pipeline.Dataset) (*plot.Plot, error) {
	totals := StateTotals(ds)
	values := make(plotter.Values, len(totals))
	for i, t := range totals {
		values[i] = float64(t.Total)
	}

	p := plot.New()
	p.Title.Text = "Total Accidents by State/UT"
	p.X.Label.Text = "Total Accidents"

	bars, err := plotter.NewBarChart(values, vg.Points(10))
	if err != nil {
		return nil, err
	}
	bars.Horizontal = true
	bars.Color = teal
	bars.LineStyle.Width = 0
	p.Add(bars)
	p.NominalY(StateNames(totals)...)
	return p, nil
}

func yearlyTotals(ds *pipeline.Dataset) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Yearly Road Accidents in India"
	p.X.Label.Text = "Year"
	p.Y.Label.Text = "Total Accidents"
	p.Add(plotter.NewGrid())

	if err := plotutil.AddLinePoints(p, yearXYs(YearlyTotals(ds))); err != nil {
		return nil, err
	}
	return p, nil
}

func monthwiseBoxPlot(ds *pipeline.Dataset) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Month-wise Distribution of Accident Counts"
	p.X.Label.Text = "Month"
	p.Y.Label.Text = "Accident_Count"

	for m, values := range MonthSpread(ds) {
		if len(values) == 0 {
			continue
		}
		box, err := plotter.NewBoxPlot(vg.Points(20), float64(m), plotter.Values(values))
		if err != nil {
			return nil, err
		}
		box.FillColor = plotutil.Color(m)
		p.Add(box)
	}
	p.NominalX(pipeline.Months...)
	return p, nil
}

// FeatureImportance 特征重要性条形图
func FeatureImportance(importances []float64) (*plot.Plot, error) {
	names := ml.FeatureNames()
	if len(importances) != len(names) {
		return nil, fmt.Errorf("expected %d importances, got %d", len(names), len(importances))
	}
	p := plot.New()
	p.Title.Text = "Feature Importance (Tuned Random Forest)"

	bars, err := plotter.NewBarChart(plotter.Values(importances), vg.Points(20))
	if err != nil {
		return nil, err
	}
	bars.Horizontal = true
	bars.Color = plotutil.Color(0)
	p.Add(bars)
	p.NominalY(names...)
	return p, nil
}

func yearXYs(totals []YearTotal) plotter.XYs {
	xys := make(plotter.XYs, len(totals))
	for i, t := range totals {
		xys[i].X = float64(t.Year)
		xys[i].Y = float64(t.Total)
	}
	return xys
}
