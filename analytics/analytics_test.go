package analytics

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"accidentlab/pipeline"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCSV = `STATE/UT,YEAR,JANUARY,FEBRUARY,MARCH,APRIL,MAY,JUNE,JULY,AUGUST,SEPTEMBER,OCTOBER,NOVEMBER,DECEMBER
Kerala,2014,10,11,12,13,14,15,16,17,18,19,20,21
Assam,2014,1,2,3,4,5,6,7,8,9,10,11,12
Goa,2014,100,0,0,0,0,0,0,0,0,0,0,2000
Kerala,2015,20,21,22,23,24,25,26,27,28,29,30,31
Assam,2015,2,3,4,5,6,7,8,9,10,11,12,13
Goa,2015,0,0,0,0,0,0,0,0,0,0,0,0
`

func sampleDataset(t *testing.T) *pipeline.Dataset {
	t.Helper()
	rows, err := pipeline.ReadWide(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	ds, err := pipeline.Melt(rows)
	require.NoError(t, err)
	return ds
}

func TestDescribe(t *testing.T) {
	s, err := Describe("x", []float64{4, 1, 3, 2})
	require.NoError(t, err)
	assert.Equal(t, 4, s.Count)
	assert.InDelta(t, 2.5, s.Mean, 1e-12)
	assert.InDelta(t, math.Sqrt(5.0/3.0), s.Std, 1e-12)
	assert.Equal(t, 1.0, s.Min)
	assert.InDelta(t, 1.75, s.Q25, 1e-12)
	assert.InDelta(t, 2.5, s.Q50, 1e-12)
	assert.InDelta(t, 3.25, s.Q75, 1e-12)
	assert.Equal(t, 4.0, s.Max)

	_, err = Describe("empty", nil)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestDescribeDataset(t *testing.T) {
	summaries, err := DescribeDataset(sampleDataset(t))
	require.NoError(t, err)
	require.Len(t, summaries, 4)
	assert.Equal(t, "YEAR", summaries[0].Name)
	assert.Equal(t, 72, summaries[1].Count)
	assert.Equal(t, 1.0, summaries[2].Min)
	assert.Equal(t, 12.0, summaries[2].Max)
	assert.Equal(t, 2.0, summaries[3].Max)
}

func TestStateAggregates(t *testing.T) {
	ds := sampleDataset(t)

	top := TopStates(ds, 2)
	require.Len(t, top, 2)
	assert.Equal(t, StateTotal{State: "Goa", Total: 2100}, top[0])
	assert.Equal(t, "Kerala", top[1].State)
	assert.Equal(t, 186+306, top[1].Total)

	totals := StateTotals(ds)
	assert.Equal(t, []string{"Assam", "Kerala", "Goa"}, StateNames(totals))
	assert.Len(t, TopStates(ds, 10), 3)
}

func TestYearlyAggregates(t *testing.T) {
	ds := sampleDataset(t)

	yearly := YearlyTotals(ds)
	require.Len(t, yearly, 2)
	assert.Equal(t, YearTotal{Year: 2014, Total: 186 + 78 + 2100}, yearly[0])
	assert.Equal(t, YearTotal{Year: 2015, Total: 306 + 90}, yearly[1])

	byState := YearlyByState(ds, []string{"Assam"})
	assert.Equal(t, []YearTotal{{2014, 78}, {2015, 90}}, byState["Assam"])
	assert.NotContains(t, byState, "Goa")
}

func TestMonthlyAggregates(t *testing.T) {
	ds := sampleDataset(t)

	means := MonthlyMeanByState(ds, []string{"Kerala"})
	assert.Equal(t, 15.0, means["Kerala"][0])
	assert.Equal(t, 26.0, means["Kerala"][11])

	pivot := Pivot(ds)
	assert.Equal(t, []string{"Assam", "Goa", "Kerala"}, pivot.States)
	assert.Equal(t, 1000.0, pivot.Means[1][11])

	spread := MonthSpread(ds)
	for m, values := range spread {
		assert.Len(t, values, 6, "month %d", m+1)
	}
}

func TestWriteSummary(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSummary(&buf, sampleDataset(t)))
	out := buf.String()
	assert.Contains(t, out, "Summary Statistics:")
	assert.Contains(t, out, "Accident_Count")
	assert.Contains(t, out, "1. Goa: 2,100")
	assert.Contains(t, out, "2014: 2,364")
}

func TestRenderCharts(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "charts")
	files, err := RenderCharts(sampleDataset(t), dir, []float64{0.2, 0.3, 0.5})
	require.NoError(t, err)
	require.Len(t, files, 9)
	for _, f := range files {
		info, err := os.Stat(f)
		require.NoError(t, err)
		assert.Greater(t, info.Size(), int64(0), f)
	}
}

func TestFeatureImportanceRejectsWrongLength(t *testing.T) {
	_, err := FeatureImportance([]float64{1})
	assert.Error(t, err)
}
