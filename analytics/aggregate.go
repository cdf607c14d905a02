package analytics

import (
	"sort"

	"accidentlab/pipeline"
)

// StateTotal 州累计事故数
type StateTotal struct {
	State string `json:"state"`
	Total int    `json:"total"`
}

// YearTotal 年度累计事故数
type YearTotal struct {
	Year  int `json:"year"`
	Total int `json:"total"`
}

func totalsByState(ds *pipeline.Dataset) []StateTotal {
	sums := make(map[string]int)
	for _, r := range ds.Records {
		sums[r.State] += r.AccidentCount
	}
	out := make([]StateTotal, 0, len(sums))
	for _, state := range ds.States() {
		out = append(out, StateTotal{State: state, Total: sums[state]})
	}
	return out
}

// StateTotals 按累计数升序，相同累计数按州名
func StateTotals(ds *pipeline.Dataset) []StateTotal {
	out := totalsByState(ds)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Total < out[j].Total })
	return out
}

// TopStates 累计数最大的 n 个州，降序
func TopStates(ds *pipeline.Dataset, n int) []StateTotal {
	out := totalsByState(ds)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Total > out[j].Total })
	if n < len(out) {
		out = out[:n]
	}
	return out
}

// StateNames 提取州名
func StateNames(totals []StateTotal) []string {
	names := make([]string, len(totals))
	for i, t := range totals {
		names[i] = t.State
	}
	return names
}

// YearlyTotals 全国年度合计
func YearlyTotals(ds *pipeline.Dataset) []YearTotal {
	sums := make(map[int]int)
	for _, r := range ds.Records {
		sums[r.Year] += r.AccidentCount
	}
	return sortedYears(sums)
}

// YearlyByState 指定州的年度合计
func YearlyByState(ds *pipeline.Dataset, states []string) map[string][]YearTotal {
	wanted := make(map[string]map[int]int, len(states))
	for _, s := range states {
		wanted[s] = make(map[int]int)
	}
	for _, r := range ds.Records {
		if sums, ok := wanted[r.State]; ok {
			sums[r.Year] += r.AccidentCount
		}
	}
	out := make(map[string][]YearTotal, len(states))
	for state, sums := range wanted {
		out[state] = sortedYears(sums)
	}
	return out
}

func sortedYears(sums map[int]int) []YearTotal {
	out := make([]YearTotal, 0, len(sums))
	for year, total := range sums {
		out = append(out, YearTotal{Year: year, Total: total})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out
}

// MonthlyMeanByState 指定州各月份跨年均值
func MonthlyMeanByState(ds *pipeline.Dataset, states []string) map[string][12]float64 {
	type acc struct {
		sum [12]float64
		n   [12]int
	}
	wanted := make(map[string]*acc, len(states))
	for _, s := range states {
		wanted[s] = &acc{}
	}
	for _, r := range ds.Records {
		if a, ok := wanted[r.State]; ok {
			a.sum[r.MonthNum-1] += float64(r.AccidentCount)
			a.n[r.MonthNum-1]++
		}
	}
	out := make(map[string][12]float64, len(states))
	for state, a := range wanted {
		var means [12]float64
		for m := range means {
			if a.n[m] > 0 {
				means[m] = a.sum[m] / float64(a.n[m])
			}
		}
		out[state] = means
	}
	return out
}

// PivotTable 州 x 月份均值表
type PivotTable struct {
	States []string      `json:"states"`
	Means  [][12]float64 `json:"means"`
}

// Pivot 对全部州计算各月均值，行按州名排序
func Pivot(ds *pipeline.Dataset) *PivotTable {
	states := ds.States()
	means := MonthlyMeanByState(ds, states)
	table := &PivotTable{States: states, Means: make([][12]float64, len(states))}
	for i, s := range states {
		table.Means[i] = means[s]
	}
	return table
}

// MonthSpread 每个月份的全部观测值
func MonthSpread(ds *pipeline.Dataset) [12][]float64 {
	var out [12][]float64
	for _, r := range ds.Records {
		out[r.MonthNum-1] = append(out[r.MonthNum-1], float64(r.AccidentCount))
	}
	return out
}
