package analytics

import (
	"errors"
	"math"
	"sort"

	"accidentlab/pipeline"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

var ErrNoData = errors.New("no data to summarize")

// Summary 描述性统计：样本标准差，分位数线性插值
type Summary struct {
	Name  string  `json:"name"`
	Count int     `json:"count"`
	Mean  float64 `json:"mean"`
	Std   float64 `json:"std"`
	Min   float64 `json:"min"`
	Q25   float64 `json:"q25"`
	Q50   float64 `json:"q50"`
	Q75   float64 `json:"q75"`
	Max   float64 `json:"max"`
}

// Describe 计算单列统计
func Describe(name string, values []float64) (Summary, error) {
	if len(values) == 0 {
		return Summary{}, ErrNoData
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	mean, std := stat.MeanStdDev(sorted, nil)
	return Summary{
		Name:  name,
		Count: len(sorted),
		Mean:  mean,
		Std:   std,
		Min:   floats.Min(sorted),
		Q25:   quantile(sorted, 0.25),
		Q50:   quantile(sorted, 0.50),
		Q75:   quantile(sorted, 0.75),
		Max:   floats.Max(sorted),
	}, nil
}

// DescribeDataset 对长表的数值列逐一计算统计
func DescribeDataset(ds *pipeline.Dataset) ([]Summary, error) {
	n := len(ds.Records)
	if n == 0 {
		return nil, ErrNoData
	}
	years := make([]float64, n)
	counts := make([]float64, n)
	months := make([]float64, n)
	codes := make([]float64, n)
	for i, r := range ds.Records {
		years[i] = float64(r.Year)
		counts[i] = float64(r.AccidentCount)
		months[i] = float64(r.MonthNum)
		codes[i] = float64(r.StateCode)
	}

	columns := []struct {
		name   string
		values []float64
	}{
		{"YEAR", years},
		{"Accident_Count", counts},
		{"Month_Num", months},
		{"State_Code", codes},
	}
	out := make([]Summary, 0, len(columns))
	for _, c := range columns {
		s, err := Describe(c.name, c.values)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// quantile 在位置 (n-1)*p 处线性插值，sorted 必须已排序
func quantile(sorted []float64, p float64) float64 {
	pos := float64(len(sorted)-1) * p
	lo := math.Floor(pos)
	hi := math.Ceil(pos)
	if lo == hi {
		return sorted[int(lo)]
	}
	frac := pos - lo
	return sorted[int(lo)]*(1-frac) + sorted[int(hi)]*frac
}
