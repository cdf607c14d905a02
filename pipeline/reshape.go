package pipeline

import (
	"errors"
	"fmt"
	"sort"
)

// Record 长表记录：一个州/年份/月份
type Record struct {
	State         string `json:"state"`
	Year          int    `json:"year"`
	Month         string `json:"month"`
	AccidentCount int    `json:"accident_count"`
	MonthNum      int    `json:"month_num"`
	StateCode     int    `json:"state_code"`
}

// Features 模型输入 (Year, Month_Num, State_Code)
func (r Record) Features() []float64 {
	return []float64{float64(r.Year), float64(r.MonthNum), float64(r.StateCode)}
}

// StateEncoder 州名到整数编码，按字典序分配
type StateEncoder struct {
	states []string
	codes  map[string]int
}

// NewStateEncoder 创建编码器，重复的州名会被去重
func NewStateEncoder(states []string) *StateEncoder {
	seen := make(map[string]struct{}, len(states))
	distinct := make([]string, 0, len(states))
	for _, s := range states {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		distinct = append(distinct, s)
	}
	sort.Strings(distinct)

	codes := make(map[string]int, len(distinct))
	for i, s := range distinct {
		codes[s] = i
	}
	return &StateEncoder{states: distinct, codes: codes}
}

// Code 返回州编码
func (e *StateEncoder) Code(state string) (int, bool) {
	code, ok := e.codes[state]
	return code, ok
}

// States 返回排序后的州名副本
func (e *StateEncoder) States() []string {
	return append([]string(nil), e.states...)
}

// MonthNum 返回月份序号 (1-12)
func MonthNum(month string) (int, bool) {
	for i, m := range Months {
		if m == month {
			return i + 1, true
		}
	}
	return 0, false
}

// MonthName 返回序号对应的月份名
func MonthName(num int) (string, error) {
	if num < 1 || num > len(Months) {
		return "", fmt.Errorf("month %d out of range [1, 12]", num)
	}
	return Months[num-1], nil
}

// Dataset 长表数据集
type Dataset struct {
	Records []Record
	Encoder *StateEncoder
}

// Melt 将宽表转换为长表，并按 (Year, Month_Num) 稳定排序
func Melt(rows []WideRow) (*Dataset, error) {
	if len(rows) == 0 {
		return nil, errors.New("no rows to reshape")
	}

	names := make([]string, len(rows))
	for i, row := range rows {
		names[i] = row.State
	}
	encoder := NewStateEncoder(names)

	records := make([]Record, 0, len(rows)*len(Months))
	for m, month := range Months {
		for _, row := range rows {
			code, _ := encoder.Code(row.State)
			records = append(records, Record{
				State:         row.State,
				Year:          row.Year,
				Month:         month,
				AccidentCount: row.Counts[m],
				MonthNum:      m + 1,
				StateCode:     code,
			})
		}
	}

	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Year != records[j].Year {
			return records[i].Year < records[j].Year
		}
		return records[i].MonthNum < records[j].MonthNum
	})

	return &Dataset{Records: records, Encoder: encoder}, nil
}

// StateCode 返回州编码
func (d *Dataset) StateCode(state string) (int, bool) {
	return d.Encoder.Code(state)
}

// States 排序后的州名
func (d *Dataset) States() []string {
	return d.Encoder.States()
}

// YearRange 观测到的最小/最大年份
func (d *Dataset) YearRange() (int, int) {
	if len(d.Records) == 0 {
		return 0, 0
	}
	min, max := d.Records[0].Year, d.Records[0].Year
	for _, r := range d.Records[1:] {
		if r.Year < min {
			min = r.Year
		}
		if r.Year > max {
			max = r.Year
		}
	}
	return min, max
}

// FeatureMatrix 返回特征矩阵与目标值
func (d *Dataset) FeatureMatrix() ([][]float64, []float64) {
	features := make([][]float64, len(d.Records))
	targets := make([]float64, len(d.Records))
	for i, r := range d.Records {
		features[i] = r.Features()
		targets[i] = float64(r.AccidentCount)
	}
	return features, targets
}

// Counts 所有记录的事故数
func (d *Dataset) Counts() []float64 {
	values := make([]float64, len(d.Records))
	for i, r := range d.Records {
		values[i] = float64(r.AccidentCount)
	}
	return values
}
