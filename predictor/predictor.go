package predictor

import (
	"errors"
	"fmt"
	"sort"

	"accidentlab/ml"
	"accidentlab/pipeline"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultCacheSize = 1024

var (
	ErrUnknownState = errors.New("unknown state")
	ErrYearRange    = errors.New("year outside observed range")
	ErrMonthRange   = errors.New("month must be between 1 and 12")
)

// Query 预测输入
type Query struct {
	Year  int    `json:"year"`
	Month int    `json:"month"`
	State string `json:"state"`
}

// Prediction 预测结果
type Prediction struct {
	Query
	MonthName string  `json:"month_name"`
	Raw       float64 `json:"raw"`
	Count     int     `json:"count"`
}

// String 与交互界面一致的输出行
func (p Prediction) String() string {
	return fmt.Sprintf("Predicted number of accidents in %s in %s, %d: %d", p.State, p.MonthName, p.Year, p.Count)
}

// Predictor 绑定已训练模型与训练时的州编码
type Predictor struct {
	model   ml.Regressor
	states  []string
	codes   map[string]int
	yearMin int
	yearMax int
	cache   *lru.Cache[Query, Prediction]
}

// New 创建预测器；states 的下标即 State_Code
func New(model ml.Regressor, states []string, yearMin, yearMax, cacheSize int) (*Predictor, error) {
	if model == nil {
		return nil, ml.ErrNotTrained
	}
	if len(states) == 0 {
		return nil, errors.New("no states to predict for")
	}
	if yearMin > yearMax {
		return nil, fmt.Errorf("invalid year range [%d, %d]", yearMin, yearMax)
	}
	if !sort.StringsAreSorted(states) {
		return nil, errors.New("states must be sorted to match training codes")
	}
	if cacheSize <= 0 {
		cacheSize = defaultCacheSize
	}
	cache, err := lru.New[Query, Prediction](cacheSize)
	if err != nil {
		return nil, err
	}

	codes := make(map[string]int, len(states))
	for i, s := range states {
		codes[s] = i
	}
	return &Predictor{
		model:   model,
		states:  append([]string(nil), states...),
		codes:   codes,
		yearMin: yearMin,
		yearMax: yearMax,
		cache:   cache,
	}, nil
}

// FromBundle 从持久化模型创建预测器
func FromBundle(b *ml.Bundle, cacheSize int) (*Predictor, error) {
	model, err := b.Model()
	if err != nil {
		return nil, err
	}
	return New(model, b.States, b.YearMin, b.YearMax, cacheSize)
}

// Predict 查找州编码、调用模型并截断结果
func (p *Predictor) Predict(q Query) (Prediction, error) {
	if cached, ok := p.cache.Get(q); ok {
		return cached, nil
	}

	monthName, err := pipeline.MonthName(q.Month)
	if err != nil {
		return Prediction{}, fmt.Errorf("%w: got %d", ErrMonthRange, q.Month)
	}
	if q.Year < p.yearMin || q.Year > p.yearMax {
		return Prediction{}, fmt.Errorf("%w: %d not in [%d, %d]", ErrYearRange, q.Year, p.yearMin, p.yearMax)
	}
	code, ok := p.codes[q.State]
	if !ok {
		return Prediction{}, fmt.Errorf("%w: %q", ErrUnknownState, q.State)
	}

	raw, err := p.model.Predict(ml.FeatureVector(q.Year, q.Month, code))
	if err != nil {
		return Prediction{}, err
	}

	result := Prediction{Query: q, MonthName: monthName, Raw: raw, Count: Clamp(raw)}
	p.cache.Add(q, result)
	return result, nil
}

// States 可选州名（已排序）
func (p *Predictor) States() []string {
	return append([]string(nil), p.states...)
}

// YearRange 训练数据的年份范围
func (p *Predictor) YearRange() (int, int) {
	return p.yearMin, p.yearMax
}

func (p *Predictor) ModelName() string {
	return p.model.Name()
}
