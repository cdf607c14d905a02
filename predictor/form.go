package predictor

// Form 预测表单状态：年份默认取最大值，月份为 1，州为第一个
type Form struct {
	Year     int
	Month    int
	StateIdx int

	yearMin int
	yearMax int
	states  []string
}

func NewForm(p *Predictor) *Form {
	min, max := p.YearRange()
	return &Form{
		Year:    max,
		Month:   1,
		yearMin: min,
		yearMax: max,
		states:  p.States(),
	}
}

func (f *Form) NextYear()  { f.Year = clampInt(f.Year+1, f.yearMin, f.yearMax) }
func (f *Form) PrevYear()  { f.Year = clampInt(f.Year-1, f.yearMin, f.yearMax) }
func (f *Form) NextMonth() { f.Month = clampInt(f.Month+1, 1, 12) }
func (f *Form) PrevMonth() { f.Month = clampInt(f.Month-1, 1, 12) }

func (f *Form) NextState() { f.StateIdx = clampInt(f.StateIdx+1, 0, len(f.states)-1) }
func (f *Form) PrevState() { f.StateIdx = clampInt(f.StateIdx-1, 0, len(f.states)-1) }

func (f *Form) State() string {
	return f.states[f.StateIdx]
}

func (f *Form) Query() Query {
	return Query{Year: f.Year, Month: f.Month, State: f.State()}
}

// Submit 对应“预测”按钮
func (f *Form) Submit(p *Predictor) (Prediction, error) {
	return p.Predict(f.Query())
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
