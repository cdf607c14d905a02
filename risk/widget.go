package risk

// Widget 四个输入控件加一个输出区，任一输入变化都会同步重新计算
type Widget struct {
	scorer   Scorer
	input    Input
	current  Assessment
	err      error
	onChange func(Assessment, error)
}

// NewWidget 以默认输入创建控件并立即计算一次
func NewWidget(scorer Scorer, onChange func(Assessment, error)) *Widget {
	w := &Widget{scorer: scorer, input: DefaultInput(), onChange: onChange}
	w.recompute()
	return w
}

func (w *Widget) Input() Input { return w.input }

func (w *Widget) Result() (Assessment, error) { return w.current, w.err }

func (w *Widget) SetTime(v int)    { w.input.Time = v; w.recompute() }
func (w *Widget) SetWeather(v int) { w.input.Weather = v; w.recompute() }
func (w *Widget) SetRoad(v int)    { w.input.Road = v; w.recompute() }
func (w *Widget) SetTraffic(v int) { w.input.Traffic = v; w.recompute() }

// Apply 一次替换全部输入，只计算一次
func (w *Widget) Apply(in Input) {
	w.input = in
	w.recompute()
}

// Refresh 评分表重载后重新计算
func (w *Widget) Refresh() { w.recompute() }

// Line 输出区文本
func (w *Widget) Line() string {
	if w.err != nil {
		return "Risk unavailable: " + w.err.Error()
	}
	return w.current.String()
}

func (w *Widget) recompute() {
	w.current, w.err = w.scorer.Score(w.input)
	if w.onChange != nil {
		w.onChange(w.current, w.err)
	}
}
