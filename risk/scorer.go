package risk

import (
	"fmt"
	"sync/atomic"
)

// Assessment 评估结果
type Assessment struct {
	Input Input   `json:"input"`
	Score float64 `json:"score"`
	Label string  `json:"label"`
}

// String 与交互界面一致的输出行
func (a Assessment) String() string {
	return fmt.Sprintf("Predicted Accident Risk Level (Rule-Based): %s", a.Label)
}

// Scorer 风险评分：(time, weather, road, traffic) -> 标签
type Scorer interface {
	Score(Input) (Assessment, error)
	// Ready 是否已加载评分表
	Ready() bool
}

// RuleScorer 按评分表计算风险，评分表可在运行时原子替换
type RuleScorer struct {
	rules atomic.Pointer[Rules]
}

func NewRuleScorer(rules *Rules) (*RuleScorer, error) {
	s := &RuleScorer{}
	if err := s.Reload(rules); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload 校验并替换评分表
func (s *RuleScorer) Reload(rules *Rules) error {
	if rules == nil {
		return ErrRulesNotConfigured
	}
	if err := rules.Validate(); err != nil {
		return err
	}
	s.rules.Store(rules)
	return nil
}

func (s *RuleScorer) Ready() bool {
	return s != nil && s.rules.Load() != nil
}

// Score 权重求和后取不超过该分数的最高等级
func (s *RuleScorer) Score(in Input) (Assessment, error) {
	rules := s.rules.Load()
	if rules == nil {
		return Assessment{}, ErrRulesNotConfigured
	}
	if err := in.Validate(); err != nil {
		return Assessment{}, err
	}
	score := rules.Time[in.Time] +
		rules.Weather[in.Weather] +
		rules.Road[in.Road] +
		rules.trafficWeight(in.Traffic)
	return Assessment{Input: in, Score: score, Label: rules.label(score)}, nil
}
