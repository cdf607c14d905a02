package risk

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

var (
	ErrRulesNotConfigured = errors.New("risk rules not configured")
	ErrInvalidRules       = errors.New("invalid risk rules")
	ErrInvalidInput       = errors.New("invalid risk input")
)

// Rules 外部提供的评分表：各输入的权重、流量分段与等级阈值
type Rules struct {
	Time    map[int]float64 `yaml:"time" json:"time" validate:"required"`
	Weather map[int]float64 `yaml:"weather" json:"weather" validate:"required"`
	Road    map[int]float64 `yaml:"road" json:"road" validate:"required"`
	Traffic []TrafficBand   `yaml:"traffic" json:"traffic" validate:"required,min=1,dive"`
	Levels  []Level         `yaml:"levels" json:"levels" validate:"required,min=1,dive"`
}

// TrafficBand 流量 >= Min 时使用该权重，取最后一个满足的分段
type TrafficBand struct {
	Min    int     `yaml:"min" json:"min" validate:"min=0,max=500"`
	Weight float64 `yaml:"weight" json:"weight"`
}

// Level 分数 >= MinScore 时取该标签，取最后一个满足的等级
type Level struct {
	MinScore float64 `yaml:"min_score" json:"min_score"`
	Label    string  `yaml:"label" json:"label" validate:"required"`
}

// LoadRules 从 YAML 文件读取评分表
func LoadRules(path string) (*Rules, error) {
	if path == "" {
		return nil, ErrRulesNotConfigured
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read risk rules: %w", err)
	}
	return ParseRules(data)
}

// ParseRules 解析并校验评分表
func ParseRules(data []byte) (*Rules, error) {
	var rules Rules
	if err := yaml.UnmarshalStrict(data, &rules); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRules, err)
	}
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	return &rules, nil
}

// Validate 检查评分表覆盖全部输入且每个输入都能落到某个等级
func (r *Rules) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRules, err)
	}
	for _, c := range []struct {
		name    string
		weights map[int]float64
		max     int
	}{
		{"time", r.Time, TimeMax},
		{"weather", r.Weather, WeatherMax},
		{"road", r.Road, RoadMax},
	} {
		for code := 0; code <= c.max; code++ {
			if _, ok := c.weights[code]; !ok {
				return fmt.Errorf("%w: %s code %d has no weight", ErrInvalidRules, c.name, code)
			}
		}
		for code := range c.weights {
			if code < 0 || code > c.max {
				return fmt.Errorf("%w: %s code %d out of range [0, %d]", ErrInvalidRules, c.name, code, c.max)
			}
		}
	}

	if r.Traffic[0].Min != 0 {
		return fmt.Errorf("%w: first traffic band must start at 0", ErrInvalidRules)
	}
	for i := 1; i < len(r.Traffic); i++ {
		if r.Traffic[i].Min <= r.Traffic[i-1].Min {
			return fmt.Errorf("%w: traffic bands must be strictly ascending", ErrInvalidRules)
		}
	}
	for i := 1; i < len(r.Levels); i++ {
		if r.Levels[i].MinScore <= r.Levels[i-1].MinScore {
			return fmt.Errorf("%w: levels must be strictly ascending", ErrInvalidRules)
		}
	}

	lowest := minWeight(r.Time) + minWeight(r.Weather) + minWeight(r.Road)
	lowestTraffic := r.Traffic[0].Weight
	for _, b := range r.Traffic[1:] {
		lowestTraffic = min(lowestTraffic, b.Weight)
	}
	if lowest+lowestTraffic < r.Levels[0].MinScore {
		return fmt.Errorf("%w: lowest reachable score %.2f is below the first level %.2f",
			ErrInvalidRules, lowest+lowestTraffic, r.Levels[0].MinScore)
	}
	return nil
}

func (r *Rules) trafficWeight(volume int) float64 {
	weight := 0.0
	for _, band := range r.Traffic {
		if volume >= band.Min {
			weight = band.Weight
		}
	}
	return weight
}

func (r *Rules) label(score float64) string {
	label := ""
	for _, level := range r.Levels {
		if score >= level.MinScore {
			label = level.Label
		}
	}
	return label
}

func minWeight(weights map[int]float64) float64 {
	first := true
	lowest := 0.0
	for _, w := range weights {
		if first || w < lowest {
			lowest = w
			first = false
		}
	}
	return lowest
}
