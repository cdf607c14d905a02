package risk

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// 输入取值范围
const (
	TimeMax     = 3
	WeatherMax  = 3
	RoadMax     = 2
	TrafficMax  = 500
	TrafficStep = 10
)

// Input 风险评估输入
type Input struct {
	Time    int `json:"time" validate:"min=0,max=3"`
	Weather int `json:"weather" validate:"min=0,max=3"`
	Road    int `json:"road" validate:"min=0,max=2"`
	Traffic int `json:"traffic" validate:"min=0,max=500"`
}

// DefaultInput 控件初始值：上午、晴、干燥路面、流量 150
func DefaultInput() Input {
	return Input{Time: 1, Weather: 0, Road: 0, Traffic: 150}
}

func (in Input) Validate() error {
	return formatValidationError(validate.Struct(in))
}

// Option 下拉选项
type Option struct {
	Label string
	Value int
}

var (
	TimeOptions = []Option{
		{"Night", 0}, {"Morning", 1}, {"Afternoon", 2}, {"Evening", 3},
	}
	WeatherOptions = []Option{
		{"Clear", 0}, {"Rain", 1}, {"Fog", 2}, {"Snow", 3},
	}
	RoadOptions = []Option{
		{"Dry", 0}, {"Wet", 1}, {"Icy", 2},
	}
)

// OptionLabel 返回 "Night (0)" 形式的显示文本
func OptionLabel(options []Option, value int) string {
	for _, o := range options {
		if o.Value == value {
			return fmt.Sprintf("%s (%d)", o.Label, o.Value)
		}
	}
	return fmt.Sprintf("%d", value)
}

func formatValidationError(err error) error {
	if err == nil {
		return nil
	}
	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	for _, e := range validationErrs {
		switch e.Tag() {
		case "required":
			return fmt.Errorf("%w: %s is required", ErrInvalidInput, e.Namespace())
		case "min":
			return fmt.Errorf("%w: %s must be at least %s", ErrInvalidInput, e.Namespace(), e.Param())
		case "max":
			return fmt.Errorf("%w: %s must not exceed %s", ErrInvalidInput, e.Namespace(), e.Param())
		default:
			return fmt.Errorf("%w: %s failed %s", ErrInvalidInput, e.Namespace(), e.Tag())
		}
	}
	return err
}
