package predictor

import "math"

// Clamp 将模型输出截断为非负整数：先向零取整，再与 0 取最大值
func Clamp(raw float64) int {
	if math.IsNaN(raw) || raw <= 0 {
		return 0
	}
	if raw >= math.MaxInt {
		return math.MaxInt
	}
	return int(math.Trunc(raw))
}
