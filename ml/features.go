package ml

// Feature column order shared by training and prediction.
const (
	FeatureYear = iota
	FeatureMonthNum
	FeatureStateCode
)

func FeatureNames() []string {
	return []string{"YEAR", "Month_Num", "State_Code"}
}

func FeatureVector(year, monthNum, stateCode int) []float64 {
	return []float64{float64(year), float64(monthNum), float64(stateCode)}
}
