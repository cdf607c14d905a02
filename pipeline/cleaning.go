package pipeline

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// CleaningRule 校验规则
type CleaningRule interface {
	Apply(WideRow) error
	Name() string
}

// QualityIssue 质量问题
type QualityIssue struct {
	Rule    string `json:"rule"`
	Row     int    `json:"row"`
	State   string `json:"state"`
	Year    int    `json:"year"`
	Message string `json:"message"`
}

func (q QualityIssue) String() string {
	return fmt.Sprintf("row %d (%s %d): %s: %s", q.Row, q.State, q.Year, q.Rule, q.Message)
}

// CleaningStats 校验统计
type CleaningStats struct {
	TotalProcessed int64            `json:"total_processed"`
	Passed         int64            `json:"passed"`
	Rejected       int64            `json:"rejected"`
	Issues         map[string]int64 `json:"issues"`
	LastClean      time.Time        `json:"last_clean"`
}

// DataCleaner 数据校验器
type DataCleaner struct {
	rules  []CleaningRule
	logger *zap.Logger
	stats  CleaningStats
}

// NewDataCleaner 创建校验器，带默认规则
func NewDataCleaner(logger *zap.Logger) *DataCleaner {
	if logger == nil {
		logger = zap.NewNop()
	}
	cleaner := &DataCleaner{
		logger: logger,
		stats:  CleaningStats{Issues: make(map[string]int64)},
	}

	cleaner.AddRule(NewCountValidationRule())
	cleaner.AddRule(NewYearValidationRule())
	cleaner.AddRule(NewDuplicateDetectionRule())

	return cleaner
}

// AddRule 添加规则
func (dc *DataCleaner) AddRule(rule CleaningRule) {
	dc.rules = append(dc.rules, rule)
	dc.logger.Debug("added cleaning rule", zap.String("rule", rule.Name()))
}

// Check 对所有行应用规则，返回发现的问题
func (dc *DataCleaner) Check(rows []WideRow) []QualityIssue {
	var issues []QualityIssue
	for i, row := range rows {
		dc.stats.TotalProcessed++
		rejected := false
		for _, rule := range dc.rules {
			if err := rule.Apply(row); err != nil {
				issues = append(issues, QualityIssue{
					Rule:    rule.Name(),
					Row:     i + 2, // 表头占第一行
					State:   row.State,
					Year:    row.Year,
					Message: err.Error(),
				})
				dc.stats.Issues[rule.Name()]++
				rejected = true
			}
		}
		if rejected {
			dc.stats.Rejected++
		} else {
			dc.stats.Passed++
		}
	}
	dc.stats.LastClean = time.Now()
	return issues
}

// Stats 返回统计
func (dc *DataCleaner) Stats() CleaningStats {
	return dc.stats
}

// ErrInvalidData 数据未通过校验
var ErrInvalidData = errors.New("invalid input data")

// Validate 校验宽表，任何问题都视为致命错误
func Validate(rows []WideRow, logger *zap.Logger) error {
	cleaner := NewDataCleaner(logger)
	issues := cleaner.Check(rows)
	stats := cleaner.Stats()
	cleaner.logger.Info("input validated",
		zap.Int64("processed", stats.TotalProcessed),
		zap.Int64("passed", stats.Passed),
		zap.Int64("rejected", stats.Rejected),
		zap.Any("issues", stats.Issues))
	if len(issues) == 0 {
		return nil
	}
	lines := make([]string, 0, len(issues))
	for _, issue := range issues {
		lines = append(lines, issue.String())
	}
	return fmt.Errorf("%w: %s", ErrInvalidData, strings.Join(lines, "; "))
}

// CountValidationRule 事故数不能为负
type CountValidationRule struct{}

func NewCountValidationRule() *CountValidationRule {
	return &CountValidationRule{}
}

func (r *CountValidationRule) Name() string {
	return "count_validation"
}

func (r *CountValidationRule) Apply(row WideRow) error {
	for i, count := range row.Counts {
		if count < 0 {
			return fmt.Errorf("%s count %d is negative", Months[i], count)
		}
	}
	return nil
}

// YearValidationRule 年份范围
type YearValidationRule struct {
	MinYear int
	MaxYear int
}

func NewYearValidationRule() *YearValidationRule {
	return &YearValidationRule{
		MinYear: 1900,
		MaxYear: 2200,
	}
}

func (r *YearValidationRule) Name() string {
	return "year_validation"
}

func (r *YearValidationRule) Apply(row WideRow) error {
	if row.Year < r.MinYear || row.Year > r.MaxYear {
		return fmt.Errorf("year %d out of range [%d, %d]", row.Year, r.MinYear, r.MaxYear)
	}
	return nil
}

// DuplicateDetectionRule 同一州/年份只能出现一次
type DuplicateDetectionRule struct {
	seen map[string]struct{}
}

func NewDuplicateDetectionRule() *DuplicateDetectionRule {
	return &DuplicateDetectionRule{seen: make(map[string]struct{})}
}

func (r *DuplicateDetectionRule) Name() string {
	return "duplicate_detection"
}

func (r *DuplicateDetectionRule) Apply(row WideRow) error {
	key := fmt.Sprintf("%s|%d", row.State, row.Year)
	if _, ok := r.seen[key]; ok {
		return fmt.Errorf("duplicate row for %s %d", row.State, row.Year)
	}
	r.seen[key] = struct{}{}
	return nil
}
