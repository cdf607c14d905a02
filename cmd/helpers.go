package cmd

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"accidentlab/config"
	"accidentlab/db"
	"accidentlab/ml"
	"accidentlab/pipeline"
	"accidentlab/predictor"
	"accidentlab/risk"

	"go.uber.org/zap"
)

// loadDataset 读取、校验并重塑宽表
func loadDataset(ctx context.Context, path string) (*pipeline.Dataset, error) {
	rows, err := pipeline.LoadWideCSV(ctx, path)
	if err != nil {
		return nil, err
	}
	if err := pipeline.Validate(rows, logger); err != nil {
		return nil, err
	}
	return pipeline.Melt(rows)
}

func loadPredictor(c *config.Config) (*predictor.Predictor, error) {
	bundle, err := ml.LoadModel(c.ML.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("load model (run `accidentlab train` first): %w", err)
	}
	return predictor.FromBundle(bundle, c.Predictor.CacheSize)
}

// loadScorer 评分表缺失时返回未配置的评分器，调用方仍可运行
func loadScorer(c *config.Config) (*risk.RuleScorer, error) {
	rules, err := risk.LoadRules(c.Risk.RulesPath)
	if err != nil {
		return &risk.RuleScorer{}, err
	}
	scorer, err := risk.NewRuleScorer(rules)
	if err != nil {
		return &risk.RuleScorer{}, err
	}
	return scorer, nil
}

// reloadRules 重新读取评分表并替换
func reloadRules(c *config.Config, scorer *risk.RuleScorer) error {
	rules, err := risk.LoadRules(c.Risk.RulesPath)
	if err != nil {
		return err
	}
	return scorer.Reload(rules)
}

func openStore(c *config.Config) (*db.Store, error) {
	store, err := db.Open(c.Database.Path, c.Database.WAL)
	if err != nil {
		logger.Warn("database unavailable, continuing without persistence",
			zap.String("path", c.Database.Path), zap.Error(err))
		return nil, err
	}
	return store, nil
}

// parseMonth 接受 1-12 或月份名（大小写不敏感）
func parseMonth(s string) (int, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		if n < 1 || n > 12 {
			return 0, fmt.Errorf("%w: got %d", predictor.ErrMonthRange, n)
		}
		return n, nil
	}
	if n, ok := pipeline.MonthNum(strings.ToUpper(s)); ok {
		return n, nil
	}
	return 0, errors.New("month must be 1-12 or a month name")
}
