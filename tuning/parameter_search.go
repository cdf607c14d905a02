package tuning

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"accidentlab/ml"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// 参数名，与随机森林超参数一一对应
const (
	ParamMaxDepth        = "max_depth"
	ParamMinSamplesLeaf  = "min_samples_leaf"
	ParamMinSamplesSplit = "min_samples_split"
	ParamNEstimators     = "n_estimators"
)

var ErrAlreadyRunning = errors.New("parameter search is already running")

// ParameterSearch 随机森林网格搜索
type ParameterSearch struct {
	mu        sync.RWMutex
	config    SearchConfig
	logger    *zap.Logger
	results   []SearchIteration
	started   bool
	completed bool
	progress  float64
}

// SearchConfig 搜索配置
type SearchConfig struct {
	Parameters map[string][]int `yaml:"parameters"`  // 参数网格，max_depth 为 0 表示不限深度
	Folds      int              `yaml:"folds"`       // 交叉验证折数
	MaxWorkers int              `yaml:"max_workers"` // 最大并发数
	RandomSeed int64            `yaml:"random_seed"` // 森林随机种子
	Timeout    time.Duration    `yaml:"timeout"`     // 超时时间，0 表示不限
}

// DefaultSearchConfig 默认网格：3x3x3x3 = 81 组，3 折
func DefaultSearchConfig() SearchConfig {
	return SearchConfig{
		Parameters: map[string][]int{
			ParamNEstimators:     {50, 100, 200},
			ParamMaxDepth:        {0, 5, 10},
			ParamMinSamplesSplit: {2, 5, 10},
			ParamMinSamplesLeaf:  {1, 3, 5},
		},
		Folds:      3,
		MaxWorkers: 4,
		RandomSeed: 42,
	}
}

// ParameterSpace 参数空间
type ParameterSpace struct {
	Dimensions []ParameterDimension `json:"dimensions"`
	TotalSize  int                  `json:"total_size"`
}

// ParameterDimension 参数维度
type ParameterDimension struct {
	Name   string `json:"name"`
	Values []int  `json:"values"`
}

// SearchIteration 单组参数的交叉验证结果
type SearchIteration struct {
	ID         int             `json:"id"`
	Parameters ml.ForestParams `json:"parameters"`
	Metric     float64         `json:"metric"` // 各折负 MAE 的均值
	FoldScores []float64       `json:"fold_scores"`
	StdError   float64         `json:"std_error"`
	Duration   time.Duration   `json:"duration"`
	Status     string          `json:"status"` // completed, failed
	Error      string          `json:"error,omitempty"`
}

// OptimizationResult 优化结果
type OptimizationResult struct {
	Parameters ml.ForestParams  `json:"parameters"`
	Metric     float64          `json:"metric"`
	StdError   float64          `json:"std_error"`
	Rank       int              `json:"rank"`
	Iterations int              `json:"iterations"`
	Duration   time.Duration    `json:"duration"`
	Timestamp  time.Time        `json:"timestamp"`
	Model      *ml.RandomForest `json:"-"` // 用最优参数在全部训练集上重新拟合
}

// NewParameterSearch 创建参数优化器
func NewParameterSearch(config SearchConfig, logger *zap.Logger) *ParameterSearch {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Folds == 0 {
		config.Folds = 3
	}
	if config.MaxWorkers <= 0 {
		config.MaxWorkers = 1
	}
	return &ParameterSearch{config: config, logger: logger}
}

// Optimize 执行网格搜索并用最优参数重新拟合
func (p *ParameterSearch) Optimize(ctx context.Context, features [][]float64, targets []float64) (*OptimizationResult, error) {
	p.mu.Lock()
	if p.started && !p.completed {
		p.mu.Unlock()
		return nil, ErrAlreadyRunning
	}
	p.started = true
	p.completed = false
	p.progress = 0
	p.results = nil
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.completed = true
		p.mu.Unlock()
	}()

	if p.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.Timeout)
		defer cancel()
	}

	space, err := p.BuildParameterSpace()
	if err != nil {
		return nil, fmt.Errorf("failed to build parameter space: %w", err)
	}
	folds, err := ml.KFold(len(targets), p.config.Folds)
	if err != nil {
		return nil, err
	}

	p.logger.Info("starting grid search",
		zap.Int("combinations", space.TotalSize),
		zap.Int("folds", len(folds)),
		zap.Int("fits", space.TotalSize*len(folds)),
		zap.Int("workers", p.config.MaxWorkers))

	startTime := time.Now()
	iterations, err := p.gridSearch(ctx, space, folds, features, targets)
	if err != nil {
		return nil, err
	}

	best := -1
	for i, it := range iterations {
		if it.Status != "completed" {
			continue
		}
		if best == -1 || isBetterResult(it.Metric, iterations[best].Metric) {
			best = i
		}
	}
	if best == -1 {
		return nil, fmt.Errorf("all %d parameter combinations failed", len(iterations))
	}

	p.mu.Lock()
	p.results = iterations
	p.mu.Unlock()

	params := iterations[best].Parameters
	model := ml.NewRandomForest(params)
	if err := model.Fit(features, targets); err != nil {
		return nil, fmt.Errorf("refit best parameters: %w", err)
	}

	result := &OptimizationResult{
		Parameters: params,
		Metric:     iterations[best].Metric,
		StdError:   iterations[best].StdError,
		Rank:       1,
		Iterations: len(iterations),
		Duration:   time.Since(startTime),
		Timestamp:  startTime,
		Model:      model,
	}

	p.logger.Info("grid search completed",
		zap.Stringer("best_params", params),
		zap.Float64("best_score", result.Metric),
		zap.Duration("duration", result.Duration))

	return result, nil
}

// BuildParameterSpace 构建参数空间，维度按参数名排序
func (p *ParameterSearch) BuildParameterSpace() (*ParameterSpace, error) {
	if len(p.config.Parameters) == 0 {
		return nil, errors.New("empty parameter grid")
	}
	names := make([]string, 0, len(p.config.Parameters))
	for name := range p.config.Parameters {
		names = append(names, name)
	}
	sort.Strings(names)

	space := &ParameterSpace{TotalSize: 1}
	for _, name := range names {
		values := p.config.Parameters[name]
		if len(values) == 0 {
			return nil, fmt.Errorf("parameter %s has no values", name)
		}
		if _, err := applyParameter(ml.ForestParams{}, name, values[0]); err != nil {
			return nil, err
		}
		space.Dimensions = append(space.Dimensions, ParameterDimension{Name: name, Values: values})
		space.TotalSize *= len(values)
	}
	return space, nil
}

// gridSearch 并行评估所有组合，结果按组合顺序返回
func (p *ParameterSearch) gridSearch(
	ctx context.Context,
	space *ParameterSpace,
	folds []ml.Fold,
	features [][]float64,
	targets []float64,
) ([]SearchIteration, error) {
	combinations := generateParameterCombinations(space)
	iterations := make([]SearchIteration, len(combinations))

	var done int
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.config.MaxWorkers)

	for i, combo := range combinations {
		i, combo := i, combo
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return fmt.Errorf("parameter search cancelled: %w", err)
			}

			it := p.evaluate(gctx, i+1, combo, folds, features, targets)
			iterations[i] = it
			if it.Status == "failed" {
				p.logger.Warn("cross validation failed",
					zap.Stringer("params", it.Parameters),
					zap.String("error", it.Error))
			}

			p.mu.Lock()
			done++
			p.progress = float64(done) / float64(len(combinations)) * 100
			progress := p.progress
			p.mu.Unlock()

			p.logger.Debug("grid search progress",
				zap.Float64("progress", progress),
				zap.Stringer("params", it.Parameters),
				zap.Float64("score", it.Metric))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("parameter search cancelled: %w", err)
	}
	return iterations, nil
}

func (p *ParameterSearch) evaluate(
	ctx context.Context,
	id int,
	combo map[string]int,
	folds []ml.Fold,
	features [][]float64,
	targets []float64,
) SearchIteration {
	start := time.Now()
	it := SearchIteration{ID: id, Status: "failed"}

	params := ml.DefaultForestParams()
	params.Seed = p.config.RandomSeed
	for name, value := range combo {
		var err error
		if params, err = applyParameter(params, name, value); err != nil {
			it.Error = err.Error()
			return it
		}
	}
	it.Parameters = params

	for _, fold := range folds {
		if ctx.Err() != nil {
			it.Error = ctx.Err().Error()
			return it
		}
		trainX, trainY := ml.Subset(features, targets, fold.Train)
		testX, testY := ml.Subset(features, targets, fold.Test)

		model := ml.NewRandomForest(params)
		if err := model.Fit(trainX, trainY); err != nil {
			it.Error = err.Error()
			return it
		}
		predicted, err := ml.PredictAll(model, testX)
		if err != nil {
			it.Error = err.Error()
			return it
		}
		mae, err := ml.MeanAbsoluteError(testY, predicted)
		if err != nil {
			it.Error = err.Error()
			return it
		}
		it.FoldScores = append(it.FoldScores, -mae)
	}

	it.Metric, it.StdError = meanStd(it.FoldScores)
	it.Duration = time.Since(start)
	it.Status = "completed"
	return it
}

// generateParameterCombinations 生成参数组合，最后一维变化最快
func generateParameterCombinations(space *ParameterSpace) []map[string]int {
	if len(space.Dimensions) == 0 {
		return nil
	}
	combinations := make([]map[string]int, 0, space.TotalSize)
	generateCombinationsRecursive(space.Dimensions, 0, make(map[string]int), &combinations)
	return combinations
}

// generateCombinationsRecursive 递归生成参数组合
func generateCombinationsRecursive(
	dimensions []ParameterDimension,
	index int,
	current map[string]int,
	combinations *[]map[string]int,
) {
	if index == len(dimensions) {
		combo := make(map[string]int, len(current))
		for k, v := range current {
			combo[k] = v
		}
		*combinations = append(*combinations, combo)
		return
	}

	dimension := dimensions[index]
	for _, value := range dimension.Values {
		current[dimension.Name] = value
		generateCombinationsRecursive(dimensions, index+1, current, combinations)
	}
}

// applyParameter 将单个参数写入森林配置
func applyParameter(params ml.ForestParams, name string, value int) (ml.ForestParams, error) {
	switch name {
	case ParamNEstimators:
		if value < 1 {
			return params, fmt.Errorf("%s must be >= 1, got %d", name, value)
		}
		params.NEstimators = value
	case ParamMaxDepth:
		if value < 0 {
			return params, fmt.Errorf("%s must be >= 0, got %d", name, value)
		}
		params.MaxDepth = value
	case ParamMinSamplesSplit:
		if value < 2 {
			return params, fmt.Errorf("%s must be >= 2, got %d", name, value)
		}
		params.MinSamplesSplit = value
	case ParamMinSamplesLeaf:
		if value < 1 {
			return params, fmt.Errorf("%s must be >= 1, got %d", name, value)
		}
		params.MinSamplesLeaf = value
	default:
		return params, fmt.Errorf("unknown parameter %q", name)
	}
	return params, nil
}

// isBetterResult 负 MAE 越大越好，相同分数保留先出现的组合
func isBetterResult(newMetric, currentMetric float64) bool {
	return newMetric > currentMetric
}

func meanStd(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	variance := 0.0
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	return mean, math.Sqrt(variance / float64(len(values)))
}

// GetAllResults 获取所有结果，按组合顺序
func (p *ParameterSearch) GetAllResults() []SearchIteration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]SearchIteration(nil), p.results...)
}

// GetTopResults 获取前N个结果
func (p *ParameterSearch) GetTopResults(n int) []SearchIteration {
	results := p.GetAllResults()
	completed := results[:0]
	for _, r := range results {
		if r.Status == "completed" {
			completed = append(completed, r)
		}
	}
	sort.SliceStable(completed, func(i, j int) bool {
		return isBetterResult(completed[i].Metric, completed[j].Metric)
	})
	if len(completed) > n {
		completed = completed[:n]
	}
	return completed
}

// GetProgress 获取优化进度
func (p *ParameterSearch) GetProgress() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.progress
}

// IsRunning 检查是否正在运行
func (p *ParameterSearch) IsRunning() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.started && !p.completed
}

// SearchStats 搜索统计
type SearchStats struct {
	TotalResults int           `json:"total_results"`
	Completed    int           `json:"completed"`
	Failed       int           `json:"failed"`
	Fits         int           `json:"fits"` // 实际完成的单折拟合数，含失败组合中已完成的折
	Progress     float64       `json:"progress"`
	AvgDuration  time.Duration `json:"avg_duration"`
	BestMetric   float64       `json:"best_metric"`
}

// GetStats 获取优化统计
func (p *ParameterSearch) GetStats() SearchStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	stats := SearchStats{TotalResults: len(p.results), Progress: p.progress}
	var total time.Duration
	first := true
	for _, r := range p.results {
		stats.Fits += len(r.FoldScores)
		if r.Status != "completed" {
			stats.Failed++
			continue
		}
		stats.Completed++
		total += r.Duration
		if first || isBetterResult(r.Metric, stats.BestMetric) {
			stats.BestMetric = r.Metric
			first = false
		}
	}
	if stats.Completed > 0 {
		stats.AvgDuration = total / time.Duration(stats.Completed)
	}
	return stats
}
