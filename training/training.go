package training

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"accidentlab/db"
	"accidentlab/ml"
	"accidentlab/monitoring"
	"accidentlab/pipeline"
	"accidentlab/tuning"

	"go.uber.org/zap"
)

const (
	tunedModelName   = "Random Forest (Tuned)"
	progressInterval = 2 * time.Second
	topCombinations  = 5
)

// Config 训练配置
type Config struct {
	InputPath string
	ModelPath string
	TestRatio float64
	Seed      int64
	Boosting  ml.BoostingParams
	Search    tuning.SearchConfig
}

// Report 一次训练的结果
type Report struct {
	RunID       string
	Rows        int
	TrainRows   int
	TestRows    int
	Boosting    ml.Evaluation
	Tuned       ml.Evaluation
	BestParams  ml.ForestParams
	BestCVScore float64
	Search      tuning.SearchStats
	Top         []tuning.SearchIteration
	Importances []float64
	ModelPath   string
	Duration    time.Duration

	Dataset *pipeline.Dataset
	Bundle  *ml.Bundle
}

// Trainer 串联加载、重塑、训练、评估与持久化；metrics 与 store 可为空
type Trainer struct {
	config  Config
	logger  *zap.Logger
	metrics *monitoring.Registry
	store   *db.Store
}

func NewTrainer(config Config, logger *zap.Logger, metrics *monitoring.Registry, store *db.Store) *Trainer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Trainer{config: config, logger: logger, metrics: metrics, store: store}
}

// Run 从 CSV 开始完整训练
func (t *Trainer) Run(ctx context.Context) (*Report, error) {
	if t.config.InputPath == "" {
		return nil, errors.New("input path is required")
	}
	rows, err := pipeline.LoadWideCSV(ctx, t.config.InputPath)
	if err != nil {
		return nil, err
	}
	if err := pipeline.Validate(rows, t.logger); err != nil {
		return nil, err
	}
	ds, err := pipeline.Melt(rows)
	if err != nil {
		return nil, err
	}
	t.logger.Info("dataset loaded",
		zap.String("path", t.config.InputPath),
		zap.Int("wide_rows", len(rows)),
		zap.Int("records", len(ds.Records)),
		zap.Int("states", len(ds.States())))

	if t.store != nil {
		if err := t.store.SaveRecords(ctx, ds.Records); err != nil {
			return nil, fmt.Errorf("save records: %w", err)
		}
	}
	return t.RunDataset(ctx, ds)
}

// RunDataset 对已重塑的数据集训练两个模型并保存调优后的森林
func (t *Trainer) RunDataset(ctx context.Context, ds *pipeline.Dataset) (*Report, error) {
	if t.config.ModelPath == "" {
		return nil, errors.New("model path is required")
	}
	start := time.Now()
	features, targets := ds.FeatureMatrix()
	split, err := ml.TrainTestSplit(features, targets, t.config.TestRatio, t.config.Seed)
	if err != nil {
		return nil, err
	}
	report := &Report{
		RunID:     db.NewRunID(),
		Rows:      len(targets),
		TrainRows: len(split.TrainY),
		TestRows:  len(split.TestY),
		ModelPath: t.config.ModelPath,
		Dataset:   ds,
	}
	if t.metrics != nil {
		t.metrics.TrainingRowsLoaded.Set(float64(report.Rows))
	}

	gbStart := time.Now()
	gb := ml.NewGradientBoosting(t.config.Boosting)
	if err := gb.Fit(split.TrainX, split.TrainY); err != nil {
		return nil, fmt.Errorf("fit gradient boosting: %w", err)
	}
	report.Boosting, err = ml.Evaluate(gb, split.TestX, split.TestY)
	if err != nil {
		return nil, err
	}
	gbDuration := time.Since(gbStart)
	t.record(report.Boosting, gbDuration)
	t.logger.Info("gradient boosting evaluated",
		zap.Float64("mae", report.Boosting.MAE),
		zap.Float64("r2", report.Boosting.R2),
		zap.Duration("duration", gbDuration))

	rfStart := time.Now()
	search := tuning.NewParameterSearch(t.config.Search, t.logger)
	watchCtx, stopWatch := context.WithCancel(ctx)
	watched := make(chan struct{})
	go func() {
		defer close(watched)
		t.watchProgress(watchCtx, search)
	}()
	best, err := search.Optimize(ctx, split.TrainX, split.TrainY)
	stopWatch()
	<-watched
	if err != nil {
		return nil, fmt.Errorf("grid search: %w", err)
	}
	report.BestParams = best.Parameters
	report.BestCVScore = best.Metric
	report.Search = search.GetStats()
	report.Top = search.GetTopResults(topCombinations)
	if report.Search.Failed > 0 {
		t.logger.Warn("grid search skipped failed combinations",
			zap.Int("failed", report.Search.Failed),
			zap.Int("completed", report.Search.Completed))
	}
	report.Importances = best.Model.FeatureImportances()
	report.Tuned, err = ml.Evaluate(best.Model, split.TestX, split.TestY)
	if err != nil {
		return nil, err
	}
	report.Tuned.Model = tunedModelName
	rfDuration := time.Since(rfStart)
	t.record(report.Tuned, rfDuration)
	if t.metrics != nil {
		t.metrics.GridSearchFits.Add(float64(report.Search.Fits))
		t.metrics.GridSearchProgress.Set(report.Search.Progress)
	}

	yearMin, yearMax := ds.YearRange()
	bundle, err := ml.NewBundle(best.Model, ds.States(), yearMin, yearMax)
	if err != nil {
		return nil, err
	}
	if err := ml.SaveModel(t.config.ModelPath, bundle); err != nil {
		return nil, fmt.Errorf("save model: %w", err)
	}
	report.Bundle = bundle
	report.Duration = time.Since(start)
	t.logger.Info("tuned model saved",
		zap.String("path", t.config.ModelPath),
		zap.Stringer("params", best.Parameters),
		zap.Duration("duration", report.Duration))

	if t.store != nil {
		params, err := json.Marshal(best.Parameters)
		if err != nil {
			return nil, fmt.Errorf("encode best parameters: %w", err)
		}
		now := time.Now().UTC()
		logs := []db.TrainingLog{
			{RunID: report.RunID, ModelName: report.Boosting.Model, MAE: report.Boosting.MAE, R2: report.Boosting.R2,
				DataPoints: report.Rows, Duration: gbDuration, TrainedAt: now},
			{RunID: report.RunID, ModelName: report.Tuned.Model, MAE: report.Tuned.MAE, R2: report.Tuned.R2,
				Params: string(params), DataPoints: report.Rows, Duration: rfDuration, TrainedAt: now},
		}
		if err := t.store.SaveTrainingRun(ctx, logs); err != nil {
			return nil, fmt.Errorf("save training log: %w", err)
		}
	}
	return report, nil
}

// watchProgress 定期记录网格搜索进度，直到 ctx 结束
func (t *Trainer) watchProgress(ctx context.Context, search *tuning.ParameterSearch) {
	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !search.IsRunning() {
				continue
			}
			progress := search.GetProgress()
			if t.metrics != nil {
				t.metrics.GridSearchProgress.Set(progress)
			}
			t.logger.Info("grid search running", zap.Float64("progress", progress))
		}
	}
}

func (t *Trainer) record(e ml.Evaluation, d time.Duration) {
	if t.metrics != nil {
		t.metrics.RecordTraining(e.Model, d, e.MAE, e.R2)
	}
}

// PrintReport 打印评估结果
func PrintReport(w io.Writer, r *Report) {
	fmt.Fprintf(w, "\nGradient Boosting Regressor Evaluation:\n")
	fmt.Fprintf(w, "Mean Absolute Error: %.2f\n", r.Boosting.MAE)
	fmt.Fprintf(w, "R² Score: %.2f\n", r.Boosting.R2)

	fmt.Fprintf(w, "\nRandom Forest Regressor with Hyperparameter Tuning:\n")
	fmt.Fprintf(w, "Best Parameters: %s\n", r.BestParams)
	fmt.Fprintf(w, "Mean Absolute Error: %.2f\n", r.Tuned.MAE)
	fmt.Fprintf(w, "R² Score: %.2f\n", r.Tuned.R2)

	if r.Search.TotalResults > 0 {
		fmt.Fprintf(w, "Combinations evaluated: %d (%d failed), %d fits\n",
			r.Search.Completed, r.Search.Failed, r.Search.Fits)
	}
	if len(r.Top) > 0 {
		fmt.Fprintf(w, "\nTop Parameter Combinations (mean CV MAE):\n")
		for i, it := range r.Top {
			fmt.Fprintf(w, "  %d. %.2f ± %.2f  %s\n", i+1, -it.Metric, it.StdError, it.Parameters)
		}
	}

	names := ml.FeatureNames()
	if len(r.Importances) == len(names) {
		fmt.Fprintf(w, "\nFeature Importance (Tuned Random Forest):\n")
		for i, name := range names {
			fmt.Fprintf(w, "  %-10s %.4f\n", name, r.Importances[i])
		}
	}

	fmt.Fprintf(w, "\n--- Model Performance ---\n")
	fmt.Fprintln(w, r.Boosting)
	fmt.Fprintln(w, r.Tuned)
	fmt.Fprintf(w, "\nModel saved to %s\n", r.ModelPath)
}
