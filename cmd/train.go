package cmd

import (
	"fmt"

	"accidentlab/analytics"
	"accidentlab/monitoring"
	"accidentlab/training"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	trainInput    string
	trainNoCharts bool
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train gradient boosting and a grid-searched random forest, then save the tuned model",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		input := cfg.Data.Input
		if trainInput != "" {
			input = trainInput
		}

		store, _ := openStore(cfg)
		if store != nil {
			defer store.Close()
		}

		trainer := training.NewTrainer(training.Config{
			InputPath: input,
			ModelPath: cfg.ML.ModelPath,
			TestRatio: cfg.ML.TestRatio,
			Seed:      cfg.ML.Seed,
			Boosting:  cfg.ML.Boosting,
			Search:    cfg.ML.Search,
		}, logger, monitoring.DefaultRegistry(), store)

		report, err := trainer.Run(ctx)
		if err != nil {
			return err
		}
		training.PrintReport(cmd.OutOrStdout(), report)

		if trainNoCharts {
			return nil
		}
		files, err := analytics.RenderCharts(report.Dataset, cfg.Data.OutputDir, report.Importances)
		if err != nil {
			return fmt.Errorf("render charts: %w", err)
		}
		logger.Info("charts written", zap.String("dir", cfg.Data.OutputDir), zap.Int("files", len(files)))
		return nil
	},
}

func init() {
	trainCmd.Flags().StringVar(&trainInput, "input", "", "wide CSV to train on (overrides data.input)")
	trainCmd.Flags().BoolVar(&trainNoCharts, "no-charts", false, "skip writing PNG charts")
	rootCmd.AddCommand(trainCmd)
}
