package cmd

import (
	"fmt"

	"accidentlab/analytics"
	"accidentlab/ml"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	reportInput    string
	reportNoCharts bool
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print descriptive statistics and write exploratory charts",
	RunE: func(cmd *cobra.Command, args []string) error {
		input := cfg.Data.Input
		if reportInput != "" {
			input = reportInput
		}
		ds, err := loadDataset(cmd.Context(), input)
		if err != nil {
			return err
		}
		if err := analytics.WriteSummary(cmd.OutOrStdout(), ds); err != nil {
			return err
		}
		if reportNoCharts {
			return nil
		}

		// 已有模型时附带特征重要性图
		var importances []float64
		if bundle, err := ml.LoadModel(cfg.ML.ModelPath); err == nil {
			if model, err := bundle.Model(); err == nil {
				if p, ok := model.(ml.ImportanceProvider); ok {
					importances = p.FeatureImportances()
				}
			}
		}
		files, err := analytics.RenderCharts(ds, cfg.Data.OutputDir, importances)
		if err != nil {
			return fmt.Errorf("render charts: %w", err)
		}
		logger.Info("charts written", zap.String("dir", cfg.Data.OutputDir), zap.Int("files", len(files)))
		return nil
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportInput, "input", "", "wide CSV to report on (overrides data.input)")
	reportCmd.Flags().BoolVar(&reportNoCharts, "no-charts", false, "skip writing PNG charts")
	rootCmd.AddCommand(reportCmd)
}
