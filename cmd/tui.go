package cmd

import (
	"context"

	"accidentlab/config"
	"accidentlab/tui"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Interactive predictor form and risk widget",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadPredictor(cfg)
		if err != nil {
			logger.Warn("predictor unavailable", zap.Error(err))
			p = nil
		}
		scorer, err := loadScorer(cfg)
		if err != nil {
			logger.Warn("risk rules unavailable", zap.Error(err))
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		reloads := make(chan error, 1)
		if cfg.Risk.RulesPath != "" {
			go func() {
				defer close(reloads)
				_ = config.Watch(ctx, cfg.Risk.RulesPath, logger, func() {
					select {
					case reloads <- reloadRules(cfg, scorer):
					default:
					}
				})
			}()
		} else {
			close(reloads)
		}
		return tui.Run(p, scorer, reloads)
	},
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}
