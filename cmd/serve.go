package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"accidentlab/config"
	qhttp "accidentlab/http"
	"accidentlab/monitoring"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the prediction and risk API, the risk WebSocket and /metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		metrics := monitoring.DefaultRegistry()
		p, err := loadPredictor(cfg)
		if err != nil {
			logger.Warn("predictor unavailable", zap.Error(err))
			p = nil
		}
		scorer, err := loadScorer(cfg)
		if err != nil {
			logger.Warn("risk rules unavailable", zap.Error(err))
		}
		store, _ := openStore(cfg)
		if store != nil {
			defer store.Close()
		}

		hub := monitoring.NewRiskHub(scorer, metrics, logger)
		serverCfg := qhttp.DefaultServerConfig()
		serverCfg.Port = cfg.Http.Port
		if servePort > 0 {
			serverCfg.Port = servePort
		}
		serverCfg.ReadTimeout = cfg.Http.ReadTimeout
		serverCfg.WriteTimeout = cfg.Http.WriteTimeout
		server := qhttp.NewServer(serverCfg, qhttp.Deps{
			Predictor: p,
			Scorer:    scorer,
			Hub:       hub,
			Metrics:   metrics,
			Store:     store,
			Logger:    logger,
		})

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			hub.Run(ctx)
			return nil
		})
		g.Go(server.Start)
		g.Go(func() error {
			<-ctx.Done()
			return server.Stop(context.Background())
		})
		if cfg.Risk.RulesPath != "" {
			g.Go(func() error {
				return config.Watch(ctx, cfg.Risk.RulesPath, logger, func() {
					err := reloadRules(cfg, scorer)
					metrics.RecordRulesReload(err)
					if err != nil {
						logger.Warn("risk rules reload rejected, keeping previous rules", zap.Error(err))
						return
					}
					logger.Info("risk rules reloaded", zap.String("path", cfg.Risk.RulesPath))
					hub.Refresh()
				})
			})
		}
		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (overrides http.port)")
	rootCmd.AddCommand(serveCmd)
}
