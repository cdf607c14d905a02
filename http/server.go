// Package http 提供预测与风险评估的 HTTP 接口
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"accidentlab/db"
	"accidentlab/monitoring"
	"accidentlab/predictor"
	"accidentlab/risk"

	"go.uber.org/zap"
)

// ServerConfig 服务器配置
type ServerConfig struct {
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxBodyBytes   int64
	AllowedOrigins []string
}

// DefaultServerConfig 默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Port:           8080,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		MaxBodyBytes:   1 << 16,
		AllowedOrigins: []string{"*"},
	}
}

// Deps 处理器依赖；Predictor、Hub、Store 可为空，对应接口返回 503
type Deps struct {
	Predictor *predictor.Predictor
	Scorer    risk.Scorer
	Hub       *monitoring.RiskHub
	Metrics   *monitoring.Registry
	Store     *db.Store
	Logger    *zap.Logger
}

// Server HTTP服务器
type Server struct {
	server *http.Server
	logger *zap.Logger
}

// NewServer 创建HTTP服务器
func NewServer(config ServerConfig, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Metrics == nil {
		deps.Metrics = monitoring.DefaultRegistry()
	}

	return &Server{
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", config.Port),
			Handler:      NewHandler(config, deps),
			ReadTimeout:  config.ReadTimeout,
			WriteTimeout: config.WriteTimeout,
			IdleTimeout:  120 * time.Second,
		},
		logger: deps.Logger,
	}
}

// NewHandler 注册路由并包装中间件
func NewHandler(config ServerConfig, deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Metrics == nil {
		deps.Metrics = monitoring.NewRegistry()
	}
	mux := http.NewServeMux()
	RegisterHandlers(mux, &handlers{deps: deps})
	mux.Handle("GET /metrics", deps.Metrics.Handler())

	chain := Chain(
		RecoveryMiddleware(deps.Logger),
		LoggerMiddleware(deps.Logger),
		MetricsMiddleware(deps.Metrics),
		SecurityHeadersMiddleware,
		CORSMiddleware(config.AllowedOrigins),
		RequestSizeMiddleware(config.MaxBodyBytes),
	)
	return chain(mux)
}

// Start 启动服务器，阻塞直到关闭
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server",
		zap.String("addr", s.Addr()),
		zap.String("risk_ws", fmt.Sprintf("ws://localhost%s/api/ws/risk", s.Addr())))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Stop 停止服务器
func (s *Server) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	s.logger.Info("shutting down HTTP server")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

// Addr 返回服务器地址
func (s *Server) Addr() string {
	return s.server.Addr
}
