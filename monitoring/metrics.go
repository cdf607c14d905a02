package monitoring

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry 应用全部 Prometheus 指标
type Registry struct {
	// HTTP
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// 训练
	TrainingDuration   *prometheus.HistogramVec
	ModelMAE           *prometheus.GaugeVec
	ModelR2            *prometheus.GaugeVec
	GridSearchFits     prometheus.Counter
	GridSearchProgress prometheus.Gauge
	TrainingRowsLoaded prometheus.Gauge

	// 预测与风险
	PredictionsTotal     *prometheus.CounterVec
	RiskEvaluationsTotal *prometheus.CounterVec
	RiskRulesReloads     *prometheus.CounterVec
	WebSocketClients     prometheus.Gauge

	registry *prometheus.Registry
}

var (
	defaultRegistry *Registry
	once            sync.Once
)

// DefaultRegistry 全局单例
func DefaultRegistry() *Registry {
	once.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry 创建独立的指标集合，测试中每个用例各自创建
func NewRegistry() *Registry {
	r := &Registry{registry: prometheus.NewRegistry()}
	r.registry.MustRegister(collectors.NewGoCollector())

	f := promauto.With(r.registry)
	r.HTTPRequestsTotal = f.NewCounterVec(prometheus.CounterOpts{
		Name: "accidentlab_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
	r.HTTPRequestDuration = f.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "accidentlab_http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	r.TrainingDuration = f.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "accidentlab_training_duration_seconds",
		Help:    "Time spent fitting a model, including grid search",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"model"})
	r.ModelMAE = f.NewGaugeVec(prometheus.GaugeOpts{
		Name: "accidentlab_model_mae",
		Help: "Hold-out mean absolute error of the latest trained model",
	}, []string{"model"})
	r.ModelR2 = f.NewGaugeVec(prometheus.GaugeOpts{
		Name: "accidentlab_model_r2",
		Help: "Hold-out R² of the latest trained model",
	}, []string{"model"})
	r.GridSearchFits = f.NewCounter(prometheus.CounterOpts{
		Name: "accidentlab_grid_search_fits_total",
		Help: "Number of cross-validation fits run by the grid search",
	})
	r.GridSearchProgress = f.NewGauge(prometheus.GaugeOpts{
		Name: "accidentlab_grid_search_progress_percent",
		Help: "Share of grid search combinations evaluated in the current run",
	})
	r.TrainingRowsLoaded = f.NewGauge(prometheus.GaugeOpts{
		Name: "accidentlab_training_rows",
		Help: "Long-format rows in the latest training dataset",
	})

	r.PredictionsTotal = f.NewCounterVec(prometheus.CounterOpts{
		Name: "accidentlab_predictions_total",
		Help: "Accident count predictions served",
	}, []string{"status"})
	r.RiskEvaluationsTotal = f.NewCounterVec(prometheus.CounterOpts{
		Name: "accidentlab_risk_evaluations_total",
		Help: "Rule-based risk evaluations by resulting label",
	}, []string{"label"})
	r.RiskRulesReloads = f.NewCounterVec(prometheus.CounterOpts{
		Name: "accidentlab_risk_rules_reloads_total",
		Help: "Risk rule table reloads",
	}, []string{"status"})
	r.WebSocketClients = f.NewGauge(prometheus.GaugeOpts{
		Name: "accidentlab_websocket_clients",
		Help: "Connected risk widget WebSocket clients",
	})
	return r
}

// Handler /metrics 处理器
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// RecordHTTPRequest 记录一次请求
func (r *Registry) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	r.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	r.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordTraining 记录一个模型的训练耗时与评估结果
func (r *Registry) RecordTraining(model string, duration time.Duration, mae, r2 float64) {
	r.TrainingDuration.WithLabelValues(model).Observe(duration.Seconds())
	r.ModelMAE.WithLabelValues(model).Set(mae)
	r.ModelR2.WithLabelValues(model).Set(r2)
}

// RecordPrediction 记录预测结果，err 非空时计为失败
func (r *Registry) RecordPrediction(err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	r.PredictionsTotal.WithLabelValues(status).Inc()
}

// RecordRisk 记录风险评估，失败时标签为 error
func (r *Registry) RecordRisk(label string, err error) {
	if err != nil {
		label = "error"
	}
	r.RiskEvaluationsTotal.WithLabelValues(label).Inc()
}

// RecordRulesReload 记录评分表重载
func (r *Registry) RecordRulesReload(err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	r.RiskRulesReloads.WithLabelValues(status).Inc()
}
