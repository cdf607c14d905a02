package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"accidentlab/pipeline"
	"accidentlab/predictor"
	"accidentlab/risk"

	"go.uber.org/zap"
)

var errUnavailable = errors.New("service not configured")

type handlers struct {
	deps Deps
}

func RegisterHandlers(mux *http.ServeMux, h *handlers) {
	mux.HandleFunc("GET /api/health", h.handleHealth)
	mux.HandleFunc("GET /api/states", h.handleStates)
	mux.HandleFunc("POST /api/predict", h.handlePredict)
	mux.HandleFunc("GET /api/risk/options", h.handleRiskOptions)
	mux.HandleFunc("POST /api/risk", h.handleRisk)
	mux.HandleFunc("GET /api/training", h.handleTrainingLog)
	mux.HandleFunc("GET /api/records", h.handleRecords)
	if h.deps.Hub != nil {
		mux.HandleFunc("GET /api/ws/risk", h.deps.Hub.HandleWebSocket)
	}
}

func (h *handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]interface{}{
		"status":    "ok",
		"predictor": h.deps.Predictor != nil,
		"risk":      h.deps.Scorer != nil && h.deps.Scorer.Ready(),
		"database":  h.deps.Store != nil,
	}
	if h.deps.Store != nil {
		n, err := h.deps.Store.CountPredictions(r.Context())
		if err != nil {
			h.deps.Logger.Warn("count predictions failed", requestFields(r, zap.Error(err))...)
			body["database"] = false
		} else {
			body["predictions_logged"] = n
		}
	}
	respondJSON(w, http.StatusOK, body)
}

func (h *handlers) handleStates(w http.ResponseWriter, r *http.Request) {
	p := h.deps.Predictor
	if p == nil {
		writeError(w, r, http.StatusServiceUnavailable, errUnavailable)
		return
	}
	yearMin, yearMax := p.YearRange()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"states":   p.States(),
		"year_min": yearMin,
		"year_max": yearMax,
		"months":   pipeline.Months,
		"model":    p.ModelName(),
	})
}

type predictResponse struct {
	predictor.Prediction
	Message string `json:"message"`
}

func (h *handlers) handlePredict(w http.ResponseWriter, r *http.Request) {
	p := h.deps.Predictor
	if p == nil {
		writeError(w, r, http.StatusServiceUnavailable, errUnavailable)
		return
	}
	var q predictor.Query
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	result, err := p.Predict(q)
	h.deps.Metrics.RecordPrediction(err)
	if err != nil {
		switch {
		case errors.Is(err, predictor.ErrUnknownState),
			errors.Is(err, predictor.ErrYearRange),
			errors.Is(err, predictor.ErrMonthRange):
			writeError(w, r, http.StatusBadRequest, err)
		default:
			h.deps.Logger.Error("prediction failed", requestFields(r, zap.Error(err))...)
			writeError(w, r, http.StatusInternalServerError, err)
		}
		return
	}

	if h.deps.Store != nil {
		if err := h.deps.Store.SavePrediction(r.Context(), result.State, result.Year, result.Month, result.Count); err != nil {
			h.deps.Logger.Warn("failed to record prediction", requestFields(r, zap.Error(err))...)
		}
	}
	h.deps.Logger.Debug("prediction served", requestFields(r,
		zap.String("state", result.State), zap.Int("count", result.Count))...)
	respondJSON(w, http.StatusOK, predictResponse{Prediction: result, Message: result.String()})
}

func (h *handlers) handleRiskOptions(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"time":    risk.TimeOptions,
		"weather": risk.WeatherOptions,
		"road":    risk.RoadOptions,
		"traffic": map[string]int{"min": 0, "max": risk.TrafficMax, "step": risk.TrafficStep},
		"default": risk.DefaultInput(),
	})
}

type riskResponse struct {
	risk.Assessment
	Message string `json:"message"`
}

func (h *handlers) handleRisk(w http.ResponseWriter, r *http.Request) {
	if h.deps.Scorer == nil {
		writeError(w, r, http.StatusServiceUnavailable, risk.ErrRulesNotConfigured)
		return
	}
	in := risk.DefaultInput()
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	a, err := h.deps.Scorer.Score(in)
	h.deps.Metrics.RecordRisk(a.Label, err)
	if err != nil {
		switch {
		case errors.Is(err, risk.ErrInvalidInput):
			writeError(w, r, http.StatusBadRequest, err)
		case errors.Is(err, risk.ErrRulesNotConfigured):
			writeError(w, r, http.StatusServiceUnavailable, err)
		default:
			h.deps.Logger.Error("risk scoring failed", requestFields(r, zap.Error(err))...)
			writeError(w, r, http.StatusInternalServerError, err)
		}
		return
	}
	respondJSON(w, http.StatusOK, riskResponse{Assessment: a, Message: a.String()})
}

func (h *handlers) handleTrainingLog(w http.ResponseWriter, r *http.Request) {
	if h.deps.Store == nil {
		writeError(w, r, http.StatusServiceUnavailable, errUnavailable)
		return
	}
	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err)
			return
		}
		limit = n
	}
	logs, err := h.deps.Store.LoadTrainingLog(r.Context(), limit)
	if err != nil {
		h.deps.Logger.Error("load training log failed", requestFields(r, zap.Error(err))...)
		writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, logs)
}

// handleRecords 最近一次导入的长表记录，可按 state 过滤
func (h *handlers) handleRecords(w http.ResponseWriter, r *http.Request) {
	if h.deps.Store == nil {
		writeError(w, r, http.StatusServiceUnavailable, errUnavailable)
		return
	}
	records, err := h.deps.Store.QueryRecords(r.Context(), r.URL.Query().Get("state"))
	if err != nil {
		h.deps.Logger.Error("query records failed", requestFields(r, zap.Error(err))...)
		writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	if records == nil {
		records = []pipeline.Record{}
	}
	respondJSON(w, http.StatusOK, records)
}

// respondJSON 统一JSON响应
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError 错误响应附带请求ID，便于与日志对应
func writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	body := map[string]string{"error": err.Error()}
	if id := GetRequestID(r.Context()); id != "" {
		body["request_id"] = id
	}
	respondJSON(w, status, body)
}

// requestFields 处理器日志的公共字段
func requestFields(r *http.Request, fields ...zap.Field) []zap.Field {
	out := []zap.Field{zap.String("request_id", GetRequestID(r.Context()))}
	if start := GetStartTime(r.Context()); !start.IsZero() {
		out = append(out, zap.Duration("elapsed", time.Since(start)))
	}
	return append(out, fields...)
}
