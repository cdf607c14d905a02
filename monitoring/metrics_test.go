package monitoring

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestDefaultRegistry(t *testing.T) {
	if DefaultRegistry() != DefaultRegistry() {
		t.Fatal("DefaultRegistry() should return the same instance")
	}
}

func TestRecordTraining(t *testing.T) {
	r := NewRegistry()
	r.RecordTraining("Random Forest (Tuned)", 2*time.Second, 12.5, 0.93)

	if got := testutil.ToFloat64(r.ModelMAE.WithLabelValues("Random Forest (Tuned)")); got != 12.5 {
		t.Fatalf("expected mae 12.5, got %f", got)
	}
	if got := testutil.ToFloat64(r.ModelR2.WithLabelValues("Random Forest (Tuned)")); got != 0.93 {
		t.Fatalf("expected r2 0.93, got %f", got)
	}
	if n := testutil.CollectAndCount(r.TrainingDuration); n != 1 {
		t.Fatalf("expected 1 histogram series, got %d", n)
	}
}

func TestRecordPredictionAndRisk(t *testing.T) {
	r := NewRegistry()
	r.RecordPrediction(nil)
	r.RecordPrediction(nil)
	r.RecordPrediction(errors.New("boom"))
	r.RecordRisk("High", nil)
	r.RecordRisk("High", errors.New("bad input"))

	if got := testutil.ToFloat64(r.PredictionsTotal.WithLabelValues("ok")); got != 2 {
		t.Fatalf("expected 2 ok predictions, got %f", got)
	}
	if got := testutil.ToFloat64(r.PredictionsTotal.WithLabelValues("error")); got != 1 {
		t.Fatalf("expected 1 failed prediction, got %f", got)
	}
	if got := testutil.ToFloat64(r.RiskEvaluationsTotal.WithLabelValues("High")); got != 1 {
		t.Fatalf("expected 1 High evaluation, got %f", got)
	}
	if got := testutil.ToFloat64(r.RiskEvaluationsTotal.WithLabelValues("error")); got != 1 {
		t.Fatalf("expected 1 error evaluation, got %f", got)
	}
}

func TestMetricsHandler(t *testing.T) {
	r := NewRegistry()
	r.RecordHTTPRequest("GET", "/api/health", "200", 10*time.Millisecond)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `accidentlab_http_requests_total{method="GET",path="/api/health",status="200"} 1`) {
		t.Fatalf("metrics output missing request counter:\n%s", body)
	}
}
