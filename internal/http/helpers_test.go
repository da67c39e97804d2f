package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/aqi-monitor/internal/aqi"
	"github.com/kjstillabower/aqi-monitor/internal/lifecycle"
	"github.com/kjstillabower/aqi-monitor/internal/models"
	"github.com/kjstillabower/aqi-monitor/internal/traffic"
	"github.com/kjstillabower/aqi-monitor/internal/validation"
)

var testDay = time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

// fakeEvaluator returns a canned evaluation whose prediction is fixed, or the
// configured error.
type fakeEvaluator struct {
	mu         sync.Mutex
	prediction float64
	err        error
	hook       func(ctx context.Context)
	history    []models.Record
	readings   []models.Reading
	evaluated  int
	projected  int
}

func (f *fakeEvaluator) Evaluate(ctx context.Context, r models.Reading) (models.Evaluation, error) {
	f.mu.Lock()
	f.evaluated++
	f.mu.Unlock()
	return f.build(ctx, r)
}

func (f *fakeEvaluator) Project(ctx context.Context, r models.Reading) (models.Evaluation, error) {
	f.mu.Lock()
	f.projected++
	f.mu.Unlock()
	return f.build(ctx, r)
}

func (f *fakeEvaluator) build(ctx context.Context, r models.Reading) (models.Evaluation, error) {
	f.mu.Lock()
	f.readings = append(f.readings, r)
	hook, err, p := f.hook, f.err, f.prediction
	f.mu.Unlock()

	if hook != nil {
		hook(ctx)
	}
	if err := validation.ValidateReading(r); err != nil {
		return models.Evaluation{}, err
	}
	if err != nil {
		return models.Evaluation{}, err
	}
	s := aqi.Classify(p)
	return models.Evaluation{
		Input:       r,
		Prediction:  p,
		Severity:    s.String(),
		AlertLevel:  s.AlertLevel(),
		Forecast:    aqi.Forecast(p, testDay),
		Levels:      aqi.Levels(r),
		Recent:      f.history,
		HistoryRows: len(f.history),
		Timestamp:   testDay,
	}, nil
}

func (f *fakeEvaluator) History() []models.Record { return f.history }

func (f *fakeEvaluator) lastReading(t *testing.T) models.Reading {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.readings) == 0 {
		t.Fatal("evaluator was not called")
	}
	return f.readings[len(f.readings)-1]
}

func sampleHistory() []models.Record {
	recs := make([]models.Record, 5)
	for i := range recs {
		recs[i] = models.Record{Date: testDay.AddDate(0, 0, -i-1), PM25: 10, PM10: 20, NO2: 5, CO: 300, AQI: float64(i + 1)}
	}
	return recs
}

// resetState puts the process-wide health state back to a ready, idle service.
func resetState(t *testing.T) {
	t.Helper()
	lifecycle.Reset()
	lifecycle.Set(lifecycle.Ready)
	traffic.Reset()
	t.Cleanup(func() {
		lifecycle.Reset()
		traffic.Reset()
	})
}

func newTestRouter(eval Evaluator, hc *HealthConfig, cfg RouterConfig) http.Handler {
	return NewRouter(NewHandler(eval, hc, zap.NewNop()), zap.NewNop(), cfg)
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

type errorEnvelope struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"requestId"`
	} `json:"error"`
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorEnvelope {
	t.Helper()
	var env errorEnvelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode error body %q: %v", w.Body.String(), err)
	}
	return env
}
