package http

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kjstillabower/aqi-monitor/internal/aqi"
	"github.com/kjstillabower/aqi-monitor/internal/charts"
	"github.com/kjstillabower/aqi-monitor/internal/lifecycle"
	"github.com/kjstillabower/aqi-monitor/internal/models"
	"github.com/kjstillabower/aqi-monitor/internal/observability"
	"github.com/kjstillabower/aqi-monitor/internal/traffic"
	"github.com/kjstillabower/aqi-monitor/internal/validation"
)

// maxBodyBytes caps POST /api/evaluation bodies.
const maxBodyBytes = 1 << 16

//go:embed templates/dashboard.html
var templateFS embed.FS

var dashboardTemplate = template.Must(
	template.New("dashboard.html").
		Funcs(template.FuncMap{"num": formatNum, "date": formatDate}).
		ParseFS(templateFS, "templates/dashboard.html"),
)

// HealthConfig holds lifecycle thresholds for the health handler.
type HealthConfig struct {
	OverloadWindow       time.Duration
	OverloadThresholdPct int
	RateLimitRPS         int // 0 when rate limiter disabled
	DegradedWindow       time.Duration
	DegradedErrorPct     int
}

// Evaluator is the dashboard's read path. Evaluate is one counted dashboard
// evaluation; Project feeds the forecast and levels charts without being counted.
type Evaluator interface {
	Evaluate(ctx context.Context, r models.Reading) (models.Evaluation, error)
	Project(ctx context.Context, r models.Reading) (models.Evaluation, error)
	History() []models.Record
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	evaluator        Evaluator
	healthConfig     *HealthConfig
	logger           *zap.Logger
	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler.
func NewHandler(evaluator Evaluator, healthConfig *HealthConfig, logger *zap.Logger) *Handler {
	return &Handler{
		evaluator:    evaluator,
		healthConfig: healthConfig,
		logger:       logger,
	}
}

type pageInput struct {
	Key   string
	Label string
	Min   float64
	Max   float64
	Value float64
}

type dashboardPage struct {
	Inputs        []pageInput
	Features      []string
	Eval          *models.Evaluation
	Banner        string
	ForecastChart template.URL
	LevelsChart   template.URL
	Error         string
}

var inputLabels = map[string]string{
	"pm25": "PM2.5 (µg/m³)",
	"pm10": "PM10 (µg/m³)",
	"no2":  "NO2 (µg/m³)",
	"co":   "CO (µg/m³)",
}

// GetDashboard handles GET /. Each load is one full evaluation.
func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	page := dashboardPage{Features: models.FeatureNames}

	reading, err := validation.ParseReading(r.URL.Query())
	if err != nil {
		page.Inputs = pageInputs(models.DefaultReading())
		page.Error = err.Error()
		h.renderPage(w, r, http.StatusBadRequest, page)
		return
	}
	page.Inputs = pageInputs(reading)

	eval, err := h.evaluator.Evaluate(r.Context(), reading)
	if err != nil {
		status, _, msg := h.classifyError(r, err)
		page.Error = msg
		h.renderPage(w, r, status, page)
		return
	}

	q := readingQuery(reading)
	page.Eval = &eval
	page.Banner = bannerText(eval.Severity)
	page.ForecastChart = template.URL("/charts/" + charts.Forecast + ".svg?" + q)
	page.LevelsChart = template.URL("/charts/" + charts.Levels + ".svg?" + q)
	h.renderPage(w, r, http.StatusOK, page)
}

func (h *Handler) renderPage(w http.ResponseWriter, r *http.Request, status int, page dashboardPage) {
	var buf bytes.Buffer
	if err := dashboardTemplate.Execute(&buf, page); err != nil {
		observability.LoggerFromContext(r.Context()).Error("render dashboard", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "RENDER_FAILED", "Unable to render dashboard")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// GetEvaluation handles GET /api/evaluation?pm25=&pm10=&no2=&co=.
func (h *Handler) GetEvaluation(w http.ResponseWriter, r *http.Request) {
	reading, err := validation.ParseReading(r.URL.Query())
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_INPUT", err.Error())
		return
	}
	h.evaluate(w, r, reading)
}

// PostEvaluation handles POST /api/evaluation with a JSON reading. Omitted
// fields take the dashboard defaults.
func (h *Handler) PostEvaluation(w http.ResponseWriter, r *http.Request) {
	reading := models.DefaultReading()
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := decodeReading(dec, &reading); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_INPUT", "request body must be a JSON object with pm25, pm10, no2, co")
		return
	}
	h.evaluate(w, r, reading)
}

// decodeReading decodes one JSON object into reading. An empty body leaves the
// defaults; anything after the object other than whitespace is an error.
func decodeReading(dec *json.Decoder, reading *models.Reading) error {
	if err := dec.Decode(reading); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("unexpected data after JSON object")
	}
	return nil
}

func (h *Handler) evaluate(w http.ResponseWriter, r *http.Request, reading models.Reading) {
	eval, err := h.evaluator.Evaluate(r.Context(), reading)
	if err != nil {
		status, code, msg := h.classifyError(r, err)
		writeError(w, r, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, eval)
}

// GetChart handles GET /charts/{chart}.svg. The history chart ignores the
// query; forecast and levels evaluate the reading in the query.
func (h *Handler) GetChart(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["chart"]
	if !knownChart(name) {
		writeError(w, r, http.StatusNotFound, "UNKNOWN_CHART", "unknown chart: "+name)
		return
	}

	var eval models.Evaluation
	if name != charts.History {
		reading, err := validation.ParseReading(r.URL.Query())
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "INVALID_INPUT", err.Error())
			return
		}
		eval, err = h.evaluator.Project(r.Context(), reading)
		if err != nil {
			status, code, msg := h.classifyError(r, err)
			writeError(w, r, status, code, msg)
			return
		}
	}

	var buf bytes.Buffer
	err := charts.Render(&buf, name, h.evaluator.History(), eval)
	observability.RecordChartRender(name, err)
	if err != nil {
		observability.LoggerFromContext(r.Context()).Error("render chart", zap.String("chart", name), zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "RENDER_FAILED", "Unable to render chart")
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// classifyError maps an evaluation error to status, code and message.
func (h *Handler) classifyError(r *http.Request, err error) (int, string, string) {
	logger := observability.LoggerFromContext(r.Context())
	switch {
	case errors.Is(err, validation.ErrInvalidReading):
		return http.StatusBadRequest, "INVALID_INPUT", err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		logger.Debug("evaluation timed out", zap.Error(err))
		return http.StatusGatewayTimeout, "TIMEOUT", "Evaluation timed out"
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, "CANCELLED", "Request cancelled"
	default:
		logger.Debug("evaluation error", zap.Error(err))
		return http.StatusInternalServerError, "EVALUATION_FAILED", "Unable to evaluate reading"
	}
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus()

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	loaded := "healthy"
	if lifecycle.Current() == lifecycle.Starting {
		loaded = "unavailable"
	}
	evaluations := "healthy"
	if result.status == "degraded" {
		evaluations = "unhealthy"
	}
	writeJSON(w, result.statusCode, map[string]interface{}{
		"status":  result.status,
		"service": "aqi-monitor",
		"version": "dev",
		"checks": map[string]string{
			"dataset":     loaded,
			"model":       loaded,
			"evaluations": evaluations,
		},
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// computeHealthStatus evaluates conditions in priority order:
// shutting-down > starting > overloaded > degraded > healthy.
func (h *Handler) computeHealthStatus() healthResult {
	switch lifecycle.Current() {
	case lifecycle.ShuttingDown:
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}
	case lifecycle.Starting:
		return healthResult{"starting", http.StatusServiceUnavailable, "not_ready"}
	}
	if h.healthConfig == nil {
		return healthResult{"healthy", http.StatusOK, ""}
	}
	hc := h.healthConfig
	if hc.RateLimitRPS > 0 && hc.OverloadWindow > 0 {
		threshold := float64(hc.RateLimitRPS) * hc.OverloadWindow.Seconds() * float64(hc.OverloadThresholdPct) / 100
		if float64(traffic.RequestCount(hc.OverloadWindow)) > threshold {
			return healthResult{"overloaded", http.StatusServiceUnavailable, "overload_threshold"}
		}
	}
	if hc.DegradedWindow > 0 && hc.DegradedErrorPct > 0 {
		errs, total := traffic.ErrorRate(hc.DegradedWindow)
		if total > 0 && float64(errs)*100/float64(total) >= float64(hc.DegradedErrorPct) {
			return healthResult{"degraded", http.StatusServiceUnavailable, "error_rate_breach"}
		}
	}
	return healthResult{"healthy", http.StatusOK, ""}
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes {"error":{"code","message","requestId"}}.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": observability.CorrelationID(r.Context()),
		},
	})
}

func knownChart(name string) bool {
	for _, n := range charts.Names {
		if n == name {
			return true
		}
	}
	return false
}

func pageInputs(r models.Reading) []pageInput {
	values := r.Features()
	bounds := validation.InputBounds()
	inputs := make([]pageInput, len(bounds))
	for i, b := range bounds {
		inputs[i] = pageInput{Key: b.Key, Label: inputLabels[b.Key], Min: b.Min, Max: b.Max, Value: values[i]}
	}
	return inputs
}

func readingQuery(r models.Reading) string {
	q := url.Values{}
	for i, b := range validation.InputBounds() {
		q.Set(b.Key, strconv.FormatFloat(r.Features()[i], 'f', -1, 64))
	}
	return q.Encode()
}

func bannerText(severity string) string {
	if severity == aqi.SeverityVeryPoor.String() {
		return severity
	}
	return "Air Quality: " + severity
}

func formatNum(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func formatDate(t time.Time) string {
	return t.Format("2006-01-02")
}
