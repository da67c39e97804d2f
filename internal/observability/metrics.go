package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kjstillabower/aqi-monitor/internal/traffic"
)

var (
	registry *prometheus.Registry

	// HTTP request rate. Watch for: sudden drops (service down) or spikes (traffic surge).
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency per request. Watch for: chart rendering dominating p95.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight.
	HTTPRequestsInFlight prometheus.Gauge

	// Dashboard evaluations by outcome (success, error).
	EvaluationsTotal *prometheus.CounterVec

	// Predictions by severity band. Watch for: shifts toward poor/very_poor.
	PredictionsBySeverityTotal *prometheus.CounterVec

	// Model inference latency.
	PredictionDuration prometheus.Histogram

	// Chart renders by chart and status.
	ChartRendersTotal *prometheus.CounterVec

	// Rows usable after load and rows dropped for bad dates. Set once at startup.
	DatasetRows        prometheus.Gauge
	DatasetRowsDropped prometheus.Gauge

	// Trees in the loaded forest; 0 until the model is loaded.
	ModelTrees prometheus.Gauge

	// Rate limit denials.
	RateLimitDeniedTotal prometheus.Counter

	rateLimitGaugesOnce sync.Once
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	EvaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aqiEvaluationsTotal",
			Help: "Total number of dashboard evaluations",
		},
		[]string{"status"},
	)
	PredictionsBySeverityTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aqiPredictionsBySeverityTotal",
			Help: "Predictions by severity band",
		},
		[]string{"severity"},
	)
	PredictionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "aqiPredictionDurationSeconds",
			Help:    "Model inference latency in seconds",
			Buckets: []float64{.00005, .0001, .00025, .0005, .001, .0025, .005, .01},
		},
	)
	ChartRendersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aqiChartRendersTotal",
			Help: "Chart renders by chart and status",
		},
		[]string{"chart", "status"},
	)
	DatasetRows = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "aqiDatasetRows",
			Help: "Historical records available after date filtering",
		},
	)
	DatasetRowsDropped = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "aqiDatasetRowsDropped",
			Help: "Historical rows dropped for an unparseable date",
		},
	)
	ModelTrees = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "aqiModelTrees",
			Help: "Number of trees in the loaded model",
		},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		EvaluationsTotal, PredictionsBySeverityTotal, PredictionDuration,
		ChartRendersTotal,
		DatasetRows, DatasetRowsDropped, ModelTrees,
		RateLimitDeniedTotal,
	)
}

// RegisterRateLimitGauges registers load and rejects gauges for the rate-limited paths.
// Call from main after config load with cfg.OverloadWindow.
func RegisterRateLimitGauges(window time.Duration) {
	rateLimitGaugesOnce.Do(func() {
		registry.MustRegister(
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "rateLimitRequestsInWindow",
					Help: "Requests on rate-limited paths (/api, /charts), denials included, in sliding window",
				},
				func() float64 { return float64(traffic.RequestCount(window)) },
			),
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "rateLimitRejectsInWindow",
					Help: "429 responses on rate-limited paths in sliding window",
				},
				func() float64 { return float64(traffic.DenialCount(window)) },
			),
		)
	})
}

// RecordEvaluation records one finished evaluation. severity is empty on error.
func RecordEvaluation(severity string, err error) {
	if err != nil {
		EvaluationsTotal.WithLabelValues("error").Inc()
		return
	}
	EvaluationsTotal.WithLabelValues("success").Inc()
	PredictionsBySeverityTotal.WithLabelValues(severity).Inc()
}

// RecordChartRender records one chart render.
func RecordChartRender(chart string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	ChartRendersTotal.WithLabelValues(chart, status).Inc()
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
