package http

import (
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/aqi-monitor/internal/observability"
)

// RouterConfig configures NewRouter.
type RouterConfig struct {
	// RequestTimeout bounds each evaluation; 0 disables it.
	RequestTimeout time.Duration
	// Limiter guards /api and /charts; nil disables rate limiting. Only those
	// paths feed the overload and degraded windows.
	Limiter *rate.Limiter
}

// NewRouter wires every dashboard route with middleware, panic recovery and
// response compression.
func NewRouter(h *Handler, logger *zap.Logger, cfg RouterConfig) http.Handler {
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware)

	timeout := TimeoutMiddleware(cfg.RequestTimeout)
	limit := RateLimitMiddleware(cfg.Limiter)

	router.Handle("/", timeout(http.HandlerFunc(h.GetDashboard))).Methods(http.MethodGet)
	router.HandleFunc("/health", h.GetHealth).Methods(http.MethodGet)
	router.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.Use(limit, TrafficMiddleware, timeout)
	api.HandleFunc("/evaluation", h.GetEvaluation).Methods(http.MethodGet)
	api.HandleFunc("/evaluation", h.PostEvaluation).Methods(http.MethodPost)

	chartRoutes := router.PathPrefix("/charts").Subrouter()
	chartRoutes.Use(limit, TrafficMiddleware, timeout)
	chartRoutes.HandleFunc("/{chart}.svg", h.GetChart).Methods(http.MethodGet)

	recovery := handlers.RecoveryHandler(
		handlers.RecoveryLogger(zap.NewStdLog(logger)),
		handlers.PrintRecoveryStack(true),
	)
	return recovery(handlers.CompressHandler(router))
}
