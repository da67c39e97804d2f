package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/aqi-monitor/internal/artifact"
	"github.com/kjstillabower/aqi-monitor/internal/config"
	"github.com/kjstillabower/aqi-monitor/internal/dataset"
	httphandler "github.com/kjstillabower/aqi-monitor/internal/http"
	"github.com/kjstillabower/aqi-monitor/internal/lifecycle"
	"github.com/kjstillabower/aqi-monitor/internal/observability"
	"github.com/kjstillabower/aqi-monitor/internal/service"
)

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}
	lifecycle.Set(lifecycle.Starting)

	data, model, err := loadDependencies(cfg, logger)
	if err != nil {
		switch {
		case errors.Is(err, dataset.ErrNotFound):
			logger.Fatal("dataset not found", zap.String("path", cfg.DatasetPath))
		case errors.Is(err, artifact.ErrNotFound):
			logger.Fatal("model not found; run the trainer first", zap.String("path", cfg.ModelPath))
		}
		logger.Fatal("startup", zap.Error(err))
	}

	svc := service.NewDashboardService(data, model, cfg.Location)

	healthConfig := &httphandler.HealthConfig{
		OverloadWindow:       cfg.OverloadWindow,
		OverloadThresholdPct: cfg.OverloadThresholdPct,
		RateLimitRPS:         cfg.RateLimitRPS,
		DegradedWindow:       cfg.DegradedWindow,
		DegradedErrorPct:     cfg.DegradedErrorPct,
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	observability.RegisterRateLimitGauges(cfg.OverloadWindow)

	handler := httphandler.NewHandler(svc, healthConfig, logger)
	router := httphandler.NewRouter(handler, logger, httphandler.RouterConfig{
		RequestTimeout: cfg.RequestTimeout,
		Limiter:        limiter,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
	}

	lifecycle.Set(lifecycle.Ready)
	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	lifecycle.Set(lifecycle.ShuttingDown)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	inFlight := httphandler.InFlightCount()
	logger.Info("waiting for in-flight requests", zap.Int64("count", inFlight))
	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.ShutdownInFlightTimeout)
	defer waitCancel()
	if err := httphandler.WaitForInFlight(waitCtx, cfg.ShutdownInFlightCheckInterval); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}

	logger.Info("shutdown complete")
	if err := observability.Flush(context.Background(), logger); err != nil {
		fmt.Fprintf(os.Stderr, "flush logs: %v\n", err)
	}
}

// loadDependencies loads the dataset and then the model. A dataset failure
// returns before the model path is read.
func loadDependencies(cfg *config.Config, logger *zap.Logger) (*dataset.Dataset, *artifact.Model, error) {
	data, err := dataset.LoadIn(cfg.DatasetPath, cfg.Location)
	if err != nil {
		return nil, nil, fmt.Errorf("load dataset %s: %w", cfg.DatasetPath, err)
	}
	logger.Info("dataset loaded",
		zap.String("path", cfg.DatasetPath),
		zap.String("date_column", data.DateColumn),
		zap.Int("rows_read", data.RowsRead),
		zap.Int("rows_dropped", data.RowsDropped),
		zap.Int("records", data.Len()))
	if data.Len() == 0 {
		logger.Warn("dataset has no records after date filtering; history will be empty")
	}
	observability.DatasetRows.Set(float64(data.Len()))
	observability.DatasetRowsDropped.Set(float64(data.RowsDropped))

	model, err := artifact.Load(cfg.ModelPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load model %s: %w", cfg.ModelPath, err)
	}
	logger.Info("model loaded",
		zap.String("path", cfg.ModelPath),
		zap.String("model_id", model.Metadata.ID),
		zap.Time("created_at", model.Metadata.CreatedAt),
		zap.Int("trees", len(model.Forest.Trees)),
		zap.Float64("mae", model.Metadata.Metrics.MAE),
		zap.Float64("r2", model.Metadata.Metrics.R2))
	observability.ModelTrees.Set(float64(len(model.Forest.Trees)))
	return data, model, nil
}
