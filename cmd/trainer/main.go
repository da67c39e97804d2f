package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/kjstillabower/aqi-monitor/internal/config"
	"github.com/kjstillabower/aqi-monitor/internal/forest"
	"github.com/kjstillabower/aqi-monitor/internal/observability"
	"github.com/kjstillabower/aqi-monitor/internal/trainer"
)

func main() {
	logger, err := observability.NewCLILogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = observability.Flush(context.Background(), logger) }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := trainer.Run(ctx, trainer.Options{
		DatasetPath: cfg.DatasetPath,
		ModelPath:   cfg.ModelPath,
		Params:      forest.DefaultParams(),
	}, logger)
	if err != nil {
		if trainer.IsInputError(err) {
			logger.Fatal("dataset unusable", zap.String("path", cfg.DatasetPath), zap.Error(err))
		}
		logger.Fatal("training failed", zap.Error(err))
	}

	fmt.Printf("MAE: %.2f\n", res.Metrics.MAE)
	fmt.Printf("R2 Score: %.2f\n", res.Metrics.R2)
}
