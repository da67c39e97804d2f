//go:build integration
// +build integration

package testhelpers

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kjstillabower/aqi-monitor/internal/artifact"
	"github.com/kjstillabower/aqi-monitor/internal/dataset"
	"github.com/kjstillabower/aqi-monitor/internal/service"
)

// IntegrationTestConfig points at a real dataset and a model produced by the trainer.
type IntegrationTestConfig struct {
	DatasetPath string
	ModelPath   string
}

// GetIntegrationConfig reads AQI_BASE_DIR and skips the test when it or
// either file is missing.
func GetIntegrationConfig(t *testing.T) IntegrationTestConfig {
	t.Helper()
	base := os.Getenv("AQI_BASE_DIR")
	if base == "" {
		t.Skip("AQI_BASE_DIR not set, skipping integration test")
	}
	cfg := IntegrationTestConfig{
		DatasetPath: filepath.Join(base, "data", "aqi_5_years.csv"),
		ModelPath:   filepath.Join(base, "aqi_model.json.zst"),
	}
	for _, p := range []string{cfg.DatasetPath, cfg.ModelPath} {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			t.Skipf("%s not found, run the trainer first", p)
		}
	}
	return cfg
}

// SetupIntegrationService loads the dataset and model the way the dashboard does.
func SetupIntegrationService(t *testing.T, cfg IntegrationTestConfig) *service.DashboardService {
	t.Helper()
	data, err := dataset.LoadIn(cfg.DatasetPath, time.Local)
	if err != nil {
		t.Fatalf("dataset.LoadIn() error = %v", err)
	}
	model, err := artifact.Load(cfg.ModelPath)
	if err != nil {
		t.Fatalf("artifact.Load() error = %v", err)
	}
	return service.NewDashboardService(data, model, time.Local)
}
