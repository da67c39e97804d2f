package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kjstillabower/aqi-monitor/internal/artifact"
	"github.com/kjstillabower/aqi-monitor/internal/config"
	"github.com/kjstillabower/aqi-monitor/internal/dataset"
	"github.com/kjstillabower/aqi-monitor/internal/evaluate"
	"github.com/kjstillabower/aqi-monitor/internal/forest"
)

const datasetCSV = "Date,PM2.5,PM10,NO2,CO,AQI\n2021-01-01,50,80,20,500,2.1\n2021-01-02,60,90,25,600,2.8\n"

func writeFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func saveModel(t *testing.T, dir string) string {
	t.Helper()
	x := [][]float64{{10, 20, 5, 300}, {50, 80, 25, 600}, {120, 160, 40, 900}, {300, 350, 80, 2000}}
	y := []float64{1, 2, 3, 4}
	p := forest.DefaultParams()
	p.Trees = 3
	f, err := forest.Fit(context.Background(), x, y, p)
	if err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	path := filepath.Join(dir, "aqi_model.json.zst")
	m := artifact.New(f, p, 4, 0, evaluate.Metrics{}, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	if err := artifact.Save(path, m); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	return path
}

func TestLoadDependencies_DatasetFirst(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		DatasetPath: filepath.Join(dir, "missing.csv"),
		ModelPath:   writeFile(t, dir, "model.zst", []byte("not a model")),
		Location:    time.UTC,
	}
	core, logs := observer.New(zapcore.InfoLevel)

	_, _, err := loadDependencies(cfg, zap.New(core))
	if !errors.Is(err, dataset.ErrNotFound) {
		t.Fatalf("loadDependencies() error = %v, want dataset.ErrNotFound", err)
	}
	if errors.Is(err, artifact.ErrNotFound) {
		t.Errorf("error %v also matches artifact.ErrNotFound", err)
	}
	if n := logs.Len(); n != 0 {
		t.Errorf("logged %d entries before failing, want 0", n)
	}
}

func TestLoadDependencies_BadModel(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		DatasetPath: writeFile(t, dir, "aqi.csv", []byte(datasetCSV)),
		ModelPath:   writeFile(t, dir, "model.zst", []byte("not a model")),
		Location:    time.UTC,
	}
	core, logs := observer.New(zapcore.InfoLevel)

	_, _, err := loadDependencies(cfg, zap.New(core))
	if err == nil {
		t.Fatal("loadDependencies() error = nil, want model error")
	}
	if errors.Is(err, dataset.ErrNotFound) || errors.Is(err, artifact.ErrNotFound) {
		t.Errorf("error = %v, want a decode failure", err)
	}
	if logs.FilterMessage("dataset loaded").Len() != 1 || logs.FilterMessage("model loaded").Len() != 0 {
		t.Errorf("log messages = %v", logs.All())
	}
}

func TestLoadDependencies_MissingModel(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		DatasetPath: writeFile(t, dir, "aqi.csv", []byte(datasetCSV)),
		ModelPath:   filepath.Join(dir, "missing.zst"),
		Location:    time.UTC,
	}
	if _, _, err := loadDependencies(cfg, zap.NewNop()); !errors.Is(err, artifact.ErrNotFound) {
		t.Errorf("loadDependencies() error = %v, want artifact.ErrNotFound", err)
	}
}

func TestLoadDependencies_UsesConfiguredLocation(t *testing.T) {
	dir := t.TempDir()
	loc := time.FixedZone("UTC+10", 10*60*60)
	cfg := &config.Config{
		DatasetPath: writeFile(t, dir, "aqi.csv", []byte(datasetCSV)),
		ModelPath:   saveModel(t, dir),
		Location:    loc,
	}
	data, model, err := loadDependencies(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("loadDependencies() error = %v", err)
	}
	if data.Len() != 2 || model == nil {
		t.Fatalf("records = %d, model = %v", data.Len(), model)
	}
	want := time.Date(2021, 1, 1, 0, 0, 0, 0, loc)
	if !data.Records[0].Date.Equal(want) {
		t.Errorf("Records[0].Date = %v, want %v", data.Records[0].Date, want)
	}
}
