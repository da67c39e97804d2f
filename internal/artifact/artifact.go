// Package artifact persists the fitted model together with the feature
// schema it was trained on. Files are zstd-compressed JSON.
package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"github.com/kjstillabower/aqi-monitor/internal/evaluate"
	"github.com/kjstillabower/aqi-monitor/internal/forest"
	"github.com/kjstillabower/aqi-monitor/internal/models"
)

// FormatVersion is bumped when the encoded layout changes.
const FormatVersion = 1

var (
	// ErrNotFound is returned when the artifact file does not exist.
	ErrNotFound = errors.New("model artifact not found")
	// ErrSchemaMismatch is returned when the artifact was trained on different features.
	ErrSchemaMismatch = errors.New("model feature schema mismatch")
)

// Metadata describes how the model was produced.
type Metadata struct {
	ID        string           `json:"id"`
	Format    int              `json:"format"`
	CreatedAt time.Time        `json:"createdAt"`
	Features  []string         `json:"features"`
	Target    string           `json:"target"`
	Params    forest.Params    `json:"params"`
	TrainRows int              `json:"trainRows"`
	TestRows  int              `json:"testRows"`
	Metrics   evaluate.Metrics `json:"metrics"`
}

// Model is a loaded artifact. It is read-only after Load.
type Model struct {
	Metadata Metadata       `json:"metadata"`
	Forest   *forest.Forest `json:"forest"`
}

// New wraps a fitted forest with metadata for the current feature schema.
func New(f *forest.Forest, params forest.Params, trainRows, testRows int, m evaluate.Metrics, now time.Time) *Model {
	return &Model{
		Metadata: Metadata{
			ID:        uuid.New().String(),
			Format:    FormatVersion,
			CreatedAt: now.UTC(),
			Features:  append([]string(nil), models.FeatureNames...),
			Target:    models.TargetName,
			Params:    params,
			TrainRows: trainRows,
			TestRows:  testRows,
			Metrics:   m,
		},
		Forest: f,
	}
}

// Predict runs inference on a feature vector in models.FeatureNames order.
func (m *Model) Predict(features []float64) (float64, error) {
	return m.Forest.Predict(features)
}

// Save writes the model to path, replacing any existing file atomically.
func Save(path string, m *Model) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp artifact: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := Encode(tmp, m); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp artifact: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace artifact: %w", err)
	}
	return nil
}

// Encode writes m as zstd-compressed JSON.
func Encode(w io.Writer, m *Model) error {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return fmt.Errorf("create zstd encoder: %w", err)
	}
	if err := json.NewEncoder(enc).Encode(m); err != nil {
		enc.Close()
		return fmt.Errorf("encode artifact: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("flush artifact: %w", err)
	}
	return nil
}

// Load reads and validates the artifact at path.
func Load(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode reads a zstd-compressed JSON model and validates it against the
// current feature schema.
func Decode(r io.Reader) (*Model, error) {
	dec, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	defer dec.Close()

	var m Model
	if err := json.NewDecoder(dec).Decode(&m); err != nil {
		return nil, fmt.Errorf("decode artifact: %w", err)
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Model) validate() error {
	if m.Metadata.Format != FormatVersion {
		return fmt.Errorf("unsupported artifact format %d, want %d", m.Metadata.Format, FormatVersion)
	}
	if !sameSchema(m.Metadata.Features, models.FeatureNames) {
		return fmt.Errorf("%w: artifact has %v, want %v", ErrSchemaMismatch, m.Metadata.Features, models.FeatureNames)
	}
	if m.Metadata.Target != models.TargetName {
		return fmt.Errorf("%w: artifact target %q, want %q", ErrSchemaMismatch, m.Metadata.Target, models.TargetName)
	}
	if err := m.Forest.Validate(); err != nil {
		return fmt.Errorf("invalid artifact: %w", err)
	}
	if m.Forest.NumFeatures != len(models.FeatureNames) {
		return fmt.Errorf("%w: forest expects %d features, want %d", ErrSchemaMismatch, m.Forest.NumFeatures, len(models.FeatureNames))
	}
	return nil
}

func sameSchema(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
