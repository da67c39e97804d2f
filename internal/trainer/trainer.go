// Package trainer fits the AQI regressor offline and persists the artifact.
package trainer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/aqi-monitor/internal/artifact"
	"github.com/kjstillabower/aqi-monitor/internal/dataset"
	"github.com/kjstillabower/aqi-monitor/internal/evaluate"
	"github.com/kjstillabower/aqi-monitor/internal/forest"
	"github.com/kjstillabower/aqi-monitor/internal/models"
)

const (
	// TestFraction of rows held out for evaluation.
	TestFraction = 0.2
	// SplitSeed makes the train/test partition reproducible.
	SplitSeed   = 42
	previewRows = 5
)

// Options configure one training run.
type Options struct {
	DatasetPath string
	ModelPath   string
	Params      forest.Params
	// Now is used for the artifact timestamp; defaults to time.Now.
	Now func() time.Time
}

// Result summarises a completed run.
type Result struct {
	Metrics   evaluate.Metrics
	TrainRows int
	TestRows  int
	Model     *artifact.Model
}

// Split partitions n row indices into train and test sets. The first
// ceil(testFraction*n) entries of a seeded permutation form the test set.
func Split(n int, testFraction float64, seed int64) (train, test []int, err error) {
	if testFraction <= 0 || testFraction >= 1 {
		return nil, nil, fmt.Errorf("test fraction must be in (0, 1), got %v", testFraction)
	}
	nTest := int(math.Ceil(testFraction * float64(n)))
	if n < 2 || nTest >= n {
		return nil, nil, fmt.Errorf("need at least 2 rows to split, got %d", n)
	}
	perm := rand.New(rand.NewSource(seed)).Perm(n)
	return perm[nTest:], perm[:nTest], nil
}

// Run loads the dataset, fits the forest, evaluates it on the held-out split
// and saves the artifact, overwriting any existing file. The artifact is saved
// whatever the metrics are.
func Run(ctx context.Context, opts Options, logger *zap.Logger) (*Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	logger.Info("loading dataset", zap.String("path", opts.DatasetPath))
	ts, err := dataset.LoadTraining(opts.DatasetPath)
	if err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}
	logger.Info("dataset loaded", zap.Int("rows", ts.Len()))
	logPreview(logger, ts)

	trainIdx, testIdx, err := Split(ts.Len(), TestFraction, SplitSeed)
	if err != nil {
		return nil, fmt.Errorf("split dataset: %w", err)
	}
	xTrain, yTrain := subset(ts, trainIdx)
	xTest, yTest := subset(ts, testIdx)

	logger.Info("training model",
		zap.Int("train_rows", len(yTrain)),
		zap.Int("test_rows", len(yTest)),
		zap.Int("trees", opts.Params.Trees),
		zap.Int("max_depth", opts.Params.MaxDepth))
	start := time.Now()
	f, err := forest.Fit(ctx, xTrain, yTrain, opts.Params)
	if err != nil {
		return nil, fmt.Errorf("fit model: %w", err)
	}
	logger.Info("model trained", zap.Duration("duration", time.Since(start)))

	predicted, err := f.PredictBatch(xTest)
	if err != nil {
		return nil, fmt.Errorf("predict test set: %w", err)
	}
	metrics, err := evaluate.Regression(yTest, predicted)
	if err != nil {
		return nil, fmt.Errorf("evaluate: %w", err)
	}

	m := artifact.New(f, opts.Params, len(yTrain), len(yTest), metrics, now())
	if err := artifact.Save(opts.ModelPath, m); err != nil {
		return nil, fmt.Errorf("save model: %w", err)
	}
	logger.Info("model saved", zap.String("path", opts.ModelPath), zap.String("model_id", m.Metadata.ID))

	return &Result{Metrics: metrics, TrainRows: len(yTrain), TestRows: len(yTest), Model: m}, nil
}

func subset(ts *dataset.TrainingSet, idx []int) ([][]float64, []float64) {
	x := make([][]float64, len(idx))
	y := make([]float64, len(idx))
	for i, j := range idx {
		x[i] = ts.X[j]
		y[i] = ts.Y[j]
	}
	return x, y
}

func logPreview(logger *zap.Logger, ts *dataset.TrainingSet) {
	n := ts.Len()
	if n > previewRows {
		n = previewRows
	}
	for i := 0; i < n; i++ {
		fields := make([]zap.Field, 0, len(models.FeatureNames)+2)
		fields = append(fields, zap.Int("row", i))
		for j, name := range models.FeatureNames {
			fields = append(fields, zap.Float64(name, ts.X[i][j]))
		}
		fields = append(fields, zap.Float64(models.TargetName, ts.Y[i]))
		logger.Info("preview", fields...)
	}
}

// IsInputError reports whether err came from a missing or malformed dataset.
func IsInputError(err error) bool {
	return errors.Is(err, dataset.ErrNotFound) || errors.Is(err, dataset.ErrMissingColumn)
}
