package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/aqi-monitor/internal/aqi"
	"github.com/kjstillabower/aqi-monitor/internal/dataset"
	"github.com/kjstillabower/aqi-monitor/internal/models"
	"github.com/kjstillabower/aqi-monitor/internal/observability"
	"github.com/kjstillabower/aqi-monitor/internal/validation"
)

// RecentRows is the number of records shown in the history table.
const RecentRows = 20

// ErrNonFinitePrediction is returned when the model yields NaN or ±Inf.
var ErrNonFinitePrediction = errors.New("model returned a non-finite prediction")

// Predictor maps a feature vector in models.FeatureNames order to AQI.
type Predictor interface {
	Predict(features []float64) (float64, error)
}

// DashboardService computes one dashboard evaluation per call. The dataset and
// predictor are loaded once and only read afterward, so a single
// DashboardService is safe for concurrent use.
type DashboardService struct {
	data  *dataset.Dataset
	model Predictor
	loc   *time.Location
	now   func() time.Time
}

// NewDashboardService returns a DashboardService over a loaded dataset and model.
// loc decides which calendar day is "today" for the forecast; nil means time.Local.
func NewDashboardService(data *dataset.Dataset, model Predictor, loc *time.Location) *DashboardService {
	if loc == nil {
		loc = time.Local
	}
	if data == nil {
		data = &dataset.Dataset{}
	}
	return &DashboardService{data: data, model: model, loc: loc, now: time.Now}
}

// WithClock replaces the time source. Used by tests to pin "today".
func (s *DashboardService) WithClock(now func() time.Time) *DashboardService {
	s.now = now
	return s
}

// History returns every record in file order for the history chart.
func (s *DashboardService) History() []models.Record {
	return s.data.Records
}

// Predict validates r and returns the model output rounded to 2 decimals.
func (s *DashboardService) Predict(ctx context.Context, r models.Reading) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := validation.ValidateReading(r); err != nil {
		return 0, err
	}
	start := time.Now()
	raw, err := s.model.Predict(r.Features())
	observability.PredictionDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return 0, fmt.Errorf("predict: %w", err)
	}
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		return 0, ErrNonFinitePrediction
	}
	return aqi.Round2(raw), nil
}

// Evaluate runs the full pass for one reading: predict, classify, forecast,
// current levels and the recent-history table. Nothing is cached between calls.
func (s *DashboardService) Evaluate(ctx context.Context, r models.Reading) (models.Evaluation, error) {
	logger := observability.LoggerFromContext(ctx)

	prediction, err := s.Predict(ctx, r)
	if err != nil {
		if !errors.Is(err, validation.ErrInvalidReading) {
			observability.RecordEvaluation("", err)
			logger.Warn("evaluation failed", zap.Error(err))
		}
		return models.Evaluation{}, err
	}

	severity := aqi.Classify(prediction)
	now := s.now().In(s.loc)
	eval := models.Evaluation{
		Input:       r,
		Prediction:  prediction,
		Severity:    severity.String(),
		AlertLevel:  severity.AlertLevel(),
		Forecast:    aqi.Forecast(prediction, now),
		Levels:      aqi.Levels(r),
		Recent:      s.data.Recent(RecentRows),
		HistoryRows: s.data.Len(),
		Timestamp:   now,
	}
	observability.RecordEvaluation(severity.Slug(), nil)
	logger.Debug("evaluation served",
		zap.Float64("prediction", prediction),
		zap.String("severity", severity.Slug()))
	return eval, nil
}

// Project predicts r and builds only the forecast and current levels, for the
// chart endpoints. It records no evaluation or severity metrics.
func (s *DashboardService) Project(ctx context.Context, r models.Reading) (models.Evaluation, error) {
	prediction, err := s.Predict(ctx, r)
	if err != nil {
		return models.Evaluation{}, err
	}
	severity := aqi.Classify(prediction)
	now := s.now().In(s.loc)
	return models.Evaluation{
		Input:       r,
		Prediction:  prediction,
		Severity:    severity.String(),
		AlertLevel:  severity.AlertLevel(),
		Forecast:    aqi.Forecast(prediction, now),
		Levels:      aqi.Levels(r),
		HistoryRows: s.data.Len(),
		Timestamp:   now,
	}, nil
}
