package aqi

import (
	"time"

	"github.com/kjstillabower/aqi-monitor/internal/models"
)

const (
	// ForecastDays is the number of future days produced per evaluation.
	ForecastDays = 7
	// ForecastDailyIncrement is added per day of offset.
	ForecastDailyIncrement = 0.2
)

// Forecast extrapolates prediction linearly: day i (1..ForecastDays) is the
// calendar day today+i with value prediction + i*ForecastDailyIncrement.
// Dates are midnight in today's location.
func Forecast(prediction float64, today time.Time) []models.ForecastPoint {
	y, m, d := today.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, today.Location())
	points := make([]models.ForecastPoint, 0, ForecastDays)
	for i := 1; i <= ForecastDays; i++ {
		points = append(points, models.ForecastPoint{
			Date:         start.AddDate(0, 0, i),
			PredictedAQI: prediction + float64(i)*ForecastDailyIncrement,
		})
	}
	return points
}

// Levels returns the reading as bars in feature order.
func Levels(r models.Reading) []models.PollutantLevel {
	values := r.Features()
	levels := make([]models.PollutantLevel, len(values))
	for i, v := range values {
		levels[i] = models.PollutantLevel{Pollutant: models.FeatureNames[i], Value: v}
	}
	return levels
}
