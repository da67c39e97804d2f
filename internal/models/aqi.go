package models

import (
	"encoding/json"
	"math"
	"time"
)

// Feature names in the order the model consumes them. Trainer and predictor
// both build vectors through FeatureNames; the artifact embeds a copy that is
// checked on load.
var FeatureNames = []string{"PM2.5", "PM10", "NO2", "CO"}

// TargetName is the regression target column.
const TargetName = "AQI"

// Record is one historical observation.
type Record struct {
	Date time.Time `json:"date"`
	PM25 float64   `json:"pm25"`
	PM10 float64   `json:"pm10"`
	NO2  float64   `json:"no2"`
	CO   float64   `json:"co"`
	AQI  float64   `json:"aqi"`
}

// Features returns the record's feature vector in FeatureNames order.
func (r Record) Features() []float64 {
	return []float64{r.PM25, r.PM10, r.NO2, r.CO}
}

// MarshalJSON writes unparsed (NaN) measurements as null.
func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Date time.Time `json:"date"`
		PM25 *float64  `json:"pm25"`
		PM10 *float64  `json:"pm10"`
		NO2  *float64  `json:"no2"`
		CO   *float64  `json:"co"`
		AQI  *float64  `json:"aqi"`
	}{r.Date, finite(r.PM25), finite(r.PM10), finite(r.NO2), finite(r.CO), finite(r.AQI)})
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// Reading is a set of current pollutant concentrations entered by the user.
// Bounds mirror the dashboard input widgets.
type Reading struct {
	PM25 float64 `json:"pm25" validate:"gte=0,lte=500"`
	PM10 float64 `json:"pm10" validate:"gte=0,lte=500"`
	NO2  float64 `json:"no2" validate:"gte=0,lte=300"`
	CO   float64 `json:"co" validate:"gte=0,lte=30000"`
}

// DefaultReading is the dashboard's initial input.
func DefaultReading() Reading {
	return Reading{PM25: 55.0, PM10: 80.0, NO2: 25.0, CO: 600.0}
}

// Features returns the reading's feature vector in FeatureNames order.
func (r Reading) Features() []float64 {
	return []float64{r.PM25, r.PM10, r.NO2, r.CO}
}

// ForecastPoint is one day of the linear forecast.
type ForecastPoint struct {
	Date         time.Time `json:"date"`
	PredictedAQI float64   `json:"predictedAqi"`
}

// PollutantLevel is one bar of the current-levels chart.
type PollutantLevel struct {
	Pollutant string  `json:"pollutant"`
	Value     float64 `json:"value"`
}

// Evaluation is the result of one dashboard pass. It is request-scoped and never persisted.
type Evaluation struct {
	Input       Reading          `json:"input"`
	Prediction  float64          `json:"prediction"`
	Severity    string           `json:"severity"`
	AlertLevel  string           `json:"alertLevel"`
	Forecast    []ForecastPoint  `json:"forecast"`
	Levels      []PollutantLevel `json:"levels"`
	Recent      []Record         `json:"recent"`
	HistoryRows int              `json:"historyRows"`
	Timestamp   time.Time        `json:"timestamp"`
}
