// Package aqi holds the pure per-evaluation steps of the dashboard: rounding
// the model output, classifying it into a severity band, and extrapolating the
// 7-day forecast.
package aqi

import "math"

// Severity is an ordered health-risk band.
type Severity int

const (
	SeverityGood Severity = iota
	SeverityFair
	SeverityModerate
	SeverityPoor
	SeverityVeryPoor
)

// String returns the band's display label.
func (s Severity) String() string {
	switch s {
	case SeverityGood:
		return "GOOD"
	case SeverityFair:
		return "FAIR"
	case SeverityModerate:
		return "MODERATE"
	case SeverityPoor:
		return "POOR"
	case SeverityVeryPoor:
		return "VERY POOR / HEALTH EMERGENCY"
	default:
		return "UNKNOWN"
	}
}

// AlertLevel is the banner style used to render the band.
func (s Severity) AlertLevel() string {
	switch s {
	case SeverityGood:
		return "success"
	case SeverityFair:
		return "info"
	case SeverityModerate:
		return "warning"
	default:
		return "error"
	}
}

// Slug is a stable lowercase label for metrics.
func (s Severity) Slug() string {
	switch s {
	case SeverityGood:
		return "good"
	case SeverityFair:
		return "fair"
	case SeverityModerate:
		return "moderate"
	case SeverityPoor:
		return "poor"
	case SeverityVeryPoor:
		return "very_poor"
	default:
		return "unknown"
	}
}

// Severities lists every band in ascending order.
var Severities = []Severity{SeverityGood, SeverityFair, SeverityModerate, SeverityPoor, SeverityVeryPoor}

// upper bounds are inclusive; anything above the last one is SeverityVeryPoor.
var bandUpperBounds = []struct {
	max      float64
	severity Severity
}{
	{1.5, SeverityGood},
	{2.5, SeverityFair},
	{3.5, SeverityModerate},
	{4.5, SeverityPoor},
}

// Classify maps a rounded prediction to its band, first match wins.
// NaN has no ordering and falls through to SeverityVeryPoor.
func Classify(prediction float64) Severity {
	for _, b := range bandUpperBounds {
		if prediction <= b.max {
			return b.severity
		}
	}
	return SeverityVeryPoor
}

// Round2 rounds half away from zero to 2 decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
