// Package evaluate computes held-out regression metrics.
package evaluate

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Metrics are the diagnostics reported after training. They never gate the artifact.
type Metrics struct {
	MAE float64 `json:"mae"`
	R2  float64 `json:"r2"`
}

// Regression returns MAE and R² of predicted against actual.
// When actual has zero variance R² is 1 for an exact fit and 0 otherwise, so
// the result is always finite.
func Regression(actual, predicted []float64) (Metrics, error) {
	if len(actual) == 0 {
		return Metrics{}, errors.New("evaluate: no samples")
	}
	if len(actual) != len(predicted) {
		return Metrics{}, fmt.Errorf("evaluate: %d actual values but %d predictions", len(actual), len(predicted))
	}
	m := Metrics{MAE: floats.Distance(actual, predicted, 1) / float64(len(actual))}
	if len(actual) == 1 || stat.Variance(actual, nil) == 0 {
		if m.MAE == 0 {
			m.R2 = 1
		}
		return m, nil
	}
	m.R2 = stat.RSquaredFrom(predicted, actual, nil)
	return m, nil
}
