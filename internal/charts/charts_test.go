package charts

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/kjstillabower/aqi-monitor/internal/aqi"
	"github.com/kjstillabower/aqi-monitor/internal/models"
)

func sampleHistory() []models.Record {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	recs := make([]models.Record, 10)
	for i := range recs {
		recs[i] = models.Record{Date: start.AddDate(0, 0, i), AQI: float64(i%5 + 1)}
	}
	recs[3].AQI = math.NaN()
	return recs
}

func sampleEvaluation() models.Evaluation {
	r := models.DefaultReading()
	return models.Evaluation{
		Input:    r,
		Forecast: aqi.Forecast(2.5, time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)),
		Levels:   aqi.Levels(r),
	}
}

func TestRender_AllCharts(t *testing.T) {
	for _, name := range Names {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := Render(&buf, name, sampleHistory(), sampleEvaluation()); err != nil {
				t.Fatalf("Render(%s) error = %v", name, err)
			}
			if !strings.Contains(buf.String(), "<svg") {
				t.Errorf("Render(%s) output is not SVG: %.80q", name, buf.String())
			}
		})
	}
}

func TestRender_UnknownChart(t *testing.T) {
	err := Render(&bytes.Buffer{}, "pie", nil, models.Evaluation{})
	if !errors.Is(err, ErrUnknownChart) {
		t.Errorf("Render(pie) error = %v, want ErrUnknownChart", err)
	}
}

func TestHistoryChart_EmptyAndAllNaN(t *testing.T) {
	cases := map[string][]models.Record{
		"empty":   nil,
		"all NaN": {{Date: time.Now(), AQI: math.NaN()}},
	}
	for name, recs := range cases {
		t.Run(name, func(t *testing.T) {
			p, err := HistoryChart(recs)
			if err != nil {
				t.Fatalf("HistoryChart() error = %v", err)
			}
			var buf bytes.Buffer
			if err := WriteSVG(&buf, p); err != nil {
				t.Fatalf("WriteSVG() error = %v", err)
			}
			if !strings.Contains(buf.String(), "<svg") {
				t.Errorf("output is not SVG")
			}
		})
	}
}

func TestLevelsChart_Titles(t *testing.T) {
	p, err := LevelsChart(aqi.Levels(models.DefaultReading()))
	if err != nil {
		t.Fatalf("LevelsChart() error = %v", err)
	}
	if p.Title.Text != "Current Pollution Levels" {
		t.Errorf("Title = %q", p.Title.Text)
	}
	var buf bytes.Buffer
	if err := WriteSVG(&buf, p); err != nil {
		t.Fatalf("WriteSVG() error = %v", err)
	}
	for _, name := range models.FeatureNames {
		if !strings.Contains(buf.String(), name) {
			t.Errorf("SVG missing label %q", name)
		}
	}
}
