// Package charts renders the dashboard's history, forecast and current-levels
// charts as SVG.
package charts

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/kjstillabower/aqi-monitor/internal/models"
)

// Chart names as used in /charts/{name}.svg and metric labels.
const (
	History  = "history"
	Forecast = "forecast"
	Levels   = "levels"
)

// Names lists every chart.
var Names = []string{History, Forecast, Levels}

// ErrUnknownChart is returned for a chart name not in Names.
var ErrUnknownChart = errors.New("unknown chart")

const (
	width      = 8 * vg.Inch
	height     = 3.5 * vg.Inch
	dateFormat = "2006-01-02"
)

var (
	historyColor  = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	forecastColor = color.RGBA{R: 255, G: 127, B: 14, A: 255}
	levelsColor   = color.RGBA{R: 44, G: 160, B: 44, A: 255}
)

// HistoryChart plots AQI against date for every record, in file order.
// Records with a NaN AQI are left out.
func HistoryChart(recs []models.Record) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "AQI History"
	p.X.Label.Text = "Date"
	p.Y.Label.Text = "AQI"
	p.X.Tick.Marker = plot.TimeTicks{Format: dateFormat}
	p.Add(plotter.NewGrid())

	pts := make(plotter.XYs, 0, len(recs))
	for _, r := range recs {
		if math.IsNaN(r.AQI) || math.IsInf(r.AQI, 0) {
			continue
		}
		pts = append(pts, plotter.XY{X: float64(r.Date.Unix()), Y: r.AQI})
	}
	if len(pts) == 0 {
		return p, nil
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, fmt.Errorf("history line: %w", err)
	}
	line.LineStyle.Color = historyColor
	line.LineStyle.Width = vg.Points(1)
	p.Add(line)
	return p, nil
}

// ForecastChart plots the forecast as a line with a marker per day.
func ForecastChart(points []models.ForecastPoint) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "7-Day AQI Forecast"
	p.X.Label.Text = "Date"
	p.Y.Label.Text = "Predicted AQI"
	p.X.Tick.Marker = plot.TimeTicks{Format: dateFormat}
	p.Add(plotter.NewGrid())

	if len(points) == 0 {
		return p, nil
	}
	pts := make(plotter.XYs, len(points))
	for i, fp := range points {
		pts[i] = plotter.XY{X: float64(fp.Date.Unix()), Y: fp.PredictedAQI}
	}
	line, scatter, err := plotter.NewLinePoints(pts)
	if err != nil {
		return nil, fmt.Errorf("forecast line: %w", err)
	}
	line.LineStyle.Color = forecastColor
	line.LineStyle.Width = vg.Points(2)
	scatter.GlyphStyle.Color = forecastColor
	scatter.GlyphStyle.Shape = draw.CircleGlyph{}
	scatter.GlyphStyle.Radius = vg.Points(3)
	p.Add(line, scatter)
	return p, nil
}

// LevelsChart draws one bar per pollutant.
func LevelsChart(levels []models.PollutantLevel) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Current Pollution Levels"
	p.X.Label.Text = "Pollutant"
	p.Y.Label.Text = "Concentration"

	if len(levels) == 0 {
		return p, nil
	}
	values := make(plotter.Values, len(levels))
	names := make([]string, len(levels))
	for i, l := range levels {
		values[i] = l.Value
		names[i] = l.Pollutant
	}
	bars, err := plotter.NewBarChart(values, vg.Points(40))
	if err != nil {
		return nil, fmt.Errorf("levels bars: %w", err)
	}
	bars.Color = levelsColor
	bars.LineStyle.Width = 0
	p.Add(bars)
	p.NominalX(names...)
	return p, nil
}

// WriteSVG encodes p as SVG to w.
func WriteSVG(w io.Writer, p *plot.Plot) error {
	wt, err := p.WriterTo(width, height, "svg")
	if err != nil {
		return fmt.Errorf("svg canvas: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("write svg: %w", err)
	}
	return nil
}

// Render builds the named chart from an evaluation and history, then writes it as SVG.
func Render(w io.Writer, name string, history []models.Record, eval models.Evaluation) error {
	var (
		p   *plot.Plot
		err error
	)
	switch name {
	case History:
		p, err = HistoryChart(history)
	case Forecast:
		p, err = ForecastChart(eval.Forecast)
	case Levels:
		p, err = LevelsChart(eval.Levels)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownChart, name)
	}
	if err != nil {
		return err
	}
	return WriteSVG(w, p)
}
