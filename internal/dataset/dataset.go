// Package dataset reads the historical AQI table.
//
// Load is the dashboard path: it needs a date column and tolerates bad cells.
// LoadTraining is the trainer path: it ignores dates and requires every
// feature and the target to be numeric.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/kjstillabower/aqi-monitor/internal/models"
)

var (
	// ErrNotFound is returned when the dataset file does not exist.
	ErrNotFound = errors.New("dataset not found")
	// ErrNoDateColumn is returned when no header matches DateColumnCandidates.
	ErrNoDateColumn = errors.New("no date column found in dataset")
	// ErrMissingColumn is returned when a required column is absent.
	ErrMissingColumn = errors.New("missing column")
)

// DateColumnCandidates are matched case-insensitively against the header.
var DateColumnCandidates = []string{"date", "datetime", "timestamp"}

// Dataset is the ordered set of records in file order.
type Dataset struct {
	Records []models.Record
	// RowsRead counts data rows before date filtering.
	RowsRead int
	// RowsDropped counts rows discarded for an unparseable date.
	RowsDropped int
	// DateColumn is the header that was detected as the date.
	DateColumn string
}

// Len returns the number of usable records.
func (d *Dataset) Len() int {
	return len(d.Records)
}

// Recent returns up to n records sorted by date, newest first.
// Records with equal dates keep their file order.
func (d *Dataset) Recent(n int) []models.Record {
	sorted := make([]models.Record, len(d.Records))
	copy(sorted, d.Records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.After(sorted[j].Date)
	})
	if n >= 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// Load reads the dataset at path for display and history. Dates without a
// zone are read as UTC.
func Load(path string) (*Dataset, error) {
	return LoadIn(path, time.UTC)
}

// LoadIn is Load with zone-less dates read in loc. nil means UTC.
func LoadIn(path string, loc *time.Location) (*Dataset, error) {
	if loc == nil {
		loc = time.UTC
	}
	header, rows, err := readCSV(path)
	if err != nil {
		return nil, err
	}
	return parse(header, rows, loc)
}

func parse(header []string, rows [][]string, loc *time.Location) (*Dataset, error) {
	dateIdx := detectDateColumn(header)
	if dateIdx < 0 {
		return nil, ErrNoDateColumn
	}
	cols, err := resolveColumns(header, models.TargetName)
	if err != nil {
		return nil, err
	}
	aqiIdx := cols[models.TargetName]
	featIdx := optionalColumns(header, models.FeatureNames)

	ds := &Dataset{RowsRead: len(rows), DateColumn: header[dateIdx]}
	ds.Records = make([]models.Record, 0, len(rows))
	for _, row := range rows {
		date, ok := parseDate(cell(row, dateIdx), loc)
		if !ok {
			ds.RowsDropped++
			continue
		}
		ds.Records = append(ds.Records, models.Record{
			Date: date,
			PM25: lenientFloat(cell(row, featIdx[0])),
			PM10: lenientFloat(cell(row, featIdx[1])),
			NO2:  lenientFloat(cell(row, featIdx[2])),
			CO:   lenientFloat(cell(row, featIdx[3])),
			AQI:  lenientFloat(cell(row, aqiIdx)),
		})
	}
	return ds, nil
}

// TrainingSet holds feature rows and targets in file order.
type TrainingSet struct {
	X [][]float64
	Y []float64
}

// Len returns the number of samples.
func (t *TrainingSet) Len() int {
	return len(t.Y)
}

// LoadTraining reads the feature columns and target at path. Every required
// cell must parse as a number.
func LoadTraining(path string) (*TrainingSet, error) {
	header, rows, err := readCSV(path)
	if err != nil {
		return nil, err
	}
	return parseTraining(header, rows)
}

func parseTraining(header []string, rows [][]string) (*TrainingSet, error) {
	required := append(append([]string{}, models.FeatureNames...), models.TargetName)
	cols, err := resolveColumns(header, required...)
	if err != nil {
		return nil, err
	}
	ts := &TrainingSet{
		X: make([][]float64, 0, len(rows)),
		Y: make([]float64, 0, len(rows)),
	}
	for i, row := range rows {
		x := make([]float64, len(models.FeatureNames))
		for j, name := range models.FeatureNames {
			v, err := strictFloat(cell(row, cols[name]))
			if err != nil {
				return nil, fmt.Errorf("row %d column %s: %w", i+2, name, err)
			}
			x[j] = v
		}
		y, err := strictFloat(cell(row, cols[models.TargetName]))
		if err != nil {
			return nil, fmt.Errorf("row %d column %s: %w", i+2, models.TargetName, err)
		}
		ts.X = append(ts.X, x)
		ts.Y = append(ts.Y, y)
	}
	return ts, nil
}

func readCSV(path string) ([]string, [][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()
	return decode(f)
}

func decode(r io.Reader) ([]string, [][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, fmt.Errorf("parse dataset: empty file")
		}
		return nil, nil, fmt.Errorf("parse dataset header: %w", err)
	}
	for i, h := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("parse dataset: %w", err)
	}
	return header, rows, nil
}

func detectDateColumn(header []string) int {
	for i, h := range header {
		for _, c := range DateColumnCandidates {
			if strings.EqualFold(h, c) {
				return i
			}
		}
	}
	return -1
}

// resolveColumns maps each name to its header index; names match exactly.
func resolveColumns(header []string, names ...string) (map[string]int, error) {
	idx := make(map[string]int, len(names))
	for _, name := range names {
		found := -1
		for i, h := range header {
			if h == name {
				found = i
				break
			}
		}
		if found < 0 {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, name)
		}
		idx[name] = found
	}
	return idx, nil
}

// optionalColumns returns the header index per name, -1 when absent.
func optionalColumns(header []string, names []string) []int {
	out := make([]int, len(names))
	for i, name := range names {
		out[i] = -1
		for j, h := range header {
			if h == name {
				out[i] = j
				break
			}
		}
	}
	return out
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func parseDate(s string, loc *time.Location) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := dateparse.ParseIn(s, loc); err == nil {
		return t, true
	}
	for _, layout := range hyphenLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// hyphenLayouts are tried in order when dateparse rejects a value; month
// first wins when both readings are valid.
var hyphenLayouts = []string{
	"01-02-2006",
	"01-02-2006 15:04",
	"01-02-2006 15:04:05",
	"02-01-2006",
	"02-01-2006 15:04",
	"02-01-2006 15:04:05",
}

func lenientFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

func strictFloat(s string) (float64, error) {
	if s == "" {
		return 0, fmt.Errorf("empty value")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("not a finite number: %q", s)
	}
	return v, nil
}
