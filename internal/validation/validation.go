package validation

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/kjstillabower/aqi-monitor/internal/models"
)

// ErrInvalidReading is wrapped by every error returned from this package.
var ErrInvalidReading = errors.New("invalid reading")

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// queryParams maps query keys to Reading fields, in feature order.
var queryParams = []struct {
	key string
	set func(*models.Reading, float64)
}{
	{"pm25", func(r *models.Reading, v float64) { r.PM25 = v }},
	{"pm10", func(r *models.Reading, v float64) { r.PM10 = v }},
	{"no2", func(r *models.Reading, v float64) { r.NO2 = v }},
	{"co", func(r *models.Reading, v float64) { r.CO = v }},
}

// ParseReading builds a Reading from query values. Absent or blank keys keep
// the dashboard defaults.
func ParseReading(q url.Values) (models.Reading, error) {
	r := models.DefaultReading()
	for _, p := range queryParams {
		raw := strings.TrimSpace(q.Get(p.key))
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return models.Reading{}, fmt.Errorf("%w: %s is not a number", ErrInvalidReading, p.key)
		}
		p.set(&r, v)
	}
	if err := ValidateReading(r); err != nil {
		return models.Reading{}, err
	}
	return r, nil
}

// ValidateReading enforces the input widget bounds.
func ValidateReading(r models.Reading) error {
	for i, v := range r.Features() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s must be a finite number", ErrInvalidReading, queryParams[i].key)
		}
	}
	err := validate.Struct(r)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("%w: %v", ErrInvalidReading, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return fmt.Errorf("%w: %s", ErrInvalidReading, strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
	}
}

// Bounds is the [min, max] range accepted for one input.
type Bounds struct {
	Key string
	Min float64
	Max float64
}

// InputBounds returns the accepted range per query key, read from the
// Reading validate tags so the HTML widgets and the API agree.
func InputBounds() []Bounds {
	t := reflect.TypeOf(models.Reading{})
	out := make([]Bounds, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		b := Bounds{Key: strings.SplitN(f.Tag.Get("json"), ",", 2)[0]}
		for _, rule := range strings.Split(f.Tag.Get("validate"), ",") {
			k, v, ok := strings.Cut(rule, "=")
			if !ok {
				continue
			}
			n, err := strconv.ParseFloat(v, 64)
			if err != nil {
				continue
			}
			switch k {
			case "gte":
				b.Min = n
			case "lte":
				b.Max = n
			}
		}
		out = append(out, b)
	}
	return out
}
