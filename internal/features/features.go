// Package features turns request fields into the ordered numeric vectors the
// trained models expect. Column order is part of the model contract.
package features

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dmitrijs2005/windbreaker/internal/common"
	"github.com/dmitrijs2005/windbreaker/internal/encoders"
)

// Encoder feature names, as exported from training.
const (
	DelayAirline     = "Marketing_Airline_Network"
	DelayOrigin      = "OriginCityName"
	DelayDestination = "DestCityName"

	PriceAirline     = "airline"
	PriceOrigin      = "origin"
	PriceDestination = "destination"
)

// DelayColumns is the delay model's column order.
var DelayColumns = []string{
	"DepHour", "Month_Sin", "Month_Cos", "Day_Sin", "Day_Cos",
	DelayAirline, DelayOrigin, DelayDestination,
}

// PriceColumns is the price model's column order.
var PriceColumns = []string{PriceAirline, PriceOrigin, PriceDestination, "duration_mins"}

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

type DelayInput struct {
	Airline     string
	Origin      string
	Destination string
	Date        string // YYYY-MM-DD
	Time        string // HH:MM, 24h
}

type PriceInput struct {
	Airline      string
	Origin       string // optional
	Destination  string
	DurationMins float64
}

// BuildDelay returns the delay vector for in. Malformed date or time yields
// common.ErrValidation.
func BuildDelay(in DelayInput, reg *encoders.Registry) ([]float64, error) {
	date, err := time.Parse(dateLayout, strings.TrimSpace(in.Date))
	if err != nil {
		return nil, fmt.Errorf("%w: date must be YYYY-MM-DD, got %q", common.ErrValidation, in.Date)
	}
	clock, err := time.Parse(timeLayout, strings.TrimSpace(in.Time))
	if err != nil {
		return nil, fmt.Errorf("%w: time must be HH:MM, got %q", common.ErrValidation, in.Time)
	}

	monthSin, monthCos := Cyclical(float64(date.Month()), 12)
	daySin, dayCos := Cyclical(float64(DayOfWeek(date)), 7)

	return []float64{
		float64(clock.Hour()),
		monthSin, monthCos,
		daySin, dayCos,
		float64(reg.Encode(DelayAirline, in.Airline)),
		float64(reg.Encode(DelayOrigin, in.Origin)),
		float64(reg.Encode(DelayDestination, in.Destination)),
	}, nil
}

// BuildPrice returns the price vector for in. An empty origin encodes to
// the fallback code without counting as a miss.
func BuildPrice(in PriceInput, reg *encoders.Registry) ([]float64, error) {
	d := in.DurationMins
	if math.IsNaN(d) || math.IsInf(d, 0) {
		return nil, fmt.Errorf("%w: duration_mins must be a finite number", common.ErrValidation)
	}
	if d < 0 {
		return nil, fmt.Errorf("%w: duration_mins must not be negative, got %v", common.ErrValidation, d)
	}

	origin := float64(encoders.FallbackCode)
	if strings.TrimSpace(in.Origin) != "" {
		origin = float64(reg.Encode(PriceOrigin, in.Origin))
	}

	return []float64{
		float64(reg.Encode(PriceAirline, in.Airline)),
		origin,
		float64(reg.Encode(PriceDestination, in.Destination)),
		d,
	}, nil
}

// DayOfWeek numbers days Monday=1 through Sunday=7.
func DayOfWeek(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

// Cyclical encodes x with the given period as (sin, cos) of 2πx/period.
func Cyclical(x, period float64) (float64, float64) {
	angle := 2 * math.Pi * x / period
	return math.Sin(angle), math.Cos(angle)
}
