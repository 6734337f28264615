package gsr

import (
	"time"

	"github.com/shopspring/decimal"
)

// percentPlaces bounds the precision of a percentage change.
const percentPlaces = 8

// Direction classifies a change between two observations.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
	DirectionFlat Direction = "flat"
)

// Delta is the change of one metric between the latest observation and the
// one before it.
type Delta struct {
	Metric       Metric
	Absolute     decimal.Decimal
	Percent      decimal.NullDecimal
	PreviousDate time.Time
	Direction    Direction
}

// ComputeDelta compares latest with the previous observation in history.
// When the last history row is the latest day itself the previous value is
// the second to last row; otherwise it is the last row. ok is false when
// history has fewer than two points or either value is not finite.
func ComputeDelta(latest Observation, history []Observation, metric Metric) (Delta, bool) {
	n := len(history)
	if n < 2 {
		return Delta{}, false
	}

	previous := history[n-1]
	if history[n-1].Date.Equal(latest.Date) {
		previous = history[n-2]
	}

	curr := latest.Value(metric)
	prev := previous.Value(metric)
	if !IsFinite(curr) || !IsFinite(prev) {
		return Delta{}, false
	}

	currDec := decimal.NewFromFloat(curr)
	prevDec := decimal.NewFromFloat(prev)
	abs := currDec.Sub(prevDec)

	d := Delta{
		Metric:       metric,
		Absolute:     abs,
		PreviousDate: previous.Date,
		Direction:    classify(abs),
	}
	if !prevDec.IsZero() {
		pct := abs.Div(prevDec).Mul(decimal.NewFromInt(100)).Round(percentPlaces)
		d.Percent = decimal.NullDecimal{Decimal: pct, Valid: true}
	}
	return d, true
}

func classify(d decimal.Decimal) Direction {
	switch d.Sign() {
	case 1:
		return DirectionUp
	case -1:
		return DirectionDown
	default:
		return DirectionFlat
	}
}
