package domain

import (
	"math"
	"time"
)

// Fallback converts Celsius to Fahrenheit with the classic linear formula.
func Fallback(celsius float64) float64 {
	return celsius*1.8 + 32
}

// round2Limit is the magnitude past which float64 has no fractional digits
// left to round, and scaling by 100 could overflow.
const round2Limit = 1 << 52

// Round2 rounds v to two decimal places, half away from zero.
func Round2(v float64) float64 {
	if math.Abs(v) >= round2Limit {
		return v
	}
	return math.Round(v*100) / 100
}

// Conversion is the outcome of converting a single Celsius value.
type Conversion struct {
	Celsius      float64   `json:"celsius"`
	Fahrenheit   float64   `json:"fahrenheit"`
	UsedFallback bool      `json:"used_fallback"`
	Timestamp    time.Time `json:"timestamp"`
}

// Source reports which path produced the Fahrenheit value: "model" or "fallback".
func (c Conversion) Source() string {
	if c.UsedFallback {
		return "fallback"
	}
	return "model"
}

// Entry returns the history record stored for this conversion.
func (c Conversion) Entry() HistoryEntry {
	return HistoryEntry{
		When:       FormatTimestamp(c.Timestamp),
		Celsius:    c.Celsius,
		Fahrenheit: Round2(c.Fahrenheit),
	}
}

// FormatTimestamp renders t as ISO-8601 in UTC with a "Z" suffix. Sub-second
// precision is microseconds, printed as six digits and omitted entirely on
// whole seconds.
func FormatTimestamp(t time.Time) string {
	t = t.UTC().Truncate(time.Microsecond)
	if t.Nanosecond() == 0 {
		return t.Format("2006-01-02T15:04:05") + "Z"
	}
	return t.Format("2006-01-02T15:04:05.000000") + "Z"
}

// ConversionEvent is the record published to the event stream for each stored conversion.
type ConversionEvent struct {
	ID           string    `json:"id"`
	Celsius      float64   `json:"celsius"`
	Fahrenheit   float64   `json:"fahrenheit"`
	Source       string    `json:"source"`
	UsedFallback bool      `json:"used_fallback"`
	ConvertedAt  time.Time `json:"converted_at"`
}

// NewConversionEvent builds the stream event for c under the given id.
func NewConversionEvent(id string, c Conversion) ConversionEvent {
	return ConversionEvent{
		ID:           id,
		Celsius:      c.Celsius,
		Fahrenheit:   Round2(c.Fahrenheit),
		Source:       c.Source(),
		UsedFallback: c.UsedFallback,
		ConvertedAt:  c.Timestamp.UTC(),
	}
}
