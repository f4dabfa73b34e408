// Package models provides the data structures for candlestick market
// data flowing through the sync pipeline.
package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Candle is one OHLCV record of a series. OpenTime is the unique key
// within a series; CloseTime is informational only.
type Candle struct {
	OpenTime  time.Time `json:"open_time"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
	CloseTime time.Time `json:"close_time"`
}

// ValidationError represents a candle validation error with field context.
type ValidationError struct {
	Field   string // Field is the name of the field that failed validation
	Message string // Message explains the validation failure
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field %s: %s", e.Field, e.Message)
}

// Validate checks the internal consistency of the candle: prices must be
// positive, volume non-negative, and the OHLC relationships must hold
// (high >= max(open, close), low <= min(open, close)). Comparisons go
// through decimal values to avoid float equality surprises at the
// boundaries. Returns a ValidationError describing the first violation.
func (c *Candle) Validate() error {
	if c.OpenTime.IsZero() {
		return &ValidationError{Field: "open_time", Message: "open time cannot be zero"}
	}

	open := decimal.NewFromFloat(c.Open)
	high := decimal.NewFromFloat(c.High)
	low := decimal.NewFromFloat(c.Low)
	close := decimal.NewFromFloat(c.Close)
	volume := decimal.NewFromFloat(c.Volume)

	zero := decimal.Zero
	if open.LessThanOrEqual(zero) {
		return &ValidationError{Field: "open", Message: "open price must be greater than 0"}
	}
	if high.LessThanOrEqual(zero) {
		return &ValidationError{Field: "high", Message: "high price must be greater than 0"}
	}
	if low.LessThanOrEqual(zero) {
		return &ValidationError{Field: "low", Message: "low price must be greater than 0"}
	}
	if close.LessThanOrEqual(zero) {
		return &ValidationError{Field: "close", Message: "close price must be greater than 0"}
	}
	if volume.LessThan(zero) {
		return &ValidationError{Field: "volume", Message: "volume must be greater than or equal to 0"}
	}

	maxOpenClose := decimal.Max(open, close)
	if high.LessThan(maxOpenClose) {
		return &ValidationError{
			Field:   "high",
			Message: fmt.Sprintf("high price (%s) must be greater than or equal to max(open, close) (%s)", high, maxOpenClose),
		}
	}

	minOpenClose := decimal.Min(open, close)
	if low.GreaterThan(minOpenClose) {
		return &ValidationError{
			Field:   "low",
			Message: fmt.Sprintf("low price (%s) must be less than or equal to min(open, close) (%s)", low, minOpenClose),
		}
	}

	return nil
}

// String returns a human-readable representation of the candle.
func (c *Candle) String() string {
	return fmt.Sprintf("Candle{OpenTime: %s, O: %g, H: %g, L: %g, C: %g, V: %g}",
		c.OpenTime.Format(time.RFC3339), c.Open, c.High, c.Low, c.Close, c.Volume)
}
