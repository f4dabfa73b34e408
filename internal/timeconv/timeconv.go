// Package timeconv normalizes heterogeneous time representations into a
// single canonical form — integer epoch milliseconds — and resolves
// human interval codes ("1h", "15m", "1d") into their durations.
//
// Inputs arrive as a tagged variant (TimeInput) with one explicit
// conversion per shape. Zone-less inputs are always interpreted as UTC,
// never local time.
package timeconv

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/klinesync/klinesync/internal/apperrors"
)

// secondsThreshold disambiguates raw epoch numbers by magnitude: values
// below it are seconds-since-epoch, values at or above it are already
// milliseconds. 10^10 seconds is year 2286, 10^10 millis is year 1970.
const secondsThreshold = 10_000_000_000

// TimeInput is a time value in one of the accepted shapes. Use Text,
// EpochSeconds, EpochMillis, Instant, or the Epoch constructor.
type TimeInput interface {
	epochMillis() (int64, error)
}

// Text is an ISO-8601-like string with either a literal 'T' or a space
// separating date and time. A bare date is midnight UTC.
type Text string

// EpochSeconds is a seconds-since-epoch number.
type EpochSeconds float64

// EpochMillis is a milliseconds-since-epoch integer.
type EpochMillis int64

// Instant wraps a structured time value.
type Instant time.Time

// textLayouts are tried in order against the space-normalized input.
// Layouts without a zone are parsed in UTC.
var textLayouts = []string{
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func (t Text) epochMillis() (int64, error) {
	s := strings.TrimSpace(string(t))
	s = strings.Replace(s, "T", " ", 1)
	for _, layout := range textLayouts {
		parsed, err := time.ParseInLocation(layout, s, time.UTC)
		if err == nil {
			return parsed.UnixMilli(), nil
		}
	}
	return 0, &apperrors.ParseError{
		Input: string(t),
		Err:   fmt.Errorf("not an ISO-8601 date/time"),
	}
}

func (s EpochSeconds) epochMillis() (int64, error) {
	return int64(float64(s) * 1000), nil
}

func (m EpochMillis) epochMillis() (int64, error) {
	return int64(m), nil
}

func (i Instant) epochMillis() (int64, error) {
	return time.Time(i).UnixMilli(), nil
}

// Epoch classifies a raw epoch number by magnitude and returns the
// matching variant: below secondsThreshold it is seconds, otherwise it
// is already milliseconds.
func Epoch(v float64) TimeInput {
	if v < secondsThreshold {
		return EpochSeconds(v)
	}
	return EpochMillis(int64(v))
}

// ToMillis converts any accepted time input to canonical epoch
// milliseconds. A nil input is a type error, a malformed string a parse
// error.
func ToMillis(in TimeInput) (int64, error) {
	if in == nil {
		return 0, &apperrors.TypeError{Message: "nil time input"}
	}
	return in.epochMillis()
}

// IntervalMillis resolves an interval code of the form <digits><unit>
// into its duration in milliseconds. Supported units: m (minutes),
// h (hours), d (days), w (weeks). The monthly unit 'M' is rejected
// because a calendar month has no fixed length.
func IntervalMillis(interval string) (int64, error) {
	s := strings.TrimSpace(interval)
	if len(s) < 2 {
		return 0, &apperrors.UnsupportedIntervalError{
			Interval: interval,
			Reason:   "expected <digits><unit>",
		}
	}

	unit := s[len(s)-1]
	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || n <= 0 {
		return 0, &apperrors.UnsupportedIntervalError{
			Interval: interval,
			Reason:   "count must be a positive integer",
		}
	}

	switch unit {
	case 'm':
		return int64(n) * 60_000, nil
	case 'h':
		return int64(n) * 3_600_000, nil
	case 'd':
		return int64(n) * 86_400_000, nil
	case 'w':
		return int64(n) * 7 * 86_400_000, nil
	case 'M':
		return 0, &apperrors.UnsupportedIntervalError{
			Interval: interval,
			Reason:   "calendar months have no fixed duration; incremental start cannot be computed",
		}
	default:
		return 0, &apperrors.UnsupportedIntervalError{
			Interval: interval,
			Reason:   fmt.Sprintf("unknown unit %q", string(unit)),
		}
	}
}

// IntervalDuration is IntervalMillis expressed as a time.Duration.
func IntervalDuration(interval string) (time.Duration, error) {
	ms, err := IntervalMillis(interval)
	if err != nil {
		return 0, err
	}
	return time.Duration(ms) * time.Millisecond, nil
}
