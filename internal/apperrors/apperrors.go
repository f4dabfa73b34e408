// Package apperrors defines the error taxonomy shared across the kline
// sync pipeline. Every failure class that crosses a package boundary has
// a typed error here so callers can match with errors.As and decide on
// an exit code without string inspection.
//
// There is no retry machinery in this taxonomy on purpose: every failure
// surfaces to the invoking boundary immediately, and a failed run leaves
// previously persisted data untouched, so retrying is the operator's call.
package apperrors

import (
	"errors"
	"fmt"
)

// TransportError reports a network- or status-level failure while talking
// to the exchange. A non-2xx response aborts the whole fetch.
type TransportError struct {
	URL        string
	StatusCode int // 0 when the request never produced a response
	Err        error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transport error: %s returned status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("transport error: %s: %v", e.URL, e.Err)
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error { return e.Err }

// ParseError reports a malformed time string or a raw exchange row that
// does not match the expected shape.
type ParseError struct {
	Input string
	Err   error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error for %q: %v", e.Input, e.Err)
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error { return e.Err }

// TypeError reports an unsupported input shape, such as a nil time input.
type TypeError struct {
	Message string
}

// Error implements the error interface.
func (e *TypeError) Error() string { return "type error: " + e.Message }

// UnsupportedIntervalError reports an interval code the resolver refuses.
// The monthly unit is rejected rather than approximated: a calendar month
// has no fixed millisecond length, so incremental-start computation must
// fail loudly instead of guessing.
type UnsupportedIntervalError struct {
	Interval string
	Reason   string
}

// Error implements the error interface.
func (e *UnsupportedIntervalError) Error() string {
	return fmt.Sprintf("unsupported interval %q: %s", e.Interval, e.Reason)
}

// CorruptSeriesFileError reports an existing series file that failed
// schema validation on load. It must never be treated as "absent".
type CorruptSeriesFileError struct {
	Path   string
	Reason string
	Err    error
}

// Error implements the error interface.
func (e *CorruptSeriesFileError) Error() string {
	return fmt.Sprintf("corrupt series file %s: %s", e.Path, e.Reason)
}

// Unwrap returns the underlying error.
func (e *CorruptSeriesFileError) Unwrap() error { return e.Err }

// IsTransport reports whether err is a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsCorruptSeriesFile reports whether err is a CorruptSeriesFileError.
func IsCorruptSeriesFile(err error) bool {
	var ce *CorruptSeriesFileError
	return errors.As(err, &ce)
}
