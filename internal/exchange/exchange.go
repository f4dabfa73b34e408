// Package exchange provides the Binance adapter that retrieves historical
// kline (candlestick) data over the public REST API.
//
// The interfaces are small and composable: the ingest pipeline depends
// only on RangeFetcher, so tests can substitute a stub without touching
// the network.
package exchange

import (
	"context"
)

// FetchRequest specifies one pagination pass over the kline endpoint.
type FetchRequest struct {
	// Symbol is the trading pair (e.g. "BTCUSDT"). It is upper-cased
	// before being sent to the exchange.
	Symbol string

	// Interval is the candle interval code (e.g. "1m", "1h", "1d").
	Interval string

	// StartMS is the canonical epoch-millisecond start of the window
	// (inclusive).
	StartMS int64

	// EndMS optionally bounds the window. Zero means "up to whatever
	// the exchange currently has".
	EndMS int64

	// Limit is the page size. Zero uses the adapter default.
	Limit int
}

// RangeFetcher paginates a time range of klines from a remote source.
//
// Implementations must return rows in receipt order (ascending open
// time), terminate on an empty page, on reaching the requested end
// bound, or on a non-advancing cursor, and must propagate transport
// failures immediately rather than returning partial results silently.
type RangeFetcher interface {
	FetchRange(ctx context.Context, req FetchRequest) ([]RawKline, error)
}

// HealthChecker verifies that the exchange connection is working.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}
