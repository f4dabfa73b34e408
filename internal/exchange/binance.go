package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/klinesync/klinesync/internal/apperrors"
)

const (
	// Binance public REST API base URL.
	binanceBaseURL = "https://api.binance.com"

	// API endpoints
	klinesEndpoint = "/api/v3/klines"
	pingEndpoint   = "/api/v3/ping"

	// Request configuration
	defaultPageLimit = 1000
	requestTimeout   = 30 * time.Second

	// Inter-page pacing. The exchange weights the klines endpoint
	// lightly, so a fixed delay between pages keeps long backfills
	// well under the request budget.
	defaultPageDelay = 200 * time.Millisecond

	healthCheckTimeout = 5 * time.Second
)

// BinanceAdapter implements RangeFetcher and HealthChecker against the
// Binance spot REST API. There is no retry layer: a transport- or
// status-level failure aborts the whole fetch immediately, and the caller
// decides whether to re-run.
type BinanceAdapter struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	baseURL    string
	pageLimit  int
	logger     *slog.Logger
}

// BinanceOption customizes a BinanceAdapter.
type BinanceOption func(*BinanceAdapter)

// WithBaseURL overrides the API base URL. Used by tests to point the
// adapter at a local server.
func WithBaseURL(baseURL string) BinanceOption {
	return func(a *BinanceAdapter) { a.baseURL = strings.TrimRight(baseURL, "/") }
}

// WithPageDelay overrides the fixed inter-page delay.
func WithPageDelay(delay time.Duration) BinanceOption {
	return func(a *BinanceAdapter) {
		if delay > 0 {
			a.limiter = rate.NewLimiter(rate.Every(delay), 1)
		} else {
			a.limiter = rate.NewLimiter(rate.Inf, 1)
		}
	}
}

// WithPageLimit overrides the default page size.
func WithPageLimit(limit int) BinanceOption {
	return func(a *BinanceAdapter) {
		if limit > 0 {
			a.pageLimit = limit
		}
	}
}

// WithLogger sets the adapter logger.
func WithLogger(logger *slog.Logger) BinanceOption {
	return func(a *BinanceAdapter) { a.logger = logger }
}

// NewBinanceAdapter creates a Binance adapter with default configuration.
func NewBinanceAdapter(opts ...BinanceOption) *BinanceAdapter {
	a := &BinanceAdapter{
		httpClient: &http.Client{
			Timeout: requestTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter:   rate.NewLimiter(rate.Every(defaultPageDelay), 1),
		baseURL:   binanceBaseURL,
		pageLimit: defaultPageLimit,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// FetchRange implements the RangeFetcher interface. It paginates forward
// from req.StartMS, accumulating raw rows until one of the termination
// conditions holds, checked in order after each page:
//
//  1. the exchange returned an empty page (no more data),
//  2. an end bound was given and the next cursor would reach or pass it,
//  3. the next cursor does not advance (guard against looping forever).
//
// Otherwise the cursor moves to one millisecond past the last row's open
// time and the next page is requested after the configured delay.
func (a *BinanceAdapter) FetchRange(ctx context.Context, req FetchRequest) ([]RawKline, error) {
	if req.Symbol == "" {
		return nil, fmt.Errorf("symbol cannot be empty")
	}
	if req.Interval == "" {
		return nil, fmt.Errorf("interval cannot be empty")
	}

	limit := req.Limit
	if limit <= 0 {
		limit = a.pageLimit
	}

	a.logger.Debug("fetching kline range",
		"symbol", req.Symbol,
		"interval", req.Interval,
		"start_ms", req.StartMS,
		"end_ms", req.EndMS,
		"limit", limit)

	var rows []RawKline
	cursor := req.StartMS

	for page := 0; ; page++ {
		// The limiter hands out its one burst token immediately, so
		// only pages after the first wait the fixed delay.
		if err := a.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		chunk, err := a.fetchPage(ctx, req.Symbol, req.Interval, cursor, req.EndMS, limit)
		if err != nil {
			return nil, err
		}

		if len(chunk) == 0 {
			break
		}
		rows = append(rows, chunk...)

		next := chunk[len(chunk)-1].OpenTime + 1

		if req.EndMS != 0 && next >= req.EndMS {
			break
		}
		if next <= cursor {
			a.logger.Warn("pagination cursor did not advance, stopping",
				"symbol", req.Symbol,
				"cursor_ms", cursor,
				"next_ms", next,
				"page", page)
			break
		}

		cursor = next
	}

	a.logger.Debug("fetched kline range", "symbol", req.Symbol, "rows", len(rows))
	return rows, nil
}

// fetchPage issues a single klines request. Any non-2xx status is a
// TransportError that aborts the whole fetch.
func (a *BinanceAdapter) fetchPage(ctx context.Context, symbol, interval string, startMS, endMS int64, limit int) ([]RawKline, error) {
	params := url.Values{}
	params.Set("symbol", strings.ToUpper(symbol))
	params.Set("interval", interval)
	params.Set("startTime", strconv.FormatInt(startMS, 10))
	params.Set("limit", strconv.Itoa(limit))
	if endMS != 0 {
		params.Set("endTime", strconv.FormatInt(endMS, 10))
	}

	requestURL := a.baseURL + klinesEndpoint + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "klinesync/1.0")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, &apperrors.TransportError{URL: requestURL, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &apperrors.TransportError{URL: requestURL, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		a.logger.Error("klines request failed",
			"status", resp.StatusCode,
			"body", strings.TrimSpace(string(body)))
		return nil, &apperrors.TransportError{URL: requestURL, StatusCode: resp.StatusCode}
	}

	var chunk []RawKline
	if err := json.Unmarshal(body, &chunk); err != nil {
		return nil, &apperrors.ParseError{
			Input: string(body),
			Err:   fmt.Errorf("decoding klines response: %w", err),
		}
	}

	return chunk, nil
}

// HealthCheck implements the HealthChecker interface with a lightweight
// ping request.
func (a *BinanceAdapter) HealthCheck(ctx context.Context) error {
	healthCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	requestURL := a.baseURL + pingEndpoint
	req, err := http.NewRequestWithContext(healthCtx, http.MethodGet, requestURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return &apperrors.TransportError{URL: requestURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &apperrors.TransportError{URL: requestURL, StatusCode: resp.StatusCode}
	}

	a.logger.Debug("health check passed")
	return nil
}
