package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test fixtures
const (
	testSymbol   = "BTCUSDT"
	testInterval = "1h"
	hourMillis   = int64(3_600_000)
	// 2024-01-01 00:00:00 UTC
	testStartMS = int64(1704067200000)
)

func createTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// rawKlineJSON renders one kline row in the exchange's positional form.
func rawKlineJSON(openMS int64) string {
	return fmt.Sprintf(
		`[%d,"47000.00","47500.00","46500.00","47200.00","1.23456789",%d,"58000.12",308,"0.61728394","29000.06","0"]`,
		openMS, openMS+hourMillis-1)
}

// klineServer serves synthetic hourly klines from firstMS up to (not
// including) lastMS, honoring startTime, endTime, and limit.
func klineServer(t *testing.T, firstMS, lastMS int64, requests *[]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != klinesEndpoint {
			http.NotFound(w, r)
			return
		}
		if requests != nil {
			*requests = append(*requests, r.URL.RawQuery)
		}

		q := r.URL.Query()
		start, err := strconv.ParseInt(q.Get("startTime"), 10, 64)
		require.NoError(t, err)
		limit, err := strconv.Atoi(q.Get("limit"))
		require.NoError(t, err)

		end := lastMS
		if v := q.Get("endTime"); v != "" {
			bound, err := strconv.ParseInt(v, 10, 64)
			require.NoError(t, err)
			if bound < end {
				end = bound
			}
		}

		var rows []json.RawMessage
		for open := alignUp(start, hourMillis); open < end && len(rows) < limit; open += hourMillis {
			if open < firstMS {
				continue
			}
			rows = append(rows, json.RawMessage(rawKlineJSON(open)))
		}

		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(rows))
	}))
}

func alignUp(ms, step int64) int64 {
	if ms%step == 0 {
		return ms
	}
	return ms + step - ms%step
}

func newTestAdapter(baseURL string, opts ...BinanceOption) *BinanceAdapter {
	all := append([]BinanceOption{
		WithBaseURL(baseURL),
		WithPageDelay(0),
		WithLogger(createTestLogger()),
	}, opts...)
	return NewBinanceAdapter(all...)
}

func TestRawKlineUnmarshalJSON(t *testing.T) {
	t.Run("decodes the 12-field positional layout", func(t *testing.T) {
		var k RawKline
		require.NoError(t, json.Unmarshal([]byte(rawKlineJSON(testStartMS)), &k))

		assert.Equal(t, testStartMS, k.OpenTime)
		assert.Equal(t, "47000.00", k.Open)
		assert.Equal(t, "47500.00", k.High)
		assert.Equal(t, "46500.00", k.Low)
		assert.Equal(t, "47200.00", k.Close)
		assert.Equal(t, "1.23456789", k.Volume)
		assert.Equal(t, testStartMS+hourMillis-1, k.CloseTime)
		assert.Equal(t, "58000.12", k.QuoteVolume)
		assert.Equal(t, int64(308), k.TradeCount)
	})

	t.Run("wrong field count fails", func(t *testing.T) {
		var k RawKline
		err := json.Unmarshal([]byte(`[1704067200000,"1.0"]`), &k)
		assert.Error(t, err)
	})

	t.Run("wrong field type fails", func(t *testing.T) {
		var k RawKline
		err := json.Unmarshal([]byte(
			`["not-a-number","1","1","1","1","1",2,"1",3,"1","1","0"]`), &k)
		assert.Error(t, err)
	})
}

func TestNormalizeKlines(t *testing.T) {
	t.Run("projects raw rows onto the candle schema", func(t *testing.T) {
		var k RawKline
		require.NoError(t, json.Unmarshal([]byte(rawKlineJSON(testStartMS)), &k))

		candles, err := NormalizeKlines([]RawKline{k})
		require.NoError(t, err)
		require.Len(t, candles, 1)

		c := candles[0]
		assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), c.OpenTime)
		assert.Equal(t, time.UTC, c.OpenTime.Location())
		assert.Equal(t, 47000.0, c.Open)
		assert.Equal(t, 47500.0, c.High)
		assert.Equal(t, 46500.0, c.Low)
		assert.Equal(t, 47200.0, c.Close)
		assert.Equal(t, 1.23456789, c.Volume)
		assert.Equal(t, time.UTC, c.CloseTime.Location())
	})

	t.Run("empty input yields an empty typed slice", func(t *testing.T) {
		candles, err := NormalizeKlines(nil)
		require.NoError(t, err)
		assert.NotNil(t, candles)
		assert.Empty(t, candles)
	})

	t.Run("unparseable price is a parse error", func(t *testing.T) {
		raw := []RawKline{{OpenTime: testStartMS, Open: "garbage", High: "1", Low: "1", Close: "1", Volume: "1"}}
		_, err := NormalizeKlines(raw)
		assert.Error(t, err)
	})
}

func TestFetchRange(t *testing.T) {
	t.Run("paginates until the source is exhausted", func(t *testing.T) {
		// 48 hourly candles served 20 per page -> 3 pages + empty probe.
		var requests []string
		server := klineServer(t, testStartMS, testStartMS+48*hourMillis, &requests)
		defer server.Close()

		adapter := newTestAdapter(server.URL, WithPageLimit(20))
		rows, err := adapter.FetchRange(context.Background(), FetchRequest{
			Symbol:   testSymbol,
			Interval: testInterval,
			StartMS:  testStartMS,
		})

		require.NoError(t, err)
		require.Len(t, rows, 48)
		assert.Equal(t, testStartMS, rows[0].OpenTime)
		assert.Equal(t, testStartMS+47*hourMillis, rows[47].OpenTime)
		for i := 1; i < len(rows); i++ {
			assert.Greater(t, rows[i].OpenTime, rows[i-1].OpenTime, "rows must ascend")
		}
		assert.GreaterOrEqual(t, len(requests), 3)
	})

	t.Run("empty first page yields an empty result without error", func(t *testing.T) {
		server := klineServer(t, testStartMS, testStartMS, nil)
		defer server.Close()

		adapter := newTestAdapter(server.URL)
		rows, err := adapter.FetchRange(context.Background(), FetchRequest{
			Symbol:   testSymbol,
			Interval: testInterval,
			StartMS:  testStartMS,
		})

		require.NoError(t, err)
		assert.Empty(t, rows)
	})

	t.Run("stops at the requested end bound", func(t *testing.T) {
		server := klineServer(t, testStartMS, testStartMS+100*hourMillis, nil)
		defer server.Close()

		endMS := testStartMS + 10*hourMillis
		adapter := newTestAdapter(server.URL, WithPageLimit(4))
		rows, err := adapter.FetchRange(context.Background(), FetchRequest{
			Symbol:   testSymbol,
			Interval: testInterval,
			StartMS:  testStartMS,
			EndMS:    endMS,
		})

		require.NoError(t, err)
		require.Len(t, rows, 10)
		assert.Less(t, rows[len(rows)-1].OpenTime, endMS)
	})

	t.Run("non-2xx status aborts with a transport error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"code":-1121,"msg":"Invalid symbol."}`, http.StatusBadRequest)
		}))
		defer server.Close()

		adapter := newTestAdapter(server.URL)
		_, err := adapter.FetchRange(context.Background(), FetchRequest{
			Symbol:   "NOPE",
			Interval: testInterval,
			StartMS:  testStartMS,
		})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "400")
	})

	t.Run("non-advancing cursor terminates instead of looping", func(t *testing.T) {
		// A broken source that keeps returning the same single row.
		var calls int
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			fmt.Fprintf(w, "[%s]", rawKlineJSON(testStartMS-hourMillis))
		}))
		defer server.Close()

		adapter := newTestAdapter(server.URL)
		rows, err := adapter.FetchRange(context.Background(), FetchRequest{
			Symbol:   testSymbol,
			Interval: testInterval,
			StartMS:  testStartMS,
		})

		require.NoError(t, err)
		assert.Len(t, rows, 1)
		assert.Equal(t, 1, calls)
	})

	t.Run("cancelled context aborts the loop", func(t *testing.T) {
		server := klineServer(t, testStartMS, testStartMS+1000*hourMillis, nil)
		defer server.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		adapter := NewBinanceAdapter(
			WithBaseURL(server.URL),
			WithPageDelay(time.Hour),
			WithLogger(createTestLogger()))
		_, err := adapter.FetchRange(ctx, FetchRequest{
			Symbol:   testSymbol,
			Interval: testInterval,
			StartMS:  testStartMS,
		})

		assert.Error(t, err)
	})

	t.Run("empty symbol or interval is rejected", func(t *testing.T) {
		adapter := newTestAdapter("http://127.0.0.1:0")
		_, err := adapter.FetchRange(context.Background(), FetchRequest{Interval: testInterval})
		assert.Error(t, err)
		_, err = adapter.FetchRange(context.Background(), FetchRequest{Symbol: testSymbol})
		assert.Error(t, err)
	})

	t.Run("upper-cases the symbol on the wire", func(t *testing.T) {
		var requests []string
		server := klineServer(t, testStartMS, testStartMS, &requests)
		defer server.Close()

		adapter := newTestAdapter(server.URL)
		_, err := adapter.FetchRange(context.Background(), FetchRequest{
			Symbol:   "btcusdt",
			Interval: testInterval,
			StartMS:  testStartMS,
		})

		require.NoError(t, err)
		require.NotEmpty(t, requests)
		assert.Contains(t, requests[0], "symbol=BTCUSDT")
	})
}

func TestHealthCheck(t *testing.T) {
	t.Run("passes against a healthy server", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == pingEndpoint {
				fmt.Fprint(w, "{}")
				return
			}
			http.NotFound(w, r)
		}))
		defer server.Close()

		adapter := newTestAdapter(server.URL)
		assert.NoError(t, adapter.HealthCheck(context.Background()))
	})

	t.Run("fails against an erroring server", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "down", http.StatusInternalServerError)
		}))
		defer server.Close()

		adapter := newTestAdapter(server.URL)
		assert.Error(t, adapter.HealthCheck(context.Background()))
	})
}
