// Package ingest implements incremental time-series ingestion with an
// idempotent merge: load the existing series, fetch only the candles
// published since its last record, combine with dedup-by-open-time and
// sort, and persist the full result atomically.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/klinesync/klinesync/internal/exchange"
	"github.com/klinesync/klinesync/internal/models"
	"github.com/klinesync/klinesync/internal/storage"
	"github.com/klinesync/klinesync/internal/timeconv"
	"github.com/klinesync/klinesync/internal/validator"
)

// UpdateRequest describes one ingestion run.
type UpdateRequest struct {
	// Symbol is the trading pair (e.g. "BTCUSDT").
	Symbol string

	// Interval is the candle interval code (e.g. "1h").
	Interval string

	// OutPath is the series file to update.
	OutPath string

	// StartIfEmpty is the fetch window start used when no data has been
	// persisted yet.
	StartIfEmpty timeconv.TimeInput

	// End optionally bounds the fetch window. Nil means "up to whatever
	// the exchange currently has".
	End timeconv.TimeInput

	// PageLimit overrides the fetcher's page size when positive.
	PageLimit int
}

// Result summarizes a completed ingestion run.
type Result struct {
	RunID     string
	Path      string
	TotalRows int
	AddedRows int
}

// Updater orchestrates one synchronous ingestion pipeline: existing-data
// load, remote range fetch, normalization, merge, and persistence.
type Updater struct {
	fetcher   exchange.RangeFetcher
	store     storage.SeriesStore
	validator *validator.OHLCVValidator
	logger    *slog.Logger
}

// NewUpdater creates an Updater from its collaborators.
func NewUpdater(fetcher exchange.RangeFetcher, store storage.SeriesStore, logger *slog.Logger) *Updater {
	if logger == nil {
		logger = slog.Default()
	}
	return &Updater{
		fetcher:   fetcher,
		store:     store,
		validator: validator.New(logger),
		logger:    logger,
	}
}

// Update runs the pipeline once. When the series file exists and is
// non-empty, the fetch window starts one interval past the maximum
// stored open time, so already-closed candles are never refetched. When
// it is absent or empty, the caller-supplied fallback start is used.
//
// A failure anywhere before persistence leaves the existing file exactly
// as it was; re-running after a failure is always safe.
func (u *Updater) Update(ctx context.Context, req UpdateRequest) (*Result, error) {
	runID := uuid.NewString()
	logger := u.logger.With(
		"run_id", runID,
		"symbol", req.Symbol,
		"interval", req.Interval)

	existing, exists, err := u.store.Load(ctx, req.OutPath)
	if err != nil {
		return nil, fmt.Errorf("loading existing series: %w", err)
	}

	var base []models.Candle
	var startMS int64

	if !exists || len(existing) == 0 {
		startMS, err = timeconv.ToMillis(req.StartIfEmpty)
		if err != nil {
			return nil, fmt.Errorf("resolving fallback start: %w", err)
		}
		logger.Info("no existing data, starting fresh backfill", "start_ms", startMS)
	} else {
		base = existing
		stepMS, err := timeconv.IntervalMillis(req.Interval)
		if err != nil {
			return nil, err
		}
		startMS = maxOpenTime(existing).UnixMilli() + stepMS
		logger.Info("resuming after last stored candle",
			"existing_rows", len(existing),
			"start_ms", startMS)
	}

	var endMS int64
	if req.End != nil {
		endMS, err = timeconv.ToMillis(req.End)
		if err != nil {
			return nil, fmt.Errorf("resolving end time: %w", err)
		}
	}

	raw, err := u.fetcher.FetchRange(ctx, exchange.FetchRequest{
		Symbol:   req.Symbol,
		Interval: req.Interval,
		StartMS:  startMS,
		EndMS:    endMS,
		Limit:    req.PageLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("fetching klines: %w", err)
	}

	fresh, err := exchange.NormalizeKlines(raw)
	if err != nil {
		return nil, fmt.Errorf("normalizing klines: %w", err)
	}
	u.validator.Check(fresh)

	merged := Merge(base, fresh)

	if err := u.store.Write(ctx, req.OutPath, merged); err != nil {
		return nil, fmt.Errorf("persisting series: %w", err)
	}

	result := &Result{
		RunID:     runID,
		Path:      req.OutPath,
		TotalRows: len(merged),
		AddedRows: len(merged) - len(base),
	}
	logger.Info("series updated",
		"path", result.Path,
		"total_rows", result.TotalRows,
		"added_rows", result.AddedRows)

	return result, nil
}

// Merge combines an existing series with freshly fetched candles:
// duplicates by open time are resolved in favor of the fresh record
// (the exchange revises not-yet-closed candles), and the result is
// sorted ascending by open time.
func Merge(existing, fresh []models.Candle) []models.Candle {
	byOpenTime := make(map[int64]models.Candle, len(existing)+len(fresh))
	for _, c := range existing {
		byOpenTime[c.OpenTime.UnixMilli()] = c
	}
	for _, c := range fresh {
		byOpenTime[c.OpenTime.UnixMilli()] = c
	}

	merged := make([]models.Candle, 0, len(byOpenTime))
	for _, c := range byOpenTime {
		merged = append(merged, c)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].OpenTime.Before(merged[j].OpenTime)
	})

	return merged
}

func maxOpenTime(candles []models.Candle) time.Time {
	max := candles[0].OpenTime
	for _, c := range candles[1:] {
		if c.OpenTime.After(max) {
			max = c.OpenTime
		}
	}
	return max
}
