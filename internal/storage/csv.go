package storage

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/klinesync/klinesync/internal/apperrors"
	"github.com/klinesync/klinesync/internal/models"
)

// csvColumns is the exact header of a persisted series file.
var csvColumns = []string{"open_time", "open", "high", "low", "close", "volume", "close_time"}

// timestampLayout is the serialization format for timestamp columns:
// RFC 3339 in UTC, millisecond precision.
const timestampLayout = "2006-01-02T15:04:05.999Z07:00"

// loadLayouts are accepted when reading timestamps back. Files written
// by other tooling may carry a space separator or no zone at all;
// zone-less values are interpreted as UTC.
var loadLayouts = []string{
	timestampLayout,
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// CSVStore implements SeriesStore on top of plain CSV files.
type CSVStore struct {
	logger *slog.Logger
}

// NewCSVStore creates a CSV-backed series store.
func NewCSVStore(logger *slog.Logger) *CSVStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVStore{logger: logger}
}

// Load implements the SeriesStore interface.
func (s *CSVStore) Load(ctx context.Context, path string) ([]models.Candle, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to open series file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(csvColumns)

	header, err := r.Read()
	if err != nil {
		return nil, false, &apperrors.CorruptSeriesFileError{
			Path:   path,
			Reason: "missing or unreadable header",
			Err:    err,
		}
	}
	for i, col := range csvColumns {
		if header[i] != col {
			return nil, false, &apperrors.CorruptSeriesFileError{
				Path:   path,
				Reason: fmt.Sprintf("header column %d is %q, want %q", i, header[i], col),
			}
		}
	}

	var candles []models.Candle
	for line := 2; ; line++ {
		record, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, false, &apperrors.CorruptSeriesFileError{
				Path:   path,
				Reason: fmt.Sprintf("line %d is not a valid record", line),
				Err:    err,
			}
		}

		candle, err := parseRecord(record)
		if err != nil {
			return nil, false, &apperrors.CorruptSeriesFileError{
				Path:   path,
				Reason: fmt.Sprintf("line %d: %v", line, err),
				Err:    err,
			}
		}
		candles = append(candles, candle)
	}

	s.logger.Debug("loaded existing series", "path", path, "rows", len(candles))
	return candles, true, nil
}

// Write implements the SeriesStore interface. The series is written to a
// temporary file in the target directory and renamed into place, so a
// failure mid-write leaves any previous file untouched.
func (s *CSVStore) Write(ctx context.Context, path string, candles []models.Candle) error {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		// No-ops once the rename has succeeded.
		tmp.Close()
		os.Remove(tmpPath)
	}()

	w := csv.NewWriter(tmp)
	if err := w.Write(csvColumns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, c := range candles {
		record := []string{
			c.OpenTime.UTC().Format(timestampLayout),
			formatFloat(c.Open),
			formatFloat(c.High),
			formatFloat(c.Low),
			formatFloat(c.Close),
			formatFloat(c.Volume),
			c.CloseTime.UTC().Format(timestampLayout),
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush series file: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync series file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close series file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to replace series file: %w", err)
	}

	s.logger.Debug("persisted series", "path", path, "rows", len(candles))
	return nil
}

func parseRecord(record []string) (models.Candle, error) {
	var c models.Candle

	openTime, err := parseTimestamp(record[0])
	if err != nil {
		return c, fmt.Errorf("open_time: %w", err)
	}
	closeTime, err := parseTimestamp(record[6])
	if err != nil {
		return c, fmt.Errorf("close_time: %w", err)
	}
	c.OpenTime = openTime
	c.CloseTime = closeTime

	floats := []struct {
		name string
		src  string
		dst  *float64
	}{
		{"open", record[1], &c.Open},
		{"high", record[2], &c.High},
		{"low", record[3], &c.Low},
		{"close", record[4], &c.Close},
		{"volume", record[5], &c.Volume},
	}
	for _, f := range floats {
		v, err := strconv.ParseFloat(f.src, 64)
		if err != nil {
			return c, fmt.Errorf("%s: %w", f.name, err)
		}
		*f.dst = v
	}

	return c, nil
}

// parseTimestamp re-normalizes a serialized timestamp to explicit UTC.
func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range loadLayouts {
		t, err := time.ParseInLocation(layout, s, time.UTC)
		if err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", s)
}

// formatFloat renders a float with the shortest representation that
// round-trips exactly.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
