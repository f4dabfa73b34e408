// Package storage persists candle series to local tabular files.
//
// The interface is deliberately narrow: the pipeline loads one series,
// merges, and writes the full result back. There is no query surface and
// no concurrent-writer protection; callers must serialize runs against
// the same path.
package storage

import (
	"context"

	"github.com/klinesync/klinesync/internal/models"
)

// SeriesStore reads and writes one candle series identified by file path.
type SeriesStore interface {
	// Load reads the series at path. It returns exists=false when no
	// file is present. A file that is present but fails schema
	// validation is a CorruptSeriesFileError, never "absent".
	Load(ctx context.Context, path string) (candles []models.Candle, exists bool, err error)

	// Write persists the full series to path, replacing any previous
	// content. Implementations must write atomically (temp file +
	// rename) so a failure mid-write cannot leave a truncated file.
	Write(ctx context.Context, path string, candles []models.Candle) error
}
