// Package validator performs sanity checks on freshly fetched candles
// before they are merged into a series.
//
// Validation is advisory: an exchange occasionally revises in-flight
// candles, so anomalies are logged with field context and counted, but
// they never abort an ingestion run.
package validator

import (
	"errors"
	"log/slog"

	"github.com/klinesync/klinesync/internal/models"
)

// Anomaly describes one candle that failed a sanity check.
type Anomaly struct {
	Index   int    // position within the checked batch
	Field   string // candle field that failed
	Message string
}

// OHLCVValidator checks OHLC relationships on candle batches.
type OHLCVValidator struct {
	logger *slog.Logger
}

// New creates a validator that logs anomalies through the given logger.
func New(logger *slog.Logger) *OHLCVValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &OHLCVValidator{logger: logger}
}

// Check validates every candle in the batch and returns the anomalies
// found. The batch itself is never modified or filtered.
func (v *OHLCVValidator) Check(candles []models.Candle) []Anomaly {
	var anomalies []Anomaly

	for i := range candles {
		if err := candles[i].Validate(); err != nil {
			anomaly := Anomaly{Index: i, Message: err.Error()}

			var ve *models.ValidationError
			if errors.As(err, &ve) {
				anomaly.Field = ve.Field
				anomaly.Message = ve.Message
			}
			anomalies = append(anomalies, anomaly)

			v.logger.Warn("candle failed sanity check",
				"open_time", candles[i].OpenTime,
				"field", anomaly.Field,
				"reason", anomaly.Message)
		}
	}

	if len(anomalies) > 0 {
		v.logger.Warn("anomalous candles in fetched batch",
			"anomalies", len(anomalies),
			"batch", len(candles))
	}

	return anomalies
}
