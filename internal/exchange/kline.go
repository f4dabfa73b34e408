package exchange

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/klinesync/klinesync/internal/apperrors"
	"github.com/klinesync/klinesync/internal/models"
)

// rawKlineFields is the fixed positional layout of one kline row:
// [open_time, open, high, low, close, volume, close_time, quote_volume,
// trade_count, taker_buy_base, taker_buy_quote, ignore].
const rawKlineFields = 12

// RawKline is one kline row as returned by the exchange. Price and
// volume fields stay as the decimal strings the API sends; conversion to
// typed columns happens in NormalizeKlines.
type RawKline struct {
	OpenTime      int64
	Open          string
	High          string
	Low           string
	Close         string
	Volume        string
	CloseTime     int64
	QuoteVolume   string
	TradeCount    int64
	TakerBuyBase  string
	TakerBuyQuote string
}

// UnmarshalJSON decodes the positional array form of a kline row.
func (k *RawKline) UnmarshalJSON(data []byte) error {
	var fields []json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return &apperrors.ParseError{Input: string(data), Err: err}
	}
	if len(fields) != rawKlineFields {
		return &apperrors.ParseError{
			Input: string(data),
			Err:   fmt.Errorf("expected %d kline fields, got %d", rawKlineFields, len(fields)),
		}
	}

	ints := map[int]*int64{0: &k.OpenTime, 6: &k.CloseTime, 8: &k.TradeCount}
	strs := map[int]*string{
		1: &k.Open, 2: &k.High, 3: &k.Low, 4: &k.Close, 5: &k.Volume,
		7: &k.QuoteVolume, 9: &k.TakerBuyBase, 10: &k.TakerBuyQuote,
	}

	for i, dst := range ints {
		if err := json.Unmarshal(fields[i], dst); err != nil {
			return &apperrors.ParseError{
				Input: string(fields[i]),
				Err:   fmt.Errorf("kline field %d: %w", i, err),
			}
		}
	}
	for i, dst := range strs {
		if err := json.Unmarshal(fields[i], dst); err != nil {
			return &apperrors.ParseError{
				Input: string(fields[i]),
				Err:   fmt.Errorf("kline field %d: %w", i, err),
			}
		}
	}
	// Field 11 is documented as "ignore" and stays ignored.

	return nil
}

// NormalizeKlines projects raw rows onto the seven-column candle schema,
// parsing the five price/volume fields as floats and the two time fields
// as UTC timestamps. An empty input yields an empty, correctly typed
// slice so downstream merge logic can treat "nothing new" uniformly.
func NormalizeKlines(raw []RawKline) ([]models.Candle, error) {
	candles := make([]models.Candle, 0, len(raw))

	for _, row := range raw {
		candle := models.Candle{
			OpenTime:  time.UnixMilli(row.OpenTime).UTC(),
			CloseTime: time.UnixMilli(row.CloseTime).UTC(),
		}

		fields := []struct {
			name string
			src  string
			dst  *float64
		}{
			{"open", row.Open, &candle.Open},
			{"high", row.High, &candle.High},
			{"low", row.Low, &candle.Low},
			{"close", row.Close, &candle.Close},
			{"volume", row.Volume, &candle.Volume},
		}
		for _, f := range fields {
			v, err := strconv.ParseFloat(f.src, 64)
			if err != nil {
				return nil, &apperrors.ParseError{
					Input: f.src,
					Err:   fmt.Errorf("kline %s field: %w", f.name, err),
				}
			}
			*f.dst = v
		}

		candles = append(candles, candle)
	}

	return candles, nil
}
