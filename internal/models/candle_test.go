package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validCandle() Candle {
	return Candle{
		OpenTime:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Open:      47000.0,
		High:      47500.5,
		Low:       46500.25,
		Close:     47200.0,
		Volume:    1.23456789,
		CloseTime: time.Date(2024, 1, 1, 0, 59, 59, 999000000, time.UTC),
	}
}

func TestCandleValidate(t *testing.T) {
	t.Run("valid candle passes", func(t *testing.T) {
		c := validCandle()
		assert.NoError(t, c.Validate())
	})

	t.Run("zero open time fails", func(t *testing.T) {
		c := validCandle()
		c.OpenTime = time.Time{}
		requireFieldError(t, c.Validate(), "open_time")
	})

	t.Run("non-positive prices fail", func(t *testing.T) {
		for _, field := range []string{"open", "high", "low", "close"} {
			c := validCandle()
			switch field {
			case "open":
				c.Open = 0
			case "high":
				c.High = -1
			case "low":
				c.Low = 0
			case "close":
				c.Close = -0.5
			}
			requireFieldError(t, c.Validate(), field)
		}
	})

	t.Run("negative volume fails", func(t *testing.T) {
		c := validCandle()
		c.Volume = -0.001
		requireFieldError(t, c.Validate(), "volume")
	})

	t.Run("zero volume is allowed", func(t *testing.T) {
		c := validCandle()
		c.Volume = 0
		assert.NoError(t, c.Validate())
	})

	t.Run("high below max(open, close) fails", func(t *testing.T) {
		c := validCandle()
		c.High = c.Close - 100
		requireFieldError(t, c.Validate(), "high")
	})

	t.Run("low above min(open, close) fails", func(t *testing.T) {
		c := validCandle()
		c.Low = c.Open + 100
		requireFieldError(t, c.Validate(), "low")
	})

	t.Run("high equal to close passes", func(t *testing.T) {
		c := validCandle()
		c.High = c.Close
		c.Open = c.Close
		c.Low = c.Close
		assert.NoError(t, c.Validate())
	})
}

func TestCandleString(t *testing.T) {
	c := validCandle()
	s := c.String()
	assert.Contains(t, s, "2024-01-01T00:00:00Z")
	assert.Contains(t, s, "47000")
}

func requireFieldError(t *testing.T, err error, field string) {
	t.Helper()
	require.Error(t, err)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, field, ve.Field)
}
