package timeconv

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klinesync/klinesync/internal/apperrors"
)

// canonicalMillis is 2024-01-01 00:00:00 UTC.
const canonicalMillis = int64(1704067200000)

func TestToMillis(t *testing.T) {
	t.Run("all representations normalize to the same canonical value", func(t *testing.T) {
		inputs := []TimeInput{
			Text("2024-01-01 00:00:00"),
			Text("2024-01-01T00:00:00"),
			Epoch(1704067200),
			Epoch(1704067200000),
			EpochSeconds(1704067200),
			EpochMillis(1704067200000),
			Instant(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
		}

		for _, in := range inputs {
			ms, err := ToMillis(in)
			require.NoError(t, err)
			assert.Equal(t, canonicalMillis, ms, "input %#v", in)
		}
	})

	t.Run("text with explicit zone offset", func(t *testing.T) {
		ms, err := ToMillis(Text("2024-01-01T02:00:00+02:00"))
		require.NoError(t, err)
		assert.Equal(t, canonicalMillis, ms)
	})

	t.Run("bare date is midnight UTC", func(t *testing.T) {
		ms, err := ToMillis(Text("2024-01-01"))
		require.NoError(t, err)
		assert.Equal(t, canonicalMillis, ms)
	})

	t.Run("fractional seconds", func(t *testing.T) {
		ms, err := ToMillis(Text("2024-01-01 00:00:00.500"))
		require.NoError(t, err)
		assert.Equal(t, canonicalMillis+500, ms)
	})

	t.Run("malformed string is a parse error", func(t *testing.T) {
		for _, s := range []string{"not a time", "2024-13-40 99:99:99", ""} {
			_, err := ToMillis(Text(s))
			require.Error(t, err, "input %q", s)
			var pe *apperrors.ParseError
			assert.ErrorAs(t, err, &pe)
		}
	})

	t.Run("nil input is a type error", func(t *testing.T) {
		_, err := ToMillis(nil)
		require.Error(t, err)
		var te *apperrors.TypeError
		assert.ErrorAs(t, err, &te)
	})
}

func TestEpoch(t *testing.T) {
	t.Run("values below the threshold are seconds", func(t *testing.T) {
		assert.IsType(t, EpochSeconds(0), Epoch(1704067200))
		assert.IsType(t, EpochSeconds(0), Epoch(9_999_999_999))
	})

	t.Run("values at or above the threshold are millis", func(t *testing.T) {
		assert.IsType(t, EpochMillis(0), Epoch(10_000_000_000))
		assert.IsType(t, EpochMillis(0), Epoch(1704067200000))
	})
}

func TestIntervalMillis(t *testing.T) {
	t.Run("supported units", func(t *testing.T) {
		cases := map[string]int64{
			"1m":  60_000,
			"15m": 900_000,
			"1h":  3_600_000,
			"4h":  14_400_000,
			"1d":  86_400_000,
			"1w":  604_800_000,
		}
		for interval, want := range cases {
			got, err := IntervalMillis(interval)
			require.NoError(t, err, "interval %q", interval)
			assert.Equal(t, want, got, "interval %q", interval)
		}
	})

	t.Run("monthly unit fails rather than approximating", func(t *testing.T) {
		_, err := IntervalMillis("1M")
		require.Error(t, err)
		var ue *apperrors.UnsupportedIntervalError
		require.ErrorAs(t, err, &ue)
		assert.Equal(t, "1M", ue.Interval)
	})

	t.Run("unknown and malformed codes fail", func(t *testing.T) {
		for _, interval := range []string{"1y", "h", "", "x1h", "-1h", "0m"} {
			_, err := IntervalMillis(interval)
			require.Error(t, err, "interval %q", interval)
			var ue *apperrors.UnsupportedIntervalError
			assert.ErrorAs(t, err, &ue, "interval %q", interval)
		}
	})
}

func TestIntervalDuration(t *testing.T) {
	d, err := IntervalDuration("1h")
	require.NoError(t, err)
	assert.Equal(t, time.Hour, d)
}
