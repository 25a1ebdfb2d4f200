package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeInterval(t *testing.T) {
	iv, err := NormalizeInterval("4H")
	require.NoError(t, err)
	assert.Equal(t, "4h", iv)

	iv, err = NormalizeInterval(" 1d ")
	require.NoError(t, err)
	assert.Equal(t, "1d", iv)

	_, err = NormalizeInterval("7m")
	assert.ErrorContains(t, err, "unsupported interval")

	_, err = NormalizeInterval("")
	assert.Error(t, err)
}

func TestIntervalDuration(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
		ok   bool
	}{
		{"15m", 15 * time.Minute, true},
		{"4h", 4 * time.Hour, true},
		{"1d", 24 * time.Hour, true},
		{"1w", 7 * 24 * time.Hour, true},
		{"4H", 4 * time.Hour, true},
		{"", 0, false},
		{"h", 0, false},
		{"0h", 0, false},
		{"4x", 0, false},
	}
	for _, tc := range cases {
		d, ok := IntervalDuration(tc.in)
		assert.Equal(t, tc.ok, ok, "input %q", tc.in)
		assert.Equal(t, tc.want, d, "input %q", tc.in)
	}
}

func TestDropUnclosed(t *testing.T) {
	series := sampleSeries(5)
	interval := 4 * time.Hour
	lastOpen := time.UnixMilli(series[4].OpenTime)

	t.Run("in progress", func(t *testing.T) {
		now := lastOpen.Add(2 * time.Hour)
		got := dropUnclosedAt(series, interval, now, 10*time.Second)
		assert.Len(t, got, 4)
	})

	t.Run("inside the grace window", func(t *testing.T) {
		now := lastOpen.Add(interval + 5*time.Second)
		got := dropUnclosedAt(series, interval, now, 10*time.Second)
		assert.Len(t, got, 4)
	})

	t.Run("closed", func(t *testing.T) {
		now := lastOpen.Add(interval + 11*time.Second)
		got := dropUnclosedAt(series, interval, now, 10*time.Second)
		assert.Len(t, got, 5)
	})

	t.Run("empty series", func(t *testing.T) {
		assert.Empty(t, dropUnclosedAt(Series{}, interval, time.Now(), 0))
	})

	t.Run("unknown interval", func(t *testing.T) {
		got := dropUnclosedAt(series, 0, time.Now(), 0)
		assert.Len(t, got, 5)
	})
}
