package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheRoundTrip(t *testing.T) {
	c := NewMemorySeriesCache(time.Minute)
	series := sampleSeries(10)
	c.Put("BTCUSDT", "4h", series)

	got, ok := c.Get("BTCUSDT", "4h", 10)
	require.True(t, ok)
	assert.Equal(t, series, got)

	// Returned series is a copy; mutating it must not poison the cache.
	got[0].Close = -1
	again, ok := c.Get("BTCUSDT", "4h", 10)
	require.True(t, ok)
	assert.Equal(t, series[0].Close, again[0].Close)
}

func TestCacheMinBars(t *testing.T) {
	c := NewMemorySeriesCache(time.Minute)
	c.Put("ETHUSDT", "1h", sampleSeries(10))

	_, ok := c.Get("ETHUSDT", "1h", 11)
	assert.False(t, ok)

	_, ok = c.Get("ETHUSDT", "1h", 10)
	assert.True(t, ok)
}

func TestCacheTTLExpiry(t *testing.T) {
	c := NewMemorySeriesCache(time.Minute)
	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return current }

	c.Put("BTCUSDT", "4h", sampleSeries(10))
	_, ok := c.Get("BTCUSDT", "4h", 1)
	require.True(t, ok)

	current = current.Add(2 * time.Minute)
	_, ok = c.Get("BTCUSDT", "4h", 1)
	assert.False(t, ok)
}

func TestCachePutIgnoresEmpty(t *testing.T) {
	c := NewMemorySeriesCache(time.Minute)
	c.Put("", "4h", sampleSeries(3))
	c.Put("BTCUSDT", "", sampleSeries(3))
	c.Put("BTCUSDT", "4h", nil)

	_, ok := c.Get("BTCUSDT", "4h", 1)
	assert.False(t, ok)
}

func TestCacheKeysAreDistinct(t *testing.T) {
	c := NewMemorySeriesCache(time.Minute)
	c.Put("BTCUSDT", "4h", sampleSeries(5))

	_, ok := c.Get("BTCUSDT", "1h", 1)
	assert.False(t, ok)

	_, ok = c.Get("ETHUSDT", "4h", 1)
	assert.False(t, ok)
}
