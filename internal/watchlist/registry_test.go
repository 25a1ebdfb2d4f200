package watchlist

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func writeWatchlist(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "watchlist.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write watchlist: %v", err)
	}
	return path
}

func TestNewRegistryNormalizesEntries(t *testing.T) {
	path := writeWatchlist(t, `
watchlist:
  - symbol: BTC/USDT
    interval: 4h
  - symbol: ethusdt
    interval: 1H
    bars: 300
`)
	r, err := NewRegistry(path)
	assert.NoError(t, err)

	snap := r.Snapshot()
	assert.Equal(t, int64(1), snap.Version)
	assert.False(t, snap.LoadedAt.IsZero())
	assert.Equal(t, []Entry{
		{Symbol: "BTCUSDT", Interval: "4h"},
		{Symbol: "ETHUSDT", Interval: "1h", Bars: 300},
	}, snap.Entries)
}

func TestNormalizeEntriesDropsDuplicates(t *testing.T) {
	entries, err := normalizeEntries([]Entry{
		{Symbol: "BTC/USDT", Interval: "4h"},
		{Symbol: "btcusdt", Interval: "4h", Bars: 200},
		{Symbol: "BTCUSDT", Interval: "1h"},
	})
	assert.NoError(t, err)
	assert.Equal(t, []Entry{
		{Symbol: "BTCUSDT", Interval: "4h"},
		{Symbol: "BTCUSDT", Interval: "1h"},
	}, entries)
}

func TestNormalizeEntriesRejectsBadInput(t *testing.T) {
	_, err := normalizeEntries([]Entry{{Symbol: "  ", Interval: "4h"}})
	assert.ErrorContains(t, err, "empty symbol")

	_, err = normalizeEntries([]Entry{{Symbol: "BTCUSDT", Interval: "7m"}})
	assert.Error(t, err)

	_, err = normalizeEntries([]Entry{{Symbol: "BTCUSDT", Interval: "4h", Bars: -1}})
	assert.ErrorContains(t, err, "negative bars")
}

func TestReadWatchlistRejectsUnknownFields(t *testing.T) {
	path := writeWatchlist(t, `
watchlist:
  - symbol: BTCUSDT
    interval: 4h
    leverage: 10
`)
	_, err := NewRegistry(path)
	assert.Error(t, err)
}

func TestNewRegistryMissingFile(t *testing.T) {
	_, err := NewRegistry(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)

	_, err = NewRegistry("   ")
	assert.ErrorContains(t, err, "requires path")
}
