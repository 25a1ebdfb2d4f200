package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"quantagent/internal/watchlist"
)

func TestNextRunAlignsToCandleClose(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 34, 56, 0, time.UTC)

	nextClose, wakeAt := nextRun(now, time.Hour, 10*time.Second)
	assert.Equal(t, time.Date(2025, 6, 1, 13, 0, 0, 0, time.UTC), nextClose)
	assert.Equal(t, time.Date(2025, 6, 1, 13, 0, 10, 0, time.UTC), wakeAt)

	nextClose, _ = nextRun(now, 4*time.Hour, 0)
	assert.Equal(t, time.Date(2025, 6, 1, 16, 0, 0, 0, time.UTC), nextClose)

	// Exactly on a boundary: the next close is one full period away.
	onBoundary := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	nextClose, _ = nextRun(onBoundary, time.Hour, 0)
	assert.Equal(t, time.Date(2025, 6, 1, 13, 0, 0, 0, time.UTC), nextClose)
}

func TestApplyReconcilesLoops(t *testing.T) {
	s := New(nil, 0, false, func(ctx context.Context, e watchlist.Entry) error { return nil })
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.apply(ctx, watchlist.Snapshot{Entries: []watchlist.Entry{
		{Symbol: "BTCUSDT", Interval: "4h"},
		{Symbol: "ETHUSDT", Interval: "1h"},
	}})
	s.loopMu.Lock()
	n := len(s.loops)
	s.loopMu.Unlock()
	assert.Equal(t, 2, n)

	s.apply(ctx, watchlist.Snapshot{Entries: []watchlist.Entry{
		{Symbol: "BTCUSDT", Interval: "4h"},
	}})
	s.loopMu.Lock()
	_, ethAlive := s.loops["ETHUSDT@1h"]
	n = len(s.loops)
	s.loopMu.Unlock()
	assert.Equal(t, 1, n)
	assert.False(t, ethAlive)

	cancel()
	s.wg.Wait()
}

func TestRunImmediatelyExecutesAndStops(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "watchlist.yaml")
	err := os.WriteFile(path, []byte("watchlist:\n  - symbol: BTCUSDT\n    interval: 4h\n    bars: 200\n"), 0o644)
	assert.NoError(t, err)
	reg, err := watchlist.NewRegistry(path)
	assert.NoError(t, err)

	ran := make(chan watchlist.Entry, 1)
	s := New(reg, 10*time.Second, true, func(ctx context.Context, e watchlist.Entry) error {
		select {
		case ran <- e:
		default:
		}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case e := <-ran:
		assert.Equal(t, "BTCUSDT", e.Symbol)
		assert.Equal(t, 200, e.Bars)
	case <-time.After(5 * time.Second):
		t.Fatal("task did not run immediately")
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestRunRequiresRegistryAndTask(t *testing.T) {
	s := New(nil, 0, false, func(ctx context.Context, e watchlist.Entry) error { return nil })
	assert.Error(t, s.Run(context.Background()))

	dir := t.TempDir()
	path := filepath.Join(dir, "watchlist.yaml")
	assert.NoError(t, os.WriteFile(path, []byte("watchlist:\n  - symbol: BTCUSDT\n    interval: 4h\n"), 0o644))
	reg, err := watchlist.NewRegistry(path)
	assert.NoError(t, err)

	s = New(reg, 0, false, nil)
	assert.Error(t, s.Run(context.Background()))
}
