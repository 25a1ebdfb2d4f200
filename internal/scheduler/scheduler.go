// Package scheduler runs one analysis per watchlist entry at candle-aligned
// boundaries. Each entry gets its own loop aligned to its interval; runs are
// serialized so concurrent entries never stack requests on the data source
// or the model. A failed run logs and waits for the next boundary.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"quantagent/internal/logger"
	"quantagent/internal/market"
	"quantagent/internal/watchlist"
)

// TaskFunc performs one analysis for a watchlist entry.
type TaskFunc func(ctx context.Context, entry watchlist.Entry) error

type Scheduler struct {
	Registry       *watchlist.Registry
	Offset         time.Duration
	RunImmediately bool
	Task           TaskFunc

	nowFn func() time.Time

	runMu sync.Mutex // serializes task execution across entry loops

	loopMu sync.Mutex
	loops  map[string]context.CancelFunc
	wg     sync.WaitGroup
}

func New(reg *watchlist.Registry, offset time.Duration, runImmediately bool, task TaskFunc) *Scheduler {
	return &Scheduler{
		Registry:       reg,
		Offset:         offset,
		RunImmediately: runImmediately,
		Task:           task,
		nowFn:          time.Now,
		loops:          make(map[string]context.CancelFunc),
	}
}

// Run starts a loop per watchlist entry, follows watchlist reloads, and
// blocks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.Registry == nil {
		return fmt.Errorf("scheduler requires a watchlist registry")
	}
	if s.Task == nil {
		return fmt.Errorf("scheduler requires a task")
	}
	if s.Offset < 0 {
		logger.Warnf("scheduler: negative offset=%s, clamp to 0", s.Offset)
		s.Offset = 0
	}
	if s.nowFn == nil {
		s.nowFn = time.Now
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	snap := s.Registry.Snapshot()
	logger.Infof("scheduler: started entries=%d offset=%s run_immediately=%v",
		len(snap.Entries), s.Offset, s.RunImmediately)
	s.apply(runCtx, snap)
	s.Registry.OnChange(func(snap watchlist.Snapshot) {
		logger.Infof("scheduler: watchlist v%d applied, entries=%d", snap.Version, len(snap.Entries))
		s.apply(runCtx, snap)
	})

	<-ctx.Done()
	cancel()
	s.wg.Wait()
	logger.Infof("scheduler: stopped")
	return ctx.Err()
}

// apply reconciles running loops against a watchlist snapshot.
func (s *Scheduler) apply(ctx context.Context, snap watchlist.Snapshot) {
	if ctx.Err() != nil {
		return
	}
	s.loopMu.Lock()
	defer s.loopMu.Unlock()

	want := make(map[string]watchlist.Entry, len(snap.Entries))
	for _, e := range snap.Entries {
		want[e.Key()] = e
	}
	for key, stop := range s.loops {
		if _, ok := want[key]; !ok {
			logger.Infof("scheduler: stopping %s", key)
			stop()
			delete(s.loops, key)
		}
	}
	for key, e := range want {
		if _, ok := s.loops[key]; ok {
			continue
		}
		entryCtx, stop := context.WithCancel(ctx)
		s.loops[key] = stop
		s.wg.Add(1)
		go func(e watchlist.Entry) {
			defer s.wg.Done()
			s.runEntry(entryCtx, e)
		}(e)
	}
}

func (s *Scheduler) runEntry(ctx context.Context, e watchlist.Entry) {
	d, ok := market.IntervalDuration(e.Interval)
	if !ok {
		logger.Errorf("scheduler: entry %s has no parseable interval, skipping", e.Key())
		return
	}

	if s.RunImmediately {
		s.execute(ctx, e)
	}

	for {
		now := s.nowFn().UTC()
		nextClose, wakeAt := nextRun(now, d, s.Offset)
		wait := wakeAt.Sub(now)

		logger.Infof("scheduler[%s]: next close=%s run=%s (in %s)",
			e.Key(), nextClose.Format(time.RFC3339), wakeAt.Format(time.RFC3339), wait.Truncate(time.Second))

		if wait <= 0 {
			s.execute(ctx, e)
			continue
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		if ctx.Err() != nil {
			return
		}
		s.execute(ctx, e)
	}
}

// nextRun returns the close of the current candle period and the wake time
// after it.
func nextRun(now time.Time, interval, offset time.Duration) (nextClose, wakeAt time.Time) {
	now = now.UTC()
	nextClose = now.Truncate(interval).Add(interval)
	wakeAt = nextClose.Add(offset)
	return nextClose, wakeAt
}

func (s *Scheduler) execute(ctx context.Context, e watchlist.Entry) {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if ctx.Err() != nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("scheduler[%s]: task panic: %v", e.Key(), r)
		}
	}()
	if err := s.Task(ctx, e); err != nil {
		logger.Errorf("scheduler[%s]: run failed: %v", e.Key(), err)
	}
}
