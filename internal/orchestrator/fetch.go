package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"quantagent/internal/logger"
	"quantagent/internal/market"
	"quantagent/internal/pkg/circuit"
)

const (
	defaultFetchAttempts = 2
	defaultRetryDelay    = 500 * time.Millisecond
	breakerThreshold     = 3
	breakerCooldown      = 30 * time.Second
)

// Fetcher resolves a series through the source chain: cache first, then
// each source in priority order with bounded retries. Every source sits
// behind its own breaker so a dead primary stops eating its retry
// budget on every request.
type Fetcher struct {
	Sources    []market.Source
	Cache      market.SeriesCache
	Attempts   int
	RetryDelay time.Duration

	breakers map[string]*circuit.Breaker
}

func NewFetcher(cache market.SeriesCache, sources ...market.Source) *Fetcher {
	f := &Fetcher{
		Sources:    sources,
		Cache:      cache,
		Attempts:   defaultFetchAttempts,
		RetryDelay: defaultRetryDelay,
		breakers:   make(map[string]*circuit.Breaker, len(sources)),
	}
	for _, s := range sources {
		f.breakers[s.Name()] = circuit.NewBreaker(s.Name(), breakerThreshold, breakerCooldown)
	}
	return f
}

// Fetch returns a validated series and the name of what produced it,
// "cache" included. Failure of the whole chain is a DataUnavailableError.
func (f *Fetcher) Fetch(ctx context.Context, sym, interval string, bars int) (market.Series, string, error) {
	if f.Cache != nil {
		if series, ok := f.Cache.Get(sym, interval, bars); ok {
			return series, "cache", nil
		}
	}

	attempts := 0
	var lastErr error
	for _, src := range f.Sources {
		br := f.breakers[src.Name()]
		if br != nil && !br.Allow() {
			logger.Debugf("fetch: breaker open for %s, skipping", src.Name())
			continue
		}
		series, n, err := f.fetchFrom(ctx, src, sym, interval, bars)
		attempts += n
		if err == nil {
			if br != nil {
				br.RecordSuccess()
			}
			if f.Cache != nil {
				f.Cache.Put(sym, interval, series)
			}
			return series, src.Name(), nil
		}
		if br != nil {
			br.RecordFailure()
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		logger.Warnf("fetch: %s failed for %s %s: %v", src.Name(), sym, interval, err)
	}
	if lastErr == nil {
		lastErr = market.ErrUnavailable
	}
	return nil, "", &DataUnavailableError{Symbol: sym, Interval: interval, Attempts: attempts, Err: lastErr}
}

func (f *Fetcher) fetchFrom(ctx context.Context, src market.Source, sym, interval string, bars int) (market.Series, int, error) {
	attempts := f.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, i, ctx.Err()
			case <-time.After(f.RetryDelay):
			}
		}
		series, err := src.FetchSeries(ctx, sym, interval, bars)
		if err == nil {
			if verr := series.Validate(); verr != nil {
				err = fmt.Errorf("%s returned invalid series: %w", src.Name(), verr)
			} else {
				return series, i + 1, nil
			}
		}
		lastErr = err
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, i + 1, err
		}
	}
	return nil, attempts, lastErr
}
