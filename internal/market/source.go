package market

import (
	"context"
	"errors"
)

// ErrUnavailable marks transport or upstream failures while fetching a
// series. Providers wrap their errors with it so the orchestrator can
// distinguish "no data to be had" from programming errors.
var ErrUnavailable = errors.New("market data unavailable")

// Source supplies historical candles. Implementations must return candles
// in ascending open-time order with the unclosed head candle dropped.
type Source interface {
	Name() string
	FetchSeries(ctx context.Context, symbol, interval string, limit int) (Series, error)
}

// FetchFunc adapts a function to the Source interface, used by tests.
type FetchFunc struct {
	SourceName string
	Fn         func(ctx context.Context, symbol, interval string, limit int) (Series, error)
}

func (f FetchFunc) Name() string {
	if f.SourceName == "" {
		return "func"
	}
	return f.SourceName
}

func (f FetchFunc) FetchSeries(ctx context.Context, symbol, interval string, limit int) (Series, error) {
	return f.Fn(ctx, symbol, interval, limit)
}
