package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"quantagent/internal/analysis"
	"quantagent/internal/analysis/indicator"
	"quantagent/internal/analysis/pattern"
	"quantagent/internal/analysis/trend"
	"quantagent/internal/decision"
	"quantagent/internal/gateway/provider"
	"quantagent/internal/market"
)

type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) ID() string           { return "mock" }
func (m *MockProvider) Enabled() bool        { return true }
func (m *MockProvider) SupportsVision() bool { return false }
func (m *MockProvider) ExpectsJSON() bool    { return true }

func (m *MockProvider) Call(ctx context.Context, payload provider.ChatPayload) (string, error) {
	args := m.Called(ctx, payload)
	return args.String(0), args.Error(1)
}

// syntheticSeries builds a gently trending walk that satisfies every
// series invariant.
func syntheticSeries(n int) market.Series {
	start := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	step := 4 * time.Hour
	series := make(market.Series, 0, n)
	price := 40000.0
	for i := 0; i < n; i++ {
		open := price
		drift := 25.0 * math.Sin(float64(i)/9)
		close := open + drift + 8
		high := math.Max(open, close) + 15
		low := math.Min(open, close) - 15
		ot := start.Add(time.Duration(i) * step)
		series = append(series, market.Candle{
			OpenTime:  ot.UnixMilli(),
			CloseTime: ot.Add(step).UnixMilli() - 1,
			Open:      open, High: high, Low: low, Close: close,
			Volume: 1000 + 40*math.Abs(drift),
			Trades: 500,
		})
		price = close
	}
	return series
}

func staticSource(name string, series market.Series) market.Source {
	return market.FetchFunc{SourceName: name, Fn: func(ctx context.Context, symbol, interval string, limit int) (market.Series, error) {
		return series, nil
	}}
}

func failingSource(name string, err error) market.Source {
	return market.FetchFunc{SourceName: name, Fn: func(ctx context.Context, symbol, interval string, limit int) (market.Series, error) {
		return nil, err
	}}
}

func newTestOrchestrator(mp provider.ModelProvider, sources ...market.Source) *Orchestrator {
	f := NewFetcher(nil, sources...)
	f.RetryDelay = time.Millisecond
	return &Orchestrator{
		Fetcher:   f,
		Indicator: indicator.New(),
		Pattern:   pattern.New(),
		Trend:     trend.New(),
		Engine:    decision.NewEngine(mp),
	}
}

const validDecisionJSON = `{"action":"NEUTRAL","confidence":0.55,"justification":"Signals are mixed across horizons"}`

func TestRunHappyPath(t *testing.T) {
	series := syntheticSeries(500)
	mp := new(MockProvider)
	mp.On("Call", mock.Anything, mock.Anything).Return(validDecisionJSON, nil).Once()

	o := newTestOrchestrator(mp, staticSource("binance", series))
	out, err := o.Run(context.Background(), Request{Symbol: "BTC/USDT", Interval: "4h"})
	assert.NoError(t, err)
	assert.NotNil(t, out)
	assert.NotEmpty(t, out.TraceID)
	assert.Equal(t, "BTCUSDT", out.Symbol)
	assert.Equal(t, "binance", out.Source)
	assert.Equal(t, 500, out.Bundle.Bars)
	assert.Equal(t, series[len(series)-1].Close, out.Bundle.LastClose)
	assert.Equal(t, time.UnixMilli(series[len(series)-1].CloseTime).UTC(), out.AsOf)
	assert.Equal(t, decision.ActionNeutral, out.Decision.Action)
	assert.Equal(t, out.Bundle.Ref(), out.Decision.BundleRef)
	mp.AssertExpectations(t)
}

func TestRunFallbackSource(t *testing.T) {
	series := syntheticSeries(200)
	mp := new(MockProvider)
	mp.On("Call", mock.Anything, mock.Anything).Return(validDecisionJSON, nil).Once()

	primary := failingSource("binance", fmt.Errorf("klines: %w", market.ErrUnavailable))
	o := newTestOrchestrator(mp, primary, staticSource("yahoo", series))
	out, err := o.Run(context.Background(), Request{Symbol: "BTCUSDT", Interval: "4h"})
	assert.NoError(t, err)
	assert.Equal(t, "yahoo", out.Source)
	mp.AssertExpectations(t)
}

func TestRunAllSourcesDown(t *testing.T) {
	mp := new(MockProvider)
	o := newTestOrchestrator(mp,
		failingSource("binance", fmt.Errorf("klines: %w", market.ErrUnavailable)),
		failingSource("yahoo", fmt.Errorf("chart: %w", market.ErrUnavailable)))

	_, err := o.Run(context.Background(), Request{Symbol: "BTCUSDT", Interval: "4h"})
	var derr *DataUnavailableError
	assert.True(t, errors.As(err, &derr))
	assert.Equal(t, "BTCUSDT", derr.Symbol)
	assert.Equal(t, 4, derr.Attempts)
	assert.True(t, errors.Is(err, market.ErrUnavailable))
	mp.AssertNotCalled(t, "Call", mock.Anything, mock.Anything)
}

func TestRunPartialAnalysisShortSeries(t *testing.T) {
	// 25 bars: enough for the pattern agent, not for indicator or trend.
	mp := new(MockProvider)
	o := newTestOrchestrator(mp, staticSource("binance", syntheticSeries(25)))

	_, err := o.Run(context.Background(), Request{Symbol: "BTCUSDT", Interval: "4h"})
	var perr *PartialAnalysisError
	assert.True(t, errors.As(err, &perr))
	names := make([]string, 0, len(perr.Failures))
	for _, f := range perr.Failures {
		names = append(names, f.Agent)
	}
	assert.Equal(t, []string{"IndicatorAgent", "TrendAgent"}, names)

	var insuff *analysis.InsufficientDataError
	assert.True(t, errors.As(err, &insuff))
	mp.AssertNotCalled(t, "Call", mock.Anything, mock.Anything)
}

func TestRunAllAgentsFail(t *testing.T) {
	mp := new(MockProvider)
	o := newTestOrchestrator(mp, staticSource("binance", syntheticSeries(3)))

	_, err := o.Run(context.Background(), Request{Symbol: "BTCUSDT", Interval: "4h"})
	var perr *PartialAnalysisError
	assert.True(t, errors.As(err, &perr))
	assert.Len(t, perr.Failures, 3)
	mp.AssertNotCalled(t, "Call", mock.Anything, mock.Anything)
}

func TestRunValidation(t *testing.T) {
	mp := new(MockProvider)
	o := newTestOrchestrator(mp, staticSource("binance", syntheticSeries(100)))

	_, err := o.Run(context.Background(), Request{Symbol: "  ", Interval: "4h"})
	assert.True(t, errors.Is(err, ErrBadRequest))

	_, err = o.Run(context.Background(), Request{Symbol: "BTCUSDT", Interval: "7m"})
	assert.True(t, errors.Is(err, ErrBadRequest))
	mp.AssertNotCalled(t, "Call", mock.Anything, mock.Anything)
}

func TestRunCancelledContext(t *testing.T) {
	mp := new(MockProvider)
	src := market.FetchFunc{SourceName: "binance", Fn: func(ctx context.Context, symbol, interval string, limit int) (market.Series, error) {
		return nil, ctx.Err()
	}}
	o := newTestOrchestrator(mp, src)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := o.Run(ctx, Request{Symbol: "BTCUSDT", Interval: "4h"})
	assert.Error(t, err)
	mp.AssertNotCalled(t, "Call", mock.Anything, mock.Anything)
}

func TestRunParseFailureReturnsTypedError(t *testing.T) {
	mp := new(MockProvider)
	mp.On("Call", mock.Anything, mock.Anything).Return("no structured answer here", nil).Once()

	o := newTestOrchestrator(mp, staticSource("binance", syntheticSeries(120)))
	out, err := o.Run(context.Background(), Request{Symbol: "BTCUSDT", Interval: "4h"})
	assert.Nil(t, out)
	var perr *decision.ParseError
	assert.True(t, errors.As(err, &perr))
	assert.Equal(t, "no structured answer here", perr.Raw)
}

func TestRunProviderTimeout(t *testing.T) {
	mp := new(MockProvider)
	mp.On("Call", mock.Anything, mock.Anything).Return("", provider.ErrTimeout).Once()

	o := newTestOrchestrator(mp, staticSource("binance", syntheticSeries(120)))
	_, err := o.Run(context.Background(), Request{Symbol: "BTCUSDT", Interval: "4h"})
	var serr *decision.SynthesisError
	assert.True(t, errors.As(err, &serr))
	assert.True(t, errors.Is(err, provider.ErrTimeout))
}

func TestFetcherBreakerOpensAfterFailures(t *testing.T) {
	calls := 0
	src := market.FetchFunc{SourceName: "binance", Fn: func(ctx context.Context, symbol, interval string, limit int) (market.Series, error) {
		calls++
		return nil, market.ErrUnavailable
	}}
	f := NewFetcher(nil, src)
	f.Attempts = 1
	f.RetryDelay = time.Millisecond

	for i := 0; i < breakerThreshold; i++ {
		_, _, err := f.Fetch(context.Background(), "BTCUSDT", "4h", 100)
		assert.Error(t, err)
	}
	before := calls
	_, _, err := f.Fetch(context.Background(), "BTCUSDT", "4h", 100)
	assert.Error(t, err)
	assert.Equal(t, before, calls)
}

func TestFetcherServesFromCache(t *testing.T) {
	series := syntheticSeries(100)
	cache := market.NewMemorySeriesCache(time.Minute)
	calls := 0
	src := market.FetchFunc{SourceName: "binance", Fn: func(ctx context.Context, symbol, interval string, limit int) (market.Series, error) {
		calls++
		return series, nil
	}}
	f := NewFetcher(cache, src)

	_, from, err := f.Fetch(context.Background(), "BTCUSDT", "4h", 100)
	assert.NoError(t, err)
	assert.Equal(t, "binance", from)

	_, from, err = f.Fetch(context.Background(), "BTCUSDT", "4h", 100)
	assert.NoError(t, err)
	assert.Equal(t, "cache", from)
	assert.Equal(t, 1, calls)
}
