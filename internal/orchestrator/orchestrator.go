// Package orchestrator drives one analysis cycle end to end: fetch a
// candle series, fan it out to the analysis agents, assemble the bundle,
// and hand it to the decision engine. Each stage fails with a typed
// error so callers can tell missing data from partial analysis from a
// failed synthesis.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"quantagent/internal/analysis/indicator"
	"quantagent/internal/analysis/pattern"
	"quantagent/internal/analysis/trend"
	"quantagent/internal/analysis/visual"
	"quantagent/internal/decision"
	"quantagent/internal/logger"
	"quantagent/internal/market"
	"quantagent/internal/pkg/symbol"
)

const defaultBars = 500

// Request asks for one decision over a symbol and interval. Bars
// defaults to 500 when zero.
type Request struct {
	Symbol   string `json:"symbol"`
	Interval string `json:"interval"`
	Bars     int    `json:"bars,omitempty"`
}

// Outcome is one completed cycle: the decision plus the bundle it was
// made from and enough provenance to replay the reasoning.
type Outcome struct {
	TraceID   string            `json:"trace_id"`
	Symbol    string            `json:"symbol"`
	Interval  string            `json:"interval"`
	AsOf      time.Time         `json:"as_of"`
	Source    string            `json:"source"`
	Bundle    *decision.Bundle  `json:"bundle"`
	Decision  decision.Decision `json:"decision"`
	ElapsedMS int64             `json:"elapsed_ms"`
}

// Orchestrator wires the pipeline stages together. All fields must be
// set except Charts, which opts into best-effort chart rendering.
type Orchestrator struct {
	Fetcher   *Fetcher
	Indicator *indicator.Agent
	Pattern   *pattern.Agent
	Trend     *trend.Agent
	Engine    *decision.Engine
	Charts    bool
}

// Run executes one full cycle. The returned error is one of
// ErrBadRequest, *DataUnavailableError, *PartialAnalysisError,
// *decision.SynthesisError or *decision.ParseError; there is no partial
// Outcome and never a fabricated decision.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Outcome, error) {
	sym := symbol.Clean(req.Symbol)
	if sym == "" {
		return nil, fmt.Errorf("%w: empty symbol", ErrBadRequest)
	}
	interval, err := market.NormalizeInterval(req.Interval)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	bars := req.Bars
	if bars <= 0 {
		bars = defaultBars
	}

	traceID := uuid.NewString()
	start := time.Now()
	logger.Infof("analyze %s %s bars=%d trace=%s", sym, interval, bars, traceID)

	series, sourceName, err := o.Fetcher.Fetch(ctx, sym, interval, bars)
	if err != nil {
		return nil, err
	}
	last, ok := series.Last()
	if !ok {
		return nil, &DataUnavailableError{Symbol: sym, Interval: interval, Attempts: 1, Err: fmt.Errorf("empty series from %s", sourceName)}
	}

	res, failures := o.runAgents(ctx, series)
	if len(failures) > 0 {
		perr := &PartialAnalysisError{Symbol: sym, Interval: interval, Failures: failures}
		logger.Warnf("%v (trace=%s)", perr, traceID)
		return nil, perr
	}

	if o.Charts {
		o.attachChart(ctx, sym, interval, series, &res)
	}

	bundle := &decision.Bundle{
		Symbol:    sym,
		Interval:  interval,
		AsOf:      time.UnixMilli(last.CloseTime).UTC(),
		LastClose: last.Close,
		Bars:      len(series),
		Indicator: res.indicator,
		Pattern:   res.pattern,
		Trend:     res.trend,
	}

	d, err := o.Engine.Decide(ctx, bundle)
	if err != nil {
		return nil, err
	}

	out := &Outcome{
		TraceID:   traceID,
		Symbol:    sym,
		Interval:  interval,
		AsOf:      bundle.AsOf,
		Source:    sourceName,
		Bundle:    bundle,
		Decision:  d,
		ElapsedMS: time.Since(start).Milliseconds(),
	}
	logger.Infof("decision %s %s action=%s confidence=%.2f trace=%s elapsed=%dms",
		sym, interval, d.Action, d.Confidence, traceID, out.ElapsedMS)
	return out, nil
}

// attachChart renders the series and pins the artifact onto the pattern
// summary. Render failures are logged and swallowed; a missing chart
// never blocks a decision.
func (o *Orchestrator) attachChart(ctx context.Context, sym, interval string, series market.Series, res *agentResults) {
	art, err := visual.Render(ctx, visual.Input{
		Symbol:     sym,
		Interval:   interval,
		Series:     series,
		Support:    res.pattern.Support,
		Resistance: res.pattern.Resistance,
	})
	if err != nil {
		logger.Warnf("chart render failed for %s %s: %v", sym, interval, err)
		return
	}
	res.pattern.Chart = art
}
