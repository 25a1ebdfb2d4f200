package orchestrator

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"quantagent/internal/analysis"
	"quantagent/internal/analysis/indicator"
	"quantagent/internal/analysis/pattern"
	"quantagent/internal/analysis/trend"
	"quantagent/internal/logger"
	"quantagent/internal/market"
)

// agentResults holds one slot per agent so the fan-out never shares
// mutable state between goroutines.
type agentResults struct {
	indicator indicator.Summary
	pattern   pattern.Summary
	trend     trend.Summary
}

// runAgents fans the series out to the three agents concurrently. Each
// failure is isolated and named; the fixed collection order keeps error
// reports stable.
func (o *Orchestrator) runAgents(ctx context.Context, series market.Series) (agentResults, []AgentFailure) {
	var res agentResults
	var indErr, patErr, trdErr error

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		res.indicator, indErr = safeAnalyze(egCtx, o.Indicator.Name(), func() (indicator.Summary, error) {
			return o.Indicator.Analyze(series)
		})
		return nil
	})
	eg.Go(func() error {
		res.pattern, patErr = safeAnalyze(egCtx, o.Pattern.Name(), func() (pattern.Summary, error) {
			return o.Pattern.Analyze(series)
		})
		return nil
	})
	eg.Go(func() error {
		res.trend, trdErr = safeAnalyze(egCtx, o.Trend.Name(), func() (trend.Summary, error) {
			return o.Trend.Analyze(series)
		})
		return nil
	})
	if err := eg.Wait(); err != nil {
		logger.Debugf("analysis errgroup: %v", err)
	}

	var failures []AgentFailure
	for _, slot := range []struct {
		name string
		err  error
	}{
		{o.Indicator.Name(), indErr},
		{o.Pattern.Name(), patErr},
		{o.Trend.Name(), trdErr},
	} {
		if slot.err != nil {
			failures = append(failures, AgentFailure{Agent: slot.name, Err: slot.err})
		}
	}
	return res, failures
}

// safeAnalyze runs one agent with panic isolation. A cancelled context
// skips the work; a panic becomes a named agent error.
func safeAnalyze[T any](ctx context.Context, name string, fn func() (T, error)) (out T, err error) {
	if cerr := ctx.Err(); cerr != nil {
		return out, analysis.WrapAgentError(name, cerr)
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Warnf("agent %s panicked: %v", name, r)
			err = analysis.WrapAgentError(name, fmt.Errorf("panic: %v", r))
		}
	}()
	return fn()
}
