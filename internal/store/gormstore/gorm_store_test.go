package gormstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"quantagent/internal/decision"
	"quantagent/internal/orchestrator"
)

func newTestStore(t *testing.T) *GormStore {
	t.Helper()
	s, err := NewGormStore(filepath.Join(t.TempDir(), "quantagent.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleOutcome(traceID, symbol string, action decision.Action) *orchestrator.Outcome {
	bundle := &decision.Bundle{
		Symbol:    symbol,
		Interval:  "4h",
		AsOf:      time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		LastClose: 43250.5,
		Bars:      500,
	}
	return &orchestrator.Outcome{
		TraceID:  traceID,
		Symbol:   symbol,
		Interval: "4h",
		AsOf:     bundle.AsOf,
		Source:   "binance",
		Bundle:   bundle,
		Decision: decision.Decision{
			Action:        action,
			Confidence:    0.7,
			Justification: "Trend and momentum align",
			RiskLevel:     decision.RiskMedium,
			KeyFactors:    []string{"trend", "momentum"},
			BundleRef:     bundle.Ref(),
		},
		ElapsedMS: 1200,
	}
}

func TestSaveAndGetDecision(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	out := sampleOutcome("trace-1", "BTCUSDT", decision.ActionLong)
	assert.NoError(t, s.SaveOutcome(ctx, out))

	rec, err := s.GetDecision(ctx, "trace-1")
	assert.NoError(t, err)
	assert.Equal(t, "BTCUSDT", rec.Symbol)
	assert.Equal(t, decision.ActionLong, rec.Decision.Action)
	assert.Equal(t, []string{"trend", "momentum"}, rec.Decision.KeyFactors)
	assert.Equal(t, out.Bundle.Ref(), rec.Decision.BundleRef)
	assert.Equal(t, out.AsOf, rec.AsOf)
	assert.NotEmpty(t, rec.Bundle)

	_, err = s.GetDecision(ctx, "no-such-trace")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestListDecisionsFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	assert.NoError(t, s.SaveOutcome(ctx, sampleOutcome("t1", "BTCUSDT", decision.ActionLong)))
	assert.NoError(t, s.SaveOutcome(ctx, sampleOutcome("t2", "ETHUSDT", decision.ActionShort)))
	assert.NoError(t, s.SaveOutcome(ctx, sampleOutcome("t3", "BTCUSDT", decision.ActionNeutral)))

	all, err := s.ListDecisions(ctx, DecisionQuery{})
	assert.NoError(t, err)
	assert.Len(t, all, 3)

	btc, err := s.ListDecisions(ctx, DecisionQuery{Symbol: "btcusdt"})
	assert.NoError(t, err)
	assert.Len(t, btc, 2)

	shorts, err := s.ListDecisions(ctx, DecisionQuery{Action: "short"})
	assert.NoError(t, err)
	assert.Len(t, shorts, 1)
	assert.Equal(t, "ETHUSDT", shorts[0].Symbol)
}

func TestDuplicateTraceRejected(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	assert.NoError(t, s.SaveOutcome(ctx, sampleOutcome("dup", "BTCUSDT", decision.ActionLong)))
	assert.Error(t, s.SaveOutcome(ctx, sampleOutcome("dup", "BTCUSDT", decision.ActionLong)))
}
