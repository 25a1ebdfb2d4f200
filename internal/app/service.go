package app

import (
	"context"

	"quantagent/internal/logger"
	"quantagent/internal/orchestrator"
	"quantagent/internal/store/gormstore"
	"quantagent/internal/watchlist"
)

// AnalysisService runs one analysis cycle and persists the outcome. It is
// the shared entry point for the HTTP API and the scheduler.
type AnalysisService struct {
	Orch        *orchestrator.Orchestrator
	Store       *gormstore.GormStore
	DefaultBars int
}

// Analyze runs the pipeline. A failed save is logged, not returned: the
// decision already exists and the caller should see it.
func (s *AnalysisService) Analyze(ctx context.Context, req orchestrator.Request) (*orchestrator.Outcome, error) {
	if req.Bars <= 0 {
		req.Bars = s.DefaultBars
	}
	out, err := s.Orch.Run(ctx, req)
	if err != nil {
		return nil, err
	}
	if s.Store != nil {
		if err := s.Store.SaveOutcome(ctx, out); err != nil {
			logger.Errorf("persist decision %s failed: %v", out.TraceID, err)
		}
	}
	return out, nil
}

// AnalyzeEntry adapts Analyze to the scheduler's task signature.
func (s *AnalysisService) AnalyzeEntry(ctx context.Context, e watchlist.Entry) error {
	_, err := s.Analyze(ctx, orchestrator.Request{Symbol: e.Symbol, Interval: e.Interval, Bars: e.Bars})
	return err
}
