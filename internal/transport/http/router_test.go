package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"quantagent/internal/decision"
	"quantagent/internal/gateway/provider"
	"quantagent/internal/orchestrator"
	"quantagent/internal/store/decisionlog"
	"quantagent/internal/store/gormstore"
	"quantagent/internal/watchlist"
)

type stubRunner struct {
	out *orchestrator.Outcome
	err error
}

func (s *stubRunner) Analyze(ctx context.Context, req orchestrator.Request) (*orchestrator.Outcome, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.out, nil
}

type stubStore struct {
	rec     gormstore.DecisionRecord
	getErr  error
	listErr error
}

func (s *stubStore) GetDecision(ctx context.Context, traceID string) (gormstore.DecisionRecord, error) {
	return s.rec, s.getErr
}

func (s *stubStore) ListDecisions(ctx context.Context, q gormstore.DecisionQuery) ([]gormstore.DecisionRecord, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return []gormstore.DecisionRecord{s.rec}, nil
}

type stubLogs struct{}

func (stubLogs) Recent(ctx context.Context, q decisionlog.Query) ([]decisionlog.Record, error) {
	return []decisionlog.Record{{Symbol: "BTCUSDT", ParseState: "STRUCTURED"}}, nil
}

type stubWatchlist struct{}

func (stubWatchlist) Snapshot() watchlist.Snapshot {
	return watchlist.Snapshot{
		Version: 3,
		Entries: []watchlist.Entry{{Symbol: "BTCUSDT", Interval: "4h"}},
	}
}

func newTestServer(t *testing.T, runner AnalysisRunner, store DecisionReader) *httptest.Server {
	t.Helper()
	srv, err := NewServer(ServerConfig{
		Addr:      ":0",
		Runner:    runner,
		Store:     store,
		Logs:      stubLogs{},
		Watchlist: stubWatchlist{},
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func sampleOutcome() *orchestrator.Outcome {
	return &orchestrator.Outcome{
		TraceID:  "trace-1",
		Symbol:   "BTCUSDT",
		Interval: "4h",
		AsOf:     time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Source:   "binance",
		Decision: decision.Decision{
			Action:        decision.ActionLong,
			Confidence:    0.8,
			Justification: "trend up",
			RiskLevel:     decision.RiskMedium,
		},
	}
}

func TestAnalyzeEndpoint(t *testing.T) {
	ts := newTestServer(t, &stubRunner{out: sampleOutcome()}, &stubStore{})

	resp, err := http.Post(ts.URL+"/api/v1/analyze", "application/json",
		strings.NewReader(`{"symbol":"BTC/USDT","interval":"4h"}`))
	assert.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var out orchestrator.Outcome
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "trace-1", out.TraceID)
	assert.Equal(t, decision.ActionLong, out.Decision.Action)
}

func TestAnalyzeRejectsBadBody(t *testing.T) {
	ts := newTestServer(t, &stubRunner{out: sampleOutcome()}, &stubStore{})

	resp, err := http.Post(ts.URL+"/api/v1/analyze", "application/json", strings.NewReader("{not json"))
	assert.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAnalyzeMapsTypedErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"bad request", orchestrator.ErrBadRequest, http.StatusBadRequest},
		{"data unavailable", &orchestrator.DataUnavailableError{Symbol: "BTCUSDT", Interval: "4h", Attempts: 4}, http.StatusBadGateway},
		{"partial analysis", &orchestrator.PartialAnalysisError{Symbol: "BTCUSDT", Interval: "4h",
			Failures: []orchestrator.AgentFailure{{Agent: "IndicatorAgent", Err: errors.New("short series")}}}, http.StatusUnprocessableEntity},
		{"synthesis", &decision.SynthesisError{Provider: "deepseek", Err: provider.ErrTimeout}, http.StatusBadGateway},
		{"parse", &decision.ParseError{State: decision.StateFailed, Raw: "garbage"}, http.StatusBadGateway},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ts := newTestServer(t, &stubRunner{err: tc.err}, &stubStore{})
			resp, err := http.Post(ts.URL+"/api/v1/analyze", "application/json",
				strings.NewReader(`{"symbol":"BTCUSDT","interval":"4h"}`))
			assert.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, tc.want, resp.StatusCode)
		})
	}
}

func TestDecisionByIDNotFound(t *testing.T) {
	ts := newTestServer(t, &stubRunner{out: sampleOutcome()}, &stubStore{getErr: gormstore.ErrNotFound})

	resp, err := http.Get(ts.URL + "/api/v1/decisions/no-such-trace")
	assert.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListDecisionsAndWatchlist(t *testing.T) {
	store := &stubStore{rec: gormstore.DecisionRecord{TraceID: "trace-1", Symbol: "BTCUSDT"}}
	ts := newTestServer(t, &stubRunner{out: sampleOutcome()}, store)

	resp, err := http.Get(ts.URL + "/api/v1/decisions?symbol=BTCUSDT&limit=10")
	assert.NoError(t, err)
	var listBody struct {
		Decisions []gormstore.DecisionRecord `json:"decisions"`
		Count     int                        `json:"count"`
	}
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&listBody))
	resp.Body.Close()
	assert.Equal(t, 1, listBody.Count)
	assert.Equal(t, "trace-1", listBody.Decisions[0].TraceID)

	resp, err = http.Get(ts.URL + "/api/v1/watchlist")
	assert.NoError(t, err)
	var wlBody struct {
		Version int64             `json:"version"`
		Entries []watchlist.Entry `json:"entries"`
	}
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&wlBody))
	resp.Body.Close()
	assert.Equal(t, int64(3), wlBody.Version)
	assert.Len(t, wlBody.Entries, 1)

	resp, err = http.Get(ts.URL + "/healthz")
	assert.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
