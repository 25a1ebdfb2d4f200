package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"quantagent/internal/decision"
	"quantagent/internal/logger"
	"quantagent/internal/orchestrator"
	"quantagent/internal/store/decisionlog"
	"quantagent/internal/store/gormstore"
	"quantagent/internal/watchlist"

	"github.com/gin-gonic/gin"
)

// AnalysisRunner runs one full analysis cycle and persists its outcome.
type AnalysisRunner interface {
	Analyze(ctx context.Context, req orchestrator.Request) (*orchestrator.Outcome, error)
}

// DecisionReader queries stored decisions.
type DecisionReader interface {
	GetDecision(ctx context.Context, traceID string) (gormstore.DecisionRecord, error)
	ListDecisions(ctx context.Context, q gormstore.DecisionQuery) ([]gormstore.DecisionRecord, error)
}

// SynthesisReader queries the raw model exchange log.
type SynthesisReader interface {
	Recent(ctx context.Context, q decisionlog.Query) ([]decisionlog.Record, error)
}

// WatchlistReader exposes the current watchlist.
type WatchlistReader interface {
	Snapshot() watchlist.Snapshot
}

type Router struct {
	Runner    AnalysisRunner
	Store     DecisionReader
	Logs      SynthesisReader
	Watchlist WatchlistReader
}

func NewRouter(runner AnalysisRunner, store DecisionReader, logs SynthesisReader, wl WatchlistReader) *Router {
	return &Router{Runner: runner, Store: store, Logs: logs, Watchlist: wl}
}

func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.POST("/analyze", r.handleAnalyze)
	group.GET("/decisions", r.handleListDecisions)
	group.GET("/decisions/:id", r.handleDecisionByID)
	group.GET("/synthesis", r.handleSynthesisLog)
	group.GET("/watchlist", r.handleWatchlist)
}

func (r *Router) handleAnalyze(c *gin.Context) {
	var req orchestrator.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	out, err := r.Runner.Analyze(c.Request.Context(), req)
	if err != nil {
		status := statusForError(err)
		if status >= http.StatusInternalServerError {
			logger.Errorf("[api] analyze %s %s failed ip=%s err=%v", req.Symbol, req.Interval, c.ClientIP(), err)
		} else {
			logger.Warnf("[api] analyze %s %s rejected ip=%s err=%v", req.Symbol, req.Interval, c.ClientIP(), err)
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	logger.Infof("[api] analyze %s %s ip=%s action=%s trace=%s",
		out.Symbol, out.Interval, c.ClientIP(), out.Decision.Action, out.TraceID)
	c.JSON(http.StatusOK, out)
}

func (r *Router) handleListDecisions(c *gin.Context) {
	if r.Store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "decision store not enabled"})
		return
	}
	q := gormstore.DecisionQuery{
		Symbol: c.Query("symbol"),
		Action: c.Query("action"),
		Limit:  parseIntDefault(c.Query("limit"), 50),
		Offset: parseIntDefault(c.Query("offset"), 0),
	}
	records, err := r.Store.ListDecisions(c.Request.Context(), q)
	if err != nil {
		logger.Errorf("[api] list decisions failed ip=%s err=%v", c.ClientIP(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"decisions": records, "count": len(records)})
}

func (r *Router) handleDecisionByID(c *gin.Context) {
	if r.Store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "decision store not enabled"})
		return
	}
	traceID := strings.TrimSpace(c.Param("id"))
	if traceID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "trace id required"})
		return
	}
	rec, err := r.Store.GetDecision(c.Request.Context(), traceID)
	if err != nil {
		if errors.Is(err, gormstore.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "decision not found"})
			return
		}
		logger.Errorf("[api] decision detail failed ip=%s trace=%s err=%v", c.ClientIP(), traceID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (r *Router) handleSynthesisLog(c *gin.Context) {
	if r.Logs == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "synthesis log not enabled"})
		return
	}
	q := decisionlog.Query{
		Symbol: c.Query("symbol"),
		Limit:  parseIntDefault(c.Query("limit"), 50),
		Offset: parseIntDefault(c.Query("offset"), 0),
	}
	records, err := r.Logs.Recent(c.Request.Context(), q)
	if err != nil {
		logger.Errorf("[api] synthesis log failed ip=%s err=%v", c.ClientIP(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": records, "count": len(records)})
}

func (r *Router) handleWatchlist(c *gin.Context) {
	if r.Watchlist == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "watchlist not enabled"})
		return
	}
	snap := r.Watchlist.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"version":   snap.Version,
		"loaded_at": snap.LoadedAt,
		"entries":   snap.Entries,
	})
}

// statusForError maps the pipeline's typed errors onto HTTP statuses.
func statusForError(err error) int {
	var (
		dataErr    *orchestrator.DataUnavailableError
		partialErr *orchestrator.PartialAnalysisError
		synthErr   *decision.SynthesisError
		parseErr   *decision.ParseError
	)
	switch {
	case errors.Is(err, orchestrator.ErrBadRequest):
		return http.StatusBadRequest
	case errors.As(err, &partialErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &dataErr):
		return http.StatusBadGateway
	case errors.As(err, &synthErr):
		return http.StatusBadGateway
	case errors.As(err, &parseErr):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func parseIntDefault(raw string, def int) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}
