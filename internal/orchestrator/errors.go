package orchestrator

import (
	"errors"
	"fmt"
	"strings"
)

// ErrBadRequest marks request validation failures so transport layers
// can map them without string matching.
var ErrBadRequest = errors.New("invalid request")

// DataUnavailableError reports that every configured market source was
// tried and none produced a usable series.
type DataUnavailableError struct {
	Symbol   string
	Interval string
	Attempts int
	Err      error
}

func (e *DataUnavailableError) Error() string {
	return fmt.Sprintf("market data unavailable for %s %s after %d attempts: %v",
		e.Symbol, e.Interval, e.Attempts, e.Err)
}

func (e *DataUnavailableError) Unwrap() error { return e.Err }

// AgentFailure names one analysis agent that failed and why.
type AgentFailure struct {
	Agent string
	Err   error
}

// PartialAnalysisError reports that at least one agent failed. The
// surviving summaries are discarded; synthesis never runs on a partial
// bundle.
type PartialAnalysisError struct {
	Symbol   string
	Interval string
	Failures []AgentFailure
}

func (e *PartialAnalysisError) Error() string {
	names := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		names = append(names, f.Agent)
	}
	return fmt.Sprintf("analysis incomplete for %s %s: %s failed",
		e.Symbol, e.Interval, strings.Join(names, ", "))
}

func (e *PartialAnalysisError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}
