// Package analysis defines the shared contract for the per-series analysis
// agents. Every agent is a pure function of a candle series: it declares its
// own minimum length, produces an immutable summary, and reports typed
// failures instead of degraded output.
package analysis

import "fmt"

// InsufficientDataError reports a series shorter than an agent's minimum.
type InsufficientDataError struct {
	Agent string
	Need  int
	Got   int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("%s: need at least %d bars, got %d", e.Agent, e.Need, e.Got)
}

// WrapAgentError tags an agent failure with the agent name so callers can
// report which stage failed. Returns nil for a nil error.
func WrapAgentError(agent string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", agent, err)
}
