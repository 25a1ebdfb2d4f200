package decision

import "fmt"

// SynthesisError reports a model call that never produced usable text:
// transport failure, timeout, or an empty completion.
type SynthesisError struct {
	Provider string
	Err      error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("decision synthesis failed via %s: %v", e.Provider, e.Err)
}

func (e *SynthesisError) Unwrap() error { return e.Err }

// ParseError reports model text that survived the call but could not be
// turned into a valid decision, strict pass and recovery both spent.
// Raw keeps the full response for the caller to log or store.
type ParseError struct {
	State ParseState
	Raw   string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("decision parse failed in state %s: %v", e.State, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
