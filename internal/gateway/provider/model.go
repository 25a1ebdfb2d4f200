package provider

import (
	"context"
	"errors"
)

// ErrTimeout wraps completion calls that ran out of time. Callers separate
// it from other model failures when deciding how to report exhaustion.
var ErrTimeout = errors.New("model call timed out")

type ImagePayload struct {
	DataURI     string
	Description string
}

type ChatPayload struct {
	System     string
	User       string
	Images     []ImagePayload
	ExpectJSON bool
	MaxTokens  int
}

// ModelProvider is one completion backend. Call blocks until the model
// responds, the context expires, or the retry budget is spent.
type ModelProvider interface {
	ID() string
	Enabled() bool
	SupportsVision() bool
	ExpectsJSON() bool

	Call(ctx context.Context, payload ChatPayload) (string, error)
}
