package decision

import (
	"context"
	"errors"
	"strings"
	"time"

	"quantagent/internal/gateway/provider"
	"quantagent/internal/logger"
)

const defaultMaxTokens = 1000

// Engine runs one synthesis end to end: compose, call the model, parse.
// The model call is the only effectful stage. An optional Observer sees
// every exchange, failures included.
type Engine struct {
	Provider  provider.ModelProvider
	Composer  Composer
	Parser    Parser
	Observer  Observer
	MaxTokens int
}

func NewEngine(p provider.ModelProvider) *Engine {
	return &Engine{Provider: p, MaxTokens: defaultMaxTokens}
}

// Synthesize sends the composed prompt and returns the raw model text.
func (e *Engine) Synthesize(ctx context.Context, b *Bundle) (string, error) {
	raw, _, err := e.synthesize(ctx, b)
	return raw, err
}

// Decide runs one full synthesis over the bundle: a single model call,
// strict parse, at most one recovery. The decision carries the bundle
// fingerprint so stored rows trace back to the analysis behind them.
func (e *Engine) Decide(ctx context.Context, b *Bundle) (Decision, error) {
	raw, trace, err := e.synthesize(ctx, b)
	if err != nil {
		trace.State = StateFailed
		trace.Err = err.Error()
		e.notify(ctx, trace)
		return Decision{}, err
	}

	res, perr := e.Parser.Parse(raw, b.LastClose)
	trace.Raw = raw
	trace.State = res.State
	if perr != nil {
		trace.Err = perr.Error()
		e.notify(ctx, trace)
		return Decision{}, perr
	}
	e.notify(ctx, trace)

	d := res.Decision
	d.BundleRef = trace.BundleRef
	return d, nil
}

func (e *Engine) synthesize(ctx context.Context, b *Bundle) (string, Trace, error) {
	system, user := e.Composer.Compose(b)
	payload := provider.ChatPayload{
		System:     system,
		User:       user,
		ExpectJSON: true,
		MaxTokens:  e.maxTokens(),
	}
	// The chart artifact rides along only when the provider can see it.
	if e.Provider.SupportsVision() && b.Pattern.Chart != nil {
		if uri := b.Pattern.Chart.DataURI(); uri != "" {
			payload.Images = []provider.ImagePayload{{
				DataURI:     uri,
				Description: b.Pattern.Chart.Description,
			}}
		}
	}
	trace := Trace{
		Provider:   e.Provider.ID(),
		Symbol:     b.Symbol,
		Interval:   b.Interval,
		BundleRef:  b.Ref(),
		System:     system,
		User:       user,
		State:      StateRaw,
		ImageCount: len(payload.Images),
	}

	logger.LogLLMRequest(e.Provider.ID(), "decision", system, user, imageNotes(payload.Images))
	raw, err := e.Provider.Call(ctx, payload)
	if err != nil {
		return "", trace, &SynthesisError{Provider: e.Provider.ID(), Err: err}
	}
	logger.LogLLMResponse(e.Provider.ID(), "decision", raw)
	if strings.TrimSpace(raw) == "" {
		return "", trace, &SynthesisError{Provider: e.Provider.ID(), Err: errors.New("empty completion")}
	}
	trace.Raw = raw
	return raw, trace, nil
}

func (e *Engine) notify(ctx context.Context, trace Trace) {
	if e.Observer == nil {
		return
	}
	if trace.Timestamp == 0 {
		trace.Timestamp = time.Now().UnixMilli()
	}
	e.Observer.AfterSynthesis(ctx, trace)
}

func (e *Engine) maxTokens() int {
	if e.MaxTokens > 0 {
		return e.MaxTokens
	}
	return defaultMaxTokens
}

// imageNotes keeps the dump log readable: descriptions go in, megabytes
// of base64 stay out.
func imageNotes(images []provider.ImagePayload) []string {
	notes := make([]string, 0, len(images))
	for _, img := range images {
		notes = append(notes, img.Description)
	}
	return notes
}
