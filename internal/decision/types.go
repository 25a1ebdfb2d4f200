// Package decision turns an analysis bundle into a validated trading
// decision through one model call. Composition and parsing are pure;
// the provider call in between is the only effectful stage.
package decision

import "strings"

// Action is the direction the model commits to for the next interval.
type Action string

const (
	ActionLong    Action = "LONG"
	ActionShort   Action = "SHORT"
	ActionNeutral Action = "NEUTRAL"
)

// ValidAction reports whether a is one of the three directions the
// contract allows.
func ValidAction(a Action) bool {
	switch a {
	case ActionLong, ActionShort, ActionNeutral:
		return true
	}
	return false
}

var actionSep = strings.NewReplacer(" ", "_", "-", "_")

// NormalizeAction maps free-form model output onto the action enum.
// Unknown values pass through uppercased so validation rejects them
// with the original word visible.
func NormalizeAction(raw string) Action {
	v := strings.ToUpper(strings.TrimSpace(raw))
	v = actionSep.Replace(v)
	switch v {
	case "LONG", "BUY", "OPEN_LONG", "GO_LONG", "ENTER_LONG", "BUY_LONG":
		return ActionLong
	case "SHORT", "SELL", "OPEN_SHORT", "GO_SHORT", "ENTER_SHORT", "SELL_SHORT":
		return ActionShort
	case "NEUTRAL", "HOLD", "WAIT", "STAY", "FLAT", "NONE", "NO_TRADE", "SIDELINE":
		return ActionNeutral
	}
	return Action(v)
}

// Risk levels the model may attach to a decision.
const (
	RiskLow    = "LOW"
	RiskMedium = "MEDIUM"
	RiskHigh   = "HIGH"
)

func validRiskLevel(s string) bool {
	switch s {
	case RiskLow, RiskMedium, RiskHigh:
		return true
	}
	return false
}

func normalizeRisk(raw string) string {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "LOW":
		return RiskLow
	case "MEDIUM", "MODERATE", "MED", "MID":
		return RiskMedium
	case "HIGH":
		return RiskHigh
	}
	return ""
}

// Decision is the validated outcome of one synthesis. StopLoss and
// TakeProfit are zero when the model offered none that survived the
// plausibility check.
type Decision struct {
	Action        Action   `json:"action"`
	Confidence    float64  `json:"confidence"`
	Justification string   `json:"justification"`
	RiskLevel     string   `json:"risk_level,omitempty"`
	KeyFactors    []string `json:"key_factors,omitempty"`
	StopLoss      float64  `json:"stop_loss,omitempty"`
	TakeProfit    float64  `json:"take_profit,omitempty"`
	BundleRef     string   `json:"bundle_ref,omitempty"`
}

// decisionWire mirrors the JSON object the prompt requests, field for
// field. Strict parsing decodes into this and nothing else.
type decisionWire struct {
	Action        string   `json:"action"`
	Confidence    float64  `json:"confidence"`
	Justification string   `json:"justification"`
	RiskLevel     string   `json:"risk_level"`
	KeyFactors    []string `json:"key_factors"`
	StopLoss      float64  `json:"stop_loss"`
	TakeProfit    float64  `json:"take_profit"`
}

// ParseState tracks where a model response sits on the way from raw
// text to a structured decision.
type ParseState string

const (
	StateRaw        ParseState = "RAW"
	StateStructured ParseState = "STRUCTURED"
	StateRecovering ParseState = "RECOVERING"
	StateFailed     ParseState = "FAILED"
)
