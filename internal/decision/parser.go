package decision

import (
	"encoding/json"
	"fmt"
	"strings"

	"quantagent/internal/logger"
	"quantagent/internal/pkg/jsonutil"
)

// Parser turns raw model text into a Decision. One strict pass, then at
// most one lenient recovery pass over the same text; after both fail the
// only way forward is a fresh model call.
type Parser struct{}

// Result carries the decision together with the state the parse ended
// in and the raw text it came from.
type Result struct {
	Decision Decision
	State    ParseState
	Raw      string
}

func (Parser) Parse(raw string, lastClose float64) (Result, error) {
	res := Result{State: StateRaw, Raw: raw}

	d, strictErr := parseStrict(raw, lastClose)
	if strictErr == nil {
		return res.succeed(d), nil
	}

	res.State = StateRecovering
	logger.Debugf("decision: strict parse failed, attempting recovery: %v", strictErr)

	d, recErr := recoverDecision(raw, lastClose)
	if recErr == nil {
		return res.succeed(d), nil
	}

	res.State = StateFailed
	return res, &ParseError{
		State: StateFailed,
		Raw:   raw,
		Err:   fmt.Errorf("strict: %v; recovery: %w", strictErr, recErr),
	}
}

func (r Result) succeed(d Decision) Result {
	if d.RiskLevel == "" {
		d.RiskLevel = RiskMedium
	}
	r.Decision = d
	r.State = StateStructured
	return r
}

// parseStrict accepts only the exact response contract: one JSON
// object, schema-valid, no unknown fields.
func parseStrict(raw string, lastClose float64) (Decision, error) {
	obj, ok := jsonutil.ExtractObject(raw)
	if !ok {
		return Decision{}, fmt.Errorf("no JSON object in response")
	}

	var probe interface{}
	if err := json.Unmarshal([]byte(obj), &probe); err != nil {
		return Decision{}, fmt.Errorf("invalid JSON: %w", err)
	}
	if err := responseSchema.Validate(probe); err != nil {
		return Decision{}, fmt.Errorf("schema: %w", err)
	}

	dec := json.NewDecoder(strings.NewReader(obj))
	dec.DisallowUnknownFields()
	var wire decisionWire
	if err := dec.Decode(&wire); err != nil {
		return Decision{}, fmt.Errorf("decode: %w", err)
	}

	d := Decision{
		Action:        Action(wire.Action),
		Confidence:    wire.Confidence,
		Justification: strings.TrimSpace(wire.Justification),
		RiskLevel:     wire.RiskLevel,
		KeyFactors:    wire.KeyFactors,
		StopLoss:      wire.StopLoss,
		TakeProfit:    wire.TakeProfit,
	}
	if err := validate(&d, lastClose); err != nil {
		return Decision{}, err
	}
	return d, nil
}
