package decision

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"quantagent/internal/pkg/jsonutil"
	"quantagent/internal/pkg/text"
)

const maxJustificationSnippet = 240

var (
	actionPattern     = regexp.MustCompile(`(?i)\b(LONG|SHORT|NEUTRAL|HOLD|BUY|SELL|WAIT)\b`)
	confidencePattern = regexp.MustCompile(`(?i)confidence[^0-9]{0,12}([0-9]+(?:\.[0-9]+)?)\s*(%?)`)
)

// recoverDecision is the lenient second pass: pull what the contract
// wants out of near-miss JSON, else scan the prose. Runs at most once
// per model response.
func recoverDecision(raw string, lastClose float64) (Decision, error) {
	if d, err := recoverJSON(raw, lastClose); err == nil {
		return d, nil
	}
	return recoverFreeText(raw, lastClose)
}

func recoverJSON(raw string, lastClose float64) (Decision, error) {
	obj, ok := jsonutil.ExtractObject(raw)
	if !ok || !gjson.Valid(obj) {
		return Decision{}, fmt.Errorf("no parseable JSON object")
	}
	parsed := gjson.Parse(obj)

	action := NormalizeAction(firstString(parsed, "action", "decision", "signal", "recommendation"))
	if !ValidAction(action) {
		return Decision{}, fmt.Errorf("no usable action field")
	}
	conf, ok := firstNumber(parsed, "confidence", "conf", "probability")
	if !ok {
		return Decision{}, fmt.Errorf("no usable confidence field")
	}

	d := Decision{
		Action:     action,
		Confidence: clampConfidence(conf),
		RiskLevel:  normalizeRisk(firstString(parsed, "risk_level", "risk")),
		KeyFactors: stringSlice(parsed.Get("key_factors")),
	}
	d.Justification = firstString(parsed, "justification", "reasoning", "reason", "explanation")
	if d.Justification == "" {
		d.Justification = text.Snippet(raw, maxJustificationSnippet)
	}

	// Implausible levels are dropped, not fatal: a recovered direction
	// with no levels beats no decision at all.
	stop, _ := firstNumber(parsed, "stop_loss", "stop_loss_suggestion")
	take, _ := firstNumber(parsed, "take_profit", "take_profit_suggestion")
	if validateLevels(action, stop, take, lastClose) == nil {
		d.StopLoss, d.TakeProfit = stop, take
	}

	if err := validate(&d, lastClose); err != nil {
		return Decision{}, err
	}
	return d, nil
}

// recoverFreeText is the last resort for prose answers. It requires an
// explicit confidence figure; a direction word alone never becomes a
// decision.
func recoverFreeText(raw string, lastClose float64) (Decision, error) {
	am := actionPattern.FindString(raw)
	if am == "" {
		return Decision{}, fmt.Errorf("no action keyword in text")
	}
	action := NormalizeAction(am)
	if !ValidAction(action) {
		return Decision{}, fmt.Errorf("ambiguous action keyword %q", am)
	}

	cm := confidencePattern.FindStringSubmatch(raw)
	if cm == nil {
		return Decision{}, fmt.Errorf("no confidence figure in text")
	}
	conf, err := strconv.ParseFloat(cm[1], 64)
	if err != nil {
		return Decision{}, fmt.Errorf("bad confidence figure %q", cm[1])
	}
	if cm[2] == "%" {
		conf /= 100
	}

	d := Decision{
		Action:        action,
		Confidence:    clampConfidence(conf),
		Justification: text.Snippet(raw, maxJustificationSnippet),
	}
	if err := validate(&d, lastClose); err != nil {
		return Decision{}, err
	}
	return d, nil
}

func firstString(v gjson.Result, keys ...string) string {
	for _, k := range keys {
		if r := v.Get(k); r.Exists() {
			if s := strings.TrimSpace(r.String()); s != "" {
				return s
			}
		}
	}
	return ""
}

func firstNumber(v gjson.Result, keys ...string) (float64, bool) {
	for _, k := range keys {
		r := v.Get(k)
		if !r.Exists() {
			continue
		}
		switch r.Type {
		case gjson.Number:
			return r.Float(), true
		case gjson.String:
			s := strings.TrimSuffix(strings.TrimSpace(r.Str), "%")
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}

func stringSlice(r gjson.Result) []string {
	if !r.IsArray() {
		return nil
	}
	var out []string
	r.ForEach(func(_, item gjson.Result) bool {
		if s := strings.TrimSpace(item.String()); s != "" {
			out = append(out, s)
		}
		return true
	})
	return out
}

// clampConfidence maps percent-scaled confidences (85 for 0.85) into
// [0,1] and clamps the rest.
func clampConfidence(v float64) float64 {
	if v > 1 && v <= 100 {
		v /= 100
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
