package decision

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// validate is the one gate every decision passes before leaving the
// parser, strict and recovered alike.
func validate(d *Decision, lastClose float64) error {
	if !ValidAction(d.Action) {
		return fmt.Errorf("invalid action %q", d.Action)
	}
	if d.Confidence < 0 || d.Confidence > 1 {
		return fmt.Errorf("confidence %.4f out of [0,1]", d.Confidence)
	}
	if strings.TrimSpace(d.Justification) == "" {
		return fmt.Errorf("empty justification")
	}
	if d.RiskLevel != "" && !validRiskLevel(d.RiskLevel) {
		return fmt.Errorf("invalid risk level %q", d.RiskLevel)
	}
	return validateLevels(d.Action, d.StopLoss, d.TakeProfit, lastClose)
}

// validateLevels checks that suggested stop and take sit on the correct
// side of the current price for the chosen direction. Zero means the
// model offered no level; a non-positive close disables the side check.
func validateLevels(action Action, stop, take, lastClose float64) error {
	if stop < 0 || take < 0 {
		return fmt.Errorf("negative price level")
	}
	if lastClose <= 0 {
		return nil
	}
	price := decimal.NewFromFloat(lastClose)
	s := decimal.NewFromFloat(stop)
	t := decimal.NewFromFloat(take)
	switch action {
	case ActionLong:
		if s.IsPositive() && !s.LessThan(price) {
			return fmt.Errorf("long stop %s not below price %s", s, price)
		}
		if t.IsPositive() && !t.GreaterThan(price) {
			return fmt.Errorf("long take %s not above price %s", t, price)
		}
	case ActionShort:
		if s.IsPositive() && !s.GreaterThan(price) {
			return fmt.Errorf("short stop %s not above price %s", s, price)
		}
		if t.IsPositive() && !t.LessThan(price) {
			return fmt.Errorf("short take %s not below price %s", t, price)
		}
	}
	return nil
}
