// Package format renders numbers for prompts and logs.
package format

import "github.com/shopspring/decimal"

// Float renders v with at most places decimal digits, trailing zeros
// trimmed. Values that would round to zero keep full precision so
// sub-cent prices stay visible.
func Float(v float64, places int32) string {
	d := decimal.NewFromFloat(v)
	r := d.Round(places)
	if r.IsZero() && !d.IsZero() {
		return d.String()
	}
	return r.String()
}

// Price renders a price with up to four decimal digits.
func Price(v float64) string {
	return Float(v, 4)
}

// Percent renders v as a percentage with two decimal digits and a sign
// for positive values.
func Percent(v float64) string {
	s := Float(v, 2)
	if v > 0 {
		s = "+" + s
	}
	return s + "%"
}
