// Package convert coerces loosely typed JSON values to numbers.
package convert

import (
	"encoding/json"
	"strconv"
	"strings"
)

// ToFloat64 converts whatever a decoded JSON field may hold to float64.
// Unparseable values and nil come back as 0; callers that must distinguish
// a real zero from a null bar check the raw value first.
func ToFloat64(v any) float64 {
	switch t := v.(type) {
	case nil:
		return 0
	case float64:
		return t
	case float32:
		return float64(t)
	case int:
		return float64(t)
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case uint:
		return float64(t)
	case uint64:
		return float64(t)
	case json.Number:
		f, _ := t.Float64()
		return f
	case string:
		f, _ := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f
	default:
		return 0
	}
}
