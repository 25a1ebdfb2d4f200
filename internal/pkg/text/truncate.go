package text

import "strings"

// Truncate caps s at max bytes, appending an ellipsis when cut.
func Truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

// Snippet collapses s to a single trimmed line capped at max, for log output.
func Snippet(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	return Truncate(s, max)
}
