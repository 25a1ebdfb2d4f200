package decision

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"quantagent/internal/analysis/indicator"
	"quantagent/internal/analysis/pattern"
	"quantagent/internal/analysis/trend"
)

// Bundle is the joined output of all three analysis agents over the
// same series. A bundle exists only when every agent succeeded; partial
// results never reach synthesis.
type Bundle struct {
	Symbol   string    `json:"symbol"`
	Interval string    `json:"interval"`
	AsOf     time.Time `json:"as_of"`

	LastClose float64 `json:"last_close"`
	Bars      int     `json:"bars"`

	Indicator indicator.Summary `json:"indicator"`
	Pattern   pattern.Summary   `json:"pattern"`
	Trend     trend.Summary     `json:"trend"`
}

// Ref returns a stable fingerprint of the bundle content, used to tie a
// stored decision back to the exact analysis it was made from. Encoding
// is canonical (sorted object keys), so equal bundles share a ref. The
// chart artifact is excluded: rendering is best effort and must not
// shift the fingerprint of the numbers underneath.
func (b *Bundle) Ref() string {
	shadow := *b
	shadow.Pattern.Chart = nil
	raw, err := json.Marshal(&shadow)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])[:16]
}
