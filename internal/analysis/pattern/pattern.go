// Package pattern recognizes chart structure in a candle series: overall
// trend shape, double tops and bottoms, triangles, range compression,
// volatility and recent price action.
package pattern

import (
	"fmt"
	"math"

	"quantagent/internal/analysis"
	"quantagent/internal/analysis/visual"
	"quantagent/internal/market"
)

const (
	trendSpan      = 10
	priceActionLen = 5
	rangeSpan      = 20
	twinTolerance  = 0.004

	minBars = 20
)

// Detection is one recognized chart structure with a strength in [0, 1].
type Detection struct {
	Label    string  `json:"label"`
	Strength float64 `json:"strength"`
	Detail   string  `json:"detail,omitempty"`
}

// PriceAction summarizes the last five closes.
type PriceAction struct {
	Pattern   string  `json:"pattern"`
	ChangePct float64 `json:"change_pct"`
}

// Summary is the pattern view of a single series. Analyze never draws; Chart
// is attached by the caller once a rendering exists, before the summary is
// folded into a bundle.
type Summary struct {
	Trend       string           `json:"trend"`
	Volatility  float64          `json:"volatility_pct"`
	PriceAction PriceAction      `json:"price_action"`
	Detections  []Detection      `json:"detections,omitempty"`
	Support     float64          `json:"support"`
	Resistance  float64          `json:"resistance"`
	Chart       *visual.Artifact `json:"chart,omitempty"`
}

// RangePosition places a price within [support, resistance] as a percentage.
func (s Summary) RangePosition(price float64) float64 {
	if s.Resistance <= s.Support {
		return 0
	}
	return (price - s.Support) / (s.Resistance - s.Support) * 100
}

// VolatilityLabel buckets the volatility percentage.
func (s Summary) VolatilityLabel() string {
	switch {
	case s.Volatility > 3:
		return "high"
	case s.Volatility > 1.5:
		return "moderate"
	default:
		return "low"
	}
}

// Agent recognizes chart patterns in a candle series.
type Agent struct{}

func New() *Agent { return &Agent{} }

func (*Agent) Name() string { return "PatternAgent" }

// MinBars is the shortest series Analyze accepts.
func (*Agent) MinBars() int { return minBars }

// Analyze classifies the trend shape, measures volatility, reads the recent
// price action and runs the structure detectors. Pure: the same series always
// yields the same summary.
func (a *Agent) Analyze(series market.Series) (Summary, error) {
	if len(series) < minBars {
		return Summary{}, &analysis.InsufficientDataError{Agent: a.Name(), Need: minBars, Got: len(series)}
	}
	closes := series.Closes()
	highs := series.Highs()
	lows := series.Lows()

	detections := make([]Detection, 0, 4)
	if d, ok := detectDoubleBottom(lows); ok {
		detections = append(detections, d)
	}
	if d, ok := detectDoubleTop(highs); ok {
		detections = append(detections, d)
	}
	if d, ok := detectTriangle(highs, lows); ok {
		detections = append(detections, d)
	}
	if d, ok := detectCompression(highs, lows); ok {
		detections = append(detections, d)
	}

	return Summary{
		Trend:       identifyTrend(highs, lows),
		Volatility:  round2(volatilityPct(closes)),
		PriceAction: priceAction(closes),
		Detections:  detections,
		Support:     minOf(tail(lows, rangeSpan)),
		Resistance:  maxOf(tail(highs, rangeSpan)),
	}, nil
}

// identifyTrend compares the first and last trendSpan bars: higher highs and
// higher lows make an uptrend, lower both a downtrend, anything else sideways.
func identifyTrend(highs, lows []float64) string {
	recentHigh := maxOf(tail(highs, trendSpan))
	recentLow := minOf(tail(lows, trendSpan))
	earlierHigh := maxOf(highs[:trendSpan])
	earlierLow := minOf(lows[:trendSpan])

	switch {
	case recentHigh > earlierHigh && recentLow > earlierLow:
		return "Uptrend"
	case recentHigh < earlierHigh && recentLow < earlierLow:
		return "Downtrend"
	default:
		return "Sideways"
	}
}

// volatilityPct is the sample standard deviation of close-to-close returns,
// in percent.
func volatilityPct(closes []float64) float64 {
	rets := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			continue
		}
		rets = append(rets, closes[i]/closes[i-1]-1)
	}
	if len(rets) < 2 {
		return 0
	}
	var sum float64
	for _, r := range rets {
		sum += r
	}
	m := sum / float64(len(rets))
	var sq float64
	for _, r := range rets {
		sq += (r - m) * (r - m)
	}
	return math.Sqrt(sq/float64(len(rets)-1)) * 100
}

func priceAction(closes []float64) PriceAction {
	recent := tail(closes, priceActionLen)
	rising, falling := true, true
	for i := 1; i < len(recent); i++ {
		if recent[i] <= recent[i-1] {
			rising = false
		}
		if recent[i] >= recent[i-1] {
			falling = false
		}
	}
	pattern := "Neutral"
	switch {
	case rising:
		pattern = "Strong Bullish"
	case falling:
		pattern = "Strong Bearish"
	case recent[len(recent)-1] > recent[0]:
		pattern = "Bullish"
	case recent[len(recent)-1] < recent[0]:
		pattern = "Bearish"
	}
	change := 0.0
	if recent[0] != 0 {
		change = (recent[len(recent)-1] - recent[0]) / recent[0] * 100
	}
	return PriceAction{Pattern: pattern, ChangePct: round2(change)}
}

// detectDoubleBottom looks for two matching lows in the back half of the
// window, at most twinTolerance apart.
func detectDoubleBottom(lows []float64) (Detection, bool) {
	window := lows[len(lows)/2:]
	min1, idx1 := minWithIndex(window)
	masked := append([]float64{}, window...)
	for i := idx1 - 2; i <= idx1+2 && i < len(masked); i++ {
		if i >= 0 {
			masked[i] = math.MaxFloat64
		}
	}
	min2, idx2 := minWithIndex(masked)
	diff := math.Abs(min1-min2) / math.Max(min1, 1)
	if diff > twinTolerance || idx2 < 3 {
		return Detection{}, false
	}
	return Detection{
		Label:    "Double Bottom",
		Strength: round4(1 - diff/twinTolerance),
		Detail:   fmt.Sprintf("support near %.2f", (min1+min2)/2),
	}, true
}

// detectDoubleTop mirrors detectDoubleBottom on the highs.
func detectDoubleTop(highs []float64) (Detection, bool) {
	window := highs[len(highs)/2:]
	max1, idx1 := maxWithIndex(window)
	masked := append([]float64{}, window...)
	for i := idx1 - 2; i <= idx1+2 && i < len(masked); i++ {
		if i >= 0 {
			masked[i] = -math.MaxFloat64
		}
	}
	max2, idx2 := maxWithIndex(masked)
	diff := math.Abs(max1-max2) / math.Max(max1, 1)
	if diff > twinTolerance || idx2 < 3 {
		return Detection{}, false
	}
	return Detection{
		Label:    "Double Top",
		Strength: round4(1 - diff/twinTolerance),
		Detail:   fmt.Sprintf("resistance near %.2f", (max1+max2)/2),
	}, true
}

// detectTriangle flags converging highs and lows between the two halves of
// the window.
func detectTriangle(highs, lows []float64) (Detection, bool) {
	if len(highs) < 30 {
		return Detection{}, false
	}
	firstHigh := maxOf(highs[:len(highs)/2])
	lastHigh := maxOf(highs[len(highs)/2:])
	firstLow := minOf(lows[:len(lows)/2])
	lastLow := minOf(lows[len(lows)/2:])
	if lastHigh >= firstHigh || lastLow <= firstLow {
		return Detection{}, false
	}
	convergence := ((firstHigh - firstLow) - (lastHigh - lastLow)) / firstHigh
	if convergence <= 0.05 {
		return Detection{}, false
	}
	return Detection{
		Label:    "Symmetrical Triangle",
		Strength: round4(math.Min(1, convergence*10)),
		Detail:   "range narrowing toward an apex",
	}, true
}

// detectCompression flags a sharp contraction of the bar range between the
// two halves of the window.
func detectCompression(highs, lows []float64) (Detection, bool) {
	if len(highs) < 40 {
		return Detection{}, false
	}
	half := len(highs) / 2
	first := (maxOf(highs[:half]) - minOf(lows[:half])) / maxOf(highs[:half])
	second := (maxOf(highs[half:]) - minOf(lows[half:])) / maxOf(highs[half:])
	if first <= 0 || second >= first*0.65 {
		return Detection{}, false
	}
	return Detection{
		Label:    "Range Compression",
		Strength: round4(1 - second/first),
		Detail:   "volatility contracting, watch the breakout direction",
	}, true
}

// tail returns the last n values, or the whole slice when shorter.
func tail(series []float64, n int) []float64 {
	if len(series) <= n {
		return series
	}
	return series[len(series)-n:]
}

func minOf(values []float64) float64 {
	m := math.MaxFloat64
	for _, v := range values {
		if v < m {
			m = v
		}
	}
	return m
}

func maxOf(values []float64) float64 {
	m := -math.MaxFloat64
	for _, v := range values {
		if v > m {
			m = v
		}
	}
	return m
}

func minWithIndex(values []float64) (float64, int) {
	m := math.MaxFloat64
	idx := -1
	for i, v := range values {
		if v < m {
			m = v
			idx = i
		}
	}
	return m, idx
}

func maxWithIndex(values []float64) (float64, int) {
	m := -math.MaxFloat64
	idx := -1
	for i, v := range values {
		if v > m {
			m = v
			idx = i
		}
	}
	return m, idx
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
