// Package trend grades trend direction and strength across short, medium and
// long lookbacks of a candle series, with momentum, volume and breakout
// context.
package trend

import (
	"math"
	"strings"

	"github.com/markcheno/go-talib"

	"quantagent/internal/analysis"
	"quantagent/internal/market"
)

// Direction labels shared across horizons.
const (
	DirectionBullish = "Bullish"
	DirectionBearish = "Bearish"
	DirectionNeutral = "Neutral"
)

const (
	shortWindow  = 10
	mediumWindow = 20

	slopeThreshold = 0.01

	adxPeriod    = 14
	breakoutSpan = 20
	breakoutEdge = 0.001

	weightShort    = 0.5
	weightMedium   = 0.3
	weightLong     = 0.2
	weightMomentum = 0.2

	// ADX(14) warmup needs 2*period-1 bars; 30 also covers both windows.
	minBars = 30
)

// Horizon is the least-squares readout for one lookback window.
type Horizon struct {
	Direction string  `json:"direction"`
	Slope     float64 `json:"slope"`
	RSquared  float64 `json:"r_squared"`
	Strength  string  `json:"strength"`
}

// Momentum captures the close-to-close percent move over fixed lookbacks.
type Momentum struct {
	Change1  float64 `json:"change_1"`
	Change5  float64 `json:"change_5"`
	Change10 float64 `json:"change_10"`
	Overall  string  `json:"overall"`
}

// Acceleration is the latest change of close-to-close velocity.
type Acceleration struct {
	Value     float64 `json:"value"`
	Direction string  `json:"direction"`
}

// VolumeTrend compares recent volume against the rest of the window.
type VolumeTrend struct {
	Trend string  `json:"trend"`
	Ratio float64 `json:"ratio"`
}

// Strength grades the trend by ADX.
type Strength struct {
	Score          float64 `json:"score"`
	Classification string  `json:"classification"`
}

// Breakout reports whether the last close escaped the prior range.
type Breakout struct {
	Status     string  `json:"status"`
	Strength   float64 `json:"strength,omitempty"`
	Support    float64 `json:"support"`
	Resistance float64 `json:"resistance"`
}

// Summary is the trend view of a single series. Immutable once produced.
// KeyLevels is ascending: support first, resistance last.
type Summary struct {
	Short        Horizon      `json:"short_term"`
	Medium       Horizon      `json:"medium_term"`
	Long         Horizon      `json:"long_term"`
	Momentum     Momentum     `json:"momentum"`
	Acceleration Acceleration `json:"acceleration"`
	Volume       VolumeTrend  `json:"volume"`
	Strength     Strength     `json:"strength"`
	Breakout     Breakout     `json:"breakout"`
	KeyLevels    []float64    `json:"key_levels"`
	Direction    string       `json:"direction"`
	Confidence   float64      `json:"confidence"`
}

// Agent derives trend summaries from a candle series.
type Agent struct{}

func New() *Agent { return &Agent{} }

func (*Agent) Name() string { return "TrendAgent" }

// MinBars is the shortest series Analyze accepts.
func (*Agent) MinBars() int { return minBars }

// Analyze fits the three horizons, grades momentum, volume, strength and
// breakout state, and folds them into a weighted direction with a bounded
// confidence. Pure: the same series always yields the same summary.
func (a *Agent) Analyze(series market.Series) (Summary, error) {
	if len(series) < minBars {
		return Summary{}, &analysis.InsufficientDataError{Agent: a.Name(), Need: minBars, Got: len(series)}
	}
	closes := series.Closes()
	highs := series.Highs()
	lows := series.Lows()
	volumes := series.Volumes()

	short := fitHorizon(tail(closes, shortWindow))
	medium := fitHorizon(tail(closes, mediumWindow))
	long := fitHorizon(closes)

	mom := priceMomentum(closes)
	strength := trendStrength(highs, lows, closes)
	breakout := detectBreakout(highs, lows, closes)

	return Summary{
		Short:        short,
		Medium:       medium,
		Long:         long,
		Momentum:     mom,
		Acceleration: accelerate(closes),
		Volume:       volumeTrend(volumes),
		Strength:     strength,
		Breakout:     breakout,
		KeyLevels:    []float64{breakout.Support, breakout.Resistance},
		Direction:    overallDirection(short, medium, long, mom),
		Confidence:   confidence(short, medium, long, mom, strength),
	}, nil
}

func fitHorizon(closes []float64) Horizon {
	slope, _, r2 := fitLine(closes)
	dir := DirectionNeutral
	switch {
	case slope > slopeThreshold:
		dir = DirectionBullish
	case slope < -slopeThreshold:
		dir = DirectionBearish
	}
	return Horizon{
		Direction: dir,
		Slope:     round6(slope),
		RSquared:  round4(r2),
		Strength:  strengthLabel(r2),
	}
}

// fitLine returns the least-squares slope, intercept and r-squared of the
// series indexed 0..n-1.
func fitLine(series []float64) (slope, intercept, r2 float64) {
	n := float64(len(series))
	if len(series) < 2 {
		if len(series) == 1 {
			return 0, series[0], 0
		}
		return 0, 0, 0
	}
	var sumX, sumY, sumXY, sumXX, sumYY float64
	for i, y := range series {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
		sumYY += y * y
	}
	denomX := n*sumXX - sumX*sumX
	if denomX == 0 {
		return 0, series[len(series)-1], 0
	}
	slope = (n*sumXY - sumX*sumY) / denomX
	intercept = (sumY - slope*sumX) / n
	denomY := n*sumYY - sumY*sumY
	if denomY <= 0 {
		// A flat series fits its own line exactly.
		return slope, intercept, 1
	}
	r := (n*sumXY - sumX*sumY) / math.Sqrt(denomX*denomY)
	return slope, intercept, r * r
}

func strengthLabel(r2 float64) string {
	switch {
	case r2 < 0.3:
		return "Weak"
	case r2 < 0.6:
		return "Moderate"
	default:
		return "Strong"
	}
}

func priceMomentum(closes []float64) Momentum {
	m := Momentum{
		Change1:  pctChange(closes, 1),
		Change5:  pctChange(closes, 5),
		Change10: pctChange(closes, 10),
	}
	m.Overall = classifyMomentum(m.Change5)
	return m
}

// pctChange is the percent move of the last close against the close back bars
// earlier.
func pctChange(closes []float64, back int) float64 {
	if len(closes) < back+1 {
		return 0
	}
	prev := closes[len(closes)-1-back]
	if prev == 0 {
		return 0
	}
	return round4((closes[len(closes)-1] - prev) / prev * 100)
}

func classifyMomentum(change float64) string {
	side := DirectionBullish
	if change < 0 {
		side = DirectionBearish
	}
	switch {
	case math.Abs(change) > 5:
		return "Strong " + side
	case math.Abs(change) > 2:
		return "Moderate " + side
	default:
		return "Weak"
	}
}

func accelerate(closes []float64) Acceleration {
	n := len(closes)
	if n < 3 {
		return Acceleration{Direction: "Constant Velocity"}
	}
	acc := (closes[n-1] - closes[n-2]) - (closes[n-2] - closes[n-3])
	dir := "Constant Velocity"
	switch {
	case acc > 0:
		dir = "Accelerating Up"
	case acc < 0:
		dir = "Accelerating Down"
	}
	return Acceleration{Value: round4(acc), Direction: dir}
}

func volumeTrend(volumes []float64) VolumeTrend {
	if len(volumes) < 10 {
		return VolumeTrend{Trend: "Stable", Ratio: 1}
	}
	recent := mean(volumes[len(volumes)-5:])
	historical := mean(volumes[:len(volumes)-5])
	ratio := 1.0
	if historical > 0 {
		ratio = recent / historical
	}
	trend := "Stable"
	switch {
	case ratio > 1.5:
		trend = "Increasing"
	case ratio < 0.7:
		trend = "Decreasing"
	}
	return VolumeTrend{Trend: trend, Ratio: round4(ratio)}
}

func trendStrength(highs, lows, closes []float64) Strength {
	adx := lastValid(talib.Adx(highs, lows, closes, adxPeriod))
	var label string
	switch {
	case adx > 50:
		label = "Very Strong"
	case adx > 25:
		label = "Strong"
	case adx > 15:
		label = "Moderate"
	default:
		label = "Weak"
	}
	return Strength{Score: round2(adx), Classification: label}
}

// detectBreakout compares the last close against the range of the bars before
// it, with a 0.1% buffer on each edge.
func detectBreakout(highs, lows, closes []float64) Breakout {
	prior := len(closes) - 1
	support := minOf(tail(lows[:prior], breakoutSpan))
	resistance := maxOf(tail(highs[:prior], breakoutSpan))
	price := closes[len(closes)-1]

	b := Breakout{Status: "None", Support: support, Resistance: resistance}
	switch {
	case price > resistance*(1+breakoutEdge):
		b.Status = "Resistance Breakout"
		b.Strength = round4((price - resistance) / resistance * 100)
	case price < support*(1-breakoutEdge):
		b.Status = "Support Breakdown"
		b.Strength = round4((support - price) / support * 100)
	}
	return b
}

func overallDirection(short, medium, long Horizon, mom Momentum) string {
	var bull, bear float64
	score := func(h Horizon, weight float64) {
		switch h.Direction {
		case DirectionBullish:
			bull += weight
		case DirectionBearish:
			bear += weight
		}
	}
	score(short, weightShort)
	score(medium, weightMedium)
	score(long, weightLong)
	if strings.Contains(mom.Overall, DirectionBullish) {
		bull += weightMomentum
	} else if strings.Contains(mom.Overall, DirectionBearish) {
		bear += weightMomentum
	}
	switch {
	case bull > bear:
		return DirectionBullish
	case bear > bull:
		return DirectionBearish
	default:
		return DirectionNeutral
	}
}

// confidence blends horizon alignment, ADX strength and momentum consistency
// into [0, 1].
func confidence(short, medium, long Horizon, mom Momentum, strength Strength) float64 {
	distinct := make(map[string]struct{}, 3)
	for _, d := range []string{short.Direction, medium.Direction, long.Direction} {
		distinct[d] = struct{}{}
	}
	var c float64
	switch len(distinct) {
	case 1:
		c = 0.4
	case 2:
		c = 0.2
	}
	c += strength.Score / 100 * 0.3
	if consistency := 1 - math.Abs(mom.Change1-mom.Change5)/10; consistency > 0 {
		c += consistency * 0.3
	}
	if c > 1 {
		c = 1
	}
	return round4(c)
}

// tail returns the last n values, or the whole slice when shorter.
func tail(series []float64, n int) []float64 {
	if len(series) <= n {
		return series
	}
	return series[len(series)-n:]
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
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

func lastValid(series []float64) float64 {
	for i := len(series) - 1; i >= 0; i-- {
		if !math.IsNaN(series[i]) && !math.IsInf(series[i], 0) {
			return series[i]
		}
	}
	return 0
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
