// Package indicator classifies momentum and oscillator readings for a candle
// series: RSI, MACD, rate of change, stochastic %K and Williams %R.
package indicator

import (
	"fmt"
	"math"
	"strings"

	"github.com/markcheno/go-talib"

	"quantagent/internal/analysis"
	"quantagent/internal/market"
)

// Signal classifications shared by every reading.
const (
	SignalBullish = "Bullish"
	SignalBearish = "Bearish"
	SignalNeutral = "Neutral"
)

const (
	rsiPeriod     = 14
	rsiOverbought = 70.0
	rsiOversold   = 30.0

	macdFast       = 12
	macdSlow       = 26
	macdSignalSpan = 9

	rocPeriod = 10
	rocBand   = 2.0

	stochPeriod     = 14
	stochSmooth     = 3
	stochOverbought = 80.0
	stochOversold   = 20.0

	willRPeriod     = 14
	willROverbought = -20.0
	willROversold   = -80.0

	// MACD warmup (slow EMA plus signal EMA) dominates the minimum length.
	minBars = macdSlow + macdSignalSpan - 1
)

// Reading is one indicator value with its qualitative classification.
type Reading struct {
	Value  float64 `json:"value"`
	Signal string  `json:"signal"`
	Detail string  `json:"detail,omitempty"`
}

// Summary is the indicator view of a single series. Immutable once produced.
type Summary struct {
	Readings map[string]Reading `json:"readings"`
	Forecast string             `json:"forecast"`
	Evidence []string           `json:"evidence,omitempty"`
	Trigger  string             `json:"trigger"`
}

// Agent computes indicator readings from a candle series.
type Agent struct{}

func New() *Agent { return &Agent{} }

func (*Agent) Name() string { return "IndicatorAgent" }

// MinBars is the shortest series Analyze accepts.
func (*Agent) MinBars() int { return minBars }

// Analyze derives classified readings, a majority-vote forecast, evidence
// lines for the non-neutral readings and a trigger condition. Pure: the same
// series always yields the same summary.
func (a *Agent) Analyze(series market.Series) (Summary, error) {
	if len(series) < minBars {
		return Summary{}, &analysis.InsufficientDataError{Agent: a.Name(), Need: minBars, Got: len(series)}
	}
	closes := series.Closes()
	highs := series.Highs()
	lows := series.Lows()

	readings := make(map[string]Reading, 5)

	rsi := lastValid(talib.Rsi(closes, rsiPeriod))
	readings["rsi"] = Reading{
		Value:  round2(rsi),
		Signal: bandSignal(rsi, rsiOverbought, rsiOversold),
		Detail: fmt.Sprintf("period=%d thresholds=%.0f/%.0f", rsiPeriod, rsiOversold, rsiOverbought),
	}

	macdLine, signalLine, hist := talib.Macd(closes, macdFast, macdSlow, macdSignalSpan)
	line := lastValid(macdLine)
	sig := lastValid(signalLine)
	macdSignal := SignalNeutral
	switch {
	case line > sig:
		macdSignal = SignalBullish
	case line < sig:
		macdSignal = SignalBearish
	}
	readings["macd"] = Reading{
		Value:  round4(line),
		Signal: macdSignal,
		Detail: fmt.Sprintf("signal=%.4f hist=%.4f", sig, lastValid(hist)),
	}

	roc := lastValid(talib.Roc(closes, rocPeriod))
	rocSignal := SignalNeutral
	switch {
	case roc > rocBand:
		rocSignal = SignalBullish
	case roc < -rocBand:
		rocSignal = SignalBearish
	}
	readings["roc"] = Reading{
		Value:  round2(roc),
		Signal: rocSignal,
		Detail: fmt.Sprintf("period=%d", rocPeriod),
	}

	k, d := talib.Stoch(highs, lows, closes, stochPeriod, stochSmooth, talib.SMA, stochSmooth, talib.SMA)
	kVal := lastValid(k)
	readings["stoch"] = Reading{
		Value:  round2(kVal),
		Signal: bandSignal(kVal, stochOverbought, stochOversold),
		Detail: fmt.Sprintf("d=%.2f", lastValid(d)),
	}

	willR := lastValid(talib.WillR(highs, lows, closes, willRPeriod))
	readings["willr"] = Reading{
		Value:  round2(willR),
		Signal: bandSignal(willR, willROverbought, willROversold),
		Detail: fmt.Sprintf("period=%d", willRPeriod),
	}

	return Summary{
		Readings: readings,
		Forecast: forecast(readings),
		Evidence: evidence(readings),
		Trigger:  trigger(readings),
	}, nil
}

// displayOrder fixes the evidence ordering so output is stable across runs.
var displayOrder = []struct{ key, label string }{
	{"rsi", "RSI(14)"},
	{"macd", "MACD(12,26,9)"},
	{"roc", "ROC(10)"},
	{"stoch", "Stoch %K(14)"},
	{"willr", "Williams %R(14)"},
}

// Label returns the display label for a reading key, or the key itself.
func Label(key string) string {
	for _, d := range displayOrder {
		if d.key == key {
			return d.label
		}
	}
	return key
}

func forecast(readings map[string]Reading) string {
	var bull, bear int
	for _, r := range readings {
		switch r.Signal {
		case SignalBullish:
			bull++
		case SignalBearish:
			bear++
		}
	}
	switch {
	case bull > bear:
		return SignalBullish
	case bear > bull:
		return SignalBearish
	default:
		return SignalNeutral
	}
}

func evidence(readings map[string]Reading) []string {
	lines := make([]string, 0, len(displayOrder))
	for _, d := range displayOrder {
		r, ok := readings[d.key]
		if !ok || r.Signal == SignalNeutral {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %s (%.2f)", d.label, r.Signal, r.Value))
	}
	return lines
}

func trigger(readings map[string]Reading) string {
	parts := make([]string, 0, 2)
	if s := readings["rsi"].Signal; s != SignalNeutral {
		parts = append(parts, fmt.Sprintf("RSI %s condition", strings.ToLower(s)))
	}
	if s := readings["macd"].Signal; s != SignalNeutral {
		parts = append(parts, fmt.Sprintf("MACD %s crossover", strings.ToLower(s)))
	}
	if len(parts) == 0 {
		return "No clear trigger identified"
	}
	return strings.Join(parts, "; ")
}

// bandSignal flags values beyond the upper band as overbought (Bearish) and
// beyond the lower band as oversold (Bullish).
func bandSignal(v, upper, lower float64) string {
	switch {
	case v > upper:
		return SignalBearish
	case v < lower:
		return SignalBullish
	default:
		return SignalNeutral
	}
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
