package decision

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"quantagent/internal/analysis/indicator"
	"quantagent/internal/analysis/pattern"
	"quantagent/internal/analysis/trend"
	"quantagent/internal/analysis/visual"
)

func testBundle() *Bundle {
	return &Bundle{
		Symbol:    "BTCUSDT",
		Interval:  "4h",
		AsOf:      time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		LastClose: 43250.5,
		Bars:      500,
		Indicator: indicator.Summary{
			Readings: map[string]indicator.Reading{
				"rsi":   {Value: 71.3, Signal: indicator.SignalBearish},
				"macd":  {Value: 0.0045, Signal: indicator.SignalBullish, Detail: "signal=0.0012 hist=0.0033"},
				"roc":   {Value: 2.15, Signal: indicator.SignalBullish},
				"stoch": {Value: 85.2, Signal: indicator.SignalBearish, Detail: "d=82.10"},
				"willr": {Value: -15.3, Signal: indicator.SignalBearish},
			},
			Forecast: indicator.SignalBearish,
			Evidence: []string{"RSI(14): Bearish (71.30)", "Stoch %K(14): Bearish (85.20)"},
			Trigger:  "RSI bearish condition",
		},
		Pattern: pattern.Summary{
			Trend:       "Uptrend",
			Volatility:  2.15,
			PriceAction: pattern.PriceAction{Pattern: "Bullish", ChangePct: 1.23},
			Support:     42000.25,
			Resistance:  44100.75,
		},
		Trend: trend.Summary{
			Short:        trend.Horizon{Direction: trend.DirectionBullish, Strength: "Strong"},
			Medium:       trend.Horizon{Direction: trend.DirectionBullish, Strength: "Moderate"},
			Long:         trend.Horizon{Direction: trend.DirectionNeutral, Strength: "Weak"},
			Momentum:     trend.Momentum{Change1: -0.52, Change5: 3.2, Change10: 5.75, Overall: "Moderate Bullish"},
			Acceleration: trend.Acceleration{Direction: "Accelerating Up"},
			Volume:       trend.VolumeTrend{Trend: "Increasing", Ratio: 1.82},
			Strength:     trend.Strength{Score: 31.2, Classification: "Strong"},
			Breakout:     trend.Breakout{Status: "None", Support: 42000.25, Resistance: 44100.75},
			KeyLevels:    []float64{42000.25, 44100.75},
			Direction:    trend.DirectionBullish,
			Confidence:   0.64,
		},
	}
}

func TestComposeDeterministic(t *testing.T) {
	b := testBundle()
	_, first := Composer{}.Compose(b)
	for i := 0; i < 10; i++ {
		_, again := Composer{}.Compose(b)
		assert.Equal(t, first, again)
	}
}

func TestComposeSections(t *testing.T) {
	b := testBundle()
	system, user := Composer{}.Compose(b)

	assert.Equal(t, SystemPrompt, system)
	for _, want := range []string{
		"=== TECHNICAL INDICATORS ANALYSIS ===",
		"=== CHART PATTERN ANALYSIS ===",
		"=== TREND ANALYSIS ===",
		"=== DECISION REQUIREMENTS ===",
		"Technical Indicators: 30%",
		"Chart Patterns: 25%",
		"Trend Analysis: 45%",
		"Current Price: 43250.5",
		"- RSI (71.30): Bearish",
		"- MACD (0.0045): Bullish",
		"Signal Distribution: 2 Bullish, 3 Bearish, 0 Neutral",
		"Trigger: RSI bearish condition",
		"- Trend strength: Strong (Score: 31.2)",
		"Overall Direction: Bullish",
		`"action": "LONG" | "SHORT" | "NEUTRAL"`,
		"Ensure the JSON is valid and complete.",
	} {
		assert.Contains(t, user, want)
	}
	assert.Equal(t, 1, strings.Count(user, "=== TREND ANALYSIS ==="))
}

func TestComposeEvidenceFallback(t *testing.T) {
	b := testBundle()
	b.Indicator.Evidence = nil
	_, user := Composer{}.Compose(b)
	assert.Contains(t, user, "Evidence: Mixed signals with no clear direction")
}

func TestBundleRefStable(t *testing.T) {
	a, b := testBundle(), testBundle()
	assert.NotEmpty(t, a.Ref())
	assert.Len(t, a.Ref(), 16)
	assert.Equal(t, a.Ref(), b.Ref())

	b.LastClose++
	assert.NotEqual(t, a.Ref(), b.Ref())
}

func TestBundleRefIgnoresChart(t *testing.T) {
	a, b := testBundle(), testBundle()
	b.Pattern.Chart = &visual.Artifact{Base64: "aGVsbG8=", Filename: "btcusdt.png"}
	assert.Equal(t, a.Ref(), b.Ref())
}
