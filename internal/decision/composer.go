package decision

import (
	"fmt"
	"strings"
	"time"

	"quantagent/internal/analysis/indicator"
	"quantagent/internal/analysis/trend"
	"quantagent/internal/pkg/format"
)

// SystemPrompt pins the model into its analyst role. Providers without
// a system turn fold it into the user message.
const SystemPrompt = "You are a professional quantitative trading analyst. Always respond with valid JSON only."

// Composer renders an analysis bundle into the decision prompt. Pure:
// the same bundle renders to byte-identical text on every call.
type Composer struct{}

// Compose returns the system and user messages for one synthesis.
func (Composer) Compose(b *Bundle) (system, user string) {
	var sb strings.Builder
	writeHeader(&sb, b)
	writeIndicatorSection(&sb, b)
	writePatternSection(&sb, b)
	writeTrendSection(&sb, b)
	writeRequirements(&sb)
	return SystemPrompt, sb.String()
}

func writeHeader(sb *strings.Builder, b *Bundle) {
	sb.WriteString("You are a professional quantitative trading analyst making high-frequency trading decisions.\n")
	fmt.Fprintf(sb, "Analyze the following comprehensive market data for %s and provide a structured trading decision.\n\n", b.Symbol)
	fmt.Fprintf(sb, "Market: %s %s, %d bars, as of %s\n", b.Symbol, b.Interval, b.Bars, b.AsOf.UTC().Format(time.RFC3339))
	fmt.Fprintf(sb, "Current Price: %s\n\n", format.Price(b.LastClose))
}

// indicatorPromptRows fixes the order and labels of the indicator lines
// so the rendered prompt never depends on map iteration.
var indicatorPromptRows = []struct {
	key      string
	label    string
	valueFmt string
}{
	{"rsi", "RSI", "%.2f"},
	{"macd", "MACD", "%.4f"},
	{"roc", "Rate of Change", "%.2f%%"},
	{"stoch", "Stochastic", "%.2f"},
	{"willr", "Williams %R", "%.2f"},
}

func writeIndicatorSection(sb *strings.Builder, b *Bundle) {
	sb.WriteString("=== TECHNICAL INDICATORS ANALYSIS ===\n")
	sb.WriteString("Technical Analysis Summary:\n")
	var bullish, bearish, neutral int
	for _, row := range indicatorPromptRows {
		r, ok := b.Indicator.Readings[row.key]
		if !ok {
			continue
		}
		fmt.Fprintf(sb, "- %s (%s): %s\n", row.label, fmt.Sprintf(row.valueFmt, r.Value), r.Signal)
		switch r.Signal {
		case indicator.SignalBullish:
			bullish++
		case indicator.SignalBearish:
			bearish++
		default:
			neutral++
		}
	}
	fmt.Fprintf(sb, "Signal Distribution: %d Bullish, %d Bearish, %d Neutral\n\n", bullish, bearish, neutral)

	fmt.Fprintf(sb, "Indicator Forecast: %s\n", b.Indicator.Forecast)
	evidence := "Mixed signals with no clear direction"
	if len(b.Indicator.Evidence) > 0 {
		evidence = strings.Join(b.Indicator.Evidence, "; ")
	}
	fmt.Fprintf(sb, "Evidence: %s\n", evidence)
	fmt.Fprintf(sb, "Trigger: %s\n\n", b.Indicator.Trigger)
}

func writePatternSection(sb *strings.Builder, b *Bundle) {
	p := b.Pattern
	sb.WriteString("=== CHART PATTERN ANALYSIS ===\n")
	sb.WriteString("Chart Pattern Analysis:\n")
	fmt.Fprintf(sb, "- Overall Trend: %s\n", p.Trend)
	fmt.Fprintf(sb, "- Volatility: %.2f%% (%s)\n", p.Volatility, p.VolatilityLabel())
	fmt.Fprintf(sb, "- Recent Price Action: %s (%s over the last 5 closes)\n", p.PriceAction.Pattern, format.Percent(p.PriceAction.ChangePct))
	fmt.Fprintf(sb, "- Support Level: %s\n", format.Price(p.Support))
	fmt.Fprintf(sb, "- Resistance Level: %s\n", format.Price(p.Resistance))
	if len(p.Detections) > 0 {
		parts := make([]string, 0, len(p.Detections))
		for _, det := range p.Detections {
			s := fmt.Sprintf("%s [strength %.2f]", det.Label, det.Strength)
			if det.Detail != "" {
				s += ", " + det.Detail
			}
			parts = append(parts, s)
		}
		fmt.Fprintf(sb, "- Detected Structures: %s\n", strings.Join(parts, "; "))
	}
	fmt.Fprintf(sb, "- Range Position: price at %.1f%% between support and resistance\n\n", p.RangePosition(b.LastClose))
	fmt.Fprintf(sb, "Visual Summary: The chart shows a %s pattern with %.1f%% volatility. Recent price action indicates %s momentum.\n\n",
		strings.ToLower(p.Trend), p.Volatility, strings.ToLower(p.PriceAction.Pattern))
}

func writeTrendSection(sb *strings.Builder, b *Bundle) {
	t := b.Trend
	sb.WriteString("=== TREND ANALYSIS ===\n")
	sb.WriteString("Trend Analysis Summary:\n")
	fmt.Fprintf(sb, "- Short-term trend: %s (%s)\n", t.Short.Direction, t.Short.Strength)
	fmt.Fprintf(sb, "- Medium-term trend: %s (%s)\n", t.Medium.Direction, t.Medium.Strength)
	fmt.Fprintf(sb, "- Long-term trend: %s (%s)\n", t.Long.Direction, t.Long.Strength)
	fmt.Fprintf(sb, "- Price momentum: %s (1-bar %s, 5-bar %s, 10-bar %s)\n",
		t.Momentum.Overall,
		format.Percent(t.Momentum.Change1),
		format.Percent(t.Momentum.Change5),
		format.Percent(t.Momentum.Change10))
	fmt.Fprintf(sb, "- Volume trend: %s (ratio %.2f)\n", t.Volume.Trend, t.Volume.Ratio)
	fmt.Fprintf(sb, "- Price acceleration: %s\n", t.Acceleration.Direction)
	fmt.Fprintf(sb, "- Trend strength: %s (Score: %.1f)\n", t.Strength.Classification, t.Strength.Score)
	fmt.Fprintf(sb, "- Breakout status: %s\n", breakoutLine(t.Breakout))
	if len(t.KeyLevels) == 2 {
		fmt.Fprintf(sb, "- Key levels: support %s, resistance %s\n", format.Price(t.KeyLevels[0]), format.Price(t.KeyLevels[1]))
	}
	fmt.Fprintf(sb, "\nOverall Direction: %s\n", t.Direction)
	fmt.Fprintf(sb, "Trend Confidence: %.2f\n\n", t.Confidence)
}

func breakoutLine(br trend.Breakout) string {
	if br.Status == "" || br.Status == "None" {
		return "None"
	}
	return fmt.Sprintf("%s (strength %.1f%%)", br.Status, br.Strength)
}

func writeRequirements(sb *strings.Builder) {
	sb.WriteString(`=== DECISION REQUIREMENTS ===
Based on the above analysis, provide a trading decision following these guidelines:

1. Consider all three analyses with appropriate weights:
   - Technical Indicators: 30%
   - Chart Patterns: 25%
   - Trend Analysis: 45%

2. Account for risk management:
   - Only recommend LONG or SHORT if confidence is reasonable
   - Consider conflicting signals carefully
   - Evaluate market volatility and liquidity
   - Place stop_loss and take_profit on the correct side of the current price, or use 0 to omit them

3. Provide clear justification for your decision

Respond ONLY with a valid JSON object in this exact format:
{
    "action": "LONG" | "SHORT" | "NEUTRAL",
    "confidence": 0.0-1.0,
    "justification": "Clear explanation of the decision reasoning",
    "risk_level": "LOW" | "MEDIUM" | "HIGH",
    "key_factors": ["factor1", "factor2", "factor3"],
    "stop_loss": number,
    "take_profit": number
}

Ensure the JSON is valid and complete.
`)
}
