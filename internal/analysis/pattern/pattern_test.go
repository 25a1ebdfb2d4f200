package pattern

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quantagent/internal/analysis"
	"quantagent/internal/market"
)

func seriesFromCloses(closes []float64) market.Series {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	step := 4 * time.Hour
	out := make(market.Series, 0, len(closes))
	prev := closes[0]
	for i, c := range closes {
		ot := start.Add(time.Duration(i) * step)
		out = append(out, market.Candle{
			OpenTime:  ot.UnixMilli(),
			CloseTime: ot.Add(step).UnixMilli() - 1,
			Open:      prev,
			High:      math.Max(prev, c) + 1,
			Low:       math.Min(prev, c) - 1,
			Close:     c,
			Volume:    1000,
		})
		prev = c
	}
	return out
}

func linearCloses(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

func TestAnalyzeTrendShapes(t *testing.T) {
	cases := []struct {
		name   string
		closes []float64
		trend  string
		action string
	}{
		{"uptrend", linearCloses(40, 100, 1), "Uptrend", "Strong Bullish"},
		{"downtrend", linearCloses(40, 140, -1), "Downtrend", "Strong Bearish"},
		{"sideways", linearCloses(40, 100, 0), "Sideways", "Neutral"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sum, err := New().Analyze(seriesFromCloses(tc.closes))
			require.NoError(t, err)
			assert.Equal(t, tc.trend, sum.Trend)
			assert.Equal(t, tc.action, sum.PriceAction.Pattern)
		})
	}
}

func TestAnalyzeRangeLevels(t *testing.T) {
	series := seriesFromCloses(linearCloses(40, 100, 1))
	sum, err := New().Analyze(series)
	require.NoError(t, err)

	wantSupport := math.MaxFloat64
	wantResistance := -math.MaxFloat64
	for _, c := range series[len(series)-rangeSpan:] {
		wantSupport = math.Min(wantSupport, c.Low)
		wantResistance = math.Max(wantResistance, c.High)
	}
	assert.Equal(t, wantSupport, sum.Support)
	assert.Equal(t, wantResistance, sum.Resistance)
	assert.Less(t, sum.Support, sum.Resistance)
}

func TestAnalyzeFindsDoubleBottom(t *testing.T) {
	series := seriesFromCloses(linearCloses(40, 100, 0))
	// Two matching pits in the back half, far enough apart to survive the
	// masking window.
	series[25].Low = 90
	series[32].Low = 90

	sum, err := New().Analyze(series)
	require.NoError(t, err)

	var found *Detection
	for i := range sum.Detections {
		if sum.Detections[i].Label == "Double Bottom" {
			found = &sum.Detections[i]
			break
		}
	}
	require.NotNil(t, found)
	assert.InDelta(t, 1.0, found.Strength, 1e-9)
	assert.Contains(t, found.Detail, "support near 90.00")
}

func TestDetectDoubleBottom(t *testing.T) {
	flat := func() []float64 {
		lows := make([]float64, 40)
		for i := range lows {
			lows[i] = 99.5
		}
		return lows
	}

	t.Run("matching twins", func(t *testing.T) {
		lows := flat()
		lows[25] = 90
		lows[32] = 90
		d, ok := detectDoubleBottom(lows)
		require.True(t, ok)
		assert.Equal(t, "Double Bottom", d.Label)
		assert.InDelta(t, 1.0, d.Strength, 1e-9)
	})

	t.Run("lone pit", func(t *testing.T) {
		lows := flat()
		lows[25] = 90
		_, ok := detectDoubleBottom(lows)
		assert.False(t, ok)
	})

	t.Run("twins too close", func(t *testing.T) {
		lows := flat()
		lows[25] = 90
		lows[26] = 90
		_, ok := detectDoubleBottom(lows)
		assert.False(t, ok)
	})
}

func TestRangePosition(t *testing.T) {
	sum := Summary{Support: 100, Resistance: 200}
	assert.Equal(t, 50.0, sum.RangePosition(150))
	assert.Equal(t, 0.0, sum.RangePosition(100))
	assert.Equal(t, 100.0, sum.RangePosition(200))

	degenerate := Summary{Support: 100, Resistance: 100}
	assert.Equal(t, 0.0, degenerate.RangePosition(150))
}

func TestVolatilityLabel(t *testing.T) {
	assert.Equal(t, "high", Summary{Volatility: 4}.VolatilityLabel())
	assert.Equal(t, "moderate", Summary{Volatility: 2}.VolatilityLabel())
	assert.Equal(t, "low", Summary{Volatility: 1}.VolatilityLabel())
}

func TestAnalyzeInsufficientData(t *testing.T) {
	a := New()
	_, err := a.Analyze(seriesFromCloses(linearCloses(minBars-1, 100, 1)))

	var ierr *analysis.InsufficientDataError
	require.True(t, errors.As(err, &ierr))
	assert.Equal(t, "PatternAgent", ierr.Agent)
	assert.Equal(t, minBars, ierr.Need)
	assert.Equal(t, minBars-1, ierr.Got)
}

func TestAnalyzeDeterministic(t *testing.T) {
	series := seriesFromCloses(linearCloses(45, 320, 0.8))
	first, err := New().Analyze(series)
	require.NoError(t, err)
	second, err := New().Analyze(series)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
