// Package visual renders a candle series to a PNG chart: candlesticks with
// MA20/MA50 overlays and a volume panel, drawn with go-echarts and
// screenshotted through headless Chrome.
package visual

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"
	talib "github.com/markcheno/go-talib"

	"quantagent/internal/market"
)

// Artifact is an opaque handle to a rendered chart. Consumers only carry it;
// nothing downstream interprets the bytes.
type Artifact struct {
	Bytes       []byte `json:"-"`
	Base64      string `json:"base64,omitempty"`
	Filename    string `json:"filename"`
	Description string `json:"description"`
}

// DataURI returns the artifact as an inline PNG data URI, or "" when empty.
func (a *Artifact) DataURI() string {
	if a == nil {
		return ""
	}
	if a.Base64 == "" && len(a.Bytes) > 0 {
		a.Base64 = base64.StdEncoding.EncodeToString(a.Bytes)
	}
	if a.Base64 == "" {
		return ""
	}
	return "data:image/png;base64," + a.Base64
}

// Input describes one chart to render.
type Input struct {
	Symbol     string
	Interval   string
	Series     market.Series
	Support    float64
	Resistance float64
}

const (
	colorBackground    = "#060c1b"
	colorTextPrimary   = "#eceff4"
	colorTextSecondary = "#9ca3af"
	colorBull          = "#34d399"
	colorBear          = "#f87171"
	colorMAFast        = "#3b82f6"
	colorMASlow        = "#fbbf24"

	chartWidthPx   = 1600
	klineHeightPx  = 600
	volumeHeightPx = 260

	maFastPeriod = 20
	maSlowPeriod = 50
)

var (
	headlessOnce sync.Once
	headlessErr  error
)

// EnsureHeadlessAvailable probes for a usable headless Chrome once per
// process.
func EnsureHeadlessAvailable(ctx context.Context) error {
	headlessOnce.Do(func() {
		targetCtx := ctx
		if targetCtx == nil {
			targetCtx = context.Background()
		}
		parent, cancel := chromedp.NewContext(targetCtx)
		if cancel != nil {
			defer cancel()
		}
		headlessErr = chromedp.Run(parent)
	})
	return headlessErr
}

// Render draws the chart and screenshots it to PNG.
func Render(ctx context.Context, in Input) (*Artifact, error) {
	if err := EnsureHeadlessAvailable(ctx); err != nil {
		return nil, err
	}
	if in.Symbol == "" {
		return nil, fmt.Errorf("symbol required for chart render")
	}
	if len(in.Series) == 0 {
		return nil, fmt.Errorf("no candles to render for %s", in.Symbol)
	}
	html, err := buildChartHTML(in)
	if err != nil {
		return nil, err
	}
	png, err := renderHTMLToPNG(ctx, html, chartWidthPx, klineHeightPx+volumeHeightPx)
	if err != nil {
		return nil, err
	}
	return &Artifact{
		Bytes:       png,
		Base64:      base64.StdEncoding.EncodeToString(png),
		Filename:    fmt.Sprintf("%s_%s_chart.png", strings.ToLower(in.Symbol), in.Interval),
		Description: describe(in),
	}, nil
}

func describe(in Input) string {
	desc := fmt.Sprintf("%s %s candlestick with MA%d/MA%d and volume",
		strings.ToUpper(in.Symbol), in.Interval, maFastPeriod, maSlowPeriod)
	if in.Support > 0 && in.Resistance > in.Support {
		desc += fmt.Sprintf("; support %.2f, resistance %.2f", in.Support, in.Resistance)
	}
	return desc
}

func buildChartHTML(in Input) ([]byte, error) {
	page := components.NewPage()
	page.SetLayout(components.PageFlexLayout)

	candles := in.Series
	minPrice, maxPrice := priceBounds(candles)
	padding := (maxPrice - minPrice) * 0.05
	if padding <= 0 {
		padding = math.Max(1, math.Abs(maxPrice)*0.01)
	}

	kline := charts.NewKLine()
	kline.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme:           types.ThemeWesteros,
			Width:           fmt.Sprintf("%dpx", chartWidthPx),
			Height:          fmt.Sprintf("%dpx", klineHeightPx),
			BackgroundColor: colorBackground,
		}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), TextStyle: &opts.TextStyle{Color: colorTextPrimary}}),
		charts.WithTitleOpts(opts.Title{
			Title:         fmt.Sprintf("%s %s", strings.ToUpper(in.Symbol), in.Interval),
			Subtitle:      describe(in),
			Left:          "left",
			Top:           "10",
			TitleStyle:    &opts.TextStyle{Color: colorTextPrimary, FontSize: 18},
			SubtitleStyle: &opts.TextStyle{Color: colorTextSecondary},
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{
			Type:      "category",
			AxisLabel: &opts.AxisLabel{Color: colorTextSecondary},
			SplitLine: &opts.SplitLine{Show: opts.Bool(false)},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Scale:     opts.Bool(true),
			AxisLabel: &opts.AxisLabel{Color: colorTextSecondary},
			Min:       round(minPrice-padding, 4),
			Max:       round(maxPrice+padding, 4),
			SplitLine: &opts.SplitLine{Show: opts.Bool(true), LineStyle: &opts.LineStyle{Color: colorTextSecondary, Opacity: opts.Float(0.2)}},
		}),
	)
	kline.SetSeriesOptions(
		charts.WithItemStyleOpts(opts.ItemStyle{
			Color:        colorBull,
			Color0:       colorBear,
			BorderColor:  colorBull,
			BorderColor0: colorBear,
		}),
	)

	xAxis := buildXAxis(candles)
	kline.SetXAxis(xAxis)
	kline.AddSeries("Price", buildKlineSeries(candles))

	kline.Overlap(buildMALine(candles))

	page.AddCharts(kline, buildVolumeChart(xAxis, candles))

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func buildXAxis(candles market.Series) []string {
	x := make([]string, len(candles))
	for i, c := range candles {
		x[i] = time.UnixMilli(c.CloseTime).UTC().Format("01-02 15:04")
	}
	return x
}

func buildKlineSeries(candles market.Series) []opts.KlineData {
	data := make([]opts.KlineData, 0, len(candles))
	for _, c := range candles {
		data = append(data, opts.KlineData{Value: [4]float64{c.Open, c.Close, c.Low, c.High}})
	}
	return data
}

func buildMALine(candles market.Series) *charts.Line {
	closes := candles.Closes()
	line := charts.NewLine()
	line.SetSeriesOptions(
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
	)
	fast := trimLeadingZeros(talib.Sma(closes, maFastPeriod))
	slow := trimLeadingZeros(talib.Sma(closes, maSlowPeriod))
	line.AddSeries(fmt.Sprintf("MA%d", maFastPeriod), toLineData(fast, len(candles)),
		charts.WithLineStyleOpts(opts.LineStyle{Color: colorMAFast, Width: 2}))
	line.AddSeries(fmt.Sprintf("MA%d", maSlowPeriod), toLineData(slow, len(candles)),
		charts.WithLineStyleOpts(opts.LineStyle{Color: colorMASlow, Width: 2}))
	return line
}

func buildVolumeChart(xAxis []string, candles market.Series) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme:           types.ThemeWesteros,
			Width:           fmt.Sprintf("%dpx", chartWidthPx),
			Height:          fmt.Sprintf("%dpx", volumeHeightPx),
			BackgroundColor: colorBackground,
		}),
		charts.WithTitleOpts(opts.Title{Title: "Volume", Left: "left", TitleStyle: &opts.TextStyle{Color: colorTextPrimary}}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(false)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{
			SplitNumber: 6,
			AxisLabel:   &opts.AxisLabel{Show: opts.Bool(false)},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			AxisLabel: &opts.AxisLabel{Show: opts.Bool(true), Color: colorTextSecondary},
			SplitLine: &opts.SplitLine{Show: opts.Bool(true), LineStyle: &opts.LineStyle{Color: colorTextSecondary, Opacity: opts.Float(0.15)}},
		}),
	)
	vols := make([]opts.BarData, len(candles))
	for i, c := range candles {
		color := colorBear
		if c.Close >= c.Open {
			color = colorBull
		}
		vols[i] = opts.BarData{
			Value: c.Volume,
			ItemStyle: &opts.ItemStyle{
				Color:   color,
				Opacity: opts.Float(0.6),
			},
		}
	}
	bar.SetXAxis(xAxis)
	bar.AddSeries("Volume", vols)
	return bar
}

func toLineData(series []float64, length int) []opts.LineData {
	line := make([]opts.LineData, length)
	offset := length - len(series)
	if offset < 0 {
		offset = 0
	}
	for i := 0; i < offset; i++ {
		line[i] = opts.LineData{Value: nil}
	}
	for i := 0; i < len(series) && offset+i < length; i++ {
		val := series[i]
		if math.IsNaN(val) {
			line[offset+i] = opts.LineData{Value: nil}
		} else {
			line[offset+i] = opts.LineData{Value: round(val, 4)}
		}
	}
	return line
}

// trimLeadingZeros drops TALib's zero-seeded SMA warmup values so the line
// starts where enough candles exist.
func trimLeadingZeros(series []float64) []float64 {
	start := 0
	for start < len(series) && math.Abs(series[start]) <= 1e-9 {
		start++
	}
	return series[start:]
}

func priceBounds(candles market.Series) (minVal, maxVal float64) {
	if len(candles) == 0 {
		return 0, 0
	}
	minVal = candles[0].Low
	maxVal = candles[0].High
	for _, c := range candles {
		if c.Low < minVal {
			minVal = c.Low
		}
		if c.High > maxVal {
			maxVal = c.High
		}
	}
	return minVal, maxVal
}

func round(val float64, decimals int) float64 {
	if decimals <= 0 {
		return math.Round(val)
	}
	scale := math.Pow10(decimals)
	return math.Round(val*scale) / scale
}

func renderHTMLToPNG(ctx context.Context, html []byte, width, height int) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	parent, cancel := chromedp.NewContext(ctx)
	defer cancel()

	timeoutCtx, cancelTimeout := context.WithTimeout(parent, 20*time.Second)
	defer cancelTimeout()

	dataURI := "data:text/html;base64," + base64.StdEncoding.EncodeToString(html)
	var screenshot []byte
	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(int64(width), int64(height)),
		chromedp.Navigate(dataURI),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(1500 * time.Millisecond),
		chromedp.FullScreenshot(&screenshot, 0),
	}
	if err := chromedp.Run(timeoutCtx, tasks...); err != nil {
		return nil, err
	}
	return screenshot, nil
}
