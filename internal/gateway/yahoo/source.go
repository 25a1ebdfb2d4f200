package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"quantagent/internal/market"
	"quantagent/internal/pkg/convert"
	symbolpkg "quantagent/internal/pkg/symbol"
)

const defaultBaseURL = "https://query1.finance.yahoo.com"

type Config struct {
	BaseURL     string
	HTTPTimeout time.Duration
}

// Source fetches bars from the Yahoo Finance chart API. It serves as the
// fallback data provider: same contract as the primary, different venue.
// Yahoo covers equities and major crypto pairs (mapped to BASE-USD form).
type Source struct {
	baseURL string
	client  *http.Client
}

var _ market.Source = (*Source)(nil)

func New(cfg Config) *Source {
	base := cfg.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Source{baseURL: base, client: &http.Client{Timeout: timeout}}
}

func (s *Source) Name() string { return "yahoo" }

// yahooIntervals maps internal interval tokens to Yahoo chart API tokens.
// Yahoo has no 4h granularity, so that interval cannot be served here.
var yahooIntervals = map[string]string{
	"1m": "1m", "5m": "5m", "15m": "15m", "30m": "30m",
	"1h": "1h", "1d": "1d", "1w": "1wk",
}

func (s *Source) FetchSeries(ctx context.Context, symbol, interval string, limit int) (market.Series, error) {
	if limit <= 0 {
		limit = 100
	}
	iv, err := market.NormalizeInterval(interval)
	if err != nil {
		return nil, err
	}
	yIv, ok := yahooIntervals[iv]
	if !ok {
		return nil, fmt.Errorf("%w: yahoo does not serve interval %s", market.ErrUnavailable, iv)
	}
	ticker := symbolpkg.ToYahoo(symbol)
	if ticker == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	dur, _ := market.IntervalDuration(iv)
	u := fmt.Sprintf("%s/v8/finance/chart/%s?interval=%s&range=%s",
		s.baseURL, url.PathEscape(ticker), yIv, rangeFor(dur, limit))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: yahoo fetch %s: %v", market.ErrUnavailable, ticker, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: yahoo read body: %v", market.ErrUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: yahoo status %d for %s", market.ErrUnavailable, resp.StatusCode, ticker)
	}
	series, err := decodeChart(body, dur)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", market.ErrUnavailable, err)
	}
	if len(series) > limit {
		series = series[len(series)-limit:]
	}
	if dur > 0 {
		series = market.DropUnclosed(series, dur)
	}
	return series, nil
}

// chartResponse mirrors the subset of the chart API payload we consume.
// Quote arrays carry nulls for holiday gaps, hence interface{} elements.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []interface{} `json:"open"`
					High   []interface{} `json:"high"`
					Low    []interface{} `json:"low"`
					Close  []interface{} `json:"close"`
					Volume []interface{} `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func decodeChart(body []byte, barDur time.Duration) (market.Series, error) {
	var chart chartResponse
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, fmt.Errorf("yahoo decode: %v", err)
	}
	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo api error: %s", chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Timestamp) == 0 {
		return nil, fmt.Errorf("yahoo: no data returned")
	}
	result := chart.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, fmt.Errorf("yahoo: missing quote block")
	}
	quote := result.Indicators.Quote[0]
	out := make(market.Series, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(quote.Open) || i >= len(quote.High) || i >= len(quote.Low) || i >= len(quote.Close) {
			break
		}
		o := convert.ToFloat64(quote.Open[i])
		h := convert.ToFloat64(quote.High[i])
		l := convert.ToFloat64(quote.Low[i])
		c := convert.ToFloat64(quote.Close[i])
		if o == 0 && h == 0 && l == 0 && c == 0 {
			// null bar (holiday gap)
			continue
		}
		var vol float64
		if i < len(quote.Volume) {
			vol = convert.ToFloat64(quote.Volume[i])
		}
		openMs := ts * 1000
		out = append(out, market.Candle{
			OpenTime:  openMs,
			CloseTime: openMs + barDur.Milliseconds() - 1,
			Open:      o,
			High:      h,
			Low:       l,
			Close:     c,
			Volume:    vol,
		})
	}
	return out, nil
}

// rangeFor picks the smallest Yahoo range token covering limit bars of the
// given duration. Yahoo rejects long ranges for minute data, so intraday
// requests stay within the allowed windows.
func rangeFor(barDur time.Duration, limit int) string {
	if barDur <= 0 {
		return "1y"
	}
	span := barDur * time.Duration(limit)
	if barDur < time.Hour {
		switch {
		case span <= 24*time.Hour:
			return "1d"
		case span <= 5*24*time.Hour:
			return "5d"
		default:
			return "1mo"
		}
	}
	switch {
	case span <= 30*24*time.Hour:
		return "1mo"
	case span <= 90*24*time.Hour:
		return "3mo"
	case span <= 182*24*time.Hour:
		return "6mo"
	case span <= 365*24*time.Hour:
		return "1y"
	case span <= 2*365*24*time.Hour:
		return "2y"
	case span <= 5*365*24*time.Hour:
		return "5y"
	default:
		return "10y"
	}
}
