package binance

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"quantagent/internal/market"
	symbolpkg "quantagent/internal/pkg/symbol"

	"github.com/adshao/go-binance/v2/futures"
)

const maxHistoryLimit = 1500

type Config struct {
	RESTBaseURL  string
	HTTPTimeout  time.Duration
	ProxyEnabled bool
	ProxyURL     string
}

func (c *Config) withDefaults() Config {
	out := *c
	out.RESTBaseURL = strings.TrimSpace(out.RESTBaseURL)
	if out.RESTBaseURL == "" {
		out.RESTBaseURL = "https://fapi.binance.com"
	}
	if out.HTTPTimeout <= 0 {
		out.HTTPTimeout = 15 * time.Second
	}
	out.ProxyURL = strings.TrimSpace(out.ProxyURL)
	return out
}

// Source fetches futures klines through the go-binance SDK.
type Source struct {
	cfg    Config
	client *futures.Client
}

var _ market.Source = (*Source)(nil)

func New(cfg Config) (*Source, error) {
	final := cfg.withDefaults()
	client := futures.NewClient("", "")
	client.BaseURL = final.RESTBaseURL
	httpClient := &http.Client{Timeout: final.HTTPTimeout}
	if final.ProxyEnabled && final.ProxyURL != "" {
		proxyURL, err := url.Parse(final.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy url: %w", err)
		}
		base, ok := http.DefaultTransport.(*http.Transport)
		if !ok || base == nil {
			return nil, fmt.Errorf("http DefaultTransport is not *http.Transport")
		}
		transport := base.Clone()
		transport.Proxy = http.ProxyURL(proxyURL)
		httpClient.Transport = transport
	}
	client.HTTPClient = httpClient
	return &Source{cfg: final, client: client}, nil
}

func (s *Source) Name() string { return "binance" }

func (s *Source) FetchSeries(ctx context.Context, symbol, interval string, limit int) (market.Series, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	clean := symbolpkg.Clean(symbol)
	if clean == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	iv, err := market.NormalizeInterval(interval)
	if err != nil {
		return nil, err
	}
	kls, err := s.client.NewKlinesService().Symbol(clean).Interval(iv).Limit(limit).Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: binance klines %s %s: %v", market.ErrUnavailable, clean, iv, err)
	}
	out := make(market.Series, 0, len(kls))
	for _, kl := range kls {
		if kl == nil {
			continue
		}
		out = append(out, market.Candle{
			OpenTime:  kl.OpenTime,
			CloseTime: kl.CloseTime,
			Open:      parseFloat(kl.Open),
			High:      parseFloat(kl.High),
			Low:       parseFloat(kl.Low),
			Close:     parseFloat(kl.Close),
			Volume:    parseFloat(kl.Volume),
			Trades:    kl.TradeNum,
		})
	}
	if dur, ok := market.IntervalDuration(iv); ok {
		out = market.DropUnclosed(out, dur)
	}
	return out, nil
}

func parseFloat(v string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(v), 64)
	return f
}
