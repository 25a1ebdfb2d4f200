package config

import (
	"fmt"
	"strings"
)

const (
	defaultAppEnv        = "dev"
	defaultAppLogLevel   = "info"
	defaultAppHTTPAddr   = ":8088"
	defaultAppLogPath    = "/data/logs/quantagent.log"
	defaultAppLLMLogPath = "/data/logs/quantagent-llm.log"

	defaultMarketName     = "binance"
	defaultMarketREST     = "https://fapi.binance.com"
	defaultYahooREST      = "https://query1.finance.yahoo.com"
	defaultFetchAttempts  = 2
	defaultRetryDelayMS   = 500
	defaultCacheTTL       = 60
	defaultBars           = 500
	defaultSourceTimeout  = 15
	defaultChartTimeout   = 20
	defaultAITimeout      = 120
	defaultAIMaxTokens    = 1000
	defaultStorePath      = "/data/quantagent/decisions.db"
	defaultWatchlistPath  = "configs/watchlist.yaml"
	defaultScheduleOffset = 10
)

func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Market.applyDefaults(keys)
	c.Analysis.applyDefaults(keys)
	c.AI.applyDefaults(keys)
	c.Store.applyDefaults(keys)
	c.Schedule.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
		stringFieldDefault("app.log_path", &a.LogPath, defaultAppLogPath),
		stringFieldDefault("app.llm_log_path", &a.LLMLog, defaultAppLLMLogPath),
	)
}

func (m *MarketConfig) applyDefaults(keys keySet) {
	if m == nil {
		return
	}
	if len(m.Sources) == 0 {
		m.Sources = []MarketSource{{
			Name:        defaultMarketName,
			Enabled:     true,
			RESTBaseURL: defaultMarketREST,
		}}
	}
	for i := range m.Sources {
		src := &m.Sources[i]
		src.Proxy.normalize()
		if strings.TrimSpace(src.Name) == "" {
			if i == 0 {
				src.Name = defaultMarketName
			} else {
				src.Name = fmt.Sprintf("market_%d", i)
			}
		}
		if src.RESTBaseURL == "" {
			src.RESTBaseURL = defaultRESTBaseFor(src.Name)
		}
		if src.TimeoutSeconds <= 0 {
			src.TimeoutSeconds = defaultSourceTimeout
		}
	}
	if strings.TrimSpace(m.ActiveSource) == "" {
		m.ActiveSource = firstEnabledMarket(m.Sources)
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "market.fetch_attempts",
			need:  func() bool { return m.FetchAttempts <= 0 },
			apply: func() { m.FetchAttempts = defaultFetchAttempts },
		},
		fieldDefault{
			key:   "market.retry_delay_ms",
			need:  func() bool { return m.RetryDelayMS <= 0 },
			apply: func() { m.RetryDelayMS = defaultRetryDelayMS },
		},
		fieldDefault{
			// Explicit 0 disables the cache; only an unset key gets the default.
			key:   "market.cache_ttl_seconds",
			need:  func() bool { return m.CacheTTLSeconds == 0 },
			apply: func() { m.CacheTTLSeconds = defaultCacheTTL },
		},
		fieldDefault{
			key:   "market.default_bars",
			need:  func() bool { return m.DefaultBars <= 0 },
			apply: func() { m.DefaultBars = defaultBars },
		},
	)
}

func (a *AnalysisConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "analysis.chart_timeout_seconds",
			need:  func() bool { return a.ChartTimeoutSeconds <= 0 },
			apply: func() { a.ChartTimeoutSeconds = defaultChartTimeout },
		},
	)
}

func (a *AIConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	if a.ProviderPresets == nil {
		a.ProviderPresets = make(map[string]ModelPreset)
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "ai.timeout_seconds",
			need:  func() bool { return a.TimeoutSeconds <= 0 },
			apply: func() { a.TimeoutSeconds = defaultAITimeout },
		},
		fieldDefault{
			key:   "ai.max_tokens",
			need:  func() bool { return a.MaxTokens <= 0 },
			apply: func() { a.MaxTokens = defaultAIMaxTokens },
		},
	)
}

func (s *StoreConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("store.path", &s.Path, defaultStorePath),
	)
}

func (s *ScheduleConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		boolFieldDefault("schedule.enabled", &s.Enabled, true),
		boolFieldDefault("schedule.run_immediately", &s.RunImmediately, true),
		stringFieldDefault("schedule.watchlist_path", &s.WatchlistPath, defaultWatchlistPath),
		fieldDefault{
			key:   "schedule.offset_seconds",
			need:  func() bool { return s.OffsetSeconds == 0 },
			apply: func() { s.OffsetSeconds = defaultScheduleOffset },
		},
	)
}

// Helper functions

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func boolFieldDefault(key string, target *bool, def bool) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func defaultRESTBaseFor(name string) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "yahoo":
		return defaultYahooREST
	default:
		return defaultMarketREST
	}
}

func firstEnabledMarket(sources []MarketSource) string {
	for _, src := range sources {
		name := strings.TrimSpace(src.Name)
		if src.Enabled && name != "" {
			return name
		}
	}
	if len(sources) > 0 {
		if name := strings.TrimSpace(sources[0].Name); name != "" {
			return name
		}
	}
	return defaultMarketName
}
