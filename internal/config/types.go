package config

import (
	"strings"
	"time"
)

// Config is the root configuration for quantagent.
type Config struct {
	App      AppConfig      `toml:"app"`
	Market   MarketConfig   `toml:"market"`
	Analysis AnalysisConfig `toml:"analysis"`
	AI       AIConfig       `toml:"ai"`
	Store    StoreConfig    `toml:"store"`
	Schedule ScheduleConfig `toml:"schedule"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	HTTPAddr string `toml:"http_addr"`
	LogPath  string `toml:"log_path"`
	LLMLog   string `toml:"llm_log_path"`
	LLMDump  bool   `toml:"llm_dump_payload"`
}

type MarketConfig struct {
	ActiveSource    string         `toml:"active_source"`
	Sources         []MarketSource `toml:"sources"`
	FetchAttempts   int            `toml:"fetch_attempts"`
	RetryDelayMS    int            `toml:"retry_delay_ms"`
	CacheTTLSeconds int            `toml:"cache_ttl_seconds"`
	DefaultBars     int            `toml:"default_bars"`
}

func (m MarketConfig) RetryDelay() time.Duration {
	return time.Duration(m.RetryDelayMS) * time.Millisecond
}

func (m MarketConfig) CacheTTL() time.Duration {
	return time.Duration(m.CacheTTLSeconds) * time.Second
}

type MarketSource struct {
	Name           string      `toml:"name"`
	Enabled        bool        `toml:"enabled"`
	RESTBaseURL    string      `toml:"rest_base_url"`
	TimeoutSeconds int         `toml:"timeout_seconds"`
	Proxy          ProxyConfig `toml:"proxy"`
}

func (s MarketSource) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

type ProxyConfig struct {
	Enabled bool   `toml:"enabled"`
	RESTURL string `toml:"rest_url"`
}

func (p *ProxyConfig) normalize() {
	if p == nil {
		return
	}
	p.RESTURL = strings.TrimSpace(p.RESTURL)
}

// EnabledSources returns enabled sources with the active one first.
func (m MarketConfig) EnabledSources() []MarketSource {
	active := strings.ToLower(strings.TrimSpace(m.ActiveSource))
	out := make([]MarketSource, 0, len(m.Sources))
	for _, src := range m.Sources {
		if !src.Enabled {
			continue
		}
		if active != "" && strings.ToLower(strings.TrimSpace(src.Name)) == active {
			out = append([]MarketSource{src}, out...)
			continue
		}
		out = append(out, src)
	}
	return out
}

type AnalysisConfig struct {
	Charts              bool `toml:"charts"`
	ChartTimeoutSeconds int  `toml:"chart_timeout_seconds"`
}

func (a AnalysisConfig) ChartTimeout() time.Duration {
	return time.Duration(a.ChartTimeoutSeconds) * time.Second
}

// AIConfig selects the synthesis model and its transport settings.
type AIConfig struct {
	ActiveModel      string                 `toml:"active_model"`
	TimeoutSeconds   int                    `toml:"timeout_seconds"`
	MaxTokens        int                    `toml:"max_tokens"`
	SynthesisLogPath string                 `toml:"synthesis_log_path"`
	ProviderPresets  map[string]ModelPreset `toml:"provider_presets"`
	Models           []AIModelConfig        `toml:"models"`
}

func (a AIConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// ModelPreset is a reusable API connection profile.
type ModelPreset struct {
	APIURL         string            `toml:"api_url"`
	APIKey         string            `toml:"api_key"`
	Headers        map[string]string `toml:"headers"`
	Temperature    float64           `toml:"temperature"`
	SupportsVision bool              `toml:"supports_vision"`
	ExpectJSON     bool              `toml:"expect_json"`
}

// AIModelConfig is one model entry. Pointer fields distinguish an explicit
// value from "inherit from preset".
type AIModelConfig struct {
	ID             string            `toml:"id"`
	Provider       string            `toml:"provider"`
	Preset         string            `toml:"preset"`
	Enabled        bool              `toml:"enabled"`
	APIURL         string            `toml:"api_url"`
	APIKey         string            `toml:"api_key"`
	Model          string            `toml:"model"`
	Headers        map[string]string `toml:"headers"`
	Temperature    *float64          `toml:"temperature"`
	SupportsVision *bool             `toml:"supports_vision"`
	ExpectJSON     *bool             `toml:"expect_json"`
}

// ResolvedModelConfig is a model entry after preset merge and env expansion.
type ResolvedModelConfig struct {
	ID             string
	Provider       string
	APIURL         string
	APIKey         string
	Model          string
	Headers        map[string]string
	Temperature    float64
	Enabled        bool
	SupportsVision bool
	ExpectJSON     bool
}

type StoreConfig struct {
	Path string `toml:"path"`
}

type ScheduleConfig struct {
	Enabled        bool   `toml:"enabled"`
	WatchlistPath  string `toml:"watchlist_path"`
	OffsetSeconds  int    `toml:"offset_seconds"`
	RunImmediately bool   `toml:"run_immediately"`
}

func (s ScheduleConfig) Offset() time.Duration {
	return time.Duration(s.OffsetSeconds) * time.Second
}

// keySet tracks which config paths the file set explicitly.
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

// fieldDefault describes one field's default rule.
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
