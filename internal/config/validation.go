package config

import (
	"fmt"
	"strings"
)

var validLogLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "error": true,
}

func validate(c *Config) error {
	if err := c.App.validate(); err != nil {
		return err
	}
	if err := c.Market.validate(); err != nil {
		return err
	}
	if err := c.AI.validate(); err != nil {
		return err
	}
	if err := c.Store.validate(); err != nil {
		return err
	}
	if err := c.Schedule.validate(); err != nil {
		return err
	}
	return nil
}

func (a *AppConfig) validate() error {
	if !validLogLevels[strings.ToLower(strings.TrimSpace(a.LogLevel))] {
		return fmt.Errorf("app.log_level must be one of debug/info/warn/error, got %q", a.LogLevel)
	}
	if strings.TrimSpace(a.HTTPAddr) == "" {
		return fmt.Errorf("app.http_addr cannot be empty")
	}
	return nil
}

func (m *MarketConfig) validate() error {
	if len(m.Sources) == 0 {
		return fmt.Errorf("market.sources requires at least one source")
	}
	activeName := strings.ToLower(strings.TrimSpace(m.ActiveSource))
	enabled := 0
	activeFound := false
	for _, src := range m.Sources {
		if !src.Enabled {
			continue
		}
		enabled++
		if strings.TrimSpace(src.RESTBaseURL) == "" {
			return fmt.Errorf("market source %s missing rest_base_url", src.Name)
		}
		if src.Proxy.Enabled && src.Proxy.RESTURL == "" {
			return fmt.Errorf("market source %s has proxy enabled but no rest_url", src.Name)
		}
		if activeName == "" || strings.ToLower(strings.TrimSpace(src.Name)) == activeName {
			activeFound = true
		}
	}
	if enabled == 0 {
		return fmt.Errorf("market.sources requires at least one enabled source")
	}
	if !activeFound {
		return fmt.Errorf("enabled market.active_source=%s not found", m.ActiveSource)
	}
	if m.FetchAttempts < 1 {
		return fmt.Errorf("market.fetch_attempts must be >= 1")
	}
	if m.RetryDelayMS < 0 {
		return fmt.Errorf("market.retry_delay_ms must be >= 0")
	}
	if m.CacheTTLSeconds < 0 {
		return fmt.Errorf("market.cache_ttl_seconds must be >= 0")
	}
	if m.DefaultBars < 50 || m.DefaultBars > 1500 {
		return fmt.Errorf("market.default_bars must be in [50,1500]")
	}
	return nil
}

func (a *AIConfig) validate() error {
	if a.TimeoutSeconds <= 0 {
		return fmt.Errorf("ai.timeout_seconds must be > 0")
	}
	if a.MaxTokens <= 0 {
		return fmt.Errorf("ai.max_tokens must be > 0")
	}
	models, err := a.ResolveModelConfigs()
	if err != nil {
		return err
	}
	if len(models) == 0 {
		return fmt.Errorf("ai.models requires at least one model")
	}
	enabled := 0
	active := strings.TrimSpace(a.ActiveModel)
	activeFound := active == ""
	for _, m := range models {
		if strings.TrimSpace(m.Model) == "" {
			return fmt.Errorf("ai.models contains entry without model (id=%s)", m.ID)
		}
		if strings.TrimSpace(m.APIURL) == "" {
			return fmt.Errorf("ai.models.%s missing api_url (can inherit from preset)", m.ID)
		}
		if strings.TrimSpace(m.Provider) == "" {
			return fmt.Errorf("ai.models.%s missing provider", m.ID)
		}
		if m.Enabled {
			enabled++
			if strings.EqualFold(m.ID, active) {
				activeFound = true
			}
		}
	}
	if enabled == 0 {
		return fmt.Errorf("ai.models requires at least one enabled model")
	}
	if !activeFound {
		return fmt.Errorf("ai.active_model=%s is not an enabled model id", a.ActiveModel)
	}
	return nil
}

func (s *StoreConfig) validate() error {
	if strings.TrimSpace(s.Path) == "" {
		return fmt.Errorf("store.path cannot be empty")
	}
	return nil
}

func (s *ScheduleConfig) validate() error {
	if s.OffsetSeconds < 0 {
		return fmt.Errorf("schedule.offset_seconds must be >= 0")
	}
	if s.Enabled && strings.TrimSpace(s.WatchlistPath) == "" {
		return fmt.Errorf("schedule.watchlist_path cannot be empty when schedule is enabled")
	}
	return nil
}
