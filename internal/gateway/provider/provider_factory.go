package provider

import (
	"fmt"
	"strings"
	"time"

	"quantagent/internal/logger"
)

type ModelCfg struct {
	ID, Provider, APIURL, APIKey, Model string
	Temperature                         float64
	Enabled                             bool
	Headers                             map[string]string
	SupportsVision                      bool
	ExpectJSON                          bool
}

func BuildProvidersFromConfig(models []ModelCfg, timeout time.Duration) []ModelProvider {
	out := make([]ModelProvider, 0, len(models))
	for _, m := range models {
		if !m.Enabled {
			continue
		}
		id := strings.TrimSpace(m.ID)
		if id == "" {
			base := strings.TrimSpace(m.Provider)
			if base == "" {
				base = "provider"
			}
			if model := strings.TrimSpace(m.Model); model != "" {
				id = fmt.Sprintf("%s:%s", base, model)
			} else {
				id = base
			}
			logger.Warnf("ai.models.id missing, generated %q", id)
		}
		client := &OpenAIChatClient{
			BaseURL:      m.APIURL,
			APIKey:       m.APIKey,
			Model:        m.Model,
			Temperature:  m.Temperature,
			ExtraHeaders: m.Headers,
		}
		if timeout > 0 {
			client.Timeout = timeout
		}
		out = append(out, NewOpenAIModelProvider(id, true, m.SupportsVision, m.ExpectJSON, client))
	}
	return out
}

// Select returns the provider with the given ID, or the first enabled one
// when id is empty.
func Select(providers []ModelProvider, id string) (ModelProvider, error) {
	id = strings.TrimSpace(id)
	for _, p := range providers {
		if !p.Enabled() {
			continue
		}
		if id == "" || strings.EqualFold(p.ID(), id) {
			return p, nil
		}
	}
	if id != "" {
		return nil, fmt.Errorf("model provider %q not configured", id)
	}
	return nil, fmt.Errorf("no enabled model provider")
}
