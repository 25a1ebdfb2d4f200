package config

import (
	"fmt"
	"os"
	"strings"
)

// ResolveModelConfigs merges each model entry with its preset and expands
// ${ENV} references in connection fields. Entry values win over preset
// values; pointer fields inherit from the preset when nil.
func (a AIConfig) ResolveModelConfigs() ([]ResolvedModelConfig, error) {
	out := make([]ResolvedModelConfig, 0, len(a.Models))
	seen := make(map[string]bool, len(a.Models))
	for i, m := range a.Models {
		presetName := strings.TrimSpace(m.Preset)
		if presetName == "" {
			presetName = strings.TrimSpace(m.Provider)
		}
		var preset ModelPreset
		if presetName != "" {
			p, ok := a.ProviderPresets[presetName]
			if !ok && strings.TrimSpace(m.Preset) != "" {
				return nil, fmt.Errorf("ai.models[%d] references unknown preset %q", i, m.Preset)
			}
			preset = p
		}

		r := ResolvedModelConfig{
			ID:             strings.TrimSpace(m.ID),
			Provider:       strings.TrimSpace(m.Provider),
			APIURL:         firstNonEmpty(m.APIURL, preset.APIURL),
			APIKey:         firstNonEmpty(m.APIKey, preset.APIKey),
			Model:          strings.TrimSpace(m.Model),
			Headers:        mergeHeaders(preset.Headers, m.Headers),
			Temperature:    preset.Temperature,
			Enabled:        m.Enabled,
			SupportsVision: preset.SupportsVision,
			ExpectJSON:     preset.ExpectJSON,
		}
		if r.Provider == "" {
			r.Provider = presetName
		}
		if m.Temperature != nil {
			r.Temperature = *m.Temperature
		}
		if m.SupportsVision != nil {
			r.SupportsVision = *m.SupportsVision
		}
		if m.ExpectJSON != nil {
			r.ExpectJSON = *m.ExpectJSON
		}
		if r.ID == "" {
			r.ID = r.Provider
		}
		if seen[r.ID] {
			return nil, fmt.Errorf("ai.models contains duplicate id %q", r.ID)
		}
		seen[r.ID] = true

		r.APIURL = expandEnv(r.APIURL)
		r.APIKey = expandEnv(r.APIKey)
		for k, v := range r.Headers {
			r.Headers[k] = expandEnv(v)
		}
		out = append(out, r)
	}
	return out, nil
}

// MustResolveModelConfigs is for callers running after validation.
func (a AIConfig) MustResolveModelConfigs() []ResolvedModelConfig {
	models, err := a.ResolveModelConfigs()
	if err != nil {
		panic(fmt.Sprintf("resolve model configs: %v", err))
	}
	return models
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func mergeHeaders(base, override map[string]string) map[string]string {
	if len(base) == 0 && len(override) == 0 {
		return nil
	}
	out := make(map[string]string, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}

// expandEnv expands ${VAR} references so keys can live in the environment
// instead of the config file. Values without ${ pass through untouched.
func expandEnv(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}
