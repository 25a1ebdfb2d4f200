package app

import (
	"fmt"
	"strings"

	qacfg "quantagent/internal/config"
	"quantagent/internal/gateway/provider"
	"quantagent/internal/market"
)

// StartupSummary is printed once at boot so an operator can confirm what
// the process will actually do before the first run.
type StartupSummary struct {
	Env      string
	HTTPAddr string

	Sources      []string
	ActiveSource string
	Charts       bool

	Model ModelSummary

	StorePath    string
	SynthesisLog string

	Schedule ScheduleSummary
}

type ModelSummary struct {
	ID        string
	Vision    bool
	JSONMode  bool
	Timeout   string
	MaxTokens int
}

type ScheduleSummary struct {
	Enabled        bool
	WatchlistPath  string
	Offset         string
	RunImmediately bool
}

func (s *StartupSummary) Print() {
	title := "STARTUP SUMMARY"
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("%*s\n", 40+len(title)/2, title)
	fmt.Println(strings.Repeat("=", 80))

	fmt.Println("[SERVICE]")
	fmt.Printf("  env:        %s\n", s.Env)
	fmt.Printf("  http:       %s\n", s.HTTPAddr)
	fmt.Println()

	fmt.Println("[MARKET DATA]")
	fmt.Printf("  sources:    %s\n", formatList(s.Sources))
	fmt.Printf("  active:     %s\n", s.ActiveSource)
	fmt.Printf("  charts:     %v\n", s.Charts)
	fmt.Println()

	fmt.Println("[MODEL]")
	fmt.Printf("  id:         %s\n", s.Model.ID)
	fmt.Printf("  vision:     %v\n", s.Model.Vision)
	fmt.Printf("  json mode:  %v\n", s.Model.JSONMode)
	fmt.Printf("  timeout:    %s\n", s.Model.Timeout)
	fmt.Printf("  max tokens: %d\n", s.Model.MaxTokens)
	fmt.Println()

	fmt.Println("[STORAGE]")
	fmt.Printf("  decisions:  %s\n", s.StorePath)
	fmt.Printf("  synthesis:  %s\n", s.SynthesisLog)
	fmt.Println()

	fmt.Println("[SCHEDULE]")
	if !s.Schedule.Enabled {
		fmt.Println("  (disabled)")
	} else {
		fmt.Printf("  watchlist:  %s\n", s.Schedule.WatchlistPath)
		fmt.Printf("  offset:     %s\n", s.Schedule.Offset)
		fmt.Printf("  immediate:  %v\n", s.Schedule.RunImmediately)
	}
	fmt.Println(strings.Repeat("=", 80))
}

func buildSummary(cfg *qacfg.Config, sources []market.Source, active provider.ModelProvider) *StartupSummary {
	names := make([]string, 0, len(sources))
	for _, src := range sources {
		names = append(names, src.Name())
	}
	sum := &StartupSummary{
		Env:          cfg.App.Env,
		HTTPAddr:     cfg.App.HTTPAddr,
		Sources:      names,
		ActiveSource: cfg.Market.ActiveSource,
		Charts:       cfg.Analysis.Charts,
		StorePath:    cfg.Store.Path,
		SynthesisLog: cfg.AI.SynthesisLogPath,
		Model: ModelSummary{
			ID:        active.ID(),
			Vision:    active.SupportsVision(),
			JSONMode:  active.ExpectsJSON(),
			Timeout:   cfg.AI.Timeout().String(),
			MaxTokens: cfg.AI.MaxTokens,
		},
		Schedule: ScheduleSummary{
			Enabled:        cfg.Schedule.Enabled,
			WatchlistPath:  cfg.Schedule.WatchlistPath,
			Offset:         cfg.Schedule.Offset().String(),
			RunImmediately: cfg.Schedule.RunImmediately,
		},
	}
	if sum.SynthesisLog == "" {
		sum.SynthesisLog = "(shared with decision store)"
	}
	return sum
}

func formatList(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}
