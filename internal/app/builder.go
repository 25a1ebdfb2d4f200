package app

import (
	"context"
	"fmt"
	"strings"

	"quantagent/internal/analysis/indicator"
	"quantagent/internal/analysis/pattern"
	"quantagent/internal/analysis/trend"
	qacfg "quantagent/internal/config"
	"quantagent/internal/decision"
	"quantagent/internal/gateway/binance"
	"quantagent/internal/gateway/provider"
	"quantagent/internal/gateway/yahoo"
	"quantagent/internal/logger"
	"quantagent/internal/market"
	"quantagent/internal/orchestrator"
	"quantagent/internal/scheduler"
	"quantagent/internal/store/decisionlog"
	"quantagent/internal/store/gormstore"
	httpapi "quantagent/internal/transport/http"
	"quantagent/internal/watchlist"
)

type AppBuilder struct {
	cfg *qacfg.Config

	sourcesFn   func(qacfg.MarketConfig) ([]market.Source, error)
	providersFn func(qacfg.AIConfig) (provider.ModelProvider, error)
}

type AppBuilderOption func(*AppBuilder)

func NewAppBuilder(cfg *qacfg.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:         cfg,
		sourcesFn:   buildSources,
		providersFn: buildActiveProvider,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// WithSources overrides data source construction, for tests.
func WithSources(fn func(qacfg.MarketConfig) ([]market.Source, error)) AppBuilderOption {
	return func(b *AppBuilder) { b.sourcesFn = fn }
}

// WithProvider overrides model provider construction, for tests.
func WithProvider(fn func(qacfg.AIConfig) (provider.ModelProvider, error)) AppBuilderOption {
	return func(b *AppBuilder) { b.providersFn = fn }
}

func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	cfg := b.cfg
	logger.SetLevel(cfg.App.LogLevel)

	store, err := gormstore.NewGormStore(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open decision store: %w", err)
	}
	logs, err := buildSynthesisLog(cfg, store)
	if err != nil {
		store.Close()
		return nil, err
	}

	active, err := b.providersFn(cfg.AI)
	if err != nil {
		closeAll(logs, store)
		return nil, err
	}
	engine := decision.NewEngine(active)
	engine.MaxTokens = cfg.AI.MaxTokens
	engine.Observer = logs
	logger.Infof("model provider ready: %s (vision=%v)", active.ID(), active.SupportsVision())

	sources, err := b.sourcesFn(cfg.Market)
	if err != nil {
		closeAll(logs, store)
		return nil, err
	}
	var cache market.SeriesCache
	if ttl := cfg.Market.CacheTTL(); ttl > 0 {
		cache = market.NewMemorySeriesCache(ttl)
	}
	fetcher := orchestrator.NewFetcher(cache, sources...)
	fetcher.Attempts = cfg.Market.FetchAttempts
	fetcher.RetryDelay = cfg.Market.RetryDelay()

	orch := &orchestrator.Orchestrator{
		Fetcher:   fetcher,
		Indicator: indicator.New(),
		Pattern:   pattern.New(),
		Trend:     trend.New(),
		Engine:    engine,
		Charts:    cfg.Analysis.Charts,
	}
	service := &AnalysisService{Orch: orch, Store: store, DefaultBars: cfg.Market.DefaultBars}

	var registry *watchlist.Registry
	var sched *scheduler.Scheduler
	if cfg.Schedule.Enabled {
		registry, err = watchlist.NewRegistry(cfg.Schedule.WatchlistPath)
		if err != nil {
			closeAll(logs, store)
			return nil, fmt.Errorf("load watchlist: %w", err)
		}
		sched = scheduler.New(registry, cfg.Schedule.Offset(), cfg.Schedule.RunImmediately, service.AnalyzeEntry)
	}

	httpCfg := httpapi.ServerConfig{
		Addr:   cfg.App.HTTPAddr,
		Runner: service,
		Store:  store,
		Logs:   logs,
	}
	if registry != nil {
		httpCfg.Watchlist = registry
	}
	httpSrv, err := httpapi.NewServer(httpCfg)
	if err != nil {
		closeAll(logs, store)
		return nil, err
	}

	return &App{
		cfg:     cfg,
		store:   store,
		logs:    logs,
		http:    httpSrv,
		sched:   sched,
		service: service,
		Summary: buildSummary(cfg, sources, active),
	}, nil
}

// buildSynthesisLog opens the raw exchange log, sharing the decision
// store's SQLite handle unless a separate path is configured.
func buildSynthesisLog(cfg *qacfg.Config, store *gormstore.GormStore) (*decisionlog.Store, error) {
	if path := strings.TrimSpace(cfg.AI.SynthesisLogPath); path != "" {
		logs, err := decisionlog.NewStore(path)
		if err != nil {
			return nil, fmt.Errorf("open synthesis log: %w", err)
		}
		return logs, nil
	}
	db, err := store.SQLDB()
	if err != nil {
		return nil, fmt.Errorf("share store handle: %w", err)
	}
	logs := &decisionlog.Store{}
	if err := logs.UseExternalDB(db); err != nil {
		return nil, fmt.Errorf("init synthesis log: %w", err)
	}
	return logs, nil
}

func buildSources(cfg qacfg.MarketConfig) ([]market.Source, error) {
	enabled := cfg.EnabledSources()
	sources := make([]market.Source, 0, len(enabled))
	for _, sc := range enabled {
		switch strings.ToLower(strings.TrimSpace(sc.Name)) {
		case "binance":
			src, err := binance.New(binance.Config{
				RESTBaseURL:  sc.RESTBaseURL,
				HTTPTimeout:  sc.Timeout(),
				ProxyEnabled: sc.Proxy.Enabled,
				ProxyURL:     sc.Proxy.RESTURL,
			})
			if err != nil {
				return nil, fmt.Errorf("build binance source: %w", err)
			}
			sources = append(sources, src)
		case "yahoo":
			sources = append(sources, yahoo.New(yahoo.Config{
				BaseURL:     sc.RESTBaseURL,
				HTTPTimeout: sc.Timeout(),
			}))
		default:
			return nil, fmt.Errorf("unknown market source %q", sc.Name)
		}
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("no market sources enabled")
	}
	return sources, nil
}

func buildActiveProvider(cfg qacfg.AIConfig) (provider.ModelProvider, error) {
	models := cfg.MustResolveModelConfigs()
	cfgs := make([]provider.ModelCfg, 0, len(models))
	for _, m := range models {
		cfgs = append(cfgs, provider.ModelCfg{
			ID:             m.ID,
			Provider:       m.Provider,
			APIURL:         m.APIURL,
			APIKey:         m.APIKey,
			Model:          m.Model,
			Temperature:    m.Temperature,
			Enabled:        m.Enabled,
			Headers:        m.Headers,
			SupportsVision: m.SupportsVision,
			ExpectJSON:     m.ExpectJSON,
		})
	}
	providers := provider.BuildProvidersFromConfig(cfgs, cfg.Timeout())
	return provider.Select(providers, cfg.ActiveModel)
}

func closeAll(logs *decisionlog.Store, store *gormstore.GormStore) {
	if logs != nil {
		_ = logs.Close()
	}
	if store != nil {
		_ = store.Close()
	}
}
