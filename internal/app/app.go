// Package app wires configuration, market sources, the model provider,
// storage, the HTTP API and the scheduler into one runnable process.
package app

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	qacfg "quantagent/internal/config"
	"quantagent/internal/logger"
	"quantagent/internal/scheduler"
	"quantagent/internal/store/decisionlog"
	"quantagent/internal/store/gormstore"
	httpapi "quantagent/internal/transport/http"
)

// App holds the wired components of one process.
type App struct {
	cfg     *qacfg.Config
	store   *gormstore.GormStore
	logs    *decisionlog.Store
	http    *httpapi.Server
	sched   *scheduler.Scheduler
	service *AnalysisService

	Summary *StartupSummary
}

// NewApp wires an application from a loaded config.
func NewApp(cfg *qacfg.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app requires a loaded config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(context.Background(), cfg)
}

// Service exposes the analysis entry point, mainly for tests.
func (a *App) Service() *AnalysisService { return a.service }

// Run starts the HTTP server and, when enabled, the scheduler. It blocks
// until ctx is cancelled or a component fails.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.http == nil {
		return fmt.Errorf("app not initialized")
	}
	if a.Summary != nil {
		a.Summary.Print()
	}
	logger.Infof("quantagent listening on %s", a.http.Addr())

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if err := a.http.Start(ctx); err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})

	if a.sched != nil {
		group.Go(func() error {
			// Cancellation is the normal way the scheduler stops.
			if err := a.sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("scheduler error: %w", err)
			}
			return nil
		})
	}

	return group.Wait()
}

// Close releases storage handles. Safe to call after Run returns.
func (a *App) Close() {
	if a == nil {
		return
	}
	if a.logs != nil {
		if err := a.logs.Close(); err != nil {
			logger.Errorf("close synthesis log: %v", err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			logger.Errorf("close decision store: %v", err)
		}
	}
}
