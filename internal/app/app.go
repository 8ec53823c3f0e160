// Package app wires the aggregator's subsystems into one process: the
// scraper orchestrator, the event integrator's drain tick, the embedding
// worker's sweep loop, and the venue enricher's daily refresh sweep, each
// run as a named goroutine under one context.Context and one
// sync.WaitGroup, with the admin HTTP surface served alongside — grounded
// on MrWong99-glyphoxa/internal/app/app.go's functional-options New/Run/
// Shutdown convention.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/owlfest/aggregator/internal/adminapi"
	"github.com/owlfest/aggregator/internal/config"
	"github.com/owlfest/aggregator/internal/embedding"
	"github.com/owlfest/aggregator/internal/integrator"
	"github.com/owlfest/aggregator/internal/places"
	"github.com/owlfest/aggregator/internal/sources"
)

// Option configures an App at construction time, mainly to let tests swap
// in doubles for subsystems New would otherwise build.
type Option func(*App)

// WithClock overrides how App computes "now" when scheduling the places
// refresh sweep; tests use this to avoid depending on wall-clock time.
func WithClock(now func() time.Time) Option {
	return func(a *App) { a.now = now }
}

// App owns every long-running subsystem of the aggregator process.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	orchestrator *sources.Orchestrator
	integrator   *integrator.Integrator
	worker       *embedding.Worker
	enricher     *places.Enricher
	admin        *adminapi.Handler

	now func() time.Time

	closers  []func() error
	stopOnce sync.Once
}

// Deps collects the already-constructed subsystems App schedules. Building
// these (DB pool, repositories, adapters, providers) is cmd/aggregator's
// job; App only owns the scheduling and lifecycle around them.
type Deps struct {
	Orchestrator *sources.Orchestrator
	Integrator   *integrator.Integrator
	Worker       *embedding.Worker
	Enricher     *places.Enricher
	Admin        *adminapi.Handler
}

// New assembles an App from cfg and deps. It performs no I/O itself — every
// subsystem it schedules is already wired by the caller — so it cannot
// fail today, but returns an error to match the teacher's New(ctx, cfg,
// providers, opts...) (*App, error) shape and leave room for future
// validation.
func New(ctx context.Context, cfg *config.Config, deps Deps, logger *slog.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	a := &App{
		cfg:          cfg,
		logger:       logger,
		orchestrator: deps.Orchestrator,
		integrator:   deps.Integrator,
		worker:       deps.Worker,
		enricher:     deps.Enricher,
		admin:        deps.Admin,
		now:          time.Now,
	}

	for _, opt := range opts {
		opt(a)
	}

	return a, nil
}

// Run starts every configured subsystem as a named goroutine and blocks
// until ctx is cancelled, then waits for each to return.
func (a *App) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	spawn := func(name string, fn func(ctx context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.logger.Info("app: subsystem started", "subsystem", name)
			fn(ctx)
			a.logger.Info("app: subsystem stopped", "subsystem", name)
		}()
	}

	if a.orchestrator != nil && a.integrator != nil {
		spawn("orchestrator", a.runOrchestratorLoop)
	}
	if a.integrator != nil {
		spawn("integrator", a.integrator.Run)
	}
	if a.worker != nil {
		spawn("embedding-worker", a.runEmbeddingLoop)
	}
	if a.enricher != nil {
		spawn("places-refresh", a.runPlacesRefreshLoop)
	}

	<-ctx.Done()
	wg.Wait()
	return ctx.Err()
}

// runOrchestratorLoop re-runs the scraper orchestrator on
// Config.Scrape.Interval, handing each run's documents to the integrator.
func (a *App) runOrchestratorLoop(ctx context.Context) {
	interval := a.cfg.Scrape.Interval
	if interval <= 0 {
		interval = 15 * time.Minute
	}

	a.runOrchestratorOnce(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.runOrchestratorOnce(ctx)
		}
	}
}

func (a *App) runOrchestratorOnce(ctx context.Context) {
	docs, results := a.orchestrator.Run(ctx)
	for _, r := range results {
		if r.Err != nil {
			a.logger.Warn("app: source fetch failed", "source", r.Source, "error", r.Err)
			continue
		}
		a.logger.Info("app: source fetch complete", "source", r.Source, "fetched", r.Fetched)
	}

	if len(docs) == 0 {
		return
	}
	if err := a.integrator.ProcessBatch(ctx, docs); err != nil {
		a.logger.Warn("app: process batch failed", "error", err)
	}
}

// runEmbeddingLoop runs the embedding worker's sweep on
// Config.Embedding.Interval.
func (a *App) runEmbeddingLoop(ctx context.Context) {
	interval := a.cfg.Embedding.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := a.worker.RunOnce(ctx); err != nil {
			a.logger.Warn("app: embedding sweep failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// runPlacesRefreshLoop re-enriches stale venues once per day at the
// configured UTC time-of-day (Config.Places.RefreshCronUTC, "HH:MM").
func (a *App) runPlacesRefreshLoop(ctx context.Context) {
	const refreshLimit = 200

	for {
		wait := a.nextRefreshDelay()
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}

		n, err := a.enricher.RefreshStale(ctx, refreshLimit)
		if err != nil {
			a.logger.Warn("app: places refresh sweep failed", "error", err)
			continue
		}
		a.logger.Info("app: places refresh sweep complete", "refreshed", n)
	}
}

// nextRefreshDelay computes the duration until the next occurrence of
// Config.Places.RefreshCronUTC, today or tomorrow. An unparseable schedule
// falls back to a 24h delay from now.
func (a *App) nextRefreshDelay() time.Duration {
	now := a.now().UTC()

	var hour, minute int
	if _, err := fmt.Sscanf(a.cfg.Places.RefreshCronUTC, "%d:%d", &hour, &minute); err != nil {
		return 24 * time.Hour
	}

	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next.Sub(now)
}

// Shutdown runs every registered closer, in the order App.closers were
// appended, stopping early if ctx's deadline is reached mid-teardown —
// matching the teacher's own forward-order Shutdown exactly (its closers
// list, despite being built LIFO elsewhere in the ecosystem, is walked
// front-to-back; see DESIGN.md).
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		for _, closer := range a.closers {
			select {
			case <-ctx.Done():
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				a.logger.Warn("app: closer failed", "error", err)
			}
		}
	})
	return shutdownErr
}

// AddCloser registers fn to run during Shutdown, after the closers
// registered before it.
func (a *App) AddCloser(fn func() error) {
	a.closers = append(a.closers, fn)
}
