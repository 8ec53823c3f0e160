// Command aggregator runs the full event-recommendation pipeline: the
// scraper orchestrator, the event integrator, the embedding worker, the
// venue enricher's refresh sweep, and the admin HTTP surface — grounded on
// the teacher's cmd/where-its-at/main.go wiring shape.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/owlfest/aggregator/internal/adminapi"
	"github.com/owlfest/aggregator/internal/app"
	"github.com/owlfest/aggregator/internal/config"
	"github.com/owlfest/aggregator/internal/embedding"
	"github.com/owlfest/aggregator/internal/embedding/openai"
	"github.com/owlfest/aggregator/internal/integrator"
	"github.com/owlfest/aggregator/internal/linker"
	"github.com/owlfest/aggregator/internal/places"
	"github.com/owlfest/aggregator/internal/registry"
	"github.com/owlfest/aggregator/internal/similarity"
	"github.com/owlfest/aggregator/internal/sources"
	"github.com/owlfest/aggregator/internal/sources/scrapers"
	"github.com/owlfest/aggregator/internal/storage/postgres"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger.Info("starting aggregator")

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.json"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Warn("failed to load config, using defaults", "error", err)
		cfg = &config.Config{}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.Connect(ctx, cfg.Database.GetDSN())
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := postgres.Migrate(ctx, pool, cfg.Embedding.Dimensions); err != nil {
		logger.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}

	eventRepo := postgres.NewEventRepository(pool)
	venueRepo := postgres.NewVenueRepository(pool)
	relationshipRepo := postgres.NewRelationshipRepository(pool)
	artistRepo := postgres.NewNameRegistry(pool, "artists")
	tagRepo := postgres.NewNameRegistry(pool, "tags")
	txRunner := postgres.NewTxRunner(pool)

	artistRegistry := registry.New("artist", registry.NormalizeArtistName, artistRepo)
	tagRegistry := registry.New("tag", registry.NormalizeTagName, tagRepo)
	entityLinker := linker.New(relationshipRepo)

	adapters := buildAdapters(cfg, logger)
	orchestrator := sources.NewOrchestrator(adapters, cfg.Scrape.CapPerSource, cfg.Scrape.Concurrency*cfg.Scrape.CapPerSource, logger)

	var enricher *places.Enricher
	if cfg.Places.Enabled {
		placesClient := places.NewClient(places.ClientConfig{
			APIKey:  cfg.Places.APIKey,
			BaseURL: cfg.Places.BaseURL,
		})
		enricher = places.NewEnricher(placesClient, venueRepo, places.EnricherConfig{
			RefreshHorizon: time.Duration(cfg.Places.RefreshDays) * 24 * time.Hour,
			RateDelay:      cfg.Places.RateDelay,
			RetryMax:       cfg.Resilience.RetryMax,
			RetryWait:      cfg.Resilience.RetryWait,
			CBFailureRate:  cfg.Resilience.CBFailureRate,
			CBWindow:       cfg.Resilience.CBWindow,
			CBMinCalls:     cfg.Resilience.CBMinCalls,
			CBOpenWait:     cfg.Resilience.CBOpenWait,
			CBHalfOpenMax:  cfg.Resilience.CBHalfOpenMax,
		}, logger)
	}

	integratorSvc := integrator.New(eventRepo, venueRepo, enricher, artistRegistry, tagRegistry, entityLinker, txRunner, integrator.Config{
		ChunkSize: cfg.Integrator.ChunkSize,
		Tick:      cfg.Integrator.Tick,
	}, logger)

	var embeddingWorker *embedding.Worker
	var similaritySvc *similarity.Service
	if cfg.Embedding.APIKey != "" {
		provider, err := openai.New(openai.Config{APIKey: cfg.Embedding.APIKey, Model: cfg.Embedding.Model})
		if err != nil {
			logger.Warn("failed to create embedding provider", "error", err)
		} else {
			embeddingWorker = embedding.NewWorker(eventRepo, provider, embedding.WorkerConfig{
				BatchCap: cfg.Embedding.BatchCap,
				SubBatch: cfg.Embedding.SubBatch,
				Sleep:    cfg.Embedding.Sleep,
			}, logger)
			similaritySvc = similarity.New(eventRepo, provider)
		}
	}

	caches := map[string]adminapi.CacheClearer{
		"artists": artistRegistry,
		"tags":    tagRegistry,
	}
	if enricher != nil {
		caches["venues"] = enricher
	}

	admin := adminapi.New(caches, logger, adminapi.Checker{
		Name: "database",
		Check: func(ctx context.Context) error {
			return pool.Ping(ctx)
		},
	})

	aggregator, err := app.New(ctx, cfg, app.Deps{
		Orchestrator: orchestrator,
		Integrator:   integratorSvc,
		Worker:       embeddingWorker,
		Enricher:     enricher,
		Admin:        admin,
	}, logger)
	if err != nil {
		logger.Error("failed to assemble app", "error", err)
		os.Exit(1)
	}

	router := mux.NewRouter()
	admin.Register(router)
	registerSimilarityRoute(router, similaritySvc)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		if err := aggregator.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Warn("app run loop exited", "error", err)
		}
	}()

	go func() {
		logger.Info("server listening", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server forced to shutdown", "error", err)
	}
	if err := aggregator.Shutdown(shutdownCtx); err != nil {
		logger.Warn("app forced to shutdown", "error", err)
	}

	logger.Info("shutdown complete")
}

// buildAdapters wires one source adapter per non-empty credential in
// cfg.Sources, mirroring the teacher's "only if configured" integration
// pattern (cfg.APIs.Spotify.ClientID != "").
func buildAdapters(cfg *config.Config, logger *slog.Logger) []sources.Adapter {
	var adapters []sources.Adapter

	if cfg.Sources.EventbriteToken != "" {
		adapters = append(adapters, scrapers.NewEventbriteAdapter(cfg.Sources.EventbriteToken))
	} else {
		logger.Info("eventbrite adapter disabled: no token configured")
	}

	if cfg.Sources.ResidentAdvisorURL != "" {
		adapters = append(adapters, scrapers.NewResidentAdvisorAdapter(cfg.Sources.ResidentAdvisorURL))
	} else {
		logger.Info("resident advisor adapter disabled: no base url configured")
	}

	if cfg.Sources.TicketmasterAPIKey != "" {
		adapters = append(adapters, scrapers.NewTicketmasterAdapter(cfg.Sources.TicketmasterAPIKey))
	} else {
		logger.Info("ticketmaster adapter disabled: no api key configured")
	}

	return adapters
}

// registerSimilarityRoute exposes the similarity service over HTTP when an
// embedding provider is configured; otherwise the route is simply absent.
func registerSimilarityRoute(router *mux.Router, svc *similarity.Service) {
	if svc == nil {
		return
	}
	router.HandleFunc("/events/similar", newSimilarityHandler(svc)).Methods("GET")
}
