// Package places implements the venue enricher (§4.5): resolving a scraped
// venue string against a remote places provider, fetching detail
// attributes, computing a popularity score, and persisting the result,
// guarded by a rate limiter, retrying, and circuit breaker.
package places

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/owlfest/aggregator/internal/domain"
	"github.com/owlfest/aggregator/internal/resilience"
)

// EnricherConfig tunes the venue enricher's resilience and refresh policy.
type EnricherConfig struct {
	RefreshHorizon time.Duration // default 30 days
	RateDelay      time.Duration // default 200ms
	RetryMax       int
	RetryWait      time.Duration
	CBFailureRate  float64
	CBWindow       int
	CBMinCalls     int
	CBOpenWait     time.Duration
	CBHalfOpenMax  int
}

// Enricher drives the venue state machine UNSEEN → RESOLVED → ENRICHED,
// falling back to a STUB when resolution fails, and re-enriching venues
// older than RefreshHorizon.
type Enricher struct {
	client *Client
	repo   domain.VenueRepository
	logger *slog.Logger

	cfg EnricherConfig

	rateLimiter *resilience.RateLimiter
	cb          *resilience.CircuitBreaker

	mu          sync.RWMutex
	nameToPlace map[string]string // (scrapedName|locationHint) -> placeID, in-process cache
}

// NewEnricher constructs an Enricher.
func NewEnricher(client *Client, repo domain.VenueRepository, cfg EnricherConfig, logger *slog.Logger) *Enricher {
	if cfg.RefreshHorizon == 0 {
		cfg.RefreshHorizon = 30 * 24 * time.Hour
	}
	if cfg.RateDelay == 0 {
		cfg.RateDelay = 200 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Enricher{
		client: client,
		repo:   repo,
		logger: logger,
		cfg:    cfg,
		rateLimiter: resilience.NewRateLimiter(cfg.RateDelay),
		cb: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name:        "places",
			Window:      cfg.CBWindow,
			MinCalls:    cfg.CBMinCalls,
			FailureRate: cfg.CBFailureRate,
			OpenWait:    cfg.CBOpenWait,
			HalfOpenMax: cfg.CBHalfOpenMax,
		}),
		nameToPlace: make(map[string]string),
	}
}

func cacheKey(scrapedName, locationHint string) string {
	return strings.ToLower(scrapedName) + "|" + strings.ToLower(locationHint)
}

// Resolve maps (scrapedName, locationHint) to a placeID, per §4.5. Returns
// ("", false, nil) when the provider has no match (STUB path), while the
// circuit is open, and for any other lookup failure after retries; such a
// failure is logged here, and the error result is always nil.
func (e *Enricher) Resolve(ctx context.Context, scrapedName, locationHint string) (string, bool, error) {
	key := cacheKey(scrapedName, locationHint)

	e.mu.RLock()
	if placeID, ok := e.nameToPlace[key]; ok {
		e.mu.RUnlock()
		return placeID, true, nil
	}
	e.mu.RUnlock()

	if existingID, ok, err := e.repo.GetByNameCache(ctx, scrapedName, locationHint); err == nil && ok {
		e.mu.Lock()
		e.nameToPlace[key] = existingID
		e.mu.Unlock()
		return existingID, true, nil
	}

	var placeID string
	var found bool
	err := e.withResilience(ctx, func() error {
		var innerErr error
		placeID, found, innerErr = e.client.TextSearch(ctx, scrapedName, locationHint)
		return innerErr
	})

	if err != nil {
		if err == resilience.ErrCircuitOpen {
			// §4.5 fallback: while open, Resolve returns none without an
			// outbound request.
			return "", false, nil
		}
		e.logger.Warn("places resolve failed", "scraped_name", scrapedName, "error", err)
		return "", false, nil
	}
	if !found {
		return "", false, nil
	}

	e.mu.Lock()
	e.nameToPlace[key] = placeID
	e.mu.Unlock()

	return placeID, true, nil
}

// Enrich looks up placeID's details and returns a fully populated Venue,
// stamped lastEnriched=now. On circuit-open or failure, it returns the
// existing venue unchanged but with lastEnriched bumped to now, to avoid a
// tight retry loop (§4.5 fallback).
func (e *Enricher) Enrich(ctx context.Context, existing domain.Venue) (domain.Venue, error) {
	var details Details
	err := e.withResilience(ctx, func() error {
		var innerErr error
		details, innerErr = e.client.Details(ctx, existing.PlaceID)
		return innerErr
	})

	if err != nil {
		// §4.5 fallback: return the venue unchanged but stamped, to avoid a
		// tight retry loop. An already-enriched venue must not be demoted
		// back to a stub just because a refresh attempt failed.
		existing.LastEnriched = time.Now()
		if err != resilience.ErrCircuitOpen {
			e.logger.Warn("places enrich failed", "place_id", existing.PlaceID, "error", err)
		}
		return existing, nil
	}

	v := existing
	v.CanonicalName = details.CanonicalName
	v.Address = details.Address
	v.Latitude = floatPtr(details.Latitude)
	v.Longitude = floatPtr(details.Longitude)
	v.City = details.City
	v.Country = details.Country
	v.Street = details.Street
	v.Neighborhood = details.Neighborhood
	v.PostalCode = details.PostalCode
	v.Website = details.Website
	v.Phone = details.Phone
	v.Rating = details.Rating
	v.TotalRatings = details.TotalRatings
	if details.Rating != nil {
		popularity := PopularityScore(details.Rating, details.TotalRatings)
		v.Popularity = &popularity
	} else {
		v.Popularity = nil
	}
	v.PriceLevel = details.PriceLevel
	v.Types = details.Types
	v.PhotoRef = details.PhotoRef
	v.ReviewCount = details.ReviewCount
	v.LastEnriched = time.Now()
	v.IsStub = false

	return v, nil
}

// NeedsRefresh reports whether v's last enrichment is older than the
// configured horizon (§3, §4.5).
func (e *Enricher) NeedsRefresh(v domain.Venue) bool {
	if v.LastEnriched.IsZero() {
		return true
	}
	return time.Since(v.LastEnriched) > e.cfg.RefreshHorizon
}

// withResilience wraps fn with the rate limiter, retry, and circuit breaker
// decorators, in that order, matching §4.5's "rate-limiter, retry,
// circuit-breaker" guard list.
func (e *Enricher) withResilience(ctx context.Context, fn func() error) error {
	return e.cb.Execute(func() error {
		return resilience.Retry(ctx, resilience.RetryConfig{
			MaxAttempts: e.cfg.RetryMax,
			BaseWait:    e.cfg.RetryWait,
		}, func() error {
			if err := e.rateLimiter.Wait(ctx); err != nil {
				return err
			}
			return fn()
		})
	})
}

// ClearCache empties the in-process (scrapedName, locationHint)→placeID
// cache (the admin cache-clear seam, §9/§4.10).
func (e *Enricher) ClearCache() {
	e.mu.Lock()
	e.nameToPlace = make(map[string]string)
	e.mu.Unlock()
}

// RefreshStale re-enriches up to limit venues last enriched before the
// configured RefreshHorizon, persisting each result. It is the periodic
// counterpart to the on-demand NeedsRefresh check the integrator performs
// inline, driven instead by internal/app on the §4.5 daily schedule.
func (e *Enricher) RefreshStale(ctx context.Context, limit int) (int, error) {
	cutoff := time.Now().Add(-e.cfg.RefreshHorizon).Unix()
	venues, err := e.repo.StaleVenues(ctx, cutoff, limit)
	if err != nil {
		return 0, err
	}

	refreshed := 0
	for _, v := range venues {
		updated, err := e.Enrich(ctx, v)
		if err != nil {
			e.logger.Warn("stale venue refresh failed", "place_id", v.PlaceID, "error", err)
			continue
		}
		if err := e.repo.Upsert(ctx, &updated); err != nil {
			e.logger.Warn("stale venue upsert failed", "place_id", v.PlaceID, "error", err)
			continue
		}
		refreshed++
	}
	return refreshed, nil
}

func floatPtr(f float64) *float64 {
	if f == 0 {
		return nil
	}
	return &f
}
