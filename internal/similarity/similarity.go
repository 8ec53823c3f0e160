// Package similarity implements the similarity service (§4.8):
// FindSimilar(queryText, limit) embeds the query, runs the native pgvector
// nearest-neighbour query through domain.EventRepository, hydrates full
// events, and restores distance order — grounded on
// MrWong99-glyphoxa/pkg/memory/postgres/semantic_index.go's
// embed-then-`<=>`-then-CollectRows shape, adapted from chunk search to
// full-event hydration with visibility filters.
package similarity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/owlfest/aggregator/internal/domain"
	"github.com/owlfest/aggregator/internal/embedding"
)

// Service answers nearest-neighbour queries over embedded events.
type Service struct {
	events   domain.EventRepository
	provider embedding.Provider
}

// New constructs a Service.
func New(events domain.EventRepository, provider embedding.Provider) *Service {
	return &Service{events: events, provider: provider}
}

// FindSimilar embeds queryText and returns up to limit visible events
// ordered by ascending cosine distance (§4.8). An empty queryText is
// InvalidInput; no matches is an empty slice, not an error.
func (s *Service) FindSimilar(ctx context.Context, queryText string, limit int) ([]domain.SimilarityResult, error) {
	queryText = strings.TrimSpace(queryText)
	if queryText == "" {
		return nil, domain.Classify(domain.KindInvalidInput, domain.ErrInvalidInput)
	}
	if limit <= 0 {
		limit = 10
	}

	vectors, err := s.provider.EmbedBatch(ctx, []string{queryText})
	if err != nil {
		return nil, fmt.Errorf("similarity: embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("similarity: expected 1 query vector, got %d", len(vectors))
	}

	ranked, err := s.events.SearchByVector(ctx, vectors[0], limit)
	if err != nil {
		return nil, fmt.Errorf("similarity: search by vector: %w", err)
	}
	if len(ranked) == 0 {
		return []domain.SimilarityResult{}, nil
	}

	ids := make([]int64, len(ranked))
	for i, r := range ranked {
		ids[i] = r.Event.ID
	}

	hydrated, err := s.events.HydrateMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("similarity: hydrate: %w", err)
	}

	// HydrateMany does not preserve order; re-sort into the distance order
	// SearchByVector established, applying the §4.8 visibility filters.
	results := make([]domain.SimilarityResult, 0, len(ranked))
	now := time.Now()
	for _, r := range ranked {
		full, ok := hydrated[r.Event.ID]
		if !ok {
			continue
		}
		if !isVisible(full, now) {
			continue
		}
		results = append(results, domain.SimilarityResult{Event: full, Distance: r.Distance})
	}

	return results, nil
}

// isVisible applies §4.8's visibility filters: only future events with a
// resolved venue are surfaced.
func isVisible(e domain.Event, now time.Time) bool {
	if e.StartDate.Before(now) {
		return false
	}
	if e.VenueID == nil {
		return false
	}
	return true
}
