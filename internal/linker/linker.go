// Package linker implements the relationship linker (§4.4): batch-inserting
// (event_id, entity_id) pairs while skipping pairs already present and
// swallowing duplicate-key races from concurrent writers, grounded on the
// teacher's CreateBatch prepared-statement pattern in
// pkg/collectors/event_repository.go.
package linker

import (
	"context"
	"fmt"

	"github.com/owlfest/aggregator/internal/domain"
)

// Linker links an event to a set of artist or tag ids, idempotently.
type Linker struct {
	repo domain.RelationshipRepository
}

// New constructs a Linker over repo.
func New(repo domain.RelationshipRepository) *Linker {
	return &Linker{repo: repo}
}

// LinkArtists links eventID to artistIDs, following §4.4 steps 1–4: read
// existing links, compute the diff, batch-insert only the new pairs. A
// second call with the same arguments is a no-op.
func (l *Linker) LinkArtists(ctx context.Context, eventID int64, artistIDs []int64) error {
	existing, err := l.repo.ExistingArtistLinks(ctx, eventID)
	if err != nil {
		return fmt.Errorf("linker: existing artist links: %w", err)
	}

	fresh := diff(artistIDs, existing)
	if len(fresh) == 0 {
		return nil
	}

	if err := l.repo.LinkArtists(ctx, eventID, fresh); err != nil {
		if domain.KindOf(err) == domain.KindRace {
			return nil
		}
		return fmt.Errorf("linker: link artists: %w", err)
	}
	return nil
}

// LinkTags links eventID to tagIDs the same way LinkArtists links artists.
func (l *Linker) LinkTags(ctx context.Context, eventID int64, tagIDs []int64) error {
	existing, err := l.repo.ExistingTagLinks(ctx, eventID)
	if err != nil {
		return fmt.Errorf("linker: existing tag links: %w", err)
	}

	fresh := diff(tagIDs, existing)
	if len(fresh) == 0 {
		return nil
	}

	if err := l.repo.LinkTags(ctx, eventID, fresh); err != nil {
		if domain.KindOf(err) == domain.KindRace {
			return nil
		}
		return fmt.Errorf("linker: link tags: %w", err)
	}
	return nil
}

// diff returns the ids in wanted that are not already present in existing,
// deduplicated.
func diff(wanted []int64, existing map[int64]struct{}) []int64 {
	seen := make(map[int64]struct{}, len(wanted))
	var fresh []int64
	for _, id := range wanted {
		if _, already := existing[id]; already {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		fresh = append(fresh, id)
	}
	return fresh
}
