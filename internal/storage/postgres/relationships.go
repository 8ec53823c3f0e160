package postgres

import (
	"context"
	"fmt"
)

// RelationshipRepository implements domain.RelationshipRepository over the
// event_artists / event_tags join tables (§4.4).
type RelationshipRepository struct {
	db DB
}

// NewRelationshipRepository constructs a RelationshipRepository.
func NewRelationshipRepository(db DB) *RelationshipRepository {
	return &RelationshipRepository{db: db}
}

// ExistingArtistLinks returns the artist ids already linked to eventID.
func (r *RelationshipRepository) ExistingArtistLinks(ctx context.Context, eventID int64) (map[int64]struct{}, error) {
	return r.existingLinks(ctx, "event_artists", "artist_id", eventID)
}

// LinkArtists inserts the event_artists rows for artistIDs not already
// linked, skipping duplicates.
func (r *RelationshipRepository) LinkArtists(ctx context.Context, eventID int64, artistIDs []int64) error {
	return r.link(ctx, "event_artists", "artist_id", eventID, artistIDs)
}

// ExistingTagLinks returns the tag ids already linked to eventID.
func (r *RelationshipRepository) ExistingTagLinks(ctx context.Context, eventID int64) (map[int64]struct{}, error) {
	return r.existingLinks(ctx, "event_tags", "tag_id", eventID)
}

// LinkTags inserts the event_tags rows for tagIDs not already linked,
// skipping duplicates.
func (r *RelationshipRepository) LinkTags(ctx context.Context, eventID int64, tagIDs []int64) error {
	return r.link(ctx, "event_tags", "tag_id", eventID, tagIDs)
}

func (r *RelationshipRepository) existingLinks(ctx context.Context, table, column string, eventID int64) (map[int64]struct{}, error) {
	db := dbFromContext(ctx, r.db)
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE event_id = $1`, column, table)
	rows, err := db.Query(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("postgres: %s existing links: %w", table, err)
	}
	defer rows.Close()

	links := make(map[int64]struct{})
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("postgres: %s existing links scan: %w", table, err)
		}
		links[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: %s existing links: %w", table, err)
	}
	return links, nil
}

func (r *RelationshipRepository) link(ctx context.Context, table, column string, eventID int64, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	db := dbFromContext(ctx, r.db)
	query := fmt.Sprintf(`
		INSERT INTO %s (event_id, %s)
		SELECT $1, unnest($2::bigint[])
		ON CONFLICT DO NOTHING`, table, column)

	if _, err := db.Exec(ctx, query, eventID, ids); err != nil {
		return fmt.Errorf("postgres: %s link: %w", table, err)
	}
	return nil
}
