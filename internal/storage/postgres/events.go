package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/owlfest/aggregator/internal/domain"
)

// EventRepository implements domain.EventRepository, translating the
// teacher's database/sql + SQLite pkg/collectors/event_repository.go
// (createTables/Create/CreateBatch/scanEvent) to pgx/v5 + PostgreSQL, and
// its SearchByLocation haversine query to pgvector's native `<=>`
// cosine-distance operator per
// MrWong99-glyphoxa/pkg/memory/postgres/semantic_index.go. The venue/artist/
// tag joins below have no teacher analogue — the teacher's events table was
// flat — and are grounded directly on the domain.Event shape instead.
type EventRepository struct {
	db DB
}

// NewEventRepository constructs an EventRepository.
func NewEventRepository(db DB) *EventRepository {
	return &EventRepository{db: db}
}

const eventCoreColumns = `id, event_name, start_date, end_date, thumbnail, url, location, category, description, source, venue_id, created_at, updated_at`

func scanEventCore(row pgx.Row) (domain.Event, error) {
	var e domain.Event
	err := row.Scan(
		&e.ID, &e.EventName, &e.StartDate, &e.EndDate, &e.Thumbnail, &e.URL, &e.Location, &e.Category,
		&e.Description, &e.Source, &e.VenueID, &e.CreatedAt, &e.UpdatedAt,
	)
	return e, err
}

// GetByURL returns the event's core fields (no venue/artist/tag hydration)
// for the given canonical URL, or domain.ErrEventNotFound.
func (r *EventRepository) GetByURL(ctx context.Context, url string) (*domain.Event, error) {
	db := dbFromContext(ctx, r.db)
	query := fmt.Sprintf(`SELECT %s FROM events WHERE url = $1`, eventCoreColumns)
	e, err := scanEventCore(db.QueryRow(ctx, query, url))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrEventNotFound
		}
		return nil, fmt.Errorf("postgres: get event by url: %w", err)
	}
	return &e, nil
}

// Upsert inserts a new event or overwrites an existing one matched by URL.
// changed reports whether an existing row's core fields differed from e.
func (r *EventRepository) Upsert(ctx context.Context, e *domain.Event) (int64, bool, error) {
	db := dbFromContext(ctx, r.db)

	existing, err := r.GetByURL(ctx, e.URL)
	if err != nil && !errors.Is(err, domain.ErrEventNotFound) {
		return 0, false, err
	}

	const query = `
		INSERT INTO events (
			event_name, start_date, end_date, thumbnail, url, location, category,
			description, source, venue_id, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10, now(), now())
		ON CONFLICT (url) DO UPDATE SET
			event_name = EXCLUDED.event_name,
			start_date = EXCLUDED.start_date,
			end_date = EXCLUDED.end_date,
			thumbnail = EXCLUDED.thumbnail,
			location = EXCLUDED.location,
			category = EXCLUDED.category,
			description = EXCLUDED.description,
			source = EXCLUDED.source,
			venue_id = EXCLUDED.venue_id,
			updated_at = now()
		RETURNING id`

	var id int64
	err = db.QueryRow(ctx, query,
		e.EventName, e.StartDate, e.EndDate, e.Thumbnail, e.URL, e.Location, e.Category,
		e.Description, e.Source, e.VenueID,
	).Scan(&id)
	if err != nil {
		return 0, false, fmt.Errorf("postgres: upsert event %q: %w", e.URL, err)
	}

	changed := existing != nil && coreFieldsDiffer(*existing, *e)
	return id, changed, nil
}

func coreFieldsDiffer(old, updated domain.Event) bool {
	if old.EventName != updated.EventName || old.Description != updated.Description || old.Location != updated.Location ||
		old.Category != updated.Category || old.Thumbnail != updated.Thumbnail || !old.StartDate.Equal(updated.StartDate) ||
		!old.EndDate.Equal(updated.EndDate) {
		return true
	}
	switch {
	case old.VenueID == nil && updated.VenueID == nil:
		return false
	case old.VenueID == nil || updated.VenueID == nil:
		return true
	default:
		return *old.VenueID != *updated.VenueID
	}
}

// SeenURLs returns every URL currently stored, for the integrator's
// once-per-run dedupe priming (§4.6).
func (r *EventRepository) SeenURLs(ctx context.Context) (map[string]struct{}, error) {
	db := dbFromContext(ctx, r.db)
	rows, err := db.Query(ctx, `SELECT url FROM events`)
	if err != nil {
		return nil, fmt.Errorf("postgres: seen urls: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]struct{})
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, fmt.Errorf("postgres: seen urls scan: %w", err)
		}
		seen[url] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: seen urls: %w", err)
	}
	return seen, nil
}

// SelectMissingEmbeddings returns up to limit fully-hydrated events whose
// embedding column is null, ordered oldest-first so the embedding worker
// makes steady progress across repeated sweeps.
func (r *EventRepository) SelectMissingEmbeddings(ctx context.Context, limit int) ([]domain.Event, error) {
	db := dbFromContext(ctx, r.db)
	query := hydrateQuery(`e.embedding IS NULL ORDER BY e.created_at ASC LIMIT $1`)
	rows, err := db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: select missing embeddings: %w", err)
	}
	defer rows.Close()
	return scanHydratedRows(rows)
}

// SetEmbedding writes vector for eventID.
func (r *EventRepository) SetEmbedding(ctx context.Context, eventID int64, vector []float32) error {
	db := dbFromContext(ctx, r.db)
	_, err := db.Exec(ctx, `UPDATE events SET embedding = $1 WHERE id = $2`, pgvector.NewVector(vector), eventID)
	if err != nil {
		return fmt.Errorf("postgres: set embedding for event %d: %w", eventID, err)
	}
	return nil
}

// ClearEmbedding nulls the vector for eventID.
func (r *EventRepository) ClearEmbedding(ctx context.Context, eventID int64) error {
	db := dbFromContext(ctx, r.db)
	_, err := db.Exec(ctx, `UPDATE events SET embedding = NULL WHERE id = $1`, eventID)
	if err != nil {
		return fmt.Errorf("postgres: clear embedding for event %d: %w", eventID, err)
	}
	return nil
}

// SearchByVector runs the native pgvector nearest-neighbour query (§4.8),
// ordering by ascending cosine distance and breaking ties by id.
func (r *EventRepository) SearchByVector(ctx context.Context, queryVector []float32, limit int) ([]domain.SimilarityResult, error) {
	db := dbFromContext(ctx, r.db)
	const query = `
		SELECT id, embedding <=> $1 AS distance
		FROM events
		WHERE embedding IS NOT NULL
		ORDER BY embedding <=> $1, id
		LIMIT $2`

	rows, err := db.Query(ctx, query, pgvector.NewVector(queryVector), limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: search by vector: %w", err)
	}
	defer rows.Close()

	var results []domain.SimilarityResult
	for rows.Next() {
		var id int64
		var distance float64
		if err := rows.Scan(&id, &distance); err != nil {
			return nil, fmt.Errorf("postgres: search by vector scan: %w", err)
		}
		results = append(results, domain.SimilarityResult{Event: domain.Event{ID: id}, Distance: distance})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: search by vector: %w", err)
	}
	return results, nil
}

// HydrateMany loads full event rows (venue, artists, tags joined) for ids,
// in no particular order.
func (r *EventRepository) HydrateMany(ctx context.Context, ids []int64) (map[int64]domain.Event, error) {
	if len(ids) == 0 {
		return map[int64]domain.Event{}, nil
	}
	db := dbFromContext(ctx, r.db)
	query := hydrateQuery(`e.id = ANY($1)`)
	rows, err := db.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("postgres: hydrate many: %w", err)
	}
	defer rows.Close()

	events, err := scanHydratedRows(rows)
	if err != nil {
		return nil, err
	}
	out := make(map[int64]domain.Event, len(events))
	for _, e := range events {
		out[e.ID] = e
	}
	return out, nil
}

// hydrateQuery builds the full event+venue+artist+tag join used by both
// SelectMissingEmbeddings and HydrateMany; whereAndRest is appended as-is
// after WHERE, so it may also carry ORDER BY/LIMIT.
func hydrateQuery(whereAndRest string) string {
	return fmt.Sprintf(`
		SELECT
			e.id, e.event_name, e.start_date, e.end_date, e.thumbnail, e.url, e.location,
			e.category, e.description, e.source, e.venue_id, e.created_at, e.updated_at,
			v.place_id, v.scraped_name, v.canonical_name, v.address, v.latitude, v.longitude,
			v.city, v.country, v.street, v.neighborhood, v.postal_code, v.website, v.phone,
			v.rating, v.total_ratings, v.popularity, v.price_level, v.types, v.photo_ref,
			v.review_count, v.last_enriched, v.is_stub,
			COALESCE(ar.ids, '{}') AS artist_ids, COALESCE(ar.names, '{}') AS artist_names,
			COALESCE(tg.ids, '{}') AS tag_ids, COALESCE(tg.names, '{}') AS tag_names
		FROM events e
		LEFT JOIN venues v ON v.place_id = e.venue_id
		LEFT JOIN LATERAL (
			SELECT array_agg(a.id ORDER BY a.name) AS ids, array_agg(a.name ORDER BY a.name) AS names
			FROM event_artists ea JOIN artists a ON a.id = ea.artist_id
			WHERE ea.event_id = e.id
		) ar ON true
		LEFT JOIN LATERAL (
			SELECT array_agg(t.id ORDER BY t.name) AS ids, array_agg(t.name ORDER BY t.name) AS names
			FROM event_tags et JOIN tags t ON t.id = et.tag_id
			WHERE et.event_id = e.id
		) tg ON true
		WHERE %s`, whereAndRest)
}

func scanHydratedRows(rows pgx.Rows) ([]domain.Event, error) {
	var events []domain.Event
	for rows.Next() {
		e, err := scanHydratedRow(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: hydrate scan: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: hydrate: %w", err)
	}
	return events, nil
}

// scanHydratedRow scans one row of hydrateQuery's event+venue+artist+tag
// join. v.* is a LEFT JOIN: every venue column comes back SQL NULL when
// e.venue_id has no matching venue row, regardless of the venues table's own
// NOT NULL constraints, so every venue-side destination below is staged as a
// nullable pointer and only dereferenced into a domain.Venue when placeID is
// non-nil.
func scanHydratedRow(row pgx.Row) (domain.Event, error) {
	var e domain.Event
	var placeID, scrapedName, canonicalName, address, city, country, street *string
	var neighborhood, postalCode, website, phone *string
	var rating *float64
	var totalRatings, reviewCount *int
	var popularity *float64
	var priceLevel *int
	var types []string
	var photoRef *string
	var lastEnriched *time.Time
	var isStub *bool
	var latitude, longitude *float64
	var artistIDs, tagIDs []int64
	var artistNames, tagNames []string

	err := row.Scan(
		&e.ID, &e.EventName, &e.StartDate, &e.EndDate, &e.Thumbnail, &e.URL, &e.Location,
		&e.Category, &e.Description, &e.Source, &e.VenueID, &e.CreatedAt, &e.UpdatedAt,
		&placeID, &scrapedName, &canonicalName, &address, &latitude, &longitude,
		&city, &country, &street, &neighborhood, &postalCode, &website, &phone,
		&rating, &totalRatings, &popularity, &priceLevel, &types, &photoRef,
		&reviewCount, &lastEnriched, &isStub,
		&artistIDs, &artistNames, &tagIDs, &tagNames,
	)
	if err != nil {
		return domain.Event{}, err
	}

	if placeID != nil {
		v := domain.Venue{
			PlaceID:       *placeID,
			ScrapedName:   derefString(scrapedName),
			CanonicalName: derefString(canonicalName),
			Address:       derefString(address),
			Latitude:      latitude,
			Longitude:     longitude,
			City:          derefString(city),
			Country:       derefString(country),
			Street:        derefString(street),
			Neighborhood:  derefString(neighborhood),
			PostalCode:    derefString(postalCode),
			Website:       derefString(website),
			Phone:         derefString(phone),
			Rating:        rating,
			TotalRatings:  derefInt(totalRatings),
			Popularity:    popularity,
			PriceLevel:    priceLevel,
			Types:         types,
			PhotoRef:      derefString(photoRef),
			ReviewCount:   derefInt(reviewCount),
			LastEnriched:  derefTime(lastEnriched),
			IsStub:        isStub != nil && *isStub,
		}
		e.Venue = &v
	}

	if len(artistIDs) == len(artistNames) {
		e.Artists = make([]domain.Artist, len(artistIDs))
		for i := range artistIDs {
			e.Artists[i] = domain.Artist{ID: artistIDs[i], Name: artistNames[i]}
		}
	}
	if len(tagIDs) == len(tagNames) {
		e.Tags = make([]domain.Tag, len(tagIDs))
		for i := range tagIDs {
			e.Tags[i] = domain.Tag{ID: tagIDs[i], Name: tagNames[i]}
		}
	}

	return e, nil
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefInt(i *int) int {
	if i == nil {
		return 0
	}
	return *i
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
