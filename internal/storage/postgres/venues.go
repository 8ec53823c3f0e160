package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/owlfest/aggregator/internal/domain"
)

// VenueRepository implements domain.VenueRepository, adapted from the
// teacher's scanEvent-style row-to-struct helpers in
// pkg/collectors/event_repository.go.
type VenueRepository struct {
	db DB
}

// NewVenueRepository constructs a VenueRepository.
func NewVenueRepository(db DB) *VenueRepository {
	return &VenueRepository{db: db}
}

const venueColumns = `place_id, scraped_name, canonical_name, address, latitude, longitude,
	city, country, street, neighborhood, postal_code, website, phone, rating,
	total_ratings, popularity, price_level, types, photo_ref, review_count,
	last_enriched, is_stub`

func scanVenue(row pgx.Row) (domain.Venue, error) {
	var v domain.Venue
	err := row.Scan(
		&v.PlaceID, &v.ScrapedName, &v.CanonicalName, &v.Address, &v.Latitude, &v.Longitude,
		&v.City, &v.Country, &v.Street, &v.Neighborhood, &v.PostalCode, &v.Website, &v.Phone, &v.Rating,
		&v.TotalRatings, &v.Popularity, &v.PriceLevel, &v.Types, &v.PhotoRef, &v.ReviewCount,
		&v.LastEnriched, &v.IsStub,
	)
	return v, err
}

// GetByPlaceID returns the venue with the given place id, or
// domain.ErrVenueNotFound.
func (r *VenueRepository) GetByPlaceID(ctx context.Context, placeID string) (*domain.Venue, error) {
	db := dbFromContext(ctx, r.db)
	query := fmt.Sprintf(`SELECT %s FROM venues WHERE place_id = $1`, venueColumns)
	v, err := scanVenue(db.QueryRow(ctx, query, placeID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrVenueNotFound
		}
		return nil, fmt.Errorf("postgres: get venue %q: %w", placeID, err)
	}
	return &v, nil
}

// GetByNameCache looks up a previously-resolved place id by the
// scraped-name/location-hint pair the enricher cached it under, avoiding a
// repeat outbound places lookup for a venue already known by that name.
func (r *VenueRepository) GetByNameCache(ctx context.Context, scrapedName, locationHint string) (string, bool, error) {
	db := dbFromContext(ctx, r.db)
	const query = `
		SELECT place_id FROM venues
		WHERE lower(scraped_name) = lower($1) AND (city = $2 OR $2 = '')
		LIMIT 1`

	var placeID string
	err := db.QueryRow(ctx, query, scrapedName, locationHint).Scan(&placeID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("postgres: get venue by name cache: %w", err)
	}
	return placeID, true, nil
}

// Upsert inserts a new venue row or overwrites an existing one keyed by
// place id.
func (r *VenueRepository) Upsert(ctx context.Context, v *domain.Venue) error {
	db := dbFromContext(ctx, r.db)
	const query = `
		INSERT INTO venues (
			place_id, scraped_name, canonical_name, address, latitude, longitude,
			city, country, street, neighborhood, postal_code, website, phone, rating,
			total_ratings, popularity, price_level, types, photo_ref, review_count,
			last_enriched, is_stub
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)
		ON CONFLICT (place_id) DO UPDATE SET
			scraped_name = EXCLUDED.scraped_name,
			canonical_name = EXCLUDED.canonical_name,
			address = EXCLUDED.address,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			city = EXCLUDED.city,
			country = EXCLUDED.country,
			street = EXCLUDED.street,
			neighborhood = EXCLUDED.neighborhood,
			postal_code = EXCLUDED.postal_code,
			website = EXCLUDED.website,
			phone = EXCLUDED.phone,
			rating = EXCLUDED.rating,
			total_ratings = EXCLUDED.total_ratings,
			popularity = EXCLUDED.popularity,
			price_level = EXCLUDED.price_level,
			types = EXCLUDED.types,
			photo_ref = EXCLUDED.photo_ref,
			review_count = EXCLUDED.review_count,
			last_enriched = EXCLUDED.last_enriched,
			is_stub = EXCLUDED.is_stub`

	_, err := db.Exec(ctx, query,
		v.PlaceID, v.ScrapedName, v.CanonicalName, v.Address, v.Latitude, v.Longitude,
		v.City, v.Country, v.Street, v.Neighborhood, v.PostalCode, v.Website, v.Phone, v.Rating,
		v.TotalRatings, v.Popularity, v.PriceLevel, v.Types, v.PhotoRef, v.ReviewCount,
		v.LastEnriched, v.IsStub,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert venue %q: %w", v.PlaceID, err)
	}
	return nil
}

// StaleVenues returns up to limit venues last enriched before olderThan
// (a Unix timestamp), for the periodic refresh sweep (§4.5).
func (r *VenueRepository) StaleVenues(ctx context.Context, olderThan int64, limit int) ([]domain.Venue, error) {
	db := dbFromContext(ctx, r.db)
	query := fmt.Sprintf(`
		SELECT %s FROM venues
		WHERE is_stub = false AND last_enriched < to_timestamp($1)
		ORDER BY last_enriched ASC
		LIMIT $2`, venueColumns)

	rows, err := db.Query(ctx, query, olderThan, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: stale venues: %w", err)
	}
	defer rows.Close()

	var venues []domain.Venue
	for rows.Next() {
		v, err := scanVenue(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: stale venues scan: %w", err)
		}
		venues = append(venues, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: stale venues: %w", err)
	}
	return venues, nil
}
