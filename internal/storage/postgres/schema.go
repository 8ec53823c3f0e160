// Package postgres implements the persistence layer (§4.9) against
// PostgreSQL + pgvector: pgx/v5-backed domain.EventRepository,
// domain.NameRegistryRepository, domain.VenueRepository,
// domain.RelationshipRepository, and domain.TxRunner, translated from the
// teacher's database/sql + SQLite pkg/collectors/event_repository.go and
// grounded on MrWong99-glyphoxa/pkg/memory/postgres/schema.go's idempotent
// DDL-with-vector-extension shape.
package postgres

import (
	"context"
	"fmt"
)

// ddlCore creates the artist/tag/venue tables and the event_artists/event_tags
// join tables; the events table itself is created by ddlEvents.
// Every statement is idempotent so Migrate can run on every process start.
const ddlCore = `
CREATE TABLE IF NOT EXISTS artists (
    id         BIGSERIAL PRIMARY KEY,
    name       TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS tags (
    id         BIGSERIAL PRIMARY KEY,
    name       TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS venues (
    place_id        TEXT PRIMARY KEY,
    scraped_name    TEXT NOT NULL DEFAULT '',
    canonical_name  TEXT NOT NULL DEFAULT '',
    address         TEXT NOT NULL DEFAULT '',
    latitude        DOUBLE PRECISION,
    longitude       DOUBLE PRECISION,
    city            TEXT NOT NULL DEFAULT '',
    country         TEXT NOT NULL DEFAULT '',
    street          TEXT NOT NULL DEFAULT '',
    neighborhood    TEXT NOT NULL DEFAULT '',
    postal_code     TEXT NOT NULL DEFAULT '',
    website         TEXT NOT NULL DEFAULT '',
    phone           TEXT NOT NULL DEFAULT '',
    rating          DOUBLE PRECISION,
    total_ratings   INTEGER NOT NULL DEFAULT 0,
    popularity      DOUBLE PRECISION,
    price_level     INTEGER,
    types           TEXT[] NOT NULL DEFAULT '{}',
    photo_ref       TEXT NOT NULL DEFAULT '',
    review_count    INTEGER NOT NULL DEFAULT 0,
    last_enriched   TIMESTAMPTZ NOT NULL DEFAULT 'epoch',
    is_stub         BOOLEAN NOT NULL DEFAULT true
);
CREATE INDEX IF NOT EXISTS idx_venues_scraped_name ON venues (lower(scraped_name));

CREATE TABLE IF NOT EXISTS event_artists (
    event_id  BIGINT NOT NULL,
    artist_id BIGINT NOT NULL REFERENCES artists (id),
    PRIMARY KEY (event_id, artist_id)
);

CREATE TABLE IF NOT EXISTS event_tags (
    event_id BIGINT NOT NULL,
    tag_id   BIGINT NOT NULL REFERENCES tags (id),
    PRIMARY KEY (event_id, tag_id)
);
`

// ddlEvents creates the events table with an embedding dimensions-sized
// pgvector column and its HNSW index, mirroring glyphoxa's ddlL2 pattern of
// baking the dimension count into the column type at migrate time.
func ddlEvents(embeddingDimensions int) string {
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS events (
    id           BIGSERIAL PRIMARY KEY,
    event_name   TEXT NOT NULL,
    start_date   TIMESTAMPTZ NOT NULL,
    end_date     TIMESTAMPTZ NOT NULL,
    thumbnail    TEXT NOT NULL DEFAULT '',
    url          TEXT NOT NULL UNIQUE,
    location     TEXT NOT NULL DEFAULT '',
    category     TEXT NOT NULL DEFAULT '',
    description  TEXT NOT NULL DEFAULT '',
    source       TEXT NOT NULL DEFAULT '',
    embedding    vector(%d),
    venue_id     TEXT REFERENCES venues (place_id),
    created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_events_start_date ON events (start_date);
CREATE INDEX IF NOT EXISTS idx_events_venue ON events (venue_id);
CREATE INDEX IF NOT EXISTS idx_events_embedding ON events
    USING hnsw (embedding vector_cosine_ops)
    WHERE embedding IS NOT NULL;
`, embeddingDimensions)
}

// Migrate executes the schema DDL, creating tables, the vector extension,
// and indexes if they do not already exist. Safe to call on every process
// start.
func Migrate(ctx context.Context, db DB, embeddingDimensions int) error {
	statements := []string{ddlCore, ddlEvents(embeddingDimensions)}
	for _, stmt := range statements {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: migrate: %w", err)
		}
	}
	return nil
}
