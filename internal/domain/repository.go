package domain

import "context"

// EventRepository persists and retrieves Event rows. Implementations never
// select the embedding column outside internal/similarity's native vector
// query (see SPEC_FULL.md §9 Open Questions) — reads through this interface
// always observe Embedding as nil, by construction of the SELECT list.
type EventRepository interface {
	// GetByURL returns the event with the given canonical URL, or
	// ErrEventNotFound.
	GetByURL(ctx context.Context, url string) (*Event, error)

	// Upsert inserts a new event or overwrites an existing one (matched by
	// URL) if the supplied fields differ from what is stored. Returns the
	// row id and whether an existing row was modified.
	Upsert(ctx context.Context, e *Event) (id int64, changed bool, err error)

	// SeenURLs returns the full set of canonical URLs currently stored,
	// used to prime the integrator's in-process dedupe set once per run.
	SeenURLs(ctx context.Context) (map[string]struct{}, error)

	// SelectMissingEmbeddings returns up to limit events whose embedding
	// column is null, for the embedding worker to process.
	SelectMissingEmbeddings(ctx context.Context, limit int) ([]Event, error)

	// SetEmbedding writes a vector for the given event id.
	SetEmbedding(ctx context.Context, eventID int64, vector []float32) error

	// ClearEmbedding nulls the vector for the given event id, used to
	// trigger regeneration after a material attribute change.
	ClearEmbedding(ctx context.Context, eventID int64) error

	// SearchByVector runs the native nearest-neighbour query and returns
	// event ids in ascending-cosine-distance order, ties broken by id.
	SearchByVector(ctx context.Context, queryVector []float32, limit int) ([]SimilarityResult, error)

	// HydrateMany loads full event rows (with venue/artists/tags joined)
	// for the given ids, in no particular order — callers re-sort.
	HydrateMany(ctx context.Context, ids []int64) (map[int64]Event, error)
}

// NameRegistryRepository is the persistence boundary shared by the Artist
// and Tag entity registries (§4.3): a batched "find or create by name" op.
type NameRegistryRepository interface {
	// FindByNames returns the ids of all rows whose name matches one of
	// names, keyed by name.
	FindByNames(ctx context.Context, names []string) (map[string]int64, error)

	// InsertMissing inserts rows for names not already present (as of the
	// caller's last FindByNames) in a single batched statement, returning
	// ids for the rows it inserted. A name raced in concurrently by another
	// caller is absent from the result rather than an error; the registry
	// re-reads such names via FindByNames.
	InsertMissing(ctx context.Context, names []string) (map[string]int64, error)
}

// VenueRepository persists Venue rows keyed by place id.
type VenueRepository interface {
	GetByPlaceID(ctx context.Context, placeID string) (*Venue, error)
	GetByNameCache(ctx context.Context, scrapedName, locationHint string) (placeID string, ok bool, err error)
	Upsert(ctx context.Context, v *Venue) error
	StaleVenues(ctx context.Context, olderThan int64, limit int) ([]Venue, error)
}

// RelationshipRepository batch-links events to artists/tags, skipping
// already-present pairs (§4.4).
type RelationshipRepository interface {
	ExistingArtistLinks(ctx context.Context, eventID int64) (map[int64]struct{}, error)
	LinkArtists(ctx context.Context, eventID int64, artistIDs []int64) error
	ExistingTagLinks(ctx context.Context, eventID int64) (map[int64]struct{}, error)
	LinkTags(ctx context.Context, eventID int64, tagIDs []int64) error
}

// TxRunner wraps fn in a single backing-store transaction, committing on a
// nil return and rolling back otherwise. internal/integrator uses it to run
// each chunk (§4.6) as one transaction; implementations that have nothing to
// wrap (tests, a non-transactional store) are unnecessary — callers accept a
// nil TxRunner and run fn directly.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
