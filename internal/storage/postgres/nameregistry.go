package postgres

import (
	"context"
	"fmt"
)

// NameRegistry implements domain.NameRegistryRepository against a single
// table with a UNIQUE name column, serving both the Artist and Tag
// registries (§4.3) — table is "artists" or "tags" respectively. Batch
// insert uses ON CONFLICT DO NOTHING rather than the teacher's
// UNIQUE-violation string match (pkg/collectors/event_repository.go), since
// a batch naturally contains a mix of fresh and concurrently-raced names.
type NameRegistry struct {
	db    DB
	table string
}

// NewNameRegistry constructs a NameRegistry over the given table ("artists"
// or "tags").
func NewNameRegistry(db DB, table string) *NameRegistry {
	return &NameRegistry{db: db, table: table}
}

// FindByNames returns the ids of all rows whose name is in names.
func (r *NameRegistry) FindByNames(ctx context.Context, names []string) (map[string]int64, error) {
	result := make(map[string]int64, len(names))
	if len(names) == 0 {
		return result, nil
	}

	db := dbFromContext(ctx, r.db)
	query := fmt.Sprintf(`SELECT id, name FROM %s WHERE name = ANY($1)`, r.table)
	rows, err := db.Query(ctx, query, names)
	if err != nil {
		return nil, fmt.Errorf("postgres: %s find by names: %w", r.table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("postgres: %s find by names scan: %w", r.table, err)
		}
		result[name] = id
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: %s find by names: %w", r.table, err)
	}
	return result, nil
}

// InsertMissing inserts rows for names not already present, skipping ones
// raced in concurrently by another caller (ON CONFLICT DO NOTHING means
// those simply do not come back in the RETURNING set — the registry's
// caller re-reads them via FindByNames rather than treating the gap as an
// error).
func (r *NameRegistry) InsertMissing(ctx context.Context, names []string) (map[string]int64, error) {
	result := make(map[string]int64, len(names))
	if len(names) == 0 {
		return result, nil
	}

	db := dbFromContext(ctx, r.db)
	query := fmt.Sprintf(`
		INSERT INTO %s (name)
		SELECT unnest($1::text[])
		ON CONFLICT (name) DO NOTHING
		RETURNING id, name`, r.table)

	rows, err := db.Query(ctx, query, names)
	if err != nil {
		return nil, fmt.Errorf("postgres: %s insert missing: %w", r.table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("postgres: %s insert missing scan: %w", r.table, err)
		}
		result[name] = id
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: %s insert missing: %w", r.table, err)
	}
	return result, nil
}
