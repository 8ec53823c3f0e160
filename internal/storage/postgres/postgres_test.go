package postgres

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/owlfest/aggregator/internal/domain"
)

// These tests exercise the SQL-construction and scan-adjacent pure logic in
// this package without a live PostgreSQL instance. Genuine query-execution
// and pgvector-ranking coverage belongs to an integration suite run against
// a real database, not to this unit package.

func TestDdlEvents_BakesInEmbeddingDimensions(t *testing.T) {
	ddl := ddlEvents(1536)
	if !strings.Contains(ddl, "vector(1536)") {
		t.Fatalf("ddl should bake in the embedding dimension: %s", ddl)
	}
	if !strings.Contains(ddl, "CREATE EXTENSION IF NOT EXISTS vector") {
		t.Fatal("ddl should create the vector extension")
	}
	if !strings.Contains(ddl, "USING hnsw") {
		t.Fatal("ddl should create an HNSW index over the embedding column")
	}
}

func TestHydrateQuery_AppendsWhereClauseVerbatim(t *testing.T) {
	query := hydrateQuery(`e.id = ANY($1)`)
	if !strings.Contains(query, "WHERE e.id = ANY($1)") {
		t.Fatalf("query should end with the supplied where clause: %s", query)
	}
	if !strings.Contains(query, "LEFT JOIN venues") || !strings.Contains(query, "event_artists") || !strings.Contains(query, "event_tags") {
		t.Fatalf("query should join venues, artists, and tags: %s", query)
	}
}

func TestCoreFieldsDiffer(t *testing.T) {
	base := domain.Event{
		EventName: "Warehouse Night",
		StartDate: time.Date(2026, 1, 1, 20, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 1, 2, 2, 0, 0, 0, time.UTC),
	}

	same := base
	if coreFieldsDiffer(base, same) {
		t.Fatal("identical events should not be reported as differing")
	}

	renamed := base
	renamed.EventName = "Warehouse Night (Rescheduled)"
	if !coreFieldsDiffer(base, renamed) {
		t.Fatal("a changed event name should be reported as differing")
	}

	placeA, placeB := "place-a", "place-b"
	withVenueA := base
	withVenueA.VenueID = &placeA
	withVenueB := base
	withVenueB.VenueID = &placeB
	if !coreFieldsDiffer(withVenueA, withVenueB) {
		t.Fatal("a changed venue id should be reported as differing")
	}

	withVenueA2 := base
	withVenueA2.VenueID = &placeA
	otherA := "place-a"
	withVenueA3 := base
	withVenueA3.VenueID = &otherA
	if coreFieldsDiffer(withVenueA2, withVenueA3) {
		t.Fatal("equal venue ids behind different pointers should not differ")
	}
}

func TestDbFromContext_FallsBackWithoutActiveTx(t *testing.T) {
	fallback := &fakeDB{}
	got := dbFromContext(context.Background(), fallback)
	if got != DB(fallback) {
		t.Fatal("dbFromContext should return the fallback when no tx is stored")
	}
}

// fakeDB is a zero-method-body stand-in used only to prove dbFromContext's
// identity fallback; it is never called, so embedding the DB interface
// without implementing it is sufficient to satisfy the type.
type fakeDB struct{ DB }
