// Package sources implements the per-portal source adapters (§4.1) and the
// orchestrator that runs them concurrently and merges their output (§4.2).
package sources

import (
	"context"

	"github.com/owlfest/aggregator/internal/domain"
)

// Adapter pairs a Fetch (raw records from one portal) with a Map (raw
// record → normalized document). An adapter errors are reported but never
// abort the overall run (§4.1); one adapter failing never affects another.
type Adapter interface {
	// Name identifies the adapter for logging and the document's Source field.
	Name() string

	// Fetch pages the portal until no further page exists, a per-source cap
	// is reached, or a fatal error occurs after partial data — in which case
	// it returns what it has alongside the error.
	Fetch(ctx context.Context, cap int) ([]RawRecord, error)

	// Map transforms one raw record into a normalized document. Mapping is
	// pure and deterministic.
	Map(raw RawRecord) domain.NormalizedDocument
}

// RawRecord is an opaque per-portal payload (already JSON-decoded into a
// map, or an HTML node's extracted fields) handed from Fetch to Map.
type RawRecord map[string]any
