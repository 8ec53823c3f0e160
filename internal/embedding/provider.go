// Package embedding implements the embedding worker (§4.7): composing
// deterministic event text, calling a vector-embedding provider in
// sub-batches, and writing the resulting vectors back through
// domain.EventRepository — grounded on
// MrWong99-glyphoxa/pkg/provider/embeddings (the Provider boundary and its
// OpenAI implementation).
package embedding

import "context"

// Provider is the abstraction over a text-embedding backend. Implementations
// must be safe for concurrent use.
type Provider interface {
	// EmbedBatch computes one vector per text. The returned slice has the
	// same length and order as texts; on error the whole call fails (no
	// partial results), matching §4.7's "an embedding API error for a
	// sub-batch fails only that sub-batch" — the worker, not the provider,
	// is what isolates sub-batch failures from each other.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the fixed vector length this provider produces.
	Dimensions() int

	// ModelID returns the provider-specific model identifier, for logging.
	ModelID() string
}
