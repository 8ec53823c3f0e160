package sources

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/owlfest/aggregator/internal/domain"
)

// RunResult is one adapter's outcome from a single orchestrator Run.
type RunResult struct {
	Source  string
	Fetched int
	Err     error
}

// Orchestrator runs every registered Adapter concurrently and merges their
// normalized output into one slice, deduping by URL on a first-write-wins
// basis (§4.2). It generalizes the teacher's ArtistAggregator.SearchArtists
// fan-out (a fixed two-way sync.WaitGroup join) to an arbitrary number of
// adapters via golang.org/x/sync/errgroup, and — unlike the teacher, which
// fails the whole call when every source errors — never aborts the run: one
// adapter's error is reported but never affects another (§4.1).
type Orchestrator struct {
	adapters     []Adapter
	perSourceCap int
	globalCap    int
	logger       *slog.Logger
}

// NewOrchestrator constructs an Orchestrator over adapters. perSourceCap
// bounds each adapter's Fetch; globalCap (0 = unbounded) bounds the total
// number of normalized documents returned across all sources.
func NewOrchestrator(adapters []Adapter, perSourceCap, globalCap int, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		adapters:     adapters,
		perSourceCap: perSourceCap,
		globalCap:    globalCap,
		logger:       logger,
	}
}

// Run fetches and maps every adapter concurrently, merges the results
// deduped by URL, and returns both the merged documents and a per-source
// result summary for logging/metrics.
func (o *Orchestrator) Run(ctx context.Context) ([]domain.NormalizedDocument, []RunResult) {
	type sourceOutput struct {
		docs   []domain.NormalizedDocument
		result RunResult
	}

	outputs := make([]sourceOutput, len(o.adapters))

	g, gctx := errgroup.WithContext(ctx)
	for i, adapter := range o.adapters {
		i, adapter := i, adapter
		g.Go(func() error {
			raw, err := adapter.Fetch(gctx, o.perSourceCap)

			docs := make([]domain.NormalizedDocument, 0, len(raw))
			for _, rec := range raw {
				docs = append(docs, adapter.Map(rec))
			}

			outputs[i] = sourceOutput{
				docs: docs,
				result: RunResult{
					Source:  adapter.Name(),
					Fetched: len(docs),
					Err:     err,
				},
			}
			// An adapter error never aborts the group; other adapters keep
			// running and partial data from this one is still merged.
			return nil
		})
	}
	_ = g.Wait()

	seen := make(map[string]struct{})
	var merged []domain.NormalizedDocument
	results := make([]RunResult, 0, len(outputs))

	for _, out := range outputs {
		results = append(results, out.result)
		if out.result.Err != nil {
			o.logger.Warn("source fetch failed", "source", out.result.Source, "error", out.result.Err, "partial_records", out.result.Fetched)
		}

		for _, doc := range out.docs {
			if o.globalCap > 0 && len(merged) >= o.globalCap {
				break
			}
			if doc.URL == "" {
				continue
			}
			if _, dup := seen[doc.URL]; dup {
				continue
			}
			seen[doc.URL] = struct{}{}
			merged = append(merged, doc)
		}
	}

	return merged, results
}
