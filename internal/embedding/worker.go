package embedding

import (
	"context"
	"log/slog"
	"time"

	"github.com/owlfest/aggregator/internal/domain"
)

// WorkerConfig tunes the embedding sweep's batch size, sub-batch size, and
// inter-sub-batch sleep (§4.7).
type WorkerConfig struct {
	BatchCap int           // K, default 1000
	SubBatch int           // default 20
	Sleep    time.Duration // default 1s
}

// Worker sweeps events with a null embedding, composes text for each, and
// writes back vectors in sub-batches, isolating a failing sub-batch from the
// rest of the sweep (§4.7).
type Worker struct {
	events   domain.EventRepository
	provider Provider
	cfg      WorkerConfig
	logger   *slog.Logger
}

// NewWorker constructs a Worker.
func NewWorker(events domain.EventRepository, provider Provider, cfg WorkerConfig, logger *slog.Logger) *Worker {
	if cfg.BatchCap <= 0 {
		cfg.BatchCap = 1000
	}
	if cfg.SubBatch <= 0 {
		cfg.SubBatch = 20
	}
	if cfg.Sleep <= 0 {
		cfg.Sleep = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{events: events, provider: provider, cfg: cfg, logger: logger}
}

// RunOnce selects up to BatchCap events with a null vector, partitions them
// into sub-batches of SubBatch, and embeds+writes each. A permanent error
// (e.g. a misconfigured model reported by the provider on the very first
// call) aborts the whole sweep and is returned to the caller so the operator
// sees it; a sub-batch that fails after that point is logged and skipped.
func (w *Worker) RunOnce(ctx context.Context) error {
	if w.provider.Dimensions() <= 0 {
		return domain.Classify(domain.KindInvalidInput, errInvalidDimensions)
	}

	events, err := w.events.SelectMissingEmbeddings(ctx, w.cfg.BatchCap)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}

	subBatches := chunkEvents(events, w.cfg.SubBatch)
	for i, sub := range subBatches {
		if err := w.processSubBatch(ctx, sub); err != nil {
			if i == 0 && domain.KindOf(err) == domain.KindPermanent {
				return err
			}
			w.logger.Warn("embedding: sub-batch failed", "index", i, "size", len(sub), "error", err)
		}

		if i < len(subBatches)-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(w.cfg.Sleep):
			}
		}
	}

	return nil
}

func (w *Worker) processSubBatch(ctx context.Context, events []domain.Event) error {
	texts := make([]string, len(events))
	for i, e := range events {
		texts[i] = ComposeText(e)
	}

	vectors, err := w.provider.EmbedBatch(ctx, texts)
	if err != nil {
		return err
	}
	if len(vectors) != len(events) {
		return errVectorCountMismatch
	}

	for i, e := range events {
		if len(vectors[i]) != w.provider.Dimensions() {
			w.logger.Warn("embedding: vector dimension mismatch", "event_id", e.ID, "got", len(vectors[i]), "want", w.provider.Dimensions())
			continue
		}
		if err := w.events.SetEmbedding(ctx, e.ID, vectors[i]); err != nil {
			w.logger.Warn("embedding: write vector failed", "event_id", e.ID, "error", err)
		}
	}
	return nil
}

func chunkEvents(events []domain.Event, size int) [][]domain.Event {
	var chunks [][]domain.Event
	for i := 0; i < len(events); i += size {
		end := i + size
		if end > len(events) {
			end = len(events)
		}
		chunks = append(chunks, events[i:end])
	}
	return chunks
}
