package embedding

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/owlfest/aggregator/internal/domain"
)

type fakeEventRepo struct {
	mu        sync.Mutex
	missing   []domain.Event
	vectors   map[int64][]float32
	setCalls  int
}

func (f *fakeEventRepo) GetByURL(ctx context.Context, url string) (*domain.Event, error) {
	return nil, domain.ErrEventNotFound
}
func (f *fakeEventRepo) Upsert(ctx context.Context, e *domain.Event) (int64, bool, error) {
	return 0, false, nil
}
func (f *fakeEventRepo) SeenURLs(ctx context.Context) (map[string]struct{}, error) { return nil, nil }

func (f *fakeEventRepo) SelectMissingEmbeddings(ctx context.Context, limit int) ([]domain.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if limit < len(f.missing) {
		return f.missing[:limit], nil
	}
	return f.missing, nil
}

func (f *fakeEventRepo) SetEmbedding(ctx context.Context, eventID int64, vector []float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.vectors == nil {
		f.vectors = make(map[int64][]float32)
	}
	f.vectors[eventID] = vector
	f.setCalls++
	return nil
}

func (f *fakeEventRepo) ClearEmbedding(ctx context.Context, eventID int64) error { return nil }

func (f *fakeEventRepo) SearchByVector(ctx context.Context, queryVector []float32, limit int) ([]domain.SimilarityResult, error) {
	return nil, nil
}

func (f *fakeEventRepo) HydrateMany(ctx context.Context, ids []int64) (map[int64]domain.Event, error) {
	return nil, nil
}

// fakeProvider embeds deterministically and can be told to fail on specific
// sub-batches (identified by the first event's composed text).
type fakeProvider struct {
	dims     int
	failOn   map[string]bool
	callSize []int
}

func (p *fakeProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	p.callSize = append(p.callSize, len(texts))
	if len(texts) > 0 && p.failOn[texts[0]] {
		return nil, fmt.Errorf("simulated provider failure")
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, p.dims)
	}
	return out, nil
}

func (p *fakeProvider) Dimensions() int { return p.dims }
func (p *fakeProvider) ModelID() string { return "fake-model" }

func makeEvents(n int) []domain.Event {
	events := make([]domain.Event, n)
	for i := range events {
		events[i] = domain.Event{ID: int64(i + 1), EventName: fmt.Sprintf("Event %d", i)}
	}
	return events
}

func TestWorker_EmbedsAllEventsInSubBatches(t *testing.T) {
	repo := &fakeEventRepo{missing: makeEvents(45)}
	provider := &fakeProvider{dims: 8}
	w := NewWorker(repo, provider, WorkerConfig{BatchCap: 1000, SubBatch: 20, Sleep: time.Millisecond}, nil)

	if err := w.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	if repo.setCalls != 45 {
		t.Fatalf("setCalls = %d, want 45", repo.setCalls)
	}
	if len(provider.callSize) != 3 {
		t.Fatalf("sub-batch calls = %d, want 3 (20, 20, 5)", len(provider.callSize))
	}
	for id, vec := range repo.vectors {
		if len(vec) != 8 {
			t.Fatalf("event %d vector length = %d, want 8", id, len(vec))
		}
	}
}

func TestWorker_FailingSubBatchDoesNotAbortOthers(t *testing.T) {
	events := makeEvents(40)
	repo := &fakeEventRepo{missing: events}
	provider := &fakeProvider{dims: 4, failOn: map[string]bool{
		ComposeText(events[0]): true,
	}}
	w := NewWorker(repo, provider, WorkerConfig{BatchCap: 1000, SubBatch: 20, Sleep: time.Millisecond}, nil)

	if err := w.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce should not fail the whole sweep: %v", err)
	}

	if repo.setCalls != 20 {
		t.Fatalf("setCalls = %d, want 20 (only the second sub-batch succeeded)", repo.setCalls)
	}
}

func TestWorker_NoMissingEventsIsNoop(t *testing.T) {
	repo := &fakeEventRepo{}
	provider := &fakeProvider{dims: 4}
	w := NewWorker(repo, provider, WorkerConfig{}, nil)

	if err := w.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if len(provider.callSize) != 0 {
		t.Fatal("provider should not be called when there is nothing to embed")
	}
}

func TestWorker_RejectsNonPositiveDimensions(t *testing.T) {
	repo := &fakeEventRepo{missing: makeEvents(1)}
	provider := &fakeProvider{dims: 0}
	w := NewWorker(repo, provider, WorkerConfig{}, nil)

	err := w.RunOnce(context.Background())
	if err == nil {
		t.Fatal("expected an error for a provider reporting zero dimensions")
	}
	if domain.KindOf(err) != domain.KindInvalidInput {
		t.Fatalf("expected KindInvalidInput classification, got %v", domain.KindOf(err))
	}
}
