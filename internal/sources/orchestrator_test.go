package sources

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/owlfest/aggregator/internal/domain"
)

type fakeAdapter struct {
	name    string
	records []RawRecord
	err     error
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) Fetch(ctx context.Context, cap int) ([]RawRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.records, nil
}

func (f *fakeAdapter) Map(raw RawRecord) domain.NormalizedDocument {
	return domain.NormalizedDocument{
		EventName: raw.Str("event_name"),
		URL:       raw.Str("url"),
		Source:    f.name,
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOrchestrator_MergesAcrossSources(t *testing.T) {
	a := &fakeAdapter{name: "a", records: []RawRecord{
		{"event_name": "Show A", "url": "https://a.example/1"},
	}}
	b := &fakeAdapter{name: "b", records: []RawRecord{
		{"event_name": "Show B", "url": "https://b.example/1"},
	}}

	o := NewOrchestrator([]Adapter{a, b}, 0, 0, discardLogger())
	docs, results := o.Run(context.Background())

	if len(docs) != 2 {
		t.Fatalf("len(docs) = %d, want 2", len(docs))
	}
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
}

func TestOrchestrator_DedupesByURL(t *testing.T) {
	a := &fakeAdapter{name: "a", records: []RawRecord{
		{"event_name": "Show A", "url": "https://shared.example/1"},
	}}
	b := &fakeAdapter{name: "b", records: []RawRecord{
		{"event_name": "Show A (dup)", "url": "https://shared.example/1"},
	}}

	o := NewOrchestrator([]Adapter{a, b}, 0, 0, discardLogger())
	docs, _ := o.Run(context.Background())

	if len(docs) != 1 {
		t.Fatalf("len(docs) = %d, want 1 (deduped by URL)", len(docs))
	}
}

func TestOrchestrator_OneSourceFailingDoesNotAffectOthers(t *testing.T) {
	failing := &fakeAdapter{name: "broken", err: errors.New("boom")}
	ok := &fakeAdapter{name: "ok", records: []RawRecord{
		{"event_name": "Fine", "url": "https://ok.example/1"},
	}}

	o := NewOrchestrator([]Adapter{failing, ok}, 0, 0, discardLogger())
	docs, results := o.Run(context.Background())

	if len(docs) != 1 {
		t.Fatalf("len(docs) = %d, want 1", len(docs))
	}

	var sawFailure, sawSuccess bool
	for _, r := range results {
		if r.Source == "broken" && r.Err != nil {
			sawFailure = true
		}
		if r.Source == "ok" && r.Err == nil {
			sawSuccess = true
		}
	}
	if !sawFailure || !sawSuccess {
		t.Fatalf("results = %+v, want one failure and one success", results)
	}
}

func TestOrchestrator_RespectsGlobalCap(t *testing.T) {
	a := &fakeAdapter{name: "a", records: []RawRecord{
		{"event_name": "1", "url": "https://a.example/1"},
		{"event_name": "2", "url": "https://a.example/2"},
		{"event_name": "3", "url": "https://a.example/3"},
	}}

	o := NewOrchestrator([]Adapter{a}, 0, 2, discardLogger())
	docs, _ := o.Run(context.Background())

	if len(docs) != 2 {
		t.Fatalf("len(docs) = %d, want 2 (global cap)", len(docs))
	}
}

func TestOrchestrator_SkipsRecordsWithoutURL(t *testing.T) {
	a := &fakeAdapter{name: "a", records: []RawRecord{
		{"event_name": "No URL"},
	}}

	o := NewOrchestrator([]Adapter{a}, 0, 0, discardLogger())
	docs, _ := o.Run(context.Background())

	if len(docs) != 0 {
		t.Fatalf("len(docs) = %d, want 0", len(docs))
	}
}
