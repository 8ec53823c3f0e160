// Package integrator implements the event integrator (§4.6): turning a
// batch of source-adapter documents into persisted events, resolving venues,
// artists and tags along the way, chunked into bounded transactions and
// smoothed over a periodic tick when a batch is large — grounded on the
// teacher's cache-first EventService.SearchArtistEvents and on glyphoxa's
// SessionManager single-active-worker guard.
package integrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/owlfest/aggregator/internal/domain"
	"github.com/owlfest/aggregator/internal/linker"
	"github.com/owlfest/aggregator/internal/places"
	"github.com/owlfest/aggregator/internal/registry"
)

// Config tunes chunk size and the drain-tick interval.
type Config struct {
	ChunkSize int
	Tick      time.Duration
}

// Integrator turns normalized documents into persisted events (§4.6).
type Integrator struct {
	events   domain.EventRepository
	venues   domain.VenueRepository
	enricher *places.Enricher
	artists  *registry.Registry
	tags     *registry.Registry
	linker   *linker.Linker
	txRunner domain.TxRunner
	logger   *slog.Logger
	cfg      Config

	primeOnce sync.Once
	primeErr  error

	mu       sync.Mutex
	seenURLs map[string]struct{}
	pending  [][]domain.NormalizedDocument
	draining bool

	nullTimestamps atomic.Int64
}

// New constructs an Integrator. txRunner may be nil when the backing store
// has nothing to wrap chunks in.
func New(events domain.EventRepository, venues domain.VenueRepository, enricher *places.Enricher, artists, tags *registry.Registry, l *linker.Linker, txRunner domain.TxRunner, cfg Config, logger *slog.Logger) *Integrator {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 50
	}
	if cfg.Tick <= 0 {
		cfg.Tick = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Integrator{
		events:   events,
		venues:   venues,
		enricher: enricher,
		artists:  artists,
		tags:     tags,
		linker:   l,
		txRunner: txRunner,
		logger:   logger,
		cfg:      cfg,
		seenURLs: make(map[string]struct{}),
	}
}

// ProcessBatch implements §4.6's public operation: prime the seen-URL set
// once, process the first chunk synchronously, and hand any remaining
// chunks to the periodic drain tick so a large batch doesn't stall the
// caller.
func (it *Integrator) ProcessBatch(ctx context.Context, docs []domain.NormalizedDocument) error {
	it.primeOnce.Do(func() {
		it.primeErr = it.primeSeenURLs(ctx)
	})
	if it.primeErr != nil {
		return fmt.Errorf("integrator: prime seen urls: %w", it.primeErr)
	}

	chunks := chunkDocuments(docs, it.cfg.ChunkSize)
	if len(chunks) == 0 {
		return nil
	}

	if err := it.processChunk(ctx, chunks[0]); err != nil {
		return fmt.Errorf("integrator: process chunk: %w", err)
	}

	if len(chunks) > 1 {
		it.mu.Lock()
		it.pending = append(it.pending, chunks[1:]...)
		it.mu.Unlock()
	}

	return nil
}

// Run drains pending chunks on Config.Tick until ctx is cancelled.
func (it *Integrator) Run(ctx context.Context) {
	ticker := time.NewTicker(it.cfg.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			it.tick(ctx)
		}
	}
}

// tick drains at most one pending chunk. The draining flag makes it
// non-reentrant: a tick that fires while the previous drain is still running
// is a no-op, mirroring SessionManager's single-active-session guard.
func (it *Integrator) tick(ctx context.Context) {
	it.mu.Lock()
	if it.draining || len(it.pending) == 0 {
		it.mu.Unlock()
		return
	}
	chunk := it.pending[0]
	it.pending = it.pending[1:]
	it.draining = true
	it.mu.Unlock()

	defer func() {
		it.mu.Lock()
		it.draining = false
		it.mu.Unlock()
	}()

	if err := it.processChunk(ctx, chunk); err != nil {
		it.logger.Warn("integrator: drain tick failed", "error", err)
	}
}

// PendingChunks reports how many chunks are still waiting to be drained.
func (it *Integrator) PendingChunks() int {
	it.mu.Lock()
	defer it.mu.Unlock()
	return len(it.pending)
}

// NullTimestamps returns the running count of documents whose start or end
// date was unparseable and fabricated (§4.6.b, §9 Open Question: kept as
// specified, flagged rather than silently dropped).
func (it *Integrator) NullTimestamps() int64 {
	return it.nullTimestamps.Load()
}

func (it *Integrator) processChunk(ctx context.Context, chunk []domain.NormalizedDocument) error {
	run := func(ctx context.Context) error {
		for _, doc := range chunk {
			if err := it.processDocument(ctx, doc); err != nil {
				it.logger.Warn("integrator: document failed", "url", doc.URL, "error", err)
			}
		}
		return nil
	}

	if it.txRunner != nil {
		return it.txRunner.WithinTx(ctx, run)
	}
	return run(ctx)
}

func (it *Integrator) processDocument(ctx context.Context, doc domain.NormalizedDocument) error {
	url := strings.TrimSpace(doc.URL)
	if url == "" {
		return nil
	}

	it.mu.Lock()
	_, seen := it.seenURLs[url]
	it.mu.Unlock()
	if seen {
		return nil
	}

	now := time.Now()
	start := it.parseTimestamp(doc.StartDate, now)
	end := it.parseTimestamp(doc.EndDate, start.Add(time.Hour))

	event := &domain.Event{
		EventName:   strings.TrimSpace(doc.EventName),
		StartDate:   start,
		EndDate:     end,
		Thumbnail:   doc.Thumbnail,
		URL:         url,
		Location:    doc.Location,
		Category:    doc.Category,
		Description: doc.Description,
		Source:      doc.Source,
	}

	if venueID := it.resolveVenue(ctx, doc.Place, doc.Location); venueID != "" {
		event.VenueID = &venueID
	}

	existing, err := it.events.GetByURL(ctx, url)
	if err != nil && !errors.Is(err, domain.ErrEventNotFound) {
		return fmt.Errorf("lookup event: %w", err)
	}

	id, changed, err := it.events.Upsert(ctx, event)
	if err != nil {
		return fmt.Errorf("upsert event: %w", err)
	}

	if existing != nil && changed && materialChange(existing, event) {
		if err := it.events.ClearEmbedding(ctx, id); err != nil {
			it.logger.Warn("integrator: clear embedding failed", "event_id", id, "error", err)
		}
	}

	it.linkEntities(ctx, id, doc)

	it.mu.Lock()
	it.seenURLs[url] = struct{}{}
	it.mu.Unlock()

	return nil
}

// resolveVenue maps a scraped venue name to a venue row's place id,
// creating and enriching a stub on first sight (§4.5). An empty string
// means no venue could be resolved and the event's venue stays null.
func (it *Integrator) resolveVenue(ctx context.Context, place, location string) string {
	place = strings.TrimSpace(place)
	if place == "" || it.enricher == nil || it.venues == nil {
		return ""
	}

	placeID, ok, err := it.enricher.Resolve(ctx, place, location)
	if err != nil || !ok {
		return ""
	}

	v, err := it.venues.GetByPlaceID(ctx, placeID)
	if err != nil {
		if !errors.Is(err, domain.ErrVenueNotFound) {
			it.logger.Warn("integrator: venue lookup failed", "place_id", placeID, "error", err)
			return ""
		}
		stub := domain.Venue{PlaceID: placeID, ScrapedName: place, IsStub: true}
		enriched, err := it.enricher.Enrich(ctx, stub)
		if err != nil {
			it.logger.Warn("integrator: venue enrich failed", "place_id", placeID, "error", err)
			enriched = stub
		}
		if err := it.venues.Upsert(ctx, &enriched); err != nil {
			it.logger.Warn("integrator: venue upsert failed", "place_id", placeID, "error", err)
			return ""
		}
		return placeID
	}

	if it.enricher.NeedsRefresh(*v) {
		refreshed, err := it.enricher.Enrich(ctx, *v)
		if err == nil {
			if err := it.venues.Upsert(ctx, &refreshed); err != nil {
				it.logger.Warn("integrator: venue refresh upsert failed", "place_id", placeID, "error", err)
			}
		}
	}

	return placeID
}

func (it *Integrator) linkEntities(ctx context.Context, eventID int64, doc domain.NormalizedDocument) {
	if names := splitAndDedupe(doc.Artists); len(names) > 0 && it.artists != nil && it.linker != nil {
		ids, err := it.artists.FindOrCreateByName(ctx, names)
		if err != nil {
			it.logger.Warn("integrator: artist registry failed", "event_id", eventID, "error", err)
		} else if err := it.linker.LinkArtists(ctx, eventID, idValues(ids)); err != nil {
			it.logger.Warn("integrator: link artists failed", "event_id", eventID, "error", err)
		}
	}

	if names := splitAndDedupe(doc.Tags); len(names) > 0 && it.tags != nil && it.linker != nil {
		ids, err := it.tags.FindOrCreateByName(ctx, names)
		if err != nil {
			it.logger.Warn("integrator: tag registry failed", "event_id", eventID, "error", err)
		} else if err := it.linker.LinkTags(ctx, eventID, idValues(ids)); err != nil {
			it.logger.Warn("integrator: link tags failed", "event_id", eventID, "error", err)
		}
	}
}

// parseTimestamp implements §4.6.b: numeric epoch seconds accepted; more
// than 10 digits is treated as milliseconds; anything unparseable or empty
// is fabricated from fallback, counted via NullTimestamps rather than
// silently dropped.
func (it *Integrator) parseTimestamp(raw string, fallback time.Time) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		it.nullTimestamps.Add(1)
		return fallback
	}

	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		it.nullTimestamps.Add(1)
		return fallback
	}

	if len(raw) > 10 {
		n /= 1000
	}
	return time.Unix(n, 0).UTC()
}

func (it *Integrator) primeSeenURLs(ctx context.Context) error {
	seen, err := it.events.SeenURLs(ctx)
	if err != nil {
		return err
	}
	it.mu.Lock()
	for url := range seen {
		it.seenURLs[url] = struct{}{}
	}
	it.mu.Unlock()
	return nil
}

// materialChange reports whether new's name, start date, or description
// differ non-trivially from existing's, per the §9 Open Question decision:
// a material change invalidates the cached embedding.
func materialChange(existing *domain.Event, new *domain.Event) bool {
	if strings.TrimSpace(existing.EventName) != strings.TrimSpace(new.EventName) {
		return true
	}
	if !existing.StartDate.Equal(new.StartDate) {
		return true
	}
	if strings.TrimSpace(existing.Description) != strings.TrimSpace(new.Description) {
		return true
	}
	return false
}

func chunkDocuments(docs []domain.NormalizedDocument, size int) [][]domain.NormalizedDocument {
	if len(docs) == 0 {
		return nil
	}
	var chunks [][]domain.NormalizedDocument
	for i := 0; i < len(docs); i += size {
		end := i + size
		if end > len(docs) {
			end = len(docs)
		}
		chunks = append(chunks, docs[i:end])
	}
	return chunks
}

// splitAndDedupe splits a comma-separated field, trims each part, drops
// empties, and deduplicates while preserving first-seen order (§4.6.d).
func splitAndDedupe(field string) []string {
	parts := strings.Split(field, ",")
	seen := make(map[string]struct{}, len(parts))
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

func idValues(m map[string]int64) []int64 {
	ids := make([]int64, 0, len(m))
	for _, id := range m {
		ids = append(ids, id)
	}
	return ids
}
