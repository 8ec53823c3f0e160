// Package registry implements the name→id entity registries (§4.3):
// Artist and Tag, each an in-memory cache in front of a batched DB
// lookup-then-insert, generalized from the teacher's per-entity repository
// pattern into one reusable type parameterized by a normalization function.
package registry

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/owlfest/aggregator/internal/domain"
)

// NormalizeFunc canonicalizes a raw scraped name into the key used for
// lookup, cache, and storage.
type NormalizeFunc func(string) string

// NormalizeArtistName trims only; artist names are unique case-sensitive
// after trim (§3).
func NormalizeArtistName(name string) string {
	return strings.TrimSpace(name)
}

// NormalizeTagName lowercases, maps separators to spaces, strips anything
// that isn't a letter, digit or space, collapses runs of spaces, and trims
// — preserving diacritics (§3: "non-alphanumerics stripped, diacritics
// preserved").
func NormalizeTagName(name string) string {
	lower := strings.ToLower(name)

	var b strings.Builder
	prevSpace := true // treat leading run as already-collapsed
	for _, r := range lower {
		switch {
		case r == '-' || r == '_' || r == ',' || r == '/' || r == '\\' || unicode.IsSpace(r):
			if !prevSpace {
				b.WriteRune(' ')
				prevSpace = true
			}
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			prevSpace = false
		default:
			// stripped
		}
	}
	return strings.TrimSpace(b.String())
}

// Registry resolves a set of names to their persisted entity ids, creating
// rows for names not yet seen (§4.3). One Registry instance serves one
// entity kind (Artist, Tag).
type Registry struct {
	kind      string
	normalize NormalizeFunc
	repo      domain.NameRegistryRepository

	mu    sync.RWMutex
	cache map[string]int64
}

// New constructs a Registry for one entity kind. kind is used only for
// logging/error context.
func New(kind string, normalize NormalizeFunc, repo domain.NameRegistryRepository) *Registry {
	return &Registry{
		kind:      kind,
		normalize: normalize,
		repo:      repo,
		cache:     make(map[string]int64),
	}
}

// FindOrCreateByName resolves names to ids, following §4.3 steps 1–6:
// trim/drop empties, probe the cache, batch-query misses, batch-insert
// still-missing names, retry-read on insert races, and populate the cache
// for every resolved name. The returned map is keyed by the normalized name.
func (r *Registry) FindOrCreateByName(ctx context.Context, names []string) (map[string]int64, error) {
	keys := r.normalizeAndDedupe(names)
	if len(keys) == 0 {
		return map[string]int64{}, nil
	}

	result := make(map[string]int64, len(keys))
	var misses []string

	r.mu.RLock()
	for _, k := range keys {
		if id, ok := r.cache[k]; ok {
			result[k] = id
		} else {
			misses = append(misses, k)
		}
	}
	r.mu.RUnlock()

	if len(misses) == 0 {
		return result, nil
	}

	found, err := r.repo.FindByNames(ctx, misses)
	if err != nil {
		return nil, fmt.Errorf("%s registry: lookup: %w", r.kind, domain.Classify(domain.KindDegraded, domain.ErrBackendUnavailable))
	}
	for name, id := range found {
		result[name] = id
	}

	var stillMissing []string
	for _, name := range misses {
		if _, ok := found[name]; !ok {
			stillMissing = append(stillMissing, name)
		}
	}

	if len(stillMissing) > 0 {
		inserted, err := r.repo.InsertMissing(ctx, stillMissing)
		if err != nil {
			return nil, fmt.Errorf("%s registry: insert: %w", r.kind, err)
		}
		for name, id := range inserted {
			result[name] = id
		}

		// §4.3.5: a unique-constraint violation means another worker won the
		// race; InsertMissing returns fewer rows than requested for those
		// names. Re-read them rather than surfacing an error to the caller.
		var raced []string
		for _, name := range stillMissing {
			if _, ok := inserted[name]; !ok {
				raced = append(raced, name)
			}
		}
		if len(raced) > 0 {
			reread, err := r.repo.FindByNames(ctx, raced)
			if err != nil {
				return nil, fmt.Errorf("%s registry: retry-read after race: %w", r.kind, err)
			}
			for name, id := range reread {
				result[name] = id
			}
		}
	}

	r.mu.Lock()
	for name, id := range result {
		r.cache[name] = id
	}
	r.mu.Unlock()

	return result, nil
}

// ClearCache empties the in-memory name→id cache (the admin cache-clear
// seam, §9/§4.10).
func (r *Registry) ClearCache() {
	r.mu.Lock()
	r.cache = make(map[string]int64)
	r.mu.Unlock()
}

func (r *Registry) normalizeAndDedupe(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	keys := make([]string, 0, len(names))
	for _, raw := range names {
		k := r.normalize(raw)
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	return keys
}
