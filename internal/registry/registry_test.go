package registry

import (
	"context"
	"sync"
	"testing"

	"github.com/owlfest/aggregator/internal/domain"
)

type fakeRepo struct {
	mu      sync.Mutex
	rows    map[string]int64
	nextID  int64
	inserts int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{rows: make(map[string]int64)}
}

func (f *fakeRepo) FindByNames(ctx context.Context, names []string) (map[string]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]int64)
	for _, n := range names {
		if id, ok := f.rows[n]; ok {
			out[n] = id
		}
	}
	return out, nil
}

func (f *fakeRepo) InsertMissing(ctx context.Context, names []string) (map[string]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]int64)
	for _, n := range names {
		if id, ok := f.rows[n]; ok {
			// Another caller already inserted this name: simulate the race
			// being swallowed by simply not re-inserting.
			out[n] = id
			continue
		}
		f.nextID++
		f.rows[n] = f.nextID
		f.inserts++
		out[n] = f.nextID
	}
	return out, nil
}

var _ domain.NameRegistryRepository = (*fakeRepo)(nil)

func TestRegistry_CreatesNewNames(t *testing.T) {
	repo := newFakeRepo()
	reg := New("artist", NormalizeArtistName, repo)

	ids, err := reg.FindOrCreateByName(context.Background(), []string{"Radiohead", "Boards of Canada"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("len(ids) = %d, want 2", len(ids))
	}
	if ids["Radiohead"] == 0 || ids["Boards of Canada"] == 0 {
		t.Fatalf("ids = %+v, want non-zero ids", ids)
	}
}

func TestRegistry_TrimsAndDropsEmpty(t *testing.T) {
	repo := newFakeRepo()
	reg := New("artist", NormalizeArtistName, repo)

	ids, err := reg.FindOrCreateByName(context.Background(), []string{"  Radiohead  ", "", "   "})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 1 {
		t.Fatalf("len(ids) = %d, want 1", len(ids))
	}
	if _, ok := ids["Radiohead"]; !ok {
		t.Fatalf("ids = %+v, want key %q", ids, "Radiohead")
	}
}

func TestRegistry_SecondCallHitsCache(t *testing.T) {
	repo := newFakeRepo()
	reg := New("artist", NormalizeArtistName, repo)

	if _, err := reg.FindOrCreateByName(context.Background(), []string{"Radiohead"}); err != nil {
		t.Fatalf("first call: %v", err)
	}
	if _, err := reg.FindOrCreateByName(context.Background(), []string{"Radiohead"}); err != nil {
		t.Fatalf("second call: %v", err)
	}

	if repo.inserts != 1 {
		t.Fatalf("inserts = %d, want 1 (second call should hit cache, not insert again)", repo.inserts)
	}
}

func TestRegistry_TagNormalization(t *testing.T) {
	repo := newFakeRepo()
	reg := New("tag", NormalizeTagName, repo)

	ids, err := reg.FindOrCreateByName(context.Background(), []string{
		"Rock Alternatywny", "rock-alternatywny", "Rock_Alternatywny",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 1 {
		t.Fatalf("len(ids) = %d, want 1 (all three normalize to the same tag)", len(ids))
	}
	if _, ok := ids["rock alternatywny"]; !ok {
		t.Fatalf("ids = %+v, want key %q", ids, "rock alternatywny")
	}
}

func TestNormalizeTagName_PreservesDiacritics(t *testing.T) {
	got := NormalizeTagName("Electrónica/Húngara")
	want := "electrónica húngara"
	if got != want {
		t.Fatalf("NormalizeTagName = %q, want %q", got, want)
	}
}

// TestRegistry_ConcurrentFindOrCreate_SameNewName reproduces §4.3.5/§8's
// concurrency property: two callers racing to create the same unseen name
// must converge on a single id, never erroring to either caller.
func TestRegistry_ConcurrentFindOrCreate_SameNewName(t *testing.T) {
	repo := newFakeRepo()
	reg := New("artist", NormalizeArtistName, repo)

	const goroutines = 20
	ids := make([]int64, goroutines)
	errs := make([]error, goroutines)

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		i := i
		go func() {
			defer wg.Done()
			m, err := reg.FindOrCreateByName(context.Background(), []string{"New Artist"})
			errs[i] = err
			if err == nil {
				ids[i] = m["New Artist"]
			}
		}()
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("goroutine %d: unexpected error: %v", i, err)
		}
	}

	first := ids[0]
	for i, id := range ids {
		if id != first {
			t.Fatalf("goroutine %d got id %d, want %d (all callers must converge on one row)", i, id, first)
		}
	}

	if repo.inserts != 1 {
		t.Fatalf("inserts = %d, want exactly 1 row created for the raced name", repo.inserts)
	}
}
