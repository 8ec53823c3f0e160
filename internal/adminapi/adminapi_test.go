package adminapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
)

type fakeCache struct{ cleared int }

func (c *fakeCache) ClearCache() { c.cleared++ }

func newTestRouter(h *Handler) *mux.Router {
	r := mux.NewRouter()
	h.Register(r)
	return r
}

func TestHealthz_AlwaysOK(t *testing.T) {
	h := New(nil, nil)
	srv := httptest.NewServer(newTestRouter(h))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestReadyz_FailsWhenACheckerFails(t *testing.T) {
	h := New(nil, nil,
		Checker{Name: "database", Check: func(ctx context.Context) error { return nil }},
		Checker{Name: "places", Check: func(ctx context.Context) error { return errors.New("timeout") }},
	)
	srv := httptest.NewServer(newTestRouter(h))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/readyz")
	if err != nil {
		t.Fatalf("GET /readyz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}

	var body statusBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Checks["database"] != "ok" {
		t.Fatalf("database check = %q, want ok", body.Checks["database"])
	}
	if body.Checks["places"] != "fail: timeout" {
		t.Fatalf("places check = %q, want fail: timeout", body.Checks["places"])
	}
}

func TestClearCache_ClearsEveryRegisteredCache(t *testing.T) {
	artists := &fakeCache{}
	tags := &fakeCache{}
	h := New(map[string]CacheClearer{"artists": artists, "tags": tags}, nil)
	srv := httptest.NewServer(newTestRouter(h))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/admin/cache/clear", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /admin/cache/clear: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if artists.cleared != 1 || tags.cleared != 1 {
		t.Fatalf("expected both caches cleared exactly once, got artists=%d tags=%d", artists.cleared, tags.cleared)
	}
}
