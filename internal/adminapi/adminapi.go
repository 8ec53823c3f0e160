// Package adminapi surfaces the admin-facing seams §9 calls out as
// legitimate external contracts — cache invalidation and liveness/readiness
// probes — routed with the teacher's github.com/gorilla/mux, grounded on
// yairfalse-where-its-at/pkg/interfaces's handler shape (respondWithJSON/
// respondWithError, mux.Router, RegisterRoutes) and on
// MrWong99-glyphoxa/internal/health/health.go's Checker/healthz/readyz
// pattern.
package adminapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// checkTimeout bounds how long a single readiness Checker may run.
const checkTimeout = 5 * time.Second

// Checker is a named readiness probe. Check returns nil when the
// dependency is healthy.
type Checker struct {
	Name  string
	Check func(ctx context.Context) error
}

// CacheClearer is the seam §4.3/§4.5's name/venue caches expose to the
// admin surface; internal/registry.Registry and internal/places.Enricher
// both implement it via their ClearCache methods.
type CacheClearer interface {
	ClearCache()
}

// Handler serves the admin HTTP surface.
type Handler struct {
	checkers []Checker
	caches   map[string]CacheClearer
	logger   *slog.Logger
}

// New constructs a Handler. caches is keyed by a short label ("artists",
// "tags", "venues") used in the cache-clear response body.
func New(caches map[string]CacheClearer, logger *slog.Logger, checkers ...Checker) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	c := make([]Checker, len(checkers))
	copy(c, checkers)
	return &Handler{checkers: c, caches: caches, logger: logger}
}

// Register adds the admin routes to router.
func (h *Handler) Register(router *mux.Router) {
	router.HandleFunc("/healthz", h.Healthz).Methods("GET")
	router.HandleFunc("/readyz", h.Readyz).Methods("GET")
	router.HandleFunc("/admin/cache/clear", h.ClearCache).Methods("POST")
}

// Healthz is a liveness probe that always returns 200 OK.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	respondWithJSON(w, http.StatusOK, statusBody{Status: "ok"})
}

// Readyz returns 200 only when every registered Checker passes.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string, len(h.checkers))
	allOK := true

	for _, c := range h.checkers {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		err := c.Check(ctx)
		cancel()

		if err != nil {
			checks[c.Name] = "fail: " + err.Error()
			allOK = false
			continue
		}
		checks[c.Name] = "ok"
	}

	body := statusBody{Status: "ok", Checks: checks}
	code := http.StatusOK
	if !allOK {
		body.Status = "fail"
		code = http.StatusServiceUnavailable
	}
	respondWithJSON(w, code, body)
}

// ClearCache empties every registered in-process cache (§4.3/§4.5's
// "cleared on explicit request (admin action)").
func (h *Handler) ClearCache(w http.ResponseWriter, r *http.Request) {
	cleared := make([]string, 0, len(h.caches))
	for name, cache := range h.caches {
		cache.ClearCache()
		cleared = append(cleared, name)
	}
	h.logger.Info("admin cache clear", "caches", cleared)
	respondWithJSON(w, http.StatusOK, map[string]any{"cleared": cleared})
}

type statusBody struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(body)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
