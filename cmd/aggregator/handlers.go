package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/owlfest/aggregator/internal/domain"
	"github.com/owlfest/aggregator/internal/similarity"
)

const similarityRequestTimeout = 5 * time.Second

// newSimilarityHandler exposes similarity.Service.FindSimilar over
// GET /events/similar?q=...&limit=..., grounded on the teacher's
// EventHandler.SearchEvents (context.WithTimeout around the service call,
// a switch on domain sentinel errors, respondWithJSON/respondWithError).
func newSimilarityHandler(svc *similarity.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query().Get("q")

		limit := 10
		if raw := r.URL.Query().Get("limit"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil {
				limit = n
			}
		}

		ctx, cancel := context.WithTimeout(r.Context(), similarityRequestTimeout)
		defer cancel()

		results, err := svc.FindSimilar(ctx, query, limit)
		if err != nil {
			switch domain.KindOf(err) {
			case domain.KindInvalidInput:
				respondWithError(w, http.StatusBadRequest, err.Error())
			default:
				respondWithError(w, http.StatusInternalServerError, "internal server error")
			}
			return
		}

		respondWithJSON(w, http.StatusOK, results)
	}
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
