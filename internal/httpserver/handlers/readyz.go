package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/bookmarks/internal/httpserver/deps"
	"github.com/MrSnakeDoc/bookmarks/internal/logger"
	"github.com/MrSnakeDoc/bookmarks/internal/redis"
)

type readyzResponse struct {
	Ready bool   `json:"ready"`
	Error string `json:"error,omitempty"`
}

// Readyz reports ready unless a configured Redis is unreachable.
// Memory-only deployments are always ready.
func Readyz(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")

		if d.RedisClient != nil {
			if err := redis.Probe(r.Context(), d.RedisClient, probeTimeout); err != nil {
				d.Logger.Warn("readiness probe failed", logger.Error(err))
				writeJSON(w, http.StatusServiceUnavailable, readyzResponse{Error: "redis unreachable"})
				return
			}
		}

		writeJSON(w, http.StatusOK, readyzResponse{Ready: true})
	}
}
