package handlers

import (
	"net/http"
	"time"

	"github.com/MrSnakeDoc/bookmarks/internal/httpserver/deps"
	"github.com/MrSnakeDoc/bookmarks/internal/version"
)

type healthzResponse struct {
	Status         string       `json:"status"`
	Uptime         string       `json:"uptime"`
	SessionsCached int          `json:"sessions_cached"`
	Build          version.Info `json:"build"`
}

// Healthz is liveness only: it never touches Redis or the upstream API.
func Healthz(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessions := 0
		if d.MemoryIndex != nil {
			sessions = d.MemoryIndex.Count()
		}

		w.Header().Set("Cache-Control", "no-store")
		writeJSON(w, http.StatusOK, healthzResponse{
			Status:         "ok",
			Uptime:         d.Now().Sub(d.StartTime).Round(time.Second).String(),
			SessionsCached: sessions,
			Build:          d.Build,
		})
	}
}
