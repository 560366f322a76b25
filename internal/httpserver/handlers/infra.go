package handlers

import (
	"net/http"
	"time"

	"github.com/MrSnakeDoc/bookmarks/internal/httpserver/deps"
	"github.com/MrSnakeDoc/bookmarks/internal/redis"
)

const probeTimeout = 2 * time.Second

// Cache modes reported by /infra.
const (
	cacheMemoryOnly = "memory-only" // no Redis configured
	cacheLayered    = "layered"     // memory in front of a reachable Redis
	cacheDegraded   = "degraded"    // Redis configured but down, memory only until it returns
)

type memoryStatus struct {
	SessionsCached int    `json:"sessions_cached"`
	PostsCached    int    `json:"posts_cached"`
	LastFetch      string `json:"last_fetch"`
}

type redisStatus struct {
	Configured bool   `json:"configured"`
	OK         bool   `json:"ok"`
	TotalConns uint32 `json:"total_conns,omitempty"`
	IdleConns  uint32 `json:"idle_conns,omitempty"`
	Timeouts   uint32 `json:"timeouts,omitempty"`
	Error      string `json:"error,omitempty"`
}

type infraResponse struct {
	CacheMode string       `json:"cache_mode"`
	Memory    memoryStatus `json:"memory"`
	Redis     redisStatus  `json:"redis"`
}

// Infra describes the cache layers: what memory holds and whether Redis answers.
func Infra(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := infraResponse{
			CacheMode: cacheMemoryOnly,
			Memory: memoryStatus{
				SessionsCached: d.MemoryIndex.Count(),
				PostsCached:    d.MemoryIndex.PostCount(),
				LastFetch:      "never",
			},
		}
		if last := d.MemoryIndex.GetLastSet(); !last.IsZero() {
			resp.Memory.LastFetch = last.UTC().Format(time.RFC3339)
		}

		if d.RedisClient != nil {
			resp.Redis.Configured = true
			resp.CacheMode = cacheLayered

			stats := d.RedisClient.PoolStats()
			resp.Redis.TotalConns = stats.TotalConns
			resp.Redis.IdleConns = stats.IdleConns
			resp.Redis.Timeouts = stats.Timeouts

			if err := redis.Probe(r.Context(), d.RedisClient, probeTimeout); err != nil {
				resp.CacheMode = cacheDegraded
				resp.Redis.Error = err.Error()
			} else {
				resp.Redis.OK = true
			}
		}

		w.Header().Set("Cache-Control", "no-store")
		writeJSON(w, http.StatusOK, resp)
	}
}
