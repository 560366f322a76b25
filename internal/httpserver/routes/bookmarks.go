package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/bookmarks/internal/httpserver/deps"
	"github.com/MrSnakeDoc/bookmarks/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/bookmarks/internal/httpserver/mw"
)

func init() { Register("bookmarks", registerBookmarks) }

func registerBookmarks(r chi.Router, d deps.Deps) {
	r.Route("/api/bookmarks", func(r chi.Router) {
		r.Use(mw.EnforceHost(d.AllowedHosts, d.Logger))
		r.Use(mw.RequireSession(d.Sessions, d.OAuth, d.Logger))

		r.Get("/", handlers.Bookmarks(d))
		r.Get("/search", handlers.Search(d))
		r.Get("/facets", handlers.Facets(d))

		// A refresh is a full upstream sweep.
		r.With(mw.RateLimit(mw.RateLimitConfig{
			Burst:           d.RateLimitBurst,
			RefillPerSecond: d.RateLimitRPS,
			MaxEntries:      10_000,
			TrustProxy:      d.TrustProxy,
		})).Post("/refresh", handlers.Refresh(d))
	})
}
