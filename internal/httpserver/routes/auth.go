package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/bookmarks/internal/httpserver/deps"
	"github.com/MrSnakeDoc/bookmarks/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/bookmarks/internal/httpserver/mw"
)

func init() { Register("auth", registerAuth) }

func registerAuth(r chi.Router, d deps.Deps) {
	limited := r.With(
		mw.EnforceHost(d.AllowedHosts, d.Logger),
		mw.RateLimit(mw.RateLimitConfig{
			Burst:           d.RateLimitBurst,
			RefillPerSecond: d.RateLimitRPS,
			MaxEntries:      10_000,
			TrustProxy:      d.TrustProxy,
		}),
	)
	limited.Get("/login", handlers.Login(d))
	limited.Get("/login/callback", handlers.Callback(d))

	host := r.With(mw.EnforceHost(d.AllowedHosts, d.Logger))
	host.Get("/", handlers.Home(d))
	host.Post("/logout", handlers.Logout(d))
}
