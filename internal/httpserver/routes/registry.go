// Package routes mounts the HTTP surface. Each file registers one group of
// routes from init; the server mounts them all at once.
package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/bookmarks/internal/httpserver/deps"
	"github.com/MrSnakeDoc/bookmarks/internal/logger"
)

// Registrar mounts one group of routes.
type Registrar func(r chi.Router, d deps.Deps)

type group struct {
	name  string
	mount Registrar
}

var groups []group

// Register adds a named route group.
func Register(name string, mount Registrar) {
	groups = append(groups, group{name: name, mount: mount})
}

// RegisterAll mounts every group on r and logs the route table at debug level.
func RegisterAll(r chi.Router, d deps.Deps) {
	for _, g := range groups {
		g.mount(r, d)
		if d.Logger != nil {
			d.Logger.Debug("route group mounted", logger.String("group", g.name))
		}
	}

	if d.Logger == nil {
		return
	}
	_ = chi.Walk(r, func(method, route string, _ http.Handler, mws ...func(http.Handler) http.Handler) error {
		d.Logger.Debug("route",
			logger.String("method", method),
			logger.String("path", route),
			logger.Int("middlewares", len(mws)))
		return nil
	})
}
