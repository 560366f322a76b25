package handlers

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrSnakeDoc/bookmarks/internal/httpserver/deps"
)

// Metrics exposes the Prometheus registry.
func Metrics(d deps.Deps) http.Handler {
	if d.Gatherer == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})
}
