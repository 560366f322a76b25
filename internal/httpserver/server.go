// Package httpserver assembles the chi router and owns the listening server.
package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MrSnakeDoc/bookmarks/internal/config"
	"github.com/MrSnakeDoc/bookmarks/internal/httpserver/deps"
	"github.com/MrSnakeDoc/bookmarks/internal/httpserver/mw"
	"github.com/MrSnakeDoc/bookmarks/internal/httpserver/routes"
	"github.com/MrSnakeDoc/bookmarks/internal/logger"
)

const (
	defaultRequestTimeout = 60 * time.Second
	// writeSlack lets a handler that hit the request timeout still write its error.
	writeSlack = 10 * time.Second
)

// Server owns the listener lifecycle.
type Server struct {
	srv     *http.Server
	log     logger.Logger
	started time.Time
}

// NewRouter returns the full handler: global middlewares, then every
// registered route group. requestTimeout must cover a complete fetch-all
// sweep; zero picks the default.
func NewRouter(log logger.Logger, d deps.Deps, requestTimeout time.Duration) http.Handler {
	if requestTimeout <= 0 {
		requestTimeout = defaultRequestTimeout
	}

	r := chi.NewRouter()
	r.Use(
		middleware.GetHead,
		middleware.RequestID,
		middleware.Recoverer,
		middleware.Timeout(requestTimeout),
		mw.Log(log, d.TrustProxy),
	)

	routes.RegisterAll(r, d)
	return r
}

// New wires the router into an http.Server bound to cfg.ListenPort.
func New(cfg *config.Config, log logger.Logger, d deps.Deps) *Server {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	return &Server{
		srv: &http.Server{
			Addr:              cfg.ListenPort,
			Handler:           NewRouter(log, d, timeout),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      timeout + writeSlack,
			IdleTimeout:       time.Minute,
			MaxHeaderBytes:    1 << 20,
		},
		log:     log.With(logger.String("component", "http")),
		started: d.StartTime,
	}
}

// Start blocks serving requests. A graceful Stop makes it return nil.
func (s *Server) Start() error {
	s.log.Info("listening", logger.String("addr", s.srv.Addr))
	if err := s.srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop drains in-flight requests until ctx ends.
func (s *Server) Stop(ctx context.Context) error {
	s.log.Info("shutting down", logger.Duration("uptime", time.Since(s.started).Round(time.Second)))
	return s.srv.Shutdown(ctx)
}
