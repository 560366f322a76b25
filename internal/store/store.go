// Package store is the per-session bookmark cache. The in-process memory
// index answers first; Redis, when configured, backs it so collections
// survive restarts.
package store

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/bookmarks/internal/domain"
	"github.com/MrSnakeDoc/bookmarks/internal/index"
	"github.com/MrSnakeDoc/bookmarks/internal/logger"
	"github.com/MrSnakeDoc/bookmarks/internal/metrics"
)

// Store caches one complete collection per session.
type Store interface {
	// Get returns the cached collection, or (nil, nil) when absent.
	Get(ctx context.Context, sessionID string) (*domain.Collection, error)
	// Set replaces the cached collection. Only called after a complete fetch.
	Set(ctx context.Context, sessionID string, c *domain.Collection) error
	// Invalidate drops the cached collection so the next Get misses.
	Invalidate(ctx context.Context, sessionID string) error
}

// Backing is the optional persistent layer. *redis.Store implements it.
type Backing interface {
	Store
	Ping(ctx context.Context) error
}

// Layered serves from the memory index and writes through to an optional
// backing store. Backing failures are logged and never fail the call.
type Layered struct {
	memory  *index.MemoryIndex
	backing Backing // nil = memory only
	log     logger.Logger
	metrics *metrics.Metrics
	timeout time.Duration
}

// NewLayered composes the layers. backing may be nil.
func NewLayered(memory *index.MemoryIndex, backing Backing, log logger.Logger, m *metrics.Metrics) *Layered {
	if log == nil {
		log = logger.NewNop()
	}
	return &Layered{
		memory:  memory,
		backing: backing,
		log:     log,
		metrics: m,
		timeout: 2 * time.Second,
	}
}

// Get implements Store. A backing hit warms the memory index.
func (l *Layered) Get(ctx context.Context, sessionID string) (*domain.Collection, error) {
	if c, ok := l.memory.Get(sessionID); ok {
		l.metrics.RecordCacheLookup(true)
		return c, nil
	}

	if l.backing == nil {
		l.metrics.RecordCacheLookup(false)
		return nil, nil
	}

	bctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	c, err := l.backing.Get(bctx, sessionID)
	if err != nil {
		l.log.Warn("backing store get failed, treating as miss",
			logger.String("session", shortID(sessionID)),
			logger.Error(err))
		l.metrics.RecordCacheLookup(false)
		return nil, nil
	}
	if c == nil {
		l.metrics.RecordCacheLookup(false)
		return nil, nil
	}

	l.memory.Set(sessionID, c)
	l.metrics.RecordCacheLookup(true)
	return c, nil
}

// Set implements Store.
func (l *Layered) Set(ctx context.Context, sessionID string, c *domain.Collection) error {
	l.memory.Set(sessionID, c)

	if l.backing == nil {
		return nil
	}

	bctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	if err := l.backing.Set(bctx, sessionID, c); err != nil {
		l.log.Warn("backing store set failed, collection kept in memory only",
			logger.String("session", shortID(sessionID)),
			logger.Error(err))
	}
	return nil
}

// Invalidate implements Store.
func (l *Layered) Invalidate(ctx context.Context, sessionID string) error {
	l.memory.Invalidate(sessionID)

	if l.backing == nil {
		return nil
	}

	bctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	if err := l.backing.Invalidate(bctx, sessionID); err != nil {
		l.log.Warn("backing store invalidate failed",
			logger.String("session", shortID(sessionID)),
			logger.Error(err))
	}
	return nil
}

// Memory exposes the front layer for the garbage collector and status pages.
func (l *Layered) Memory() *index.MemoryIndex { return l.memory }

// HasBacking reports whether a persistent layer is configured.
func (l *Layered) HasBacking() bool { return l.backing != nil }

// shortID keeps session IDs out of logs in full.
func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
