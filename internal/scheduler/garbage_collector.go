package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrSnakeDoc/bookmarks/internal/index"
	"github.com/MrSnakeDoc/bookmarks/internal/logger"
	"github.com/MrSnakeDoc/bookmarks/internal/metrics"
)

const (
	// DefaultIdleTTL is how long a session collection may go unread before it
	// is evicted from memory
	DefaultIdleTTL = 2 * time.Hour
	// DefaultGCInterval is the period between collections
	DefaultGCInterval = 10 * time.Minute
)

// GarbageCollector evicts idle session collections from the memory index.
// Redis copies are left alone: they expire on their own TTL and warm the
// memory index again if the session comes back.
type GarbageCollector struct {
	index    *index.MemoryIndex
	logger   logger.Logger
	metrics  *metrics.Metrics
	interval time.Duration
	idleTTL  time.Duration

	started  atomic.Bool
	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

// NewGarbageCollector creates a collector. Zero durations take the defaults.
func NewGarbageCollector(
	idx *index.MemoryIndex,
	log logger.Logger,
	m *metrics.Metrics,
	interval time.Duration,
	idleTTL time.Duration,
) *GarbageCollector {
	if interval <= 0 {
		interval = DefaultGCInterval
	}
	if idleTTL <= 0 {
		idleTTL = DefaultIdleTTL
	}

	return &GarbageCollector{
		index:    idx,
		logger:   log.With(logger.String("component", "gc")),
		metrics:  m,
		interval: interval,
		idleTTL:  idleTTL,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start sweeps once, then every interval until Stop is called or ctx ends.
func (gc *GarbageCollector) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	gc.Collect()

	gc.started.Store(true)
	go gc.loop(ctx)
	return nil
}

func (gc *GarbageCollector) loop(ctx context.Context) {
	defer close(gc.done)

	ticker := time.NewTicker(gc.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			gc.Collect()
		case <-gc.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop ends the loop and waits for it to exit. Safe to call more than once,
// and before Start.
func (gc *GarbageCollector) Stop() {
	gc.stopOnce.Do(func() { close(gc.stopCh) })
	if gc.started.Load() {
		<-gc.done
	}
}

// Collect evicts collections idle for longer than the TTL and returns how
// many were removed.
func (gc *GarbageCollector) Collect() int {
	evicted := gc.index.Sweep(gc.idleTTL)
	gc.metrics.RecordEvictions(len(evicted))

	if len(evicted) == 0 {
		gc.logger.Debug("no idle collections")
		return 0
	}

	gc.logger.Info("idle collections evicted",
		logger.Int("evicted", len(evicted)),
		logger.Int("remaining", gc.index.Count()),
		logger.Duration("idle_ttl", gc.idleTTL))
	return len(evicted)
}
