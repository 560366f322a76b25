// Package bookmarks orchestrates token provider, fetcher and store for one
// session at a time.
package bookmarks

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/MrSnakeDoc/bookmarks/internal/domain"
	"github.com/MrSnakeDoc/bookmarks/internal/logger"
	"github.com/MrSnakeDoc/bookmarks/internal/metrics"
	"github.com/MrSnakeDoc/bookmarks/internal/oauth"
	"github.com/MrSnakeDoc/bookmarks/internal/store"
)

// DefaultSweepTimeout bounds a shared sweep once it no longer runs under a
// single caller's context.
const DefaultSweepTimeout = 2 * time.Minute

// FetchAller runs a complete fetch-all sweep. *fetcher.Fetcher implements it.
type FetchAller interface {
	FetchAll(ctx context.Context, id domain.Identity, tokens oauth.TokenProvider) (*domain.Collection, error)
}

// flight is one running sweep and the callers waiting on it.
// Guarded by Service.mu.
type flight struct {
	key     string
	ctx     context.Context
	cancel  context.CancelFunc
	gen     uint64 // session generation when the sweep started
	waiters int
}

// Service hands out the complete collection of a session, fetching it at
// most once at a time per session.
type Service struct {
	fetcher      FetchAller
	store        store.Store
	log          logger.Logger
	metrics      *metrics.Metrics
	group        singleflight.Group
	now          func() time.Time
	sweepTimeout time.Duration

	mu      sync.Mutex
	seq     uint64
	flights map[string]*flight // session ID -> running sweep
	gens    map[string]uint64  // bumped by Refresh and Logout
}

// Option configures a Service.
type Option func(*Service)

// WithSweepTimeout bounds every sweep. Zero or negative keeps the default.
func WithSweepTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.sweepTimeout = d
		}
	}
}

// NewService wires the service.
func NewService(f FetchAller, s store.Store, log logger.Logger, m *metrics.Metrics, opts ...Option) *Service {
	if log == nil {
		log = logger.NewNop()
	}
	svc := &Service{
		fetcher:      f,
		store:        s,
		log:          log,
		metrics:      m,
		now:          time.Now,
		sweepTimeout: DefaultSweepTimeout,
		flights:      make(map[string]*flight),
		gens:         make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Collection returns the session's cached collection, fetching it when absent.
// Concurrent callers for the same session share one sweep. The sweep is
// abandoned only when every caller waiting on it has gone away.
//
// On an AuthRefreshFailed error the session's cache is cleared; the caller
// is expected to end the session.
func (s *Service) Collection(ctx context.Context, sessionID string, id domain.Identity, tokens oauth.TokenProvider) (*domain.Collection, error) {
	c, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if c != nil {
		return c, nil
	}
	return s.fetch(ctx, sessionID, id, tokens)
}

// Refresh drops the cached collection and fetches a new one. A sweep already
// running for the session is detached and its result is not cached.
// If the new sweep fails the store stays empty: the old collection is not
// restored.
func (s *Service) Refresh(ctx context.Context, sessionID string, id domain.Identity, tokens oauth.TokenProvider) (*domain.Collection, error) {
	s.bump(sessionID)
	if err := s.store.Invalidate(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.fetch(ctx, sessionID, id, tokens)
}

// Logout clears everything cached for the session. A sweep still running
// for it completes for its waiters but is not cached.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	s.bump(sessionID)
	return s.store.Invalidate(ctx, sessionID)
}

// Cached returns the session's collection without fetching.
func (s *Service) Cached(ctx context.Context, sessionID string) (*domain.Collection, error) {
	return s.store.Get(ctx, sessionID)
}

// bump starts a new generation for the session and detaches its running sweep.
func (s *Service) bump(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gens[sessionID]++
	delete(s.flights, sessionID)
}

func (s *Service) current(sessionID string, gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gens[sessionID] == gen
}

// join attaches the caller to the session's running sweep, starting one when
// there is none. DoChan is called under mu so a flight found in the map has
// not finished yet.
func (s *Service) join(ctx context.Context, sessionID string, id domain.Identity, tokens oauth.TokenProvider) (*flight, <-chan singleflight.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fl, ok := s.flights[sessionID]
	if !ok {
		s.seq++
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.sweepTimeout)
		fl = &flight{
			key:    sessionID + "#" + strconv.FormatUint(s.seq, 10),
			ctx:    fctx,
			cancel: cancel,
			gen:    s.gens[sessionID],
		}
		s.flights[sessionID] = fl
	}
	fl.waiters++

	ch := s.group.DoChan(fl.key, func() (any, error) {
		defer s.finish(sessionID, fl)
		return s.sweep(fl, sessionID, id, tokens)
	})
	return fl, ch
}

// leave detaches one waiter. The last one to leave cancels the sweep.
func (s *Service) leave(sessionID string, fl *flight) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fl.waiters--
	if fl.waiters > 0 {
		return
	}
	if s.flights[sessionID] == fl {
		delete(s.flights, sessionID)
	}
	fl.cancel()
}

func (s *Service) finish(sessionID string, fl *flight) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.flights[sessionID] == fl {
		delete(s.flights, sessionID)
	}
}

func (s *Service) sweep(fl *flight, sessionID string, id domain.Identity, tokens oauth.TokenProvider) (*domain.Collection, error) {
	start := s.now()
	c, err := s.fetcher.FetchAll(fl.ctx, id, tokens)
	s.metrics.RecordFetch(err, s.now().Sub(start))

	if err != nil {
		s.handleFailure(fl.ctx, sessionID, err)
		return nil, err
	}

	if !s.current(sessionID, fl.gen) {
		s.log.Debug("session changed during fetch, result not cached", logger.String("user_id", id.UserID))
		return c, nil
	}
	if err := s.store.Set(fl.ctx, sessionID, c); err != nil {
		return nil, err
	}
	// Logout or Refresh may have cleared the store between the check and Set.
	if !s.current(sessionID, fl.gen) {
		if err := s.store.Invalidate(context.WithoutCancel(fl.ctx), sessionID); err != nil {
			s.log.Warn("failed to drop stale collection", logger.Error(err))
		}
	}
	return c, nil
}

func (s *Service) fetch(ctx context.Context, sessionID string, id domain.Identity, tokens oauth.TokenProvider) (*domain.Collection, error) {
	fl, ch := s.join(ctx, sessionID, id, tokens)
	defer s.leave(sessionID, fl)

	select {
	case <-ctx.Done():
		return nil, domain.NewError(domain.KindUpstreamFetchFailed, "bookmarks.fetch", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			s.log.Debug("joined in-flight fetch", logger.String("user_id", id.UserID))
		}
		return res.Val.(*domain.Collection), nil
	}
}

func (s *Service) handleFailure(ctx context.Context, sessionID string, err error) {
	log := s.log.With(logger.String("kind", string(domain.KindOf(err))))

	switch {
	case errors.Is(err, domain.ErrAuthRefreshFailed):
		log.Warn("token refresh failed, clearing session cache", logger.Error(err))
		if ierr := s.store.Invalidate(context.WithoutCancel(ctx), sessionID); ierr != nil {
			log.Warn("failed to clear session cache", logger.Error(ierr))
		}
	case errors.Is(err, domain.ErrPaginationRunaway):
		log.Error("fetch aborted: pagination runaway", logger.Error(err))
	case errors.Is(err, context.Canceled):
		log.Info("fetch canceled", logger.Error(err))
	default:
		log.Warn("fetch failed", logger.Error(err))
	}
}
