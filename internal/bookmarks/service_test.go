package bookmarks

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/bookmarks/internal/domain"
	"github.com/MrSnakeDoc/bookmarks/internal/index"
	"github.com/MrSnakeDoc/bookmarks/internal/logger"
	"github.com/MrSnakeDoc/bookmarks/internal/metrics"
	"github.com/MrSnakeDoc/bookmarks/internal/oauth"
	"github.com/MrSnakeDoc/bookmarks/internal/store"
)

type fakeFetcher struct {
	calls   atomic.Int32
	release chan struct{} // when set, FetchAll blocks until closed
	err     error
	posts   int
}

func (f *fakeFetcher) FetchAll(ctx context.Context, _ domain.Identity, _ oauth.TokenProvider) (*domain.Collection, error) {
	f.calls.Add(1)
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	c := domain.NewCollection()
	for i := 0; i < f.posts; i++ {
		c.Posts = append(c.Posts, domain.Post{ID: string(rune('a' + i))})
	}
	return c, nil
}

func newTestService(f FetchAller) (*Service, *store.Layered, *metrics.Metrics) {
	m := metrics.NewMetrics(prometheus.NewRegistry())
	s := store.NewLayered(index.NewMemoryIndex(), nil, logger.NewNop(), m)
	return NewService(f, s, logger.NewNop(), m), s, m
}

var id = domain.Identity{UserID: "42", Username: "alice"}

func waiters(svc *Service, sessionID string) int {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	if fl, ok := svc.flights[sessionID]; ok {
		return fl.waiters
	}
	return 0
}

func TestCollectionFetchesOnceThenServesCache(t *testing.T) {
	f := &fakeFetcher{posts: 2}
	svc, _, m := newTestService(f)
	ctx := context.Background()

	c1, err := svc.Collection(ctx, "sid", id, oauth.StaticToken("t"))
	require.NoError(t, err)
	c2, err := svc.Collection(ctx, "sid", id, oauth.StaticToken("t"))
	require.NoError(t, err)

	assert.Equal(t, int32(1), f.calls.Load())
	assert.Same(t, c1, c2)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Fetches.WithLabelValues(metrics.OutcomeSuccess)))
}

func TestConcurrentCallersShareOneSweep(t *testing.T) {
	f := &fakeFetcher{posts: 1, release: make(chan struct{})}
	svc, _, _ := newTestService(f)
	ctx := context.Background()

	const n = 10
	var wg sync.WaitGroup
	results := make([]*domain.Collection, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.Collection(ctx, "sid", id, oauth.StaticToken("t"))
		}(i)
	}

	// Give every goroutine time to join before releasing the sweep.
	require.Eventually(t, func() bool { return f.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(f.release)
	wg.Wait()

	assert.Equal(t, int32(1), f.calls.Load())
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Same(t, results[0], results[i])
	}
}

func TestRefreshInvalidatesAndRefetches(t *testing.T) {
	f := &fakeFetcher{posts: 1}
	svc, _, _ := newTestService(f)
	ctx := context.Background()

	first, err := svc.Collection(ctx, "sid", id, oauth.StaticToken("t"))
	require.NoError(t, err)

	f.posts = 3
	second, err := svc.Refresh(ctx, "sid", id, oauth.StaticToken("t"))
	require.NoError(t, err)

	assert.Equal(t, int32(2), f.calls.Load())
	assert.Equal(t, 1, first.Len())
	assert.Equal(t, 3, second.Len())
}

func TestFailedFetchStoresNothing(t *testing.T) {
	f := &fakeFetcher{err: domain.NewError(domain.KindUpstreamFetchFailed, "test", errors.New("502"))}
	svc, s, m := newTestService(f)
	ctx := context.Background()

	_, err := svc.Collection(ctx, "sid", id, oauth.StaticToken("t"))
	assert.True(t, errors.Is(err, domain.ErrUpstreamFetchFailed))

	cached, err := s.Get(ctx, "sid")
	require.NoError(t, err)
	assert.Nil(t, cached)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Fetches.WithLabelValues(metrics.OutcomeUpstream)))
}

func TestFailedRefreshKeepsNothingStale(t *testing.T) {
	f := &fakeFetcher{posts: 2}
	svc, s, _ := newTestService(f)
	ctx := context.Background()

	_, err := svc.Collection(ctx, "sid", id, oauth.StaticToken("t"))
	require.NoError(t, err)

	f.err = domain.NewError(domain.KindUpstreamFetchFailed, "test", nil)
	_, err = svc.Refresh(ctx, "sid", id, oauth.StaticToken("t"))
	require.Error(t, err)

	cached, err := s.Get(ctx, "sid")
	require.NoError(t, err)
	assert.Nil(t, cached)
}

func TestRefreshFailureClearsCache(t *testing.T) {
	f := &fakeFetcher{posts: 1}
	svc, s, _ := newTestService(f)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "other", domain.NewCollection()))
	f.err = domain.NewError(domain.KindAuthRefreshFailed, "test", errors.New("invalid_grant"))

	_, err := svc.Collection(ctx, "sid", id, oauth.StaticToken("t"))
	assert.True(t, errors.Is(err, domain.ErrAuthRefreshFailed))

	other, err := s.Get(ctx, "other")
	require.NoError(t, err)
	assert.NotNil(t, other, "other sessions are untouched")
}

func TestLogoutClearsStore(t *testing.T) {
	f := &fakeFetcher{posts: 1}
	svc, s, _ := newTestService(f)
	ctx := context.Background()

	_, err := svc.Collection(ctx, "sid", id, oauth.StaticToken("t"))
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, "sid"))

	cached, err := svc.Cached(ctx, "sid")
	require.NoError(t, err)
	assert.Nil(t, cached)
	assert.Equal(t, 0, s.Memory().Count())
}

func TestCanceledCallerGetsErrorAndNothingIsStored(t *testing.T) {
	f := &fakeFetcher{posts: 1, release: make(chan struct{})}
	svc, s, _ := newTestService(f)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := svc.Collection(ctx, "sid", id, oauth.StaticToken("t"))
		done <- err
	}()

	require.Eventually(t, func() bool { return f.calls.Load() == 1 }, time.Second, time.Millisecond)
	cancel()

	err := <-done
	assert.True(t, errors.Is(err, context.Canceled))

	require.Eventually(t, func() bool {
		c, _ := s.Get(context.Background(), "sid")
		return c == nil
	}, time.Second, 5*time.Millisecond)
}

func TestLogoutDuringFetchDoesNotRecache(t *testing.T) {
	f := &fakeFetcher{posts: 3, release: make(chan struct{})}
	svc, s, _ := newTestService(f)
	ctx := context.Background()

	type result struct {
		c   *domain.Collection
		err error
	}
	done := make(chan result, 1)
	go func() {
		c, err := svc.Collection(ctx, "sid", id, oauth.StaticToken("t"))
		done <- result{c, err}
	}()

	require.Eventually(t, func() bool { return f.calls.Load() == 1 }, time.Second, time.Millisecond)
	require.NoError(t, svc.Logout(ctx, "sid"))
	close(f.release)

	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, 3, res.c.Len(), "the waiting request still gets its result")

	cached, err := svc.Cached(ctx, "sid")
	require.NoError(t, err)
	assert.Nil(t, cached)
	assert.Equal(t, 0, s.Memory().Count())
}

func TestRefreshDuringFetchCachesOnlyNewSweep(t *testing.T) {
	f := &fakeFetcher{posts: 1, release: make(chan struct{})}
	svc, s, _ := newTestService(f)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := svc.Collection(ctx, "sid", id, oauth.StaticToken("t"))
		done <- err
	}()
	require.Eventually(t, func() bool { return f.calls.Load() == 1 }, time.Second, time.Millisecond)

	refreshed := make(chan *domain.Collection, 1)
	go func() {
		c, err := svc.Refresh(ctx, "sid", id, oauth.StaticToken("t"))
		assert.NoError(t, err)
		refreshed <- c
	}()
	require.Eventually(t, func() bool { return f.calls.Load() == 2 }, time.Second, time.Millisecond)

	close(f.release)
	require.NoError(t, <-done)
	fresh := <-refreshed

	cached, err := s.Get(ctx, "sid")
	require.NoError(t, err)
	assert.Same(t, fresh, cached)
}

func TestCanceledFirstCallerDoesNotFailOthers(t *testing.T) {
	f := &fakeFetcher{posts: 2, release: make(chan struct{})}
	svc, s, _ := newTestService(f)

	firstCtx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := svc.Collection(firstCtx, "sid", id, oauth.StaticToken("t"))
		firstErr <- err
	}()
	require.Eventually(t, func() bool { return f.calls.Load() == 1 }, time.Second, time.Millisecond)

	second := make(chan *domain.Collection, 1)
	secondErr := make(chan error, 1)
	go func() {
		c, err := svc.Collection(context.Background(), "sid", id, oauth.StaticToken("t"))
		secondErr <- err
		second <- c
	}()
	require.Eventually(t, func() bool { return waiters(svc, "sid") == 2 }, time.Second, time.Millisecond)

	cancel()
	assert.True(t, errors.Is(<-firstErr, context.Canceled))

	close(f.release)
	require.NoError(t, <-secondErr)
	c := <-second
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, int32(1), f.calls.Load(), "the sweep was shared, not restarted")

	cached, err := s.Get(context.Background(), "sid")
	require.NoError(t, err)
	assert.Same(t, c, cached)
}
