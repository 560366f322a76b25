package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/bookmarks/internal/domain"
	"github.com/MrSnakeDoc/bookmarks/internal/index"
	"github.com/MrSnakeDoc/bookmarks/internal/logger"
	redisstore "github.com/MrSnakeDoc/bookmarks/internal/store/redis"
)

func collection(ids ...string) *domain.Collection {
	c := domain.NewCollection()
	posts := make([]domain.Post, 0, len(ids))
	for _, id := range ids {
		posts = append(posts, domain.Post{ID: id, AuthorID: "a", CreatedAt: time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)})
	}
	c.AddPage(posts, []domain.Author{{ID: "a", Username: "alice"}}, nil)
	return c
}

func newRedisBacking(t *testing.T) (*redisstore.Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return redisstore.NewStore(client, time.Hour), mr
}

func TestLayeredMemoryOnly(t *testing.T) {
	ctx := context.Background()
	s := NewLayered(index.NewMemoryIndex(), nil, logger.NewNop(), nil)

	got, err := s.Get(ctx, "sid")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, s.Set(ctx, "sid", collection("1", "2")))
	got, err = s.Get(ctx, "sid")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Len())

	require.NoError(t, s.Invalidate(ctx, "sid"))
	got, err = s.Get(ctx, "sid")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.False(t, s.HasBacking())
}

func TestLayeredWritesThroughToRedis(t *testing.T) {
	ctx := context.Background()
	backing, mr := newRedisBacking(t)
	s := NewLayered(index.NewMemoryIndex(), backing, logger.NewNop(), nil)

	require.NoError(t, s.Set(ctx, "sid", collection("1")))
	assert.True(t, mr.Exists(redisstore.CollectionKey("sid")))

	require.NoError(t, s.Invalidate(ctx, "sid"))
	assert.False(t, mr.Exists(redisstore.CollectionKey("sid")))
}

func TestLayeredRedisHitWarmsMemory(t *testing.T) {
	ctx := context.Background()
	backing, _ := newRedisBacking(t)
	require.NoError(t, backing.Set(ctx, "sid", collection("1", "2", "3")))

	mem := index.NewMemoryIndex()
	s := NewLayered(mem, backing, logger.NewNop(), nil)

	got, err := s.Get(ctx, "sid")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 3, got.Len())

	warmed, ok := mem.Get("sid")
	assert.True(t, ok)
	assert.Equal(t, 3, warmed.Len())
}

type failingBacking struct{}

var errDown = errors.New("connection refused")

func (failingBacking) Get(context.Context, string) (*domain.Collection, error) { return nil, errDown }
func (failingBacking) Set(context.Context, string, *domain.Collection) error   { return errDown }
func (failingBacking) Invalidate(context.Context, string) error                { return errDown }
func (failingBacking) Ping(context.Context) error                              { return errDown }

func TestLayeredBackingFailureIsBestEffort(t *testing.T) {
	ctx := context.Background()
	s := NewLayered(index.NewMemoryIndex(), failingBacking{}, logger.NewNop(), nil)

	got, err := s.Get(ctx, "sid")
	assert.NoError(t, err)
	assert.Nil(t, got)

	assert.NoError(t, s.Set(ctx, "sid", collection("1")))
	got, err = s.Get(ctx, "sid")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Len())

	assert.NoError(t, s.Invalidate(ctx, "sid"))
	got, _ = s.Get(ctx, "sid")
	assert.Nil(t, got)
}
