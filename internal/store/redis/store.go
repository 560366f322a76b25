package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/bookmarks/internal/domain"
)

const (
	// DefaultCollectionTTL is the default TTL for cached collections (24 hours)
	DefaultCollectionTTL = 24 * time.Hour
)

// Store persists session collections as JSON blobs in Redis.
// Every key expires after the TTL even if never invalidated.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStore creates a new Redis store. ttl <= 0 uses DefaultCollectionTTL.
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultCollectionTTL
	}
	return &Store{
		client: client,
		ttl:    ttl,
	}
}

// Get retrieves a session's collection. A missing key is (nil, nil).
func (s *Store) Get(ctx context.Context, sessionID string) (*domain.Collection, error) {
	data, err := s.client.Get(ctx, CollectionKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get collection: %w", err)
	}

	var c domain.Collection
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal collection: %w", err)
	}
	return &c, nil
}

// Set stores a session's collection
func (s *Store) Set(ctx context.Context, sessionID string, c *domain.Collection) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal collection: %w", err)
	}

	if err := s.client.Set(ctx, CollectionKey(sessionID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save collection: %w", err)
	}
	return nil
}

// Invalidate removes a session's collection
func (s *Store) Invalidate(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, CollectionKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}
	return nil
}

// TTL returns the remaining lifetime of a session's collection, or 0 if absent.
func (s *Store) TTL(ctx context.Context, sessionID string) (time.Duration, error) {
	d, err := s.client.TTL(ctx, CollectionKey(sessionID)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get collection ttl: %w", err)
	}
	if d < 0 {
		return 0, nil
	}
	return d, nil
}

// SessionIDs lists the sessions that currently have a cached collection.
func (s *Store) SessionIDs(ctx context.Context) ([]string, error) {
	var ids []string
	iter := s.client.Scan(ctx, 0, KeyPrefixCollection+"*", 0).Iterator()
	for iter.Next(ctx) {
		id, err := ExtractSessionID(iter.Val())
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan collections: %w", err)
	}
	return ids, nil
}

// Flush removes every cached collection and returns how many were deleted.
func (s *Store) Flush(ctx context.Context) (int, error) {
	n := 0
	iter := s.client.Scan(ctx, 0, KeyPrefixCollection+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			return n, fmt.Errorf("failed to delete collection key: %w", err)
		}
		n++
	}
	if err := iter.Err(); err != nil {
		return n, fmt.Errorf("failed to flush collections: %w", err)
	}
	return n, nil
}

// Ping checks the connection
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
