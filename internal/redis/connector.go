// Package redis opens the optional Redis connection behind the collection
// cache and probes it for the ops endpoints.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/bookmarks/internal/logger"
	"github.com/MrSnakeDoc/bookmarks/internal/utils"
)

// ConnectOptions configures the client and how long startup waits for it.
type ConnectOptions struct {
	Addr         string // "host:port"
	User         string
	Password     string
	RedisDB      int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int

	// ConnectTimeout bounds the whole startup wait.
	ConnectTimeout time.Duration
	// RetryInterval is the first pause between probes. It doubles up to MaxWait.
	RetryInterval time.Duration
	MaxWait       time.Duration
	// PingTimeout bounds a single probe.
	PingTimeout time.Duration
	// WarnThreshold failed probes are logged at Warn, later ones at Error.
	WarnThreshold int
}

func (o ConnectOptions) validate() error {
	var errs []error
	if o.Addr == "" {
		errs = append(errs, errors.New("addr is required"))
	}
	for name, d := range map[string]time.Duration{
		"connect timeout": o.ConnectTimeout,
		"retry interval":  o.RetryInterval,
		"max wait":        o.MaxWait,
		"ping timeout":    o.PingTimeout,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be > 0, got %v", name, d))
		}
	}
	if o.WarnThreshold < 0 {
		errs = append(errs, fmt.Errorf("warn threshold must be >= 0, got %d", o.WarnThreshold))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid redis options: %w", errors.Join(errs...))
	}
	return nil
}

func (o ConnectOptions) client() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         o.Addr,
		Username:     o.User,
		Password:     o.Password,
		DB:           o.RedisDB,
		DialTimeout:  o.DialTimeout,
		ReadTimeout:  o.ReadTimeout,
		WriteTimeout: o.WriteTimeout,
		PoolSize:     o.PoolSize,
	})
}

// backoff doubles the pause after every failed probe, capped at max.
type backoff struct {
	next time.Duration
	max  time.Duration
}

func (b *backoff) step() time.Duration {
	d := b.next
	b.next = min(b.next*2, b.max)
	return min(d, b.max)
}

// New opens a client and blocks until Redis answers PING, giving up after
// ConnectTimeout or when ctx ends. The client is closed on failure.
func New(ctx context.Context, opts ConnectOptions, log logger.Logger) (*redis.Client, error) {
	if err := opts.validate(); err != nil {
		log.Error("refusing to connect to redis", logger.Error(err))
		return nil, err
	}

	client := opts.client()
	if err := waitReady(ctx, client, opts, log.With(logger.String("addr", opts.Addr))); err != nil {
		utils.Close(client)
		return nil, err
	}
	return client, nil
}

func waitReady(parent context.Context, client *redis.Client, opts ConnectOptions, log logger.Logger) error {
	ctx, cancel := context.WithTimeout(parent, opts.ConnectTimeout)
	defer cancel()

	log.Info("waiting for redis", logger.Duration("timeout", opts.ConnectTimeout))

	start := time.Now()
	b := backoff{next: opts.RetryInterval, max: opts.MaxWait}

	for attempt := 1; ; attempt++ {
		err := Probe(ctx, client, opts.PingTimeout)
		if err == nil {
			fields := []logger.Field{
				logger.Int("attempts", attempt),
				logger.Duration("elapsed", time.Since(start)),
			}
			if attempt > 1 {
				log.Warn("redis reachable after retries", fields...)
			} else {
				log.Info("redis reachable", fields...)
			}
			return nil
		}

		pause := b.step()
		timer := time.NewTimer(pause)
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Error("redis unreachable, giving up",
				logger.Int("attempts", attempt),
				logger.Duration("elapsed", time.Since(start)),
				logger.Error(err))
			return fmt.Errorf("redis at %s unreachable after %d attempts: %w", opts.Addr, attempt, err)
		case <-timer.C:
		}

		fields := []logger.Field{
			logger.Int("attempt", attempt),
			logger.Duration("waited", pause),
			logger.Error(err),
		}
		if attempt <= opts.WarnThreshold {
			log.Warn("redis probe failed, retrying", fields...)
		} else {
			log.Error("redis still unreachable", fields...)
		}
	}
}

// Probe sends one PING bounded by timeout.
func Probe(ctx context.Context, client *redis.Client, timeout time.Duration) error {
	pctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return client.Ping(pctx).Err()
}
