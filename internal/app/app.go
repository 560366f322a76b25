package app

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/bookmarks/internal/bookmarks"
	"github.com/MrSnakeDoc/bookmarks/internal/config"
	"github.com/MrSnakeDoc/bookmarks/internal/fetcher"
	"github.com/MrSnakeDoc/bookmarks/internal/httpserver"
	"github.com/MrSnakeDoc/bookmarks/internal/httpserver/deps"
	"github.com/MrSnakeDoc/bookmarks/internal/index"
	"github.com/MrSnakeDoc/bookmarks/internal/logger"
	"github.com/MrSnakeDoc/bookmarks/internal/metrics"
	"github.com/MrSnakeDoc/bookmarks/internal/oauth"
	"github.com/MrSnakeDoc/bookmarks/internal/redis"
	"github.com/MrSnakeDoc/bookmarks/internal/scheduler"
	"github.com/MrSnakeDoc/bookmarks/internal/session"
	"github.com/MrSnakeDoc/bookmarks/internal/store"
	redisstore "github.com/MrSnakeDoc/bookmarks/internal/store/redis"
	"github.com/MrSnakeDoc/bookmarks/internal/upstream"
	"github.com/MrSnakeDoc/bookmarks/internal/utils"
	"github.com/MrSnakeDoc/bookmarks/internal/version"
)

type App struct {
	cfg         *config.Config
	logger      logger.Logger
	server      *httpserver.Server
	redisClient *goredis.Client
	memIndex    *index.MemoryIndex
	gc          *scheduler.GarbageCollector
}

// New wires the service from cfg. When Redis is configured it must be
// reachable within RedisConnectTimeout.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewMetrics(registry)

	memIndex := index.NewMemoryIndex()

	var redisClient *goredis.Client
	var backing store.Backing
	if cfg.RedisEnabled() {
		loggerClient.Infof("Connecting to Redis at %s", cfg.RedisAddr)
		client, err := redis.New(ctx, RedisOptions(cfg), loggerClient)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		redisClient = client
		backing = redisstore.NewStore(client, cfg.CacheTTL)
		loggerClient.Info("Redis initialized successfully")
	} else {
		loggerClient.Info("BOOKMARKS_REDIS_ADDR not set, caching collections in memory only")
	}

	oauthClient, err := oauth.NewClient(oauth.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		AuthURL:      cfg.AuthURL,
		TokenURL:     cfg.TokenURL,
	})
	if err != nil {
		closeRedis(redisClient)
		return nil, err
	}

	sessions, err := session.NewManager(session.Options{
		Secret: []byte(cfg.SessionSecret),
		Secure: cfg.CookieSecure,
		MaxAge: cfg.SessionMaxAge,
	})
	if err != nil {
		closeRedis(redisClient)
		return nil, err
	}

	api := upstream.NewClient(upstream.Options{
		BaseURL:  cfg.APIBaseURL,
		PageSize: cfg.PageSize,
		Timeout:  cfg.PageTimeout,
	})

	f := fetcher.New(api, loggerClient, fetcher.Options{
		MaxPages:    cfg.MaxPages,
		RetryDelay:  cfg.RetryDelay,
		PageTimeout: cfg.PageTimeout,
		Metrics:     m,
	})

	svc := bookmarks.NewService(f, store.NewLayered(memIndex, backing, loggerClient, m), loggerClient, m,
		bookmarks.WithSweepTimeout(cfg.RequestTimeout))

	gc := scheduler.NewGarbageCollector(memIndex, loggerClient, m, cfg.GCInterval, cfg.IdleTTL)

	d := deps.Deps{
		Logger:            loggerClient,
		StartTime:         time.Now(),
		Build:             version.Get(),
		TimeNow:           time.Now,
		AllowedHosts:      cfg.AllowedHosts,
		AllowedCIDRS:      cfg.AllowedCIDRS,
		TrustProxy:        cfg.TrustProxy,
		RateLimitRPS:      cfg.RateLimitRPS,
		RateLimitBurst:    cfg.RateLimitBurst,
		RedisClient:       redisClient,
		MemoryIndex:       memIndex,
		Bookmarks:         svc,
		Sessions:          sessions,
		OAuth:             oauthClient,
		Identity:          api,
		PostLoginRedirect: cfg.PostLoginRedirect,
		PopularAuthors:    cfg.PopularAuthors,
		Gatherer:          registry,
	}

	return &App{
		cfg:         cfg,
		logger:      loggerClient,
		server:      httpserver.New(cfg, loggerClient, d),
		redisClient: redisClient,
		memIndex:    memIndex,
		gc:          gc,
	}, nil
}

// RedisOptions maps the configuration onto connector options.
func RedisOptions(cfg *config.Config) redis.ConnectOptions {
	return redis.ConnectOptions{
		Addr:           cfg.RedisAddr,
		User:           cfg.RedisUser,
		Password:       cfg.RedisPassword,
		RedisDB:        cfg.RedisDB,
		DialTimeout:    cfg.RedisDT,
		ReadTimeout:    cfg.RedisRT,
		WriteTimeout:   cfg.RedisWT,
		PoolSize:       cfg.RedisPoolSize,
		ConnectTimeout: cfg.RedisConnectTimeout,
		RetryInterval:  cfg.RedisRetryInterval,
		MaxWait:        cfg.RedisMaxWait,
		PingTimeout:    cfg.RedisPingTimeout,
		WarnThreshold:  cfg.RedisWarnThreshold,
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	defer func() { _ = a.logger.Sync() }()

	info := version.Get()
	a.logger.Infof("🚀 Starting bookmarks %s on %s", info.Version, a.cfg.ListenPort)
	a.logger.Info(info.String())

	if err := a.gc.Start(ctx); err != nil {
		return fmt.Errorf("failed to start garbage collector: %w", err)
	}
	a.logger.Info("garbage collector started",
		logger.Duration("interval", a.cfg.GCInterval),
		logger.Duration("idle_ttl", a.cfg.IdleTTL))

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case err := <-errCh:
		a.gc.Stop()
		closeRedis(a.redisClient)
		return err
	}

	a.gc.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}

	if a.redisClient != nil {
		utils.MustClose(a.redisClient, a.logger, "redis")
	}

	a.logger.Info("✅ bookmarks stopped cleanly",
		logger.Int("sessions_cached", a.memIndex.Count()))
	return nil
}

func closeRedis(c *goredis.Client) {
	if c != nil {
		utils.Close(c)
	}
}
