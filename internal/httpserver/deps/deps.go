package deps

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/bookmarks/internal/bookmarks"
	"github.com/MrSnakeDoc/bookmarks/internal/domain"
	"github.com/MrSnakeDoc/bookmarks/internal/index"
	"github.com/MrSnakeDoc/bookmarks/internal/logger"
	"github.com/MrSnakeDoc/bookmarks/internal/oauth"
	"github.com/MrSnakeDoc/bookmarks/internal/session"
	"github.com/MrSnakeDoc/bookmarks/internal/version"
)

// Authenticator runs the OAuth authorization-code flow. *oauth.Client implements it.
type Authenticator interface {
	AuthCodeURL(state, verifier string) string
	Exchange(ctx context.Context, code, verifier string) (*oauth.Token, error)
	Refresh(ctx context.Context, refreshToken string) (*oauth.Token, error)
}

// IdentityLookup resolves the authenticated user. *upstream.Client implements it.
type IdentityLookup interface {
	Me(ctx context.Context, token string) (*domain.Author, error)
}

// Deps is everything handlers and middlewares close over.
type Deps struct {
	Logger    logger.Logger
	StartTime time.Time
	Build     version.Info
	TimeNow   func() time.Time // for testing, defaults to time.Now

	AllowedHosts   []string // Host headers allowed to access the server
	AllowedCIDRS   []string // IPs allowed to access ops endpoints
	TrustProxy     bool     // true if running behind a trusted reverse proxy (e.g., cloudflared)
	RateLimitRPS   float64  // refill rate for login/refresh limiter
	RateLimitBurst int

	RedisClient *redis.Client      // nil when running memory-only
	MemoryIndex *index.MemoryIndex // in-memory collections, also read by /infra

	Bookmarks *bookmarks.Service
	Sessions  *session.Manager
	OAuth     Authenticator
	Identity  IdentityLookup

	PostLoginRedirect string // where /login/callback sends the browser
	PopularAuthors    int    // default facet size

	Gatherer prometheus.Gatherer // served on /metrics, nil disables it
}

// Now returns the configured clock.
func (d Deps) Now() time.Time {
	if d.TimeNow != nil {
		return d.TimeNow()
	}
	return time.Now()
}
