package mw

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
)

const (
	defaultRateLimitEntries = 10_000
	defaultRateLimitIdleTTL = 15 * time.Minute
)

// RateLimitConfig configures a per-client-IP token bucket.
type RateLimitConfig struct {
	Burst           int              // bucket size, reported as X-RateLimit-Limit
	RefillPerSecond float64          // tokens added back per second
	MaxEntries      int              // clients tracked at once, least recently seen dropped first
	IdleTTL         time.Duration    // a client unseen this long starts over with a full bucket
	TrustProxy      bool             // resolve the client IP from proxy headers
	Now             func() time.Time // bucket clock, time.Now when nil
}

type limiter struct {
	cfg     RateLimitConfig
	mu      sync.Mutex
	clients *expirable.LRU[string, *rate.Limiter]
}

func newLimiter(cfg RateLimitConfig) *limiter {
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}
	if cfg.RefillPerSecond <= 0 {
		cfg.RefillPerSecond = 1
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = defaultRateLimitEntries
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = defaultRateLimitIdleTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &limiter{
		cfg:     cfg,
		clients: expirable.NewLRU[string, *rate.Limiter](cfg.MaxEntries, nil, cfg.IdleTTL),
	}
}

// bucket returns the limiter of ip, creating a full one for new clients.
// Every hit pushes the idle expiry back.
func (l *limiter) bucket(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.clients.Get(ip)
	if !ok {
		lim = rate.NewLimiter(rate.Limit(l.cfg.RefillPerSecond), l.cfg.Burst)
	}
	l.clients.Add(ip, lim)
	return lim
}

// take spends one token at now. Without one it returns the whole seconds
// until the next token, at least 1.
func take(lim *rate.Limiter, now time.Time) (ok bool, remaining, retryAfter int) {
	res := lim.ReserveN(now, 1)
	if !res.OK() {
		return false, 0, 1
	}
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return false, 0, max(1, int(math.Ceil(delay.Seconds())))
	}
	return true, int(lim.TokensAt(now)), 0
}

// RateLimit throttles requests per client IP. It guards the endpoints that
// start an upstream sweep or an OAuth round trip.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	l := newLimiter(cfg)
	limit := strconv.Itoa(l.cfg.Burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, remaining, retryAfter := take(l.bucket(ClientIP(r, l.cfg.TrustProxy)), l.cfg.Now())

			w.Header().Set("X-RateLimit-Limit", limit)
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			if !ok {
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
