package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

const envPrefix = "BOOKMARKS_"

type Config struct {
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s
	RequestTimeout  time.Duration // per HTTP request, must cover a full fetch-all (default: 60s)

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	ConfigFile string // optional YAML file, values apply below environment variables

	// OAuth client
	ClientID          string // required
	ClientSecret      string // optional, empty = public client
	RedirectURL       string // required, ex: http://localhost:8080/login/callback
	AuthURL           string // authorize endpoint
	TokenURL          string // token endpoint
	PostLoginRedirect string // where the callback sends the browser (default: /api/bookmarks)

	// Upstream API
	APIBaseURL  string        // ex: https://api.twitter.com
	PageSize    int           // max_results per page (default: 100)
	MaxPages    int           // page cap for one fetch-all (default: 50)
	PageTimeout time.Duration // per page request (default: 10s)
	RetryDelay  time.Duration // delay before the single retry (default: 1s)

	// Session cookie
	SessionSecret string        // required, signs the session cookie
	CookieSecure  bool          // set Secure on cookies (enable behind HTTPS)
	SessionMaxAge time.Duration // default: 30 days

	// Cache
	CacheTTL       time.Duration // Redis TTL of a cached collection (default: 24h)
	IdleTTL        time.Duration // memory eviction after this long without reads (default: 2h)
	GCInterval     time.Duration // interval to run garbage collection (default: 10m)
	PopularAuthors int           // default number of popular authors in facets (default: 10)

	// Redis (optional, empty address = memory only)
	RedisAddr             string        // ex: "localhost:6379"
	RedisUser             string        // optional
	RedisPassword         string        // optional
	RedisPasswordRequired bool          // true => require password, false => allow empty password
	RedisDB               int           // Redis DB number
	RedisDT               time.Duration // Redis dial timeout (ex: 5s)
	RedisRT               time.Duration // Redis read timeout (ex: 3s)
	RedisWT               time.Duration // Redis write timeout (ex: 3s)
	RedisMaxWait          time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout      time.Duration // timeout for each ping attempt (ex: 5s)
	RedisPoolSize         int           // Redis connection pool size
	RedisConnectTimeout   time.Duration // Total time to retry connecting (ex: 30s)
	RedisRetryInterval    time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	RedisWarnThreshold    int           // warn after this many attempts

	// Access restrictions
	AllowedHosts   []string // optional, restrict access to specific Host headers
	AllowedCIDRS   []string // optional, restrict ops endpoints to specific IPs (e.g. "10.0.0.0/8, 127.0.0.1")
	TrustProxy     bool     // true => trust X-Forwarded-For headers (e.g. cloudflared)
	RateLimitRPS   float64  // refresh/login requests per second per client IP (default: 1)
	RateLimitBurst int      // burst for the limiter (default: 5)
}

// Load reads the configuration from the environment and, when
// BOOKMARKS_CONFIG_FILE is set, from that YAML file.
// Environment variables win over the file, the file wins over defaults.
// Panics when a required value is missing, like the rest of the startup path.
func Load() *Config {
	src := source{lookup: os.LookupEnv}
	if path := src.getenv("BOOKMARKS_CONFIG_FILE", ""); path != "" {
		values, err := readFile(path)
		if err != nil {
			panic(fmt.Sprintf("❌ FATAL: cannot load config file %s: %v", path, err))
		}
		src.file = values
	}
	return load(src)
}

func load(src source) *Config {
	cfg := &Config{
		// Server settings
		ListenPort:      src.getenv("BOOKMARKS_LISTEN_PORT", ":8080"),
		ShutdownTimeout: src.mustDuration("BOOKMARKS_SHUTDOWN_TIMEOUT", 5*time.Second),
		RequestTimeout:  src.mustDuration("BOOKMARKS_REQUEST_TIMEOUT", 60*time.Second),

		// Logging
		LogLevel:  src.getenv("BOOKMARKS_LOG_LEVEL", "info"),
		PrettyLog: src.mustBool("BOOKMARKS_PRETTY_LOG", true),

		ConfigFile: src.getenv("BOOKMARKS_CONFIG_FILE", ""),

		// OAuth client
		ClientID:          src.requireEnv("BOOKMARKS_CLIENT_ID"),
		ClientSecret:      src.getenv("BOOKMARKS_CLIENT_SECRET", ""),
		RedirectURL:       src.requireEnv("BOOKMARKS_REDIRECT_URL"),
		AuthURL:           src.getenv("BOOKMARKS_AUTH_URL", "https://twitter.com/i/oauth2/authorize"),
		TokenURL:          src.getenv("BOOKMARKS_TOKEN_URL", "https://api.twitter.com/2/oauth2/token"),
		PostLoginRedirect: src.getenv("BOOKMARKS_POST_LOGIN_REDIRECT", "/api/bookmarks"),

		// Upstream API
		APIBaseURL:  src.getenv("BOOKMARKS_API_BASE_URL", "https://api.twitter.com"),
		PageSize:    src.getenvInt("BOOKMARKS_PAGE_SIZE", 100),
		MaxPages:    src.getenvInt("BOOKMARKS_MAX_PAGES", 50),
		PageTimeout: src.mustDuration("BOOKMARKS_PAGE_TIMEOUT", 10*time.Second),
		RetryDelay:  src.mustDuration("BOOKMARKS_RETRY_DELAY", time.Second),

		// Session cookie
		SessionSecret: src.requireEnv("BOOKMARKS_SESSION_SECRET"),
		CookieSecure:  src.mustBool("BOOKMARKS_COOKIE_SECURE", false),
		SessionMaxAge: src.mustDuration("BOOKMARKS_SESSION_MAX_AGE", 30*24*time.Hour),

		// Cache
		CacheTTL:       src.mustDuration("BOOKMARKS_CACHE_TTL", 24*time.Hour),
		IdleTTL:        src.mustDuration("BOOKMARKS_IDLE_TTL", 2*time.Hour),
		GCInterval:     src.mustDuration("BOOKMARKS_GC_INTERVAL", 10*time.Minute),
		PopularAuthors: src.getenvInt("BOOKMARKS_POPULAR_AUTHORS", 10),

		// Redis settings
		RedisAddr:             src.getenv("BOOKMARKS_REDIS_ADDR", ""),
		RedisUser:             src.getenv("BOOKMARKS_REDIS_USERNAME", ""),
		RedisPasswordRequired: src.mustBool("BOOKMARKS_REDIS_PASSWORD_REQUIRED", false),
		RedisPassword:         src.getenv("BOOKMARKS_REDIS_PASSWORD", ""),
		RedisDB:               src.getenvInt("BOOKMARKS_REDIS_DB", 0),
		RedisDT:               src.mustDuration("BOOKMARKS_REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:               src.mustDuration("BOOKMARKS_REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:               src.mustDuration("BOOKMARKS_REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisMaxWait:          src.mustDuration("BOOKMARKS_REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:      src.mustDuration("BOOKMARKS_REDIS_PING_TIMEOUT", 5*time.Second),
		RedisPoolSize:         src.getenvInt("BOOKMARKS_REDIS_POOL_SIZE", 10),
		RedisConnectTimeout:   src.mustDuration("BOOKMARKS_REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:    src.mustDuration("BOOKMARKS_REDIS_RETRY_INTERVAL", 2*time.Second),
		RedisWarnThreshold:    src.getenvInt("BOOKMARKS_REDIS_WARN_THRESHOLD", 3),

		// Access restrictions
		AllowedHosts:   splitAndTrim(src.getenv("BOOKMARKS_ALLOWED_HOSTS", "")),
		AllowedCIDRS:   parseAllowedIPs(src.getenv("BOOKMARKS_ALLOWED_CIDRS", "127.0.0.1/32, ::1/128")),
		TrustProxy:     src.mustBool("BOOKMARKS_TRUST_PROXY", false),
		RateLimitRPS:   src.mustFloat("BOOKMARKS_RATE_LIMIT_RPS", 1),
		RateLimitBurst: src.getenvInt("BOOKMARKS_RATE_LIMIT_BURST", 5),
	}

	if len(cfg.SessionSecret) < 16 {
		panic("❌ FATAL: BOOKMARKS_SESSION_SECRET must be at least 16 characters")
	}

	// Validate Redis password configuration
	if cfg.RedisAddr != "" && cfg.RedisPasswordRequired && cfg.RedisPassword == "" {
		panic("❌ FATAL: BOOKMARKS_REDIS_PASSWORD is required when BOOKMARKS_REDIS_PASSWORD_REQUIRED=true")
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		log.Printf("[DEBUG] cfg: %+v\n", cfg.Redacted())
	}

	return cfg
}

// Redacted returns a copy safe to print.
func (c *Config) Redacted() Config {
	cp := *c
	cp.SessionSecret = "***REDACTED***"
	if cp.ClientSecret != "" {
		cp.ClientSecret = "***REDACTED***"
	}
	if cp.RedisPassword != "" {
		cp.RedisPassword = "***REDACTED***"
	}
	if cp.RedisUser != "" {
		cp.RedisUser = "***REDACTED***"
	}
	return cp
}

// RedisEnabled reports whether a Redis backing store is configured.
func (c *Config) RedisEnabled() bool {
	return c.RedisAddr != ""
}

// source resolves a key from the environment first, then the config file.
type source struct {
	lookup func(string) (string, bool)
	file   map[string]string
}

func (s source) value(key string) string {
	if s.lookup != nil {
		if v, ok := s.lookup(key); ok && v != "" {
			return v
		}
	}
	return s.file[key]
}

// helpers
func (s source) getenv(key, def string) string {
	if v := s.value(key); v != "" {
		return v
	}
	return def
}

func (s source) requireEnv(key string) string {
	v := s.value(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	return v
}

func (s source) getenvInt(key string, def int) int {
	if v := s.value(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func (s source) mustBool(key string, def bool) bool {
	if v := s.value(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func (s source) mustDuration(key string, def time.Duration) time.Duration {
	if v := s.value(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func (s source) mustFloat(key string, def float64) float64 {
	if v := s.value(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func parseAllowedIPs(allowed string) []string {
	if allowed == "" {
		return nil
	}
	ips := make([]string, 0, 4)
	for _, ip := range splitAndTrim(allowed) {
		if ip != "" {
			ips = append(ips, ip)
		}
	}
	return ips
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
