package mw

import (
	"net/http"
	"strings"

	"github.com/MrSnakeDoc/bookmarks/internal/logger"
)

func passthrough(next http.Handler) http.Handler { return next }

func forbid(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
}

// AllowOnlyCIDRS restricts a route to the given IPs and CIDR prefixes.
// Unparsable entries are skipped; an empty list disables the filter.
func AllowOnlyCIDRS(allowed []string, trustProxy bool, log logger.Logger) func(http.Handler) http.Handler {
	m := newIPMatcher(allowed)
	if m.isEmpty() {
		return passthrough
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ip := ClientIP(r, trustProxy); !m.allow(ip) {
				log.Debug("client ip not allowed",
					logger.String("ip", ip),
					logger.String("path", r.URL.Path))
				forbid(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// hostMatcher holds lowercased exact hosts and "*.suffix" wildcards.
type hostMatcher struct {
	exact    map[string]struct{}
	suffixes []string // ".example.com" for "*.example.com"
}

func newHostMatcher(patterns []string) hostMatcher {
	m := hostMatcher{exact: make(map[string]struct{})}
	for _, p := range patterns {
		p = strings.ToLower(strings.TrimSpace(p))
		switch {
		case p == "":
		case strings.HasPrefix(p, "*."):
			m.suffixes = append(m.suffixes, p[1:])
		default:
			m.exact[p] = struct{}{}
		}
	}
	return m
}

func (m hostMatcher) empty() bool { return len(m.exact) == 0 && len(m.suffixes) == 0 }

func (m hostMatcher) match(host string) bool {
	host = strings.ToLower(hostNoPort(host))
	if _, ok := m.exact[host]; ok {
		return true
	}
	for _, s := range m.suffixes {
		if strings.HasSuffix(host, s) {
			return true
		}
	}
	return false
}

// EnforceHost rejects requests whose Host header matches none of
// allowedHosts ("bookmarks.local", "*.example.com"). The port is ignored.
// An empty list disables the check.
func EnforceHost(allowedHosts []string, log logger.Logger) func(http.Handler) http.Handler {
	m := newHostMatcher(allowedHosts)
	if m.empty() {
		return passthrough
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !m.match(r.Host) {
				log.Debug("host not allowed", logger.String("host", r.Host))
				forbid(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
