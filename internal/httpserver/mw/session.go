package mw

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/MrSnakeDoc/bookmarks/internal/domain"
	"github.com/MrSnakeDoc/bookmarks/internal/logger"
	"github.com/MrSnakeDoc/bookmarks/internal/oauth"
	"github.com/MrSnakeDoc/bookmarks/internal/session"
)

type sessionKey struct{}

// RequestSession is the authenticated session attached to a request.
type RequestSession struct {
	ID       string
	Identity domain.Identity
	Tokens   *oauth.SessionTokens
}

// SessionFrom returns the session stored by RequireSession.
func SessionFrom(ctx context.Context) (*RequestSession, bool) {
	rs, ok := ctx.Value(sessionKey{}).(*RequestSession)
	return rs, ok
}

// WithSession stores rs on ctx.
func WithSession(ctx context.Context, rs *RequestSession) context.Context {
	return context.WithValue(ctx, sessionKey{}, rs)
}

// RequireSession rejects requests without a valid session cookie with
// 401 {"error":"reauthenticate"}. An expired access token is not rejected
// here: the fetch refreshes it and the new tokens are written back to the
// cookie.
func RequireSession(sessions *session.Manager, refresher oauth.Refresher, log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s, err := sessions.Read(r)
			if err != nil {
				if _, cookieErr := r.Cookie(session.CookieName); cookieErr == nil {
					log.Debug("dropping invalid session cookie", logger.Error(err))
					sessions.Clear(w)
				}
				Reauthenticate(w)
				return
			}

			tokens := oauth.NewSessionTokens(s, refresher,
				oauth.WithOnRefresh(func(updated domain.Session) {
					if err := sessions.Write(w, updated); err != nil {
						log.Warn("failed to persist refreshed session", logger.Error(err))
					}
				}),
			)

			rs := &RequestSession{ID: s.ID, Identity: s.Identity(), Tokens: tokens}
			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), rs)))
		})
	}
}

// Reauthenticate writes the 401 response telling the client to log in again.
func Reauthenticate(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "reauthenticate"})
}
