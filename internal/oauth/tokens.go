package oauth

import (
	"context"
	"sync"
	"time"

	"github.com/MrSnakeDoc/bookmarks/internal/domain"
)

// TokenProvider supplies the bearer token for upstream calls.
type TokenProvider interface {
	// CurrentToken returns the access token, or an error of kind
	// domain.KindAuthExpired when it is no longer usable.
	CurrentToken() (string, error)

	// Refresh obtains a new access token. Failure is of kind
	// domain.KindAuthRefreshFailed and means the session is over.
	Refresh(ctx context.Context) (string, error)
}

// Refresher runs the refresh-token grant. *Client implements it.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*Token, error)
}

// SessionTokens is a TokenProvider over one user session.
// A successful refresh updates the session in place and calls the OnRefresh
// hook so the caller can persist the new tokens.
type SessionTokens struct {
	mu        sync.Mutex
	session   *domain.Session
	refresher Refresher
	now       func() time.Time
	onRefresh func(domain.Session)
}

// Option configures SessionTokens.
type Option func(*SessionTokens)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(t *SessionTokens) { t.now = now }
}

// WithOnRefresh registers a hook called with a copy of the refreshed session.
func WithOnRefresh(fn func(domain.Session)) Option {
	return func(t *SessionTokens) { t.onRefresh = fn }
}

// NewSessionTokens wraps session. The session is mutated on refresh.
func NewSessionTokens(session *domain.Session, refresher Refresher, opts ...Option) *SessionTokens {
	t := &SessionTokens{
		session:   session,
		refresher: refresher,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// CurrentToken implements TokenProvider.
func (t *SessionTokens) CurrentToken() (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.session.Expired(t.now()) {
		return "", domain.NewError(domain.KindAuthExpired, "oauth.CurrentToken", nil)
	}
	return t.session.AccessToken, nil
}

// Refresh implements TokenProvider.
func (t *SessionTokens) Refresh(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.refresher == nil || t.session == nil {
		return "", domain.NewError(domain.KindAuthRefreshFailed, "oauth.Refresh", nil)
	}

	tok, err := t.refresher.Refresh(ctx, t.session.RefreshToken)
	if err != nil {
		return "", domain.NewError(domain.KindAuthRefreshFailed, "oauth.Refresh", err)
	}

	t.session.AccessToken = tok.AccessToken
	t.session.RefreshToken = tok.RefreshToken
	t.session.ExpiresAt = tok.ExpiresAt

	if t.onRefresh != nil {
		t.onRefresh(*t.session)
	}
	return tok.AccessToken, nil
}

// Session returns a copy of the current session state.
func (t *SessionTokens) Session() domain.Session {
	t.mu.Lock()
	defer t.mu.Unlock()
	return *t.session
}

// StaticToken is a TokenProvider for a fixed bearer token, used by the CLI.
// It never expires and cannot be refreshed.
type StaticToken string

// CurrentToken implements TokenProvider.
func (s StaticToken) CurrentToken() (string, error) {
	if s == "" {
		return "", domain.NewError(domain.KindAuthExpired, "oauth.StaticToken", nil)
	}
	return string(s), nil
}

// Refresh implements TokenProvider.
func (s StaticToken) Refresh(context.Context) (string, error) {
	return "", domain.NewError(domain.KindAuthRefreshFailed, "oauth.StaticToken", nil)
}
