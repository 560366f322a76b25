// Package session keeps the user session in an HTTP-only cookie signed as an
// HS256 JWT. Nothing about the session is stored server side except the
// cached collection, keyed by the session ID.
package session

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/MrSnakeDoc/bookmarks/internal/domain"
)

const (
	CookieName      = "bookmarks_session"
	LoginCookieName = "bookmarks_oauth_state"

	DefaultMaxAge = 30 * 24 * time.Hour
	loginMaxAge   = 10 * time.Minute

	defaultIssuer = "bookmarks"
)

// claims is the signed payload of the session cookie.
type claims struct {
	jwt.RegisteredClaims
	Session domain.Session `json:"session"`
}

// loginClaims carries the OAuth state and PKCE verifier between /login and
// the callback.
type loginClaims struct {
	jwt.RegisteredClaims
	State    string `json:"state"`
	Verifier string `json:"verifier"`
}

// Options configures the Manager.
type Options struct {
	// Secret signs the cookies. Required.
	Secret []byte
	// Secure sets the Secure attribute. Enable behind HTTPS.
	Secure bool
	// MaxAge of the session cookie. Default 30 days.
	MaxAge time.Duration
	// Issuer of the JWT. Default "bookmarks".
	Issuer string
}

// Manager encodes and decodes session cookies.
type Manager struct {
	secret []byte
	secure bool
	maxAge time.Duration
	issuer string
	now    func() time.Time
}

// NewManager validates opts and applies defaults.
func NewManager(opts Options) (*Manager, error) {
	if len(opts.Secret) < 16 {
		return nil, errors.New("session: secret must be at least 16 bytes")
	}
	if opts.MaxAge <= 0 {
		opts.MaxAge = DefaultMaxAge
	}
	if opts.Issuer == "" {
		opts.Issuer = defaultIssuer
	}
	return &Manager{
		secret: opts.Secret,
		secure: opts.Secure,
		maxAge: opts.MaxAge,
		issuer: opts.Issuer,
		now:    time.Now,
	}, nil
}

// New starts a session for a freshly authenticated user.
func New(accessToken, refreshToken string, expiresAt time.Time, me domain.Author) domain.Session {
	return domain.Session{
		ID:              uuid.NewString(),
		AccessToken:     accessToken,
		RefreshToken:    refreshToken,
		ExpiresAt:       expiresAt,
		UserID:          me.ID,
		Username:        me.Username,
		Name:            me.Name,
		ProfileImageURL: me.ProfileImageURL,
	}
}

// Encode signs s into a token string.
func (m *Manager) Encode(s domain.Session) (string, error) {
	now := m.now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   s.UserID,
			ID:        s.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.maxAge)),
		},
		Session: s,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign session: %w", err)
	}
	return token, nil
}

// Decode verifies token and returns the session it carries.
// Any failure is of kind domain.KindNotAuthenticated.
func (m *Manager) Decode(token string) (*domain.Session, error) {
	var c claims
	if err := m.parse(token, &c); err != nil {
		return nil, err
	}
	if c.Session.ID == "" || c.Session.UserID == "" {
		return nil, domain.NewError(domain.KindNotAuthenticated, "session.Decode", errors.New("incomplete session"))
	}
	return &c.Session, nil
}

// Write sets the session cookie on w.
func (m *Manager) Write(w http.ResponseWriter, s domain.Session) error {
	token, err := m.Encode(s)
	if err != nil {
		return err
	}
	http.SetCookie(w, m.cookie(CookieName, token, m.maxAge))
	return nil
}

// Read returns the session carried by r.
func (m *Manager) Read(r *http.Request) (*domain.Session, error) {
	ck, err := r.Cookie(CookieName)
	if err != nil {
		return nil, domain.NewError(domain.KindNotAuthenticated, "session.Read", err)
	}
	return m.Decode(ck.Value)
}

// Clear expires the session cookie.
func (m *Manager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, m.cookie(CookieName, "", -1))
}

// WriteLoginState stores the OAuth state and PKCE verifier in a short-lived cookie.
func (m *Manager) WriteLoginState(w http.ResponseWriter, state, verifier string) error {
	now := m.now()
	c := loginClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(loginMaxAge)),
		},
		State:    state,
		Verifier: verifier,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(m.secret)
	if err != nil {
		return fmt.Errorf("sign login state: %w", err)
	}
	http.SetCookie(w, m.cookie(LoginCookieName, token, loginMaxAge))
	return nil
}

// ReadLoginState returns the state and verifier saved by WriteLoginState.
func (m *Manager) ReadLoginState(r *http.Request) (state, verifier string, err error) {
	ck, err := r.Cookie(LoginCookieName)
	if err != nil {
		return "", "", domain.NewError(domain.KindNotAuthenticated, "session.ReadLoginState", err)
	}
	var c loginClaims
	if err := m.parse(ck.Value, &c); err != nil {
		return "", "", err
	}
	return c.State, c.Verifier, nil
}

// ClearLoginState expires the login state cookie.
func (m *Manager) ClearLoginState(w http.ResponseWriter) {
	http.SetCookie(w, m.cookie(LoginCookieName, "", -1))
}

func (m *Manager) parse(token string, c jwt.Claims) error {
	_, err := jwt.ParseWithClaims(token, c,
		func(*jwt.Token) (any, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return domain.NewError(domain.KindNotAuthenticated, "session.parse", err)
	}
	return nil
}

func (m *Manager) cookie(name, value string, maxAge time.Duration) *http.Cookie {
	ck := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
	if maxAge < 0 {
		ck.MaxAge = -1
		ck.Expires = time.Unix(0, 0)
	} else {
		ck.MaxAge = int(maxAge.Seconds())
	}
	return ck
}
