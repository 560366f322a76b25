// Package oauth implements the OAuth 2.0 authorization-code flow with PKCE
// against the X API and the per-session token provider used while fetching.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

const (
	DefaultAuthURL  = "https://twitter.com/i/oauth2/authorize"
	DefaultTokenURL = "https://api.twitter.com/2/oauth2/token"

	// fallbackLifetime applies when the token endpoint omits expires_in.
	fallbackLifetime = 2 * time.Hour
)

// DefaultScopes grant read access to posts, users and bookmarks, plus a
// refresh token.
var DefaultScopes = []string{"tweet.read", "users.read", "bookmark.read", "offline.access"}

// Config holds the OAuth client registration.
type Config struct {
	// ClientID of the registered application.
	ClientID string

	// ClientSecret is empty for public clients. When set, credentials are
	// sent with HTTP basic auth instead of in the form body.
	ClientSecret string

	// RedirectURL receives the authorization code.
	// Example: "http://localhost:8080/login/callback"
	RedirectURL string

	AuthURL  string
	TokenURL string
	Scopes   []string

	// HTTPClient is used for token requests. Optional.
	HTTPClient *http.Client
}

// Token is the result of a code exchange or a refresh.
type Token struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Client performs the authorization-code and refresh-token grants.
// Safe for concurrent use.
type Client struct {
	cfg        oauth2.Config
	httpClient *http.Client
	now        func() time.Time
}

// NewClient validates cfg and applies defaults.
func NewClient(cfg Config) (*Client, error) {
	if cfg.ClientID == "" {
		return nil, errors.New("oauth: client id is required")
	}
	if cfg.RedirectURL == "" {
		return nil, errors.New("oauth: redirect url is required")
	}
	if cfg.AuthURL == "" {
		cfg.AuthURL = DefaultAuthURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultTokenURL
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = DefaultScopes
	}

	style := oauth2.AuthStyleInParams
	if cfg.ClientSecret != "" {
		style = oauth2.AuthStyleInHeader
	}

	return &Client{
		cfg: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: style,
			},
		},
		httpClient: cfg.HTTPClient,
		now:        time.Now,
	}, nil
}

// NewVerifier returns a fresh PKCE code verifier.
func NewVerifier() string {
	return oauth2.GenerateVerifier()
}

// AuthCodeURL returns the authorization URL the user is redirected to.
// The S256 challenge of verifier is attached.
func (c *Client) AuthCodeURL(state, verifier string) string {
	return c.cfg.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
}

// Exchange trades an authorization code for tokens.
func (c *Client) Exchange(ctx context.Context, code, verifier string) (*Token, error) {
	tok, err := c.cfg.Exchange(c.context(ctx), code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}
	return c.convert(tok), nil
}

// Refresh runs the refresh-token grant.
// The returned token keeps refreshToken when the server does not rotate it.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*Token, error) {
	if refreshToken == "" {
		return nil, errors.New("refresh: no refresh token")
	}
	tok, err := c.cfg.TokenSource(c.context(ctx), &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, fmt.Errorf("refresh token: %w", err)
	}
	out := c.convert(tok)
	if out.RefreshToken == "" {
		out.RefreshToken = refreshToken
	}
	return out, nil
}

func (c *Client) context(ctx context.Context) context.Context {
	if c.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}

func (c *Client) convert(tok *oauth2.Token) *Token {
	expiry := tok.Expiry
	if expiry.IsZero() {
		expiry = c.now().Add(fallbackLifetime)
	}
	return &Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    expiry,
	}
}
