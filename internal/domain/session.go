package domain

import "time"

// Session is the authenticated user's state, owned by the session layer.
// The bookmark pipeline only reads AccessToken and ExpiresAt, and asks for a
// refresh or a logout when the token is no longer usable.
type Session struct {
	// ID scopes the cached collection. It survives token refreshes.
	ID string `json:"sid"`

	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`

	UserID          string `json:"user_id"`
	Username        string `json:"username"`
	Name            string `json:"name,omitempty"`
	ProfileImageURL string `json:"profile_image_url,omitempty"`
}

// Expired reports whether the access token is unusable at now.
func (s *Session) Expired(now time.Time) bool {
	if s == nil || s.AccessToken == "" {
		return true
	}
	return !now.Before(s.ExpiresAt)
}

// Identity returns the user the bookmarks belong to.
func (s *Session) Identity() Identity {
	return Identity{UserID: s.UserID, Username: s.Username}
}

// Identity names the account whose bookmarks are fetched.
type Identity struct {
	UserID   string
	Username string
}
