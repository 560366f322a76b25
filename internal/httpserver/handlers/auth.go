package handlers

import (
	"crypto/subtle"
	"net/http"

	"github.com/google/uuid"

	"github.com/MrSnakeDoc/bookmarks/internal/httpserver/deps"
	"github.com/MrSnakeDoc/bookmarks/internal/logger"
	"github.com/MrSnakeDoc/bookmarks/internal/oauth"
	"github.com/MrSnakeDoc/bookmarks/internal/session"
)

// Login starts the authorization-code flow. State and PKCE verifier travel
// in a short-lived signed cookie to the callback.
func Login(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state := uuid.NewString()
		verifier := oauth.NewVerifier()

		if err := d.Sessions.WriteLoginState(w, state, verifier); err != nil {
			d.Logger.Error("failed to write login state", logger.Error(err))
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
			return
		}

		w.Header().Set("Cache-Control", "no-store")
		http.Redirect(w, r, d.OAuth.AuthCodeURL(state, verifier), http.StatusFound)
	}
}

// Callback completes the login: exchange the code, look up the user, start
// the session. A callback without a code (denied consent) goes back to /.
func Callback(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		code := q.Get("code")
		if code == "" {
			if reason := q.Get("error"); reason != "" {
				d.Logger.Info("authorization denied", logger.String("reason", reason))
			}
			d.Sessions.ClearLoginState(w)
			http.Redirect(w, r, "/", http.StatusFound)
			return
		}

		state, verifier, err := d.Sessions.ReadLoginState(r)
		d.Sessions.ClearLoginState(w)
		if err != nil || subtle.ConstantTimeCompare([]byte(state), []byte(q.Get("state"))) != 1 {
			d.Logger.Warn("login callback with invalid state", logger.Error(err))
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_state"})
			return
		}

		tok, err := d.OAuth.Exchange(r.Context(), code, verifier)
		if err != nil {
			d.Logger.Warn("code exchange failed", logger.Error(err))
			writeJSON(w, http.StatusBadGateway, errorResponse{Error: "login failed", Retry: true})
			return
		}

		me, err := d.Identity.Me(r.Context(), tok.AccessToken)
		if err != nil {
			d.Logger.Warn("identity lookup failed", logger.Error(err))
			writeJSON(w, http.StatusBadGateway, errorResponse{Error: "login failed", Retry: true})
			return
		}

		s := session.New(tok.AccessToken, tok.RefreshToken, tok.ExpiresAt, *me)
		if err := d.Sessions.Write(w, s); err != nil {
			d.Logger.Error("failed to write session", logger.Error(err))
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
			return
		}

		d.Logger.Info("user logged in", logger.String("username", me.Username))

		target := d.PostLoginRedirect
		if target == "" {
			target = "/api/bookmarks"
		}
		http.Redirect(w, r, target, http.StatusFound)
	}
}

// Logout clears the session cookie and the cached collection.
func Logout(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s, err := d.Sessions.Read(r); err == nil {
			if err := d.Bookmarks.Logout(r.Context(), s.ID); err != nil {
				d.Logger.Warn("failed to clear cached collection on logout", logger.Error(err))
			}
			d.Logger.Info("user logged out", logger.String("username", s.Username))
		}

		d.Sessions.Clear(w)
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}

type homeResponse struct {
	Authenticated bool   `json:"authenticated"`
	Username      string `json:"username,omitempty"`
	Login         string `json:"login,omitempty"`
	Bookmarks     string `json:"bookmarks,omitempty"`
}

// Home tells the client where to go next.
func Home(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")

		s, err := d.Sessions.Read(r)
		if err != nil {
			writeJSON(w, http.StatusOK, homeResponse{Login: "/login"})
			return
		}
		writeJSON(w, http.StatusOK, homeResponse{
			Authenticated: true,
			Username:      s.Username,
			Bookmarks:     "/api/bookmarks",
		})
	}
}
