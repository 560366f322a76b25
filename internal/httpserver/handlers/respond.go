package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/MrSnakeDoc/bookmarks/internal/domain"
	"github.com/MrSnakeDoc/bookmarks/internal/httpserver/deps"
	"github.com/MrSnakeDoc/bookmarks/internal/httpserver/mw"
	"github.com/MrSnakeDoc/bookmarks/internal/logger"
)

const bookmarksCacheControl = "private, max-age=30"

type errorResponse struct {
	Error string `json:"error"`
	Retry bool   `json:"retry,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps a pipeline error to its HTTP response.
// A failed refresh ends the session: the cookie is cleared and the client
// is told to log in again.
func writeError(w http.ResponseWriter, r *http.Request, d deps.Deps, err error) {
	w.Header().Set("Cache-Control", "no-store")

	switch domain.KindOf(err) {
	case domain.KindAuthRefreshFailed:
		d.Logger.Info("session ended after failed token refresh", logger.Error(err))
		d.Sessions.Clear(w)
		mw.Reauthenticate(w)
	case domain.KindAuthExpired, domain.KindNotAuthenticated:
		mw.Reauthenticate(w)
	case domain.KindPaginationRunaway:
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "pagination_runaway", Retry: true})
	case domain.KindUpstreamFetchFailed:
		if r.Context().Err() != nil {
			d.Logger.Debug("request cancelled during fetch", logger.Error(err))
		} else {
			d.Logger.Warn("bookmark fetch failed", logger.Error(err))
		}
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "could not load bookmarks", Retry: true})
	default:
		d.Logger.Error("unexpected error", logger.Error(err), logger.String("path", r.URL.Path))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func badRequest(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
}

// requestSession returns the session attached by mw.RequireSession, writing
// a 401 when it is missing.
func requestSession(w http.ResponseWriter, r *http.Request) (*mw.RequestSession, bool) {
	rs, ok := mw.SessionFrom(r.Context())
	if !ok {
		mw.Reauthenticate(w)
	}
	return rs, ok
}
