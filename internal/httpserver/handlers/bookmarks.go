package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MrSnakeDoc/bookmarks/internal/domain"
	"github.com/MrSnakeDoc/bookmarks/internal/httpserver/deps"
)

type collectionResponse struct {
	Username string `json:"username"`
	Total    int    `json:"total"`
	*domain.Collection
}

// Bookmarks serves the session's complete collection, fetching it on first use.
func Bookmarks(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rs, ok := requestSession(w, r)
		if !ok {
			return
		}

		c, err := d.Bookmarks.Collection(r.Context(), rs.ID, rs.Identity, rs.Tokens)
		if err != nil {
			writeError(w, r, d, err)
			return
		}

		w.Header().Set("Cache-Control", bookmarksCacheControl)
		writeJSON(w, http.StatusOK, collectionResponse{
			Username:   rs.Identity.Username,
			Total:      c.Len(),
			Collection: c,
		})
	}
}

// Facets serves the filter dimensions of the whole collection.
func Facets(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := authorsLimit(r, d.PopularAuthors)
		if err != nil {
			badRequest(w, err)
			return
		}

		rs, ok := requestSession(w, r)
		if !ok {
			return
		}

		c, err := d.Bookmarks.Collection(r.Context(), rs.ID, rs.Identity, rs.Tokens)
		if err != nil {
			writeError(w, r, d, err)
			return
		}

		w.Header().Set("Cache-Control", bookmarksCacheControl)
		writeJSON(w, http.StatusOK, domain.DeriveFacets(c, limit))
	}
}

// authorsLimit reads ?authors_limit=, 0 meaning every author.
func authorsLimit(r *http.Request, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("authors_limit"))
	if raw == "" {
		if def <= 0 {
			return domain.DefaultPopularAuthors, nil
		}
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid authors_limit %q: must be a non-negative integer", raw)
	}
	return n, nil
}

type refreshResponse struct {
	Total     int       `json:"total"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Refresh drops the cached collection and runs a new fetch-all.
func Refresh(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rs, ok := requestSession(w, r)
		if !ok {
			return
		}

		c, err := d.Bookmarks.Refresh(r.Context(), rs.ID, rs.Identity, rs.Tokens)
		if err != nil {
			writeError(w, r, d, err)
			return
		}

		w.Header().Set("Cache-Control", "no-store")
		writeJSON(w, http.StatusOK, refreshResponse{Total: c.Len(), FetchedAt: c.FetchedAt})
	}
}
