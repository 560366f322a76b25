package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/bookmarks/internal/domain"
	"github.com/MrSnakeDoc/bookmarks/internal/httpserver/deps"
	"github.com/MrSnakeDoc/bookmarks/internal/logger"
)

type queryEcho struct {
	Query  string `json:"query,omitempty"`
	Author string `json:"author,omitempty"`
	Year   int    `json:"year,omitempty"`
	Month  string `json:"month,omitempty"`
	Sort   string `json:"sort"`
}

type sectionResponse struct {
	Label   string         `json:"label"`
	Entries []domain.Entry `json:"entries"`
}

type searchResponse struct {
	Filters    queryEcho         `json:"filters"`
	Searchable int               `json:"searchable"`
	Results    int               `json:"results"`
	Entries    []domain.Entry    `json:"entries"`
	Sections   []sectionResponse `json:"sections"`
	Facets     domain.Facets     `json:"facets"`
}

// Search filters the session's collection.
//
//	GET /api/bookmarks/search?query=&author=&year=&month=&sort=&authors_limit=
//
// Invalid parameters are a 400. The response carries the matching entries,
// the same entries grouped by month and year, and the facets of the whole
// collection.
func Search(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := domain.ParseQuery(r.URL.Query())
		if err != nil {
			badRequest(w, err)
			return
		}
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

		posts := domain.Filter(c, q)
		entries := c.Resolve(posts)

		groups := domain.GroupByMonthYear(posts)
		sections := make([]sectionResponse, 0, len(groups))
		for _, g := range groups {
			resolved := c.Resolve(g.Posts)
			if len(resolved) == 0 {
				continue
			}
			sections = append(sections, sectionResponse{Label: g.Label, Entries: resolved})
		}

		d.Logger.Debug("bookmark search",
			logger.String("query", q.Text),
			logger.String("author", q.Author),
			logger.Int("results", len(entries)),
			logger.Int("searchable", c.Len()))

		w.Header().Set("Cache-Control", bookmarksCacheControl)
		writeJSON(w, http.StatusOK, searchResponse{
			Filters: queryEcho{
				Query:  q.Text,
				Author: q.Author,
				Year:   q.Year,
				Month:  q.Month,
				Sort:   string(q.Sort),
			},
			Searchable: c.Len(),
			Results:    len(entries),
			Entries:    entries,
			Sections:   sections,
			Facets:     domain.DeriveFacets(c, limit),
		})
	}
}
