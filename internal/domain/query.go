package domain

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// SortOrder controls the order of a filtered view.
type SortOrder string

const (
	// SortLatest keeps the collection order (newest first as served upstream).
	SortLatest SortOrder = "latest"
	// SortOldest sorts ascending by creation time.
	SortOldest SortOrder = "oldest"
)

// Query holds the user-supplied filters for one request.
// The zero value matches every post in collection order.
type Query struct {
	Text   string    // case-insensitive literal substring
	Author string    // username, "@" prefix optional
	Year   int       // 4-digit UTC year, 0 = any
	Month  string    // long English month name, "" = any
	Sort   SortOrder // "" behaves like SortLatest
}

// IsEmpty reports whether q filters nothing and keeps the default order.
func (q Query) IsEmpty() bool {
	return q.Text == "" && q.Author == "" && q.Year == 0 && q.Month == "" &&
		(q.Sort == "" || q.Sort == SortLatest)
}

// ParseQuery builds a Query from the recognized request parameters:
// query, author, year, month and sort.
// Examples:
//   - "?query=cats&sort=oldest" -> Text "cats", ascending
//   - "?year=2022&month=may"    -> Year 2022, Month "May"
func ParseQuery(v url.Values) (Query, error) {
	q := Query{
		Text:   strings.TrimSpace(v.Get("query")),
		Author: strings.TrimPrefix(strings.TrimSpace(v.Get("author")), "@"),
		Sort:   SortLatest,
	}

	if raw := strings.TrimSpace(v.Get("year")); raw != "" {
		year, err := strconv.Atoi(raw)
		if err != nil || year < 1000 || year > 9999 {
			return Query{}, fmt.Errorf("invalid year %q: must be a 4-digit number", raw)
		}
		q.Year = year
	}

	if raw := strings.TrimSpace(v.Get("month")); raw != "" {
		month, ok := parseMonth(raw)
		if !ok {
			return Query{}, fmt.Errorf("invalid month %q: must be a full month name", raw)
		}
		q.Month = month
	}

	switch s := strings.ToLower(strings.TrimSpace(v.Get("sort"))); s {
	case "", string(SortLatest):
		q.Sort = SortLatest
	case string(SortOldest):
		q.Sort = SortOldest
	default:
		return Query{}, fmt.Errorf("invalid sort %q: must be latest or oldest", s)
	}

	return q, nil
}

// Filter returns the posts of c matching q, in the requested order.
// Predicates are applied as year, text, author, month, then the sort.
// The collection is never mutated; the returned slice is always new.
func Filter(c *Collection, q Query) []Post {
	if c == nil {
		return []Post{}
	}

	text := strings.ToLower(q.Text)
	author := strings.ToLower(strings.TrimPrefix(q.Author, "@"))

	out := make([]Post, 0, len(c.Posts))
	for _, p := range c.Posts {
		if q.Year != 0 && p.CreatedAt.UTC().Year() != q.Year {
			continue
		}
		if text != "" && !c.matchesText(p, text) {
			continue
		}
		if author != "" {
			a, ok := c.Author(p.AuthorID)
			if !ok || strings.ToLower(a.Username) != author {
				continue
			}
		}
		if q.Month != "" && !strings.EqualFold(MonthName(p.CreatedAt), q.Month) {
			continue
		}
		out = append(out, p)
	}

	if q.Sort == SortOldest {
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		})
	}

	return out
}

// matchesText searches the post text, the author's names and the
// annotation entity names. needle must already be lowercase.
// A post without a resolvable author never matches.
func (c *Collection) matchesText(p Post, needle string) bool {
	author, ok := c.Author(p.AuthorID)
	if !ok {
		return false
	}

	if strings.Contains(strings.ToLower(p.Text), needle) ||
		strings.Contains(strings.ToLower(author.Name), needle) ||
		strings.Contains(strings.ToLower(author.Username), needle) {
		return true
	}

	for _, ann := range p.ContextAnnotations {
		if strings.Contains(strings.ToLower(ann.Entity.Name), needle) {
			return true
		}
	}
	return false
}

// MonthName returns the long English month name of t in UTC.
func MonthName(t time.Time) string {
	return t.UTC().Month().String()
}

func parseMonth(s string) (string, bool) {
	for m := time.January; m <= time.December; m++ {
		if strings.EqualFold(m.String(), s) {
			return m.String(), true
		}
	}
	return "", false
}
