package domain

import (
	"fmt"
	"sort"
)

// DefaultPopularAuthors is how many authors the facet list shows by default.
const DefaultPopularAuthors = 10

// Facets are the filter dimensions derived from a whole collection.
type Facets struct {
	Total          int      `json:"total"`
	PopularAuthors []string `json:"popular_authors"`
	Years          []int    `json:"years"`
	Months         []string `json:"months"`
}

// DeriveFacets computes every facet, keeping the topN most popular authors.
// topN <= 0 keeps them all.
func DeriveFacets(c *Collection, topN int) Facets {
	authors := PopularAuthors(c)
	if topN > 0 && len(authors) > topN {
		authors = authors[:topN]
	}
	return Facets{
		Total:          c.Len(),
		PopularAuthors: authors,
		Years:          Years(c),
		Months:         Months(c),
	}
}

// PopularAuthors ranks usernames by how many posts reference them.
// Equally frequent authors keep the order in which they were first seen.
// Posts whose author is not in the collection are skipped.
func PopularAuthors(c *Collection) []string {
	if c == nil {
		return []string{}
	}

	counts := make(map[string]int)
	order := make([]string, 0)
	for _, p := range c.Posts {
		a, ok := c.AuthorsByID[p.AuthorID]
		if !ok {
			continue
		}
		if _, seen := counts[a.Username]; !seen {
			order = append(order, a.Username)
		}
		counts[a.Username]++
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	return order
}

// Years returns the distinct UTC years of the posts, in first-seen order.
func Years(c *Collection) []int {
	years := []int{}
	if c == nil {
		return years
	}

	seen := make(map[int]bool)
	for _, p := range c.Posts {
		y := p.CreatedAt.UTC().Year()
		if !seen[y] {
			seen[y] = true
			years = append(years, y)
		}
	}
	return years
}

// Months returns the distinct long month names of the posts, in first-seen order.
func Months(c *Collection) []string {
	months := []string{}
	if c == nil {
		return months
	}

	seen := make(map[string]bool)
	for _, p := range c.Posts {
		m := MonthName(p.CreatedAt)
		if !seen[m] {
			seen[m] = true
			months = append(months, m)
		}
	}
	return months
}

// Section is a run of consecutive posts sharing a month and year.
type Section struct {
	Label string `json:"label"` // e.g. "May 2022"
	Posts []Post `json:"posts"`
}

// GroupByMonthYear splits posts into consecutive month/year sections.
// A month reappearing later in the sequence starts a new section.
func GroupByMonthYear(posts []Post) []Section {
	sections := []Section{}
	for _, p := range posts {
		t := p.CreatedAt.UTC()
		label := fmt.Sprintf("%s %d", t.Month(), t.Year())
		if n := len(sections); n > 0 && sections[n-1].Label == label {
			sections[n-1].Posts = append(sections[n-1].Posts, p)
			continue
		}
		sections = append(sections, Section{Label: label, Posts: []Post{p}})
	}
	return sections
}
