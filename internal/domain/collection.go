package domain

import "time"

// Collection is the in-memory aggregate of every fetched page:
// posts in API order plus the de-duplicated authors and media they reference.
//
// A Collection is either complete (every page fetched) or absent.
// It is never exposed half-built.
type Collection struct {
	Posts       []Post            `json:"posts"`
	AuthorsByID map[string]Author `json:"authors_by_id"`
	MediaByKey  map[string]Media  `json:"media_by_key"`
	FetchedAt   time.Time         `json:"fetched_at"`
}

// NewCollection returns an empty collection with initialized maps.
func NewCollection() *Collection {
	return &Collection{
		Posts:       []Post{},
		AuthorsByID: make(map[string]Author),
		MediaByKey:  make(map[string]Media),
	}
}

// AddPage appends a page of posts and merges its included entities.
// On key collision the later page wins.
func (c *Collection) AddPage(posts []Post, authors []Author, media []Media) {
	c.Posts = append(c.Posts, posts...)
	for _, a := range authors {
		c.AuthorsByID[a.ID] = a
	}
	for _, m := range media {
		c.MediaByKey[m.MediaKey] = m
	}
}

// Len returns the number of posts, 0 for a nil collection.
func (c *Collection) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Posts)
}

// Author resolves the author of a post.
func (c *Collection) Author(id string) (Author, bool) {
	if c == nil {
		return Author{}, false
	}
	a, ok := c.AuthorsByID[id]
	return a, ok
}

// PrimaryMedia resolves the first media attachment of a post.
func (c *Collection) PrimaryMedia(p Post) (Media, bool) {
	key := p.FirstMediaKey()
	if c == nil || key == "" {
		return Media{}, false
	}
	m, ok := c.MediaByKey[key]
	return m, ok
}

// WithPosts returns a shallow copy sharing the entity maps but holding posts.
func (c *Collection) WithPosts(posts []Post) *Collection {
	return &Collection{
		Posts:       posts,
		AuthorsByID: c.AuthorsByID,
		MediaByKey:  c.MediaByKey,
		FetchedAt:   c.FetchedAt,
	}
}

// Entry is a post with its author and primary media resolved, ready to render.
type Entry struct {
	Post   Post   `json:"post"`
	Author Author `json:"author"`
	Media  *Media `json:"media,omitempty"`
	URL    string `json:"url"`
}

// Resolve turns posts into renderable entries.
// Posts whose author cannot be resolved are dropped.
func (c *Collection) Resolve(posts []Post) []Entry {
	entries := make([]Entry, 0, len(posts))
	for _, p := range posts {
		author, ok := c.Author(p.AuthorID)
		if !ok {
			continue
		}
		e := Entry{
			Post:   p,
			Author: author,
			URL:    "https://twitter.com/" + author.Username + "/status/" + p.ID,
		}
		if m, ok := c.PrimaryMedia(p); ok {
			e.Media = &m
		}
		entries = append(entries, e)
	}
	return entries
}
