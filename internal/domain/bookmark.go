package domain

import "time"

// Post represents a single bookmarked message.
// Field names follow the upstream API payload so pages decode directly into it.
// A Post is immutable once fetched.
type Post struct {
	// ─────────────────────────────
	// Identity
	// ─────────────────────────────

	// ID is the upstream post identifier.
	ID string `json:"id"`

	// AuthorID references an Author in the owning Collection.
	AuthorID string `json:"author_id"`

	// ─────────────────────────────
	// Content
	// ─────────────────────────────

	// CreatedAt is the time the post was published.
	CreatedAt time.Time `json:"created_at"`

	// Text is the raw post body.
	Text string `json:"text"`

	// ContextAnnotations are topic labels attached by the platform.
	// Example: {"entity": {"name": "Cats"}}
	ContextAnnotations []ContextAnnotation `json:"context_annotations,omitempty"`

	// Attachments lists media keys resolved through Collection.MediaByKey.
	Attachments *Attachments `json:"attachments,omitempty"`
}

// ContextAnnotation is a platform-provided topic label.
type ContextAnnotation struct {
	Domain *AnnotationEntity `json:"domain,omitempty"`
	Entity AnnotationEntity  `json:"entity"`
}

// AnnotationEntity is the named part of a context annotation.
type AnnotationEntity struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Attachments holds references to media included alongside a page.
type Attachments struct {
	MediaKeys []string `json:"media_keys,omitempty"`
}

// FirstMediaKey returns the first attached media key, or "" when none.
// Only the first attachment is ever rendered.
func (p Post) FirstMediaKey() string {
	if p.Attachments == nil || len(p.Attachments.MediaKeys) == 0 {
		return ""
	}
	return p.Attachments.MediaKeys[0]
}

// Author is the account that created a Post.
type Author struct {
	ID              string `json:"id"`
	Username        string `json:"username"`
	Name            string `json:"name"` // display name
	Verified        bool   `json:"verified"`
	ProfileImageURL string `json:"profile_image_url,omitempty"`
}

// Media types returned by the upstream API.
const (
	MediaPhoto       = "photo"
	MediaVideo       = "video"
	MediaAnimatedGIF = "animated_gif"
)

// Media is an image or video attachment. URL is absent for videos.
type Media struct {
	MediaKey string `json:"media_key"`
	Type     string `json:"type"`
	URL      string `json:"url,omitempty"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
}
