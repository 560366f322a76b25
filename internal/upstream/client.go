package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/MrSnakeDoc/bookmarks/internal/domain"
	"github.com/MrSnakeDoc/bookmarks/internal/utils"
)

const (
	DefaultBaseURL  = "https://api.twitter.com"
	DefaultPageSize = 100
	DefaultTimeout  = 10 * time.Second

	// maxErrorBody caps how much of an error response is kept for logs.
	maxErrorBody = 512
)

// Fields requested on every bookmarks page.
const (
	tweetFields = "context_annotations,created_at"
	expansions  = "author_id,attachments.media_keys"
	userFields  = "verified,profile_image_url"
	mediaFields = "type,url,width,height"
)

// Options configures the API client.
type Options struct {
	BaseURL    string        // defaults to DefaultBaseURL
	PageSize   int           // max_results per page, 1..100
	Timeout    time.Duration // per request, ignored when HTTPClient is set
	HTTPClient *http.Client
}

// Client is a minimal X API v2 client covering the bookmarks listing and
// the authenticated user lookup. It is stateless: every call carries its
// own bearer token.
type Client struct {
	baseURL    string
	pageSize   int
	httpClient *http.Client
}

// NewClient creates a new API client with defaults applied.
func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.PageSize <= 0 || opts.PageSize > DefaultPageSize {
		opts.PageSize = DefaultPageSize
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		pageSize:   opts.PageSize,
		httpClient: opts.HTTPClient,
	}
}

// Page is one response of the bookmarks listing.
type Page struct {
	Posts       []domain.Post
	Authors     []domain.Author
	Media       []domain.Media
	NextCursor  string // empty on the last page
	ResultCount int
}

type bookmarksResponse struct {
	Data     []domain.Post `json:"data"`
	Includes struct {
		Users []domain.Author `json:"users"`
		Media []domain.Media  `json:"media"`
	} `json:"includes"`
	Meta struct {
		NextToken   string `json:"next_token"`
		ResultCount int    `json:"result_count"`
	} `json:"meta"`
}

type meResponse struct {
	Data domain.Author `json:"data"`
}

// ListBookmarks fetches one page of the user's bookmarks.
// An empty cursor requests the first page. A response without "data"
// is an empty page.
func (c *Client) ListBookmarks(ctx context.Context, userID, token, cursor string) (*Page, error) {
	q := url.Values{}
	q.Set("max_results", strconv.Itoa(c.pageSize))
	q.Set("tweet.fields", tweetFields)
	q.Set("expansions", expansions)
	q.Set("user.fields", userFields)
	q.Set("media.fields", mediaFields)
	if cursor != "" {
		q.Set("pagination_token", cursor)
	}

	path := "/2/users/" + url.PathEscape(userID) + "/bookmarks"

	var resp bookmarksResponse
	if err := c.get(ctx, path, q, token, &resp); err != nil {
		return nil, fmt.Errorf("list bookmarks: %w", err)
	}

	page := &Page{
		Posts:       resp.Data,
		Authors:     resp.Includes.Users,
		Media:       resp.Includes.Media,
		NextCursor:  resp.Meta.NextToken,
		ResultCount: resp.Meta.ResultCount,
	}
	if page.Posts == nil {
		page.Posts = []domain.Post{}
	}
	return page, nil
}

// Me returns the account that owns token.
func (c *Client) Me(ctx context.Context, token string) (*domain.Author, error) {
	q := url.Values{}
	q.Set("user.fields", userFields)

	var resp meResponse
	if err := c.get(ctx, "/2/users/me", q, token, &resp); err != nil {
		return nil, fmt.Errorf("users/me: %w", err)
	}
	if resp.Data.ID == "" {
		return nil, fmt.Errorf("users/me: empty user in response")
	}
	return &resp.Data, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, token string, result any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer utils.Close(resp.Body)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return &StatusError{
			StatusCode: resp.StatusCode,
			Body:       string(body),
			RetryAfter: resp.Header.Get("Retry-After"),
		}
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}
