// Package fetcher walks the paginated bookmarks listing and assembles one
// complete collection per sweep.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/bookmarks/internal/domain"
	"github.com/MrSnakeDoc/bookmarks/internal/logger"
	"github.com/MrSnakeDoc/bookmarks/internal/metrics"
	"github.com/MrSnakeDoc/bookmarks/internal/oauth"
	"github.com/MrSnakeDoc/bookmarks/internal/upstream"
)

const (
	DefaultMaxPages    = 50
	DefaultRetryDelay  = time.Second
	DefaultPageTimeout = 10 * time.Second

	opFetchAll = "fetcher.FetchAll"
)

// PageLister returns one page of bookmarks. *upstream.Client implements it.
type PageLister interface {
	ListBookmarks(ctx context.Context, userID, token, cursor string) (*upstream.Page, error)
}

// PageListerFunc adapts a function to PageLister.
type PageListerFunc func(ctx context.Context, userID, token, cursor string) (*upstream.Page, error)

// ListBookmarks implements PageLister.
func (fn PageListerFunc) ListBookmarks(ctx context.Context, userID, token, cursor string) (*upstream.Page, error) {
	return fn(ctx, userID, token, cursor)
}

// Options tunes a Fetcher. Zero values take the defaults.
type Options struct {
	MaxPages    int
	RetryDelay  time.Duration
	PageTimeout time.Duration
	Metrics     *metrics.Metrics
}

// Fetcher runs fetch-all sweeps. It holds no per-sweep state and is safe for
// concurrent use by different sessions.
type Fetcher struct {
	lister  PageLister
	log     logger.Logger
	opts    Options
	metrics *metrics.Metrics
	now     func() time.Time
}

// New creates a Fetcher over lister.
func New(lister PageLister, log logger.Logger, opts Options) *Fetcher {
	if opts.MaxPages <= 0 {
		opts.MaxPages = DefaultMaxPages
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	if opts.PageTimeout <= 0 {
		opts.PageTimeout = DefaultPageTimeout
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Fetcher{
		lister:  lister,
		log:     log,
		opts:    opts,
		metrics: opts.Metrics,
		now:     time.Now,
	}
}

// FetchAll follows the continuation cursor from the first page until the
// upstream stops returning one, and returns the assembled collection.
//
// The result is all-or-nothing: any page failure discards what was
// accumulated. Errors carry a domain.ErrorKind:
//   - KindAuthRefreshFailed when the token could not be refreshed
//   - KindPaginationRunaway when more than MaxPages pages are needed or a
//     cursor repeats
//   - KindUpstreamFetchFailed for everything else, context errors included
func (f *Fetcher) FetchAll(ctx context.Context, id domain.Identity, tokens oauth.TokenProvider) (*domain.Collection, error) {
	log := f.log.With(logger.String("user_id", id.UserID))
	start := f.now()

	c := domain.NewCollection()
	seen := make(map[string]struct{})
	cursor := ""

	for pageNo := 1; ; pageNo++ {
		page, err := f.fetchPage(ctx, log, id, tokens, cursor, pageNo)
		if err != nil {
			return nil, err
		}

		c.AddPage(page.Posts, page.Authors, page.Media)
		f.metrics.RecordPage(len(page.Posts))

		log.Debug("bookmark page fetched",
			logger.Int("page", pageNo),
			logger.Int("posts", len(page.Posts)),
			logger.Bool("has_next", page.NextCursor != ""),
		)

		next := page.NextCursor
		if next == "" {
			break
		}

		if pageNo >= f.opts.MaxPages {
			log.Error("pagination runaway: page cap reached",
				logger.Int("max_pages", f.opts.MaxPages),
				logger.Int("posts", c.Len()),
			)
			return nil, domain.NewError(domain.KindPaginationRunaway, opFetchAll,
				fmt.Errorf("more than %d pages", f.opts.MaxPages))
		}

		if _, dup := seen[next]; dup {
			log.Error("pagination runaway: repeated cursor",
				logger.Int("page", pageNo),
				logger.String("cursor", next),
			)
			return nil, domain.NewError(domain.KindPaginationRunaway, opFetchAll,
				fmt.Errorf("cursor %q repeated after page %d", next, pageNo))
		}
		seen[next] = struct{}{}
		cursor = next
	}

	c.FetchedAt = f.now()

	log.Info("bookmarks fetched",
		logger.Int("posts", c.Len()),
		logger.Int("authors", len(c.AuthorsByID)),
		logger.Int("media", len(c.MediaByKey)),
		logger.Duration("duration", c.FetchedAt.Sub(start)),
	)
	return c, nil
}

// fetchPage fetches one page, handling token expiry and a single retry.
func (f *Fetcher) fetchPage(
	ctx context.Context,
	log logger.Logger,
	id domain.Identity,
	tokens oauth.TokenProvider,
	cursor string,
	pageNo int,
) (*upstream.Page, error) {
	token, err := tokens.CurrentToken()
	if err != nil {
		if !errors.Is(err, domain.ErrAuthExpired) {
			return nil, domain.NewError(domain.KindUpstreamFetchFailed, opFetchAll, err)
		}
		log.Info("access token expired, refreshing", logger.Int("page", pageNo))
		if token, err = f.refresh(ctx, tokens); err != nil {
			return nil, err
		}
	}

	refreshedOn401 := false
	retried := false

	for {
		pageCtx, cancel := context.WithTimeout(ctx, f.opts.PageTimeout)
		page, err := f.lister.ListBookmarks(pageCtx, id.UserID, token, cursor)
		cancel()
		if err == nil {
			return page, nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, domain.NewError(domain.KindUpstreamFetchFailed, opFetchAll,
				fmt.Errorf("page %d: %w", pageNo, ctxErr))
		}

		switch {
		case upstream.IsUnauthorized(err) && !refreshedOn401:
			refreshedOn401 = true
			f.metrics.RecordRetry("unauthorized")
			log.Info("upstream rejected token, refreshing", logger.Int("page", pageNo))
			if token, err = f.refresh(ctx, tokens); err != nil {
				return nil, err
			}
			continue

		case upstream.IsRetryable(err) && !retried:
			retried = true
			f.metrics.RecordRetry("transient")
			log.Warn("page fetch failed, retrying",
				logger.Int("page", pageNo),
				logger.Duration("delay", f.opts.RetryDelay),
				logger.Error(err),
			)
			if err := sleep(ctx, f.opts.RetryDelay); err != nil {
				return nil, domain.NewError(domain.KindUpstreamFetchFailed, opFetchAll,
					fmt.Errorf("page %d: %w", pageNo, err))
			}
			continue
		}

		log.Warn("page fetch failed", logger.Int("page", pageNo), logger.Error(err))
		return nil, domain.NewError(domain.KindUpstreamFetchFailed, opFetchAll,
			fmt.Errorf("page %d: %w", pageNo, err))
	}
}

func (f *Fetcher) refresh(ctx context.Context, tokens oauth.TokenProvider) (string, error) {
	token, err := tokens.Refresh(ctx)
	f.metrics.RecordRefresh(err == nil)
	if err != nil {
		if domain.KindOf(err) == domain.KindAuthRefreshFailed {
			return "", err
		}
		return "", domain.NewError(domain.KindAuthRefreshFailed, opFetchAll, err)
	}
	return token, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
