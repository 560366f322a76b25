package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/bookmarks/internal/domain"
	"github.com/MrSnakeDoc/bookmarks/internal/fetcher"
	"github.com/MrSnakeDoc/bookmarks/internal/logger"
	"github.com/MrSnakeDoc/bookmarks/internal/oauth"
	"github.com/MrSnakeDoc/bookmarks/internal/upstream"
)

const accessTokenEnv = "BOOKMARKS_ACCESS_TOKEN"

type fetchOptions struct {
	token      string
	userID     string
	apiBaseURL string
	pageSize   int
	maxPages   int
	retryDelay time.Duration
	jsonOut    bool
	logLevel   string

	query  string
	author string
	year   string
	month  string
	sort   string
}

func init() {
	rootCmd.AddCommand(newFetchCmd())
}

func newFetchCmd() *cobra.Command {
	opts := &fetchOptions{}

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch all bookmarks with an access token and print them",
		Long: `Fetch every bookmark page with a user access token, then print the
collection, optionally filtered. The token is read from --token or ` + accessTokenEnv + `.
Without --user-id the account is looked up first.`,
		Example: `  bookmarks fetch --token "$TOKEN" --query golang --sort oldest
  bookmarks fetch --author @rob --year 2022 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runFetch(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.token, "token", "", "OAuth2 user access token (default $"+accessTokenEnv+")")
	f.StringVar(&opts.userID, "user-id", "", "account id, looked up from the token when empty")
	f.StringVar(&opts.apiBaseURL, "api-base-url", upstream.DefaultBaseURL, "API base URL")
	f.IntVar(&opts.pageSize, "page-size", upstream.DefaultPageSize, "posts per page (max 100)")
	f.IntVar(&opts.maxPages, "max-pages", fetcher.DefaultMaxPages, "page cap for the sweep")
	f.DurationVar(&opts.retryDelay, "retry-delay", fetcher.DefaultRetryDelay, "delay before retrying a failed page")
	f.BoolVar(&opts.jsonOut, "json", false, "print JSON instead of text")
	f.StringVar(&opts.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	f.StringVar(&opts.query, "query", "", "free-text filter")
	f.StringVar(&opts.author, "author", "", "only posts by this username")
	f.StringVar(&opts.year, "year", "", "only posts from this year (UTC)")
	f.StringVar(&opts.month, "month", "", "only posts from this month, e.g. May")
	f.StringVar(&opts.sort, "sort", "latest", "latest or oldest")

	return cmd
}

type fetchOutput struct {
	Searchable int            `json:"searchable"`
	Results    int            `json:"results"`
	Entries    []domain.Entry `json:"entries"`
	Facets     domain.Facets  `json:"facets"`
}

func runFetch(cmd *cobra.Command, opts *fetchOptions) error {
	ctx := cmd.Context()

	token := opts.token
	if token == "" {
		token = os.Getenv(accessTokenEnv)
	}
	if token == "" {
		return errors.New("an access token is required (--token or " + accessTokenEnv + ")")
	}

	q, err := domain.ParseQuery(url.Values{
		"query":  {opts.query},
		"author": {opts.author},
		"year":   {opts.year},
		"month":  {opts.month},
		"sort":   {opts.sort},
	})
	if err != nil {
		return err
	}

	log := logger.New(opts.logLevel, true)
	defer func() { _ = log.Sync() }()

	api := upstream.NewClient(upstream.Options{
		BaseURL:  opts.apiBaseURL,
		PageSize: opts.pageSize,
	})

	id := domain.Identity{UserID: opts.userID}
	if id.UserID == "" {
		me, err := api.Me(ctx, token)
		if err != nil {
			return fmt.Errorf("failed to look up account: %w", err)
		}
		id = domain.Identity{UserID: me.ID, Username: me.Username}
	}

	f := fetcher.New(api, log, fetcher.Options{
		MaxPages:   opts.maxPages,
		RetryDelay: opts.retryDelay,
	})

	c, err := f.FetchAll(ctx, id, oauth.StaticToken(token))
	if err != nil {
		return err
	}

	posts := domain.Filter(c, q)
	out := cmd.OutOrStdout()

	if opts.jsonOut {
		entries := c.Resolve(posts)
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(fetchOutput{
			Searchable: c.Len(),
			Results:    len(entries),
			Entries:    entries,
			Facets:     domain.DeriveFacets(c, domain.DefaultPopularAuthors),
		})
	}

	return printText(out, c, posts)
}

func printText(out io.Writer, c *domain.Collection, posts []domain.Post) error {
	entries := c.Resolve(posts)
	if _, err := fmt.Fprintf(out, "%d searchable bookmarks | %d results\n", c.Len(), len(entries)); err != nil {
		return err
	}

	for _, section := range domain.GroupByMonthYear(posts) {
		resolved := c.Resolve(section.Posts)
		if len(resolved) == 0 {
			continue
		}
		if _, err := fmt.Fprintf(out, "\n%s\n", section.Label); err != nil {
			return err
		}
		for _, e := range resolved {
			_, err := fmt.Fprintf(out, "  @%-15s %s  %s\n  %17s %s\n",
				e.Author.Username,
				e.Post.CreatedAt.UTC().Format("2006-01-02"),
				oneLine(e.Post.Text, 80),
				"", e.URL)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func oneLine(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > limit {
		return string(r[:limit-1]) + "…"
	}
	return s
}
