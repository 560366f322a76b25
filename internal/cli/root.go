// Package cli holds the cobra commands of the bookmarks binary.
package cli

import (
	"context"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "bookmarks",
	Short: "Browse, search and filter your saved posts",
	Long: `bookmarks fetches every bookmarked post of an account, caches the
complete collection per session and serves it over a small JSON API with
free-text search, author, year and month filters.`,
	SilenceUsage: true,
}

// ExecuteContext runs the root command with ctx.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
