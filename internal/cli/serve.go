package cli

import (
	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/bookmarks/internal/app"
	"github.com/MrSnakeDoc/bookmarks/internal/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	Long: `Run the HTTP server. Configuration comes from BOOKMARKS_* environment
variables and the optional YAML file named by BOOKMARKS_CONFIG_FILE.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := app.New(cmd.Context(), config.Load())
	if err != nil {
		return err
	}
	return a.Run(cmd.Context())
}
