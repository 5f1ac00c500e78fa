package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vadimtrunov/MovieSearch/internal/config"
)

// version is overridden at build time via -ldflags "-X main.version=...".
var version = "0.1.0"

var configPath string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, styleError.Render(err.Error()))
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "moviesearch",
		Short: "Search TMDb for movies from the terminal",
		Long: "MovieSearch searches The Movie Database by title.\n" +
			"Browse paginated results interactively, query from scripts, or serve\n" +
			"the search over MCP and Telegram.",
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "path to configuration file")

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	rootCmd.AddCommand(
		newVersionCmd(),
		newBrowseCmd(),
		newSearchCmd(),
		newMovieCmd(),
		newConfigCmd(),
		newMCPServeCmd(),
		newBotCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "MovieSearch v%s\n", version)
		},
	}
}
