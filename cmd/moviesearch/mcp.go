package main

import (
	"github.com/spf13/cobra"

	mcpserver "github.com/vadimtrunov/MovieSearch/internal/mcp"
)

// newMCPServeCmd returns the "mcp-serve" subcommand.
// It starts an MCP server over stdin/stdout exposing movie search tools.
func newMCPServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp-serve",
		Short: "Start MCP server over stdio",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadValidConfig(configPath)
			if err != nil {
				return err
			}

			// stdout carries the protocol; logs go to stderr.
			logger := setupCLILogger(cfg)

			deps := mcpserver.Deps{
				TMDb:  newTMDbClient(cfg, logger),
				Query: queryOptions(cfg),
			}
			srv := mcpserver.NewServer(deps, version, logger)
			return srv.ServeStdio(cmd.Context())
		},
	}
}
