package cli

import (
	"github.com/spf13/cobra"

	"github.com/memvra/dejavu/internal/mcp"
)

func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the engine as MCP tools over stdio",
		Long: `Run an MCP server on stdin/stdout exposing add_message, find_similar,
get_unit, force_rotate, vacuum and stats. Logs go to stderr.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession()
			if err != nil {
				return err
			}
			defer s.Close()

			logger.Info().Str("root", s.root).Msg("mcp server listening on stdio")
			return mcp.NewServer(s.engine, version).ServeStdio()
		},
	}
}
