package cli

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	mcpadapter "github.com/kirillkom/lease-lens/internal/adapters/mcp"
)

func newMCPCommand(v *viper.Viper, version string) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the review workflow as MCP tools over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, cleanup, err := resolveConfig(v)
			if err != nil {
				return err
			}
			installLogger(os.Stderr, cfg.LogLevel)

			s, err := openSession(cmd.Context(), cfg, cleanup)
			if err != nil {
				return err
			}
			defer s.Close()

			return mcpadapter.NewServer(s.app.Workflows, s.app.Uploader, s.app.Preview).ServeStdio(version)
		},
	}
}
