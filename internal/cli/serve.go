package cli

import (
	"github.com/spf13/cobra"

	application "github.com/rocketscienceinc/tictactoe-hub/internal"
)

func newServeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP, WebSocket and TCP servers",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return application.RunApp(opts.logger, opts.conf)
		},
	}
}
