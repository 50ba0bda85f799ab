package cmd

import (
	"github.com/spf13/cobra"
	"github.com/stratastor/smbd-companion/cmd/config"
	"github.com/stratastor/smbd-companion/cmd/logs"
	"github.com/stratastor/smbd-companion/cmd/serve"
	"github.com/stratastor/smbd-companion/cmd/status"
	"github.com/stratastor/smbd-companion/cmd/version"
	"github.com/stratastor/smbd-companion/internal/constants"
)

func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "smbd-companion",
		Short: "smbd-companion: userspace control-plane daemon for the in-kernel SMB/CIFS server",
		// Registers -v/--version on the root command; the version
		// subcommand prints the longer build-metadata form.
		Version: constants.Version,
	}

	rootCmd.AddCommand(serve.NewServeCmd())
	rootCmd.AddCommand(version.NewVersionCmd())
	rootCmd.AddCommand(status.NewStatusCmd())
	rootCmd.AddCommand(logs.NewLogsCmd())
	rootCmd.AddCommand(config.NewConfigCmd())

	return rootCmd
}
