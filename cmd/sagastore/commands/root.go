package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// rootOptions holds flags shared by all subcommands.
type rootOptions struct {
	configPath string
}

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "sagastore",
		Short: "Sagastore - correlation-keyed saga persistence",
		Long: `Sagastore keeps long-running saga instances in Redis or an embedded
BoltDB file, keyed by correlation ID.

Messages are dispatched to the instance they correlate with. New instances
are created by initiating messages, updated by later ones, and removed when
the saga completes. Optional version checks detect concurrent updates.`,
		// Prevent silent success when unknown flags are passed to root command
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		FParseErrWhitelist: cobra.FParseErrWhitelist{},
		SilenceErrors:      true,
		SilenceUsage:       true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "sagastore.yml", "Path to sagastore.yml (defaults and environment are used if missing)")

	cmd.AddCommand(
		newSendCmd(opts),
		newGetCmd(opts),
		newProbeCmd(opts),
		newWatchCmd(opts),
		newServeCmd(opts),
	)

	return cmd
}

// Execute runs the root command. Cobra's own error and usage printing is
// silenced; commands print formatted errors through the printer package.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}
