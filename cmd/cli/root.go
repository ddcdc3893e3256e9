package cli

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "tgbridge",
		Short: "Telegram webhook bridge for flows",
		Long: `tgbridge registers Telegram bot webhooks on behalf of flows and tells the flows platform
which flows should receive each incoming bot update.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if debug, _ := cmd.Flags().GetBool("debug"); debug {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}
		},
	}

	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")

	rootCmd.AddCommand(NewServeCommand())
	rootCmd.AddCommand(NewMigrateCommand())
	rootCmd.AddCommand(NewGenerateKeyCommand())
	rootCmd.AddCommand(NewVersionCommand())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// applyLogLevel honours LOG_LEVEL unless --debug already lowered the level.
func applyLogLevel(cmd *cobra.Command, level string) {
	if debug, _ := cmd.Flags().GetBool("debug"); debug || level == "" {
		return
	}

	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ignoring unknown LOG_LEVEL %q\n", level)
		return
	}

	zerolog.SetGlobalLevel(parsed)
}
