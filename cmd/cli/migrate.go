package cli

import (
	"context"
	"time"

	"github.com/flowbaker/tgbridge/internal/initialization"

	"github.com/spf13/cobra"
)

func NewMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the listener table",
		Long:  `Create the listener table and its indexes in the postgres registry. Does nothing for redis.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := initialization.LoadConfig()
			if err != nil {
				return err
			}

			applyLogLevel(cmd, config.LogLevel)

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			return initialization.MigrateRegistry(ctx, config)
		},
	}

	return cmd
}
