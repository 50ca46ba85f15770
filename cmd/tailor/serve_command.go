package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"tailor/internal/daemon"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var development bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the tailor daemon and HTTP API in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			err = daemon.Run(cmd.Context(), cfg, daemon.RunOptions{
				LogLevel:    ctx.logLevel(""),
				Development: development,
				Version:     version,
			})
			return wrapLockError(err, cfg)
		},
	}
	cmd.Flags().BoolVar(&development, "dev", false, "Include source locations in log output")
	return cmd
}
