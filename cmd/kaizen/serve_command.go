package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"kaizen/internal/daemonctl"
	"kaizen/internal/daemonrun"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var development bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the playback server in the foreground",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel:    ctx.resolvedLogLevel(cfg),
				Development: development,
			})
		},
	}
	cmd.Flags().BoolVar(&development, "dev", false, "Include source locations in log output")
	return cmd
}

func newStopCommand(ctx *commandContext) *cobra.Command {
	var grace time.Duration
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop a running playback server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			result, err := daemonctl.Stop(cfg, grace)
			if errors.Is(err, daemonctl.ErrServerNotRunning) {
				fmt.Fprintln(out, "Server is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if result.ForcedKill {
				fmt.Fprintf(out, "Server (pid %d) did not exit in %s and was killed\n", result.PID, grace)
				return nil
			}
			fmt.Fprintf(out, "Server (pid %d) stopped\n", result.PID)
			return nil
		},
	}
	cmd.Flags().DurationVar(&grace, "grace", 10*time.Second, "How long to wait before killing the server")
	return cmd
}
