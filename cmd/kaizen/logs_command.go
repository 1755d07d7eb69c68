package main

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"kaizen/internal/logging"
	"kaizen/internal/logs"
	"kaizen/internal/logstream"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var (
		follow  bool
		lines   int
		filters logstream.Filters
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Display server logs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			client, err := logs.NewStreamClient(cfg.Paths.APIBind, cfg.Paths.APIToken)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			printed, err := logstream.Stream(cmd.Context(), client, logstream.Options{
				Lines:   lines,
				Follow:  follow,
				Filters: filters,
				LogPath: filepath.Join(cfg.Paths.LogDir, "kaizen.log"),
			}, func(evt logging.LogEvent) {
				fmt.Fprintln(out, formatLogEvent(evt))
			}, func(line string) {
				fmt.Fprintln(out, line)
			})
			if err != nil {
				return err
			}
			if !printed && !follow {
				fmt.Fprintln(out, "No log entries available")
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow log output")
	cmd.Flags().IntVarP(&lines, "lines", "n", 10, "Number of lines to show (0 for all)")
	cmd.Flags().StringVar(&filters.Component, "component", "", "Only show events from this component")
	cmd.Flags().Int64Var(&filters.ProcessID, "process", 0, "Only show events for this process id")
	cmd.Flags().StringVar(&filters.SessionID, "session", "", "Only show events for this playback session")
	return cmd
}

func formatLogEvent(evt logging.LogEvent) string {
	var b strings.Builder
	b.WriteString(evt.Timestamp.Local().Format("2006-01-02 15:04:05"))
	b.WriteString(" ")
	b.WriteString(fmt.Sprintf("%-5s", strings.ToUpper(evt.Level)))
	if evt.Component != "" {
		b.WriteString(" [" + evt.Component + "]")
	}
	if evt.ProcessID != 0 {
		fmt.Fprintf(&b, " process=%d", evt.ProcessID)
	}
	b.WriteString(" ")
	b.WriteString(evt.Message)
	if len(evt.Fields) > 0 {
		keys := make([]string, 0, len(evt.Fields))
		for key := range evt.Fields {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			fmt.Fprintf(&b, " %s=%s", key, evt.Fields[key])
		}
	}
	return b.String()
}
