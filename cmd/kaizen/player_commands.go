package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"kaizen/internal/api"
	"kaizen/internal/daemonctl"
	"kaizen/internal/playback"
)

func newPlayerCommand(ctx *commandContext) *cobra.Command {
	playerCmd := &cobra.Command{
		Use:   "player",
		Short: "Control playback on a running server",
	}

	playerCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the current player state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPlayer(cmd, ctx, func(c context.Context, client *daemonctl.Client) (api.PlayerResponse, error) {
				return client.Player(c)
			})
		},
	})

	playerCmd.AddCommand(&cobra.Command{
		Use:   "load <stage-id>",
		Short: "Load a stage's processes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return runPlayer(cmd, ctx, func(c context.Context, client *daemonctl.Client) (api.PlayerResponse, error) {
				return client.LoadStage(c, id)
			})
		},
	})

	playerCmd.AddCommand(&cobra.Command{
		Use:   "select <index>",
		Short: "Play the process at a zero-based index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid index %q", args[0])
			}
			return runPlayer(cmd, ctx, func(c context.Context, client *daemonctl.Client) (api.PlayerResponse, error) {
				return client.PlayIndex(c, index)
			})
		},
	})

	playerCmd.AddCommand(&cobra.Command{
		Use:   "rate <rate>",
		Short: "Set the video playback rate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rate, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return fmt.Errorf("invalid rate %q", args[0])
			}
			return runPlayer(cmd, ctx, func(c context.Context, client *daemonctl.Client) (api.PlayerResponse, error) {
				return client.SetRate(c, rate)
			})
		},
	})

	for _, name := range []string{"play", "pause", "restart", "next", "prev"} {
		playerCmd.AddCommand(&cobra.Command{
			Use:   name,
			Short: strings.ToUpper(name[:1]) + name[1:] + " playback",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runPlayer(cmd, ctx, func(c context.Context, client *daemonctl.Client) (api.PlayerResponse, error) {
					return client.Command(c, name)
				})
			},
		})
	}

	for _, name := range []string{"muted", "looping", "global", "narrator"} {
		playerCmd.AddCommand(&cobra.Command{
			Use:       name + " <on|off>",
			Short:     "Toggle " + name,
			Args:      cobra.ExactArgs(1),
			ValidArgs: []string{"on", "off"},
			RunE: func(cmd *cobra.Command, args []string) error {
				enabled, err := parseOnOff(args[0])
				if err != nil {
					return err
				}
				return runPlayer(cmd, ctx, func(c context.Context, client *daemonctl.Client) (api.PlayerResponse, error) {
					return client.Toggle(c, name, enabled)
				})
			},
		})
	}

	playerCmd.AddCommand(newPreviewCommand(ctx))
	return playerCmd
}

func newPreviewCommand(ctx *commandContext) *cobra.Command {
	var view string
	previewCmd := &cobra.Command{
		Use:   "preview <process-id>",
		Short: "Play one recording of a process in the preview player",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			leg, err := parseView(view, true)
			if err != nil {
				return err
			}
			return runPlayer(cmd, ctx, func(c context.Context, client *daemonctl.Client) (api.PlayerResponse, error) {
				if _, err := client.LoadPreview(c, id, leg); err != nil {
					return api.PlayerResponse{}, err
				}
				return client.PreviewCommand(c, "play")
			})
		},
	}
	previewCmd.Flags().StringVar(&view, "view", "", "Recording to show: before or after (default: the first one)")

	previewCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the preview player state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPlayer(cmd, ctx, func(c context.Context, client *daemonctl.Client) (api.PlayerResponse, error) {
				return client.Preview(c)
			})
		},
	})
	for _, name := range []string{"play", "pause"} {
		previewCmd.AddCommand(&cobra.Command{
			Use:   name,
			Short: strings.ToUpper(name[:1]) + name[1:] + " the preview",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runPlayer(cmd, ctx, func(c context.Context, client *daemonctl.Client) (api.PlayerResponse, error) {
					return client.PreviewCommand(c, name)
				})
			},
		})
	}
	previewCmd.AddCommand(&cobra.Command{
		Use:       "view <before|after>",
		Short:     "Switch the preview between recordings",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"before", "after"},
		RunE: func(cmd *cobra.Command, args []string) error {
			leg, err := parseView(args[0], false)
			if err != nil {
				return err
			}
			return runPlayer(cmd, ctx, func(c context.Context, client *daemonctl.Client) (api.PlayerResponse, error) {
				return client.SetPreviewView(c, leg)
			})
		},
	})
	return previewCmd
}

func parseView(value string, optional bool) (playback.Leg, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" && optional {
		return "", nil
	}
	return playback.ParseLeg(value)
}

func runPlayer(cmd *cobra.Command, ctx *commandContext, fn func(context.Context, *daemonctl.Client) (api.PlayerResponse, error)) error {
	return ctx.withClient(func(client *daemonctl.Client) error {
		resp, err := fn(cmd.Context(), client)
		if err != nil {
			return err
		}
		printPlayer(cmd.OutOrStdout(), resp)
		return nil
	})
}

func printPlayer(out io.Writer, resp api.PlayerResponse) {
	p := resp.Player
	if p.ProcessCount == 0 {
		fmt.Fprintln(out, "No stage loaded")
		return
	}
	fmt.Fprintf(out, "Process %d/%d (id %d) %s, leg %s, elapsed %s\n",
		p.Index+1, p.ProcessCount, p.ProcessID, p.Phase, p.Leg, seconds(p.Elapsed))
	fmt.Fprintf(out, "Before %.0f%%  After %.0f%%  Rate %.2gx  Saved %s\n",
		p.BeforeProgress, p.AfterProgress, p.Rate, seconds(p.TotalTimeSaved))
	fmt.Fprintf(out, "Looping %s  Global %s  Muted %s  Narrator %s (%s)\n",
		yesNo(p.Looping), yesNo(p.GlobalMode), yesNo(p.Muted), yesNo(p.NarratorActive), p.NarrationStatus)
	if resp.Subtitle.Visible {
		fmt.Fprintf(out, "Subtitle [%s]: %s\n", resp.Subtitle.Mode, resp.Subtitle.Text)
	}
	if p.LastError != "" {
		fmt.Fprintf(out, "Last error: %s\n", p.LastError)
	}
}

func parseOnOff(value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "on", "true", "yes", "1":
		return true, nil
	case "off", "false", "no", "0":
		return false, nil
	}
	return false, fmt.Errorf("expected on or off, got %q", value)
}

func parseID(value string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", value)
	}
	return id, nil
}
