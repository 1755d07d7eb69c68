package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"kaizen/internal/daemonrun"
	"kaizen/internal/speech"
)

func newNarrateCommand(ctx *commandContext) *cobra.Command {
	narrateCmd := &cobra.Command{
		Use:   "narrate",
		Short: "Synthesize or drop cached narration audio",
	}

	var (
		force    bool
		segments bool
		asJSON   bool
	)
	synthCmd := &cobra.Command{
		Use:   "synthesize <text>",
		Short: "Synthesize narration into the audio cache",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			narrator, err := ctx.narrator()
			if err != nil {
				return err
			}
			text := strings.Join(args, " ")
			prepare := narrator.Prepare
			if force {
				prepare = narrator.Regenerate
			}
			track, err := prepare(cmd.Context(), text)
			if err != nil {
				return fmt.Errorf("synthesize narration: %w", err)
			}
			if asJSON {
				return writeJSON(cmd, track)
			}
			out := cmd.OutOrStdout()
			if track.Empty() {
				fmt.Fprintln(out, "Nothing to narrate")
				return nil
			}
			fmt.Fprintf(out, "Audio:    %s\n", track.Path)
			fmt.Fprintf(out, "Hash:     %s\n", track.Hash)
			fmt.Fprintf(out, "Duration: %s\n", seconds(track.Duration))
			fmt.Fprintf(out, "Segments: %d\n", len(track.Timing))
			if segments && len(track.Timing) > 0 {
				fmt.Fprintln(out, renderSegments(track.Timing))
			}
			return nil
		},
	}
	synthCmd.Flags().BoolVar(&force, "force", false, "Discard any cached audio and synthesize again")
	synthCmd.Flags().BoolVar(&segments, "segments", false, "Print the timed segments")
	synthCmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON")
	narrateCmd.AddCommand(synthCmd)

	narrateCmd.AddCommand(&cobra.Command{
		Use:   "invalidate <text>",
		Short: "Remove cached audio for text at the configured voice and rate",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			narrator, err := ctx.narrator()
			if err != nil {
				return err
			}
			if err := narrator.Invalidate(strings.Join(args, " ")); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Cached narration removed")
			return nil
		},
	})

	return narrateCmd
}

func (c *commandContext) narrator() (*speech.Narrator, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.commandLogger(cfg)
	if err != nil {
		return nil, err
	}
	return daemonrun.NewNarrator(cfg, logger, nil), nil
}
