package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"kaizen/internal/catalog"
	"kaizen/internal/config"
	"kaizen/internal/playback"
	"kaizen/internal/speech"
	"kaizen/internal/subtitle"
	"kaizen/internal/timing"
)

func newSubtitleCommand(ctx *commandContext) *cobra.Command {
	subtitleCmd := &cobra.Command{
		Use:   "subtitle",
		Short: "Export karaoke subtitles for a process",
	}

	var (
		output    string
		estimated bool
	)
	exportCmd := &cobra.Command{
		Use:   "export <process-id>",
		Short: "Write the process narration as an ASS karaoke subtitle file",
		Long: "Times each narration with synthesized audio when available. With --estimate " +
			"the timeline comes from the configured narration speed and no audio is requested.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(cfg *config.Config, store *catalog.Store) error {
				process, err := store.Process(cmd.Context(), id)
				if err != nil {
					return err
				}
				style, err := catalogService(cfg, store).Style(cmd.Context())
				if err != nil {
					return err
				}
				segments, err := ctx.processSegments(cmd.Context(), cfg, *process, estimated)
				if err != nil {
					return err
				}
				if len(segments) == 0 {
					return fmt.Errorf("process %d has no narration text", id)
				}

				var out io.Writer = cmd.OutOrStdout()
				if output != "" && output != "-" {
					file, err := os.Create(output)
					if err != nil {
						return fmt.Errorf("create subtitle file: %w", err)
					}
					defer file.Close()
					out = file
				}
				if err := subtitle.WriteASS(out, process.Name, segments, style); err != nil {
					return err
				}
				if output != "" && output != "-" {
					fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d segments to %s\n", len(segments), output)
				}
				return nil
			})
		},
	}
	exportCmd.Flags().StringVarP(&output, "output", "o", "", "Output file (defaults to stdout)")
	exportCmd.Flags().BoolVar(&estimated, "estimate", false, "Estimate timing without synthesizing audio")
	subtitleCmd.AddCommand(exportCmd)

	return subtitleCmd
}

// processSegments lays every narration of a process onto one timeline. In
// separate mode the after-leg narration follows the before-leg narration.
func (c *commandContext) processSegments(ctx context.Context, cfg *config.Config, p catalog.Process, estimated bool) ([]timing.Segment, error) {
	var (
		all      []timing.Segment
		offset   float64
		narrator *speech.Narrator
	)
	if !estimated {
		var err error
		if narrator, err = c.narrator(); err != nil {
			return nil, err
		}
	}
	for _, text := range playback.NarrationTexts(p) {
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		var segments []timing.Segment
		if estimated {
			segments = timing.Map(text, timing.EstimateDuration(text, cfg.Narration.Speed))
		} else {
			track, err := narrator.Prepare(ctx, text)
			if err != nil {
				return nil, fmt.Errorf("synthesize narration: %w", err)
			}
			segments = track.Timing
		}
		all = append(all, shiftSegments(segments, offset)...)
		offset += timing.Duration(segments)
	}
	return all, nil
}

func shiftSegments(segments []timing.Segment, offset float64) []timing.Segment {
	if offset == 0 {
		return segments
	}
	shifted := make([]timing.Segment, len(segments))
	for i, seg := range segments {
		tokens := make([]timing.Token, len(seg.Tokens))
		for j, tok := range seg.Tokens {
			tok.Start += offset
			tok.End += offset
			tokens[j] = tok
		}
		shifted[i] = timing.Segment{Tokens: tokens, Start: seg.Start + offset, End: seg.End + offset}
	}
	return shifted
}
