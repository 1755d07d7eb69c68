package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"kaizen/internal/timing"
)

func newTimingCommand(ctx *commandContext) *cobra.Command {
	var (
		duration float64
		speed    float64
		tokens   bool
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "timing <text>",
		Short: "Show how narration text maps onto an audio timeline",
		Long: "Splits text into timed segments the same way the player does. " +
			"Without --duration the length is estimated from the narration speed.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if duration <= 0 {
				if speed <= 0 {
					cfg, err := ctx.ensureConfig()
					if err != nil {
						return err
					}
					speed = cfg.Narration.Speed
				}
				duration = timing.EstimateDuration(text, speed)
			}
			segments := timing.Map(text, duration)
			if asJSON {
				return writeJSON(cmd, segments)
			}
			if len(segments) == 0 {
				return errors.New("no timing data for this text")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d segments over %s\n", len(segments), seconds(timing.Duration(segments)))
			fmt.Fprintln(cmd.OutOrStdout(), renderSegments(segments))
			if tokens {
				writeTokens(cmd.OutOrStdout(), segments)
			}
			return nil
		},
	}
	cmd.Annotations = map[string]string{"skipConfigLoad": "true"}
	cmd.Flags().Float64Var(&duration, "duration", 0, "Audio length in seconds")
	cmd.Flags().Float64Var(&speed, "speed", 0, "Characters per second when estimating (defaults to narration.speed)")
	cmd.Flags().BoolVar(&tokens, "tokens", false, "Also list every token")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON")
	return cmd
}

func renderSegments(segments []timing.Segment) string {
	rows := make([][]string, 0, len(segments))
	for i, seg := range segments {
		rows = append(rows, []string{
			strconv.Itoa(i),
			seconds(seg.Start),
			seconds(seg.End),
			segmentText(seg),
		})
	}
	return renderTable([]string{"#", "Start", "End", "Text"}, rows,
		[]columnAlignment{alignRight, alignRight, alignRight, alignLeft})
}

func writeTokens(out io.Writer, segments []timing.Segment) {
	rows := make([][]string, 0)
	for i, seg := range segments {
		for _, tok := range seg.Tokens {
			rows = append(rows, []string{
				strconv.Itoa(i),
				strconv.Quote(tok.Text),
				string(tok.Type),
				seconds(tok.Start),
				seconds(tok.Duration),
			})
		}
	}
	fmt.Fprintln(out, renderTable([]string{"Segment", "Token", "Kind", "Start", "Length"}, rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight}))
}

func segmentText(seg timing.Segment) string {
	var b strings.Builder
	for _, tok := range seg.Tokens {
		b.WriteString(tok.Text)
	}
	return strings.TrimSpace(b.String())
}
