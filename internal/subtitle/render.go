package subtitle

import (
	"math"

	"kaizen/internal/timing"
)

// GraceWindow keeps the final segment on screen briefly after it ends.
const GraceWindow = 2.0

// Mode reports how a frame was produced.
type Mode string

const (
	ModeNone     Mode = "none"
	ModeKaraoke  Mode = "karaoke"
	ModeFallback Mode = "fallback"
	ModeEnd      Mode = "end"
)

// Input is everything a frame depends on.
type Input struct {
	Segments []timing.Segment
	// Text is the narration script, used when Segments is empty.
	Text string
	// Time is the narration clock in seconds.
	Time   float64
	Active bool
	// Speed is the narration pace in characters per second.
	Speed float64
	Style Style
}

// TokenReveal is one token with how much of it is highlighted. Progress is
// a percentage of the token's width, revealed left to right.
type TokenReveal struct {
	Text     string      `json:"text"`
	Type     timing.Kind `json:"type"`
	Progress float64     `json:"progress"`
}

// Frame is one rendered overlay state.
type Frame struct {
	Visible bool   `json:"visible"`
	Mode    Mode   `json:"mode"`
	Text    string `json:"text,omitempty"`
	// Lines holds the wrapped tokens in karaoke mode.
	Lines [][]TokenReveal `json:"lines,omitempty"`
	// TextLines holds the wrapped text in fallback and end modes.
	TextLines []string `json:"text_lines,omitempty"`
	Style     Style    `json:"style"`
}

// Render produces the frame for in.
func Render(in Input) Frame {
	frame := Frame{Mode: ModeNone, Style: in.Style}
	if !in.Active || math.IsNaN(in.Time) || math.IsInf(in.Time, 0) {
		return frame
	}
	if len(in.Segments) > 0 {
		seg, ok := ActiveSegment(in.Segments, in.Time)
		if !ok {
			return frame
		}
		tokens := Reveal(seg, in.Time)
		frame.Visible = true
		frame.Mode = ModeKaraoke
		frame.Text = joinTokens(tokens)
		frame.Lines = WrapTokens(tokens, in.Style.LineWidth, in.Style.MaxLines)
		return frame
	}

	text, mode := FallbackText(in.Text, in.Time, in.Speed, in.Style.EndMarker)
	if text == "" {
		return frame
	}
	frame.Visible = true
	frame.Mode = mode
	frame.Text = text
	frame.TextLines = WrapText(text, in.Style.LineWidth, in.Style.MaxLines)
	return frame
}

// ActiveSegment returns the segment whose [start, end) contains t, or the
// last segment while t is within GraceWindow after it ends.
func ActiveSegment(segments []timing.Segment, t float64) (timing.Segment, bool) {
	for _, seg := range segments {
		if t >= seg.Start && t < seg.End {
			return seg, true
		}
	}
	if len(segments) == 0 {
		return timing.Segment{}, false
	}
	last := segments[len(segments)-1]
	if t >= last.End && t < last.End+GraceWindow {
		return last, true
	}
	return timing.Segment{}, false
}

// Reveal computes per-token highlight progress at time t.
func Reveal(seg timing.Segment, t float64) []TokenReveal {
	out := make([]TokenReveal, 0, len(seg.Tokens))
	for _, tok := range seg.Tokens {
		out = append(out, TokenReveal{Text: tok.Text, Type: tok.Type, Progress: TokenProgress(tok, t)})
	}
	return out
}

// TokenProgress is clamp((t-start)/duration, 0, 1) as a percentage. A token
// with no duration is fully revealed once t reaches its start.
func TokenProgress(tok timing.Token, t float64) float64 {
	if tok.Duration <= 0 {
		if t >= tok.Start {
			return 100
		}
		return 0
	}
	p := (t - tok.Start) / tok.Duration
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	return p * 100
}

func joinTokens(tokens []TokenReveal) string {
	var n int
	for _, tok := range tokens {
		n += len(tok.Text)
	}
	buf := make([]byte, 0, n)
	for _, tok := range tokens {
		buf = append(buf, tok.Text...)
	}
	return string(buf)
}
