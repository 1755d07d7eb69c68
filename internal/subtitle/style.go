package subtitle

import (
	"fmt"
	"strconv"
	"strings"

	"kaizen/internal/config"
)

// StyleSettingKey is where a user-adjusted style is persisted.
const StyleSettingKey = "subtitle_style"

// Style holds the overlay presentation. Render applies it only as
// parameters; positions are percentages of the video frame.
type Style struct {
	FontSize          int     `json:"font_size"`
	TextColor         string  `json:"text_color"`
	HighlightColor    string  `json:"highlight_color"`
	BackgroundColor   string  `json:"background_color"`
	BackgroundOpacity float64 `json:"background_opacity"`
	MaxLines          int     `json:"max_lines"`
	LineWidth         int     `json:"line_width"`
	PositionX         float64 `json:"position_x"`
	PositionY         float64 `json:"position_y"`
	EndMarker         string  `json:"end_marker,omitempty"`
}

// StyleFromConfig converts configured defaults into a Style.
func StyleFromConfig(cfg config.Subtitles) Style {
	return Style{
		FontSize:          cfg.FontSize,
		TextColor:         cfg.TextColor,
		HighlightColor:    cfg.HighlightColor,
		BackgroundColor:   cfg.BackgroundColor,
		BackgroundOpacity: cfg.BackgroundOpacity,
		MaxLines:          cfg.MaxLines,
		LineWidth:         cfg.LineWidth,
		PositionX:         cfg.PositionX,
		PositionY:         cfg.PositionY,
		EndMarker:         cfg.EndMarker,
	}
}

// Clamp keeps user adjustments within the ranges the overlay supports.
func (s Style) Clamp() Style {
	s.FontSize = clampInt(s.FontSize, 12, 48)
	s.BackgroundOpacity = clampFloat(s.BackgroundOpacity, 0, 1)
	s.PositionX = clampFloat(s.PositionX, 0, 90)
	s.PositionY = clampFloat(s.PositionY, 0, 95)
	if s.MaxLines < 1 {
		s.MaxLines = 1
	}
	if s.LineWidth < 4 {
		s.LineWidth = 4
	}
	return s
}

// Validate checks the colors.
func (s Style) Validate() error {
	for name, value := range map[string]string{
		"text_color":       s.TextColor,
		"highlight_color":  s.HighlightColor,
		"background_color": s.BackgroundColor,
	} {
		if _, _, _, err := parseHex(value); err != nil {
			return fmt.Errorf("subtitle style %s: %w", name, err)
		}
	}
	return nil
}

// BackgroundRGBA renders the background as a CSS rgba() value.
func (s Style) BackgroundRGBA() string {
	r, g, b, err := parseHex(s.BackgroundColor)
	if err != nil {
		r, g, b = 0, 0, 0
	}
	return fmt.Sprintf("rgba(%d, %d, %d, %s)", r, g, b, strconv.FormatFloat(clampFloat(s.BackgroundOpacity, 0, 1), 'f', -1, 64))
}

func parseHex(value string) (uint8, uint8, uint8, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(value), "#")
	if len(hex) != 6 {
		return 0, 0, 0, fmt.Errorf("color %q must be #RRGGBB", value)
	}
	n, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("color %q must be #RRGGBB", value)
	}
	return uint8(n >> 16), uint8(n >> 8), uint8(n), nil
}

func clampInt(v, lo, hi int) int {
	return min(max(v, lo), hi)
}

func clampFloat(v, lo, hi float64) float64 {
	if v != v {
		return lo
	}
	return min(max(v, lo), hi)
}
