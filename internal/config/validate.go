package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateSpeech(); err != nil {
		return err
	}
	if err := c.validateNarration(); err != nil {
		return err
	}
	if err := c.validatePlayback(); err != nil {
		return err
	}
	if err := c.validateSubtitles(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateSpeech() error {
	if !strings.HasPrefix(c.Speech.BaseURL, "http://") && !strings.HasPrefix(c.Speech.BaseURL, "https://") {
		return fmt.Errorf("speech.base_url must be an http(s) URL, got %q", c.Speech.BaseURL)
	}
	return ensurePositiveMap(map[string]int{
		"speech.timeout_seconds": c.Speech.TimeoutSeconds,
		"speech.retry_attempts":  c.Speech.RetryAttempts,
	})
}

func (c *Config) validateNarration() error {
	if c.Narration.Speed <= 0 {
		return errors.New("narration.speed must be positive (characters per second)")
	}
	if c.Narration.BaselineSpeed <= 0 {
		return errors.New("narration.baseline_speed must be positive")
	}
	switch c.Narration.SubtitleMode {
	case "combined", "separate":
	default:
		return fmt.Errorf("narration.subtitle_mode: unsupported value %q (want combined or separate)", c.Narration.SubtitleMode)
	}
	return nil
}

func (c *Config) validatePlayback() error {
	if c.Playback.Rate <= 0 || c.Playback.Rate > 16 {
		return errors.New("playback.rate must be in (0, 16]")
	}
	if err := ensurePositiveMap(map[string]int{
		"playback.drift_threshold_ms":    c.Playback.DriftThresholdMillis,
		"playback.completion_epsilon_ms": c.Playback.CompletionEpsilonMillis,
		"playback.tick_interval_ms":      c.Playback.TickIntervalMillis,
	}); err != nil {
		return err
	}
	if c.Playback.AdvanceDelayMillis < 0 {
		return errors.New("playback.advance_delay_ms must be >= 0")
	}
	return nil
}

func (c *Config) validateSubtitles() error {
	if c.Subtitles.FontSize < 12 || c.Subtitles.FontSize > 48 {
		return errors.New("subtitles.font_size must be between 12 and 48")
	}
	if c.Subtitles.BackgroundOpacity < 0 || c.Subtitles.BackgroundOpacity > 1 {
		return errors.New("subtitles.background_opacity must be between 0 and 1")
	}
	if c.Subtitles.MaxLines < 1 {
		return errors.New("subtitles.max_lines must be >= 1")
	}
	if c.Subtitles.LineWidth < 4 {
		return errors.New("subtitles.line_width must be >= 4")
	}
	for key, value := range map[string]string{
		"subtitles.text_color":       c.Subtitles.TextColor,
		"subtitles.highlight_color":  c.Subtitles.HighlightColor,
		"subtitles.background_color": c.Subtitles.BackgroundColor,
	} {
		if !isHexColor(value) {
			return fmt.Errorf("%s must be a #RRGGBB color, got %q", key, value)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	return nil
}

func isHexColor(value string) bool {
	if len(value) != 7 || value[0] != '#' {
		return false
	}
	for _, r := range value[1:] {
		switch {
		case r >= '0' && r <= '9', r >= 'A' && r <= 'F', r >= 'a' && r <= 'f':
		default:
			return false
		}
	}
	return true
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
