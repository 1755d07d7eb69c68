package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeSpeech()
	c.normalizeNarration()
	c.normalizeSubtitles()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.CacheDir) == "" {
		c.Paths.CacheDir = defaultCacheDir
	}
	if c.Paths.CacheDir, err = expandPath(c.Paths.CacheDir); err != nil {
		return fmt.Errorf("paths.cache_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	if value, ok := os.LookupEnv("KAIZEN_API_TOKEN"); ok && strings.TrimSpace(value) != "" {
		c.Paths.APIToken = value
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	return nil
}

func (c *Config) normalizeSpeech() {
	if value, ok := os.LookupEnv("KAIZEN_SPEECH_API_KEY"); ok && strings.TrimSpace(value) != "" {
		c.Speech.APIKey = value
	}
	c.Speech.APIKey = strings.TrimSpace(c.Speech.APIKey)
	if value, ok := os.LookupEnv("KAIZEN_SPEECH_URL"); ok && strings.TrimSpace(value) != "" {
		c.Speech.BaseURL = value
	}
	c.Speech.BaseURL = strings.TrimSpace(c.Speech.BaseURL)
	if c.Speech.BaseURL == "" {
		c.Speech.BaseURL = defaultSpeechBaseURL
	}
	c.Speech.Voice = strings.TrimSpace(c.Speech.Voice)
	if c.Speech.Voice == "" {
		c.Speech.Voice = defaultSpeechVoice
	}
	c.Speech.Format = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(c.Speech.Format), "."))
	if c.Speech.Format == "" {
		c.Speech.Format = defaultSpeechFormat
	}
	c.Speech.FFprobeBinary = strings.TrimSpace(c.Speech.FFprobeBinary)
	if c.Speech.FFprobeBinary == "" {
		c.Speech.FFprobeBinary = defaultFFprobeBinary
	}
}

func (c *Config) normalizeNarration() {
	c.Narration.SubtitleMode = strings.ToLower(strings.TrimSpace(c.Narration.SubtitleMode))
	if c.Narration.SubtitleMode == "" {
		c.Narration.SubtitleMode = defaultSubtitleMode
	}
	if c.Narration.BaselineSpeed == 0 {
		c.Narration.BaselineSpeed = defaultNarrationBaselineSpeed
	}
}

func (c *Config) normalizeSubtitles() {
	c.Subtitles.TextColor = normalizeColor(c.Subtitles.TextColor, defaultSubtitleTextColor)
	c.Subtitles.HighlightColor = normalizeColor(c.Subtitles.HighlightColor, defaultSubtitleHighlightColor)
	c.Subtitles.BackgroundColor = normalizeColor(c.Subtitles.BackgroundColor, defaultSubtitleBackgroundColor)
	c.Subtitles.EndMarker = strings.TrimSpace(c.Subtitles.EndMarker)
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func normalizeColor(value, fallback string) string {
	value = strings.ToUpper(strings.TrimSpace(value))
	if value == "" {
		return fallback
	}
	if !strings.HasPrefix(value, "#") {
		value = "#" + value
	}
	return value
}
