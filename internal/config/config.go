package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir  string `toml:"data_dir"`
	CacheDir string `toml:"cache_dir"`
	LogDir   string `toml:"log_dir"`
	APIBind  string `toml:"api_bind"`
	// APIToken, when set, is required as a bearer token on API requests.
	APIToken string `toml:"api_token"`
}

// Speech contains configuration for the external speech synthesis service.
type Speech struct {
	BaseURL        string `toml:"base_url"`
	APIKey         string `toml:"api_key"`
	Voice          string `toml:"voice"`
	Format         string `toml:"format"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	RetryAttempts  int    `toml:"retry_attempts"`
	FFprobeBinary  string `toml:"ffprobe_binary"`
}

// Narration contains configuration for AI narration pacing.
type Narration struct {
	// Enabled is the default state of the AI narrator toggle.
	Enabled bool `toml:"enabled"`
	// Speed is the spoken pace in characters per second. It drives both the
	// synthesis rate offset and the fallback subtitle estimate.
	Speed float64 `toml:"speed"`
	// BaselineSpeed is the pace the speech service produces at a +0% rate.
	BaselineSpeed float64 `toml:"baseline_speed"`
	// SubtitleMode is the default for processes that do not set one
	// ("combined" or "separate").
	SubtitleMode string `toml:"subtitle_mode"`
}

// Playback contains tolerances for the dual-track controller.
type Playback struct {
	Rate                    float64 `toml:"rate"`
	Looping                 bool    `toml:"looping"`
	DriftThresholdMillis    int     `toml:"drift_threshold_ms"`
	CompletionEpsilonMillis int     `toml:"completion_epsilon_ms"`
	AdvanceDelayMillis      int     `toml:"advance_delay_ms"`
	TickIntervalMillis      int     `toml:"tick_interval_ms"`
}

// Subtitles contains the karaoke overlay style.
type Subtitles struct {
	FontSize          int     `toml:"font_size"`
	TextColor         string  `toml:"text_color"`
	HighlightColor    string  `toml:"highlight_color"`
	BackgroundColor   string  `toml:"background_color"`
	BackgroundOpacity float64 `toml:"background_opacity"`
	MaxLines          int     `toml:"max_lines"`
	LineWidth         int     `toml:"line_width"`
	PositionX         float64 `toml:"position_x"`
	PositionY         float64 `toml:"position_y"`
	EndMarker         string  `toml:"end_marker"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for kaizen.
//
// Configuration sections by subsystem:
//   - Paths: catalog database, speech cache, logs, and API bind address
//   - Speech: synthesis endpoint, credentials, and voice
//   - Narration: narrator default, pacing, and subtitle mode
//   - Playback: drift and completion tolerances for the controller
//   - Subtitles: overlay style parameters
//   - Logging: log format and level
type Config struct {
	Paths     Paths     `toml:"paths"`
	Speech    Speech    `toml:"speech"`
	Narration Narration `toml:"narration"`
	Playback  Playback  `toml:"playback"`
	Subtitles Subtitles `toml:"subtitles"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/kaizen/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("kaizen.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the data, cache, and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.CacheDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the SQLite catalog location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "kaizen.db")
}

// LockPath returns the single-instance lock used by the player server.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "kaizen.lock")
}

// DriftThreshold returns the drift tolerance in seconds.
func (c *Config) DriftThreshold() float64 {
	return float64(c.Playback.DriftThresholdMillis) / 1000
}

// CompletionEpsilon returns the end-of-segment tolerance in seconds.
func (c *Config) CompletionEpsilon() float64 {
	return float64(c.Playback.CompletionEpsilonMillis) / 1000
}

// AdvanceDelay returns the pause inserted between selecting a neighbouring
// process and starting it.
func (c *Config) AdvanceDelay() time.Duration {
	return time.Duration(c.Playback.AdvanceDelayMillis) * time.Millisecond
}

// TickInterval returns the headless tick cadence.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Playback.TickIntervalMillis) * time.Millisecond
}

// SpeechTimeout returns the HTTP timeout for synthesis requests.
func (c *Config) SpeechTimeout() time.Duration {
	return time.Duration(c.Speech.TimeoutSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
