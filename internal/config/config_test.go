package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"kaizen/internal/config"
)

func TestLoadDefaultConfigUsesEnvSpeechKeyAndExpandsPaths(t *testing.T) {
	t.Setenv("KAIZEN_SPEECH_API_KEY", "test-key")
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "kaizen")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.Paths.CacheDir != filepath.Join(tempHome, ".cache", "kaizen", "speech") {
		t.Fatalf("unexpected cache dir: %q", cfg.Paths.CacheDir)
	}
	if cfg.DatabasePath() != filepath.Join(wantData, "kaizen.db") {
		t.Fatalf("unexpected database path: %q", cfg.DatabasePath())
	}
	if cfg.Speech.APIKey != "test-key" {
		t.Fatalf("expected speech key from env, got %q", cfg.Speech.APIKey)
	}
	if !cfg.Narration.Enabled {
		t.Fatal("expected narrator enabled by default")
	}
	if cfg.Narration.SubtitleMode != "combined" {
		t.Fatalf("expected combined subtitle mode, got %q", cfg.Narration.SubtitleMode)
	}
	if got := cfg.DriftThreshold(); got != 0.15 {
		t.Fatalf("expected drift threshold 0.15s, got %v", got)
	}
	if got := cfg.AdvanceDelay(); got != 150*time.Millisecond {
		t.Fatalf("unexpected advance delay %v", got)
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "kaizen.toml")

	type payload struct {
		Speech struct {
			BaseURL string `toml:"base_url"`
			Voice   string `toml:"voice"`
		} `toml:"speech"`
		Narration struct {
			Speed        float64 `toml:"speed"`
			SubtitleMode string  `toml:"subtitle_mode"`
		} `toml:"narration"`
		Subtitles struct {
			HighlightColor string `toml:"highlight_color"`
		} `toml:"subtitles"`
	}
	custom := payload{}
	custom.Speech.BaseURL = "https://speech.example.com/v1/synthesize"
	custom.Speech.Voice = "zh-CN-YunxiNeural"
	custom.Narration.Speed = 6.5
	custom.Narration.SubtitleMode = " Separate "
	custom.Subtitles.HighlightColor = "00ff88"
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Speech.BaseURL != "https://speech.example.com/v1/synthesize" {
		t.Fatalf("expected base url override, got %q", cfg.Speech.BaseURL)
	}
	if cfg.Speech.Voice != "zh-CN-YunxiNeural" {
		t.Fatalf("expected voice override, got %q", cfg.Speech.Voice)
	}
	if cfg.Narration.Speed != 6.5 {
		t.Fatalf("expected speed 6.5, got %v", cfg.Narration.Speed)
	}
	if cfg.Narration.SubtitleMode != "separate" {
		t.Fatalf("expected normalized subtitle mode, got %q", cfg.Narration.SubtitleMode)
	}
	if cfg.Subtitles.HighlightColor != "#00FF88" {
		t.Fatalf("expected normalized highlight color, got %q", cfg.Subtitles.HighlightColor)
	}
	if cfg.Playback.DriftThresholdMillis != config.Default().Playback.DriftThresholdMillis {
		t.Fatalf("expected default drift threshold to survive partial file")
	}
}

func TestEnvVarOverridesConfigFileForSpeech(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "kaizen.toml")
	contents := "[speech]\napi_key = \"file-key\"\nbase_url = \"http://file.example/v1\"\n"
	if err := os.WriteFile(configPath, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("KAIZEN_SPEECH_API_KEY", "env-key")
	t.Setenv("KAIZEN_SPEECH_URL", "http://env.example/v1")

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Speech.APIKey != "env-key" {
		t.Errorf("expected speech key from env, got %q", cfg.Speech.APIKey)
	}
	if cfg.Speech.BaseURL != "http://env.example/v1" {
		t.Errorf("expected speech url from env, got %q", cfg.Speech.BaseURL)
	}
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "kaizen.toml")
	if err := os.WriteFile(configPath, []byte("[narration\nspeed = "), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(configPath); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(contents), "KAIZEN_SPEECH_API_KEY") {
		t.Fatalf("sample config missing env hint: %s", contents)
	}

	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if cfg.Narration.Speed != config.Default().Narration.Speed {
		t.Fatalf("sample narration speed %v differs from default", cfg.Narration.Speed)
	}
	if !strings.Contains(cfg.Paths.DataDir, "kaizen") {
		t.Fatalf("expected data dir to contain kaizen, got %q", cfg.Paths.DataDir)
	}
}

func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.CacheDir = filepath.Join(base, "cache")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.CacheDir, cfg.Paths.LogDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %q", dir)
		}
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	cases := map[string]func(*config.Config){
		"zero speed":        func(c *config.Config) { c.Narration.Speed = 0 },
		"unknown mode":      func(c *config.Config) { c.Narration.SubtitleMode = "stacked" },
		"zero drift":        func(c *config.Config) { c.Playback.DriftThresholdMillis = 0 },
		"negative delay":    func(c *config.Config) { c.Playback.AdvanceDelayMillis = -1 },
		"font too small":    func(c *config.Config) { c.Subtitles.FontSize = 8 },
		"opacity above one": func(c *config.Config) { c.Subtitles.BackgroundOpacity = 1.5 },
		"bad color":         func(c *config.Config) { c.Subtitles.TextColor = "white" },
		"non-http speech":   func(c *config.Config) { c.Speech.BaseURL = "ftp://speech" },
		"zero retries":      func(c *config.Config) { c.Speech.RetryAttempts = 0 },
		"unknown log fmt":   func(c *config.Config) { c.Logging.Format = "xml" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := config.Default()
			mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}

	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}
