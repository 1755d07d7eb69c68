package testsupport

import (
	"path/filepath"
	"testing"

	"kaizen/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.CacheDir = filepath.Join(base, "cache")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Speech.APIKey = "test"
	cfgVal.Speech.RetryAttempts = 1

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithSpeechURL points the speech client at a test server.
func WithSpeechURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Speech.BaseURL = url
	}
}

// WithNarration toggles the narrator default.
func WithNarration(enabled bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Narration.Enabled = enabled
	}
}

// WithFFprobeStub points speech.ffprobe_binary at a script that prints
// output and appends a line to "<script>.calls" on every run.
func WithFFprobeStub(output string) ConfigOption {
	return func(b *configBuilder) {
		body := "echo '" + output + "'\necho x >> \"$0.calls\"\n"
		b.cfg.Speech.FFprobeBinary = WriteScript(b.t, filepath.Join(b.baseDir, "bin"), "ffprobe", body)
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
