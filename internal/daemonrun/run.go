package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"kaizen/internal/catalog"
	"kaizen/internal/config"
	"kaizen/internal/daemon"
	"kaizen/internal/daemonctl"
	"kaizen/internal/logging"
	"kaizen/internal/media"
	"kaizen/internal/media/ffprobe"
	"kaizen/internal/playback"
	"kaizen/internal/preflight"
	"kaizen/internal/speech"
)

const probeTimeout = 15 * time.Second

// Options configures server process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the kaizen server and blocks until ctx ends or the process is
// signalled.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("kaizen-%s.log", runID))
	logHub := logging.NewStreamHub(4096)

	level := opts.LogLevel
	if strings.TrimSpace(level) == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", logPath},
		Development: opts.Development,
		Stream:      logHub,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update kaizen.log link: %v\n", err)
	}

	logDependencySnapshot(logger, cfg)
	for _, result := range preflight.RunAll(signalCtx, cfg) {
		if result.Passed {
			continue
		}
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldImpact, "affected features may be unavailable"),
		)
	}

	pidPath := daemonctl.PIDPath(cfg)
	if err := daemonctl.WritePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	store, err := catalog.Open(cfg)
	if err != nil {
		logger.Error("open catalog store", logging.Error(err))
		return err
	}

	probes := NewProbeCache(cfg)
	narrator := recordingNarrator{Narrator: NewNarrator(cfg, logger, registry), probes: probes}
	tracks := playback.Tracks{Before: newTrack(probes), After: newTrack(probes), Narration: newTrack(probes)}
	options := playback.OptionsFromConfig(cfg)
	options.Metrics = playback.NewMetrics(registry)
	controller := playback.New(tracks, narrator, options, logger)
	preview := playback.NewSinglePlayer(newTrack(probes), newTrack(probes), narrator, playback.OptionsFromConfig(cfg), logger)

	d, err := daemon.New(cfg, store, controller, logger,
		daemon.WithLogStream(logHub),
		daemon.WithRegistry(registry),
		daemon.WithProbeCache(probes),
		daemon.WithPreview(preview),
	)
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("create server: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "server start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check api_bind and whether another kaizen server is running"),
		)
		return err
	}

	<-signalCtx.Done()
	logger.Info("kaizen server shutting down")
	return nil
}

// NewNarrator wires the speech client, cache, and narrator from config. reg
// may be nil.
func NewNarrator(cfg *config.Config, logger *slog.Logger, reg prometheus.Registerer) *speech.Narrator {
	service := speech.NewHTTPService(speech.HTTPConfig{
		BaseURL:        cfg.Speech.BaseURL,
		APIKey:         cfg.Speech.APIKey,
		TimeoutSeconds: cfg.Speech.TimeoutSeconds,
	}, speech.WithRetryMaxAttempts(cfg.Speech.RetryAttempts))
	cache := speech.NewCache(cfg.Paths.CacheDir, cfg.Speech.Format, service, logger, speech.NewMetrics(reg))
	return speech.NewNarrator(cache, speech.FFprobe{Binary: cfg.Speech.FFprobeBinary}, speech.NarratorConfig{
		Voice:         cfg.Speech.Voice,
		Speed:         cfg.Narration.Speed,
		BaselineSpeed: cfg.Narration.BaselineSpeed,
	}, logger)
}

// NewProbeCache measures local media with ffprobe: length, frame size, and
// whether there is a video stream at all.
func NewProbeCache(cfg *config.Config) *media.ProbeCache {
	binary := cfg.Speech.FFprobeBinary
	return media.NewProbeCache(func(ctx context.Context, path string) (media.Info, error) {
		result, err := ffprobe.Inspect(ctx, binary, path)
		if err != nil {
			return media.Info{}, err
		}
		duration, err := result.DurationSeconds()
		if err != nil {
			return media.Info{}, err
		}
		info := media.Info{Duration: duration, HasVideo: result.VideoStreamCount() > 0}
		if w, h, ok := result.VideoDimensions(); ok {
			info.Width, info.Height = w, h
		}
		return info, nil
	}, probeTimeout)
}

// newTrack is a clock-driven track whose lengths come from probes.
func newTrack(probes *media.ProbeCache) *media.SimTrack {
	track := media.NewSimTrack(media.SystemClock{}, 0)
	track.Probe = probes.Duration
	return track
}

// recordingNarrator files every prepared narration's length with the probe
// cache so narration tracks never probe the audio themselves.
type recordingNarrator struct {
	*speech.Narrator
	probes *media.ProbeCache
}

func (n recordingNarrator) Prepare(ctx context.Context, text string) (speech.AudioTrack, error) {
	return n.record(n.Narrator.Prepare(ctx, text))
}

func (n recordingNarrator) Regenerate(ctx context.Context, text string) (speech.AudioTrack, error) {
	return n.record(n.Narrator.Regenerate(ctx, text))
}

func (n recordingNarrator) record(track speech.AudioTrack, err error) (speech.AudioTrack, error) {
	if err == nil && !track.Empty() {
		n.probes.Record(track.Src, media.Info{Duration: track.Duration})
	}
	return track, err
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "kaizen.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	ffprobeBinary := cfg.Speech.FFprobeBinary
	logger.Info("dependency snapshot",
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.Bool("speech_key_present", strings.TrimSpace(cfg.Speech.APIKey) != ""),
		logging.String("speech_url", cfg.Speech.BaseURL),
		logging.Bool("narration_enabled", cfg.Narration.Enabled),
		logging.Bool("ffprobe_available", binaryAvailable(ffprobeBinary)),
		logging.String("ffprobe_binary", ffprobeBinary),
		logging.Bool("api_token_set", strings.TrimSpace(cfg.Paths.APIToken) != ""),
	)
}

func binaryAvailable(name string) bool {
	if strings.TrimSpace(name) == "" {
		return false
	}
	_, err := exec.LookPath(name)
	return err == nil
}
