package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/prometheus/client_golang/prometheus"

	"kaizen/internal/annotation"
	"kaizen/internal/api"
	"kaizen/internal/catalog"
	"kaizen/internal/config"
	"kaizen/internal/logging"
	"kaizen/internal/media"
	"kaizen/internal/playback"
	"kaizen/internal/preflight"
	"kaizen/internal/subtitle"
)

// ErrPreviewUnavailable reports a server started without a preview player.
var ErrPreviewUnavailable = errors.New("preview player unavailable")

// Daemon owns the controller loop and the API server, and enforces
// single-instance execution.
type Daemon struct {
	cfg        *config.Config
	baseLogger *slog.Logger
	logger     *slog.Logger
	store      *catalog.Store
	controller *playback.Controller
	catalog    *api.CatalogService
	logHub     *logging.StreamHub
	registry   *prometheus.Registry
	probes     *media.ProbeCache
	preview    *playback.SinglePlayer

	mu    sync.Mutex
	stage catalog.Stage

	lockPath string
	lock     *flock.Flock
	api      *apiServer

	running   atomic.Bool
	startedAt time.Time
	cancel    context.CancelFunc
	loop      sync.WaitGroup
}

// Option customizes a daemon.
type Option func(*Daemon)

// WithLogStream exposes hub through /api/logs.
func WithLogStream(hub *logging.StreamHub) Option {
	return func(d *Daemon) { d.logHub = hub }
}

// WithRegistry serves reg on /metrics.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(d *Daemon) { d.registry = reg }
}

// WithProbeCache measures stage videos when a stage loads, before the
// controller sees them.
func WithProbeCache(probes *media.ProbeCache) Option {
	return func(d *Daemon) { d.probes = probes }
}

// WithPreview serves a single-recording preview player on /api/preview.
func WithPreview(preview *playback.SinglePlayer) Option {
	return func(d *Daemon) { d.preview = preview }
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *catalog.Store, controller *playback.Controller, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil || store == nil || controller == nil {
		return nil, errors.New("daemon requires config, store, and controller")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:        cfg,
		baseLogger: logger,
		logger:     logging.NewComponentLogger(logger, "daemon"),
		store:      store,
		controller: controller,
		catalog:    api.NewCatalogService(store, subtitle.StyleFromConfig(cfg.Subtitles)),
		lockPath:   lockPath,
		lock:       flock.New(lockPath),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Start acquires the instance lock, starts the controller tick loop, and
// begins serving the API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another kaizen server instance is already running")
	}

	d.api = newAPIServer(d.cfg, d, d.baseLogger)
	if err := d.api.start(); err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("start api server: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.startedAt = time.Now()
	d.loop.Add(1)
	go func() {
		defer d.loop.Done()
		_ = d.controller.Run(runCtx, d.cfg.TickInterval())
	}()
	if d.preview != nil {
		d.loop.Add(1)
		go func() {
			defer d.loop.Done()
			_ = d.preview.Run(runCtx, d.cfg.TickInterval())
		}()
	}

	d.running.Store(true)
	d.logger.Info("kaizen server started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
		logging.String("address", d.Addr()),
	)
	return nil
}

// Stop halts the tick loop and API server and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	d.loop.Wait()
	d.controller.Pause()
	if d.preview != nil {
		d.preview.Pause()
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("kaizen server stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	d.controller.Close()
	if d.preview != nil {
		d.preview.Close()
	}
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Addr reports the API listen address, or "" when not serving.
func (d *Daemon) Addr() string {
	if d.api == nil || d.api.listener == nil {
		return ""
	}
	return d.api.listener.Addr().String()
}

// LoadStage reads a stage and its processes and hands them to the
// controller. Stage videos are probed first so the controller never waits on
// ffprobe while holding its lock.
func (d *Daemon) LoadStage(ctx context.Context, stageID int64) (api.StageResponse, error) {
	resp, err := d.catalog.Stage(ctx, stageID)
	if err != nil {
		return api.StageResponse{}, err
	}
	d.warm(ctx, resp.Stage)
	d.mu.Lock()
	d.stage = resp.Stage
	d.mu.Unlock()
	d.controller.LoadStage(resp.Stage, resp.Processes)
	d.logger.Info("stage loaded",
		logging.String(logging.FieldEventType, "stage_loaded"),
		logging.Int64("stage_id", stageID),
		logging.Int("process_count", len(resp.Processes)),
	)
	return resp, nil
}

// Player composes the current snapshot with its overlays. A viewport with a
// positive size adds pixel placements for the loaded stage's videos.
func (d *Daemon) Player(ctx context.Context, view api.Viewport) (api.PlayerResponse, error) {
	d.mu.Lock()
	stage := d.stage
	d.mu.Unlock()
	return d.overlay(ctx, d.controller.Snapshot(), stage, view)
}

// LoadPreview shows one recording of a process in the preview player. An
// empty view picks the process's first recording.
func (d *Daemon) LoadPreview(ctx context.Context, processID int64, view playback.Leg) error {
	if d.preview == nil {
		return ErrPreviewUnavailable
	}
	process, err := d.store.Process(ctx, processID)
	if err != nil {
		return err
	}
	stage, err := d.store.Stage(ctx, process.StageID)
	if err != nil {
		return err
	}
	if view == "" {
		view = playback.LegBefore
		if !process.HasBefore() {
			view = playback.LegAfter
		}
	}
	d.warm(ctx, *stage)
	return d.preview.Load(*stage, *process, view)
}

// Preview composes the preview player's snapshot with its overlays. Only
// the recording on show carries annotations.
func (d *Daemon) Preview(ctx context.Context, view api.Viewport) (api.PlayerResponse, error) {
	if d.preview == nil {
		return api.PlayerResponse{}, ErrPreviewUnavailable
	}
	snap := d.preview.Snapshot()
	var stage catalog.Stage
	if snap.ProcessID != 0 {
		process, err := d.store.Process(ctx, snap.ProcessID)
		if err != nil {
			return api.PlayerResponse{}, err
		}
		if s, err := d.store.Stage(ctx, process.StageID); err == nil {
			stage = *s
		}
	}
	resp, err := d.overlay(ctx, snap, stage, view)
	if err != nil {
		return api.PlayerResponse{}, err
	}
	hidden := annotation.VideoAfter
	if snap.Leg == playback.LegAfter {
		hidden = annotation.VideoBefore
	}
	resp.Annotations[hidden] = []annotation.Annotation{}
	delete(resp.Placements, hidden)
	return resp, nil
}

// AddAnnotation stores an annotation drawn in viewport pixels on one of a
// process's videos.
func (d *Daemon) AddAnnotation(ctx context.Context, req api.AnnotationRequest) (*annotation.Annotation, error) {
	process, err := d.store.Process(ctx, req.ProcessID)
	if err != nil {
		return nil, err
	}
	stage, err := d.store.Stage(ctx, process.StageID)
	if err != nil {
		return nil, err
	}
	d.warm(ctx, *stage)
	frame := d.frames(*stage)[req.VideoType]
	created, err := d.catalog.AddAnnotation(ctx, req, frame)
	if err != nil {
		return nil, err
	}
	d.logger.Info("annotation added",
		logging.String(logging.FieldEventType, "annotation_added"),
		logging.Int64(logging.FieldProcessID, created.ProcessID),
		logging.Int64("annotation_id", created.ID),
		logging.String("video_type", string(created.VideoType)),
	)
	return created, nil
}

func (d *Daemon) overlay(ctx context.Context, snap playback.Snapshot, stage catalog.Stage, view api.Viewport) (api.PlayerResponse, error) {
	style, err := d.catalog.Style(ctx)
	if err != nil {
		d.logger.Warn("subtitle style unavailable", logging.Error(err))
	}
	annotations, err := d.catalog.Annotations(ctx, snap.ProcessID)
	if err != nil {
		return api.PlayerResponse{}, err
	}
	resp := api.Overlay(snap, style, d.cfg.Narration.Speed, annotations)
	if view.Width > 0 && view.Height > 0 {
		api.Place(&resp, view, d.frames(stage))
	}
	return resp, nil
}

// warm probes a stage's videos. Failures only cost markers and placements,
// so they are logged and otherwise ignored.
func (d *Daemon) warm(ctx context.Context, stage catalog.Stage) {
	if d.probes == nil {
		return
	}
	if err := d.probes.Warm(ctx, stage.BeforeVideoPath, stage.AfterVideoPath); err != nil {
		d.logger.Debug("stage video probe failed",
			logging.Int64("stage_id", stage.ID),
			logging.Error(err),
		)
	}
	for videoType, path := range map[annotation.VideoType]string{
		annotation.VideoBefore: stage.BeforeVideoPath,
		annotation.VideoAfter:  stage.AfterVideoPath,
	} {
		if info, ok := d.probes.Lookup(path); ok && path != "" && !info.HasVideo {
			logging.WarnWithContext(d.logger, "stage video has no video stream", "stage_video_invalid",
				logging.Int64("stage_id", stage.ID),
				logging.String("video_type", string(videoType)),
				logging.String("path", path),
				logging.String(logging.FieldImpact, "annotations cannot be placed on this video"),
			)
		}
	}
}

// frames returns the probed frame size of each stage video that has one.
func (d *Daemon) frames(stage catalog.Stage) map[annotation.VideoType]api.FrameSize {
	out := map[annotation.VideoType]api.FrameSize{}
	if d.probes == nil {
		return out
	}
	for videoType, path := range map[annotation.VideoType]string{
		annotation.VideoBefore: stage.BeforeVideoPath,
		annotation.VideoAfter:  stage.AfterVideoPath,
	} {
		if path == "" {
			continue
		}
		if info, ok := d.probes.Lookup(path); ok && info.Width > 0 && info.Height > 0 {
			out[videoType] = api.FrameSize{Width: info.Width, Height: info.Height}
		}
	}
	return out
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) api.StatusResponse {
	status := api.StatusResponse{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		DatabasePath: d.store.Path(),
		LockFilePath: d.lockPath,
		CacheDir:     d.cfg.Paths.CacheDir,
		Checks:       preflight.RunAll(ctx, d.cfg),
		Dependencies: preflight.CheckSystemDeps(d.cfg),
	}
	if version, err := d.store.SchemaVersion(ctx); err == nil {
		status.SchemaVersion = version
	}
	if status.Running {
		status.StartedAt = d.startedAt.UTC().Format(api.DateTimeFormat)
	}
	return status
}
