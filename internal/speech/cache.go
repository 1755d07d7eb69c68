package speech

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/singleflight"

	"kaizen/internal/logging"
	"kaizen/internal/timing"
)

const lockRetryDelay = 100 * time.Millisecond

// Result describes a synthesized audio file.
type Result struct {
	Path   string
	Hash   string
	Cached bool
}

// Cache stores synthesized audio under <dir>/<hash>.<format>.
type Cache struct {
	dir     string
	format  string
	service Service
	logger  *slog.Logger
	metrics *Metrics
	group   singleflight.Group
}

// NewCache builds a cache rooted at dir. A nil metrics value disables counting.
func NewCache(dir, format string, service Service, logger *slog.Logger, metrics *Metrics) *Cache {
	format = strings.TrimPrefix(strings.TrimSpace(format), ".")
	if format == "" {
		format = "mp3"
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Cache{
		dir:     dir,
		format:  format,
		service: service,
		logger:  logging.NewComponentLogger(logger, "speech"),
		metrics: metrics,
	}
}

// AudioPath returns where the audio for hash is stored.
func (c *Cache) AudioPath(hash string) string {
	return filepath.Join(c.dir, hash+"."+c.format)
}

// TimingPath returns where the timing sidecar for hash is stored.
func (c *Cache) TimingPath(hash string) string {
	return filepath.Join(c.dir, hash+".timing.json")
}

// Synthesize returns the audio path for (text, voice, rate), calling the
// service only when no cached file exists.
func (c *Cache) Synthesize(ctx context.Context, text, voice, rate string) (Result, error) {
	hash := ContentHash(text, voice, rate)
	path := c.AudioPath(hash)
	if fileReady(path) {
		c.metrics.Hits.Inc()
		return Result{Path: path, Hash: hash, Cached: true}, nil
	}

	v, err, _ := c.group.Do(hash, func() (any, error) {
		return c.generate(ctx, hash, Request{Text: text, Voice: voice, Rate: rate, Format: c.format})
	})
	if err != nil {
		return Result{Hash: hash}, err
	}
	return v.(Result), nil
}

func (c *Cache) generate(ctx context.Context, hash string, req Request) (Result, error) {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return Result{}, fmt.Errorf("speech cache: ensure dir: %w", err)
	}
	lock := flock.New(filepath.Join(c.dir, hash+".lock"))
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return Result{}, fmt.Errorf("speech cache: lock %s: %w", hash, err)
	}
	if !locked {
		return Result{}, fmt.Errorf("speech cache: lock %s not acquired", hash)
	}
	defer func() {
		_ = lock.Unlock()
	}()

	path := c.AudioPath(hash)
	// Another process may have produced the file while we waited.
	if fileReady(path) {
		c.metrics.Hits.Inc()
		return Result{Path: path, Hash: hash, Cached: true}, nil
	}

	c.metrics.Misses.Inc()
	started := time.Now()
	audio, err := c.service.Synthesize(ctx, req)
	c.metrics.Latency.Observe(time.Since(started).Seconds())
	if err != nil {
		c.metrics.Failures.Inc()
		return Result{}, fmt.Errorf("%w: %w", ErrSynthesisFailed, err)
	}
	if len(audio) == 0 {
		c.metrics.Failures.Inc()
		return Result{}, fmt.Errorf("%w: empty audio", ErrSynthesisFailed)
	}
	if err := writeAtomic(path, audio); err != nil {
		return Result{}, fmt.Errorf("speech cache: persist audio: %w", err)
	}
	c.logger.Info("narration synthesized",
		logging.String("hash", hash[:12]),
		logging.Int("bytes", len(audio)),
		logging.Duration("elapsed", time.Since(started)),
	)
	return Result{Path: path, Hash: hash}, nil
}

// Invalidate removes the audio file and timing sidecar for hash. Missing
// files are not an error.
func (c *Cache) Invalidate(hash string) error {
	hash = strings.TrimSpace(hash)
	if hash == "" || strings.ContainsAny(hash, `/\.`) {
		return fmt.Errorf("speech cache: invalid hash %q", hash)
	}
	var errs []error
	for _, path := range []string{c.AudioPath(hash), c.TimingPath(hash)} {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	c.metrics.Evictions.Inc()
	return errors.Join(errs...)
}

type timingSidecar struct {
	Duration float64          `json:"duration"`
	Segments []timing.Segment `json:"segments"`
}

// LoadTiming reads a previously stored timing sidecar.
func (c *Cache) LoadTiming(hash string) (float64, []timing.Segment, bool) {
	data, err := os.ReadFile(c.TimingPath(hash))
	if err != nil {
		return 0, nil, false
	}
	var sidecar timingSidecar
	if err := json.Unmarshal(data, &sidecar); err != nil || !(sidecar.Duration > 0) {
		return 0, nil, false
	}
	return sidecar.Duration, sidecar.Segments, true
}

// SaveTiming stores the timing sidecar for hash.
func (c *Cache) SaveTiming(hash string, duration float64, segments []timing.Segment) error {
	data, err := json.Marshal(timingSidecar{Duration: duration, Segments: segments})
	if err != nil {
		return fmt.Errorf("speech cache: encode timing: %w", err)
	}
	return writeAtomic(c.TimingPath(hash), data)
}

func fileReady(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular() && info.Size() > 0
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}
