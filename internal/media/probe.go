package media

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Info is what probing learned about a source.
type Info struct {
	Duration float64 `json:"duration"`
	Width    int     `json:"width,omitempty"`
	Height   int     `json:"height,omitempty"`
	HasVideo bool    `json:"has_video"`
}

// ProbeFunc inspects the file at an absolute path.
type ProbeFunc func(ctx context.Context, path string) (Info, error)

// ProbeCache remembers probe results per source. Lookups never run a probe;
// Warm measures sources ahead of use so player locks are never held across
// a subprocess.
type ProbeCache struct {
	probe   ProbeFunc
	timeout time.Duration

	mu    sync.Mutex
	known map[string]Info
	group singleflight.Group
}

// NewProbeCache builds a cache around probe. A non-positive timeout leaves
// each probe bounded only by the caller's context.
func NewProbeCache(probe ProbeFunc, timeout time.Duration) *ProbeCache {
	return &ProbeCache{probe: probe, timeout: timeout, known: map[string]Info{}}
}

// Lookup returns the recorded info for src. Plain paths and locators share
// entries; a query suffix makes a distinct entry.
func (c *ProbeCache) Lookup(src string) (Info, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	info, ok := c.known[probeKey(src)]
	return info, ok
}

// Duration is Lookup reduced to a length, 0 when unknown. It fits
// SimTrack.Probe.
func (c *ProbeCache) Duration(src string) float64 {
	info, _ := c.Lookup(src)
	return info.Duration
}

// Record stores info learned elsewhere, such as a synthesized narration
// length.
func (c *ProbeCache) Record(src string, info Info) {
	key := probeKey(src)
	if key == "" {
		return
	}
	c.mu.Lock()
	c.known[key] = info
	c.mu.Unlock()
}

// Warm probes every source not yet known. Failed sources stay unknown and
// are reported together.
func (c *ProbeCache) Warm(ctx context.Context, srcs ...string) error {
	var errs []error
	for _, src := range srcs {
		key := probeKey(src)
		if key == "" {
			continue
		}
		if _, ok := c.Lookup(key); ok {
			continue
		}
		_, err, _ := c.group.Do(key, func() (any, error) {
			return nil, c.measure(ctx, key)
		})
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *ProbeCache) measure(ctx context.Context, key string) error {
	if c.probe == nil {
		return fmt.Errorf("probe %s: no prober configured", key)
	}
	path, err := ResolveLocator(key)
	if err != nil {
		return fmt.Errorf("probe %s: %w", key, err)
	}
	if !filepath.IsAbs(path) {
		return fmt.Errorf("probe %s: path must be absolute", path)
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	info, err := c.probe(ctx, path)
	if err != nil {
		return fmt.Errorf("probe %s: %w", path, err)
	}
	c.Record(key, info)
	return nil
}

func probeKey(src string) string {
	if src == "" || IsLocator(src) {
		return src
	}
	return Locator(src)
}
