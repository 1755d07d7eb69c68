package speech

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"kaizen/internal/logging"
	"kaizen/internal/media"
	"kaizen/internal/media/ffprobe"
	"kaizen/internal/timing"
)

// AudioTrack is a playable narration entry. An empty Text denotes a
// placeholder with zero duration.
type AudioTrack struct {
	Src      string           `json:"src"`
	Path     string           `json:"-"`
	Hash     string           `json:"hash,omitempty"`
	Duration float64          `json:"duration"`
	Text     string           `json:"text"`
	Timing   []timing.Segment `json:"timing,omitempty"`
}

// Empty reports whether the track is a placeholder without audio.
func (a AudioTrack) Empty() bool {
	return a.Src == ""
}

// DurationProber measures audio length in seconds.
type DurationProber interface {
	Probe(ctx context.Context, path string) (float64, error)
}

// FFprobe measures duration with the ffprobe binary.
type FFprobe struct {
	Binary string
}

func (p FFprobe) Probe(ctx context.Context, path string) (float64, error) {
	result, err := ffprobe.Inspect(ctx, p.Binary, path)
	if err != nil {
		return 0, err
	}
	if result.AudioStreamCount() == 0 {
		return 0, fmt.Errorf("%s: no audio stream", path)
	}
	return result.DurationSeconds()
}

// Synthesizer is the cache surface the narrator needs.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice, rate string) (Result, error)
	LoadTiming(hash string) (float64, []timing.Segment, bool)
	SaveTiming(hash string, duration float64, segments []timing.Segment) error
	Invalidate(hash string) error
}

// NarratorConfig selects the voice and pacing.
type NarratorConfig struct {
	Voice         string
	Speed         float64
	BaselineSpeed float64
}

// Narrator prepares narration audio with timing data.
type Narrator struct {
	cache  Synthesizer
	prober DurationProber
	cfg    NarratorConfig
	logger *slog.Logger
}

// NewNarrator wires a narrator.
func NewNarrator(cache Synthesizer, prober DurationProber, cfg NarratorConfig, logger *slog.Logger) *Narrator {
	return &Narrator{
		cache:  cache,
		prober: prober,
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "narrator"),
	}
}

// Rate returns the service rate string for the configured speed.
func (n *Narrator) Rate() string {
	return RateString(n.cfg.Speed, n.cfg.BaselineSpeed)
}

// Speed returns the configured narration pace in characters per second.
func (n *Narrator) Speed() float64 {
	return n.cfg.Speed
}

// Prepare synthesizes text (or reuses the cache) and returns a track with
// its duration and timing segments. Blank text yields an empty placeholder.
func (n *Narrator) Prepare(ctx context.Context, text string) (AudioTrack, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return AudioTrack{}, nil
	}
	result, err := n.cache.Synthesize(ctx, text, n.cfg.Voice, n.Rate())
	if err != nil {
		return AudioTrack{Text: text, Hash: result.Hash}, err
	}

	track := AudioTrack{
		Src:  media.Locator(result.Path),
		Path: result.Path,
		Hash: result.Hash,
		Text: text,
	}
	if duration, segments, ok := n.cache.LoadTiming(result.Hash); ok {
		track.Duration = duration
		track.Timing = segments
		return track, nil
	}

	duration, err := n.prober.Probe(ctx, result.Path)
	if err != nil {
		return AudioTrack{Text: text, Hash: result.Hash}, fmt.Errorf("%w: probe duration: %w", ErrSynthesisFailed, err)
	}
	track.Duration = duration
	track.Timing = timing.Map(text, duration)
	if err := n.cache.SaveTiming(result.Hash, duration, track.Timing); err != nil {
		logging.WarnWithContext(n.logger, "timing sidecar not saved", "timing_cache_write_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "timing is recomputed on next use"),
		)
	}
	return track, nil
}

// Regenerate drops any cached audio for text and synthesizes it again.
func (n *Narrator) Regenerate(ctx context.Context, text string) (AudioTrack, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return AudioTrack{}, nil
	}
	if err := n.Invalidate(text); err != nil {
		return AudioTrack{Text: text}, err
	}
	track, err := n.Prepare(ctx, text)
	if err != nil {
		return track, err
	}
	// The file is rewritten at the same path.
	track.Src = media.Versioned(track.Src, time.Now().UnixNano())
	return track, nil
}

// Invalidate removes the cached audio and timing for text at the current
// voice and rate.
func (n *Narrator) Invalidate(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	return n.cache.Invalidate(ContentHash(text, n.cfg.Voice, n.Rate()))
}
