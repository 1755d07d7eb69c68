package playback

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"kaizen/internal/catalog"
	"kaizen/internal/logging"
	"kaizen/internal/speech"
)

// NarrationSource prepares narration audio for a piece of text.
// *speech.Narrator satisfies it.
type NarrationSource interface {
	Prepare(ctx context.Context, text string) (speech.AudioTrack, error)
	Regenerate(ctx context.Context, text string) (speech.AudioTrack, error)
}

// NarrationTexts lists what a process narrates: one text in combined mode,
// one per leg in separate mode.
func NarrationTexts(p catalog.Process) []string {
	if !p.Separate() {
		return []string{p.SubtitleText}
	}
	return []string{legText(p, LegBefore), legText(p, LegAfter)}
}

func blank(texts []string) bool {
	for _, text := range texts {
		if strings.TrimSpace(text) != "" {
			return false
		}
	}
	return true
}

// narrationLoader runs narration preparation off the command path. Results
// are handed back through a callback that decides whether they are still
// wanted.
type narrationLoader struct {
	source NarrationSource
	logger *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newNarrationLoader(source NarrationSource, logger *slog.Logger) *narrationLoader {
	ctx, cancel := context.WithCancel(context.Background())
	return &narrationLoader{source: source, logger: logger, ctx: ctx, cancel: cancel}
}

// load prepares every text in order and reports once. Blank texts become
// placeholder tracks.
func (l *narrationLoader) load(texts []string, regenerate bool, done func([]speech.AudioTrack, error)) {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		tracks := make([]speech.AudioTrack, len(texts))
		var errs []error
		for i, text := range texts {
			prepare := l.source.Prepare
			if regenerate {
				prepare = l.source.Regenerate
			}
			track, err := prepare(l.ctx, text)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			tracks[i] = track
		}
		done(tracks, errors.Join(errs...))
	}()
}

// preload warms the synthesis cache for texts without reporting back.
func (l *narrationLoader) preload(texts []string) {
	if blank(texts) {
		return
	}
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		for _, text := range texts {
			if _, err := l.source.Prepare(l.ctx, text); err != nil {
				l.logger.Debug("narration preload failed", logging.Error(err))
				return
			}
		}
	}()
}

func (l *narrationLoader) wait() {
	l.wg.Wait()
}

func (l *narrationLoader) close() {
	l.cancel()
	l.wg.Wait()
}
