package playback

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"kaizen/internal/catalog"
	"kaizen/internal/logging"
	"kaizen/internal/media"
	"kaizen/internal/speech"
)

// SinglePlayer plays one recording of one process with its narration. It
// shares the completion policy with Controller in single-process mode: the
// video replays while narration speaks, and looping replays the process.
type SinglePlayer struct {
	mu        sync.Mutex
	video     media.Track
	narration media.Track
	loader    *narrationLoader
	logger    *slog.Logger
	clock     media.Clock
	opts      Options

	stage     catalog.Stage
	process   catalog.Process
	loaded    bool
	view      Leg
	state     State
	sessionID string
	videoDone bool

	gen       uint64
	status    speech.Status
	audio     speech.AudioTrack
	lastError string

	wallAnchor time.Time
	wallBase   float64
}

// NewSinglePlayer builds a player. source may be nil, which disables
// narration.
func NewSinglePlayer(video, narration media.Track, source NarrationSource, opts Options, logger *slog.Logger) *SinglePlayer {
	opts.normalize()
	if source == nil {
		opts.NarratorActive = false
	}
	logger = logging.NewComponentLogger(logger, "single_player")
	s := &SinglePlayer{
		video:     video,
		narration: narration,
		logger:    logger,
		clock:     opts.Clock,
		opts:      opts,
		view:      LegBefore,
		state:     State{Phase: PhaseIdle, Leg: LegBefore},
		status:    speech.StatusIdle,
	}
	if source != nil {
		s.loader = newNarrationLoader(source, logger)
	}
	s.video.SetRate(opts.Rate)
	s.video.SetMuted(opts.Muted)
	s.narration.SetRate(1)
	return s
}

// Load shows one recording of a process. The view must exist for the
// process type.
func (s *SinglePlayer) Load(stage catalog.Stage, process catalog.Process, view Leg) error {
	if !hasLeg(process, view) {
		return fmt.Errorf("%w: process %d has no %s recording", ErrUnknownProcess, process.ID, view)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stage = stage
	s.process = process
	s.loaded = true
	s.switchViewLocked(view)
	return nil
}

// SetView switches between the before and after recordings.
func (s *SinglePlayer) SetView(view Leg) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return ErrNoProcesses
	}
	if !hasLeg(s.process, view) {
		return fmt.Errorf("%w: process %d has no %s recording", ErrUnknownProcess, s.process.ID, view)
	}
	if view != s.view {
		s.switchViewLocked(view)
	}
	return nil
}

func (s *SinglePlayer) switchViewLocked(view Leg) {
	s.view = view
	s.video.Pause()
	s.narration.Pause()
	path := s.stage.BeforeVideoPath
	if view == LegAfter {
		path = s.stage.AfterVideoPath
	}
	if path != "" {
		src := media.Locator(path)
		if !media.SameSource(s.video.Source(), src) {
			s.video.SetSource(src)
		}
	}
	s.sessionID = uuid.NewString()
	s.state = Transition(s.state, Event{Kind: EventSelect, Leg: view})
	s.requestNarrationLocked()
}

// Play starts the recording from its window start, or resumes a paused one.
func (s *SinglePlayer) Play(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return ErrNoProcesses
	}
	switch {
	case s.state.Phase == PhasePlaying:
		return nil
	case s.state.Phase == PhasePaused && s.state.Elapsed > 0:
		s.state = Transition(s.state, Event{Kind: EventResume})
		s.startLocked(ctx, !s.videoDone, s.liveLocked() && !s.audioFinishedLocked())
		return nil
	}
	s.restartLocked(ctx)
	return nil
}

// Pause holds the video and narration.
func (s *SinglePlayer) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Phase == PhasePlaying {
		s.state = Transition(s.state, Event{Kind: EventProgress, Elapsed: s.elapsedLocked()})
	}
	s.video.Pause()
	s.narration.Pause()
	s.state = Transition(s.state, Event{Kind: EventPause})
}

// SetLooping toggles replaying the process when it finishes.
func (s *SinglePlayer) SetLooping(looping bool) {
	s.mu.Lock()
	s.opts.Looping = looping
	s.mu.Unlock()
}

// SetPlaybackRate changes the video speed only.
func (s *SinglePlayer) SetPlaybackRate(rate float64) error {
	if !finite(rate) || rate <= 0 {
		return fmt.Errorf("invalid playback rate %v", rate)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opts.Rate = rate
	s.video.SetRate(rate)
	return nil
}

// Tick applies one time update.
func (s *SinglePlayer) Tick(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded || s.state.Phase != PhasePlaying {
		return
	}
	s.state = Transition(s.state, Event{Kind: EventProgress, Elapsed: s.elapsedLocked()})

	_, end := window(s.process, s.view)
	finished := s.video.Ended() || s.video.Position() >= end-s.opts.CompletionEpsilon
	if finished {
		s.videoDone = true
	}
	audioDone := !s.liveLocked() || s.audioFinishedLocked()
	if audioDone {
		s.narration.Pause()
	}

	switch {
	case s.videoDone && audioDone:
		d := Decide(s.opts.Looping, false, 0, 1)
		s.logger.Info("segment complete", logging.Args(append(
			logging.DecisionAttrs("segment_complete", string(d.Action), "narration and video finished"),
			logging.String(logging.FieldSessionID, s.sessionID),
			logging.Int64(logging.FieldProcessID, s.process.ID),
		)...)...)
		if d.Action == ActionStop {
			s.video.Pause()
			s.state = Transition(s.state, Event{Kind: EventSegmentComplete, Decision: d})
			return
		}
		s.restartLocked(ctx)
	case finished:
		start, _ := window(s.process, s.view)
		seekTrack(s.logger, s.video, string(s.view), start)
		if err := s.video.Play(ctx); err == nil {
			s.video.SetRate(s.opts.Rate)
		}
	}
}

// Run ticks the player every interval until ctx ends.
func (s *SinglePlayer) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Snapshot reports the player state using the controller's shape.
func (s *SinglePlayer) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		SessionID:       s.sessionID,
		Phase:           s.state.Phase,
		Leg:             s.view,
		Elapsed:         s.state.Elapsed,
		Rate:            s.opts.Rate,
		Looping:         s.opts.Looping,
		NarratorActive:  s.opts.NarratorActive,
		NarrationStatus: s.status,
		LastError:       s.lastError,
	}
	if !s.loaded {
		return snap
	}
	snap.ProcessID = s.process.ID
	snap.ProcessCount = 1
	snap.SubtitleMode = string(s.process.SubtitleMode)
	start, end := window(s.process, s.view)
	pos := s.video.Position()
	if s.view == LegBefore {
		snap.BeforePosition = pos
		snap.BeforeProgress = Progress(pos, start, end)
	} else {
		snap.AfterPosition = pos
		snap.AfterProgress = Progress(pos, start, end)
	}
	if s.state.Phase == PhasePlaying {
		snap.Elapsed = s.elapsedLocked()
	}
	if s.opts.NarratorActive {
		snap.NarrationText = s.textLocked()
		if s.status == speech.StatusReady {
			snap.NarrationDuration = s.audio.Duration
			snap.NarrationTiming = s.audio.Timing
		}
	}
	return snap
}

// Wait blocks until in-flight narration preparation settles.
func (s *SinglePlayer) Wait() {
	if s.loader != nil {
		s.loader.wait()
	}
}

// Close abandons narration work and pauses playback.
func (s *SinglePlayer) Close() {
	if s.loader != nil {
		s.loader.close()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.video.Pause()
	s.narration.Pause()
}

func (s *SinglePlayer) restartLocked(ctx context.Context) {
	s.state = Transition(s.state, Event{Kind: EventStart, Leg: s.view})
	s.videoDone = false
	start, _ := window(s.process, s.view)
	seekTrack(s.logger, s.video, string(s.view), start)
	live := s.loadAudioLocked(0)
	s.startLocked(ctx, true, live)
}

func (s *SinglePlayer) startLocked(ctx context.Context, video, audio bool) {
	s.video.SetRate(s.opts.Rate)
	var videoErr, audioErr error
	var g errgroup.Group
	if video {
		g.Go(func() error {
			videoErr = s.video.Play(ctx)
			return videoErr
		})
	}
	if audio {
		g.Go(func() error {
			audioErr = s.narration.Play(ctx)
			return audioErr
		})
	}
	_ = g.Wait()
	s.video.SetRate(s.opts.Rate)
	s.narration.SetRate(1)

	if videoErr != nil {
		s.lastError = videoErr.Error()
		logging.ErrorWithContext(s.logger, "video playback rejected", "play_rejected",
			logging.String(logging.FieldSessionID, s.sessionID),
			logging.Int64(logging.FieldProcessID, s.process.ID),
			logging.String(logging.FieldLeg, string(s.view)),
			logging.Error(videoErr),
		)
		s.narration.Pause()
		s.state = Transition(s.state, Event{Kind: EventReject})
		return
	}
	if audioErr != nil {
		s.narration.Pause()
		s.status = speech.StatusFailed
		s.audio = speech.AudioTrack{}
		logging.WarnWithContext(s.logger, "narration unavailable", "narration_failed",
			logging.Int64(logging.FieldProcessID, s.process.ID),
			logging.Error(audioErr),
			logging.String(logging.FieldImpact, "process plays without narration"),
		)
	}
	s.wallAnchor = s.clock.Now()
	s.wallBase = s.state.Elapsed
}

func (s *SinglePlayer) textLocked() string {
	if !s.process.Separate() {
		return s.process.SubtitleText
	}
	return legText(s.process, s.view)
}

func (s *SinglePlayer) requestNarrationLocked() {
	s.gen++
	s.status = speech.StatusIdle
	s.audio = speech.AudioTrack{}
	if s.loader == nil || !s.opts.NarratorActive {
		return
	}
	texts := []string{s.textLocked()}
	if blank(texts) {
		return
	}
	s.status = speech.StatusGenerating
	gen := s.gen
	s.loader.load(texts, false, func(tracks []speech.AudioTrack, err error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if gen != s.gen {
			return
		}
		if err != nil {
			s.status = speech.StatusFailed
			logging.WarnWithContext(s.logger, "narration unavailable", "narration_failed",
				logging.Int64(logging.FieldProcessID, s.process.ID),
				logging.Error(err),
				logging.String(logging.FieldImpact, "process plays without narration"),
			)
			return
		}
		s.applyAudioLocked(tracks[0])
	})
}

// applyAudioLocked installs prepared narration. Playback already under way
// picks it up at the current elapsed time; audio that would already be over
// counts as finished.
func (s *SinglePlayer) applyAudioLocked(track speech.AudioTrack) {
	var elapsed float64
	if s.state.Phase == PhasePlaying {
		elapsed = s.elapsedLocked()
	} else {
		elapsed = s.state.Elapsed
	}
	s.status = speech.StatusReady
	s.audio = track
	if s.state.Phase == PhaseIdle {
		return
	}
	if !s.loadAudioLocked(elapsed) || s.audioFinishedLocked() || s.state.Phase != PhasePlaying {
		return
	}
	s.wallAnchor = s.clock.Now()
	s.wallBase = elapsed
	if err := s.narration.Play(s.loader.ctx); err != nil {
		s.narration.Pause()
		s.status = speech.StatusFailed
		s.audio = speech.AudioTrack{}
		logging.WarnWithContext(s.logger, "narration unavailable", "narration_failed",
			logging.Int64(logging.FieldProcessID, s.process.ID),
			logging.Error(err),
			logging.String(logging.FieldImpact, "process plays without narration"),
		)
		return
	}
	s.narration.SetRate(1)
}

// loadAudioLocked points the narration track at the prepared audio and
// positions it at offset. It reports whether there is audio to play.
func (s *SinglePlayer) loadAudioLocked(offset float64) bool {
	s.narration.Pause()
	if !s.liveLocked() {
		return false
	}
	if !media.SameSource(s.narration.Source(), s.audio.Src) {
		s.narration.SetSource(s.audio.Src)
	}
	seekTrack(s.logger, s.narration, "narration", offset)
	return true
}

func (s *SinglePlayer) liveLocked() bool {
	return s.status == speech.StatusReady && !s.audio.Empty()
}

func (s *SinglePlayer) audioFinishedLocked() bool {
	if s.narration.Ended() {
		return true
	}
	return s.audio.Duration > 0 && s.narration.Position() >= s.audio.Duration-s.opts.CompletionEpsilon
}

func (s *SinglePlayer) elapsedLocked() float64 {
	now := s.clock.Now()
	if s.liveLocked() && !s.narration.Paused() {
		pos := s.narration.Position()
		s.wallBase = pos
		s.wallAnchor = now
		return pos
	}
	return s.wallBase + now.Sub(s.wallAnchor).Seconds()
}
