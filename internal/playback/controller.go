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
	"kaizen/internal/config"
	"kaizen/internal/logging"
	"kaizen/internal/media"
	"kaizen/internal/speech"
)

// Tracks are the three media sources a controller drives.
type Tracks struct {
	Before    media.Track
	After     media.Track
	Narration media.Track
}

// Options configure a Controller.
type Options struct {
	Rate           float64
	Looping        bool
	Muted          bool
	GlobalMode     bool
	NarratorActive bool
	// DriftThreshold and CompletionEpsilon are seconds.
	DriftThreshold    float64
	CompletionEpsilon float64
	// AdvanceDelay separates a next/previous selection from its play.
	AdvanceDelay time.Duration
	Clock        media.Clock
	Metrics      *Metrics
}

// OptionsFromConfig maps configuration onto controller options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Rate:              cfg.Playback.Rate,
		Looping:           cfg.Playback.Looping,
		NarratorActive:    cfg.Narration.Enabled,
		DriftThreshold:    cfg.DriftThreshold(),
		CompletionEpsilon: cfg.CompletionEpsilon(),
		AdvanceDelay:      cfg.AdvanceDelay(),
	}
}

func (o *Options) normalize() {
	if !finite(o.Rate) || o.Rate <= 0 {
		o.Rate = 1
	}
	if o.DriftThreshold <= 0 {
		o.DriftThreshold = 0.15
	}
	if o.CompletionEpsilon <= 0 {
		o.CompletionEpsilon = 0.08
	}
	if o.AdvanceDelay < 0 {
		o.AdvanceDelay = 0
	}
	if o.Clock == nil {
		o.Clock = media.SystemClock{}
	}
	if o.Metrics == nil {
		o.Metrics = NewMetrics(nil)
	}
}

// segment tracks completion within the current segment. videoDone latches
// once a video first reaches its window end.
type segment struct {
	videoDone map[Leg]bool
}

func newSegment() segment {
	return segment{videoDone: map[Leg]bool{}}
}

// narration is the prepared audio for the selected process.
type narration struct {
	status speech.Status
	tracks []speech.AudioTrack
	err    string
}

// Controller synchronizes the before and after videos of a stage with the
// narration of the selected process. All methods are safe for concurrent
// use; time updates and commands are applied one at a time.
type Controller struct {
	mu      sync.Mutex
	tracks  Tracks
	loader  *narrationLoader
	logger  *slog.Logger
	metrics *Metrics
	clock   media.Clock
	opts    Options

	processes []catalog.Process
	state     State
	seg       segment
	sessionID string

	// selection changes whenever the current process changes; narrationGen
	// changes whenever a narration request is issued. Both discard stale work.
	selection    uint64
	narrationGen uint64
	narration    narration

	wallAnchor time.Time
	wallBase   float64

	beforeProgress float64
	afterProgress  float64
	lastError      string

	sleep func(ctx context.Context, d time.Duration) error
}

// New builds a controller. source may be nil, which disables narration.
func New(tracks Tracks, source NarrationSource, opts Options, logger *slog.Logger) *Controller {
	opts.normalize()
	if source == nil {
		opts.NarratorActive = false
	}
	logger = logging.NewComponentLogger(logger, "playback")
	c := &Controller{
		tracks:    tracks,
		logger:    logger,
		metrics:   opts.Metrics,
		clock:     opts.Clock,
		opts:      opts,
		state:     State{Phase: PhaseIdle, Leg: LegBefore},
		seg:       newSegment(),
		narration: narration{status: speech.StatusIdle},
		sleep:     sleepContext,
	}
	if source != nil {
		c.loader = newNarrationLoader(source, logger)
	}
	c.tracks.Narration.SetRate(1)
	c.applyRateLocked()
	c.applyMutedLocked()
	return c
}

// Close abandons in-flight narration work and pauses every track.
func (c *Controller) Close() {
	if c.loader != nil {
		c.loader.close()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pauseTracksLocked()
}

// Wait blocks until in-flight narration preparation has been applied or
// discarded.
func (c *Controller) Wait() {
	if c.loader != nil {
		c.loader.wait()
	}
}

// LoadStage points the videos at a stage's recordings and loads its
// processes.
func (c *Controller) LoadStage(stage catalog.Stage, processes []catalog.Process) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loadSourceLocked(c.tracks.Before, stage.BeforeVideoPath)
	c.loadSourceLocked(c.tracks.After, stage.AfterVideoPath)
	c.setProcessesLocked(processes)
}

// SetProcesses replaces the process list and selects the first process.
func (c *Controller) SetProcesses(processes []catalog.Process) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setProcessesLocked(processes)
}

func (c *Controller) setProcessesLocked(processes []catalog.Process) {
	c.processes = append([]catalog.Process(nil), processes...)
	if len(c.processes) == 0 {
		c.pauseTracksLocked()
		c.selection++
		c.narrationGen++
		c.state = State{Phase: PhaseIdle, Leg: LegBefore}
		c.narration = narration{status: speech.StatusIdle}
		c.sessionID = ""
		return
	}
	c.selectLocked(0)
}

// SelectProcess makes the process with id current without playing it.
func (c *Controller) SelectProcess(id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.processes) == 0 {
		return ErrNoProcesses
	}
	for i, p := range c.processes {
		if p.ID == id {
			c.selectLocked(i)
			return nil
		}
	}
	return fmt.Errorf("%w: %d", ErrUnknownProcess, id)
}

// Play starts the current process. A paused segment with narration progress
// resumes in place; anything else starts the segment from its beginning.
func (c *Controller) Play(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.processes) == 0 {
		return ErrNoProcesses
	}
	switch {
	case c.state.Phase == PhasePlaying:
		return nil
	case c.state.Phase == PhasePaused && c.state.Elapsed > 0:
		c.resumeLocked(ctx)
		return nil
	}
	c.startLocked(ctx, c.state.Index)
	return nil
}

// PlayProcess starts the process at index from its beginning.
func (c *Controller) PlayProcess(ctx context.Context, index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.processes) == 0 {
		return ErrNoProcesses
	}
	if index < 0 || index >= len(c.processes) {
		return fmt.Errorf("%w: index %d", ErrUnknownProcess, index)
	}
	if index != c.state.Index {
		c.selectLocked(index)
	}
	c.startLocked(ctx, index)
	return nil
}

// Restart plays from the top: the first process in global mode, otherwise
// the current process.
func (c *Controller) Restart(ctx context.Context) error {
	c.mu.Lock()
	global := c.opts.GlobalMode
	index := c.state.Index
	c.mu.Unlock()
	if global {
		index = 0
	}
	return c.PlayProcess(ctx, index)
}

// Pause holds all three tracks in place.
func (c *Controller) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Phase == PhasePlaying {
		c.state = Transition(c.state, Event{Kind: EventProgress, Elapsed: c.measureElapsedLocked()})
	}
	c.pauseTracksLocked()
	c.state = Transition(c.state, Event{Kind: EventPause})
}

// NextProcess selects the following process and plays it after the advance
// delay. It does nothing on the last process.
func (c *Controller) NextProcess(ctx context.Context) error {
	return c.step(ctx, 1)
}

// PrevProcess selects the preceding process and plays it after the advance
// delay. It does nothing on the first process.
func (c *Controller) PrevProcess(ctx context.Context) error {
	return c.step(ctx, -1)
}

func (c *Controller) step(ctx context.Context, delta int) error {
	c.mu.Lock()
	if len(c.processes) == 0 {
		c.mu.Unlock()
		return ErrNoProcesses
	}
	target := c.state.Index + delta
	if target < 0 || target >= len(c.processes) {
		c.mu.Unlock()
		return nil
	}
	c.selectLocked(target)
	selection := c.selection
	delay := c.opts.AdvanceDelay
	c.mu.Unlock()

	if err := c.sleep(ctx, delay); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.selection != selection {
		return nil
	}
	c.startLocked(ctx, target)
	return nil
}

// Seek moves one video directly. Play state is unchanged.
func (c *Controller) Seek(leg Leg, seconds float64) error {
	if !leg.Valid() {
		return fmt.Errorf("seek: unknown leg %q", leg)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seekLocked(c.video(leg), string(leg), seconds)
	if len(c.processes) > 0 {
		c.updateProgressLocked(c.processes[c.state.Index])
	}
	return nil
}

// SetPlaybackRate changes the speed of both videos. Narration keeps its
// synthesized rate.
func (c *Controller) SetPlaybackRate(rate float64) error {
	if !finite(rate) || rate <= 0 {
		return fmt.Errorf("invalid playback rate %v", rate)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opts.Rate = rate
	c.applyRateLocked()
	return nil
}

// SetMuted toggles the videos' own sound. Narration is unaffected.
func (c *Controller) SetMuted(muted bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opts.Muted = muted
	c.applyMutedLocked()
}

// SetLooping toggles looping for subsequent segment completions.
func (c *Controller) SetLooping(looping bool) {
	c.mu.Lock()
	c.opts.Looping = looping
	c.mu.Unlock()
}

// SetGlobalMode toggles playback across the whole process list.
func (c *Controller) SetGlobalMode(global bool) {
	c.mu.Lock()
	c.opts.GlobalMode = global
	c.mu.Unlock()
}

// SetNarratorActive toggles narration. Any playback is stopped and the
// current segment resets to its start.
func (c *Controller) SetNarratorActive(active bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loader == nil {
		active = false
	}
	if c.opts.NarratorActive == active {
		return
	}
	c.opts.NarratorActive = active
	if len(c.processes) == 0 {
		return
	}
	c.pauseTracksLocked()
	c.state = Transition(c.state, Event{Kind: EventSelect, Index: c.state.Index, Leg: firstLeg(c.processes[c.state.Index])})
	c.requestNarrationLocked(false)
}

// RegenerateNarration drops cached audio for the current process and
// synthesizes it again.
func (c *Controller) RegenerateNarration() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.processes) == 0 {
		return ErrNoProcesses
	}
	if c.loader == nil || !c.opts.NarratorActive {
		return fmt.Errorf("regenerate narration: narrator inactive")
	}
	c.requestNarrationLocked(true)
	return nil
}

// Run ticks the controller every interval until ctx ends. Real media
// elements report time updates themselves; Run drives tracks that do not.
func (c *Controller) Run(ctx context.Context, interval time.Duration) error {
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
			c.Tick(ctx)
		}
	}
}

// selectLocked makes index current: tracks pause, elapsed resets, and the
// process gets a fresh session and narration request.
func (c *Controller) selectLocked(index int) {
	p := c.processes[index]
	c.pauseTracksLocked()
	c.selection++
	c.sessionID = uuid.NewString()
	c.state = Transition(c.state, Event{Kind: EventSelect, Index: index, Leg: firstLeg(p)})
	c.seg = newSegment()
	c.lastError = ""
	c.updateProgressLocked(p)
	c.requestNarrationLocked(false)
	if index+1 < len(c.processes) && c.loader != nil && c.opts.NarratorActive {
		c.loader.preload(NarrationTexts(c.processes[index+1]))
	}
	c.logger.Debug("process selected",
		logging.String(logging.FieldSessionID, c.sessionID),
		logging.Int64(logging.FieldProcessID, p.ID),
		logging.Int("index", index),
	)
}

// startLocked begins the segment at index from zero.
func (c *Controller) startLocked(ctx context.Context, index int) {
	c.state = Transition(c.state, Event{Kind: EventStart, Index: index, Leg: firstLeg(c.processes[index])})
	c.beginSegmentLocked(ctx)
}

// beginSegmentLocked seeks every present video to its window start and
// starts the tracks the current mode plays.
func (c *Controller) beginSegmentLocked(ctx context.Context) {
	p := c.processes[c.state.Index]
	c.seg = newSegment()
	for _, leg := range []Leg{LegBefore, LegAfter} {
		if !hasLeg(p, leg) {
			continue
		}
		start, _ := window(p, leg)
		c.seekLocked(c.video(leg), string(leg), start)
	}
	legs := c.playingLegsLocked(p)
	if p.Separate() {
		for _, leg := range []Leg{LegBefore, LegAfter} {
			if leg != c.state.Leg && hasLeg(p, leg) {
				c.video(leg).Pause()
			}
		}
	}
	live := c.loadAudioLocked(0)
	c.startTracksLocked(ctx, p, legs, live)
	c.updateProgressLocked(p)
}

// beginLegLocked starts the after leg of a separate-mode segment.
func (c *Controller) beginLegLocked(ctx context.Context, p catalog.Process) {
	c.seg = newSegment()
	start, _ := window(p, c.state.Leg)
	c.seekLocked(c.video(c.state.Leg), string(c.state.Leg), start)
	live := c.loadAudioLocked(0)
	c.startTracksLocked(ctx, p, []Leg{c.state.Leg}, live)
}

func (c *Controller) resumeLocked(ctx context.Context) {
	p := c.processes[c.state.Index]
	var legs []Leg
	for _, leg := range c.playingLegsLocked(p) {
		if !c.seg.videoDone[leg] || !c.videoFinishedLocked(p, leg) {
			legs = append(legs, leg)
		}
	}
	live := c.audioLiveLocked() && !c.audioFinishedLocked()
	c.state = Transition(c.state, Event{Kind: EventResume})
	c.startTracksLocked(ctx, p, legs, live)
}

// startTracksLocked plays the given videos and, if audio is set, the
// narration, all at once. The phase becomes playing only if every video
// started; a narration failure only disables narration for this process.
func (c *Controller) startTracksLocked(ctx context.Context, p catalog.Process, legs []Leg, audio bool) {
	c.applyRateLocked()
	c.tracks.Narration.SetRate(1)

	videoErrs := make([]error, len(legs))
	var audioErr error
	var g errgroup.Group
	for i, leg := range legs {
		g.Go(func() error {
			videoErrs[i] = c.video(leg).Play(ctx)
			return videoErrs[i]
		})
	}
	if audio {
		g.Go(func() error {
			audioErr = c.tracks.Narration.Play(ctx)
			return audioErr
		})
	}
	_ = g.Wait()

	// Some media backends reset the rate when playback starts.
	c.applyRateLocked()
	c.tracks.Narration.SetRate(1)

	for i, err := range videoErrs {
		if err == nil {
			continue
		}
		c.metrics.PlayFailures.WithLabelValues(string(legs[i])).Inc()
		c.lastError = err.Error()
		logging.ErrorWithContext(c.logger, "video playback rejected", "play_rejected",
			logging.String(logging.FieldSessionID, c.sessionID),
			logging.Int64(logging.FieldProcessID, p.ID),
			logging.String(logging.FieldLeg, string(legs[i])),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check that the video file exists and is playable"),
		)
		c.pauseTracksLocked()
		c.state = Transition(c.state, Event{Kind: EventReject})
		return
	}
	if audioErr != nil {
		c.metrics.PlayFailures.WithLabelValues("narration").Inc()
		c.failNarrationLocked(p, audioErr)
	}
	c.wallAnchor = c.clock.Now()
	c.wallBase = c.state.Elapsed
}

// playingLegsLocked lists the videos the current mode plays.
func (c *Controller) playingLegsLocked(p catalog.Process) []Leg {
	if p.Separate() {
		return []Leg{c.state.Leg}
	}
	var legs []Leg
	for _, leg := range []Leg{LegBefore, LegAfter} {
		if hasLeg(p, leg) {
			legs = append(legs, leg)
		}
	}
	return legs
}

// requestNarrationLocked discards the current narration and, when the
// narrator is active, prepares audio for the current process.
func (c *Controller) requestNarrationLocked(regenerate bool) {
	c.narrationGen++
	c.narration = narration{status: speech.StatusIdle}
	c.tracks.Narration.Pause()
	if c.loader == nil || !c.opts.NarratorActive || len(c.processes) == 0 {
		return
	}
	p := c.processes[c.state.Index]
	texts := NarrationTexts(p)
	if blank(texts) {
		return
	}
	c.narration.status = speech.StatusGenerating
	gen := c.narrationGen
	c.loader.load(texts, regenerate, func(tracks []speech.AudioTrack, err error) {
		c.applyNarration(gen, p, tracks, err)
	})
}

// applyNarration installs prepared audio if it still belongs to the current
// request. A segment already under way picks the narration up at its
// current elapsed time.
func (c *Controller) applyNarration(gen uint64, p catalog.Process, tracks []speech.AudioTrack, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.narrationGen {
		c.logger.Debug("discarding stale narration", logging.Int64(logging.FieldProcessID, p.ID))
		return
	}
	if err != nil {
		c.failNarrationLocked(p, err)
		return
	}
	c.narration = narration{status: speech.StatusReady, tracks: tracks}
	c.logger.Info("narration ready",
		logging.String(logging.FieldSessionID, c.sessionID),
		logging.Int64(logging.FieldProcessID, p.ID),
	)

	if c.state.Phase == PhaseIdle {
		return
	}
	elapsed := c.state.Elapsed
	if c.state.Phase == PhasePlaying {
		elapsed = c.measureElapsedLocked()
	}
	if !c.loadAudioLocked(elapsed) || c.audioFinishedLocked() {
		return
	}
	if c.state.Phase != PhasePlaying {
		return
	}
	c.metrics.LateNarration.Inc()
	if err := c.tracks.Narration.Play(c.loader.ctx); err != nil {
		c.metrics.PlayFailures.WithLabelValues("narration").Inc()
		c.failNarrationLocked(p, err)
		return
	}
	c.tracks.Narration.SetRate(1)
}

// failNarrationLocked disables narration for the current process only.
func (c *Controller) failNarrationLocked(p catalog.Process, err error) {
	c.tracks.Narration.Pause()
	c.narration = narration{status: speech.StatusFailed, err: err.Error()}
	logging.WarnWithContext(c.logger, "narration unavailable", "narration_failed",
		logging.String(logging.FieldSessionID, c.sessionID),
		logging.Int64(logging.FieldProcessID, p.ID),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "regenerate narration or check the speech service"),
		logging.String(logging.FieldImpact, "process plays without narration"),
	)
}

// currentAudio returns the narration for the active leg.
func (c *Controller) currentAudioLocked() (speech.AudioTrack, bool) {
	if c.narration.status != speech.StatusReady || len(c.processes) == 0 {
		return speech.AudioTrack{}, false
	}
	slot := 0
	if c.processes[c.state.Index].Separate() && c.state.Leg == LegAfter {
		slot = 1
	}
	if slot >= len(c.narration.tracks) {
		return speech.AudioTrack{}, false
	}
	return c.narration.tracks[slot], true
}

// audioLiveLocked reports whether the active leg has narration audio.
func (c *Controller) audioLiveLocked() bool {
	track, ok := c.currentAudioLocked()
	return ok && !track.Empty()
}

// loadAudioLocked points the narration track at the active leg's audio and
// positions it at offset. It reports whether there is audio to play.
func (c *Controller) loadAudioLocked(offset float64) bool {
	c.tracks.Narration.Pause()
	track, ok := c.currentAudioLocked()
	if !ok || track.Empty() {
		return false
	}
	// Compared exactly: regenerated audio differs only by its cache buster.
	if c.tracks.Narration.Source() != track.Src {
		c.tracks.Narration.SetSource(track.Src)
	}
	c.seekLocked(c.tracks.Narration, "narration", offset)
	return true
}

func (c *Controller) audioFinishedLocked() bool {
	if c.tracks.Narration.Ended() {
		return true
	}
	duration := c.tracks.Narration.Duration()
	if track, ok := c.currentAudioLocked(); ok && track.Duration > 0 {
		duration = track.Duration
	}
	return duration > 0 && c.tracks.Narration.Position() >= duration-c.opts.CompletionEpsilon
}

// measureElapsedLocked reads the narration clock: the audio position while
// narration plays, otherwise wall-clock time since playback started.
func (c *Controller) measureElapsedLocked() float64 {
	now := c.clock.Now()
	if c.audioLiveLocked() && !c.tracks.Narration.Paused() {
		pos := c.tracks.Narration.Position()
		c.wallBase = pos
		c.wallAnchor = now
		return pos
	}
	return c.wallBase + now.Sub(c.wallAnchor).Seconds()
}

func (c *Controller) videoFinishedLocked(p catalog.Process, leg Leg) bool {
	track := c.video(leg)
	_, end := window(p, leg)
	return track.Ended() || track.Position() >= end-c.opts.CompletionEpsilon
}

func (c *Controller) updateProgressLocked(p catalog.Process) {
	c.beforeProgress, c.afterProgress = 0, 0
	if p.HasBefore() {
		c.beforeProgress = Progress(c.tracks.Before.Position(), p.BeforeStart, p.BeforeEnd)
	}
	if p.HasAfter() {
		c.afterProgress = Progress(c.tracks.After.Position(), p.AfterStart, p.AfterEnd)
	}
}

func (c *Controller) seekLocked(track media.Track, name string, seconds float64) {
	seekTrack(c.logger, track, name, seconds)
}

// seekTrack never hands a track a non-finite or negative position.
func seekTrack(logger *slog.Logger, track media.Track, name string, seconds float64) {
	if !finite(seconds) {
		logging.WarnWithContext(logger, "non-finite seek target replaced", "invalid_seek_target",
			logging.String("track", name),
			logging.String("requested", fmt.Sprint(seconds)),
			logging.String(logging.FieldErrorHint, "check the process time window"),
			logging.String(logging.FieldImpact, "track starts from 0"),
		)
		seconds = 0
	}
	if seconds < 0 {
		seconds = 0
	}
	track.Seek(seconds)
}

func (c *Controller) loadSourceLocked(track media.Track, path string) {
	if path == "" {
		return
	}
	src := path
	if !media.IsLocator(src) {
		src = media.Locator(path)
	}
	if !media.SameSource(track.Source(), src) {
		track.SetSource(src)
	}
}

func (c *Controller) pauseTracksLocked() {
	c.tracks.Before.Pause()
	c.tracks.After.Pause()
	c.tracks.Narration.Pause()
}

func (c *Controller) applyRateLocked() {
	c.tracks.Before.SetRate(c.opts.Rate)
	c.tracks.After.SetRate(c.opts.Rate)
}

func (c *Controller) applyMutedLocked() {
	c.tracks.Before.SetMuted(c.opts.Muted)
	c.tracks.After.SetMuted(c.opts.Muted)
}

func (c *Controller) video(leg Leg) media.Track {
	if leg == LegBefore {
		return c.tracks.Before
	}
	return c.tracks.After
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
