package playback

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"kaizen/internal/catalog"
	"kaizen/internal/logging"
	"kaizen/internal/media"
	"kaizen/internal/speech"
	"kaizen/internal/timing"
)

type stubNarrator struct {
	mu        sync.Mutex
	durations map[string]float64
	err       error
	gates     map[string]chan struct{}
	calls     []string

	regenerated int
}

func (s *stubNarrator) Prepare(ctx context.Context, text string) (speech.AudioTrack, error) {
	s.mu.Lock()
	s.calls = append(s.calls, text)
	gate := s.gates[text]
	err := s.err
	duration := s.durations[text]
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return speech.AudioTrack{}, ctx.Err()
		}
	}
	if err != nil {
		return speech.AudioTrack{Text: text}, err
	}
	if text == "" {
		return speech.AudioTrack{}, nil
	}
	return speech.AudioTrack{
		Src:      audioSrc(text),
		Duration: duration,
		Text:     text,
		Timing:   timing.Map(text, duration),
	}, nil
}

func (s *stubNarrator) Regenerate(ctx context.Context, text string) (speech.AudioTrack, error) {
	track, err := s.Prepare(ctx, text)
	if err != nil || track.Src == "" {
		return track, err
	}
	s.mu.Lock()
	s.regenerated++
	version := s.regenerated
	s.mu.Unlock()
	track.Src = media.Versioned(track.Src, int64(version))
	return track, nil
}

func audioSrc(text string) string {
	return media.Locator("/cache/" + text + ".mp3")
}

type fixture struct {
	t        *testing.T
	clock    *media.ManualClock
	before   *media.SimTrack
	after    *media.SimTrack
	audio    *media.SimTrack
	narrator *stubNarrator
	ctrl     *Controller
}

// newFixture builds a controller over simulated tracks. narration maps text
// to audio duration; a nil map runs without a narrator.
func newFixture(t *testing.T, opts Options, narration map[string]float64) *fixture {
	t.Helper()
	clock := media.NewManualClock(time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC))
	f := &fixture{
		t:      t,
		clock:  clock,
		before: media.NewSimTrack(clock, 0),
		after:  media.NewSimTrack(clock, 0),
		audio:  media.NewSimTrack(clock, 0),
	}
	f.audio.SourceDurations = map[string]float64{}
	opts.Clock = clock
	if opts.CompletionEpsilon == 0 {
		opts.CompletionEpsilon = 0.08
	}

	var source NarrationSource
	if narration != nil {
		f.narrator = &stubNarrator{durations: narration, gates: map[string]chan struct{}{}}
		for text, d := range narration {
			f.audio.SourceDurations[audioSrc(text)] = d
		}
		source = f.narrator
		opts.NarratorActive = true
	}
	f.ctrl = New(Tracks{Before: f.before, After: f.after, Narration: f.audio}, source, opts, logging.NewNop())
	f.ctrl.sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	t.Cleanup(f.ctrl.Close)
	return f
}

// run advances the clock in 50ms steps for d, ticking after each step.
func (f *fixture) run(d time.Duration) {
	f.t.Helper()
	const step = 50 * time.Millisecond
	for elapsed := time.Duration(0); elapsed < d; elapsed += step {
		f.clock.Advance(step)
		f.ctrl.Tick(context.Background())
	}
}

func normal(id int64, beforeStart, beforeEnd, afterStart, afterEnd float64) catalog.Process {
	return catalog.Process{
		ID: id, Name: "step", Type: catalog.ProcessNormal, SubtitleMode: catalog.SubtitleCombined,
		BeforeStart: beforeStart, BeforeEnd: beforeEnd, AfterStart: afterStart, AfterEnd: afterEnd,
	}
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func TestDriftCorrectionSeeksOnlyBeyondThreshold(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	f.ctrl.SetProcesses([]catalog.Process{normal(1, 10, 20, 0, 8)})
	if err := f.ctrl.Play(context.Background()); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	f.clock.Advance(time.Second)

	f.after.Seek(1.1)
	seeks := len(f.after.Seeks())
	f.ctrl.Tick(context.Background())
	if got := len(f.after.Seeks()); got != seeks {
		t.Fatalf("expected no corrective seek within threshold, got %d extra", got-seeks)
	}

	f.after.Seek(1.2)
	seeks = len(f.after.Seeks())
	f.ctrl.Tick(context.Background())
	f.ctrl.Tick(context.Background())
	if got := len(f.after.Seeks()); got != seeks+1 {
		t.Fatalf("expected exactly one corrective seek, got %d", got-seeks)
	}
	beforeElapsed := f.before.Position() - 10
	afterElapsed := f.after.Position() - 0
	if !approx(beforeElapsed, afterElapsed) {
		t.Fatalf("after not re-synced: before %.3f after %.3f", beforeElapsed, afterElapsed)
	}
}

func TestDriftCorrectionSkippedInSeparateMode(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	p := normal(1, 0, 10, 0, 10)
	p.SubtitleMode = catalog.SubtitleSeparate
	f.ctrl.SetProcesses([]catalog.Process{p})
	if err := f.ctrl.Play(context.Background()); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	seeks := len(f.after.Seeks())
	f.run(time.Second)
	if got := len(f.after.Seeks()); got != seeks {
		t.Fatalf("separate mode must not correct drift, saw %d seeks", got-seeks)
	}
}

func TestSeparateModeGatesLegsOnVideoAndNarration(t *testing.T) {
	f := newFixture(t, Options{}, map[string]float64{"前": 4, "后": 1})
	p := normal(1, 0, 2, 0, 3)
	p.SubtitleMode = catalog.SubtitleSeparate
	p.SubtitleText = "前"
	p.SubtitleAfter = "后"
	f.ctrl.SetProcesses([]catalog.Process{p})
	f.ctrl.Wait()
	if got := f.ctrl.Snapshot().NarrationStatus; got != speech.StatusReady {
		t.Fatalf("expected narration ready, got %q", got)
	}
	if err := f.ctrl.Play(context.Background()); err != nil {
		t.Fatalf("Play failed: %v", err)
	}

	// Before video ends at 2s but narration runs to 4s: the video replays.
	f.run(3 * time.Second)
	snap := f.ctrl.Snapshot()
	if snap.Leg != LegBefore {
		t.Fatalf("leg advanced before narration finished: %q", snap.Leg)
	}
	if f.after.Plays() != 0 {
		t.Fatal("after video started during the before leg")
	}
	if !media.SameSource(f.audio.Source(), audioSrc("前")) {
		t.Fatalf("after narration loaded early: %q", f.audio.Source())
	}
	if f.before.Plays() < 2 {
		t.Fatalf("expected before video to replay while narration speaks, plays=%d", f.before.Plays())
	}

	f.run(1200 * time.Millisecond)
	snap = f.ctrl.Snapshot()
	if snap.Leg != LegAfter || snap.Phase != PhasePlaying {
		t.Fatalf("expected after leg playing, got %q %q", snap.Leg, snap.Phase)
	}
	if !media.SameSource(f.audio.Source(), audioSrc("后")) {
		t.Fatalf("expected after narration, got %q", f.audio.Source())
	}

	// After narration (1s) finishes before the after video (3s): audio waits.
	f.run(1500 * time.Millisecond)
	if !f.audio.Paused() {
		t.Fatal("expected narration to wait paused for the after video")
	}
	if got := f.ctrl.Snapshot(); got.Phase != PhasePlaying || got.Leg != LegAfter {
		t.Fatalf("segment ended before the after video: %+v", got)
	}

	f.run(2 * time.Second)
	if got := f.ctrl.Snapshot().Phase; got != PhaseIdle {
		t.Fatalf("expected idle after the only process, got %q", got)
	}
}

func TestPlayResumesPausedSegmentButExplicitTargetRestarts(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	f.ctrl.SetProcesses([]catalog.Process{normal(1, 0, 20, 0, 20)})
	ctx := context.Background()
	if err := f.ctrl.Play(ctx); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	f.clock.Advance(7300 * time.Millisecond)
	f.ctrl.Pause()

	snap := f.ctrl.Snapshot()
	if snap.Phase != PhasePaused || !approx(snap.Elapsed, 7.3) {
		t.Fatalf("unexpected paused snapshot %+v", snap)
	}

	if err := f.ctrl.Play(ctx); err != nil {
		t.Fatalf("resume failed: %v", err)
	}
	snap = f.ctrl.Snapshot()
	if !approx(snap.Elapsed, 7.3) || !approx(f.before.Position(), 7.3) {
		t.Fatalf("resume reset progress: elapsed %.3f position %.3f", snap.Elapsed, f.before.Position())
	}

	f.ctrl.Pause()
	if err := f.ctrl.PlayProcess(ctx, 0); err != nil {
		t.Fatalf("PlayProcess failed: %v", err)
	}
	snap = f.ctrl.Snapshot()
	if snap.Elapsed != 0 || f.before.Position() != 0 {
		t.Fatalf("explicit target must restart: elapsed %.3f position %.3f", snap.Elapsed, f.before.Position())
	}
}

func TestNewStepNeverPlaysBeforeTrack(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	p := catalog.Process{ID: 1, Name: "new", Type: catalog.ProcessNewStep, SubtitleMode: catalog.SubtitleCombined, AfterStart: 0, AfterEnd: 2}
	f.ctrl.SetProcesses([]catalog.Process{p})
	if err := f.ctrl.Play(context.Background()); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	f.run(time.Second)

	if f.before.Plays() != 0 || len(f.before.Seeks()) != 0 {
		t.Fatalf("before track touched: plays=%d seeks=%v", f.before.Plays(), f.before.Seeks())
	}
	snap := f.ctrl.Snapshot()
	if snap.BeforeProgress != 0 {
		t.Fatalf("expected before progress 0, got %v", snap.BeforeProgress)
	}
	if snap.AfterProgress <= 0 {
		t.Fatalf("expected after progress, got %v", snap.AfterProgress)
	}
}

func threeProcesses() []catalog.Process {
	return []catalog.Process{
		normal(1, 0, 1, 0, 1),
		normal(2, 1, 2, 1, 2),
		normal(3, 2, 3, 2, 3),
	}
}

func TestGlobalModeStopsAfterLastProcess(t *testing.T) {
	f := newFixture(t, Options{GlobalMode: true}, nil)
	f.ctrl.SetProcesses(threeProcesses())
	if err := f.ctrl.Play(context.Background()); err != nil {
		t.Fatalf("Play failed: %v", err)
	}

	f.run(4 * time.Second)
	snap := f.ctrl.Snapshot()
	if snap.Phase != PhaseIdle || snap.Index != 2 {
		t.Fatalf("expected idle on the last process, got phase %q index %d", snap.Phase, snap.Index)
	}
	f.run(2 * time.Second)
	if again := f.ctrl.Snapshot(); again.Phase != PhaseIdle || again.Index != 2 {
		t.Fatalf("controller advanced after stopping: %+v", again)
	}
}

func TestGlobalLoopRestartsAtFirstProcess(t *testing.T) {
	f := newFixture(t, Options{GlobalMode: true, Looping: true}, nil)
	f.ctrl.SetProcesses(threeProcesses())
	if err := f.ctrl.Play(context.Background()); err != nil {
		t.Fatalf("Play failed: %v", err)
	}

	seen := []int{0}
	for i := 0; i < 200 && len(seen) < 4; i++ {
		f.run(50 * time.Millisecond)
		if idx := f.ctrl.Snapshot().Index; idx != seen[len(seen)-1] {
			seen = append(seen, idx)
		}
	}
	want := []int{0, 1, 2, 0}
	if len(seen) != len(want) {
		t.Fatalf("unexpected index sequence %v", seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("unexpected index sequence %v", seen)
		}
	}
	if f.ctrl.Snapshot().Phase != PhasePlaying {
		t.Fatal("expected playback to continue after wrapping")
	}
}

func TestCombinedModeReplaysShorterVideoUntilNarrationEnds(t *testing.T) {
	f := newFixture(t, Options{}, map[string]float64{"讲解": 3})
	p := normal(1, 0, 2, 0, 1)
	p.SubtitleText = "讲解"
	f.ctrl.SetProcesses([]catalog.Process{p})
	f.ctrl.Wait()
	if err := f.ctrl.Play(context.Background()); err != nil {
		t.Fatalf("Play failed: %v", err)
	}

	f.run(2500 * time.Millisecond)
	if f.ctrl.Snapshot().Phase != PhasePlaying {
		t.Fatal("segment finished before narration")
	}
	if f.after.Plays() < 3 {
		t.Fatalf("expected after video to replay, plays=%d", f.after.Plays())
	}
	f.run(time.Second)
	if got := f.ctrl.Snapshot().Phase; got != PhaseIdle {
		t.Fatalf("expected idle once narration ended, got %q", got)
	}
}

func TestPlayRejectionLeavesIdle(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	f.before.PlayErr = errors.New("autoplay blocked")
	f.ctrl.SetProcesses([]catalog.Process{normal(1, 0, 5, 0, 3)})

	if err := f.ctrl.Play(context.Background()); err != nil {
		t.Fatalf("Play must not surface rejection, got %v", err)
	}
	snap := f.ctrl.Snapshot()
	if snap.Phase != PhaseIdle {
		t.Fatalf("expected idle, got %q", snap.Phase)
	}
	if snap.LastError == "" {
		t.Fatal("expected last error to be recorded")
	}
	if !f.after.Paused() {
		t.Fatal("expected the other video to be paused")
	}
}

func TestNarrationFailureKeepsVisualPlayback(t *testing.T) {
	f := newFixture(t, Options{}, map[string]float64{})
	f.narrator.err = speech.ErrSynthesisFailed
	p := normal(1, 0, 5, 0, 3)
	p.SubtitleText = "说明"
	f.ctrl.SetProcesses([]catalog.Process{p})
	f.ctrl.Wait()

	if err := f.ctrl.Play(context.Background()); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	snap := f.ctrl.Snapshot()
	if snap.NarrationStatus != speech.StatusFailed || snap.Phase != PhasePlaying {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if f.audio.Plays() != 0 {
		t.Fatal("narration played despite failure")
	}
}

func TestStaleNarrationIsDiscarded(t *testing.T) {
	f := newFixture(t, Options{}, map[string]float64{"一": 1, "二": 2})
	gate := make(chan struct{})
	f.narrator.gates["一"] = gate
	first := normal(1, 0, 5, 0, 3)
	first.SubtitleText = "一"
	second := normal(2, 5, 10, 3, 6)
	second.SubtitleText = "二"

	f.ctrl.SetProcesses([]catalog.Process{first, second})
	if err := f.ctrl.SelectProcess(2); err != nil {
		t.Fatalf("SelectProcess failed: %v", err)
	}
	close(gate)
	f.ctrl.Wait()

	snap := f.ctrl.Snapshot()
	if snap.ProcessID != 2 || snap.NarrationStatus != speech.StatusReady {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if snap.NarrationText != "二" || !approx(snap.NarrationDuration, 2) {
		t.Fatalf("stale narration applied: %q %.2f", snap.NarrationText, snap.NarrationDuration)
	}
}

func TestLateNarrationJoinsAtElapsed(t *testing.T) {
	f := newFixture(t, Options{}, map[string]float64{"迟到": 5})
	gate := make(chan struct{})
	f.narrator.gates["迟到"] = gate
	p := normal(1, 0, 10, 0, 10)
	p.SubtitleText = "迟到"
	f.ctrl.SetProcesses([]catalog.Process{p})
	if err := f.ctrl.Play(context.Background()); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	if got := f.ctrl.Snapshot().NarrationStatus; got != speech.StatusGenerating {
		t.Fatalf("expected generating, got %q", got)
	}

	f.clock.Advance(1500 * time.Millisecond)
	close(gate)
	f.ctrl.Wait()

	if f.audio.Paused() {
		t.Fatal("expected narration to join playback")
	}
	if !approx(f.audio.Position(), 1.5) {
		t.Fatalf("narration joined at %.3f, want 1.5", f.audio.Position())
	}
}

func TestRegeneratedNarrationReloadsSource(t *testing.T) {
	f := newFixture(t, Options{}, map[string]float64{"重做": 4})
	p := normal(1, 0, 10, 0, 10)
	p.SubtitleText = "重做"
	f.ctrl.SetProcesses([]catalog.Process{p})
	f.ctrl.Wait()
	if err := f.ctrl.Play(context.Background()); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	f.run(time.Second)
	if f.audio.Source() != audioSrc("重做") {
		t.Fatalf("unexpected narration source %q", f.audio.Source())
	}

	if err := f.ctrl.RegenerateNarration(); err != nil {
		t.Fatalf("RegenerateNarration failed: %v", err)
	}
	f.ctrl.Wait()

	src := f.audio.Source()
	if src == audioSrc("重做") || !media.SameSource(src, audioSrc("重做")) {
		t.Fatalf("expected a reloaded, cache-busted source, got %q", src)
	}
	if f.audio.Paused() || f.audio.Plays() != 2 {
		t.Fatalf("regenerated narration should resume, paused=%v plays=%d", f.audio.Paused(), f.audio.Plays())
	}
	if f.audio.Duration() != 4 {
		t.Fatalf("expected length 4 for regenerated audio, got %v", f.audio.Duration())
	}
}

func TestRateReassertedAfterPlayAndNarrationUnaffected(t *testing.T) {
	f := newFixture(t, Options{}, map[string]float64{"速度": 2})
	for _, track := range []*media.SimTrack{f.before, f.after, f.audio} {
		track.ResetRateOnPlay = true
	}
	p := normal(1, 0, 5, 0, 5)
	p.SubtitleText = "速度"
	f.ctrl.SetProcesses([]catalog.Process{p})
	f.ctrl.Wait()

	if err := f.ctrl.SetPlaybackRate(2); err != nil {
		t.Fatalf("SetPlaybackRate failed: %v", err)
	}
	if err := f.ctrl.SetPlaybackRate(math.NaN()); err == nil {
		t.Fatal("expected NaN rate to be rejected")
	}
	if err := f.ctrl.Play(context.Background()); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	if f.before.Rate() != 2 || f.after.Rate() != 2 {
		t.Fatalf("video rate not re-asserted: %v %v", f.before.Rate(), f.after.Rate())
	}
	if f.audio.Rate() != 1 {
		t.Fatalf("narration rate changed: %v", f.audio.Rate())
	}
}

func TestMuteAffectsVideosOnly(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	f.ctrl.SetMuted(true)
	if !f.before.Muted() || !f.after.Muted() {
		t.Fatal("expected videos muted")
	}
	if f.audio.Muted() {
		t.Fatal("narration must not be muted")
	}
}

func TestSeekReplacesNonFiniteTarget(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	f.ctrl.SetProcesses([]catalog.Process{normal(1, 0, 5, 0, 3)})
	if err := f.ctrl.Seek(LegBefore, math.Inf(1)); err != nil {
		t.Fatalf("Seek failed: %v", err)
	}
	seeks := f.before.Seeks()
	if len(seeks) == 0 || seeks[len(seeks)-1] != 0 {
		t.Fatalf("expected seek to 0, got %v", seeks)
	}
	if err := f.ctrl.Seek(LegAfter, 2); err != nil {
		t.Fatalf("Seek failed: %v", err)
	}
	if f.ctrl.Snapshot().Phase != PhaseIdle {
		t.Fatal("seek changed play state")
	}
	if err := f.ctrl.Seek(Leg("side"), 1); err == nil {
		t.Fatal("expected unknown leg to be rejected")
	}
}

func TestNextAndPrevProcess(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	f.ctrl.SetProcesses(threeProcesses())
	ctx := context.Background()

	if err := f.ctrl.PrevProcess(ctx); err != nil {
		t.Fatalf("PrevProcess failed: %v", err)
	}
	if snap := f.ctrl.Snapshot(); snap.Index != 0 || snap.Phase != PhaseIdle {
		t.Fatalf("prev on first process must be a no-op: %+v", snap)
	}

	session := f.ctrl.Snapshot().SessionID
	if err := f.ctrl.NextProcess(ctx); err != nil {
		t.Fatalf("NextProcess failed: %v", err)
	}
	snap := f.ctrl.Snapshot()
	if snap.Index != 1 || snap.Phase != PhasePlaying || snap.ProcessID != 2 {
		t.Fatalf("unexpected snapshot after next: %+v", snap)
	}
	if snap.SessionID == session || snap.SessionID == "" {
		t.Fatal("expected a new session for the new process")
	}
	if !approx(f.before.Position(), 1) {
		t.Fatalf("expected before video at window start, got %.3f", f.before.Position())
	}

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	if err := f.ctrl.NextProcess(canceled); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
}

func TestSelectProcessUnknownID(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	if err := f.ctrl.SelectProcess(1); !errors.Is(err, ErrNoProcesses) {
		t.Fatalf("expected ErrNoProcesses, got %v", err)
	}
	f.ctrl.SetProcesses(threeProcesses())
	if err := f.ctrl.SelectProcess(99); !errors.Is(err, ErrUnknownProcess) {
		t.Fatalf("expected ErrUnknownProcess, got %v", err)
	}
}

func TestNarratorToggleResetsSegment(t *testing.T) {
	f := newFixture(t, Options{}, map[string]float64{"开关": 2})
	p := normal(1, 0, 10, 0, 10)
	p.SubtitleText = "开关"
	f.ctrl.SetProcesses([]catalog.Process{p})
	f.ctrl.Wait()
	if err := f.ctrl.Play(context.Background()); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	f.run(time.Second)

	f.ctrl.SetNarratorActive(false)
	snap := f.ctrl.Snapshot()
	if snap.Phase != PhaseIdle || snap.Elapsed != 0 || snap.NarrationStatus != speech.StatusIdle {
		t.Fatalf("unexpected snapshot after toggle: %+v", snap)
	}
	if !f.before.Paused() || !f.audio.Paused() {
		t.Fatal("expected tracks paused after toggle")
	}
}

func TestLoadStageSetsVideoSources(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	stage := catalog.Stage{ID: 1, BeforeVideoPath: "/videos/before.mp4", AfterVideoPath: "/videos/after.mp4"}
	f.ctrl.LoadStage(stage, threeProcesses())
	if f.before.Source() != media.Locator("/videos/before.mp4") {
		t.Fatalf("unexpected before source %q", f.before.Source())
	}
	if got := len(f.ctrl.Processes()); got != 3 {
		t.Fatalf("expected 3 processes, got %d", got)
	}
	if got := f.ctrl.Snapshot().TotalTimeSaved; got != 0 {
		t.Fatalf("expected zero time saved, got %v", got)
	}
}
