package playback

import (
	"testing"

	"kaizen/internal/catalog"
)

func TestDecideTable(t *testing.T) {
	cases := []struct {
		name    string
		looping bool
		global  bool
		index   int
		count   int
		want    Decision
	}{
		{"loop global remaining", true, true, 0, 3, Decision{ActionAdvance, 1}},
		{"loop global last", true, true, 2, 3, Decision{ActionRestartList, 0}},
		{"loop single", true, false, 1, 3, Decision{ActionReplay, 1}},
		{"global remaining", false, true, 1, 3, Decision{ActionAdvance, 2}},
		{"global last", false, true, 2, 3, Decision{ActionStop, 2}},
		{"single", false, false, 0, 3, Decision{ActionStop, 0}},
		{"loop global single item", true, true, 0, 1, Decision{ActionRestartList, 0}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Decide(tc.looping, tc.global, tc.index, tc.count); got != tc.want {
				t.Fatalf("Decide = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestTransitionIgnoresEventsOutOfPhase(t *testing.T) {
	idle := State{Phase: PhaseIdle, Leg: LegBefore}
	if got := Transition(idle, Event{Kind: EventResume}); got != idle {
		t.Fatalf("resume from idle changed state: %+v", got)
	}
	if got := Transition(idle, Event{Kind: EventProgress, Elapsed: 3}); got.Elapsed != 0 {
		t.Fatalf("progress applied while idle: %+v", got)
	}
	if got := Transition(idle, Event{Kind: EventSegmentComplete, Decision: Decision{ActionAdvance, 1}}); got != idle {
		t.Fatalf("late completion changed idle state: %+v", got)
	}

	playing := Transition(idle, Event{Kind: EventStart, Index: 2, Leg: LegAfter})
	if playing.Phase != PhasePlaying || playing.Index != 2 || playing.Leg != LegAfter {
		t.Fatalf("unexpected start state %+v", playing)
	}
	if got := Transition(playing, Event{Kind: EventLegComplete}); got != playing {
		t.Fatalf("after leg must not complete into another leg: %+v", got)
	}

	paused := Transition(Transition(playing, Event{Kind: EventProgress, Elapsed: 7.3}), Event{Kind: EventPause})
	if paused.Phase != PhasePaused || paused.Elapsed != 7.3 {
		t.Fatalf("unexpected paused state %+v", paused)
	}
	if resumed := Transition(paused, Event{Kind: EventResume}); resumed.Elapsed != 7.3 || resumed.Phase != PhasePlaying {
		t.Fatalf("resume lost elapsed: %+v", resumed)
	}
}

func TestTransitionSegmentCompletion(t *testing.T) {
	playing := State{Phase: PhasePlaying, Leg: LegBefore, Index: 1, Elapsed: 4}

	leg := Transition(playing, Event{Kind: EventLegComplete})
	if leg.Leg != LegAfter || leg.Elapsed != 0 || leg.Phase != PhasePlaying {
		t.Fatalf("unexpected leg transition %+v", leg)
	}

	stopped := Transition(playing, Event{Kind: EventSegmentComplete, Decision: Decision{ActionStop, 1}})
	if stopped.Phase != PhaseIdle || stopped.Index != 1 || stopped.Elapsed != 0 {
		t.Fatalf("unexpected stop state %+v", stopped)
	}

	advanced := Transition(playing, Event{Kind: EventSegmentComplete, Decision: Decision{ActionAdvance, 2}, Leg: LegAfter})
	if advanced.Phase != PhasePlaying || advanced.Index != 2 || advanced.Leg != LegAfter || advanced.Elapsed != 0 {
		t.Fatalf("unexpected advance state %+v", advanced)
	}

	rejected := Transition(playing, Event{Kind: EventReject})
	if rejected.Phase != PhaseIdle {
		t.Fatalf("reject must idle, got %+v", rejected)
	}
}

func TestDriftCorrectionThreshold(t *testing.T) {
	if _, ok := DriftCorrection(5.0, 5.1, 0.15); ok {
		t.Fatal("100ms gap must not correct")
	}
	target, ok := DriftCorrection(5.0, 5.2, 0.15)
	if !ok || target != 5.0 {
		t.Fatalf("expected correction to 5.0, got %v %v", target, ok)
	}
	target, ok = DriftCorrection(5.0, 4.7, 0.15)
	if !ok || target != 5.0 {
		t.Fatalf("expected correction when after lags, got %v %v", target, ok)
	}
}

func TestProgressClamps(t *testing.T) {
	cases := []struct {
		pos, start, end, want float64
	}{
		{5, 0, 10, 50},
		{-1, 0, 10, 0},
		{20, 0, 10, 100},
		{3, 3, 3, 0},
	}
	for _, tc := range cases {
		if got := Progress(tc.pos, tc.start, tc.end); got != tc.want {
			t.Fatalf("Progress(%v,%v,%v) = %v, want %v", tc.pos, tc.start, tc.end, got, tc.want)
		}
	}
}

func TestMarkersSkipMissingLegsAndOrderByStart(t *testing.T) {
	processes := []catalog.Process{
		{ID: 1, Name: "late", Type: catalog.ProcessNormal, BeforeStart: 50, BeforeEnd: 75, AfterStart: 20, AfterEnd: 30},
		{ID: 2, Name: "early", Type: catalog.ProcessNormal, BeforeStart: 0, BeforeEnd: 25, AfterStart: 0, AfterEnd: 10},
		{ID: 3, Name: "added", Type: catalog.ProcessNewStep, AfterStart: 10, AfterEnd: 20},
	}

	before := Markers(processes, LegBefore, 100, 1)
	if len(before) != 2 {
		t.Fatalf("expected 2 before markers, got %d", len(before))
	}
	if before[0].ProcessID != 2 || before[0].Label != 1 || before[0].Left != 0 || before[0].Width != 25 {
		t.Fatalf("unexpected first marker %+v", before[0])
	}
	if before[1].ProcessID != 1 || !before[1].Current || before[1].Left != 50 || before[1].SeekTo != 75 {
		t.Fatalf("unexpected second marker %+v", before[1])
	}

	after := Markers(processes, LegAfter, 40, 0)
	if len(after) != 3 || after[1].ProcessID != 3 || after[1].Color != MarkerColors[1] {
		t.Fatalf("unexpected after markers %+v", after)
	}
	if Markers(processes, LegAfter, 0, 0) != nil {
		t.Fatal("expected no markers without a duration")
	}
}

func TestLegTextFallsBackForNewStep(t *testing.T) {
	p := catalog.Process{Type: catalog.ProcessNewStep, SubtitleText: "main", SubtitleMode: catalog.SubtitleSeparate}
	if got := legText(p, LegAfter); got != "main" {
		t.Fatalf("expected main text for new step after leg, got %q", got)
	}
	p.Type = catalog.ProcessNormal
	if got := legText(p, LegAfter); got != "" {
		t.Fatalf("expected empty after text, got %q", got)
	}
	if got := NarrationTexts(p); len(got) != 2 {
		t.Fatalf("expected two narration texts in separate mode, got %v", got)
	}
}
