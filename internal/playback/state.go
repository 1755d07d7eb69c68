package playback

import "fmt"

// Phase is the coarse playback state.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhasePlaying Phase = "playing"
	PhasePaused  Phase = "paused"
)

// Leg names one half of a process.
type Leg string

const (
	LegBefore Leg = "before"
	LegAfter  Leg = "after"
)

// Valid reports whether l names a leg.
func (l Leg) Valid() bool {
	return l == LegBefore || l == LegAfter
}

// ParseLeg converts a string to a Leg.
func ParseLeg(raw string) (Leg, error) {
	leg := Leg(raw)
	if !leg.Valid() {
		return "", fmt.Errorf("unknown leg %q", raw)
	}
	return leg, nil
}

// State is the segment state of a playback session.
type State struct {
	Phase   Phase   `json:"phase"`
	Leg     Leg     `json:"leg"`
	Index   int     `json:"index"`
	Elapsed float64 `json:"elapsed"`
}

// EventKind enumerates the inputs Transition accepts.
type EventKind int

const (
	// EventStart begins Index at Leg from zero.
	EventStart EventKind = iota
	// EventResume continues a paused segment in place.
	EventResume
	// EventPause holds the segment.
	EventPause
	// EventProgress reports narration elapsed time.
	EventProgress
	// EventLegComplete moves a separate-mode segment from its before leg to
	// its after leg.
	EventLegComplete
	// EventSegmentComplete applies a Decision.
	EventSegmentComplete
	// EventReject reports a video track that refused to play.
	EventReject
	// EventSelect changes the current process without playing it.
	EventSelect
)

func (k EventKind) String() string {
	switch k {
	case EventStart:
		return "start"
	case EventResume:
		return "resume"
	case EventPause:
		return "pause"
	case EventProgress:
		return "progress"
	case EventLegComplete:
		return "leg_complete"
	case EventSegmentComplete:
		return "segment_complete"
	case EventReject:
		return "reject"
	case EventSelect:
		return "select"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event is one input to Transition. Index and Leg apply to start, select and
// segment-complete events; Elapsed applies to progress events.
type Event struct {
	Kind     EventKind
	Index    int
	Leg      Leg
	Elapsed  float64
	Decision Decision
}

// Transition returns the state that follows s after e. Events that do not
// apply in the current phase leave s unchanged, so late or duplicated time
// updates are harmless.
func Transition(s State, e Event) State {
	switch e.Kind {
	case EventStart:
		return State{Phase: PhasePlaying, Leg: e.Leg, Index: e.Index}
	case EventResume:
		if s.Phase == PhasePaused {
			s.Phase = PhasePlaying
		}
		return s
	case EventPause:
		if s.Phase == PhasePlaying {
			s.Phase = PhasePaused
		}
		return s
	case EventProgress:
		if s.Phase == PhasePlaying && e.Elapsed >= 0 {
			s.Elapsed = e.Elapsed
		}
		return s
	case EventLegComplete:
		if s.Phase == PhasePlaying && s.Leg == LegBefore {
			s.Leg = LegAfter
			s.Elapsed = 0
		}
		return s
	case EventSegmentComplete:
		if s.Phase != PhasePlaying {
			return s
		}
		if e.Decision.Action == ActionStop {
			return State{Phase: PhaseIdle, Leg: s.Leg, Index: s.Index}
		}
		return State{Phase: PhasePlaying, Leg: e.Leg, Index: e.Decision.Index}
	case EventReject:
		return State{Phase: PhaseIdle, Leg: s.Leg, Index: s.Index}
	case EventSelect:
		return State{Phase: PhaseIdle, Leg: e.Leg, Index: e.Index}
	default:
		return s
	}
}
