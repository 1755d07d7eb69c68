package playback

import (
	"math"

	"kaizen/internal/catalog"
)

// DriftCorrection compares the elapsed-within-segment times of the two
// videos. When they differ by more than threshold it returns the after
// elapsed time to seek to, which is always the before elapsed time. Before
// is the reference and is never moved.
func DriftCorrection(beforeElapsed, afterElapsed, threshold float64) (float64, bool) {
	if !finite(beforeElapsed) || !finite(afterElapsed) {
		return 0, false
	}
	if math.Abs(beforeElapsed-afterElapsed) <= threshold {
		return 0, false
	}
	return beforeElapsed, true
}

// Progress returns how far pos is through [start, end] as a percentage.
func Progress(pos, start, end float64) float64 {
	if !finite(pos) || end <= start {
		return 0
	}
	return clamp((pos-start)/(end-start), 0, 1) * 100
}

// window returns the configured segment of a leg.
func window(p catalog.Process, leg Leg) (float64, float64) {
	if leg == LegBefore {
		return p.BeforeStart, p.BeforeEnd
	}
	return p.AfterStart, p.AfterEnd
}

// hasLeg reports whether the process has a recording for leg.
func hasLeg(p catalog.Process, leg Leg) bool {
	if leg == LegBefore {
		return p.HasBefore()
	}
	return p.HasAfter()
}

// firstLeg is where a segment starts: new steps have nothing before.
func firstLeg(p catalog.Process) Leg {
	if p.HasBefore() {
		return LegBefore
	}
	return LegAfter
}

// nextLeg returns the leg after leg within a separate-mode segment.
func nextLeg(p catalog.Process, leg Leg) (Leg, bool) {
	if leg == LegBefore && p.HasAfter() {
		return LegAfter, true
	}
	return "", false
}

// legText is the narration spoken over leg in separate mode. A process with
// no before recording narrates its after leg with the main text when no
// dedicated after text exists.
func legText(p catalog.Process, leg Leg) string {
	if leg == LegBefore {
		return p.SubtitleText
	}
	if p.SubtitleAfter == "" && !p.HasBefore() {
		return p.SubtitleText
	}
	return p.SubtitleAfter
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
