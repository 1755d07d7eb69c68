package playback

import (
	"kaizen/internal/catalog"
	"kaizen/internal/speech"
	"kaizen/internal/timing"
)

// Snapshot is a consistent view of the controller for the UI layer.
type Snapshot struct {
	SessionID       string        `json:"session_id,omitempty"`
	Phase           Phase         `json:"phase"`
	Leg             Leg           `json:"leg"`
	Index           int           `json:"index"`
	ProcessID       int64         `json:"process_id,omitempty"`
	ProcessCount    int           `json:"process_count"`
	Elapsed         float64       `json:"elapsed"`
	Rate            float64       `json:"rate"`
	Looping         bool          `json:"looping"`
	Muted           bool          `json:"muted"`
	GlobalMode      bool          `json:"global_mode"`
	SubtitleMode    string        `json:"subtitle_mode,omitempty"`
	BeforeProgress  float64       `json:"before_progress"`
	AfterProgress   float64       `json:"after_progress"`
	BeforePosition  float64       `json:"before_position"`
	AfterPosition   float64       `json:"after_position"`
	TotalTimeSaved  float64       `json:"total_time_saved"`
	NarratorActive  bool          `json:"narrator_active"`
	NarrationStatus speech.Status `json:"narration_status"`
	NarrationError  string        `json:"narration_error,omitempty"`
	// NarrationText and NarrationTiming describe what is spoken over the
	// active leg. Timing is empty until audio is ready.
	NarrationText     string           `json:"narration_text,omitempty"`
	NarrationDuration float64          `json:"narration_duration,omitempty"`
	NarrationTiming   []timing.Segment `json:"narration_timing,omitempty"`
	LastError         string           `json:"last_error,omitempty"`
}

// Snapshot returns the current controller state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap := Snapshot{
		SessionID:       c.sessionID,
		Phase:           c.state.Phase,
		Leg:             c.state.Leg,
		Index:           c.state.Index,
		ProcessCount:    len(c.processes),
		Elapsed:         c.state.Elapsed,
		Rate:            c.opts.Rate,
		Looping:         c.opts.Looping,
		Muted:           c.opts.Muted,
		GlobalMode:      c.opts.GlobalMode,
		BeforeProgress:  c.beforeProgress,
		AfterProgress:   c.afterProgress,
		BeforePosition:  c.tracks.Before.Position(),
		AfterPosition:   c.tracks.After.Position(),
		TotalTimeSaved:  TotalTimeSaved(c.processes),
		NarratorActive:  c.opts.NarratorActive,
		NarrationStatus: c.narration.status,
		NarrationError:  c.narration.err,
		LastError:       c.lastError,
	}
	if len(c.processes) == 0 {
		return snap
	}
	p := c.processes[c.state.Index]
	snap.ProcessID = p.ID
	snap.SubtitleMode = string(p.SubtitleMode)
	if c.state.Phase == PhasePlaying {
		snap.Elapsed = c.measureElapsedLocked()
	}
	if c.opts.NarratorActive {
		snap.NarrationText = c.activeTextLocked(p)
		if track, ok := c.currentAudioLocked(); ok {
			snap.NarrationDuration = track.Duration
			snap.NarrationTiming = track.Timing
		}
	}
	return snap
}

// Processes returns a copy of the loaded process list.
func (c *Controller) Processes() []catalog.Process {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]catalog.Process(nil), c.processes...)
}

// Markers lays out the loaded processes on one video's timeline.
func (c *Controller) Markers(leg Leg) []Marker {
	c.mu.Lock()
	defer c.mu.Unlock()
	var current int64
	if len(c.processes) > 0 {
		current = c.processes[c.state.Index].ID
	}
	return Markers(c.processes, leg, c.video(leg).Duration(), current)
}

func (c *Controller) activeTextLocked(p catalog.Process) string {
	if !p.Separate() {
		return p.SubtitleText
	}
	return legText(p, c.state.Leg)
}
