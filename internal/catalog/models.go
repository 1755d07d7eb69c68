package catalog

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// ProcessType states which recordings a process has.
type ProcessType string

const (
	// ProcessNormal has both a before and an after recording.
	ProcessNormal ProcessType = "normal"
	// ProcessNewStep was added by the improvement; there is no before recording.
	ProcessNewStep ProcessType = "new_step"
	// ProcessCancelled was removed by the improvement; there is no after recording.
	ProcessCancelled ProcessType = "cancelled"
)

// SubtitleMode selects how narration is split across the two recordings.
type SubtitleMode string

const (
	// SubtitleCombined narrates the whole process once over both videos.
	SubtitleCombined SubtitleMode = "combined"
	// SubtitleSeparate narrates the before leg, then the after leg.
	SubtitleSeparate SubtitleMode = "separate"
)

// Project groups stages.
type Project struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Stage pairs a before recording with an after recording.
type Stage struct {
	ID              int64     `json:"id"`
	ProjectID       int64     `json:"project_id"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	BeforeVideoPath string    `json:"before_video_path"`
	AfterVideoPath  string    `json:"after_video_path"`
	CreatedAt       time.Time `json:"created_at"`
}

// Process is one improvement step with a time window in each recording.
// Times are seconds into the stage videos.
type Process struct {
	ID              int64        `json:"id"`
	StageID         int64        `json:"stage_id"`
	Name            string       `json:"name"`
	Description     string       `json:"description"`
	ImprovementNote string       `json:"improvement_note"`
	BeforeStart     float64      `json:"before_start_time"`
	BeforeEnd       float64      `json:"before_end_time"`
	AfterStart      float64      `json:"after_start_time"`
	AfterEnd        float64      `json:"after_end_time"`
	TimeSaved       float64      `json:"time_saved"`
	SortOrder       int          `json:"sort_order"`
	Type            ProcessType  `json:"process_type"`
	SubtitleText    string       `json:"subtitle_text"`
	SubtitleAfter   string       `json:"subtitle_after,omitempty"`
	SubtitleMode    SubtitleMode `json:"subtitle_mode"`
}

// HasBefore reports whether the process plays a before recording.
func (p Process) HasBefore() bool {
	return p.Type != ProcessNewStep
}

// HasAfter reports whether the process plays an after recording.
func (p Process) HasAfter() bool {
	return p.Type != ProcessCancelled
}

// BeforeDuration returns the before window length, 0 when absent.
func (p Process) BeforeDuration() float64 {
	if !p.HasBefore() {
		return 0
	}
	return windowLength(p.BeforeStart, p.BeforeEnd)
}

// AfterDuration returns the after window length, 0 when absent.
func (p Process) AfterDuration() float64 {
	if !p.HasAfter() {
		return 0
	}
	return windowLength(p.AfterStart, p.AfterEnd)
}

// ComputeTimeSaved returns before duration minus after duration.
func (p Process) ComputeTimeSaved() float64 {
	return p.BeforeDuration() - p.AfterDuration()
}

// Separate reports whether narration is split per leg.
func (p Process) Separate() bool {
	return p.SubtitleMode == SubtitleSeparate
}

// Normalize fills defaults and derived fields.
func (p *Process) Normalize() {
	p.Name = strings.TrimSpace(p.Name)
	if p.Type == "" {
		p.Type = ProcessNormal
	}
	if p.SubtitleMode == "" {
		p.SubtitleMode = SubtitleCombined
	}
	p.TimeSaved = p.ComputeTimeSaved()
}

// Validate checks the windows against the process type.
func (p Process) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("%w: name required", ErrInvalidProcess)
	}
	switch p.Type {
	case ProcessNormal, ProcessNewStep, ProcessCancelled:
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidProcess, p.Type)
	}
	switch p.SubtitleMode {
	case SubtitleCombined, SubtitleSeparate:
	default:
		return fmt.Errorf("%w: unknown subtitle mode %q", ErrInvalidProcess, p.SubtitleMode)
	}
	for _, v := range []float64{p.BeforeStart, p.BeforeEnd, p.AfterStart, p.AfterEnd} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("%w: times must be non-negative numbers", ErrInvalidProcess)
		}
	}
	if p.HasBefore() && p.BeforeEnd <= p.BeforeStart {
		return fmt.Errorf("%w: before end must exceed before start", ErrInvalidProcess)
	}
	if p.HasAfter() && p.AfterEnd <= p.AfterStart {
		return fmt.Errorf("%w: after end must exceed after start", ErrInvalidProcess)
	}
	return nil
}

func windowLength(start, end float64) float64 {
	if end <= start {
		return 0
	}
	return end - start
}
