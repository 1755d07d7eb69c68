package api

import (
	"kaizen/internal/annotation"
	"kaizen/internal/catalog"
	"kaizen/internal/deps"
	"kaizen/internal/logging"
	"kaizen/internal/playback"
	"kaizen/internal/preflight"
	"kaizen/internal/subtitle"
)

// DateTimeFormat is used for RFC3339 timestamps in API payloads.
const DateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// PlayerResponse is one frame of UI state.
type PlayerResponse struct {
	Player   playback.Snapshot `json:"player"`
	Subtitle subtitle.Frame    `json:"subtitle"`
	// Annotations are keyed by video type ("before" or "after").
	Annotations map[annotation.VideoType][]annotation.Annotation `json:"annotations"`
	// Placements lay the visible annotations out in viewport pixels. Only
	// present when a viewport was given and the video's frame size is known.
	Placements map[annotation.VideoType]Placement `json:"placements,omitempty"`
}

// Viewport is the pixel box one video is drawn in.
type Viewport struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// FrameSize is a video's native frame size.
type FrameSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Placement is where a video's frame lands in the viewport and where its
// annotations go.
type Placement struct {
	Frame       annotation.Rect    `json:"frame"`
	Annotations []PlacedAnnotation `json:"annotations"`
}

// PlacedAnnotation carries an annotation's geometry in viewport pixels.
type PlacedAnnotation struct {
	ID    int64             `json:"id"`
	Kind  annotation.Kind   `json:"annotation_type"`
	Pixel annotation.Coords `json:"pixel"`
}

// AnnotationRequest draws an annotation at viewport pixels; the server maps
// it onto the video frame.
type AnnotationRequest struct {
	ProcessID   int64                `json:"process_id"`
	VideoType   annotation.VideoType `json:"video_type"`
	Kind        annotation.Kind      `json:"annotation_type"`
	StartTime   float64              `json:"start_time"`
	EndTime     *float64             `json:"end_time,omitempty"`
	Viewport    Viewport             `json:"viewport"`
	Pixel       annotation.Coords    `json:"pixel"`
	Text        string               `json:"text,omitempty"`
	Color       string               `json:"color,omitempty"`
	StrokeWidth int                  `json:"stroke_width,omitempty"`
}

// PreviewLoadRequest shows one recording of a process in the preview
// player. An empty view picks the process's first recording.
type PreviewLoadRequest struct {
	ProcessID int64        `json:"process_id"`
	View      playback.Leg `json:"view,omitempty"`
}

// ViewRequest switches the preview between recordings.
type ViewRequest struct {
	View playback.Leg `json:"view"`
}

// ProjectListResponse lists projects newest first.
type ProjectListResponse struct {
	Projects []catalog.Project `json:"projects"`
}

// StageListResponse lists the stages of a project.
type StageListResponse struct {
	Stages []catalog.Stage `json:"stages"`
}

// StageResponse describes a stage with its ordered processes.
type StageResponse struct {
	Stage     catalog.Stage     `json:"stage"`
	Processes []catalog.Process `json:"processes"`
	TimeSaved float64           `json:"time_saved"`
}

// MarkerResponse lays processes out on one video's timeline.
type MarkerResponse struct {
	Leg     playback.Leg      `json:"leg"`
	Markers []playback.Marker `json:"markers"`
}

// StyleResponse carries the persisted subtitle style.
type StyleResponse struct {
	Style          subtitle.Style `json:"style"`
	BackgroundRGBA string         `json:"background_rgba"`
}

// LogStreamResponse wraps streamed log events.
type LogStreamResponse struct {
	Events []logging.LogEvent `json:"events"`
	Next   uint64             `json:"next"`
}

// StatusResponse summarizes the running server.
type StatusResponse struct {
	Running       bool               `json:"running"`
	PID           int                `json:"pid"`
	DatabasePath  string             `json:"database_path"`
	SchemaVersion string             `json:"schema_version,omitempty"`
	LockFilePath  string             `json:"lock_file_path"`
	CacheDir      string             `json:"cache_dir"`
	StartedAt     string             `json:"started_at,omitempty"`
	Checks        []preflight.Result `json:"checks,omitempty"`
	Dependencies  []deps.Status      `json:"dependencies,omitempty"`
}

// LoadStageRequest selects the stage whose processes the controller plays.
type LoadStageRequest struct {
	StageID int64 `json:"stage_id"`
}

// SelectRequest picks a process by id, or by list index when Index is set.
type SelectRequest struct {
	ProcessID int64 `json:"process_id"`
	Index     *int  `json:"index,omitempty"`
}

// SeekRequest moves one video.
type SeekRequest struct {
	Leg  playback.Leg `json:"leg"`
	Time float64      `json:"time"`
}

// RateRequest changes the video playback rate.
type RateRequest struct {
	Rate float64 `json:"rate"`
}

// ToggleRequest switches a boolean player setting.
type ToggleRequest struct {
	Enabled bool `json:"enabled"`
}
