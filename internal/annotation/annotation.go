package annotation

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Kind names a drawable shape.
type Kind string

const (
	KindArrow     Kind = "arrow"
	KindCircle    Kind = "circle"
	KindRectangle Kind = "rectangle"
	KindText      Kind = "text"
)

// VideoType selects which recording an annotation belongs to.
type VideoType string

const (
	VideoBefore VideoType = "before"
	VideoAfter  VideoType = "after"
)

// Palette lists the default stroke colors offered to the user.
var Palette = []string{"#FF0000", "#00FF00", "#0000FF", "#FFFF00", "#FF00FF", "#00FFFF", "#FF8000", "#FFFFFF"}

// StrokeWidths lists the selectable stroke widths in pixels.
var StrokeWidths = []int{2, 3, 4, 5, 6}

// Annotation is one shape with a visibility window in video seconds. A nil
// EndTime keeps the annotation visible until the end of the video.
//
// Geometry by kind: arrows run from (X,Y) to (EndX,EndY); circles are
// centred on (X,Y) with radius Width; rectangles span Width x Height from
// (X,Y); text is anchored at (X,Y).
type Annotation struct {
	ID          int64     `json:"id"`
	ProcessID   int64     `json:"process_id"`
	VideoType   VideoType `json:"video_type"`
	Kind        Kind      `json:"annotation_type"`
	StartTime   float64   `json:"start_time"`
	EndTime     *float64  `json:"end_time"`
	X           float64   `json:"x"`
	Y           float64   `json:"y"`
	Width       *float64  `json:"width,omitempty"`
	Height      *float64  `json:"height,omitempty"`
	EndX        *float64  `json:"end_x,omitempty"`
	EndY        *float64  `json:"end_y,omitempty"`
	Text        string    `json:"text,omitempty"`
	Color       string    `json:"color"`
	StrokeWidth int       `json:"stroke_width"`
}

// VisibleAt reports whether the annotation shows at video time t.
func (a Annotation) VisibleAt(t float64) bool {
	return t >= a.StartTime && (a.EndTime == nil || t <= *a.EndTime)
}

// Coords returns the annotation geometry.
func (a Annotation) Coords() Coords {
	return Coords{X: a.X, Y: a.Y, Width: a.Width, Height: a.Height, EndX: a.EndX, EndY: a.EndY}
}

// Validate checks kind-specific geometry and the time window.
func (a Annotation) Validate() error {
	switch a.VideoType {
	case VideoBefore, VideoAfter:
	default:
		return fmt.Errorf("annotation: unknown video type %q", a.VideoType)
	}
	if !finite(a.StartTime) || a.StartTime < 0 {
		return errors.New("annotation: start time must be a non-negative number")
	}
	if a.EndTime != nil && (!finite(*a.EndTime) || *a.EndTime < a.StartTime) {
		return errors.New("annotation: end time must not precede start time")
	}
	switch a.Kind {
	case KindArrow:
		if a.EndX == nil || a.EndY == nil {
			return errors.New("annotation: arrow requires end point")
		}
	case KindCircle:
		if a.Width == nil || *a.Width <= 0 {
			return errors.New("annotation: circle requires positive radius")
		}
	case KindRectangle:
		if a.Width == nil || a.Height == nil {
			return errors.New("annotation: rectangle requires width and height")
		}
	case KindText:
		if strings.TrimSpace(a.Text) == "" {
			return errors.New("annotation: text requires content")
		}
	default:
		return fmt.Errorf("annotation: unknown kind %q", a.Kind)
	}
	return nil
}

// VisibleAt filters annotations to those shown at time t, preserving order.
func VisibleAt(annotations []Annotation, t float64) []Annotation {
	var out []Annotation
	for _, a := range annotations {
		if a.VisibleAt(t) {
			out = append(out, a)
		}
	}
	return out
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
