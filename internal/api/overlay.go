package api

import (
	"kaizen/internal/annotation"
	"kaizen/internal/playback"
	"kaizen/internal/subtitle"
)

// Overlay composes the UI payload for a snapshot: the subtitle frame at the
// narration clock and, per video, the annotations visible at that video's
// playhead. speed is the narration pace used by fallback subtitles.
func Overlay(snap playback.Snapshot, style subtitle.Style, speed float64, annotations map[annotation.VideoType][]annotation.Annotation) PlayerResponse {
	frame := subtitle.Render(subtitle.Input{
		Segments: snap.NarrationTiming,
		Text:     snap.NarrationText,
		Time:     snap.Elapsed,
		Active:   snap.NarratorActive && snap.Phase != playback.PhaseIdle,
		Speed:    speed,
		Style:    style,
	})
	return PlayerResponse{
		Player:   snap,
		Subtitle: frame,
		Annotations: map[annotation.VideoType][]annotation.Annotation{
			annotation.VideoBefore: visible(annotations[annotation.VideoBefore], snap.BeforePosition),
			annotation.VideoAfter:  visible(annotations[annotation.VideoAfter], snap.AfterPosition),
		},
	}
}

func visible(list []annotation.Annotation, t float64) []annotation.Annotation {
	out := annotation.VisibleAt(list, t)
	if out == nil {
		return []annotation.Annotation{}
	}
	return out
}

// Place adds pixel placements for view. Videos whose frame size is missing
// from frames are left out.
func Place(resp *PlayerResponse, view Viewport, frames map[annotation.VideoType]FrameSize) {
	for videoType, frame := range frames {
		rect, ok := annotation.RenderRect(view.Width, view.Height, float64(frame.Width), float64(frame.Height))
		if !ok {
			continue
		}
		placed := make([]PlacedAnnotation, 0, len(resp.Annotations[videoType]))
		for _, a := range resp.Annotations[videoType] {
			placed = append(placed, PlacedAnnotation{ID: a.ID, Kind: a.Kind, Pixel: rect.ToPixel(a.Coords())})
		}
		if resp.Placements == nil {
			resp.Placements = map[annotation.VideoType]Placement{}
		}
		resp.Placements[videoType] = Placement{Frame: rect, Annotations: placed}
	}
}
