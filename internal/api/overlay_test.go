package api

import (
	"testing"

	"kaizen/internal/annotation"
	"kaizen/internal/playback"
	"kaizen/internal/subtitle"
	"kaizen/internal/timing"
)

func TestOverlayComposesFrameAndAnnotations(t *testing.T) {
	end := 2.0
	annotations := map[annotation.VideoType][]annotation.Annotation{
		annotation.VideoBefore: {
			{ID: 1, StartTime: 0, EndTime: &end},
			{ID: 2, StartTime: 5},
		},
		annotation.VideoAfter: {{ID: 3, StartTime: 1}},
	}
	snap := playback.Snapshot{
		Phase:          playback.PhasePlaying,
		NarratorActive: true,
		Elapsed:        0.5,
		BeforePosition: 1.5,
		AfterPosition:  0.5,
		NarrationText:  "你好。",
		NarrationTiming: []timing.Segment{{
			Start: 0, End: 1,
			Tokens: []timing.Token{{Text: "你好。", Type: timing.KindWord, Start: 0, End: 1, Duration: 1}},
		}},
	}

	resp := Overlay(snap, subtitle.Style{LineWidth: 32, MaxLines: 2}, 5, annotations)
	if resp.Subtitle.Mode != subtitle.ModeKaraoke || resp.Subtitle.Lines[0][0].Progress != 50 {
		t.Fatalf("unexpected subtitle frame %+v", resp.Subtitle)
	}
	before := resp.Annotations[annotation.VideoBefore]
	if len(before) != 1 || before[0].ID != 1 {
		t.Fatalf("unexpected before annotations %+v", before)
	}
	if after := resp.Annotations[annotation.VideoAfter]; len(after) != 0 || after == nil {
		t.Fatalf("expected empty after annotations, got %+v", after)
	}
}

func TestOverlayHidesSubtitleWhenIdle(t *testing.T) {
	snap := playback.Snapshot{Phase: playback.PhaseIdle, NarratorActive: true, NarrationText: "你好。"}
	resp := Overlay(snap, subtitle.Style{}, 5, nil)
	if resp.Subtitle.Visible {
		t.Fatalf("expected hidden subtitle, got %+v", resp.Subtitle)
	}
	if resp.Annotations[annotation.VideoBefore] == nil {
		t.Fatal("expected non-nil annotation lists")
	}
}

func TestPlaceLaysAnnotationsOutInViewport(t *testing.T) {
	w := 0.1
	resp := PlayerResponse{Annotations: map[annotation.VideoType][]annotation.Annotation{
		annotation.VideoBefore: {{ID: 4, Kind: annotation.KindCircle, X: 0.5, Y: 0, Width: &w}},
		annotation.VideoAfter:  {{ID: 5, Kind: annotation.KindText, X: 0.5, Y: 0.5}},
	}}
	Place(&resp, Viewport{Width: 200, Height: 200}, map[annotation.VideoType]FrameSize{
		annotation.VideoBefore: {Width: 1920, Height: 960},
	})

	if _, ok := resp.Placements[annotation.VideoAfter]; ok {
		t.Fatal("video without a known frame should not be placed")
	}
	placed := resp.Placements[annotation.VideoBefore]
	if placed.Frame.RenderWidth != 200 || placed.Frame.OffsetY != 50 {
		t.Fatalf("unexpected frame %+v", placed.Frame)
	}
	if len(placed.Annotations) != 1 {
		t.Fatalf("unexpected placements %+v", placed.Annotations)
	}
	got := placed.Annotations[0]
	if got.ID != 4 || got.Pixel.X != 100 || got.Pixel.Y != 50 || got.Pixel.Width == nil || *got.Pixel.Width != 20 {
		t.Fatalf("unexpected placement %+v", got)
	}

	empty := PlayerResponse{}
	Place(&empty, Viewport{}, map[annotation.VideoType]FrameSize{annotation.VideoBefore: {Width: 1920, Height: 1080}})
	if empty.Placements != nil {
		t.Fatal("zero viewport should place nothing")
	}
}
