package annotation_test

import (
	"testing"

	"kaizen/internal/annotation"
)

func ptr(v float64) *float64 { return &v }

func TestVisibleAtWindow(t *testing.T) {
	list := []annotation.Annotation{
		{ID: 1, StartTime: 1, EndTime: ptr(3)},
		{ID: 2, StartTime: 2},
		{ID: 3, StartTime: 5, EndTime: ptr(5)},
	}
	cases := []struct {
		t    float64
		want []int64
	}{
		{0.5, nil},
		{1, []int64{1}},
		{2.5, []int64{1, 2}},
		{3, []int64{1, 2}},
		{3.01, []int64{2}},
		{5, []int64{2, 3}},
		{100, []int64{2}},
	}
	for _, tc := range cases {
		got := annotation.VisibleAt(list, tc.t)
		if len(got) != len(tc.want) {
			t.Fatalf("t=%v: got %d annotations, want %v", tc.t, len(got), tc.want)
		}
		for i, a := range got {
			if a.ID != tc.want[i] {
				t.Fatalf("t=%v: got id %d at %d, want %v", tc.t, a.ID, i, tc.want)
			}
		}
	}
}

func TestRenderRectLetterboxes(t *testing.T) {
	wide, ok := annotation.RenderRect(800, 800, 2000, 1000)
	if !ok {
		t.Fatal("expected rect")
	}
	if wide.RenderWidth != 800 || wide.RenderHeight != 400 || wide.OffsetX != 0 || wide.OffsetY != 200 {
		t.Fatalf("unexpected wide rect %+v", wide)
	}

	tall, _ := annotation.RenderRect(1600, 900, 1080, 1920)
	if tall.RenderHeight != 900 || tall.OffsetY != 0 || tall.RenderWidth != 506.25 || tall.OffsetX != 546.875 {
		t.Fatalf("unexpected tall rect %+v", tall)
	}

	if _, ok := annotation.RenderRect(800, 600, 0, 1080); ok {
		t.Fatal("expected failure without intrinsic size")
	}
}

func TestPixelRoundTrip(t *testing.T) {
	rect, _ := annotation.RenderRect(800, 800, 2000, 1000)
	norm := annotation.Coords{X: 0.25, Y: 0.5, Width: ptr(0.5), EndX: ptr(1), EndY: ptr(0)}

	px := rect.ToPixel(norm)
	if px.X != 200 || px.Y != 400 || *px.Width != 400 || *px.EndX != 800 || *px.EndY != 200 {
		t.Fatalf("unexpected pixel coords %+v", px)
	}
	if px.Height != nil {
		t.Fatal("absent members should stay nil")
	}

	back := rect.ToNormalized(px)
	if back.X != 0.25 || back.Y != 0.5 || *back.Width != 0.5 || *back.EndX != 1 || *back.EndY != 0 {
		t.Fatalf("unexpected round trip %+v", back)
	}
}

func TestToNormalizedClampsPoints(t *testing.T) {
	rect, _ := annotation.RenderRect(800, 800, 2000, 1000)
	got := rect.ToNormalized(annotation.Coords{X: -50, Y: 790, EndX: ptr(900)})
	if got.X != 0 || got.Y != 1 || *got.EndX != 1 {
		t.Fatalf("expected clamped coords, got %+v", got)
	}
}

func TestContains(t *testing.T) {
	rect, _ := annotation.RenderRect(800, 800, 2000, 1000)
	if rect.Contains(400, 100) {
		t.Fatal("point in the letterbox should be outside the video")
	}
	if !rect.Contains(400, 400) {
		t.Fatal("centre should be inside")
	}
}

func TestValidate(t *testing.T) {
	valid := []annotation.Annotation{
		{VideoType: annotation.VideoBefore, Kind: annotation.KindArrow, EndX: ptr(1), EndY: ptr(1)},
		{VideoType: annotation.VideoAfter, Kind: annotation.KindCircle, Width: ptr(0.1)},
		{VideoType: annotation.VideoAfter, Kind: annotation.KindRectangle, Width: ptr(0.1), Height: ptr(0.2)},
		{VideoType: annotation.VideoAfter, Kind: annotation.KindText, Text: "减少弯腰", StartTime: 2, EndTime: ptr(4)},
	}
	for _, a := range valid {
		if err := a.Validate(); err != nil {
			t.Fatalf("expected %+v valid: %v", a, err)
		}
	}
	invalid := []annotation.Annotation{
		{VideoType: "side", Kind: annotation.KindText, Text: "x"},
		{VideoType: annotation.VideoBefore, Kind: annotation.KindArrow},
		{VideoType: annotation.VideoBefore, Kind: annotation.KindText, Text: "x", StartTime: 3, EndTime: ptr(1)},
		{VideoType: annotation.VideoBefore, Kind: "freehand"},
	}
	for _, a := range invalid {
		if err := a.Validate(); err == nil {
			t.Fatalf("expected %+v invalid", a)
		}
	}
}
