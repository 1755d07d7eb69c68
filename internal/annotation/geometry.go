package annotation

// Rect is the area a video frame occupies inside its container.
type Rect struct {
	RenderWidth     float64 `json:"render_width"`
	RenderHeight    float64 `json:"render_height"`
	OffsetX         float64 `json:"offset_x"`
	OffsetY         float64 `json:"offset_y"`
	ContainerWidth  float64 `json:"container_width"`
	ContainerHeight float64 `json:"container_height"`
}

// Coords holds a point plus optional size and end point. Optional members
// are nil when the shape does not use them.
type Coords struct {
	X      float64  `json:"x"`
	Y      float64  `json:"y"`
	Width  *float64 `json:"width,omitempty"`
	Height *float64 `json:"height,omitempty"`
	EndX   *float64 `json:"end_x,omitempty"`
	EndY   *float64 `json:"end_y,omitempty"`
}

// RenderRect fits a videoW x videoH frame into the container preserving the
// aspect ratio, letterboxing the leftover axis. ok is false when any
// dimension is not positive.
func RenderRect(containerW, containerH, videoW, videoH float64) (Rect, bool) {
	if containerW <= 0 || containerH <= 0 || videoW <= 0 || videoH <= 0 {
		return Rect{}, false
	}
	videoRatio := videoW / videoH
	containerRatio := containerW / containerH
	r := Rect{ContainerWidth: containerW, ContainerHeight: containerH}
	if videoRatio > containerRatio {
		r.RenderWidth = containerW
		r.RenderHeight = containerW / videoRatio
		r.OffsetY = (containerH - r.RenderHeight) / 2
	} else {
		r.RenderHeight = containerH
		r.RenderWidth = containerH * videoRatio
		r.OffsetX = (containerW - r.RenderWidth) / 2
	}
	return r, true
}

// ToPixel maps normalized coordinates to container pixels.
func (r Rect) ToPixel(n Coords) Coords {
	out := Coords{
		X: r.OffsetX + n.X*r.RenderWidth,
		Y: r.OffsetY + n.Y*r.RenderHeight,
	}
	out.Width = scale(n.Width, r.RenderWidth)
	out.Height = scale(n.Height, r.RenderHeight)
	out.EndX = project(n.EndX, r.OffsetX, r.RenderWidth)
	out.EndY = project(n.EndY, r.OffsetY, r.RenderHeight)
	return out
}

// ToNormalized maps container pixels back to normalized coordinates. Points
// are clamped to the frame; sizes are not.
func (r Rect) ToNormalized(p Coords) Coords {
	out := Coords{
		X: clamp01((p.X - r.OffsetX) / r.RenderWidth),
		Y: clamp01((p.Y - r.OffsetY) / r.RenderHeight),
	}
	out.Width = scale(p.Width, 1/r.RenderWidth)
	out.Height = scale(p.Height, 1/r.RenderHeight)
	if p.EndX != nil {
		v := clamp01((*p.EndX - r.OffsetX) / r.RenderWidth)
		out.EndX = &v
	}
	if p.EndY != nil {
		v := clamp01((*p.EndY - r.OffsetY) / r.RenderHeight)
		out.EndY = &v
	}
	return out
}

// Contains reports whether the container point lies on the video frame.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.OffsetX && x <= r.OffsetX+r.RenderWidth &&
		y >= r.OffsetY && y <= r.OffsetY+r.RenderHeight
}

func scale(v *float64, factor float64) *float64 {
	if v == nil {
		return nil
	}
	out := *v * factor
	return &out
}

func project(v *float64, offset, size float64) *float64 {
	if v == nil {
		return nil
	}
	out := offset + *v*size
	return &out
}

func clamp01(v float64) float64 {
	return max(0, min(1, v))
}
