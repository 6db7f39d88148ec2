package domain

import "math"

const (
	MinZoom     = 0.5
	MaxZoom     = 3.0
	ZoomStep    = 0.25
	DefaultZoom = 1.0
)

// Viewport is the previewer's page and zoom state. Every method keeps
// 1 <= Page <= NumPages and MinZoom <= Zoom <= MaxZoom.
type Viewport struct {
	Page     int     `json:"page"`
	NumPages int     `json:"num_pages"`
	Zoom     float64 `json:"zoom"`
}

func NewViewport(numPages int) Viewport {
	if numPages < 1 {
		numPages = 1
	}
	return Viewport{Page: 1, NumPages: numPages, Zoom: DefaultZoom}
}

func (v Viewport) NextPage() Viewport { return v.GoTo(v.Page + 1) }
func (v Viewport) PrevPage() Viewport { return v.GoTo(v.Page - 1) }

func (v Viewport) GoTo(page int) Viewport {
	v.Page = clampInt(page, 1, max(v.NumPages, 1))
	return v
}

func (v Viewport) ZoomIn() Viewport  { return v.SetZoom(v.Zoom + ZoomStep) }
func (v Viewport) ZoomOut() Viewport { return v.SetZoom(v.Zoom - ZoomStep) }

// SetZoom snaps zoom to the nearest step and clamps it to the allowed range.
func (v Viewport) SetZoom(zoom float64) Viewport {
	if math.IsNaN(zoom) {
		zoom = DefaultZoom
	}
	snapped := math.Round(zoom/ZoomStep) * ZoomStep
	v.Zoom = math.Min(MaxZoom, math.Max(MinZoom, snapped))
	return v
}

// ZoomPercent is the zoom as shown in the viewer toolbar.
func (v Viewport) ZoomPercent() int {
	return int(math.Round(v.Zoom * 100))
}

func clampInt(value, lo, hi int) int {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}
