package session

import (
	"math"

	"github.com/pyhub-apps/pdfannotate/pkg/render"
)

const defaultZoom = 1.0

// ViewTransform tracks zoom and whole-document rotation
type ViewTransform struct {
	zoom     float64
	rotation int
	step     float64
	minZoom  float64
}

// NewViewTransform creates a transform at zoom 1.0 and no rotation
func NewViewTransform(step, minZoom float64) *ViewTransform {
	return &ViewTransform{zoom: defaultZoom, step: step, minZoom: minZoom}
}

// Zoom returns the zoom level
func (v *ViewTransform) Zoom() float64 { return v.zoom }

// Rotation returns the rotation in degrees, one of 0, 90, 180 or 270
func (v *ViewTransform) Rotation() int { return v.rotation }

// SetZoom sets the zoom level rounded to two decimals. Levels under the
// floor are clamped; there is no ceiling.
func (v *ViewTransform) SetZoom(level float64) float64 {
	if math.IsNaN(level) || level < v.minZoom {
		level = v.minZoom
	}
	v.zoom = math.Round(level*100) / 100
	if v.zoom < v.minZoom {
		v.zoom = v.minZoom
	}
	return v.zoom
}

// ZoomIn raises the zoom by one step
func (v *ViewTransform) ZoomIn() float64 { return v.SetZoom(v.zoom + v.step) }

// ZoomOut lowers the zoom by one step
func (v *ViewTransform) ZoomOut() float64 { return v.SetZoom(v.zoom - v.step) }

// Rotate turns the document a quarter clockwise
func (v *ViewTransform) Rotate() int {
	v.rotation = render.NormalizeRotation(v.rotation + 90)
	return v.rotation
}

// Viewport returns the rasterization viewport for a base scale
func (v *ViewTransform) Viewport(baseScale float64) render.Viewport {
	return render.Viewport{Scale: baseScale * v.zoom, Rotation: v.rotation}
}

// Reset restores zoom 1.0 and no rotation
func (v *ViewTransform) Reset() {
	v.zoom = defaultZoom
	v.rotation = 0
}
