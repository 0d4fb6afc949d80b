// Package render schedules page rasterizations onto the single display
// surface of a session.
package render

import "math"

// Viewport describes how a page is rasterized: pixels per point and
// clockwise rotation in degrees.
type Viewport struct {
	Scale    float64
	Rotation int
}

// NormalizeRotation maps any multiple of 90 degrees into [0, 360)
func NormalizeRotation(deg int) int {
	return ((deg % 360) + 360) % 360
}

// Size returns the pixel size of a w x h point page under the viewport.
// Width and height swap for quarter turns.
func (v Viewport) Size(w, h float64) (float64, float64) {
	scale := v.Scale
	if scale <= 0 {
		scale = 1
	}
	switch NormalizeRotation(v.Rotation) {
	case 90, 270:
		w, h = h, w
	}
	return math.Round(w * scale), math.Round(h * scale)
}
