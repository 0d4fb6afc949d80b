package pdf

import "errors"

// ErrInvalidDocument is returned when bytes cannot be parsed as a PDF.
var ErrInvalidDocument = errors.New("invalid document")

// BoundingBox represents a rectangular area with coordinates
type BoundingBox struct {
	X0 float64 // Left
	Y0 float64 // Top
	X1 float64 // Right
	Y1 float64 // Bottom
}

// Width returns the width of the bounding box
func (b BoundingBox) Width() float64 {
	return b.X1 - b.X0
}

// Height returns the height of the bounding box
func (b BoundingBox) Height() float64 {
	return b.Y1 - b.Y0
}

// Contains checks if a point is within the bounding box
func (b BoundingBox) Contains(x, y float64) bool {
	return x >= b.X0 && x <= b.X1 && y >= b.Y0 && y <= b.Y1
}

// Intersects checks if two bounding boxes intersect
func (b BoundingBox) Intersects(other BoundingBox) bool {
	return !(b.X1 < other.X0 || b.X0 > other.X1 || b.Y1 < other.Y0 || b.Y0 > other.Y1)
}

// Scale returns the box with every coordinate multiplied by f
func (b BoundingBox) Scale(f float64) BoundingBox {
	return BoundingBox{X0: b.X0 * f, Y0: b.Y0 * f, X1: b.X1 * f, Y1: b.Y1 * f}
}

// TextRun is a run of text placed on a page. X and Y are the baseline origin
// in PDF user space (origin bottom-left, units in points).
type TextRun struct {
	Text     string
	Font     string
	FontSize float64
	X        float64
	Y        float64
	Width    float64
}
