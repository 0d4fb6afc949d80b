package render

import (
	"image"
	"sync"
)

// Frame is the output of one rasterization
type Frame struct {
	RequestID uint64
	Page      int
	Viewport  Viewport
	Image     image.Image
}

// Display receives frames from the scheduler. Present is called with the
// scheduler lock held and must not call back into the scheduler.
type Display interface {
	Present(Frame)
}

// FrameBuffer is the pixel surface of a session. It keeps the last
// presented frame, so a failed render leaves the previous picture in place.
type FrameBuffer struct {
	mu       sync.RWMutex
	frame    Frame
	ok       bool
	presents int
}

// NewFrameBuffer creates an empty frame buffer
func NewFrameBuffer() *FrameBuffer {
	return &FrameBuffer{}
}

// Present replaces the current frame
func (b *FrameBuffer) Present(f Frame) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frame = f
	b.ok = true
	b.presents++
}

// Current returns the frame on display
func (b *FrameBuffer) Current() (Frame, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.frame, b.ok
}

// Presents returns how many frames have been presented
func (b *FrameBuffer) Presents() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.presents
}

// Reset empties the buffer
func (b *FrameBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frame = Frame{}
	b.ok = false
}
