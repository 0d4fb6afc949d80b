// Package export rebuilds a document from a session's final state: page
// rotation, overlays burned onto their pages and deleted pages removed.
package export

import (
	"errors"
)

// ErrExportFailed wraps every error returned by an export
var ErrExportFailed = errors.New("export failed")

// Size is a page size in points
type Size struct {
	Width  float64
	Height float64
}

// Sink is the document mutation backend of an export. Page numbers are
// 1-based and refer to the sink's current page order.
type Sink interface {
	PageCount() int
	PageSize(page int) (Size, error)
	// Composite turns page by rotation degrees clockwise and stamps
	// overlayPNG over the page bounds. overlayPNG may be nil.
	Composite(page, rotation int, overlayPNG []byte, size Size) error
	RemovePage(page int) error
	Serialize() ([]byte, error)
}

// SinkFactory opens a Sink over a copy of data
type SinkFactory func(data []byte) (Sink, error)
