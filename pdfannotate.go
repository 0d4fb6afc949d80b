// Package pdfannotate provides the page lifecycle core of a PDF annotation
// tool: a document session with per-page overlays, page deletion, zoom and
// rotation, a render scheduler and an export pipeline that burns overlays
// into the output document.
package pdfannotate

import (
	"context"
	"fmt"
	"os"

	"github.com/pyhub-apps/pdfannotate/pkg/config"
	"github.com/pyhub-apps/pdfannotate/pkg/export"
	"github.com/pyhub-apps/pdfannotate/pkg/ocr"
	"github.com/pyhub-apps/pdfannotate/pkg/overlay"
	"github.com/pyhub-apps/pdfannotate/pkg/pdf"
	"github.com/pyhub-apps/pdfannotate/pkg/render"
	"github.com/pyhub-apps/pdfannotate/pkg/session"
)

// Re-export types for the public API
type (
	Document      = pdf.Document
	Page          = pdf.Page
	BoundingBox   = pdf.BoundingBox
	Session       = session.Session
	SessionOption = session.Option
	Editor        = overlay.Editor
	MemoryEditor  = overlay.MemoryEditor
	Object        = overlay.Object
	Snapshot      = overlay.Snapshot
	Viewport      = render.Viewport
	Frame         = render.Frame
	Rasterizer    = render.Rasterizer
	Result        = export.Result
	Config        = config.Config
	Word          = ocr.Word
)

// Re-export errors
var (
	ErrInvalidDocument     = pdf.ErrInvalidDocument
	ErrRasterizationFailed = render.ErrRasterizationFailed
	ErrLastPageProtected   = session.ErrLastPageProtected
	ErrNoDocument          = session.ErrNoDocument
	ErrExportFailed        = export.ErrExportFailed
	ErrOverlayLoadFailed   = overlay.ErrOverlayLoadFailed
)

// Re-export option functions
var (
	WithLogger     = session.WithLogger
	WithConfig     = session.WithConfig
	WithRecognizer = session.WithRecognizer
	WithCompositor = session.WithCompositor
	WithParser     = session.WithParser
)

// Re-export object field helpers
var (
	String = overlay.String
	Float  = overlay.Float
)

// Parse parses raw PDF bytes
func Parse(data []byte) (Document, error) {
	return pdf.Parse(data)
}

// NewEditor returns an in-memory overlay editor
func NewEditor() *MemoryEditor {
	return overlay.NewMemoryEditor()
}

// NewSession creates a session that previews pages with the built-in
// rasterizer.
func NewSession(editor Editor, opts ...SessionOption) *Session {
	return session.New(editor, render.NewPreviewRasterizer(), opts...)
}

// Open reads a PDF file and loads it into a new session
func Open(ctx context.Context, path string, editor Editor, opts ...SessionOption) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	s := NewSession(editor, opts...)
	if err := s.Load(ctx, data); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}
