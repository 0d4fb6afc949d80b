// Package ocr turns a rendered page into positioned word records that an
// overlay editor can consume. Engines are pluggable; the Tesseract engine
// lives in the tesseract subpackage so the rest of the module builds without
// cgo.
package ocr

import (
	"context"

	"github.com/pyhub-apps/pdfannotate/pkg/pdf"
)

// Word is a single recognized token. Box is in pixel coordinates of the image
// handed to the Recognizer, origin top-left.
type Word struct {
	Box        pdf.BoundingBox
	Text       string
	Confidence float64 // 0-100
	Bold       bool
	Italic     bool
}

// Input is a single image submitted to an engine.
type Input struct {
	// Image is a PNG encoded image.
	Image []byte
	// Languages are trained-data names such as "eng" or "ara".
	Languages []string
	// PageSegMode is the Tesseract page segmentation mode, zero means the
	// engine default.
	PageSegMode int
	// Variables are passed through to the engine untouched.
	Variables map[string]string
}

// Engine is the OCR provider contract: one image in, words out.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, in Input) ([]Word, error)
}
