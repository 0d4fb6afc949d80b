//go:build tesseract

package main

import (
	"github.com/pyhub-apps/pdfannotate/pkg/ocr"
	"github.com/pyhub-apps/pdfannotate/pkg/ocr/tesseract"
)

func newEngine() ocr.Engine {
	return tesseract.New()
}
