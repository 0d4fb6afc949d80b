//go:build !tesseract

package main

import "github.com/pyhub-apps/pdfannotate/pkg/ocr"

func newEngine() ocr.Engine {
	return nil
}
