// Package tesseract implements ocr.Engine with the gosseract client.
package tesseract

import (
	"context"
	"fmt"
	"strconv"

	"github.com/otiai10/gosseract/v2"
	"github.com/pyhub-apps/pdfannotate/pkg/ocr"
	"github.com/pyhub-apps/pdfannotate/pkg/pdf"
)

// Engine runs Tesseract through gosseract. A client is created per call so
// the engine is safe for concurrent use.
type Engine struct {
	clientFactory func() *gosseract.Client
}

// New constructs a Tesseract-backed OCR engine.
func New() *Engine {
	return &Engine{clientFactory: gosseract.NewClient}
}

func (e *Engine) Name() string { return "tesseract" }

// Recognize performs OCR on a single image input.
func (e *Engine) Recognize(ctx context.Context, in ocr.Input) ([]ocr.Word, error) {
	c := e.clientFactory()
	defer c.Close()

	if err := c.SetImageFromBytes(in.Image); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}
	if len(in.Languages) > 0 {
		if err := c.SetLanguage(in.Languages...); err != nil {
			return nil, fmt.Errorf("set languages: %w", err)
		}
	}
	if in.PageSegMode > 0 {
		if err := c.SetPageSegMode(gosseract.PageSegMode(in.PageSegMode)); err != nil {
			return nil, fmt.Errorf("set page segmentation mode %s: %w", strconv.Itoa(in.PageSegMode), err)
		}
	}
	for k, v := range in.Variables {
		if err := c.SetVariable(gosseract.SettableVariable(k), v); err != nil {
			return nil, fmt.Errorf("set variable %s: %w", k, err)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("recognize words: %w", err)
	}

	words := make([]ocr.Word, 0, len(boxes))
	for _, b := range boxes {
		words = append(words, ocr.Word{
			Box: pdf.BoundingBox{
				X0: float64(b.Box.Min.X),
				Y0: float64(b.Box.Min.Y),
				X1: float64(b.Box.Max.X),
				Y1: float64(b.Box.Max.Y),
			},
			Text:       b.Word,
			Confidence: b.Confidence,
		})
	}
	return words, nil
}
