package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/pyhub-apps/pdfannotate/pkg/ocr"
	"github.com/pyhub-apps/pdfannotate/pkg/overlay"
	"github.com/pyhub-apps/pdfannotate/pkg/pdf"
	"github.com/pyhub-apps/pdfannotate/pkg/render"
)

// RecognizeText runs OCR over the rendered current page and hands the words
// to the editor. Returned boxes are in editor coordinates.
func (s *Session) RecognizeText(ctx context.Context) ([]ocr.Word, error) {
	if s.recognizer == nil {
		return nil, errors.New("no text recognizer configured")
	}
	if err := s.WaitRendered(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.doc == nil {
		s.mu.Unlock()
		return nil, ErrNoDocument
	}
	page := s.current
	contentScale := s.contentScale
	pageRotation := 0
	if p, err := s.doc.GetPage(page - 1); err == nil {
		pageRotation = p.GetRotation()
	}
	s.mu.Unlock()

	frame, ok := s.frames.Current()
	if !ok || frame.Page != page || frame.Image == nil {
		if err := s.LastRenderError(); err != nil {
			return nil, fmt.Errorf("page %d is not rendered: %w", page, err)
		}
		return nil, fmt.Errorf("page %d is not rendered", page)
	}

	words, err := s.recognizer.Recognize(ctx, frame.Image)
	if err != nil {
		return nil, fmt.Errorf("text recognition failed on page %d: %w", page, err)
	}

	b := frame.Image.Bounds()
	bounds := pdf.BoundingBox{X0: float64(b.Min.X), Y0: float64(b.Min.Y), X1: float64(b.Max.X), Y1: float64(b.Max.Y)}
	factor := contentScale
	if frame.Viewport.Scale > 0 {
		factor = contentScale / frame.Viewport.Scale
	}
	// frames are drawn rotated by the view rotation plus the page's /Rotate
	deg := frame.Viewport.Rotation + pageRotation
	placed := words[:0]
	for _, w := range words {
		box, ok := clip(w.Box, bounds)
		if !ok {
			continue
		}
		w.Box = unrotate(box, float64(b.Dx()), float64(b.Dy()), deg).Scale(factor)
		placed = append(placed, w)
	}
	words = placed

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != page {
		return words, fmt.Errorf("page changed during text recognition")
	}
	if sink, ok := s.editor.(overlay.TextSink); ok {
		if err := sink.AddRecognizedText(words); err != nil {
			return words, fmt.Errorf("failed to place recognized text: %w", err)
		}
	}
	s.logger.Info("text recognized", "page", page, "words", len(words))
	return words, nil
}

// clip limits b to frame. It reports false when no part of b is visible.
func clip(b, frame pdf.BoundingBox) (pdf.BoundingBox, bool) {
	if !b.Intersects(frame) {
		return b, false
	}
	c := pdf.BoundingBox{
		X0: max(b.X0, frame.X0),
		Y0: max(b.Y0, frame.Y0),
		X1: min(b.X1, frame.X1),
		Y1: min(b.Y1, frame.Y1),
	}
	return c, c.Width() > 0 && c.Height() > 0
}

// unrotate maps a box from a frame of size w x h rotated clockwise by deg
// back to unrotated page pixels.
func unrotate(b pdf.BoundingBox, w, h float64, deg int) pdf.BoundingBox {
	pt := func(x, y float64) (float64, float64) {
		switch render.NormalizeRotation(deg) {
		case 90:
			return y, w - x
		case 180:
			return w - x, h - y
		case 270:
			return h - y, x
		}
		return x, y
	}
	x0, y0 := pt(b.X0, b.Y0)
	x1, y1 := pt(b.X1, b.Y1)
	return pdf.BoundingBox{X0: min(x0, x1), Y0: min(y0, y1), X1: max(x0, x1), Y1: max(y0, y1)}
}
