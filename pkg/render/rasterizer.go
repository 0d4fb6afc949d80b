package render

import (
	"context"
	"fmt"
	"image"

	"github.com/pyhub-apps/pdfannotate/internal/fonts"
	"github.com/pyhub-apps/pdfannotate/pkg/pdf"
	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/rasterizer"
)

// Rasterizer turns a page into pixels. Implementations should return
// ctx.Err() promptly once ctx is cancelled.
type Rasterizer interface {
	Rasterize(ctx context.Context, page pdf.Page, vp Viewport) (image.Image, error)
}

// RasterizerFunc adapts a function to the Rasterizer interface
type RasterizerFunc func(ctx context.Context, page pdf.Page, vp Viewport) (image.Image, error)

func (f RasterizerFunc) Rasterize(ctx context.Context, page pdf.Page, vp Viewport) (image.Image, error) {
	return f(ctx, page, vp)
}

// MaxPreviewPixels bounds the pixel count of a single preview
const MaxPreviewPixels = 1 << 26

// PreviewRasterizer draws a page's text layer onto a blank page. It is not
// a full PDF renderer but gives headless sessions a faithful page geometry
// with readable content.
type PreviewRasterizer struct{}

// NewPreviewRasterizer creates a preview rasterizer
func NewPreviewRasterizer() *PreviewRasterizer {
	return &PreviewRasterizer{}
}

// Rasterize renders page at the viewport scale, rotated by the viewport
// rotation plus the page's own /Rotate.
func (r *PreviewRasterizer) Rasterize(ctx context.Context, page pdf.Page, vp Viewport) (image.Image, error) {
	if page == nil {
		return nil, fmt.Errorf("no page")
	}
	w, h := page.GetWidth(), page.GetHeight()
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("invalid page size %.2fx%.2f", w, h)
	}
	if pw, ph := vp.Size(w, h); pw*ph > MaxPreviewPixels {
		return nil, fmt.Errorf("preview of %.0fx%.0f pixels exceeds the limit of %d", pw, ph, MaxPreviewPixels)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	runs, err := page.TextRuns()
	if err != nil {
		return nil, fmt.Errorf("failed to read text layer: %w", err)
	}

	rotation := NormalizeRotation(vp.Rotation + page.GetRotation())
	cw, ch := w, h
	if rotation == 90 || rotation == 270 {
		cw, ch = h, w
	}

	c := canvas.New(cw, ch)
	cctx := canvas.NewContext(c)
	cctx.SetFillColor(canvas.White)
	cctx.DrawPath(0, 0, canvas.Rectangle(cw, ch))

	// clockwise page rotation in a Y-up canvas
	switch rotation {
	case 90:
		cctx.Translate(0, w)
		cctx.Rotate(-90)
	case 180:
		cctx.Translate(w, h)
		cctx.Rotate(180)
	case 270:
		cctx.Translate(h, 0)
		cctx.Rotate(90)
	}

	for _, run := range runs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if run.FontSize <= 0 || run.Text == "" {
			continue
		}
		face, err := fonts.Face(run.FontSize, canvas.Black, canvas.FontRegular)
		if err != nil {
			return nil, err
		}
		cctx.DrawText(run.X, run.Y, canvas.NewTextLine(face, run.Text, canvas.Left))
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	scale := vp.Scale
	if scale <= 0 {
		scale = 1
	}
	return rasterizer.Draw(c, canvas.DPMM(scale), canvas.DefaultColorSpace), nil
}
