// Package testpdf builds small multi-page PDF documents for tests.
package testpdf

import (
	"bytes"
	"fmt"
	"image/color"
	"strconv"
	"sync"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"github.com/pyhub-apps/pdfannotate/internal/fonts"
	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/pdf"
)

// mmPerPoint converts PDF points to the millimetres canvas renders in
const mmPerPoint = 25.4 / 72

// Size is a page size in points. Rotate sets the page's /Rotate and a
// non-empty CropBox ([llx lly urx ury]) crops it.
type Size struct {
	Width, Height float64
	Rotate        int
	CropBox       [4]float64
}

var disableConfigDir sync.Once

// Letter is US Letter in points
var Letter = Size{Width: 612, Height: 792}

// Generate writes one page per size. Every page carries a label with its
// 1-based number so pages stay identifiable after reordering.
func Generate(t testing.TB, sizes ...Size) []byte {
	t.Helper()
	data, err := Build(sizes...)
	if err != nil {
		t.Fatalf("failed to build test PDF: %v", err)
	}
	return data
}

// Pages generates n pages whose widths differ, so page identity can be
// read back from geometry alone.
func Pages(t testing.TB, n int) []byte {
	t.Helper()
	sizes := make([]Size, n)
	for i := range sizes {
		sizes[i] = Size{Width: 400 + 20*float64(i), Height: 600}
	}
	return Generate(t, sizes...)
}

// Build is Generate without the testing dependency
func Build(sizes ...Size) ([]byte, error) {
	if len(sizes) == 0 {
		return nil, fmt.Errorf("no pages")
	}

	var buf bytes.Buffer
	var p *pdf.PDF
	for i, size := range sizes {
		w, h := size.Width*mmPerPoint, size.Height*mmPerPoint
		c := canvas.New(w, h)
		ctx := canvas.NewContext(c)
		ctx.SetFillColor(canvas.White)
		ctx.DrawPath(0, 0, canvas.Rectangle(w, h))

		face, err := fonts.Face(8, color.Black, canvas.FontRegular)
		if err != nil {
			return nil, err
		}
		ctx.DrawText(10, h-20, canvas.NewTextLine(face, fmt.Sprintf("Page %d", i+1), canvas.Left))

		if p == nil {
			p = pdf.New(&buf, w, h, nil)
		} else {
			p.NewPage(w, h)
		}
		c.RenderTo(p)
	}
	if err := p.Close(); err != nil {
		return nil, fmt.Errorf("failed to close PDF: %w", err)
	}
	return applyBoxes(buf.Bytes(), sizes)
}

// applyBoxes sets /Rotate and CropBox on the pages that ask for them
func applyBoxes(data []byte, sizes []Size) ([]byte, error) {
	disableConfigDir.Do(api.DisableConfigDir)
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	for i, size := range sizes {
		page := []string{strconv.Itoa(i + 1)}
		if size.Rotate != 0 {
			var out bytes.Buffer
			if err := api.Rotate(bytes.NewReader(data), &out, size.Rotate, page, conf); err != nil {
				return nil, fmt.Errorf("failed to rotate page %d: %w", i+1, err)
			}
			data = out.Bytes()
		}
		if size.CropBox != [4]float64{} {
			c := size.CropBox
			box, err := api.Box(fmt.Sprintf("[%g %g %g %g]", c[0], c[1], c[2], c[3]), types.POINTS)
			if err != nil {
				return nil, err
			}
			var out bytes.Buffer
			if err := api.Crop(bytes.NewReader(data), &out, page, box, conf); err != nil {
				return nil, fmt.Errorf("failed to crop page %d: %w", i+1, err)
			}
			data = out.Bytes()
		}
	}
	return data, nil
}
