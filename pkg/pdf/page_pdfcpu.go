package pdf

import (
	"fmt"
	"math"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// PDFCPUPage implements the Page interface using pdfcpu. Geometry is read
// once at construction so the page stays usable after the document closes.
// Width and height describe the visible region: the CropBox clipped to the
// MediaBox.
type PDFCPUPage struct {
	pageNumber int
	originX    float64
	originY    float64
	width      float64
	height     float64
	rotation   int
	text       func(pageNumber int) ([]TextRun, error)
}

// NewPDFCPUPage creates a new page using pdfcpu context
func NewPDFCPUPage(ctx *model.Context, pageNumber int, text func(int) ([]TextRun, error)) (*PDFCPUPage, error) {
	if ctx == nil {
		return nil, fmt.Errorf("context is nil")
	}

	if pageNumber < 1 || pageNumber > ctx.PageCount {
		return nil, fmt.Errorf("page number %d out of range [1, %d]", pageNumber, ctx.PageCount)
	}

	// Get page dictionary and inherited attributes
	pageDict, _, attrs, err := ctx.PageDict(pageNumber, false)
	if err != nil {
		return nil, fmt.Errorf("failed to get page dict: %w", err)
	}

	// Default US Letter size
	box := types.RectForDim(612, 792)
	if attrs != nil {
		box = visibleBox(attrs.MediaBox, attrs.CropBox, box)
	}

	page := &PDFCPUPage{
		pageNumber: pageNumber,
		originX:    box.LL.X,
		originY:    box.LL.Y,
		width:      box.Width(),
		height:     box.Height(),
		text:       text,
	}

	// Extract rotation from inherited attributes first, then from page dict
	if attrs != nil {
		page.rotation = attrs.Rotate
	} else if rot := pageDict["Rotate"]; rot != nil {
		if rotInt, ok := rot.(types.Integer); ok {
			page.rotation = int(rotInt)
		}
	}
	page.rotation = ((page.rotation % 360) + 360) % 360

	return page, nil
}

// visibleBox clips crop to media. A missing or disjoint CropBox yields the
// MediaBox.
func visibleBox(media, crop, fallback *types.Rectangle) *types.Rectangle {
	if media == nil {
		media = fallback
	}
	if crop == nil {
		return media
	}
	r := types.NewRectangle(
		math.Max(media.LL.X, crop.LL.X),
		math.Max(media.LL.Y, crop.LL.Y),
		math.Min(media.UR.X, crop.UR.X),
		math.Min(media.UR.Y, crop.UR.Y),
	)
	if r.Width() <= 0 || r.Height() <= 0 {
		return media
	}
	return r
}

// GetPageNumber returns the page number (1-based)
func (p *PDFCPUPage) GetPageNumber() int {
	return p.pageNumber
}

// GetWidth returns the page width
func (p *PDFCPUPage) GetWidth() float64 {
	return p.width
}

// GetHeight returns the page height
func (p *PDFCPUPage) GetHeight() float64 {
	return p.height
}

// GetRotation returns the page rotation in degrees
func (p *PDFCPUPage) GetRotation() int {
	return p.rotation
}

// GetBBox returns the page bounding box
func (p *PDFCPUPage) GetBBox() BoundingBox {
	return BoundingBox{
		X0: 0,
		Y0: 0,
		X1: p.width,
		Y1: p.height,
	}
}

// TextRuns returns the text placed on the page, relative to the lower left
// corner of the visible region. Runs outside that region are dropped.
func (p *PDFCPUPage) TextRuns() ([]TextRun, error) {
	if p.text == nil {
		return nil, nil
	}
	runs, err := p.text(p.pageNumber)
	if err != nil {
		return nil, err
	}
	bbox := p.GetBBox()
	out := make([]TextRun, 0, len(runs))
	for _, r := range runs {
		r.X -= p.originX
		r.Y -= p.originY
		if !bbox.Contains(r.X, r.Y) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}
