package pdf

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// PDFDocument implements the Document interface using pdfcpu
type PDFDocument struct {
	ctx   *model.Context
	data  []byte
	pages []Page

	textOnce sync.Once
	text     textLayer
	textErr  error
}

// Parse parses raw PDF bytes. The returned document keeps its own copy of
// data, so callers may reuse the slice.
func Parse(data []byte) (doc Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			doc, err = nil, fmt.Errorf("%w: %v", ErrInvalidDocument, r)
		}
	}()

	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrInvalidDocument)
	}

	ctx, err := api.ReadContext(bytes.NewReader(data), NewConfiguration())
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read PDF context: %w", ErrInvalidDocument, err)
	}

	if err := api.ValidateContext(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}

	if ctx.PageCount < 1 {
		return nil, fmt.Errorf("%w: document has no pages", ErrInvalidDocument)
	}

	d := &PDFDocument{
		ctx:  ctx,
		data: append([]byte(nil), data...),
	}

	if err := d.initializePages(); err != nil {
		return nil, fmt.Errorf("%w: failed to initialize pages: %w", ErrInvalidDocument, err)
	}

	return d, nil
}

// initializePages initializes all pages in the document
func (d *PDFDocument) initializePages() error {
	pageCount := d.ctx.PageCount
	d.pages = make([]Page, pageCount)

	for i := 1; i <= pageCount; i++ {
		page, err := NewPDFCPUPage(d.ctx, i, d.textRuns)
		if err != nil {
			return fmt.Errorf("failed to create page %d: %w", i, err)
		}
		d.pages[i-1] = page
	}

	return nil
}

// textRuns opens the text layer on first use and returns the runs of a page
func (d *PDFDocument) textRuns(pageNumber int) ([]TextRun, error) {
	d.textOnce.Do(func() {
		d.text, d.textErr = openTextLayer(d.data)
	})
	if d.textErr != nil {
		return nil, d.textErr
	}
	return d.text.Runs(pageNumber)
}

// GetPages returns all pages in the document
func (d *PDFDocument) GetPages() []Page {
	return d.pages
}

// GetPage returns a specific page by index (0-based)
func (d *PDFDocument) GetPage(index int) (Page, error) {
	if index < 0 || index >= len(d.pages) {
		return nil, fmt.Errorf("page index %d out of range [0, %d)", index, len(d.pages))
	}
	return d.pages[index], nil
}

// PageCount returns the total number of pages
func (d *PDFDocument) PageCount() int {
	return len(d.pages)
}

// Bytes returns a copy of the raw document bytes
func (d *PDFDocument) Bytes() []byte {
	return append([]byte(nil), d.data...)
}

// Close releases resources associated with the document. Pages handed out
// earlier keep their geometry.
func (d *PDFDocument) Close() error {
	d.ctx = nil
	return nil
}

// openTextLayer tries ledongthuc first as it has the most accurate text
// positions, then falls back to dslipak.
func openTextLayer(data []byte) (textLayer, error) {
	layer, err := newLedongthucLayer(data)
	if err == nil {
		return layer, nil
	}

	fallback, ferr := newDslipakLayer(data)
	if ferr == nil {
		return fallback, nil
	}

	return nil, fmt.Errorf("failed to open text layer: %w", err)
}
