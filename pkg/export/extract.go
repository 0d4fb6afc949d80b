package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pyhub-apps/pdfannotate/pkg/pdf"
)

// ExtractPage returns a single page of data as its own document
func (c *Compositor) ExtractPage(ctx context.Context, data []byte, page int) (Result, error) {
	out, err := extractPage(ctx, data, page)
	if err != nil {
		c.logger.Error("extract failed", "page", page, "error", err)
		return Result{}, fmt.Errorf("%w: %w", ErrExportFailed, err)
	}
	return Result{Data: out, Filename: c.extractFilename}, nil
}

func extractPage(ctx context.Context, data []byte, page int) ([]byte, error) {
	doc, err := pdf.Parse(data)
	if err != nil {
		return nil, err
	}
	n := doc.PageCount()
	doc.Close()
	if page < 1 || page > n {
		return nil, fmt.Errorf("page %d out of range [1, %d]", page, n)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := api.Trim(bytes.NewReader(data), &buf, []string{strconv.Itoa(page)}, pdf.NewConfiguration()); err != nil {
		return nil, fmt.Errorf("failed to extract page %d: %w", page, err)
	}
	return buf.Bytes(), nil
}

// Merge concatenates docs in order into one document
func (c *Compositor) Merge(ctx context.Context, docs [][]byte) (Result, error) {
	out, err := merge(ctx, docs)
	if err != nil {
		c.logger.Error("merge failed", "documents", len(docs), "error", err)
		return Result{}, fmt.Errorf("%w: %w", ErrExportFailed, err)
	}
	return Result{Data: out, Filename: c.mergeFilename}, nil
}

func merge(ctx context.Context, docs [][]byte) ([]byte, error) {
	if len(docs) == 0 {
		return nil, fmt.Errorf("nothing to merge")
	}
	readers := make([]io.ReadSeeker, 0, len(docs))
	for i, d := range docs {
		doc, err := pdf.Parse(d)
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i+1, err)
		}
		doc.Close()
		readers = append(readers, bytes.NewReader(d))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := api.MergeRaw(readers, &buf, false, pdf.NewConfiguration()); err != nil {
		return nil, fmt.Errorf("failed to merge: %w", err)
	}
	return buf.Bytes(), nil
}
