package pdf

import (
	"bytes"
	"fmt"
	"sync"

	gopdf "github.com/dslipak/pdf"
)

// dslipakLayer extracts text runs using the dslipak/pdf library
type dslipakLayer struct {
	mu     sync.Mutex
	reader *gopdf.Reader
}

func newDslipakLayer(data []byte) (*dslipakLayer, error) {
	r, err := gopdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF with dslipak: %w", err)
	}
	return &dslipakLayer{reader: r}, nil
}

// Runs returns the text runs of a page (1-based)
func (l *dslipakLayer) Runs(pageNumber int) (runs []TextRun, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if pageNumber < 1 || pageNumber > l.reader.NumPage() {
		return nil, fmt.Errorf("invalid page number: %d", pageNumber)
	}

	defer func() {
		if r := recover(); r != nil {
			runs, err = nil, fmt.Errorf("failed to read content of page %d: %v", pageNumber, r)
		}
	}()

	page := l.reader.Page(pageNumber)
	if page.V.IsNull() {
		return nil, nil
	}

	// dslipak reports one item per glyph, merge runs sharing a baseline
	for _, text := range page.Content().Text {
		if n := len(runs); n > 0 {
			last := &runs[n-1]
			if last.Y == text.Y && last.Font == text.Font && abs(last.X+last.Width-text.X) < 0.5 {
				last.Text += text.S
				last.Width += text.W
				continue
			}
		}
		runs = append(runs, TextRun{
			Text:     text.S,
			Font:     text.Font,
			FontSize: text.FontSize,
			X:        text.X,
			Y:        text.Y,
			Width:    text.W,
		})
	}
	return runs, nil
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
