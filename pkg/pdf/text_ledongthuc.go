package pdf

import (
	"bytes"
	"fmt"
	"sync"

	lpdf "github.com/ledongthuc/pdf"
)

// ledongthucLayer extracts text runs using the ledongthuc/pdf library
type ledongthucLayer struct {
	mu     sync.Mutex
	reader *lpdf.Reader
}

func newLedongthucLayer(data []byte) (*ledongthucLayer, error) {
	r, err := lpdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF with ledongthuc: %w", err)
	}
	return &ledongthucLayer{reader: r}, nil
}

// Runs returns the text runs of a page (1-based)
func (l *ledongthucLayer) Runs(pageNumber int) (runs []TextRun, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if pageNumber < 1 || pageNumber > l.reader.NumPage() {
		return nil, fmt.Errorf("invalid page number: %d", pageNumber)
	}

	// The reader panics on malformed content streams
	defer func() {
		if r := recover(); r != nil {
			runs, err = nil, fmt.Errorf("failed to read content of page %d: %v", pageNumber, r)
		}
	}()

	page := l.reader.Page(pageNumber)
	if page.V.IsNull() {
		return nil, nil
	}

	content := page.Content()
	runs = make([]TextRun, 0, len(content.Text))
	for _, text := range content.Text {
		if text.S == "" {
			continue
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
