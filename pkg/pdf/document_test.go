package pdf

import (
	"testing"

	"github.com/pyhub-apps/pdfannotate/internal/testpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	data := testpdf.Generate(t,
		testpdf.Letter,
		testpdf.Size{Width: 300, Height: 400},
		testpdf.Size{Width: 500, Height: 200},
	)

	doc, err := Parse(data)
	require.NoError(t, err)
	defer doc.Close()

	assert.Equal(t, 3, doc.PageCount())
	assert.Len(t, doc.GetPages(), 3)

	tests := []struct {
		index int
		w, h  float64
	}{
		{0, 612, 792},
		{1, 300, 400},
		{2, 500, 200},
	}
	for _, tt := range tests {
		page, err := doc.GetPage(tt.index)
		require.NoError(t, err)
		assert.Equal(t, tt.index+1, page.GetPageNumber())
		assert.InDelta(t, tt.w, page.GetWidth(), 0.5)
		assert.InDelta(t, tt.h, page.GetHeight(), 0.5)
		assert.Equal(t, 0, page.GetRotation())

		bbox := page.GetBBox()
		assert.InDelta(t, tt.w, bbox.Width(), 0.5)
		assert.InDelta(t, tt.h, bbox.Height(), 0.5)
	}

	_, err = doc.GetPage(3)
	assert.Error(t, err)
	_, err = doc.GetPage(-1)
	assert.Error(t, err)
}

func TestParseKeepsOwnCopy(t *testing.T) {
	data := testpdf.Pages(t, 2)
	doc, err := Parse(data)
	require.NoError(t, err)

	orig := doc.Bytes()
	data[0] = 'X'
	assert.Equal(t, orig, doc.Bytes())

	out := doc.Bytes()
	out[0] = 'Y'
	assert.Equal(t, orig, doc.Bytes())
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"not a pdf", []byte("hello world")},
		{"truncated", []byte("%PDF-1.7\n1 0 obj\n<<")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.data)
			assert.ErrorIs(t, err, ErrInvalidDocument)
		})
	}
}

func TestPageCloseKeepsGeometry(t *testing.T) {
	doc, err := Parse(testpdf.Pages(t, 1))
	require.NoError(t, err)
	page, err := doc.GetPage(0)
	require.NoError(t, err)
	require.NoError(t, doc.Close())

	assert.InDelta(t, 400, page.GetWidth(), 0.5)
	assert.InDelta(t, 600, page.GetHeight(), 0.5)
}

func TestBoundingBox(t *testing.T) {
	b := BoundingBox{X0: 10, Y0: 20, X1: 30, Y1: 60}
	assert.Equal(t, 20.0, b.Width())
	assert.Equal(t, 40.0, b.Height())
	assert.True(t, b.Contains(15, 30))
	assert.False(t, b.Contains(5, 30))
	assert.True(t, b.Intersects(BoundingBox{X0: 25, Y0: 55, X1: 40, Y1: 70}))
	assert.False(t, b.Intersects(BoundingBox{X0: 31, Y0: 0, X1: 40, Y1: 10}))
	assert.Equal(t, BoundingBox{X0: 5, Y0: 10, X1: 15, Y1: 30}, b.Scale(0.5))
}

func TestParseRotatedAndCroppedPages(t *testing.T) {
	data := testpdf.Generate(t,
		testpdf.Size{Width: 400, Height: 600, Rotate: 90},
		testpdf.Size{Width: 400, Height: 600, CropBox: [4]float64{20, 30, 320, 530}},
	)

	doc, err := Parse(data)
	require.NoError(t, err)
	defer doc.Close()

	tests := []struct {
		index    int
		w, h     float64
		rotation int
	}{
		{0, 400, 600, 90},
		{1, 300, 500, 0},
	}
	for _, tt := range tests {
		page, err := doc.GetPage(tt.index)
		require.NoError(t, err)
		assert.InDelta(t, tt.w, page.GetWidth(), 0.5, "page %d", tt.index+1)
		assert.InDelta(t, tt.h, page.GetHeight(), 0.5, "page %d", tt.index+1)
		assert.Equal(t, tt.rotation, page.GetRotation(), "page %d", tt.index+1)
	}
}

func TestTextRunsRelativeToVisibleBox(t *testing.T) {
	page := &PDFCPUPage{
		pageNumber: 1,
		originX:    20,
		originY:    30,
		width:      300,
		height:     500,
		text: func(int) ([]TextRun, error) {
			return []TextRun{
				{Text: "inside", X: 50, Y: 100, FontSize: 10},
				{Text: "left of crop", X: 5, Y: 100, FontSize: 10},
				{Text: "above crop", X: 50, Y: 560, FontSize: 10},
			}, nil
		},
	}

	runs, err := page.TextRuns()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "inside", runs[0].Text)
	assert.Equal(t, 30.0, runs[0].X)
	assert.Equal(t, 70.0, runs[0].Y)
}
