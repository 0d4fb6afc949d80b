package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"github.com/pyhub-apps/pdfannotate/internal/testpdf"
	"github.com/pyhub-apps/pdfannotate/pkg/overlay"
	"github.com/pyhub-apps/pdfannotate/pkg/pdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSink tracks which original page sits at each position
type fakeSink struct {
	mu        sync.Mutex
	pages     []int
	ops       []string
	stamped   map[int]bool
	rotations map[int]int
	failOn    string
}

func newFakeSink(n int) *fakeSink {
	s := &fakeSink{stamped: make(map[int]bool), rotations: make(map[int]int)}
	for i := 1; i <= n; i++ {
		s.pages = append(s.pages, i)
	}
	return s
}

func (s *fakeSink) factory(data []byte) (Sink, error) { return s, nil }

func (s *fakeSink) PageCount() int { return len(s.pages) }

func (s *fakeSink) PageSize(page int) (Size, error) {
	return Size{Width: 100, Height: 200}, nil
}

func (s *fakeSink) Composite(page, rotation int, png []byte, size Size) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	op := fmt.Sprintf("composite %d", page)
	s.ops = append(s.ops, op)
	if s.failOn == op {
		return errors.New("bad image")
	}
	if png != nil {
		s.stamped[s.pages[page-1]] = true
	}
	s.rotations[s.pages[page-1]] = rotation
	return nil
}

func (s *fakeSink) RemovePage(page int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	op := fmt.Sprintf("remove %d", page)
	s.ops = append(s.ops, op)
	if s.failOn == op {
		return errors.New("remove failed")
	}
	s.pages = append(s.pages[:page-1], s.pages[page:]...)
	return nil
}

func (s *fakeSink) Serialize() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ops = append(s.ops, "serialize")
	ids := make([]string, len(s.pages))
	for i, p := range s.pages {
		ids[i] = fmt.Sprint(p)
	}
	return []byte(strings.Join(ids, ",")), nil
}

func overlayWithRect() overlay.Snapshot {
	return overlay.Snapshot{
		Data:  json.RawMessage(`{"version":"5.3.0","objects":[{"type":"rect","left":10,"top":10,"width":30,"height":30,"fill":"red"}]}`),
		Scale: 1.5,
	}
}

func TestExportRemovesDeletedPagesDescending(t *testing.T) {
	sink := newFakeSink(5)
	c := NewCompositor(WithSinkFactory(sink.factory))

	res, err := c.Export(context.Background(), State{
		Original:  []byte("pdf"),
		PageCount: 5,
		Deleted:   []int{2, 4},
	})
	require.NoError(t, err)

	assert.Equal(t, "1,3,5", string(res.Data))
	assert.Equal(t, "edited.pdf", res.Filename)
	assert.Equal(t, []string{
		"composite 1", "composite 2", "composite 3", "composite 4", "composite 5",
		"remove 4", "remove 2",
		"serialize",
	}, sink.ops)
}

func TestExportCompositesOverlaysAndRotation(t *testing.T) {
	sink := newFakeSink(3)
	c := NewCompositor(WithSinkFactory(sink.factory), WithConcurrency(2))

	_, err := c.Export(context.Background(), State{
		Original:  []byte("pdf"),
		PageCount: 3,
		Overlays: map[int]overlay.Snapshot{
			1: {Data: json.RawMessage(`{"objects":[]}`)},
			2: overlayWithRect(),
		},
		Rotation: 90,
	})
	require.NoError(t, err)

	assert.Equal(t, map[int]bool{2: true}, sink.stamped)
	assert.Equal(t, map[int]int{1: 90, 2: 90, 3: 90}, sink.rotations)
}

func TestExportFailures(t *testing.T) {
	tests := []struct {
		name   string
		state  State
		failOn string
	}{
		{name: "no source", state: State{PageCount: 3}},
		{name: "page count mismatch", state: State{Original: []byte("pdf"), PageCount: 4}},
		{name: "delete every page", state: State{Original: []byte("pdf"), PageCount: 3, Deleted: []int{1, 2, 3}}},
		{name: "deleted out of range", state: State{Original: []byte("pdf"), PageCount: 3, Deleted: []int{7}}},
		{name: "bad rotation", state: State{Original: []byte("pdf"), PageCount: 3, Rotation: 45}},
		{name: "composite fails", state: State{Original: []byte("pdf"), PageCount: 3}, failOn: "composite 2"},
		{name: "remove fails", state: State{Original: []byte("pdf"), PageCount: 3, Deleted: []int{1}}, failOn: "remove 1"},
		{
			name: "overlay fails",
			state: State{Original: []byte("pdf"), PageCount: 3, Overlays: map[int]overlay.Snapshot{
				1: {Data: json.RawMessage(`{"objects":[{"type":"rect","fill":"nope","width":1,"height":1}]}`)},
			}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := newFakeSink(3)
			sink.failOn = tt.failOn
			c := NewCompositor(WithSinkFactory(sink.factory))

			res, err := c.Export(context.Background(), tt.state)
			assert.ErrorIs(t, err, ErrExportFailed)
			assert.Nil(t, res.Data)
			assert.NotContains(t, sink.ops, "serialize")
		})
	}
}

func TestExportRasterizerPanic(t *testing.T) {
	sink := newFakeSink(2)
	c := NewCompositor(WithSinkFactory(sink.factory))
	c.rasterize = func(overlay.Snapshot, float64, float64, float64) ([]byte, error) {
		panic("makeslice: len out of range")
	}

	res, err := c.Export(context.Background(), State{
		Original:  []byte("pdf"),
		PageCount: 2,
		Overlays:  map[int]overlay.Snapshot{2: overlayWithRect()},
	})
	require.ErrorIs(t, err, ErrExportFailed)
	assert.Contains(t, err.Error(), "panicked")
	assert.Nil(t, res.Data)
	assert.NotContains(t, sink.ops, "serialize")
}

func TestExportOversizedOverlay(t *testing.T) {
	sink := newFakeSink(1)
	c := NewCompositor(WithSinkFactory(sink.factory), WithMultiplier(100000))

	_, err := c.Export(context.Background(), State{
		Original:  []byte("pdf"),
		PageCount: 1,
		Overlays:  map[int]overlay.Snapshot{1: overlayWithRect()},
	})
	assert.ErrorIs(t, err, ErrExportFailed)
}

func TestExportCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sink := newFakeSink(2)
	_, err := NewCompositor(WithSinkFactory(sink.factory)).Export(ctx, State{Original: []byte("pdf")})
	assert.ErrorIs(t, err, ErrExportFailed)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExportPDF(t *testing.T) {
	src := testpdf.Pages(t, 5)
	c := NewCompositor(WithFilenames("out.pdf", "", ""))

	res, err := c.Export(context.Background(), State{
		Original:  src,
		PageCount: 5,
		Overlays:  map[int]overlay.Snapshot{3: overlayWithRect()},
		Deleted:   []int{2, 4},
		Rotation:  90,
	})
	require.NoError(t, err)
	assert.Equal(t, "out.pdf", res.Filename)

	doc, err := pdf.Parse(res.Data)
	require.NoError(t, err)
	defer doc.Close()
	require.Equal(t, 3, doc.PageCount())

	// page widths identify original pages 1, 3 and 5
	for i, want := range []float64{400, 440, 480} {
		page, err := doc.GetPage(i)
		require.NoError(t, err)
		assert.InDelta(t, want, page.GetWidth(), 0.5, "output page %d", i+1)
		assert.Equal(t, 90, page.GetRotation())
	}

	// the source is untouched
	orig, err := pdf.Parse(src)
	require.NoError(t, err)
	assert.Equal(t, 5, orig.PageCount())
}

// stampPlacement returns the page box and the rectangle the overlay stamp
// covers on page 1 of data.
func stampPlacement(t *testing.T, data []byte) (media types.Rectangle, rotate int, stamp types.Rectangle) {
	t.Helper()
	ctx, err := api.ReadContext(bytes.NewReader(data), pdf.NewConfiguration())
	require.NoError(t, err)
	d, _, attrs, err := ctx.PageDict(1, false)
	require.NoError(t, err)

	content, err := ctx.PageContent(d, 1)
	require.NoError(t, err)
	m := regexp.MustCompile(`q (\S+) (\S+) (\S+) (\S+) (\S+) (\S+) cm /GS\d+ gs /(Fm\d+) Do Q`).FindSubmatch(content)
	require.NotNil(t, m, "no overlay stamp in page content")
	cm := make([]float64, 6)
	for i := range cm {
		cm[i], err = strconv.ParseFloat(string(m[i+1]), 64)
		require.NoError(t, err)
	}
	require.InDelta(t, 1, cm[0], 1e-3)
	require.InDelta(t, 0, cm[1], 1e-3)
	require.InDelta(t, 0, cm[2], 1e-3)
	require.InDelta(t, 1, cm[3], 1e-3)

	res, err := ctx.DereferenceDict(d["Resources"])
	require.NoError(t, err)
	xobjects, err := ctx.DereferenceDict(res["XObject"])
	require.NoError(t, err)
	form, _, err := ctx.DereferenceStreamDict(xobjects[string(m[7])])
	require.NoError(t, err)
	require.NotNil(t, form)
	require.NoError(t, form.Decode())

	dims := regexp.MustCompile(`q (\S+) 0 0 (\S+) 0 0 cm /Im0 Do Q`).FindSubmatch(form.Content)
	require.NotNil(t, dims, "no image in overlay form")
	w, err := strconv.ParseFloat(string(dims[1]), 64)
	require.NoError(t, err)
	h, err := strconv.ParseFloat(string(dims[2]), 64)
	require.NoError(t, err)

	return *attrs.MediaBox, attrs.Rotate, *types.NewRectangle(cm[4], cm[5], cm[4]+w, cm[5]+h)
}

func TestExportOverlayCoversRotatedAndCroppedPages(t *testing.T) {
	tests := []struct {
		name       string
		page       testpdf.Size
		rotation   int
		wantW      float64
		wantH      float64
		wantRotate int
		wantLL     types.Point
	}{
		{
			name:  "plain",
			page:  testpdf.Size{Width: 400, Height: 600},
			wantW: 400, wantH: 600,
		},
		{
			name:  "page rotated 90",
			page:  testpdf.Size{Width: 400, Height: 600, Rotate: 90},
			wantW: 600, wantH: 400,
		},
		{
			name:  "page rotated 270",
			page:  testpdf.Size{Width: 400, Height: 600, Rotate: 270},
			wantW: 600, wantH: 400,
		},
		{
			name:       "page rotated 90 and document rotated 90",
			page:       testpdf.Size{Width: 400, Height: 600, Rotate: 90},
			rotation:   90,
			wantW:      600,
			wantH:      400,
			wantRotate: 90,
		},
		{
			name:   "cropped",
			page:   testpdf.Size{Width: 400, Height: 600, CropBox: [4]float64{20, 30, 320, 530}},
			wantW:  300,
			wantH:  500,
			wantLL: types.Point{X: 20, Y: 30},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := NewCompositor().Export(context.Background(), State{
				Original:  testpdf.Generate(t, tt.page),
				PageCount: 1,
				Overlays:  map[int]overlay.Snapshot{1: overlayWithRect()},
				Rotation:  tt.rotation,
			})
			require.NoError(t, err)

			media, rotate, stamp := stampPlacement(t, res.Data)
			assert.Equal(t, tt.wantRotate, rotate)
			if tt.page.CropBox == [4]float64{} {
				assert.InDelta(t, tt.wantW, media.Width(), 0.5)
				assert.InDelta(t, tt.wantH, media.Height(), 0.5)
			}
			assert.InDelta(t, tt.wantLL.X, stamp.LL.X, 1)
			assert.InDelta(t, tt.wantLL.Y, stamp.LL.Y, 1)
			assert.InDelta(t, tt.wantW, stamp.Width(), 1)
			assert.InDelta(t, tt.wantH, stamp.Height(), 1)
		})
	}
}

func TestPDFSinkRotatedPageSize(t *testing.T) {
	sink, err := NewPDFSink(testpdf.Generate(t,
		testpdf.Size{Width: 400, Height: 600, Rotate: 90},
		testpdf.Size{Width: 420, Height: 600},
	))
	require.NoError(t, err)

	size, err := sink.PageSize(1)
	require.NoError(t, err)
	assert.InDelta(t, 400, size.Width, 0.5)

	png, err := overlay.Rasterize(overlayWithRect(), size.Width, size.Height, 1)
	require.NoError(t, err)
	require.NoError(t, sink.Composite(1, 0, png, size))
	require.NoError(t, sink.RemovePage(2))

	// stamping folds /Rotate into the content, so the page is now landscape
	size, err = sink.PageSize(1)
	require.NoError(t, err)
	assert.InDelta(t, 600, size.Width, 0.5)
	assert.InDelta(t, 400, size.Height, 0.5)
}

func TestPDFSink(t *testing.T) {
	sink, err := NewPDFSink(testpdf.Pages(t, 3))
	require.NoError(t, err)

	assert.Equal(t, 3, sink.PageCount())
	size, err := sink.PageSize(2)
	require.NoError(t, err)
	assert.InDelta(t, 420, size.Width, 0.5)

	_, err = sink.PageSize(4)
	assert.Error(t, err)
	assert.Error(t, sink.Composite(1, 45, nil, size))
	assert.Error(t, sink.RemovePage(0))

	require.NoError(t, sink.RemovePage(1))
	assert.Equal(t, 2, sink.PageCount())
	size, err = sink.PageSize(1)
	require.NoError(t, err)
	assert.InDelta(t, 420, size.Width, 0.5)

	data, err := sink.Serialize()
	require.NoError(t, err)
	doc, err := pdf.Parse(data)
	require.NoError(t, err)
	assert.Equal(t, 2, doc.PageCount())
}

func TestExtractPage(t *testing.T) {
	c := NewCompositor()
	res, err := c.ExtractPage(context.Background(), testpdf.Pages(t, 3), 2)
	require.NoError(t, err)
	assert.Equal(t, "extracted.pdf", res.Filename)

	doc, err := pdf.Parse(res.Data)
	require.NoError(t, err)
	require.Equal(t, 1, doc.PageCount())
	page, _ := doc.GetPage(0)
	assert.InDelta(t, 420, page.GetWidth(), 0.5)

	_, err = c.ExtractPage(context.Background(), testpdf.Pages(t, 3), 4)
	assert.ErrorIs(t, err, ErrExportFailed)
	_, err = c.ExtractPage(context.Background(), []byte("nope"), 1)
	assert.ErrorIs(t, err, pdf.ErrInvalidDocument)
}

func TestMerge(t *testing.T) {
	c := NewCompositor()
	a := testpdf.Pages(t, 2)
	b := testpdf.Generate(t, testpdf.Letter)

	res, err := c.Merge(context.Background(), [][]byte{a, b})
	require.NoError(t, err)
	assert.Equal(t, "merged.pdf", res.Filename)

	doc, err := pdf.Parse(res.Data)
	require.NoError(t, err)
	require.Equal(t, 3, doc.PageCount())
	last, _ := doc.GetPage(2)
	assert.InDelta(t, 612, last.GetWidth(), 0.5)

	_, err = c.Merge(context.Background(), nil)
	assert.ErrorIs(t, err, ErrExportFailed)
	_, err = c.Merge(context.Background(), [][]byte{a, []byte("junk")})
	assert.ErrorIs(t, err, pdf.ErrInvalidDocument)
}

func TestRemovalOrder(t *testing.T) {
	got, err := removalOrder([]int{2, 4, 2, 1}, 5)
	require.NoError(t, err)
	assert.Equal(t, []int{4, 2, 1}, got)
}
