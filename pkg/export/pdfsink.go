package export

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"github.com/pyhub-apps/pdfannotate/pkg/pdf"
)

// overlayStamp places an image over the whole page, on top of the content
const overlayStamp = "scalefactor:1 rel, pos:c, rot:0, opacity:1"

// PDFSink is a Sink backed by pdfcpu. Composite calls are buffered and
// applied in one pass before the next removal or serialization.
type PDFSink struct {
	conf    *model.Configuration
	data    []byte
	sizes   []Size
	pageRot []int // each page's own /Rotate

	stamps    map[int][]byte
	rotations map[int]int
}

// NewPDFSink opens a sink over a copy of data
func NewPDFSink(data []byte) (Sink, error) {
	doc, err := pdf.Parse(data)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	sizes := make([]Size, 0, doc.PageCount())
	pageRot := make([]int, 0, doc.PageCount())
	for _, p := range doc.GetPages() {
		sizes = append(sizes, Size{Width: p.GetWidth(), Height: p.GetHeight()})
		pageRot = append(pageRot, p.GetRotation())
	}

	return &PDFSink{
		conf:      pdf.NewConfiguration(),
		data:      doc.Bytes(),
		sizes:     sizes,
		pageRot:   pageRot,
		stamps:    make(map[int][]byte),
		rotations: make(map[int]int),
	}, nil
}

// PageCount returns the number of pages currently in the sink
func (s *PDFSink) PageCount() int {
	return len(s.sizes)
}

// PageSize returns the visible size of page in unrotated page space
func (s *PDFSink) PageSize(page int) (Size, error) {
	if err := s.check(page); err != nil {
		return Size{}, err
	}
	return s.sizes[page-1], nil
}

// Composite records the rotation and overlay for page. Rotation is relative
// to the page's own /Rotate.
func (s *PDFSink) Composite(page, rotation int, overlayPNG []byte, size Size) error {
	if err := s.check(page); err != nil {
		return err
	}
	if rotation%90 != 0 {
		return fmt.Errorf("rotation %d is not a multiple of 90", rotation)
	}
	if len(overlayPNG) > 0 {
		s.stamps[page] = overlayPNG
	}
	if r := ((rotation % 360) + 360) % 360; r != 0 {
		s.rotations[page] = r
	}
	return nil
}

// RemovePage deletes page. Later pages move up by one.
func (s *PDFSink) RemovePage(page int) error {
	if err := s.check(page); err != nil {
		return err
	}
	if len(s.sizes) == 1 {
		return fmt.Errorf("cannot remove the only page")
	}
	if err := s.flush(); err != nil {
		return err
	}
	err := s.apply(func(rs io.ReadSeeker, w io.Writer) error {
		return api.RemovePages(rs, w, []string{strconv.Itoa(page)}, s.conf)
	})
	if err != nil {
		return fmt.Errorf("failed to remove page %d: %w", page, err)
	}
	s.sizes = append(s.sizes[:page-1], s.sizes[page:]...)
	s.pageRot = append(s.pageRot[:page-1], s.pageRot[page:]...)
	return nil
}

// Serialize applies pending work and returns the document bytes
func (s *PDFSink) Serialize() ([]byte, error) {
	if err := s.flush(); err != nil {
		return nil, err
	}
	return append([]byte(nil), s.data...), nil
}

// flush stamps overlays, then rotates. Overlays are drawn in unrotated page
// space. pdfcpu stamps in the orientation the page is viewed in and folds the
// page's /Rotate into its content, so the overlay is turned to match first.
func (s *PDFSink) flush() error {
	pages := make([]int, 0, len(s.stamps))
	for p := range s.stamps {
		pages = append(pages, p)
	}
	sort.Ints(pages)

	for _, p := range pages {
		img, err := orientOverlay(s.stamps[p], s.pageRot[p-1])
		if err != nil {
			return fmt.Errorf("failed to orient overlay for page %d: %w", p, err)
		}
		wm, err := api.ImageWatermarkForReader(bytes.NewReader(img), overlayStamp, true, false, types.POINTS)
		if err != nil {
			return fmt.Errorf("failed to prepare overlay for page %d: %w", p, err)
		}
		err = s.apply(func(rs io.ReadSeeker, w io.Writer) error {
			return api.AddWatermarks(rs, w, []string{strconv.Itoa(p)}, wm, s.conf)
		})
		if err != nil {
			return fmt.Errorf("failed to stamp overlay on page %d: %w", p, err)
		}
		if rot := s.pageRot[p-1]; rot == 90 || rot == 270 {
			s.sizes[p-1] = Size{Width: s.sizes[p-1].Height, Height: s.sizes[p-1].Width}
		}
		s.pageRot[p-1] = 0
	}
	s.stamps = make(map[int][]byte)

	byDegrees := make(map[int][]string)
	for p, deg := range s.rotations {
		byDegrees[deg] = append(byDegrees[deg], strconv.Itoa(p))
	}
	for deg, selected := range byDegrees {
		sort.Strings(selected)
		err := s.apply(func(rs io.ReadSeeker, w io.Writer) error {
			return api.Rotate(rs, w, deg, selected, s.conf)
		})
		if err != nil {
			return fmt.Errorf("failed to rotate pages by %d: %w", deg, err)
		}
	}
	s.rotations = make(map[int]int)
	return nil
}

func (s *PDFSink) apply(op func(rs io.ReadSeeker, w io.Writer) error) error {
	var buf bytes.Buffer
	if err := op(bytes.NewReader(s.data), &buf); err != nil {
		return err
	}
	s.data = buf.Bytes()
	return nil
}

func (s *PDFSink) check(page int) error {
	if page < 1 || page > len(s.sizes) {
		return fmt.Errorf("page %d out of range [1, %d]", page, len(s.sizes))
	}
	return nil
}
