package export

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/pyhub-apps/pdfannotate/pkg/overlay"
	"golang.org/x/sync/errgroup"
)

// State is everything an export needs from a session
type State struct {
	// Original is the untouched source document
	Original  []byte
	PageCount int
	Overlays  map[int]overlay.Snapshot
	Deleted   []int
	// Rotation is the whole-document rotation in degrees
	Rotation int
}

// Result is an exported document and its suggested filename
type Result struct {
	Data     []byte
	Filename string
}

// Compositor builds output documents. It never touches live session state;
// overlays are rasterized on throwaway canvases.
type Compositor struct {
	multiplier      float64
	concurrency     int
	filename        string
	extractFilename string
	mergeFilename   string
	newSink         SinkFactory
	rasterize       func(snap overlay.Snapshot, pageW, pageH, multiplier float64) ([]byte, error)
	logger          *slog.Logger
}

// Option configures a Compositor
type Option func(*Compositor)

// WithMultiplier sets the overlay resolution in pixels per point
func WithMultiplier(m float64) Option {
	return func(c *Compositor) {
		if m >= 1 {
			c.multiplier = m
		}
	}
}

// WithConcurrency bounds how many overlays are rasterized at once
func WithConcurrency(n int) Option {
	return func(c *Compositor) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithFilenames sets the suggested names for exported, extracted and merged
// documents. Empty names keep the defaults.
func WithFilenames(export, extract, merge string) Option {
	return func(c *Compositor) {
		if export != "" {
			c.filename = export
		}
		if extract != "" {
			c.extractFilename = extract
		}
		if merge != "" {
			c.mergeFilename = merge
		}
	}
}

// WithSinkFactory replaces the pdfcpu sink
func WithSinkFactory(f SinkFactory) Option {
	return func(c *Compositor) { c.newSink = f }
}

// WithLogger sets the compositor logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Compositor) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCompositor creates a Compositor
func NewCompositor(opts ...Option) *Compositor {
	c := &Compositor{
		multiplier:      2,
		concurrency:     4,
		filename:        "edited.pdf",
		extractFilename: "extracted.pdf",
		mergeFilename:   "merged.pdf",
		newSink:         NewPDFSink,
		rasterize:       overlay.Rasterize,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "export")
	return c
}

// Export composites every page in ascending order, removes deleted pages
// from the highest index down and serializes the result. Any failure
// aborts the whole export.
func (c *Compositor) Export(ctx context.Context, st State) (Result, error) {
	data, err := c.export(ctx, st)
	if err != nil {
		c.logger.Error("export failed", "error", err)
		return Result{}, fmt.Errorf("%w: %w", ErrExportFailed, err)
	}
	c.logger.Info("export complete", "pages", st.PageCount-len(st.Deleted), "bytes", len(data))
	return Result{Data: data, Filename: c.filename}, nil
}

func (c *Compositor) export(ctx context.Context, st State) ([]byte, error) {
	if len(st.Original) == 0 {
		return nil, fmt.Errorf("no source document")
	}
	if st.Rotation%90 != 0 {
		return nil, fmt.Errorf("rotation %d is not a multiple of 90", st.Rotation)
	}

	sink, err := c.newSink(st.Original)
	if err != nil {
		return nil, fmt.Errorf("failed to open source: %w", err)
	}
	n := sink.PageCount()
	if st.PageCount != 0 && st.PageCount != n {
		return nil, fmt.Errorf("source has %d pages, session expects %d", n, st.PageCount)
	}

	deleted, err := removalOrder(st.Deleted, n)
	if err != nil {
		return nil, err
	}
	isDeleted := make(map[int]bool, len(deleted))
	for _, p := range deleted {
		isDeleted[p] = true
	}

	sizes := make([]Size, n+1)
	for i := 1; i <= n; i++ {
		if sizes[i], err = sink.PageSize(i); err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
	}

	images, err := c.rasterizeOverlays(ctx, st.Overlays, sizes, isDeleted)
	if err != nil {
		return nil, err
	}

	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := sink.Composite(i, st.Rotation, images[i], sizes[i]); err != nil {
			return nil, fmt.Errorf("failed to composite page %d: %w", i, err)
		}
	}

	for _, p := range deleted {
		if err := sink.RemovePage(p); err != nil {
			return nil, fmt.Errorf("failed to remove page %d: %w", p, err)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out, err := sink.Serialize()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize: %w", err)
	}
	return out, nil
}

// rasterizeOverlays renders every non-empty overlay of a kept page. The
// result is indexed by page number.
func (c *Compositor) rasterizeOverlays(ctx context.Context, overlays map[int]overlay.Snapshot, sizes []Size, skip map[int]bool) ([][]byte, error) {
	images := make([][]byte, len(sizes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for page, snap := range overlays {
		if page < 1 || page >= len(sizes) || skip[page] || snap.IsEmpty() {
			continue
		}
		size := sizes[page]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			png, err := c.rasterizeOverlay(snap, size)
			if err != nil {
				return fmt.Errorf("failed to rasterize overlay for page %d: %w", page, err)
			}
			images[page] = png
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return images, nil
}

// rasterizeOverlay renders one overlay. A panic is reported as an error.
func (c *Compositor) rasterizeOverlay(snap overlay.Snapshot, size Size) (png []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			png, err = nil, fmt.Errorf("overlay rasterizer panicked: %v", r)
		}
	}()
	return c.rasterize(snap, size.Width, size.Height, c.multiplier)
}

// removalOrder validates deleted pages and sorts them descending, so that
// removing one never shifts another still waiting for removal.
func removalOrder(deleted []int, pageCount int) ([]int, error) {
	seen := make(map[int]bool, len(deleted))
	out := make([]int, 0, len(deleted))
	for _, p := range deleted {
		if p < 1 || p > pageCount {
			return nil, fmt.Errorf("deleted page %d out of range [1, %d]", p, pageCount)
		}
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	if len(out) >= pageCount {
		return nil, fmt.Errorf("cannot delete all %d pages", pageCount)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(out)))
	return out, nil
}
