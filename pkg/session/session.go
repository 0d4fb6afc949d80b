// Package session is the single owner of an open document's state: which
// page is shown, at what zoom and rotation, which pages are deleted and
// which overlay belongs to each page.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pyhub-apps/pdfannotate/pkg/config"
	"github.com/pyhub-apps/pdfannotate/pkg/export"
	"github.com/pyhub-apps/pdfannotate/pkg/ocr"
	"github.com/pyhub-apps/pdfannotate/pkg/overlay"
	"github.com/pyhub-apps/pdfannotate/pkg/pdf"
	"github.com/pyhub-apps/pdfannotate/pkg/render"
)

var (
	// ErrLastPageProtected is returned when a deletion would leave no page
	ErrLastPageProtected = errors.New("last remaining page cannot be deleted")
	// ErrNoDocument is returned by operations that need a loaded document
	ErrNoDocument = errors.New("no document loaded")
)

// Parser turns bytes into a document
type Parser func(data []byte) (pdf.Document, error)

// Option configures a Session
type Option func(*options)

type options struct {
	logger     *slog.Logger
	cfg        config.Config
	parse      Parser
	recognizer *ocr.Recognizer
	compositor *export.Compositor
}

// WithLogger sets the session logger
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithConfig replaces the default configuration
func WithConfig(cfg config.Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithParser replaces pdf.Parse
func WithParser(p Parser) Option {
	return func(o *options) { o.parse = p }
}

// WithRecognizer enables RecognizeText
func WithRecognizer(r *ocr.Recognizer) Option {
	return func(o *options) { o.recognizer = r }
}

// WithCompositor replaces the compositor built from the configuration
func WithCompositor(c *export.Compositor) Option {
	return func(o *options) { o.compositor = c }
}

// Session is the document aggregate. All state changes go through its
// methods, which are safe for concurrent use.
type Session struct {
	editor     overlay.Editor
	scheduler  *render.Scheduler
	frames     *render.FrameBuffer
	compositor *export.Compositor
	recognizer *ocr.Recognizer
	parse      Parser
	cfg        config.Config
	logger     *slog.Logger

	mu       sync.Mutex
	doc      pdf.Document
	original []byte
	current  int
	store    *overlay.Store
	deleted  *DeletionSet
	view     *ViewTransform
	// contentScale is the viewport scale the editor's content is expressed in
	contentScale float64

	errMu         sync.Mutex
	lastRenderErr error
}

// New creates a session driving editor and rasterizing pages with r
func New(editor overlay.Editor, r render.Rasterizer, opts ...Option) *Session {
	o := options{
		logger: slog.Default(),
		cfg:    config.Default(),
		parse:  pdf.Parse,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	s := &Session{
		editor:     editor,
		frames:     render.NewFrameBuffer(),
		recognizer: o.recognizer,
		parse:      o.parse,
		cfg:        o.cfg,
		logger:     o.logger.With("component", "session"),
		store:      overlay.NewStore(),
		deleted:    NewDeletionSet(),
		view:       NewViewTransform(o.cfg.ZoomStep, o.cfg.MinZoom),
	}

	s.compositor = o.compositor
	if s.compositor == nil {
		s.compositor = export.NewCompositor(
			export.WithMultiplier(o.cfg.Export.Multiplier),
			export.WithConcurrency(o.cfg.Export.Concurrency),
			export.WithFilenames(o.cfg.Export.Filename, o.cfg.Export.ExtractFilename, o.cfg.Export.MergeFilename),
			export.WithLogger(o.logger),
		)
	}

	s.scheduler = render.NewScheduler(r,
		render.WithCancellation(o.cfg.CancelStaleRenders),
		render.WithDisplay(s.frames),
		render.WithFailureHandler(s.recordRenderFailure),
		render.WithPresentHandler(s.recordRenderSuccess),
		render.WithLogger(o.logger),
	)
	return s
}

// Load replaces the open document with data and shows its first page. On
// failure the previous document stays open.
func (s *Session) Load(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	doc, err := s.parse(data)
	if err != nil {
		if !errors.Is(err, pdf.ErrInvalidDocument) {
			err = fmt.Errorf("%w: %w", pdf.ErrInvalidDocument, err)
		}
		s.logger.Error("failed to load document", "bytes", len(data), "error", err)
		return err
	}
	if doc.PageCount() < 1 {
		doc.Close()
		return fmt.Errorf("%w: document has no pages", pdf.ErrInvalidDocument)
	}

	s.mu.Lock()
	old := s.doc
	s.doc = doc
	s.original = append([]byte(nil), data...)
	s.store.Clear()
	s.deleted = NewDeletionSet()
	s.view.Reset()
	s.scheduler.Reset()
	s.setRenderError(nil)
	s.showPage(1)
	pages := doc.PageCount()
	s.mu.Unlock()

	if old != nil {
		old.Close()
	}
	s.logger.Info("document loaded", "pages", pages, "bytes", len(data))
	return nil
}

// Next shows the next page that is not deleted. It is a no-op on the last
// visible page.
func (s *Session) Next() error {
	return s.navigate(NextVisible)
}

// Previous shows the previous page that is not deleted. It is a no-op on
// the first visible page.
func (s *Session) Previous() error {
	return s.navigate(PreviousVisible)
}

func (s *Session) navigate(step func(current, pageCount int, deleted PageSet) (int, bool)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.doc == nil {
		return ErrNoDocument
	}
	target, ok := step(s.current, s.doc.PageCount(), s.deleted)
	if !ok {
		return nil
	}
	if err := s.persist(); err != nil {
		return err
	}
	s.showPage(target)
	return nil
}

// GoTo shows logical page n. Deleted pages can not be shown.
func (s *Session) GoTo(n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.doc == nil {
		return ErrNoDocument
	}
	if n < 1 || n > s.doc.PageCount() {
		return fmt.Errorf("page %d out of range [1, %d]", n, s.doc.PageCount())
	}
	if s.deleted.Contains(n) {
		return fmt.Errorf("page %d is deleted", n)
	}
	if n == s.current {
		return nil
	}
	if err := s.persist(); err != nil {
		return err
	}
	s.showPage(n)
	return nil
}

// DeleteCurrentPage removes the shown page and moves to the next visible
// page, or the previous one when none follows.
func (s *Session) DeleteCurrentPage() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.doc == nil {
		return ErrNoDocument
	}
	pageCount := s.doc.PageCount()
	if s.deleted.Len()+1 >= pageCount {
		return fmt.Errorf("%w: page %d", ErrLastPageProtected, s.current)
	}
	if err := s.persist(); err != nil {
		return err
	}

	deleted := s.current
	s.deleted.Add(deleted)
	target, ok := NextVisible(deleted, pageCount, s.deleted)
	if !ok {
		target, _ = PreviousVisible(deleted, pageCount, s.deleted)
	}
	s.logger.Info("page deleted", "page", deleted, "visible", VisibleCount(pageCount, s.deleted))
	s.showPage(target)
	return nil
}

// SetZoom sets the zoom level and re-renders the current page
func (s *Session) SetZoom(level float64) (float64, error) {
	return s.zoom(func(v *ViewTransform) float64 { return v.SetZoom(level) })
}

// ZoomIn raises the zoom by one step
func (s *Session) ZoomIn() (float64, error) {
	return s.zoom((*ViewTransform).ZoomIn)
}

// ZoomOut lowers the zoom by one step, never under the floor
func (s *Session) ZoomOut() (float64, error) {
	return s.zoom((*ViewTransform).ZoomOut)
}

func (s *Session) zoom(apply func(*ViewTransform) float64) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.doc == nil {
		return s.view.Zoom(), ErrNoDocument
	}
	z := apply(s.view)
	s.requestRender()
	return z, nil
}

// Rotate turns the whole document a quarter clockwise
func (s *Session) Rotate() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.doc == nil {
		return s.view.Rotation(), ErrNoDocument
	}
	if err := s.persist(); err != nil {
		return s.view.Rotation(), err
	}
	r := s.view.Rotate()
	s.requestRender()
	return r, nil
}

// Persist stores the editor content as the current page's overlay
func (s *Session) Persist() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return ErrNoDocument
	}
	return s.persist()
}

// persist is called with s.mu held
func (s *Session) persist() error {
	data, err := s.editor.Serialize()
	if err != nil {
		return fmt.Errorf("failed to persist overlay for page %d: %w", s.current, err)
	}
	s.store.Set(s.current, overlay.Snapshot{Data: data, Scale: s.contentScale})
	return nil
}

// showPage makes page current, swaps the editor content and requests a
// render. Called with s.mu held.
func (s *Session) showPage(page int) {
	s.current = page
	s.editor.Clear()
	s.contentScale = s.view.Viewport(s.cfg.BaseScale).Scale

	if snap, ok := s.store.Get(page); ok {
		if err := s.editor.Load(snap.Data); err != nil {
			if !errors.Is(err, overlay.ErrOverlayLoadFailed) {
				err = fmt.Errorf("%w: %w", overlay.ErrOverlayLoadFailed, err)
			}
			s.logger.Warn("falling back to an empty overlay", "page", page, "error", err)
			s.editor.Clear()
		} else if snap.Scale > 0 {
			s.contentScale = snap.Scale
		}
	}
	s.requestRender()
}

// requestRender is called with s.mu held
func (s *Session) requestRender() {
	page, err := s.doc.GetPage(s.current - 1)
	if err != nil {
		s.recordRenderFailure(s.current, fmt.Errorf("%w: %w", render.ErrRasterizationFailed, err))
		return
	}
	vp := s.view.Viewport(s.cfg.BaseScale)
	if vs, ok := s.editor.(overlay.ViewportSetter); ok {
		// overlays live in unrotated page space whatever the view or page rotation
		w, h := render.Viewport{Scale: vp.Scale}.Size(page.GetWidth(), page.GetHeight())
		vs.SetViewport(w, h, vp.Scale/s.contentScale)
	}
	s.scheduler.Request(page, vp)
}

func (s *Session) recordRenderFailure(_ int, err error) {
	s.setRenderError(err)
}

// recordRenderSuccess clears the failure once the shown page presents
func (s *Session) recordRenderSuccess(render.Frame) {
	s.setRenderError(nil)
}

func (s *Session) setRenderError(err error) {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	s.lastRenderErr = err
}

// LastRenderError returns the most recent page render failure
func (s *Session) LastRenderError() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.lastRenderErr
}

// WaitRendered blocks until no render is in flight
func (s *Session) WaitRendered(ctx context.Context) error {
	return s.scheduler.WaitIdle(ctx)
}

// Frames returns the session's display surface
func (s *Session) Frames() *render.FrameBuffer {
	return s.frames
}

// CurrentPage returns the logical page on display
func (s *Session) CurrentPage() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// PageCount returns the number of pages of the source document
func (s *Session) PageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return 0
	}
	return s.doc.PageCount()
}

// DisplayPageNumber returns the position of the current page among the
// pages that are not deleted.
func (s *Session) DisplayPageNumber() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return 0
	}
	return DisplayPageNumber(s.current, s.deleted)
}

// VisiblePageCount returns how many pages are not deleted
func (s *Session) VisiblePageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return 0
	}
	return VisibleCount(s.doc.PageCount(), s.deleted)
}

// Zoom returns the zoom level
func (s *Session) Zoom() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view.Zoom()
}

// Rotation returns the document rotation in degrees
func (s *Session) Rotation() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view.Rotation()
}

// DeletedPages returns the deleted logical pages in ascending order
func (s *Session) DeletedPages() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleted.Pages()
}

// Overlay returns the stored overlay of page
func (s *Session) Overlay(page int) (overlay.Snapshot, bool) {
	return s.store.Get(page)
}

// Export persists the current overlay and builds the output document. The
// session is left as it was, whatever the outcome.
func (s *Session) Export(ctx context.Context) (export.Result, error) {
	s.mu.Lock()
	if s.doc == nil {
		s.mu.Unlock()
		return export.Result{}, ErrNoDocument
	}
	if err := s.persist(); err != nil {
		s.mu.Unlock()
		return export.Result{}, fmt.Errorf("%w: %w", export.ErrExportFailed, err)
	}
	st := export.State{
		Original:  s.original,
		PageCount: s.doc.PageCount(),
		Overlays:  s.store.Clone(),
		Deleted:   s.deleted.Pages(),
		Rotation:  s.view.Rotation(),
	}
	s.mu.Unlock()

	return s.compositor.Export(ctx, st)
}

// ExtractCurrentPage returns the current page of the source document on
// its own.
func (s *Session) ExtractCurrentPage(ctx context.Context) (export.Result, error) {
	s.mu.Lock()
	if s.doc == nil {
		s.mu.Unlock()
		return export.Result{}, ErrNoDocument
	}
	data, page := s.original, s.current
	s.mu.Unlock()

	return s.compositor.ExtractPage(ctx, data, page)
}

// Close stops rendering and releases the document
func (s *Session) Close() error {
	s.scheduler.Close()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return nil
	}
	err := s.doc.Close()
	s.doc = nil
	return err
}
