package render

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"

	"github.com/pyhub-apps/pdfannotate/pkg/pdf"
)

// ErrRasterizationFailed wraps every error reported for a single page
var ErrRasterizationFailed = errors.New("rasterization failed")

// State is the observable state of a Scheduler
type State int

const (
	// StateIdle means nothing is being rasterized
	StateIdle State = iota
	// StateRendering means one rasterization is in flight
	StateRendering
	// StateRenderingPending means one rasterization is in flight and another
	// is queued behind it
	StateRenderingPending
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRendering:
		return "rendering"
	case StateRenderingPending:
		return "rendering+pending"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

type request struct {
	id   uint64
	page pdf.Page
	vp   Viewport
}

func (r *request) pageNumber() int {
	if r.page == nil {
		return 0
	}
	return r.page.GetPageNumber()
}

// Scheduler runs at most one rasterization at a time. Bursts of requests
// collapse to the last one, and only the output of the currently active
// request ever reaches the display.
type Scheduler struct {
	rasterizer  Rasterizer
	cancellable bool
	display     Display
	onFailure   func(page int, err error)
	onPresent   func(Frame)
	logger      *slog.Logger

	mu      sync.Mutex
	nextID  uint64
	active  *request // the only request allowed to present
	running *request
	pending *request
	cancel  context.CancelFunc
	idle    chan struct{}
	closed  bool
	wg      sync.WaitGroup
}

// SchedulerOption configures a Scheduler
type SchedulerOption func(*Scheduler)

// WithCancellation controls whether a new request cancels the one in
// flight. Without it the new request waits in a single pending slot.
func WithCancellation(enabled bool) SchedulerOption {
	return func(s *Scheduler) { s.cancellable = enabled }
}

// WithDisplay sets the surface frames are presented on
func WithDisplay(d Display) SchedulerOption {
	return func(s *Scheduler) { s.display = d }
}

// WithFailureHandler registers a callback for pages that failed to render.
// It runs without the scheduler lock held.
func WithFailureHandler(fn func(page int, err error)) SchedulerOption {
	return func(s *Scheduler) { s.onFailure = fn }
}

// WithPresentHandler registers a callback for frames that reached the
// display. It runs without the scheduler lock held.
func WithPresentHandler(fn func(Frame)) SchedulerOption {
	return func(s *Scheduler) { s.onPresent = fn }
}

// WithLogger sets the scheduler logger
func WithLogger(logger *slog.Logger) SchedulerOption {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewScheduler creates an idle scheduler for r
func NewScheduler(r Rasterizer, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		rasterizer:  r,
		cancellable: true,
		logger:      slog.Default(),
		idle:        make(chan struct{}),
	}
	close(s.idle)
	for _, opt := range opts {
		opt(s)
	}
	if s.display == nil {
		s.display = NewFrameBuffer()
	}
	s.logger = s.logger.With("component", "render")
	return s
}

// Display returns the surface frames are presented on
func (s *Scheduler) Display() Display {
	return s.display
}

// Request asks for page to be rasterized with vp and returns the request
// id. It never blocks on rasterization. A closed scheduler returns 0.
func (s *Scheduler) Request(page pdf.Page, vp Viewport) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0
	}
	s.nextID++
	req := &request{id: s.nextID, page: page, vp: vp}

	switch {
	case s.running == nil:
		s.active = req
		s.start(req)
	case s.cancellable:
		// the running request settles first, then req starts
		s.cancel()
		s.active = req
		s.pending = req
	default:
		if s.pending != nil {
			s.logger.Debug("dropping pending render", "page", s.pending.pageNumber(), "request", s.pending.id)
		}
		s.pending = req
	}
	return req.id
}

// start launches req. Called with s.mu held.
func (s *Scheduler) start(req *request) {
	ctx, cancel := context.WithCancel(context.Background())
	if s.running == nil {
		s.idle = make(chan struct{})
	}
	s.running = req
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		img, err := s.rasterize(ctx, req)
		cancel()
		s.complete(req, Frame{RequestID: req.id, Page: req.pageNumber(), Viewport: req.vp, Image: img}, err)
	}()
}

// rasterize runs the rasterizer for req. A panic is reported as an error.
func (s *Scheduler) rasterize(ctx context.Context, req *request) (img image.Image, err error) {
	defer func() {
		if r := recover(); r != nil {
			img, err = nil, fmt.Errorf("rasterizer panicked: %v", r)
		}
	}()
	return s.rasterizer.Rasterize(ctx, req.page, req.vp)
}

func (s *Scheduler) complete(req *request, frame Frame, err error) {
	var failure error
	presented := false

	s.mu.Lock()
	switch {
	case req != s.active:
		s.logger.Debug("discarding stale render", "page", frame.Page, "request", req.id)
	case err == nil && frame.Image == nil:
		failure = fmt.Errorf("%w: page %d: rasterizer returned no image", ErrRasterizationFailed, frame.Page)
	case err != nil:
		failure = fmt.Errorf("%w: page %d: %w", ErrRasterizationFailed, frame.Page, err)
	default:
		s.display.Present(frame)
		presented = true
	}
	s.mu.Unlock()

	// callbacks settle before the next request starts, so they observe
	// results in request order
	if presented && s.onPresent != nil {
		s.onPresent(frame)
	}
	if failure != nil {
		s.logger.Warn("page render failed", "page", frame.Page, "error", failure)
		if s.onFailure != nil {
			s.onFailure(frame.Page, failure)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.pending
	s.pending = nil
	if next != nil && !s.closed {
		s.active = next
		s.start(next)
		return
	}
	s.running = nil
	s.cancel = nil
	close(s.idle)
}

// State returns the current scheduler state
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.running == nil:
		return StateIdle
	case s.pending != nil && s.pending != s.active:
		return StateRenderingPending
	default:
		return StateRendering
	}
}

// WaitIdle blocks until no rasterization is running or ctx is done
func (s *Scheduler) WaitIdle(ctx context.Context) error {
	for {
		s.mu.Lock()
		idle := s.idle
		running := s.running != nil
		s.mu.Unlock()
		if !running {
			return nil
		}
		select {
		case <-idle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Reset drops the pending request, cancels the one in flight so its output
// never presents, and clears the display when it supports clearing.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = nil
	s.active = nil
	if s.cancel != nil {
		s.cancel()
	}
	if r, ok := s.display.(interface{ Reset() }); ok {
		r.Reset()
	}
}

// Close cancels outstanding work and waits for the worker to settle.
// Requests made after Close are ignored.
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.closed = true
	s.pending = nil
	s.active = nil
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
	s.wg.Wait()
}
