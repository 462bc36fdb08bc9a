package document

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/listenupapp/readalong/internal/domain"
	"github.com/listenupapp/readalong/internal/errors"
	"github.com/listenupapp/readalong/internal/events"
	"github.com/listenupapp/readalong/internal/logger"
)

// Document is a loaded source document.
type Document interface {
	PageCount() int
	PageSize(page int) (width, height float64, err error)
}

// Renderer draws a page at a scale.
type Renderer interface {
	Render(ctx context.Context, page int, scale float64) error
}

// Seeker moves playback to a time on the book timeline.
type Seeker interface {
	SeekAbsolute(ctx context.Context, t float64) error
}

// RenderedPage is published on the page channel after each render.
type RenderedPage struct {
	Page       int
	TotalPages int
	Scale      float64
}

// Synchronizer maps playback time to pages and drives renders through a RenderQueue.
type Synchronizer struct {
	mu          sync.Mutex
	doc         Document
	chunks      []domain.Chunk
	current     int
	view        *View
	container   Viewport
	clickToSeek bool
	seeker      Seeker

	renderer   Renderer
	queue      *RenderQueue
	dispatcher *events.Dispatcher
	logger     *slog.Logger
}

// Config configures a Synchronizer.
type Config struct {
	Renderer    Renderer
	Dispatcher  *events.Dispatcher
	Logger      *slog.Logger
	Container   Viewport
	ClickToSeek bool
}

// NewSynchronizer creates a synchronizer with no document or manifest.
func NewSynchronizer(cfg Config) *Synchronizer {
	s := &Synchronizer{
		view:        NewView(),
		container:   cfg.Container,
		clickToSeek: cfg.ClickToSeek,
		renderer:    cfg.Renderer,
		dispatcher:  cfg.Dispatcher,
		logger:      logger.OrDiscard(cfg.Logger),
	}
	s.queue = NewRenderQueue(s.renderPage, s.logger)
	return s
}

// SetSeeker sets the target of click-to-seek.
func (s *Synchronizer) SetSeeker(seeker Seeker) {
	s.mu.Lock()
	s.seeker = seeker
	s.mu.Unlock()
}

// SetDocument shows doc from its first page.
func (s *Synchronizer) SetDocument(doc Document) {
	s.mu.Lock()
	s.doc = doc
	s.current = 0
	total := 0
	if doc != nil {
		total = doc.PageCount()
	}
	s.mu.Unlock()

	if total > 0 {
		s.show(1)
	}
}

// SetManifest replaces the chunk list used for time lookups. nil clears it.
func (s *Synchronizer) SetManifest(m *domain.Manifest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m == nil {
		s.chunks = nil
		return
	}
	s.chunks = slices.Clone(m.ReadyChunks)
}

// SyncToTime shows the page read at book time t. It reports the page and
// whether one exists; no render is requested when there is none.
func (s *Synchronizer) SyncToTime(t float64) (int, bool) {
	s.mu.Lock()
	page, ok := PageForTimestamp(s.chunks, t)
	changed := ok && page != s.current && s.inRangeLocked(page)
	s.mu.Unlock()

	if changed {
		s.show(page)
	}
	return page, ok
}

// GoToPage shows page, rejecting numbers outside [1, total pages].
func (s *Synchronizer) GoToPage(page int) error {
	s.mu.Lock()
	total := s.totalLocked()
	s.mu.Unlock()

	if total == 0 {
		return errors.Validation("no document loaded")
	}
	if page < 1 || page > total {
		return errors.Validationf("page %d is out of range (1-%d)", page, total)
	}
	s.show(page)
	return nil
}

// NextPage advances one page and reports whether it moved.
func (s *Synchronizer) NextPage() bool {
	return s.step(1)
}

// PreviousPage goes back one page and reports whether it moved.
func (s *Synchronizer) PreviousPage() bool {
	return s.step(-1)
}

func (s *Synchronizer) step(delta int) bool {
	s.mu.Lock()
	page := s.current + delta
	ok := s.current > 0 && s.inRangeLocked(page)
	s.mu.Unlock()

	if ok {
		s.show(page)
	}
	return ok
}

// ZoomIn zooms in and re-renders the current page.
func (s *Synchronizer) ZoomIn() float64 {
	s.mu.Lock()
	scale := s.view.ZoomIn()
	s.mu.Unlock()
	s.rerender()
	return scale
}

// ZoomOut zooms out and re-renders the current page.
func (s *Synchronizer) ZoomOut() float64 {
	s.mu.Lock()
	scale := s.view.ZoomOut()
	s.mu.Unlock()
	s.rerender()
	return scale
}

// Fit returns to fit mode and re-renders the current page.
func (s *Synchronizer) Fit(mode domain.FitMode) {
	s.mu.Lock()
	s.view.Fit(mode)
	s.mu.Unlock()
	s.rerender()
}

// Resize changes the container and re-renders the current page.
func (s *Synchronizer) Resize(c Viewport) {
	s.mu.Lock()
	s.container = c
	s.mu.Unlock()
	s.rerender()
}

// Click seeks playback to the first chunk read from the displayed page and
// returns its start time. Without such a chunk it returns ErrNoAudioForPage
// and playback is left alone.
func (s *Synchronizer) Click(ctx context.Context) (float64, error) {
	s.mu.Lock()
	enabled, seeker, page := s.clickToSeek, s.seeker, s.current
	i, ok := FirstChunkForPage(s.chunks, page)
	var start float64
	if ok {
		start = s.chunks[i].StartTime
	}
	s.mu.Unlock()

	if !enabled || seeker == nil {
		return 0, errors.Validation("click-to-seek is disabled")
	}
	if !ok {
		return 0, errors.ErrNoAudioForPage.WithDetails(map[string]int{"page": page})
	}
	if err := seeker.SeekAbsolute(ctx, start); err != nil {
		return 0, err
	}
	return start, nil
}

// View returns a snapshot of the document view.
func (s *Synchronizer) View() domain.DocumentView {
	s.mu.Lock()
	v := domain.DocumentView{
		CurrentPage: s.current,
		TotalPages:  s.totalLocked(),
		Scale:       s.view.Scale(),
		FitMode:     s.view.FitMode(),
	}
	s.mu.Unlock()

	v.IsRendering = s.queue.State() != Idle
	if p, ok := s.queue.Pending(); ok {
		v.PendingPage = &p
	}
	return v
}

// Wait blocks until no render is in flight or pending.
func (s *Synchronizer) Wait() {
	s.queue.Wait()
}

// Close stops rendering.
func (s *Synchronizer) Close() {
	s.queue.Close()
}

func (s *Synchronizer) show(page int) {
	s.mu.Lock()
	s.current = page
	s.mu.Unlock()
	s.queue.Request(page)
}

func (s *Synchronizer) rerender() {
	s.mu.Lock()
	page := s.current
	s.mu.Unlock()
	if page > 0 {
		s.queue.Request(page)
	}
}

func (s *Synchronizer) renderPage(ctx context.Context, page int) error {
	s.mu.Lock()
	doc, container := s.doc, s.container
	s.mu.Unlock()

	var w, h float64
	total := 0
	if doc != nil {
		total = doc.PageCount()
		var err error
		if w, h, err = doc.PageSize(page); err != nil {
			s.logger.Debug("page size unavailable", "page", page, "error", err)
		}
	}

	s.mu.Lock()
	scale := s.view.Resolve(w, h, container)
	s.mu.Unlock()

	if s.renderer != nil {
		if err := s.renderer.Render(ctx, page, scale); err != nil {
			return err
		}
	}
	if s.dispatcher != nil {
		_ = s.dispatcher.Publish(events.Page, events.Event{
			Payload: RenderedPage{Page: page, TotalPages: total, Scale: scale},
		})
	}
	return nil
}

func (s *Synchronizer) totalLocked() int {
	if s.doc == nil {
		return 0
	}
	return s.doc.PageCount()
}

// inRangeLocked reports whether page can be shown. Without a document every
// positive page is accepted so time sync still tracks the page number.
func (s *Synchronizer) inRangeLocked(page int) bool {
	if page < 1 {
		return false
	}
	total := s.totalLocked()
	return total == 0 || page <= total
}
