// Package session assembles one read-along player: engine, controller, page
// synchronizer, status poller and preference store, around one dispatcher.
package session

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/listenupapp/readalong/internal/document"
	"github.com/listenupapp/readalong/internal/domain"
	"github.com/listenupapp/readalong/internal/engine"
	"github.com/listenupapp/readalong/internal/errors"
	"github.com/listenupapp/readalong/internal/events"
	"github.com/listenupapp/readalong/internal/logger"
	"github.com/listenupapp/readalong/internal/player"
	"github.com/listenupapp/readalong/internal/poller"
)

// API is the part of the HTTP client a session uses.
type API interface {
	engine.Opener
	player.ChunkSource
	Status(ctx context.Context, bookID string) (*domain.Manifest, error)
	FetchPDF(ctx context.Context, filename string) ([]byte, error)
	AudioURL(filename, source string) (string, error)
	Citation(ctx context.Context, bookID string, t float64) (*domain.Citation, error)
	Search(ctx context.Context, bookID, query string, limit int) ([]domain.SearchHit, error)
}

// Preferences persists per-book settings.
type Preferences interface {
	LoadBookPreferences(ctx context.Context, bookID string, defaults *domain.BookPreferences) (*domain.BookPreferences, error)
	UpsertBookPreferences(ctx context.Context, prefs *domain.BookPreferences) error
	SetLastBook(ctx context.Context, bookID string) error
}

// Options configures a Session.
type Options struct {
	Engine      engine.Kind
	SampleHz    int
	Mode        domain.PlaybackMode
	Rate        float64
	Volume      float64
	ClickToSeek bool
	Container   document.Viewport
	Renderer    document.Renderer
	// Output receives page descriptors when Renderer is nil.
	Output io.Writer

	PollInterval      time.Duration
	PollMaxIterations int
	PollBackoff       float64

	ClockOptions []engine.ClockOption
}

// Session is one player instance. A session plays one book (or standalone
// file) at a time; opening another discards results still in flight for the
// previous one.
type Session struct {
	api   API
	prefs Preferences

	dispatcher *events.Dispatcher
	engine     engine.Engine
	controller *player.Controller
	sync       *document.Synchronizer
	renderer   *document.TextRenderer
	pollCfg    poller.Config
	poller     *poller.Poller
	logger     *slog.Logger

	mu        sync.Mutex
	gen       uint64
	bookID    string
	manifest  *domain.Manifest
	destroyed bool
	ctx       context.Context
	cancel    context.CancelFunc

	// Book open before the current generation, restored if its open fails.
	prevBookID   string
	prevManifest *domain.Manifest
}

// New assembles a session. prefs may be nil.
func New(api API, prefs Preferences, opts Options, log *slog.Logger) (*Session, error) {
	if api == nil {
		return nil, errors.Setup("session needs an API client")
	}
	log = logger.OrDiscard(log)
	d := events.NewDispatcher(log.With("component", "events"))

	s := &Session{
		api:        api,
		prefs:      prefs,
		dispatcher: d,
		logger:     log.With("component", "session"),
	}

	switch opts.Engine {
	case engine.KindPlain:
		s.engine = engine.NewPlain(engine.NewClockElement(api, opts.ClockOptions...), d, log)
	case engine.KindWaveform, "":
		s.engine = engine.NewWaveform(engine.NewClockSurface(api, opts.ClockOptions...), d, log, opts.SampleHz)
	default:
		return nil, errors.Setup("unknown engine " + string(opts.Engine))
	}

	renderer := opts.Renderer
	if renderer == nil {
		out := opts.Output
		if out == nil {
			out = io.Discard
		}
		s.renderer = document.NewTextRenderer(out)
		renderer = s.renderer
	}

	s.sync = document.NewSynchronizer(document.Config{
		Renderer:    renderer,
		Dispatcher:  d,
		Logger:      log,
		Container:   opts.Container,
		ClickToSeek: opts.ClickToSeek,
	})
	s.controller = player.NewController(player.Config{
		Engine:     s.engine,
		Dispatcher: d,
		Logger:     log,
		Sources:    api,
		Sync:       s.sync,
		Mode:       opts.Mode,
		Rate:       opts.Rate,
		Volume:     opts.Volume,
	})
	s.sync.SetSeeker(s.controller)

	s.pollCfg = poller.Config{
		Interval:      opts.PollInterval,
		MaxIterations: opts.PollMaxIterations,
		Backoff:       opts.PollBackoff,
		Fetch:         api.Status,
		Logger:        log,
	}
	s.poller = poller.New(s.pollCfg)
	return s, nil
}

// Initialize attaches the engine and controller. It must be called before
// opening anything.
func (s *Session) Initialize(ctx context.Context) error {
	if err := s.engine.Initialize(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(ctx)
	sctx := s.ctx
	s.mu.Unlock()

	s.controller.Attach(sctx)
	s.logger.Info("session initialized", "engine", s.engine.Kind())
	return nil
}

// Dispatcher returns the session's event dispatcher.
func (s *Session) Dispatcher() *events.Dispatcher { return s.dispatcher }

// Controller returns the playback controller.
func (s *Session) Controller() *player.Controller { return s.controller }

// Document returns the page synchronizer.
func (s *Session) Document() *document.Synchronizer { return s.sync }

// Engine returns the audio engine.
func (s *Session) Engine() engine.Engine { return s.engine }

// BookID returns the open book, or "" for none or a standalone file.
func (s *Session) BookID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bookID
}

// Manifest returns the latest manifest of the open book.
func (s *Session) Manifest() *domain.Manifest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.manifest
}

// begin starts a new generation, returning it with the session context.
func (s *Session) begin(bookID string) (uint64, context.Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return 0, nil, errors.Validation("session is destroyed")
	}
	if s.ctx == nil {
		return 0, nil, errors.NotInitialized("open")
	}
	s.gen++
	s.prevBookID, s.prevManifest = s.bookID, s.manifest
	s.bookID = bookID
	s.manifest = nil
	return s.gen, s.ctx, nil
}

// rollback restores the book that was open before gen began, unless another
// open has started since.
func (s *Session) rollback(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return
	}
	s.bookID, s.manifest = s.prevBookID, s.prevManifest
}

// current reports whether gen is still the latest generation.
func (s *Session) current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen == gen && !s.destroyed
}

// OpenBook opens an audiobook: it fetches the manifest and the source PDF,
// restores saved preferences, loads the resume chunk, and polls for more
// chunks while processing is incomplete. Results that arrive after another
// book was opened are discarded.
func (s *Session) OpenBook(ctx context.Context, bookID string) error {
	s.savePreferences(ctx)
	s.currentPoller().Stop()

	gen, sctx, err := s.begin(bookID)
	if err != nil {
		return err
	}
	_ = s.controller.Pause()
	log := s.logger.With("book", bookID)

	m, err := s.api.Status(ctx, bookID)
	if err != nil {
		s.rollback(gen)
		return err
	}
	if !s.current(gen) {
		log.Debug("discarding stale manifest")
		return nil
	}
	if err := m.Validate(); err != nil {
		log.Warn("manifest failed validation", "error", err)
	}

	s.mu.Lock()
	s.manifest = m
	s.mu.Unlock()

	s.controller.SetBook(bookID, m)
	s.sync.SetManifest(m)
	s.loadDocument(ctx, gen, m)

	prefs := s.transportDefaults(bookID)
	if s.prefs != nil {
		if saved, err := s.prefs.LoadBookPreferences(ctx, bookID, prefs); err == nil {
			prefs = saved
		} else {
			log.Warn("loading preferences failed", "error", err)
		}
		if err := s.prefs.SetLastBook(ctx, bookID); err != nil {
			log.Warn("saving last book failed", "error", err)
		}
	}
	if !s.current(gen) {
		return nil
	}
	s.applyPreferences(ctx, prefs, m)

	if !m.IsComplete {
		s.startPolling(sctx, gen, bookID, m)
	}
	log.Info("book opened", "ready", len(m.ReadyChunks), "total", m.TotalChunks, "complete", m.IsComplete)
	return nil
}

func (s *Session) loadDocument(ctx context.Context, gen uint64, m *domain.Manifest) {
	name := m.Metadata.SourceFilename
	if name == "" {
		s.sync.SetDocument(nil)
		return
	}
	data, err := s.api.FetchPDF(ctx, name)
	if err == nil && s.current(gen) {
		var doc *document.PDFDocument
		if doc, err = document.ParsePDF(name, data); err == nil {
			if s.renderer != nil {
				s.renderer.SetDocument(doc)
			}
			s.sync.SetDocument(doc)
			return
		}
	}
	if err != nil {
		s.logger.Warn("source document unavailable", "file", name, "error", err)
		s.controller.Errors().SetError(errors.Wrapf(err, errors.CodeUnavailable, "document %s unavailable", name))
	}
}

// transportDefaults are the preferences of a book with none saved: the
// controller's current transport settings, from the start of the book.
func (s *Session) transportDefaults(bookID string) *domain.BookPreferences {
	st := s.controller.State()
	prefs := domain.NewBookPreferences(bookID)
	prefs.PlaybackRate = st.PlaybackRate
	prefs.Volume = st.Volume
	prefs.Loop = st.IsLooping
	return prefs
}

func (s *Session) applyPreferences(ctx context.Context, prefs *domain.BookPreferences, m *domain.Manifest) {
	c := s.controller
	_, _ = c.SetRate(prefs.PlaybackRate)
	_, _ = c.SetVolume(prefs.Volume)
	_ = c.SetLoop(prefs.Loop)

	if len(m.ReadyChunks) == 0 {
		return
	}
	i := min(max(prefs.ChunkIndex, 0), len(m.ReadyChunks)-1)
	if prefs.Position > 0 && i == prefs.ChunkIndex {
		t := m.ReadyChunks[i].StartTime + prefs.Position
		if err := c.SeekAbsolute(ctx, t); err == nil {
			return
		}
	}
	if err := c.LoadChunk(ctx, i); err != nil {
		s.logger.Warn("loading resume chunk failed", "chunk", i, "error", err)
	}
}

func (s *Session) startPolling(ctx context.Context, gen uint64, bookID string, m *domain.Manifest) {
	cfg := s.pollCfg
	cfg.OnUpdate = func(next *domain.Manifest) {
		if !s.current(gen) {
			return
		}
		s.mu.Lock()
		s.manifest = next
		s.mu.Unlock()
		s.controller.UpdateManifest(next)
		s.sync.SetManifest(next)
	}
	cfg.OnExhausted = func(err error) {
		if s.current(gen) {
			s.controller.Errors().SetError(err)
		}
	}

	p := poller.New(cfg)
	s.mu.Lock()
	s.poller = p
	s.mu.Unlock()
	p.Start(ctx, bookID, m)
}

func (s *Session) currentPoller() *poller.Poller {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.poller
}

// OpenFile plays a standalone file from an audio source. No document is shown.
func (s *Session) OpenFile(ctx context.Context, source, filename string, play bool) error {
	s.savePreferences(ctx)
	s.currentPoller().Stop()

	if _, _, err := s.begin(""); err != nil {
		return err
	}
	_ = s.controller.Pause()
	url, err := s.api.AudioURL(filename, source)
	if err != nil {
		return err
	}
	s.sync.SetManifest(nil)
	s.sync.SetDocument(nil)
	return s.controller.LoadFile(ctx, url, play)
}

// Citation returns the sentence being read at the current position.
func (s *Session) Citation(ctx context.Context) (*domain.Citation, error) {
	bookID := s.BookID()
	if bookID == "" {
		return nil, errors.Validation("no audiobook is open")
	}
	return s.api.Citation(ctx, bookID, s.controller.State().BookTime)
}

// Search finds chunks of the open book matching query.
func (s *Session) Search(ctx context.Context, query string, limit int) ([]domain.SearchHit, error) {
	bookID := s.BookID()
	if bookID == "" {
		return nil, errors.Validation("no audiobook is open")
	}
	return s.api.Search(ctx, bookID, query, limit)
}

// JumpTo plays from a search hit.
func (s *Session) JumpTo(ctx context.Context, hit domain.SearchHit) error {
	if hit.BookID != s.BookID() {
		return errors.Validationf("hit belongs to %q, not the open book", hit.BookID)
	}
	return s.controller.SeekAbsolute(ctx, hit.StartTime)
}

// SavePreferences persists the open book's transport settings and position.
func (s *Session) SavePreferences(ctx context.Context) error {
	bookID := s.BookID()
	if s.prefs == nil || bookID == "" {
		return nil
	}
	st := s.controller.State()
	prefs := &domain.BookPreferences{
		BookID:       bookID,
		PlaybackRate: st.PlaybackRate,
		Volume:       st.Volume,
		Loop:         st.IsLooping,
		ChunkIndex:   max(st.ChunkIndex, 0),
		Position:     st.CurrentTime,
		Page:         s.sync.View().CurrentPage,
		UpdatedAt:    time.Now(),
	}
	return s.prefs.UpsertBookPreferences(ctx, prefs)
}

func (s *Session) savePreferences(ctx context.Context) {
	if err := s.SavePreferences(ctx); err != nil {
		s.logger.Warn("saving preferences failed", "error", err)
	}
}

// Destroy saves preferences, stops polling and sampling, tears down the
// engine, and removes every subscription. The session cannot be reused.
func (s *Session) Destroy(ctx context.Context) error {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	s.savePreferences(ctx)

	s.mu.Lock()
	s.destroyed = true
	cancel := s.cancel
	s.mu.Unlock()

	s.currentPoller().Stop()
	s.controller.Detach()
	err := s.engine.Teardown()
	s.sync.Close()
	s.dispatcher.Clear()
	if cancel != nil {
		cancel()
	}
	s.logger.Info("session destroyed")
	return err
}
