// Package player owns the playback state of a read-along session. The
// Controller drives one engine, caches the transport settings the engine
// forgets on reload, sequences chunks, and feeds book time to the page
// synchronizer.
package player

import (
	"context"
	"log/slog"
	"math"
	"slices"
	"sync"

	"github.com/listenupapp/readalong/internal/document"
	"github.com/listenupapp/readalong/internal/domain"
	"github.com/listenupapp/readalong/internal/engine"
	"github.com/listenupapp/readalong/internal/errors"
	"github.com/listenupapp/readalong/internal/events"
	"github.com/listenupapp/readalong/internal/logger"
)

// User-visible messages.
const (
	MsgWaitingForAudio = "waiting for more audio"
	MsgEndOfBook       = "reached the end of the book"
)

// ChunkSource resolves the stream URL of a chunk.
type ChunkSource interface {
	ChunkURL(bookID, filename string) (string, error)
}

// TimeSyncer receives book time on every position update.
type TimeSyncer interface {
	SyncToTime(t float64) (int, bool)
}

// Config configures a Controller.
type Config struct {
	Engine     engine.Engine
	Dispatcher *events.Dispatcher
	Logger     *slog.Logger
	Sources    ChunkSource
	Sync       TimeSyncer
	Mode       domain.PlaybackMode
	Rate       float64
	Volume     float64
	Loop       bool
}

// Controller is the only writer of PlaybackState.
//
// Engine calls deliver events synchronously, so the controller never holds
// its lock while calling into the engine.
type Controller struct {
	mu       sync.Mutex
	ctx      context.Context
	bookID   string
	chunks   []domain.Chunk
	complete bool
	index    int
	source   string
	mode     domain.PlaybackMode

	rate   float64
	volume float64
	loop   bool

	playing  bool
	canPlay  bool
	waiting  bool
	position float64
	duration float64

	autoplay    bool
	pendingSeek *float64

	engine     engine.Engine
	sources    ChunkSource
	syncer     TimeSyncer
	dispatcher *events.Dispatcher
	slot       *ErrorSlot
	subs       []events.Subscription
	logger     *slog.Logger
}

// NewController creates a controller. Zero Rate and Volume mean 1; mute
// with SetVolume. Both are clamped. The mode defaults to sequenced.
func NewController(cfg Config) *Controller {
	if cfg.Dispatcher == nil {
		cfg.Dispatcher = events.NewDispatcher(cfg.Logger)
	}
	if cfg.Mode == "" {
		cfg.Mode = domain.ModeSequenced
	}
	if cfg.Rate == 0 || math.IsNaN(cfg.Rate) {
		cfg.Rate = 1
	}
	if cfg.Volume == 0 || math.IsNaN(cfg.Volume) {
		cfg.Volume = 1
	}
	return &Controller{
		ctx:        context.Background(),
		index:      -1,
		mode:       cfg.Mode,
		rate:       clampRate(cfg.Rate),
		volume:     clampVolume(cfg.Volume),
		loop:       cfg.Loop,
		engine:     cfg.Engine,
		sources:    cfg.Sources,
		syncer:     cfg.Sync,
		dispatcher: cfg.Dispatcher,
		slot:       NewErrorSlot(cfg.Dispatcher),
		logger:     logger.OrDiscard(cfg.Logger).With("component", "player"),
	}
}

// Attach subscribes to engine events. ctx is used for plays started from
// event handlers and bounds the controller's lifetime.
func (c *Controller) Attach(ctx context.Context) {
	handlers := map[events.Channel]events.Handler{
		events.Ready:        c.onReady,
		events.Play:         c.onPlay,
		events.Pause:        c.onPause,
		events.Finish:       c.onFinish,
		events.Error:        c.onError,
		events.TimeUpdate:   c.onTime,
		events.AudioProcess: c.onTime,
		events.Seeking:      c.onTime,
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.ctx = ctx
	for _, ch := range events.EngineChannels() {
		if h, ok := handlers[ch]; ok {
			c.subs = append(c.subs, c.dispatcher.Subscribe(ch, h))
		}
	}
}

// Detach removes the controller's subscriptions.
func (c *Controller) Detach() {
	c.mu.Lock()
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()
	for _, s := range subs {
		c.dispatcher.Unsubscribe(s)
	}
}

// Errors returns the user-visible message slot.
func (c *Controller) Errors() *ErrorSlot {
	return c.slot
}

// SetBook switches to a new book. The current source is forgotten.
func (c *Controller) SetBook(bookID string, m *domain.Manifest) {
	c.mu.Lock()
	c.bookID = bookID
	c.chunks = nil
	c.complete = false
	c.index = -1
	c.source = ""
	c.waiting = false
	c.position, c.duration = 0, 0
	c.mu.Unlock()

	c.UpdateManifest(m)
}

// UpdateManifest replaces the chunk list. When playback was waiting for audio
// and the chunk after the current one is now ready, play is re-enabled.
func (c *Controller) UpdateManifest(m *domain.Manifest) {
	if m == nil {
		return
	}

	c.mu.Lock()
	c.chunks = slices.Clone(m.ReadyChunks)
	c.complete = m.IsComplete
	resumable := c.waiting && c.index+1 < len(c.chunks)
	if resumable {
		c.waiting = false
	}
	c.canPlay = c.source != "" || len(c.chunks) > 0
	if c.waiting {
		c.canPlay = false
	}
	c.mu.Unlock()

	if resumable {
		c.slot.Clear()
	}
	_ = c.dispatcher.Publish(events.Manifest, events.Event{Payload: m})
	c.publishState()
}

// PlayChunk loads chunk i and starts playing it once ready.
func (c *Controller) PlayChunk(ctx context.Context, i int) error {
	return c.loadChunk(ctx, i, 0, true)
}

// LoadChunk loads chunk i without playing it.
func (c *Controller) LoadChunk(ctx context.Context, i int) error {
	return c.loadChunk(ctx, i, 0, false)
}

func (c *Controller) loadChunk(ctx context.Context, i int, offset float64, play bool) error {
	c.mu.Lock()
	if i < 0 || i >= len(c.chunks) {
		n := len(c.chunks)
		c.mu.Unlock()
		return errors.Validationf("chunk %d is not ready (%d ready)", i, n)
	}
	chunk := c.chunks[i]
	bookID := c.bookID
	c.mu.Unlock()

	if c.sources == nil {
		return errors.Setup("no chunk source configured")
	}
	url, err := c.sources.ChunkURL(bookID, chunk.Filename)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.index = i
	c.source = url
	c.waiting = false
	c.canPlay = true
	c.playing = false
	c.position, c.duration = 0, 0
	c.autoplay = play
	c.pendingSeek = nil
	if offset > 0 {
		c.pendingSeek = &offset
	}
	c.mu.Unlock()

	c.logger.Debug("loading chunk", "book", bookID, "chunk", i, "page", chunk.Page)
	_ = c.dispatcher.Publish(events.Chunk, events.Event{Payload: chunk})
	return c.engine.Load(ctx, url)
}

// LoadFile loads a standalone audio file. It has no manifest, so book time
// equals source time.
func (c *Controller) LoadFile(ctx context.Context, url string, play bool) error {
	c.mu.Lock()
	c.bookID = ""
	c.chunks = nil
	c.complete = false
	c.index = -1
	c.source = url
	c.waiting = false
	c.canPlay = true
	c.playing = false
	c.position, c.duration = 0, 0
	c.autoplay = play
	c.pendingSeek = nil
	c.mu.Unlock()

	return c.engine.Load(ctx, url)
}

// Play starts or resumes playback. With nothing loaded it starts the first
// ready chunk; after running out of audio it continues with the next chunk
// once one is ready.
func (c *Controller) Play(ctx context.Context) error {
	c.mu.Lock()
	waiting, index, n, source := c.waiting, c.index, len(c.chunks), c.source
	complete := c.complete
	c.mu.Unlock()

	switch {
	case waiting:
		c.slot.Set(MsgWaitingForAudio)
		return errors.Unavailable(MsgWaitingForAudio)
	case source == "" && n > 0:
		return c.PlayChunk(ctx, 0)
	case source == "":
		return errors.Validation("nothing to play")
	case index >= 0 && index+1 < n && c.atEnd():
		return c.PlayChunk(ctx, index+1)
	case index >= 0 && complete && c.atEnd():
		return c.PlayChunk(ctx, 0)
	}

	return c.engine.Play(ctx)
}

// atEnd reports whether the loaded chunk finished and was not restarted.
func (c *Controller) atEnd() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.duration > 0 && !c.playing && c.position >= c.duration
}

// Pause pauses playback.
func (c *Controller) Pause() error {
	return c.engine.Pause()
}

// TogglePlay plays when paused and pauses when playing.
func (c *Controller) TogglePlay(ctx context.Context) error {
	c.mu.Lock()
	playing := c.playing
	c.mu.Unlock()
	if playing {
		return c.Pause()
	}
	return c.Play(ctx)
}

// Seek moves within the loaded source, clamped to [0, duration].
// It returns the clamped time.
func (c *Controller) Seek(t float64) (float64, error) {
	t = clamp(t, 0, c.sourceDuration())
	if err := c.engine.Seek(t); err != nil {
		return 0, err
	}
	c.mu.Lock()
	c.position = t
	c.mu.Unlock()
	return t, nil
}

// Skip moves by delta seconds from the current position, clamped.
func (c *Controller) Skip(delta float64) (float64, error) {
	return c.Seek(c.engine.CurrentTime() + delta)
}

// SeekAbsolute moves to book time t, loading the chunk that contains it.
// Playback continues if it was playing.
func (c *Controller) SeekAbsolute(ctx context.Context, t float64) error {
	c.mu.Lock()
	i, ok := document.ChunkForTimestamp(c.chunks, t)
	var chunk domain.Chunk
	if ok {
		chunk = c.chunks[i]
	}
	current, playing := c.index, c.playing
	c.mu.Unlock()

	if !ok {
		return errors.NotFoundf("no audio at %.1fs", t)
	}
	offset := max(0, t-chunk.StartTime)
	if i == current {
		_, err := c.Seek(offset)
		return err
	}
	return c.loadChunk(ctx, i, offset, playing)
}

// NextChunk plays the chunk after the current one.
func (c *Controller) NextChunk(ctx context.Context) error {
	c.mu.Lock()
	next := c.index + 1
	c.mu.Unlock()
	return c.PlayChunk(ctx, next)
}

// PreviousChunk plays the chunk before the current one.
func (c *Controller) PreviousChunk(ctx context.Context) error {
	c.mu.Lock()
	prev := c.index - 1
	c.mu.Unlock()
	return c.PlayChunk(ctx, max(prev, 0))
}

// SetRate caches and applies a rate clamped to [0.5, 2.0]. NaN keeps the
// cached rate.
func (c *Controller) SetRate(rate float64) (float64, error) {
	c.mu.Lock()
	if !math.IsNaN(rate) {
		c.rate = clampRate(rate)
	}
	rate = c.rate
	c.mu.Unlock()
	return rate, c.applyIfLoaded(func() error { return c.engine.SetRate(rate) })
}

// SetVolume caches and applies a volume clamped to [0, 1]. NaN keeps the
// cached volume.
func (c *Controller) SetVolume(volume float64) (float64, error) {
	c.mu.Lock()
	if !math.IsNaN(volume) {
		c.volume = clampVolume(volume)
	}
	volume = c.volume
	c.mu.Unlock()
	return volume, c.applyIfLoaded(func() error { return c.engine.SetVolume(volume) })
}

// SetLoop caches and applies the loop flag.
func (c *Controller) SetLoop(loop bool) error {
	c.mu.Lock()
	c.loop = loop
	c.mu.Unlock()
	return c.applyIfLoaded(func() error { return c.engine.SetLoop(loop) })
}

// SetMode switches between single and sequenced playback.
func (c *Controller) SetMode(mode domain.PlaybackMode) {
	c.mu.Lock()
	c.mode = mode
	c.mu.Unlock()
	c.publishState()
}

// applyIfLoaded applies a setting now when a source is loaded. Otherwise the
// cached value is applied on the next ready.
func (c *Controller) applyIfLoaded(apply func() error) error {
	c.mu.Lock()
	loaded := c.source != ""
	c.mu.Unlock()
	if !loaded {
		return nil
	}
	err := apply()
	if err == nil {
		c.publishState()
	}
	return err
}

// State returns a snapshot of the playback state.
func (c *Controller) State() domain.PlaybackState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

// Chunks returns the ready chunks.
func (c *Controller) Chunks() []domain.Chunk {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.chunks)
}

func (c *Controller) stateLocked() domain.PlaybackState {
	return domain.PlaybackState{
		CurrentTime:  c.position,
		Duration:     c.duration,
		BookTime:     c.bookTimeLocked(c.position),
		IsPlaying:    c.playing,
		PlaybackRate: c.rate,
		Volume:       c.volume,
		IsLooping:    c.loop,
		ChunkIndex:   c.index,
		Mode:         c.mode,
		CanPlay:      c.canPlay,
		Source:       c.source,
	}
}

func (c *Controller) bookTimeLocked(pos float64) float64 {
	if c.index < 0 || c.index >= len(c.chunks) {
		return pos
	}
	return c.chunks[c.index].StartTime + pos
}

func (c *Controller) sourceDuration() float64 {
	c.mu.Lock()
	d := c.duration
	c.mu.Unlock()
	if d > 0 {
		return d
	}
	return c.engine.Duration()
}

func (c *Controller) publishState() {
	c.mu.Lock()
	st := c.stateLocked()
	c.mu.Unlock()
	_ = c.dispatcher.Publish(events.State, events.Event{
		Time:     st.CurrentTime,
		Duration: st.Duration,
		Payload:  st,
	})
}

func (c *Controller) onReady(e events.Event) error {
	c.mu.Lock()
	rate, volume, loop := c.rate, c.volume, c.loop
	play, seek := c.autoplay, c.pendingSeek
	c.autoplay, c.pendingSeek = false, nil
	c.duration = e.Duration
	ctx := c.ctx
	c.mu.Unlock()

	c.slot.Clear()

	// Backends reset these on every load.
	err := errors.Join(
		c.engine.SetRate(rate),
		c.engine.SetVolume(volume),
		c.engine.SetLoop(loop),
	)
	if seek != nil {
		if _, serr := c.Seek(*seek); serr != nil {
			err = errors.Join(err, serr)
		}
	}
	c.publishState()

	if play {
		if perr := c.engine.Play(ctx); perr != nil {
			if engine.IsAutoplay(perr) {
				c.logger.Info("autoplay blocked, waiting for user")
			}
			return errors.Join(err, perr)
		}
	}
	return err
}

func (c *Controller) onPlay(events.Event) error {
	c.mu.Lock()
	c.playing = true
	c.mu.Unlock()
	c.slot.Clear()
	c.publishState()
	return nil
}

func (c *Controller) onPause(events.Event) error {
	c.mu.Lock()
	c.playing = false
	c.mu.Unlock()
	c.publishState()
	return nil
}

func (c *Controller) onFinish(e events.Event) error {
	c.mu.Lock()
	c.playing = false
	if e.Duration > 0 {
		c.position = e.Duration
	} else {
		c.position = c.duration
	}
	sequenced := c.mode == domain.ModeSequenced && c.index >= 0
	next := c.index + 1
	hasNext := next < len(c.chunks)
	complete := c.complete
	if sequenced && !hasNext {
		c.canPlay = false
		c.waiting = !complete
	}
	ctx := c.ctx
	c.mu.Unlock()

	switch {
	case !sequenced:
		c.publishState()
		return nil
	case hasNext:
		return c.PlayChunk(ctx, next)
	case complete:
		c.slot.Set(MsgEndOfBook)
	default:
		c.slot.Set(MsgWaitingForAudio)
	}
	c.publishState()
	return nil
}

func (c *Controller) onError(e events.Event) error {
	c.mu.Lock()
	c.playing = false
	c.mu.Unlock()
	if e.Err != nil {
		c.slot.SetError(e.Err)
	}
	c.publishState()
	return nil
}

func (c *Controller) onTime(e events.Event) error {
	c.mu.Lock()
	c.position = e.Time
	if e.Duration > 0 {
		c.duration = e.Duration
	}
	book := c.bookTimeLocked(e.Time)
	hasChunks := len(c.chunks) > 0
	c.mu.Unlock()

	if c.syncer != nil && hasChunks {
		c.syncer.SyncToTime(book)
	}
	if e.Channel != events.AudioProcess {
		c.publishState()
	}
	return nil
}

func clampRate(r float64) float64 {
	return clamp(r, domain.MinPlaybackRate, domain.MaxPlaybackRate)
}

func clampVolume(v float64) float64 {
	return clamp(v, domain.MinVolume, domain.MaxVolume)
}

// clamp bounds v to [lo, hi]. NaN maps to lo.
func clamp(v, lo, hi float64) float64 {
	if hi < lo {
		hi = lo
	}
	if math.IsNaN(v) {
		return lo
	}
	return max(lo, min(hi, v))
}
