package engine

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/listenupapp/readalong/internal/audio"
	"github.com/listenupapp/readalong/internal/errors"
)

// Opener fetches a media stream by URL. The API client implements it.
type Opener interface {
	Open(ctx context.Context, url string) (io.ReadCloser, error)
}

// DefaultTick is how often the headless backends report timeupdate.
const DefaultTick = 250 * time.Millisecond

const defaultPeakBuckets = 512

type nativeNames struct {
	loadStart, ready, play, pause, end, timeUpdate, seek, err string
}

var (
	elementNames = nativeNames{"loadstart", "canplay", "play", "pause", "ended", "timeupdate", "seeked", "error"}
	surfaceNames = nativeNames{"loading", "ready", "play", "pause", "finish", "timeupdate", "seeking", "error"}
)

// ClockOption configures a headless backend.
type ClockOption func(*clock)

// WithTick sets the timeupdate interval.
func WithTick(d time.Duration) ClockOption {
	return func(c *clock) { c.tick = d }
}

// WithNow replaces the wall clock.
func WithNow(now func() time.Time) ClockOption {
	return func(c *clock) { c.now = now }
}

// WithPeakBuckets sets how many waveform peaks a surface computes on load.
func WithPeakBuckets(n int) ClockOption {
	return func(c *clock) { c.buckets = n }
}

// clock is a headless media backend. It decodes the WAV header of the loaded
// stream and advances the position with the wall clock at the playback rate.
// Loading a new source resets rate and volume to 1.
type clock struct {
	mu       sync.Mutex
	opener   Opener
	names    nativeNames
	listener Listener
	now      func() time.Time
	tick     time.Duration
	buckets  int

	url       string
	loads     uint64
	duration  float64
	base      float64
	startedAt time.Time
	playing   bool
	rate      float64
	volume    float64
	peaks     []float64
	stop      chan struct{}
}

func newClock(o Opener, names nativeNames, opts []ClockOption) *clock {
	c := &clock{
		opener: o,
		names:  names,
		now:    time.Now,
		tick:   DefaultTick,
		rate:   1,
		volume: 1,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *clock) listen(l Listener) {
	c.mu.Lock()
	c.listener = l
	c.mu.Unlock()
}

func (c *clock) emit(name string, ev NativeEvent) {
	c.mu.Lock()
	l := c.listener
	c.mu.Unlock()
	if l != nil {
		l(name, ev)
	}
}

func (c *clock) positionLocked() float64 {
	if !c.playing {
		return c.base
	}
	pos := c.base + c.now().Sub(c.startedAt).Seconds()*c.rate
	return min(pos, c.duration)
}

func (c *clock) haltLocked() {
	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
	c.playing = false
}

func (c *clock) load(ctx context.Context, url string) {
	c.mu.Lock()
	c.haltLocked()
	c.loads++
	seq := c.loads
	c.url = url
	c.duration, c.base = 0, 0
	c.rate, c.volume = 1, 1
	c.peaks = nil
	c.mu.Unlock()

	c.emit(c.names.loadStart, NativeEvent{})

	info, peaks, err := c.fetch(ctx, url)

	c.mu.Lock()
	if c.loads != seq {
		// Superseded by a later load.
		c.mu.Unlock()
		return
	}
	if err != nil {
		c.mu.Unlock()
		c.emit(c.names.err, NativeEvent{Op: "load", Err: err})
		return
	}
	c.duration = info.Duration
	c.peaks = peaks
	c.mu.Unlock()

	c.emit(c.names.ready, NativeEvent{Duration: info.Duration})
}

func (c *clock) fetch(ctx context.Context, url string) (*audio.WAVInfo, []float64, error) {
	if c.opener == nil {
		return nil, nil, fmt.Errorf("%w: no opener configured", ErrNetwork)
	}
	rc, err := c.opener.Open(ctx, url)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	defer rc.Close() //nolint:errcheck // read-only stream

	info, err := audio.ReadWAVInfo(rc)
	if err != nil {
		return nil, nil, err
	}
	if c.buckets <= 0 {
		return info, nil, nil
	}

	peaks, err := audio.Peaks(rc, info, c.buckets)
	if errors.Is(err, audio.ErrUnsupported) {
		return info, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return info, peaks, nil
}

// Play starts advancing the position. Playing at the end restarts from zero.
func (c *clock) Play(_ context.Context) error {
	c.mu.Lock()
	if c.duration <= 0 {
		c.mu.Unlock()
		return ErrNoSource
	}
	if c.playing {
		c.mu.Unlock()
		return nil
	}
	if c.base >= c.duration {
		c.base = 0
	}
	c.playing = true
	c.startedAt = c.now()
	c.stop = make(chan struct{})
	go c.run(c.stop)
	pos := c.base
	c.mu.Unlock()

	c.emit(c.names.play, NativeEvent{Time: pos})
	return nil
}

// Pause freezes the position.
func (c *clock) Pause() {
	c.mu.Lock()
	if !c.playing {
		c.mu.Unlock()
		return
	}
	c.base = c.positionLocked()
	c.haltLocked()
	pos := c.base
	c.mu.Unlock()

	c.emit(c.names.pause, NativeEvent{Time: pos})
}

func (c *clock) seek(t float64) error {
	c.mu.Lock()
	if c.duration <= 0 {
		c.mu.Unlock()
		return ErrNoSource
	}
	c.base = max(0, min(t, c.duration))
	c.startedAt = c.now()
	pos := c.base
	c.mu.Unlock()

	c.emit(c.names.seek, NativeEvent{Time: pos})
	return nil
}

func (c *clock) run(stop chan struct{}) {
	ticker := time.NewTicker(c.tick)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		c.mu.Lock()
		if c.stop != stop {
			c.mu.Unlock()
			return
		}
		pos := c.positionLocked()
		dur := c.duration
		ended := pos >= dur
		if ended {
			c.base = dur
			c.haltLocked()
		}
		c.mu.Unlock()

		c.emit(c.names.timeUpdate, NativeEvent{Time: pos, Duration: dur})
		if ended {
			c.emit(c.names.end, NativeEvent{Time: dur, Duration: dur})
			return
		}
	}
}

// CurrentTime returns the position in seconds.
func (c *clock) CurrentTime() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.positionLocked()
}

// Duration returns the loaded stream's duration in seconds.
func (c *clock) Duration() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.duration
}

// SetPlaybackRate changes the rate without moving the position.
func (c *clock) SetPlaybackRate(rate float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.playing {
		c.base = c.positionLocked()
		c.startedAt = c.now()
	}
	c.rate = rate
}

// PlaybackRate returns the current rate.
func (c *clock) PlaybackRate() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rate
}

// SetVolume records the volume; there is no output device.
func (c *clock) SetVolume(volume float64) {
	c.mu.Lock()
	c.volume = volume
	c.mu.Unlock()
}

// Volume returns the current volume.
func (c *clock) Volume() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.volume
}

func (c *clock) close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.haltLocked()
	c.listener = nil
	return nil
}

// ClockElement is a headless MediaElement.
type ClockElement struct {
	*clock
}

// NewClockElement creates a headless media element fetching through o.
func NewClockElement(o Opener, opts ...ClockOption) *ClockElement {
	return &ClockElement{clock: newClock(o, elementNames, opts)}
}

// Listen registers the element's event listener.
func (e *ClockElement) Listen(l Listener) { e.listen(l) }

// SetSource loads url, emitting loadstart then canplay or error.
func (e *ClockElement) SetSource(ctx context.Context, url string) { e.load(ctx, url) }

// SetCurrentTime seeks, emitting seeked.
func (e *ClockElement) SetCurrentTime(t float64) error { return e.seek(t) }

// Close stops playback and detaches the listener.
func (e *ClockElement) Close() error { return e.close() }

// ClockSurface is a headless WaveSurface that also computes waveform peaks.
type ClockSurface struct {
	*clock
}

// NewClockSurface creates a headless waveform surface fetching through o.
func NewClockSurface(o Opener, opts ...ClockOption) *ClockSurface {
	opts = append([]ClockOption{WithPeakBuckets(defaultPeakBuckets)}, opts...)
	return &ClockSurface{clock: newClock(o, surfaceNames, opts)}
}

// On registers the surface's event listener.
func (s *ClockSurface) On(l Listener) { s.listen(l) }

// Load loads url, emitting loading then ready or error.
func (s *ClockSurface) Load(ctx context.Context, url string) { s.load(ctx, url) }

// SeekTo seeks, emitting seeking.
func (s *ClockSurface) SeekTo(t float64) error { return s.seek(t) }

// Peaks returns the normalized peaks of the loaded stream.
func (s *ClockSurface) Peaks() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peaks
}

// Destroy stops playback and detaches the listener.
func (s *ClockSurface) Destroy() error { return s.close() }
