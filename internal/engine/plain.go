package engine

import (
	"context"
	"log/slog"

	"github.com/listenupapp/readalong/internal/errors"
	"github.com/listenupapp/readalong/internal/events"
)

// MediaElement is a playable media element. Native event names are
// loadstart, canplay, play, pause, ended, timeupdate, seeked and error.
type MediaElement interface {
	Listen(l Listener)
	SetSource(ctx context.Context, url string)
	Play(ctx context.Context) error
	Pause()
	SetCurrentTime(t float64) error
	CurrentTime() float64
	Duration() float64
	SetPlaybackRate(rate float64)
	PlaybackRate() float64
	SetVolume(volume float64)
	Volume() float64
	Close() error
}

var plainEvents = map[string]events.Channel{
	"loadstart":  events.Loading,
	"canplay":    events.Ready,
	"play":       events.Play,
	"pause":      events.Pause,
	"ended":      events.Finish,
	"timeupdate": events.TimeUpdate,
	"seeked":     events.Seeking,
	"error":      events.Error,
}

// PlainEngine plays through a MediaElement. The element's native loop flag is
// never used; looping restarts playback when the element reports "ended".
type PlainEngine struct {
	core
	el MediaElement
}

// NewPlain creates a plain engine over el publishing on d.
func NewPlain(el MediaElement, d *events.Dispatcher, log *slog.Logger) *PlainEngine {
	e := &PlainEngine{el: el}
	e.setup(d, log)
	return e
}

// Initialize attaches to the element. A missing element is a setup error.
func (e *PlainEngine) Initialize(ctx context.Context) error {
	if e.el == nil {
		return errors.Setup("media element is missing")
	}
	if e.start(ctx) {
		e.el.Listen(e.onNative)
	}
	return nil
}

func (e *PlainEngine) onNative(name string, ev NativeEvent) {
	if e.check(name) != nil {
		return
	}
	ch, ok := plainEvents[name]
	if !ok {
		e.logger.Debug("ignoring native event", "name", name)
		return
	}

	switch ch {
	case events.Finish:
		if e.looping() {
			e.restart(e.el.SetCurrentTime, e.el.Play)
			return
		}
	case events.Error:
		op := ev.Op
		if op == "" {
			op = "media"
		}
		e.fail(op, ev.Err)
		return
	}

	e.publish(ch, events.Event{Time: ev.Time, Duration: ev.Duration})
}

// Load starts loading url. Progress and failure arrive as events.
func (e *PlainEngine) Load(ctx context.Context, url string) error {
	if err := e.check("load"); err != nil {
		return err
	}
	e.setLoop(false)
	e.el.SetSource(ctx, url)
	return nil
}

// Play starts playback. A failure is published and returned.
func (e *PlainEngine) Play(ctx context.Context) error {
	if err := e.check("play"); err != nil {
		return err
	}
	if err := e.el.Play(ctx); err != nil {
		return e.fail("play", err)
	}
	return nil
}

// Pause pauses playback.
func (e *PlainEngine) Pause() error {
	if err := e.check("pause"); err != nil {
		return err
	}
	e.el.Pause()
	return nil
}

// Seek moves to t seconds. A failure is published, not returned.
func (e *PlainEngine) Seek(t float64) error {
	if err := e.check("seek"); err != nil {
		return err
	}
	if err := e.el.SetCurrentTime(t); err != nil {
		e.fail("seek", err)
	}
	return nil
}

// SetRate sets the playback rate.
func (e *PlainEngine) SetRate(rate float64) error {
	if err := e.check("set rate"); err != nil {
		return err
	}
	e.el.SetPlaybackRate(rate)
	return nil
}

// SetVolume sets the output volume.
func (e *PlainEngine) SetVolume(volume float64) error {
	if err := e.check("set volume"); err != nil {
		return err
	}
	e.el.SetVolume(volume)
	return nil
}

// SetLoop enables or disables looping of the current source.
func (e *PlainEngine) SetLoop(loop bool) error {
	if err := e.check("set loop"); err != nil {
		return err
	}
	e.setLoop(loop)
	return nil
}

// CurrentTime returns the position in seconds, or 0 before initialization.
func (e *PlainEngine) CurrentTime() float64 {
	if e.check("") != nil {
		return 0
	}
	return e.el.CurrentTime()
}

// Duration returns the loaded source's duration, or 0 before initialization.
func (e *PlainEngine) Duration() float64 {
	if e.check("") != nil {
		return 0
	}
	return e.el.Duration()
}

// Rate returns the element's playback rate.
func (e *PlainEngine) Rate() float64 {
	if e.check("") != nil {
		return 0
	}
	return e.el.PlaybackRate()
}

// Volume returns the element's volume.
func (e *PlainEngine) Volume() float64 {
	if e.check("") != nil {
		return 0
	}
	return e.el.Volume()
}

// Looping reports whether the engine restarts on end.
func (e *PlainEngine) Looping() bool {
	return e.looping()
}

// Kind returns KindPlain.
func (e *PlainEngine) Kind() Kind {
	return KindPlain
}

// Teardown releases the element. Later calls fail with ErrNotInitialized.
func (e *PlainEngine) Teardown() error {
	if !e.stop() {
		return nil
	}
	e.el.Pause()
	return e.el.Close()
}
