package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/listenupapp/readalong/internal/errors"
	"github.com/listenupapp/readalong/internal/events"
)

// DefaultSampleHz is the audioprocess frequency used when none is configured.
const DefaultSampleHz = 60

// WaveSurface is a waveform-rendering playback engine. Native event names are
// loading, ready, play, pause, finish, timeupdate, seeking and error.
type WaveSurface interface {
	On(l Listener)
	Load(ctx context.Context, url string)
	Play(ctx context.Context) error
	Pause()
	SeekTo(t float64) error
	CurrentTime() float64
	Duration() float64
	SetPlaybackRate(rate float64)
	PlaybackRate() float64
	SetVolume(volume float64)
	Volume() float64
	Peaks() []float64
	Destroy() error
}

var waveEvents = map[string]events.Channel{
	"loading":    events.Loading,
	"ready":      events.Ready,
	"play":       events.Play,
	"pause":      events.Pause,
	"finish":     events.Finish,
	"timeupdate": events.TimeUpdate,
	"seeking":    events.Seeking,
	"error":      events.Error,
}

// WaveformEngine plays through a WaveSurface and samples the position at a
// high frequency while playing.
type WaveformEngine struct {
	core
	surface WaveSurface
	sampler *Sampler
}

// NewWaveform creates a waveform engine sampling at hz (DefaultSampleHz when hz <= 0).
func NewWaveform(surface WaveSurface, d *events.Dispatcher, log *slog.Logger, hz int) *WaveformEngine {
	if hz <= 0 {
		hz = DefaultSampleHz
	}
	e := &WaveformEngine{surface: surface}
	e.setup(d, log)
	e.sampler = NewSampler(time.Second/time.Duration(hz), e.sample)
	return e
}

// Initialize attaches to the surface. A missing surface is a setup error.
func (e *WaveformEngine) Initialize(ctx context.Context) error {
	if e.surface == nil {
		return errors.Setup("waveform surface is missing")
	}
	if e.start(ctx) {
		e.surface.On(e.onNative)
	}
	return nil
}

func (e *WaveformEngine) sample() {
	e.publish(events.AudioProcess, events.Event{
		Time:     e.surface.CurrentTime(),
		Duration: e.surface.Duration(),
	})
}

func (e *WaveformEngine) onNative(name string, ev NativeEvent) {
	if e.check(name) != nil {
		return
	}
	ch, ok := waveEvents[name]
	if !ok {
		e.logger.Debug("ignoring native event", "name", name)
		return
	}

	switch ch {
	case events.Play:
		e.sampler.Start()
	case events.Pause, events.Loading:
		e.sampler.Stop()
	case events.Finish:
		e.sampler.Stop()
		if e.looping() {
			e.restart(e.surface.SeekTo, e.surface.Play)
			return
		}
	case events.Error:
		e.sampler.Stop()
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
func (e *WaveformEngine) Load(ctx context.Context, url string) error {
	if err := e.check("load"); err != nil {
		return err
	}
	e.sampler.Stop()
	e.setLoop(false)
	e.surface.Load(ctx, url)
	return nil
}

// Play starts playback. A failure is published and returned.
func (e *WaveformEngine) Play(ctx context.Context) error {
	if err := e.check("play"); err != nil {
		return err
	}
	if err := e.surface.Play(ctx); err != nil {
		return e.fail("play", err)
	}
	return nil
}

// Pause pauses playback.
func (e *WaveformEngine) Pause() error {
	if err := e.check("pause"); err != nil {
		return err
	}
	e.surface.Pause()
	return nil
}

// Seek moves to t seconds. A failure is published, not returned.
func (e *WaveformEngine) Seek(t float64) error {
	if err := e.check("seek"); err != nil {
		return err
	}
	if err := e.surface.SeekTo(t); err != nil {
		e.fail("seek", err)
	}
	return nil
}

// SetRate sets the playback rate.
func (e *WaveformEngine) SetRate(rate float64) error {
	if err := e.check("set rate"); err != nil {
		return err
	}
	e.surface.SetPlaybackRate(rate)
	return nil
}

// SetVolume sets the output volume.
func (e *WaveformEngine) SetVolume(volume float64) error {
	if err := e.check("set volume"); err != nil {
		return err
	}
	e.surface.SetVolume(volume)
	return nil
}

// SetLoop enables or disables looping of the current source.
func (e *WaveformEngine) SetLoop(loop bool) error {
	if err := e.check("set loop"); err != nil {
		return err
	}
	e.setLoop(loop)
	return nil
}

// CurrentTime returns the position in seconds, or 0 before initialization.
func (e *WaveformEngine) CurrentTime() float64 {
	if e.check("") != nil {
		return 0
	}
	return e.surface.CurrentTime()
}

// Duration returns the loaded source's duration, or 0 before initialization.
func (e *WaveformEngine) Duration() float64 {
	if e.check("") != nil {
		return 0
	}
	return e.surface.Duration()
}

// Rate returns the surface's playback rate.
func (e *WaveformEngine) Rate() float64 {
	if e.check("") != nil {
		return 0
	}
	return e.surface.PlaybackRate()
}

// Volume returns the surface's volume.
func (e *WaveformEngine) Volume() float64 {
	if e.check("") != nil {
		return 0
	}
	return e.surface.Volume()
}

// Looping reports whether the engine restarts on finish.
func (e *WaveformEngine) Looping() bool {
	return e.looping()
}

// Peaks returns the loaded waveform's normalized peaks.
func (e *WaveformEngine) Peaks() []float64 {
	if e.check("") != nil {
		return nil
	}
	return e.surface.Peaks()
}

// Sampling reports whether the audioprocess sampler is running.
func (e *WaveformEngine) Sampling() bool {
	return e.sampler.Running()
}

// Kind returns KindWaveform.
func (e *WaveformEngine) Kind() Kind {
	return KindWaveform
}

// Teardown stops sampling and destroys the surface.
func (e *WaveformEngine) Teardown() error {
	if !e.stop() {
		return nil
	}
	e.sampler.Stop()
	e.surface.Pause()
	return e.surface.Destroy()
}
