package engine

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/listenupapp/readalong/internal/audio"
	"github.com/listenupapp/readalong/internal/errors"
	"github.com/listenupapp/readalong/internal/events"
)

// fakeNative is a scripted backend. Loading resets rate and volume like a
// browser media element does.
type fakeNative struct {
	mu       sync.Mutex
	names    nativeNames
	listener Listener

	loadErr error
	playErr error
	seekErr error

	duration float64
	pos      float64
	rate     float64
	volume   float64
	closed   bool
	loads    []string
	plays    int
	seeks    []float64
}

func newFakeNative(names nativeNames) *fakeNative {
	return &fakeNative{names: names, duration: 10, rate: 1, volume: 1}
}

func (f *fakeNative) fire(name string, ev NativeEvent) {
	f.mu.Lock()
	l := f.listener
	f.mu.Unlock()
	if l != nil {
		l(name, ev)
	}
}

func (f *fakeNative) listen(l Listener) {
	f.mu.Lock()
	f.listener = l
	f.mu.Unlock()
}

func (f *fakeNative) load(_ context.Context, url string) {
	f.mu.Lock()
	f.loads = append(f.loads, url)
	f.rate, f.volume, f.pos = 1, 1, 0
	err := f.loadErr
	dur := f.duration
	f.mu.Unlock()

	f.fire(f.names.loadStart, NativeEvent{})
	if err != nil {
		f.fire(f.names.err, NativeEvent{Op: "load", Err: err})
		return
	}
	f.fire(f.names.ready, NativeEvent{Duration: dur})
}

func (f *fakeNative) Play(context.Context) error {
	f.mu.Lock()
	err := f.playErr
	if err == nil {
		f.plays++
	}
	f.mu.Unlock()
	if err != nil {
		return err
	}
	f.fire(f.names.play, NativeEvent{})
	return nil
}

func (f *fakeNative) Pause() { f.fire(f.names.pause, NativeEvent{}) }

func (f *fakeNative) seek(t float64) error {
	f.mu.Lock()
	err := f.seekErr
	if err == nil {
		f.pos = t
		f.seeks = append(f.seeks, t)
	}
	f.mu.Unlock()
	if err != nil {
		return err
	}
	f.fire(f.names.seek, NativeEvent{Time: t})
	return nil
}

func (f *fakeNative) CurrentTime() float64 { f.mu.Lock(); defer f.mu.Unlock(); return f.pos }
func (f *fakeNative) Duration() float64    { f.mu.Lock(); defer f.mu.Unlock(); return f.duration }
func (f *fakeNative) SetPlaybackRate(r float64) {
	f.mu.Lock()
	f.rate = r
	f.mu.Unlock()
}
func (f *fakeNative) PlaybackRate() float64 { f.mu.Lock(); defer f.mu.Unlock(); return f.rate }
func (f *fakeNative) SetVolume(v float64) {
	f.mu.Lock()
	f.volume = v
	f.mu.Unlock()
}
func (f *fakeNative) Volume() float64 { f.mu.Lock(); defer f.mu.Unlock(); return f.volume }
func (f *fakeNative) close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

type fakeElement struct{ *fakeNative }

func newFakeElement() *fakeElement { return &fakeElement{newFakeNative(elementNames)} }

func (e *fakeElement) Listen(l Listener)                         { e.listen(l) }
func (e *fakeElement) SetSource(ctx context.Context, url string) { e.load(ctx, url) }
func (e *fakeElement) SetCurrentTime(t float64) error            { return e.seek(t) }
func (e *fakeElement) Close() error                              { return e.close() }

type fakeSurface struct{ *fakeNative }

func newFakeSurface() *fakeSurface { return &fakeSurface{newFakeNative(surfaceNames)} }

func (s *fakeSurface) On(l Listener)                        { s.listen(l) }
func (s *fakeSurface) Load(ctx context.Context, url string) { s.load(ctx, url) }
func (s *fakeSurface) SeekTo(t float64) error               { return s.seek(t) }
func (s *fakeSurface) Peaks() []float64                     { return []float64{0.5, 1} }
func (s *fakeSurface) Destroy() error                       { return s.close() }

// recorder captures every engine-channel event.
type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func record(d *events.Dispatcher) *recorder {
	r := &recorder{}
	for _, ch := range events.EngineChannels() {
		d.Subscribe(ch, func(e events.Event) error {
			r.mu.Lock()
			r.events = append(r.events, e)
			r.mu.Unlock()
			return nil
		})
	}
	return r
}

func (r *recorder) channels() []events.Channel {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Channel, 0, len(r.events))
	for _, e := range r.events {
		if e.Channel == events.AudioProcess {
			continue
		}
		out = append(out, e.Channel)
	}
	return out
}

func (r *recorder) count(ch events.Channel) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Channel == ch {
			n++
		}
	}
	return n
}

func (r *recorder) last(ch events.Channel) (events.Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Channel == ch {
			return r.events[i], true
		}
	}
	return events.Event{}, false
}

func (r *recorder) reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}

// wavOpener serves WAV payloads by URL.
type wavOpener struct {
	files map[string][]byte
}

func (o *wavOpener) Open(_ context.Context, url string) (io.ReadCloser, error) {
	data, ok := o.files[url]
	if !ok {
		return nil, errors.Wrapf(errors.New("404"), errors.CodeTransport, "GET %s", url)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func wavSeconds(t *testing.T, seconds float64) []byte {
	t.Helper()
	const rate = 8000
	samples := make([]int16, int(seconds*rate))
	for i := range samples {
		samples[i] = int16(i % 2000)
	}
	data, err := audio.EncodeWAV(samples, rate)
	require.NoError(t, err)
	return data
}

// manualClock is a settable time source.
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (m *manualClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *manualClock) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}
