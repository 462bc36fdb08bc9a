package player

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/listenupapp/readalong/internal/engine"
	"github.com/listenupapp/readalong/internal/errors"
	"github.com/listenupapp/readalong/internal/events"
)

// fakeEngine publishes like a real engine: Load emits loading then ready
// synchronously and resets rate, volume and loop.
type fakeEngine struct {
	mu        sync.Mutex
	d         *events.Dispatcher
	duration  float64
	pos       float64
	rate      float64
	volume    float64
	loop      bool
	playErr   error
	loadErr   error
	loads     []string
	plays     int
	seeks     []float64
	durations map[string]float64
	tornDown  bool
}

func newFakeEngine(d *events.Dispatcher) *fakeEngine {
	return &fakeEngine{d: d, duration: 100, rate: 1, volume: 1}
}

func (f *fakeEngine) Initialize(context.Context) error { return nil }

func (f *fakeEngine) Load(_ context.Context, url string) error {
	f.mu.Lock()
	f.loads = append(f.loads, url)
	f.rate, f.volume, f.loop, f.pos = 1, 1, false, 0
	if d, ok := f.durations[url]; ok {
		f.duration = d
	}
	dur, err := f.duration, f.loadErr
	f.mu.Unlock()

	_ = f.d.Publish(events.Loading, events.Event{})
	if err != nil {
		_ = f.d.Publish(events.Error, events.Event{Err: err})
		return nil
	}
	_ = f.d.Publish(events.Ready, events.Event{Duration: dur})
	return nil
}

func (f *fakeEngine) Play(context.Context) error {
	f.mu.Lock()
	err := f.playErr
	if err == nil {
		f.plays++
	}
	pos := f.pos
	f.mu.Unlock()
	if err != nil {
		_ = f.d.Publish(events.Error, events.Event{Err: err})
		return err
	}
	_ = f.d.Publish(events.Play, events.Event{Time: pos})
	return nil
}

func (f *fakeEngine) Pause() error {
	_ = f.d.Publish(events.Pause, events.Event{Time: f.CurrentTime()})
	return nil
}

func (f *fakeEngine) Seek(t float64) error {
	f.mu.Lock()
	f.pos = t
	f.seeks = append(f.seeks, t)
	f.mu.Unlock()
	_ = f.d.Publish(events.Seeking, events.Event{Time: t})
	return nil
}

func (f *fakeEngine) SetRate(r float64) error   { f.mu.Lock(); f.rate = r; f.mu.Unlock(); return nil }
func (f *fakeEngine) SetVolume(v float64) error { f.mu.Lock(); f.volume = v; f.mu.Unlock(); return nil }
func (f *fakeEngine) SetLoop(l bool) error      { f.mu.Lock(); f.loop = l; f.mu.Unlock(); return nil }
func (f *fakeEngine) CurrentTime() float64      { f.mu.Lock(); defer f.mu.Unlock(); return f.pos }
func (f *fakeEngine) Duration() float64         { f.mu.Lock(); defer f.mu.Unlock(); return f.duration }
func (f *fakeEngine) Rate() float64             { f.mu.Lock(); defer f.mu.Unlock(); return f.rate }
func (f *fakeEngine) Volume() float64           { f.mu.Lock(); defer f.mu.Unlock(); return f.volume }
func (f *fakeEngine) Looping() bool             { f.mu.Lock(); defer f.mu.Unlock(); return f.loop }
func (f *fakeEngine) Kind() engine.Kind         { return engine.KindPlain }

func (f *fakeEngine) Teardown() error {
	f.mu.Lock()
	f.tornDown = true
	f.mu.Unlock()
	return nil
}

// advance moves the position and publishes timeupdate.
func (f *fakeEngine) advance(t float64) {
	f.mu.Lock()
	f.pos = t
	dur := f.duration
	f.mu.Unlock()
	_ = f.d.Publish(events.TimeUpdate, events.Event{Time: t, Duration: dur})
}

// finish publishes the end of the current source.
func (f *fakeEngine) finish() {
	f.mu.Lock()
	dur := f.duration
	f.pos = dur
	f.mu.Unlock()
	_ = f.d.Publish(events.Finish, events.Event{Time: dur, Duration: dur})
}

func (f *fakeEngine) loaded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.loads...)
}

type urlSource struct{}

func (urlSource) ChunkURL(bookID, filename string) (string, error) {
	return fmt.Sprintf("/api/audiobook/%s/play/%s", bookID, filename), nil
}

type syncRecorder struct {
	mu    sync.Mutex
	times []float64
}

func (s *syncRecorder) SyncToTime(t float64) (int, bool) {
	s.mu.Lock()
	s.times = append(s.times, t)
	s.mu.Unlock()
	return 0, false
}

func (s *syncRecorder) last() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.times) == 0 {
		return -1
	}
	return s.times[len(s.times)-1]
}

type wavOpener map[string][]byte

func (o wavOpener) Open(_ context.Context, url string) (io.ReadCloser, error) {
	data, ok := o[url]
	if !ok {
		return nil, errors.NotFoundf("%s not found", url)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}
