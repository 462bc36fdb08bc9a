package engine

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/readalong/internal/audio"
	"github.com/listenupapp/readalong/internal/events"
)

type nativeLog struct {
	names []string
	last  map[string]NativeEvent
}

func (n *nativeLog) listener(name string, ev NativeEvent) {
	n.names = append(n.names, name)
	if n.last == nil {
		n.last = map[string]NativeEvent{}
	}
	n.last[name] = ev
}

func TestClockElement_LoadPlayPause(t *testing.T) {
	clk := newManualClock()
	opener := &wavOpener{files: map[string][]byte{"two.wav": wavSeconds(t, 2)}}
	el := NewClockElement(opener, WithNow(clk.Now), WithTick(time.Hour))
	var log nativeLog
	el.Listen(log.listener)

	el.SetPlaybackRate(1.5)
	el.SetSource(context.Background(), "two.wav")
	assert.Equal(t, []string{"loadstart", "canplay"}, log.names)
	assert.InDelta(t, 2.0, log.last["canplay"].Duration, 0.0001)
	assert.InDelta(t, 1.0, el.PlaybackRate(), 0.0001, "load resets rate")

	el.SetPlaybackRate(1.5)
	require.NoError(t, el.Play(context.Background()))
	clk.Advance(time.Second)
	assert.InDelta(t, 1.5, el.CurrentTime(), 0.0001)

	el.Pause()
	clk.Advance(time.Second)
	assert.InDelta(t, 1.5, el.CurrentTime(), 0.0001)

	require.NoError(t, el.SetCurrentTime(99))
	assert.InDelta(t, 2.0, el.CurrentTime(), 0.0001)
	assert.Equal(t, "seeked", log.names[len(log.names)-1])
	require.NoError(t, el.Close())
}

func TestClockElement_Errors(t *testing.T) {
	opener := &wavOpener{files: map[string][]byte{"bad.wav": []byte("not a wave file at all, honestly")}}
	el := NewClockElement(opener)
	var log nativeLog
	el.Listen(log.listener)

	assert.ErrorIs(t, el.Play(context.Background()), ErrNoSource)
	assert.ErrorIs(t, el.SetCurrentTime(1), ErrNoSource)

	el.SetSource(context.Background(), "missing.wav")
	assert.Equal(t, []string{"loadstart", "error"}, log.names)
	assert.Equal(t, FailureNetwork, classify(log.last["error"].Err))

	el.SetSource(context.Background(), "bad.wav")
	assert.ErrorIs(t, log.last["error"].Err, audio.ErrNotWAV)
	assert.Equal(t, FailureDecode, classify(log.last["error"].Err))
}

func TestClockSurface_PeaksAndFinish(t *testing.T) {
	clk := newManualClock()
	opener := &wavOpener{files: map[string][]byte{"one.wav": wavSeconds(t, 1)}}
	s := NewClockSurface(opener, WithNow(clk.Now), WithTick(2*time.Millisecond), WithPeakBuckets(4))

	finished := make(chan NativeEvent, 1)
	s.On(func(name string, ev NativeEvent) {
		if name == "finish" {
			finished <- ev
		}
	})

	s.Load(context.Background(), "one.wav")
	assert.Len(t, s.Peaks(), 4)

	require.NoError(t, s.Play(context.Background()))
	clk.Advance(2 * time.Second)

	select {
	case ev := <-finished:
		assert.InDelta(t, 1.0, ev.Time, 0.0001)
	case <-time.After(time.Second):
		t.Fatal("surface never finished")
	}
	assert.InDelta(t, 1.0, s.CurrentTime(), 0.0001)
	require.NoError(t, s.Destroy())
}

func TestPlainEngine_OverClockElementLoops(t *testing.T) {
	clk := newManualClock()
	opener := &wavOpener{files: map[string][]byte{"one.wav": wavSeconds(t, 1)}}
	d := events.NewDispatcher(nil)
	rec := record(d)

	e := NewPlain(NewClockElement(opener, WithNow(clk.Now), WithTick(2*time.Millisecond)), d, nil)
	require.NoError(t, e.Initialize(context.Background()))
	t.Cleanup(func() { _ = e.Teardown() })

	require.NoError(t, e.Load(context.Background(), "one.wav"))
	require.NoError(t, e.SetLoop(true))
	require.NoError(t, e.Play(context.Background()))
	clk.Advance(1500 * time.Millisecond)

	// Reaching the end seeks back to zero and plays again.
	assert.Eventually(t, func() bool { return rec.count(events.Play) >= 2 }, time.Second, time.Millisecond)
	assert.Zero(t, rec.count(events.Finish))
	assert.GreaterOrEqual(t, rec.count(events.Seeking), 1)
}

// gatedOpener blocks the first Open until release is closed.
type gatedOpener struct {
	wavOpener
	mu      sync.Mutex
	opened  int
	entered chan struct{}
	release chan struct{}
}

func (o *gatedOpener) Open(ctx context.Context, url string) (io.ReadCloser, error) {
	o.mu.Lock()
	o.opened++
	first := o.opened == 1
	o.mu.Unlock()
	if first {
		close(o.entered)
		<-o.release
	}
	return o.wavOpener.Open(ctx, url)
}

func TestClockElement_OverlappingLoadsOfSameURL(t *testing.T) {
	opener := &gatedOpener{
		wavOpener: wavOpener{files: map[string][]byte{"one.wav": wavSeconds(t, 1)}},
		entered:   make(chan struct{}),
		release:   make(chan struct{}),
	}
	el := NewClockElement(opener, WithTick(time.Hour))

	var mu sync.Mutex
	ready := 0
	el.Listen(func(name string, _ NativeEvent) {
		if name == "canplay" {
			mu.Lock()
			ready++
			mu.Unlock()
		}
	})

	done := make(chan struct{})
	go func() {
		el.SetSource(context.Background(), "one.wav")
		close(done)
	}()
	<-opener.entered

	el.SetSource(context.Background(), "one.wav")
	close(opener.release)
	<-done

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, ready, "the superseded load must not report ready")
	assert.InDelta(t, 1.0, el.Duration(), 0.0001)
}
