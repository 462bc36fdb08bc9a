package player

import (
	"context"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/readalong/internal/domain"
	"github.com/listenupapp/readalong/internal/engine"
	"github.com/listenupapp/readalong/internal/errors"
	"github.com/listenupapp/readalong/internal/events"
	"github.com/listenupapp/readalong/internal/testutil"
)

type harness struct {
	d    *events.Dispatcher
	eng  *fakeEngine
	sync *syncRecorder
	c    *Controller
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	d := events.NewDispatcher(nil)
	h := &harness{d: d, eng: newFakeEngine(d), sync: &syncRecorder{}}
	h.c = NewController(Config{Engine: h.eng, Dispatcher: d, Sources: urlSource{}, Sync: h.sync})
	h.c.Attach(context.Background())
	t.Cleanup(h.c.Detach)
	return h
}

func TestController_SkipClampsToZero(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.c.LoadFile(context.Background(), "/api/audio/a.wav", false))
	h.eng.advance(3)

	got, err := h.c.Skip(-10)
	require.NoError(t, err)
	assert.Zero(t, got)
	assert.Equal(t, []float64{0}, h.eng.seeks)
}

func TestController_SeekClampsToDuration(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.c.LoadFile(context.Background(), "/api/audio/a.wav", false))

	got, err := h.c.Seek(250)
	require.NoError(t, err)
	assert.InDelta(t, 100.0, got, 0.0001)

	got, err = h.c.Skip(10)
	require.NoError(t, err)
	assert.InDelta(t, 100.0, got, 0.0001)
}

func TestController_ClampsRateAndVolume(t *testing.T) {
	h := newHarness(t)

	rate, err := h.c.SetRate(4)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, rate, 0.0001)

	rate, _ = h.c.SetRate(0.1)
	assert.InDelta(t, 0.5, rate, 0.0001)

	vol, _ := h.c.SetVolume(-1)
	assert.Zero(t, vol)

	vol, _ = h.c.SetVolume(1.7)
	assert.InDelta(t, 1.0, vol, 0.0001)

	st := h.c.State()
	assert.InDelta(t, 0.5, st.PlaybackRate, 0.0001)
	assert.InDelta(t, 1.0, st.Volume, 0.0001)
}

func TestController_NaNKeepsTransportInBounds(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.c.LoadFile(context.Background(), "/api/audio/a.wav", false))
	_, _ = h.c.SetRate(1.25)
	_, _ = h.c.SetVolume(0.4)

	rate, err := h.c.SetRate(math.NaN())
	require.NoError(t, err)
	assert.InDelta(t, 1.25, rate, 0.0001)
	assert.InDelta(t, 1.25, h.eng.Rate(), 0.0001)

	vol, err := h.c.SetVolume(math.NaN())
	require.NoError(t, err)
	assert.InDelta(t, 0.4, vol, 0.0001)
	assert.InDelta(t, 0.4, h.eng.Volume(), 0.0001)

	h.eng.advance(30)
	got, err := h.c.Seek(math.NaN())
	require.NoError(t, err)
	assert.Zero(t, got)
	assert.Equal(t, []float64{0}, h.eng.seeks)

	st := h.c.State()
	assert.False(t, math.IsNaN(st.PlaybackRate))
	assert.False(t, math.IsNaN(st.Volume))
}

func TestController_ReappliesSettingsOnEveryReady(t *testing.T) {
	h := newHarness(t)
	h.c.SetBook("book", testutil.Manifest("book", 4, 4, 10))
	ctx := context.Background()

	require.NoError(t, h.c.LoadChunk(ctx, 0))
	_, err := h.c.SetRate(1.5)
	require.NoError(t, err)
	_, err = h.c.SetVolume(0.3)
	require.NoError(t, err)
	require.NoError(t, h.c.SetLoop(true))

	require.NoError(t, h.c.LoadChunk(ctx, 1))

	assert.InDelta(t, 1.5, h.eng.Rate(), 0.0001)
	assert.InDelta(t, 0.3, h.eng.Volume(), 0.0001)
	assert.True(t, h.eng.Looping())
}

func TestController_SettingsBeforeLoadApplyOnReady(t *testing.T) {
	h := newHarness(t)
	_, _ = h.c.SetRate(0.75)
	assert.InDelta(t, 1.0, h.eng.Rate(), 0.0001, "nothing loaded yet")

	require.NoError(t, h.c.LoadFile(context.Background(), "/api/audio/a.wav", false))
	assert.InDelta(t, 0.75, h.eng.Rate(), 0.0001)
}

func TestController_SequencedAdvance(t *testing.T) {
	h := newHarness(t)
	h.c.SetBook("book", testutil.Manifest("book", 2, 4, 10))
	ctx := context.Background()

	require.NoError(t, h.c.Play(ctx))
	assert.True(t, h.c.State().IsPlaying)
	assert.Equal(t, 0, h.c.State().ChunkIndex)

	h.eng.finish()
	st := h.c.State()
	assert.Equal(t, 1, st.ChunkIndex)
	assert.True(t, st.IsPlaying)
	assert.Len(t, h.eng.loaded(), 2)

	h.eng.finish()
	st = h.c.State()
	assert.False(t, st.IsPlaying)
	assert.False(t, st.CanPlay)
	assert.Equal(t, MsgWaitingForAudio, h.c.Errors().Current().Message)

	err := h.c.Play(ctx)
	assert.True(t, errors.Is(err, errors.ErrUnavailable))
	assert.Len(t, h.eng.loaded(), 2)

	// More audio arrives.
	h.c.UpdateManifest(testutil.Manifest("book", 3, 4, 10))
	assert.True(t, h.c.State().CanPlay)
	assert.False(t, h.c.Errors().Current().Visible())

	require.NoError(t, h.c.Play(ctx))
	st = h.c.State()
	assert.Equal(t, 2, st.ChunkIndex)
	assert.True(t, st.IsPlaying)
}

func TestController_EndOfCompleteBook(t *testing.T) {
	h := newHarness(t)
	h.c.SetBook("book", testutil.Manifest("book", 1, 1, 10))

	require.NoError(t, h.c.PlayChunk(context.Background(), 0))
	h.eng.finish()

	assert.False(t, h.c.State().CanPlay)
	assert.Equal(t, MsgEndOfBook, h.c.Errors().Current().Message)
}

func TestController_SingleModeStops(t *testing.T) {
	h := newHarness(t)
	h.c.SetBook("book", testutil.Manifest("book", 3, 3, 10))
	h.c.SetMode(domain.ModeSingle)

	require.NoError(t, h.c.PlayChunk(context.Background(), 0))
	h.eng.finish()

	assert.Len(t, h.eng.loaded(), 1)
	assert.False(t, h.c.State().IsPlaying)
	assert.False(t, h.c.Errors().Current().Visible())
}

func TestController_BookTimeDrivesSync(t *testing.T) {
	h := newHarness(t)
	h.c.SetBook("book", testutil.Manifest("book", 4, 4, 10))

	require.NoError(t, h.c.LoadChunk(context.Background(), 2))
	h.eng.advance(4.5)

	assert.InDelta(t, 24.5, h.sync.last(), 0.0001)
	assert.InDelta(t, 24.5, h.c.State().BookTime, 0.0001)
}

func TestController_SeekAbsolute(t *testing.T) {
	h := newHarness(t)
	h.c.SetBook("book", testutil.Manifest("book", 4, 4, 10))
	ctx := context.Background()

	require.NoError(t, h.c.PlayChunk(ctx, 0))
	require.NoError(t, h.c.SeekAbsolute(ctx, 32))

	st := h.c.State()
	assert.Equal(t, 3, st.ChunkIndex)
	assert.True(t, st.IsPlaying, "playback continues")
	assert.InDelta(t, 2.0, h.eng.CurrentTime(), 0.0001)

	// Same chunk: seek without reloading.
	require.NoError(t, h.c.SeekAbsolute(ctx, 35))
	assert.Len(t, h.eng.loaded(), 2)
	assert.InDelta(t, 5.0, h.eng.CurrentTime(), 0.0001)

	err := h.c.SeekAbsolute(ctx, -3)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestController_NextPrevious(t *testing.T) {
	h := newHarness(t)
	h.c.SetBook("book", testutil.Manifest("book", 3, 3, 10))
	ctx := context.Background()

	require.NoError(t, h.c.NextChunk(ctx))
	assert.Equal(t, 0, h.c.State().ChunkIndex)
	require.NoError(t, h.c.NextChunk(ctx))
	assert.Equal(t, 1, h.c.State().ChunkIndex)
	require.NoError(t, h.c.PreviousChunk(ctx))
	assert.Equal(t, 0, h.c.State().ChunkIndex)
	require.NoError(t, h.c.PreviousChunk(ctx))
	assert.Equal(t, 0, h.c.State().ChunkIndex)

	require.NoError(t, h.c.PlayChunk(ctx, 2))
	err := h.c.NextChunk(ctx)
	assert.True(t, errors.Is(err, errors.ErrValidation))
}

func TestController_ErrorSlot(t *testing.T) {
	h := newHarness(t)
	var statuses []Status
	var mu sync.Mutex
	h.d.Subscribe(events.Status, func(e events.Event) error {
		mu.Lock()
		statuses = append(statuses, e.Payload.(Status))
		mu.Unlock()
		return nil
	})

	h.eng.playErr = &engine.PlaybackError{Kind: engine.FailureAutoplay, Op: "play", Err: engine.ErrAutoplayBlocked}
	require.NoError(t, h.c.LoadFile(context.Background(), "/api/audio/a.wav", false))
	err := h.c.Play(context.Background())
	require.Error(t, err)
	assert.True(t, engine.IsAutoplay(err))
	assert.True(t, h.c.Errors().Current().Visible())

	h.eng.playErr = nil
	require.NoError(t, h.c.Play(context.Background()))
	assert.False(t, h.c.Errors().Current().Visible())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, statuses, 2)
	assert.True(t, statuses[0].Visible())
	assert.False(t, statuses[1].Visible())
}

func TestController_PlayWithNothingLoaded(t *testing.T) {
	h := newHarness(t)
	err := h.c.Play(context.Background())
	assert.True(t, errors.Is(err, errors.ErrValidation))
}

func TestController_WithClockElement(t *testing.T) {
	d := events.NewDispatcher(nil)
	opener := wavOpener{"/api/audio/a.wav": testutil.WAV(2), "/api/audio/b.wav": testutil.WAV(3)}
	eng := engine.NewPlain(engine.NewClockElement(opener), d, nil)
	require.NoError(t, eng.Initialize(context.Background()))
	t.Cleanup(func() { _ = eng.Teardown() })

	c := NewController(Config{Engine: eng, Dispatcher: d})
	c.Attach(context.Background())

	ctx := context.Background()
	require.NoError(t, c.LoadFile(ctx, "/api/audio/a.wav", false))
	_, _ = c.SetRate(1.5)
	_, _ = c.SetVolume(0.3)
	require.NoError(t, c.SetLoop(true))

	require.NoError(t, c.LoadFile(ctx, "/api/audio/b.wav", false))

	assert.InDelta(t, 1.5, eng.Rate(), 0.0001)
	assert.InDelta(t, 0.3, eng.Volume(), 0.0001)
	assert.True(t, eng.Looping())
	assert.InDelta(t, 3.0, c.State().Duration, 0.01)
}
