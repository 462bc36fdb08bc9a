package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/readalong/internal/errors"
	"github.com/listenupapp/readalong/internal/events"
)

func newWaveformForTest(t *testing.T) (*WaveformEngine, *fakeSurface, *recorder) {
	t.Helper()
	d := events.NewDispatcher(nil)
	s := newFakeSurface()
	e := NewWaveform(s, d, nil, 200)
	require.NoError(t, e.Initialize(context.Background()))
	t.Cleanup(func() { _ = e.Teardown() })
	return e, s, record(d)
}

func TestWaveform_SamplerRunsOnlyWhilePlaying(t *testing.T) {
	e, s, rec := newWaveformForTest(t)
	require.NoError(t, e.Load(context.Background(), "a.wav"))
	assert.False(t, e.Sampling())

	require.NoError(t, e.Play(context.Background()))
	// A second play transition while running does not start another loop.
	s.fire("play", NativeEvent{})
	assert.True(t, e.Sampling())
	assert.Equal(t, 1, e.sampler.Starts())

	assert.Eventually(t, func() bool { return rec.count(events.AudioProcess) >= 3 },
		time.Second, 5*time.Millisecond)

	require.NoError(t, e.Pause())
	assert.False(t, e.Sampling())

	require.NoError(t, e.Play(context.Background()))
	assert.Equal(t, 2, e.sampler.Starts())
	s.fire("finish", NativeEvent{})
	assert.False(t, e.Sampling())
	assert.Equal(t, 1, rec.count(events.Finish))
}

func TestWaveform_TranslatesNativeEvents(t *testing.T) {
	e, s, rec := newWaveformForTest(t)

	require.NoError(t, e.Load(context.Background(), "a.wav"))
	s.fire("timeupdate", NativeEvent{Time: 2})
	require.NoError(t, e.Seek(5))
	s.fire("bogus", NativeEvent{})

	assert.Equal(t, []events.Channel{
		events.Loading, events.Ready, events.TimeUpdate, events.Seeking,
	}, rec.channels())
	assert.Equal(t, []float64{0.5, 1}, e.Peaks())
	assert.Equal(t, KindWaveform, e.Kind())
}

func TestWaveform_LoopRestarts(t *testing.T) {
	e, s, rec := newWaveformForTest(t)
	require.NoError(t, e.Load(context.Background(), "a.wav"))
	require.NoError(t, e.SetLoop(true))
	require.NoError(t, e.Play(context.Background()))

	s.fire("finish", NativeEvent{})

	assert.Zero(t, rec.count(events.Finish))
	assert.Equal(t, 2, s.plays)
	assert.True(t, e.Sampling())
}

func TestWaveform_ErrorStopsSampler(t *testing.T) {
	e, s, rec := newWaveformForTest(t)
	require.NoError(t, e.Load(context.Background(), "a.wav"))
	require.NoError(t, e.Play(context.Background()))

	s.fire("error", NativeEvent{Err: ErrDecode})

	assert.False(t, e.Sampling())
	ev, ok := rec.last(events.Error)
	require.True(t, ok)
	var perr *PlaybackError
	require.ErrorAs(t, ev.Err, &perr)
	assert.Equal(t, FailureDecode, perr.Kind)
	assert.Equal(t, "media", perr.Op)
}

func TestWaveform_NotInitialized(t *testing.T) {
	e := NewWaveform(newFakeSurface(), events.NewDispatcher(nil), nil, 0)
	assert.True(t, errors.Is(e.Play(context.Background()), ErrNotInitialized))
	assert.Nil(t, e.Peaks())

	missing := NewWaveform(nil, events.NewDispatcher(nil), nil, 0)
	assert.True(t, errors.Is(missing.Initialize(context.Background()), errors.ErrSetup))
}

func TestWaveform_TeardownStopsSampler(t *testing.T) {
	e, s, _ := newWaveformForTest(t)
	require.NoError(t, e.Load(context.Background(), "a.wav"))
	require.NoError(t, e.Play(context.Background()))

	require.NoError(t, e.Teardown())
	assert.False(t, e.Sampling())
	assert.True(t, s.closed)
}
