// Package engine adapts interchangeable playback backends to one transport contract
// and translates their native event names to the fixed events vocabulary.
//
// Two variants exist. PlainEngine drives a MediaElement (coarse timeupdate,
// loop re-implemented on "ended"). WaveformEngine drives a WaveSurface and adds
// a high-frequency audioprocess sampler that runs only while playing.
//
// Every call made before Initialize fails with ErrNotInitialized. Load and Seek
// failures are reported on the error channel only; Play reports on the error
// channel and also returns a *PlaybackError so the caller can retry after an
// autoplay rejection.
package engine

import (
	"context"
	"fmt"

	"github.com/listenupapp/readalong/internal/audio"
	"github.com/listenupapp/readalong/internal/errors"
)

// Kind names an engine variant.
type Kind string

// Engine variants.
const (
	KindPlain    Kind = "plain"
	KindWaveform Kind = "waveform"
)

// Engine is the playback contract shared by every variant.
type Engine interface {
	Initialize(ctx context.Context) error
	Load(ctx context.Context, url string) error
	Play(ctx context.Context) error
	Pause() error
	Seek(t float64) error
	SetRate(rate float64) error
	SetVolume(volume float64) error
	SetLoop(loop bool) error
	CurrentTime() float64
	Duration() float64
	Rate() float64
	Volume() float64
	Looping() bool
	Kind() Kind
	Teardown() error
}

// NativeEvent is what a backend reports alongside a native event name.
type NativeEvent struct {
	Time     float64
	Duration float64
	Op       string
	Err      error
}

// Listener receives native events from a backend.
type Listener func(name string, ev NativeEvent)

// Errors reported by backends. Classification into a FailureKind relies on errors.Is.
var (
	ErrNotInitialized  = errors.ErrNotInitialized
	ErrAutoplayBlocked = errors.New("playback was not allowed without user interaction")
	ErrDecode          = errors.New("media could not be decoded")
	ErrNetwork         = errors.New("media could not be fetched")
	ErrNoSource        = errors.New("no source loaded")
)

// FailureKind distinguishes the causes of a playback failure.
type FailureKind string

// Failure kinds.
const (
	FailureAutoplay    FailureKind = "autoplay"
	FailureDecode      FailureKind = "decode"
	FailureNetwork     FailureKind = "network"
	FailureUnsupported FailureKind = "unsupported"
	FailureUnknown     FailureKind = "unknown"
)

// PlaybackError is an engine failure tagged with its kind.
type PlaybackError struct {
	Kind FailureKind
	Op   string
	Err  error
}

func (e *PlaybackError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *PlaybackError) Unwrap() error {
	return e.Err
}

// IsAutoplay reports whether err is a playback rejection by autoplay policy.
func IsAutoplay(err error) bool {
	var perr *PlaybackError
	return errors.As(err, &perr) && perr.Kind == FailureAutoplay
}

func newPlaybackError(op string, err error) *PlaybackError {
	var perr *PlaybackError
	if errors.As(err, &perr) {
		return perr
	}
	return &PlaybackError{Kind: classify(err), Op: op, Err: err}
}

func classify(err error) FailureKind {
	switch {
	case errors.Is(err, ErrAutoplayBlocked):
		return FailureAutoplay
	case errors.Is(err, audio.ErrUnsupported), errors.Is(err, ErrNoSource):
		return FailureUnsupported
	case errors.Is(err, audio.ErrNotWAV), errors.Is(err, ErrDecode):
		return FailureDecode
	case errors.Is(err, ErrNetwork), errors.Is(err, errors.ErrTransport),
		errors.Is(err, context.DeadlineExceeded):
		return FailureNetwork
	default:
		return FailureUnknown
	}
}
