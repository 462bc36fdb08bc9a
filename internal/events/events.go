// Package events provides the typed publish/subscribe dispatcher that decouples
// audio engine callbacks from controller and UI updates.
//
// Handlers run synchronously on the publishing goroutine, in subscription order,
// against a snapshot of the channel's handlers taken when Publish is called.
// A handler that returns an error or panics is logged and skipped; the remaining
// handlers still run and Publish never propagates the failure.
//
//	d := events.NewDispatcher(log)
//	sub := d.Subscribe(events.Ready, func(e events.Event) error {
//	    return engine.SetRate(ctx, rate)
//	})
//	defer d.Unsubscribe(sub)
package events

import (
	"time"
)

// Channel is one of the fixed event names.
type Channel string

// Engine channels. Every engine variant reports native events with these names.
const (
	Loading      Channel = "loading"
	Ready        Channel = "ready"
	Play         Channel = "play"
	Pause        Channel = "pause"
	Finish       Channel = "finish"
	Error        Channel = "error"
	TimeUpdate   Channel = "timeupdate"
	AudioProcess Channel = "audioprocess"
	Seeking      Channel = "seeking"
)

// Controller channels, published for user-facing surfaces.
const (
	State    Channel = "state"
	Chunk    Channel = "chunk"
	Page     Channel = "page"
	Status   Channel = "status"
	Manifest Channel = "manifest"
)

var channels = map[Channel]struct{}{
	Loading: {}, Ready: {}, Play: {}, Pause: {}, Finish: {}, Error: {},
	TimeUpdate: {}, AudioProcess: {}, Seeking: {},
	State: {}, Chunk: {}, Page: {}, Status: {}, Manifest: {},
}

// Valid reports whether c is a known channel.
func (c Channel) Valid() bool {
	_, ok := channels[c]
	return ok
}

// EngineChannels lists the channels engines publish on.
func EngineChannels() []Channel {
	return []Channel{Loading, Ready, Play, Pause, Finish, Error, TimeUpdate, AudioProcess, Seeking}
}

// Event is a message delivered on a channel.
// Time and Duration are in seconds and relative to the loaded source.
type Event struct {
	Channel  Channel
	Time     float64
	Duration float64
	Err      error
	Payload  any
	At       time.Time
}

// Handler receives events. A returned error is logged by the dispatcher.
type Handler func(Event) error

// Subscription identifies one registration; pass it to Unsubscribe.
type Subscription struct {
	ID      uint64
	Channel Channel
}
