package events

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/listenupapp/readalong/internal/errors"
	"github.com/listenupapp/readalong/internal/logger"
)

type registration struct {
	id      uint64
	handler Handler
}

// Stats are cumulative dispatcher counters.
type Stats struct {
	Published uint64
	Delivered uint64
	Failed    uint64
}

// Dispatcher is a named-channel publish/subscribe hub. It is safe for concurrent use.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[Channel][]registration
	logger   *slog.Logger

	nextID    atomic.Uint64
	published atomic.Uint64
	delivered atomic.Uint64
	failed    atomic.Uint64
}

// NewDispatcher creates an empty dispatcher. A nil logger discards handler failures.
func NewDispatcher(log *slog.Logger) *Dispatcher {
	return &Dispatcher{
		handlers: make(map[Channel][]registration),
		logger:   logger.OrDiscard(log),
	}
}

// Subscribe registers h on channel. Subscribing to an unknown channel panics,
// as it can only result from a programming error.
func (d *Dispatcher) Subscribe(channel Channel, h Handler) Subscription {
	if !channel.Valid() {
		panic(fmt.Sprintf("events: subscribe to unknown channel %q", channel))
	}
	if h == nil {
		panic("events: nil handler")
	}

	sub := Subscription{ID: d.nextID.Add(1), Channel: channel}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[channel] = append(d.handlers[channel], registration{id: sub.ID, handler: h})
	return sub
}

// Unsubscribe removes a registration. Unknown subscriptions are ignored.
func (d *Dispatcher) Unsubscribe(sub Subscription) {
	d.mu.Lock()
	defer d.mu.Unlock()

	regs := d.handlers[sub.Channel]
	for i, r := range regs {
		if r.id == sub.ID {
			// Copy so in-flight snapshots keep their backing array.
			next := make([]registration, 0, len(regs)-1)
			next = append(next, regs[:i]...)
			next = append(next, regs[i+1:]...)
			if len(next) == 0 {
				delete(d.handlers, sub.Channel)
			} else {
				d.handlers[sub.Channel] = next
			}
			return
		}
	}
}

// Publish delivers e to the handlers registered on channel when Publish was called.
// It returns a validation error only for an unknown channel.
func (d *Dispatcher) Publish(channel Channel, e Event) error {
	if !channel.Valid() {
		return errors.Validationf("unknown event channel %q", channel)
	}
	e.Channel = channel
	if e.At.IsZero() {
		e.At = time.Now()
	}

	d.mu.RLock()
	snapshot := d.handlers[channel]
	d.mu.RUnlock()

	d.published.Add(1)
	for _, r := range snapshot {
		if err := d.deliver(r, e); err != nil {
			d.failed.Add(1)
			d.logger.Warn("event handler failed",
				"channel", string(channel),
				"subscription", r.id,
				"error", err,
			)
			continue
		}
		d.delivered.Add(1)
	}
	return nil
}

func (d *Dispatcher) deliver(r registration, e Event) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("handler panic: %v", rec)
		}
	}()
	return r.handler(e)
}

// Clear removes every registration.
func (d *Dispatcher) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers = make(map[Channel][]registration)
}

// Len returns the number of handlers registered on channel.
func (d *Dispatcher) Len(channel Channel) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.handlers[channel])
}

// Stats returns a snapshot of the dispatcher counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Published: d.published.Load(),
		Delivered: d.delivered.Load(),
		Failed:    d.failed.Load(),
	}
}
