package player

import (
	"sync"

	"github.com/listenupapp/readalong/internal/events"
)

// Status is the payload published on the status channel.
// An empty Message means the slot was cleared.
type Status struct {
	Message string
	Err     error
}

// Visible reports whether a message is shown.
func (s Status) Visible() bool {
	return s.Message != ""
}

// ErrorSlot is the single user-visible message. Setting it replaces whatever
// was shown before.
type ErrorSlot struct {
	mu         sync.Mutex
	current    Status
	dispatcher *events.Dispatcher
}

// NewErrorSlot creates an empty slot publishing changes on d.
func NewErrorSlot(d *events.Dispatcher) *ErrorSlot {
	return &ErrorSlot{dispatcher: d}
}

// Set shows msg.
func (s *ErrorSlot) Set(msg string) {
	s.replace(Status{Message: msg})
}

// SetError shows err's message.
func (s *ErrorSlot) SetError(err error) {
	if err == nil {
		s.Clear()
		return
	}
	s.replace(Status{Message: err.Error(), Err: err})
}

// Clear hides the message. Clearing an empty slot publishes nothing.
func (s *ErrorSlot) Clear() {
	s.mu.Lock()
	if !s.current.Visible() {
		s.mu.Unlock()
		return
	}
	s.current = Status{}
	s.mu.Unlock()
	s.publish(Status{})
}

// Current returns the shown status.
func (s *ErrorSlot) Current() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *ErrorSlot) replace(st Status) {
	s.mu.Lock()
	s.current = st
	s.mu.Unlock()
	s.publish(st)
}

func (s *ErrorSlot) publish(st Status) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(events.Status, events.Event{Err: st.Err, Payload: st})
}
