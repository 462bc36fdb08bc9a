package engine

import (
	"sync"
	"time"
)

// Sampler calls a function on a fixed interval between Start and Stop.
// Start while running and Stop while stopped are no-ops.
type Sampler struct {
	mu       sync.Mutex
	interval time.Duration
	fn       func()
	stop     chan struct{}
	starts   int
}

// NewSampler creates a stopped sampler.
func NewSampler(interval time.Duration, fn func()) *Sampler {
	return &Sampler{interval: interval, fn: fn}
}

// Start begins sampling and reports whether a new loop was started.
func (s *Sampler) Start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		return false
	}
	s.stop = make(chan struct{})
	s.starts++
	go s.run(s.stop)
	return true
}

// Stop ends sampling and reports whether a running loop was stopped.
// It does not wait for the loop goroutine, so it is safe to call from fn.
func (s *Sampler) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop == nil {
		return false
	}
	close(s.stop)
	s.stop = nil
	return true
}

// Running reports whether the sampler is started.
func (s *Sampler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stop != nil
}

// Starts returns how many times a loop has been started.
func (s *Sampler) Starts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.starts
}

func (s *Sampler) run(stop chan struct{}) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			current := s.stop == stop
			s.mu.Unlock()
			if !current {
				return
			}
			s.fn()
		}
	}
}
