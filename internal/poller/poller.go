// Package poller watches an audiobook's processing status until it is complete.
package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/listenupapp/readalong/internal/domain"
	"github.com/listenupapp/readalong/internal/errors"
	"github.com/listenupapp/readalong/internal/logger"
)

// Defaults used when the config leaves a field zero.
const (
	DefaultInterval      = 5 * time.Second
	DefaultMaxIterations = 120
)

// FetchFunc returns the current manifest of a book.
type FetchFunc func(ctx context.Context, bookID string) (*domain.Manifest, error)

// Config configures a Poller.
//
// Backoff is accepted for configuration compatibility and not applied: the
// interval is fixed.
type Config struct {
	Interval      time.Duration
	MaxIterations int
	Backoff       float64
	Fetch         FetchFunc
	// OnUpdate receives every manifest that grew since the last one.
	OnUpdate func(*domain.Manifest)
	// OnExhausted is called once when the iteration cap is reached first.
	OnExhausted func(error)
	Logger      *slog.Logger
}

// Poller fetches a book's status at a fixed interval until the manifest is
// complete, the iteration cap is reached, or it is stopped. At most one book
// is polled at a time.
type Poller struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	gen     uint64
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// New creates an idle poller.
func New(cfg Config) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	return &Poller{cfg: cfg, logger: logger.OrDiscard(cfg.Logger).With("component", "poller")}
}

// Start polls bookID, replacing any book being polled. last is the manifest
// already known, used to suppress unchanged updates; it may be nil.
func (p *Poller) Start(ctx context.Context, bookID string, last *domain.Manifest) {
	p.Stop()

	p.mu.Lock()
	defer p.mu.Unlock()
	p.gen++
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true
	go p.run(ctx, p.gen, p.done, bookID, last)
}

// Stop cancels polling and waits for the loop to exit. Stopping an idle
// poller does nothing.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.running = false
	p.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// Running reports whether a book is being polled.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *Poller) run(ctx context.Context, gen uint64, done chan struct{}, bookID string, last *domain.Manifest) {
	defer close(done)

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	log := p.logger.With("book", bookID)
	for i := 1; ; i++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		m, err := p.cfg.Fetch(ctx, bookID)
		switch {
		case ctx.Err() != nil:
			return
		case err != nil:
			log.Warn("status poll failed", "iteration", i, "error", err)
		case last == nil || len(m.ReadyChunks) != len(last.ReadyChunks) || m.IsComplete != last.IsComplete:
			if last != nil && !m.Extends(last) {
				log.Warn("manifest changed existing chunks", "ready", len(m.ReadyChunks))
			}
			last = m
			if p.cfg.OnUpdate != nil {
				p.cfg.OnUpdate(m)
			}
		}

		if last != nil && last.IsComplete {
			log.Info("audiobook complete", "chunks", len(last.ReadyChunks), "iterations", i)
			p.finish(gen)
			return
		}
		if i >= p.cfg.MaxIterations {
			err := errors.ErrPollExhausted.WithDetails(map[string]any{
				"book_id":    bookID,
				"iterations": i,
			})
			log.Warn("status polling gave up", "iterations", i)
			if p.finish(gen) && p.cfg.OnExhausted != nil {
				p.cfg.OnExhausted(err)
			}
			return
		}
	}
}

// finish marks the loop of generation gen as ended. It reports false when a
// later Start or a Stop already took over.
func (p *Poller) finish(gen uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.gen != gen || !p.running {
		return false
	}
	p.running = false
	p.cancel()
	p.cancel = nil
	p.done = nil
	return true
}
