package document

import (
	"context"
	"log/slog"
	"sync"

	"github.com/listenupapp/readalong/internal/logger"
)

// QueueState is the render queue's state.
type QueueState int

// Render queue states.
const (
	Idle QueueState = iota
	Rendering
	RenderingWithPending
)

func (s QueueState) String() string {
	switch s {
	case Rendering:
		return "rendering"
	case RenderingWithPending:
		return "rendering_with_pending"
	default:
		return "idle"
	}
}

// RenderFunc renders one page.
type RenderFunc func(ctx context.Context, page int) error

// RenderQueue runs at most one render at a time and remembers at most one
// pending page. A request made while rendering replaces any earlier pending
// request; when the render finishes the pending page starts immediately.
type RenderQueue struct {
	mu      sync.Mutex
	state   QueueState
	current int
	pending int
	idle    *sync.Cond

	render RenderFunc
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger
}

// NewRenderQueue creates an idle queue.
func NewRenderQueue(render RenderFunc, log *slog.Logger) *RenderQueue {
	ctx, cancel := context.WithCancel(context.Background())
	q := &RenderQueue{
		render: render,
		ctx:    ctx,
		cancel: cancel,
		logger: logger.OrDiscard(log),
	}
	q.idle = sync.NewCond(&q.mu)
	return q
}

// Request asks for page to be rendered.
func (q *RenderQueue) Request(page int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.ctx.Err() != nil {
		return
	}
	switch q.state {
	case Idle:
		q.state = Rendering
		q.current = page
		go q.run(page)
	default:
		if q.pending != 0 && q.pending != page {
			q.logger.Debug("render request superseded", "dropped", q.pending, "page", page)
		}
		q.pending = page
		q.state = RenderingWithPending
	}
}

func (q *RenderQueue) run(page int) {
	for {
		if err := q.render(q.ctx, page); err != nil {
			q.logger.Warn("page render failed", "page", page, "error", err)
		}

		q.mu.Lock()
		if q.pending == 0 || q.ctx.Err() != nil {
			q.state = Idle
			q.current = 0
			q.pending = 0
			q.idle.Broadcast()
			q.mu.Unlock()
			return
		}
		page = q.pending
		q.pending = 0
		q.current = page
		q.state = Rendering
		q.mu.Unlock()
	}
}

// State returns the current state.
func (q *RenderQueue) State() QueueState {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state
}

// Current returns the page being rendered, if any.
func (q *RenderQueue) Current() (int, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.current, q.state != Idle
}

// Pending returns the remembered page, if any.
func (q *RenderQueue) Pending() (int, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending, q.pending != 0
}

// Wait blocks until the queue is idle.
func (q *RenderQueue) Wait() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.state != Idle {
		q.idle.Wait()
	}
}

// Close cancels the in-flight render's context and drops the pending page.
func (q *RenderQueue) Close() {
	q.mu.Lock()
	q.pending = 0
	q.mu.Unlock()
	q.cancel()
}
