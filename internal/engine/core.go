package engine

import (
	"context"
	"log/slog"
	"sync"

	"github.com/listenupapp/readalong/internal/errors"
	"github.com/listenupapp/readalong/internal/events"
	"github.com/listenupapp/readalong/internal/logger"
)

// core holds state shared by both engine variants.
type core struct {
	mu          sync.Mutex
	initialized bool
	loop        bool
	ctx         context.Context
	cancel      context.CancelFunc

	dispatcher *events.Dispatcher
	logger     *slog.Logger
}

func (c *core) setup(d *events.Dispatcher, log *slog.Logger) {
	c.dispatcher = d
	c.logger = logger.OrDiscard(log)
}

func (c *core) start(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.initialized {
		return false
	}
	c.ctx, c.cancel = context.WithCancel(context.WithoutCancel(ctx))
	c.initialized = true
	return true
}

func (c *core) stop() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.initialized {
		return false
	}
	c.initialized = false
	c.cancel()
	return true
}

func (c *core) check(op string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.initialized {
		return errors.NotInitialized(op)
	}
	return nil
}

func (c *core) context() context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ctx == nil {
		return context.Background()
	}
	return c.ctx
}

func (c *core) setLoop(loop bool) {
	c.mu.Lock()
	c.loop = loop
	c.mu.Unlock()
}

func (c *core) looping() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loop
}

func (c *core) publish(ch events.Channel, ev events.Event) {
	if err := c.dispatcher.Publish(ch, ev); err != nil {
		c.logger.Error("publish failed", "channel", string(ch), "error", err)
	}
}

// fail reports err on the error channel and returns it classified.
func (c *core) fail(op string, err error) *PlaybackError {
	perr := newPlaybackError(op, err)
	c.logger.Warn("playback error", "op", perr.Op, "kind", string(perr.Kind), "error", perr.Err)
	c.publish(events.Error, events.Event{Err: perr})
	return perr
}

// restart replays from the beginning; used for manual looping.
func (c *core) restart(seek func(float64) error, play func(context.Context) error) {
	if err := seek(0); err != nil {
		c.fail("loop", err)
		return
	}
	if err := play(c.context()); err != nil {
		c.fail("loop", err)
	}
}
