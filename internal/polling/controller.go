// Package polling re-fetches order state on a fixed interval until the
// caller reports that there is nothing left to wait for.
package polling

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"zelyx-order-tracker/internal/scheduler"
)

var ErrFetchInFlight = errors.New("status fetch already in flight")

// PollFunc fetches once. stop=true ends polling after this fetch.
type PollFunc func(ctx context.Context) (stop bool, err error)

type Options struct {
	// FetchTimeout bounds a single poll. Zero means no extra bound.
	FetchTimeout time.Duration
	// OnDone runs once, after the poll that asked to stop.
	OnDone func()
	Logger *slog.Logger
}

type Controller struct {
	sched    scheduler.Scheduler
	interval time.Duration
	poll     PollFunc
	opts     Options

	mu       sync.Mutex
	ctx      context.Context
	stopCtx  context.CancelFunc
	cancel   scheduler.CancelFunc
	inFlight bool
	stopped  bool
	fetches  int
}

func NewController(sched scheduler.Scheduler, interval time.Duration, poll PollFunc, opts Options) *Controller {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Controller{
		sched:    sched,
		interval: interval,
		poll:     poll,
		opts:     opts,
	}
}

// Start schedules polling. Fetches run under a context derived from ctx that
// is cancelled by Stop.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil || c.stopped {
		return
	}

	c.ctx, c.stopCtx = context.WithCancel(ctx)
	c.cancel = c.sched.Schedule(c.interval, c.tick)
}

// Stop is idempotent. No scheduled fetch starts after it returns.
func (c *Controller) Stop() {
	c.mu.Lock()
	c.stopped = true
	cancel, stopCtx := c.cancel, c.stopCtx
	c.cancel = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if stopCtx != nil {
		stopCtx()
	}
}

// Running reports whether scheduled polling is active.
func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancel != nil && !c.stopped
}

// Fetches counts the polls that actually ran.
func (c *Controller) Fetches() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetches
}

// Refresh fetches right away, outside the schedule. It shares the in-flight
// guard with scheduled ticks but also works after polling stopped.
func (c *Controller) Refresh(ctx context.Context) error {
	if !c.acquire(true) {
		return ErrFetchInFlight
	}
	return c.run(ctx)
}

func (c *Controller) tick() {
	if !c.acquire(false) {
		c.opts.Logger.Debug("skipping poll tick")
		return
	}

	c.mu.Lock()
	ctx := c.ctx
	c.mu.Unlock()

	c.run(ctx)
}

func (c *Controller) acquire(manual bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.inFlight || (!manual && c.stopped) {
		return false
	}
	c.inFlight = true
	c.fetches++
	return true
}

func (c *Controller) run(ctx context.Context) error {
	if c.opts.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.FetchTimeout)
		defer cancel()
	}

	stop, err := c.poll(ctx)

	c.mu.Lock()
	c.inFlight = false
	finish := stop && err == nil && !c.stopped
	c.mu.Unlock()

	if err != nil {
		c.opts.Logger.Warn("status poll failed, retrying on next tick", slog.Any("error", err))
		return err
	}

	if finish {
		c.Stop()
		if c.opts.OnDone != nil {
			c.opts.OnDone()
		}
	}
	return nil
}
