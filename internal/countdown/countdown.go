// Package countdown tracks the remaining payment time of one order.
//
// The deadline always comes from the backend's reported remaining time; the
// persisted copy is only a fallback for when the backend cannot be reached.
package countdown

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"zelyx-order-tracker/internal/repository"
	"zelyx-order-tracker/internal/scheduler"
)

const (
	DefaultPaymentWindow = 6 * time.Hour
	DefaultTickInterval  = time.Second

	storeTimeout = 5 * time.Second
)

type Options struct {
	// PaymentWindow only scales Progress, it never moves the deadline.
	PaymentWindow time.Duration
	TickInterval  time.Duration
	// OnExpire runs once, on the tick that reaches zero.
	OnExpire func()
	Logger   *slog.Logger
}

type State struct {
	Known     bool
	ExpiresAt time.Time
	Remaining time.Duration
	Expired   bool
	Progress  float64
}

type Countdown struct {
	orderNumber string
	repo        repository.DeadlineRepository
	sched       scheduler.Scheduler
	opts        Options

	mu        sync.Mutex
	known     bool
	expiresAt time.Time
	remaining time.Duration
	expired   bool
	cancel    scheduler.CancelFunc
}

func New(orderNumber string, repo repository.DeadlineRepository, sched scheduler.Scheduler, opts Options) *Countdown {
	if opts.PaymentWindow <= 0 {
		opts.PaymentWindow = DefaultPaymentWindow
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Countdown{
		orderNumber: orderNumber,
		repo:        repo,
		sched:       sched,
		opts:        opts,
	}
}

// Start sets the deadline from a fresh server value and persists it. The
// in-memory countdown is updated even when persisting fails.
func (c *Countdown) Start(ctx context.Context, serverRemaining time.Duration) error {
	if serverRemaining < 0 {
		serverRemaining = 0
	}

	c.mu.Lock()
	c.expiresAt = c.sched.Now().Add(serverRemaining)
	c.remaining = serverRemaining
	c.known = true
	c.expired = false
	expiresAt := c.expiresAt
	c.mu.Unlock()

	if err := c.repo.Save(ctx, c.orderNumber, expiresAt); err != nil {
		return fmt.Errorf("persist deadline for %s: %w", c.orderNumber, err)
	}
	return nil
}

// Restore loads the persisted deadline. It reports false when nothing was
// persisted, in which case the countdown stays unknown.
func (c *Countdown) Restore(ctx context.Context) (bool, error) {
	expiresAt, err := c.repo.Get(ctx, c.orderNumber)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("load deadline for %s: %w", c.orderNumber, err)
	}

	c.mu.Lock()
	c.expiresAt = expiresAt
	c.remaining = c.untilDeadline()
	c.known = true
	c.expired = false
	c.mu.Unlock()

	return true, nil
}

// Tick recomputes the remaining time. It never lets the value grow between
// two Start/Restore calls.
func (c *Countdown) Tick(ctx context.Context) {
	c.mu.Lock()
	if !c.known || c.expired {
		c.mu.Unlock()
		return
	}

	remaining := c.untilDeadline()
	if remaining > c.remaining {
		remaining = c.remaining
	}
	c.remaining = remaining

	if remaining > 0 {
		c.mu.Unlock()
		return
	}

	c.expired = true
	c.mu.Unlock()

	if err := c.repo.Delete(ctx, c.orderNumber); err != nil {
		c.opts.Logger.Warn("failed to clear persisted deadline",
			slog.String("order_number", c.orderNumber),
			slog.Any("error", err),
		)
	}

	c.opts.Logger.Info("payment window expired", slog.String("order_number", c.orderNumber))
	if c.opts.OnExpire != nil {
		c.opts.OnExpire()
	}
}

// Run starts ticking on the scheduler. Calling it twice keeps a single timer.
func (c *Countdown) Run() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		return
	}
	c.cancel = c.sched.Schedule(c.opts.TickInterval, func() {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		c.Tick(ctx)
	})
}

func (c *Countdown) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Discard stops ticking and forgets the deadline, in memory and persisted.
// Used once the payment no longer waits on the window.
func (c *Countdown) Discard(ctx context.Context) error {
	c.Stop()

	c.mu.Lock()
	wasKnown := c.known
	c.known = false
	c.expired = false
	c.remaining = 0
	c.expiresAt = time.Time{}
	c.mu.Unlock()

	if !wasKnown {
		return nil
	}
	if err := c.repo.Delete(ctx, c.orderNumber); err != nil {
		return fmt.Errorf("clear deadline for %s: %w", c.orderNumber, err)
	}
	return nil
}

func (c *Countdown) Remaining() (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining, c.known
}

func (c *Countdown) Expired() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expired
}

// Progress is the elapsed share of the payment window, 0 to 100.
func (c *Countdown) Progress() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.progress()
}

func (c *Countdown) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return State{
		Known:     c.known,
		ExpiresAt: c.expiresAt,
		Remaining: c.remaining,
		Expired:   c.expired,
		Progress:  c.progress(),
	}
}

func (c *Countdown) progress() float64 {
	if !c.known {
		return 0
	}

	window := c.opts.PaymentWindow
	elapsed := window - c.remaining
	pct := float64(elapsed) / float64(window) * 100
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

func (c *Countdown) untilDeadline() time.Duration {
	remaining := c.expiresAt.Sub(c.sched.Now())
	if remaining < 0 {
		return 0
	}
	return remaining
}
