package polling

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zelyx-order-tracker/internal/scheduler"
)

func TestPollsAtInterval(t *testing.T) {
	sched := scheduler.NewManual(time.Now())
	calls := 0
	c := NewController(sched, 10*time.Second, func(ctx context.Context) (bool, error) {
		calls++
		return false, nil
	}, Options{})

	c.Start(t.Context())
	sched.Advance(9 * time.Second)
	assert.Equal(t, 0, calls)

	sched.Advance(21 * time.Second)
	assert.Equal(t, 3, calls)
	assert.True(t, c.Running())
}

func TestStopsAfterTerminalAndNeverPollsAgain(t *testing.T) {
	sched := scheduler.NewManual(time.Now())
	calls := 0
	done := 0
	c := NewController(sched, 30*time.Second, func(ctx context.Context) (bool, error) {
		calls++
		return calls == 2, nil
	}, Options{OnDone: func() { done++ }})

	c.Start(t.Context())
	sched.Advance(5 * time.Minute)

	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, done)
	assert.False(t, c.Running())
	assert.Equal(t, 0, sched.Active())

	// restarting a finished controller is a no-op
	c.Start(t.Context())
	sched.Advance(5 * time.Minute)
	assert.Equal(t, 2, calls)
}

func TestFailureKeepsPolling(t *testing.T) {
	sched := scheduler.NewManual(time.Now())
	calls := 0
	c := NewController(sched, time.Second, func(ctx context.Context) (bool, error) {
		calls++
		if calls < 3 {
			return true, errors.New("backend down")
		}
		return false, nil
	}, Options{})

	c.Start(t.Context())
	sched.Advance(4 * time.Second)

	assert.Equal(t, 4, calls)
	assert.True(t, c.Running())
}

func TestTickWhileFetchInFlightIsNoop(t *testing.T) {
	sched := scheduler.NewManual(time.Now())
	release := make(chan struct{})
	entered := make(chan struct{})

	var mu sync.Mutex
	calls := 0
	c := NewController(sched, time.Second, func(ctx context.Context) (bool, error) {
		mu.Lock()
		calls++
		first := calls == 1
		mu.Unlock()
		if first {
			close(entered)
			<-release
		}
		return false, nil
	}, Options{})
	c.Start(t.Context())

	refreshDone := make(chan error)
	go func() { refreshDone <- c.Refresh(t.Context()) }()
	<-entered

	sched.Advance(3 * time.Second)
	assert.ErrorIs(t, c.Refresh(t.Context()), ErrFetchInFlight)

	close(release)
	require.NoError(t, <-refreshDone)

	mu.Lock()
	assert.Equal(t, 1, calls)
	mu.Unlock()
	assert.Equal(t, 1, c.Fetches())

	sched.Advance(time.Second)
	assert.Equal(t, 2, c.Fetches())
}

func TestStopIsIdempotentAndCancelsContext(t *testing.T) {
	sched := scheduler.NewManual(time.Now())
	var pollCtx context.Context
	c := NewController(sched, time.Second, func(ctx context.Context) (bool, error) {
		pollCtx = ctx
		return false, nil
	}, Options{})

	c.Start(t.Context())
	sched.Advance(time.Second)
	require.NotNil(t, pollCtx)

	c.Stop()
	c.Stop()
	assert.Error(t, pollCtx.Err())

	sched.Advance(10 * time.Second)
	assert.Equal(t, 1, c.Fetches())
}

func TestRefreshAfterStop(t *testing.T) {
	sched := scheduler.NewManual(time.Now())
	done := 0
	c := NewController(sched, time.Second, func(ctx context.Context) (bool, error) {
		return true, nil
	}, Options{OnDone: func() { done++ }})

	c.Start(t.Context())
	sched.Advance(time.Second)
	assert.Equal(t, 1, done)

	require.NoError(t, c.Refresh(t.Context()))
	assert.Equal(t, 2, c.Fetches())
	assert.Equal(t, 1, done)
}
