package countdown

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zelyx-order-tracker/internal/repository"
	"zelyx-order-tracker/internal/scheduler"
)

var epoch = time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

func TestStartPersistsDeadline(t *testing.T) {
	repo := repository.NewMemoryDeadlineRepository()
	sched := scheduler.NewManual(epoch)
	c := New("ORD-1001", repo, sched, Options{})

	require.NoError(t, c.Start(t.Context(), time.Hour))

	stored, err := repo.Get(t.Context(), "ORD-1001")
	require.NoError(t, err)
	assert.Equal(t, epoch.Add(time.Hour), stored)

	remaining, known := c.Remaining()
	assert.True(t, known)
	assert.Equal(t, time.Hour, remaining)
}

func TestRemainingIsNonIncreasing(t *testing.T) {
	sched := scheduler.NewManual(epoch)
	c := New("ORD-1", repository.NewMemoryDeadlineRepository(), sched, Options{})
	require.NoError(t, c.Start(t.Context(), 10*time.Second))
	c.Run()
	defer c.Stop()

	prev, _ := c.Remaining()
	for i := 0; i < 15; i++ {
		sched.Advance(time.Second)
		cur, _ := c.Remaining()
		assert.LessOrEqual(t, cur, prev)
		prev = cur
	}
	assert.Equal(t, time.Duration(0), prev)
	assert.True(t, c.Expired())
}

func TestZeroFromServerExpiresOnNextTick(t *testing.T) {
	repo := repository.NewMemoryDeadlineRepository()
	sched := scheduler.NewManual(epoch)

	expiredCalls := 0
	c := New("ORD-1", repo, sched, Options{OnExpire: func() { expiredCalls++ }})
	require.NoError(t, c.Start(t.Context(), 0))
	assert.False(t, c.Expired())

	c.Run()
	defer c.Stop()
	sched.Advance(time.Second)

	assert.True(t, c.Expired())
	assert.Equal(t, 1, expiredCalls)

	_, err := repo.Get(t.Context(), "ORD-1")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	sched.Advance(5 * time.Second)
	assert.Equal(t, 1, expiredCalls)
}

func TestRestoreAfterReload(t *testing.T) {
	repo := repository.NewMemoryDeadlineRepository()
	sched := scheduler.NewManual(epoch)

	first := New("ORD-1001", repo, sched, Options{})
	require.NoError(t, first.Start(t.Context(), time.Hour))
	first.Stop()

	elapsed := 17*time.Minute + 400*time.Millisecond
	sched.Advance(elapsed)

	// the server is unreachable after the reload
	reloaded := New("ORD-1001", repo, sched, Options{})
	ok, err := reloaded.Restore(t.Context())
	require.NoError(t, err)
	require.True(t, ok)

	reloaded.Run()
	defer reloaded.Stop()
	sched.Advance(DefaultTickInterval)

	remaining, known := reloaded.Remaining()
	require.True(t, known)
	want := time.Hour - elapsed
	assert.InDelta(t, float64(want), float64(remaining), float64(DefaultTickInterval))
}

func TestRestoreWithoutPersistedDeadline(t *testing.T) {
	c := New("ORD-9", repository.NewMemoryDeadlineRepository(), scheduler.NewManual(epoch), Options{})

	ok, err := c.Restore(t.Context())
	require.NoError(t, err)
	assert.False(t, ok)

	c.Tick(t.Context())
	_, known := c.Remaining()
	assert.False(t, known)
	assert.False(t, c.Expired())
}

func TestServerRefreshReplacesDeadline(t *testing.T) {
	sched := scheduler.NewManual(epoch)
	c := New("ORD-1", repository.NewMemoryDeadlineRepository(), sched, Options{})

	require.NoError(t, c.Start(t.Context(), time.Minute))
	sched.Advance(30 * time.Second)
	c.Tick(t.Context())

	require.NoError(t, c.Start(t.Context(), 2*time.Hour))
	remaining, _ := c.Remaining()
	assert.Equal(t, 2*time.Hour, remaining)
}

func TestProgress(t *testing.T) {
	sched := scheduler.NewManual(epoch)
	c := New("ORD-1", repository.NewMemoryDeadlineRepository(), sched, Options{PaymentWindow: 6 * time.Hour})

	assert.Equal(t, float64(0), c.Progress())

	require.NoError(t, c.Start(t.Context(), 3*time.Hour))
	assert.InDelta(t, 50.0, c.Progress(), 0.001)

	require.NoError(t, c.Start(t.Context(), 8*time.Hour))
	assert.Equal(t, float64(0), c.Progress())

	require.NoError(t, c.Start(t.Context(), 0))
	assert.Equal(t, float64(100), c.Progress())
}

func TestStopCancelsTimer(t *testing.T) {
	sched := scheduler.NewManual(epoch)
	c := New("ORD-1", repository.NewMemoryDeadlineRepository(), sched, Options{})
	require.NoError(t, c.Start(t.Context(), time.Minute))

	c.Run()
	c.Run()
	assert.Equal(t, 1, sched.Active())

	c.Stop()
	assert.Equal(t, 0, sched.Active())
}

func TestDiscardForgetsDeadline(t *testing.T) {
	repo := repository.NewMemoryDeadlineRepository()
	sched := scheduler.NewManual(epoch)
	expiredCalls := 0
	c := New("ORD-1", repo, sched, Options{OnExpire: func() { expiredCalls++ }})
	require.NoError(t, c.Start(t.Context(), time.Minute))
	c.Run()

	require.NoError(t, c.Discard(t.Context()))
	assert.Equal(t, 0, sched.Active())

	_, err := repo.Get(t.Context(), "ORD-1")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	sched.Advance(2 * time.Minute)
	state := c.State()
	assert.False(t, state.Known)
	assert.False(t, state.Expired)
	assert.Equal(t, float64(0), state.Progress)
	assert.Equal(t, 0, expiredCalls)

	// nothing left to clear
	require.NoError(t, c.Discard(t.Context()))
}
