package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestManualFiresInOrder(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewManual(start)

	var fired []string
	m.Schedule(time.Second, func() { fired = append(fired, "tick") })
	m.Schedule(3*time.Second, func() { fired = append(fired, "poll") })

	m.Advance(3 * time.Second)

	assert.Equal(t, []string{"tick", "tick", "tick", "poll"}, fired)
	assert.Equal(t, start.Add(3*time.Second), m.Now())
}

func TestManualCancel(t *testing.T) {
	m := NewManual(time.Now())

	calls := 0
	cancel := m.Schedule(time.Second, func() { calls++ })
	m.Advance(2 * time.Second)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, m.Active())

	cancel()
	cancel()
	m.Advance(5 * time.Second)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 0, m.Active())
}

func TestManualCancelFromCallback(t *testing.T) {
	m := NewManual(time.Now())

	calls := 0
	var cancel CancelFunc
	cancel = m.Schedule(time.Second, func() {
		calls++
		cancel()
	})

	m.Advance(10 * time.Second)
	assert.Equal(t, 1, calls)
}

func TestTickerScheduler(t *testing.T) {
	s := New()
	ticks := make(chan struct{}, 10)
	cancel := s.Schedule(5*time.Millisecond, func() { ticks <- struct{}{} })
	defer cancel()

	select {
	case <-ticks:
	case <-time.After(time.Second):
		t.Fatal("ticker scheduler never fired")
	}
}
