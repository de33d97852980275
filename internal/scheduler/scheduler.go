// Package scheduler runs repeating callbacks. Countdown ticks and status polls
// go through it so tests can drive them with virtual time.
package scheduler

import (
	"sync"
	"time"
)

type CancelFunc func()

type Scheduler interface {
	Now() time.Time
	// Schedule calls fn every interval until the returned CancelFunc is called.
	// CancelFunc is safe to call more than once.
	Schedule(interval time.Duration, fn func()) CancelFunc
}

type tickerScheduler struct{}

func New() Scheduler {
	return tickerScheduler{}
}

func (tickerScheduler) Now() time.Time {
	return time.Now()
}

func (tickerScheduler) Schedule(interval time.Duration, fn func()) CancelFunc {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				fn()
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() { close(done) })
	}
}
