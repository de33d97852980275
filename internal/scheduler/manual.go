package scheduler

import (
	"sync"
	"time"
)

// Manual is a Scheduler driven by Advance. Due callbacks run synchronously on
// the caller's goroutine, in deadline order.
type Manual struct {
	mu    sync.Mutex
	now   time.Time
	tasks []*manualTask
}

type manualTask struct {
	interval  time.Duration
	next      time.Time
	fn        func()
	cancelled bool
}

func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Manual) Schedule(interval time.Duration, fn func()) CancelFunc {
	m.mu.Lock()
	defer m.mu.Unlock()

	task := &manualTask{
		interval: interval,
		next:     m.now.Add(interval),
		fn:       fn,
	}
	m.tasks = append(m.tasks, task)

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		task.cancelled = true
	}
}

// Advance moves the clock forward by d, firing every callback that falls due.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)

	for {
		task := m.nextDue(target)
		if task == nil {
			break
		}
		m.now = task.next
		task.next = task.next.Add(task.interval)

		m.mu.Unlock()
		task.fn()
		m.mu.Lock()
	}

	m.now = target
	m.mu.Unlock()
}

// Active counts callbacks that have not been cancelled.
func (m *Manual) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, task := range m.tasks {
		if !task.cancelled {
			n++
		}
	}
	return n
}

func (m *Manual) nextDue(target time.Time) *manualTask {
	var due *manualTask
	live := m.tasks[:0]
	for _, task := range m.tasks {
		if task.cancelled {
			continue
		}
		live = append(live, task)
		if task.next.After(target) {
			continue
		}
		if due == nil || task.next.Before(due.next) {
			due = task
		}
	}
	m.tasks = live
	return due
}
