// Package notify keeps the toast messages a storefront view has not shown yet.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

const defaultLimit = 50

type Toast struct {
	ID        string
	Level     Level
	Message   string
	CreatedAt time.Time
}

// Feed is a bounded queue of toasts. Every toast is also logged.
type Feed struct {
	logger *slog.Logger
	limit  int
	now    func() time.Time

	mu     sync.Mutex
	toasts []Toast
}

func NewFeed(logger *slog.Logger, now func() time.Time) *Feed {
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &Feed{
		logger: logger,
		limit:  defaultLimit,
		now:    now,
	}
}

func (f *Feed) Info(msg string)    { f.push(LevelInfo, msg) }
func (f *Feed) Success(msg string) { f.push(LevelSuccess, msg) }
func (f *Feed) Warn(msg string)    { f.push(LevelWarning, msg) }
func (f *Feed) Error(msg string)   { f.push(LevelError, msg) }

// Drain returns pending toasts oldest first and empties the feed.
func (f *Feed) Drain() []Toast {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := f.toasts
	f.toasts = nil
	if out == nil {
		out = []Toast{}
	}
	return out
}

func (f *Feed) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.toasts)
}

func (f *Feed) push(level Level, msg string) {
	f.logger.Log(context.Background(), slogLevel(level), msg, slog.String("toast", string(level)))

	f.mu.Lock()
	defer f.mu.Unlock()

	f.toasts = append(f.toasts, Toast{
		ID:        uuid.NewString(),
		Level:     level,
		Message:   msg,
		CreatedAt: f.now(),
	})
	if len(f.toasts) > f.limit {
		f.toasts = f.toasts[len(f.toasts)-f.limit:]
	}
}

func slogLevel(level Level) slog.Level {
	switch level {
	case LevelError:
		return slog.LevelError
	case LevelWarning:
		return slog.LevelWarn
	}
	return slog.LevelInfo
}
