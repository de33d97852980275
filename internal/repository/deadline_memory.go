package repository

import (
	"context"
	"sync"
	"time"
)

type memoryDeadlineRepo struct {
	mu        sync.RWMutex
	deadlines map[string]time.Time
}

func NewMemoryDeadlineRepository() DeadlineRepository {
	return &memoryDeadlineRepo{
		deadlines: make(map[string]time.Time),
	}
}

func (r *memoryDeadlineRepo) Get(ctx context.Context, orderNumber string) (time.Time, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	expiresAt, ok := r.deadlines[orderNumber]
	if !ok {
		return time.Time{}, ErrNotFound
	}
	return expiresAt, nil
}

func (r *memoryDeadlineRepo) Save(ctx context.Context, orderNumber string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.deadlines[orderNumber] = expiresAt
	return nil
}

func (r *memoryDeadlineRepo) Delete(ctx context.Context, orderNumber string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.deadlines, orderNumber)
	return nil
}
