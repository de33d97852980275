package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// expired deadlines are kept around for a day so a late restore still
// reports the order as expired instead of unknown
const redisDeadlineGrace = 24 * time.Hour

type redisDeadlineRepo struct {
	client    *redis.Client
	keyPrefix string
}

func NewRedisDeadlineRepository(client *redis.Client, keyPrefix string) DeadlineRepository {
	return &redisDeadlineRepo{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

func (r *redisDeadlineRepo) key(orderNumber string) string {
	return r.keyPrefix + orderNumber
}

func (r *redisDeadlineRepo) Get(ctx context.Context, orderNumber string) (time.Time, error) {
	val, err := r.client.Get(ctx, r.key(orderNumber)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return time.Time{}, ErrNotFound
		}
		return time.Time{}, fmt.Errorf("failed to get deadline from redis: %w", err)
	}

	ms, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("corrupt deadline for %s: %w", orderNumber, err)
	}
	return time.UnixMilli(ms), nil
}

func (r *redisDeadlineRepo) Save(ctx context.Context, orderNumber string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt) + redisDeadlineGrace
	if ttl <= 0 {
		return r.Delete(ctx, orderNumber)
	}

	err := r.client.Set(ctx, r.key(orderNumber), strconv.FormatInt(expiresAt.UnixMilli(), 10), ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to set deadline in redis: %w", err)
	}
	return nil
}

func (r *redisDeadlineRepo) Delete(ctx context.Context, orderNumber string) error {
	if err := r.client.Del(ctx, r.key(orderNumber)).Err(); err != nil {
		return fmt.Errorf("failed to delete deadline from redis: %w", err)
	}
	return nil
}
