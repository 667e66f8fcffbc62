package lease

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"ShortsPublisher/internal/ports"
)

const (
	leasePrefix    = "shorts:lease:"
	resumeQueueKey = "shorts:resume"
)

// RedisLeaseStore grants per-item processing claims through SET NX with a
// TTL, so a crashed worker's claim expires on its own.
type RedisLeaseStore struct {
	client *redis.Client
}

var _ ports.LeaseStore = (*RedisLeaseStore)(nil)

// NewRedisLeaseStore wires a redis client.
func NewRedisLeaseStore(client *redis.Client) *RedisLeaseStore {
	return &RedisLeaseStore{client: client}
}

// TryAcquire claims the item for ttl. A false result means another worker
// holds the lease.
func (s *RedisLeaseStore) TryAcquire(ctx context.Context, itemID string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, leasePrefix+itemID, "held", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lease %s: %w", itemID, err)
	}
	return ok, nil
}

// Release drops the claim early. Releasing an expired lease is harmless.
func (s *RedisLeaseStore) Release(ctx context.Context, itemID string) error {
	if err := s.client.Del(ctx, leasePrefix+itemID).Err(); err != nil {
		return fmt.Errorf("release lease %s: %w", itemID, err)
	}
	return nil
}

// RedisResumeQueue re-enqueues parked items after an external decision so
// the next tick picks them up without a blocked worker.
type RedisResumeQueue struct {
	client *redis.Client
}

var _ ports.ResumeQueue = (*RedisResumeQueue)(nil)

// NewRedisResumeQueue wires a redis client.
func NewRedisResumeQueue(client *redis.Client) *RedisResumeQueue {
	return &RedisResumeQueue{client: client}
}

// Push appends an item id to the queue.
func (q *RedisResumeQueue) Push(ctx context.Context, itemID string) error {
	if err := q.client.LPush(ctx, resumeQueueKey, itemID).Err(); err != nil {
		return fmt.Errorf("push resume %s: %w", itemID, err)
	}
	return nil
}

// Pop takes the oldest queued item id; the second result is false when the
// queue is empty.
func (q *RedisResumeQueue) Pop(ctx context.Context) (string, bool, error) {
	itemID, err := q.client.RPop(ctx, resumeQueueKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("pop resume: %w", err)
	}
	return itemID, true, nil
}
