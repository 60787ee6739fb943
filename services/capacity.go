package services

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const workerLoadPrefix = "worker:load:"

// RedisCapacityTracker keeps a per-worker counter of currently assigned
// issues in Redis. Assignment increments it, terminal transitions release
// it, and the admin worker listing reads it back.
type RedisCapacityTracker struct {
	client *redis.Client
}

func NewRedisCapacityTracker(client *redis.Client) *RedisCapacityTracker {
	return &RedisCapacityTracker{client: client}
}

func (t *RedisCapacityTracker) IncrementLoad(ctx context.Context, workerID primitive.ObjectID) error {
	return t.client.Incr(ctx, workerLoadPrefix+workerID.Hex()).Err()
}

func (t *RedisCapacityTracker) DecrementLoad(ctx context.Context, workerID primitive.ObjectID) error {
	key := workerLoadPrefix + workerID.Hex()
	count, err := t.client.Decr(ctx, key).Result()
	if err != nil {
		return err
	}
	// Keep the counter non-negative if a decrement raced a missing key.
	if count < 0 {
		return t.client.Set(ctx, key, 0, 0).Err()
	}
	return nil
}

// GetLoad returns the worker's current load; a missing key means zero.
func (t *RedisCapacityTracker) GetLoad(ctx context.Context, workerID primitive.ObjectID) (int64, error) {
	count, err := t.client.Get(ctx, workerLoadPrefix+workerID.Hex()).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return count, err
}
