// Package lock serializes execution and rollback for the same plan. A
// rollback must never race a still-in-flight execution, so both paths take
// the plan lock first.
package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrLockHeld is returned when another worker holds the plan lock.
var ErrLockHeld = fmt.Errorf("plan lock already held")

// RedisLocker implements ports.PlanLocker with SET NX and a TTL, so a
// crashed worker cannot hold a plan hostage forever. Release is
// owner-checked: a lock that expired and was re-acquired elsewhere is not
// released by the late original holder.
type RedisLocker struct {
	client *redis.Client
	log    *logrus.Logger
}

// NewRedisLocker connects to Redis and verifies the connection.
func NewRedisLocker(redisURL string, log *logrus.Logger) (*RedisLocker, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisLocker{client: client, log: log}, nil
}

// Acquire takes the plan lock or fails fast with ErrLockHeld.
func (l *RedisLocker) Acquire(ctx context.Context, planID string, ttl time.Duration) (func(), error) {
	key := "opsconsole:planlock:" + planID
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire plan lock: %w", err)
	}
	if !ok {
		return nil, ErrLockHeld
	}

	release := func() {
		// Delete only if we still own the lock.
		script := redis.NewScript(`
			if redis.call("get", KEYS[1]) == ARGV[1] then
				return redis.call("del", KEYS[1])
			end
			return 0
		`)
		if err := script.Run(context.Background(), l.client, []string{key}, token).Err(); err != nil && err != redis.Nil {
			l.log.WithError(err).WithField("plan_id", planID).Warn("failed to release plan lock")
		}
	}
	return release, nil
}
