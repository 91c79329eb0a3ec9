package database

import (
	"context"
	"time"

	"github.com/go-redis/redis/v9"
	"github.com/pkg/errors"
)

const schedulerLeaseKey = "thriftwatch:scheduler:lease"

func ConnectRedis(ctx context.Context, redisURI string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURI)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse Redis URI: %s", redisURI)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to ping Redis at: %s", redisURI)
	}
	return rdb, nil
}

// Locker hands out the scheduler run lease so overlapping ticks, or multiple
// instances sharing one Redis, do not execute the same cycle twice.
type Locker struct {
	RDB *redis.Client
}

func (l Locker) AcquireRunLease(ctx context.Context, ttl time.Duration) (bool, error) {
	ok, err := l.RDB.SetNX(ctx, schedulerLeaseKey, time.Now().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, errors.Wrap(err, "error acquiring scheduler run lease")
	}
	return ok, nil
}

func (l Locker) ReleaseRunLease(ctx context.Context) error {
	err := l.RDB.Del(ctx, schedulerLeaseKey).Err()
	return errors.Wrap(err, "error releasing scheduler run lease")
}
