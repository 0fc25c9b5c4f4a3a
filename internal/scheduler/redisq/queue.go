package redisq

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"oracle/pkg/errors"
	"oracle/pkg/logger"
)

// queueKey is the sorted set holding pending job keys scored by due time.
const queueKey = "oracle:retry:queue"

// Queue is a Redis sorted-set delay queue. Entries are scored by their due
// unix timestamp; Due claims ripe entries with an atomic remove so each key
// fires from exactly one dispatcher.
type Queue struct {
	rdb *redis.Client
	log *logger.Logger
}

// New creates a delay queue on the given Redis client.
func New(rdb *redis.Client) *Queue {
	return &Queue{
		rdb: rdb,
		log: logger.Get().With("component", "delay_queue"),
	}
}

// Schedule registers jobKey to become due at the given time.
func (q *Queue) Schedule(ctx context.Context, jobKey string, at time.Time) error {
	err := q.rdb.ZAdd(ctx, queueKey, redis.Z{
		Score:  float64(at.UTC().Unix()),
		Member: jobKey,
	}).Err()
	if err != nil {
		return errors.Wrapf(errors.ErrSchedulingFailed, "register %s: %v", jobKey, err)
	}

	q.log.Debugw("Job scheduled", "job_key", jobKey, "at", at.UTC())
	return nil
}

// Cancel removes a registration. Unknown keys are ignored.
func (q *Queue) Cancel(ctx context.Context, jobKey string) error {
	if err := q.rdb.ZRem(ctx, queueKey, jobKey).Err(); err != nil {
		return errors.Wrapf(err, "cancel %s", jobKey)
	}
	return nil
}

// Due claims up to limit ripe job keys. ZRem returning 1 marks ownership, so
// concurrent dispatchers never claim the same key twice.
func (q *Queue) Due(ctx context.Context, now time.Time, limit int) ([]string, error) {
	candidates, err := q.rdb.ZRangeByScore(ctx, queueKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.UTC().Unix(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, errors.Wrap(err, "query due jobs")
	}

	var claimed []string
	for _, key := range candidates {
		removed, err := q.rdb.ZRem(ctx, queueKey, key).Result()
		if err != nil {
			return claimed, errors.Wrapf(err, "claim %s", key)
		}
		if removed == 1 {
			claimed = append(claimed, key)
		}
	}

	return claimed, nil
}
