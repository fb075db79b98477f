package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Scripts run the check and the counter move in one round trip so the quota
// stays atomic across processes sharing the Redis instance.
var (
	grantScript = redis.NewScript(`
local granted = tonumber(redis.call('GET', KEYS[1]) or '0')
if granted >= tonumber(ARGV[1]) then
  return 0
end
redis.call('INCR', KEYS[1])
redis.call('EXPIRE', KEYS[1], ARGV[2])
return 1`)

	revokeScript = redis.NewScript(`
local granted = tonumber(redis.call('GET', KEYS[1]) or '0')
if granted <= 0 then
  return 0
end
redis.call('DECR', KEYS[1])
return 1`)
)

// Keys expire two days after last touch; date rollover makes stale counters
// unreachable anyway.
const quotaKeyTTL = 48 * time.Hour

// RedisQuotaStore is a Redis-backed daily quota counter, keyed by civil date.
type RedisQuotaStore struct {
	client    redis.Scripter
	max       int
	keyPrefix string
}

// NewRedisQuotaStore constructs a Redis-backed quota store with the given
// daily maximum.
func NewRedisQuotaStore(client redis.Scripter, max int) *RedisQuotaStore {
	return &RedisQuotaStore{
		client:    client,
		max:       max,
		keyPrefix: "quota:r1:",
	}
}

func (s *RedisQuotaStore) key(date string) string {
	return s.keyPrefix + date
}

// Grant atomically consumes one unit of the date's quota.
func (s *RedisQuotaStore) Grant(ctx context.Context, date string) (bool, error) {
	res, err := grantScript.Run(ctx, s.client, []string{s.key(date)}, s.max, int(quotaKeyTTL.Seconds())).Int()
	if err != nil {
		return false, fmt.Errorf("grant quota: %w", err)
	}
	return res == 1, nil
}

// Revoke atomically returns one unit, never taking the counter below zero.
func (s *RedisQuotaStore) Revoke(ctx context.Context, date string) error {
	if err := revokeScript.Run(ctx, s.client, []string{s.key(date)}).Err(); err != nil {
		return fmt.Errorf("revoke quota: %w", err)
	}
	return nil
}

// Status reports granted, max and remaining for the date.
func (s *RedisQuotaStore) Status(ctx context.Context, date string) (QuotaStatus, error) {
	granted, err := s.client.Eval(ctx, `return tonumber(redis.call('GET', KEYS[1]) or '0')`, []string{s.key(date)}).Int()
	if err != nil {
		return QuotaStatus{}, fmt.Errorf("quota status: %w", err)
	}
	return QuotaStatus{
		Date:      date,
		Granted:   granted,
		Max:       s.max,
		Remaining: s.max - granted,
	}, nil
}

// Reset clears the date's counter. Test and reset support.
func (s *RedisQuotaStore) Reset(ctx context.Context, date string) error {
	if err := s.client.Eval(ctx, `redis.call('DEL', KEYS[1]) return 1`, []string{s.key(date)}).Err(); err != nil {
		return fmt.Errorf("reset quota: %w", err)
	}
	return nil
}
