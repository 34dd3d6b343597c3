package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// Strategy selects how request volume is accounted against a Policy.
type Strategy string

const (
	// Window counts requests in fixed, clock-aligned windows.
	Window Strategy = "window"
	// Sliding counts requests in a rolling window backed by a sorted set.
	Sliding Strategy = "sliding"
	// Bucket is a token bucket: Burst tokens, refilled at Refill per second.
	// Suited to the solve endpoints, where a short burst of submissions is
	// fine but sustained pressure would exhaust the worker pool.
	Bucket Strategy = "bucket"
)

// Policy bounds one class of traffic.
type Policy struct {
	Strategy Strategy      `json:"strategy"`
	Limit    int           `json:"limit"`
	Per      time.Duration `json:"per"`
	Burst    int           `json:"burst,omitempty"`
	Refill   int           `json:"refill,omitempty"` // tokens per second
}

// Quota reports a caller's standing after a decision.
type Quota struct {
	Limit      int           `json:"limit"`
	Remaining  int           `json:"remaining"`
	ResetAt    time.Time     `json:"reset_at"`
	RetryAfter time.Duration `json:"retry_after,omitempty"`
}

// Limiter applies one Policy to keyed callers, with all counters held in
// Redis so every API replica sees the same standing.
type Limiter struct {
	rdb    *redis.Client
	policy Policy
}

func NewLimiter(rdb *redis.Client, p Policy) *Limiter {
	return &Limiter{rdb: rdb, policy: p}
}

func (l *Limiter) Policy() Policy { return l.policy }

// Allow decides whether the caller identified by key may proceed.
// A Redis error is returned with allowed=false; Manager.Middleware lets
// the request through on such an error, so an unreachable counter store
// degrades the limiter, not the solve API.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, Quota, error) {
	switch l.policy.Strategy {
	case Sliding:
		return l.allowSliding(ctx, key)
	case Bucket:
		return l.allowBucket(ctx, key)
	default:
		return l.allowWindow(ctx, key)
	}
}

func (l *Limiter) allowWindow(ctx context.Context, key string) (bool, Quota, error) {
	now := time.Now()
	windowStart := now.Truncate(l.policy.Per)
	resetAt := windowStart.Add(l.policy.Per)
	counter := fmt.Sprintf("ratelimit:%s:w:%d", key, windowStart.Unix())

	// INCR first, judge after: two racing requests both see their own
	// post-increment count, so the limit cannot be oversubscribed.
	pipe := l.rdb.Pipeline()
	incr := pipe.Incr(ctx, counter)
	pipe.Expire(ctx, counter, l.policy.Per+time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, Quota{}, err
	}

	n := int(incr.Val())
	q := Quota{Limit: l.policy.Limit, Remaining: l.policy.Limit - n, ResetAt: resetAt}
	if n > l.policy.Limit {
		q.Remaining = 0
		q.RetryAfter = resetAt.Sub(now)
		return false, q, nil
	}
	return true, q, nil
}

func (l *Limiter) allowSliding(ctx context.Context, key string) (bool, Quota, error) {
	now := time.Now()
	horizon := now.Add(-l.policy.Per)
	zkey := fmt.Sprintf("ratelimit:%s:s", key)

	pipe := l.rdb.Pipeline()
	pipe.ZRemRangeByScore(ctx, zkey, "0", strconv.FormatInt(horizon.UnixNano(), 10))
	card := pipe.ZCard(ctx, zkey)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, Quota{}, err
	}

	n := int(card.Val())
	if n >= l.policy.Limit {
		oldest, err := l.rdb.ZRangeWithScores(ctx, zkey, 0, 0).Result()
		if err != nil {
			return false, Quota{}, err
		}
		resetAt := now.Add(l.policy.Per)
		if len(oldest) > 0 {
			resetAt = time.Unix(0, int64(oldest[0].Score)).Add(l.policy.Per)
		}
		return false, Quota{
			Limit:      l.policy.Limit,
			Remaining:  0,
			ResetAt:    resetAt,
			RetryAfter: resetAt.Sub(now),
		}, nil
	}

	pipe = l.rdb.Pipeline()
	pipe.ZAdd(ctx, zkey, &redis.Z{Score: float64(now.UnixNano()), Member: now.UnixNano()})
	pipe.Expire(ctx, zkey, l.policy.Per)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, Quota{}, err
	}

	return true, Quota{
		Limit:     l.policy.Limit,
		Remaining: l.policy.Limit - n - 1,
		ResetAt:   now.Add(l.policy.Per),
	}, nil
}

func (l *Limiter) allowBucket(ctx context.Context, key string) (bool, Quota, error) {
	now := time.Now()
	hkey := fmt.Sprintf("ratelimit:%s:b", key)

	fields, err := l.rdb.HMGet(ctx, hkey, "tokens", "stamp").Result()
	if err != nil && err != redis.Nil {
		return false, Quota{}, err
	}

	tokens := l.policy.Burst
	stamp := now
	if len(fields) == 2 {
		if s, ok := fields[0].(string); ok {
			tokens, _ = strconv.Atoi(s)
		}
		if s, ok := fields[1].(string); ok {
			if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
				stamp = time.Unix(unix, 0)
			}
		}
	}

	if refill := int(now.Sub(stamp).Seconds()) * l.policy.Refill; refill > 0 {
		tokens += refill
		if tokens > l.policy.Burst {
			tokens = l.policy.Burst
		}
		stamp = now
	}

	tokenPeriod := time.Second
	if l.policy.Refill > 0 {
		tokenPeriod = time.Duration(float64(time.Second) / float64(l.policy.Refill))
	}

	if tokens <= 0 {
		resetAt := stamp.Add(tokenPeriod)
		return false, Quota{
			Limit:      l.policy.Burst,
			Remaining:  0,
			ResetAt:    resetAt,
			RetryAfter: resetAt.Sub(now),
		}, nil
	}

	tokens--
	pipe := l.rdb.Pipeline()
	pipe.HSet(ctx, hkey, "tokens", tokens, "stamp", stamp.Unix())
	pipe.Expire(ctx, hkey, time.Hour)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, Quota{}, err
	}

	return true, Quota{
		Limit:     l.policy.Burst,
		Remaining: tokens,
		ResetAt:   now.Add(tokenPeriod),
	}, nil
}

// Reset clears every counter held for key, across all strategies.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	keys := []string{
		fmt.Sprintf("ratelimit:%s:s", key),
		fmt.Sprintf("ratelimit:%s:b", key),
	}
	windows, err := l.rdb.Keys(ctx, fmt.Sprintf("ratelimit:%s:w:*", key)).Result()
	if err == nil {
		keys = append(keys, windows...)
	}
	return l.rdb.Del(ctx, keys...).Err()
}
