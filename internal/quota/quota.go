// Package quota caps how many practice logs a user may submit per day.
package quota

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrExceeded is returned once a user has used up the day's allowance.
var ErrExceeded = errors.New("quota: daily limit exceeded")

// Limiter admits or rejects one submission for userID at now.
type Limiter interface {
	Allow(ctx context.Context, userID string, now time.Time) error
}

// Unlimited admits everything.
type Unlimited struct{}

func (Unlimited) Allow(context.Context, string, time.Time) error { return nil }

func dayKey(prefix, userID string, now time.Time) string {
	return fmt.Sprintf("%squota:%s:%s", prefix, userID, now.UTC().Format(time.DateOnly))
}

// Redis counts submissions in per-user, per-day keys. Keys expire after two
// days so the counter for a finished day is cleaned up on its own.
type Redis struct {
	client *redis.Client
	limit  int64
	prefix string
}

// NewRedis connects to url and checks the connection.
func NewRedis(ctx context.Context, url string, limit int, prefix string) (*Redis, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &Redis{client: client, limit: int64(limit), prefix: prefix}, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) Allow(ctx context.Context, userID string, now time.Time) error {
	key := dayKey(r.prefix, userID, now)

	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, 48*time.Hour)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to count submission for %s: %w", userID, err)
	}
	if incr.Val() > r.limit {
		return fmt.Errorf("%w: %d of %d used", ErrExceeded, incr.Val(), r.limit)
	}
	return nil
}

// Memory keeps counters in process. Counters from earlier days are dropped
// when a new day is first seen.
type Memory struct {
	mu     sync.Mutex
	limit  int
	day    string
	counts map[string]int
}

func NewMemory(limit int) *Memory {
	return &Memory{limit: limit, counts: make(map[string]int)}
}

func (m *Memory) Allow(ctx context.Context, userID string, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	day := now.UTC().Format(time.DateOnly)

	m.mu.Lock()
	defer m.mu.Unlock()
	if day != m.day {
		m.day = day
		clear(m.counts)
	}
	m.counts[userID]++
	if n := m.counts[userID]; n > m.limit {
		return fmt.Errorf("%w: %d of %d used", ErrExceeded, n, m.limit)
	}
	return nil
}
