package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/askrichie/internal/core/domain"
	"github.com/custodia-labs/askrichie/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.UsageCounter = (*UsageCounter)(nil)

const usagePrefix = "askrichie:usage:"

// UsageCounter implements driven.UsageCounter with one key per user per
// UTC day. Keys expire at the end of their window, so no pruning is needed.
type UsageCounter struct {
	client redis.UniversalClient
}

// NewUsageCounter creates a new Redis-backed usage counter
func NewUsageCounter(client redis.UniversalClient) *UsageCounter {
	return &UsageCounter{client: client}
}

func usageKey(userID string, window domain.UsageWindow) string {
	return usagePrefix + userID + ":" + window.Key()
}

// Count returns the questions recorded for userID in window
func (c *UsageCounter) Count(ctx context.Context, userID string, window domain.UsageWindow) (int, error) {
	n, err := c.client.Get(ctx, usageKey(userID, window)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read usage count: %w", err)
	}
	return n, nil
}

// Returns {1, count} after incrementing, or {0, count} when ARGV[1] > 0
// and the count has reached it. ARGV[2] is the window end in unix ms.
var incrementIfBelowScript = redis.NewScript(`
	local current = tonumber(redis.call("get", KEYS[1]) or "0")
	local limit = tonumber(ARGV[1])
	if limit > 0 and current >= limit then
		return {0, current}
	end
	local n = redis.call("incr", KEYS[1])
	redis.call("pexpireat", KEYS[1], ARGV[2])
	return {1, n}
`)

// IncrementIfBelow atomically increments the count when it is below limit
func (c *UsageCounter) IncrementIfBelow(ctx context.Context, userID string, window domain.UsageWindow, limit int) (int, bool, error) {
	res, err := incrementIfBelowScript.Run(ctx, c.client,
		[]string{usageKey(userID, window)}, limit, window.End.UnixMilli(),
	).Int64Slice()
	if err != nil {
		return 0, false, fmt.Errorf("increment usage count: %w", err)
	}
	if len(res) != 2 {
		return 0, false, fmt.Errorf("increment usage count: unexpected reply %v", res)
	}
	return int(res[1]), res[0] == 1, nil
}

var decrementScript = redis.NewScript(`
	local current = tonumber(redis.call("get", KEYS[1]) or "0")
	if current > 0 then
		return redis.call("decr", KEYS[1])
	end
	return 0
`)

// Decrement undoes one increment. It never takes the count below zero.
func (c *UsageCounter) Decrement(ctx context.Context, userID string, window domain.UsageWindow) error {
	if err := decrementScript.Run(ctx, c.client, []string{usageKey(userID, window)}).Err(); err != nil {
		return fmt.Errorf("decrement usage count: %w", err)
	}
	return nil
}
