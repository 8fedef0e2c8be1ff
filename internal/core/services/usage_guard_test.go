package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/askrichie/internal/core/domain"
	"github.com/custodia-labs/askrichie/internal/core/ports/driven/mocks"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestUsageGuard_TrialBelowLimit(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	counter := mocks.NewMockUsageCounter()
	counter.Set("u1", domain.DayWindow(now), 14)
	guard := NewUsageGuard(UsageGuardConfig{Counter: counter, Clock: fixedClock(now)})

	decision, err := guard.Check(context.Background(), "u1", domain.TierTrial)

	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Equal(t, 14, decision.Used)
	assert.Equal(t, 15, decision.Limit)
}

func TestUsageGuard_TrialAtLimit(t *testing.T) {
	now := time.Date(2026, 3, 1, 23, 59, 0, 0, time.UTC)
	counter := mocks.NewMockUsageCounter()
	counter.Set("u1", domain.DayWindow(now), 15)
	guard := NewUsageGuard(UsageGuardConfig{Counter: counter, Clock: fixedClock(now)})

	decision, err := guard.Check(context.Background(), "u1", domain.TierTrial)

	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), decision.ResetAt)

	var rl *domain.RateLimitError
	require.True(t, errors.As(decision.Err(), &rl))
	assert.Equal(t, 15, rl.Limit)
	assert.Equal(t, 15, rl.Used)
}

func TestUsageGuard_UnlimitedTierBypasses(t *testing.T) {
	now := time.Now()
	counter := mocks.NewMockUsageCounter()
	counter.Set("u1", domain.DayWindow(now), domain.DefaultDailyLimit+50)
	guard := NewUsageGuard(UsageGuardConfig{Counter: counter, Clock: fixedClock(now)})

	for _, tier := range []domain.Tier{domain.TierStandard, domain.TierPremium} {
		decision, err := guard.Check(context.Background(), "u1", tier)
		require.NoError(t, err)
		assert.True(t, decision.Allowed, tier)
		assert.True(t, decision.Unlimited, tier)

		committed, err := guard.Commit(context.Background(), "u1", tier)
		require.NoError(t, err)
		assert.True(t, committed.Allowed, tier)
	}
}

func TestUsageGuard_UnlimitedTierSurvivesCounterOutage(t *testing.T) {
	counter := mocks.NewMockUsageCounter()
	counter.Err = errors.New("redis down")
	guard := NewUsageGuard(UsageGuardConfig{Counter: counter})
	ctx := context.Background()

	decision, err := guard.Check(ctx, "u1", domain.TierPremium)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)

	committed, err := guard.Commit(ctx, "u1", domain.TierPremium)
	require.NoError(t, err)
	assert.True(t, committed.Allowed)

	require.NoError(t, guard.Release(ctx, "u1", committed))

	status, err := guard.Status(ctx, "u1", domain.TierStandard)
	require.NoError(t, err)
	assert.True(t, status.Unlimited)

	// Metered tiers still fail closed.
	_, err = guard.Commit(ctx, "u1", domain.TierTrial)
	assert.Error(t, err)
}

func TestUsageGuard_CheckDoesNotMutate(t *testing.T) {
	now := time.Now()
	counter := mocks.NewMockUsageCounter()
	guard := NewUsageGuard(UsageGuardConfig{Counter: counter, Clock: fixedClock(now)})

	for i := 0; i < 3; i++ {
		_, err := guard.Check(context.Background(), "u1", domain.TierTrial)
		require.NoError(t, err)
	}

	count, _ := counter.Count(context.Background(), "u1", domain.DayWindow(now))
	assert.Equal(t, 0, count)
}

func TestUsageGuard_ConcurrentCommitsNeverExceedLimit(t *testing.T) {
	now := time.Now()
	counter := mocks.NewMockUsageCounter()
	counter.Set("u1", domain.DayWindow(now), 14)
	guard := NewUsageGuard(UsageGuardConfig{Counter: counter, Clock: fixedClock(now)})

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := guard.Commit(context.Background(), "u1", domain.TierTrial)
			if err == nil && d.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, allowed)
	count, _ := counter.Count(context.Background(), "u1", domain.DayWindow(now))
	assert.Equal(t, 15, count)
}

func TestUsageGuard_ReleaseUsesCommitWindow(t *testing.T) {
	clock := time.Date(2026, 3, 1, 23, 59, 59, 0, time.UTC)
	counter := mocks.NewMockUsageCounter()
	guard := NewUsageGuard(UsageGuardConfig{
		Counter: counter,
		Clock:   func() time.Time { return clock },
	})

	committed, err := guard.Commit(context.Background(), "u1", domain.TierTrial)
	require.NoError(t, err)
	require.True(t, committed.Allowed)

	clock = clock.Add(2 * time.Second)
	require.NoError(t, guard.Release(context.Background(), "u1", committed))

	count, _ := counter.Count(context.Background(), "u1", committed.Window)
	assert.Equal(t, 0, count)
}

func TestUsageGuard_Status(t *testing.T) {
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	counter := mocks.NewMockUsageCounter()
	counter.Set("u1", domain.DayWindow(now), 4)
	guard := NewUsageGuard(UsageGuardConfig{Counter: counter, Clock: fixedClock(now)})

	status, err := guard.Status(context.Background(), "u1", domain.TierTrial)
	require.NoError(t, err)
	assert.Equal(t, 15, status.Limit)
	assert.Equal(t, 4, status.Used)
	assert.Equal(t, 11, status.Remaining)
	assert.False(t, status.Unlimited)

	status, err = guard.Status(context.Background(), "u1", domain.TierPremium)
	require.NoError(t, err)
	assert.True(t, status.Unlimited)
	assert.Zero(t, status.Limit)
}

func TestUsageGuard_CounterError(t *testing.T) {
	counter := mocks.NewMockUsageCounter()
	counter.Err = errors.New("redis down")
	guard := NewUsageGuard(UsageGuardConfig{Counter: counter})

	_, err := guard.Check(context.Background(), "u1", domain.TierTrial)
	assert.Error(t, err)
}
