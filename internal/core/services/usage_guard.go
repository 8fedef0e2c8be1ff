package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/custodia-labs/askrichie/internal/core/domain"
	"github.com/custodia-labs/askrichie/internal/core/ports/driven"
)

// UsageGuard enforces the daily question quota.
//
// Check is read-only and runs before any work is done. Commit performs the
// atomic increment-if-below-limit once an answer exists, so two concurrent
// questions can both pass Check but only one of them can take the last slot.
// Release undoes a Commit whose interaction could not be stored.
//
// Unlimited tiers never wait on the counter: Check skips it and Commit only
// records the question on a best-effort basis.
type UsageGuard struct {
	counter driven.UsageCounter
	policy  domain.UsagePolicy
	now     func() time.Time
	logger  *slog.Logger
}

// UsageGuardConfig holds configuration for the usage guard.
type UsageGuardConfig struct {
	Counter driven.UsageCounter
	Policy  domain.UsagePolicy
	Clock   func() time.Time // default: time.Now
	Logger  *slog.Logger
}

// NewUsageGuard creates a new UsageGuard.
func NewUsageGuard(cfg UsageGuardConfig) *UsageGuard {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	policy := cfg.Policy
	if policy.DailyLimit <= 0 {
		policy.DailyLimit = domain.DefaultDailyLimit
	}
	if policy.UnlimitedFrom == "" {
		policy.UnlimitedFrom = domain.TierStandard
	}

	return &UsageGuard{
		counter: cfg.Counter,
		policy:  policy,
		now:     clock,
		logger:  logger,
	}
}

// Policy returns the active quota policy
func (g *UsageGuard) Policy() domain.UsagePolicy {
	return g.policy
}

// Check reports whether userID may ask another question today.
func (g *UsageGuard) Check(ctx context.Context, userID string, tier domain.Tier) (domain.UsageDecision, error) {
	window := domain.DayWindow(g.now())
	decision := g.baseDecision(tier, window)
	if decision.Unlimited {
		decision.Allowed = true
		return decision, nil
	}

	used, err := g.counter.Count(ctx, userID, window)
	if err != nil {
		return decision, fmt.Errorf("count usage: %w", err)
	}
	decision.Used = used

	decision.Allowed = used < g.policy.DailyLimit
	if !decision.Allowed {
		g.logger.Info("daily limit reached", "user_id", userID, "used", used, "limit", g.policy.DailyLimit)
	}
	return decision, nil
}

// Commit records one completed question. For metered tiers it only succeeds
// while the count is below the limit.
func (g *UsageGuard) Commit(ctx context.Context, userID string, tier domain.Tier) (domain.UsageDecision, error) {
	window := domain.DayWindow(g.now())
	decision := g.baseDecision(tier, window)

	if decision.Unlimited {
		decision.Allowed = true
		count, _, err := g.counter.IncrementIfBelow(ctx, userID, window, 0)
		if err != nil {
			g.logger.Warn("usage not recorded", "user_id", userID, "tier", tier, "error", err)
			return decision, nil
		}
		decision.Used = count
		return decision, nil
	}

	count, ok, err := g.counter.IncrementIfBelow(ctx, userID, window, g.policy.DailyLimit)
	if err != nil {
		return decision, fmt.Errorf("commit usage: %w", err)
	}
	decision.Used = count
	decision.Allowed = ok
	if !ok {
		g.logger.Warn("quota taken by a concurrent question", "user_id", userID, "used", count)
	}
	return decision, nil
}

// Release undoes a successful Commit in the window it was made in.
func (g *UsageGuard) Release(ctx context.Context, userID string, committed domain.UsageDecision) error {
	window := committed.Window
	if window.Start.IsZero() {
		window = domain.DayWindow(g.now())
	}
	if err := g.counter.Decrement(ctx, userID, window); err != nil {
		if committed.Unlimited {
			g.logger.Warn("usage not released", "user_id", userID, "error", err)
			return nil
		}
		return fmt.Errorf("release usage: %w", err)
	}
	return nil
}

// Status summarizes today's usage for display.
func (g *UsageGuard) Status(ctx context.Context, userID string, tier domain.Tier) (*domain.UsageStatus, error) {
	decision, err := g.Check(ctx, userID, tier)
	if err != nil {
		return nil, err
	}

	status := &domain.UsageStatus{
		Tier:      tier,
		Used:      decision.Used,
		Unlimited: decision.Unlimited,
		ResetAt:   decision.ResetAt,
	}
	if !decision.Unlimited {
		status.Limit = decision.Limit
		status.Remaining = max(decision.Limit-decision.Used, 0)
	}
	return status, nil
}

func (g *UsageGuard) baseDecision(tier domain.Tier, window domain.UsageWindow) domain.UsageDecision {
	d := domain.UsageDecision{
		Tier:      tier,
		Unlimited: g.policy.Unlimited(tier),
		ResetAt:   window.End,
		Window:    window,
	}
	if !d.Unlimited {
		d.Limit = g.policy.DailyLimit
	}
	return d
}
