package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/askrichie/internal/core/domain"
)

// UsageCounter holds per-user completed-question counts for a usage window
type UsageCounter interface {
	// Count returns the number of questions recorded for userID in window
	Count(ctx context.Context, userID string, window domain.UsageWindow) (int, error)

	// IncrementIfBelow atomically increments the count when it is below limit.
	// A limit <= 0 increments unconditionally. Returns the resulting count and
	// whether the increment happened.
	IncrementIfBelow(ctx context.Context, userID string, window domain.UsageWindow, limit int) (count int, ok bool, err error)

	// Decrement undoes one increment. It never takes the count below zero.
	Decrement(ctx context.Context, userID string, window domain.UsageWindow) error
}

// UsagePruner is implemented by counters whose windows do not expire on their own
type UsagePruner interface {
	// PruneBefore deletes counts for windows starting before cutoff and
	// returns how many were removed
	PruneBefore(ctx context.Context, cutoff time.Time) (int, error)
}
