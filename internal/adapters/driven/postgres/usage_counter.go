package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/askrichie/internal/core/domain"
	"github.com/custodia-labs/askrichie/internal/core/ports/driven"
)

// Verify interface compliance
var (
	_ driven.UsageCounter = (*UsageCounter)(nil)
	_ driven.UsagePruner  = (*UsageCounter)(nil)
)

// UsageCounter implements driven.UsageCounter with one row per user per UTC day
type UsageCounter struct {
	db *DB
}

// NewUsageCounter creates a new UsageCounter
func NewUsageCounter(db *DB) *UsageCounter {
	return &UsageCounter{db: db}
}

// Count returns the questions recorded for userID in window
func (c *UsageCounter) Count(ctx context.Context, userID string, window domain.UsageWindow) (int, error) {
	var n int
	err := c.db.QueryRowContext(ctx,
		`SELECT count FROM usage_counters WHERE user_id = $1 AND day = $2::date`,
		userID, window.Key(),
	).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read usage count: %w", err)
	}
	return n, nil
}

// The conditional upsert is one statement, so concurrent callers serialize
// on the row lock and the count never passes the limit. No row comes back
// when the WHERE clause rejects the update.
const incrementIfBelowQuery = `
	INSERT INTO usage_counters (user_id, day, count)
	VALUES ($1, $2::date, 1)
	ON CONFLICT (user_id, day) DO UPDATE
		SET count = usage_counters.count + 1
		WHERE $3::int <= 0 OR usage_counters.count < $3::int
	RETURNING count
`

// IncrementIfBelow atomically increments the count when it is below limit
func (c *UsageCounter) IncrementIfBelow(ctx context.Context, userID string, window domain.UsageWindow, limit int) (int, bool, error) {
	var n int
	err := c.db.QueryRowContext(ctx, incrementIfBelowQuery, userID, window.Key(), limit).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		current, cerr := c.Count(ctx, userID, window)
		if cerr != nil {
			return 0, false, cerr
		}
		return current, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("increment usage count: %w", err)
	}
	return n, true, nil
}

// Decrement undoes one increment
func (c *UsageCounter) Decrement(ctx context.Context, userID string, window domain.UsageWindow) error {
	_, err := c.db.ExecContext(ctx,
		`UPDATE usage_counters SET count = count - 1 WHERE user_id = $1 AND day = $2::date AND count > 0`,
		userID, window.Key(),
	)
	if err != nil {
		return fmt.Errorf("decrement usage count: %w", err)
	}
	return nil
}

// PruneBefore deletes rows for days before cutoff
func (c *UsageCounter) PruneBefore(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := c.db.ExecContext(ctx,
		`DELETE FROM usage_counters WHERE day < $1::date`,
		cutoff.UTC().Format("2006-01-02"),
	)
	if err != nil {
		return 0, fmt.Errorf("prune usage counters: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
