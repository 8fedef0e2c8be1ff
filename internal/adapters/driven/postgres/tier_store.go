package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/custodia-labs/askrichie/internal/core/domain"
	"github.com/custodia-labs/askrichie/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.TierProvider = (*TierStore)(nil)

// TierStore reads subscription tiers written by the billing subsystem
type TierStore struct {
	db *DB
}

// NewTierStore creates a new TierStore
func NewTierStore(db *DB) *TierStore {
	return &TierStore{db: db}
}

// Tier returns the user's tier. Users without a subscription row are trial.
func (s *TierStore) Tier(ctx context.Context, userID string) (domain.Tier, error) {
	var tier string
	err := s.db.QueryRowContext(ctx, `SELECT tier FROM subscriptions WHERE user_id = $1`, userID).Scan(&tier)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.TierTrial, nil
	}
	if err != nil {
		return domain.TierTrial, fmt.Errorf("read subscription tier: %w", err)
	}
	return domain.ParseTier(tier), nil
}
