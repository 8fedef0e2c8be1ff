package driven

import (
	"context"

	"github.com/custodia-labs/askrichie/internal/core/domain"
)

// TierProvider resolves a user's subscription tier.
// Users without a subscription are on the trial tier.
type TierProvider interface {
	Tier(ctx context.Context, userID string) (domain.Tier, error)
}
