package driven

import (
	"context"

	"github.com/custodia-labs/askrichie/internal/core/domain"
)

// InteractionStore appends and reads question-answer audit records
type InteractionStore interface {
	// Save appends an interaction. Records are never updated.
	Save(ctx context.Context, interaction *domain.Interaction) error

	// ListByUser returns a user's interactions, newest first
	ListByUser(ctx context.Context, userID string, limit int) ([]*domain.Interaction, error)
}
