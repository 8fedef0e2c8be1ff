package driving

import (
	"context"

	"github.com/custodia-labs/askrichie/internal/core/domain"
)

// AskRequest is one question from an authenticated user
type AskRequest struct {
	UserID   string
	Question string
}

// QuestionService answers questions from the private corpus
type QuestionService interface {
	// Ask runs the full pipeline: quota, embedding, retrieval, composition and
	// persistence. Errors follow the domain taxonomy; a quota rejection is a
	// *domain.RateLimitError.
	Ask(ctx context.Context, req AskRequest) (*domain.Answer, error)

	// Usage reports the caller's quota for the current UTC day
	Usage(ctx context.Context, userID string) (*domain.UsageStatus, error)

	// History lists the caller's past interactions, newest first
	History(ctx context.Context, userID string, limit int) ([]*domain.Interaction, error)
}
