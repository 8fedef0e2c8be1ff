package driven

import (
	"context"

	"github.com/custodia-labs/askrichie/internal/core/domain"
)

// Answerer is the remote question-answering API as seen by a chat client
type Answerer interface {
	Ask(ctx context.Context, question string) (*domain.Answer, error)
}
