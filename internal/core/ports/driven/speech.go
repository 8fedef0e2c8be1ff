package driven

import (
	"context"

	"github.com/custodia-labs/askrichie/internal/core/domain"
)

// Transcriber converts an audio clip to text
type Transcriber interface {
	Transcribe(ctx context.Context, clip *domain.AudioClip) (string, error)
}

// Synthesizer converts text to an audio clip
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (*domain.AudioClip, error)
}
