package driving

import (
	"context"

	"github.com/custodia-labs/askrichie/internal/core/domain"
)

// SpeechService proxies speech providers for clients
type SpeechService interface {
	// Transcribe returns the text spoken in clip.
	// Failures and empty transcripts are domain.ErrTranscriptionFailed.
	Transcribe(ctx context.Context, clip *domain.AudioClip) (string, error)

	// Synthesize renders text as audio. Failures are domain.ErrPlaybackFailed.
	Synthesize(ctx context.Context, text string) (*domain.AudioClip, error)
}
