package driven

import (
	"github.com/custodia-labs/askrichie/internal/core/domain"
)

// AIServiceFactory creates AI services based on configuration
type AIServiceFactory interface {
	// CreateEmbeddingService creates an embedding service from settings
	// Returns nil, nil if settings are not configured
	CreateEmbeddingService(settings *domain.EmbeddingSettings) (EmbeddingService, error)

	// CreateLLMService creates a generation service from settings
	// Returns nil, nil if settings are not configured
	CreateLLMService(settings *domain.LLMSettings) (LLMService, error)
}

// SpeechServiceFactory creates speech providers based on configuration
type SpeechServiceFactory interface {
	// CreateTranscriber returns nil, nil if settings are not configured
	CreateTranscriber(settings *domain.SpeechSettings) (Transcriber, error)

	// CreateSynthesizer returns nil, nil if settings are not configured
	CreateSynthesizer(settings *domain.SpeechSettings) (Synthesizer, error)
}
