package runtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/custodia-labs/askrichie/internal/core/domain"
	"github.com/custodia-labs/askrichie/internal/core/ports/driven"
)

// Services holds the provider-backed services of the answer pipeline.
// Any of them may be nil when its provider is not configured.
// Thread-safe for concurrent access.
type Services struct {
	mu sync.RWMutex

	// Config tracks capability flags
	config *domain.RuntimeConfig

	embeddingService driven.EmbeddingService
	llmService       driven.LLMService
	transcriber      driven.Transcriber
	synthesizer      driven.Synthesizer
}

// NewServices creates a new Services registry
func NewServices(config *domain.RuntimeConfig) *Services {
	return &Services{
		config: config,
	}
}

// Config returns the runtime configuration
func (s *Services) Config() *domain.RuntimeConfig {
	return s.config
}

// EmbeddingService returns the current embedding service (may be nil)
func (s *Services) EmbeddingService() driven.EmbeddingService {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.embeddingService
}

// LLMService returns the current LLM service (may be nil)
func (s *Services) LLMService() driven.LLMService {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.llmService
}

// Transcriber returns the speech-to-text provider (may be nil)
func (s *Services) Transcriber() driven.Transcriber {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.transcriber
}

// Synthesizer returns the text-to-speech provider (may be nil)
func (s *Services) Synthesizer() driven.Synthesizer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.synthesizer
}

// SetEmbeddingService updates the embedding service.
// Closes the old service if present. Updates config flags.
func (s *Services) SetEmbeddingService(svc driven.EmbeddingService) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.embeddingService != nil && s.embeddingService != svc {
		_ = s.embeddingService.Close()
	}

	s.embeddingService = svc
	s.config.SetEmbeddingAvailable(svc != nil)
}

// SetLLMService updates the LLM service.
// Closes the old service if present. Updates config flags.
func (s *Services) SetLLMService(svc driven.LLMService) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.llmService != nil && s.llmService != svc {
		_ = s.llmService.Close()
	}

	s.llmService = svc
	s.config.SetLLMAvailable(svc != nil)
}

// SetSpeech updates both speech providers
func (s *Services) SetSpeech(transcriber driven.Transcriber, synthesizer driven.Synthesizer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.transcriber = transcriber
	s.synthesizer = synthesizer
	s.config.SetTranscriptionAvailable(transcriber != nil)
	s.config.SetSynthesisAvailable(synthesizer != nil)
}

// Close shuts down all services
func (s *Services) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.embeddingService != nil {
		_ = s.embeddingService.Close()
		s.embeddingService = nil
	}
	if s.llmService != nil {
		_ = s.llmService.Close()
		s.llmService = nil
	}
	s.transcriber = nil
	s.synthesizer = nil

	s.config.SetEmbeddingAvailable(false)
	s.config.SetLLMAvailable(false)
	s.config.SetTranscriptionAvailable(false)
	s.config.SetSynthesisAvailable(false)

	return nil
}

// ValidateAndSetEmbedding checks connectivity and that the service produces
// vectors of corpusDimensions before installing it. A size mismatch is
// domain.ErrDimensionMismatch and must stop the server.
func (s *Services) ValidateAndSetEmbedding(ctx context.Context, svc driven.EmbeddingService, corpusDimensions int) error {
	if svc == nil {
		s.SetEmbeddingService(nil)
		return nil
	}

	if corpusDimensions > 0 && svc.Dimensions() != corpusDimensions {
		_ = svc.Close()
		return fmt.Errorf("%w: model %s produces %d dimensions, corpus stores %d",
			domain.ErrDimensionMismatch, svc.Model(), svc.Dimensions(), corpusDimensions)
	}

	if err := svc.HealthCheck(ctx); err != nil {
		_ = svc.Close()
		return err
	}

	s.SetEmbeddingService(svc)
	return nil
}

// ValidateAndSetLLM validates connectivity before setting LLM service
func (s *Services) ValidateAndSetLLM(ctx context.Context, svc driven.LLMService) error {
	if svc == nil {
		s.SetLLMService(nil)
		return nil
	}

	if err := svc.Ping(ctx); err != nil {
		_ = svc.Close()
		return err
	}

	s.SetLLMService(svc)
	return nil
}
