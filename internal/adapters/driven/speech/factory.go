package speech

import (
	"fmt"

	"github.com/custodia-labs/askrichie/internal/core/domain"
	"github.com/custodia-labs/askrichie/internal/core/ports/driven"
)

// Ensure Factory implements SpeechServiceFactory
var _ driven.SpeechServiceFactory = (*Factory)(nil)

// Factory creates speech providers based on configuration
type Factory struct{}

// NewFactory creates a new speech provider factory
func NewFactory() *Factory {
	return &Factory{}
}

// CreateTranscriber creates a speech-to-text provider from settings.
// Only Cartesia offers transcription.
func (f *Factory) CreateTranscriber(settings *domain.SpeechSettings) (driven.Transcriber, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	switch settings.Provider {
	case domain.SpeechProviderCartesia:
		return NewCartesiaTranscriber(settings)
	default:
		return nil, fmt.Errorf("%w: %s does not support transcription", domain.ErrInvalidProvider, settings.Provider)
	}
}

// CreateSynthesizer creates a text-to-speech provider from settings
func (f *Factory) CreateSynthesizer(settings *domain.SpeechSettings) (driven.Synthesizer, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	switch settings.Provider {
	case domain.SpeechProviderCartesia:
		return NewCartesiaSynthesizer(settings)
	case domain.SpeechProviderElevenLabs:
		return NewElevenLabsSynthesizer(settings)
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidProvider, settings.Provider)
	}
}
