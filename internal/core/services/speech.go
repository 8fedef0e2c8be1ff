package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/askrichie/internal/core/domain"
	"github.com/custodia-labs/askrichie/internal/core/ports/driving"
	"github.com/custodia-labs/askrichie/internal/runtime"
)

// Ensure speechService implements SpeechService
var _ driving.SpeechService = (*speechService)(nil)

const (
	defaultMaxAudioBytes  = 10 << 20
	defaultMaxSpeechChars = 5000
)

// speechService validates requests and maps provider failures onto the
// voice error kinds.
type speechService struct {
	services      *runtime.Services
	maxAudioBytes int
	maxTextChars  int
	logger        *slog.Logger
}

// SpeechServiceConfig holds configuration for the speech proxy.
type SpeechServiceConfig struct {
	Services      *runtime.Services
	MaxAudioBytes int // default: 10 MiB
	MaxTextChars  int // default: 5000
	Logger        *slog.Logger
}

// NewSpeechService creates a new SpeechService
func NewSpeechService(cfg SpeechServiceConfig) driving.SpeechService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxAudio := cfg.MaxAudioBytes
	if maxAudio <= 0 {
		maxAudio = defaultMaxAudioBytes
	}
	maxText := cfg.MaxTextChars
	if maxText <= 0 {
		maxText = defaultMaxSpeechChars
	}
	return &speechService{
		services:      cfg.Services,
		maxAudioBytes: maxAudio,
		maxTextChars:  maxText,
		logger:        logger,
	}
}

// Transcribe returns the text spoken in clip
func (s *speechService) Transcribe(ctx context.Context, clip *domain.AudioClip) (string, error) {
	if clip.Empty() {
		return "", fmt.Errorf("%w: empty audio", domain.ErrInvalidInput)
	}
	if len(clip.Data) > s.maxAudioBytes {
		return "", fmt.Errorf("%w: audio exceeds %d bytes", domain.ErrInvalidInput, s.maxAudioBytes)
	}

	transcriber := s.services.Transcriber()
	if transcriber == nil {
		return "", fmt.Errorf("%w: no transcription provider configured", domain.ErrTranscriptionFailed)
	}

	text, err := transcriber.Transcribe(ctx, clip)
	if err != nil {
		s.logger.Error("transcription failed", "bytes", len(clip.Data), "format", clip.Format, "error", err)
		if errors.Is(err, domain.ErrTranscriptionFailed) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", domain.ErrTranscriptionFailed, err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: empty transcript", domain.ErrTranscriptionFailed)
	}
	return text, nil
}

// Synthesize renders text as audio
func (s *speechService) Synthesize(ctx context.Context, text string) (*domain.AudioClip, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: empty text", domain.ErrInvalidInput)
	}
	if utf8.RuneCountInString(text) > s.maxTextChars {
		return nil, fmt.Errorf("%w: text exceeds %d characters", domain.ErrInvalidInput, s.maxTextChars)
	}

	synthesizer := s.services.Synthesizer()
	if synthesizer == nil {
		return nil, fmt.Errorf("%w: no synthesis provider configured", domain.ErrPlaybackFailed)
	}

	clip, err := synthesizer.Synthesize(ctx, StripCitations(text))
	if err != nil {
		s.logger.Error("synthesis failed", "chars", len(text), "error", err)
		if errors.Is(err, domain.ErrPlaybackFailed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrPlaybackFailed, err)
	}
	if clip.Empty() {
		return nil, fmt.Errorf("%w: provider returned no audio", domain.ErrPlaybackFailed)
	}
	return clip, nil
}

// StripCitations removes [doc-N: Title] tokens so they are not read aloud.
func StripCitations(text string) string {
	return strings.TrimSpace(citationPattern.ReplaceAllString(text, ""))
}
