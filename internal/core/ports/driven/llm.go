package driven

import (
	"context"
)

// GenerationRequest is one system + user turn sent to a generation model
type GenerationRequest struct {
	System      string
	User        string
	MaxTokens   int
	Temperature float64
}

// GenerationResult is the model's text and total token usage
type GenerationResult struct {
	Text       string
	TokensUsed int
}

// LLMService provides text generation for answer composition
type LLMService interface {
	// Generate runs one completion.
	// Failures are reported as domain.ErrGenerationUnavailable.
	Generate(ctx context.Context, req GenerationRequest) (*GenerationResult, error)

	// Model returns the model name being used
	Model() string

	// Ping verifies the LLM service is available
	Ping(ctx context.Context) error

	// Close releases resources held by the LLM service
	Close() error
}
