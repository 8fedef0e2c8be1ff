package domain

import "sync"

// RuntimeConfig tracks which services are available at runtime.
// Thread-safe for concurrent access.
type RuntimeConfig struct {
	mu sync.RWMutex

	// Static (set at startup, read-only)
	CounterBackend string // "redis" or "postgres"

	// Dynamic capability flags
	embeddingAvailable     bool
	llmAvailable           bool
	transcriptionAvailable bool
	synthesisAvailable     bool
}

// NewRuntimeConfig creates a new RuntimeConfig with initial values
func NewRuntimeConfig(counterBackend string) *RuntimeConfig {
	return &RuntimeConfig{
		CounterBackend: counterBackend,
	}
}

// EmbeddingAvailable returns whether embedding service is available
func (c *RuntimeConfig) EmbeddingAvailable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.embeddingAvailable
}

// LLMAvailable returns whether the generation service is available
func (c *RuntimeConfig) LLMAvailable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.llmAvailable
}

// TranscriptionAvailable returns whether speech-to-text is configured
func (c *RuntimeConfig) TranscriptionAvailable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.transcriptionAvailable
}

// SynthesisAvailable returns whether text-to-speech is configured
func (c *RuntimeConfig) SynthesisAvailable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.synthesisAvailable
}

// SetEmbeddingAvailable updates the embedding availability flag
func (c *RuntimeConfig) SetEmbeddingAvailable(available bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.embeddingAvailable = available
}

// SetLLMAvailable updates the LLM availability flag
func (c *RuntimeConfig) SetLLMAvailable(available bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.llmAvailable = available
}

// SetTranscriptionAvailable updates the speech-to-text flag
func (c *RuntimeConfig) SetTranscriptionAvailable(available bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transcriptionAvailable = available
}

// SetSynthesisAvailable updates the text-to-speech flag
func (c *RuntimeConfig) SetSynthesisAvailable(available bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.synthesisAvailable = available
}

// CanAnswer returns true if both halves of the answer pipeline are up
func (c *RuntimeConfig) CanAnswer() bool {
	return c.EmbeddingAvailable() && c.LLMAvailable()
}
