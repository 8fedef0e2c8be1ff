package domain

// AIProvider identifies the AI/embedding provider
type AIProvider string

const (
	AIProviderOpenAI AIProvider = "openai"
	AIProviderGemini AIProvider = "gemini"
)

// DefaultEmbeddingDimensions is the corpus vector size for text-embedding-3-small
const DefaultEmbeddingDimensions = 1536

// DefaultEmbeddingMaxChars is the input ceiling applied before embedding
const DefaultEmbeddingMaxChars = 8000

// EmbeddingSettings configures the embedding service
type EmbeddingSettings struct {
	Provider   AIProvider `json:"provider"`
	Model      string     `json:"model"`
	APIKey     string     `json:"-"` // Never serialize to JSON
	BaseURL    string     `json:"base_url,omitempty"`
	Dimensions int        `json:"dimensions"`
	MaxChars   int        `json:"max_chars"`
}

// IsConfigured returns true if embedding settings are properly configured
func (e *EmbeddingSettings) IsConfigured() bool {
	return e.Provider != "" && e.APIKey != ""
}

// LLMSettings configures the generation service
type LLMSettings struct {
	Provider AIProvider `json:"provider"`
	Model    string     `json:"model"`
	APIKey   string     `json:"-"` // Never serialize to JSON
	BaseURL  string     `json:"base_url,omitempty"`
}

// IsConfigured returns true if LLM settings are properly configured
func (l *LLMSettings) IsConfigured() bool {
	return l.Provider != "" && l.APIKey != ""
}

// IsValid returns true if this is a known provider
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOpenAI, AIProviderGemini:
		return true
	default:
		return false
	}
}

// SpeechProvider identifies a speech-to-text or text-to-speech vendor
type SpeechProvider string

const (
	SpeechProviderCartesia   SpeechProvider = "cartesia"
	SpeechProviderElevenLabs SpeechProvider = "elevenlabs"
)

// SpeechSettings configures one speech provider
type SpeechSettings struct {
	Provider SpeechProvider `json:"provider"`
	APIKey   string         `json:"-"`
	BaseURL  string         `json:"base_url,omitempty"`
	Model    string         `json:"model,omitempty"`
	VoiceID  string         `json:"voice_id,omitempty"`
}

// IsConfigured returns true if the provider and key are set
func (s *SpeechSettings) IsConfigured() bool {
	return s.Provider != "" && s.APIKey != ""
}
