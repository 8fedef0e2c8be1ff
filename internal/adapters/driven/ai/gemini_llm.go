package ai

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/custodia-labs/askrichie/internal/core/domain"
	"github.com/custodia-labs/askrichie/internal/core/ports/driven"
)

// Ensure GeminiLLM implements LLMService
var _ driven.LLMService = (*GeminiLLM)(nil)

const defaultGeminiModel = "gemini-2.0-flash"

// GeminiLLM implements LLMService using the Gemini API
type GeminiLLM struct {
	client     *genai.Client
	httpClient *http.Client
	model      string
}

// NewGeminiLLM creates a new Gemini generation service
func NewGeminiLLM(ctx context.Context, settings *domain.LLMSettings) (driven.LLMService, error) {
	if settings == nil || strings.TrimSpace(settings.APIKey) == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}

	model := strings.TrimSpace(settings.Model)
	if model == "" {
		model = defaultGeminiModel
	}

	httpClient := &http.Client{Timeout: defaultOpenAITimeout}
	cfg := &genai.ClientConfig{
		APIKey:     strings.TrimSpace(settings.APIKey),
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	}
	if settings.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: strings.TrimRight(settings.BaseURL, "/") + "/"}
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &GeminiLLM{
		client:     client,
		httpClient: httpClient,
		model:      model,
	}, nil
}

// Generate runs one system + user completion
func (l *GeminiLLM) Generate(ctx context.Context, req driven.GenerationRequest) (*driven.GenerationResult, error) {
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(req.System, genai.RoleUser),
		Temperature:       genai.Ptr(float32(req.Temperature)),
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}

	resp, err := l.client.Models.GenerateContent(ctx, l.model, genai.Text(req.User), config)
	if err != nil {
		return nil, fmt.Errorf("%w: gemini: %v", domain.ErrGenerationUnavailable, err)
	}

	result := &driven.GenerationResult{Text: resp.Text()}
	if resp.UsageMetadata != nil {
		result.TokensUsed = int(resp.UsageMetadata.TotalTokenCount)
	}
	return result, nil
}

// Model returns the model name being used
func (l *GeminiLLM) Model() string {
	return l.model
}

// Ping checks that the configured model is reachable with this key
func (l *GeminiLLM) Ping(ctx context.Context) error {
	if _, err := l.client.Models.Get(ctx, l.model, nil); err != nil {
		return fmt.Errorf("%w: gemini model %s: %v", domain.ErrGenerationUnavailable, l.model, err)
	}
	return nil
}

// Close releases resources held by the LLM service
func (l *GeminiLLM) Close() error {
	l.httpClient.CloseIdleConnections()
	return nil
}
