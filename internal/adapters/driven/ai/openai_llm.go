package ai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	openaigo "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/custodia-labs/askrichie/internal/core/domain"
	"github.com/custodia-labs/askrichie/internal/core/ports/driven"
)

// Ensure OpenAILLM implements LLMService
var _ driven.LLMService = (*OpenAILLM)(nil)

const (
	defaultOpenAIChatModel  = "gpt-4o-mini"
	defaultOpenAIMaxRetries = 2
	defaultOpenAITimeout    = 60 * time.Second
)

// OpenAILLM implements LLMService using OpenAI chat completions
type OpenAILLM struct {
	client     openaigo.Client
	httpClient *http.Client
	model      string
}

// NewOpenAILLM creates a new OpenAI generation service
func NewOpenAILLM(settings *domain.LLMSettings) (driven.LLMService, error) {
	if settings == nil || strings.TrimSpace(settings.APIKey) == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	model := strings.TrimSpace(settings.Model)
	if model == "" {
		model = defaultOpenAIChatModel
	}

	baseURL := strings.TrimRight(strings.TrimSpace(settings.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}

	httpClient := &http.Client{Timeout: defaultOpenAITimeout}
	client := openaigo.NewClient(
		option.WithBaseURL(baseURL),
		option.WithAPIKey(strings.TrimSpace(settings.APIKey)),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(defaultOpenAIMaxRetries),
		option.WithRequestTimeout(defaultOpenAITimeout),
	)

	return &OpenAILLM{
		client:     client,
		httpClient: httpClient,
		model:      model,
	}, nil
}

// Generate runs one system + user completion
func (l *OpenAILLM) Generate(ctx context.Context, req driven.GenerationRequest) (*driven.GenerationResult, error) {
	params := openaigo.ChatCompletionNewParams{
		Model: openaigo.ChatModel(l.model),
		Messages: []openaigo.ChatCompletionMessageParamUnion{
			openaigo.SystemMessage(req.System),
			openaigo.UserMessage(req.User),
		},
		Temperature: openaigo.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openaigo.Int(int64(req.MaxTokens))
	}

	resp, err := l.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("%w: openai: %v", domain.ErrGenerationUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: openai returned no choices", domain.ErrGenerationUnavailable)
	}

	return &driven.GenerationResult{
		Text:       resp.Choices[0].Message.Content,
		TokensUsed: int(resp.Usage.TotalTokens),
	}, nil
}

// Model returns the model name being used
func (l *OpenAILLM) Model() string {
	return l.model
}

// Ping checks that the configured model is reachable with this key
func (l *OpenAILLM) Ping(ctx context.Context) error {
	if _, err := l.client.Models.Get(ctx, l.model); err != nil {
		return fmt.Errorf("%w: openai model %s: %v", domain.ErrGenerationUnavailable, l.model, err)
	}
	return nil
}

// Close releases resources held by the LLM service
func (l *OpenAILLM) Close() error {
	l.httpClient.CloseIdleConnections()
	return nil
}
