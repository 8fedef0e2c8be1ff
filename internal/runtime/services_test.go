package runtime

import (
	"context"
	"errors"
	"testing"

	"github.com/custodia-labs/askrichie/internal/core/domain"
	"github.com/custodia-labs/askrichie/internal/core/ports/driven"
)

// mockEmbeddingService is a mock implementation for testing
type mockEmbeddingService struct {
	healthCheckErr error
	dimensions     int
	closed         bool
}

func (m *mockEmbeddingService) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, nil
}

func (m *mockEmbeddingService) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	return nil, nil
}

func (m *mockEmbeddingService) Dimensions() int {
	if m.dimensions == 0 {
		return 1536
	}
	return m.dimensions
}

func (m *mockEmbeddingService) Model() string {
	return "test-model"
}

func (m *mockEmbeddingService) HealthCheck(ctx context.Context) error {
	return m.healthCheckErr
}

func (m *mockEmbeddingService) Close() error {
	m.closed = true
	return nil
}

// mockLLMService is a mock implementation for testing
type mockLLMService struct {
	pingErr error
	closed  bool
}

func (m *mockLLMService) Generate(ctx context.Context, req driven.GenerationRequest) (*driven.GenerationResult, error) {
	return &driven.GenerationResult{}, nil
}

func (m *mockLLMService) Model() string {
	return "test-llm"
}

func (m *mockLLMService) Ping(ctx context.Context) error {
	return m.pingErr
}

func (m *mockLLMService) Close() error {
	m.closed = true
	return nil
}

type nopTranscriber struct{}

func (nopTranscriber) Transcribe(ctx context.Context, clip *domain.AudioClip) (string, error) {
	return "", nil
}

func TestNewServices(t *testing.T) {
	config := domain.NewRuntimeConfig("postgres")
	services := NewServices(config)

	if services == nil {
		t.Fatal("expected non-nil services")
	}
	if services.Config() != config {
		t.Error("expected config to be stored")
	}
	if services.EmbeddingService() != nil || services.LLMService() != nil {
		t.Error("expected no services initially")
	}
}

func TestServices_SetEmbeddingService_ClosesPrevious(t *testing.T) {
	services := NewServices(domain.NewRuntimeConfig("postgres"))

	first := &mockEmbeddingService{}
	second := &mockEmbeddingService{}

	services.SetEmbeddingService(first)
	if !services.Config().EmbeddingAvailable() {
		t.Error("expected embedding to be available")
	}

	services.SetEmbeddingService(second)
	if !first.closed {
		t.Error("expected previous service to be closed")
	}
	if services.EmbeddingService() != second {
		t.Error("expected new service to be installed")
	}

	services.SetEmbeddingService(nil)
	if services.Config().EmbeddingAvailable() {
		t.Error("expected embedding to be unavailable")
	}
}

func TestServices_ValidateAndSetEmbedding(t *testing.T) {
	t.Run("healthy with matching dimensions", func(t *testing.T) {
		services := NewServices(domain.NewRuntimeConfig("postgres"))
		svc := &mockEmbeddingService{dimensions: 1536}

		if err := services.ValidateAndSetEmbedding(context.Background(), svc, 1536); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if services.EmbeddingService() != svc {
			t.Error("expected service to be installed")
		}
	})

	t.Run("dimension mismatch is rejected", func(t *testing.T) {
		services := NewServices(domain.NewRuntimeConfig("postgres"))
		svc := &mockEmbeddingService{dimensions: 3072}

		err := services.ValidateAndSetEmbedding(context.Background(), svc, 1536)
		if !errors.Is(err, domain.ErrDimensionMismatch) {
			t.Fatalf("expected ErrDimensionMismatch, got %v", err)
		}
		if !svc.closed {
			t.Error("expected rejected service to be closed")
		}
		if services.EmbeddingService() != nil {
			t.Error("expected no service installed")
		}
	})

	t.Run("health check failure", func(t *testing.T) {
		services := NewServices(domain.NewRuntimeConfig("postgres"))
		svc := &mockEmbeddingService{healthCheckErr: errors.New("connection refused")}

		if err := services.ValidateAndSetEmbedding(context.Background(), svc, 0); err == nil {
			t.Fatal("expected error")
		}
		if services.Config().EmbeddingAvailable() {
			t.Error("expected embedding to stay unavailable")
		}
	})
}

func TestServices_ValidateAndSetLLM(t *testing.T) {
	services := NewServices(domain.NewRuntimeConfig("postgres"))

	bad := &mockLLMService{pingErr: errors.New("401")}
	if err := services.ValidateAndSetLLM(context.Background(), bad); err == nil {
		t.Fatal("expected error")
	}
	if !bad.closed {
		t.Error("expected failing service to be closed")
	}

	good := &mockLLMService{}
	if err := services.ValidateAndSetLLM(context.Background(), good); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !services.Config().LLMAvailable() {
		t.Error("expected LLM to be available")
	}
}

func TestServices_SetSpeech(t *testing.T) {
	services := NewServices(domain.NewRuntimeConfig("redis"))

	services.SetSpeech(nopTranscriber{}, nil)

	if !services.Config().TranscriptionAvailable() {
		t.Error("expected transcription to be available")
	}
	if services.Config().SynthesisAvailable() {
		t.Error("expected synthesis to be unavailable")
	}
	if services.Transcriber() == nil || services.Synthesizer() != nil {
		t.Error("unexpected speech providers")
	}
}

func TestServices_Close(t *testing.T) {
	services := NewServices(domain.NewRuntimeConfig("postgres"))
	emb := &mockEmbeddingService{}
	llm := &mockLLMService{}
	services.SetEmbeddingService(emb)
	services.SetLLMService(llm)
	services.SetSpeech(nopTranscriber{}, nil)

	if err := services.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !emb.closed || !llm.closed {
		t.Error("expected services to be closed")
	}
	if services.Config().CanAnswer() || services.Config().TranscriptionAvailable() {
		t.Error("expected all capabilities cleared")
	}
}
