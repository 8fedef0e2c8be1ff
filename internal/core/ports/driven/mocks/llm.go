package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/custodia-labs/askrichie/internal/core/domain"
	"github.com/custodia-labs/askrichie/internal/core/ports/driven"
)

var _ driven.LLMService = (*MockLLMService)(nil)

// MockLLMService is a mock implementation of LLMService for testing.
// It returns Response unless GenerateFn is set, and records every request.
type MockLLMService struct {
	mu       sync.Mutex
	requests []driven.GenerationRequest
	failNext bool

	Response   string
	TokensUsed int
	GenerateFn func(req driven.GenerationRequest) (*driven.GenerationResult, error)
}

// NewMockLLMService creates a new MockLLMService
func NewMockLLMService() *MockLLMService {
	return &MockLLMService{
		Response:   "Mock answer [doc-1: Mock]",
		TokensUsed: 42,
	}
}

func (m *MockLLMService) Generate(ctx context.Context, req driven.GenerationRequest) (*driven.GenerationResult, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	fail := m.failNext
	m.failNext = false
	fn := m.GenerateFn
	resp, tokens := m.Response, m.TokensUsed
	m.mu.Unlock()

	if fail {
		return nil, fmt.Errorf("%w: mock failure", domain.ErrGenerationUnavailable)
	}
	if fn != nil {
		return fn(req)
	}
	return &driven.GenerationResult{Text: resp, TokensUsed: tokens}, nil
}

func (m *MockLLMService) Model() string {
	return "mock-llm"
}

func (m *MockLLMService) Ping(ctx context.Context) error {
	return nil
}

func (m *MockLLMService) Close() error {
	return nil
}

// SetFailNext makes the next Generate call fail
func (m *MockLLMService) SetFailNext(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = fail
}

// Requests returns the recorded generation requests
func (m *MockLLMService) Requests() []driven.GenerationRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]driven.GenerationRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// Calls returns the number of Generate calls
func (m *MockLLMService) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}
