package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/askrichie/internal/core/domain"
	"github.com/custodia-labs/askrichie/internal/core/ports/driven"
)

var _ driven.Answerer = (*MockAnswerer)(nil)

// MockAnswerer answers every question by echoing it, unless AskFn is set.
// When Gate is set, Ask waits for it to be closed or for ctx to end.
type MockAnswerer struct {
	mu        sync.Mutex
	questions []string

	AskFn func(ctx context.Context, question string) (*domain.Answer, error)
	Gate  chan struct{}
}

// NewMockAnswerer creates a new MockAnswerer
func NewMockAnswerer() *MockAnswerer {
	return &MockAnswerer{}
}

func (m *MockAnswerer) Ask(ctx context.Context, question string) (*domain.Answer, error) {
	m.mu.Lock()
	m.questions = append(m.questions, question)
	fn, gate := m.AskFn, m.Gate
	m.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fn != nil {
		return fn(ctx, question)
	}
	return &domain.Answer{
		Text:       "Answer to: " + question,
		Sources:    []domain.Citation{{ChunkID: "c1", Reference: "doc-1", Title: "Mock Guide", DocType: "guide"}},
		TokensUsed: 10,
		Timestamp:  time.Now().UTC(),
	}, nil
}

// Questions returns every question asked, in order
func (m *MockAnswerer) Questions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.questions))
	copy(out, m.questions)
	return out
}
