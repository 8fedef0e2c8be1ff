package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/askrichie/internal/core/domain"
	"github.com/custodia-labs/askrichie/internal/core/ports/driven"
)

var _ driven.InteractionStore = (*MockInteractionStore)(nil)

// MockInteractionStore is an in-memory append-only InteractionStore
type MockInteractionStore struct {
	mu           sync.RWMutex
	interactions []*domain.Interaction

	// SaveErr is returned by Save when set
	SaveErr error
}

// NewMockInteractionStore creates a new MockInteractionStore
func NewMockInteractionStore() *MockInteractionStore {
	return &MockInteractionStore{}
}

func (m *MockInteractionStore) Save(ctx context.Context, interaction *domain.Interaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.interactions = append(m.interactions, interaction)
	return nil
}

func (m *MockInteractionStore) ListByUser(ctx context.Context, userID string, limit int) ([]*domain.Interaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*domain.Interaction
	for i := len(m.interactions) - 1; i >= 0; i-- {
		if m.interactions[i].UserID != userID {
			continue
		}
		result = append(result, m.interactions[i])
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}

// All returns every saved interaction in insertion order
func (m *MockInteractionStore) All() []*domain.Interaction {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.Interaction, len(m.interactions))
	copy(out, m.interactions)
	return out
}
