package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/askrichie/internal/core/domain"
	"github.com/custodia-labs/askrichie/internal/core/ports/driven"
)

var _ driven.TierProvider = (*MockTierProvider)(nil)

// MockTierProvider returns tiers from an in-memory map; missing users are trial
type MockTierProvider struct {
	mu    sync.RWMutex
	tiers map[string]domain.Tier

	// Err is returned by Tier when set
	Err error
}

// NewMockTierProvider creates a new MockTierProvider
func NewMockTierProvider() *MockTierProvider {
	return &MockTierProvider{tiers: make(map[string]domain.Tier)}
}

func (m *MockTierProvider) Tier(ctx context.Context, userID string) (domain.Tier, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Err != nil {
		return domain.TierTrial, m.Err
	}
	if t, ok := m.tiers[userID]; ok {
		return t, nil
	}
	return domain.TierTrial, nil
}

// SetTier assigns a tier to a user
func (m *MockTierProvider) SetTier(userID string, tier domain.Tier) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tiers[userID] = tier
}
