package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/askrichie/internal/core/domain"
	"github.com/custodia-labs/askrichie/internal/core/ports/driven"
)

var _ driven.UsageCounter = (*MockUsageCounter)(nil)

// MockUsageCounter is an in-memory UsageCounter keyed by user and day
type MockUsageCounter struct {
	mu     sync.Mutex
	counts map[string]int

	// Err is returned by every method when set
	Err error
}

// NewMockUsageCounter creates a new MockUsageCounter
func NewMockUsageCounter() *MockUsageCounter {
	return &MockUsageCounter{counts: make(map[string]int)}
}

func counterKey(userID string, window domain.UsageWindow) string {
	return userID + "|" + window.Key()
}

func (m *MockUsageCounter) Count(ctx context.Context, userID string, window domain.UsageWindow) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return 0, m.Err
	}
	return m.counts[counterKey(userID, window)], nil
}

func (m *MockUsageCounter) IncrementIfBelow(ctx context.Context, userID string, window domain.UsageWindow, limit int) (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return 0, false, m.Err
	}
	key := counterKey(userID, window)
	if limit > 0 && m.counts[key] >= limit {
		return m.counts[key], false, nil
	}
	m.counts[key]++
	return m.counts[key], true, nil
}

func (m *MockUsageCounter) Decrement(ctx context.Context, userID string, window domain.UsageWindow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	key := counterKey(userID, window)
	if m.counts[key] > 0 {
		m.counts[key]--
	}
	return nil
}

// Set forces a count (for test setup)
func (m *MockUsageCounter) Set(userID string, window domain.UsageWindow, count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[counterKey(userID, window)] = count
}
