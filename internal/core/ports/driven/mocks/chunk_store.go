package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/askrichie/internal/core/domain"
	"github.com/custodia-labs/askrichie/internal/core/ports/driven"
)

var _ driven.ChunkStore = (*MockChunkStore)(nil)

// MockChunkStore is a mock implementation of ChunkStore for testing.
// Each chunk carries a fixed similarity so tests can stage rankings
// independently of the query vector.
type MockChunkStore struct {
	mu         sync.RWMutex
	entries    []*domain.RankedChunk
	dimensions int

	// SearchFn overrides SimilaritySearch when set
	SearchFn func(vector []float32, k int, minSimilarity float64) ([]*domain.RankedChunk, error)
	// CountFn overrides Count when set
	CountFn func() (int, error)

	searches int
}

// NewMockChunkStore creates a new MockChunkStore
func NewMockChunkStore() *MockChunkStore {
	return &MockChunkStore{dimensions: 8}
}

// Add stages a chunk that matches every query with the given similarity
func (m *MockChunkStore) Add(chunk *domain.DocumentChunk, similarity float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, &domain.RankedChunk{Chunk: chunk, Similarity: similarity})
}

func (m *MockChunkStore) SimilaritySearch(ctx context.Context, vector []float32, k int, minSimilarity float64) ([]*domain.RankedChunk, error) {
	m.mu.Lock()
	m.searches++
	m.mu.Unlock()

	if m.SearchFn != nil {
		return m.SearchFn(vector, k, minSimilarity)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var results []*domain.RankedChunk
	for _, e := range m.entries {
		if e.Similarity >= minSimilarity {
			results = append(results, &domain.RankedChunk{Chunk: e.Chunk, Similarity: e.Similarity})
		}
	}
	domain.SortRanked(results)
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func (m *MockChunkStore) Count(ctx context.Context) (int, error) {
	if m.CountFn != nil {
		return m.CountFn()
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries), nil
}

func (m *MockChunkStore) Dimensions(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dimensions, nil
}

// SetDimensions sets the reported vector size
func (m *MockChunkStore) SetDimensions(dim int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dimensions = dim
}

// Searches returns how many similarity queries were run
func (m *MockChunkStore) Searches() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.searches
}
