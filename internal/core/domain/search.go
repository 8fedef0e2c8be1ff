package domain

import (
	"sort"
	"time"
)

// Retrieval defaults
const (
	DefaultTopK          = 5
	DefaultMinSimilarity = 0.78
)

// RetrievalConfig bounds a similarity query
type RetrievalConfig struct {
	TopK          int     `json:"top_k"`
	MinSimilarity float64 `json:"min_similarity"`
}

// DefaultRetrievalConfig returns the production retrieval settings
func DefaultRetrievalConfig() RetrievalConfig {
	return RetrievalConfig{
		TopK:          DefaultTopK,
		MinSimilarity: DefaultMinSimilarity,
	}
}

// Validate checks the config is usable
func (c RetrievalConfig) Validate() error {
	if c.TopK <= 0 {
		return ErrInvalidInput
	}
	if c.MinSimilarity < -1 || c.MinSimilarity > 1 {
		return ErrInvalidInput
	}
	return nil
}

// RankedChunk is a retrieved chunk with its cosine similarity to the query
type RankedChunk struct {
	Chunk      *DocumentChunk `json:"chunk"`
	Similarity float64        `json:"similarity"`
}

// SortRanked orders chunks by similarity desc, then createdAt desc, then id asc.
func SortRanked(chunks []*RankedChunk) {
	sort.SliceStable(chunks, func(i, j int) bool {
		a, b := chunks[i], chunks[j]
		if a.Similarity != b.Similarity {
			return a.Similarity > b.Similarity
		}
		if !a.Chunk.CreatedAt.Equal(b.Chunk.CreatedAt) {
			return a.Chunk.CreatedAt.After(b.Chunk.CreatedAt)
		}
		return a.Chunk.ID < b.Chunk.ID
	})
}

// NoContentReason distinguishes why retrieval came back empty
type NoContentReason string

const (
	NoContentEmptyCorpus    NoContentReason = "empty_corpus"
	NoContentBelowThreshold NoContentReason = "below_threshold"
)

// RetrievalResult is the outcome of one retrieval
type RetrievalResult struct {
	Chunks []*RankedChunk
	Reason NoContentReason // set only when Chunks is empty
	Took   time.Duration
}
