package driven

import (
	"context"

	"github.com/custodia-labs/askrichie/internal/core/domain"
)

// ChunkStore queries the pre-embedded document corpus
type ChunkStore interface {
	// SimilaritySearch returns at most k chunks whose cosine similarity to vector
	// is at least minSimilarity, ordered by similarity desc then createdAt desc.
	SimilaritySearch(ctx context.Context, vector []float32, k int, minSimilarity float64) ([]*domain.RankedChunk, error)

	// Count returns the number of chunks in the corpus
	Count(ctx context.Context) (int, error)

	// Dimensions returns the vector size of the stored embeddings
	Dimensions(ctx context.Context) (int, error)
}
