package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/custodia-labs/askrichie/internal/core/domain"
	"github.com/custodia-labs/askrichie/internal/core/ports/driven"
)

// Retriever finds the corpus chunks closest to a query vector.
type Retriever struct {
	store  driven.ChunkStore
	config domain.RetrievalConfig
	logger *slog.Logger
}

// RetrieverConfig holds configuration for the retriever.
type RetrieverConfig struct {
	Store     driven.ChunkStore
	Retrieval domain.RetrievalConfig // default: top 5 above 0.78
	Logger    *slog.Logger
}

// NewRetriever creates a new Retriever.
func NewRetriever(cfg RetrieverConfig) *Retriever {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	retrieval := cfg.Retrieval
	if retrieval.Validate() != nil {
		retrieval = domain.DefaultRetrievalConfig()
	}

	return &Retriever{
		store:  cfg.Store,
		config: retrieval,
		logger: logger,
	}
}

// Config returns the active retrieval settings
func (r *Retriever) Config() domain.RetrievalConfig {
	return r.config
}

// Retrieve runs a query with the configured top-k and threshold.
func (r *Retriever) Retrieve(ctx context.Context, vector []float32) (*domain.RetrievalResult, error) {
	return r.RetrieveWith(ctx, vector, r.config.TopK, r.config.MinSimilarity)
}

// RetrieveWith returns at most k chunks with similarity >= minSimilarity,
// ordered by similarity desc, then createdAt desc, then id.
//
// An empty result is reported as domain.ErrNoContentAvailable together with
// a result whose Reason tells an empty corpus from a query nothing matched.
func (r *Retriever) RetrieveWith(ctx context.Context, vector []float32, k int, minSimilarity float64) (*domain.RetrievalResult, error) {
	start := time.Now()

	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: empty query vector", domain.ErrInvalidInput)
	}
	if k <= 0 {
		k = r.config.TopK
	}

	chunks, err := r.store.SimilaritySearch(ctx, vector, k, minSimilarity)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}

	// Stores are expected to filter and order, but the contract is enforced here.
	kept := chunks[:0]
	for _, rc := range chunks {
		if rc != nil && rc.Chunk != nil && rc.Similarity >= minSimilarity {
			kept = append(kept, rc)
		}
	}
	domain.SortRanked(kept)
	if len(kept) > k {
		kept = kept[:k]
	}

	result := &domain.RetrievalResult{Chunks: kept}
	if len(kept) == 0 {
		result.Reason = domain.NoContentBelowThreshold
		total, err := r.store.Count(ctx)
		if err != nil {
			r.logger.Warn("failed to count corpus", "error", err)
		} else if total == 0 {
			result.Reason = domain.NoContentEmptyCorpus
		}
		result.Took = time.Since(start)
		r.logger.Info("retrieval found no content",
			"reason", result.Reason,
			"min_similarity", minSimilarity,
			"took", result.Took)
		return result, fmt.Errorf("%w: %s", domain.ErrNoContentAvailable, result.Reason)
	}

	result.Took = time.Since(start)
	r.logger.Debug("retrieval complete",
		"chunks", len(kept),
		"top_similarity", kept[0].Similarity,
		"took", result.Took)
	return result, nil
}
