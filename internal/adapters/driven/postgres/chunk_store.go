package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/custodia-labs/askrichie/internal/core/domain"
	"github.com/custodia-labs/askrichie/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.ChunkStore = (*ChunkStore)(nil)

// ChunkStore implements driven.ChunkStore over the pgvector document_chunks table
type ChunkStore struct {
	db *DB
}

// NewChunkStore creates a new ChunkStore
func NewChunkStore(db *DB) *ChunkStore {
	return &ChunkStore{db: db}
}

const similarityQuery = `
	SELECT id, title, doc_type, text_content, source_url, created_at,
	       1 - (embedding <=> $1) AS similarity
	FROM document_chunks
	WHERE 1 - (embedding <=> $1) >= $2
	ORDER BY similarity DESC, created_at DESC, id ASC
	LIMIT $3
`

// SimilaritySearch returns up to k chunks whose cosine similarity to vector
// is at least minSimilarity, best first
func (s *ChunkStore) SimilaritySearch(ctx context.Context, vector []float32, k int, minSimilarity float64) ([]*domain.RankedChunk, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: empty query vector", domain.ErrInvalidInput)
	}
	if k <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, similarityQuery, pgvector.NewVector(vector), minSimilarity, k)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	defer rows.Close()

	var results []*domain.RankedChunk
	for rows.Next() {
		var (
			chunk     domain.DocumentChunk
			sourceURL sql.NullString
			sim       float64
		)
		if err := rows.Scan(&chunk.ID, &chunk.Title, &chunk.DocType, &chunk.TextContent,
			&sourceURL, &chunk.CreatedAt, &sim); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		chunk.SourceURL = sourceURL.String
		results = append(results, &domain.RankedChunk{Chunk: &chunk, Similarity: sim})
	}
	return results, rows.Err()
}

// Count returns the number of chunks in the corpus
func (s *ChunkStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM document_chunks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return n, nil
}

// Dimensions reads the declared size of the embedding column.
// For vector(n) the type modifier is n itself.
func (s *ChunkStore) Dimensions(ctx context.Context) (int, error) {
	var typmod int
	err := s.db.QueryRowContext(ctx, `
		SELECT atttypmod FROM pg_attribute
		WHERE attrelid = 'document_chunks'::regclass AND attname = 'embedding'
	`).Scan(&typmod)
	if err != nil {
		return 0, fmt.Errorf("read embedding dimensions: %w", err)
	}
	return typmod, nil
}
