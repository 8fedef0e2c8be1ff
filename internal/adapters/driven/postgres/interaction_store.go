package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/custodia-labs/askrichie/internal/core/domain"
	"github.com/custodia-labs/askrichie/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.InteractionStore = (*InteractionStore)(nil)

// InteractionStore implements driven.InteractionStore using PostgreSQL.
// Rows are only ever inserted.
type InteractionStore struct {
	db *DB
}

// NewInteractionStore creates a new InteractionStore
func NewInteractionStore(db *DB) *InteractionStore {
	return &InteractionStore{db: db}
}

// Save appends an interaction
func (s *InteractionStore) Save(ctx context.Context, interaction *domain.Interaction) error {
	sources := interaction.SourcesUsed
	if sources == nil {
		sources = []domain.SourceUsed{}
	}
	sourcesJSON, err := json.Marshal(sources)
	if err != nil {
		return fmt.Errorf("marshal sources: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO qa_interactions (id, user_id, question, answer, sources_used, tokens_used, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		interaction.ID,
		interaction.UserID,
		interaction.Question,
		interaction.Answer,
		sourcesJSON,
		interaction.TokensUsed,
		interaction.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert interaction: %w", err)
	}
	return nil
}

// ListByUser returns a user's interactions, newest first
func (s *InteractionStore) ListByUser(ctx context.Context, userID string, limit int) ([]*domain.Interaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, question, answer, sources_used, tokens_used, created_at
		FROM qa_interactions
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list interactions: %w", err)
	}
	defer rows.Close()

	var interactions []*domain.Interaction
	for rows.Next() {
		var (
			i           domain.Interaction
			sourcesJSON []byte
		)
		if err := rows.Scan(&i.ID, &i.UserID, &i.Question, &i.Answer, &sourcesJSON, &i.TokensUsed, &i.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan interaction: %w", err)
		}
		if err := json.Unmarshal(sourcesJSON, &i.SourcesUsed); err != nil {
			return nil, fmt.Errorf("unmarshal sources: %w", err)
		}
		interactions = append(interactions, &i)
	}
	return interactions, rows.Err()
}
