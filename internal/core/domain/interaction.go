package domain

import "time"

// SourceUsed records one source cited by a stored interaction
type SourceUsed struct {
	ChunkID   string `json:"chunkId"`
	Title     string `json:"title"`
	DocType   string `json:"docType"`
	Reference string `json:"reference"`
}

// Interaction is the append-only audit record of one answered question.
// It is created exactly once per completed answer and never mutated.
type Interaction struct {
	ID          string       `json:"id"`
	UserID      string       `json:"userId"`
	Question    string       `json:"question"`
	Answer      string       `json:"answer"`
	SourcesUsed []SourceUsed `json:"sourcesUsed"`
	TokensUsed  int          `json:"tokensUsed"`
	CreatedAt   time.Time    `json:"createdAt"`
}

// SourcesFromCitations converts answer citations into stored sources
func SourcesFromCitations(citations []Citation) []SourceUsed {
	sources := make([]SourceUsed, len(citations))
	for i, c := range citations {
		sources[i] = SourceUsed{
			ChunkID:   c.ChunkID,
			Title:     c.Title,
			DocType:   c.DocType,
			Reference: c.Reference,
		}
	}
	return sources
}

// Answer is a grounded, cited answer as returned to the caller
type Answer struct {
	InteractionID string     `json:"interactionId,omitempty"`
	Text          string     `json:"answer"`
	Sources       []Citation `json:"sources"`
	TokensUsed    int        `json:"tokensUsed"`
	Timestamp     time.Time  `json:"timestamp"`
}
