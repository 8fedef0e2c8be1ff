package domain

import (
	"strconv"
	"time"
)

// DocumentChunk is a pre-embedded excerpt of the private corpus.
// Chunks are written by the ingestion pipeline; the answer engine only reads them.
type DocumentChunk struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	DocType     string    `json:"doc_type"`
	TextContent string    `json:"text_content"`
	SourceURL   string    `json:"source_url,omitempty"`
	Embedding   []float32 `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
}

// Citation references a source used for one answer.
// Reference is "doc-N" where N is the 1-based rank within that answer.
type Citation struct {
	ChunkID   string `json:"id"`
	Reference string `json:"reference"`
	Title     string `json:"title"`
	DocType   string `json:"docType"`
	URL       string `json:"url,omitempty"`
}

// CitationReference returns the reference label for a 1-based rank.
func CitationReference(rank int) string {
	return "doc-" + strconv.Itoa(rank)
}

// CitationsFor builds the citation list for chunks in rank order.
func CitationsFor(chunks []*RankedChunk) []Citation {
	citations := make([]Citation, len(chunks))
	for i, rc := range chunks {
		citations[i] = Citation{
			ChunkID:   rc.Chunk.ID,
			Reference: CitationReference(i + 1),
			Title:     rc.Chunk.Title,
			DocType:   rc.Chunk.DocType,
			URL:       rc.Chunk.SourceURL,
		}
	}
	return citations
}
