package domain

import (
	"testing"
	"time"
)

func TestDefaultRetrievalConfig(t *testing.T) {
	cfg := DefaultRetrievalConfig()

	if cfg.TopK != 5 {
		t.Errorf("expected top k 5, got %d", cfg.TopK)
	}
	if cfg.MinSimilarity != 0.78 {
		t.Errorf("expected min similarity 0.78, got %f", cfg.MinSimilarity)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestRetrievalConfig_Validate(t *testing.T) {
	if err := (RetrievalConfig{TopK: 0, MinSimilarity: 0.5}).Validate(); err == nil {
		t.Error("expected error for zero top k")
	}
	if err := (RetrievalConfig{TopK: 3, MinSimilarity: 1.5}).Validate(); err == nil {
		t.Error("expected error for similarity above 1")
	}
}

func TestSortRanked(t *testing.T) {
	older := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(24 * time.Hour)

	chunks := []*RankedChunk{
		{Chunk: &DocumentChunk{ID: "c", CreatedAt: newer}, Similarity: 0.80},
		{Chunk: &DocumentChunk{ID: "b", CreatedAt: older}, Similarity: 0.85},
		{Chunk: &DocumentChunk{ID: "a", CreatedAt: newer}, Similarity: 0.85},
		{Chunk: &DocumentChunk{ID: "d", CreatedAt: newer}, Similarity: 0.85},
		{Chunk: &DocumentChunk{ID: "e", CreatedAt: older}, Similarity: 0.91},
	}

	SortRanked(chunks)

	want := []string{"e", "a", "d", "b", "c"}
	for i, id := range want {
		if chunks[i].Chunk.ID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, chunks[i].Chunk.ID)
		}
	}
}

func TestCitationsFor(t *testing.T) {
	chunks := []*RankedChunk{
		{Chunk: &DocumentChunk{ID: "h1", Title: "Houston Market Guide", DocType: "guide", SourceURL: "https://example.com/h"}, Similarity: 0.91},
		{Chunk: &DocumentChunk{ID: "d1", Title: "Dallas Market Guide", DocType: "guide"}, Similarity: 0.80},
	}

	citations := CitationsFor(chunks)

	if len(citations) != 2 {
		t.Fatalf("expected 2 citations, got %d", len(citations))
	}
	if citations[0].Reference != "doc-1" || citations[0].Title != "Houston Market Guide" {
		t.Errorf("unexpected first citation: %+v", citations[0])
	}
	if citations[1].Reference != "doc-2" || citations[1].URL != "" {
		t.Errorf("unexpected second citation: %+v", citations[1])
	}

	sources := SourcesFromCitations(citations)
	if sources[0].ChunkID != "h1" || sources[1].Reference != "doc-2" {
		t.Errorf("unexpected sources: %+v", sources)
	}
}
