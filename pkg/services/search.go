package services

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/agencyenterprise/AI-Scientist-exp0-sub003/pkg/domain"
)

type ChunkLister interface {
	ListAll(ctx context.Context) ([]domain.Chunk, error)
}

type searchService struct {
	embedder  Embedder
	chunkRepo ChunkLister
}

func NewSearchService(embedder Embedder, chunkRepo ChunkLister) *searchService {
	return &searchService{embedder: embedder, chunkRepo: chunkRepo}
}

// Search embeds the query and ranks all stored chunks by cosine similarity.
// The corpus is one user's ideas and messages, so a full scan is fine.
func (s *searchService) Search(ctx context.Context, query string, limit int) ([]domain.SearchResult, error) {
	if query == "" {
		return nil, fmt.Errorf("query is empty")
	}
	if limit <= 0 {
		limit = 10
	}

	vectors, err := s.embedder.EmbedTexts(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("expected 1 query vector, got %d", len(vectors))
	}
	queryVec := vectors[0]

	chunks, err := s.chunkRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing chunks: %w", err)
	}

	results := make([]domain.SearchResult, 0, len(chunks))
	for _, chunk := range chunks {
		results = append(results, domain.SearchResult{
			Chunk: chunk,
			Score: cosineSimilarity(queryVec, chunk.Embedding),
		})
	}

	sort.SliceStable(results, func(a, b int) bool {
		return results[a].Score > results[b].Score
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
