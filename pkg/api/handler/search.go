package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/agencyenterprise/AI-Scientist-exp0-sub003/pkg/api/response"
	"github.com/agencyenterprise/AI-Scientist-exp0-sub003/pkg/domain"
)

type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]domain.SearchResult, error)
}

type search struct {
	searcher Searcher
	writer   response.JSONResponseWriter
}

func NewSearch(searcher Searcher) *search {
	return &search{
		searcher: searcher,
		writer:   response.JSONResponseWriter{},
	}
}

type searchResultItem struct {
	Kind       string  `json:"kind"`
	EntityID   int64   `json:"entity_id"`
	ChunkIndex int     `json:"chunk_index"`
	Content    string  `json:"content"`
	Score      float64 `json:"score"`
}

func (s *search) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		s.writer.WriteErrorResponse(w, http.StatusBadRequest, "Query parameter 'q' is missing or empty.")
		return
	}

	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			s.writer.WriteErrorResponse(w, http.StatusBadRequest, "Invalid limit.")
			return
		}
		limit = parsed
	}

	results, err := s.searcher.Search(r.Context(), query, limit)
	if err != nil {
		s.writer.WriteErrorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	items := make([]searchResultItem, len(results))
	for i, res := range results {
		items[i] = searchResultItem{
			Kind:       string(res.Chunk.Kind),
			EntityID:   res.Chunk.EntityID,
			ChunkIndex: res.Chunk.ChunkIndex,
			Content:    res.Chunk.Content,
			Score:      res.Score,
		}
	}

	s.writer.WriteSuccessResponse(w, map[string]any{"results": items})
}
