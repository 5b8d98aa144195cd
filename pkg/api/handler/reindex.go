package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/agencyenterprise/AI-Scientist-exp0-sub003/pkg/api/response"
	"github.com/agencyenterprise/AI-Scientist-exp0-sub003/pkg/domain"
)

type IdeaIndexer interface {
	ReindexIdea(ctx context.Context, ideaID int64) error
}

type reindex struct {
	indexer IdeaIndexer
	writer  response.JSONResponseWriter
}

func NewReindex(indexer IdeaIndexer) *reindex {
	return &reindex{
		indexer: indexer,
		writer:  response.JSONResponseWriter{},
	}
}

func (re *reindex) ReindexIdea(w http.ResponseWriter, r *http.Request) {
	ideaID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		re.writer.WriteErrorResponse(w, http.StatusBadRequest, "Invalid idea id.")
		return
	}

	if err := re.indexer.ReindexIdea(r.Context(), ideaID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			re.writer.WriteErrorResponse(w, http.StatusNotFound, "Idea not found.")
			return
		}
		re.writer.WriteErrorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	re.writer.WriteSuccessResponse(w, map[string]string{"status": "ok"})
}
