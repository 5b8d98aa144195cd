package handler

import (
	"net/http"

	"github.com/agencyenterprise/AI-Scientist-exp0-sub003/pkg/api/response"
)

type health struct {
	writer response.JSONResponseWriter
}

func NewHealth() *health {
	return &health{writer: response.JSONResponseWriter{}}
}

func (h *health) Check(w http.ResponseWriter, _ *http.Request) {
	h.writer.WriteSuccessResponse(w, map[string]string{"status": "ok"})
}
