package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/agencyenterprise/AI-Scientist-exp0-sub003/pkg/api/response"
	"github.com/agencyenterprise/AI-Scientist-exp0-sub003/pkg/domain"
	"github.com/agencyenterprise/AI-Scientist-exp0-sub003/pkg/logger"
)

type ChatStreamer interface {
	StreamChat(ctx context.Context, req domain.ChatTurnRequest) <-chan domain.StreamEvent
}

type ModelResolver interface {
	Get(id string) (domain.LLMModel, error)
}

type chat struct {
	streamer ChatStreamer
	models   ModelResolver
	writer   response.JSONResponseWriter
}

func NewChat(streamer ChatStreamer, models ModelResolver) *chat {
	return &chat{
		streamer: streamer,
		models:   models,
		writer:   response.JSONResponseWriter{},
	}
}

type chatRequestBody struct {
	Model         string   `json:"model"`
	Prompt        string   `json:"prompt"`
	AttachmentIDs []string `json:"attachment_ids"`
}

// StreamChat writes the turn's events as newline-delimited JSON, flushing
// after each event so clients render the response as it is produced.
func (c *chat) StreamChat(w http.ResponseWriter, r *http.Request) {
	ideaID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		c.writer.WriteErrorResponse(w, http.StatusBadRequest, "Invalid idea id.")
		return
	}

	var body chatRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		c.writer.WriteErrorResponse(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if body.Prompt == "" {
		c.writer.WriteErrorResponse(w, http.StatusBadRequest, "Prompt is missing or empty.")
		return
	}

	model, err := c.models.Get(body.Model)
	if err != nil {
		c.writer.WriteErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	attachmentIDs := make([]uuid.UUID, 0, len(body.AttachmentIDs))
	for _, raw := range body.AttachmentIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.writer.WriteErrorResponse(w, http.StatusBadRequest, "Invalid attachment id: "+raw)
			return
		}
		attachmentIDs = append(attachmentIDs, id)
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		c.writer.WriteErrorResponse(w, http.StatusInternalServerError, "Streaming is not supported.")
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	events := c.streamer.StreamChat(r.Context(), domain.ChatTurnRequest{
		IdeaID:        ideaID,
		Model:         model,
		Prompt:        body.Prompt,
		AttachmentIDs: attachmentIDs,
	})

	encoder := json.NewEncoder(w)
	for ev := range events {
		if err := encoder.Encode(marshalEvent(ev)); err != nil {
			slog.ErrorContext(r.Context(), "Encoding stream event", logger.Err(err))
			return
		}
		flusher.Flush()
	}
}

type eventPayload struct {
	Type     string `json:"type"`
	Status   string `json:"status,omitempty"`
	Content  string `json:"content,omitempty"`
	Idea     string `json:"idea,omitempty"`
	LockURL  string `json:"lock_url,omitempty"`
	Message  string `json:"message,omitempty"`
	Updated  *bool  `json:"updated,omitempty"`
	Response string `json:"response,omitempty"`
}

func marshalEvent(ev domain.StreamEvent) eventPayload {
	payload := eventPayload{Type: string(ev.Type)}

	switch ev.Type {
	case domain.EventStatus:
		payload.Status = string(ev.Status)
	case domain.EventContent:
		payload.Content = ev.Content
	case domain.EventProjectUpdated:
		payload.Idea = ev.Content
	case domain.EventConversationLocked:
		payload.LockURL = ev.LockURL
	case domain.EventError:
		payload.Message = ev.Message
	case domain.EventDone:
		payload.Updated = &ev.Updated
		payload.Response = ev.Response
	}

	return payload
}
