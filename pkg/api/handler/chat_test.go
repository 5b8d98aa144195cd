package handler

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/agencyenterprise/AI-Scientist-exp0-sub003/pkg/domain"
)

type fakeStreamer struct {
	events []domain.StreamEvent
	got    domain.ChatTurnRequest
}

func (f *fakeStreamer) StreamChat(_ context.Context, req domain.ChatTurnRequest) <-chan domain.StreamEvent {
	f.got = req
	ch := make(chan domain.StreamEvent)
	go func() {
		defer close(ch)
		for _, ev := range f.events {
			ch <- ev
		}
	}()
	return ch
}

type fakeResolver struct{}

func (fakeResolver) Get(id string) (domain.LLMModel, error) {
	if id != "gpt-4o" {
		return domain.LLMModel{}, &domain.UnknownModelError{ModelID: id}
	}
	return domain.LLMModel{ID: id, Provider: domain.ProviderOpenAI}, nil
}

func newChatRequest(t *testing.T, ideaID, body string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/ideas/"+ideaID+"/chat", strings.NewReader(body))
	req.SetPathValue("id", ideaID)
	return req
}

func TestStreamChat_WritesNDJSON(t *testing.T) {
	streamer := &fakeStreamer{events: []domain.StreamEvent{
		domain.StatusEvent(domain.StatusAnalyzingRequest),
		domain.ContentEvent("Hello"),
		domain.DoneEvent(true, "Hello"),
	}}
	h := NewChat(streamer, fakeResolver{})

	rec := httptest.NewRecorder()
	h.StreamChat(rec, newChatRequest(t, "42", `{"model":"gpt-4o","prompt":"hi"}`))

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusOK)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/x-ndjson" {
		t.Errorf("content type: got %q", ct)
	}
	if streamer.got.IdeaID != 42 {
		t.Errorf("idea id: got %d, want 42", streamer.got.IdeaID)
	}

	var lines []map[string]any
	scanner := bufio.NewScanner(bytes.NewReader(rec.Body.Bytes()))
	for scanner.Scan() {
		var line map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			t.Fatalf("parsing line %q: %v", scanner.Text(), err)
		}
		lines = append(lines, line)
	}

	if len(lines) != 3 {
		t.Fatalf("lines: got %d, want 3", len(lines))
	}
	if lines[0]["type"] != "status" || lines[0]["status"] != "analyzing_request" {
		t.Errorf("first line: got %v", lines[0])
	}
	if lines[1]["type"] != "content" || lines[1]["content"] != "Hello" {
		t.Errorf("second line: got %v", lines[1])
	}
	if lines[2]["type"] != "done" || lines[2]["updated"] != true || lines[2]["response"] != "Hello" {
		t.Errorf("third line: got %v", lines[2])
	}
}

func TestStreamChat_UnknownModel(t *testing.T) {
	h := NewChat(&fakeStreamer{}, fakeResolver{})

	rec := httptest.NewRecorder()
	h.StreamChat(rec, newChatRequest(t, "42", `{"model":"nope","prompt":"hi"}`))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestStreamChat_MissingPrompt(t *testing.T) {
	h := NewChat(&fakeStreamer{}, fakeResolver{})

	rec := httptest.NewRecorder()
	h.StreamChat(rec, newChatRequest(t, "42", `{"model":"gpt-4o"}`))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestStreamChat_InvalidIdeaID(t *testing.T) {
	h := NewChat(&fakeStreamer{}, fakeResolver{})

	rec := httptest.NewRecorder()
	h.StreamChat(rec, newChatRequest(t, "abc", `{"model":"gpt-4o","prompt":"hi"}`))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestMarshalEvent_LockAndError(t *testing.T) {
	locked := marshalEvent(domain.ConversationLockedEvent("https://example.com/x"))
	if locked.Type != "conversation_locked" || locked.LockURL != "https://example.com/x" {
		t.Errorf("locked payload: got %+v", locked)
	}

	errEv := marshalEvent(domain.ErrorEvent("boom"))
	if errEv.Type != "error" || errEv.Message != "boom" {
		t.Errorf("error payload: got %+v", errEv)
	}
}
