package services

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/agencyenterprise/AI-Scientist-exp0-sub003/pkg/domain"
)

type scriptedRound struct {
	chunks []domain.StreamChunk
	err    error
}

type fakeLLM struct {
	rounds []scriptedRound
	calls  int
}

func (f *fakeLLM) StreamChat(ctx context.Context, req domain.ChatRequest) (<-chan domain.StreamChunk, <-chan error) {
	chunkCh := make(chan domain.StreamChunk)
	errCh := make(chan error, 1)

	round := f.rounds[len(f.rounds)-1]
	if f.calls < len(f.rounds) {
		round = f.rounds[f.calls]
	}
	f.calls++

	go func() {
		defer close(chunkCh)
		defer close(errCh)
		for _, chunk := range round.chunks {
			chunkCh <- chunk
		}
		if round.err != nil {
			errCh <- round.err
		}
	}()

	return chunkCh, errCh
}

type fakeToolInvoker struct {
	results map[string]string
	calls   []string
}

func (f *fakeToolInvoker) Definitions() []domain.ToolDefinition {
	return []domain.ToolDefinition{{Name: "fetch_project_idea"}, {Name: "update_project_idea"}}
}

func (f *fakeToolInvoker) InvokeFunction(_ context.Context, _ int64, name, _ string) (string, error) {
	f.calls = append(f.calls, name)
	result, ok := f.results[name]
	if !ok {
		return "", fmt.Errorf("unexpected tool %q", name)
	}
	return result, nil
}

type fakeIdeaRepo struct {
	idea domain.Idea

	// lock the idea starting from the Nth GetByID call (0 = never)
	lockAfterCalls int
	calls          int
}

func (f *fakeIdeaRepo) GetByID(context.Context, int64) (*domain.Idea, error) {
	f.calls++
	idea := f.idea
	if f.lockAfterCalls > 0 && f.calls > f.lockAfterCalls {
		idea.Locked = true
		idea.LockURL = "https://example.com/locked"
	}
	return &idea, nil
}

type fakeMessageRepo struct {
	history []domain.Message
	saved   []domain.Message
}

func (f *fakeMessageRepo) Save(_ context.Context, msg *domain.Message) error {
	msg.ID = int64(len(f.saved) + 1)
	f.saved = append(f.saved, *msg)
	return nil
}

func (f *fakeMessageRepo) GetByIdeaID(context.Context, int64) ([]domain.Message, error) {
	return f.history, nil
}

type fakeAttachmentRepo struct{}

func (fakeAttachmentRepo) GetByIDs(context.Context, []uuid.UUID) ([]domain.FileAttachment, error) {
	return nil, nil
}

func (fakeAttachmentRepo) LinkToMessage(context.Context, []uuid.UUID, int64) error {
	return nil
}

type fakeSummarizer struct {
	summary string
}

func (f *fakeSummarizer) Summarize(context.Context, string, domain.LLMModel) (string, error) {
	return f.summary, nil
}

func newTestOrchestrator(llmClient *fakeLLM, tools *fakeToolInvoker, ideaRepo *fakeIdeaRepo, msgRepo *fakeMessageRepo, cfg ChatConfig) *chatOrchestrator {
	return NewChatOrchestrator(
		llmClient,
		tools,
		&fakeSummarizer{summary: "SUMMARY"},
		ideaRepo,
		msgRepo,
		fakeAttachmentRepo{},
		nil,
		nil,
		cfg,
	)
}

func testModel() domain.LLMModel {
	return domain.LLMModel{
		ID:                  "gpt-4o",
		Provider:            domain.ProviderOpenAI,
		ContextWindowTokens: 128000,
	}
}

func collectEvents(t *testing.T, events <-chan domain.StreamEvent) []domain.StreamEvent {
	t.Helper()
	var got []domain.StreamEvent
	for ev := range events {
		got = append(got, ev)
	}
	return got
}

func eventTypes(events []domain.StreamEvent) []domain.StreamEventType {
	types := make([]domain.StreamEventType, len(events))
	for i, ev := range events {
		types[i] = ev.Type
	}
	return types
}

func TestStreamChat_PlainResponse(t *testing.T) {
	llmClient := &fakeLLM{rounds: []scriptedRound{
		{chunks: []domain.StreamChunk{{Content: "Hello"}, {Content: " world"}}},
	}}
	msgRepo := &fakeMessageRepo{}
	o := newTestOrchestrator(llmClient, &fakeToolInvoker{}, &fakeIdeaRepo{}, msgRepo, ChatConfig{})

	events := collectEvents(t, o.StreamChat(context.Background(), domain.ChatTurnRequest{
		IdeaID: 1,
		Model:  testModel(),
		Prompt: "hi",
	}))

	wantTypes := []domain.StreamEventType{
		domain.EventStatus, domain.EventStatus,
		domain.EventContent, domain.EventContent,
		domain.EventDone,
	}
	gotTypes := eventTypes(events)
	if len(gotTypes) != len(wantTypes) {
		t.Fatalf("got %d events %v, want %d", len(gotTypes), gotTypes, len(wantTypes))
	}
	for i := range wantTypes {
		if gotTypes[i] != wantTypes[i] {
			t.Errorf("event %d: got %q, want %q", i, gotTypes[i], wantTypes[i])
		}
	}

	done := events[len(events)-1]
	if done.Response != "Hello world" {
		t.Errorf("done response: got %q, want %q", done.Response, "Hello world")
	}
	if done.Updated {
		t.Error("done updated: got true, want false")
	}

	if len(msgRepo.saved) != 2 {
		t.Fatalf("saved messages: got %d, want 2", len(msgRepo.saved))
	}
	if msgRepo.saved[0].Role != domain.MessageRoleUser || msgRepo.saved[0].Content != "hi" {
		t.Errorf("first saved message: got %+v", msgRepo.saved[0])
	}
	if msgRepo.saved[1].Role != domain.MessageRoleAssistant || msgRepo.saved[1].Content != "Hello world" {
		t.Errorf("second saved message: got %+v", msgRepo.saved[1])
	}
}

func TestStreamChat_LockedConversation(t *testing.T) {
	llmClient := &fakeLLM{rounds: []scriptedRound{{}}}
	msgRepo := &fakeMessageRepo{}
	ideaRepo := &fakeIdeaRepo{idea: domain.Idea{Locked: true, LockURL: "https://example.com/experiments/7"}}
	o := newTestOrchestrator(llmClient, &fakeToolInvoker{}, ideaRepo, msgRepo, ChatConfig{})

	events := collectEvents(t, o.StreamChat(context.Background(), domain.ChatTurnRequest{
		IdeaID: 1,
		Model:  testModel(),
		Prompt: "hi",
	}))

	last := events[len(events)-1]
	if last.Type != domain.EventConversationLocked {
		t.Fatalf("terminal event: got %q, want %q", last.Type, domain.EventConversationLocked)
	}
	if last.LockURL != "https://example.com/experiments/7" {
		t.Errorf("lock url: got %q", last.LockURL)
	}
	if llmClient.calls != 0 {
		t.Errorf("model calls: got %d, want 0", llmClient.calls)
	}
	if len(msgRepo.saved) != 0 {
		t.Errorf("saved messages: got %d, want 0", len(msgRepo.saved))
	}
}

func TestStreamChat_ToolRound(t *testing.T) {
	llmClient := &fakeLLM{rounds: []scriptedRound{
		{chunks: []domain.StreamChunk{{ToolCalls: []domain.ToolCall{
			{ID: "call_1", Name: "update_project_idea", Arguments: `{"content":"better idea"}`},
		}}}},
		{chunks: []domain.StreamChunk{{Content: "Updated the idea."}}},
	}}
	tools := &fakeToolInvoker{results: map[string]string{"update_project_idea": "Project idea updated."}}
	ideaRepo := &fakeIdeaRepo{idea: domain.Idea{Description: "better idea"}}
	msgRepo := &fakeMessageRepo{}
	o := newTestOrchestrator(llmClient, tools, ideaRepo, msgRepo, ChatConfig{})

	events := collectEvents(t, o.StreamChat(context.Background(), domain.ChatTurnRequest{
		IdeaID: 1,
		Model:  testModel(),
		Prompt: "improve it",
	}))

	var statuses []domain.ChatStatus
	var projectUpdated *domain.StreamEvent
	for i, ev := range events {
		switch ev.Type {
		case domain.EventStatus:
			statuses = append(statuses, ev.Status)
		case domain.EventProjectUpdated:
			projectUpdated = &events[i]
		}
	}

	wantStatuses := []domain.ChatStatus{
		domain.StatusAnalyzingRequest,
		domain.StatusGeneratingResponse,
		domain.StatusExecutingTools,
		domain.StatusUpdatingContext,
		domain.StatusGeneratingResponse,
	}
	if len(statuses) != len(wantStatuses) {
		t.Fatalf("statuses: got %v, want %v", statuses, wantStatuses)
	}
	for i := range wantStatuses {
		if statuses[i] != wantStatuses[i] {
			t.Errorf("status %d: got %q, want %q", i, statuses[i], wantStatuses[i])
		}
	}

	if projectUpdated == nil {
		t.Fatal("expected a project_updated event")
	}
	if projectUpdated.Content != "better idea" {
		t.Errorf("project_updated content: got %q", projectUpdated.Content)
	}

	done := events[len(events)-1]
	if done.Type != domain.EventDone {
		t.Fatalf("terminal event: got %q, want %q", done.Type, domain.EventDone)
	}
	if !done.Updated {
		t.Error("done updated: got false, want true")
	}
	if done.Response != "Updated the idea." {
		t.Errorf("done response: got %q", done.Response)
	}

	if len(tools.calls) != 1 || tools.calls[0] != "update_project_idea" {
		t.Errorf("tool calls: got %v", tools.calls)
	}
}

func TestStreamChat_ToolLoopExceeded(t *testing.T) {
	llmClient := &fakeLLM{rounds: []scriptedRound{
		{chunks: []domain.StreamChunk{{ToolCalls: []domain.ToolCall{
			{ID: "call_1", Name: "fetch_project_idea", Arguments: "{}"},
		}}}},
	}}
	tools := &fakeToolInvoker{results: map[string]string{"fetch_project_idea": "the idea"}}
	msgRepo := &fakeMessageRepo{}
	o := newTestOrchestrator(llmClient, tools, &fakeIdeaRepo{}, msgRepo, ChatConfig{MaxToolRounds: 2})

	events := collectEvents(t, o.StreamChat(context.Background(), domain.ChatTurnRequest{
		IdeaID: 1,
		Model:  testModel(),
		Prompt: "hi",
	}))

	last := events[len(events)-1]
	if last.Type != domain.EventError {
		t.Fatalf("terminal event: got %q, want %q", last.Type, domain.EventError)
	}
	if !strings.Contains(last.Message, "loop") {
		t.Errorf("error message: got %q", last.Message)
	}
	if llmClient.calls != 3 {
		t.Errorf("model calls: got %d, want 3", llmClient.calls)
	}
	if len(msgRepo.saved) != 0 {
		t.Errorf("saved messages: got %d, want 0", len(msgRepo.saved))
	}
}

func TestStreamChat_LockTakenMidTurn(t *testing.T) {
	llmClient := &fakeLLM{rounds: []scriptedRound{
		{chunks: []domain.StreamChunk{{ToolCalls: []domain.ToolCall{
			{ID: "call_1", Name: "fetch_project_idea", Arguments: "{}"},
		}}}},
	}}
	tools := &fakeToolInvoker{results: map[string]string{"fetch_project_idea": "the idea"}}
	ideaRepo := &fakeIdeaRepo{lockAfterCalls: 1}
	msgRepo := &fakeMessageRepo{}
	o := newTestOrchestrator(llmClient, tools, ideaRepo, msgRepo, ChatConfig{})

	events := collectEvents(t, o.StreamChat(context.Background(), domain.ChatTurnRequest{
		IdeaID: 1,
		Model:  testModel(),
		Prompt: "hi",
	}))

	last := events[len(events)-1]
	if last.Type != domain.EventConversationLocked {
		t.Fatalf("terminal event: got %q, want %q", last.Type, domain.EventConversationLocked)
	}
	if len(tools.calls) != 0 {
		t.Errorf("tool calls after lock: got %v, want none", tools.calls)
	}
}

func TestStreamChat_ModelError(t *testing.T) {
	llmClient := &fakeLLM{rounds: []scriptedRound{
		{err: &domain.ProviderCallError{Provider: domain.ProviderOpenAI, Err: fmt.Errorf("rate limited")}},
	}}
	msgRepo := &fakeMessageRepo{}
	o := newTestOrchestrator(llmClient, &fakeToolInvoker{}, &fakeIdeaRepo{}, msgRepo, ChatConfig{})

	events := collectEvents(t, o.StreamChat(context.Background(), domain.ChatTurnRequest{
		IdeaID: 1,
		Model:  testModel(),
		Prompt: "hi",
	}))

	last := events[len(events)-1]
	if last.Type != domain.EventError {
		t.Fatalf("terminal event: got %q, want %q", last.Type, domain.EventError)
	}
	if len(msgRepo.saved) != 0 {
		t.Errorf("saved messages: got %d, want 0", len(msgRepo.saved))
	}
}

func TestCompressHistory(t *testing.T) {
	o := newTestOrchestrator(&fakeLLM{rounds: []scriptedRound{{}}}, &fakeToolInvoker{}, &fakeIdeaRepo{}, &fakeMessageRepo{}, ChatConfig{
		LiveRecentMessageLimit: 2,
		CompletionTokens:       10,
	})

	history := make([]domain.Message, 6)
	for i := range history {
		history[i] = domain.Message{
			Role:    domain.MessageRoleUser,
			Content: strings.Repeat("x", 50),
		}
	}

	// window barely larger than the system prompt, so the transcript cannot fit
	model := domain.LLMModel{ContextWindowTokens: 120}

	got := o.compressHistory(context.Background(), model, history)

	if len(got) != 3 {
		t.Fatalf("compressed length: got %d, want 3", len(got))
	}
	if got[0].Role != domain.MessageRoleSystem || !strings.Contains(got[0].Content, "SUMMARY") {
		t.Errorf("summary message: got %+v", got[0])
	}
	if got[1].Content != history[4].Content || got[2].Content != history[5].Content {
		t.Error("recent messages were not preserved verbatim")
	}
}

func TestCompressHistory_FitsWithinBudget(t *testing.T) {
	o := newTestOrchestrator(&fakeLLM{rounds: []scriptedRound{{}}}, &fakeToolInvoker{}, &fakeIdeaRepo{}, &fakeMessageRepo{}, ChatConfig{
		LiveRecentMessageLimit: 2,
	})

	history := []domain.Message{
		{Role: domain.MessageRoleUser, Content: "short"},
		{Role: domain.MessageRoleAssistant, Content: "reply"},
		{Role: domain.MessageRoleUser, Content: "another"},
	}

	got := o.compressHistory(context.Background(), testModel(), history)

	if len(got) != len(history) {
		t.Fatalf("history length: got %d, want %d", len(got), len(history))
	}
	for i := range history {
		if got[i].Content != history[i].Content {
			t.Errorf("message %d changed: got %q", i, got[i].Content)
		}
	}
}
