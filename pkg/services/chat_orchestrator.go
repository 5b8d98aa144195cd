package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/agencyenterprise/AI-Scientist-exp0-sub003/pkg/domain"
	"github.com/agencyenterprise/AI-Scientist-exp0-sub003/pkg/llm"
)

const chatSystemPrompt = `You are a research assistant helping a scientist refine a project idea.
You can read the current idea with the fetch_project_idea tool and rewrite it
with the update_project_idea tool. Fetch the idea before proposing changes.
When the user asks for a change, apply it with update_project_idea and then
confirm what changed. Keep answers concise and concrete.`

type IdeaRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Idea, error)
}

type MessageRepository interface {
	Save(ctx context.Context, msg *domain.Message) error
	GetByIdeaID(ctx context.Context, ideaID int64) ([]domain.Message, error)
}

type AttachmentRepository interface {
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.FileAttachment, error)
	LinkToMessage(ctx context.Context, ids []uuid.UUID, messageID int64) error
}

type FileDownloader interface {
	DownloadFileContent(ctx context.Context, key string) ([]byte, error)
}

type HistorySummarizer interface {
	Summarize(ctx context.Context, content string, model domain.LLMModel) (string, error)
}

type LLMClient interface {
	StreamChat(ctx context.Context, req domain.ChatRequest) (<-chan domain.StreamChunk, <-chan error)
}

type ToolInvoker interface {
	Definitions() []domain.ToolDefinition
	InvokeFunction(ctx context.Context, ideaID int64, name, args string) (string, error)
}

type MessageIndexer interface {
	ReindexMessage(ctx context.Context, messageID int64) error
}

type ChatConfig struct {
	LiveRecentMessageLimit int
	MaxToolRounds          int
	CompletionTokens       int
}

func (c ChatConfig) withDefaults() ChatConfig {
	if c.LiveRecentMessageLimit <= 0 {
		c.LiveRecentMessageLimit = 6
	}
	if c.MaxToolRounds <= 0 {
		c.MaxToolRounds = 5
	}
	if c.CompletionTokens <= 0 {
		c.CompletionTokens = 1024
	}
	return c
}

type chatOrchestrator struct {
	client         LLMClient
	toolSvc        ToolInvoker
	summarizer     HistorySummarizer
	ideaRepo       IdeaRepository
	messageRepo    MessageRepository
	attachmentRepo AttachmentRepository
	downloader     FileDownloader
	indexer        MessageIndexer
	cfg            ChatConfig
}

func NewChatOrchestrator(
	client LLMClient,
	toolSvc ToolInvoker,
	summarizer HistorySummarizer,
	ideaRepo IdeaRepository,
	messageRepo MessageRepository,
	attachmentRepo AttachmentRepository,
	downloader FileDownloader,
	indexer MessageIndexer,
	cfg ChatConfig,
) *chatOrchestrator {
	return &chatOrchestrator{
		client:         client,
		toolSvc:        toolSvc,
		summarizer:     summarizer,
		ideaRepo:       ideaRepo,
		messageRepo:    messageRepo,
		attachmentRepo: attachmentRepo,
		downloader:     downloader,
		indexer:        indexer,
		cfg:            cfg.withDefaults(),
	}
}

// StreamChat runs one chat turn and returns its event stream. The channel is
// closed after the terminal event, or without one if ctx is canceled first.
func (o *chatOrchestrator) StreamChat(ctx context.Context, req domain.ChatTurnRequest) <-chan domain.StreamEvent {
	events := make(chan domain.StreamEvent)

	go func() {
		defer close(events)
		o.run(ctx, req, events)
	}()

	return events
}

func (o *chatOrchestrator) run(ctx context.Context, req domain.ChatTurnRequest, events chan<- domain.StreamEvent) {
	if !o.emit(ctx, events, domain.StatusEvent(domain.StatusAnalyzingRequest)) {
		return
	}

	idea, err := o.ideaRepo.GetByID(ctx, req.IdeaID)
	if err != nil {
		o.emit(ctx, events, domain.ErrorEvent(fmt.Sprintf("fetching idea: %v", err)))
		return
	}

	if idea.Locked {
		o.emit(ctx, events, domain.ConversationLockedEvent(idea.LockURL))
		return
	}

	history, err := o.messageRepo.GetByIdeaID(ctx, req.IdeaID)
	if err != nil {
		o.emit(ctx, events, domain.ErrorEvent(fmt.Sprintf("fetching history: %v", err)))
		return
	}

	userMsg, err := o.buildUserMessage(ctx, req)
	if err != nil {
		o.emit(ctx, events, domain.ErrorEvent(err.Error()))
		return
	}

	messages := append(o.compressHistory(ctx, req.Model, history), userMsg)

	chatReq := domain.ChatRequest{
		Model:        req.Model,
		SystemPrompt: chatSystemPrompt,
		Messages:     messages,
		Tools:        o.toolSvc.Definitions(),
		MaxTokens:    o.cfg.CompletionTokens,
	}

	response, updated, ok := o.streamRounds(ctx, req.IdeaID, chatReq, events)
	if !ok {
		return
	}

	o.persistTurn(ctx, req, response)

	o.emit(ctx, events, domain.DoneEvent(updated, response))
}

// streamRounds drives the model until it answers without requesting tools,
// feeding each round's tool results back as messages. Returns ok=false once
// a terminal event was emitted or the context was canceled.
func (o *chatOrchestrator) streamRounds(ctx context.Context, ideaID int64, req domain.ChatRequest, events chan<- domain.StreamEvent) (response string, updated bool, ok bool) {
	var sb strings.Builder

	for round := 0; round <= o.cfg.MaxToolRounds; round++ {
		if !o.emit(ctx, events, domain.StatusEvent(domain.StatusGeneratingResponse)) {
			return "", false, false
		}

		var toolCalls []domain.ToolCall

		chunkCh, errCh := o.client.StreamChat(ctx, req)
		for chunk := range chunkCh {
			if chunk.Content != "" {
				sb.WriteString(chunk.Content)
				if !o.emit(ctx, events, domain.ContentEvent(chunk.Content)) {
					return "", false, false
				}
			}
			toolCalls = append(toolCalls, chunk.ToolCalls...)
		}
		if err := <-errCh; err != nil {
			if errors.Is(err, context.Canceled) {
				return "", false, false
			}
			o.emit(ctx, events, domain.ErrorEvent(fmt.Sprintf("calling model: %v", err)))
			return "", false, false
		}

		if len(toolCalls) == 0 {
			return sb.String(), updated, true
		}

		// The lock can be taken mid-turn by a pipeline launch. Re-check it
		// before every tool round so no tool runs against a locked idea.
		if idea, err := o.ideaRepo.GetByID(ctx, ideaID); err == nil && idea.Locked {
			o.emit(ctx, events, domain.ConversationLockedEvent(idea.LockURL))
			return "", false, false
		}

		if !o.emit(ctx, events, domain.StatusEvent(domain.StatusExecutingTools)) {
			return "", false, false
		}

		req.Messages = append(req.Messages, domain.Message{
			Role:      domain.MessageRoleAssistant,
			ToolCalls: toolCalls,
		})

		for _, call := range toolCalls {
			if status, known := toolStatus(call.Name); known {
				if !o.emit(ctx, events, domain.StatusEvent(status)) {
					return "", false, false
				}
			}

			result, err := o.toolSvc.InvokeFunction(ctx, ideaID, call.Name, call.Arguments)
			if err != nil {
				toolErr := &domain.ToolExecutionError{Tool: call.Name, Err: err}
				slog.ErrorContext(ctx, "Tool execution failed", "tool", call.Name, "err", err)
				result = toolErr.Error()
			} else if call.Name == "update_project_idea" {
				updated = true
				if idea, ideaErr := o.ideaRepo.GetByID(ctx, ideaID); ideaErr == nil {
					if !o.emit(ctx, events, domain.ProjectUpdatedEvent(idea.Description)) {
						return "", false, false
					}
				}
			}

			req.Messages = append(req.Messages, domain.Message{
				Role:       domain.MessageRoleTool,
				Content:    result,
				ToolCallID: call.ID,
				Name:       call.Name,
			})
		}
	}

	o.emit(ctx, events, domain.ErrorEvent(domain.ErrToolLoopExceeded.Error()))
	return "", false, false
}

func toolStatus(name string) (domain.ChatStatus, bool) {
	switch name {
	case "fetch_project_idea":
		return domain.StatusGettingContext, true
	case "update_project_idea":
		return domain.StatusUpdatingContext, true
	}
	return "", false
}

func (o *chatOrchestrator) buildUserMessage(ctx context.Context, req domain.ChatTurnRequest) (domain.Message, error) {
	msg := domain.Message{
		Role:    domain.MessageRoleUser,
		Content: req.Prompt,
	}

	if len(req.AttachmentIDs) == 0 {
		return msg, nil
	}

	attachments, err := o.attachmentRepo.GetByIDs(ctx, req.AttachmentIDs)
	if err != nil {
		return domain.Message{}, fmt.Errorf("fetching attachments: %w", err)
	}

	for i := range attachments {
		att := &attachments[i]
		if att.IsImage() && !req.Model.SupportsImages {
			slog.WarnContext(ctx, "Model cannot read images, skipping attachment",
				"model", req.Model.ID, "filename", att.Filename)
			continue
		}
		data, err := o.downloader.DownloadFileContent(ctx, att.StorageKey)
		if err != nil {
			return domain.Message{}, fmt.Errorf("downloading attachment %q: %w", att.Filename, err)
		}
		att.Data = data
		msg.Attachments = append(msg.Attachments, *att)
	}

	return msg, nil
}

// compressHistory keeps the newest turns verbatim and swaps everything older
// for one summarized system message once the transcript would crowd out the
// model's completion budget.
func (o *chatOrchestrator) compressHistory(ctx context.Context, model domain.LLMModel, history []domain.Message) []domain.Message {
	if len(history) <= o.cfg.LiveRecentMessageLimit {
		return history
	}

	total := 0
	for _, msg := range history {
		total += len(msg.Content)
	}

	budget := llm.AvailableChars(model.ContextWindowTokens, o.cfg.CompletionTokens, llm.EstimateTokens(chatSystemPrompt), total)
	if total <= budget {
		return history
	}

	cut := len(history) - o.cfg.LiveRecentMessageLimit
	older, recent := history[:cut], history[cut:]

	var sb strings.Builder
	for _, msg := range older {
		sb.WriteString(msg.Role)
		sb.WriteString(": ")
		sb.WriteString(msg.Content)
		sb.WriteString("\n")
	}

	summary, err := o.summarizer.Summarize(ctx, sb.String(), model)
	if err != nil || summary == "" {
		slog.WarnContext(ctx, "History summarization failed, dropping older turns", "err", err)
		return recent
	}

	compressed := []domain.Message{{
		Role:    domain.MessageRoleSystem,
		Content: "Summary of the earlier conversation:\n" + summary,
	}}
	return append(compressed, recent...)
}

// persistTurn stores the user turn and the assistant's final response. The
// turn already streamed to the caller, so persistence failures are logged
// rather than surfaced as stream errors.
func (o *chatOrchestrator) persistTurn(ctx context.Context, req domain.ChatTurnRequest, response string) {
	userMsg := domain.Message{
		IdeaID:  req.IdeaID,
		Role:    domain.MessageRoleUser,
		Content: req.Prompt,
	}
	if err := o.messageRepo.Save(ctx, &userMsg); err != nil {
		slog.ErrorContext(ctx, "Saving user message", "ideaID", req.IdeaID, "err", err)
		return
	}

	if len(req.AttachmentIDs) > 0 {
		if err := o.attachmentRepo.LinkToMessage(ctx, req.AttachmentIDs, userMsg.ID); err != nil {
			slog.ErrorContext(ctx, "Linking attachments", "messageID", userMsg.ID, "err", err)
		}
	}

	assistantMsg := domain.Message{
		IdeaID:  req.IdeaID,
		Role:    domain.MessageRoleAssistant,
		Content: response,
	}
	if err := o.messageRepo.Save(ctx, &assistantMsg); err != nil {
		slog.ErrorContext(ctx, "Saving assistant message", "ideaID", req.IdeaID, "err", err)
		return
	}

	if o.indexer != nil {
		for _, id := range []int64{userMsg.ID, assistantMsg.ID} {
			if err := o.indexer.ReindexMessage(ctx, id); err != nil {
				slog.ErrorContext(ctx, "Indexing message", "messageID", id, "err", err)
			}
		}
	}
}

func (o *chatOrchestrator) emit(ctx context.Context, events chan<- domain.StreamEvent, ev domain.StreamEvent) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
