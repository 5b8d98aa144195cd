package domain

import (
	"github.com/google/uuid"
	"github.com/sashabaranov/go-openai/jsonschema"
)

// ChatTurnRequest is one user turn against an idea's conversation.
type ChatTurnRequest struct {
	IdeaID        int64
	Model         LLMModel
	Prompt        string
	AttachmentIDs []uuid.UUID
}

// ToolDefinition is the provider-neutral shape of a callable tool. Each
// provider encodes Parameters into its own wire format.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  jsonschema.Definition
}

// ChatRequest is one streaming call to a provider: the full message list to
// send (system prompt, compressed history, the new user turn, any pending
// tool round-trip messages) plus the tools the model may call.
type ChatRequest struct {
	Model        LLMModel
	SystemPrompt string
	Messages     []Message
	Tools        []ToolDefinition
	MaxTokens    int
}

// StreamChunk is one increment of a provider's streaming response. Content
// chunks arrive in order as the provider produces them; a chunk carrying
// ToolCalls is emitted only once the provider has finished accumulating the
// call's argument fragments.
type StreamChunk struct {
	Content   string
	ToolCalls []ToolCall
}
