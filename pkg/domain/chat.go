package domain

const (
	MessageRoleSystem    = "system"
	MessageRoleUser      = "user"
	MessageRoleAssistant = "assistant"
	MessageRoleTool      = "tool"
)

// Message is one turn of a conversation. Messages are ordered by
// SequenceNumber within an idea's conversation and immutable once stored.
type Message struct {
	ID             int64
	IdeaID         int64
	Role           string
	Content        string
	SequenceNumber int
	Attachments    []FileAttachment

	// Tool round-trip fields, never persisted. An assistant message carries
	// the calls it requested; a tool message answers one of them.
	ToolCalls  []ToolCall
	ToolCallID string
	Name       string
}

// ToolCall is a structured request from the model to invoke a named tool.
// Arguments is the raw JSON the model produced, fully accumulated from
// stream fragments before it reaches anyone who executes it.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}
