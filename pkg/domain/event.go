package domain

// ChatStatus names the orchestrator phase about to run. Status events are
// emitted strictly before the phase they announce.
type ChatStatus string

const (
	StatusAnalyzingRequest   ChatStatus = "analyzing_request"
	StatusExecutingTools     ChatStatus = "executing_tools"
	StatusGettingContext     ChatStatus = "getting_context"
	StatusUpdatingContext    ChatStatus = "updating_context"
	StatusGeneratingResponse ChatStatus = "generating_response"
)

type StreamEventType string

const (
	EventStatus             StreamEventType = "status"
	EventContent            StreamEventType = "content"
	EventProjectUpdated     StreamEventType = "project_updated"
	EventConversationLocked StreamEventType = "conversation_locked"
	EventError              StreamEventType = "error"
	EventDone               StreamEventType = "done"
)

// StreamEvent is the tagged union a chat turn emits. A turn produces zero or
// more Status/Content/ProjectUpdated events followed by exactly one terminal
// event: Done, Error, or ConversationLocked.
type StreamEvent struct {
	Type StreamEventType

	Status  ChatStatus // EventStatus
	Content string     // EventContent, EventProjectUpdated
	LockURL string     // EventConversationLocked
	Message string     // EventError

	// EventDone
	Updated  bool
	Response string
}

func (e StreamEvent) Terminal() bool {
	switch e.Type {
	case EventDone, EventError, EventConversationLocked:
		return true
	}
	return false
}

func StatusEvent(s ChatStatus) StreamEvent {
	return StreamEvent{Type: EventStatus, Status: s}
}

func ContentEvent(text string) StreamEvent {
	return StreamEvent{Type: EventContent, Content: text}
}

func ProjectUpdatedEvent(idea string) StreamEvent {
	return StreamEvent{Type: EventProjectUpdated, Content: idea}
}

func ConversationLockedEvent(url string) StreamEvent {
	return StreamEvent{Type: EventConversationLocked, LockURL: url}
}

func ErrorEvent(message string) StreamEvent {
	return StreamEvent{Type: EventError, Message: message}
}

func DoneEvent(updated bool, response string) StreamEvent {
	return StreamEvent{Type: EventDone, Updated: updated, Response: response}
}
