package domain

import (
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("not found")

// ErrToolLoopExceeded terminates a chat turn whose model keeps requesting
// tool calls past the configured round bound.
var ErrToolLoopExceeded = errors.New("tool call loop exceeded maximum rounds")

// ErrConversationLocked is returned by collaborators when a downstream
// pipeline run has taken ownership of the conversation.
var ErrConversationLocked = errors.New("conversation is locked")

// UnknownModelError reports a model id absent from the provider registry.
// Non-retryable.
type UnknownModelError struct {
	ModelID string
}

func (e *UnknownModelError) Error() string {
	return fmt.Sprintf("unknown model: %q", e.ModelID)
}

// ProviderCallError wraps a transient failure calling an LLM or embedding
// provider.
type ProviderCallError struct {
	Provider Provider
	Err      error
}

func (e *ProviderCallError) Error() string {
	return fmt.Sprintf("provider %s call failed: %v", e.Provider, e.Err)
}

func (e *ProviderCallError) Unwrap() error { return e.Err }

// ToolExecutionError wraps a tool call whose side effect failed. Side
// effects already applied by earlier calls in the same turn stay applied.
type ToolExecutionError struct {
	Tool string
	Err  error
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("tool %q execution failed: %v", e.Tool, e.Err)
}

func (e *ToolExecutionError) Unwrap() error { return e.Err }
