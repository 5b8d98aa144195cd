package services

import (
	"context"
	"fmt"

	"github.com/agencyenterprise/AI-Scientist-exp0-sub003/pkg/domain"
)

type ProviderClient interface {
	GenerateText(ctx context.Context, model domain.LLMModel, systemPrompt, userPrompt string, maxTokens int) (string, error)
	StreamChat(ctx context.Context, req domain.ChatRequest) (<-chan domain.StreamChunk, <-chan error)
	SummarizeImage(ctx context.Context, model domain.LLMModel, mimeType string, data []byte) (string, error)
}

// llmRouter dispatches each call to the provider client owning the model.
// Callers work against resolved models, so routing is a map lookup.
type llmRouter struct {
	clients map[domain.Provider]ProviderClient
}

func NewLLMRouter(clients map[domain.Provider]ProviderClient) *llmRouter {
	return &llmRouter{clients: clients}
}

func (r *llmRouter) GenerateText(ctx context.Context, model domain.LLMModel, systemPrompt, userPrompt string, maxTokens int) (string, error) {
	client, err := r.clientFor(model.Provider)
	if err != nil {
		return "", err
	}
	return client.GenerateText(ctx, model, systemPrompt, userPrompt, maxTokens)
}

func (r *llmRouter) StreamChat(ctx context.Context, req domain.ChatRequest) (<-chan domain.StreamChunk, <-chan error) {
	client, err := r.clientFor(req.Model.Provider)
	if err != nil {
		chunkCh := make(chan domain.StreamChunk)
		errCh := make(chan error, 1)
		close(chunkCh)
		errCh <- err
		close(errCh)
		return chunkCh, errCh
	}
	return client.StreamChat(ctx, req)
}

func (r *llmRouter) SummarizeImage(ctx context.Context, model domain.LLMModel, mimeType string, data []byte) (string, error) {
	client, err := r.clientFor(model.Provider)
	if err != nil {
		return "", err
	}
	return client.SummarizeImage(ctx, model, mimeType, data)
}

func (r *llmRouter) clientFor(provider domain.Provider) (ProviderClient, error) {
	client, ok := r.clients[provider]
	if !ok {
		return nil, fmt.Errorf("no client configured for provider %q", provider)
	}
	return client, nil
}
