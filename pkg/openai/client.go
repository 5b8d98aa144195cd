package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/agencyenterprise/AI-Scientist-exp0-sub003/pkg/domain"
)

const embeddingModel = goopenai.SmallEmbedding3

type client struct {
	api *goopenai.Client
}

func NewClient(token string) (*client, error) {
	if token == "" {
		return nil, fmt.Errorf("token is empty")
	}
	return &client{api: goopenai.NewClient(token)}, nil
}

func (c *client) GenerateText(ctx context.Context, model domain.LLMModel, systemPrompt, userPrompt string, maxTokens int) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model:     model.ID,
		MaxTokens: maxTokens,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: goopenai.ChatMessageRoleUser, Content: userPrompt},
		},
	})
	if err != nil {
		return "", &domain.ProviderCallError{Provider: domain.ProviderOpenAI, Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in completion response")
	}
	return resp.Choices[0].Message.Content, nil
}

// StreamChat runs one streaming chat completion. Text deltas are forwarded
// as they arrive; tool-call argument fragments are accumulated by index and
// delivered complete in the final chunk before the channel closes.
func (c *client) StreamChat(ctx context.Context, req domain.ChatRequest) (<-chan domain.StreamChunk, <-chan error) {
	chunkCh := make(chan domain.StreamChunk)
	errCh := make(chan error, 1)

	go func() {
		defer close(chunkCh)
		defer close(errCh)

		stream, err := c.api.CreateChatCompletionStream(ctx, c.buildRequest(req))
		if err != nil {
			errCh <- &domain.ProviderCallError{Provider: domain.ProviderOpenAI, Err: err}
			return
		}
		defer stream.Close()

		acc := newToolCallAccumulator()
		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				errCh <- &domain.ProviderCallError{Provider: domain.ProviderOpenAI, Err: err}
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}

			delta := resp.Choices[0].Delta
			if delta.Content != "" {
				select {
				case chunkCh <- domain.StreamChunk{Content: delta.Content}:
				case <-ctx.Done():
					return
				}
			}
			acc.add(delta.ToolCalls)
		}

		if calls := acc.calls(); len(calls) > 0 {
			select {
			case chunkCh <- domain.StreamChunk{ToolCalls: calls}:
			case <-ctx.Done():
			}
		}
	}()

	return chunkCh, errCh
}

func (c *client) SummarizeImage(ctx context.Context, model domain.LLMModel, mimeType string, data []byte) (string, error) {
	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))

	resp, err := c.api.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model:     model.ID,
		MaxTokens: 512,
		Messages: []goopenai.ChatCompletionMessage{
			{
				Role: goopenai.ChatMessageRoleUser,
				MultiContent: []goopenai.ChatMessagePart{
					{
						Type: goopenai.ChatMessagePartTypeText,
						Text: "Describe this image in detail so the description can stand in for the image in a text-only conversation.",
					},
					{
						Type:     goopenai.ChatMessagePartTypeImageURL,
						ImageURL: &goopenai.ChatMessageImageURL{URL: dataURL},
					},
				},
			},
		},
	})
	if err != nil {
		return "", &domain.ProviderCallError{Provider: domain.ProviderOpenAI, Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in vision response")
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *client) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := c.api.CreateEmbeddings(ctx, goopenai.EmbeddingRequest{
		Input: texts,
		Model: embeddingModel,
	})
	if err != nil {
		return nil, &domain.ProviderCallError{Provider: domain.ProviderOpenAI, Err: err}
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: sent %d texts, got %d vectors", len(texts), len(resp.Data))
	}

	vectors := make([][]float32, len(texts))
	for _, item := range resp.Data {
		vectors[item.Index] = item.Embedding
	}
	return vectors, nil
}

func (c *client) buildRequest(req domain.ChatRequest) goopenai.ChatCompletionRequest {
	messages := make([]goopenai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, goopenai.ChatCompletionMessage{
			Role:    goopenai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	for _, msg := range req.Messages {
		messages = append(messages, convertMessage(msg, req.Model))
	}

	tools := make([]goopenai.Tool, 0, len(req.Tools))
	for _, t := range req.Tools {
		tools = append(tools, goopenai.Tool{
			Type: goopenai.ToolTypeFunction,
			Function: &goopenai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}

	return goopenai.ChatCompletionRequest{
		Model:     req.Model.ID,
		Messages:  messages,
		MaxTokens: req.MaxTokens,
		Tools:     tools,
		Stream:    true,
	}
}

func convertMessage(msg domain.Message, model domain.LLMModel) goopenai.ChatCompletionMessage {
	out := goopenai.ChatCompletionMessage{
		Role:       msg.Role,
		Content:    msg.Content,
		ToolCallID: msg.ToolCallID,
		Name:       msg.Name,
	}

	for _, call := range msg.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, goopenai.ToolCall{
			ID:   call.ID,
			Type: goopenai.ToolTypeFunction,
			Function: goopenai.FunctionCall{
				Name:      call.Name,
				Arguments: call.Arguments,
			},
		})
	}

	// Image attachments ride along as data-URL content parts when the model
	// can see them; callers replace unsupported attachments with text
	// summaries before the request is built.
	if model.SupportsImages {
		var parts []goopenai.ChatMessagePart
		for _, att := range msg.Attachments {
			if !att.IsImage() || len(att.Data) == 0 {
				continue
			}
			dataURL := fmt.Sprintf("data:%s;base64,%s", att.MimeType, base64.StdEncoding.EncodeToString(att.Data))
			parts = append(parts, goopenai.ChatMessagePart{
				Type:     goopenai.ChatMessagePartTypeImageURL,
				ImageURL: &goopenai.ChatMessageImageURL{URL: dataURL},
			})
		}
		if len(parts) > 0 {
			if msg.Content != "" {
				parts = append([]goopenai.ChatMessagePart{{
					Type: goopenai.ChatMessagePartTypeText,
					Text: msg.Content,
				}}, parts...)
			}
			out.Content = ""
			out.MultiContent = parts
		}
	}

	return out
}

// toolCallAccumulator reassembles tool calls from stream fragments. The API
// sends the id and name once, then argument JSON in pieces, all keyed by
// the call's index within the message.
type toolCallAccumulator struct {
	byIndex map[int]*domain.ToolCall
	order   []int
}

func newToolCallAccumulator() *toolCallAccumulator {
	return &toolCallAccumulator{byIndex: make(map[int]*domain.ToolCall)}
}

func (a *toolCallAccumulator) add(fragments []goopenai.ToolCall) {
	for _, f := range fragments {
		idx := 0
		if f.Index != nil {
			idx = *f.Index
		}
		call, ok := a.byIndex[idx]
		if !ok {
			call = &domain.ToolCall{}
			a.byIndex[idx] = call
			a.order = append(a.order, idx)
		}
		if f.ID != "" {
			call.ID = f.ID
		}
		if f.Function.Name != "" {
			call.Name = f.Function.Name
		}
		call.Arguments += f.Function.Arguments
	}
}

func (a *toolCallAccumulator) calls() []domain.ToolCall {
	out := make([]domain.ToolCall, 0, len(a.order))
	for _, idx := range a.order {
		out = append(out, *a.byIndex[idx])
	}
	return out
}
