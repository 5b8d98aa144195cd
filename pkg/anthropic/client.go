package anthropic

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/agencyenterprise/AI-Scientist-exp0-sub003/pkg/domain"
)

const (
	messagesURL = "https://api.anthropic.com/v1/messages"
	apiVersion  = "2023-06-01"
)

type client struct {
	token string
	hc    *http.Client
}

func NewClient(token string) (*client, error) {
	if token == "" {
		return nil, fmt.Errorf("token is empty")
	}
	return &client{
		token: token,
		hc:    &http.Client{},
	}, nil
}

func (c *client) GenerateText(ctx context.Context, model domain.LLMModel, systemPrompt, userPrompt string, maxTokens int) (string, error) {
	req := messagesRequest{
		Model:     model.ID,
		MaxTokens: maxTokens,
		System:    systemPrompt,
		Messages: []message{
			{Role: "user", Content: []contentBlock{{Type: "text", Text: userPrompt}}},
		},
	}

	resp, err := c.send(ctx, req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var decoded messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	var text strings.Builder
	for _, block := range decoded.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return text.String(), nil
}

// StreamChat runs one streaming Messages API call. Text deltas are forwarded
// as they arrive; tool_use blocks accumulate their input_json_delta
// fragments by block index and are delivered complete in the final chunk.
func (c *client) StreamChat(ctx context.Context, req domain.ChatRequest) (<-chan domain.StreamChunk, <-chan error) {
	chunkCh := make(chan domain.StreamChunk)
	errCh := make(chan error, 1)

	go func() {
		defer close(chunkCh)
		defer close(errCh)

		wireReq, err := c.buildRequest(req)
		if err != nil {
			errCh <- err
			return
		}
		wireReq.Stream = true

		resp, err := c.send(ctx, wireReq)
		if err != nil {
			errCh <- err
			return
		}
		defer resp.Body.Close()

		if err := c.parseStream(ctx, resp.Body, chunkCh); err != nil {
			if ctx.Err() != nil {
				return
			}
			errCh <- err
		}
	}()

	return chunkCh, errCh
}

func (c *client) parseStream(ctx context.Context, body io.Reader, chunkCh chan<- domain.StreamChunk) error {
	type toolBlock struct {
		call domain.ToolCall
		args strings.Builder
	}
	toolBlocks := make(map[int]*toolBlock)
	var toolOrder []int

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		var event streamEvent
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event); err != nil {
			continue
		}

		switch event.Type {
		case eventContentBlockStart:
			if event.ContentBlock != nil && event.ContentBlock.Type == "tool_use" {
				toolBlocks[event.Index] = &toolBlock{call: domain.ToolCall{
					ID:   event.ContentBlock.ID,
					Name: event.ContentBlock.Name,
				}}
				toolOrder = append(toolOrder, event.Index)
			}

		case eventContentBlockDelta:
			if event.Delta == nil {
				continue
			}
			switch event.Delta.Type {
			case "text_delta":
				if event.Delta.Text == "" {
					continue
				}
				select {
				case chunkCh <- domain.StreamChunk{Content: event.Delta.Text}:
				case <-ctx.Done():
					return ctx.Err()
				}
			case "input_json_delta":
				if tb, ok := toolBlocks[event.Index]; ok {
					tb.args.WriteString(event.Delta.PartialJSON)
				}
			}

		case eventError:
			msg := "stream error"
			if event.Error != nil {
				msg = event.Error.Message
			}
			return &domain.ProviderCallError{Provider: domain.ProviderAnthropic, Err: fmt.Errorf("%s", msg)}

		case eventMessageStop:
			if len(toolOrder) > 0 {
				calls := make([]domain.ToolCall, 0, len(toolOrder))
				for _, idx := range toolOrder {
					tb := toolBlocks[idx]
					args := tb.args.String()
					if args == "" {
						args = "{}"
					}
					tb.call.Arguments = args
					calls = append(calls, tb.call)
				}
				select {
				case chunkCh <- domain.StreamChunk{ToolCalls: calls}:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return &domain.ProviderCallError{Provider: domain.ProviderAnthropic, Err: err}
	}
	return nil
}

func (c *client) SummarizeImage(ctx context.Context, model domain.LLMModel, mimeType string, data []byte) (string, error) {
	req := messagesRequest{
		Model:     model.ID,
		MaxTokens: 512,
		Messages: []message{
			{
				Role: "user",
				Content: []contentBlock{
					{Type: "text", Text: "Describe this image in detail so the description can stand in for the image in a text-only conversation."},
					{Type: "image", Source: &imageSource{
						Type:      "base64",
						MediaType: mimeType,
						Data:      base64.StdEncoding.EncodeToString(data),
					}},
				},
			},
		},
	}

	resp, err := c.send(ctx, req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var decoded messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	for _, block := range decoded.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("no text block in vision response")
}

func (c *client) buildRequest(req domain.ChatRequest) (messagesRequest, error) {
	messages := make([]message, 0, len(req.Messages))
	for _, msg := range req.Messages {
		converted, err := convertMessage(msg, req.Model)
		if err != nil {
			return messagesRequest{}, err
		}
		messages = append(messages, converted)
	}

	tools := make([]tool, 0, len(req.Tools))
	for _, t := range req.Tools {
		tools = append(tools, tool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.Parameters,
		})
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	return messagesRequest{
		Model:     req.Model.ID,
		MaxTokens: maxTokens,
		System:    req.SystemPrompt,
		Messages:  messages,
		Tools:     tools,
	}, nil
}

func convertMessage(msg domain.Message, model domain.LLMModel) (message, error) {
	switch msg.Role {
	case domain.MessageRoleTool:
		// Tool results go back as user-role tool_result blocks.
		return message{
			Role: "user",
			Content: []contentBlock{{
				Type:      "tool_result",
				ToolUseID: msg.ToolCallID,
				Content:   msg.Content,
			}},
		}, nil

	case domain.MessageRoleAssistant:
		var blocks []contentBlock
		if msg.Content != "" {
			blocks = append(blocks, contentBlock{Type: "text", Text: msg.Content})
		}
		for _, call := range msg.ToolCalls {
			input := json.RawMessage(call.Arguments)
			if !json.Valid(input) {
				input = json.RawMessage("{}")
			}
			blocks = append(blocks, contentBlock{
				Type:  "tool_use",
				ID:    call.ID,
				Name:  call.Name,
				Input: input,
			})
		}
		return message{Role: "assistant", Content: blocks}, nil

	default:
		blocks := []contentBlock{{Type: "text", Text: msg.Content}}
		if model.SupportsImages {
			for _, att := range msg.Attachments {
				if !att.IsImage() || len(att.Data) == 0 {
					continue
				}
				blocks = append(blocks, contentBlock{
					Type: "image",
					Source: &imageSource{
						Type:      "base64",
						MediaType: att.MimeType,
						Data:      base64.StdEncoding.EncodeToString(att.Data),
					},
				})
			}
		}
		return message{Role: "user", Content: blocks}, nil
	}
}

func (c *client) send(ctx context.Context, reqBody messagesRequest) (*http.Response, error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, messagesURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating HTTP request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.token)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, &domain.ProviderCallError{Provider: domain.ProviderAnthropic, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		bodyBytes, _ := io.ReadAll(resp.Body)

		var apiErr errorResponse
		if err := json.Unmarshal(bodyBytes, &apiErr); err == nil && apiErr.Error.Message != "" {
			return nil, &domain.ProviderCallError{
				Provider: domain.ProviderAnthropic,
				Err:      fmt.Errorf("%s: %s", apiErr.Error.Type, apiErr.Error.Message),
			}
		}
		return nil, &domain.ProviderCallError{
			Provider: domain.ProviderAnthropic,
			Err:      fmt.Errorf("unexpected status code: %d, response: %s", resp.StatusCode, string(bodyBytes)),
		}
	}

	return resp, nil
}
