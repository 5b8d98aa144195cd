package openai

import (
	"reflect"
	"testing"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/agencyenterprise/AI-Scientist-exp0-sub003/pkg/domain"
)

func idx(i int) *int { return &i }

func TestToolCallAccumulator(t *testing.T) {
	acc := newToolCallAccumulator()

	// First fragment carries id and name, later ones only argument pieces.
	acc.add([]goopenai.ToolCall{
		{Index: idx(0), ID: "call_1", Function: goopenai.FunctionCall{Name: "update_project_idea", Arguments: `{"con`}},
	})
	acc.add([]goopenai.ToolCall{
		{Index: idx(0), Function: goopenai.FunctionCall{Arguments: `tent": "x"}`}},
		{Index: idx(1), ID: "call_2", Function: goopenai.FunctionCall{Name: "fetch_project_idea", Arguments: `{}`}},
	})

	want := []domain.ToolCall{
		{ID: "call_1", Name: "update_project_idea", Arguments: `{"content": "x"}`},
		{ID: "call_2", Name: "fetch_project_idea", Arguments: `{}`},
	}
	if got := acc.calls(); !reflect.DeepEqual(got, want) {
		t.Errorf("calls() = %#v, want %#v", got, want)
	}
}

func TestToolCallAccumulatorEmpty(t *testing.T) {
	acc := newToolCallAccumulator()
	if got := acc.calls(); len(got) != 0 {
		t.Errorf("calls() = %#v, want empty", got)
	}
}

func TestConvertMessageToolRoundTrip(t *testing.T) {
	msg := domain.Message{
		Role:    domain.MessageRoleAssistant,
		Content: "",
		ToolCalls: []domain.ToolCall{
			{ID: "call_1", Name: "fetch_project_idea", Arguments: `{}`},
		},
	}
	out := convertMessage(msg, domain.LLMModel{ID: "gpt-4o"})
	if len(out.ToolCalls) != 1 || out.ToolCalls[0].Function.Name != "fetch_project_idea" {
		t.Errorf("tool calls not converted: %#v", out.ToolCalls)
	}

	toolMsg := domain.Message{
		Role:       domain.MessageRoleTool,
		ToolCallID: "call_1",
		Name:       "fetch_project_idea",
		Content:    `{"result":"ok"}`,
	}
	out = convertMessage(toolMsg, domain.LLMModel{ID: "gpt-4o"})
	if out.ToolCallID != "call_1" || out.Role != domain.MessageRoleTool {
		t.Errorf("tool message not converted: %#v", out)
	}
}

func TestConvertMessageImageAttachment(t *testing.T) {
	msg := domain.Message{
		Role:    domain.MessageRoleUser,
		Content: "what is in this picture?",
		Attachments: []domain.FileAttachment{
			{MimeType: "image/png", Data: []byte{1, 2, 3}},
		},
	}

	visionModel := domain.LLMModel{ID: "gpt-4o", SupportsImages: true}
	out := convertMessage(msg, visionModel)
	if out.Content != "" || len(out.MultiContent) != 2 {
		t.Fatalf("vision message = %#v, want text part + image part", out)
	}
	if out.MultiContent[0].Type != goopenai.ChatMessagePartTypeText {
		t.Errorf("first part = %q, want text", out.MultiContent[0].Type)
	}
	if out.MultiContent[1].Type != goopenai.ChatMessagePartTypeImageURL {
		t.Errorf("second part = %q, want image_url", out.MultiContent[1].Type)
	}

	textModel := domain.LLMModel{ID: "o3-mini"}
	out = convertMessage(msg, textModel)
	if out.Content != msg.Content || out.MultiContent != nil {
		t.Errorf("text-only model must keep plain content, got %#v", out)
	}
}
