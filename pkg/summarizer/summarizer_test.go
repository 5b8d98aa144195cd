package summarizer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/agencyenterprise/AI-Scientist-exp0-sub003/pkg/domain"
	"github.com/agencyenterprise/AI-Scientist-exp0-sub003/pkg/llm"
)

type genCall struct {
	systemPrompt string
	userPrompt   string
}

type fakeGenerator struct {
	calls   []genCall
	respond func(systemPrompt, userPrompt string) (string, error)
}

func (f *fakeGenerator) GenerateText(_ context.Context, _ domain.LLMModel, systemPrompt, userPrompt string, _ int) (string, error) {
	f.calls = append(f.calls, genCall{systemPrompt: systemPrompt, userPrompt: userPrompt})
	return f.respond(systemPrompt, userPrompt)
}

func (f *fakeGenerator) mapCalls() []genCall {
	var out []genCall
	for _, c := range f.calls {
		if c.systemPrompt == mapSystemPrompt {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeGenerator) reduceCalls() []genCall {
	var out []genCall
	for _, c := range f.calls {
		if c.systemPrompt == reduceSystemPrompt {
			out = append(out, c)
		}
	}
	return out
}

func TestSummarizeSingleChunkShortcut(t *testing.T) {
	gen := &fakeGenerator{respond: func(_, _ string) (string, error) {
		return "SHORT SUMMARY", nil
	}}
	s := New(gen, Config{SummaryCharBudget: 100, CompletionTokens: 10})

	got, err := s.Summarize(context.Background(), "A short document.", domain.LLMModel{ContextWindowTokens: 128000})
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if got != "SHORT SUMMARY" {
		t.Errorf("summary = %q, want map output", got)
	}
	if len(gen.mapCalls()) != 1 || len(gen.reduceCalls()) != 0 {
		t.Errorf("calls = %d map, %d reduce; want 1 map, 0 reduce", len(gen.mapCalls()), len(gen.reduceCalls()))
	}
}

func TestSummarizeMultiChunkReduce(t *testing.T) {
	mapCount := 0
	gen := &fakeGenerator{}
	gen.respond = func(systemPrompt, _ string) (string, error) {
		if systemPrompt == mapSystemPrompt {
			mapCount++
			return fmt.Sprintf("MAP%d", mapCount), nil
		}
		return "REDUCED", nil
	}

	cfg := Config{SummaryCharBudget: 40, CompletionTokens: 10}
	s := New(gen, cfg)

	// Pick a window so the per-chunk budget is 60 chars: two paragraphs of
	// ~50 chars each become two chunks.
	overhead := llm.EstimateTokens(mapSystemPrompt)
	model := domain.LLMModel{ContextWindowTokens: overhead + cfg.CompletionTokens + 15}

	para := strings.Repeat("x", 50)
	content := para + "\n\n" + para

	got, err := s.Summarize(context.Background(), content, model)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if got != "REDUCED" {
		t.Errorf("summary = %q, want reduce output", got)
	}

	maps := gen.mapCalls()
	reduces := gen.reduceCalls()
	if len(maps) != 2 {
		t.Fatalf("map calls = %d, want 2", len(maps))
	}
	if len(reduces) != 1 {
		t.Fatalf("reduce calls = %d, want 1", len(reduces))
	}
	for _, bullet := range []string{"- MAP1", "- MAP2"} {
		if !strings.Contains(reduces[0].userPrompt, bullet) {
			t.Errorf("reduce prompt missing %q:\n%s", bullet, reduces[0].userPrompt)
		}
	}
}

func TestSummarizeZeroBudgetFallback(t *testing.T) {
	gen := &fakeGenerator{respond: func(_, _ string) (string, error) {
		return "DEGRADED SUMMARY", nil
	}}
	s := New(gen, Config{SummaryCharBudget: 40, CompletionTokens: 10})

	// Window smaller than the reservation: the char budget collapses to the
	// content length, which must force a single map call and no reduce.
	model := domain.LLMModel{ContextWindowTokens: 1}
	content := strings.Repeat("word. ", 30)

	got, err := s.Summarize(context.Background(), content, model)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if got != "DEGRADED SUMMARY" {
		t.Errorf("summary = %q", got)
	}
	if len(gen.mapCalls()) != 1 || len(gen.reduceCalls()) != 0 {
		t.Errorf("calls = %d map, %d reduce; want 1 map, 0 reduce", len(gen.mapCalls()), len(gen.reduceCalls()))
	}
}

func TestSummarizeProviderErrorRetriesThenTruncates(t *testing.T) {
	gen := &fakeGenerator{respond: func(_, _ string) (string, error) {
		return "", &domain.ProviderCallError{Provider: domain.ProviderOpenAI, Err: errors.New("boom")}
	}}
	s := New(gen, Config{SummaryCharBudget: 10, CompletionTokens: 10})

	content := "This content is certainly longer than ten characters."
	got, err := s.Summarize(context.Background(), content, domain.LLMModel{ContextWindowTokens: 128000})
	if err != nil {
		t.Fatalf("Summarize must absorb single-call provider errors, got %v", err)
	}
	if got != content[:10] {
		t.Errorf("fallback = %q, want truncated input %q", got, content[:10])
	}
	// Transient errors get exactly one retry.
	if len(gen.calls) != 2 {
		t.Errorf("generator calls = %d, want 2 (original + retry)", len(gen.calls))
	}
}

func TestSummarizeNonProviderErrorNotRetried(t *testing.T) {
	gen := &fakeGenerator{respond: func(_, _ string) (string, error) {
		return "", errors.New("context canceled")
	}}
	s := New(gen, Config{SummaryCharBudget: 10, CompletionTokens: 10})

	if _, err := s.Summarize(context.Background(), "Long enough content here.", domain.LLMModel{ContextWindowTokens: 128000}); err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if len(gen.calls) != 1 {
		t.Errorf("generator calls = %d, want 1 (no retry)", len(gen.calls))
	}
}

func TestSummarizeEmptyContent(t *testing.T) {
	gen := &fakeGenerator{respond: func(_, _ string) (string, error) {
		t.Fatal("generator must not be called for empty content")
		return "", nil
	}}
	s := New(gen, Config{})

	got, err := s.Summarize(context.Background(), "   \n ", domain.LLMModel{ContextWindowTokens: 128000})
	if err != nil || got != "" {
		t.Errorf("Summarize(empty) = (%q, %v), want (\"\", nil)", got, err)
	}
}
