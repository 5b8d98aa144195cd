package summarizer

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/agencyenterprise/AI-Scientist-exp0-sub003/pkg/chunker"
	"github.com/agencyenterprise/AI-Scientist-exp0-sub003/pkg/domain"
	"github.com/agencyenterprise/AI-Scientist-exp0-sub003/pkg/llm"
	"github.com/agencyenterprise/AI-Scientist-exp0-sub003/pkg/logger"
)

const mapSystemPrompt = `You summarize documents. You will receive a section of a larger document.
Produce a dense, factual summary of the section. Keep every concrete detail
that someone refining a research project idea would need. Do not add
commentary or preamble.`

const reduceSystemPrompt = `You combine partial summaries. You will receive bullet points, each
summarizing one section of a document, in order. Merge them into a single
coherent summary. Preserve concrete details and ordering. Do not add
commentary or preamble.`

type TextGenerator interface {
	GenerateText(ctx context.Context, model domain.LLMModel, systemPrompt, userPrompt string, maxTokens int) (string, error)
}

type Config struct {
	// SummaryCharBudget is the size above which content is map-reduced and
	// the ceiling a finished summary must fit under.
	SummaryCharBudget int

	// CompletionTokens is reserved out of the model's context window for
	// each summarization response.
	CompletionTokens int

	// MaxReducePasses caps recursion when a reduce output is still over
	// budget; the final pass truncates instead of recursing.
	MaxReducePasses int
}

func (c Config) withDefaults() Config {
	if c.SummaryCharBudget <= 0 {
		c.SummaryCharBudget = 8000
	}
	if c.CompletionTokens <= 0 {
		c.CompletionTokens = 1024
	}
	if c.MaxReducePasses <= 0 {
		c.MaxReducePasses = 3
	}
	return c
}

type Summarizer struct {
	gen TextGenerator
	cfg Config
}

func New(gen TextGenerator, cfg Config) *Summarizer {
	return &Summarizer{gen: gen, cfg: cfg.withDefaults()}
}

// Summarize compresses content into a summary no longer than the configured
// char budget. Short content takes a single map call; longer content is
// chunked per the model's window, each chunk summarized, and the chunk
// summaries combined with a reduce call. It never fails because of a single
// provider error: a failed call degrades to a truncated slice of its input.
func (s *Summarizer) Summarize(ctx context.Context, content string, model domain.LLMModel) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", nil
	}
	if len(content) <= s.cfg.SummaryCharBudget {
		return s.mapCall(ctx, model, content), nil
	}
	return s.mapReduce(ctx, model, content, s.cfg.MaxReducePasses), nil
}

func (s *Summarizer) mapReduce(ctx context.Context, model domain.LLMModel, content string, passesLeft int) string {
	budget := s.chunkBudget(model, content)
	if budget >= len(content) {
		// The window can't be subdivided usefully; degrade to one call.
		return s.mapCall(ctx, model, content)
	}

	chunks := chunker.ChunkText(content, budget)
	if len(chunks) <= 1 {
		return s.mapCall(ctx, model, content)
	}

	summaries := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		summaries = append(summaries, s.mapCall(ctx, model, chunk))
	}

	combined := s.reduceCall(ctx, model, summaries)
	if len(combined) <= s.cfg.SummaryCharBudget {
		return combined
	}

	if passesLeft <= 1 {
		slog.WarnContext(ctx, "Reduce output still over budget after final pass, truncating",
			"combinedChars", len(combined), "budget", s.cfg.SummaryCharBudget)
		return truncate(combined, s.cfg.SummaryCharBudget)
	}
	return s.mapReduce(ctx, model, combined, passesLeft-1)
}

func (s *Summarizer) mapCall(ctx context.Context, model domain.LLMModel, chunk string) string {
	out, err := s.generate(ctx, model, mapSystemPrompt, chunk)
	if err != nil {
		slog.WarnContext(ctx, "Map call failed, falling back to truncated input", logger.Err(err))
		return truncate(chunk, s.cfg.SummaryCharBudget)
	}
	return strings.TrimSpace(out)
}

func (s *Summarizer) reduceCall(ctx context.Context, model domain.LLMModel, summaries []string) string {
	var b strings.Builder
	for _, summary := range summaries {
		b.WriteString("- ")
		b.WriteString(summary)
		b.WriteString("\n")
	}
	bullets := b.String()

	out, err := s.generate(ctx, model, reduceSystemPrompt, bullets)
	if err != nil {
		slog.WarnContext(ctx, "Reduce call failed, falling back to truncated bullets", logger.Err(err))
		return truncate(bullets, s.cfg.SummaryCharBudget)
	}
	return strings.TrimSpace(out)
}

// generate retries once on a transient provider error; map and reduce calls
// are idempotent.
func (s *Summarizer) generate(ctx context.Context, model domain.LLMModel, systemPrompt, userPrompt string) (string, error) {
	out, err := s.gen.GenerateText(ctx, model, systemPrompt, userPrompt, s.cfg.CompletionTokens)
	if err != nil {
		var providerErr *domain.ProviderCallError
		if !errors.As(err, &providerErr) {
			return "", err
		}
		slog.WarnContext(ctx, "Provider call failed, retrying once", logger.Err(err))
		out, err = s.gen.GenerateText(ctx, model, systemPrompt, userPrompt, s.cfg.CompletionTokens)
	}
	return out, err
}

// chunkBudget converts the model's window into a per-chunk char budget for
// the map phase, reserving room for the map prompt and the response.
func (s *Summarizer) chunkBudget(model domain.LLMModel, content string) int {
	overhead := llm.EstimateTokens(mapSystemPrompt)
	return llm.AvailableChars(model.ContextWindowTokens, s.cfg.CompletionTokens, overhead, len(content))
}

func truncate(s string, max int) string {
	if max > 0 && len(s) > max {
		return s[:max]
	}
	return s
}
