package tools

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sashabaranov/go-openai/jsonschema"
)

type fetchProjectIdea struct {
	repo IdeaReadRepository
}

func NewFetchProjectIdea(repo IdeaReadRepository) *fetchProjectIdea {
	return &fetchProjectIdea{repo: repo}
}

func (f *fetchProjectIdea) Name() string {
	return "fetch_project_idea"
}

func (f *fetchProjectIdea) Description() string {
	return "Fetch the current project idea description. Call this before answering questions about the idea or proposing changes to it."
}

func (f *fetchProjectIdea) Parameters() jsonschema.Definition {
	return jsonschema.Definition{
		Type:       jsonschema.Object,
		Properties: map[string]jsonschema.Definition{},
	}
}

func (f *fetchProjectIdea) Function() any {
	return func(ctx context.Context, ideaID int64) (string, error) {
		slog.DebugContext(ctx, "Tool invoked", "tool", f.Name(), "ideaID", ideaID)

		idea, err := f.repo.GetByID(ctx, ideaID)
		if err != nil {
			return "", fmt.Errorf("fetching idea %d: %w", ideaID, err)
		}

		if idea.Description == "" {
			return "The project idea has no description yet.", nil
		}
		return idea.Description, nil
	}
}
