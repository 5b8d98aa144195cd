package tools

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sashabaranov/go-openai/jsonschema"
)

type updateProjectIdea struct {
	repo IdeaUpdateRepository
}

func NewUpdateProjectIdea(repo IdeaUpdateRepository) *updateProjectIdea {
	return &updateProjectIdea{repo: repo}
}

func (u *updateProjectIdea) Name() string {
	return "update_project_idea"
}

func (u *updateProjectIdea) Description() string {
	return "Replace the project idea description with an updated version. Pass the complete new description, not a diff."
}

func (u *updateProjectIdea) Parameters() jsonschema.Definition {
	return jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"content": {
				Type:        jsonschema.String,
				Description: "The full updated idea description in markdown",
			},
		},
		Required: []string{"content"},
	}
}

func (u *updateProjectIdea) Function() any {
	return func(ctx context.Context, ideaID int64, content string) (string, error) {
		slog.DebugContext(ctx, "Tool invoked", "tool", u.Name(), "ideaID", ideaID)

		if content == "" {
			return "", fmt.Errorf("content is empty")
		}

		if err := u.repo.UpdateDescription(ctx, ideaID, content); err != nil {
			return "", fmt.Errorf("updating idea %d: %w", ideaID, err)
		}

		return "Project idea updated.", nil
	}
}
