package tools

import (
	"context"

	"github.com/agencyenterprise/AI-Scientist-exp0-sub003/pkg/domain"
)

type IdeaReadRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Idea, error)
}

type IdeaUpdateRepository interface {
	UpdateDescription(ctx context.Context, id int64, description string) error
}
