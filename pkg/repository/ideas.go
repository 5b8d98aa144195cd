package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/agencyenterprise/AI-Scientist-exp0-sub003/pkg/domain"
)

type ideasRepository struct {
	db *sql.DB
}

func NewIdeasRepository(db *sql.DB) *ideasRepository {
	return &ideasRepository{db: db}
}

func (i *ideasRepository) GetByID(ctx context.Context, id int64) (*domain.Idea, error) {
	const query = `
		SELECT id, user_id, title, description, locked, lock_url, created_at, updated_at
		FROM ideas
		WHERE id = $1
	`

	var idea domain.Idea
	err := i.db.QueryRowContext(ctx, query, id).
		Scan(&idea.ID, &idea.UserID, &idea.Title, &idea.Description, &idea.Locked, &idea.LockURL, &idea.CreatedAt, &idea.UpdatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("fetching idea by id: %w", err)
	}

	return &idea, nil
}

func (i *ideasRepository) Save(ctx context.Context, idea *domain.Idea) error {
	const query = `
		INSERT INTO ideas (user_id, title, description, locked, lock_url)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`

	err := i.db.QueryRowContext(ctx, query, idea.UserID, idea.Title, idea.Description, idea.Locked, idea.LockURL).
		Scan(&idea.ID, &idea.CreatedAt, &idea.UpdatedAt)
	if err != nil {
		return fmt.Errorf("saving idea: %w", err)
	}

	return nil
}

func (i *ideasRepository) UpdateDescription(ctx context.Context, id int64, description string) error {
	const query = `
		UPDATE ideas
		SET description = $2, updated_at = NOW()
		WHERE id = $1
	`

	res, err := i.db.ExecContext(ctx, query, id, description)
	if err != nil {
		return fmt.Errorf("updating idea description: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking affected rows: %w", err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}

	return nil
}
