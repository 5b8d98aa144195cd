package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/agencyenterprise/AI-Scientist-exp0-sub003/pkg/domain"
)

type attachmentsRepository struct {
	db *sql.DB
}

func NewAttachmentsRepository(db *sql.DB) *attachmentsRepository {
	return &attachmentsRepository{db: db}
}

func (a *attachmentsRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.FileAttachment, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`
		SELECT id, filename, size, mime_type, storage_key
		FROM attachments
		WHERE id IN (%s)
	`, placeholders(len(ids)))

	args := lo.Map(ids, func(id uuid.UUID, _ int) any { return id.String() })

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetching attachments by ids: %w", err)
	}
	defer rows.Close()

	var attachments []domain.FileAttachment
	for rows.Next() {
		var att domain.FileAttachment
		if err := rows.Scan(&att.ID, &att.Filename, &att.Size, &att.MimeType, &att.StorageKey); err != nil {
			return nil, fmt.Errorf("scanning attachment: %w", err)
		}
		attachments = append(attachments, att)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating attachments: %w", err)
	}

	return attachments, nil
}

func (a *attachmentsRepository) LinkToMessage(ctx context.Context, ids []uuid.UUID, messageID int64) error {
	if len(ids) == 0 {
		return nil
	}

	query := fmt.Sprintf(`
		UPDATE attachments
		SET message_id = $%d
		WHERE id IN (%s)
	`, len(ids)+1, placeholders(len(ids)))

	args := lo.Map(ids, func(id uuid.UUID, _ int) any { return id.String() })
	args = append(args, messageID)

	if _, err := a.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("linking attachments to message: %w", err)
	}

	return nil
}

func placeholders(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("$%d", i+1)
	}
	return strings.Join(parts, ", ")
}
