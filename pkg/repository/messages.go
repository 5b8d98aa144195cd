package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/agencyenterprise/AI-Scientist-exp0-sub003/pkg/domain"
)

type messagesRepository struct {
	db *sql.DB
}

func NewMessagesRepository(db *sql.DB) *messagesRepository {
	return &messagesRepository{db: db}
}

// Save assigns the next sequence number within the idea's conversation.
// Only user and assistant turns are persisted; tool round-trips live and
// die inside a single chat turn.
func (m *messagesRepository) Save(ctx context.Context, msg *domain.Message) error {
	const query = `
		INSERT INTO messages (idea_id, role, content, sequence_number)
		VALUES (
			$1, $2, $3,
			(SELECT COALESCE(MAX(sequence_number), 0) + 1 FROM messages WHERE idea_id = $1)
		)
		RETURNING id, sequence_number
	`

	err := m.db.QueryRowContext(ctx, query, msg.IdeaID, msg.Role, msg.Content).
		Scan(&msg.ID, &msg.SequenceNumber)
	if err != nil {
		return fmt.Errorf("saving message: %w", err)
	}

	return nil
}

func (m *messagesRepository) GetByIdeaID(ctx context.Context, ideaID int64) ([]domain.Message, error) {
	const query = `
		SELECT id, idea_id, role, content, sequence_number
		FROM messages
		WHERE idea_id = $1
		ORDER BY sequence_number
	`

	rows, err := m.db.QueryContext(ctx, query, ideaID)
	if err != nil {
		return nil, fmt.Errorf("fetching messages by ideaID: %w", err)
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		var msg domain.Message
		if err := rows.Scan(&msg.ID, &msg.IdeaID, &msg.Role, &msg.Content, &msg.SequenceNumber); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating messages: %w", err)
	}

	return messages, nil
}

func (m *messagesRepository) GetByID(ctx context.Context, id int64) (*domain.Message, error) {
	const query = `
		SELECT id, idea_id, role, content, sequence_number
		FROM messages
		WHERE id = $1
	`

	var msg domain.Message
	err := m.db.QueryRowContext(ctx, query, id).
		Scan(&msg.ID, &msg.IdeaID, &msg.Role, &msg.Content, &msg.SequenceNumber)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("fetching message by id: %w", err)
	}

	return &msg, nil
}
