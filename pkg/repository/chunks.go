package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/agencyenterprise/AI-Scientist-exp0-sub003/pkg/domain"
)

type chunksRepository struct {
	db *sql.DB
}

func NewChunksRepository(db *sql.DB) *chunksRepository {
	return &chunksRepository{db: db}
}

// ReplaceChunks swaps the stored chunks for one entity atomically. The old
// rows stay queryable until the transaction commits, so a failure partway
// through never leaves the entity without an index.
func (c *chunksRepository) ReplaceChunks(ctx context.Context, kind domain.EntityKind, entityID int64, chunks []domain.Chunk) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	const deleteQuery = `
		DELETE FROM chunks
		WHERE kind = $1 AND entity_id = $2
	`

	if _, err := tx.ExecContext(ctx, deleteQuery, kind, entityID); err != nil {
		return fmt.Errorf("deleting old chunks: %w", err)
	}

	const insertQuery = `
		INSERT INTO chunks (id, kind, entity_id, chunk_index, content, embedding)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	for _, chunk := range chunks {
		embedding, err := json.Marshal(chunk.Embedding)
		if err != nil {
			return fmt.Errorf("marshaling embedding: %w", err)
		}
		if _, err := tx.ExecContext(ctx, insertQuery, chunk.ID.String(), chunk.Kind, chunk.EntityID, chunk.ChunkIndex, chunk.Content, string(embedding)); err != nil {
			return fmt.Errorf("inserting chunk: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

func (c *chunksRepository) ListAll(ctx context.Context) ([]domain.Chunk, error) {
	const query = `
		SELECT id, kind, entity_id, chunk_index, content, embedding
		FROM chunks
		ORDER BY kind, entity_id, chunk_index
	`

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("fetching chunks: %w", err)
	}
	defer rows.Close()

	var chunks []domain.Chunk
	for rows.Next() {
		var chunk domain.Chunk
		var embedding []byte
		if err := rows.Scan(&chunk.ID, &chunk.Kind, &chunk.EntityID, &chunk.ChunkIndex, &chunk.Content, &embedding); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		if err := json.Unmarshal(embedding, &chunk.Embedding); err != nil {
			return nil, fmt.Errorf("unmarshaling embedding: %w", err)
		}
		chunks = append(chunks, chunk)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}

	return chunks, nil
}
