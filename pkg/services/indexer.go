package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/agencyenterprise/AI-Scientist-exp0-sub003/pkg/chunker"
	"github.com/agencyenterprise/AI-Scientist-exp0-sub003/pkg/domain"
)

type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

type ChunkRepository interface {
	ReplaceChunks(ctx context.Context, kind domain.EntityKind, entityID int64, chunks []domain.Chunk) error
}

type MessageReader interface {
	GetByID(ctx context.Context, id int64) (*domain.Message, error)
}

type IndexerConfig struct {
	IdeaChunkChars    int
	MessageChunkChars int
}

func (c IndexerConfig) withDefaults() IndexerConfig {
	if c.IdeaChunkChars <= 0 {
		c.IdeaChunkChars = 2000
	}
	if c.MessageChunkChars <= 0 {
		c.MessageChunkChars = 800
	}
	return c
}

// indexer rebuilds the embedding chunks for one entity at a time. Embeddings
// are computed before the old rows are replaced, so a provider failure keeps
// the previous index intact. A per-entity mutex serializes concurrent
// reindexes of the same entity; different entities proceed in parallel.
type indexer struct {
	embedder    Embedder
	chunkRepo   ChunkRepository
	ideaRepo    IdeaRepository
	messageRepo MessageReader
	cfg         IndexerConfig

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewIndexer(embedder Embedder, chunkRepo ChunkRepository, ideaRepo IdeaRepository, messageRepo MessageReader, cfg IndexerConfig) *indexer {
	return &indexer{
		embedder:    embedder,
		chunkRepo:   chunkRepo,
		ideaRepo:    ideaRepo,
		messageRepo: messageRepo,
		cfg:         cfg.withDefaults(),
		locks:       map[string]*sync.Mutex{},
	}
}

func (i *indexer) ReindexIdea(ctx context.Context, ideaID int64) error {
	idea, err := i.ideaRepo.GetByID(ctx, ideaID)
	if err != nil {
		return fmt.Errorf("fetching idea %d: %w", ideaID, err)
	}

	return i.reindex(ctx, domain.EntityKindIdea, ideaID, idea.Description, i.cfg.IdeaChunkChars)
}

func (i *indexer) ReindexMessage(ctx context.Context, messageID int64) error {
	msg, err := i.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return fmt.Errorf("fetching message %d: %w", messageID, err)
	}

	return i.reindex(ctx, domain.EntityKindMessage, messageID, msg.Content, i.cfg.MessageChunkChars)
}

func (i *indexer) reindex(ctx context.Context, kind domain.EntityKind, entityID int64, content string, chunkChars int) error {
	lock := i.lockFor(kind, entityID)
	lock.Lock()
	defer lock.Unlock()

	chunks, err := i.buildChunks(ctx, kind, entityID, content, chunkChars)
	if err != nil {
		return err
	}

	if err := i.chunkRepo.ReplaceChunks(ctx, kind, entityID, chunks); err != nil {
		return fmt.Errorf("replacing chunks: %w", err)
	}

	slog.DebugContext(ctx, "Reindexed entity", "kind", kind, "entityID", entityID, "chunks", len(chunks))
	return nil
}

func (i *indexer) buildChunks(ctx context.Context, kind domain.EntityKind, entityID int64, content string, chunkChars int) ([]domain.Chunk, error) {
	if content == "" {
		return nil, nil
	}

	texts := chunker.ChunkText(content, chunkChars)

	embeddings, err := i.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding %d chunks: %w", len(texts), err)
	}
	if len(embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: %d texts, %d vectors", len(texts), len(embeddings))
	}

	chunks := make([]domain.Chunk, len(texts))
	for idx, text := range texts {
		chunks[idx] = domain.Chunk{
			ID:         uuid.New(),
			Kind:       kind,
			EntityID:   entityID,
			ChunkIndex: idx,
			Content:    text,
			Embedding:  embeddings[idx],
		}
	}
	return chunks, nil
}

func (i *indexer) lockFor(kind domain.EntityKind, entityID int64) *sync.Mutex {
	key := fmt.Sprintf("%s:%d", kind, entityID)

	i.mu.Lock()
	defer i.mu.Unlock()

	lock, ok := i.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		i.locks[key] = lock
	}
	return lock
}
