package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/caarlos0/env/v9"

	"github.com/agencyenterprise/AI-Scientist-exp0-sub003/pkg/anthropic"
	"github.com/agencyenterprise/AI-Scientist-exp0-sub003/pkg/api/handler"
	"github.com/agencyenterprise/AI-Scientist-exp0-sub003/pkg/database"
	"github.com/agencyenterprise/AI-Scientist-exp0-sub003/pkg/domain"
	"github.com/agencyenterprise/AI-Scientist-exp0-sub003/pkg/llm"
	"github.com/agencyenterprise/AI-Scientist-exp0-sub003/pkg/logger"
	"github.com/agencyenterprise/AI-Scientist-exp0-sub003/pkg/openai"
	"github.com/agencyenterprise/AI-Scientist-exp0-sub003/pkg/repository"
	"github.com/agencyenterprise/AI-Scientist-exp0-sub003/pkg/services"
	"github.com/agencyenterprise/AI-Scientist-exp0-sub003/pkg/storage"
	"github.com/agencyenterprise/AI-Scientist-exp0-sub003/pkg/summarizer"
	"github.com/agencyenterprise/AI-Scientist-exp0-sub003/pkg/tools"
	"github.com/agencyenterprise/AI-Scientist-exp0-sub003/pkg/workers"
)

type Config struct {
	OpenAIToken       string `env:"OPEN_AI_TOKEN,required"`
	AnthropicAPIKey   string `env:"ANTHROPIC_API_KEY,required"`
	ServerAddr        string `env:"SERVER_ADDR" envDefault:":8080"`
	AttachmentsBucket string `env:"ATTACHMENTS_BUCKET,required"`
	PgURL             string `env:"DATABASE_URL"`
	PgHost            string `env:"DB_HOST" envDefault:"localhost:65432"`

	SummaryCharBudget      int `env:"SUMMARY_CHAR_BUDGET" envDefault:"8000"`
	LiveRecentMessageLimit int `env:"LIVE_RECENT_MESSAGE_LIMIT" envDefault:"6"`
	MaxToolRounds          int `env:"MAX_TOOL_ROUNDS" envDefault:"5"`
	CompletionTokens       int `env:"COMPLETION_RESERVATION_TOKENS" envDefault:"1024"`
	IdeaChunkChars         int `env:"IDEA_CHUNK_CHARS" envDefault:"2000"`
	MessageChunkChars      int `env:"MESSAGE_CHUNK_CHARS" envDefault:"800"`
}

func (c Config) databaseDSN() string {
	if c.PgURL != "" {
		return c.PgURL
	}
	return fmt.Sprintf("postgres://postgres:postgres@%s/postgres?sslmode=disable", c.PgHost)
}

func main() {
	slog.SetDefault(slog.New(logger.NewHandler(os.Stderr, logger.DefaultOptions)))

	if err := runMain(); err != nil {
		slog.Error("shutting down due to error", logger.Err(err))
		os.Exit(1)
	}
	slog.Info("shutdown complete")
}

func runMain() error {
	workerGroup, err := setupWorkers()
	if err != nil {
		return err
	}

	ctx, cancelFn := context.WithCancel(context.Background())
	defer cancelFn()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
		select {
		case s := <-sigCh:
			slog.Info("shutting down due to signal", "signal", s.String())
			cancelFn()
		case <-ctx.Done():
		}
	}()

	return workerGroup.Start(ctx)
}

func setupWorkers() (workers.Group, error) {
	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parsing env config: %w", err)
	}

	db, err := database.NewPostgres(cfg.databaseDSN())
	if err != nil {
		return nil, fmt.Errorf("creating db: %w", err)
	}

	openAIClient, err := openai.NewClient(cfg.OpenAIToken)
	if err != nil {
		return nil, fmt.Errorf("creating open ai client: %w", err)
	}

	anthropicClient, err := anthropic.NewClient(cfg.AnthropicAPIKey)
	if err != nil {
		return nil, fmt.Errorf("creating anthropic client: %w", err)
	}

	storageClient, err := storage.NewClient(context.Background(), cfg.AttachmentsBucket)
	if err != nil {
		return nil, fmt.Errorf("creating storage client: %w", err)
	}

	ideasRepository := repository.NewIdeasRepository(db)
	messagesRepository := repository.NewMessagesRepository(db)
	attachmentsRepository := repository.NewAttachmentsRepository(db)
	chunksRepository := repository.NewChunksRepository(db)

	registry := llm.NewRegistry(llm.DefaultModels())

	router := services.NewLLMRouter(map[domain.Provider]services.ProviderClient{
		domain.ProviderOpenAI:    openAIClient,
		domain.ProviderAnthropic: anthropicClient,
	})

	toolService, err := services.NewToolService([]services.ToolFunction{
		tools.NewFetchProjectIdea(ideasRepository),
		tools.NewUpdateProjectIdea(ideasRepository),
	})
	if err != nil {
		return nil, fmt.Errorf("creating tool service: %w", err)
	}

	textSummarizer := summarizer.New(router, summarizer.Config{
		SummaryCharBudget: cfg.SummaryCharBudget,
		CompletionTokens:  cfg.CompletionTokens,
	})

	indexer := services.NewIndexer(openAIClient, chunksRepository, ideasRepository, messagesRepository, services.IndexerConfig{
		IdeaChunkChars:    cfg.IdeaChunkChars,
		MessageChunkChars: cfg.MessageChunkChars,
	})

	orchestrator := services.NewChatOrchestrator(
		router,
		toolService,
		textSummarizer,
		ideasRepository,
		messagesRepository,
		attachmentsRepository,
		storageClient,
		indexer,
		services.ChatConfig{
			LiveRecentMessageLimit: cfg.LiveRecentMessageLimit,
			MaxToolRounds:          cfg.MaxToolRounds,
			CompletionTokens:       cfg.CompletionTokens,
		},
	)

	searchService := services.NewSearchService(openAIClient, chunksRepository)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/ideas/{id}/chat", handler.NewChat(orchestrator, registry).StreamChat)
	mux.HandleFunc("POST /api/ideas/{id}/reindex", handler.NewReindex(indexer).ReindexIdea)
	mux.HandleFunc("GET /api/search", handler.NewSearch(searchService).Search)
	mux.HandleFunc("GET /healthz", handler.NewHealth().Check)

	var workerGroup workers.Group

	server, err := workers.NewHTTPServer(cfg.ServerAddr, mux)
	if err != nil {
		return nil, fmt.Errorf("creating http server: %w", err)
	}
	workerGroup = append(workerGroup, server)

	return workerGroup, nil
}
