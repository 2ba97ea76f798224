package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vmelnikov/ragbase/internal/config"
	"github.com/vmelnikov/ragbase/internal/core/ports"
	"github.com/vmelnikov/ragbase/internal/core/usecase"
	"github.com/vmelnikov/ragbase/internal/infrastructure/chunking"
	"github.com/vmelnikov/ragbase/internal/infrastructure/extractor"
	"github.com/vmelnikov/ragbase/internal/infrastructure/llm/ollama"
	"github.com/vmelnikov/ragbase/internal/infrastructure/queue/nats"
	"github.com/vmelnikov/ragbase/internal/infrastructure/rating"
	"github.com/vmelnikov/ragbase/internal/infrastructure/repository/postgres"
	"github.com/vmelnikov/ragbase/internal/infrastructure/resilience"
	"github.com/vmelnikov/ragbase/internal/infrastructure/session"
	"github.com/vmelnikov/ragbase/internal/infrastructure/sources/arxiv"
	"github.com/vmelnikov/ragbase/internal/infrastructure/sources/pubmed"
	"github.com/vmelnikov/ragbase/internal/infrastructure/sources/websearch"
	"github.com/vmelnikov/ragbase/internal/infrastructure/sources/wikipedia"
	"github.com/vmelnikov/ragbase/internal/infrastructure/storage/localfs"
	"github.com/vmelnikov/ragbase/internal/infrastructure/vector/qdrant"
)

// App holds the fully wired object graph shared by the api and worker
// binaries. Everything is constructed here and passed down explicitly.
type App struct {
	Config config.Config

	Queue     ports.MessageQueue
	Repo      ports.DocumentRepository
	Retriever ports.Retriever
	Sessions  ports.SessionStore
	Ratings   ports.RatingStore

	IngestUC  *usecase.IngestDocumentUseCase
	ProcessUC ports.DocumentProcessor
	AnswerUC  ports.AnswerService
	ChatUC    ports.ChatService
	Enricher  ports.Enricher

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewDocumentRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	sessions, err := session.NewFileStore(cfg.SessionsPath)
	if err != nil {
		return nil, fmt.Errorf("init session store: %w", err)
	}
	ratings, err := rating.NewFileStore(cfg.RatingsPath)
	if err != nil {
		return nil, fmt.Errorf("init rating store: %w", err)
	}

	executor := resilience.NewExecutor(resilience.Config{})

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
		Logger:             logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, executor)
	embedder := ollama.NewEmbedder(ollamaClient)
	retriever := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection, embedder)

	chunker := chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	textExtractor := extractor.New(storage)

	enricher := usecase.NewEnrichmentEngine(retriever, sourceCatalogue(cfg))
	generator := usecase.NewAnswerGenerator(ollamaClient)
	answerUC := usecase.NewAnswerUseCase(retriever, generator, enricher)
	chatUC := usecase.NewChatUseCase(answerUC, sessions, cfg.RAGTopK)

	ingestUC := usecase.NewIngestDocumentUseCase(repo, storage, queue, textExtractor, retriever)
	processUC := usecase.NewProcessDocumentUseCase(repo, textExtractor, chunker, retriever)

	return &App{
		Config: cfg,

		Queue:     queue,
		Repo:      repo,
		Retriever: retriever,
		Sessions:  sessions,
		Ratings:   ratings,

		IngestUC:  ingestUC,
		ProcessUC: processUC,
		AnswerUC:  answerUC,
		ChatUC:    chatUC,
		Enricher:  enricher,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

// sourceCatalogue builds the trusted source list. A disabled source keeps
// its catalogue slot with a nil client so capability reporting still lists
// it; the global kill switch disables every slot at once.
func sourceCatalogue(cfg config.Config) []usecase.SourceEntry {
	var wiki, arx, pm, web ports.KnowledgeSource
	if cfg.AutoEnrichmentEnabled {
		if cfg.WikipediaEnabled {
			wiki = wikipedia.New()
		}
		if cfg.ArxivEnabled {
			arx = arxiv.New()
		}
		if cfg.PubMedEnabled {
			pm = pubmed.New()
		}
		if cfg.WebSearchEnabled {
			web = websearch.New()
		}
	}
	return usecase.DefaultCatalogue(wiki, arx, pm, web)
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
