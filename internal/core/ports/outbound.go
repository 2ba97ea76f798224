package ports

import (
	"context"
	"io"

	"github.com/vmelnikov/ragbase/internal/core/domain"
)

// Retriever is the retrieval capability: a vector index addressed by query
// text. Add/delete/search must each be safe under concurrent requests;
// cross-request visibility of concurrent inserts is eventual, not
// linearizable.
type Retriever interface {
	SearchWithScore(ctx context.Context, query string, k int) ([]domain.RetrievedPassage, error)
	Insert(ctx context.Context, passages []domain.PassageInput) ([]string, error)
	Delete(ctx context.Context, documentID string) (bool, error)
	GetChunks(ctx context.Context, documentID string) ([]domain.RetrievedPassage, error)
	Count(ctx context.Context) (int, error)
}

// CompletionClient performs one synchronous model exchange. The response is
// free text that is expected, but not guaranteed, to honor the JSON contract
// the caller asked for.
type CompletionClient interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// KnowledgeSource fetches supplementary content from one external provider.
// Implementations never let a failure escape: errors surface as an empty
// item list plus the error value for logging, and the engine moves on.
type KnowledgeSource interface {
	Kind() domain.SourceKind
	Fetch(ctx context.Context, query string, hints []string, limit int) ([]domain.ContentItem, error)
}

// DocumentRepository persists document metadata and processing state.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	List(ctx context.Context) ([]domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, chunksCount int, errMessage string) error
	Delete(ctx context.Context, id string) error
}

// ObjectStorage stores raw uploaded documents.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) (int64, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Remove(ctx context.Context, key string) error
}

// MessageQueue publishes/consumes document ingestion events.
type MessageQueue interface {
	PublishDocumentIngested(ctx context.Context, documentID string) error
	SubscribeDocumentIngested(ctx context.Context, handler func(context.Context, string) error) error
}

// TextExtractor extracts plain text from a stored document.
type TextExtractor interface {
	Extract(ctx context.Context, doc *domain.Document) (string, error)
	Supported(filename string) bool
}

// Chunker splits text into indexable chunks.
type Chunker interface {
	Split(text string) []string
}

// SessionStore persists chat sessions as append-only records.
type SessionStore interface {
	Create(ctx context.Context, name string) (*domain.Session, error)
	Get(ctx context.Context, id string) (*domain.Session, error)
	List(ctx context.Context) ([]domain.SessionSummary, error)
	AppendMessage(ctx context.Context, id string, msg domain.ChatMessage) error
}

// RatingStore persists answer-quality feedback.
type RatingStore interface {
	Save(ctx context.Context, rating *domain.Rating) error
	Statistics(ctx context.Context) (*domain.RatingStatistics, error)
}
