package ports

import (
	"context"
	"io"

	"github.com/vmelnikov/ragbase/internal/core/domain"
)

// AnswerService is the inbound contract for the answering loop.
type AnswerService interface {
	Answer(ctx context.Context, query string, fanOut int, allowAutoEnrichment bool) (*domain.SearchResult, error)
}

// Enricher drives the multi-source fetch-and-reindex cycle and exposes the
// source catalogue snapshot.
type Enricher interface {
	Enrich(ctx context.Context, query string, missingInfo []string, maxSources int) domain.EnrichmentOutcome
	Capabilities() domain.EnrichmentCapabilities
}

// DocumentIngestor is the inbound contract for document upload orchestration.
type DocumentIngestor interface {
	Upload(ctx context.Context, filename, mimeType string, body io.Reader) (*domain.Document, error)
}

// DocumentProcessor is the inbound contract for asynchronous document processing.
type DocumentProcessor interface {
	ProcessByID(ctx context.Context, documentID string) error
}

// ChatService runs one chat turn: append user message, answer, append reply.
type ChatService interface {
	Chat(ctx context.Context, sessionID, message string) (*domain.ChatMessage, *domain.SearchResult, error)
}
