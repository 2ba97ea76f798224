package usecase

import (
	"context"
	"fmt"

	"github.com/vmelnikov/ragbase/internal/core/domain"
	"github.com/vmelnikov/ragbase/internal/core/ports"
)

// ProcessDocumentUseCase is the worker side of ingestion: extract, chunk,
// and index one uploaded document.
type ProcessDocumentUseCase struct {
	repo      ports.DocumentRepository
	extractor ports.TextExtractor
	chunker   ports.Chunker
	retriever ports.Retriever
}

func NewProcessDocumentUseCase(
	repo ports.DocumentRepository,
	extractor ports.TextExtractor,
	chunker ports.Chunker,
	retriever ports.Retriever,
) *ProcessDocumentUseCase {
	return &ProcessDocumentUseCase{
		repo:      repo,
		extractor: extractor,
		chunker:   chunker,
		retriever: retriever,
	}
}

func (uc *ProcessDocumentUseCase) ProcessByID(ctx context.Context, documentID string) error {
	doc, err := uc.repo.GetByID(ctx, documentID)
	if err != nil {
		return fmt.Errorf("load document: %w", err)
	}

	if err := uc.repo.UpdateStatus(ctx, doc.ID, domain.StatusProcessing, 0, ""); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}

	text, err := uc.extractor.Extract(ctx, doc)
	if err != nil {
		return uc.fail(ctx, doc.ID, fmt.Errorf("extract text: %w", err))
	}

	chunks := uc.chunker.Split(text)
	if len(chunks) == 0 {
		return uc.fail(ctx, doc.ID, fmt.Errorf("document produced no extractable text"))
	}

	passages := make([]domain.PassageInput, 0, len(chunks))
	for i, chunk := range chunks {
		passages = append(passages, domain.PassageInput{
			Text: chunk,
			Metadata: domain.PassageMetadata{
				DocumentID: doc.ID,
				ChunkID:    fmt.Sprintf("%s_chunk_%d", doc.ID, i),
				Filename:   doc.Filename,
				ChunkIndex: i,
			},
		})
	}

	if _, err := uc.retriever.Insert(ctx, passages); err != nil {
		return uc.fail(ctx, doc.ID, fmt.Errorf("index chunks: %w", err))
	}

	if err := uc.repo.UpdateStatus(ctx, doc.ID, domain.StatusReady, len(chunks), ""); err != nil {
		return fmt.Errorf("mark ready: %w", err)
	}
	return nil
}

func (uc *ProcessDocumentUseCase) fail(ctx context.Context, id string, cause error) error {
	if err := uc.repo.UpdateStatus(ctx, id, domain.StatusFailed, 0, cause.Error()); err != nil {
		return fmt.Errorf("mark failed after %q: %w", cause, err)
	}
	return cause
}
