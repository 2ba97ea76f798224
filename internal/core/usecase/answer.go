package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/vmelnikov/ragbase/internal/core/domain"
	"github.com/vmelnikov/ragbase/internal/core/ports"
)

const (
	defaultFanOut    = 5
	enrichmentBudget = 3
	maxQueryRunes    = 2000
	maxUploadHints   = 3
)

// answerGenerator is what the orchestrator needs from the generation step.
// *AnswerGenerator satisfies it; tests substitute fixed fakes.
type answerGenerator interface {
	Generate(ctx context.Context, query string, passages []domain.RetrievedPassage) (*domain.AnswerCandidate, error)
}

// AnswerUseCase drives one full answer attempt: retrieve, generate, decide
// whether enrichment is warranted, run the bounded enrichment cycle, and
// re-answer at most once.
type AnswerUseCase struct {
	retriever ports.Retriever
	generator answerGenerator
	enricher  ports.Enricher
}

func NewAnswerUseCase(
	retriever ports.Retriever,
	generator answerGenerator,
	enricher ports.Enricher,
) *AnswerUseCase {
	return &AnswerUseCase{
		retriever: retriever,
		generator: generator,
		enricher:  enricher,
	}
}

// Answer implements the answering loop. Retrieval and model failures are
// hard failures of the whole operation; everything downstream of a usable
// first-pass candidate degrades instead of failing.
func (uc *AnswerUseCase) Answer(ctx context.Context, query string, fanOut int, allowAutoEnrichment bool) (*domain.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "answer", fmt.Errorf("query is empty"))
	}
	if utf8.RuneCountInString(query) > maxQueryRunes {
		return nil, domain.WrapError(domain.ErrInvalidInput, "answer", fmt.Errorf("query exceeds %d characters", maxQueryRunes))
	}
	if fanOut <= 0 {
		fanOut = defaultFanOut
	}

	passages, err := uc.retriever.SearchWithScore(ctx, query, fanOut)
	if err != nil {
		return nil, fmt.Errorf("search retrieval index: %w", err)
	}
	if len(passages) == 0 {
		// Nothing to anchor a completeness judgment against, so no
		// enrichment is attempted either.
		return noDocumentsResult(query), nil
	}

	candidate, err := uc.generator.Generate(ctx, query, passages)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	var suggestions []domain.EnrichmentSuggestion
	var outcome domain.EnrichmentOutcome
	enrichmentPerformed := false

	if allowAutoEnrichment && uc.enricher != nil && !candidate.IsComplete && len(candidate.MissingInfo) > 0 {
		slog.Info("answer_incomplete",
			"confidence", candidate.Confidence,
			"missing_info", len(candidate.MissingInfo),
		)
		outcome = uc.enricher.Enrich(ctx, query, candidate.MissingInfo, enrichmentBudget)
		suggestions = buildSuggestions(query, candidate.MissingInfo, outcome)
		enrichmentPerformed = outcome.Success && len(outcome.SourcesAdded) > 0
	}

	if !enrichmentPerformed {
		return buildResult(query, candidate, suggestions, false, nil), nil
	}

	// One bounded retry against the now-enriched index. The first-pass
	// candidate is discarded; its enrichment suggestions are kept.
	enrichedPassages, err := uc.retriever.SearchWithScore(ctx, query, fanOut)
	if err != nil {
		return nil, fmt.Errorf("search retrieval index after enrichment: %w", err)
	}
	reanswered, err := uc.generator.Generate(ctx, query, enrichedPassages)
	if err != nil {
		return nil, fmt.Errorf("generate answer after enrichment: %w", err)
	}

	slog.Info("answer_regenerated_after_enrichment",
		"sources_added", len(outcome.SourcesAdded),
		"confidence", reanswered.Confidence,
	)
	return buildResult(query, reanswered, suggestions, true, outcome.SourcesAdded), nil
}

func buildResult(
	query string,
	candidate *domain.AnswerCandidate,
	suggestions []domain.EnrichmentSuggestion,
	enrichmentApplied bool,
	enrichmentSources []string,
) *domain.SearchResult {
	if suggestions == nil {
		suggestions = []domain.EnrichmentSuggestion{}
	}
	if enrichmentSources == nil {
		enrichmentSources = []string{}
	}
	return &domain.SearchResult{
		Query:                 query,
		Answer:                candidate.Answer,
		Confidence:            candidate.Confidence,
		IsComplete:            candidate.IsComplete,
		Sources:               candidate.Sources,
		MissingInfo:           candidate.MissingInfo,
		EnrichmentSuggestions: suggestions,
		AutoEnrichmentApplied: enrichmentApplied,
		AutoEnrichmentSources: enrichmentSources,
		Timestamp:             time.Now().UTC(),
	}
}

func noDocumentsResult(query string) *domain.SearchResult {
	return &domain.SearchResult{
		Query:       query,
		Answer:      "I couldn't find any relevant documents in the knowledge base to answer your question.",
		Confidence:  0,
		IsComplete:  false,
		Sources:     []domain.SourceReference{},
		MissingInfo: []string{"No documents available in the knowledge base"},
		EnrichmentSuggestions: []domain.EnrichmentSuggestion{
			{
				Type:       domain.SuggestionDocument,
				Suggestion: "Upload documents related to this topic",
				Priority:   domain.PriorityHigh,
				Reasoning:  "The knowledge base appears to be empty or doesn't contain relevant information",
			},
		},
		AutoEnrichmentSources: []string{},
		Timestamp:             time.Now().UTC(),
	}
}

// buildSuggestions is advisory output only: one "fetched from X" entry per
// source the engine added, then upload hints for the leading missing-info
// items (first high, rest medium).
func buildSuggestions(query string, missingInfo []string, outcome domain.EnrichmentOutcome) []domain.EnrichmentSuggestion {
	suggestions := make([]domain.EnrichmentSuggestion, 0, len(outcome.SourcesAdded)+maxUploadHints)

	for i, label := range outcome.SourcesAdded {
		sourceName, title := splitSourceLabel(label)
		url := ""
		if i < len(outcome.ContentAdded) {
			url = outcome.ContentAdded[i].URL
		}
		suggestions = append(suggestions, domain.EnrichmentSuggestion{
			Type:              domain.SuggestionExternalSource,
			Suggestion:        fmt.Sprintf("Fetched from %s: %s", sourceName, title),
			Priority:          domain.PriorityHigh,
			Reasoning:         fmt.Sprintf("Automatically retrieved from trusted source (%s) to fill knowledge gaps", sourceName),
			ExternalSourceURL: url,
		})
	}

	for i, info := range missingInfo {
		if i >= maxUploadHints {
			break
		}
		priority := domain.PriorityMedium
		if i == 0 {
			priority = domain.PriorityHigh
		}
		suggestions = append(suggestions, domain.EnrichmentSuggestion{
			Type:       domain.SuggestionDocument,
			Suggestion: "Upload documents containing information about: " + info,
			Priority:   priority,
			Reasoning:  fmt.Sprintf("This information is needed to fully answer the question: %q", query),
		})
	}

	return suggestions
}

func splitSourceLabel(label string) (sourceName, title string) {
	if name, rest, ok := strings.Cut(label, ": "); ok {
		return name, rest
	}
	return "External", label
}
