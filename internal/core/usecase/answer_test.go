package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/vmelnikov/ragbase/internal/core/domain"
)

type retrieverFake struct {
	results      [][]domain.RetrievedPassage
	searchCalls  int
	searchLimit  int
	searchErr    error
	inserted     []domain.PassageInput
	insertCalls  int
	insertErr    error
	insertEmpty  bool
	deleteCalls  int
}

func (f *retrieverFake) SearchWithScore(_ context.Context, _ string, k int) ([]domain.RetrievedPassage, error) {
	f.searchCalls++
	f.searchLimit = k
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	if len(f.results) == 0 {
		return nil, nil
	}
	out := f.results[0]
	if len(f.results) > 1 {
		f.results = f.results[1:]
	}
	return out, nil
}

func (f *retrieverFake) Insert(_ context.Context, passages []domain.PassageInput) ([]string, error) {
	f.insertCalls++
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	if f.insertEmpty {
		return nil, nil
	}
	f.inserted = append(f.inserted, passages...)
	ids := make([]string, len(passages))
	for i := range passages {
		ids[i] = passages[i].Metadata.DocumentID
	}
	return ids, nil
}

func (f *retrieverFake) Delete(context.Context, string) (bool, error) {
	f.deleteCalls++
	return true, nil
}

func (f *retrieverFake) GetChunks(context.Context, string) ([]domain.RetrievedPassage, error) {
	return nil, nil
}

func (f *retrieverFake) Count(context.Context) (int, error) { return 0, nil }

type generatorFake struct {
	candidates []*domain.AnswerCandidate
	calls      int
	err        error
}

func (f *generatorFake) Generate(context.Context, string, []domain.RetrievedPassage) (*domain.AnswerCandidate, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	idx := f.calls - 1
	if idx >= len(f.candidates) {
		idx = len(f.candidates) - 1
	}
	return f.candidates[idx], nil
}

type enricherFake struct {
	outcome domain.EnrichmentOutcome
	calls   int
}

func (f *enricherFake) Enrich(context.Context, string, []string, int) domain.EnrichmentOutcome {
	f.calls++
	return f.outcome
}

func (f *enricherFake) Capabilities() domain.EnrichmentCapabilities {
	return domain.EnrichmentCapabilities{}
}

func somePassages() []domain.RetrievedPassage {
	return []domain.RetrievedPassage{
		{
			Text:  "alpha particles scatter",
			Score: 0.9,
			Metadata: domain.PassageMetadata{
				DocumentID: "doc-1",
				ChunkID:    "doc-1_chunk_0",
				Filename:   "physics.txt",
			},
		},
	}
}

func incompleteCandidate() *domain.AnswerCandidate {
	return &domain.AnswerCandidate{
		Answer:      "partial answer",
		Confidence:  0.4,
		IsComplete:  false,
		MissingInfo: []string{"scattering cross sections", "detector geometry"},
		Sources:     []domain.SourceReference{},
	}
}

func TestAnswerRejectsEmptyQuery(t *testing.T) {
	uc := NewAnswerUseCase(&retrieverFake{}, &generatorFake{}, &enricherFake{})

	_, err := uc.Answer(context.Background(), "   ", 5, false)
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestAnswerNoDocuments(t *testing.T) {
	retriever := &retrieverFake{}
	generator := &generatorFake{candidates: []*domain.AnswerCandidate{incompleteCandidate()}}
	enricher := &enricherFake{}
	uc := NewAnswerUseCase(retriever, generator, enricher)

	result, err := uc.Answer(context.Background(), "What is X?", 5, true)
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if result.IsComplete {
		t.Fatalf("expected is_complete=false")
	}
	if result.Confidence != 0 {
		t.Fatalf("expected confidence=0, got %f", result.Confidence)
	}
	if len(result.Sources) != 0 {
		t.Fatalf("expected empty sources, got %d", len(result.Sources))
	}
	if len(result.MissingInfo) != 1 || result.MissingInfo[0] != "No documents available in the knowledge base" {
		t.Fatalf("unexpected missing_info: %v", result.MissingInfo)
	}
	if len(result.EnrichmentSuggestions) != 1 {
		t.Fatalf("expected exactly one suggestion, got %d", len(result.EnrichmentSuggestions))
	}
	if enricher.calls != 0 {
		t.Fatalf("enrichment must not run on an empty index, got %d calls", enricher.calls)
	}
	if generator.calls != 0 {
		t.Fatalf("generation must not run on an empty index, got %d calls", generator.calls)
	}
}

func TestAnswerDefaultFanOut(t *testing.T) {
	retriever := &retrieverFake{results: [][]domain.RetrievedPassage{somePassages()}}
	generator := &generatorFake{candidates: []*domain.AnswerCandidate{{Answer: "ok", IsComplete: true, MissingInfo: []string{}}}}
	uc := NewAnswerUseCase(retriever, generator, &enricherFake{})

	if _, err := uc.Answer(context.Background(), "q", 0, false); err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if retriever.searchLimit != 5 {
		t.Fatalf("expected default fan-out 5, got %d", retriever.searchLimit)
	}
}

func TestAnswerCompleteSkipsEnrichment(t *testing.T) {
	retriever := &retrieverFake{results: [][]domain.RetrievedPassage{somePassages()}}
	generator := &generatorFake{candidates: []*domain.AnswerCandidate{{
		Answer:      "full answer",
		Confidence:  0.95,
		IsComplete:  true,
		MissingInfo: []string{},
	}}}
	enricher := &enricherFake{}
	uc := NewAnswerUseCase(retriever, generator, enricher)

	result, err := uc.Answer(context.Background(), "q", 5, true)
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if enricher.calls != 0 {
		t.Fatalf("enrichment invoked on a complete answer")
	}
	if result.AutoEnrichmentApplied {
		t.Fatalf("auto_enrichment_applied must be false")
	}
	if retriever.searchCalls != 1 || generator.calls != 1 {
		t.Fatalf("expected single pass, got search=%d generate=%d", retriever.searchCalls, generator.calls)
	}
}

func TestAnswerEnrichmentDisabled(t *testing.T) {
	retriever := &retrieverFake{results: [][]domain.RetrievedPassage{somePassages()}}
	generator := &generatorFake{candidates: []*domain.AnswerCandidate{incompleteCandidate()}}
	enricher := &enricherFake{}
	uc := NewAnswerUseCase(retriever, generator, enricher)

	result, err := uc.Answer(context.Background(), "q", 5, false)
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if enricher.calls != 0 {
		t.Fatalf("enrichment invoked despite being disabled")
	}
	if result.AutoEnrichmentApplied || len(result.EnrichmentSuggestions) != 0 {
		t.Fatalf("unexpected enrichment artifacts: applied=%v suggestions=%d",
			result.AutoEnrichmentApplied, len(result.EnrichmentSuggestions))
	}
}

func TestAnswerEnrichmentAllSourcesFail(t *testing.T) {
	retriever := &retrieverFake{results: [][]domain.RetrievedPassage{somePassages()}}
	first := incompleteCandidate()
	generator := &generatorFake{candidates: []*domain.AnswerCandidate{first}}
	enricher := &enricherFake{outcome: domain.EnrichmentOutcome{
		SourcesAdded: []string{},
		ContentAdded: []domain.ContentItem{},
		Success:      false,
	}}
	uc := NewAnswerUseCase(retriever, generator, enricher)

	result, err := uc.Answer(context.Background(), "q", 5, true)
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if enricher.calls != 1 {
		t.Fatalf("expected one enrichment attempt, got %d", enricher.calls)
	}
	if result.AutoEnrichmentApplied {
		t.Fatalf("auto_enrichment_applied must be false when all sources fail")
	}
	if result.Answer != first.Answer || result.Confidence != first.Confidence {
		t.Fatalf("first-pass candidate must be returned unchanged")
	}
	if retriever.searchCalls != 1 || generator.calls != 1 {
		t.Fatalf("no second pass expected, got search=%d generate=%d", retriever.searchCalls, generator.calls)
	}
	// Upload hints for missing info are still advisory output.
	if len(result.EnrichmentSuggestions) != 2 {
		t.Fatalf("expected 2 upload suggestions, got %d", len(result.EnrichmentSuggestions))
	}
	if result.EnrichmentSuggestions[0].Priority != domain.PriorityHigh {
		t.Fatalf("first upload suggestion must be high priority")
	}
	if result.EnrichmentSuggestions[1].Priority != domain.PriorityMedium {
		t.Fatalf("subsequent upload suggestions must be medium priority")
	}
}

func TestAnswerEnrichmentSecondPass(t *testing.T) {
	retriever := &retrieverFake{results: [][]domain.RetrievedPassage{
		somePassages(),
		append(somePassages(), domain.RetrievedPassage{
			Text:  "enriched content",
			Score: 0.8,
			Metadata: domain.PassageMetadata{
				DocumentID: "enriched_wikipedia_abc",
				ChunkID:    "enriched_wikipedia_abc_chunk_0",
				Filename:   "wikipedia: Rutherford scattering",
				Enriched:   true,
			},
		}),
	}}
	second := &domain.AnswerCandidate{
		Answer:      "complete answer",
		Confidence:  0.9,
		IsComplete:  true,
		MissingInfo: []string{},
	}
	generator := &generatorFake{candidates: []*domain.AnswerCandidate{incompleteCandidate(), second}}
	enricher := &enricherFake{outcome: domain.EnrichmentOutcome{
		SourcesAdded: []string{"Wikipedia: Rutherford scattering"},
		ContentAdded: []domain.ContentItem{{
			Text:   "scattering summary",
			Source: domain.SourceWikipedia,
			Title:  "Rutherford scattering",
			URL:    "https://en.wikipedia.org/wiki/Rutherford_scattering",
		}},
		Success: true,
	}}
	uc := NewAnswerUseCase(retriever, generator, enricher)

	result, err := uc.Answer(context.Background(), "q", 5, true)
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if retriever.searchCalls != 2 {
		t.Fatalf("expected exactly two retrieval calls, got %d", retriever.searchCalls)
	}
	if generator.calls != 2 {
		t.Fatalf("expected exactly two generation calls, got %d", generator.calls)
	}
	if !result.AutoEnrichmentApplied {
		t.Fatalf("auto_enrichment_applied must be true")
	}
	if len(result.AutoEnrichmentSources) != 1 || result.AutoEnrichmentSources[0] != "Wikipedia: Rutherford scattering" {
		t.Fatalf("unexpected enrichment sources: %v", result.AutoEnrichmentSources)
	}
	if result.Answer != second.Answer {
		t.Fatalf("second-pass candidate must win, got %q", result.Answer)
	}
	// Suggestions come from the first pass, not regenerated.
	if len(result.EnrichmentSuggestions) == 0 {
		t.Fatalf("expected first-pass suggestions on the final result")
	}
	if result.EnrichmentSuggestions[0].Type != domain.SuggestionExternalSource {
		t.Fatalf("expected fetched-from suggestion first, got %s", result.EnrichmentSuggestions[0].Type)
	}
	if result.EnrichmentSuggestions[0].ExternalSourceURL == "" {
		t.Fatalf("fetched-from suggestion must carry the source URL")
	}
}

func TestAnswerRetrievalErrorPropagates(t *testing.T) {
	retriever := &retrieverFake{searchErr: errors.New("index unreachable")}
	uc := NewAnswerUseCase(retriever, &generatorFake{}, &enricherFake{})

	if _, err := uc.Answer(context.Background(), "q", 5, false); err == nil {
		t.Fatalf("expected retrieval error to propagate")
	}
}

func TestAnswerGenerationErrorPropagates(t *testing.T) {
	retriever := &retrieverFake{results: [][]domain.RetrievedPassage{somePassages()}}
	generator := &generatorFake{err: errors.New("model unavailable")}
	uc := NewAnswerUseCase(retriever, generator, &enricherFake{})

	if _, err := uc.Answer(context.Background(), "q", 5, false); err == nil {
		t.Fatalf("expected generation error to propagate")
	}
}
