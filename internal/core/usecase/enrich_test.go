package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/vmelnikov/ragbase/internal/core/domain"
)

type sourceFake struct {
	kind       domain.SourceKind
	items      int
	err        error
	fetchCalls int
	lastLimit  int
}

func (f *sourceFake) Kind() domain.SourceKind { return f.kind }

func (f *sourceFake) Fetch(_ context.Context, query string, _ []string, limit int) ([]domain.ContentItem, error) {
	f.fetchCalls++
	f.lastLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	out := make([]domain.ContentItem, 0, f.items)
	for i := 0; i < f.items; i++ {
		out = append(out, domain.ContentItem{
			Text:      fmt.Sprintf("%s content %d", f.kind, i),
			Source:    f.kind,
			Title:     fmt.Sprintf("%s title %d", f.kind, i),
			URL:       fmt.Sprintf("https://example.org/%s/%d", f.kind, i),
			QueryUsed: query,
		})
	}
	return out, nil
}

func catalogueOf(clients ...*sourceFake) []SourceEntry {
	out := make([]SourceEntry, 0, len(clients))
	for i, client := range clients {
		out = append(out, SourceEntry{
			Kind:     client.kind,
			Name:     fmt.Sprintf("Source %d", i+1),
			Priority: i + 1,
			Client:   client,
		})
	}
	return out
}

func TestEnrichBudgetStopsFanOut(t *testing.T) {
	s1 := &sourceFake{kind: "s1", items: 2}
	s2 := &sourceFake{kind: "s2", items: 2}
	s3 := &sourceFake{kind: "s3", items: 2}
	s4 := &sourceFake{kind: "s4", items: 2}
	retriever := &retrieverFake{}
	engine := NewEnrichmentEngine(retriever, catalogueOf(s1, s2, s3, s4))

	outcome := engine.Enrich(context.Background(), "q", []string{"gap"}, 3)

	if len(outcome.ContentAdded) != 3 {
		t.Fatalf("expected exactly 3 items, got %d", len(outcome.ContentAdded))
	}
	if s1.fetchCalls != 1 || s2.fetchCalls != 1 {
		t.Fatalf("first two sources must each be tried once")
	}
	if s3.fetchCalls != 0 || s4.fetchCalls != 0 {
		t.Fatalf("budget exhausted: remaining sources must not be tried")
	}
	if s2.lastLimit != 1 {
		t.Fatalf("second source must only be asked for the remaining budget, got %d", s2.lastLimit)
	}
	if !outcome.Success {
		t.Fatalf("expected success after insertion")
	}
	if retriever.insertCalls != 1 {
		t.Fatalf("expected one insert call, got %d", retriever.insertCalls)
	}
}

func TestEnrichSourceFailureIsIsolated(t *testing.T) {
	failing := &sourceFake{kind: "broken", err: errors.New("timeout")}
	working := &sourceFake{kind: "ok", items: 1}
	retriever := &retrieverFake{}
	engine := NewEnrichmentEngine(retriever, catalogueOf(failing, working))

	outcome := engine.Enrich(context.Background(), "q", []string{"gap"}, 3)

	if working.fetchCalls != 1 {
		t.Fatalf("engine must proceed past a failing source")
	}
	if len(outcome.ContentAdded) != 1 || !outcome.Success {
		t.Fatalf("expected one item from the surviving source, got %+v", outcome)
	}
}

func TestEnrichNoMissingInfo(t *testing.T) {
	src := &sourceFake{kind: "s1", items: 2}
	engine := NewEnrichmentEngine(&retrieverFake{}, catalogueOf(src))

	outcome := engine.Enrich(context.Background(), "q", nil, 3)

	if src.fetchCalls != 0 {
		t.Fatalf("no fetch expected without missing info")
	}
	if outcome.Success || len(outcome.ContentAdded) != 0 {
		t.Fatalf("expected empty outcome, got %+v", outcome)
	}
}

func TestEnrichDisabledSourcesSkipped(t *testing.T) {
	enabled := &sourceFake{kind: "enabled", items: 1}
	entries := []SourceEntry{
		{Kind: "disabled", Name: "Disabled", Priority: 1, Client: nil},
		{Kind: enabled.kind, Name: "Enabled", Priority: 2, Client: enabled},
	}
	engine := NewEnrichmentEngine(&retrieverFake{}, entries)

	outcome := engine.Enrich(context.Background(), "q", []string{"gap"}, 3)

	if len(outcome.ContentAdded) != 1 {
		t.Fatalf("expected the enabled source to contribute, got %d", len(outcome.ContentAdded))
	}
}

func TestEnrichInsertFailureDemotesSuccess(t *testing.T) {
	src := &sourceFake{kind: "s1", items: 2}
	retriever := &retrieverFake{insertErr: errors.New("index down")}
	engine := NewEnrichmentEngine(retriever, catalogueOf(src))

	outcome := engine.Enrich(context.Background(), "q", []string{"gap"}, 3)

	if outcome.Success {
		t.Fatalf("insertion failure must demote success to false")
	}
	if len(outcome.ContentAdded) != 2 {
		t.Fatalf("fetched content is still reported, got %d", len(outcome.ContentAdded))
	}
}

func TestEnrichPassageMetadata(t *testing.T) {
	src := &sourceFake{kind: domain.SourceWikipedia, items: 1}
	retriever := &retrieverFake{}
	engine := NewEnrichmentEngine(retriever, catalogueOf(src))

	outcome := engine.Enrich(context.Background(), "orbital mechanics", []string{"gap"}, 1)
	if !outcome.Success {
		t.Fatalf("expected success, got %+v", outcome)
	}
	if len(retriever.inserted) != 1 {
		t.Fatalf("expected one inserted passage, got %d", len(retriever.inserted))
	}

	meta := retriever.inserted[0].Metadata
	if !meta.Enriched {
		t.Fatalf("enriched marker missing")
	}
	if meta.ChunkID != meta.DocumentID+"_chunk_0" {
		t.Fatalf("unexpected chunk id: %s", meta.ChunkID)
	}
	if meta.OriginalQuery != "orbital mechanics" {
		t.Fatalf("originating query not carried: %s", meta.OriginalQuery)
	}
}

func TestEnrichedDocumentIDDeterministic(t *testing.T) {
	item := domain.ContentItem{Source: domain.SourceArxiv, Title: "Paper", URL: "https://arxiv.org/abs/1"}
	if enrichedDocumentID(item) != enrichedDocumentID(item) {
		t.Fatalf("id must be deterministic")
	}
	other := item
	other.URL = "https://arxiv.org/abs/2"
	if enrichedDocumentID(item) == enrichedDocumentID(other) {
		t.Fatalf("distinct items must get distinct ids")
	}
}

func TestCapabilitiesSnapshot(t *testing.T) {
	enabled := &sourceFake{kind: domain.SourceArxiv, items: 0}
	entries := []SourceEntry{
		{Kind: domain.SourceWikipedia, Name: "Wikipedia", Description: "General knowledge encyclopedia", Priority: 1, Client: nil},
		{Kind: domain.SourceArxiv, Name: "arXiv", Description: "Academic papers and research", Priority: 2, Client: enabled},
	}
	engine := NewEnrichmentEngine(&retrieverFake{}, entries)

	caps := engine.Capabilities()

	if !caps.AutoEnrichmentEnabled {
		t.Fatalf("one enabled source should enable auto enrichment")
	}
	if len(caps.TrustedSources) != 2 {
		t.Fatalf("disabled sources must still be listed, got %d", len(caps.TrustedSources))
	}
	if caps.TrustedSources[domain.SourceWikipedia].Enabled {
		t.Fatalf("wikipedia should be reported disabled")
	}
	if got := caps.TrustedSources[domain.SourceArxiv]; !got.Enabled || got.Priority != 2 {
		t.Fatalf("unexpected arxiv capability: %+v", got)
	}
	if enabled.fetchCalls != 0 {
		t.Fatalf("capabilities must not perform fetches")
	}
}
