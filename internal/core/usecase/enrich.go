package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"

	"github.com/vmelnikov/ragbase/internal/core/domain"
	"github.com/vmelnikov/ragbase/internal/core/ports"
)

// SourceEntry is one row of the fixed external-source catalogue. Client is
// nil when the backing provider is unavailable in this runtime; such entries
// still show up (disabled) in the capabilities snapshot.
type SourceEntry struct {
	Kind        domain.SourceKind
	Name        string
	Description string
	Priority    int
	Client      ports.KnowledgeSource
}

// DefaultCatalogue lists the trusted providers in ascending priority order.
// A nil client disables the corresponding source.
func DefaultCatalogue(wikipedia, arxiv, pubmed, webSearch ports.KnowledgeSource) []SourceEntry {
	return []SourceEntry{
		{Kind: domain.SourceWikipedia, Name: "Wikipedia", Description: "General knowledge encyclopedia", Priority: 1, Client: wikipedia},
		{Kind: domain.SourceArxiv, Name: "arXiv", Description: "Academic papers and research", Priority: 2, Client: arxiv},
		{Kind: domain.SourcePubMed, Name: "PubMed", Description: "Medical and health research", Priority: 3, Client: pubmed},
		{Kind: domain.SourceWebSearch, Name: "Web Search", Description: "General web search results", Priority: 4, Client: webSearch},
	}
}

// EnrichmentEngine fans out over the source catalogue in priority order
// until the fetch budget is spent, then inserts everything it fetched into
// the retrieval index as new passages.
type EnrichmentEngine struct {
	retriever ports.Retriever
	sources   []SourceEntry
}

func NewEnrichmentEngine(retriever ports.Retriever, sources []SourceEntry) *EnrichmentEngine {
	sorted := make([]SourceEntry, len(sources))
	copy(sorted, sources)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority < sorted[j].Priority
	})
	return &EnrichmentEngine{
		retriever: retriever,
		sources:   sorted,
	}
}

// Enrich never fails the caller: every per-source error is swallowed after
// logging, and an insertion failure just leaves Success=false.
func (e *EnrichmentEngine) Enrich(ctx context.Context, query string, missingInfo []string, maxSources int) domain.EnrichmentOutcome {
	outcome := domain.EnrichmentOutcome{
		SourcesAdded: []string{},
		ContentAdded: []domain.ContentItem{},
	}
	if len(missingInfo) == 0 || maxSources <= 0 {
		return outcome
	}

	for _, src := range e.sources {
		if src.Client == nil {
			continue
		}
		remaining := maxSources - len(outcome.ContentAdded)
		if remaining <= 0 {
			break
		}

		items, err := src.Client.Fetch(ctx, query, missingInfo, remaining)
		if err != nil {
			slog.Error("enrichment_source_failed", "source", src.Kind, "error", err)
			continue
		}
		if len(items) > remaining {
			items = items[:remaining]
		}

		for _, item := range items {
			outcome.SourcesAdded = append(outcome.SourcesAdded, fmt.Sprintf("%s: %s", src.Name, item.Title))
			outcome.ContentAdded = append(outcome.ContentAdded, item)
		}
		if len(items) > 0 {
			slog.Info("enrichment_source_fetched", "source", src.Kind, "items", len(items))
		}
	}

	if len(outcome.ContentAdded) == 0 {
		return outcome
	}

	inserted, err := e.retriever.Insert(ctx, passagesFromItems(outcome.ContentAdded))
	if err != nil {
		slog.Error("enrichment_insert_failed", "items", len(outcome.ContentAdded), "error", err)
		return outcome
	}

	outcome.Success = len(inserted) > 0
	if outcome.Success {
		slog.Info("enrichment_applied", "items", len(inserted))
	}
	return outcome
}

// Capabilities is a read-only snapshot of the catalogue; no fetch happens.
func (e *EnrichmentEngine) Capabilities() domain.EnrichmentCapabilities {
	caps := domain.EnrichmentCapabilities{
		TrustedSources: make(map[domain.SourceKind]domain.SourceCapability, len(e.sources)),
	}
	for _, src := range e.sources {
		enabled := src.Client != nil
		caps.TrustedSources[src.Kind] = domain.SourceCapability{
			Enabled:     enabled,
			Name:        src.Name,
			Description: src.Description,
			Priority:    src.Priority,
		}
		if enabled {
			caps.AutoEnrichmentEnabled = true
		}
	}
	return caps
}

func passagesFromItems(items []domain.ContentItem) []domain.PassageInput {
	passages := make([]domain.PassageInput, 0, len(items))
	for _, item := range items {
		docID := enrichedDocumentID(item)
		passages = append(passages, domain.PassageInput{
			Text: item.Text,
			Metadata: domain.PassageMetadata{
				DocumentID:    docID,
				ChunkID:       docID + "_chunk_0",
				Filename:      fmt.Sprintf("%s: %s", item.Source, item.Title),
				ChunkIndex:    0,
				Source:        string(item.Source),
				Title:         item.Title,
				URL:           item.URL,
				Enriched:      true,
				OriginalQuery: item.QueryUsed,
			},
		})
	}
	return passages
}

// enrichedDocumentID derives a deterministic id so re-fetching the same page
// converges on the same document instead of piling up duplicates.
func enrichedDocumentID(item domain.ContentItem) string {
	h := sha256.Sum256([]byte(string(item.Source) + "|" + item.Title + "|" + item.URL))
	return fmt.Sprintf("enriched_%s_%s", item.Source, hex.EncodeToString(h[:])[:12])
}
