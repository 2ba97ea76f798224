package domain

import "time"

// PassageMetadata travels with every chunk stored in the retrieval index.
// DocumentID, ChunkID and Filename are always present; the remaining fields
// are populated for content fetched by the enrichment engine.
type PassageMetadata struct {
	DocumentID    string `json:"document_id"`
	ChunkID       string `json:"chunk_id"`
	Filename      string `json:"filename"`
	ChunkIndex    int    `json:"chunk_index"`
	Source        string `json:"source,omitempty"`
	Title         string `json:"title,omitempty"`
	URL           string `json:"url,omitempty"`
	Enriched      bool   `json:"enriched,omitempty"`
	OriginalQuery string `json:"original_query,omitempty"`
}

// RetrievedPassage is one index hit. Score is engine-native and not
// guaranteed to lie in [0,1]; it is clamped when a SourceReference is built.
type RetrievedPassage struct {
	Text     string          `json:"text"`
	Score    float64         `json:"score"`
	Metadata PassageMetadata `json:"metadata"`
}

// PassageInput is a chunk to be inserted into the retrieval index.
type PassageInput struct {
	Text     string
	Metadata PassageMetadata
}

// SourceReference points a returned answer back at a stored passage.
type SourceReference struct {
	DocumentID     string  `json:"document_id"`
	DocumentName   string  `json:"document_name"`
	ChunkID        string  `json:"chunk_id"`
	Content        string  `json:"content"`
	RelevanceScore float64 `json:"relevance_score"`
	Enriched       bool    `json:"enriched,omitempty"`
	URL            string  `json:"url,omitempty"`
}

// AnswerCandidate is one generation attempt. Created fresh on every call to
// the generator and never mutated afterwards.
type AnswerCandidate struct {
	Answer             string            `json:"answer"`
	Confidence         float64           `json:"confidence"`
	IsComplete         bool              `json:"is_complete"`
	MissingInfo        []string          `json:"missing_info"`
	Sources            []SourceReference `json:"sources"`
	UsedPassageIndices []int             `json:"used_passage_indices"`
}

type SuggestionType string

const (
	SuggestionDocument       SuggestionType = "document"
	SuggestionExternalSource SuggestionType = "external_source"
)

type SuggestionPriority string

const (
	PriorityHigh   SuggestionPriority = "high"
	PriorityMedium SuggestionPriority = "medium"
)

// EnrichmentSuggestion is advisory output attached to a search result; it
// never drives control flow by itself.
type EnrichmentSuggestion struct {
	Type              SuggestionType     `json:"type"`
	Suggestion        string             `json:"suggestion"`
	Priority          SuggestionPriority `json:"priority"`
	Reasoning         string             `json:"reasoning"`
	ExternalSourceURL string             `json:"external_source_url,omitempty"`
}

// SearchResult is the externally visible artifact of one answer operation.
type SearchResult struct {
	Query                 string                 `json:"query"`
	Answer                string                 `json:"answer"`
	Confidence            float64                `json:"confidence"`
	IsComplete            bool                   `json:"is_complete"`
	Sources               []SourceReference      `json:"sources"`
	MissingInfo           []string               `json:"missing_info"`
	EnrichmentSuggestions []EnrichmentSuggestion `json:"enrichment_suggestions"`
	AutoEnrichmentApplied bool                   `json:"auto_enrichment_applied"`
	AutoEnrichmentSources []string               `json:"auto_enrichment_sources"`
	Timestamp             time.Time              `json:"timestamp"`
}

// ClampScore normalizes an engine-native relevance score into [0,1].
func ClampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
