package domain

// SourceKind identifies one of the fixed external knowledge providers.
type SourceKind string

const (
	SourceWikipedia SourceKind = "wikipedia"
	SourceArxiv     SourceKind = "arxiv"
	SourcePubMed    SourceKind = "pubmed"
	SourceWebSearch SourceKind = "web_search"
)

// ContentItem is one piece of text fetched from an external source.
type ContentItem struct {
	Text      string     `json:"text"`
	Source    SourceKind `json:"source"`
	Title     string     `json:"title"`
	URL       string     `json:"url"`
	QueryUsed string     `json:"query_used"`
}

// EnrichmentOutcome reports one enrichment attempt. Success is true only if
// at least one fetched item was durably inserted into the retrieval index.
type EnrichmentOutcome struct {
	SourcesAdded []string      `json:"sources_added"`
	ContentAdded []ContentItem `json:"content_added"`
	Success      bool          `json:"success"`
}

// SourceCapability describes one provider for the read-only capabilities
// snapshot. No fetch is performed to produce it.
type SourceCapability struct {
	Enabled     bool   `json:"enabled"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Priority    int    `json:"priority"`
}

// EnrichmentCapabilities is the diagnostic view over the source catalogue.
type EnrichmentCapabilities struct {
	AutoEnrichmentEnabled bool                            `json:"auto_enrichment_enabled"`
	TrustedSources        map[SourceKind]SourceCapability `json:"trusted_sources"`
}
