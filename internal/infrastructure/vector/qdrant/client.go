package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vmelnikov/ragbase/internal/core/domain"
)

// Embedder turns text into vectors for indexing and querying.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Client implements the retrieval capability on top of Qdrant's HTTP API.
// Point upserts are commutative, so concurrent inserts from independent
// requests are safe; visibility across requests is eventual.
type Client struct {
	baseURL    string
	collection string
	embedder   Embedder
	httpClient *http.Client

	ensureMu          sync.Mutex
	ensuredCollection bool
	ensuredVectorSize int
}

func New(baseURL, collection string, embedder Embedder) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		embedder:   embedder,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

type point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

func (c *Client) Insert(ctx context.Context, passages []domain.PassageInput) ([]string, error) {
	if len(passages) == 0 {
		return nil, nil
	}

	texts := make([]string, len(passages))
	for i, p := range passages {
		texts[i] = p.Text
	}
	vectors, err := c.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed passages: %w", err)
	}
	if len(vectors) != len(passages) {
		return nil, fmt.Errorf("embedding count mismatch: %d texts, %d vectors", len(passages), len(vectors))
	}

	if err := c.ensureCollection(ctx, len(vectors[0])); err != nil {
		return nil, err
	}

	points := make([]point, 0, len(passages))
	ids := make([]string, 0, len(passages))
	for i, p := range passages {
		points = append(points, point{
			// Deterministic per chunk id, so re-inserting the same
			// enriched content upserts instead of duplicating.
			ID:      uuid.NewSHA1(uuid.NameSpaceOID, []byte(p.Metadata.ChunkID)).String(),
			Vector:  vectors[i],
			Payload: payloadFromMetadata(p.Text, p.Metadata),
		})
		ids = append(ids, p.Metadata.ChunkID)
	}

	reqBody := map[string]any{"points": points}
	url := fmt.Sprintf("%s/collections/%s/points?wait=true", c.baseURL, c.collection)
	if err := c.do(ctx, http.MethodPut, url, reqBody, nil); err != nil {
		return nil, fmt.Errorf("qdrant upsert: %w", err)
	}
	return ids, nil
}

func (c *Client) SearchWithScore(ctx context.Context, query string, k int) ([]domain.RetrievedPassage, error) {
	queryVector, err := c.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	reqBody := map[string]any{
		"vector":       queryVector,
		"limit":        k,
		"with_payload": true,
	}

	var searchResp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}

	url := fmt.Sprintf("%s/collections/%s/points/search", c.baseURL, c.collection)
	err = c.do(ctx, http.MethodPost, url, reqBody, &searchResp)
	if isMissingCollection(err) {
		// Nothing indexed yet: an empty result, not a failure.
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("qdrant search: %w", err)
	}

	out := make([]domain.RetrievedPassage, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		text, meta := metadataFromPayload(r.Payload)
		out = append(out, domain.RetrievedPassage{
			Text:     text,
			Score:    r.Score,
			Metadata: meta,
		})
	}
	return out, nil
}

func (c *Client) Delete(ctx context.Context, documentID string) (bool, error) {
	chunks, err := c.GetChunks(ctx, documentID)
	if err != nil {
		return false, err
	}
	if len(chunks) == 0 {
		return false, nil
	}

	reqBody := map[string]any{
		"filter": documentFilter(documentID),
	}
	url := fmt.Sprintf("%s/collections/%s/points/delete?wait=true", c.baseURL, c.collection)
	if err := c.do(ctx, http.MethodPost, url, reqBody, nil); err != nil {
		return false, fmt.Errorf("qdrant delete: %w", err)
	}
	return true, nil
}

const scrollPageSize = 1024

func (c *Client) GetChunks(ctx context.Context, documentID string) ([]domain.RetrievedPassage, error) {
	url := fmt.Sprintf("%s/collections/%s/points/scroll", c.baseURL, c.collection)

	var out []domain.RetrievedPassage
	var offset any
	for {
		reqBody := map[string]any{
			"filter":       documentFilter(documentID),
			"with_payload": true,
			"limit":        scrollPageSize,
		}
		if offset != nil {
			reqBody["offset"] = offset
		}

		var scrollResp struct {
			Result struct {
				Points []struct {
					Payload map[string]any `json:"payload"`
				} `json:"points"`
				NextPageOffset any `json:"next_page_offset"`
			} `json:"result"`
		}

		err := c.do(ctx, http.MethodPost, url, reqBody, &scrollResp)
		if isMissingCollection(err) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("qdrant scroll: %w", err)
		}

		for _, p := range scrollResp.Result.Points {
			text, meta := metadataFromPayload(p.Payload)
			out = append(out, domain.RetrievedPassage{Text: text, Metadata: meta})
		}

		if scrollResp.Result.NextPageOffset == nil || len(scrollResp.Result.Points) == 0 {
			return out, nil
		}
		offset = scrollResp.Result.NextPageOffset
	}
}

func (c *Client) Count(ctx context.Context) (int, error) {
	var countResp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}

	url := fmt.Sprintf("%s/collections/%s/points/count", c.baseURL, c.collection)
	err := c.do(ctx, http.MethodPost, url, map[string]any{"exact": true}, &countResp)
	if isMissingCollection(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("qdrant count: %w", err)
	}
	return countResp.Result.Count, nil
}

func (c *Client) ensureCollection(ctx context.Context, vectorSize int) error {
	c.ensureMu.Lock()
	if c.ensuredCollection && c.ensuredVectorSize == vectorSize {
		c.ensureMu.Unlock()
		return nil
	}
	c.ensureMu.Unlock()

	reqBody := map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": "Cosine",
		},
	}

	url := fmt.Sprintf("%s/collections/%s", c.baseURL, c.collection)
	err := c.do(ctx, http.MethodPut, url, reqBody, nil)
	// 409 means the collection already exists, which is fine.
	var statusErr *statusError
	if err != nil && !(asStatusError(err, &statusErr) && statusErr.code == http.StatusConflict) {
		return fmt.Errorf("qdrant ensure collection: %w", err)
	}

	c.ensureMu.Lock()
	c.ensuredCollection = true
	c.ensuredVectorSize = vectorSize
	c.ensureMu.Unlock()
	return nil
}

func documentFilter(documentID string) map[string]any {
	return map[string]any{
		"must": []map[string]any{
			{
				"key": "document_id",
				"match": map[string]any{
					"value": documentID,
				},
			},
		},
	}
}

func payloadFromMetadata(text string, meta domain.PassageMetadata) map[string]any {
	payload := map[string]any{
		"document_id": meta.DocumentID,
		"chunk_id":    meta.ChunkID,
		"filename":    meta.Filename,
		"chunk_index": meta.ChunkIndex,
		"text":        text,
	}
	if meta.Enriched {
		payload["enriched"] = true
		payload["source"] = meta.Source
		payload["title"] = meta.Title
		payload["url"] = meta.URL
		payload["original_query"] = meta.OriginalQuery
	}
	return payload
}

func metadataFromPayload(payload map[string]any) (string, domain.PassageMetadata) {
	meta := domain.PassageMetadata{
		DocumentID:    stringField(payload, "document_id"),
		ChunkID:       stringField(payload, "chunk_id"),
		Filename:      stringField(payload, "filename"),
		ChunkIndex:    intField(payload, "chunk_index"),
		Source:        stringField(payload, "source"),
		Title:         stringField(payload, "title"),
		URL:           stringField(payload, "url"),
		Enriched:      boolField(payload, "enriched"),
		OriginalQuery: stringField(payload, "original_query"),
	}
	return stringField(payload, "text"), meta
}

func stringField(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func intField(payload map[string]any, key string) int {
	if v, ok := payload[key].(float64); ok {
		return int(v)
	}
	return 0
}

func boolField(payload map[string]any, key string) bool {
	v, _ := payload[key].(bool)
	return v
}

type statusError struct {
	code   int
	status string
	body   string
}

func (e *statusError) Error() string {
	if strings.TrimSpace(e.body) == "" {
		return fmt.Sprintf("qdrant status: %s", e.status)
	}
	return fmt.Sprintf("qdrant status: %s: %s", e.status, e.body)
}

func asStatusError(err error, target **statusError) bool {
	se, ok := err.(*statusError)
	if ok {
		*target = se
	}
	return ok
}

func isMissingCollection(err error) bool {
	var se *statusError
	return err != nil && asStatusError(err, &se) && se.code == http.StatusNotFound
}

func (c *Client) do(ctx context.Context, method, url string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &statusError{
			code:   resp.StatusCode,
			status: resp.Status,
			body:   strings.TrimSpace(string(raw)),
		}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
