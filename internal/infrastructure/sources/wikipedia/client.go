package wikipedia

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/vmelnikov/ragbase/internal/core/domain"
)

const apiEndpoint = "https://en.wikipedia.org/w/api.php"

// Client fetches article extracts from the English Wikipedia API.
type Client struct {
	endpoint   string
	httpClient *http.Client
	limiter    *rate.Limiter
}

func New() *Client {
	return &Client{
		endpoint:   apiEndpoint,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		// One request per second keeps us well inside the API's etiquette.
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

func NewWithEndpoint(endpoint string) *Client {
	c := New()
	c.endpoint = strings.TrimRight(endpoint, "/")
	return c
}

func (c *Client) Kind() domain.SourceKind { return domain.SourceWikipedia }

// Fetch resolves each search term to its best-matching article and returns
// the article's intro extract. Terms are the query itself followed by up to
// two missing-information hints.
func (c *Client) Fetch(ctx context.Context, query string, hints []string, limit int) ([]domain.ContentItem, error) {
	items := make([]domain.ContentItem, 0, limit)
	for _, term := range searchTerms(query, hints, limit) {
		if len(items) >= limit {
			break
		}
		title, err := c.resolveTitle(ctx, term)
		if err != nil {
			return items, err
		}
		if title == "" {
			continue
		}
		extract, pageURL, err := c.fetchExtract(ctx, title)
		if err != nil {
			return items, err
		}
		if strings.TrimSpace(extract) == "" {
			continue
		}
		items = append(items, domain.ContentItem{
			Text:      extract,
			Source:    domain.SourceWikipedia,
			Title:     title,
			URL:       pageURL,
			QueryUsed: term,
		})
	}
	return items, nil
}

func searchTerms(query string, hints []string, limit int) []string {
	terms := []string{query}
	for _, h := range hints {
		if len(terms) >= 3 {
			break
		}
		if strings.TrimSpace(h) != "" {
			terms = append(terms, h)
		}
	}
	if len(terms) > limit {
		terms = terms[:limit]
	}
	return terms
}

func (c *Client) resolveTitle(ctx context.Context, term string) (string, error) {
	params := url.Values{
		"action": {"opensearch"},
		"search": {term},
		"limit":  {"1"},
		"format": {"json"},
	}

	var raw []json.RawMessage
	if err := c.getJSON(ctx, params, &raw); err != nil {
		return "", fmt.Errorf("wikipedia opensearch: %w", err)
	}
	// Response shape: [query, [titles], [descriptions], [urls]].
	if len(raw) < 2 {
		return "", nil
	}
	var titles []string
	if err := json.Unmarshal(raw[1], &titles); err != nil || len(titles) == 0 {
		return "", nil
	}
	return titles[0], nil
}

func (c *Client) fetchExtract(ctx context.Context, title string) (string, string, error) {
	params := url.Values{
		"action":      {"query"},
		"prop":        {"extracts|info"},
		"exintro":     {"1"},
		"explaintext": {"1"},
		"inprop":      {"url"},
		"titles":      {title},
		"format":      {"json"},
	}

	var response struct {
		Query struct {
			Pages map[string]struct {
				Extract string `json:"extract"`
				FullURL string `json:"fullurl"`
			} `json:"pages"`
		} `json:"query"`
	}
	if err := c.getJSON(ctx, params, &response); err != nil {
		return "", "", fmt.Errorf("wikipedia extract: %w", err)
	}
	for _, page := range response.Query.Pages {
		pageURL := page.FullURL
		if pageURL == "" {
			pageURL = "https://en.wikipedia.org/wiki/" + url.PathEscape(strings.ReplaceAll(title, " ", "_"))
		}
		return page.Extract, pageURL, nil
	}
	return "", "", nil
}

func (c *Client) getJSON(ctx context.Context, params url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "ragbase/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status %s: %s", resp.Status, strings.TrimSpace(string(raw)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
