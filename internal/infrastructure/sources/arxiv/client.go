package arxiv

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/vmelnikov/ragbase/internal/core/domain"
)

const apiEndpoint = "http://export.arxiv.org/api/query"

// Client queries the arXiv Atom API for paper abstracts.
type Client struct {
	endpoint   string
	httpClient *http.Client
	limiter    *rate.Limiter
}

func New() *Client {
	return &Client{
		endpoint:   apiEndpoint,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		// arXiv asks for no more than one request every three seconds.
		limiter: rate.NewLimiter(rate.Every(3*time.Second), 1),
	}
}

func NewWithEndpoint(endpoint string) *Client {
	c := New()
	c.endpoint = strings.TrimRight(endpoint, "/")
	return c
}

func (c *Client) Kind() domain.SourceKind { return domain.SourceArxiv }

type atomFeed struct {
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID      string `xml:"id"`
	Title   string `xml:"title"`
	Summary string `xml:"summary"`
	Authors []struct {
		Name string `xml:"name"`
	} `xml:"author"`
}

func (c *Client) Fetch(ctx context.Context, query string, _ []string, limit int) ([]domain.ContentItem, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{
		"search_query": {"all:" + query},
		"start":        {"0"},
		"max_results":  {fmt.Sprintf("%d", limit)},
		"sortBy":       {"relevance"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "ragbase/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("arxiv query: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("arxiv status %s: %s", resp.Status, strings.TrimSpace(string(raw)))
	}

	var feed atomFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("decode arxiv feed: %w", err)
	}
	return itemsFromFeed(feed, query, limit), nil
}

func itemsFromFeed(feed atomFeed, query string, limit int) []domain.ContentItem {
	items := make([]domain.ContentItem, 0, len(feed.Entries))
	for _, entry := range feed.Entries {
		if len(items) >= limit {
			break
		}
		title := normalizeWhitespace(entry.Title)
		summary := normalizeWhitespace(entry.Summary)
		if title == "" || summary == "" {
			continue
		}

		var names []string
		for _, a := range entry.Authors {
			if a.Name != "" {
				names = append(names, a.Name)
			}
		}

		var b strings.Builder
		b.WriteString(title)
		if len(names) > 0 {
			b.WriteString("\nAuthors: ")
			b.WriteString(strings.Join(names, ", "))
		}
		b.WriteString("\n\n")
		b.WriteString(summary)

		items = append(items, domain.ContentItem{
			Text:      b.String(),
			Source:    domain.SourceArxiv,
			Title:     title,
			URL:       strings.TrimSpace(entry.ID),
			QueryUsed: query,
		})
	}
	return items
}

// The Atom feed wraps titles and abstracts to fixed-width lines.
func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
