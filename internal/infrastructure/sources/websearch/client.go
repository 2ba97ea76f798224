package websearch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/time/rate"

	"github.com/vmelnikov/ragbase/internal/core/domain"
)

const searchEndpoint = "https://html.duckduckgo.com/html/"

// Client scrapes the DuckDuckGo HTML endpoint. It is the lowest-priority
// source: noisier than the curated APIs but with the widest coverage.
type Client struct {
	endpoint   string
	httpClient *http.Client
	limiter    *rate.Limiter
}

func New() *Client {
	return &Client{
		endpoint:   searchEndpoint,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(2*time.Second), 1),
	}
}

func NewWithEndpoint(endpoint string) *Client {
	c := New()
	c.endpoint = endpoint
	return c
}

func (c *Client) Kind() domain.SourceKind { return domain.SourceWebSearch }

func (c *Client) Fetch(ctx context.Context, query string, _ []string, limit int) ([]domain.ContentItem, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	form := url.Values{"q": {query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", "ragbase/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("web search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("web search status %s: %s", resp.Status, strings.TrimSpace(string(raw)))
	}

	results, err := parseResults(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse search results: %w", err)
	}

	items := make([]domain.ContentItem, 0, limit)
	for _, r := range results {
		if len(items) >= limit {
			break
		}
		if r.title == "" || r.snippet == "" {
			continue
		}
		items = append(items, domain.ContentItem{
			Text:      r.title + "\n\n" + r.snippet,
			Source:    domain.SourceWebSearch,
			Title:     r.title,
			URL:       r.url,
			QueryUsed: query,
		})
	}
	return items, nil
}

type searchResult struct {
	title   string
	url     string
	snippet string
}

// parseResults walks the result page for anchors and snippets marked with
// the result__a and result__snippet classes.
func parseResults(r io.Reader) ([]searchResult, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	var results []searchResult
	var current *searchResult

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch {
			case n.Data == "a" && hasClass(n, "result__a"):
				if current != nil {
					results = append(results, *current)
				}
				current = &searchResult{
					title: strings.TrimSpace(textContent(n)),
					url:   resolveRedirect(attr(n, "href")),
				}
			case hasClass(n, "result__snippet"):
				if current != nil && current.snippet == "" {
					current.snippet = strings.TrimSpace(textContent(n))
				}
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(root)

	if current != nil {
		results = append(results, *current)
	}
	return results, nil
}

// DuckDuckGo links go through a redirect with the target in the uddg param.
func resolveRedirect(href string) string {
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	parsed, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := parsed.Query().Get("uddg"); target != "" {
		return target
	}
	return href
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			b.WriteString(node.Data)
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return b.String()
}
