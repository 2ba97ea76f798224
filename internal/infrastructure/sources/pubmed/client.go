package pubmed

import (
	"context"
	"encoding/json"
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

const eutilsEndpoint = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

// Client fetches article abstracts through the NCBI E-utilities API.
type Client struct {
	endpoint   string
	httpClient *http.Client
	limiter    *rate.Limiter
}

func New() *Client {
	return &Client{
		endpoint:   eutilsEndpoint,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		// NCBI allows three requests per second without an API key.
		limiter: rate.NewLimiter(rate.Every(334*time.Millisecond), 1),
	}
}

func NewWithEndpoint(endpoint string) *Client {
	c := New()
	c.endpoint = strings.TrimRight(endpoint, "/")
	return c
}

func (c *Client) Kind() domain.SourceKind { return domain.SourcePubMed }

func (c *Client) Fetch(ctx context.Context, query string, _ []string, limit int) ([]domain.ContentItem, error) {
	ids, err := c.search(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	articles, err := c.fetchArticles(ctx, ids)
	if err != nil {
		return nil, err
	}

	items := make([]domain.ContentItem, 0, len(articles))
	for _, a := range articles {
		if len(items) >= limit {
			break
		}
		abstract := strings.TrimSpace(strings.Join(a.abstractParts, "\n"))
		if a.title == "" || abstract == "" {
			continue
		}
		items = append(items, domain.ContentItem{
			Text:      a.title + "\n\n" + abstract,
			Source:    domain.SourcePubMed,
			Title:     a.title,
			URL:       fmt.Sprintf("https://pubmed.ncbi.nlm.nih.gov/%s/", a.pmid),
			QueryUsed: query,
		})
	}
	return items, nil
}

func (c *Client) search(ctx context.Context, query string, limit int) ([]string, error) {
	params := url.Values{
		"db":      {"pubmed"},
		"term":    {query},
		"retmax":  {fmt.Sprintf("%d", limit)},
		"retmode": {"json"},
		"sort":    {"relevance"},
	}

	body, err := c.get(ctx, "/esearch.fcgi", params)
	if err != nil {
		return nil, fmt.Errorf("pubmed esearch: %w", err)
	}
	defer body.Close()

	var response struct {
		ESearchResult struct {
			IDList []string `json:"idlist"`
		} `json:"esearchresult"`
	}
	if err := json.NewDecoder(body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode esearch response: %w", err)
	}
	return response.ESearchResult.IDList, nil
}

type article struct {
	pmid          string
	title         string
	abstractParts []string
}

func (c *Client) fetchArticles(ctx context.Context, ids []string) ([]article, error) {
	params := url.Values{
		"db":      {"pubmed"},
		"id":      {strings.Join(ids, ",")},
		"retmode": {"xml"},
	}

	body, err := c.get(ctx, "/efetch.fcgi", params)
	if err != nil {
		return nil, fmt.Errorf("pubmed efetch: %w", err)
	}
	defer body.Close()

	var parsed struct {
		Articles []struct {
			Citation struct {
				PMID    string `xml:"PMID"`
				Article struct {
					Title    string `xml:"ArticleTitle"`
					Abstract struct {
						Texts []string `xml:"AbstractText"`
					} `xml:"Abstract"`
				} `xml:"Article"`
			} `xml:"MedlineCitation"`
		} `xml:"PubmedArticle"`
	}
	if err := xml.NewDecoder(body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode efetch response: %w", err)
	}

	out := make([]article, 0, len(parsed.Articles))
	for _, a := range parsed.Articles {
		out = append(out, article{
			pmid:          a.Citation.PMID,
			title:         strings.TrimSpace(a.Citation.Article.Title),
			abstractParts: a.Citation.Article.Abstract.Texts,
		})
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values) (io.ReadCloser, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "ragbase/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, fmt.Errorf("status %s: %s", resp.Status, strings.TrimSpace(string(raw)))
	}
	return resp.Body, nil
}
