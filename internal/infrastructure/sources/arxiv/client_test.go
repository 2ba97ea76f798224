package arxiv

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/vmelnikov/ragbase/internal/core/domain"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <id>http://arxiv.org/abs/2301.00001v1</id>
    <title>Attention Is
   All You Need</title>
    <summary>  We propose a new
   architecture based solely on attention.  </summary>
    <author><name>A. Author</name></author>
    <author><name>B. Author</name></author>
  </entry>
  <entry>
    <id>http://arxiv.org/abs/2301.00002v1</id>
    <title>Untitled Draft</title>
    <summary></summary>
  </entry>
</feed>`

func TestFetchParsesAtomFeed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("search_query"); got != "all:transformers" {
			t.Fatalf("unexpected search_query %q", got)
		}
		w.Header().Set("Content-Type", "application/atom+xml")
		_, _ = w.Write([]byte(sampleFeed))
	}))
	defer server.Close()

	client := NewWithEndpoint(server.URL)
	items, err := client.Fetch(context.Background(), "transformers", nil, 2)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item (empty abstract dropped), got %d", len(items))
	}

	item := items[0]
	if item.Source != domain.SourceArxiv {
		t.Fatalf("unexpected source %q", item.Source)
	}
	if item.Title != "Attention Is All You Need" {
		t.Fatalf("title not normalized: %q", item.Title)
	}
	if item.URL != "http://arxiv.org/abs/2301.00001v1" {
		t.Fatalf("unexpected url %q", item.URL)
	}
	if !strings.Contains(item.Text, "Authors: A. Author, B. Author") {
		t.Fatalf("authors missing from text: %q", item.Text)
	}
	if !strings.Contains(item.Text, "We propose a new architecture") {
		t.Fatalf("summary not normalized: %q", item.Text)
	}
	if item.QueryUsed != "transformers" {
		t.Fatalf("unexpected query used %q", item.QueryUsed)
	}
}

func TestFetchHonorsLimit(t *testing.T) {
	feed := `<?xml version="1.0"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry><id>a</id><title>One</title><summary>first</summary></entry>
  <entry><id>b</id><title>Two</title><summary>second</summary></entry>
  <entry><id>c</id><title>Three</title><summary>third</summary></entry>
</feed>`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(feed))
	}))
	defer server.Close()

	client := NewWithEndpoint(server.URL)
	items, err := client.Fetch(context.Background(), "q", nil, 2)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
}
