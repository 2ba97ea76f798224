package session

import (
	"context"
	"testing"

	"github.com/vmelnikov/ragbase/internal/core/domain"
)

func TestCreateGetAppend(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	ctx := context.Background()

	created, err := store.Create(ctx, "research notes")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if created.ID == "" || created.Name != "research notes" {
		t.Fatalf("unexpected session: %+v", created)
	}

	if err := store.AppendMessage(ctx, created.ID, domain.ChatMessage{
		Role:    domain.RoleUser,
		Content: "what is gravity?",
	}); err != nil {
		t.Fatalf("AppendMessage() error = %v", err)
	}
	if err := store.AppendMessage(ctx, created.ID, domain.ChatMessage{
		Role:           domain.RoleAssistant,
		Content:        "Gravity is...",
		Confidence:     0.9,
		EnrichmentUsed: true,
	}); err != nil {
		t.Fatalf("AppendMessage() error = %v", err)
	}

	got, err := store.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(got.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(got.Messages))
	}
	if got.Messages[1].Role != domain.RoleAssistant || !got.Messages[1].EnrichmentUsed {
		t.Fatalf("unexpected assistant message: %+v", got.Messages[1])
	}
	if got.Messages[0].CreatedAt.IsZero() {
		t.Fatalf("expected message timestamp to be filled")
	}
}

func TestGetUnknownSessionIsNotFound(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}

	_, err = store.Get(context.Background(), "nope")
	if !domain.IsKind(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestListSummaries(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	ctx := context.Background()

	first, _ := store.Create(ctx, "first")
	if _, err := store.Create(ctx, "second"); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := store.AppendMessage(ctx, first.ID, domain.ChatMessage{Role: domain.RoleUser, Content: "hi"}); err != nil {
		t.Fatalf("AppendMessage() error = %v", err)
	}

	summaries, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(summaries))
	}
	// Most recently updated first.
	if summaries[0].ID != first.ID || summaries[0].MessageCount != 1 {
		t.Fatalf("unexpected ordering: %+v", summaries)
	}
}
