package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vmelnikov/ragbase/internal/core/domain"
)

// FileStore keeps each session as one JSON file under its base directory.
// A single process-wide mutex serializes writes; session files are small
// and chat traffic is low enough that finer locking buys nothing.
type FileStore struct {
	basePath string
	mu       sync.Mutex
}

func NewFileStore(basePath string) (*FileStore, error) {
	if basePath == "" {
		basePath = "./data/sessions"
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create sessions dir: %w", err)
	}
	return &FileStore{basePath: basePath}, nil
}

func (s *FileStore) Create(_ context.Context, name string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	session := &domain.Session{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(name),
		Messages:  []domain.ChatMessage{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if session.Name == "" {
		session.Name = "Session " + now.Format("2006-01-02 15:04")
	}
	if err := s.write(session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *FileStore) Get(_ context.Context, id string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(id)
}

func (s *FileStore) List(_ context.Context) ([]domain.SessionSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return nil, fmt.Errorf("read sessions dir: %w", err)
	}

	summaries := make([]domain.SessionSummary, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		session, err := s.read(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			// A corrupt file should not take down the listing.
			continue
		}
		summaries = append(summaries, domain.SessionSummary{
			ID:           session.ID,
			Name:         session.Name,
			MessageCount: len(session.Messages),
			CreatedAt:    session.CreatedAt,
			UpdatedAt:    session.UpdatedAt,
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].UpdatedAt.After(summaries[j].UpdatedAt)
	})
	return summaries, nil
}

func (s *FileStore) AppendMessage(_ context.Context, id string, msg domain.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.read(id)
	if err != nil {
		return err
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	session.Messages = append(session.Messages, msg)
	session.UpdatedAt = time.Now().UTC()
	return s.write(session)
}

func (s *FileStore) path(id string) string {
	return filepath.Join(s.basePath, id+".json")
}

func (s *FileStore) read(id string) (*domain.Session, error) {
	raw, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.WrapError(domain.ErrSessionNotFound, id, err)
		}
		return nil, fmt.Errorf("read session: %w", err)
	}
	var session domain.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &session, nil
}

func (s *FileStore) write(session *domain.Session) error {
	raw, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	// Write-then-rename so a crash never leaves a truncated session file.
	tmp := s.path(session.ID) + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	if err := os.Rename(tmp, s.path(session.ID)); err != nil {
		return fmt.Errorf("replace session file: %w", err)
	}
	return nil
}
