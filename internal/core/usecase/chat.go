package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/vmelnikov/ragbase/internal/core/domain"
	"github.com/vmelnikov/ragbase/internal/core/ports"
)

const maxChatMessageRunes = 2000

// ChatUseCase wraps the answering loop in session bookkeeping. The
// orchestrator itself knows nothing about sessions.
type ChatUseCase struct {
	answers  ports.AnswerService
	sessions ports.SessionStore
	fanOut   int
}

func NewChatUseCase(answers ports.AnswerService, sessions ports.SessionStore, fanOut int) *ChatUseCase {
	if fanOut <= 0 {
		fanOut = defaultFanOut
	}
	return &ChatUseCase{
		answers:  answers,
		sessions: sessions,
		fanOut:   fanOut,
	}
}

func (uc *ChatUseCase) Chat(ctx context.Context, sessionID, message string) (*domain.ChatMessage, *domain.SearchResult, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, nil, domain.WrapError(domain.ErrInvalidInput, "chat", fmt.Errorf("message is empty"))
	}
	if utf8.RuneCountInString(message) > maxChatMessageRunes {
		return nil, nil, domain.WrapError(domain.ErrInvalidInput, "chat", fmt.Errorf("message exceeds %d characters", maxChatMessageRunes))
	}

	if _, err := uc.sessions.Get(ctx, sessionID); err != nil {
		return nil, nil, err
	}

	if err := uc.sessions.AppendMessage(ctx, sessionID, domain.ChatMessage{
		Role:      domain.RoleUser,
		Content:   message,
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		return nil, nil, fmt.Errorf("append user message: %w", err)
	}

	result, err := uc.answers.Answer(ctx, message, uc.fanOut, true)
	if err != nil {
		return nil, nil, err
	}

	reply := domain.ChatMessage{
		Role:           domain.RoleAssistant,
		Content:        result.Answer,
		Sources:        result.Sources,
		Confidence:     result.Confidence,
		EnrichmentUsed: result.AutoEnrichmentApplied,
		CreatedAt:      time.Now().UTC(),
	}
	if err := uc.sessions.AppendMessage(ctx, sessionID, reply); err != nil {
		return nil, nil, fmt.Errorf("append assistant message: %w", err)
	}

	return &reply, result, nil
}
