package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redmag-edu/mentoria/internal/domain"
	"github.com/redmag-edu/mentoria/internal/domain/chat"
	"github.com/redmag-edu/mentoria/internal/port/store"
)

// ConversationService serves the read side: conversation info and
// paginated history.
type ConversationService struct {
	store store.Store
	log   *slog.Logger
}

// NewConversationService creates the read-side service.
func NewConversationService(st store.Store, log *slog.Logger) *ConversationService {
	return &ConversationService{store: st, log: log}
}

// Get returns a conversation by ID.
func (s *ConversationService) Get(ctx context.Context, id string) (*chat.Conversation, error) {
	conv, err := s.store.GetConversation(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return conv, nil
}

// HistoryPage is one page of conversation history, oldest first.
type HistoryPage struct {
	Turns []chat.Turn `json:"messages"`
	Page  int         `json:"page"`
	Size  int         `json:"size"`
	Total int         `json:"total"`
}

// History returns a page of a conversation's turns. page is 1-based;
// size defaults to 20 and is capped at 100.
func (s *ConversationService) History(ctx context.Context, conversationID string, page, size int) (*HistoryPage, error) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	if size > 100 {
		size = 100
	}

	// Missing conversations surface as 404 rather than an empty page.
	if _, err := s.store.GetConversation(ctx, conversationID); err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}

	turns, total, err := s.store.TurnPage(ctx, conversationID, page, size)
	if err != nil {
		return nil, fmt.Errorf("load history page: %w", err)
	}
	return &HistoryPage{Turns: turns, Page: page, Size: size, Total: total}, nil
}

// Latest returns the ID of the user's most recent conversation in any
// state.
func (s *ConversationService) Latest(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("%w: user_id is required", domain.ErrValidation)
	}
	id, err := s.store.LatestConversationID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("latest conversation: %w", err)
	}
	return id, nil
}
