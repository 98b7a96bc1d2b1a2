// Package store defines the conversation store port (interface).
package store

import (
	"context"

	"github.com/redmag-edu/mentoria/internal/domain/chat"
	"github.com/redmag-edu/mentoria/internal/domain/profile"
)

// Store is the port interface for conversation and profile persistence.
type Store interface {
	// Conversations
	GetActiveConversation(ctx context.Context, userID string) (*chat.Conversation, error)
	CreateConversation(ctx context.Context, userID string) (*chat.Conversation, error)
	GetConversation(ctx context.Context, id string) (*chat.Conversation, error)
	UpdateConversationStatus(ctx context.Context, id string, status chat.Status) error
	LatestConversationID(ctx context.Context, userID string) (string, error)

	// Turns. AppendTurn assigns the next sequence number; user turns also
	// increment the conversation's message count.
	AppendTurn(ctx context.Context, t *chat.Turn) (*chat.Turn, error)
	RecentTurns(ctx context.Context, conversationID string, n int) ([]chat.Turn, error)
	TurnPage(ctx context.Context, conversationID string, page, size int) ([]chat.Turn, int, error)

	// Profiles
	GetProfile(ctx context.Context, userID string) (*profile.Profile, error)
	UpsertProfile(ctx context.Context, p *profile.Profile) error
}
