// Package events defines the analytics event publisher port and the
// payloads published on the chat stream.
package events

import (
	"context"
	"time"
)

// Subjects on the chat stream. The warehouse ingestion job consumes these.
const (
	SubjectTurnAppended       = "chat.turns.appended"
	SubjectConversationRolled = "chat.conversations.rolled"
)

// Publisher is the port interface for emitting analytics events.
// Publishing is best-effort: a failed publish never fails the chat turn.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
	Close() error
}

// TurnAppendedPayload is published after each persisted turn.
type TurnAppendedPayload struct {
	ConversationID string    `json:"conversation_id"`
	UserID         string    `json:"user_id"`
	TurnID         string    `json:"turn_id"`
	Seq            int       `json:"seq"`
	Role           string    `json:"role"`
	ResponseType   string    `json:"response_type,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// ConversationRolledPayload is published when a capped conversation closes
// and a successor opens.
type ConversationRolledPayload struct {
	UserID             string    `json:"user_id"`
	ClosedConversation string    `json:"closed_conversation_id"`
	NewConversation    string    `json:"new_conversation_id"`
	MessageCount       int       `json:"message_count"`
	Timestamp          time.Time `json:"timestamp"`
}
