// Package chat holds the conversation domain model: conversations, turns,
// the rollover lifecycle, routing decisions, and the response shapes the
// frontend renders.
package chat

import (
	"encoding/json"
	"time"
)

// TurnCap is the number of inbound user messages a conversation accepts
// before the next message starts a new conversation.
const TurnCap = 20

// WindowSize is the number of trailing turns loaded as model context.
const WindowSize = 8

// Role identifies who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Status is the lifecycle state of a conversation.
type Status string

const (
	// StatusActive accepts new turns.
	StatusActive Status = "active"
	// StatusRolloverPending means the cap was reached; the next inbound
	// message closes this conversation and opens a new one.
	StatusRolloverPending Status = "rollover_pending"
	// StatusClosed conversations are immutable and never reopened.
	StatusClosed Status = "closed"
)

// Conversation is a chat thread owned by a single user.
type Conversation struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Status       Status    `json:"status"`
	MessageCount int       `json:"message_count"` // inbound user messages
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Turn is a single message in a conversation. Turns are append-only and
// Seq is strictly increasing per conversation.
type Turn struct {
	ID             string          `json:"id"`
	ConversationID string          `json:"conversation_id"`
	Seq            int             `json:"seq"`
	Role           Role            `json:"role"`
	Kind           ResponseType    `json:"kind,omitempty"` // set on assistant turns
	Content        string          `json:"content"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Request is the inbound chat interaction body.
type Request struct {
	UserID         string      `json:"user_id"`
	ConversationID string      `json:"conversation_id,omitempty"`
	Message        string      `json:"message,omitempty"`
	UserData       []DataInput `json:"user_data,omitempty"`
}

// DataInput is a structured value submitted from a frontend button,
// e.g. {field: "menu_option", value: "meds"} or {field: "grado", value: "quinto"}.
type DataInput struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// Result is what the chat endpoint returns to the caller.
type Result struct {
	ConversationID string   `json:"conversation_id"`
	Response       Response `json:"response"`
}
