package ws

// Event type constants for WebSocket messages.
const (
	EventTurnAppended       = "turn.appended"
	EventConversationRolled = "conversation.rolled"
)

// TurnAppendedEvent is sent after each persisted turn.
type TurnAppendedEvent struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
	Seq            int    `json:"seq"`
	Role           string `json:"role"`
	ResponseType   string `json:"response_type,omitempty"`
}

// ConversationRolledEvent is sent when a capped conversation closes and a
// successor opens.
type ConversationRolledEvent struct {
	UserID             string `json:"user_id"`
	ClosedConversation string `json:"closed_conversation_id"`
	NewConversation    string `json:"new_conversation_id"`
}
