package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redmag-edu/mentoria/internal/domain"
	"github.com/redmag-edu/mentoria/internal/domain/chat"
	"github.com/redmag-edu/mentoria/internal/port/store"
)

// Assembly is the bounded context handed to the routing stages.
type Assembly struct {
	Conversation *chat.Conversation
	Window       []chat.Turn
	// FirstMessage marks the first interaction of a brand-new conversation;
	// the welcome menu is shown instead of routing.
	FirstMessage bool
	// Rolled is set when a capped conversation was closed and a successor
	// created for this message.
	Rolled bool
	// ClosedID is the closed predecessor's ID when Rolled is set.
	ClosedID string
}

// ContextAssembler loads the user's active conversation and its trailing
// turn window, applying the rollover rule. Storage failures here are
// fatal for the request; nothing is persisted.
type ContextAssembler struct {
	store  store.Store
	window int
	cap    int
	log    *slog.Logger
}

// NewContextAssembler creates an assembler with the given window size and
// message cap. Non-positive values fall back to the domain defaults.
func NewContextAssembler(st store.Store, window, cap int, log *slog.Logger) *ContextAssembler {
	if window <= 0 {
		window = chat.WindowSize
	}
	if cap <= 0 {
		cap = chat.TurnCap
	}
	return &ContextAssembler{store: st, window: window, cap: cap, log: log}
}

// Assemble returns the active conversation for the user, creating one when
// none exists or the current one has reached the message cap. The profile
// is untouched by rollover; it lives outside the conversation.
func (a *ContextAssembler) Assemble(ctx context.Context, userID string) (*Assembly, error) {
	conv, err := a.store.GetActiveConversation(ctx, userID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("assemble context: %w", err)
		}
		conv, err = a.store.CreateConversation(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("assemble context: %w", err)
		}
		a.log.Info("conversation created", "conversation_id", conv.ID, "user_id", userID)
		return &Assembly{Conversation: conv, FirstMessage: true}, nil
	}

	lc := chat.NewLifecycle(conv.Status, conv.MessageCount, a.cap)
	if lc.NeedsRollover() {
		closedID := conv.ID
		if err := a.store.UpdateConversationStatus(ctx, closedID, lc.Close()); err != nil {
			return nil, fmt.Errorf("close capped conversation: %w", err)
		}
		conv, err = a.store.CreateConversation(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("create successor conversation: %w", err)
		}
		a.log.Info("conversation rolled over",
			"closed_id", closedID, "conversation_id", conv.ID, "user_id", userID)
		// The successor starts with an empty window; the message is routed
		// normally rather than greeted again.
		return &Assembly{Conversation: conv, Rolled: true, ClosedID: closedID}, nil
	}

	window, err := a.store.RecentTurns(ctx, conv.ID, a.window)
	if err != nil {
		return nil, fmt.Errorf("load context window: %w", err)
	}

	return &Assembly{
		Conversation: conv,
		Window:       window,
		FirstMessage: len(window) == 0,
	}, nil
}
