package service

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/redmag-edu/mentoria/internal/domain"
	"github.com/redmag-edu/mentoria/internal/domain/chat"
)

func TestHistoryPagination(t *testing.T) {
	st := newMockStore()
	svc := NewConversationService(st, slog.New(slog.DiscardHandler))
	ctx := context.Background()

	conv, _ := st.CreateConversation(ctx, "u1")
	for i := 0; i < 25; i++ {
		if _, err := st.AppendTurn(ctx, &chat.Turn{ConversationID: conv.ID, Role: chat.RoleUser, Content: "m"}); err != nil {
			t.Fatalf("seed turn: %v", err)
		}
	}

	page, err := svc.History(ctx, conv.ID, 2, 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if page.Total != 25 {
		t.Fatalf("total = %d, want 25", page.Total)
	}
	if len(page.Turns) != 10 {
		t.Fatalf("page size = %d, want 10", len(page.Turns))
	}
	if page.Turns[0].Seq != 11 {
		t.Fatalf("page 2 starts at seq %d, want 11", page.Turns[0].Seq)
	}

	// Defaults kick in for out-of-range values.
	page, err = svc.History(ctx, conv.ID, 0, 0)
	if err != nil {
		t.Fatalf("history defaults: %v", err)
	}
	if page.Page != 1 || page.Size != 20 {
		t.Fatalf("defaults = page %d size %d, want 1/20", page.Page, page.Size)
	}
}

func TestHistoryUnknownConversation(t *testing.T) {
	svc := NewConversationService(newMockStore(), slog.New(slog.DiscardHandler))
	if _, err := svc.History(context.Background(), "missing", 1, 10); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("got %v, want not found", err)
	}
}

func TestLatestConversation(t *testing.T) {
	st := newMockStore()
	svc := NewConversationService(st, slog.New(slog.DiscardHandler))
	ctx := context.Background()

	if _, err := svc.Latest(ctx, ""); !errors.Is(err, domain.ErrValidation) {
		t.Fatal("empty user_id must fail validation")
	}
	if _, err := svc.Latest(ctx, "u1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatal("unknown user must be not found")
	}

	conv, _ := st.CreateConversation(ctx, "u1")
	id, err := svc.Latest(ctx, "u1")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if id != conv.ID {
		t.Fatalf("latest = %q, want %q", id, conv.ID)
	}
}
