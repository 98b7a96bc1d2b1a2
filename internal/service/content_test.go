package service

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/redmag-edu/mentoria/internal/domain"
	"github.com/redmag-edu/mentoria/internal/domain/content"
)

func newTestContentService(ml *mockLLM, idx *mockIndex) *ContentService {
	return NewContentService(idx, ml, "embed-model", slog.New(slog.DiscardHandler))
}

func TestContentCreateAssignsIDAndIndexes(t *testing.T) {
	ml := &mockLLM{}
	idx := newMockIndex()
	svc := newTestContentService(ml, idx)

	item, err := svc.Create(context.Background(), content.Item{
		Type:        content.TypeMED,
		Title:       "Fracciones interactivas",
		Description: "Material digital para quinto grado",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if item.ID == "" {
		t.Fatal("create must assign an id")
	}
	if item.CreatedAt.IsZero() || item.UpdatedAt.IsZero() {
		t.Fatal("create must stamp timestamps")
	}
	if ml.embeds != 1 {
		t.Fatalf("embed calls = %d, want 1", ml.embeds)
	}
	if _, ok := idx.items[item.ID]; !ok {
		t.Fatal("item not indexed")
	}
}

func TestContentCreateValidation(t *testing.T) {
	svc := newTestContentService(&mockLLM{}, newMockIndex())

	_, err := svc.Create(context.Background(), content.Item{Type: content.TypeMED})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("missing title: got %v, want validation error", err)
	}
	_, err = svc.Create(context.Background(), content.Item{Type: "pdf", Title: "x"})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("bad type: got %v, want validation error", err)
	}
}

func TestContentUpdateKeepsID(t *testing.T) {
	ml := &mockLLM{}
	idx := newMockIndex()
	svc := newTestContentService(ml, idx)

	created, err := svc.Create(context.Background(), content.Item{Type: content.TypePlaneacion, Title: "Plan original"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	updated, err := svc.Update(context.Background(), created.ID, content.Item{Type: content.TypePlaneacion, Title: "Plan revisado"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.ID != created.ID {
		t.Fatalf("update changed id: %q -> %q", created.ID, updated.ID)
	}
	if idx.items[created.ID].Title != "Plan revisado" {
		t.Fatal("index not refreshed on update")
	}
}

func TestContentDelete(t *testing.T) {
	idx := newMockIndex()
	svc := newTestContentService(&mockLLM{}, idx)

	created, err := svc.Create(context.Background(), content.Item{Type: content.TypeMED, Title: "Borrable"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.Delete(context.Background(), created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := svc.Delete(context.Background(), created.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("second delete: got %v, want not found", err)
	}
}

func TestContentList(t *testing.T) {
	idx := newMockIndex()
	svc := newTestContentService(&mockLLM{}, idx)
	ctx := context.Background()

	for _, title := range []string{"a", "b"} {
		if _, err := svc.Create(ctx, content.Item{Type: content.TypeMED, Title: title}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	if _, err := svc.Create(ctx, content.Item{Type: content.TypePlaneacion, Title: "c"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	page, err := svc.List(ctx, content.TypeMED, 1, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 2 || len(page.Items) != 2 {
		t.Fatalf("meds = %d/%d, want 2/2", page.Total, len(page.Items))
	}
}
