package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/redmag-edu/mentoria/internal/domain"
	"github.com/redmag-edu/mentoria/internal/domain/content"
	"github.com/redmag-edu/mentoria/internal/port/llm"
	"github.com/redmag-edu/mentoria/internal/port/vectorindex"
)

// ContentService manages the content catalog behind the vector index.
// Writes re-embed the item so search stays consistent with the metadata.
type ContentService struct {
	index      vectorindex.Index
	llm        llm.Client
	embedModel string
	log        *slog.Logger
}

// NewContentService creates the catalog service.
func NewContentService(index vectorindex.Index, client llm.Client, embedModel string, log *slog.Logger) *ContentService {
	return &ContentService{index: index, llm: client, embedModel: embedModel, log: log}
}

// ContentPage is one page of catalog items.
type ContentPage struct {
	Items []content.Item `json:"items"`
	Page  int            `json:"page"`
	Size  int            `json:"size"`
	Total int            `json:"total"`
}

// List returns a page of items of the given type. page is 1-based.
func (s *ContentService) List(ctx context.Context, t content.Type, page, size int) (*ContentPage, error) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	if size > 100 {
		size = 100
	}
	items, total, err := s.index.ListByType(ctx, t, page, size)
	if err != nil {
		return nil, fmt.Errorf("list %s content: %w", t, err)
	}
	return &ContentPage{Items: items, Page: page, Size: size, Total: total}, nil
}

// Create validates and indexes a new item, assigning its ID.
func (s *ContentService) Create(ctx context.Context, item content.Item) (*content.Item, error) {
	if err := validateItem(item); err != nil {
		return nil, err
	}
	item.ID = uuid.NewString()
	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now

	if err := s.upsert(ctx, item); err != nil {
		return nil, err
	}
	s.log.Info("content created", "id", item.ID, "type", item.Type, "title", item.Title)
	return &item, nil
}

// Update re-indexes an existing item under the same ID.
func (s *ContentService) Update(ctx context.Context, id string, item content.Item) (*content.Item, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: content id is required", domain.ErrValidation)
	}
	if err := validateItem(item); err != nil {
		return nil, err
	}
	item.ID = id
	item.UpdatedAt = time.Now().UTC()

	if err := s.upsert(ctx, item); err != nil {
		return nil, err
	}
	s.log.Info("content updated", "id", item.ID, "type", item.Type)
	return &item, nil
}

// Delete removes an item from the index.
func (s *ContentService) Delete(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: content id is required", domain.ErrValidation)
	}
	if err := s.index.Remove(ctx, id); err != nil {
		return fmt.Errorf("delete content: %w", err)
	}
	s.log.Info("content deleted", "id", id)
	return nil
}

func (s *ContentService) upsert(ctx context.Context, item content.Item) error {
	embedding, err := s.llm.Embed(ctx, s.embedModel, item.EmbeddingText())
	if err != nil {
		return fmt.Errorf("embed content: %w", err)
	}
	if err := s.index.Upsert(ctx, item, embedding); err != nil {
		return fmt.Errorf("index content: %w", err)
	}
	return nil
}

func validateItem(item content.Item) error {
	if strings.TrimSpace(item.Title) == "" {
		return fmt.Errorf("%w: title is required", domain.ErrValidation)
	}
	switch item.Type {
	case content.TypeMED, content.TypePlaneacion:
		return nil
	default:
		return fmt.Errorf("%w: unknown content type %q", domain.ErrValidation, item.Type)
	}
}
