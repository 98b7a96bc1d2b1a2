// Package vectorindex defines the semantic index port (interface).
package vectorindex

import (
	"context"

	"github.com/redmag-edu/mentoria/internal/domain/content"
)

// Match is one nearest-neighbor result with its content metadata.
type Match struct {
	ID    string       `json:"id"`
	Score float64      `json:"score"`
	Item  content.Item `json:"item"`
}

// Index is the port interface for the vector search service.
type Index interface {
	// Search returns the k nearest neighbors for the query embedding,
	// ordered by descending score.
	Search(ctx context.Context, embedding []float64, k int) ([]Match, error)

	// Content management (the index doubles as the content catalog).
	ListByType(ctx context.Context, t content.Type, page, size int) ([]content.Item, int, error)
	Upsert(ctx context.Context, item content.Item, embedding []float64) error
	Remove(ctx context.Context, id string) error
}
