// Package content models the educational content items served by the
// semantic index: MEDs (materiales educativos digitales) and planeaciones.
package content

import "time"

// Type discriminates content categories in the index.
type Type string

const (
	TypeMED        Type = "med"
	TypePlaneacion Type = "planeacion"
)

// Item is one indexed content entry. The searchable text lives in Body;
// the remaining fields are display metadata.
type Item struct {
	ID          string            `json:"id"`
	Type        Type              `json:"content_type"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Body        string            `json:"content,omitempty"`
	URL         string            `json:"url,omitempty"`
	Tags        []string          `json:"tags,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at,omitzero"`
	UpdatedAt   time.Time         `json:"updated_at,omitzero"`
}

// EmbeddingText returns the text submitted to the embedding model for this
// item. Title and description carry most of the semantic signal; body is the
// long-form payload.
func (i Item) EmbeddingText() string {
	s := i.Title
	if i.Description != "" {
		s += "\n" + i.Description
	}
	if i.Body != "" {
		s += "\n" + i.Body
	}
	return s
}
