// Package llm defines the generative model port (interface).
package llm

import "context"

// Message is one entry in a chat-completion request.
type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// Request is a completion request against a named model.
type Request struct {
	Model     string
	Messages  []Message
	MaxTokens int
	// JSONOnly asks the model to return a single JSON object.
	JSONOnly bool
}

// Response is the model's completion with usage accounting.
type Response struct {
	Content   string
	Model     string
	TokensIn  int
	TokensOut int
}

// Client is the port interface for generative model calls.
type Client interface {
	Complete(ctx context.Context, req Request) (*Response, error)
	Embed(ctx context.Context, model, text string) ([]float64, error)
}
