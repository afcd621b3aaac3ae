package provider

import "context"

// Message represents a message in a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Provider is the contract for completion and embedding backends.
type Provider interface {
	// Complete sends a chat completion request and returns the text of the
	// first choice.
	Complete(ctx context.Context, messages []Message, temperature float64, maxTokens int) (string, error)

	// CreateEmbedding generates one vector per input text, in input order.
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}
