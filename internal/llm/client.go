// Package llm defines the reasoning-service collaborator used by the
// dreaming pipeline. Timeout and retry policy live behind the Client
// implementation, not in the callers.
package llm

import "context"

// Message is one turn of a reasoning-service conversation
type Message struct {
	Role    string `json:"role"` // system, user, assistant
	Content string `json:"content"`
}

// Client is a synchronous request/response reasoning capability.
// The dreaming pipeline's wire protocols (pattern discovery, categorization,
// strategy synthesis) all ride on Send.
type Client interface {
	Send(ctx context.Context, messages []Message) (string, error)
}

// UserMessage builds a single-turn conversation from a prompt
func UserMessage(prompt string) []Message {
	return []Message{{Role: "user", Content: prompt}}
}
