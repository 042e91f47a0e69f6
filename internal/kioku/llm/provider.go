// Package llm is the completion backend used by Kioku for replies,
// summaries, routing decisions and fact extraction.
//
// Callers never pick a model directly; they ask for a Tier and the provider
// maps it to a configured model. Implementations must be safe for concurrent
// use from multiple goroutines.
package llm

import (
	"context"
	"errors"
)

// ErrEmptyCompletion is returned when the backend answers without any
// choices or with blank content.
var ErrEmptyCompletion = errors.New("llm: empty completion")

// Tier selects the completion model class for a request.
type Tier string

const (
	// TierStandard is the default, cost-efficient model.
	TierStandard Tier = "standard"
	// TierAdvanced is the stronger model used when a user asks the agent to
	// "think hard".
	TierAdvanced Tier = "advanced"
)

// ParseTier maps a stored tier name back to a Tier. Unknown values fall back
// to TierStandard.
func ParseTier(s string) Tier {
	if Tier(s) == TierAdvanced {
		return TierAdvanced
	}
	return TierStandard
}

// Role of a chat turn sent to the backend.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one prior turn passed to the backend after the system prompt.
type Message struct {
	Role    Role
	Content string
}

// Request is the input to a single completion call.
type Request struct {
	Tier Tier
	// System is sent as the system message. May be empty.
	System   string
	Messages []Message
	// MaxTokens caps the completion length; zero lets the provider decide.
	MaxTokens int
	// Temperature is only sent when positive.
	Temperature float64
}

// Provider produces a single text completion.
type Provider interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context, req Request) (string, error)

// Complete calls f(ctx, req).
func (f ProviderFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}
