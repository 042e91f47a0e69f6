package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/bdobrica/kioku/internal/kioku/llm"
)

// Summariser folds window messages into the current active-memory summary.
type Summariser interface {
	// Summarise returns a new summary that extends current with msgs.
	Summarise(ctx context.Context, current string, msgs []*Message) (string, error)
}

// ConcatSummariser appends the transcript of msgs to the current summary.
// It loses nothing and needs no backend, which makes it the fallback when no
// completion provider is configured.
type ConcatSummariser struct{}

// Summarise returns current followed by the transcript of msgs.
func (ConcatSummariser) Summarise(_ context.Context, current string, msgs []*Message) (string, error) {
	t := Transcript(msgs)
	switch {
	case current == "":
		return t, nil
	case t == "":
		return current, nil
	default:
		return current + "\n" + t, nil
	}
}

var _ Summariser = ConcatSummariser{}

const summariserMaxTokens = 200

const summariserPrompt = `Progressively summarize and compress the lines of conversation provided, adding onto the previous compressed summary and returning a new summary.
Compression tips:
* Remove exact details of conversations. Instead of "alex asked how I was doing, I said well, we continued the conversation", just say "alex greeted, currently discussing apples".
* Make it less conversational. You are the only reader, so as long as you can understand it, it's fine.
* Forget things. Keep only new facts about people and the most recent active conversations; do not let the summary grow out of control.

Example:
CURRENT SUMMARY:
bob likes golf, discussed house pool project - struggling to find a contractor.

NEW LINES:
bob: I used to enjoy golf, but I don't really have time anymore with the kids
assistant: What are your kids names?
bob: Alice and Bob! Alice is 5 and Bob is 3

NEW SUMMARY:
bob, 2 kids, Alice aged 5, Bob aged 3, liked golf, less time for golf since kids, discussed house pool project - struggling to find a contractor.`

// LLMSummariser implements Summariser with a completion backend using a
// progressive-summary prompt.
type LLMSummariser struct {
	provider llm.Provider
}

// NewLLMSummariser creates a Summariser backed by provider.
func NewLLMSummariser(provider llm.Provider) *LLMSummariser {
	return &LLMSummariser{provider: provider}
}

// Summarise asks the backend for a new summary of current plus msgs.
func (s *LLMSummariser) Summarise(ctx context.Context, current string, msgs []*Message) (string, error) {
	if len(msgs) == 0 {
		return current, nil
	}
	user := fmt.Sprintf("CURRENT SUMMARY:\n%s\n\nNEW LINES:\n%s\n\nNEW SUMMARY:", current, Transcript(msgs))
	out, err := s.provider.Complete(ctx, llm.Request{
		Tier:      llm.TierStandard,
		System:    summariserPrompt,
		Messages:  []llm.Message{{Role: llm.RoleUser, Content: user}},
		MaxTokens: summariserMaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("summariser llm: %w", err)
	}
	return strings.TrimSpace(out), nil
}

var _ Summariser = (*LLMSummariser)(nil)
