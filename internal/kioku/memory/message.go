// Package memory implements Kioku's tiered conversation memory.
//
// Every conversation has three tiers:
//
//   - the live window: recent messages kept verbatim, bounded by a token
//     trigger budget;
//   - active memory: a rolling summary that absorbs messages evicted from the
//     window during compaction;
//   - archival memory: append-only standalone facts, each with an embedding,
//     searchable by nearest neighbour.
//
// The Store persists all three tiers to SQLite and mirrors them in the
// in-memory Conversation. Writes hit the database first; in-memory state is
// only swapped after a successful commit so readers never observe a partial
// write.
package memory

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bdobrica/kioku/internal/kioku/llm"
)

// SelfSender is the sender recorded for the agent's own replies.
const SelfSender = "assistant"

// CensoredPlaceholder replaces the content of a message that failed
// moderation.
const CensoredPlaceholder = "[message removed: content policy violation]"

// messageOverhead is the fixed per-message token cost for the role marker and
// separators a chat API adds around every turn.
const messageOverhead = 4

// Message is a single chat turn. Content and Sender never change after
// construction; the token count is computed once on first use.
type Message struct {
	Sender    string
	Content   string
	CreatedAt time.Time
	// Tier is the completion tier requested for the reply to this message.
	Tier llm.Tier
	// Addressed reports whether the agent was mentioned, named, or messaged
	// directly.
	Addressed bool

	tokensOnce sync.Once
	tokens     int
}

// NewMessage builds a Message with the standard tier.
func NewMessage(sender, content string, createdAt time.Time) *Message {
	return &Message{
		Sender:    sender,
		Content:   content,
		CreatedAt: createdAt,
		Tier:      llm.TierStandard,
	}
}

// Tokens returns the estimated token cost of the message including the
// per-message overhead.
func (m *Message) Tokens() int {
	m.tokensOnce.Do(func() {
		m.tokens = CountTokens(m.Content) + CountTokens(m.Sender) + messageOverhead
	})
	return m.tokens
}

// IsSelf reports whether the message was written by the agent.
func (m *Message) IsSelf() bool {
	return m.Sender == SelfSender
}

// String renders the message as a transcript line.
func (m *Message) String() string {
	return fmt.Sprintf("%s: %s", m.Sender, m.Content)
}

// TokenCount sums the token cost of msgs.
func TokenCount(msgs []*Message) int {
	total := 0
	for _, m := range msgs {
		total += m.Tokens()
	}
	return total
}

// Transcript renders msgs one per line in "sender: content" form.
func Transcript(msgs []*Message) string {
	lines := make([]string, len(msgs))
	for i, m := range msgs {
		lines[i] = m.String()
	}
	return strings.Join(lines, "\n")
}
