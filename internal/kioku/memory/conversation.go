package memory

import "time"

// ArchivalEntry is one standalone fact in a conversation's archival memory.
type ArchivalEntry struct {
	ID        int64
	Content   string
	CreatedAt time.Time
	Embedding []float32
}

// Conversation is the in-memory mirror of one conversation's three memory
// tiers. It is owned by a single actor goroutine and is not safe for
// concurrent use; all mutation goes through a Store.
type Conversation struct {
	ID string

	messages []*Message
	summary  string
	archive  []ArchivalEntry
	index    *FlatIndex
}

// NewConversation returns an empty conversation.
func NewConversation(id string) *Conversation {
	return &Conversation{ID: id, index: &FlatIndex{}}
}

// Window returns a copy of the live window, oldest first.
func (c *Conversation) Window() []*Message {
	out := make([]*Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len is the number of messages in the live window.
func (c *Conversation) Len() int {
	return len(c.messages)
}

// TokenCount is the token cost of the live window.
func (c *Conversation) TokenCount() int {
	return TokenCount(c.messages)
}

// Recent returns up to n of the newest window messages, oldest first.
func (c *Conversation) Recent(n int) []*Message {
	if n <= 0 || len(c.messages) == 0 {
		return nil
	}
	start := len(c.messages) - n
	if start < 0 {
		start = 0
	}
	out := make([]*Message, len(c.messages)-start)
	copy(out, c.messages[start:])
	return out
}

// ArchiveLen is the number of archival entries.
func (c *Conversation) ArchiveLen() int {
	return len(c.archive)
}
