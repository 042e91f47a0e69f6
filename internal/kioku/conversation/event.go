// Package conversation serialises each conversation's events through a
// per-conversation actor.
//
// Every conversation owns a FIFO mailbox. Enqueue never blocks: it appends
// the event and, when the actor is idle, starts a single drain goroutine.
// Events of one conversation are therefore handled strictly one at a time
// and in arrival order, while different conversations proceed in parallel.
package conversation

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/bdobrica/kioku/internal/kioku/memory"
	"github.com/bdobrica/kioku/internal/kioku/router"
)

// EventKind classifies a mailbox event.
type EventKind int

const (
	// EventInbound is a message written by someone else.
	EventInbound EventKind = iota
	// EventSelf is a reply the agent just sent, recorded into memory.
	EventSelf
	// EventMemorize asks the actor to distil its summary into archival facts.
	EventMemorize
)

func (k EventKind) String() string {
	switch k {
	case EventInbound:
		return "inbound"
	case EventSelf:
		return "self"
	case EventMemorize:
		return "memorize"
	}
	return "unknown"
}

// Event is one unit of work for an actor.
type Event struct {
	ID      string
	TraceID string
	Kind    EventKind
	Sender  string
	Content string
	At      time.Time

	// Addressed is set when the agent was mentioned, named, or written to
	// in a direct room.
	Addressed bool
	// Direct is set for one-to-one rooms.
	Direct bool
	// Members is the room member count, used in the reply prompt.
	Members int
}

// NewInbound builds an inbound event stamped with a fresh ID.
func NewInbound(sender, content string, at time.Time, addressed bool) Event {
	return Event{
		ID:        uuid.NewString(),
		Kind:      EventInbound,
		Sender:    sender,
		Content:   content,
		At:        at,
		Addressed: addressed,
	}
}

// Platform is the chat platform as seen by an actor.
type Platform interface {
	Send(ctx context.Context, roomID, text string) error
	SetTyping(ctx context.Context, roomID string, typing bool) error
}

// Router selects the memory tiers needed for a reply.
type Router interface {
	Route(ctx context.Context, recent []*memory.Message, agentName string) []router.Request
}

// Memorizer distils active memory into archival facts.
type Memorizer interface {
	Memorize(ctx context.Context, conv *memory.Conversation) (int, error)
}
