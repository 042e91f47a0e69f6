package conversation

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/bdobrica/kioku/common/logging"
	"github.com/bdobrica/kioku/common/trace"
	"github.com/bdobrica/kioku/internal/kioku/config"
	"github.com/bdobrica/kioku/internal/kioku/llm"
	"github.com/bdobrica/kioku/internal/kioku/memory"
	"github.com/bdobrica/kioku/internal/kioku/moderation"
)

const (
	// PausedNotice answers addressed messages while the agent is paused.
	PausedNotice = "I'm paused right now and not keeping track of this room."
	// RateLimitNotice answers senders over their reply quota.
	RateLimitNotice = "⏳ You're sending me messages faster than I can keep up. Please try again in a moment."
)

// Actor owns one conversation and processes its events serially.
type Actor struct {
	id   string
	conv *memory.Conversation
	deps *Deps
	ctx  context.Context

	mu         sync.Mutex
	idle       *sync.Cond
	mailbox    []Event
	processing bool
}

func newActor(ctx context.Context, conv *memory.Conversation, deps *Deps) *Actor {
	a := &Actor{id: conv.ID, conv: conv, deps: deps, ctx: ctx}
	a.idle = sync.NewCond(&a.mu)
	return a
}

// ID is the conversation (room) ID.
func (a *Actor) ID() string { return a.id }

// Conversation returns the actor's conversation. Only safe to read while
// the actor is idle.
func (a *Actor) Conversation() *memory.Conversation { return a.conv }

// Enqueue adds evt to the mailbox and starts a drain when none is running.
// It never blocks on event processing.
func (a *Actor) Enqueue(evt Event) {
	if evt.TraceID == "" {
		evt.TraceID = trace.GenerateID()
	}
	if evt.At.IsZero() {
		evt.At = time.Now()
	}

	a.mu.Lock()
	a.mailbox = append(a.mailbox, evt)
	if a.processing {
		a.mu.Unlock()
		return
	}
	a.processing = true
	a.mu.Unlock()

	go a.drain()
}

// Wait blocks until the mailbox is empty and no event is being processed.
func (a *Actor) Wait() {
	a.mu.Lock()
	for a.processing || len(a.mailbox) > 0 {
		a.idle.Wait()
	}
	a.mu.Unlock()
}

// Pending is the number of queued events, excluding the one in progress.
func (a *Actor) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.mailbox)
}

func (a *Actor) drain() {
	for {
		a.mu.Lock()
		if len(a.mailbox) == 0 {
			a.processing = false
			a.idle.Broadcast()
			a.mu.Unlock()
			return
		}
		evt := a.mailbox[0]
		a.mailbox[0] = Event{}
		a.mailbox = a.mailbox[1:]
		a.mu.Unlock()

		a.process(evt)
	}
}

// process handles one event. Errors and panics are logged with the event's
// trace ID and the event is dropped.
func (a *Actor) process(evt Event) {
	ctx := trace.WithTraceID(a.ctx, evt.TraceID)
	log := logging.WithTrace(ctx, a.deps.Logger).With(
		"conversation_id", a.id,
		"event_id", evt.ID,
		"kind", evt.Kind.String(),
	)

	defer func() {
		if r := recover(); r != nil {
			log.Error("conversation: event panicked", "panic", r, "stack", string(debug.Stack()))
		}
	}()

	var err error
	switch evt.Kind {
	case EventInbound:
		err = a.handleInbound(ctx, evt)
	case EventSelf:
		err = a.handleSelf(ctx, evt)
	case EventMemorize:
		err = a.handleMemorize(ctx)
	default:
		err = fmt.Errorf("unknown event kind %d", evt.Kind)
	}
	if err != nil {
		log.Error("conversation: event dropped", "err", err)
	}
}

func (a *Actor) handleInbound(ctx context.Context, evt Event) error {
	log := logging.WithTrace(ctx, a.deps.Logger).With("conversation_id", a.id)

	if evt.Addressed && a.isAdmin(evt.Sender) {
		if handled, err := a.adminCommand(ctx, evt.Content); handled {
			return err
		}
	}
	if a.paused(ctx) {
		if evt.Addressed {
			a.send(ctx, PausedNotice)
		}
		return nil
	}

	content, addressed := evt.Content, evt.Addressed
	violates, err := a.deps.Moderator.Violates(ctx, content)
	if err != nil {
		log.Warn("conversation: moderation unavailable", "err", err)
	}
	if violates {
		log.Info("conversation: message censored", "sender", evt.Sender, "addressed", addressed)
		content = memory.CensoredPlaceholder
		if addressed {
			a.send(ctx, moderation.PolicyNotice)
		}
		addressed = false
	}

	msg := memory.NewMessage(evt.Sender, content, evt.At)
	msg.Addressed = addressed
	if addressed && wantsEscalation(content) {
		msg.Tier = llm.TierAdvanced
	}
	if err := a.deps.Store.Append(ctx, a.conv, msg); err != nil {
		return fmt.Errorf("append inbound: %w", err)
	}

	b := a.deps.Budgets
	if !addressed {
		a.compact(ctx, b.BackgroundTrigger)
		return nil
	}
	a.compact(ctx, b.ReplyTrigger)

	if a.deps.Limiter != nil && !a.deps.Limiter.Allow(evt.Sender) {
		log.Warn("conversation: sender rate limited", "sender", evt.Sender)
		a.send(ctx, RateLimitNotice)
		return nil
	}
	return a.reply(ctx, evt, msg)
}

func (a *Actor) handleSelf(ctx context.Context, evt Event) error {
	msg := memory.NewMessage(memory.SelfSender, memory.KeepHead(evt.Content, SelfMaxTokens), evt.At)
	if err := a.deps.Store.Append(ctx, a.conv, msg); err != nil {
		return fmt.Errorf("append self: %w", err)
	}
	a.compact(ctx, a.deps.Budgets.ReplyTrigger)
	return nil
}

func (a *Actor) handleMemorize(ctx context.Context) error {
	if a.deps.Memorizer == nil {
		return nil
	}
	if _, err := a.deps.Memorizer.Memorize(ctx, a.conv); err != nil {
		return fmt.Errorf("memorize: %w", err)
	}
	return nil
}

// compact runs the compactor and logs failures; the message that triggered
// it is already stored, so a failed compaction only delays trimming.
func (a *Actor) compact(ctx context.Context, trigger int) {
	if a.deps.Compactor == nil {
		return
	}
	if _, err := a.deps.Compactor.Compact(ctx, a.conv, trigger, a.deps.Budgets.Retained); err != nil {
		logging.WithTrace(ctx, a.deps.Logger).Warn("conversation: compaction failed",
			"conversation_id", a.id, "err", err)
	}
}

func (a *Actor) paused(ctx context.Context) bool {
	if a.deps.Config == nil {
		return false
	}
	p, err := config.Paused(ctx, a.deps.Config)
	if err != nil {
		logging.WithTrace(ctx, a.deps.Logger).Warn("conversation: read pause state", "err", err)
		return false
	}
	return p
}

func (a *Actor) isAdmin(sender string) bool {
	for _, admin := range a.deps.Admins {
		if admin == sender {
			return true
		}
	}
	return false
}

// adminCommand handles "pause" and "unpause" sent by an admin. It reports
// whether content was a command.
func (a *Actor) adminCommand(ctx context.Context, content string) (bool, error) {
	cmd := parseAdminCommand(content)
	if cmd == "" || a.deps.Config == nil {
		return false, nil
	}
	if err := config.SetPaused(ctx, a.deps.Config, cmd == "pause"); err != nil {
		return true, fmt.Errorf("admin %s: %w", cmd, err)
	}
	if cmd == "pause" {
		a.send(ctx, "Paused. I'll stop listening until an admin says unpause.")
	} else {
		a.send(ctx, "Unpaused. I'm listening again.")
	}
	logging.WithTrace(ctx, a.deps.Logger).Info("conversation: admin command", "command", cmd, "conversation_id", a.id)
	return true, nil
}

// parseAdminCommand accepts "pause" or "unpause" as the last word of a short
// message such as "kioku: pause".
func parseAdminCommand(content string) string {
	fields := strings.Fields(strings.ToLower(content))
	if len(fields) == 0 || len(fields) > 2 {
		return ""
	}
	switch last := strings.Trim(fields[len(fields)-1], "!.?"); last {
	case "pause", "unpause":
		return last
	}
	return ""
}

// wantsEscalation reports whether the sender asked for the advanced tier.
func wantsEscalation(content string) bool {
	return strings.Contains(strings.ToLower(content), "think hard")
}
