package conversation

import (
	"context"
	"fmt"
	"time"

	"github.com/bdobrica/kioku/common/logging"
	"github.com/bdobrica/kioku/common/retry"
	"github.com/bdobrica/kioku/internal/kioku/llm"
	"github.com/bdobrica/kioku/internal/kioku/memory"
	"github.com/bdobrica/kioku/internal/kioku/router"
	"github.com/bdobrica/kioku/internal/kioku/search"
)

const (
	defaultTemperature = 0.7
	webResults         = 3
)

// reply generates and sends an answer to msg, then records it as a self
// event so it flows through the same mailbox as everything else.
func (a *Actor) reply(ctx context.Context, evt Event, msg *memory.Message) error {
	log := logging.WithTrace(ctx, a.deps.Logger).With("conversation_id", a.id)

	stopTyping := a.startTyping(ctx)
	defer stopTyping()

	p := a.deps.Persona
	var requests []router.Request
	if a.deps.Router != nil {
		requests = a.deps.Router.Route(ctx, a.conv.Window(), p.DisplayName)
	}

	rc := replyContext{direct: evt.Direct, members: evt.Members}
	messages := []llm.Message{toLLM(msg)}
	for _, r := range requests {
		switch r.Kind {
		case router.KindRecentTurns:
			messages = windowToLLM(a.conv.Window())
		case router.KindSummarizedMemory:
			rc.summary = a.deps.Store.Summary(a.conv)
		case router.KindLongTermMemory:
			rc.recalled = append(rc.recalled, memory.Recall(ctx, a.deps.Store, a.conv, a.deps.Embedder, r.Query, a.deps.RecallK)...)
		case router.KindWebSearch:
			if a.deps.Searcher != nil {
				rc.webResult = search.Lookup(ctx, a.deps.Searcher, a.deps.Extractor, r.Query, webResults)
			}
		}
	}
	log.Debug("conversation: reply context gathered",
		"tiers", len(requests), "messages", len(messages), "recalled", len(rc.recalled))

	tier := msg.Tier
	if tier == "" {
		tier = llm.TierStandard
	}
	out, err := a.deps.Provider.Complete(ctx, llm.Request{
		Tier:        tier,
		System:      buildSystemPrompt(p, rc),
		Messages:    messages,
		MaxTokens:   p.ReplyMaxTokens,
		Temperature: p.TemperatureOr(defaultTemperature),
	})
	if err != nil {
		return fmt.Errorf("complete reply: %w", err)
	}

	text := cleanReply(out, p)
	if isPass(text) {
		log.Info("conversation: staying silent")
		return nil
	}

	if err := retry.Do(ctx, retry.DefaultConfig, func() error {
		return a.deps.Platform.Send(ctx, a.id, text)
	}); err != nil {
		return fmt.Errorf("send reply: %w", err)
	}
	log.Info("conversation: replied", "tier", string(tier), "chars", len(text))

	a.Enqueue(Event{
		ID:      evt.ID + "-reply",
		TraceID: evt.TraceID,
		Kind:    EventSelf,
		Sender:  memory.SelfSender,
		Content: text,
		At:      time.Now(),
	})
	return nil
}

// send delivers a notice, logging rather than returning failures.
func (a *Actor) send(ctx context.Context, text string) {
	if a.deps.Platform == nil {
		return
	}
	if err := retry.Do(ctx, retry.DefaultConfig, func() error {
		return a.deps.Platform.Send(ctx, a.id, text)
	}); err != nil {
		logging.WithTrace(ctx, a.deps.Logger).Warn("conversation: send notice failed",
			"conversation_id", a.id, "err", err)
	}
}

// startTyping shows the typing indicator until the returned func is called.
// The returned func does not wait for the indicator to be cleared.
func (a *Actor) startTyping(ctx context.Context) func() {
	if a.deps.Platform == nil {
		return func() {}
	}
	tctx, cancel := context.WithCancel(ctx)
	go func() {
		_ = a.deps.Platform.SetTyping(tctx, a.id, true)
		ticker := time.NewTicker(a.deps.TypingRefresh)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				_ = a.deps.Platform.SetTyping(tctx, a.id, true)
			case <-tctx.Done():
				offCtx, done := context.WithTimeout(context.WithoutCancel(tctx), 5*time.Second)
				_ = a.deps.Platform.SetTyping(offCtx, a.id, false)
				done()
				return
			}
		}
	}()
	return cancel
}

func toLLM(m *memory.Message) llm.Message {
	if m.IsSelf() {
		return llm.Message{Role: llm.RoleAssistant, Content: m.Content}
	}
	return llm.Message{Role: llm.RoleUser, Content: m.Sender + ": " + m.Content}
}

func windowToLLM(msgs []*memory.Message) []llm.Message {
	out := make([]llm.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toLLM(m))
	}
	return out
}
