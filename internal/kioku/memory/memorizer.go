package memory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bdobrica/kioku/internal/kioku/llm"
)

const memorizerPrompt = `You turn a conversation summary into long-term memories.
Write each memory as one short standalone fact on its own line, starting with "- ".
Name the person each fact is about. Keep only facts worth remembering for weeks: names, relationships, preferences, plans, dates.
Do not write anything else.

Example:
SUMMARY:
bob read an article about AI and now loves them. alex birthday, now 33, getting married in 2 months

MEMORIES:
- bob loves talking to AI
- alex is 33 years old
- alex is getting married in 2 months`

// Memorizer distils a conversation's active summary into archival facts.
type Memorizer struct {
	store    Store
	provider llm.Provider
	embedder Embedder
	logger   *slog.Logger
}

// NewMemorizer creates a Memorizer. If logger is nil, the default slog
// logger is used.
func NewMemorizer(store Store, provider llm.Provider, embedder Embedder, logger *slog.Logger) *Memorizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Memorizer{store: store, provider: provider, embedder: embedder, logger: logger}
}

// Memorize asks the backend for facts drawn from the active summary, embeds
// each one and appends it to archival memory. Facts already archived
// verbatim are skipped. It returns the number of facts stored.
func (m *Memorizer) Memorize(ctx context.Context, conv *Conversation) (int, error) {
	summary := m.store.Summary(conv)
	if strings.TrimSpace(summary) == "" {
		return 0, nil
	}

	out, err := m.provider.Complete(ctx, llm.Request{
		Tier:     llm.TierStandard,
		System:   memorizerPrompt,
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "SUMMARY:\n" + summary + "\n\nMEMORIES:"}},
	})
	if err != nil {
		return 0, fmt.Errorf("memorizer: %w", err)
	}

	known := make(map[string]bool, conv.ArchiveLen())
	for _, e := range conv.archive {
		known[e.Content] = true
	}

	stored := 0
	for _, fact := range ParseFacts(out) {
		if known[fact] {
			continue
		}
		vec, err := m.embedder.Embed(ctx, fact)
		if err != nil {
			m.logger.Warn("memorizer: embed fact", "conversation_id", conv.ID, "err", err)
			continue
		}
		if len(vec) == 0 {
			m.logger.Debug("memorizer: embedder disabled, fact dropped", "conversation_id", conv.ID)
			continue
		}
		if _, err := m.store.AppendArchival(ctx, conv, fact, vec); err != nil {
			return stored, fmt.Errorf("memorizer: %w", err)
		}
		known[fact] = true
		stored++
	}

	m.logger.Info("memorizer: archived facts", "conversation_id", conv.ID, "stored", stored)
	return stored, nil
}

// ParseFacts extracts "- " prefixed lines from model output.
func ParseFacts(out string) []string {
	var facts []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		fact, ok := strings.CutPrefix(line, "- ")
		if !ok {
			continue
		}
		if fact = strings.TrimSpace(fact); fact != "" {
			facts = append(facts, fact)
		}
	}
	return facts
}
