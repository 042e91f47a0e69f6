package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// SummaryMaxTokens bounds the active-memory summary. Longer summaries keep
// their newest part and get TruncatedPrefix.
const SummaryMaxTokens = 300

// ErrSummariseFailed wraps any summariser error surfaced by Compact. The
// conversation is left untouched when it is returned.
var ErrSummariseFailed = errors.New("memory: summarise failed")

// Compactor keeps a conversation's live window under a token budget by
// folding it into the active-memory summary.
type Compactor struct {
	store            Store
	summariser       Summariser
	maxSummaryTokens int
	logger           *slog.Logger
}

// NewCompactor creates a Compactor. If logger is nil, the default slog
// logger is used.
func NewCompactor(store Store, summariser Summariser, logger *slog.Logger) *Compactor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Compactor{
		store:            store,
		summariser:       summariser,
		maxSummaryTokens: SummaryMaxTokens,
		logger:           logger,
	}
}

// Compact summarises and trims the window while it holds more than one
// message and exceeds trigger tokens. Each pass:
//
//  1. folds the whole window into the summary, bounded by SummaryMaxTokens;
//  2. keeps the newest messages whose running total stays within trigger,
//     stopping at the first message that does not fit or once the total
//     passes retained (the newest message is always kept);
//  3. persists window and summary in one transaction, then swaps them in.
//
// It reports whether any pass ran. A window already under budget is left
// alone.
func (c *Compactor) Compact(ctx context.Context, conv *Conversation, trigger, retained int) (bool, error) {
	compacted := false
	for conv.Len() > 1 && conv.TokenCount() > trigger {
		before := conv.TokenCount()

		summary, err := c.summariser.Summarise(ctx, c.store.Summary(conv), conv.Window())
		if err != nil {
			return compacted, fmt.Errorf("%w: %s: %w", ErrSummariseFailed, conv.ID, err)
		}
		summary = KeepTail(summary, c.maxSummaryTokens)

		window := retainNewest(conv.Window(), trigger, retained)
		if err := c.store.ReplaceWindowAndSummary(ctx, conv, window, summary); err != nil {
			return compacted, fmt.Errorf("memory: compact %s: %w", conv.ID, err)
		}
		compacted = true

		c.logger.Debug("memory: compacted window",
			"conversation_id", conv.ID,
			"tokens_before", before,
			"tokens_after", conv.TokenCount(),
			"messages", conv.Len(),
			"summary_tokens", CountTokens(summary),
		)
	}
	return compacted, nil
}

// retainNewest walks msgs from newest to oldest and returns the contiguous
// suffix that fits the budgets, oldest first.
func retainNewest(msgs []*Message, trigger, retained int) []*Message {
	total := 0
	start := len(msgs)
	for i := len(msgs) - 1; i >= 0; i-- {
		t := msgs[i].Tokens()
		if start < len(msgs) && total+t > trigger {
			break
		}
		total += t
		start = i
		if total > retained {
			break
		}
	}
	out := make([]*Message, len(msgs)-start)
	copy(out, msgs[start:])
	return out
}
