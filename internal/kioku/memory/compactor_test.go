package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

type countingSummariser struct {
	inner Summariser
	calls int
	err   error
}

func (s *countingSummariser) Summarise(ctx context.Context, current string, msgs []*Message) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.inner.Summarise(ctx, current, msgs)
}

// sixtyTokenMessage returns a message costing exactly 60 tokens:
// 55 content + 1 sender + 4 overhead.
func sixtyTokenMessage(i int) *Message {
	content := fmt.Sprintf("m%02d ", i) + strings.Repeat("x", 220-4)
	return NewMessage("bob", content, time.Now())
}

func TestCompact_TenMessageScenario(t *testing.T) {
	s, db := setupTestStore(t)
	ctx := context.Background()
	conv := NewConversation("!scenario:x")
	c := NewCompactor(s, ConcatSummariser{}, nil)

	if got := sixtyTokenMessage(0).Tokens(); got != 60 {
		t.Fatalf("fixture message costs %d tokens, want 60", got)
	}

	for i := 0; i < 10; i++ {
		m := sixtyTokenMessage(i)
		m.Addressed = true
		if err := s.Append(ctx, conv, m); err != nil {
			t.Fatal(err)
		}
		if _, err := c.Compact(ctx, conv, 400, 200); err != nil {
			t.Fatalf("Compact after message %d: %v", i, err)
		}
	}

	if got := conv.TokenCount(); got > 400 {
		t.Errorf("window tokens = %d, want <= 400", got)
	}
	if s.Summary(conv) == "" {
		t.Error("active summary is empty")
	}
	persisted := countRows(t, db, "messages", conv.ID)
	if persisted != conv.Len() {
		t.Errorf("persisted %d messages, live window has %d", persisted, conv.Len())
	}
	if persisted == 10 {
		t.Error("no messages were compacted away")
	}
}

func TestCompact_BoundHolds(t *testing.T) {
	tests := []struct {
		name     string
		sizes    []int // content length in characters
		trigger  int
		retained int
	}{
		{"uniform", []int{100, 100, 100, 100, 100, 100, 100, 100}, 120, 60},
		{"growing", []int{10, 40, 80, 160, 320, 640}, 200, 100},
		{"single huge newest", []int{20, 20, 4000}, 100, 50},
		{"retained above trigger", []int{200, 200, 200, 200}, 150, 1000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := setupTestStore(t)
			ctx := context.Background()
			conv := NewConversation("!bound:x")
			for i, n := range tt.sizes {
				s.Append(ctx, conv, NewMessage(fmt.Sprintf("u%d", i), strings.Repeat("y", n), time.Now()))
			}
			c := NewCompactor(s, ConcatSummariser{}, nil)
			if _, err := c.Compact(ctx, conv, tt.trigger, tt.retained); err != nil {
				t.Fatal(err)
			}
			if conv.TokenCount() > tt.trigger && conv.Len() != 1 {
				t.Errorf("window = %d tokens in %d messages, trigger %d", conv.TokenCount(), conv.Len(), tt.trigger)
			}
			if conv.Len() == 0 {
				t.Error("window emptied")
			}
			w := conv.Window()
			if last := w[len(w)-1]; last.Sender != fmt.Sprintf("u%d", len(tt.sizes)-1) {
				t.Errorf("newest message not kept, last sender = %q", last.Sender)
			}
		})
	}
}

func TestCompact_UnderBudgetIsNoop(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()
	conv := NewConversation("!noop:x")
	s.Append(ctx, conv, NewMessage("u", "short", time.Now()))
	s.Append(ctx, conv, NewMessage("u", "also short", time.Now()))

	sum := &countingSummariser{inner: ConcatSummariser{}}
	c := NewCompactor(s, sum, nil)
	for i := 0; i < 2; i++ {
		done, err := c.Compact(ctx, conv, 300, 200)
		if err != nil || done {
			t.Fatalf("Compact = %v, %v; want false, nil", done, err)
		}
	}
	if sum.calls != 0 || conv.Len() != 2 {
		t.Errorf("summariser calls = %d, window = %d", sum.calls, conv.Len())
	}

	// A second pass right after a real compaction is also a no-op.
	for i := 0; i < 10; i++ {
		s.Append(ctx, conv, sixtyTokenMessage(i))
	}
	if done, _ := c.Compact(ctx, conv, 300, 200); !done {
		t.Fatal("expected compaction over budget")
	}
	calls := sum.calls
	if done, _ := c.Compact(ctx, conv, 300, 200); done || sum.calls != calls {
		t.Error("second Compact was not idempotent")
	}
}

func TestCompact_NoContentLossWithConcatSummariser(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()
	conv := NewConversation("!lossless:x")
	c := NewCompactor(s, ConcatSummariser{}, nil)
	c.maxSummaryTokens = 1 << 20

	var all []string
	for i := 0; i < 12; i++ {
		m := sixtyTokenMessage(i)
		all = append(all, m.Content)
		s.Append(ctx, conv, m)
		if _, err := c.Compact(ctx, conv, 250, 120); err != nil {
			t.Fatal(err)
		}
	}

	summary := s.Summary(conv)
	window := Transcript(conv.Window())
	for _, content := range all {
		if !strings.Contains(summary, content) && !strings.Contains(window, content) {
			t.Errorf("content %.8q lost", content)
		}
	}
}

func TestCompact_SummaryIsBounded(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()
	conv := NewConversation("!bounded:x")
	c := NewCompactor(s, ConcatSummariser{}, nil)

	for i := 0; i < 40; i++ {
		s.Append(ctx, conv, sixtyTokenMessage(i))
		if _, err := c.Compact(ctx, conv, 300, 200); err != nil {
			t.Fatal(err)
		}
	}

	summary := s.Summary(conv)
	body, ok := strings.CutPrefix(summary, TruncatedPrefix)
	if !ok {
		t.Fatalf("summary lacks truncation marker: %.40q", summary)
	}
	if got := CountTokens(body); got > SummaryMaxTokens {
		t.Errorf("summary body = %d tokens, want <= %d", got, SummaryMaxTokens)
	}
}

func TestCompact_SummariserFailureMutatesNothing(t *testing.T) {
	s, db := setupTestStore(t)
	ctx := context.Background()
	conv := NewConversation("!fail:x")
	for i := 0; i < 8; i++ {
		s.Append(ctx, conv, sixtyTokenMessage(i))
	}
	s.SetSummary(ctx, conv, "before")

	boom := errors.New("backend down")
	c := NewCompactor(s, &countingSummariser{err: boom}, nil)
	done, err := c.Compact(ctx, conv, 300, 200)
	if !errors.Is(err, ErrSummariseFailed) || !errors.Is(err, boom) {
		t.Fatalf("err = %v, want ErrSummariseFailed wrapping cause", err)
	}
	if done {
		t.Error("Compact reported progress on failure")
	}
	if conv.Len() != 8 || s.Summary(conv) != "before" || countRows(t, db, "messages", conv.ID) != 8 {
		t.Errorf("state changed: len=%d summary=%q", conv.Len(), s.Summary(conv))
	}
}

func TestRetainNewest(t *testing.T) {
	msgs := []*Message{sixtyTokenMessage(0), sixtyTokenMessage(1), sixtyTokenMessage(2), sixtyTokenMessage(3)}
	tests := []struct {
		trigger, retained, want int
	}{
		{400, 200, 4}, // 240 > 200 stops after the fourth
		{400, 100, 2}, // 120 > 100
		{130, 1000, 2},
		{10, 10, 1}, // newest always kept
	}
	for _, tt := range tests {
		got := retainNewest(msgs, tt.trigger, tt.retained)
		if len(got) != tt.want {
			t.Errorf("retainNewest(trigger=%d, retained=%d) kept %d, want %d", tt.trigger, tt.retained, len(got), tt.want)
			continue
		}
		if got[len(got)-1] != msgs[len(msgs)-1] {
			t.Error("newest message not last")
		}
	}
}
