package app

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/bdobrica/kioku/internal/kioku/conversation"
	"github.com/bdobrica/kioku/internal/kioku/memory"
	"github.com/bdobrica/kioku/internal/kioku/store"
)

type countingMemorizer struct{ calls atomic.Int32 }

func (m *countingMemorizer) Memorize(context.Context, *memory.Conversation) (int, error) {
	m.calls.Add(1)
	return 0, nil
}

func TestMemorizeScheduler_FireReachesEveryActor(t *testing.T) {
	st, err := store.New(filepath.Join(t.TempDir(), "kioku.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	mem := &countingMemorizer{}
	ctx := context.Background()
	reg := conversation.NewRegistry(ctx, conversation.Deps{
		Store:     memory.NewSQLiteStore(st.DB(), nil),
		Memorizer: mem,
	})
	for _, id := range []string{"!a:x", "!b:x", "!c:x"} {
		if _, err := reg.Resolve(ctx, id); err != nil {
			t.Fatal(err)
		}
	}

	s, err := NewMemorizeScheduler(DefaultMemorizeSchedule, reg, nil)
	if err != nil {
		t.Fatalf("NewMemorizeScheduler: %v", err)
	}
	s.fire()
	reg.Wait()

	if got := mem.calls.Load(); got != 3 {
		t.Errorf("Memorize called %d times, want 3", got)
	}
}

func TestMemorizeScheduler_Schedules(t *testing.T) {
	for _, spec := range []string{"@daily", "@every 1h", "0 3 * * *"} {
		s, err := NewMemorizeScheduler(spec, nil, nil)
		if err != nil {
			t.Errorf("NewMemorizeScheduler(%q): %v", spec, err)
			continue
		}
		s.Start()
		s.Stop()
	}
	if _, err := NewMemorizeScheduler("every tuesday", nil, nil); err == nil {
		t.Error("expected an error for an invalid schedule")
	}
}
