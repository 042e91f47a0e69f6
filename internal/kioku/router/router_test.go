package router

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bdobrica/kioku/internal/kioku/llm"
	"github.com/bdobrica/kioku/internal/kioku/memory"
)

func TestParse_WellFormed(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   []Request
	}{
		{
			name:   "no tools needed",
			output: "Thought: nothing needed\nTools:\nready[]",
			want:   []Request{},
		},
		{
			name: "all kinds with quotes",
			output: "Thought: x\nTools:\nrecent-turns[]\nsummarized-memory[]\n" +
				"long-term-memory[\"bob's dogs\"]\nweb-search['weather in Oslo']\nready[]\ntrailing text",
			want: []Request{
				{Kind: KindRecentTurns},
				{Kind: KindSummarizedMemory},
				{Kind: KindLongTermMemory, Query: "bob's dogs"},
				{Kind: KindWebSearch, Query: "weather in Oslo"},
			},
		},
		{
			name:   "duplicates and order preserved",
			output: "Tools:\n  long-term-memory[\"b\"]\n\nrecent-turns[]\nlong-term-memory[\"a\"]\nrecent-turns[]\nready[]",
			want: []Request{
				{Kind: KindLongTermMemory, Query: "b"},
				{Kind: KindRecentTurns},
				{Kind: KindLongTermMemory, Query: "a"},
				{Kind: KindRecentTurns},
			},
		},
		{
			name:   "last tools section wins",
			output: "Tools:\nrecent-turns[]\nready[]\nOn second thought:\nTools:\nsummarized-memory[]\nready[]",
			want:   []Request{{Kind: KindSummarizedMemory}},
		},
		{
			name:   "parameter on parameterless tool dropped",
			output: "Tools:\nrecent-turns[\"x\"]\nready[]",
			want:   []Request{{Kind: KindRecentTurns}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.output)
			if got == nil {
				t.Fatal("Parse returned nil for well-formed output")
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Parse = %+v, want %+v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("req[%d] = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestParse_MalformedYieldsEmpty(t *testing.T) {
	tests := map[string]string{
		"empty":              "",
		"no tools header":    "recent-turns[]\nready[]",
		"unknown tool":       "Tools:\nrecent-turns[]\ncalculator[\"1+1\"]\nready[]",
		"missing brackets":   "Tools:\nrecent-turns\nready[]",
		"unclosed bracket":   "Tools:\nlong-term-memory[\"dogs\"\nready[]",
		"missing terminator": "Tools:\nrecent-turns[]\nsummarized-memory[]",
		"nested brackets":    "Tools:\nlong-term-memory[[x]]\nready[]",
		"prose in section":   "Tools:\nI would use recent turns\nready[]",
		"old vocabulary":     "Tools:\nShortTermMemory[]\nAnswer[]",
		"garbage":            "\x00\xff[[]]Tools:[",
	}
	for name, output := range tests {
		t.Run(name, func(t *testing.T) {
			if got := Parse(output); len(got) != 0 {
				t.Errorf("Parse(%q) = %+v, want empty", output, got)
			}
		})
	}
}

func recentTurns(lines ...string) []*memory.Message {
	var out []*memory.Message
	for _, l := range lines {
		out = append(out, memory.NewMessage("bob", l, time.Now()))
	}
	return out
}

func TestRoute_DogsNamesSelectsLongTermMemory(t *testing.T) {
	var got llm.Request
	provider := llm.ProviderFunc(func(_ context.Context, req llm.Request) (string, error) {
		got = req
		return "Thought: bob asks about his dogs\nTools:\nrecent-turns[]\nlong-term-memory[\"bob's dogs names\"]\nready[]", nil
	})
	r := New(provider, Options{})

	reqs := r.Route(context.Background(), recentTurns("Do you remember my dogs' names?"), "kioku")

	var found bool
	for _, req := range reqs {
		if req.Kind == KindLongTermMemory && req.Query != "" {
			found = true
		}
	}
	if !found {
		t.Errorf("Route = %+v, want a long-term-memory request with a query", reqs)
	}
	if !strings.Contains(got.Messages[0].Content, "Do you remember my dogs' names?") {
		t.Errorf("message not sent to classifier: %q", got.Messages[0].Content)
	}
	if !strings.Contains(got.System, "kioku") {
		t.Error("agent name missing from prompt")
	}
}

func TestRoute_EmptyQueryFilledFromMessage(t *testing.T) {
	provider := llm.ProviderFunc(func(context.Context, llm.Request) (string, error) {
		return "Tools:\nlong-term-memory[]\nready[]", nil
	})
	reqs := New(provider, Options{}).Route(context.Background(),
		recentTurns("hi", "Do you remember my dogs' names?"), "kioku")
	if len(reqs) != 1 || reqs[0].Query != "Do you remember my dogs' names?" {
		t.Errorf("Route = %+v", reqs)
	}
}

func TestRoute_WebSearchOnlyWhenEnabled(t *testing.T) {
	var system string
	provider := llm.ProviderFunc(func(_ context.Context, req llm.Request) (string, error) {
		system = req.System
		return "Tools:\nweb-search[\"news\"]\nrecent-turns[]\nready[]", nil
	})

	reqs := New(provider, Options{}).Route(context.Background(), recentTurns("what happened today?"), "kioku")
	if strings.Contains(system, "web-search") {
		t.Error("web-search advertised without a search client")
	}
	if len(reqs) != 1 || reqs[0].Kind != KindRecentTurns {
		t.Errorf("disabled Route = %+v", reqs)
	}

	reqs = New(provider, Options{WebSearch: true}).Route(context.Background(), recentTurns("what happened today?"), "kioku")
	if !strings.Contains(system, "web-search") {
		t.Error("web-search not advertised")
	}
	if len(reqs) != 2 || reqs[0].Kind != KindWebSearch || reqs[0].Query != "news" {
		t.Errorf("enabled Route = %+v", reqs)
	}
}

func TestRoute_FailOpen(t *testing.T) {
	tests := map[string]llm.Provider{
		"backend error": llm.ProviderFunc(func(context.Context, llm.Request) (string, error) {
			return "", errors.New("timeout")
		}),
		"malformed": llm.ProviderFunc(func(context.Context, llm.Request) (string, error) {
			return "I think you need memories", nil
		}),
	}
	for name, p := range tests {
		t.Run(name, func(t *testing.T) {
			if reqs := New(p, Options{}).Route(context.Background(), recentTurns("hi"), "kioku"); len(reqs) != 0 {
				t.Errorf("Route = %+v, want empty", reqs)
			}
		})
	}

	called := false
	p := llm.ProviderFunc(func(context.Context, llm.Request) (string, error) {
		called = true
		return "", nil
	})
	if reqs := New(p, Options{}).Route(context.Background(), nil, "kioku"); reqs != nil || called {
		t.Error("Route with no turns should not call the backend")
	}
}

func TestRoute_OnlyRecentTurnsShown(t *testing.T) {
	var content string
	p := llm.ProviderFunc(func(_ context.Context, req llm.Request) (string, error) {
		content = req.Messages[0].Content
		return "Tools:\nready[]", nil
	})
	turns := recentTurns("t0", "t1", "t2", "t3", "t4", "t5", "t6", "t7")
	New(p, Options{}).Route(context.Background(), turns, "kioku")
	if strings.Contains(content, "t1") || !strings.Contains(content, "t2") || !strings.Contains(content, "t7") {
		t.Errorf("classifier saw %q", content)
	}
}
