// Package router decides which memory tiers a reply needs.
//
// A single classification call asks the completion backend to pick tools
// from a fixed vocabulary. The model output is treated as untrusted input:
// anything that does not parse cleanly is discarded and the reply proceeds
// without extra context.
package router

import (
	"context"
	"log/slog"

	"github.com/bdobrica/kioku/internal/kioku/llm"
	"github.com/bdobrica/kioku/internal/kioku/memory"
)

// Kind is a memory tier a reply may need.
type Kind string

const (
	KindRecentTurns      Kind = "recent-turns"
	KindSummarizedMemory Kind = "summarized-memory"
	KindLongTermMemory   Kind = "long-term-memory"
	KindWebSearch        Kind = "web-search"
)

func (k Kind) valid() bool {
	switch k {
	case KindRecentTurns, KindSummarizedMemory, KindLongTermMemory, KindWebSearch:
		return true
	}
	return false
}

func (k Kind) takesQuery() bool {
	return k == KindLongTermMemory || k == KindWebSearch
}

// Request is one tier selected by the router. Query is set for
// long-term-memory and web-search.
type Request struct {
	Kind  Kind
	Query string
}

// recentForPrompt caps how many window messages are shown to the classifier.
const recentForPrompt = 6

const routeMaxTokens = 200

// Options configures a Router.
type Options struct {
	// WebSearch advertises the web-search tool. Leave false when no search
	// client is configured.
	WebSearch bool
	Logger    *slog.Logger
}

// Router classifies the latest turns into memory requests.
type Router struct {
	provider  llm.Provider
	webSearch bool
	logger    *slog.Logger
}

// New creates a Router backed by provider.
func New(provider llm.Provider, opts Options) *Router {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Router{provider: provider, webSearch: opts.WebSearch, logger: opts.Logger}
}

// Route returns the memory requests for the newest message in recent. It
// never fails: backend errors and malformed output yield nil. Queries the
// model left empty are filled with the newest message text.
func (r *Router) Route(ctx context.Context, recent []*memory.Message, agentName string) []Request {
	if len(recent) == 0 {
		return nil
	}
	if len(recent) > recentForPrompt {
		recent = recent[len(recent)-recentForPrompt:]
	}
	latest := recent[len(recent)-1]

	out, err := r.provider.Complete(ctx, llm.Request{
		Tier:      llm.TierStandard,
		System:    buildPrompt(agentName, r.webSearch),
		Messages:  []llm.Message{{Role: llm.RoleUser, Content: memory.Transcript(recent)}},
		MaxTokens: routeMaxTokens,
	})
	if err != nil {
		r.logger.Warn("router: classification failed", "err", err)
		return nil
	}

	parsed := Parse(out)
	if parsed == nil {
		r.logger.Debug("router: unparseable classifier output", "output", out)
		return nil
	}

	reqs := make([]Request, 0, len(parsed))
	for _, req := range parsed {
		if req.Kind == KindWebSearch && !r.webSearch {
			continue
		}
		if req.Kind.takesQuery() && req.Query == "" {
			req.Query = latest.Content
		}
		reqs = append(reqs, req)
	}
	r.logger.Debug("router: selected tiers", "requests", len(reqs))
	return reqs
}
