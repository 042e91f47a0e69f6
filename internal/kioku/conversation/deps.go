package conversation

import (
	"log/slog"
	"time"

	"github.com/bdobrica/kioku/internal/kioku/config"
	"github.com/bdobrica/kioku/internal/kioku/llm"
	"github.com/bdobrica/kioku/internal/kioku/memory"
	"github.com/bdobrica/kioku/internal/kioku/moderation"
	"github.com/bdobrica/kioku/internal/kioku/persona"
	"github.com/bdobrica/kioku/internal/kioku/ratelimit"
	"github.com/bdobrica/kioku/internal/kioku/search"
)

// SelfMaxTokens bounds how much of each of our own replies is remembered.
const SelfMaxTokens = 100

// Budgets are the compaction budgets in tokens.
type Budgets struct {
	// ReplyTrigger bounds the window before a reply is generated.
	ReplyTrigger int
	// BackgroundTrigger bounds the window for messages not addressed to us.
	BackgroundTrigger int
	// Retained stops the rebuild scan once the kept window passes it.
	Retained int
}

// DefaultBudgets returns the standard budgets.
func DefaultBudgets() Budgets {
	return Budgets{ReplyTrigger: 300, BackgroundTrigger: 500, Retained: 200}
}

// Deps are the collaborators shared by every actor. Optional fields may be
// nil: no Moderator means nothing is screened, no Searcher disables the web
// tier, no Limiter disables rate limiting, no Config disables pause.
type Deps struct {
	Store     memory.Store
	Compactor *memory.Compactor
	Router    Router
	Provider  llm.Provider
	Embedder  memory.Embedder
	Memorizer Memorizer
	Platform  Platform

	Moderator moderation.Moderator
	Searcher  search.Searcher
	Extractor search.Extractor
	Config    config.Store
	Limiter   *ratelimit.Limiter

	Persona *persona.Persona
	Budgets Budgets
	// Admins may pause and unpause the agent from chat.
	Admins []string
	// RecallK is how many archival facts are recalled per query.
	RecallK int
	// TypingRefresh re-sends the typing indicator while a reply is pending.
	TypingRefresh time.Duration

	Logger *slog.Logger
}

func (d *Deps) withDefaults() *Deps {
	out := *d
	if out.Persona == nil {
		out.Persona = persona.Default()
	}
	if out.Budgets == (Budgets{}) {
		out.Budgets = DefaultBudgets()
	}
	if out.Moderator == nil {
		out.Moderator = moderation.Noop{}
	}
	if out.Embedder == nil {
		out.Embedder = memory.NoopEmbedder{}
	}
	if out.RecallK <= 0 {
		out.RecallK = 5
	}
	if out.TypingRefresh <= 0 {
		out.TypingRefresh = 20 * time.Second
	}
	if out.Logger == nil {
		out.Logger = slog.Default()
	}
	return &out
}
