// Package app wires the Kioku agent together: storage, model backends,
// conversation actors, the Matrix client and the background jobs.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bdobrica/kioku/common/redact"
	"github.com/bdobrica/kioku/internal/kioku/config"
	"github.com/bdobrica/kioku/internal/kioku/conversation"
	"github.com/bdobrica/kioku/internal/kioku/llm"
	"github.com/bdobrica/kioku/internal/kioku/matrix"
	"github.com/bdobrica/kioku/internal/kioku/memory"
	"github.com/bdobrica/kioku/internal/kioku/moderation"
	"github.com/bdobrica/kioku/internal/kioku/persona"
	"github.com/bdobrica/kioku/internal/kioku/ratelimit"
	"github.com/bdobrica/kioku/internal/kioku/router"
	"github.com/bdobrica/kioku/internal/kioku/search"
	"github.com/bdobrica/kioku/internal/kioku/store"
)

// DefaultMemorizeSchedule distils active memory once a day.
const DefaultMemorizeSchedule = "@daily"

// Config holds application configuration.
type Config struct {
	DatabasePath string
	Matrix       matrix.Config
	LLM          llm.Config

	// Embedding enables long-term recall. An empty APIKey disables it.
	Embedding memory.OpenAIEmbedderConfig
	// Moderation screens inbound messages. Nil disables screening.
	Moderation *moderation.Config
	// Bing enables the web-search tier. Nil disables it.
	Bing *search.BingConfig

	// PersonaPath points at a persona YAML file. Empty uses the default.
	PersonaPath string
	// Admins may pause and unpause the agent from chat.
	Admins []string
	// Budgets overrides the compaction budgets when non-zero.
	Budgets conversation.Budgets
	// RateLimit caps replies per sender per minute. Zero uses
	// ratelimit.DefaultLimit, negative disables limiting.
	RateLimit int
	// MemorizeSchedule is a cron spec for the memorizer. Empty uses
	// DefaultMemorizeSchedule.
	MemorizeSchedule string
	// HTTPAddr enables the health server when non-empty.
	HTTPAddr string

	Logger *slog.Logger
}

// App is the running agent.
type App struct {
	config   *Config
	logger   *slog.Logger
	store    *store.Store
	deps     conversation.Deps
	matrix   *matrix.Client
	registry *conversation.Registry
	memorize *MemorizeScheduler
	health   *HealthServer
}

// New opens the database and builds every component. Nothing runs until Run.
func New(cfg *Config) (*App, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	p, err := persona.Load(cfg.PersonaPath)
	if err != nil {
		return nil, err
	}

	st, err := store.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	deps := buildDeps(cfg, st, p, logger)

	if len(cfg.Matrix.Names) == 0 {
		cfg.Matrix.Names = []string{p.Name, p.DisplayName}
	}
	cfg.Matrix.DB = st.DB()
	if cfg.Matrix.Logger == nil {
		cfg.Matrix.Logger = logger
	}
	mx, err := matrix.New(&cfg.Matrix)
	if err != nil {
		st.Close()
		return nil, err
	}
	deps.Platform = mx

	a := &App{
		config: cfg,
		logger: logger,
		store:  st,
		deps:   deps,
		matrix: mx,
	}
	if cfg.HTTPAddr != "" {
		a.health = NewHealthServer(cfg.HTTPAddr, st, nil)
	}

	logger.Info("kioku configured",
		"persona", p.Name,
		"database", cfg.DatabasePath,
		"llm_key", redact.Mask(cfg.LLM.APIKey),
		"matrix_token", redact.Mask(cfg.Matrix.AccessToken),
		"embeddings", cfg.Embedding.APIKey != "",
		"moderation", cfg.Moderation != nil,
		"web_search", cfg.Bing != nil,
	)
	return a, nil
}

// buildDeps constructs the collaborators shared by every conversation actor.
// Platform is left for the caller.
func buildDeps(cfg *Config, st *store.Store, p *persona.Persona, logger *slog.Logger) conversation.Deps {
	provider := llm.NewOpenAI(cfg.LLM)
	mem := memory.NewSQLiteStore(st.DB(), logger)

	var embedder memory.Embedder = memory.NoopEmbedder{}
	if cfg.Embedding.APIKey != "" {
		embedder = memory.NewOpenAIEmbedder(cfg.Embedding)
	}

	var moderator moderation.Moderator = moderation.Noop{}
	if cfg.Moderation != nil {
		moderator = moderation.NewOpenAI(*cfg.Moderation)
	}

	deps := conversation.Deps{
		Store:     mem,
		Compactor: memory.NewCompactor(mem, memory.NewLLMSummariser(provider), logger),
		Provider:  provider,
		Embedder:  embedder,
		Memorizer: memory.NewMemorizer(mem, provider, embedder, logger),
		Moderator: moderator,
		Config:    config.New(st),
		Persona:   p,
		Budgets:   cfg.Budgets,
		Admins:    cfg.Admins,
		Logger:    logger,
	}
	if cfg.Bing != nil {
		deps.Searcher = search.NewBing(*cfg.Bing)
		deps.Extractor = search.NewHTMLExtractor(search.DefaultChunkRunes, cfg.Bing.Timeout)
	}
	deps.Router = router.New(provider, router.Options{WebSearch: deps.Searcher != nil, Logger: logger})

	if cfg.RateLimit >= 0 {
		deps.Limiter = ratelimit.New(cfg.RateLimit, time.Minute)
	}
	return deps
}

// Run restores persisted conversations, starts the background jobs and the
// Matrix sync, then blocks until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.registry = conversation.NewRegistry(ctx, a.deps)
	n, err := a.registry.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to restore conversations: %w", err)
	}
	a.logger.Info("conversations restored", "count", n)

	if a.health != nil {
		a.health.actors = a.registry
		if err := a.health.Start(ctx); err != nil {
			a.logger.Warn("health server failed to start; continuing without it", "err", err)
		}
	}

	schedule := a.config.MemorizeSchedule
	if schedule == "" {
		schedule = DefaultMemorizeSchedule
	}
	a.memorize, err = NewMemorizeScheduler(schedule, a.registry, a.logger)
	if err != nil {
		return err
	}
	a.memorize.Start()

	a.logger.Info("starting Matrix sync", "user_id", a.matrix.UserID())
	if err := a.matrix.Start(ctx, a.handleInbound); err != nil {
		return fmt.Errorf("failed to start Matrix client: %w", err)
	}

	a.logger.Info("kioku is running")
	<-ctx.Done()
	a.logger.Info("shutting down")
	return nil
}

// Stop halts the sync loop and background jobs, lets the actors drain and
// closes the database.
func (a *App) Stop() {
	a.logger.Info("stopping Matrix client")
	a.matrix.Stop()

	if a.memorize != nil {
		a.memorize.Stop()
	}
	if a.registry != nil {
		a.logger.Info("draining conversations")
		a.registry.Wait()
	}
	if a.health != nil {
		a.health.Stop()
	}

	a.logger.Info("closing database")
	a.store.Close()
}

func (a *App) handleInbound(ctx context.Context, in matrix.Inbound) {
	evt := conversation.NewInbound(in.Sender, in.Body, in.At, in.Addressed)
	evt.Direct = in.Direct
	evt.Members = in.Members
	if err := a.registry.Dispatch(ctx, in.RoomID, evt); err != nil {
		a.logger.Error("dispatch failed", "room", in.RoomID, "matrix_event_id", in.EventID, "err", err)
		return
	}
	a.logger.Debug("message queued",
		"room", in.RoomID, "event_id", evt.ID, "matrix_event_id", in.EventID, "addressed", in.Addressed)
}
