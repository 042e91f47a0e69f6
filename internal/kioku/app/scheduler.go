package app

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/bdobrica/kioku/common/trace"
	"github.com/bdobrica/kioku/internal/kioku/conversation"
)

// actorSet is the part of conversation.Registry the scheduler needs.
type actorSet interface {
	Each(fn func(*conversation.Actor))
}

// MemorizeScheduler periodically asks every conversation to distil its
// active memory into archival facts. The work is enqueued on each actor so
// it never races with message handling.
type MemorizeScheduler struct {
	cron   *cron.Cron
	actors actorSet
	logger *slog.Logger
}

// NewMemorizeScheduler parses spec (standard 5-field or a descriptor such as
// "@daily") and returns a stopped scheduler.
func NewMemorizeScheduler(spec string, actors actorSet, logger *slog.Logger) (*MemorizeScheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &MemorizeScheduler{
		cron:   cron.New(),
		actors: actors,
		logger: logger,
	}
	if _, err := s.cron.AddFunc(spec, s.fire); err != nil {
		return nil, fmt.Errorf("memorize schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start begins firing on schedule.
func (s *MemorizeScheduler) Start() {
	s.cron.Start()
	s.logger.Info("memorizer scheduled", "next", s.cron.Entries()[0].Next)
}

// Stop halts the schedule and waits briefly for a running fire to return.
func (s *MemorizeScheduler) Stop() {
	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		s.logger.Warn("memorizer: stop timed out")
	}
}

// fire enqueues one memorize event per conversation.
func (s *MemorizeScheduler) fire() {
	traceID := trace.GenerateID()
	n := 0
	s.actors.Each(func(a *conversation.Actor) {
		a.Enqueue(conversation.Event{
			ID:      uuid.NewString(),
			TraceID: traceID,
			Kind:    conversation.EventMemorize,
		})
		n++
	})
	s.logger.Info("memorizer: queued conversations", "count", n, "trace_id", traceID)
}
