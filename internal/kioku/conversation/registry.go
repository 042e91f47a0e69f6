package conversation

import (
	"context"
	"fmt"
	"sync"
)

// Registry maps conversation IDs to their actors, creating them on first use.
type Registry struct {
	ctx  context.Context
	deps *Deps

	mu     sync.Mutex
	actors map[string]*Actor
}

// NewRegistry returns an empty registry. ctx bounds every event handled by
// the registry's actors.
func NewRegistry(ctx context.Context, deps Deps) *Registry {
	return &Registry{
		ctx:    ctx,
		deps:   deps.withDefaults(),
		actors: make(map[string]*Actor),
	}
}

// Resolve returns the actor for id, loading its conversation from the store
// the first time it is seen. Concurrent callers get the same actor.
func (r *Registry) Resolve(ctx context.Context, id string) (*Actor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if a, ok := r.actors[id]; ok {
		return a, nil
	}
	conv, err := r.deps.Store.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load conversation %s: %w", id, err)
	}
	a := newActor(r.ctx, conv, r.deps)
	r.actors[id] = a
	return a, nil
}

// Dispatch resolves the actor for roomID and enqueues evt on it.
func (r *Registry) Dispatch(ctx context.Context, roomID string, evt Event) error {
	a, err := r.Resolve(ctx, roomID)
	if err != nil {
		return err
	}
	a.Enqueue(evt)
	return nil
}

// LoadAll creates an actor for every conversation already in the store.
func (r *Registry) LoadAll(ctx context.Context) (int, error) {
	ids, err := r.deps.Store.ConversationIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list conversations: %w", err)
	}
	for _, id := range ids {
		if _, err := r.Resolve(ctx, id); err != nil {
			return 0, err
		}
	}
	return len(ids), nil
}

// Each calls fn for every known actor.
func (r *Registry) Each(fn func(*Actor)) {
	r.mu.Lock()
	actors := make([]*Actor, 0, len(r.actors))
	for _, a := range r.actors {
		actors = append(actors, a)
	}
	r.mu.Unlock()

	for _, a := range actors {
		fn(a)
	}
}

// Len is the number of live actors.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.actors)
}

// Wait blocks until every actor's mailbox has drained.
func (r *Registry) Wait() {
	r.Each(func(a *Actor) { a.Wait() })
}
