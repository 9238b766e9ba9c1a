package job

import (
	"context"
	"encoding/json"
	"errors"
	"maps"
	"slices"
	"sync"
)

// runner is the type-erased execution interface the registry stores. Typed
// tasks are wrapped so tasks with different payload types share one table.
type runner interface {
	Run(ctx context.Context, payload json.RawMessage) error
}

type registry struct {
	runners map[string]runner
	mu      sync.RWMutex
}

func newRegistry() *registry {
	return &registry{runners: make(map[string]runner)}
}

func (r *registry) add(name string, rn runner) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runners[name] = rn
}

func (r *registry) lookup(name string) (runner, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rn, ok := r.runners[name]
	return rn, ok
}

func (r *registry) names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Collect(maps.Keys(r.runners))
}

// typedRunner unmarshals the JSON payload into P before handing off.
type typedRunner[P any, T interface {
	Name() string
	Handle(context.Context, P) error
}] struct {
	task T
}

func (r *typedRunner[P, T]) Run(ctx context.Context, raw json.RawMessage) error {
	var payload P
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &payload); err != nil {
			return errors.Join(ErrInvalidPayload, err)
		}
	}
	return r.task.Handle(ctx, payload)
}

// periodicRunner ignores payloads; scheduled tasks take none.
type periodicRunner struct {
	handle func(context.Context) error
}

func (r *periodicRunner) Run(ctx context.Context, _ json.RawMessage) error {
	return r.handle(ctx)
}
