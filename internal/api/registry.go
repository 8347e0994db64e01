package api

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/sells-group/mission-cli/internal/mission"
	"github.com/sells-group/mission-cli/internal/model"
	"github.com/sells-group/mission-cli/internal/phase"
)

// Factory builds an unbound orchestrator.
type Factory func() *mission.Orchestrator

// Registry keeps one live orchestrator per mission so each mission has a
// single writer. Missions not yet in memory are resumed from the store on
// first access; concurrent first accesses share one resume.
type Registry struct {
	mu      sync.Mutex
	newFn   Factory
	live    map[string]*mission.Orchestrator
	resumes singleflight.Group
}

// NewRegistry returns an empty registry.
func NewRegistry(newFn Factory) *Registry {
	return &Registry{newFn: newFn, live: make(map[string]*mission.Orchestrator)}
}

// Start creates and registers a mission. A discovery failure is returned
// together with the orchestrator, which stays registered in the error state.
func (r *Registry) Start(ctx context.Context, accountID string, profile model.Profile) (*mission.Orchestrator, error) {
	o := r.newFn()
	err := o.Start(ctx, accountID, profile)
	st, sErr := o.Status()
	if sErr != nil {
		return nil, err
	}
	r.put(st.Mission.ID, o)
	return o, err
}

// Get returns the live orchestrator for id, resuming it when needed.
func (r *Registry) Get(ctx context.Context, id string) (*mission.Orchestrator, error) {
	if o, ok := r.lookup(id); ok {
		return o, nil
	}

	v, err, _ := r.resumes.Do(id, func() (any, error) {
		if o, ok := r.lookup(id); ok {
			return o, nil
		}
		o := r.newFn()
		err := o.Resume(context.WithoutCancel(ctx), id)
		if err != nil && !errors.Is(err, phase.ErrCollaborator) {
			return nil, err
		}
		return r.put(id, o), err
	})
	o, _ := v.(*mission.Orchestrator)
	return o, err
}

// Release drops o from the registry once its mission is closed. A closed
// mission is read-only, so a later Get rebuilds it from the store without
// calling any collaborator.
func (r *Registry) Release(id string, o *mission.Orchestrator) {
	st, err := o.Status()
	if err != nil || st.Mission.Status == model.MissionStatusActive {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.live[id] == o {
		delete(r.live, id)
	}
}

func (r *Registry) lookup(id string) (*mission.Orchestrator, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.live[id]
	return o, ok
}

// put registers o unless another request registered id first.
func (r *Registry) put(id string, o *mission.Orchestrator) *mission.Orchestrator {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.live[id]; ok {
		return cur
	}
	r.live[id] = o
	return o
}

// Len reports how many missions are live.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.live)
}
