// Package pipeline defines the closed status catalogs, validates user
// pipelines against them, and resolves the locked active configuration that
// governs every feature and task transition.
package pipeline

import (
	"fmt"

	"github.com/alioshr/task-orchestrator-sub000/internal/types"
)

// Catalogs fix the full ordered state space per entity type. A user pipeline
// is an ordered subset: it must start with NEW, include ACTIVE, end with
// CLOSED, and preserve catalog order. WILL_NOT_IMPLEMENT is reachable from
// any non-terminal state and is never listed.
var (
	FeatureCatalog = []string{
		types.StatusNew,
		types.StatusActive,
		types.StatusReadyToProd,
		types.StatusClosed,
	}
	TaskCatalog = []string{
		types.StatusNew,
		types.StatusActive,
		types.StatusToBeTested,
		types.StatusReadyToProd,
		types.StatusClosed,
	}
)

// CatalogFor returns the full catalog for a status-bearing entity type, or
// nil for stateless types.
func CatalogFor(entity types.EntityType) []string {
	switch entity {
	case types.EntityFeature:
		return FeatureCatalog
	case types.EntityTask:
		return TaskCatalog
	}
	return nil
}

// IsTerminal reports whether a state permits no further transitions.
// Terminality does not depend on the configured pipeline.
func IsTerminal(state string) bool {
	return state == types.StatusClosed || state == types.StatusWillNotImplement
}

// Pipeline is an immutable, validated progression for one entity type.
type Pipeline struct {
	entity types.EntityType
	states []string
	index  map[string]int
}

// New validates states against the entity's catalog and builds the pipeline.
func New(entity types.EntityType, states []string) (*Pipeline, error) {
	catalog := CatalogFor(entity)
	if catalog == nil {
		return nil, types.Validationf("entity type %q has no status pipeline", entity)
	}
	if len(states) == 0 {
		return nil, types.Validationf("%s pipeline must not be empty", lower(entity))
	}
	if states[0] != types.StatusNew {
		return nil, types.Validationf("%s pipeline must start with NEW, got %q", lower(entity), states[0])
	}
	if states[len(states)-1] != types.StatusClosed {
		return nil, types.Validationf("%s pipeline must end with CLOSED, got %q", lower(entity), states[len(states)-1])
	}

	catalogIndex := make(map[string]int, len(catalog))
	for i, s := range catalog {
		catalogIndex[s] = i
	}

	index := make(map[string]int, len(states))
	hasActive := false
	last := -1
	for i, s := range states {
		ci, ok := catalogIndex[s]
		if !ok {
			return nil, types.Validationf("%s pipeline state %q is not in the catalog %v", lower(entity), s, catalog)
		}
		if ci <= last {
			return nil, types.Validationf("%s pipeline state %q violates catalog order", lower(entity), s)
		}
		last = ci
		index[s] = i
		if s == types.StatusActive {
			hasActive = true
		}
	}
	if !hasActive {
		return nil, types.Validationf("%s pipeline must include ACTIVE", lower(entity))
	}

	out := &Pipeline{entity: entity, states: make([]string, len(states)), index: index}
	copy(out.states, states)
	return out, nil
}

// EntityType returns the entity type this pipeline governs.
func (p *Pipeline) EntityType() types.EntityType { return p.entity }

// States returns a copy of the ordered state list.
func (p *Pipeline) States() []string {
	out := make([]string, len(p.states))
	copy(out, p.states)
	return out
}

// First returns the initial state (always NEW).
func (p *Pipeline) First() string { return p.states[0] }

// Contains reports pipeline membership. WILL_NOT_IMPLEMENT is never a
// member; use IsValidState for full state validity.
func (p *Pipeline) Contains(state string) bool {
	_, ok := p.index[state]
	return ok
}

// IsValidState reports whether state is a pipeline member or the exit state.
func (p *Pipeline) IsValidState(state string) bool {
	return state == types.StatusWillNotImplement || p.Contains(state)
}

// Next returns the state after the given one, if any.
func (p *Pipeline) Next(state string) (string, bool) {
	i, ok := p.index[state]
	if !ok || i+1 >= len(p.states) {
		return "", false
	}
	return p.states[i+1], true
}

// Prev returns the state before the given one, if any.
func (p *Pipeline) Prev(state string) (string, bool) {
	i, ok := p.index[state]
	if !ok || i == 0 {
		return "", false
	}
	return p.states[i-1], true
}

// Position renders a 1-based "k of N" label for a pipeline member.
func (p *Pipeline) Position(state string) (string, bool) {
	i, ok := p.index[state]
	if !ok {
		return "", false
	}
	return fmt.Sprintf("%d of %d", i+1, len(p.states)), true
}

func lower(e types.EntityType) string {
	switch e {
	case types.EntityFeature:
		return "feature"
	case types.EntityTask:
		return "task"
	case types.EntityProject:
		return "project"
	case types.EntityTemplate:
		return "template"
	}
	return string(e)
}
