package pipeline

import (
	"github.com/alioshr/task-orchestrator-sub000/internal/types"
)

// Validator answers state and transition questions against one
// configuration. Projects are stateless: every state is valid, nothing is
// terminal, and no transitions exist.
type Validator struct {
	cfg *Config
}

// NewValidator binds a validator to a configuration.
func NewValidator(cfg *Config) *Validator {
	return &Validator{cfg: cfg}
}

// ActiveValidator binds a validator to the process-wide configuration.
func ActiveValidator() *Validator {
	return NewValidator(Active())
}

// IsValidState reports whether the state is legal for the entity type.
func (v *Validator) IsValidState(entity types.EntityType, state string) bool {
	if entity == types.EntityProject {
		return true
	}
	pl := v.cfg.PipelineFor(entity)
	if pl == nil {
		return false
	}
	return pl.IsValidState(state)
}

// IsTerminal reports whether the state forbids further transitions for the
// entity type.
func (v *Validator) IsTerminal(entity types.EntityType, state string) bool {
	if entity == types.EntityProject {
		return false
	}
	return IsTerminal(state)
}

// AllowedTransitions lists the legal targets from the current state:
// the next state, the previous state, and WILL_NOT_IMPLEMENT, dropping
// undefined entries. Terminal or invalid current states allow nothing.
func (v *Validator) AllowedTransitions(entity types.EntityType, current string) []string {
	if entity == types.EntityProject {
		return nil
	}
	pl := v.cfg.PipelineFor(entity)
	if pl == nil {
		return nil
	}
	if IsTerminal(current) || !pl.Contains(current) {
		return nil
	}
	var out []string
	if next, ok := pl.Next(current); ok {
		out = append(out, next)
	}
	if prev, ok := pl.Prev(current); ok {
		out = append(out, prev)
	}
	return append(out, types.StatusWillNotImplement)
}

// IsValidTransition reports whether from → to is in the allowed set.
func (v *Validator) IsValidTransition(entity types.EntityType, from, to string) bool {
	for _, s := range v.AllowedTransitions(entity, from) {
		if s == to {
			return true
		}
	}
	return false
}
