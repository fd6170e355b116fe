// Package workflow moves features and tasks through the active pipeline.
// The engine owns the transition rules: pipeline order, the blocker gate,
// the WILL_NOT_IMPLEMENT exit, and the cascades that keep a parent feature
// in step with its tasks. Each operation runs in one transaction; every row
// it touches is re-read and written under its own version check.
package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/alioshr/task-orchestrator-sub000/internal/pipeline"
	"github.com/alioshr/task-orchestrator-sub000/internal/storage"
	"github.com/alioshr/task-orchestrator-sub000/internal/types"
)

// Transition records one status change.
type Transition struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Result reports a workflow operation: the updated entity (Feature or Task
// set, never both), the transition applied, and any secondary effects.
// FeatureTransition describes a parent cascade triggered by a task move.
type Result struct {
	Feature            *types.Feature `json:"feature,omitempty"`
	Task               *types.Task    `json:"task,omitempty"`
	Transition         Transition     `json:"transition"`
	UnblockedEntities  []string       `json:"unblocked_entities,omitempty"`
	AffectedDependents []string       `json:"affected_dependents,omitempty"`
	FeatureTransition  string         `json:"feature_transition,omitempty"`
}

// Engine executes workflow operations against a store.
type Engine struct {
	store storage.Store
}

// NewEngine binds an engine to a store. The active pipeline configuration is
// read per operation, so the engine may be built before bootstrap completes.
func NewEngine(store storage.Store) *Engine {
	return &Engine{store: store}
}

// Advance moves an entity to the next pipeline state. Blocked entities
// refuse to move. A task reaching ACTIVE pulls a NEW parent feature along;
// a task reaching CLOSED can close the parent once every sibling is
// terminal, and releases every entity blocked on the task.
func (e *Engine) Advance(ctx context.Context, entity types.EntityType, id string, expectedVersion int) (*Result, error) {
	if err := checkWorkflowEntity(entity); err != nil {
		return nil, err
	}
	res := &Result{}
	err := e.store.RunInTransaction(ctx, func(tx storage.Tx) error {
		item, err := loadItem(ctx, tx, entity, id)
		if err != nil {
			return err
		}
		if err := checkVersion(item, expectedVersion); err != nil {
			return err
		}
		if pipeline.IsTerminal(item.status) {
			return types.Validationf("%s %s is in terminal state %s", item.label(), id, item.status)
		}
		if len(item.blockedBy) > 0 {
			return types.Validationf("%s %s is blocked by [%s]; unblock or terminate it first",
				item.label(), id, strings.Join(item.blockedBy, ", "))
		}

		pl := pipeline.Active().PipelineFor(entity)
		if !pl.Contains(item.status) {
			return types.Validationf("%s %s has status %s outside the active pipeline",
				item.label(), id, item.status)
		}
		to, ok := pl.Next(item.status)
		if !ok {
			return types.Validationf("%s %s has no state after %s", item.label(), id, item.status)
		}
		if err := tx.SetWorkflowStatus(ctx, entity, id, to, expectedVersion); err != nil {
			return err
		}
		res.Transition = Transition{From: item.status, To: to}

		// Closed ids to release dependents of: the entity itself, plus the
		// parent feature when the rollup below closes it.
		var closed []string
		if to == types.StatusClosed {
			closed = append(closed, id)
		}

		if entity == types.EntityTask && item.featureID != "" {
			if to == types.StatusActive {
				if err := e.activateParent(ctx, tx, item.featureID, res); err != nil {
					return err
				}
			}
			if to == types.StatusClosed {
				closedParent, err := e.closeParent(ctx, tx, item.featureID, res)
				if err != nil {
					return err
				}
				if closedParent {
					closed = append(closed, item.featureID)
				}
			}
		}

		for _, closedID := range closed {
			unblocked, err := releaseDependents(ctx, tx, closedID)
			if err != nil {
				return err
			}
			res.UnblockedEntities = append(res.UnblockedEntities, unblocked...)
		}
		res.UnblockedEntities = types.DedupeStrings(res.UnblockedEntities)

		return loadResultEntity(ctx, tx, res, entity, id)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Revert moves an entity to the previous pipeline state. No cascades.
func (e *Engine) Revert(ctx context.Context, entity types.EntityType, id string, expectedVersion int) (*Result, error) {
	if err := checkWorkflowEntity(entity); err != nil {
		return nil, err
	}
	res := &Result{}
	err := e.store.RunInTransaction(ctx, func(tx storage.Tx) error {
		item, err := loadItem(ctx, tx, entity, id)
		if err != nil {
			return err
		}
		if err := checkVersion(item, expectedVersion); err != nil {
			return err
		}
		if pipeline.IsTerminal(item.status) {
			return types.Validationf("%s %s is in terminal state %s", item.label(), id, item.status)
		}

		pl := pipeline.Active().PipelineFor(entity)
		if !pl.Contains(item.status) {
			return types.Validationf("%s %s has status %s outside the active pipeline",
				item.label(), id, item.status)
		}
		to, ok := pl.Prev(item.status)
		if !ok {
			return types.Validationf("%s %s is already at the first pipeline state %s",
				item.label(), id, item.status)
		}
		if err := tx.SetWorkflowStatus(ctx, entity, id, to, expectedVersion); err != nil {
			return err
		}
		res.Transition = Transition{From: item.status, To: to}
		return loadResultEntity(ctx, tx, res, entity, id)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Terminate sets WILL_NOT_IMPLEMENT regardless of blockers. Dependents are
// not released; their ids come back as AffectedDependents so the caller can
// decide. When the terminated task leaves every sibling terminal, the parent
// feature follows: WILL_NOT_IMPLEMENT if all siblings abandoned, CLOSED if
// any sibling finished.
func (e *Engine) Terminate(ctx context.Context, entity types.EntityType, id string, expectedVersion int) (*Result, error) {
	if err := checkWorkflowEntity(entity); err != nil {
		return nil, err
	}
	res := &Result{}
	err := e.store.RunInTransaction(ctx, func(tx storage.Tx) error {
		item, err := loadItem(ctx, tx, entity, id)
		if err != nil {
			return err
		}
		if err := checkVersion(item, expectedVersion); err != nil {
			return err
		}
		if pipeline.IsTerminal(item.status) {
			return types.Validationf("%s %s is in terminal state %s", item.label(), id, item.status)
		}
		if err := tx.SetWorkflowStatus(ctx, entity, id, types.StatusWillNotImplement, expectedVersion); err != nil {
			return err
		}
		res.Transition = Transition{From: item.status, To: types.StatusWillNotImplement}

		deps, err := tx.Dependents(ctx, id)
		if err != nil {
			return err
		}
		for _, ref := range deps {
			res.AffectedDependents = append(res.AffectedDependents, ref.ID)
		}

		if entity == types.EntityTask && item.featureID != "" {
			if err := e.terminateParent(ctx, tx, item.featureID, res); err != nil {
				return err
			}
		}
		return loadResultEntity(ctx, tx, res, entity, id)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Block adds blockers to an entity. Blockers are peer feature or task ids,
// or the NO_OP sentinel with a mandatory reason. Additions are deduplicated
// against the existing set; re-adding present blockers is a no-op that skips
// the write entirely.
func (e *Engine) Block(ctx context.Context, entity types.EntityType, id string, blockers []string, reason string, expectedVersion int) (*Result, error) {
	if err := checkWorkflowEntity(entity); err != nil {
		return nil, err
	}
	blockers = normalizeIDs(blockers)
	if len(blockers) == 0 {
		return nil, types.Validationf("at least one blocker id is required")
	}
	reason = strings.TrimSpace(reason)
	addsNoOp := types.ContainsString(blockers, types.BlockerNoOp)
	if addsNoOp && reason == "" {
		return nil, types.Validationf("the %s blocker requires a reason", types.BlockerNoOp)
	}
	if reason != "" && !addsNoOp {
		return nil, types.Validationf("a reason is only accepted with the %s blocker", types.BlockerNoOp)
	}

	res := &Result{}
	err := e.store.RunInTransaction(ctx, func(tx storage.Tx) error {
		item, err := loadItem(ctx, tx, entity, id)
		if err != nil {
			return err
		}
		if err := checkVersion(item, expectedVersion); err != nil {
			return err
		}
		if pipeline.IsTerminal(item.status) {
			return types.Validationf("%s %s is in terminal state %s", item.label(), id, item.status)
		}

		for _, b := range blockers {
			if b == types.BlockerNoOp {
				continue
			}
			if b == id {
				return types.NewError(types.CodeSelfDependency, "%s %s cannot block itself", item.label(), id)
			}
			status, err := statusOf(ctx, tx, b)
			if err != nil {
				return err
			}
			if pipeline.IsTerminal(status) {
				return types.Validationf("blocker %s is in terminal state %s", b, status)
			}
			cycle, err := wouldCreateCycle(ctx, tx, id, b)
			if err != nil {
				return err
			}
			if cycle {
				return types.NewError(types.CodeCircularDependency,
					"blocking %s %s on %s would create a cycle", item.label(), id, b)
			}
		}

		merged := item.blockedBy
		changed := false
		for _, b := range blockers {
			if types.ContainsString(merged, b) {
				continue
			}
			merged = append(merged, b)
			changed = true
		}
		newReason := item.reason
		if addsNoOp {
			newReason = reason
		}

		res.Transition = Transition{From: item.status, To: item.status}
		if changed || newReason != item.reason {
			if err := tx.SetBlockers(ctx, entity, id, merged, newReason, expectedVersion); err != nil {
				return err
			}
		}
		return loadResultEntity(ctx, tx, res, entity, id)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Unblock removes blockers from an entity. Absent ids are ignored; removing
// nothing skips the write. The blocked reason survives only while NO_OP
// remains in the set.
func (e *Engine) Unblock(ctx context.Context, entity types.EntityType, id string, blockers []string, expectedVersion int) (*Result, error) {
	if err := checkWorkflowEntity(entity); err != nil {
		return nil, err
	}
	blockers = normalizeIDs(blockers)
	if len(blockers) == 0 {
		return nil, types.Validationf("at least one blocker id is required")
	}

	res := &Result{}
	err := e.store.RunInTransaction(ctx, func(tx storage.Tx) error {
		item, err := loadItem(ctx, tx, entity, id)
		if err != nil {
			return err
		}
		if err := checkVersion(item, expectedVersion); err != nil {
			return err
		}
		if pipeline.IsTerminal(item.status) {
			return types.Validationf("%s %s is in terminal state %s", item.label(), id, item.status)
		}

		remaining, changed := types.RemoveStrings(item.blockedBy, blockers)
		newReason := item.reason
		if !types.ContainsString(remaining, types.BlockerNoOp) {
			newReason = ""
		}

		res.Transition = Transition{From: item.status, To: item.status}
		if changed || newReason != item.reason {
			if err := tx.SetBlockers(ctx, entity, id, remaining, newReason, expectedVersion); err != nil {
				return err
			}
		}
		return loadResultEntity(ctx, tx, res, entity, id)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// activateParent pulls a NEW parent feature to ACTIVE after a task went
// ACTIVE. The feature advances under the same rules as a direct advance, so
// a blocked or already-moved parent is left alone.
func (e *Engine) activateParent(ctx context.Context, tx storage.Tx, featureID string, res *Result) error {
	feature, err := tx.GetFeature(ctx, featureID)
	if err != nil {
		return err
	}
	if feature.Status != types.StatusNew || len(feature.BlockedBy) > 0 {
		return nil
	}
	to, ok := pipeline.Active().PipelineFor(types.EntityFeature).Next(feature.Status)
	if !ok || to != types.StatusActive {
		return nil
	}
	if err := tx.SetWorkflowStatus(ctx, types.EntityFeature, featureID, to, feature.Version); err != nil {
		return err
	}
	res.FeatureTransition = fmt.Sprintf("feature %s auto-advanced to %s", featureID, to)
	return nil
}

// closeParent closes the parent feature once every sibling task is terminal
// and at least one finished as CLOSED. The rollup reflects sibling reality,
// so it jumps straight to CLOSED and ignores the feature's own blockers.
func (e *Engine) closeParent(ctx context.Context, tx storage.Tx, featureID string, res *Result) (bool, error) {
	feature, err := tx.GetFeature(ctx, featureID)
	if err != nil {
		return false, err
	}
	if pipeline.IsTerminal(feature.Status) {
		return false, nil
	}
	allTerminal, _, anyClosed, err := siblingRollup(ctx, tx, featureID)
	if err != nil {
		return false, err
	}
	if !allTerminal || !anyClosed {
		return false, nil
	}
	if err := tx.SetWorkflowStatus(ctx, types.EntityFeature, featureID, types.StatusClosed, feature.Version); err != nil {
		return false, err
	}
	res.FeatureTransition = fmt.Sprintf("feature %s auto-advanced to %s", featureID, types.StatusClosed)
	return true, nil
}

// terminateParent cascades a terminate to the parent feature once every
// sibling is terminal: WILL_NOT_IMPLEMENT when all siblings were abandoned,
// CLOSED when at least one finished.
func (e *Engine) terminateParent(ctx context.Context, tx storage.Tx, featureID string, res *Result) error {
	feature, err := tx.GetFeature(ctx, featureID)
	if err != nil {
		return err
	}
	if pipeline.IsTerminal(feature.Status) {
		return nil
	}
	allTerminal, allAbandoned, anyClosed, err := siblingRollup(ctx, tx, featureID)
	if err != nil {
		return err
	}
	if !allTerminal {
		return nil
	}
	to := ""
	switch {
	case allAbandoned:
		to = types.StatusWillNotImplement
	case anyClosed:
		to = types.StatusClosed
	default:
		return nil
	}
	if err := tx.SetWorkflowStatus(ctx, types.EntityFeature, featureID, to, feature.Version); err != nil {
		return err
	}
	res.FeatureTransition = fmt.Sprintf("feature %s auto-advanced to %s", featureID, to)
	return nil
}

// siblingRollup summarizes the states of a feature's tasks.
func siblingRollup(ctx context.Context, tx storage.Tx, featureID string) (allTerminal, allAbandoned, anyClosed bool, err error) {
	siblings, err := tx.TasksByFeature(ctx, featureID)
	if err != nil {
		return false, false, false, err
	}
	if len(siblings) == 0 {
		return false, false, false, nil
	}
	allTerminal, allAbandoned = true, true
	for _, s := range siblings {
		if !pipeline.IsTerminal(s.Status) {
			allTerminal = false
		}
		if s.Status != types.StatusWillNotImplement {
			allAbandoned = false
		}
		if s.Status == types.StatusClosed {
			anyClosed = true
		}
	}
	return allTerminal, allAbandoned, anyClosed, nil
}

// releaseDependents removes a closed entity's id from every blocker list
// that names it. Each dependent is re-read and written under its own
// version. Returns the released ids.
func releaseDependents(ctx context.Context, tx storage.Tx, closedID string) ([]string, error) {
	deps, err := tx.Dependents(ctx, closedID)
	if err != nil {
		return nil, err
	}
	var released []string
	for _, ref := range deps {
		switch ref.Type {
		case types.EntityFeature:
			f, err := tx.GetFeature(ctx, ref.ID)
			if err != nil {
				return nil, err
			}
			remaining, changed := types.RemoveStrings(f.BlockedBy, []string{closedID})
			if !changed {
				continue
			}
			reason := f.BlockedReason
			if !types.ContainsString(remaining, types.BlockerNoOp) {
				reason = ""
			}
			if err := tx.SetBlockers(ctx, types.EntityFeature, ref.ID, remaining, reason, f.Version); err != nil {
				return nil, err
			}
		case types.EntityTask:
			task, err := tx.GetTask(ctx, ref.ID)
			if err != nil {
				return nil, err
			}
			remaining, changed := types.RemoveStrings(task.Blockers(), []string{closedID})
			if !changed {
				continue
			}
			reason := task.BlockedReason
			if !types.ContainsString(remaining, types.BlockerNoOp) {
				reason = ""
			}
			if err := tx.SetBlockers(ctx, types.EntityTask, ref.ID, remaining, reason, task.Version); err != nil {
				return nil, err
			}
		default:
			continue
		}
		released = append(released, ref.ID)
	}
	return released, nil
}

// wouldCreateCycle reports whether blocking target on blocker closes a loop
// over blocked_by edges. BFS from the blocker; reaching the target means the
// new edge would complete a cycle.
func wouldCreateCycle(ctx context.Context, tx storage.Tx, targetID, blockerID string) (bool, error) {
	visited := make(map[string]bool)
	queue := []string{blockerID}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if current == targetID {
			return true, nil
		}
		if visited[current] || current == types.BlockerNoOp {
			continue
		}
		visited[current] = true

		blockers, ok, err := tx.BlockersOf(ctx, current)
		if err != nil {
			return false, err
		}
		if !ok {
			continue
		}
		for _, next := range blockers {
			if next == types.BlockerNoOp || visited[next] {
				continue
			}
			queue = append(queue, next)
		}
	}
	return false, nil
}

// item is the workflow-relevant slice of a feature or task. blockedBy holds
// the effective list (tasks fall back to legacy dependencies).
type item struct {
	entity    types.EntityType
	status    string
	version   int
	blockedBy []string
	reason    string
	featureID string
	id        string
}

func (i *item) label() string {
	return strings.ToLower(string(i.entity))
}

func loadItem(ctx context.Context, tx storage.Tx, entity types.EntityType, id string) (*item, error) {
	switch entity {
	case types.EntityFeature:
		f, err := tx.GetFeature(ctx, id)
		if err != nil {
			return nil, err
		}
		return &item{
			entity:    entity,
			id:        id,
			status:    f.Status,
			version:   f.Version,
			blockedBy: f.BlockedBy,
			reason:    f.BlockedReason,
		}, nil
	case types.EntityTask:
		task, err := tx.GetTask(ctx, id)
		if err != nil {
			return nil, err
		}
		return &item{
			entity:    entity,
			id:        id,
			status:    task.Status,
			version:   task.Version,
			blockedBy: task.Blockers(),
			reason:    task.BlockedReason,
			featureID: task.FeatureID,
		}, nil
	}
	return nil, types.Validationf("entity type %s does not carry workflow state", entity)
}

func loadResultEntity(ctx context.Context, tx storage.Tx, res *Result, entity types.EntityType, id string) error {
	switch entity {
	case types.EntityFeature:
		f, err := tx.GetFeature(ctx, id)
		if err != nil {
			return err
		}
		res.Feature = f
	case types.EntityTask:
		task, err := tx.GetTask(ctx, id)
		if err != nil {
			return err
		}
		res.Task = task
	}
	return nil
}

// statusOf resolves the status of a feature or task by bare id.
func statusOf(ctx context.Context, tx storage.Tx, id string) (string, error) {
	f, err := tx.GetFeature(ctx, id)
	if err == nil {
		return f.Status, nil
	}
	if !types.IsNotFound(err) {
		return "", err
	}
	task, err := tx.GetTask(ctx, id)
	if err == nil {
		return task.Status, nil
	}
	if types.IsNotFound(err) {
		return "", types.NotFoundf("blocker %s not found", id)
	}
	return "", err
}

func checkWorkflowEntity(entity types.EntityType) error {
	if entity != types.EntityFeature && entity != types.EntityTask {
		return types.Validationf("entity type %s does not carry workflow state", entity)
	}
	return nil
}

func checkVersion(i *item, expected int) error {
	if expected < 1 {
		return types.Validationf("expected version is required for %s %s", i.label(), i.id)
	}
	if expected != i.version {
		return types.Conflictf("%s %s version mismatch: expected %d, found %d",
			i.label(), i.id, expected, i.version)
	}
	return nil
}

// normalizeIDs trims and deduplicates blocker ids, dropping empties.
func normalizeIDs(ids []string) []string {
	trimmed := make([]string, 0, len(ids))
	for _, id := range ids {
		trimmed = append(trimmed, strings.TrimSpace(id))
	}
	return types.DedupeStrings(trimmed)
}
