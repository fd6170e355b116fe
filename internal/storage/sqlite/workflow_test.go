package sqlite

import (
	"context"
	"testing"

	"github.com/alioshr/task-orchestrator-sub000/internal/types"
)

func TestSetWorkflowStatus(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	p := seedProject(t, store)
	f := seedFeature(t, store, p.ID)

	if err := store.SetWorkflowStatus(ctx, types.EntityFeature, f.ID, types.StatusActive, f.Version); err != nil {
		t.Fatalf("SetWorkflowStatus: %v", err)
	}
	got, err := store.GetFeature(ctx, f.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.Status != types.StatusActive {
		t.Errorf("status = %q, want %q", got.Status, types.StatusActive)
	}
	if got.Version != f.Version+1 {
		t.Errorf("version = %d, want %d", got.Version, f.Version+1)
	}
}

func TestSetWorkflowStatusErrors(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	p := seedProject(t, store)
	f := seedFeature(t, store, p.ID)

	tests := []struct {
		name    string
		entity  types.EntityType
		id      string
		version int
		code    types.ErrorCode
	}{
		{"project is stateless", types.EntityProject, p.ID, 1, types.CodeValidation},
		{"missing row", types.EntityFeature, "missing", 1, types.CodeNotFound},
		{"stale version", types.EntityFeature, f.ID, 999, types.CodeConflict},
		{"missing version", types.EntityFeature, f.ID, 0, types.CodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := store.SetWorkflowStatus(ctx, tt.entity, tt.id, types.StatusActive, tt.version)
			wantCode(t, err, tt.code)
		})
	}
}

func TestSetBlockers(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	p := seedProject(t, store)
	f := seedFeature(t, store, p.ID)
	task := seedTask(t, store, f.ID)

	if err := store.SetBlockers(ctx, types.EntityTask, task.ID,
		[]string{f.ID, types.BlockerNoOp}, "waiting on design", task.Version); err != nil {
		t.Fatalf("SetBlockers: %v", err)
	}

	got, err := store.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(got.BlockedBy) != 2 {
		t.Fatalf("blocked_by = %v, want two entries", got.BlockedBy)
	}
	if got.BlockedReason != "waiting on design" {
		t.Errorf("blocked_reason = %q", got.BlockedReason)
	}

	// Clearing the list with an empty reason stores NULL.
	if err := store.SetBlockers(ctx, types.EntityTask, task.ID, nil, "", got.Version); err != nil {
		t.Fatalf("clear blockers: %v", err)
	}
	got, err = store.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(got.BlockedBy) != 0 || got.BlockedReason != "" {
		t.Errorf("after clear: blocked_by=%v reason=%q", got.BlockedBy, got.BlockedReason)
	}
}

func TestDependents(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	p := seedProject(t, store)
	blocker := seedFeature(t, store, p.ID)

	dependentFeature, err := store.CreateFeature(ctx, types.NewFeature{
		ProjectID: p.ID, Name: "waits", Summary: "depends on the other",
	})
	if err != nil {
		t.Fatalf("create feature: %v", err)
	}
	dependentTask := seedTask(t, store, blocker.ID)

	if err := store.SetBlockers(ctx, types.EntityFeature, dependentFeature.ID,
		[]string{blocker.ID}, "", dependentFeature.Version); err != nil {
		t.Fatalf("block feature: %v", err)
	}
	if err := store.SetBlockers(ctx, types.EntityTask, dependentTask.ID,
		[]string{blocker.ID}, "", dependentTask.Version); err != nil {
		t.Fatalf("block task: %v", err)
	}

	refs, err := store.Dependents(ctx, blocker.ID)
	if err != nil {
		t.Fatalf("Dependents: %v", err)
	}
	if len(refs) != 2 {
		t.Fatalf("got %d dependents, want 2: %v", len(refs), refs)
	}
	// Features come before tasks.
	if refs[0].Type != types.EntityFeature || refs[0].ID != dependentFeature.ID {
		t.Errorf("first dependent = %+v, want the feature", refs[0])
	}
	if refs[1].Type != types.EntityTask || refs[1].ID != dependentTask.ID {
		t.Errorf("second dependent = %+v, want the task", refs[1])
	}
}

func TestDependentsIgnoresSubstringIDs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	p := seedProject(t, store)
	f := seedFeature(t, store, p.ID)
	task := seedTask(t, store, f.ID)

	// A blocker list containing a superstring of the probed id must not
	// produce a false positive from the LIKE prefilter.
	if err := store.SetBlockers(ctx, types.EntityTask, task.ID,
		[]string{f.ID + "ff"}, "", task.Version); err != nil {
		t.Fatalf("SetBlockers: %v", err)
	}

	refs, err := store.Dependents(ctx, f.ID)
	if err != nil {
		t.Fatalf("Dependents: %v", err)
	}
	if len(refs) != 0 {
		t.Errorf("got %v, want no dependents", refs)
	}
}

func TestBlockersOf(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	p := seedProject(t, store)
	f := seedFeature(t, store, p.ID)
	task := seedTask(t, store, f.ID)

	if err := store.SetBlockers(ctx, types.EntityTask, task.ID,
		[]string{f.ID}, "", task.Version); err != nil {
		t.Fatalf("SetBlockers: %v", err)
	}

	blockers, found, err := store.BlockersOf(ctx, task.ID)
	if err != nil {
		t.Fatalf("BlockersOf: %v", err)
	}
	if !found {
		t.Fatal("task not found by BlockersOf")
	}
	if len(blockers) != 1 || blockers[0] != f.ID {
		t.Errorf("blockers = %v, want [%s]", blockers, f.ID)
	}

	blockers, found, err = store.BlockersOf(ctx, f.ID)
	if err != nil {
		t.Fatalf("BlockersOf feature: %v", err)
	}
	if !found || len(blockers) != 0 {
		t.Errorf("feature: found=%v blockers=%v, want found with none", found, blockers)
	}

	_, found, err = store.BlockersOf(ctx, "missing")
	if err != nil {
		t.Fatalf("BlockersOf missing: %v", err)
	}
	if found {
		t.Error("missing id reported as found")
	}
}
