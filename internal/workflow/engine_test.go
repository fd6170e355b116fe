package workflow_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alioshr/task-orchestrator-sub000/internal/pipeline"
	"github.com/alioshr/task-orchestrator-sub000/internal/storage/sqlite"
	"github.com/alioshr/task-orchestrator-sub000/internal/types"
	"github.com/alioshr/task-orchestrator-sub000/internal/workflow"
)

func newTestEngine(t *testing.T) (*workflow.Engine, *sqlite.Store) {
	t.Helper()
	store, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "tasks.db"))
	require.NoError(t, err, "open store")
	t.Cleanup(func() {
		pipeline.Reset()
		require.NoError(t, store.Close())
	})
	return workflow.NewEngine(store), store
}

func activatePipeline(t *testing.T, feature, task []string) {
	t.Helper()
	cfg, err := pipeline.NewConfig(pipeline.ConfigData{
		Version: pipeline.ConfigVersion,
		Pipelines: pipeline.PipelineLists{
			Feature: feature,
			Task:    task,
		},
	})
	require.NoError(t, err, "build pipeline config")
	pipeline.Activate(cfg)
	t.Cleanup(pipeline.Reset)
}

func seedFeature(t *testing.T, store *sqlite.Store) *types.Feature {
	t.Helper()
	ctx := context.Background()
	p, err := store.CreateProject(ctx, types.NewProject{
		Name:    "orders",
		Summary: "order management rework",
	})
	require.NoError(t, err, "seed project")
	f, err := store.CreateFeature(ctx, types.NewFeature{
		ProjectID: p.ID,
		Name:      "refund flow",
		Summary:   "automate refund approvals",
	})
	require.NoError(t, err, "seed feature")
	return f
}

func seedTask(t *testing.T, store *sqlite.Store, featureID, title string) *types.Task {
	t.Helper()
	task, err := store.CreateTask(context.Background(), types.NewTask{
		FeatureID:  featureID,
		Title:      title,
		Summary:    "S",
		Priority:   types.PriorityHigh,
		Complexity: 3,
	})
	require.NoError(t, err, "seed task")
	return task
}

func wantCode(t *testing.T, err error, code types.ErrorCode) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, code, types.CodeOf(err), "err: %v", err)
}

func TestAdvanceTaskLifecycle(t *testing.T) {
	eng, store := newTestEngine(t)
	ctx := context.Background()

	task := seedTask(t, store, "", "T")
	require.Equal(t, types.StatusNew, task.Status)
	require.Equal(t, 1, task.Version)

	res, err := eng.Advance(ctx, types.EntityTask, task.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, workflow.Transition{From: "NEW", To: "ACTIVE"}, res.Transition)
	assert.Equal(t, types.StatusActive, res.Task.Status)
	assert.Equal(t, 2, res.Task.Version)

	res, err = eng.Advance(ctx, types.EntityTask, task.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, types.StatusClosed, res.Task.Status)
	assert.Equal(t, 3, res.Task.Version)

	_, err = eng.Advance(ctx, types.EntityTask, task.ID, 3)
	wantCode(t, err, types.CodeValidation)
	assert.Contains(t, err.Error(), "terminal")
}

func TestAdvanceParentAutoActivate(t *testing.T) {
	eng, store := newTestEngine(t)
	ctx := context.Background()

	feature := seedFeature(t, store)
	require.Equal(t, types.StatusNew, feature.Status)
	task := seedTask(t, store, feature.ID, "wire approvals")

	res, err := eng.Advance(ctx, types.EntityTask, task.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, types.StatusActive, res.Task.Status)
	assert.Contains(t, res.FeatureTransition, "auto-advanced to ACTIVE")

	got, err := store.GetFeature(ctx, feature.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusActive, got.Status)
	assert.Equal(t, 2, got.Version)
}

func TestAdvanceParentAutoClose(t *testing.T) {
	eng, store := newTestEngine(t)
	ctx := context.Background()

	feature := seedFeature(t, store)
	first := seedTask(t, store, feature.ID, "first")
	second := seedTask(t, store, feature.ID, "second")

	_, err := eng.Advance(ctx, types.EntityTask, first.ID, 1)
	require.NoError(t, err)
	res, err := eng.Advance(ctx, types.EntityTask, first.ID, 2)
	require.NoError(t, err)
	assert.Empty(t, res.FeatureTransition, "sibling still open, no cascade")

	got, err := store.GetFeature(ctx, feature.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusActive, got.Status)

	_, err = eng.Advance(ctx, types.EntityTask, second.ID, 1)
	require.NoError(t, err)
	res, err = eng.Advance(ctx, types.EntityTask, second.ID, 2)
	require.NoError(t, err)
	assert.Contains(t, res.FeatureTransition, "auto-advanced to CLOSED")

	got, err = store.GetFeature(ctx, feature.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusClosed, got.Status)
}

func TestAdvanceAutoCloseJumpsIntermediateStates(t *testing.T) {
	activatePipeline(t,
		[]string{"NEW", "ACTIVE", "READY_TO_PROD", "CLOSED"},
		[]string{"NEW", "ACTIVE", "CLOSED"})
	eng, store := newTestEngine(t)
	ctx := context.Background()

	feature := seedFeature(t, store)
	task := seedTask(t, store, feature.ID, "only child")

	_, err := eng.Advance(ctx, types.EntityTask, task.ID, 1)
	require.NoError(t, err)
	res, err := eng.Advance(ctx, types.EntityTask, task.ID, 2)
	require.NoError(t, err)
	assert.Contains(t, res.FeatureTransition, "auto-advanced to CLOSED")

	got, err := store.GetFeature(ctx, feature.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusClosed, got.Status, "rollup skips READY_TO_PROD")
}

func TestAdvanceCompletionAutoUnblock(t *testing.T) {
	eng, store := newTestEngine(t)
	ctx := context.Background()

	a := seedTask(t, store, "", "A")
	b := seedTask(t, store, "", "B")

	_, err := eng.Block(ctx, types.EntityTask, b.ID, []string{a.ID}, "", 1)
	require.NoError(t, err)

	_, err = eng.Advance(ctx, types.EntityTask, a.ID, 1)
	require.NoError(t, err)
	res, err := eng.Advance(ctx, types.EntityTask, a.ID, 2)
	require.NoError(t, err)
	assert.Contains(t, res.UnblockedEntities, b.ID)

	got, err := store.GetTask(ctx, b.ID)
	require.NoError(t, err)
	assert.Empty(t, got.BlockedBy)
	assert.Empty(t, got.BlockedReason)
}

func TestTerminateKeepsBlockers(t *testing.T) {
	eng, store := newTestEngine(t)
	ctx := context.Background()

	a := seedTask(t, store, "", "A")
	b := seedTask(t, store, "", "B")

	_, err := eng.Block(ctx, types.EntityTask, b.ID, []string{a.ID}, "", 1)
	require.NoError(t, err)

	res, err := eng.Terminate(ctx, types.EntityTask, a.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, types.StatusWillNotImplement, res.Task.Status)
	assert.Contains(t, res.AffectedDependents, b.ID)
	assert.Empty(t, res.UnblockedEntities)

	got, err := store.GetTask(ctx, b.ID)
	require.NoError(t, err)
	assert.Contains(t, got.BlockedBy, a.ID, "terminate must not release dependents")
}

func TestTerminateBypassesBlockers(t *testing.T) {
	eng, store := newTestEngine(t)
	ctx := context.Background()

	a := seedTask(t, store, "", "A")
	b := seedTask(t, store, "", "B")

	_, err := eng.Block(ctx, types.EntityTask, b.ID, []string{a.ID}, "", 1)
	require.NoError(t, err)

	_, err = eng.Advance(ctx, types.EntityTask, b.ID, 2)
	wantCode(t, err, types.CodeValidation)

	res, err := eng.Terminate(ctx, types.EntityTask, b.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, types.StatusWillNotImplement, res.Task.Status)
}

func TestTerminateCascadesParent(t *testing.T) {
	t.Run("all abandoned", func(t *testing.T) {
		eng, store := newTestEngine(t)
		ctx := context.Background()

		feature := seedFeature(t, store)
		first := seedTask(t, store, feature.ID, "first")
		second := seedTask(t, store, feature.ID, "second")

		res, err := eng.Terminate(ctx, types.EntityTask, first.ID, 1)
		require.NoError(t, err)
		assert.Empty(t, res.FeatureTransition)

		res, err = eng.Terminate(ctx, types.EntityTask, second.ID, 1)
		require.NoError(t, err)
		assert.Contains(t, res.FeatureTransition, "auto-advanced to WILL_NOT_IMPLEMENT")

		got, err := store.GetFeature(ctx, feature.ID)
		require.NoError(t, err)
		assert.Equal(t, types.StatusWillNotImplement, got.Status)
	})

	t.Run("one closed", func(t *testing.T) {
		eng, store := newTestEngine(t)
		ctx := context.Background()

		feature := seedFeature(t, store)
		first := seedTask(t, store, feature.ID, "first")
		second := seedTask(t, store, feature.ID, "second")

		_, err := eng.Advance(ctx, types.EntityTask, first.ID, 1)
		require.NoError(t, err)
		_, err = eng.Advance(ctx, types.EntityTask, first.ID, 2)
		require.NoError(t, err)

		res, err := eng.Terminate(ctx, types.EntityTask, second.ID, 1)
		require.NoError(t, err)
		assert.Contains(t, res.FeatureTransition, "auto-advanced to CLOSED")

		got, err := store.GetFeature(ctx, feature.ID)
		require.NoError(t, err)
		assert.Equal(t, types.StatusClosed, got.Status)
	})
}

func TestRevertUndoesAdvance(t *testing.T) {
	eng, store := newTestEngine(t)
	ctx := context.Background()

	task := seedTask(t, store, "", "undo me")
	_, err := eng.Advance(ctx, types.EntityTask, task.ID, 1)
	require.NoError(t, err)

	res, err := eng.Revert(ctx, types.EntityTask, task.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, workflow.Transition{From: "ACTIVE", To: "NEW"}, res.Transition)
	assert.Equal(t, types.StatusNew, res.Task.Status)
	assert.Equal(t, 3, res.Task.Version)
}

func TestRevertAtFirstStateFails(t *testing.T) {
	eng, store := newTestEngine(t)
	ctx := context.Background()

	task := seedTask(t, store, "", "brand new")
	_, err := eng.Revert(ctx, types.EntityTask, task.ID, 1)
	wantCode(t, err, types.CodeValidation)
	assert.Contains(t, err.Error(), "first")
}

func TestRevertIgnoresBlockers(t *testing.T) {
	eng, store := newTestEngine(t)
	ctx := context.Background()

	task := seedTask(t, store, "", "stuck")
	_, err := eng.Advance(ctx, types.EntityTask, task.ID, 1)
	require.NoError(t, err)
	_, err = eng.Block(ctx, types.EntityTask, task.ID, []string{types.BlockerNoOp}, "waiting on vendor", 2)
	require.NoError(t, err)

	res, err := eng.Revert(ctx, types.EntityTask, task.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, types.StatusNew, res.Task.Status)
}

func TestBlockValidation(t *testing.T) {
	eng, store := newTestEngine(t)
	ctx := context.Background()

	a := seedTask(t, store, "", "A")
	b := seedTask(t, store, "", "B")

	_, err := eng.Block(ctx, types.EntityTask, a.ID, nil, "", 1)
	wantCode(t, err, types.CodeValidation)

	_, err = eng.Block(ctx, types.EntityTask, a.ID, []string{a.ID}, "", 1)
	wantCode(t, err, types.CodeSelfDependency)

	_, err = eng.Block(ctx, types.EntityTask, a.ID, []string{"nope"}, "", 1)
	wantCode(t, err, types.CodeNotFound)

	_, err = eng.Block(ctx, types.EntityTask, a.ID, []string{types.BlockerNoOp}, "", 1)
	wantCode(t, err, types.CodeValidation)

	_, err = eng.Block(ctx, types.EntityTask, a.ID, []string{b.ID}, "reason without NO_OP", 1)
	wantCode(t, err, types.CodeValidation)
}

func TestBlockRefusesTerminalEnds(t *testing.T) {
	eng, store := newTestEngine(t)
	ctx := context.Background()

	closed := seedTask(t, store, "", "done already")
	_, err := eng.Advance(ctx, types.EntityTask, closed.ID, 1)
	require.NoError(t, err)
	_, err = eng.Advance(ctx, types.EntityTask, closed.ID, 2)
	require.NoError(t, err)

	open := seedTask(t, store, "", "still open")

	_, err = eng.Block(ctx, types.EntityTask, open.ID, []string{closed.ID}, "", 1)
	wantCode(t, err, types.CodeValidation)

	_, err = eng.Block(ctx, types.EntityTask, closed.ID, []string{open.ID}, "", 3)
	wantCode(t, err, types.CodeValidation)
}

func TestBlockRejectsCycles(t *testing.T) {
	eng, store := newTestEngine(t)
	ctx := context.Background()

	a := seedTask(t, store, "", "A")
	b := seedTask(t, store, "", "B")
	c := seedTask(t, store, "", "C")

	_, err := eng.Block(ctx, types.EntityTask, b.ID, []string{a.ID}, "", 1)
	require.NoError(t, err)
	_, err = eng.Block(ctx, types.EntityTask, c.ID, []string{b.ID}, "", 1)
	require.NoError(t, err)

	_, err = eng.Block(ctx, types.EntityTask, a.ID, []string{c.ID}, "", 1)
	wantCode(t, err, types.CodeCircularDependency)
}

func TestBlockIsIdempotent(t *testing.T) {
	eng, store := newTestEngine(t)
	ctx := context.Background()

	a := seedTask(t, store, "", "A")
	b := seedTask(t, store, "", "B")

	res, err := eng.Block(ctx, types.EntityTask, b.ID, []string{a.ID}, "", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID}, res.Task.BlockedBy)
	assert.Equal(t, 2, res.Task.Version)

	res, err = eng.Block(ctx, types.EntityTask, b.ID, []string{a.ID}, "", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID}, res.Task.BlockedBy)
	assert.Equal(t, 2, res.Task.Version, "no-op block must not bump the version")
}

func TestUnblockClearsReasonWithNoOp(t *testing.T) {
	eng, store := newTestEngine(t)
	ctx := context.Background()

	a := seedTask(t, store, "", "A")
	b := seedTask(t, store, "", "B")

	_, err := eng.Block(ctx, types.EntityTask, b.ID, []string{a.ID, types.BlockerNoOp}, "waiting on design", 1)
	require.NoError(t, err)

	res, err := eng.Unblock(ctx, types.EntityTask, b.ID, []string{a.ID}, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{types.BlockerNoOp}, res.Task.BlockedBy)
	assert.Equal(t, "waiting on design", res.Task.BlockedReason, "reason survives while NO_OP remains")

	res, err = eng.Unblock(ctx, types.EntityTask, b.ID, []string{types.BlockerNoOp}, 3)
	require.NoError(t, err)
	assert.Empty(t, res.Task.BlockedBy)
	assert.Empty(t, res.Task.BlockedReason)
}

func TestUnblockAbsentIsNoOp(t *testing.T) {
	eng, store := newTestEngine(t)
	ctx := context.Background()

	task := seedTask(t, store, "", "free")
	res, err := eng.Unblock(ctx, types.EntityTask, task.ID, []string{"ghost"}, 1)
	require.NoError(t, err)
	assert.Empty(t, res.Task.BlockedBy)
	assert.Equal(t, 1, res.Task.Version, "no-op unblock must not bump the version")
}

func TestWorkflowVersionConflict(t *testing.T) {
	eng, store := newTestEngine(t)
	ctx := context.Background()

	task := seedTask(t, store, "", "contended")
	_, err := eng.Advance(ctx, types.EntityTask, task.ID, 999)
	wantCode(t, err, types.CodeConflict)
}

func TestWorkflowRejectsProjects(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.Advance(ctx, types.EntityProject, "p-1", 1)
	wantCode(t, err, types.CodeValidation)
	_, err = eng.Block(ctx, types.EntityProject, "p-1", []string{"x"}, "", 1)
	wantCode(t, err, types.CodeValidation)
}

func TestAdvanceFeatureDirectly(t *testing.T) {
	eng, store := newTestEngine(t)
	ctx := context.Background()

	feature := seedFeature(t, store)
	res, err := eng.Advance(ctx, types.EntityFeature, feature.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, types.StatusActive, res.Feature.Status)
	assert.Nil(t, res.Task)

	res, err = eng.Advance(ctx, types.EntityFeature, feature.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, types.StatusClosed, res.Feature.Status)
}
