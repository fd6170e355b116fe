package sqlite

import (
	"context"
	"testing"

	"github.com/alioshr/task-orchestrator-sub000/internal/types"
)

func TestPipelineLockRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, found, err := store.PipelineLock(ctx)
	if err != nil {
		t.Fatalf("PipelineLock: %v", err)
	}
	if found {
		t.Error("fresh store should have no lock row")
	}

	payload := `{"version":"3.0","pipelines":{"feature":["NEW","CLOSED"],"task":["NEW","CLOSED"]}}`
	if err := store.SavePipelineLock(ctx, payload); err != nil {
		t.Fatalf("SavePipelineLock: %v", err)
	}

	got, found, err := store.PipelineLock(ctx)
	if err != nil {
		t.Fatalf("PipelineLock after save: %v", err)
	}
	if !found || got != payload {
		t.Errorf("lock = %q found=%v, want saved payload", got, found)
	}

	// Saving again overwrites the single row.
	updated := `{"version":"3.0","pipelines":{"feature":["NEW","ACTIVE","CLOSED"],"task":["NEW","CLOSED"]}}`
	if err := store.SavePipelineLock(ctx, updated); err != nil {
		t.Fatalf("second save: %v", err)
	}
	got, _, err = store.PipelineLock(ctx)
	if err != nil {
		t.Fatalf("PipelineLock after update: %v", err)
	}
	if got != updated {
		t.Errorf("lock = %q, want overwritten payload", got)
	}
}

func TestStatusCounts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	p := seedProject(t, store)

	seedFeature(t, store, p.ID)
	active, err := store.CreateFeature(ctx, types.NewFeature{
		ProjectID: p.ID, Name: "second", Summary: "s",
	})
	if err != nil {
		t.Fatalf("create feature: %v", err)
	}
	if err := store.SetWorkflowStatus(ctx, types.EntityFeature, active.ID,
		types.StatusActive, active.Version); err != nil {
		t.Fatalf("set status: %v", err)
	}

	counts, err := store.StatusCounts(ctx, types.EntityFeature)
	if err != nil {
		t.Fatalf("StatusCounts: %v", err)
	}
	if counts[types.StatusNew] != 1 || counts[types.StatusActive] != 1 {
		t.Errorf("counts = %v, want one NEW and one ACTIVE", counts)
	}

	_, err = store.StatusCounts(ctx, types.EntityProject)
	wantCode(t, err, types.CodeValidation)
}

func TestStats(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	p := seedProject(t, store)
	f := seedFeature(t, store, p.ID)
	task := seedTask(t, store, f.ID)
	seedAtom(t, store, p.ID)
	seedMolecule(t, store, p.ID, "group")
	addSection(t, store, types.EntityProject, p.ID, "overview")

	if _, err := store.AppendChangelog(ctx, types.NewChangelog{
		ParentType: types.ChangelogParentAtom,
		ParentID:   seedAtom(t, store, p.ID, "docs/**").ID,
		TaskID:     task.ID,
		Summary:    "entry",
	}); err != nil {
		t.Fatalf("append changelog: %v", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Projects != 1 || stats.Features != 1 || stats.Tasks != 1 {
		t.Errorf("hierarchy counts = %d/%d/%d, want 1/1/1",
			stats.Projects, stats.Features, stats.Tasks)
	}
	if stats.Atoms != 2 || stats.Molecules != 1 || stats.Changelog != 1 {
		t.Errorf("graph counts = %d/%d/%d, want 2/1/1",
			stats.Atoms, stats.Molecules, stats.Changelog)
	}
	if stats.Sections != 1 {
		t.Errorf("sections = %d, want 1", stats.Sections)
	}
	if stats.FeatureStatus[types.StatusNew] != 1 {
		t.Errorf("feature status map = %v", stats.FeatureStatus)
	}
	if stats.TaskStatus[types.StatusNew] != 1 {
		t.Errorf("task status map = %v", stats.TaskStatus)
	}
}
