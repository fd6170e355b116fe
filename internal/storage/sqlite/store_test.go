package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alioshr/task-orchestrator-sub000/internal/pipeline"
	"github.com/alioshr/task-orchestrator-sub000/internal/storage"
	"github.com/alioshr/task-orchestrator-sub000/internal/types"
)

// newTestStore opens a fresh store in a temp dir and registers cleanup.
// Tests that need a non-default pipeline call activatePipeline first.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "tasks.db")
	store, err := Open(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		pipeline.Reset()
		if err := store.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	return store
}

// activatePipeline installs a custom pipeline configuration for one test.
func activatePipeline(t *testing.T, feature, task []string) {
	t.Helper()
	cfg, err := pipeline.NewConfig(pipeline.ConfigData{
		Version: pipeline.ConfigVersion,
		Pipelines: pipeline.PipelineLists{
			Feature: feature,
			Task:    task,
		},
	})
	if err != nil {
		t.Fatalf("build pipeline config: %v", err)
	}
	pipeline.Activate(cfg)
	t.Cleanup(pipeline.Reset)
}

func seedProject(t *testing.T, store *Store) *types.Project {
	t.Helper()
	p, err := store.CreateProject(context.Background(), types.NewProject{
		Name:    "payments",
		Summary: "payment processing rework",
	})
	if err != nil {
		t.Fatalf("seed project: %v", err)
	}
	return p
}

func seedFeature(t *testing.T, store *Store, projectID string) *types.Feature {
	t.Helper()
	f, err := store.CreateFeature(context.Background(), types.NewFeature{
		ProjectID: projectID,
		Name:      "checkout flow",
		Summary:   "rebuild the checkout flow",
	})
	if err != nil {
		t.Fatalf("seed feature: %v", err)
	}
	return f
}

func seedTask(t *testing.T, store *Store, featureID string) *types.Task {
	t.Helper()
	task, err := store.CreateTask(context.Background(), types.NewTask{
		FeatureID:  featureID,
		Title:      "wire the gateway",
		Summary:    "connect the new gateway client",
		Complexity: 3,
	})
	if err != nil {
		t.Fatalf("seed task: %v", err)
	}
	return task
}

func wantCode(t *testing.T, err error, code types.ErrorCode) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	if got := types.CodeOf(err); got != code {
		t.Fatalf("error code = %s, want %s (err: %v)", got, code, err)
	}
}

func TestOpenRunsMigrations(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("stats on fresh store: %v", err)
	}
	if stats.Projects != 0 || stats.Features != 0 || stats.Tasks != 0 {
		t.Errorf("fresh store not empty: %+v", stats)
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "tasks.db")
	ctx := context.Background()

	store, err := Open(ctx, dbPath)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	p, err := store.CreateProject(ctx, types.NewProject{Name: "alpha", Summary: "first"})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// Reopening must not re-run applied migrations or lose data.
	store, err = Open(ctx, dbPath)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	defer store.Close()

	got, err := store.GetProject(ctx, p.ID)
	if err != nil {
		t.Fatalf("get project after reopen: %v", err)
	}
	if got.Name != "alpha" {
		t.Errorf("project name = %q, want %q", got.Name, "alpha")
	}
}

func TestHasWorkflowData(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	has, err := store.HasWorkflowData(ctx)
	if err != nil {
		t.Fatalf("HasWorkflowData: %v", err)
	}
	if has {
		t.Error("fresh store should report no workflow data")
	}

	seedProject(t, store)
	has, err = store.HasWorkflowData(ctx)
	if err != nil {
		t.Fatalf("HasWorkflowData after project: %v", err)
	}
	if !has {
		t.Error("a project row should count as workflow data")
	}
}

func TestRunInTransactionRollsBack(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	p := seedProject(t, store)

	wantErr := types.Validationf("forced failure")
	err := store.RunInTransaction(ctx, func(tx storage.Tx) error {
		if _, err := tx.CreateFeature(ctx, types.NewFeature{
			ProjectID: p.ID,
			Name:      "doomed",
			Summary:   "rolled back",
		}); err != nil {
			return err
		}
		return wantErr
	})
	if err == nil {
		t.Fatal("transaction should have failed")
	}
	wantCode(t, err, types.CodeValidation)

	feats, err := store.SearchFeatures(ctx, types.SearchOptions{ProjectID: p.ID})
	if err != nil {
		t.Fatalf("search features: %v", err)
	}
	if len(feats) != 0 {
		t.Errorf("rollback left %d feature(s) behind", len(feats))
	}
}

func TestRunInTransactionNests(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	p := seedProject(t, store)

	err := store.RunInTransaction(ctx, func(tx storage.Tx) error {
		f, err := tx.CreateFeature(ctx, types.NewFeature{
			ProjectID: p.ID,
			Name:      "outer",
			Summary:   "outer feature",
		})
		if err != nil {
			return err
		}
		// Nested call joins the enclosing transaction instead of deadlocking.
		return tx.RunInTransaction(ctx, func(inner storage.Tx) error {
			_, err := inner.CreateTask(ctx, types.NewTask{
				FeatureID:  f.ID,
				Title:      "inner",
				Summary:    "inner task",
				Complexity: 1,
			})
			return err
		})
	})
	if err != nil {
		t.Fatalf("nested transaction: %v", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Features != 1 || stats.Tasks != 1 {
		t.Errorf("got %d features, %d tasks; want 1 and 1", stats.Features, stats.Tasks)
	}
}
