package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/alioshr/task-orchestrator-sub000/internal/types"
)

func TestCreateTaskDerivesProject(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	p := seedProject(t, store)
	f := seedFeature(t, store, p.ID)

	task, err := store.CreateTask(ctx, types.NewTask{
		FeatureID:  f.ID,
		Title:      "wire gateway",
		Summary:    "hook up the client",
		Complexity: 5,
	})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if task.FeatureID != f.ID {
		t.Errorf("feature_id = %q, want %q", task.FeatureID, f.ID)
	}
	if task.ProjectID != p.ID {
		t.Errorf("project_id = %q, want derived %q", task.ProjectID, p.ID)
	}
	if task.Status != types.StatusNew {
		t.Errorf("status = %q, want pipeline start", task.Status)
	}
	if task.Complexity != 5 {
		t.Errorf("complexity = %d, want 5", task.Complexity)
	}
}

func TestCreateTaskOrphan(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	task, err := store.CreateTask(ctx, types.NewTask{
		Title:      "standalone chore",
		Summary:    "no feature yet",
		Complexity: 1,
	})
	if err != nil {
		t.Fatalf("CreateTask orphan: %v", err)
	}
	if task.FeatureID != "" || task.ProjectID != "" {
		t.Errorf("orphan task has links: feature=%q project=%q", task.FeatureID, task.ProjectID)
	}
}

func TestCreateTaskValidation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   types.NewTask
		code types.ErrorCode
	}{
		{"missing title", types.NewTask{Summary: "s", Complexity: 1}, types.CodeValidation},
		{"missing summary", types.NewTask{Title: "t", Complexity: 1}, types.CodeValidation},
		{"complexity too low", types.NewTask{Title: "t", Summary: "s", Complexity: 0}, types.CodeValidation},
		{"complexity too high", types.NewTask{Title: "t", Summary: "s", Complexity: 11}, types.CodeValidation},
		{"unknown feature", types.NewTask{FeatureID: "nope", Title: "t", Summary: "s", Complexity: 1}, types.CodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.CreateTask(ctx, tt.in)
			wantCode(t, err, tt.code)
		})
	}
}

func TestUpdateTaskComplexity(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	p := seedProject(t, store)
	f := seedFeature(t, store, p.ID)
	task := seedTask(t, store, f.ID)

	got, err := store.UpdateTask(ctx, task.ID, map[string]interface{}{"complexity": 8}, task.Version)
	if err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}
	if got.Complexity != 8 {
		t.Errorf("complexity = %d, want 8", got.Complexity)
	}

	_, err = store.UpdateTask(ctx, task.ID, map[string]interface{}{"complexity": 11}, got.Version)
	wantCode(t, err, types.CodeValidation)
}

func TestUpdateTaskVersionConflict(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	p := seedProject(t, store)
	f := seedFeature(t, store, p.ID)
	task := seedTask(t, store, f.ID)

	_, err := store.UpdateTask(ctx, task.ID, map[string]interface{}{"title": "renamed"}, 999)
	wantCode(t, err, types.CodeConflict)

	// The row is untouched after the refused write.
	got, err := store.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.Title != task.Title || got.Version != task.Version {
		t.Errorf("refused update mutated the row: %+v", got)
	}
}

func TestDeleteTaskScrubsReferences(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	p := seedProject(t, store)
	f := seedFeature(t, store, p.ID)
	victim := seedTask(t, store, f.ID)

	dependent, err := store.CreateTask(ctx, types.NewTask{
		FeatureID: f.ID, Title: "dependent", Summary: "waits", Complexity: 2,
	})
	if err != nil {
		t.Fatalf("create dependent: %v", err)
	}
	if err := store.SetBlockers(ctx, types.EntityTask, dependent.ID,
		[]string{victim.ID, types.BlockerNoOp}, "waiting on review", dependent.Version); err != nil {
		t.Fatalf("SetBlockers: %v", err)
	}

	if err := store.DeleteTask(ctx, victim.ID); err != nil {
		t.Fatalf("DeleteTask: %v", err)
	}

	got, err := store.GetTask(ctx, dependent.ID)
	if err != nil {
		t.Fatalf("reload dependent: %v", err)
	}
	if len(got.BlockedBy) != 1 || got.BlockedBy[0] != types.BlockerNoOp {
		t.Errorf("blocked_by = %v, want only the NO_OP sentinel left", got.BlockedBy)
	}
	// The reason survives because NO_OP is still present.
	if got.BlockedReason != "waiting on review" {
		t.Errorf("blocked_reason = %q, want preserved", got.BlockedReason)
	}
}

func TestDeleteTaskClearsReasonWithLastBlocker(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	p := seedProject(t, store)
	f := seedFeature(t, store, p.ID)
	victim := seedTask(t, store, f.ID)

	dependent, err := store.CreateTask(ctx, types.NewTask{
		FeatureID: f.ID, Title: "dependent", Summary: "waits", Complexity: 2,
	})
	if err != nil {
		t.Fatalf("create dependent: %v", err)
	}
	if err := store.SetBlockers(ctx, types.EntityTask, dependent.ID,
		[]string{victim.ID}, "hard dependency", dependent.Version); err != nil {
		t.Fatalf("SetBlockers: %v", err)
	}

	if err := store.DeleteTask(ctx, victim.ID); err != nil {
		t.Fatalf("DeleteTask: %v", err)
	}

	got, err := store.GetTask(ctx, dependent.ID)
	if err != nil {
		t.Fatalf("reload dependent: %v", err)
	}
	if len(got.BlockedBy) != 0 {
		t.Errorf("blocked_by = %v, want empty", got.BlockedBy)
	}
	if got.BlockedReason != "" {
		t.Errorf("blocked_reason = %q, want cleared without NO_OP", got.BlockedReason)
	}
}

func TestTasksByFeature(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	p := seedProject(t, store)
	f := seedFeature(t, store, p.ID)

	titles := []string{"first", "second", "third"}
	for _, title := range titles {
		if _, err := store.CreateTask(ctx, types.NewTask{
			FeatureID: f.ID, Title: title, Summary: "s", Complexity: 1,
		}); err != nil {
			t.Fatalf("create %s: %v", title, err)
		}
		// Keep created_at strictly increasing; it only has millisecond
		// resolution.
		time.Sleep(2 * time.Millisecond)
	}

	got, err := store.TasksByFeature(ctx, f.ID)
	if err != nil {
		t.Fatalf("TasksByFeature: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d tasks, want 3", len(got))
	}
	// Oldest first.
	for i, title := range titles {
		if got[i].Title != title {
			t.Errorf("position %d = %q, want %q", i, got[i].Title, title)
		}
	}
}

func TestSearchTasks(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	p := seedProject(t, store)
	f := seedFeature(t, store, p.ID)

	mk := func(featureID, title string, prio types.Priority, tags ...string) *types.Task {
		task, err := store.CreateTask(ctx, types.NewTask{
			FeatureID: featureID, Title: title, Summary: "s",
			Priority: prio, Complexity: 1, Tags: tags,
		})
		if err != nil {
			t.Fatalf("create %s: %v", title, err)
		}
		return task
	}
	mk(f.ID, "deploy", types.PriorityHigh, "ops")
	mk(f.ID, "test", types.PriorityLow)
	mk("", "floating", types.PriorityMedium)

	tests := []struct {
		name string
		opts types.SearchOptions
		want []string
	}{
		{"by feature", types.SearchOptions{FeatureID: f.ID}, []string{"deploy", "test"}},
		{"by project", types.SearchOptions{ProjectID: p.ID}, []string{"deploy", "test"}},
		{"by priority", types.SearchOptions{Priority: "MEDIUM"}, []string{"floating"}},
		{"by tag", types.SearchOptions{Tags: "ops"}, []string{"deploy"}},
		{"everything", types.SearchOptions{}, []string{"deploy", "test", "floating"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.SearchTasks(ctx, tt.opts)
			if err != nil {
				t.Fatalf("SearchTasks: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d tasks, want %d", len(got), len(tt.want))
			}
			titles := make(map[string]bool, len(got))
			for _, task := range got {
				titles[task.Title] = true
			}
			for _, w := range tt.want {
				if !titles[w] {
					t.Errorf("missing task %q", w)
				}
			}
		})
	}
}
