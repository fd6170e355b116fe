package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/alioshr/task-orchestrator-sub000/internal/pipeline"
	"github.com/alioshr/task-orchestrator-sub000/internal/types"
)

func (s *Store) CreateTask(ctx context.Context, task types.NewTask) (*types.Task, error) {
	var out *types.Task
	err := s.write(ctx, func(tx *Tx) error {
		var err error
		out, err = tx.CreateTask(ctx, task)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) GetTask(ctx context.Context, id string) (*types.Task, error) {
	return s.reader().GetTask(ctx, id)
}

func (s *Store) UpdateTask(ctx context.Context, id string, updates map[string]interface{}, expectedVersion int) (*types.Task, error) {
	var out *types.Task
	err := s.write(ctx, func(tx *Tx) error {
		var err error
		out, err = tx.UpdateTask(ctx, id, updates, expectedVersion)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) DeleteTask(ctx context.Context, id string) error {
	return s.write(ctx, func(tx *Tx) error {
		return tx.DeleteTask(ctx, id)
	})
}

func (s *Store) SearchTasks(ctx context.Context, opts types.SearchOptions) ([]*types.Task, error) {
	return s.reader().SearchTasks(ctx, opts)
}

func (s *Store) TasksByFeature(ctx context.Context, featureID string) ([]*types.Task, error) {
	return s.reader().TasksByFeature(ctx, featureID)
}

// CreateTask inserts a task, optionally under a feature. The project link is
// always derived from the feature, never supplied by the caller.
func (t *Tx) CreateTask(ctx context.Context, task types.NewTask) (*types.Task, error) {
	if err := task.Validate(); err != nil {
		return nil, err
	}

	var featureID, projectID interface{}
	if task.FeatureID != "" {
		feature, err := t.GetFeature(ctx, task.FeatureID)
		if err != nil {
			return nil, err
		}
		featureID = feature.ID
		if feature.ProjectID != "" {
			projectID = feature.ProjectID
		}
	}

	id := generateID()
	ts := formatTime(now())
	title := strings.TrimSpace(task.Title)
	start := pipeline.Active().PipelineFor(types.EntityTask).First()
	_, err := t.q.ExecContext(ctx, `
		INSERT INTO tasks (id, feature_id, project_id, title, summary, description,
		                   status, priority, complexity, blocked_by, blocked_reason,
		                   related_to, dependencies, version, search_vector,
		                   created_at, modified_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, '[]', NULL, '[]', '[]', 1, ?, ?, ?)`,
		id, featureID, projectID, title, task.Summary, task.Description,
		start, string(task.Priority), task.Complexity,
		searchVector(title, task.Summary, task.Description), ts, ts)
	if err != nil {
		return nil, wrapDBError("create task", err)
	}
	if err := replaceTags(ctx, t.q, types.EntityTask, id, task.Tags); err != nil {
		return nil, err
	}
	return t.GetTask(ctx, id)
}

func (t *Tx) GetTask(ctx context.Context, id string) (*types.Task, error) {
	row := t.q.QueryRowContext(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE id = ?", id)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.NotFoundf("task %s not found", id)
	}
	if err != nil {
		return nil, wrapDBError("get task", err)
	}
	tags, err := loadTagsFor(ctx, t.q, types.EntityTask, []string{task.ID})
	if err != nil {
		return nil, err
	}
	task.Tags = tags[task.ID]
	return task, nil
}

func (t *Tx) UpdateTask(ctx context.Context, id string, updates map[string]interface{}, expectedVersion int) (*types.Task, error) {
	current, err := t.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkVersion("task", id, expectedVersion, current.Version); err != nil {
		return nil, err
	}

	title, summary, description := current.Title, current.Summary, current.Description
	status := current.Status
	priority := current.Priority
	complexity := current.Complexity
	relatedTo := current.RelatedTo
	var tags []string
	tagsSet := false

	for key, v := range updates {
		switch key {
		case "title":
			title, err = requiredStringValue(key, v)
		case "summary":
			summary, err = requiredStringValue(key, v)
		case "description":
			description, err = stringValue(key, v)
		case "status":
			status, err = requiredStringValue(key, v)
		case "priority":
			var p string
			if p, err = requiredStringValue(key, v); err == nil {
				priority = types.Priority(strings.ToUpper(p))
				if !priority.IsValid() {
					return nil, types.Validationf("invalid priority %q", p)
				}
			}
		case "complexity":
			if complexity, err = intValue(key, v); err == nil {
				if complexity < 1 || complexity > 10 {
					return nil, types.Validationf("complexity must be between 1 and 10, got %d", complexity)
				}
			}
		case "related_to":
			if relatedTo, err = stringListValue(key, v); err == nil {
				err = t.checkRelatedRefs(ctx, relatedTo, id)
			}
		case "tags":
			tags, err = stringListValue(key, v)
			tagsSet = true
		default:
			return nil, types.Validationf("unknown task field %q", key)
		}
		if err != nil {
			return nil, err
		}
	}

	if status != current.Status {
		v := pipeline.ActiveValidator()
		if v.IsTerminal(types.EntityTask, current.Status) {
			return nil, types.Validationf("task %s is in terminal state %s", id, current.Status)
		}
		if !v.IsValidTransition(types.EntityTask, current.Status, status) {
			return nil, types.Validationf("invalid status transition %s -> %s for task %s",
				current.Status, status, id)
		}
	}

	res, err := t.q.ExecContext(ctx, `
		UPDATE tasks
		SET title = ?, summary = ?, description = ?, status = ?, priority = ?,
		    complexity = ?, related_to = ?, search_vector = ?, version = version + 1,
		    modified_at = ?
		WHERE id = ? AND version = ?`,
		title, summary, description, status, string(priority), complexity,
		encodeList(relatedTo), searchVector(title, summary, description),
		formatTime(now()), id, current.Version)
	if err != nil {
		return nil, wrapDBError("update task", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, types.Conflictf("task %s was modified concurrently", id)
	}
	if tagsSet {
		if err := replaceTags(ctx, t.q, types.EntityTask, id, tags); err != nil {
			return nil, err
		}
	}
	return t.GetTask(ctx, id)
}

// DeleteTask removes a task and scrubs its id from every peer blocker and
// relation list.
func (t *Tx) DeleteTask(ctx context.Context, id string) error {
	if _, err := t.GetTask(ctx, id); err != nil {
		return err
	}
	if err := t.scrubEntityRefs(ctx, id); err != nil {
		return err
	}
	if err := deleteSectionsFor(ctx, t.q, types.EntityTask, id); err != nil {
		return err
	}
	if err := deleteTags(ctx, t.q, types.EntityTask, id); err != nil {
		return err
	}
	if _, err := t.q.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id); err != nil {
		return wrapDBError("delete task", err)
	}
	return nil
}

func (t *Tx) SearchTasks(ctx context.Context, opts types.SearchOptions) ([]*types.Task, error) {
	qb := &queryBuilder{}
	qb.applyQuery(opts.Query)
	if opts.ProjectID != "" {
		qb.add("project_id = ?", opts.ProjectID)
	}
	if opts.FeatureID != "" {
		qb.add("feature_id = ?", opts.FeatureID)
	}
	qb.applyEnumFilter("status", opts.Status)
	qb.applyEnumFilter("priority", opts.Priority)
	qb.applyTagsAny(types.EntityTask, splitList(opts.Tags))

	query := "SELECT " + taskColumns + " FROM tasks" + qb.clause() +
		" ORDER BY created_at DESC, id ASC"
	page, pageArgs := pagination(opts.Limit, opts.Offset)
	rows, err := t.q.QueryContext(ctx, query+page, append(qb.args, pageArgs...)...)
	if err != nil {
		return nil, wrapDBError("search tasks", err)
	}
	defer rows.Close()
	return t.collectTasks(ctx, rows)
}

// TasksByFeature lists a feature's tasks oldest first, the order the
// auto-close rule scans siblings in.
func (t *Tx) TasksByFeature(ctx context.Context, featureID string) ([]*types.Task, error) {
	rows, err := t.q.QueryContext(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE feature_id = ? ORDER BY created_at ASC, id ASC",
		featureID)
	if err != nil {
		return nil, wrapDBError("list tasks by feature", err)
	}
	defer rows.Close()
	return t.collectTasks(ctx, rows)
}

func (t *Tx) collectTasks(ctx context.Context, rows *sql.Rows) ([]*types.Task, error) {
	var (
		tasks []*types.Task
		ids   []string
	)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, wrapDBError("scan task", err)
		}
		tasks = append(tasks, task)
		ids = append(ids, task.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError("list tasks", err)
	}

	tags, err := loadTagsFor(ctx, t.q, types.EntityTask, ids)
	if err != nil {
		return nil, err
	}
	for _, task := range tasks {
		task.Tags = tags[task.ID]
	}
	return tasks, nil
}
