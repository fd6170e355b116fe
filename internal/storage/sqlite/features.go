package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/alioshr/task-orchestrator-sub000/internal/pipeline"
	"github.com/alioshr/task-orchestrator-sub000/internal/types"
)

func (s *Store) CreateFeature(ctx context.Context, f types.NewFeature) (*types.Feature, error) {
	var out *types.Feature
	err := s.write(ctx, func(tx *Tx) error {
		var err error
		out, err = tx.CreateFeature(ctx, f)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) GetFeature(ctx context.Context, id string) (*types.Feature, error) {
	return s.reader().GetFeature(ctx, id)
}

func (s *Store) UpdateFeature(ctx context.Context, id string, updates map[string]interface{}, expectedVersion int) (*types.Feature, error) {
	var out *types.Feature
	err := s.write(ctx, func(tx *Tx) error {
		var err error
		out, err = tx.UpdateFeature(ctx, id, updates, expectedVersion)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) DeleteFeature(ctx context.Context, id string, cascade bool) error {
	return s.write(ctx, func(tx *Tx) error {
		return tx.DeleteFeature(ctx, id, cascade)
	})
}

func (s *Store) SearchFeatures(ctx context.Context, opts types.SearchOptions) ([]*types.Feature, error) {
	return s.reader().SearchFeatures(ctx, opts)
}

// CreateFeature inserts a feature under an existing project, starting at the
// first state of the active feature pipeline.
func (t *Tx) CreateFeature(ctx context.Context, f types.NewFeature) (*types.Feature, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if _, err := t.GetProject(ctx, f.ProjectID); err != nil {
		return nil, err
	}

	id := generateID()
	ts := formatTime(now())
	name := strings.TrimSpace(f.Name)
	start := pipeline.Active().PipelineFor(types.EntityFeature).First()
	_, err := t.q.ExecContext(ctx, `
		INSERT INTO features (id, project_id, name, summary, description, status,
		                      priority, blocked_by, blocked_reason, related_to,
		                      version, search_vector, created_at, modified_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, '[]', NULL, '[]', 1, ?, ?, ?)`,
		id, f.ProjectID, name, f.Summary, f.Description, start, string(f.Priority),
		searchVector(name, f.Summary, f.Description), ts, ts)
	if err != nil {
		return nil, wrapDBError("create feature", err)
	}
	if err := replaceTags(ctx, t.q, types.EntityFeature, id, f.Tags); err != nil {
		return nil, err
	}
	return t.GetFeature(ctx, id)
}

func (t *Tx) GetFeature(ctx context.Context, id string) (*types.Feature, error) {
	row := t.q.QueryRowContext(ctx,
		"SELECT "+featureColumns+" FROM features WHERE id = ?", id)
	f, err := scanFeature(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.NotFoundf("feature %s not found", id)
	}
	if err != nil {
		return nil, wrapDBError("get feature", err)
	}
	tags, err := loadTagsFor(ctx, t.q, types.EntityFeature, []string{f.ID})
	if err != nil {
		return nil, err
	}
	f.Tags = tags[f.ID]
	return f, nil
}

func (t *Tx) UpdateFeature(ctx context.Context, id string, updates map[string]interface{}, expectedVersion int) (*types.Feature, error) {
	current, err := t.GetFeature(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkVersion("feature", id, expectedVersion, current.Version); err != nil {
		return nil, err
	}

	name, summary, description := current.Name, current.Summary, current.Description
	status := current.Status
	priority := current.Priority
	relatedTo := current.RelatedTo
	var tags []string
	tagsSet := false

	for key, v := range updates {
		switch key {
		case "name":
			name, err = requiredStringValue(key, v)
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
		case "related_to":
			if relatedTo, err = stringListValue(key, v); err == nil {
				err = t.checkRelatedRefs(ctx, relatedTo, id)
			}
		case "tags":
			tags, err = stringListValue(key, v)
			tagsSet = true
		default:
			return nil, types.Validationf("unknown feature field %q", key)
		}
		if err != nil {
			return nil, err
		}
	}

	if status != current.Status {
		v := pipeline.ActiveValidator()
		if v.IsTerminal(types.EntityFeature, current.Status) {
			return nil, types.Validationf("feature %s is in terminal state %s", id, current.Status)
		}
		if !v.IsValidTransition(types.EntityFeature, current.Status, status) {
			return nil, types.Validationf("invalid status transition %s -> %s for feature %s",
				current.Status, status, id)
		}
	}

	res, err := t.q.ExecContext(ctx, `
		UPDATE features
		SET name = ?, summary = ?, description = ?, status = ?, priority = ?,
		    related_to = ?, search_vector = ?, version = version + 1, modified_at = ?
		WHERE id = ? AND version = ?`,
		name, summary, description, status, string(priority), encodeList(relatedTo),
		searchVector(name, summary, description), formatTime(now()), id, current.Version)
	if err != nil {
		return nil, wrapDBError("update feature", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, types.Conflictf("feature %s was modified concurrently", id)
	}
	if tagsSet {
		if err := replaceTags(ctx, t.q, types.EntityFeature, id, tags); err != nil {
			return nil, err
		}
	}
	return t.GetFeature(ctx, id)
}

// DeleteFeature removes a feature. Without cascade it refuses when tasks
// exist. The feature's id is scrubbed from every peer blocker and relation
// list so no dangling references survive.
func (t *Tx) DeleteFeature(ctx context.Context, id string, cascade bool) error {
	if _, err := t.GetFeature(ctx, id); err != nil {
		return err
	}

	var tasks int
	if err := t.q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM tasks WHERE feature_id = ?", id).Scan(&tasks); err != nil {
		return wrapDBError("count tasks", err)
	}
	if tasks > 0 && !cascade {
		return types.HasChildrenf("feature %s has %d task(s); delete them or retry with cascade", id, tasks)
	}
	if cascade && tasks > 0 {
		rows, err := t.q.QueryContext(ctx,
			"SELECT id FROM tasks WHERE feature_id = ?", id)
		if err != nil {
			return wrapDBError("list tasks", err)
		}
		var ids []string
		for rows.Next() {
			var tid string
			if err := rows.Scan(&tid); err != nil {
				rows.Close()
				return wrapDBError("scan task id", err)
			}
			ids = append(ids, tid)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return wrapDBError("list tasks", err)
		}
		rows.Close()
		for _, tid := range ids {
			if err := t.DeleteTask(ctx, tid); err != nil {
				return err
			}
		}
	}

	if err := t.scrubEntityRefs(ctx, id); err != nil {
		return err
	}
	if err := deleteSectionsFor(ctx, t.q, types.EntityFeature, id); err != nil {
		return err
	}
	if err := deleteTags(ctx, t.q, types.EntityFeature, id); err != nil {
		return err
	}
	if _, err := t.q.ExecContext(ctx, "DELETE FROM features WHERE id = ?", id); err != nil {
		return wrapDBError("delete feature", err)
	}
	return nil
}

func (t *Tx) SearchFeatures(ctx context.Context, opts types.SearchOptions) ([]*types.Feature, error) {
	qb := &queryBuilder{}
	qb.applyQuery(opts.Query)
	if opts.ProjectID != "" {
		qb.add("project_id = ?", opts.ProjectID)
	}
	qb.applyEnumFilter("status", opts.Status)
	qb.applyEnumFilter("priority", opts.Priority)
	qb.applyTagsAny(types.EntityFeature, splitList(opts.Tags))

	query := "SELECT " + featureColumns + " FROM features" + qb.clause() +
		" ORDER BY created_at DESC, id ASC"
	page, pageArgs := pagination(opts.Limit, opts.Offset)
	rows, err := t.q.QueryContext(ctx, query+page, append(qb.args, pageArgs...)...)
	if err != nil {
		return nil, wrapDBError("search features", err)
	}
	defer rows.Close()

	var (
		features []*types.Feature
		ids      []string
	)
	for rows.Next() {
		f, err := scanFeature(rows)
		if err != nil {
			return nil, wrapDBError("scan feature", err)
		}
		features = append(features, f)
		ids = append(ids, f.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError("search features", err)
	}

	tags, err := loadTagsFor(ctx, t.q, types.EntityFeature, ids)
	if err != nil {
		return nil, err
	}
	for _, f := range features {
		f.Tags = tags[f.ID]
	}
	return features, nil
}
