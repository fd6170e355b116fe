package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/alioshr/task-orchestrator-sub000/internal/types"
)

func (s *Store) CreateProject(ctx context.Context, p types.NewProject) (*types.Project, error) {
	var out *types.Project
	err := s.write(ctx, func(tx *Tx) error {
		var err error
		out, err = tx.CreateProject(ctx, p)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) GetProject(ctx context.Context, id string) (*types.Project, error) {
	return s.reader().GetProject(ctx, id)
}

func (s *Store) UpdateProject(ctx context.Context, id string, updates map[string]interface{}, expectedVersion int) (*types.Project, error) {
	var out *types.Project
	err := s.write(ctx, func(tx *Tx) error {
		var err error
		out, err = tx.UpdateProject(ctx, id, updates, expectedVersion)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) DeleteProject(ctx context.Context, id string, cascade bool) error {
	return s.write(ctx, func(tx *Tx) error {
		return tx.DeleteProject(ctx, id, cascade)
	})
}

func (s *Store) SearchProjects(ctx context.Context, opts types.SearchOptions) ([]*types.Project, error) {
	return s.reader().SearchProjects(ctx, opts)
}

// CreateProject inserts a new board. Projects are stateless in the v3 model;
// the legacy status column stays empty for new rows.
func (t *Tx) CreateProject(ctx context.Context, p types.NewProject) (*types.Project, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	id := generateID()
	ts := formatTime(now())
	name := strings.TrimSpace(p.Name)
	_, err := t.q.ExecContext(ctx, `
		INSERT INTO projects (id, name, summary, description, status, version,
		                      search_vector, created_at, modified_at)
		VALUES (?, ?, ?, ?, '', 1, ?, ?, ?)`,
		id, name, p.Summary, p.Description,
		searchVector(name, p.Summary, p.Description), ts, ts)
	if err != nil {
		return nil, wrapDBError("create project", err)
	}
	if err := replaceTags(ctx, t.q, types.EntityProject, id, p.Tags); err != nil {
		return nil, err
	}
	return t.GetProject(ctx, id)
}

func (t *Tx) GetProject(ctx context.Context, id string) (*types.Project, error) {
	row := t.q.QueryRowContext(ctx,
		"SELECT "+projectColumns+" FROM projects WHERE id = ?", id)
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.NotFoundf("project %s not found", id)
	}
	if err != nil {
		return nil, wrapDBError("get project", err)
	}
	tags, err := loadTagsFor(ctx, t.q, types.EntityProject, []string{p.ID})
	if err != nil {
		return nil, err
	}
	p.Tags = tags[p.ID]
	return p, nil
}

func (t *Tx) UpdateProject(ctx context.Context, id string, updates map[string]interface{}, expectedVersion int) (*types.Project, error) {
	current, err := t.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkVersion("project", id, expectedVersion, current.Version); err != nil {
		return nil, err
	}

	name, summary, description := current.Name, current.Summary, current.Description
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
		case "tags":
			tags, err = stringListValue(key, v)
			tagsSet = true
		default:
			return nil, types.Validationf("unknown project field %q", key)
		}
		if err != nil {
			return nil, err
		}
	}

	res, err := t.q.ExecContext(ctx, `
		UPDATE projects
		SET name = ?, summary = ?, description = ?, search_vector = ?,
		    version = version + 1, modified_at = ?
		WHERE id = ? AND version = ?`,
		name, summary, description, searchVector(name, summary, description),
		formatTime(now()), id, current.Version)
	if err != nil {
		return nil, wrapDBError("update project", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, types.Conflictf("project %s was modified concurrently", id)
	}
	if tagsSet {
		if err := replaceTags(ctx, t.q, types.EntityProject, id, tags); err != nil {
			return nil, err
		}
	}
	return t.GetProject(ctx, id)
}

// DeleteProject removes a board. Without cascade it refuses when features
// exist. The knowledge graph is project-scoped metadata, not a child
// hierarchy, so atoms, molecules, and their changelog always go with the
// board.
func (t *Tx) DeleteProject(ctx context.Context, id string, cascade bool) error {
	if _, err := t.GetProject(ctx, id); err != nil {
		return err
	}

	var features int
	if err := t.q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM features WHERE project_id = ?", id).Scan(&features); err != nil {
		return wrapDBError("count features", err)
	}
	if features > 0 && !cascade {
		return types.HasChildrenf("project %s has %d feature(s); delete them or retry with cascade", id, features)
	}
	if cascade && features > 0 {
		rows, err := t.q.QueryContext(ctx,
			"SELECT id FROM features WHERE project_id = ?", id)
		if err != nil {
			return wrapDBError("list features", err)
		}
		var ids []string
		for rows.Next() {
			var fid string
			if err := rows.Scan(&fid); err != nil {
				rows.Close()
				return wrapDBError("scan feature id", err)
			}
			ids = append(ids, fid)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return wrapDBError("list features", err)
		}
		rows.Close()
		for _, fid := range ids {
			if err := t.DeleteFeature(ctx, fid, true); err != nil {
				return err
			}
		}
	}

	if _, err := t.q.ExecContext(ctx, `
		DELETE FROM changelog
		WHERE (parent_type = 'atom' AND parent_id IN (SELECT id FROM atoms WHERE project_id = ?))
		   OR (parent_type = 'molecule' AND parent_id IN (SELECT id FROM molecules WHERE project_id = ?))`,
		id, id); err != nil {
		return wrapDBError("delete project changelog", err)
	}
	if _, err := t.q.ExecContext(ctx, "DELETE FROM atoms WHERE project_id = ?", id); err != nil {
		return wrapDBError("delete project atoms", err)
	}
	if _, err := t.q.ExecContext(ctx, "DELETE FROM molecules WHERE project_id = ?", id); err != nil {
		return wrapDBError("delete project molecules", err)
	}
	if err := deleteSectionsFor(ctx, t.q, types.EntityProject, id); err != nil {
		return err
	}
	if err := deleteTags(ctx, t.q, types.EntityProject, id); err != nil {
		return err
	}
	if _, err := t.q.ExecContext(ctx, "DELETE FROM projects WHERE id = ?", id); err != nil {
		return wrapDBError("delete project", err)
	}
	return nil
}

func (t *Tx) SearchProjects(ctx context.Context, opts types.SearchOptions) ([]*types.Project, error) {
	qb := &queryBuilder{}
	qb.applyQuery(opts.Query)
	qb.applyTagsAll(types.EntityProject, splitList(opts.Tags))

	query := "SELECT " + projectColumns + " FROM projects" + qb.clause() +
		" ORDER BY modified_at DESC, id ASC"
	page, pageArgs := pagination(opts.Limit, opts.Offset)
	rows, err := t.q.QueryContext(ctx, query+page, append(qb.args, pageArgs...)...)
	if err != nil {
		return nil, wrapDBError("search projects", err)
	}
	defer rows.Close()

	var (
		projects []*types.Project
		ids      []string
	)
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, wrapDBError("scan project", err)
		}
		projects = append(projects, p)
		ids = append(ids, p.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError("search projects", err)
	}

	tags, err := loadTagsFor(ctx, t.q, types.EntityProject, ids)
	if err != nil {
		return nil, err
	}
	for _, p := range projects {
		p.Tags = tags[p.ID]
	}
	return projects, nil
}
