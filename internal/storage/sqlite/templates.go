package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/alioshr/task-orchestrator-sub000/internal/types"
)

func (s *Store) CreateTemplate(ctx context.Context, tpl types.NewTemplate) (*types.Template, error) {
	var out *types.Template
	err := s.write(ctx, func(tx *Tx) error {
		var err error
		out, err = tx.CreateTemplate(ctx, tpl)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) GetTemplate(ctx context.Context, id string) (*types.Template, error) {
	return s.reader().GetTemplate(ctx, id)
}

func (s *Store) ListTemplates(ctx context.Context) ([]*types.Template, error) {
	return s.reader().ListTemplates(ctx)
}

func (s *Store) UpdateTemplate(ctx context.Context, id string, updates map[string]interface{}, expectedVersion int) (*types.Template, error) {
	var out *types.Template
	err := s.write(ctx, func(tx *Tx) error {
		var err error
		out, err = tx.UpdateTemplate(ctx, id, updates, expectedVersion)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) SetTemplateEnabled(ctx context.Context, id string, enabled bool, expectedVersion int) (*types.Template, error) {
	var out *types.Template
	err := s.write(ctx, func(tx *Tx) error {
		var err error
		out, err = tx.SetTemplateEnabled(ctx, id, enabled, expectedVersion)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) DeleteTemplate(ctx context.Context, id string) error {
	return s.write(ctx, func(tx *Tx) error {
		return tx.DeleteTemplate(ctx, id)
	})
}

func (s *Store) ApplyTemplate(ctx context.Context, templateID string, entity types.EntityType, entityID string) ([]*types.Section, error) {
	var out []*types.Section
	err := s.write(ctx, func(tx *Tx) error {
		var err error
		out, err = tx.ApplyTemplate(ctx, templateID, entity, entityID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (t *Tx) CreateTemplate(ctx context.Context, tpl types.NewTemplate) (*types.Template, error) {
	if err := tpl.Validate(); err != nil {
		return nil, err
	}
	id := generateID()
	ts := formatTime(now())
	if _, err := t.q.ExecContext(ctx, `
		INSERT INTO templates (id, name, description, is_built_in, is_protected,
		                       is_enabled, version, created_at, modified_at)
		VALUES (?, ?, ?, ?, ?, 1, 1, ?, ?)`,
		id, strings.TrimSpace(tpl.Name), tpl.Description,
		tpl.IsBuiltIn, tpl.IsProtected, ts, ts); err != nil {
		return nil, wrapDBError("create template", err)
	}
	return t.GetTemplate(ctx, id)
}

func (t *Tx) GetTemplate(ctx context.Context, id string) (*types.Template, error) {
	row := t.q.QueryRowContext(ctx,
		"SELECT "+templateColumns+" FROM templates WHERE id = ?", id)
	tpl, err := scanTemplate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.NotFoundf("template %s not found", id)
	}
	if err != nil {
		return nil, wrapDBError("get template", err)
	}
	return tpl, nil
}

func (t *Tx) ListTemplates(ctx context.Context) ([]*types.Template, error) {
	rows, err := t.q.QueryContext(ctx,
		"SELECT "+templateColumns+" FROM templates ORDER BY name ASC")
	if err != nil {
		return nil, wrapDBError("list templates", err)
	}
	defer rows.Close()

	var templates []*types.Template
	for rows.Next() {
		tpl, err := scanTemplate(rows)
		if err != nil {
			return nil, wrapDBError("scan template", err)
		}
		templates = append(templates, tpl)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError("list templates", err)
	}
	return templates, nil
}

// UpdateTemplate edits name and description. Protected templates refuse
// field edits; the enabled switch is the one thing that stays writable.
func (t *Tx) UpdateTemplate(ctx context.Context, id string, updates map[string]interface{}, expectedVersion int) (*types.Template, error) {
	current, err := t.GetTemplate(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.IsProtected {
		return nil, types.Validationf("template %s is protected and cannot be updated", id)
	}
	if err := checkVersion("template", id, expectedVersion, current.Version); err != nil {
		return nil, err
	}

	name, description := current.Name, current.Description
	for key, v := range updates {
		switch key {
		case "name":
			name, err = requiredStringValue(key, v)
		case "description":
			description, err = stringValue(key, v)
		default:
			return nil, types.Validationf("unknown template field %q", key)
		}
		if err != nil {
			return nil, err
		}
	}

	res, err := t.q.ExecContext(ctx, `
		UPDATE templates SET name = ?, description = ?, version = version + 1, modified_at = ?
		WHERE id = ? AND version = ?`,
		name, description, formatTime(now()), id, current.Version)
	if err != nil {
		return nil, wrapDBError("update template", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, types.Conflictf("template %s was modified concurrently", id)
	}
	return t.GetTemplate(ctx, id)
}

func (t *Tx) SetTemplateEnabled(ctx context.Context, id string, enabled bool, expectedVersion int) (*types.Template, error) {
	current, err := t.GetTemplate(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkVersion("template", id, expectedVersion, current.Version); err != nil {
		return nil, err
	}

	res, err := t.q.ExecContext(ctx,
		"UPDATE templates SET is_enabled = ?, version = version + 1, modified_at = ? WHERE id = ? AND version = ?",
		enabled, formatTime(now()), id, current.Version)
	if err != nil {
		return nil, wrapDBError("set template enabled", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, types.Conflictf("template %s was modified concurrently", id)
	}
	return t.GetTemplate(ctx, id)
}

func (t *Tx) DeleteTemplate(ctx context.Context, id string) error {
	current, err := t.GetTemplate(ctx, id)
	if err != nil {
		return err
	}
	if current.IsProtected {
		return types.Validationf("template %s is protected and cannot be deleted", id)
	}
	if err := deleteSectionsFor(ctx, t.q, types.EntityTemplate, id); err != nil {
		return err
	}
	if _, err := t.q.ExecContext(ctx, "DELETE FROM templates WHERE id = ?", id); err != nil {
		return wrapDBError("delete template", err)
	}
	return nil
}

// ApplyTemplate clones the template's sections onto the target entity with
// fresh ids and ordinals appended after the target's existing sections.
func (t *Tx) ApplyTemplate(ctx context.Context, templateID string, entity types.EntityType, entityID string) ([]*types.Section, error) {
	tpl, err := t.GetTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if !tpl.IsEnabled {
		return nil, types.Validationf("template %s is disabled", templateID)
	}
	if entity != types.EntityProject && entity != types.EntityFeature && entity != types.EntityTask {
		return nil, types.Validationf("templates apply to projects, features, or tasks, not %q", entity)
	}
	if err := t.entityExists(ctx, entity, entityID); err != nil {
		return nil, err
	}

	blueprint, err := t.ListSections(ctx, types.EntityTemplate, templateID)
	if err != nil {
		return nil, err
	}
	var next int
	if err := t.q.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(ordinal) + 1, 0) FROM sections WHERE entity_type = ? AND entity_id = ?",
		string(entity), entityID).Scan(&next); err != nil {
		return nil, wrapDBError("next ordinal", err)
	}

	ts := formatTime(now())
	created := make([]*types.Section, 0, len(blueprint))
	for i, src := range blueprint {
		id := generateID()
		if _, err := t.q.ExecContext(ctx, `
			INSERT INTO sections (id, entity_type, entity_id, title, usage, content,
			                      content_format, ordinal, tag, version, created_at, modified_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
			id, string(entity), entityID, src.Title, src.Usage, src.Content,
			string(src.Format), next+i, src.Tag, ts, ts); err != nil {
			return nil, wrapDBError("apply template", err)
		}
		sec, err := t.GetSection(ctx, id)
		if err != nil {
			return nil, err
		}
		created = append(created, sec)
	}
	return created, nil
}
