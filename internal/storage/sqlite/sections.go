package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/alioshr/task-orchestrator-sub000/internal/types"
)

func (s *Store) AddSection(ctx context.Context, sec types.NewSection) (*types.Section, error) {
	var out *types.Section
	err := s.write(ctx, func(tx *Tx) error {
		var err error
		out, err = tx.AddSection(ctx, sec)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) GetSection(ctx context.Context, id string) (*types.Section, error) {
	return s.reader().GetSection(ctx, id)
}

func (s *Store) ListSections(ctx context.Context, entity types.EntityType, entityID string) ([]*types.Section, error) {
	return s.reader().ListSections(ctx, entity, entityID)
}

func (s *Store) UpdateSection(ctx context.Context, id string, updates map[string]interface{}, expectedVersion int) (*types.Section, error) {
	var out *types.Section
	err := s.write(ctx, func(tx *Tx) error {
		var err error
		out, err = tx.UpdateSection(ctx, id, updates, expectedVersion)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) UpdateSectionText(ctx context.Context, id, content string, expectedVersion int) (*types.Section, error) {
	var out *types.Section
	err := s.write(ctx, func(tx *Tx) error {
		var err error
		out, err = tx.UpdateSectionText(ctx, id, content, expectedVersion)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) ReorderSections(ctx context.Context, entity types.EntityType, entityID string, orderedIDs []string) ([]*types.Section, error) {
	var out []*types.Section
	err := s.write(ctx, func(tx *Tx) error {
		var err error
		out, err = tx.ReorderSections(ctx, entity, entityID, orderedIDs)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) BulkDeleteSections(ctx context.Context, ids []string) (int, error) {
	var n int
	err := s.write(ctx, func(tx *Tx) error {
		var err error
		n, err = tx.BulkDeleteSections(ctx, ids)
		return err
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// entityExists checks the polymorphic section/tag owner.
func (t *Tx) entityExists(ctx context.Context, entity types.EntityType, id string) error {
	var table string
	switch entity {
	case types.EntityProject:
		table = "projects"
	case types.EntityFeature:
		table = "features"
	case types.EntityTask:
		table = "tasks"
	case types.EntityTemplate:
		table = "templates"
	default:
		return types.Validationf("invalid entity type %q", entity)
	}
	var one int
	err := t.q.QueryRowContext(ctx, "SELECT 1 FROM "+table+" WHERE id = ?", id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return types.NotFoundf("%s %s not found", entityKind(entity), id)
	}
	if err != nil {
		return wrapDBError("check owner", err)
	}
	return nil
}

// AddSection appends or inserts a section for an existing owner. Without an
// explicit ordinal the section lands after the owner's highest one.
func (t *Tx) AddSection(ctx context.Context, sec types.NewSection) (*types.Section, error) {
	if err := sec.Validate(); err != nil {
		return nil, err
	}
	if err := t.entityExists(ctx, sec.EntityType, sec.EntityID); err != nil {
		return nil, err
	}

	var ordinal int
	if sec.Ordinal == nil {
		if err := t.q.QueryRowContext(ctx,
			"SELECT COALESCE(MAX(ordinal) + 1, 0) FROM sections WHERE entity_type = ? AND entity_id = ?",
			string(sec.EntityType), sec.EntityID).Scan(&ordinal); err != nil {
			return nil, wrapDBError("next ordinal", err)
		}
	} else {
		ordinal = *sec.Ordinal
		var one int
		err := t.q.QueryRowContext(ctx,
			"SELECT 1 FROM sections WHERE entity_type = ? AND entity_id = ? AND ordinal = ?",
			string(sec.EntityType), sec.EntityID, ordinal).Scan(&one)
		if err == nil {
			return nil, types.Conflictf("ordinal %d is already taken for %s %s",
				ordinal, entityKind(sec.EntityType), sec.EntityID)
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, wrapDBError("check ordinal", err)
		}
	}

	id := generateID()
	ts := formatTime(now())
	if _, err := t.q.ExecContext(ctx, `
		INSERT INTO sections (id, entity_type, entity_id, title, usage, content,
		                      content_format, ordinal, tag, version, created_at, modified_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		id, string(sec.EntityType), sec.EntityID, strings.TrimSpace(sec.Title),
		sec.Usage, sec.Content, string(sec.Format), ordinal,
		types.NormalizeTag(sec.Tag), ts, ts); err != nil {
		return nil, wrapDBError("add section", err)
	}
	return t.GetSection(ctx, id)
}

func (t *Tx) GetSection(ctx context.Context, id string) (*types.Section, error) {
	row := t.q.QueryRowContext(ctx,
		"SELECT "+sectionColumns+" FROM sections WHERE id = ?", id)
	sec, err := scanSection(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.NotFoundf("section %s not found", id)
	}
	if err != nil {
		return nil, wrapDBError("get section", err)
	}
	return sec, nil
}

func (t *Tx) ListSections(ctx context.Context, entity types.EntityType, entityID string) ([]*types.Section, error) {
	rows, err := t.q.QueryContext(ctx,
		"SELECT "+sectionColumns+" FROM sections WHERE entity_type = ? AND entity_id = ? ORDER BY ordinal ASC",
		string(entity), entityID)
	if err != nil {
		return nil, wrapDBError("list sections", err)
	}
	defer rows.Close()

	var sections []*types.Section
	for rows.Next() {
		sec, err := scanSection(rows)
		if err != nil {
			return nil, wrapDBError("scan section", err)
		}
		sections = append(sections, sec)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError("list sections", err)
	}
	return sections, nil
}

func (t *Tx) UpdateSection(ctx context.Context, id string, updates map[string]interface{}, expectedVersion int) (*types.Section, error) {
	current, err := t.GetSection(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkVersion("section", id, expectedVersion, current.Version); err != nil {
		return nil, err
	}

	title, usage, content := current.Title, current.Usage, current.Content
	format := current.Format
	tag := current.Tag

	for key, v := range updates {
		switch key {
		case "title":
			title, err = requiredStringValue(key, v)
		case "usage":
			usage, err = stringValue(key, v)
		case "content":
			content, err = stringValue(key, v)
		case "content_format":
			var f string
			if f, err = requiredStringValue(key, v); err == nil {
				format = types.ContentFormat(strings.ToUpper(f))
				if !format.IsValid() {
					return nil, types.Validationf("invalid content format %q", f)
				}
			}
		case "tag":
			var raw string
			if raw, err = stringValue(key, v); err == nil {
				tag = types.NormalizeTag(raw)
			}
		default:
			return nil, types.Validationf("unknown section field %q", key)
		}
		if err != nil {
			return nil, err
		}
	}

	res, err := t.q.ExecContext(ctx, `
		UPDATE sections
		SET title = ?, usage = ?, content = ?, content_format = ?, tag = ?,
		    version = version + 1, modified_at = ?
		WHERE id = ? AND version = ?`,
		title, usage, content, string(format), tag,
		formatTime(now()), id, current.Version)
	if err != nil {
		return nil, wrapDBError("update section", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, types.Conflictf("section %s was modified concurrently", id)
	}
	return t.GetSection(ctx, id)
}

// UpdateSectionText is the targeted write path: content, version, and
// modified_at only.
func (t *Tx) UpdateSectionText(ctx context.Context, id, content string, expectedVersion int) (*types.Section, error) {
	current, err := t.GetSection(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkVersion("section", id, expectedVersion, current.Version); err != nil {
		return nil, err
	}

	res, err := t.q.ExecContext(ctx,
		"UPDATE sections SET content = ?, version = version + 1, modified_at = ? WHERE id = ? AND version = ?",
		content, formatTime(now()), id, current.Version)
	if err != nil {
		return nil, wrapDBError("update section text", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, types.Conflictf("section %s was modified concurrently", id)
	}
	return t.GetSection(ctx, id)
}

// ReorderSections rewrites an owner's ordinals to match orderedIDs exactly.
// The list must cover every section of the owner, once each. Two passes keep
// the unique (owner, ordinal) index satisfied mid-flight.
func (t *Tx) ReorderSections(ctx context.Context, entity types.EntityType, entityID string, orderedIDs []string) ([]*types.Section, error) {
	current, err := t.ListSections(ctx, entity, entityID)
	if err != nil {
		return nil, err
	}
	owned := make(map[string]bool, len(current))
	for _, sec := range current {
		owned[sec.ID] = true
	}
	if len(orderedIDs) != len(current) {
		return nil, types.Validationf("reorder must list all %d section(s) of %s %s, got %d",
			len(current), entityKind(entity), entityID, len(orderedIDs))
	}
	seen := make(map[string]bool, len(orderedIDs))
	for _, id := range orderedIDs {
		if !owned[id] {
			return nil, types.Validationf("section %s does not belong to %s %s",
				id, entityKind(entity), entityID)
		}
		if seen[id] {
			return nil, types.Validationf("section %s listed twice", id)
		}
		seen[id] = true
	}

	for i, id := range orderedIDs {
		if _, err := t.q.ExecContext(ctx,
			"UPDATE sections SET ordinal = ? WHERE id = ?", -(i + 1), id); err != nil {
			return nil, wrapDBError("stage reorder", err)
		}
	}
	ts := formatTime(now())
	for i, id := range orderedIDs {
		if _, err := t.q.ExecContext(ctx,
			"UPDATE sections SET ordinal = ?, version = version + 1, modified_at = ? WHERE id = ?",
			i, ts, id); err != nil {
			return nil, wrapDBError("apply reorder", err)
		}
	}
	return t.ListSections(ctx, entity, entityID)
}

// BulkDeleteSections removes the listed sections in one statement and
// reports how many rows actually went away.
func (t *Tx) BulkDeleteSections(ctx context.Context, ids []string) (int, error) {
	ids = types.DedupeStrings(ids)
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := t.q.ExecContext(ctx,
		"DELETE FROM sections WHERE id IN ("+sqlPlaceholders(len(ids))+")",
		stringArgs(ids)...)
	if err != nil {
		return 0, wrapDBError("bulk delete sections", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, wrapDBError("bulk delete sections", err)
	}
	return int(n), nil
}

func deleteSectionsFor(ctx context.Context, q dbExecutor, entity types.EntityType, entityID string) error {
	if _, err := q.ExecContext(ctx,
		"DELETE FROM sections WHERE entity_type = ? AND entity_id = ?",
		string(entity), entityID); err != nil {
		return wrapDBError("delete sections", err)
	}
	return nil
}
