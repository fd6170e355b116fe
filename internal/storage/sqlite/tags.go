package sqlite

import (
	"context"

	"github.com/alioshr/task-orchestrator-sub000/internal/types"
)

func (s *Store) ListTags(ctx context.Context, entity types.EntityType) ([]types.TagCount, error) {
	return s.reader().ListTags(ctx, entity)
}

func (s *Store) TagUsage(ctx context.Context, tag string) ([]types.EntityRef, error) {
	return s.reader().TagUsage(ctx, tag)
}

func (s *Store) RenameTag(ctx context.Context, oldTag, newTag string, dryRun bool) (*types.TagRename, error) {
	var out *types.TagRename
	err := s.write(ctx, func(tx *Tx) error {
		var err error
		out, err = tx.RenameTag(ctx, oldTag, newTag, dryRun)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListTags groups tag rows, optionally narrowed to one entity type. An empty
// entity type covers the whole store.
func (t *Tx) ListTags(ctx context.Context, entity types.EntityType) ([]types.TagCount, error) {
	query := "SELECT tag, COUNT(*) FROM tags"
	var args []interface{}
	if entity != "" {
		if !entity.IsValid() {
			return nil, types.Validationf("invalid entity type %q", entity)
		}
		query += " WHERE entity_type = ?"
		args = append(args, string(entity))
	}
	query += " GROUP BY tag ORDER BY COUNT(*) DESC, tag ASC"

	rows, err := t.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError("list tags", err)
	}
	defer rows.Close()

	var counts []types.TagCount
	for rows.Next() {
		var tc types.TagCount
		if err := rows.Scan(&tc.Tag, &tc.Count); err != nil {
			return nil, wrapDBError("scan tag count", err)
		}
		counts = append(counts, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError("list tags", err)
	}
	return counts, nil
}

// TagUsage lists every row carrying the (normalized) tag.
func (t *Tx) TagUsage(ctx context.Context, tag string) ([]types.EntityRef, error) {
	normalized := types.NormalizeTag(tag)
	if normalized == "" {
		return nil, types.Validationf("tag is required")
	}
	rows, err := t.q.QueryContext(ctx,
		"SELECT entity_type, entity_id FROM tags WHERE tag = ? ORDER BY entity_type ASC, entity_id ASC",
		normalized)
	if err != nil {
		return nil, wrapDBError("tag usage", err)
	}
	defer rows.Close()

	var refs []types.EntityRef
	for rows.Next() {
		var ref types.EntityRef
		if err := rows.Scan(&ref.Type, &ref.ID); err != nil {
			return nil, wrapDBError("scan tag usage", err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError("tag usage", err)
	}
	return refs, nil
}

// RenameTag moves every row from old to new. Rows whose owner already
// carries the new tag merge instead: the old row is dropped. dryRun reports
// the outcome without touching anything.
func (t *Tx) RenameTag(ctx context.Context, oldTag, newTag string, dryRun bool) (*types.TagRename, error) {
	oldN := types.NormalizeTag(oldTag)
	newN := types.NormalizeTag(newTag)
	if oldN == "" || newN == "" {
		return nil, types.Validationf("tag rename requires non-empty old and new tags")
	}
	if oldN == newN {
		return nil, types.Validationf("old and new tags are identical after normalization")
	}

	affected, err := t.TagUsage(ctx, oldN)
	if err != nil {
		return nil, err
	}

	hasNew := make(map[types.EntityRef]bool)
	rows, err := t.q.QueryContext(ctx,
		"SELECT entity_type, entity_id FROM tags WHERE tag = ?", newN)
	if err != nil {
		return nil, wrapDBError("tag rename", err)
	}
	for rows.Next() {
		var ref types.EntityRef
		if err := rows.Scan(&ref.Type, &ref.ID); err != nil {
			rows.Close()
			return nil, wrapDBError("scan tag row", err)
		}
		hasNew[ref] = true
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, wrapDBError("tag rename", err)
	}
	rows.Close()

	result := &types.TagRename{Old: oldN, New: newN, Affected: affected, DryRun: dryRun}
	for _, ref := range affected {
		if hasNew[ref] {
			result.Merged++
		} else {
			result.Renamed++
		}
	}
	if dryRun {
		return result, nil
	}

	for _, ref := range affected {
		if hasNew[ref] {
			_, err = t.q.ExecContext(ctx,
				"DELETE FROM tags WHERE entity_type = ? AND entity_id = ? AND tag = ?",
				string(ref.Type), ref.ID, oldN)
		} else {
			_, err = t.q.ExecContext(ctx,
				"UPDATE tags SET tag = ? WHERE entity_type = ? AND entity_id = ? AND tag = ?",
				newN, string(ref.Type), ref.ID, oldN)
		}
		if err != nil {
			return nil, wrapDBError("tag rename", err)
		}
	}
	return result, nil
}
