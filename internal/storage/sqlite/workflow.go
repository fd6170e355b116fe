package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/alioshr/task-orchestrator-sub000/internal/types"
)

func (s *Store) SetWorkflowStatus(ctx context.Context, entity types.EntityType, id, status string, expectedVersion int) error {
	return s.write(ctx, func(tx *Tx) error {
		return tx.SetWorkflowStatus(ctx, entity, id, status, expectedVersion)
	})
}

func (s *Store) SetBlockers(ctx context.Context, entity types.EntityType, id string, blockedBy []string, reason string, expectedVersion int) error {
	return s.write(ctx, func(tx *Tx) error {
		return tx.SetBlockers(ctx, entity, id, blockedBy, reason, expectedVersion)
	})
}

func (s *Store) Dependents(ctx context.Context, id string) ([]types.EntityRef, error) {
	return s.reader().Dependents(ctx, id)
}

func (s *Store) BlockersOf(ctx context.Context, id string) ([]string, bool, error) {
	return s.reader().BlockersOf(ctx, id)
}

func workflowTable(entity types.EntityType) (string, error) {
	switch entity {
	case types.EntityFeature:
		return "features", nil
	case types.EntityTask:
		return "tasks", nil
	}
	return "", types.Validationf("entity type %s does not carry workflow state", entity)
}

// SetWorkflowStatus writes a status under the version gate. Pipeline rules
// are the engine's business; this only guarantees the row moves exactly once.
func (t *Tx) SetWorkflowStatus(ctx context.Context, entity types.EntityType, id, status string, expectedVersion int) error {
	table, err := workflowTable(entity)
	if err != nil {
		return err
	}
	var version int
	err = t.q.QueryRowContext(ctx,
		"SELECT version FROM "+table+" WHERE id = ?", id).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return types.NotFoundf("%s %s not found", entityKind(entity), id)
	}
	if err != nil {
		return wrapDBError("read version", err)
	}
	if err := checkVersion(entityKind(entity), id, expectedVersion, version); err != nil {
		return err
	}

	res, err := t.q.ExecContext(ctx,
		"UPDATE "+table+" SET status = ?, version = version + 1, modified_at = ? WHERE id = ? AND version = ?",
		status, formatTime(now()), id, expectedVersion)
	if err != nil {
		return wrapDBError("set status", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return types.Conflictf("%s %s was modified concurrently",
			entityKind(entity), id)
	}
	return nil
}

// SetBlockers replaces the blocker list and reason under the version gate.
// An empty reason stores NULL. For tasks the legacy dependencies column is
// trimmed to the surviving blockers so removals stick even on rows that
// predate blocked_by.
func (t *Tx) SetBlockers(ctx context.Context, entity types.EntityType, id string, blockedBy []string, reason string, expectedVersion int) error {
	table, err := workflowTable(entity)
	if err != nil {
		return err
	}
	var version int
	err = t.q.QueryRowContext(ctx,
		"SELECT version FROM "+table+" WHERE id = ?", id).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return types.NotFoundf("%s %s not found", entityKind(entity), id)
	}
	if err != nil {
		return wrapDBError("read version", err)
	}
	if err := checkVersion(entityKind(entity), id, expectedVersion, version); err != nil {
		return err
	}

	var reasonVal interface{}
	if reason != "" {
		reasonVal = reason
	}

	var res sql.Result
	if entity == types.EntityTask {
		var rawDeps string
		if err := t.q.QueryRowContext(ctx,
			"SELECT dependencies FROM tasks WHERE id = ?", id).Scan(&rawDeps); err != nil {
			return wrapDBError("read dependencies", err)
		}
		deps := decodeList(rawDeps)
		kept := deps[:0]
		for _, d := range deps {
			if types.ContainsString(blockedBy, d) {
				kept = append(kept, d)
			}
		}
		res, err = t.q.ExecContext(ctx,
			"UPDATE tasks SET blocked_by = ?, blocked_reason = ?, dependencies = ?, version = version + 1, modified_at = ? WHERE id = ? AND version = ?",
			encodeList(blockedBy), reasonVal, encodeList(kept), formatTime(now()), id, expectedVersion)
	} else {
		res, err = t.q.ExecContext(ctx,
			"UPDATE "+table+" SET blocked_by = ?, blocked_reason = ?, version = version + 1, modified_at = ? WHERE id = ? AND version = ?",
			encodeList(blockedBy), reasonVal, formatTime(now()), id, expectedVersion)
	}
	if err != nil {
		return wrapDBError("set blockers", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return types.Conflictf("%s %s was modified concurrently",
			entityKind(entity), id)
	}
	return nil
}

// Dependents lists every feature and task whose effective blocker set names
// id. The LIKE scan over the JSON column is a prefilter; membership is
// confirmed on the decoded list.
func (t *Tx) Dependents(ctx context.Context, id string) ([]types.EntityRef, error) {
	pattern := likePattern(id)
	var refs []types.EntityRef

	rows, err := t.q.QueryContext(ctx,
		"SELECT id, blocked_by FROM features WHERE blocked_by LIKE ? ORDER BY created_at ASC, id ASC",
		pattern)
	if err != nil {
		return nil, wrapDBError("scan feature dependents", err)
	}
	for rows.Next() {
		var fid, blockedBy string
		if err := rows.Scan(&fid, &blockedBy); err != nil {
			rows.Close()
			return nil, wrapDBError("scan feature dependent", err)
		}
		if types.ContainsString(decodeList(blockedBy), id) {
			refs = append(refs, types.EntityRef{Type: types.EntityFeature, ID: fid})
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, wrapDBError("scan feature dependents", err)
	}
	rows.Close()

	rows, err = t.q.QueryContext(ctx,
		"SELECT id, blocked_by, dependencies FROM tasks WHERE blocked_by LIKE ? OR dependencies LIKE ? ORDER BY created_at ASC, id ASC",
		pattern, pattern)
	if err != nil {
		return nil, wrapDBError("scan task dependents", err)
	}
	for rows.Next() {
		var tid, blockedBy, deps string
		if err := rows.Scan(&tid, &blockedBy, &deps); err != nil {
			rows.Close()
			return nil, wrapDBError("scan task dependent", err)
		}
		effective := decodeList(blockedBy)
		if len(effective) == 0 {
			effective = decodeList(deps)
		}
		if types.ContainsString(effective, id) {
			refs = append(refs, types.EntityRef{Type: types.EntityTask, ID: tid})
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, wrapDBError("scan task dependents", err)
	}
	rows.Close()

	return refs, nil
}

// BlockersOf returns the effective blocker list for a feature or task id
// without knowing its kind up front. The second return reports whether the
// id exists at all.
func (t *Tx) BlockersOf(ctx context.Context, id string) ([]string, bool, error) {
	var blockedBy string
	err := t.q.QueryRowContext(ctx,
		"SELECT blocked_by FROM features WHERE id = ?", id).Scan(&blockedBy)
	if err == nil {
		return decodeList(blockedBy), true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, wrapDBError("read feature blockers", err)
	}

	var deps string
	err = t.q.QueryRowContext(ctx,
		"SELECT blocked_by, dependencies FROM tasks WHERE id = ?", id).Scan(&blockedBy, &deps)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, wrapDBError("read task blockers", err)
	}
	effective := decodeList(blockedBy)
	if len(effective) == 0 {
		effective = decodeList(deps)
	}
	return effective, true, nil
}

// checkRelatedRefs validates a related_to list before an update: caps,
// self-reference, duplicates, and that every peer exists as a feature or
// task.
func (t *Tx) checkRelatedRefs(ctx context.Context, refs []string, selfID string) error {
	if err := types.ValidateRelatedRefs(refs, selfID); err != nil {
		return err
	}
	for _, r := range refs {
		_, ok, err := t.BlockersOf(ctx, r)
		if err != nil {
			return err
		}
		if !ok {
			return types.NotFoundf("related entity %s not found", r)
		}
	}
	return nil
}

type refRow struct {
	id        string
	blockedBy []string
	reason    string
	relatedTo []string
	deps      []string
}

// scrubEntityRefs removes a deleted entity's id from every blocker,
// relation, and legacy dependency list. Touched rows get a version bump;
// the blocked reason survives only while NO_OP remains.
func (t *Tx) scrubEntityRefs(ctx context.Context, id string) error {
	pattern := likePattern(id)

	collect := func(query string, withDeps bool, args ...interface{}) ([]refRow, error) {
		rows, err := t.q.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, wrapDBError("scan references", err)
		}
		defer rows.Close()
		var out []refRow
		for rows.Next() {
			var (
				r         refRow
				blockedBy string
				reason    sql.NullString
				relatedTo string
				deps      string
			)
			if withDeps {
				err = rows.Scan(&r.id, &blockedBy, &reason, &relatedTo, &deps)
			} else {
				err = rows.Scan(&r.id, &blockedBy, &reason, &relatedTo)
			}
			if err != nil {
				return nil, wrapDBError("scan reference row", err)
			}
			r.blockedBy = decodeList(blockedBy)
			r.reason = reason.String
			r.relatedTo = decodeList(relatedTo)
			r.deps = decodeList(deps)
			out = append(out, r)
		}
		if err := rows.Err(); err != nil {
			return nil, wrapDBError("scan references", err)
		}
		return out, nil
	}

	features, err := collect(
		"SELECT id, blocked_by, blocked_reason, related_to FROM features WHERE blocked_by LIKE ? OR related_to LIKE ?",
		false, pattern, pattern)
	if err != nil {
		return err
	}
	for _, r := range features {
		blockedBy, c1 := types.RemoveStrings(r.blockedBy, []string{id})
		relatedTo, c2 := types.RemoveStrings(r.relatedTo, []string{id})
		if !c1 && !c2 {
			continue
		}
		var reasonVal interface{}
		if r.reason != "" && types.ContainsString(blockedBy, types.BlockerNoOp) {
			reasonVal = r.reason
		}
		if _, err := t.q.ExecContext(ctx, `
			UPDATE features SET blocked_by = ?, blocked_reason = ?, related_to = ?,
			       version = version + 1, modified_at = ? WHERE id = ?`,
			encodeList(blockedBy), reasonVal, encodeList(relatedTo),
			formatTime(now()), r.id); err != nil {
			return wrapDBError("scrub feature references", err)
		}
	}

	tasks, err := collect(
		"SELECT id, blocked_by, blocked_reason, related_to, dependencies FROM tasks WHERE blocked_by LIKE ? OR related_to LIKE ? OR dependencies LIKE ?",
		true, pattern, pattern, pattern)
	if err != nil {
		return err
	}
	for _, r := range tasks {
		blockedBy, c1 := types.RemoveStrings(r.blockedBy, []string{id})
		relatedTo, c2 := types.RemoveStrings(r.relatedTo, []string{id})
		deps, c3 := types.RemoveStrings(r.deps, []string{id})
		if !c1 && !c2 && !c3 {
			continue
		}
		var reasonVal interface{}
		if r.reason != "" && types.ContainsString(blockedBy, types.BlockerNoOp) {
			reasonVal = r.reason
		}
		if _, err := t.q.ExecContext(ctx, `
			UPDATE tasks SET blocked_by = ?, blocked_reason = ?, related_to = ?,
			       dependencies = ?, version = version + 1, modified_at = ? WHERE id = ?`,
			encodeList(blockedBy), reasonVal, encodeList(relatedTo), encodeList(deps),
			formatTime(now()), r.id); err != nil {
			return wrapDBError("scrub task references", err)
		}
	}
	return nil
}
