package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/alioshr/task-orchestrator-sub000/internal/types"
)

func (s *Store) CreateAtom(ctx context.Context, a types.NewAtom) (*types.Atom, error) {
	var out *types.Atom
	err := s.write(ctx, func(tx *Tx) error {
		var err error
		out, err = tx.CreateAtom(ctx, a)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) GetAtom(ctx context.Context, id string) (*types.Atom, error) {
	return s.reader().GetAtom(ctx, id)
}

func (s *Store) ListAtoms(ctx context.Context, projectID string) ([]*types.Atom, error) {
	return s.reader().ListAtoms(ctx, projectID)
}

func (s *Store) UpdateAtom(ctx context.Context, id string, updates map[string]interface{}, expectedVersion int) (*types.Atom, error) {
	var out *types.Atom
	err := s.write(ctx, func(tx *Tx) error {
		var err error
		out, err = tx.UpdateAtom(ctx, id, updates, expectedVersion)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) UpdateAtomKnowledge(ctx context.Context, id, knowledge string, mode types.KnowledgeMode, taskID string, expectedVersion int) (*types.Atom, error) {
	var out *types.Atom
	err := s.write(ctx, func(tx *Tx) error {
		var err error
		out, err = tx.UpdateAtomKnowledge(ctx, id, knowledge, mode, taskID, expectedVersion)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) DeleteAtom(ctx context.Context, id string) error {
	return s.write(ctx, func(tx *Tx) error {
		return tx.DeleteAtom(ctx, id)
	})
}

// checkRelatedAtoms verifies each related atom exists and shares the project.
func (t *Tx) checkRelatedAtoms(ctx context.Context, refs []string, projectID string) error {
	for _, ref := range refs {
		peer, err := t.GetAtom(ctx, ref)
		if err != nil {
			return err
		}
		if peer.ProjectID != projectID {
			return types.Invariantf("atom %s belongs to a different project", ref)
		}
	}
	return nil
}

// checkMolecule verifies the molecule exists and shares the project.
func (t *Tx) checkMolecule(ctx context.Context, moleculeID, projectID string) error {
	mol, err := t.GetMolecule(ctx, moleculeID)
	if err != nil {
		return err
	}
	if mol.ProjectID != projectID {
		return types.Invariantf("molecule %s belongs to a different project", moleculeID)
	}
	return nil
}

func (t *Tx) CreateAtom(ctx context.Context, a types.NewAtom) (*types.Atom, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	if _, err := t.GetProject(ctx, a.ProjectID); err != nil {
		return nil, err
	}
	if a.MoleculeID != "" {
		if err := t.checkMolecule(ctx, a.MoleculeID, a.ProjectID); err != nil {
			return nil, err
		}
	}
	if err := t.checkRelatedAtoms(ctx, a.RelatedAtoms, a.ProjectID); err != nil {
		return nil, err
	}
	if a.CreatedByTaskID != "" {
		if err := t.entityExists(ctx, types.EntityTask, a.CreatedByTaskID); err != nil {
			return nil, err
		}
	}

	id := generateID()
	ts := formatTime(now())
	var moleculeVal, creatorVal interface{}
	if a.MoleculeID != "" {
		moleculeVal = a.MoleculeID
	}
	if a.CreatedByTaskID != "" {
		creatorVal = a.CreatedByTaskID
	}
	if _, err := t.q.ExecContext(ctx, `
		INSERT INTO atoms (id, project_id, molecule_id, paths, knowledge, related_atoms,
		                   created_by_task_id, last_updated_by_task_id, version,
		                   created_at, modified_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, NULL, 1, ?, ?)`,
		id, a.ProjectID, moleculeVal, encodeList(a.Paths), a.Knowledge,
		encodeList(a.RelatedAtoms), creatorVal, ts, ts); err != nil {
		return nil, wrapDBError("create atom", err)
	}
	return t.GetAtom(ctx, id)
}

func (t *Tx) GetAtom(ctx context.Context, id string) (*types.Atom, error) {
	row := t.q.QueryRowContext(ctx,
		"SELECT "+atomColumns+" FROM atoms WHERE id = ?", id)
	a, err := scanAtom(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.NotFoundf("atom %s not found", id)
	}
	if err != nil {
		return nil, wrapDBError("get atom", err)
	}
	return a, nil
}

func (t *Tx) ListAtoms(ctx context.Context, projectID string) ([]*types.Atom, error) {
	if _, err := t.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	rows, err := t.q.QueryContext(ctx,
		"SELECT "+atomColumns+" FROM atoms WHERE project_id = ? ORDER BY created_at ASC, id ASC",
		projectID)
	if err != nil {
		return nil, wrapDBError("list atoms", err)
	}
	defer rows.Close()

	var atoms []*types.Atom
	for rows.Next() {
		a, err := scanAtom(rows)
		if err != nil {
			return nil, wrapDBError("scan atom", err)
		}
		atoms = append(atoms, a)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError("list atoms", err)
	}
	return atoms, nil
}

func (t *Tx) UpdateAtom(ctx context.Context, id string, updates map[string]interface{}, expectedVersion int) (*types.Atom, error) {
	current, err := t.GetAtom(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkVersion("atom", id, expectedVersion, current.Version); err != nil {
		return nil, err
	}

	paths := current.Paths
	related := current.RelatedAtoms
	moleculeID := current.MoleculeID

	for key, v := range updates {
		switch key {
		case "paths":
			if paths, err = stringListValue(key, v); err == nil {
				err = types.ValidateAtomPaths(paths)
			}
		case "related_atoms":
			if related, err = stringListValue(key, v); err == nil {
				if err = types.ValidateRelatedRefs(related, id); err == nil {
					err = t.checkRelatedAtoms(ctx, related, current.ProjectID)
				}
			}
		case "molecule_id":
			if moleculeID, err = stringValue(key, v); err == nil && moleculeID != "" {
				err = t.checkMolecule(ctx, moleculeID, current.ProjectID)
			}
		default:
			return nil, types.Validationf("unknown atom field %q", key)
		}
		if err != nil {
			return nil, err
		}
	}

	var moleculeVal interface{}
	if moleculeID != "" {
		moleculeVal = moleculeID
	}
	res, err := t.q.ExecContext(ctx, `
		UPDATE atoms SET paths = ?, related_atoms = ?, molecule_id = ?,
		       version = version + 1, modified_at = ?
		WHERE id = ? AND version = ?`,
		encodeList(paths), encodeList(related), moleculeVal,
		formatTime(now()), id, current.Version)
	if err != nil {
		return nil, wrapDBError("update atom", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, types.Conflictf("atom %s was modified concurrently", id)
	}
	return t.GetAtom(ctx, id)
}

// UpdateAtomKnowledge writes the knowledge blob. Append mode joins the new
// text to the existing blob behind a provenance separator line; the combined
// size stays under the cap.
func (t *Tx) UpdateAtomKnowledge(ctx context.Context, id, knowledge string, mode types.KnowledgeMode, taskID string, expectedVersion int) (*types.Atom, error) {
	current, err := t.GetAtom(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkVersion("atom", id, expectedVersion, current.Version); err != nil {
		return nil, err
	}
	if !mode.IsValid() {
		return nil, types.Validationf("invalid knowledge mode %q", mode)
	}
	if taskID == "" {
		return nil, types.Validationf("knowledge updates require a task id")
	}
	if err := t.entityExists(ctx, types.EntityTask, taskID); err != nil {
		return nil, err
	}

	combined := combineKnowledge(current.Knowledge, knowledge, mode, taskID)
	if len(combined) > types.MaxKnowledgeBytes {
		return nil, types.Validationf("knowledge exceeds %d bytes", types.MaxKnowledgeBytes)
	}

	res, err := t.q.ExecContext(ctx, `
		UPDATE atoms SET knowledge = ?, last_updated_by_task_id = ?,
		       version = version + 1, modified_at = ?
		WHERE id = ? AND version = ?`,
		combined, taskID, formatTime(now()), id, current.Version)
	if err != nil {
		return nil, wrapDBError("update atom knowledge", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, types.Conflictf("atom %s was modified concurrently", id)
	}
	return t.GetAtom(ctx, id)
}

// combineKnowledge implements the overwrite/append modes shared by atoms and
// molecules. Appends are framed by a separator naming when and by which task.
func combineKnowledge(existing, incoming string, mode types.KnowledgeMode, taskID string) string {
	if mode == types.KnowledgeOverwrite {
		return incoming
	}
	sep := "---[" + formatTime(now()) + " task:" + taskID + "]---"
	if existing == "" {
		return sep + "\n" + incoming
	}
	return existing + "\n" + sep + "\n" + incoming
}

// DeleteAtom removes the atom, its changelog, and every sibling reference
// to it.
func (t *Tx) DeleteAtom(ctx context.Context, id string) error {
	if _, err := t.GetAtom(ctx, id); err != nil {
		return err
	}
	if _, err := t.q.ExecContext(ctx,
		"DELETE FROM changelog WHERE parent_type = 'atom' AND parent_id = ?", id); err != nil {
		return wrapDBError("delete atom changelog", err)
	}
	if err := t.scrubRelatedRefs(ctx, "atoms", "related_atoms", id); err != nil {
		return err
	}
	if _, err := t.q.ExecContext(ctx, "DELETE FROM atoms WHERE id = ?", id); err != nil {
		return wrapDBError("delete atom", err)
	}
	return nil
}

// scrubRelatedRefs drops id from every related_* list in the given graph
// table, bumping versions on touched rows.
func (t *Tx) scrubRelatedRefs(ctx context.Context, table, column, id string) error {
	rows, err := t.q.QueryContext(ctx,
		"SELECT id, "+column+" FROM "+table+" WHERE "+column+" LIKE ?", likePattern(id))
	if err != nil {
		return wrapDBError("scan related refs", err)
	}
	type row struct {
		id   string
		refs []string
	}
	var touched []row
	for rows.Next() {
		var r row
		var raw string
		if err := rows.Scan(&r.id, &raw); err != nil {
			rows.Close()
			return wrapDBError("scan related row", err)
		}
		refs, changed := types.RemoveStrings(decodeList(raw), []string{id})
		if changed {
			r.refs = refs
			touched = append(touched, r)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return wrapDBError("scan related refs", err)
	}
	rows.Close()

	for _, r := range touched {
		if _, err := t.q.ExecContext(ctx,
			"UPDATE "+table+" SET "+column+" = ?, version = version + 1, modified_at = ? WHERE id = ?",
			encodeList(r.refs), formatTime(now()), r.id); err != nil {
			return wrapDBError("scrub related refs", err)
		}
	}
	return nil
}
