package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/alioshr/task-orchestrator-sub000/internal/types"
)

func (s *Store) CreateMolecule(ctx context.Context, m types.NewMolecule) (*types.Molecule, error) {
	var out *types.Molecule
	err := s.write(ctx, func(tx *Tx) error {
		var err error
		out, err = tx.CreateMolecule(ctx, m)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) GetMolecule(ctx context.Context, id string) (*types.Molecule, error) {
	return s.reader().GetMolecule(ctx, id)
}

func (s *Store) ListMolecules(ctx context.Context, projectID string) ([]*types.Molecule, error) {
	return s.reader().ListMolecules(ctx, projectID)
}

func (s *Store) UpdateMolecule(ctx context.Context, id string, updates map[string]interface{}, expectedVersion int) (*types.Molecule, error) {
	var out *types.Molecule
	err := s.write(ctx, func(tx *Tx) error {
		var err error
		out, err = tx.UpdateMolecule(ctx, id, updates, expectedVersion)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) UpdateMoleculeKnowledge(ctx context.Context, id, knowledge string, mode types.KnowledgeMode, taskID string, expectedVersion int) (*types.Molecule, error) {
	var out *types.Molecule
	err := s.write(ctx, func(tx *Tx) error {
		var err error
		out, err = tx.UpdateMoleculeKnowledge(ctx, id, knowledge, mode, taskID, expectedVersion)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) DeleteMolecule(ctx context.Context, id string, cascade bool) error {
	return s.write(ctx, func(tx *Tx) error {
		return tx.DeleteMolecule(ctx, id, cascade)
	})
}

func (t *Tx) checkRelatedMolecules(ctx context.Context, refs []string, projectID string) error {
	for _, ref := range refs {
		peer, err := t.GetMolecule(ctx, ref)
		if err != nil {
			return err
		}
		if peer.ProjectID != projectID {
			return types.Invariantf("molecule %s belongs to a different project", ref)
		}
	}
	return nil
}

func (t *Tx) CreateMolecule(ctx context.Context, m types.NewMolecule) (*types.Molecule, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if _, err := t.GetProject(ctx, m.ProjectID); err != nil {
		return nil, err
	}
	if err := t.checkRelatedMolecules(ctx, m.RelatedMolecules, m.ProjectID); err != nil {
		return nil, err
	}
	if m.CreatedByTaskID != "" {
		if err := t.entityExists(ctx, types.EntityTask, m.CreatedByTaskID); err != nil {
			return nil, err
		}
	}

	id := generateID()
	ts := formatTime(now())
	var creatorVal interface{}
	if m.CreatedByTaskID != "" {
		creatorVal = m.CreatedByTaskID
	}
	if _, err := t.q.ExecContext(ctx, `
		INSERT INTO molecules (id, project_id, name, knowledge, related_molecules,
		                       created_by_task_id, last_updated_by_task_id, version,
		                       created_at, modified_at)
		VALUES (?, ?, ?, ?, ?, ?, NULL, 1, ?, ?)`,
		id, m.ProjectID, strings.TrimSpace(m.Name), m.Knowledge,
		encodeList(m.RelatedMolecules), creatorVal, ts, ts); err != nil {
		return nil, wrapDBError("create molecule", err)
	}
	return t.GetMolecule(ctx, id)
}

func (t *Tx) GetMolecule(ctx context.Context, id string) (*types.Molecule, error) {
	row := t.q.QueryRowContext(ctx,
		"SELECT "+moleculeColumns+" FROM molecules WHERE id = ?", id)
	m, err := scanMolecule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.NotFoundf("molecule %s not found", id)
	}
	if err != nil {
		return nil, wrapDBError("get molecule", err)
	}
	return m, nil
}

func (t *Tx) ListMolecules(ctx context.Context, projectID string) ([]*types.Molecule, error) {
	if _, err := t.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	rows, err := t.q.QueryContext(ctx,
		"SELECT "+moleculeColumns+" FROM molecules WHERE project_id = ? ORDER BY created_at ASC, id ASC",
		projectID)
	if err != nil {
		return nil, wrapDBError("list molecules", err)
	}
	defer rows.Close()

	var molecules []*types.Molecule
	for rows.Next() {
		m, err := scanMolecule(rows)
		if err != nil {
			return nil, wrapDBError("scan molecule", err)
		}
		molecules = append(molecules, m)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError("list molecules", err)
	}
	return molecules, nil
}

func (t *Tx) UpdateMolecule(ctx context.Context, id string, updates map[string]interface{}, expectedVersion int) (*types.Molecule, error) {
	current, err := t.GetMolecule(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkVersion("molecule", id, expectedVersion, current.Version); err != nil {
		return nil, err
	}

	name := current.Name
	related := current.RelatedMolecules

	for key, v := range updates {
		switch key {
		case "name":
			if name, err = requiredStringValue(key, v); err == nil {
				if len(name) > types.MaxMoleculeName {
					return nil, types.Validationf("molecule name exceeds %d characters", types.MaxMoleculeName)
				}
			}
		case "related_molecules":
			if related, err = stringListValue(key, v); err == nil {
				if err = types.ValidateRelatedRefs(related, id); err == nil {
					err = t.checkRelatedMolecules(ctx, related, current.ProjectID)
				}
			}
		default:
			return nil, types.Validationf("unknown molecule field %q", key)
		}
		if err != nil {
			return nil, err
		}
	}

	res, err := t.q.ExecContext(ctx, `
		UPDATE molecules SET name = ?, related_molecules = ?,
		       version = version + 1, modified_at = ?
		WHERE id = ? AND version = ?`,
		name, encodeList(related), formatTime(now()), id, current.Version)
	if err != nil {
		return nil, wrapDBError("update molecule", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, types.Conflictf("molecule %s was modified concurrently", id)
	}
	return t.GetMolecule(ctx, id)
}

func (t *Tx) UpdateMoleculeKnowledge(ctx context.Context, id, knowledge string, mode types.KnowledgeMode, taskID string, expectedVersion int) (*types.Molecule, error) {
	current, err := t.GetMolecule(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkVersion("molecule", id, expectedVersion, current.Version); err != nil {
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
		UPDATE molecules SET knowledge = ?, last_updated_by_task_id = ?,
		       version = version + 1, modified_at = ?
		WHERE id = ? AND version = ?`,
		combined, taskID, formatTime(now()), id, current.Version)
	if err != nil {
		return nil, wrapDBError("update molecule knowledge", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, types.Conflictf("molecule %s was modified concurrently", id)
	}
	return t.GetMolecule(ctx, id)
}

// DeleteMolecule removes a grouping. Without cascade the member atoms are
// orphaned (molecule link nulled); with cascade they are deleted along with
// their changelog rows.
func (t *Tx) DeleteMolecule(ctx context.Context, id string, cascade bool) error {
	if _, err := t.GetMolecule(ctx, id); err != nil {
		return err
	}

	if cascade {
		rows, err := t.q.QueryContext(ctx,
			"SELECT id FROM atoms WHERE molecule_id = ?", id)
		if err != nil {
			return wrapDBError("list member atoms", err)
		}
		var ids []string
		for rows.Next() {
			var aid string
			if err := rows.Scan(&aid); err != nil {
				rows.Close()
				return wrapDBError("scan atom id", err)
			}
			ids = append(ids, aid)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return wrapDBError("list member atoms", err)
		}
		rows.Close()
		for _, aid := range ids {
			if err := t.DeleteAtom(ctx, aid); err != nil {
				return err
			}
		}
	} else {
		if _, err := t.q.ExecContext(ctx, `
			UPDATE atoms SET molecule_id = NULL, version = version + 1, modified_at = ?
			WHERE molecule_id = ?`,
			formatTime(now()), id); err != nil {
			return wrapDBError("orphan member atoms", err)
		}
	}

	if _, err := t.q.ExecContext(ctx,
		"DELETE FROM changelog WHERE parent_type = 'molecule' AND parent_id = ?", id); err != nil {
		return wrapDBError("delete molecule changelog", err)
	}
	if err := t.scrubRelatedRefs(ctx, "molecules", "related_molecules", id); err != nil {
		return err
	}
	if _, err := t.q.ExecContext(ctx, "DELETE FROM molecules WHERE id = ?", id); err != nil {
		return wrapDBError("delete molecule", err)
	}
	return nil
}
