package sqlite

import (
	"context"

	"github.com/alioshr/task-orchestrator-sub000/internal/types"
)

func (s *Store) AppendChangelog(ctx context.Context, c types.NewChangelog) (*types.ChangelogEntry, error) {
	var out *types.ChangelogEntry
	err := s.write(ctx, func(tx *Tx) error {
		var err error
		out, err = tx.AppendChangelog(ctx, c)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) ListChangelog(ctx context.Context, parent types.ChangelogParent, parentID string) ([]*types.ChangelogEntry, error) {
	return s.reader().ListChangelog(ctx, parent, parentID)
}

func (t *Tx) checkChangelogParent(ctx context.Context, parent types.ChangelogParent, parentID string) error {
	switch parent {
	case types.ChangelogParentAtom:
		_, err := t.GetAtom(ctx, parentID)
		return err
	case types.ChangelogParentMolecule:
		_, err := t.GetMolecule(ctx, parentID)
		return err
	}
	return types.Validationf("invalid changelog parent type %q", parent)
}

// AppendChangelog records provenance under an atom or molecule. Entries are
// immutable; only a parent delete removes them.
func (t *Tx) AppendChangelog(ctx context.Context, c types.NewChangelog) (*types.ChangelogEntry, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if err := t.checkChangelogParent(ctx, c.ParentType, c.ParentID); err != nil {
		return nil, err
	}
	if err := t.entityExists(ctx, types.EntityTask, c.TaskID); err != nil {
		return nil, err
	}

	id := generateID()
	created := formatTime(now())
	if _, err := t.q.ExecContext(ctx, `
		INSERT INTO changelog (id, parent_type, parent_id, task_id, summary, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		id, string(c.ParentType), c.ParentID, c.TaskID, c.Summary, created); err != nil {
		return nil, wrapDBError("append changelog", err)
	}
	return &types.ChangelogEntry{
		ID:         id,
		ParentType: c.ParentType,
		ParentID:   c.ParentID,
		TaskID:     c.TaskID,
		Summary:    c.Summary,
		CreatedAt:  parseTime(created),
	}, nil
}

// ListChangelog returns a parent's entries oldest first.
func (t *Tx) ListChangelog(ctx context.Context, parent types.ChangelogParent, parentID string) ([]*types.ChangelogEntry, error) {
	if err := t.checkChangelogParent(ctx, parent, parentID); err != nil {
		return nil, err
	}
	rows, err := t.q.QueryContext(ctx,
		"SELECT "+changelogColumns+" FROM changelog WHERE parent_type = ? AND parent_id = ? ORDER BY created_at ASC, id ASC",
		string(parent), parentID)
	if err != nil {
		return nil, wrapDBError("list changelog", err)
	}
	defer rows.Close()

	var entries []*types.ChangelogEntry
	for rows.Next() {
		e, err := scanChangelog(rows)
		if err != nil {
			return nil, wrapDBError("scan changelog entry", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError("list changelog", err)
	}
	return entries, nil
}
