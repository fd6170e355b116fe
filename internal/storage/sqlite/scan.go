package sqlite

import (
	"context"
	"database/sql"

	"github.com/alioshr/task-orchestrator-sub000/internal/types"
)

// scannable is satisfied by both *sql.Row and *sql.Rows so the per-entity
// scanners serve single gets and list queries alike.
type scannable interface {
	Scan(dest ...interface{}) error
}

const projectColumns = "id, name, summary, description, status, version, created_at, modified_at"

func scanProject(row scannable) (*types.Project, error) {
	var (
		p        types.Project
		created  string
		modified string
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Summary, &p.Description, &p.Status,
		&p.Version, &created, &modified); err != nil {
		return nil, err
	}
	p.CreatedAt = parseTime(created)
	p.ModifiedAt = parseTime(modified)
	return &p, nil
}

const featureColumns = "id, project_id, name, summary, description, status, priority, " +
	"blocked_by, blocked_reason, related_to, version, created_at, modified_at"

func scanFeature(row scannable) (*types.Feature, error) {
	var (
		f         types.Feature
		projectID sql.NullString
		blockedBy string
		reason    sql.NullString
		relatedTo string
		created   string
		modified  string
	)
	if err := row.Scan(&f.ID, &projectID, &f.Name, &f.Summary, &f.Description,
		&f.Status, &f.Priority, &blockedBy, &reason, &relatedTo,
		&f.Version, &created, &modified); err != nil {
		return nil, err
	}
	f.ProjectID = projectID.String
	f.BlockedBy = decodeList(blockedBy)
	f.BlockedReason = reason.String
	f.RelatedTo = decodeList(relatedTo)
	f.CreatedAt = parseTime(created)
	f.ModifiedAt = parseTime(modified)
	return &f, nil
}

const taskColumns = "id, feature_id, project_id, title, summary, description, status, " +
	"priority, complexity, blocked_by, blocked_reason, related_to, dependencies, " +
	"version, created_at, modified_at"

func scanTask(row scannable) (*types.Task, error) {
	var (
		t            types.Task
		featureID    sql.NullString
		projectID    sql.NullString
		blockedBy    string
		reason       sql.NullString
		relatedTo    string
		dependencies string
		created      string
		modified     string
	)
	if err := row.Scan(&t.ID, &featureID, &projectID, &t.Title, &t.Summary,
		&t.Description, &t.Status, &t.Priority, &t.Complexity, &blockedBy,
		&reason, &relatedTo, &dependencies, &t.Version, &created, &modified); err != nil {
		return nil, err
	}
	t.FeatureID = featureID.String
	t.ProjectID = projectID.String
	t.BlockedBy = decodeList(blockedBy)
	t.BlockedReason = reason.String
	t.RelatedTo = decodeList(relatedTo)
	t.Dependencies = decodeList(dependencies)
	t.CreatedAt = parseTime(created)
	t.ModifiedAt = parseTime(modified)
	return &t, nil
}

const sectionColumns = "id, entity_type, entity_id, title, usage, content, " +
	"content_format, ordinal, tag, version, created_at, modified_at"

func scanSection(row scannable) (*types.Section, error) {
	var (
		s        types.Section
		created  string
		modified string
	)
	if err := row.Scan(&s.ID, &s.EntityType, &s.EntityID, &s.Title, &s.Usage,
		&s.Content, &s.Format, &s.Ordinal, &s.Tag, &s.Version,
		&created, &modified); err != nil {
		return nil, err
	}
	s.CreatedAt = parseTime(created)
	s.ModifiedAt = parseTime(modified)
	return &s, nil
}

const templateColumns = "id, name, description, is_built_in, is_protected, " +
	"is_enabled, version, created_at, modified_at"

func scanTemplate(row scannable) (*types.Template, error) {
	var (
		t        types.Template
		created  string
		modified string
	)
	if err := row.Scan(&t.ID, &t.Name, &t.Description, &t.IsBuiltIn, &t.IsProtected,
		&t.IsEnabled, &t.Version, &created, &modified); err != nil {
		return nil, err
	}
	t.CreatedAt = parseTime(created)
	t.ModifiedAt = parseTime(modified)
	return &t, nil
}

const atomColumns = "id, project_id, molecule_id, paths, knowledge, related_atoms, " +
	"created_by_task_id, last_updated_by_task_id, version, created_at, modified_at"

func scanAtom(row scannable) (*types.Atom, error) {
	var (
		a          types.Atom
		moleculeID sql.NullString
		paths      string
		related    string
		createdBy  sql.NullString
		updatedBy  sql.NullString
		created    string
		modified   string
	)
	if err := row.Scan(&a.ID, &a.ProjectID, &moleculeID, &paths, &a.Knowledge,
		&related, &createdBy, &updatedBy, &a.Version, &created, &modified); err != nil {
		return nil, err
	}
	a.MoleculeID = moleculeID.String
	a.Paths = decodeList(paths)
	a.RelatedAtoms = decodeList(related)
	a.CreatedByTaskID = createdBy.String
	a.LastUpdatedByTaskID = updatedBy.String
	a.CreatedAt = parseTime(created)
	a.ModifiedAt = parseTime(modified)
	return &a, nil
}

const moleculeColumns = "id, project_id, name, knowledge, related_molecules, " +
	"created_by_task_id, last_updated_by_task_id, version, created_at, modified_at"

func scanMolecule(row scannable) (*types.Molecule, error) {
	var (
		m         types.Molecule
		related   string
		createdBy sql.NullString
		updatedBy sql.NullString
		created   string
		modified  string
	)
	if err := row.Scan(&m.ID, &m.ProjectID, &m.Name, &m.Knowledge, &related,
		&createdBy, &updatedBy, &m.Version, &created, &modified); err != nil {
		return nil, err
	}
	m.RelatedMolecules = decodeList(related)
	m.CreatedByTaskID = createdBy.String
	m.LastUpdatedByTaskID = updatedBy.String
	m.CreatedAt = parseTime(created)
	m.ModifiedAt = parseTime(modified)
	return &m, nil
}

const changelogColumns = "id, parent_type, parent_id, task_id, summary, created_at"

func scanChangelog(row scannable) (*types.ChangelogEntry, error) {
	var (
		e       types.ChangelogEntry
		created string
	)
	if err := row.Scan(&e.ID, &e.ParentType, &e.ParentID, &e.TaskID,
		&e.Summary, &created); err != nil {
		return nil, err
	}
	e.CreatedAt = parseTime(created)
	return &e, nil
}

// loadTagsFor fetches the tags for a batch of entity rows in one query,
// keyed by entity id. Tags come back alphabetically.
func loadTagsFor(ctx context.Context, q dbExecutor, entity types.EntityType, ids []string) (map[string][]string, error) {
	if len(ids) == 0 {
		return map[string][]string{}, nil
	}
	query := "SELECT entity_id, tag FROM tags WHERE entity_type = ? AND entity_id IN (" +
		sqlPlaceholders(len(ids)) + ") ORDER BY tag"
	args := append([]interface{}{string(entity)}, stringArgs(ids)...)
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError("load tags", err)
	}
	defer rows.Close()

	out := make(map[string][]string, len(ids))
	for rows.Next() {
		var id, tag string
		if err := rows.Scan(&id, &tag); err != nil {
			return nil, wrapDBError("scan tag", err)
		}
		out[id] = append(out[id], tag)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError("load tags", err)
	}
	return out, nil
}

// replaceTags swaps an entity's tag rows for the normalized list.
func replaceTags(ctx context.Context, q dbExecutor, entity types.EntityType, id string, tags []string) error {
	if _, err := q.ExecContext(ctx,
		"DELETE FROM tags WHERE entity_type = ? AND entity_id = ?",
		string(entity), id); err != nil {
		return wrapDBError("clear tags", err)
	}
	for _, tag := range types.NormalizeTags(tags) {
		if _, err := q.ExecContext(ctx,
			"INSERT INTO tags (entity_type, entity_id, tag) VALUES (?, ?, ?)",
			string(entity), id, tag); err != nil {
			return wrapDBError("insert tag", err)
		}
	}
	return nil
}

func deleteTags(ctx context.Context, q dbExecutor, entity types.EntityType, id string) error {
	if _, err := q.ExecContext(ctx,
		"DELETE FROM tags WHERE entity_type = ? AND entity_id = ?",
		string(entity), id); err != nil {
		return wrapDBError("delete tags", err)
	}
	return nil
}
