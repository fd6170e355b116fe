package sqlite

import (
	"context"

	"github.com/alioshr/task-orchestrator-sub000/internal/debug"
	"github.com/alioshr/task-orchestrator-sub000/internal/types"
)

// Schema history. Scripts run exactly once, in order, each inside its own
// exclusive transaction; a failed script rolls back alone and aborts
// bootstrap while earlier versions stay applied. Never edit an applied
// script; append a new version instead.

const createMigrationsTable = `
CREATE TABLE IF NOT EXISTS _migrations (
    version INTEGER PRIMARY KEY,
    name TEXT NOT NULL,
    applied_at TEXT NOT NULL
)`

type migration struct {
	version int
	name    string
	script  string
	// disableFKs toggles referential checks off around the script so child
	// tables can be rebuilt in place.
	disableFKs bool
}

var allMigrations = []migration{
	{1, "initial_schema", migrationInitialSchema, false},
	{2, "knowledge_graph", migrationKnowledgeGraph, false},
	{3, "pipeline_v3", migrationPipelineV3, true},
}

func (s *Store) runMigrations(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createMigrationsTable); err != nil {
		return types.WrapError(types.CodeStorage, err, "create _migrations table")
	}

	applied := make(map[int]bool)
	rows, err := s.db.QueryContext(ctx, "SELECT version FROM _migrations")
	if err != nil {
		return types.WrapError(types.CodeStorage, err, "read applied migrations")
	}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return types.WrapError(types.CodeStorage, err, "scan migration version")
		}
		applied[v] = true
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return types.WrapError(types.CodeStorage, err, "read applied migrations")
	}
	rows.Close()

	for _, m := range allMigrations {
		if applied[m.version] {
			continue
		}
		debug.Logf("applying migration %d (%s)", m.version, m.name)
		if err := s.applyMigration(ctx, m); err != nil {
			return types.WrapError(types.CodeStorage, err, "migration %d (%s)", m.version, m.name)
		}
	}
	return nil
}

func (s *Store) applyMigration(ctx context.Context, m migration) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	if m.disableFKs {
		// The pragma is a no-op inside a transaction; it must wrap one on a
		// dedicated connection.
		if _, err := conn.ExecContext(ctx, "PRAGMA foreign_keys=OFF"); err != nil {
			return err
		}
		defer func() {
			if _, err := conn.ExecContext(context.Background(), "PRAGMA foreign_keys=ON"); err != nil {
				debug.Logf("restore foreign_keys failed: %v", err)
			}
		}()
	}

	if _, err := conn.ExecContext(ctx, "BEGIN EXCLUSIVE"); err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			if _, err := conn.ExecContext(context.Background(), "ROLLBACK"); err != nil {
				debug.Logf("migration rollback failed: %v", err)
			}
		}
	}()

	if _, err := conn.ExecContext(ctx, m.script); err != nil {
		return err
	}
	if _, err := conn.ExecContext(ctx,
		"INSERT INTO _migrations (version, name, applied_at) VALUES (?, ?, ?)",
		m.version, m.name, formatTime(now())); err != nil {
		return err
	}
	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return err
	}
	committed = true
	return nil
}

// Version 1: the original fixed-pipeline schema. Statuses were enforced by
// CHECK constraints back then; version 3 rebuilds these tables without them.
const migrationInitialSchema = `
CREATE TABLE projects (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    summary TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT 'NEW',
    version INTEGER NOT NULL DEFAULT 1,
    search_vector TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL,
    modified_at TEXT NOT NULL
);

CREATE TABLE features (
    id TEXT PRIMARY KEY,
    project_id TEXT REFERENCES projects(id),
    name TEXT NOT NULL,
    summary TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT 'NEW'
        CHECK (status IN ('NEW', 'ACTIVE', 'READY_TO_PROD', 'CLOSED', 'WILL_NOT_IMPLEMENT')),
    priority TEXT NOT NULL DEFAULT 'MEDIUM' CHECK (priority IN ('HIGH', 'MEDIUM', 'LOW')),
    version INTEGER NOT NULL DEFAULT 1,
    search_vector TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL,
    modified_at TEXT NOT NULL
);

CREATE TABLE tasks (
    id TEXT PRIMARY KEY,
    feature_id TEXT REFERENCES features(id),
    project_id TEXT REFERENCES projects(id),
    title TEXT NOT NULL,
    summary TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT 'NEW'
        CHECK (status IN ('NEW', 'ACTIVE', 'TO_BE_TESTED', 'READY_TO_PROD', 'CLOSED', 'WILL_NOT_IMPLEMENT')),
    priority TEXT NOT NULL DEFAULT 'MEDIUM' CHECK (priority IN ('HIGH', 'MEDIUM', 'LOW')),
    complexity INTEGER NOT NULL DEFAULT 1 CHECK (complexity BETWEEN 1 AND 10),
    dependencies TEXT NOT NULL DEFAULT '[]',
    version INTEGER NOT NULL DEFAULT 1,
    search_vector TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL,
    modified_at TEXT NOT NULL
);

CREATE TABLE sections (
    id TEXT PRIMARY KEY,
    entity_type TEXT NOT NULL CHECK (entity_type IN ('PROJECT', 'FEATURE', 'TASK', 'TEMPLATE')),
    entity_id TEXT NOT NULL,
    title TEXT NOT NULL,
    usage TEXT NOT NULL DEFAULT '',
    content TEXT NOT NULL DEFAULT '',
    content_format TEXT NOT NULL DEFAULT 'MARKDOWN'
        CHECK (content_format IN ('PLAIN_TEXT', 'MARKDOWN', 'JSON', 'CODE')),
    ordinal INTEGER NOT NULL,
    tag TEXT NOT NULL DEFAULT '',
    version INTEGER NOT NULL DEFAULT 1,
    created_at TEXT NOT NULL,
    modified_at TEXT NOT NULL,
    UNIQUE (entity_type, entity_id, ordinal)
);

CREATE TABLE tags (
    entity_type TEXT NOT NULL,
    entity_id TEXT NOT NULL,
    tag TEXT NOT NULL,
    PRIMARY KEY (entity_type, entity_id, tag)
);

CREATE TABLE templates (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    description TEXT NOT NULL DEFAULT '',
    is_built_in INTEGER NOT NULL DEFAULT 0,
    is_protected INTEGER NOT NULL DEFAULT 0,
    is_enabled INTEGER NOT NULL DEFAULT 1,
    version INTEGER NOT NULL DEFAULT 1,
    created_at TEXT NOT NULL,
    modified_at TEXT NOT NULL
);

CREATE TABLE dependencies (
    from_id TEXT NOT NULL,
    to_id TEXT NOT NULL,
    dep_type TEXT NOT NULL DEFAULT 'BLOCKS',
    created_at TEXT NOT NULL,
    PRIMARY KEY (from_id, to_id, dep_type)
);

CREATE INDEX idx_features_project ON features(project_id);
CREATE INDEX idx_features_status ON features(status);
CREATE INDEX idx_tasks_feature ON tasks(feature_id);
CREATE INDEX idx_tasks_project ON tasks(project_id);
CREATE INDEX idx_tasks_status ON tasks(status);
CREATE INDEX idx_sections_owner ON sections(entity_type, entity_id);
CREATE INDEX idx_tags_tag ON tags(tag);
CREATE INDEX idx_dependencies_to ON dependencies(to_id);
`

// Version 2: the knowledge graph. Changelog rows reference tasks loosely on
// purpose: provenance must survive task deletion.
const migrationKnowledgeGraph = `
CREATE TABLE molecules (
    id TEXT PRIMARY KEY,
    project_id TEXT NOT NULL REFERENCES projects(id),
    name TEXT NOT NULL,
    knowledge TEXT NOT NULL DEFAULT '',
    related_molecules TEXT NOT NULL DEFAULT '[]',
    created_by_task_id TEXT,
    last_updated_by_task_id TEXT,
    version INTEGER NOT NULL DEFAULT 1,
    created_at TEXT NOT NULL,
    modified_at TEXT NOT NULL
);

CREATE TABLE atoms (
    id TEXT PRIMARY KEY,
    project_id TEXT NOT NULL REFERENCES projects(id),
    molecule_id TEXT REFERENCES molecules(id),
    paths TEXT NOT NULL DEFAULT '[]',
    knowledge TEXT NOT NULL DEFAULT '',
    related_atoms TEXT NOT NULL DEFAULT '[]',
    created_by_task_id TEXT,
    last_updated_by_task_id TEXT,
    version INTEGER NOT NULL DEFAULT 1,
    created_at TEXT NOT NULL,
    modified_at TEXT NOT NULL
);

CREATE TABLE changelog (
    id TEXT PRIMARY KEY,
    parent_type TEXT NOT NULL CHECK (parent_type IN ('atom', 'molecule')),
    parent_id TEXT NOT NULL,
    task_id TEXT NOT NULL,
    summary TEXT NOT NULL,
    created_at TEXT NOT NULL
);

CREATE INDEX idx_molecules_project ON molecules(project_id);
CREATE INDEX idx_atoms_project ON atoms(project_id);
CREATE INDEX idx_atoms_molecule ON atoms(molecule_id);
CREATE INDEX idx_changelog_parent ON changelog(parent_type, parent_id);
`

// Version 3: the configurable-pipeline refactor. Rebuilds features and tasks
// to drop the status CHECK constraints (states are validated against the
// locked pipeline in code now) and to add the blocker columns, folds BLOCKS
// edges into blocked_by, then retires the edge table. The legacy
// tasks.dependencies column and projects.status survive as data.
const migrationPipelineV3 = `
CREATE TABLE features_new (
    id TEXT PRIMARY KEY,
    project_id TEXT REFERENCES projects(id),
    name TEXT NOT NULL,
    summary TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT 'NEW',
    priority TEXT NOT NULL DEFAULT 'MEDIUM' CHECK (priority IN ('HIGH', 'MEDIUM', 'LOW')),
    blocked_by TEXT NOT NULL DEFAULT '[]',
    blocked_reason TEXT,
    related_to TEXT NOT NULL DEFAULT '[]',
    version INTEGER NOT NULL DEFAULT 1,
    search_vector TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL,
    modified_at TEXT NOT NULL
);

INSERT INTO features_new (id, project_id, name, summary, description, status, priority,
                          blocked_by, blocked_reason, related_to, version, search_vector,
                          created_at, modified_at)
SELECT f.id, f.project_id, f.name, f.summary, f.description, f.status, f.priority,
       (SELECT coalesce(json_group_array(d.from_id), '[]')
          FROM dependencies d WHERE d.to_id = f.id AND d.dep_type = 'BLOCKS'),
       NULL, '[]', f.version, f.search_vector, f.created_at, f.modified_at
FROM features f;

DROP TABLE features;
ALTER TABLE features_new RENAME TO features;
CREATE INDEX idx_features_project ON features(project_id);
CREATE INDEX idx_features_status ON features(status);

CREATE TABLE tasks_new (
    id TEXT PRIMARY KEY,
    feature_id TEXT REFERENCES features(id),
    project_id TEXT REFERENCES projects(id),
    title TEXT NOT NULL,
    summary TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT 'NEW',
    priority TEXT NOT NULL DEFAULT 'MEDIUM' CHECK (priority IN ('HIGH', 'MEDIUM', 'LOW')),
    complexity INTEGER NOT NULL DEFAULT 1 CHECK (complexity BETWEEN 1 AND 10),
    blocked_by TEXT NOT NULL DEFAULT '[]',
    blocked_reason TEXT,
    related_to TEXT NOT NULL DEFAULT '[]',
    dependencies TEXT NOT NULL DEFAULT '[]',
    version INTEGER NOT NULL DEFAULT 1,
    search_vector TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL,
    modified_at TEXT NOT NULL
);

INSERT INTO tasks_new (id, feature_id, project_id, title, summary, description, status,
                       priority, complexity, blocked_by, blocked_reason, related_to,
                       dependencies, version, search_vector, created_at, modified_at)
SELECT t.id, t.feature_id, t.project_id, t.title, t.summary, t.description, t.status,
       t.priority, t.complexity,
       (SELECT coalesce(json_group_array(d.from_id), '[]')
          FROM dependencies d WHERE d.to_id = t.id AND d.dep_type = 'BLOCKS'),
       NULL, '[]', t.dependencies, t.version, t.search_vector, t.created_at, t.modified_at
FROM tasks t;

DROP TABLE tasks;
ALTER TABLE tasks_new RENAME TO tasks;
CREATE INDEX idx_tasks_feature ON tasks(feature_id);
CREATE INDEX idx_tasks_project ON tasks(project_id);
CREATE INDEX idx_tasks_status ON tasks(status);

DROP TABLE dependencies;

CREATE TABLE _pipeline_config (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    config_json TEXT NOT NULL,
    updated_at TEXT NOT NULL
);
`
