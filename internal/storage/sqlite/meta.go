package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/alioshr/task-orchestrator-sub000/internal/types"
)

func (s *Store) HasWorkflowData(ctx context.Context) (bool, error) {
	return s.reader().HasWorkflowData(ctx)
}

func (s *Store) PipelineLock(ctx context.Context) (string, bool, error) {
	return s.reader().PipelineLock(ctx)
}

func (s *Store) SavePipelineLock(ctx context.Context, configJSON string) error {
	return s.write(ctx, func(tx *Tx) error {
		return tx.SavePipelineLock(ctx, configJSON)
	})
}

func (s *Store) StatusCounts(ctx context.Context, entity types.EntityType) (map[string]int, error) {
	return s.reader().StatusCounts(ctx, entity)
}

func (s *Store) Stats(ctx context.Context) (*types.Stats, error) {
	return s.reader().Stats(ctx)
}

// HasWorkflowData reports whether any project, feature, or task rows exist.
// The pipeline lock dance only rewrites the lock while this is false.
func (t *Tx) HasWorkflowData(ctx context.Context) (bool, error) {
	var one int
	err := t.q.QueryRowContext(ctx,
		"SELECT 1 FROM projects UNION SELECT 1 FROM features UNION SELECT 1 FROM tasks LIMIT 1").Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, wrapDBError("check workflow data", err)
	}
	return true, nil
}

// PipelineLock reads the locked pipeline config JSON, if any.
func (t *Tx) PipelineLock(ctx context.Context) (string, bool, error) {
	var configJSON string
	err := t.q.QueryRowContext(ctx,
		"SELECT config_json FROM _pipeline_config WHERE id = 1").Scan(&configJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, wrapDBError("read pipeline lock", err)
	}
	return configJSON, true, nil
}

// SavePipelineLock upserts the single lock row.
func (t *Tx) SavePipelineLock(ctx context.Context, configJSON string) error {
	if _, err := t.q.ExecContext(ctx, `
		INSERT INTO _pipeline_config (id, config_json, updated_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET config_json = excluded.config_json,
		                              updated_at = excluded.updated_at`,
		configJSON, formatTime(now())); err != nil {
		return wrapDBError("save pipeline lock", err)
	}
	return nil
}

// StatusCounts groups a table's rows by status, used by the bootstrap orphan
// check and the stats listing.
func (t *Tx) StatusCounts(ctx context.Context, entity types.EntityType) (map[string]int, error) {
	table, err := workflowTable(entity)
	if err != nil {
		return nil, err
	}
	rows, err := t.q.QueryContext(ctx,
		"SELECT status, COUNT(*) FROM "+table+" GROUP BY status")
	if err != nil {
		return nil, wrapDBError("count statuses", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, wrapDBError("scan status count", err)
		}
		counts[status] = n
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError("count statuses", err)
	}
	return counts, nil
}

// Stats aggregates row counts across the store.
func (t *Tx) Stats(ctx context.Context) (*types.Stats, error) {
	stats := &types.Stats{}
	counts := []struct {
		table string
		dest  *int
	}{
		{"projects", &stats.Projects},
		{"features", &stats.Features},
		{"tasks", &stats.Tasks},
		{"sections", &stats.Sections},
		{"templates", &stats.Templates},
		{"atoms", &stats.Atoms},
		{"molecules", &stats.Molecules},
		{"changelog", &stats.Changelog},
	}
	for _, c := range counts {
		if err := t.q.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM "+c.table).Scan(c.dest); err != nil {
			return nil, wrapDBError("count "+c.table, err)
		}
	}

	var err error
	if stats.FeatureStatus, err = t.StatusCounts(ctx, types.EntityFeature); err != nil {
		return nil, err
	}
	if stats.TaskStatus, err = t.StatusCounts(ctx, types.EntityTask); err != nil {
		return nil, err
	}
	return stats, nil
}
