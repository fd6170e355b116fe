// Package orchestrator provides a minimal public API for extending orc with
// custom automation.
//
// Most extensions should use direct SQL queries against orc's database. This
// package exports only the essential types and functions needed for Go-based
// extensions that want to use orc's storage layer programmatically.
package orchestrator

import (
	"context"

	"github.com/alioshr/task-orchestrator-sub000/internal/bootstrap"
	"github.com/alioshr/task-orchestrator-sub000/internal/config"
	"github.com/alioshr/task-orchestrator-sub000/internal/storage"
	"github.com/alioshr/task-orchestrator-sub000/internal/storage/sqlite"
	"github.com/alioshr/task-orchestrator-sub000/internal/types"
)

// Core types for working with the work hierarchy and knowledge graph
type (
	Project        = types.Project
	Feature        = types.Feature
	Task           = types.Task
	Section        = types.Section
	Template       = types.Template
	Atom           = types.Atom
	Molecule       = types.Molecule
	ChangelogEntry = types.ChangelogEntry
	EntityType     = types.EntityType
	SearchOptions  = types.SearchOptions
	Stats          = types.Stats
)

// Workflow status constants
const (
	StatusNew              = types.StatusNew
	StatusActive           = types.StatusActive
	StatusToBeTested       = types.StatusToBeTested
	StatusReadyToProd      = types.StatusReadyToProd
	StatusClosed           = types.StatusClosed
	StatusWillNotImplement = types.StatusWillNotImplement
)

// EntityType constants
const (
	EntityProject  = types.EntityProject
	EntityFeature  = types.EntityFeature
	EntityTask     = types.EntityTask
	EntityTemplate = types.EntityTemplate
)

// BlockerNoOp is the sentinel blocker ID for reason-only blocks.
const BlockerNoOp = types.BlockerNoOp

// Storage provides the minimal interface for extension automation
type Storage = storage.Store

// App is a booted orchestrator: resolved home, open store, active pipeline.
type App = bootstrap.App

// Open opens an orc SQLite database for programmatic access.
// Most extensions should use this to inspect work state and record knowledge.
func Open(ctx context.Context, dbPath string) (Storage, error) {
	return sqlite.Open(ctx, dbPath)
}

// Boot runs the full startup sequence: home resolution, config load, schema
// migration, and pipeline activation. An empty home uses TASK_ORCHESTRATOR_HOME
// or the default location.
func Boot(ctx context.Context, home string) (*App, error) {
	return bootstrap.BootAt(ctx, home)
}

// DefaultHome returns the storage home orc would use, without creating it.
func DefaultHome() (string, error) {
	return config.ResolveHome()
}

// DatabasePath returns the SQLite database path under the given home.
func DatabasePath(home string) string {
	return config.DBPath(home)
}
