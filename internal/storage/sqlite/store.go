// Package sqlite implements the storage interfaces on a single-file SQLite
// database using the pure-Go ncruces driver (no cgo). Durability settings
// follow the engine contract: WAL journaling, a 5-second busy wait,
// referential checks on, and normal fsync.
package sqlite

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	sqlite3 "github.com/ncruces/go-sqlite3"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/tetratelabs/wazero"

	"github.com/alioshr/task-orchestrator-sub000/internal/debug"
	"github.com/alioshr/task-orchestrator-sub000/internal/storage"
	"github.com/alioshr/task-orchestrator-sub000/internal/types"
)

func init() {
	setupWASMCache()
}

// setupWASMCache configures a persistent compilation cache for the SQLite
// WASM module. Without it every process start pays ~100ms to recompile.
// Failures fall back to uncached compilation.
func setupWASMCache() {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return
	}
	dir := filepath.Join(cacheDir, "task-orchestrator", "wazero")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return
	}
	cache, err := wazero.NewCompilationCacheWithDir(dir)
	if err != nil {
		return
	}
	sqlite3.RuntimeConfig = wazero.NewRuntimeConfig().WithCompilationCache(cache)
}

// Store is the sqlite-backed storage implementation. All repositories and
// the workflow engine share one Store per process.
type Store struct {
	db     *sql.DB
	path   string
	memory bool

	closeMu sync.Mutex
	closed  bool
}

var _ storage.Store = (*Store)(nil)

// Open opens the database at path, creating the file and parent directory
// if needed, applies the durability pragmas, and runs pending migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	memory := strings.Contains(path, ":memory:") || strings.Contains(path, "mode=memory")
	if !memory {
		if dir := filepath.Dir(path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, types.WrapError(types.CodeStorage, err, "create database directory %s", dir)
			}
		}
	}

	connStr := "file:" + path +
		"?_pragma=foreign_keys(ON)" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=synchronous(NORMAL)" +
		"&_time_format=sqlite"
	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, types.WrapError(types.CodeStorage, err, "open database %s", path)
	}

	if memory {
		// A second connection would see a different empty database.
		db.SetMaxOpenConns(1)
	} else {
		// WAL cannot be set through the connection string; it must be the
		// first statement and it persists in the file.
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, types.WrapError(types.CodeStorage, err, "enable WAL on %s", path)
		}
		db.SetMaxOpenConns(runtime.NumCPU() + 1)
	}

	s := &Store{db: db, path: path, memory: memory}
	if err := s.runMigrations(ctx); err != nil {
		db.Close()
		return nil, err
	}
	debug.Logf("opened store at %s", path)
	return s, nil
}

// Path returns the database location.
func (s *Store) Path() string { return s.path }

// Close checkpoints the WAL and releases the handle. Safe to call twice.
func (s *Store) Close() error {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	if !s.memory {
		if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
			debug.Logf("wal checkpoint on close failed: %v", err)
		}
	}
	if err := s.db.Close(); err != nil {
		return types.WrapError(types.CodeStorage, err, "close database %s", s.path)
	}
	return nil
}
