// Package bootstrap wires the process together: storage home, pipeline
// configuration file, database, pipeline lock, and the startup checks.
package bootstrap

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/alioshr/task-orchestrator-sub000/internal/config"
	"github.com/alioshr/task-orchestrator-sub000/internal/debug"
	"github.com/alioshr/task-orchestrator-sub000/internal/pipeline"
	"github.com/alioshr/task-orchestrator-sub000/internal/storage"
	"github.com/alioshr/task-orchestrator-sub000/internal/storage/sqlite"
	"github.com/alioshr/task-orchestrator-sub000/internal/types"
)

// App is the booted process state. Warnings holds non-fatal findings from
// the startup checks; they have already been logged when Boot returns.
type App struct {
	Home     string
	Store    storage.Store
	Config   *pipeline.Config
	Warnings []string
}

// Close releases the store.
func (a *App) Close() error {
	if a.Store == nil {
		return nil
	}
	return a.Store.Close()
}

// Boot prepares the process against the environment-resolved storage home:
// create the home, write the default config file on first run, open the
// database (running migrations), resolve the locked pipeline, install it
// process-wide, then run the orphan-state check. Migration and config
// failures abort; orphan findings never do.
func Boot(ctx context.Context) (*App, error) {
	return BootAt(ctx, "")
}

// BootAt is Boot rooted at an explicit home directory. An empty home falls
// back to TASK_ORCHESTRATOR_HOME and the default location.
func BootAt(ctx context.Context, home string) (*App, error) {
	home, err := config.EnsureHomeAt(home)
	if err != nil {
		return nil, err
	}
	configPath := config.ConfigPath(home)
	dbPath := config.DBPath(home)
	if config.DebugPaths() {
		fmt.Fprintf(os.Stderr, "home:   %s\nconfig: %s\ndb:     %s\n", home, configPath, dbPath)
	}

	if err := config.EnsureDefaultFile(configPath); err != nil {
		return nil, err
	}
	fileData, err := config.LoadFile(configPath)
	if err != nil {
		return nil, err
	}

	store, err := sqlite.Open(ctx, dbPath)
	if err != nil {
		return nil, err
	}

	cfg, err := pipeline.ResolveActive(ctx, store, fileData)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	pipeline.Activate(cfg)

	app := &App{Home: home, Store: store, Config: cfg}
	app.Warnings = orphanStates(ctx, store, cfg)
	for _, w := range app.Warnings {
		debug.Warnf("%s", w)
	}
	return app, nil
}

// orphanStates reports status values present in the database that the
// active pipeline does not define. Such rows predate a pipeline change;
// they stay readable but refuse transitions. Errors here are swallowed:
// the check must never block startup.
func orphanStates(ctx context.Context, store storage.Store, cfg *pipeline.Config) []string {
	var warnings []string
	for _, entity := range []types.EntityType{types.EntityFeature, types.EntityTask} {
		counts, err := store.StatusCounts(ctx, entity)
		if err != nil {
			debug.Logf("orphan check for %s failed: %v", entity, err)
			continue
		}
		pl := cfg.PipelineFor(entity)
		states := make([]string, 0, len(counts))
		for s := range counts {
			states = append(states, s)
		}
		sort.Strings(states)
		for _, state := range states {
			if pl.IsValidState(state) {
				continue
			}
			warnings = append(warnings, fmt.Sprintf(
				"%d %s row(s) in status %s, which is outside the active pipeline",
				counts[state], strings.ToLower(string(entity)), state))
		}
	}
	return warnings
}
