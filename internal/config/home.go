// Package config resolves the storage home and loads the pipeline
// configuration file. The YAML shape is validated strictly; anything the
// schema does not name is rejected with a descriptive error.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/alioshr/task-orchestrator-sub000/internal/types"
)

const (
	// EnvHome overrides the storage home. Absolute, ~/-prefixed, or
	// CWD-relative paths are accepted.
	EnvHome = "TASK_ORCHESTRATOR_HOME"
	// EnvDebugPaths makes bootstrap print the resolved paths to stderr.
	EnvDebugPaths = "TASK_ORCHESTRATOR_DEBUG_PATHS"

	defaultHomeName = ".task-orchestrator"
	configFileName  = "config.yaml"
	dbFileName      = "tasks.db"
)

// ResolveHome returns the absolute storage home directory.
func ResolveHome() (string, error) {
	if env := strings.TrimSpace(os.Getenv(EnvHome)); env != "" {
		return expandPath(env)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", types.WrapError(types.CodeStorage, err, "resolve user home directory")
	}
	return filepath.Join(home, defaultHomeName), nil
}

func expandPath(p string) (string, error) {
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", types.WrapError(types.CodeStorage, err, "expand %q", p)
		}
		return filepath.Join(home, strings.TrimPrefix(p, "~")), nil
	}
	if filepath.IsAbs(p) {
		return filepath.Clean(p), nil
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", types.WrapError(types.CodeStorage, err, "resolve %q against the working directory", p)
	}
	return abs, nil
}

// ConfigPath returns the pipeline config file path under a home.
func ConfigPath(home string) string {
	return filepath.Join(home, configFileName)
}

// DBPath returns the database file path under a home.
func DBPath(home string) string {
	return filepath.Join(home, dbFileName)
}

// EnsureHome creates the storage home if needed and returns it.
func EnsureHome() (string, error) {
	return EnsureHomeAt("")
}

// EnsureHomeAt creates and returns the given home, expanding ~ and
// CWD-relative paths. An empty path falls back to the environment
// resolution.
func EnsureHomeAt(path string) (string, error) {
	var (
		home string
		err  error
	)
	if strings.TrimSpace(path) == "" {
		home, err = ResolveHome()
	} else {
		home, err = expandPath(strings.TrimSpace(path))
	}
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(home, 0o755); err != nil {
		return "", types.WrapError(types.CodeStorage, err, "create storage home %s", home)
	}
	return home, nil
}

// DebugPaths reports whether bootstrap should print resolved paths.
func DebugPaths() bool {
	return os.Getenv(EnvDebugPaths) == "1"
}
