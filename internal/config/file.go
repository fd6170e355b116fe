package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/alioshr/task-orchestrator-sub000/internal/pipeline"
	"github.com/alioshr/task-orchestrator-sub000/internal/types"
)

const defaultFileHeader = `# task-orchestrator pipeline configuration.
#
# Pipelines are ordered subsets of the fixed catalogs:
#   feature: NEW, ACTIVE, READY_TO_PROD, CLOSED
#   task:    NEW, ACTIVE, TO_BE_TESTED, READY_TO_PROD, CLOSED
#
# Every pipeline must start with NEW, include ACTIVE, and end with CLOSED,
# preserving catalog order. WILL_NOT_IMPLEMENT is always available as an
# exit state and is never listed here.
#
# Once workflow data exists the active pipeline is locked in the database;
# edits to this file are ignored from then on.
`

// EnsureDefaultFile writes the annotated default configuration when no file
// exists yet. An existing file is left untouched.
func EnsureDefaultFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return types.WrapError(types.CodeStorage, err, "stat %s", path)
	}

	var buf bytes.Buffer
	buf.WriteString(defaultFileHeader)
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(pipeline.Default()); err != nil {
		return types.WrapError(types.CodeStorage, err, "encode default config")
	}
	if err := enc.Close(); err != nil {
		return types.WrapError(types.CodeStorage, err, "encode default config")
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return types.WrapError(types.CodeStorage, err, "write %s", path)
	}
	return nil
}

// LoadFile reads and strictly parses the pipeline configuration. Unknown
// keys, wrong value types, and missing required keys all fail with a
// VALIDATION_ERROR naming the problem.
func LoadFile(path string) (pipeline.ConfigData, error) {
	var data pipeline.ConfigData

	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return data, types.NotFoundf("config file %s does not exist", path)
		}
		return data, types.WrapError(types.CodeStorage, err, "read %s", path)
	}

	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&data); err != nil {
		return data, types.Validationf("config file %s is malformed: %s", path, describeYAMLError(err))
	}
	if data.Version == "" {
		return data, types.Validationf("config file %s is missing the version key", path)
	}
	if len(data.Pipelines.Feature) == 0 {
		return data, types.Validationf("config file %s is missing pipelines.feature", path)
	}
	if len(data.Pipelines.Task) == 0 {
		return data, types.Validationf("config file %s is missing pipelines.task", path)
	}
	return data, nil
}

// describeYAMLError flattens yaml.v3's multi-line type errors into one line.
func describeYAMLError(err error) string {
	var te *yaml.TypeError
	if errors.As(err, &te) {
		return strings.Join(te.Errors, "; ")
	}
	return fmt.Sprintf("%v", err)
}
