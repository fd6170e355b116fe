package pipeline

import (
	"encoding/json"
	"sync"

	"github.com/alioshr/task-orchestrator-sub000/internal/types"
)

// ConfigVersion is the config schema version written to new files. The
// loader also accepts the short form "3".
const ConfigVersion = "3.0"

// ConfigData is the serialized shape of the pipeline configuration, shared
// by the YAML file and the JSON lock row.
type ConfigData struct {
	Version   string        `yaml:"version" json:"version"`
	Pipelines PipelineLists `yaml:"pipelines" json:"pipelines"`
}

// PipelineLists holds the raw state lists per entity type.
type PipelineLists struct {
	Feature []string `yaml:"feature" json:"feature"`
	Task    []string `yaml:"task" json:"task"`
}

// Default returns the minimal configuration written on first boot.
func Default() ConfigData {
	return ConfigData{
		Version: ConfigVersion,
		Pipelines: PipelineLists{
			Feature: []string{types.StatusNew, types.StatusActive, types.StatusClosed},
			Task:    []string{types.StatusNew, types.StatusActive, types.StatusClosed},
		},
	}
}

// Config is a validated, immutable configuration: one pipeline per
// status-bearing entity type.
type Config struct {
	data    ConfigData
	feature *Pipeline
	task    *Pipeline
}

// NewConfig validates the raw data and builds the configuration.
func NewConfig(data ConfigData) (*Config, error) {
	switch data.Version {
	case "3.0", "3":
	default:
		return nil, types.Validationf("unsupported config version %q, want %q", data.Version, ConfigVersion)
	}
	feature, err := New(types.EntityFeature, data.Pipelines.Feature)
	if err != nil {
		return nil, err
	}
	task, err := New(types.EntityTask, data.Pipelines.Task)
	if err != nil {
		return nil, err
	}
	return &Config{data: data, feature: feature, task: task}, nil
}

// Data returns a copy of the raw configuration.
func (c *Config) Data() ConfigData {
	out := ConfigData{Version: c.data.Version}
	out.Pipelines.Feature = c.feature.States()
	out.Pipelines.Task = c.task.States()
	return out
}

// PipelineFor returns the pipeline governing an entity type, or nil for
// stateless types.
func (c *Config) PipelineFor(entity types.EntityType) *Pipeline {
	switch entity {
	case types.EntityFeature:
		return c.feature
	case types.EntityTask:
		return c.task
	}
	return nil
}

// EncodeJSON renders the configuration for the lock row.
func (c *Config) EncodeJSON() (string, error) {
	b, err := json.Marshal(c.Data())
	if err != nil {
		return "", types.WrapError(types.CodeStorage, err, "encode pipeline config")
	}
	return string(b), nil
}

// DecodeJSON parses and validates a lock-row payload.
func DecodeJSON(raw string) (*Config, error) {
	var data ConfigData
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, types.WrapError(types.CodeInvariantViolation, err, "stored pipeline config is not valid JSON")
	}
	return NewConfig(data)
}

var (
	activeMu sync.RWMutex
	active   *Config
)

// Activate installs the process-wide configuration. Bootstrap calls this
// exactly once before any repository work; the handle is immutable until
// Reset.
func Activate(c *Config) {
	activeMu.Lock()
	defer activeMu.Unlock()
	active = c
}

// Active returns the installed configuration. Paths that bypass bootstrap
// (unit tests, ad hoc tools) get the defaults.
func Active() *Config {
	activeMu.RLock()
	c := active
	activeMu.RUnlock()
	if c != nil {
		return c
	}

	activeMu.Lock()
	defer activeMu.Unlock()
	if active == nil {
		def, err := NewConfig(Default())
		if err != nil {
			panic(err)
		}
		active = def
	}
	return active
}

// Reset clears the process-wide configuration so the next bootstrap or
// Active call rebuilds it. Test harness path.
func Reset() {
	activeMu.Lock()
	defer activeMu.Unlock()
	active = nil
}
