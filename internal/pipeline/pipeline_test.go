package pipeline_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alioshr/task-orchestrator-sub000/internal/pipeline"
	"github.com/alioshr/task-orchestrator-sub000/internal/types"
)

func TestNewPipelineValidation(t *testing.T) {
	tests := []struct {
		name    string
		entity  types.EntityType
		states  []string
		wantErr string
	}{
		{"minimal", types.EntityTask, []string{"NEW", "ACTIVE", "CLOSED"}, ""},
		{"full task catalog", types.EntityTask, []string{"NEW", "ACTIVE", "TO_BE_TESTED", "READY_TO_PROD", "CLOSED"}, ""},
		{"full feature catalog", types.EntityFeature, []string{"NEW", "ACTIVE", "READY_TO_PROD", "CLOSED"}, ""},
		{"empty", types.EntityTask, nil, "must not be empty"},
		{"missing NEW", types.EntityTask, []string{"ACTIVE", "CLOSED"}, "must start with NEW"},
		{"missing ACTIVE", types.EntityTask, []string{"NEW", "CLOSED"}, "must include ACTIVE"},
		{"missing CLOSED", types.EntityTask, []string{"NEW", "ACTIVE"}, "must end with CLOSED"},
		{"unknown state", types.EntityTask, []string{"NEW", "ACTIVE", "QA", "CLOSED"}, "not in the catalog"},
		{"feature borrows task state", types.EntityFeature, []string{"NEW", "ACTIVE", "TO_BE_TESTED", "CLOSED"}, "not in the catalog"},
		{"out of order", types.EntityTask, []string{"NEW", "TO_BE_TESTED", "ACTIVE", "CLOSED"}, "catalog order"},
		{"duplicate state", types.EntityTask, []string{"NEW", "ACTIVE", "ACTIVE", "CLOSED"}, "catalog order"},
		{"exit state listed", types.EntityTask, []string{"NEW", "ACTIVE", "WILL_NOT_IMPLEMENT", "CLOSED"}, "not in the catalog"},
		{"stateless entity", types.EntityProject, []string{"NEW", "ACTIVE", "CLOSED"}, "no status pipeline"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := pipeline.New(tt.entity, tt.states)
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, tt.states, p.States())
				return
			}
			require.Error(t, err)
			assert.Equal(t, types.CodeValidation, types.CodeOf(err))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestPipelineValidationOrderCheckFirstMismatch(t *testing.T) {
	// NEW must be first even when present later in the list.
	_, err := pipeline.New(types.EntityTask, []string{"ACTIVE", "NEW", "CLOSED"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must start with NEW")
}

func TestPipelineHelpers(t *testing.T) {
	p, err := pipeline.New(types.EntityTask, []string{"NEW", "ACTIVE", "TO_BE_TESTED", "CLOSED"})
	require.NoError(t, err)

	next, ok := p.Next("ACTIVE")
	require.True(t, ok)
	assert.Equal(t, "TO_BE_TESTED", next)

	_, ok = p.Next("CLOSED")
	assert.False(t, ok, "last state has no next")

	prev, ok := p.Prev("ACTIVE")
	require.True(t, ok)
	assert.Equal(t, "NEW", prev)

	_, ok = p.Prev("NEW")
	assert.False(t, ok, "first state has no prev")

	_, ok = p.Next("WILL_NOT_IMPLEMENT")
	assert.False(t, ok, "exit state is not a member")

	pos, ok := p.Position("TO_BE_TESTED")
	require.True(t, ok)
	assert.Equal(t, "3 of 4", pos)

	_, ok = p.Position("READY_TO_PROD")
	assert.False(t, ok)

	assert.Equal(t, "NEW", p.First())
	assert.True(t, p.IsValidState("WILL_NOT_IMPLEMENT"))
	assert.True(t, p.IsValidState("NEW"))
	assert.False(t, p.IsValidState("QA"))
	assert.False(t, p.Contains("WILL_NOT_IMPLEMENT"))

	assert.True(t, pipeline.IsTerminal("CLOSED"))
	assert.True(t, pipeline.IsTerminal("WILL_NOT_IMPLEMENT"))
	assert.False(t, pipeline.IsTerminal("ACTIVE"))
}

func TestPipelineValidationIsStable(t *testing.T) {
	states := []string{"NEW", "ACTIVE", "READY_TO_PROD", "CLOSED"}
	first, err := pipeline.New(types.EntityTask, states)
	require.NoError(t, err)
	second, err := pipeline.New(types.EntityTask, first.States())
	require.NoError(t, err)
	assert.Equal(t, first.States(), second.States())
}

func TestConfigValidation(t *testing.T) {
	valid := pipeline.ConfigData{
		Version: "3.0",
		Pipelines: pipeline.PipelineLists{
			Feature: []string{"NEW", "ACTIVE", "CLOSED"},
			Task:    []string{"NEW", "ACTIVE", "CLOSED"},
		},
	}

	cfg, err := pipeline.NewConfig(valid)
	require.NoError(t, err)
	assert.Equal(t, []string{"NEW", "ACTIVE", "CLOSED"}, cfg.PipelineFor(types.EntityTask).States())
	assert.Nil(t, cfg.PipelineFor(types.EntityProject))

	short := valid
	short.Version = "3"
	_, err = pipeline.NewConfig(short)
	assert.NoError(t, err, "short version form is accepted")

	bad := valid
	bad.Version = "2.0"
	_, err = pipeline.NewConfig(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported config version")

	noActive := valid
	noActive.Pipelines.Task = []string{"NEW", "CLOSED"}
	_, err = pipeline.NewConfig(noActive)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ACTIVE")
}

func TestConfigJSONRoundTrip(t *testing.T) {
	cfg, err := pipeline.NewConfig(pipeline.Default())
	require.NoError(t, err)

	raw, err := cfg.EncodeJSON()
	require.NoError(t, err)

	back, err := pipeline.DecodeJSON(raw)
	require.NoError(t, err)
	assert.Equal(t, cfg.Data(), back.Data())

	_, err = pipeline.DecodeJSON("{not json")
	require.Error(t, err)
	assert.Equal(t, types.CodeInvariantViolation, types.CodeOf(err))
}

func TestActiveHandle(t *testing.T) {
	pipeline.Reset()
	t.Cleanup(pipeline.Reset)

	def := pipeline.Active()
	require.NotNil(t, def)
	assert.Equal(t, []string{"NEW", "ACTIVE", "CLOSED"}, def.PipelineFor(types.EntityTask).States())

	custom, err := pipeline.NewConfig(pipeline.ConfigData{
		Version: "3.0",
		Pipelines: pipeline.PipelineLists{
			Feature: []string{"NEW", "ACTIVE", "CLOSED"},
			Task:    []string{"NEW", "ACTIVE", "TO_BE_TESTED", "CLOSED"},
		},
	})
	require.NoError(t, err)

	pipeline.Activate(custom)
	assert.Equal(t, []string{"NEW", "ACTIVE", "TO_BE_TESTED", "CLOSED"},
		pipeline.Active().PipelineFor(types.EntityTask).States())

	pipeline.Reset()
	assert.Equal(t, []string{"NEW", "ACTIVE", "CLOSED"},
		pipeline.Active().PipelineFor(types.EntityTask).States(), "reset falls back to defaults")
}
