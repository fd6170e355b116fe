// Package storage defines the persistence interface for the orchestrator.
// The sqlite subpackage provides the implementation; the workflow engine and
// the CLI depend only on these interfaces.
package storage

import (
	"context"

	"github.com/alioshr/task-orchestrator-sub000/internal/types"
)

// Tx is the operation surface available both on the store (autocommit or
// per-call transactions) and inside RunInTransaction. Every mutation bumps
// the touched row's version by exactly one and refreshes modified_at.
type Tx interface {
	// Projects.
	CreateProject(ctx context.Context, p types.NewProject) (*types.Project, error)
	GetProject(ctx context.Context, id string) (*types.Project, error)
	UpdateProject(ctx context.Context, id string, updates map[string]interface{}, expectedVersion int) (*types.Project, error)
	DeleteProject(ctx context.Context, id string, cascade bool) error
	SearchProjects(ctx context.Context, opts types.SearchOptions) ([]*types.Project, error)

	// Features.
	CreateFeature(ctx context.Context, f types.NewFeature) (*types.Feature, error)
	GetFeature(ctx context.Context, id string) (*types.Feature, error)
	UpdateFeature(ctx context.Context, id string, updates map[string]interface{}, expectedVersion int) (*types.Feature, error)
	DeleteFeature(ctx context.Context, id string, cascade bool) error
	SearchFeatures(ctx context.Context, opts types.SearchOptions) ([]*types.Feature, error)

	// Tasks.
	CreateTask(ctx context.Context, t types.NewTask) (*types.Task, error)
	GetTask(ctx context.Context, id string) (*types.Task, error)
	UpdateTask(ctx context.Context, id string, updates map[string]interface{}, expectedVersion int) (*types.Task, error)
	DeleteTask(ctx context.Context, id string) error
	SearchTasks(ctx context.Context, opts types.SearchOptions) ([]*types.Task, error)
	TasksByFeature(ctx context.Context, featureID string) ([]*types.Task, error)

	// Workflow primitives. SetWorkflowStatus and SetBlockers skip pipeline
	// validation; the workflow engine owns those rules.
	SetWorkflowStatus(ctx context.Context, entity types.EntityType, id, status string, expectedVersion int) error
	SetBlockers(ctx context.Context, entity types.EntityType, id string, blockedBy []string, reason string, expectedVersion int) error
	// Dependents lists features and tasks whose blocked_by contains id.
	Dependents(ctx context.Context, id string) ([]types.EntityRef, error)
	// BlockersOf returns the blocked_by list of a feature or task by bare id.
	BlockersOf(ctx context.Context, id string) ([]string, bool, error)

	// Sections.
	AddSection(ctx context.Context, s types.NewSection) (*types.Section, error)
	GetSection(ctx context.Context, id string) (*types.Section, error)
	ListSections(ctx context.Context, entity types.EntityType, entityID string) ([]*types.Section, error)
	UpdateSection(ctx context.Context, id string, updates map[string]interface{}, expectedVersion int) (*types.Section, error)
	UpdateSectionText(ctx context.Context, id, content string, expectedVersion int) (*types.Section, error)
	ReorderSections(ctx context.Context, entity types.EntityType, entityID string, orderedIDs []string) ([]*types.Section, error)
	BulkDeleteSections(ctx context.Context, ids []string) (int, error)

	// Tags. An empty entity type lists across all owners.
	ListTags(ctx context.Context, entity types.EntityType) ([]types.TagCount, error)
	TagUsage(ctx context.Context, tag string) ([]types.EntityRef, error)
	RenameTag(ctx context.Context, oldTag, newTag string, dryRun bool) (*types.TagRename, error)

	// Templates.
	CreateTemplate(ctx context.Context, t types.NewTemplate) (*types.Template, error)
	GetTemplate(ctx context.Context, id string) (*types.Template, error)
	ListTemplates(ctx context.Context) ([]*types.Template, error)
	UpdateTemplate(ctx context.Context, id string, updates map[string]interface{}, expectedVersion int) (*types.Template, error)
	SetTemplateEnabled(ctx context.Context, id string, enabled bool, expectedVersion int) (*types.Template, error)
	DeleteTemplate(ctx context.Context, id string) error
	ApplyTemplate(ctx context.Context, templateID string, entity types.EntityType, entityID string) ([]*types.Section, error)

	// Atoms.
	CreateAtom(ctx context.Context, a types.NewAtom) (*types.Atom, error)
	GetAtom(ctx context.Context, id string) (*types.Atom, error)
	ListAtoms(ctx context.Context, projectID string) ([]*types.Atom, error)
	UpdateAtom(ctx context.Context, id string, updates map[string]interface{}, expectedVersion int) (*types.Atom, error)
	UpdateAtomKnowledge(ctx context.Context, id, knowledge string, mode types.KnowledgeMode, taskID string, expectedVersion int) (*types.Atom, error)
	DeleteAtom(ctx context.Context, id string) error

	// Molecules.
	CreateMolecule(ctx context.Context, m types.NewMolecule) (*types.Molecule, error)
	GetMolecule(ctx context.Context, id string) (*types.Molecule, error)
	ListMolecules(ctx context.Context, projectID string) ([]*types.Molecule, error)
	UpdateMolecule(ctx context.Context, id string, updates map[string]interface{}, expectedVersion int) (*types.Molecule, error)
	UpdateMoleculeKnowledge(ctx context.Context, id, knowledge string, mode types.KnowledgeMode, taskID string, expectedVersion int) (*types.Molecule, error)
	DeleteMolecule(ctx context.Context, id string, cascade bool) error

	// Changelog.
	AppendChangelog(ctx context.Context, c types.NewChangelog) (*types.ChangelogEntry, error)
	ListChangelog(ctx context.Context, parent types.ChangelogParent, parentID string) ([]*types.ChangelogEntry, error)

	// Pipeline lock and bookkeeping.
	HasWorkflowData(ctx context.Context) (bool, error)
	PipelineLock(ctx context.Context) (configJSON string, found bool, err error)
	SavePipelineLock(ctx context.Context, configJSON string) error
	StatusCounts(ctx context.Context, entity types.EntityType) (map[string]int, error)
	Stats(ctx context.Context) (*types.Stats, error)

	// RunInTransaction runs fn atomically. Nested calls are flattened into
	// the enclosing transaction.
	RunInTransaction(ctx context.Context, fn func(tx Tx) error) error
}

// Store is the full persistence handle.
type Store interface {
	Tx

	// Path returns the database location.
	Path() string
	// Close checkpoints and releases the store.
	Close() error
}
