// Package types defines the core data structures for the task orchestrator:
// the Project/Feature/Task hierarchy, Sections and Tags, the Atom/Molecule
// knowledge graph with its Changelog, and the coded error envelope shared by
// every public operation.
package types

import (
	"fmt"
	"strings"
	"time"
)

// Workflow states. Features and tasks move through an ordered subset of the
// catalog; WILL_NOT_IMPLEMENT is the universal exit state and never appears
// inside a pipeline.
const (
	StatusNew              = "NEW"
	StatusActive           = "ACTIVE"
	StatusToBeTested       = "TO_BE_TESTED"
	StatusReadyToProd      = "READY_TO_PROD"
	StatusClosed           = "CLOSED"
	StatusWillNotImplement = "WILL_NOT_IMPLEMENT"
)

// Priority ranks features and tasks.
type Priority string

const (
	PriorityHigh   Priority = "HIGH"
	PriorityMedium Priority = "MEDIUM"
	PriorityLow    Priority = "LOW"
)

// IsValid returns true if the priority is a recognized value.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// EntityType identifies the owner kind for sections, tags, and workflow
// operations.
type EntityType string

const (
	EntityProject  EntityType = "PROJECT"
	EntityFeature  EntityType = "FEATURE"
	EntityTask     EntityType = "TASK"
	EntityTemplate EntityType = "TEMPLATE"
)

// IsValid returns true if the entity type is a recognized value.
func (e EntityType) IsValid() bool {
	switch e {
	case EntityProject, EntityFeature, EntityTask, EntityTemplate:
		return true
	}
	return false
}

// HasStatus reports whether entities of this type carry a pipeline status.
func (e EntityType) HasStatus() bool {
	return e == EntityFeature || e == EntityTask
}

// ContentFormat describes how a section's content should be rendered.
type ContentFormat string

const (
	FormatPlainText ContentFormat = "PLAIN_TEXT"
	FormatMarkdown  ContentFormat = "MARKDOWN"
	FormatJSON      ContentFormat = "JSON"
	FormatCode      ContentFormat = "CODE"
)

// IsValid returns true if the content format is a recognized value.
func (f ContentFormat) IsValid() bool {
	switch f {
	case FormatPlainText, FormatMarkdown, FormatJSON, FormatCode:
		return true
	}
	return false
}

// ChangelogParent scopes a changelog entry to an atom or a molecule.
type ChangelogParent string

const (
	ChangelogParentAtom     ChangelogParent = "atom"
	ChangelogParentMolecule ChangelogParent = "molecule"
)

// IsValid returns true if the parent type is a recognized value.
func (p ChangelogParent) IsValid() bool {
	return p == ChangelogParentAtom || p == ChangelogParentMolecule
}

// KnowledgeMode selects how a knowledge update combines with existing text.
type KnowledgeMode string

const (
	KnowledgeOverwrite KnowledgeMode = "overwrite"
	KnowledgeAppend    KnowledgeMode = "append"
)

// IsValid returns true if the mode is a recognized value.
func (m KnowledgeMode) IsValid() bool {
	return m == KnowledgeOverwrite || m == KnowledgeAppend
}

// BlockerNoOp is the sentinel blocker: it blocks an entity on a free-form
// reason instead of a peer entity, and requires a non-empty reason.
const BlockerNoOp = "NO_OP"

// Field caps for the knowledge graph.
const (
	MaxAtomPaths      = 20
	MaxPathLength     = 512
	MaxKnowledgeBytes = 32 * 1024
	MaxRelatedRefs    = 50
	MaxMoleculeName   = 255
	MaxSummaryBytes   = 4096
)

// Project is the top-level board. Projects are stateless in the v3 model;
// Status is carried for pre-v3 rows and is never validated or written.
type Project struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Summary     string    `json:"summary"`
	Description string    `json:"description,omitempty"`
	Status      string    `json:"status,omitempty"`
	Version     int       `json:"version"`
	Tags        []string  `json:"tags,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	ModifiedAt  time.Time `json:"modified_at"`
}

// Feature is a unit of work under a project. ProjectID may be empty for
// orphan rows carried over by migration.
type Feature struct {
	ID            string    `json:"id"`
	ProjectID     string    `json:"project_id,omitempty"`
	Name          string    `json:"name"`
	Summary       string    `json:"summary"`
	Description   string    `json:"description,omitempty"`
	Status        string    `json:"status"`
	Priority      Priority  `json:"priority"`
	BlockedBy     []string  `json:"blocked_by,omitempty"`
	BlockedReason string    `json:"blocked_reason,omitempty"`
	RelatedTo     []string  `json:"related_to,omitempty"`
	Version       int       `json:"version"`
	Tags          []string  `json:"tags,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	ModifiedAt    time.Time `json:"modified_at"`
}

// Task is a unit of work under a feature. ProjectID is derived from the
// feature at creation and never supplied by callers. Dependencies carries
// pre-v3 data; readers prefer BlockedBy when both are populated.
type Task struct {
	ID            string    `json:"id"`
	FeatureID     string    `json:"feature_id,omitempty"`
	ProjectID     string    `json:"project_id,omitempty"`
	Title         string    `json:"title"`
	Summary       string    `json:"summary"`
	Description   string    `json:"description,omitempty"`
	Status        string    `json:"status"`
	Priority      Priority  `json:"priority"`
	Complexity    int       `json:"complexity"`
	BlockedBy     []string  `json:"blocked_by,omitempty"`
	BlockedReason string    `json:"blocked_reason,omitempty"`
	RelatedTo     []string  `json:"related_to,omitempty"`
	Dependencies  []string  `json:"dependencies,omitempty"`
	Version       int       `json:"version"`
	Tags          []string  `json:"tags,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	ModifiedAt    time.Time `json:"modified_at"`
}

// Blockers returns the effective blocker list: BlockedBy when present,
// otherwise the legacy Dependencies column.
func (t *Task) Blockers() []string {
	if len(t.BlockedBy) > 0 {
		return t.BlockedBy
	}
	return t.Dependencies
}

// Section is an ordered narrative block owned by exactly one entity.
// Ordinals are densely packed per owner after any reorder.
type Section struct {
	ID         string        `json:"id"`
	EntityType EntityType    `json:"entity_type"`
	EntityID   string        `json:"entity_id"`
	Title      string        `json:"title"`
	Usage      string        `json:"usage,omitempty"`
	Content    string        `json:"content,omitempty"`
	Format     ContentFormat `json:"content_format"`
	Ordinal    int           `json:"ordinal"`
	Tag        string        `json:"tag,omitempty"`
	Version    int           `json:"version"`
	CreatedAt  time.Time     `json:"created_at"`
	ModifiedAt time.Time     `json:"modified_at"`
}

// Template is a blueprint whose sections are cloned onto a target entity.
type Template struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	IsBuiltIn   bool      `json:"is_built_in"`
	IsProtected bool      `json:"is_protected"`
	IsEnabled   bool      `json:"is_enabled"`
	Version     int       `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
	ModifiedAt  time.Time `json:"modified_at"`
}

// Atom is a knowledge record scoped to a project, keyed by file-path glob
// patterns.
type Atom struct {
	ID                  string    `json:"id"`
	ProjectID           string    `json:"project_id"`
	MoleculeID          string    `json:"molecule_id,omitempty"`
	Paths               []string  `json:"paths"`
	Knowledge           string    `json:"knowledge,omitempty"`
	RelatedAtoms        []string  `json:"related_atoms,omitempty"`
	CreatedByTaskID     string    `json:"created_by_task_id,omitempty"`
	LastUpdatedByTaskID string    `json:"last_updated_by_task_id,omitempty"`
	Version             int       `json:"version"`
	CreatedAt           time.Time `json:"created_at"`
	ModifiedAt          time.Time `json:"modified_at"`
}

// Molecule groups related atoms within a project.
type Molecule struct {
	ID                  string    `json:"id"`
	ProjectID           string    `json:"project_id"`
	Name                string    `json:"name"`
	Knowledge           string    `json:"knowledge,omitempty"`
	RelatedMolecules    []string  `json:"related_molecules,omitempty"`
	CreatedByTaskID     string    `json:"created_by_task_id,omitempty"`
	LastUpdatedByTaskID string    `json:"last_updated_by_task_id,omitempty"`
	Version             int       `json:"version"`
	CreatedAt           time.Time `json:"created_at"`
	ModifiedAt          time.Time `json:"modified_at"`
}

// ChangelogEntry is an append-only provenance record under an atom or a
// molecule. Entries are removed only when their parent is deleted.
type ChangelogEntry struct {
	ID         string          `json:"id"`
	ParentType ChangelogParent `json:"parent_type"`
	ParentID   string          `json:"parent_id"`
	TaskID     string          `json:"task_id"`
	Summary    string          `json:"summary"`
	CreatedAt  time.Time       `json:"created_at"`
}

// EntityRef names one entity row, used by tag usage listings and blocker
// dependent scans.
type EntityRef struct {
	Type EntityType `json:"entity_type"`
	ID   string     `json:"entity_id"`
}

// TagCount is one row of the grouped tag listing.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// TagRename reports the outcome of a tag rename. Merged counts rows where
// the target entity already carried the new tag and the old row was dropped.
type TagRename struct {
	Old      string      `json:"old"`
	New      string      `json:"new"`
	Affected []EntityRef `json:"affected"`
	Renamed  int         `json:"renamed"`
	Merged   int         `json:"merged"`
	DryRun   bool        `json:"dry_run"`
}

// SearchOptions drives the shared list/search kernel. Status and Priority
// accept comma-separated tokens where a leading ! excludes the value. Tags
// is comma-separated; project searches require all listed tags, feature and
// task searches match any. Limit <= 0 means no limit.
type SearchOptions struct {
	Query     string `json:"query,omitempty"`
	Status    string `json:"status,omitempty"`
	Priority  string `json:"priority,omitempty"`
	ProjectID string `json:"project_id,omitempty"`
	FeatureID string `json:"feature_id,omitempty"`
	Tags      string `json:"tags,omitempty"`
	Limit     int    `json:"limit,omitempty"`
	Offset    int    `json:"offset,omitempty"`
}

// Stats aggregates row counts for the whole store.
type Stats struct {
	Projects      int            `json:"projects"`
	Features      int            `json:"features"`
	Tasks         int            `json:"tasks"`
	Sections      int            `json:"sections"`
	Templates     int            `json:"templates"`
	Atoms         int            `json:"atoms"`
	Molecules     int            `json:"molecules"`
	Changelog     int            `json:"changelog"`
	FeatureStatus map[string]int `json:"feature_status,omitempty"`
	TaskStatus    map[string]int `json:"task_status,omitempty"`
}

// NewProject is the create payload for a project.
type NewProject struct {
	Name        string   `json:"name"`
	Summary     string   `json:"summary"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// Validate checks required fields.
func (p *NewProject) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return Validationf("project name is required")
	}
	if strings.TrimSpace(p.Summary) == "" {
		return Validationf("project summary is required")
	}
	return nil
}

// NewFeature is the create payload for a feature.
type NewFeature struct {
	ProjectID   string   `json:"project_id"`
	Name        string   `json:"name"`
	Summary     string   `json:"summary"`
	Description string   `json:"description,omitempty"`
	Priority    Priority `json:"priority,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// Validate checks required fields and defaults the priority to MEDIUM.
func (f *NewFeature) Validate() error {
	if strings.TrimSpace(f.ProjectID) == "" {
		return Validationf("feature project_id is required")
	}
	if strings.TrimSpace(f.Name) == "" {
		return Validationf("feature name is required")
	}
	if strings.TrimSpace(f.Summary) == "" {
		return Validationf("feature summary is required")
	}
	if f.Priority == "" {
		f.Priority = PriorityMedium
	}
	if !f.Priority.IsValid() {
		return Validationf("invalid priority %q", f.Priority)
	}
	return nil
}

// NewTask is the create payload for a task. FeatureID may be empty; the
// project link is always derived from the feature, never supplied.
type NewTask struct {
	FeatureID   string   `json:"feature_id,omitempty"`
	Title       string   `json:"title"`
	Summary     string   `json:"summary"`
	Description string   `json:"description,omitempty"`
	Priority    Priority `json:"priority,omitempty"`
	Complexity  int      `json:"complexity"`
	Tags        []string `json:"tags,omitempty"`
}

// Validate checks required fields, defaults the priority to MEDIUM, and
// bounds complexity to 1..10.
func (t *NewTask) Validate() error {
	if strings.TrimSpace(t.Title) == "" {
		return Validationf("task title is required")
	}
	if strings.TrimSpace(t.Summary) == "" {
		return Validationf("task summary is required")
	}
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	if !t.Priority.IsValid() {
		return Validationf("invalid priority %q", t.Priority)
	}
	if t.Complexity < 1 || t.Complexity > 10 {
		return Validationf("complexity must be between 1 and 10, got %d", t.Complexity)
	}
	return nil
}

// NewSection is the create payload for a section. A nil Ordinal appends
// after the owner's highest ordinal.
type NewSection struct {
	EntityType EntityType    `json:"entity_type"`
	EntityID   string        `json:"entity_id"`
	Title      string        `json:"title"`
	Usage      string        `json:"usage,omitempty"`
	Content    string        `json:"content,omitempty"`
	Format     ContentFormat `json:"content_format,omitempty"`
	Ordinal    *int          `json:"ordinal,omitempty"`
	Tag        string        `json:"tag,omitempty"`
}

// Validate checks required fields and defaults the format to MARKDOWN.
func (s *NewSection) Validate() error {
	if !s.EntityType.IsValid() {
		return Validationf("invalid entity type %q", s.EntityType)
	}
	if strings.TrimSpace(s.EntityID) == "" {
		return Validationf("section entity_id is required")
	}
	if strings.TrimSpace(s.Title) == "" {
		return Validationf("section title is required")
	}
	if s.Format == "" {
		s.Format = FormatMarkdown
	}
	if !s.Format.IsValid() {
		return Validationf("invalid content format %q", s.Format)
	}
	if s.Ordinal != nil && *s.Ordinal < 0 {
		return Validationf("ordinal must not be negative, got %d", *s.Ordinal)
	}
	return nil
}

// NewTemplate is the create payload for a template. Templates start enabled.
type NewTemplate struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	IsBuiltIn   bool   `json:"is_built_in,omitempty"`
	IsProtected bool   `json:"is_protected,omitempty"`
}

// Validate checks required fields.
func (t *NewTemplate) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return Validationf("template name is required")
	}
	return nil
}

// NewAtom is the create payload for an atom.
type NewAtom struct {
	ProjectID       string   `json:"project_id"`
	MoleculeID      string   `json:"molecule_id,omitempty"`
	Paths           []string `json:"paths"`
	Knowledge       string   `json:"knowledge,omitempty"`
	RelatedAtoms    []string `json:"related_atoms,omitempty"`
	CreatedByTaskID string   `json:"created_by_task_id,omitempty"`
}

// Validate checks required fields and the path and knowledge caps.
func (a *NewAtom) Validate() error {
	if strings.TrimSpace(a.ProjectID) == "" {
		return Validationf("atom project_id is required")
	}
	if err := ValidateAtomPaths(a.Paths); err != nil {
		return err
	}
	if len(a.Knowledge) > MaxKnowledgeBytes {
		return Validationf("knowledge exceeds %d bytes", MaxKnowledgeBytes)
	}
	return ValidateRelatedRefs(a.RelatedAtoms, "")
}

// NewMolecule is the create payload for a molecule.
type NewMolecule struct {
	ProjectID        string   `json:"project_id"`
	Name             string   `json:"name"`
	Knowledge        string   `json:"knowledge,omitempty"`
	RelatedMolecules []string `json:"related_molecules,omitempty"`
	CreatedByTaskID  string   `json:"created_by_task_id,omitempty"`
}

// Validate checks required fields and the name and knowledge caps.
func (m *NewMolecule) Validate() error {
	if strings.TrimSpace(m.ProjectID) == "" {
		return Validationf("molecule project_id is required")
	}
	name := strings.TrimSpace(m.Name)
	if name == "" {
		return Validationf("molecule name is required")
	}
	if len(name) > MaxMoleculeName {
		return Validationf("molecule name exceeds %d characters", MaxMoleculeName)
	}
	if len(m.Knowledge) > MaxKnowledgeBytes {
		return Validationf("knowledge exceeds %d bytes", MaxKnowledgeBytes)
	}
	return ValidateRelatedRefs(m.RelatedMolecules, "")
}

// NewChangelog is the append payload for a changelog entry.
type NewChangelog struct {
	ParentType ChangelogParent `json:"parent_type"`
	ParentID   string          `json:"parent_id"`
	TaskID     string          `json:"task_id"`
	Summary    string          `json:"summary"`
}

// Validate checks required fields and the summary cap.
func (c *NewChangelog) Validate() error {
	if !c.ParentType.IsValid() {
		return Validationf("invalid changelog parent type %q", c.ParentType)
	}
	if strings.TrimSpace(c.ParentID) == "" {
		return Validationf("changelog parent_id is required")
	}
	if strings.TrimSpace(c.TaskID) == "" {
		return Validationf("changelog task_id is required")
	}
	if strings.TrimSpace(c.Summary) == "" {
		return Validationf("changelog summary is required")
	}
	if len(c.Summary) > MaxSummaryBytes {
		return Validationf("changelog summary exceeds %d bytes", MaxSummaryBytes)
	}
	return nil
}

// ValidateAtomPaths enforces the path-list caps: 1..20 relative forward-slash
// patterns, each at most 512 characters, no parent traversal.
func ValidateAtomPaths(paths []string) error {
	if len(paths) == 0 {
		return Validationf("atom requires at least one path pattern")
	}
	if len(paths) > MaxAtomPaths {
		return Validationf("atom accepts at most %d path patterns, got %d", MaxAtomPaths, len(paths))
	}
	for i, p := range paths {
		if strings.TrimSpace(p) == "" {
			return Validationf("path %d is empty", i)
		}
		if len(p) > MaxPathLength {
			return Validationf("path %d exceeds %d characters", i, MaxPathLength)
		}
		if strings.HasPrefix(p, "/") {
			return Validationf("path %q must be relative", p)
		}
		if strings.Contains(p, "..") {
			return Validationf("path %q must not contain '..'", p)
		}
	}
	return nil
}

// ValidateRelatedRefs enforces the related-reference caps and rejects
// self-references and duplicates within one request. selfID may be empty
// when the referencing record does not exist yet.
func ValidateRelatedRefs(refs []string, selfID string) error {
	if len(refs) > MaxRelatedRefs {
		return Validationf("at most %d related references allowed, got %d", MaxRelatedRefs, len(refs))
	}
	seen := make(map[string]bool, len(refs))
	for _, r := range refs {
		if r == "" {
			return Validationf("related reference must not be empty")
		}
		if selfID != "" && r == selfID {
			return NewError(CodeSelfDependency, "entity %s cannot reference itself", selfID)
		}
		if seen[r] {
			return NewError(CodeDuplicateDependency, "duplicate related reference %s", r)
		}
		seen[r] = true
	}
	return nil
}

// NormalizeTags lowercases, trims, and deduplicates a tag list, preserving
// first-occurrence order. Empty tokens are dropped.
func NormalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		n := NormalizeTag(t)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// NormalizeTag lowercases and trims a single tag.
func NormalizeTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}

// DedupeStrings removes duplicates preserving first-occurrence order.
func DedupeStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// ContainsString reports membership in a string slice.
func ContainsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// RemoveStrings returns list without any of the given values, preserving
// order. The second return is true when anything was removed.
func RemoveStrings(list []string, remove []string) ([]string, bool) {
	if len(list) == 0 || len(remove) == 0 {
		return list, false
	}
	drop := make(map[string]bool, len(remove))
	for _, r := range remove {
		drop[r] = true
	}
	out := make([]string, 0, len(list))
	changed := false
	for _, s := range list {
		if drop[s] {
			changed = true
			continue
		}
		out = append(out, s)
	}
	return out, changed
}

// Sprint formats an entity reference for messages.
func (r EntityRef) Sprint() string {
	return fmt.Sprintf("%s %s", strings.ToLower(string(r.Type)), r.ID)
}
