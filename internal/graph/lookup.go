// Package graph answers "which atoms describe this file?" by matching file
// paths against the glob patterns stored on a project's atoms.
package graph

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/alioshr/task-orchestrator-sub000/internal/types"
)

// AtomSource lists a project's atoms. The sqlite store satisfies it.
type AtomSource interface {
	ListAtoms(ctx context.Context, projectID string) ([]*types.Atom, error)
}

// AtomMatch pairs an atom with the input paths that hit its patterns.
type AtomMatch struct {
	Atom         *types.Atom `json:"atom"`
	MatchedPaths []string    `json:"matched_paths"`
}

// Result of a path lookup. UnmatchedPaths preserves the input order.
type Result struct {
	Matches        []AtomMatch `json:"matches"`
	UnmatchedPaths []string    `json:"unmatched_paths,omitempty"`
}

// FindAtomsByPaths tests every input path against every pattern of every
// atom in the project. Patterns use forward-slash glob semantics: `**`
// crosses path segments, `*` stays within one segment, `?` matches a single
// character. A path may hit several atoms; every hit is reported.
func FindAtomsByPaths(ctx context.Context, source AtomSource, projectID string, paths []string) (*Result, error) {
	if len(paths) == 0 {
		return nil, types.Validationf("at least one path is required")
	}
	atoms, err := source.ListAtoms(ctx, projectID)
	if err != nil {
		return nil, err
	}

	normalized := make([]string, len(paths))
	for i, p := range paths {
		normalized[i] = filepath.ToSlash(strings.TrimSpace(p))
	}

	res := &Result{}
	matched := make([]bool, len(paths))
	for _, atom := range atoms {
		var hits []string
		for i, p := range normalized {
			if p == "" {
				continue
			}
			if matchesAny(atom.Paths, p) {
				hits = append(hits, paths[i])
				matched[i] = true
			}
		}
		if len(hits) > 0 {
			res.Matches = append(res.Matches, AtomMatch{Atom: atom, MatchedPaths: hits})
		}
	}
	for i, p := range paths {
		if !matched[i] {
			res.UnmatchedPaths = append(res.UnmatchedPaths, p)
		}
	}
	return res, nil
}

// matchesAny reports whether any pattern matches the path. Malformed
// patterns never match.
func matchesAny(patterns []string, path string) bool {
	for _, pat := range patterns {
		ok, err := doublestar.Match(filepath.ToSlash(pat), path)
		if err == nil && ok {
			return true
		}
	}
	return false
}
