package pipeline

import (
	"context"
)

// LockStore is the narrow storage surface needed to resolve the pipeline
// lock. The sqlite store satisfies it.
type LockStore interface {
	// HasWorkflowData reports whether any project, feature, or task rows
	// exist.
	HasWorkflowData(ctx context.Context) (bool, error)
	// PipelineLock returns the lock row payload when present.
	PipelineLock(ctx context.Context) (configJSON string, found bool, err error)
	// SavePipelineLock overwrites the singleton lock row.
	SavePipelineLock(ctx context.Context, configJSON string) error
}

// ResolveActive applies the lock dance. While the store holds no workflow
// data the file wins and the lock row is rewritten to mirror it. Once data
// exists the lock row is authoritative and the file is ignored; legacy
// stores with data but no lock row are sealed from the file on first
// contact. The returned config is not installed; callers Activate it.
func ResolveActive(ctx context.Context, store LockStore, fileData ConfigData) (*Config, error) {
	fileCfg, err := NewConfig(fileData)
	if err != nil {
		return nil, err
	}

	hasData, err := store.HasWorkflowData(ctx)
	if err != nil {
		return nil, err
	}
	if !hasData {
		raw, err := fileCfg.EncodeJSON()
		if err != nil {
			return nil, err
		}
		if err := store.SavePipelineLock(ctx, raw); err != nil {
			return nil, err
		}
		return fileCfg, nil
	}

	raw, found, err := store.PipelineLock(ctx)
	if err != nil {
		return nil, err
	}
	if !found {
		raw, err := fileCfg.EncodeJSON()
		if err != nil {
			return nil, err
		}
		if err := store.SavePipelineLock(ctx, raw); err != nil {
			return nil, err
		}
		return fileCfg, nil
	}
	return DecodeJSON(raw)
}
