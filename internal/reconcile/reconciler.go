// Package reconcile decides, per file, whether stored documents are still
// current. It turns a full walk into an incremental one.
package reconcile

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/codesmriti/codesmriti/internal/storage"
)

// Change classifies one walked file against the stored state.
type Change int

const (
	// ChangeNew means no document exists for the path.
	ChangeNew Change = iota
	// ChangeUpdated means the stored commit differs from the walked one.
	ChangeUpdated
	// ChangeUnchanged means the stored commit matches; the file is skipped
	// and its stored summary feeds module aggregation as-is.
	ChangeUnchanged
)

func (c Change) String() string {
	switch c {
	case ChangeNew:
		return "new"
	case ChangeUpdated:
		return "updated"
	default:
		return "unchanged"
	}
}

// Reconciler holds the stored file and module state of one repo for the
// duration of a job. State is read once, in bulk, before the walk starts;
// classification then never touches the store.
type Reconciler struct {
	mu      sync.Mutex
	files   map[string]storage.FileRecord
	modules map[string]storage.ModuleRecord
	seen    map[string]bool
	force   bool
}

// Load bulk-reads the stored state of (tenantID, repoID). When force is
// set, every walked file classifies as new or updated regardless of its
// stored commit; a full job uses this to rebuild everything.
func Load(ctx context.Context, store storage.Store, tenantID, repoID string, force bool) (*Reconciler, error) {
	files, err := store.GetFileCommits(ctx, tenantID, repoID)
	if err != nil {
		return nil, fmt.Errorf("failed to read stored file state: %w", err)
	}
	modules, err := store.GetModuleRecords(ctx, tenantID, repoID)
	if err != nil {
		return nil, fmt.Errorf("failed to read stored module state: %w", err)
	}

	return &Reconciler{
		files:   files,
		modules: modules,
		seen:    make(map[string]bool, len(files)),
		force:   force,
	}, nil
}

// Classify compares one walked file against the stored state and records
// that the path was seen. Safe for concurrent use by pipeline workers.
func (r *Reconciler) Classify(path, commit string) Change {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seen[path] = true

	stored, ok := r.files[path]
	if !ok {
		return ChangeNew
	}
	if r.force || stored.Commit != commit {
		return ChangeUpdated
	}
	return ChangeUnchanged
}

// StoredSummary returns the stored file summary for a path, if any. Module
// aggregation reads this for unchanged files instead of re-summarizing.
func (r *Reconciler) StoredSummary(path string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.files[path]
	if !ok {
		return "", false
	}
	return rec.Summary, true
}

// ModuleRecord returns the stored module record for a module path.
func (r *Reconciler) ModuleRecord(path string) (storage.ModuleRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.modules[path]
	return rec, ok
}

// ModulePaths returns the stored module paths, sorted. Aggregation compares
// them against the modules the walk produced so directories that vanished
// from the tree lose their module documents.
func (r *Reconciler) ModulePaths() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	paths := make([]string, 0, len(r.modules))
	for path := range r.modules {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// DeletedPaths returns the stored paths the walk never produced, sorted.
// Each one cascades: the file document and its symbols are removed.
func (r *Reconciler) DeletedPaths() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var deleted []string
	for path := range r.files {
		if !r.seen[path] {
			deleted = append(deleted, path)
		}
	}
	sort.Strings(deleted)
	return deleted
}

// StoredFileCount returns how many file documents existed before the walk.
func (r *Reconciler) StoredFileCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.files)
}
