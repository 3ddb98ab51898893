// Package storage persists the document hierarchy in Qdrant and answers
// filtered vector queries over it.
package storage

import (
	"context"

	"github.com/codesmriti/codesmriti/internal/models"
)

// FileRecord is the stored state of one file_index document, read back in
// bulk during reconciliation. The summary is reused when the file is
// unchanged so module aggregation never re-summarizes it.
type FileRecord struct {
	ID      string
	Path    string
	Commit  string
	Summary string
}

// ModuleRecord is the stored state of one module_summary document. The
// content hash decides whether the module needs re-aggregation.
type ModuleRecord struct {
	ID          string
	Path        string
	ContentHash string
	Summary     string
}

// UpsertStats accounts for one upsert call at document granularity.
type UpsertStats struct {
	Upserted int
	Failed   []string // document ids that failed after the retry
}

// SearchParams is one pre-filtered kNN query. The filter conditions are
// mandatory: type and tenant always, repo when set.
type SearchParams struct {
	Vector   []float32
	TenantID string
	RepoID   string
	Type     models.DocType
	Limit    int
}

// Store is the persistence boundary of the engine. Every method is scoped
// by tenant through either explicit arguments or the document ids it
// receives.
type Store interface {
	// Initialize creates the collection and its payload indexes when absent.
	Initialize(ctx context.Context) error

	// UpsertDocuments writes a batch. Partial failure is reported per
	// document id, never by failing the whole batch.
	UpsertDocuments(ctx context.Context, docs []models.Document) (UpsertStats, error)

	// MutateEmbedding replaces the vector of an existing document without
	// touching its payload.
	MutateEmbedding(ctx context.Context, docID string, vector []float32) error

	// GetFileCommits bulk-reads the stored file state of a repo, keyed by
	// relative path.
	GetFileCommits(ctx context.Context, tenantID, repoID string) (map[string]FileRecord, error)

	// GetModuleRecords bulk-reads the stored module state of a repo, keyed
	// by module path ("" for the root module).
	GetModuleRecords(ctx context.Context, tenantID, repoID string) (map[string]ModuleRecord, error)

	// DeleteByFile removes a file_index document and its symbol children.
	DeleteByFile(ctx context.Context, tenantID, repoID, path string) error

	// DeleteModule removes one module_summary document.
	DeleteModule(ctx context.Context, tenantID, repoID, path string) error

	// DeleteByRepo removes every document of a repo.
	DeleteByRepo(ctx context.Context, tenantID, repoID string) error

	// HybridSearch runs one pre-filtered kNN query.
	HybridSearch(ctx context.Context, params SearchParams) ([]models.SearchHit, error)

	// FetchDocument reads one document by id. Returns nil when absent.
	FetchDocument(ctx context.Context, docID string) (*models.Document, error)

	// FetchChildren reads the direct children of a document.
	FetchChildren(ctx context.Context, parentID string) ([]models.Document, error)

	// ListRepoSummaries reads every repo_summary document of a tenant.
	ListRepoSummaries(ctx context.Context, tenantID string) ([]models.Document, error)

	Close() error
}
