package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/codesmriti/codesmriti/internal/models"
)

// MemoryStore is an in-process Store used by tests and by offline tooling.
// It mirrors the Qdrant adapter's semantics (pre-filter, then exact
// dot-product scoring) without the network.
type MemoryStore struct {
	mu   sync.Mutex
	docs map[string]models.Document

	// FailIDs makes UpsertDocuments report the listed ids as failed.
	FailIDs map[string]bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]models.Document)}
}

func (s *MemoryStore) Initialize(ctx context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) UpsertDocuments(ctx context.Context, docs []models.Document) (UpsertStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stats UpsertStats
	for _, doc := range docs {
		if s.FailIDs[doc.ID] {
			stats.Failed = append(stats.Failed, doc.ID)
			continue
		}
		if existing, ok := s.docs[doc.ID]; ok {
			doc.CreatedAt = existing.CreatedAt
		} else if doc.CreatedAt.IsZero() {
			doc.CreatedAt = time.Now().UTC()
		}
		if doc.UpdatedAt.IsZero() {
			doc.UpdatedAt = time.Now().UTC()
		}
		s.docs[doc.ID] = doc
		stats.Upserted++
	}
	return stats, nil
}

func (s *MemoryStore) MutateEmbedding(ctx context.Context, docID string, vector []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[docID]
	if !ok {
		return nil
	}
	doc.Embedding = vector
	doc.UpdatedAt = time.Now().UTC()
	s.docs[docID] = doc
	return nil
}

func (s *MemoryStore) GetFileCommits(ctx context.Context, tenantID, repoID string) (map[string]FileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := make(map[string]FileRecord)
	for _, doc := range s.docs {
		if doc.TenantID != tenantID || doc.RepoID != repoID || doc.Type != models.DocTypeFileIndex {
			continue
		}
		records[doc.Path] = FileRecord{
			ID:      doc.ID,
			Path:    doc.Path,
			Commit:  doc.FileCommit,
			Summary: doc.SummaryText,
		}
	}
	return records, nil
}

func (s *MemoryStore) GetModuleRecords(ctx context.Context, tenantID, repoID string) (map[string]ModuleRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := make(map[string]ModuleRecord)
	for _, doc := range s.docs {
		if doc.TenantID != tenantID || doc.RepoID != repoID || doc.Type != models.DocTypeModuleSummary {
			continue
		}
		records[doc.Path] = ModuleRecord{
			ID:          doc.ID,
			Path:        doc.Path,
			ContentHash: doc.ContentHash,
			Summary:     doc.SummaryText,
		}
	}
	return records, nil
}

func (s *MemoryStore) DeleteByFile(ctx context.Context, tenantID, repoID, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fileID := models.FileDocID(tenantID, repoID, path)
	symbolPrefix := models.SymbolDocID(tenantID, repoID, path, "")
	for id, doc := range s.docs {
		if id == fileID {
			delete(s.docs, id)
			continue
		}
		if doc.Type == models.DocTypeSymbolIndex && strings.HasPrefix(id, symbolPrefix) {
			delete(s.docs, id)
		}
	}
	return nil
}

func (s *MemoryStore) DeleteModule(ctx context.Context, tenantID, repoID, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.docs, models.ModuleDocID(tenantID, repoID, path))
	return nil
}

func (s *MemoryStore) DeleteByRepo(ctx context.Context, tenantID, repoID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, doc := range s.docs {
		if doc.TenantID == tenantID && doc.RepoID == repoID {
			delete(s.docs, id)
		}
	}
	return nil
}

func (s *MemoryStore) HybridSearch(ctx context.Context, params SearchParams) ([]models.SearchHit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var hits []models.SearchHit
	for _, doc := range s.docs {
		if doc.Type != params.Type || doc.TenantID != params.TenantID {
			continue
		}
		if params.RepoID != "" && doc.RepoID != params.RepoID {
			continue
		}
		hits = append(hits, models.SearchHit{Document: doc, Score: dot(params.Vector, doc.Embedding)})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if params.Limit > 0 && len(hits) > params.Limit {
		hits = hits[:params.Limit]
	}
	return hits, nil
}

func (s *MemoryStore) FetchDocument(ctx context.Context, docID string) (*models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[docID]
	if !ok {
		return nil, nil
	}
	return &doc, nil
}

func (s *MemoryStore) FetchChildren(ctx context.Context, parentID string) ([]models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var children []models.Document
	for _, doc := range s.docs {
		if doc.ParentID == parentID {
			children = append(children, doc)
		}
	}
	sort.Slice(children, func(i, j int) bool { return children[i].ID < children[j].ID })
	return children, nil
}

func (s *MemoryStore) ListRepoSummaries(ctx context.Context, tenantID string) ([]models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var repos []models.Document
	for _, doc := range s.docs {
		if doc.TenantID == tenantID && doc.Type == models.DocTypeRepoSummary {
			repos = append(repos, doc)
		}
	}
	sort.Slice(repos, func(i, j int) bool { return repos[i].RepoID < repos[j].RepoID })
	return repos, nil
}

// Len returns the number of stored documents.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.docs)
}

// Get returns a stored document by id, for assertions.
func (s *MemoryStore) Get(docID string) (models.Document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[docID]
	return doc, ok
}

// All returns every stored document, for assertions.
func (s *MemoryStore) All() []models.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	docs := make([]models.Document, 0, len(s.docs))
	for _, doc := range s.docs {
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs
}

func dot(a, b []float32) float64 {
	var sum float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
