package storage

import (
	"context"
	"testing"

	"github.com/codesmriti/codesmriti/internal/models"
)

func seedHierarchy(t *testing.T) *MemoryStore {
	t.Helper()
	store := NewMemoryStore()
	fileID := models.FileDocID("acme", "payments", "src/auth.py")
	docs := []models.Document{
		{ID: models.RepoDocID("acme", "payments"), TenantID: "acme", RepoID: "payments", Type: models.DocTypeRepoSummary},
		{ID: models.ModuleDocID("acme", "payments", "src"), TenantID: "acme", RepoID: "payments", Type: models.DocTypeModuleSummary, Path: "src"},
		{ID: fileID, TenantID: "acme", RepoID: "payments", Type: models.DocTypeFileIndex, Path: "src/auth.py", ParentID: models.ModuleDocID("acme", "payments", "src")},
		{ID: models.SymbolDocID("acme", "payments", "src/auth.py", "verify"), TenantID: "acme", RepoID: "payments", Type: models.DocTypeSymbolIndex, Path: "src/auth.py", ParentID: fileID},
		{ID: models.FileDocID("acme", "payments", "src/other.py"), TenantID: "acme", RepoID: "payments", Type: models.DocTypeFileIndex, Path: "src/other.py"},
		{ID: models.RepoDocID("other-tenant", "payments"), TenantID: "other-tenant", RepoID: "payments", Type: models.DocTypeRepoSummary},
	}
	if _, err := store.UpsertDocuments(context.Background(), docs); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return store
}

func TestMemoryDeleteByFileCascades(t *testing.T) {
	store := seedHierarchy(t)

	if err := store.DeleteByFile(context.Background(), "acme", "payments", "src/auth.py"); err != nil {
		t.Fatalf("DeleteByFile: %v", err)
	}

	if _, ok := store.Get(models.FileDocID("acme", "payments", "src/auth.py")); ok {
		t.Errorf("file document survived")
	}
	if _, ok := store.Get(models.SymbolDocID("acme", "payments", "src/auth.py", "verify")); ok {
		t.Errorf("symbol child survived the cascade")
	}
	if _, ok := store.Get(models.FileDocID("acme", "payments", "src/other.py")); !ok {
		t.Errorf("unrelated file deleted")
	}
}

func TestMemoryDeleteByRepoIsTenantScoped(t *testing.T) {
	store := seedHierarchy(t)

	if err := store.DeleteByRepo(context.Background(), "acme", "payments"); err != nil {
		t.Fatalf("DeleteByRepo: %v", err)
	}

	if _, ok := store.Get(models.RepoDocID("acme", "payments")); ok {
		t.Errorf("acme repo survived")
	}
	if _, ok := store.Get(models.RepoDocID("other-tenant", "payments")); !ok {
		t.Errorf("other tenant's repo deleted")
	}
}

func TestMemoryMutateEmbedding(t *testing.T) {
	store := seedHierarchy(t)
	id := models.SymbolDocID("acme", "payments", "src/auth.py", "verify")

	if err := store.MutateEmbedding(context.Background(), id, []float32{0, 1}); err != nil {
		t.Fatalf("MutateEmbedding: %v", err)
	}

	doc, _ := store.Get(id)
	if len(doc.Embedding) != 2 || doc.Embedding[1] != 1 {
		t.Errorf("embedding not replaced: %v", doc.Embedding)
	}
}

func TestMemoryHybridSearchFilters(t *testing.T) {
	store := seedHierarchy(t)

	hits, err := store.HybridSearch(context.Background(), SearchParams{
		Vector:   []float32{1, 0},
		TenantID: "acme",
		Type:     models.DocTypeFileIndex,
		Limit:    10,
	})
	if err != nil {
		t.Fatalf("HybridSearch: %v", err)
	}
	for _, hit := range hits {
		if hit.Document.TenantID != "acme" || hit.Document.Type != models.DocTypeFileIndex {
			t.Errorf("filter leak: %+v", hit.Document)
		}
	}
	if len(hits) != 2 {
		t.Errorf("hits = %d, want 2 file documents", len(hits))
	}
}
