package reconcile

import (
	"context"
	"testing"

	"github.com/codesmriti/codesmriti/internal/models"
	"github.com/codesmriti/codesmriti/internal/storage"
)

func seededStore(t *testing.T) *storage.MemoryStore {
	t.Helper()
	store := storage.NewMemoryStore()
	docs := []models.Document{
		{
			ID:          models.FileDocID("acme", "payments", "src/auth.py"),
			TenantID:    "acme",
			RepoID:      "payments",
			Type:        models.DocTypeFileIndex,
			Path:        "src/auth.py",
			FileCommit:  "commit-auth-v1",
			SummaryText: "Handles authentication.",
		},
		{
			ID:          models.FileDocID("acme", "payments", "src/gone.py"),
			TenantID:    "acme",
			RepoID:      "payments",
			Type:        models.DocTypeFileIndex,
			Path:        "src/gone.py",
			FileCommit:  "commit-gone-v1",
			SummaryText: "Removed since last run.",
		},
		{
			ID:          models.ModuleDocID("acme", "payments", "src"),
			TenantID:    "acme",
			RepoID:      "payments",
			Type:        models.DocTypeModuleSummary,
			Path:        "src",
			ContentHash: "module-hash-v1",
			SummaryText: "Source module.",
		},
	}
	if _, err := store.UpsertDocuments(context.Background(), docs); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return store
}

func TestClassify(t *testing.T) {
	r, err := Load(context.Background(), seededStore(t), "acme", "payments", false)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	tests := []struct {
		path   string
		commit string
		want   Change
	}{
		{"src/auth.py", "commit-auth-v1", ChangeUnchanged},
		{"src/new.py", "commit-new-v1", ChangeNew},
	}
	for _, tt := range tests {
		if got := r.Classify(tt.path, tt.commit); got != tt.want {
			t.Errorf("Classify(%s) = %s, want %s", tt.path, got, tt.want)
		}
	}

	// Updated needs its own reconciler so the unchanged case above is not
	// affected by seen-tracking.
	r2, _ := Load(context.Background(), seededStore(t), "acme", "payments", false)
	if got := r2.Classify("src/auth.py", "commit-auth-v2"); got != ChangeUpdated {
		t.Errorf("Classify(changed commit) = %s, want updated", got)
	}
}

func TestClassifyForceRebuildsUnchanged(t *testing.T) {
	r, err := Load(context.Background(), seededStore(t), "acme", "payments", true)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got := r.Classify("src/auth.py", "commit-auth-v1"); got != ChangeUpdated {
		t.Errorf("force Classify(same commit) = %s, want updated", got)
	}
	if got := r.Classify("src/new.py", "x"); got != ChangeNew {
		t.Errorf("force Classify(new path) = %s, want new", got)
	}
}

func TestDeletedPaths(t *testing.T) {
	r, err := Load(context.Background(), seededStore(t), "acme", "payments", false)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	r.Classify("src/auth.py", "commit-auth-v1")

	deleted := r.DeletedPaths()
	if len(deleted) != 1 || deleted[0] != "src/gone.py" {
		t.Errorf("DeletedPaths = %v, want [src/gone.py]", deleted)
	}
}

func TestStoredStateLookups(t *testing.T) {
	r, err := Load(context.Background(), seededStore(t), "acme", "payments", false)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	summary, ok := r.StoredSummary("src/auth.py")
	if !ok || summary != "Handles authentication." {
		t.Errorf("StoredSummary = %q, %v", summary, ok)
	}
	if _, ok := r.StoredSummary("src/unknown.py"); ok {
		t.Errorf("StoredSummary for unknown path reported ok")
	}

	mod, ok := r.ModuleRecord("src")
	if !ok || mod.ContentHash != "module-hash-v1" {
		t.Errorf("ModuleRecord = %+v, %v", mod, ok)
	}

	if got := r.StoredFileCount(); got != 2 {
		t.Errorf("StoredFileCount = %d, want 2", got)
	}
}

func TestEmptyStoreClassifiesEverythingNew(t *testing.T) {
	r, err := Load(context.Background(), storage.NewMemoryStore(), "acme", "payments", false)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := r.Classify("src/app.py", "c1"); got != ChangeNew {
		t.Errorf("Classify on empty store = %s, want new", got)
	}
	if deleted := r.DeletedPaths(); len(deleted) != 0 {
		t.Errorf("DeletedPaths on empty store = %v", deleted)
	}
}
