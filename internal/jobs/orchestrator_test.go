package jobs

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/codesmriti/codesmriti/internal/models"
	"github.com/codesmriti/codesmriti/internal/storage"
	"github.com/codesmriti/codesmriti/pkg/config"
)

func newTestOrchestrator(t *testing.T, llm *scriptLLM, store storage.Store) *Orchestrator {
	t.Helper()
	pipeline := newTestPipeline(t, llm, store)
	cfg := config.DefaultConfig()
	cfg.Jobs.MaxTenantJobs = 4
	o := NewOrchestrator(&cfg.Jobs, pipeline, store, slog.Default())
	t.Cleanup(o.Shutdown)
	return o
}

func waitForState(t *testing.T, o *Orchestrator, jobID string, want models.JobState) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if snap, ok := o.Get(jobID); ok && snap.State == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	snap, _ := o.Get(jobID)
	t.Fatalf("job %s state = %s, want %s", jobID, snap.State, want)
}

func TestOrchestratorRunsJobToCompletion(t *testing.T) {
	store := storage.NewMemoryStore()
	o := newTestOrchestrator(t, &scriptLLM{}, store)
	root := writeRepo(t, map[string]string{"util.py": utilSource})

	job, err := o.Enqueue("acme", "payments", models.JobKindFull, root)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	waitForState(t, o, job.ID, models.JobStateCompleted)

	snap, _ := o.Get(job.ID)
	if snap.Progress.ProcessedFiles != 1 {
		t.Errorf("processed = %d", snap.Progress.ProcessedFiles)
	}
	if snap.StartedAt.IsZero() || snap.EndedAt.IsZero() {
		t.Errorf("timestamps not recorded: %+v", snap)
	}
	if _, ok := store.Get(models.RepoDocID("acme", "payments")); !ok {
		t.Errorf("repo document missing after completed job")
	}
}

func TestOrchestratorSerializesTenantJobs(t *testing.T) {
	store := storage.NewMemoryStore()
	block := make(chan struct{})
	llm := &scriptLLM{block: block}
	o := newTestOrchestrator(t, llm, store)
	root := writeRepo(t, map[string]string{"util.py": utilSource})

	first, err := o.Enqueue("acme", "payments", models.JobKindFull, root)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	second, err := o.Enqueue("acme", "billing", models.JobKindFull, root)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	waitForState(t, o, first.ID, models.JobStateRunning)

	// The second job of the same tenant must not start while the first runs.
	time.Sleep(50 * time.Millisecond)
	if snap, _ := o.Get(second.ID); snap.State != models.JobStateQueued {
		t.Errorf("second job state = %s, want queued", snap.State)
	}

	close(block)
	waitForState(t, o, first.ID, models.JobStateCompleted)
	waitForState(t, o, second.ID, models.JobStateCompleted)
}

func TestOrchestratorRunsTenantsConcurrently(t *testing.T) {
	store := storage.NewMemoryStore()
	block := make(chan struct{})
	llm := &scriptLLM{block: block}
	o := newTestOrchestrator(t, llm, store)
	root := writeRepo(t, map[string]string{"util.py": utilSource})

	a, _ := o.Enqueue("tenant-a", "repo", models.JobKindFull, root)
	b, _ := o.Enqueue("tenant-b", "repo", models.JobKindFull, root)

	waitForState(t, o, a.ID, models.JobStateRunning)
	waitForState(t, o, b.ID, models.JobStateRunning)

	close(block)
	waitForState(t, o, a.ID, models.JobStateCompleted)
	waitForState(t, o, b.ID, models.JobStateCompleted)
}

func TestOrchestratorCancelRunningJob(t *testing.T) {
	store := storage.NewMemoryStore()
	block := make(chan struct{})
	defer close(block)
	llm := &scriptLLM{block: block}
	o := newTestOrchestrator(t, llm, store)
	root := writeRepo(t, map[string]string{"util.py": utilSource})

	job, _ := o.Enqueue("acme", "payments", models.JobKindFull, root)
	waitForState(t, o, job.ID, models.JobStateRunning)

	if !o.Cancel(job.ID) {
		t.Fatalf("Cancel returned false for running job")
	}
	waitForState(t, o, job.ID, models.JobStateCancelled)

	// Terminal jobs refuse further cancellation.
	if o.Cancel(job.ID) {
		t.Errorf("Cancel succeeded on terminal job")
	}
}

func TestOrchestratorListIsTenantScoped(t *testing.T) {
	store := storage.NewMemoryStore()
	o := newTestOrchestrator(t, &scriptLLM{}, store)
	root := writeRepo(t, map[string]string{"util.py": utilSource})

	jobA, _ := o.Enqueue("tenant-a", "repo", models.JobKindFull, root)
	o.Enqueue("tenant-b", "repo", models.JobKindFull, root)

	waitForState(t, o, jobA.ID, models.JobStateCompleted)

	listed := o.List("tenant-a")
	if len(listed) != 1 || listed[0].ID != jobA.ID {
		t.Errorf("List(tenant-a) = %+v", listed)
	}
}

func TestOrchestratorRemoveRepository(t *testing.T) {
	store := storage.NewMemoryStore()
	o := newTestOrchestrator(t, &scriptLLM{}, store)
	root := writeRepo(t, map[string]string{"util.py": utilSource})

	job, _ := o.Enqueue("acme", "payments", models.JobKindFull, root)
	waitForState(t, o, job.ID, models.JobStateCompleted)

	if err := o.RemoveRepository(context.Background(), "acme", "payments"); err != nil {
		t.Fatalf("RemoveRepository: %v", err)
	}
	if store.Len() != 0 {
		t.Errorf("%d documents survived repo removal", store.Len())
	}
}

func TestOrchestratorRejectsMissingIdentifiers(t *testing.T) {
	store := storage.NewMemoryStore()
	o := newTestOrchestrator(t, &scriptLLM{}, store)

	if _, err := o.Enqueue("", "repo", models.JobKindFull, ""); err == nil {
		t.Errorf("empty tenant accepted")
	}
	if _, err := o.Enqueue("acme", "", models.JobKindFull, ""); err == nil {
		t.Errorf("empty repo accepted")
	}
}
