package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/codesmriti/codesmriti/internal/errs"
	"github.com/codesmriti/codesmriti/internal/models"
	"github.com/codesmriti/codesmriti/internal/storage"
	"github.com/codesmriti/codesmriti/pkg/config"
)

// Orchestrator owns the job lifecycle. Jobs of one tenant run strictly one
// at a time; jobs of different tenants share a bounded worker pool.
type Orchestrator struct {
	cfg      *config.JobsConfig
	pipeline *Pipeline
	store    storage.Store
	log      *slog.Logger

	mu      sync.Mutex
	jobs    map[string]*trackedJob
	order   []string
	tenants map[string]chan struct{}

	slots     chan struct{}
	wg        sync.WaitGroup
	baseCtx   context.Context
	cancelAll context.CancelFunc
}

type trackedJob struct {
	job    *models.Job
	cancel context.CancelFunc
}

// NewOrchestrator creates an orchestrator over the pipeline.
func NewOrchestrator(cfg *config.JobsConfig, pipeline *Pipeline, store storage.Store, log *slog.Logger) *Orchestrator {
	ctx, cancel := context.WithCancel(context.Background())
	slots := cfg.MaxTenantJobs
	if slots < 1 {
		slots = 1
	}
	return &Orchestrator{
		cfg:       cfg,
		pipeline:  pipeline,
		store:     store,
		log:       log,
		jobs:      make(map[string]*trackedJob),
		tenants:   make(map[string]chan struct{}),
		slots:     make(chan struct{}, slots),
		baseCtx:   ctx,
		cancelAll: cancel,
	}
}

// Enqueue registers a job and starts it as soon as its tenant is free and a
// worker slot opens. checkoutPath overrides the default location under
// repos_root when non-empty.
func (o *Orchestrator) Enqueue(tenantID, repoID string, kind models.JobKind, checkoutPath string) (*models.Job, error) {
	if tenantID == "" || repoID == "" {
		return nil, fmt.Errorf("tenant_id and repo_id are required")
	}
	if checkoutPath == "" {
		checkoutPath = filepath.Join(o.cfg.ReposRoot, tenantID, repoID)
	}

	jobCtx, cancel := context.WithCancel(o.baseCtx)
	job := &models.Job{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		RepoID:    repoID,
		Kind:      kind,
		State:     models.JobStateQueued,
		CreatedAt: time.Now().UTC(),
	}

	o.mu.Lock()
	o.jobs[job.ID] = &trackedJob{job: job, cancel: cancel}
	o.order = append(o.order, job.ID)
	lane := o.tenantLane(tenantID)
	o.mu.Unlock()

	o.wg.Add(1)
	go o.run(jobCtx, job, lane, checkoutPath)

	o.log.Info("job enqueued", "job_id", job.ID, "tenant", tenantID, "repo", repoID, "kind", kind)
	return job, nil
}

// tenantLane returns the serialization token channel of a tenant. Callers
// hold o.mu.
func (o *Orchestrator) tenantLane(tenantID string) chan struct{} {
	lane, ok := o.tenants[tenantID]
	if !ok {
		lane = make(chan struct{}, 1)
		o.tenants[tenantID] = lane
	}
	return lane
}

func (o *Orchestrator) run(ctx context.Context, job *models.Job, lane chan struct{}, checkoutPath string) {
	defer o.wg.Done()

	// Tenant serialization first, then a cross-tenant worker slot.
	select {
	case lane <- struct{}{}:
	case <-ctx.Done():
		o.finish(job, ctx.Err())
		return
	}
	defer func() { <-lane }()

	select {
	case o.slots <- struct{}{}:
	case <-ctx.Done():
		o.finish(job, ctx.Err())
		return
	}
	defer func() { <-o.slots }()

	if ctx.Err() != nil {
		o.finish(job, ctx.Err())
		return
	}

	job.SetStarted(time.Now().UTC())
	job.SetState(models.JobStateRunning)
	o.log.Info("job started", "job_id", job.ID, "tenant", job.TenantID, "repo", job.RepoID)

	err := o.pipeline.Run(ctx, job, checkoutPath)
	o.finish(job, err)
}

func (o *Orchestrator) finish(job *models.Job, err error) {
	job.SetEnded(time.Now().UTC())
	switch {
	case err == nil:
		job.SetState(models.JobStateCompleted)
		o.log.Info("job completed", "job_id", job.ID, "processed", job.GetProgress().ProcessedFiles)
	case errors.Is(err, context.Canceled), errors.Is(err, errs.ErrCancelled):
		job.SetState(models.JobStateCancelled)
		o.log.Info("job cancelled", "job_id", job.ID)
	default:
		job.SetError(err.Error())
		job.SetState(models.JobStateFailed)
		o.log.Error("job failed", "job_id", job.ID, "error", err)
	}
}

// Get returns a snapshot of one job.
func (o *Orchestrator) Get(jobID string) (models.JobSnapshot, bool) {
	o.mu.Lock()
	tracked, ok := o.jobs[jobID]
	o.mu.Unlock()
	if !ok {
		return models.JobSnapshot{}, false
	}
	return tracked.job.Snapshot(), true
}

// List returns snapshots of a tenant's jobs in enqueue order.
func (o *Orchestrator) List(tenantID string) []models.JobSnapshot {
	o.mu.Lock()
	defer o.mu.Unlock()

	var out []models.JobSnapshot
	for _, id := range o.order {
		tracked := o.jobs[id]
		if tracked.job.TenantID == tenantID {
			out = append(out, tracked.job.Snapshot())
		}
	}
	return out
}

// Cancel requests cooperative cancellation. The job observes it at its next
// checkpoint; a still-queued job never starts.
func (o *Orchestrator) Cancel(jobID string) bool {
	o.mu.Lock()
	tracked, ok := o.jobs[jobID]
	o.mu.Unlock()
	if !ok {
		return false
	}
	if tracked.job.GetState().Terminal() {
		return false
	}
	tracked.cancel()
	return true
}

// RemoveRepository deletes every document of a repo. A running job for the
// repo keeps writing; callers cancel it first.
func (o *Orchestrator) RemoveRepository(ctx context.Context, tenantID, repoID string) error {
	return o.store.DeleteByRepo(ctx, tenantID, repoID)
}

// Shutdown cancels every job and waits for the workers to drain.
func (o *Orchestrator) Shutdown() {
	o.cancelAll()
	o.wg.Wait()
}
