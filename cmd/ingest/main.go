// Command ingest runs one ingestion job against a local checkout and waits
// for it to finish. Useful for seeding an index without the MCP server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/codesmriti/codesmriti/internal/embeddings"
	"github.com/codesmriti/codesmriti/internal/jobs"
	"github.com/codesmriti/codesmriti/internal/logging"
	"github.com/codesmriti/codesmriti/internal/models"
	"github.com/codesmriti/codesmriti/internal/storage"
	"github.com/codesmriti/codesmriti/internal/summarize"
	"github.com/codesmriti/codesmriti/pkg/config"
)

func main() {
	tenantID := flag.String("tenant", "", "tenant identifier")
	repoID := flag.String("repo", "", "repository identifier")
	path := flag.String("path", "", "checkout directory (default <repos_root>/<tenant>/<repo>)")
	full := flag.Bool("full", false, "rebuild every document instead of reconciling")
	flag.Parse()

	if *tenantID == "" || *repoID == "" {
		fmt.Fprintln(os.Stderr, "usage: ingest -tenant <id> -repo <id> [-path <dir>] [-full]")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, cleanup, err := logging.Setup(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to setup logging: %v", err)
	}
	defer cleanup()

	store, err := storage.NewQdrantStore(&cfg.Storage, cfg.Embeddings.Dims, logger.With("component", "storage"))
	if err != nil {
		logger.Error("failed to create storage client", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("cancelling ingestion")
		cancel()
	}()

	if err := store.Initialize(ctx); err != nil {
		logger.Error("failed to initialize storage", "error", err)
		os.Exit(1)
	}

	encoder := embeddings.NewClient(&cfg.Embeddings)
	batcher := embeddings.NewBatcher(&cfg.Embeddings, encoder, logger.With("component", "embeddings"))
	summarizer, err := summarize.New(&cfg.Summarizer, summarize.NewClient(&cfg.Summarizer), logger.With("component", "summarizer"))
	if err != nil {
		logger.Error("failed to create summarizer", "error", err)
		os.Exit(1)
	}
	pipeline := jobs.NewPipeline(cfg, summarizer, batcher, store, logger.With("component", "pipeline"))

	kind := models.JobKindIncremental
	if *full {
		kind = models.JobKindFull
	}
	checkout := *path
	if checkout == "" {
		checkout = filepath.Join(cfg.Jobs.ReposRoot, *tenantID, *repoID)
	}

	job := &models.Job{
		ID:        uuid.NewString(),
		TenantID:  *tenantID,
		RepoID:    *repoID,
		Kind:      kind,
		State:     models.JobStateRunning,
		CreatedAt: time.Now().UTC(),
	}

	start := time.Now()
	if err := pipeline.Run(ctx, job, checkout); err != nil {
		logger.Error("ingestion failed", "error", err)
		os.Exit(1)
	}

	progress := job.GetProgress()
	fmt.Printf("Ingested %s/%s in %s: %d files processed, %d skipped, %d chunks\n",
		*tenantID, *repoID, time.Since(start).Round(time.Millisecond),
		progress.ProcessedFiles, progress.SkippedFiles, progress.TotalChunks)
}
