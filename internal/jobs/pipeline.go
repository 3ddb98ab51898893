// Package jobs drives ingestion: the per-file pipeline stages and the
// orchestrator that serializes jobs per tenant.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/codesmriti/codesmriti/internal/embeddings"
	"github.com/codesmriti/codesmriti/internal/models"
	"github.com/codesmriti/codesmriti/internal/reconcile"
	"github.com/codesmriti/codesmriti/internal/storage"
	"github.com/codesmriti/codesmriti/internal/summarize"
	"github.com/codesmriti/codesmriti/internal/walker"
	"github.com/codesmriti/codesmriti/pkg/config"
)

// Pipeline runs one ingestion end to end: walk, reconcile, summarize,
// embed, upsert. Parsing is parallel inside the walker; summarization and
// embedding are single consumers so ordering stays simple; upserts go out
// per file with symbols ahead of their file document.
type Pipeline struct {
	cfg        *config.Config
	walker     *walker.Walker
	summarizer *summarize.Summarizer
	batcher    *embeddings.Batcher
	store      storage.Store
	log        *slog.Logger
}

// NewPipeline wires the ingestion stages.
func NewPipeline(cfg *config.Config, summarizer *summarize.Summarizer, batcher *embeddings.Batcher, store storage.Store, log *slog.Logger) *Pipeline {
	return &Pipeline{
		cfg:        cfg,
		walker:     walker.New(&cfg.Walker, log),
		summarizer: summarizer,
		batcher:    batcher,
		store:      store,
		log:        log,
	}
}

// fileOutcome is what one processed file contributes to module aggregation.
type fileOutcome struct {
	path        string
	docID       string
	summary     string
	language    string
	symbolCount int
}

// Run ingests the checkout at checkoutPath for job's (tenant, repo).
func (p *Pipeline) Run(ctx context.Context, job *models.Job, checkoutPath string) error {
	tenantID, repoID := job.TenantID, job.RepoID

	rec, err := reconcile.Load(ctx, p.store, tenantID, repoID, job.Kind == models.JobKindFull)
	if err != nil {
		return err
	}

	groups, stats, wait := p.walker.Walk(ctx, checkoutPath)

	var (
		outcomes    []fileOutcome
		progress    models.Progress
		freshSymbol int
	)

	for group := range groups {
		// File-boundary checkpoint.
		if ctx.Err() != nil {
			drain(groups)
			wait()
			return ctx.Err()
		}

		outcome, err := p.processFile(ctx, rec, tenantID, repoID, group)
		if err != nil {
			drain(groups)
			wait()
			return fmt.Errorf("file %s: %w", group.Path, err)
		}
		outcomes = append(outcomes, outcome)
		freshSymbol += outcome.symbolCount

		progress.ProcessedFiles++
		progress.TotalChunks += len(group.Chunks)
		progress.TotalFiles = int(stats.TotalFiles.Load())
		progress.SkippedFiles = int(stats.SkippedFiles.Load())
		progress.CurrentFile = group.Path
		job.UpdateProgress(progress)
	}

	if err := wait(); err != nil {
		return err
	}
	progress.TotalFiles = int(stats.TotalFiles.Load())
	progress.SkippedFiles = int(stats.SkippedFiles.Load())
	progress.CurrentFile = ""
	job.UpdateProgress(progress)

	// Cascade deletes for files that disappeared from the tree.
	for _, deleted := range rec.DeletedPaths() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.log.Info("deleting documents for removed file", "path", deleted)
		if err := p.store.DeleteByFile(ctx, tenantID, repoID, deleted); err != nil {
			return fmt.Errorf("delete %s: %w", deleted, err)
		}
	}

	return p.aggregate(ctx, rec, tenantID, repoID, outcomes, freshSymbol)
}

// processFile runs reconciliation and, when the file changed, the full
// summarize-embed-upsert sequence for one chunk group.
func (p *Pipeline) processFile(ctx context.Context, rec *reconcile.Reconciler, tenantID, repoID string, group models.FileChunks) (fileOutcome, error) {
	outcome := fileOutcome{
		path:     group.Path,
		docID:    models.FileDocID(tenantID, repoID, group.Path),
		language: group.Language,
	}

	change := rec.Classify(group.Path, group.Commit)
	if change == reconcile.ChangeUnchanged {
		summary, _ := rec.StoredSummary(group.Path)
		outcome.summary = summary
		return outcome, nil
	}

	// Updated files cascade first so stale symbols never coexist with the
	// fresh ones.
	if change == reconcile.ChangeUpdated {
		if err := p.store.DeleteByFile(ctx, tenantID, repoID, group.Path); err != nil {
			return outcome, err
		}
	}

	docs, summary, err := p.buildFileDocuments(ctx, tenantID, repoID, group)
	if err != nil {
		return outcome, err
	}
	outcome.summary = summary
	outcome.symbolCount = len(docs) - 1

	// Embed-batch checkpoint.
	if ctx.Err() != nil {
		return outcome, ctx.Err()
	}
	if err := p.batcher.EmbedDocuments(ctx, docs); err != nil {
		return outcome, err
	}

	// Storage-batch checkpoint. Symbols lead the slice so they are visible
	// before the file document that references them.
	if ctx.Err() != nil {
		return outcome, ctx.Err()
	}
	stats, err := p.store.UpsertDocuments(ctx, docs)
	if err != nil {
		return outcome, err
	}
	if len(stats.Failed) > 0 {
		p.log.Warn("documents failed to upsert", "path", group.Path, "failed", stats.Failed)
	}

	return outcome, nil
}

// buildFileDocuments summarizes the symbol chunks and the file itself,
// returning symbol documents followed by the file document.
func (p *Pipeline) buildFileDocuments(ctx context.Context, tenantID, repoID string, group models.FileChunks) ([]models.Document, string, error) {
	fileID := models.FileDocID(tenantID, repoID, group.Path)

	var docs []models.Document
	var entries []summarize.ChildEntry

	for _, chunk := range group.Chunks {
		if chunk.Kind != models.ChunkKindSymbol {
			continue
		}
		// Tiny symbols contribute to the file summary through the metadata
		// and whole-file chunks but get no document of their own.
		if chunk.EndLine-chunk.StartLine+1 < p.cfg.Walker.MinSymbolLines {
			continue
		}
		if chunk.SymbolName == "" {
			continue
		}
		if ctx.Err() != nil {
			return nil, "", ctx.Err()
		}

		result := p.summarizer.SummarizeSymbol(ctx, chunk)

		docs = append(docs, models.Document{
			ID:              models.SymbolDocID(tenantID, repoID, group.Path, chunk.SymbolName),
			TenantID:        tenantID,
			RepoID:          repoID,
			Type:            models.DocTypeSymbolIndex,
			SummaryText:     result.Text,
			ParentID:        fileID,
			ContentHash:     models.SourceHash([]byte(chunk.Content)),
			Path:            group.Path,
			Language:        group.Language,
			SymbolName:      chunk.SymbolName,
			SymbolKind:      chunk.SymbolKind,
			StartLine:       chunk.StartLine,
			EndLine:         chunk.EndLine,
			ParentClass:     chunk.ParentSymbol,
			SummaryDegraded: result.Degraded,
		})
		entries = append(entries, summarize.ChildEntry{Key: chunk.SymbolName, Summary: result.Text})
	}

	fileResult := p.summarizer.SummarizeFile(ctx, group, entries)

	childIDs := make([]string, 0, len(docs))
	for _, doc := range docs {
		childIDs = append(childIDs, doc.ID)
	}

	fileDoc := models.Document{
		ID:                   fileID,
		TenantID:             tenantID,
		RepoID:               repoID,
		Type:                 models.DocTypeFileIndex,
		SummaryText:          fileResult.Text,
		ParentID:             models.ModuleDocID(tenantID, repoID, moduleOf(group.Path)),
		ChildrenIDs:          childIDs,
		ContentHash:          group.Commit,
		Path:                 group.Path,
		Language:             group.Language,
		LineCount:            group.LineCount,
		FileCommit:           group.Commit,
		SummaryDegraded:      fileResult.Degraded,
		AggregationTruncated: fileResult.Truncated,
		ParseDegraded:        group.ParseDegraded,
	}
	docs = append(docs, fileDoc)

	return docs, fileResult.Text, nil
}

// aggregate builds the module documents bottom-up and the repo document
// last. Modules whose content hash did not change are left alone, which is
// what makes an unchanged re-run write nothing.
func (p *Pipeline) aggregate(ctx context.Context, rec *reconcile.Reconciler, tenantID, repoID string, outcomes []fileOutcome, freshSymbols int) error {
	filesByModule := make(map[string][]fileOutcome)
	moduleSet := make(map[string]bool)
	languageSet := make(map[string]bool)

	for _, outcome := range outcomes {
		dir := moduleOf(outcome.path)
		filesByModule[dir] = append(filesByModule[dir], outcome)
		for m := dir; ; m = moduleOf(m) {
			moduleSet[m] = true
			if m == "" {
				break
			}
		}
		if outcome.language != "" {
			languageSet[outcome.language] = true
		}
	}
	if len(outcomes) == 0 {
		// Empty tree still gets a root module and a repo document.
		moduleSet[""] = true
	}

	modules := make([]string, 0, len(moduleSet))
	for m := range moduleSet {
		modules = append(modules, m)
	}
	// Deepest first so child module summaries exist before their parents
	// aggregate them.
	sort.Slice(modules, func(i, j int) bool {
		di, dj := strings.Count(modules[i], "/"), strings.Count(modules[j], "/")
		if modules[i] == "" {
			di = -1
		}
		if modules[j] == "" {
			dj = -1
		}
		if di != dj {
			return di > dj
		}
		return modules[i] < modules[j]
	})

	childModules := make(map[string][]string)
	for _, m := range modules {
		if m == "" {
			continue
		}
		parent := moduleOf(m)
		childModules[parent] = append(childModules[parent], m)
	}

	moduleSummaries := make(map[string]string)
	for _, m := range modules {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		summary, err := p.upsertModule(ctx, rec, tenantID, repoID, m, filesByModule[m], childModules[m], moduleSummaries)
		if err != nil {
			return fmt.Errorf("module %q: %w", m, err)
		}
		moduleSummaries[m] = summary
	}

	// Directories that vanished from the tree take their module documents
	// with them; the file cascade alone leaves those behind.
	for _, stored := range rec.ModulePaths() {
		if moduleSet[stored] {
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.log.Info("deleting module document for removed directory", "path", stored)
		if err := p.store.DeleteModule(ctx, tenantID, repoID, stored); err != nil {
			return fmt.Errorf("delete module %q: %w", stored, err)
		}
	}

	languages := make([]string, 0, len(languageSet))
	for l := range languageSet {
		languages = append(languages, l)
	}
	sort.Strings(languages)

	return p.upsertRepo(ctx, tenantID, repoID, languages, modules, moduleSummaries, len(outcomes), freshSymbols)
}

// upsertModule writes one module document unless its aggregate hash is
// already stored. Returns the summary the parent should aggregate.
func (p *Pipeline) upsertModule(ctx context.Context, rec *reconcile.Reconciler, tenantID, repoID, modulePath string, files []fileOutcome, children []string, summaries map[string]string) (string, error) {
	var entries []summarize.ChildEntry
	var childIDs []string
	var childSummaries []string

	sort.Slice(files, func(i, j int) bool { return files[i].path < files[j].path })
	for _, f := range files {
		entries = append(entries, summarize.ChildEntry{Key: path.Base(f.path), Summary: f.summary})
		childIDs = append(childIDs, f.docID)
		childSummaries = append(childSummaries, f.summary)
	}
	sort.Strings(children)
	for _, child := range children {
		entries = append(entries, summarize.ChildEntry{Key: child, Summary: summaries[child]})
		childIDs = append(childIDs, models.ModuleDocID(tenantID, repoID, child))
		childSummaries = append(childSummaries, summaries[child])
	}

	hash := models.AggregateHash(childIDs, childSummaries)
	if stored, ok := rec.ModuleRecord(modulePath); ok && stored.ContentHash == hash {
		return stored.Summary, nil
	}

	result := p.summarizer.SummarizeModule(ctx, modulePath, entries)

	parentID := models.ModuleDocID(tenantID, repoID, moduleOf(modulePath))
	if modulePath == "" {
		parentID = models.RepoDocID(tenantID, repoID)
	}

	doc := models.Document{
		ID:                   models.ModuleDocID(tenantID, repoID, modulePath),
		TenantID:             tenantID,
		RepoID:               repoID,
		Type:                 models.DocTypeModuleSummary,
		SummaryText:          result.Text,
		ParentID:             parentID,
		ChildrenIDs:          childIDs,
		ContentHash:          hash,
		Path:                 modulePath,
		SummaryDegraded:      result.Degraded,
		AggregationTruncated: result.Truncated,
	}

	docs := []models.Document{doc}
	if err := p.batcher.EmbedDocuments(ctx, docs); err != nil {
		return "", err
	}
	if _, err := p.store.UpsertDocuments(ctx, docs); err != nil {
		return "", err
	}
	return result.Text, nil
}

// upsertRepo writes the repo document last, once every module below it is
// visible, unless nothing underneath changed.
func (p *Pipeline) upsertRepo(ctx context.Context, tenantID, repoID string, languages, modules []string, summaries map[string]string, fileCount, freshSymbols int) error {
	// Top-level entries: the root module and its direct children.
	var entries []summarize.ChildEntry
	var childSummaries []string
	topLevel := []string{""}
	for _, m := range modules {
		if m != "" && moduleOf(m) == "" {
			topLevel = append(topLevel, m)
		}
	}
	sort.Strings(topLevel)
	ids := make([]string, 0, len(topLevel))
	for _, m := range topLevel {
		key := m
		if key == "" {
			key = "(root)"
		}
		entries = append(entries, summarize.ChildEntry{Key: key, Summary: summaries[m]})
		ids = append(ids, models.ModuleDocID(tenantID, repoID, m))
		childSummaries = append(childSummaries, summaries[m])
	}

	hash := models.AggregateHash(ids, childSummaries)

	repoDocID := models.RepoDocID(tenantID, repoID)
	existing, err := p.store.FetchDocument(ctx, repoDocID)
	if err != nil {
		return err
	}
	if existing != nil && existing.ContentHash == hash {
		return nil
	}

	result := p.summarizer.SummarizeRepo(ctx, repoID, languages, entries)

	doc := models.Document{
		ID:          repoDocID,
		TenantID:    tenantID,
		RepoID:      repoID,
		Type:        models.DocTypeRepoSummary,
		SummaryText: result.Text,
		// Direct child is the root module; top-level modules hang off it.
		ChildrenIDs: []string{models.ModuleDocID(tenantID, repoID, "")},
		ContentHash: hash,
		Languages:   languages,
		DocCounts: map[string]int{
			"module_summary": len(modules),
			"file_index":     fileCount,
			"symbol_index":   freshSymbols,
		},
		SummaryDegraded:      result.Degraded,
		AggregationTruncated: result.Truncated,
	}
	if existing != nil {
		doc.CreatedAt = existing.CreatedAt
	} else {
		doc.CreatedAt = time.Now().UTC()
	}

	docs := []models.Document{doc}
	if err := p.batcher.EmbedDocuments(ctx, docs); err != nil {
		return err
	}
	if _, err := p.store.UpsertDocuments(ctx, docs); err != nil {
		return err
	}
	return nil
}

// moduleOf returns the module path containing a file or module path. The
// repository root is the empty string.
func moduleOf(p string) string {
	dir := path.Dir(p)
	if dir == "." || dir == "/" {
		return ""
	}
	return dir
}

func drain(ch <-chan models.FileChunks) {
	for range ch {
	}
}
