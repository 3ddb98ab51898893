// Package walker enumerates repository files and turns each retained file
// into a bounded stream of raw chunks.
package walker

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/codesmriti/codesmriti/internal/models"
	"github.com/codesmriti/codesmriti/pkg/config"
	"github.com/codesmriti/codesmriti/pkg/ignore"
)

// Stats counts walk outcomes. Fields are updated atomically while the walk
// runs and are final once Wait returns.
type Stats struct {
	TotalFiles   atomic.Int64
	RetainedFiles atomic.Int64
	SkippedFiles atomic.Int64
}

// Walker is the streaming producer of the ingestion pipeline: it walks a
// checkout, applies the fail-closed skip policy and parses up to
// parser_parallelism files concurrently. Memory stays bounded by the
// parallelism times the file size cap plus the output channel.
type Walker struct {
	cfg      *config.WalkerConfig
	matcher  *ignore.Matcher
	detector *LanguageDetector
	chunker  *Chunker
	log      *slog.Logger
}

// New creates a walker.
func New(cfg *config.WalkerConfig, log *slog.Logger) *Walker {
	registry := NewRegistry()
	return &Walker{
		cfg:      cfg,
		matcher:  ignore.NewMatcher(cfg.JunkPatterns),
		detector: NewLanguageDetector(),
		chunker:  NewChunker(cfg, registry, log),
		log:      log,
	}
}

// Walk streams chunk groups for every retained file under root. Paths in
// the emitted groups are relative to root with forward slashes. The
// returned wait function reports the first walk or parse error after the
// channel closes.
func (w *Walker) Walk(ctx context.Context, root string) (<-chan models.FileChunks, *Stats, func() error) {
	out := make(chan models.FileChunks, w.cfg.ChunkChannelSize)
	stats := &Stats{}

	paths := make(chan string, w.cfg.ParserParallelism)

	g, ctx := errgroup.WithContext(ctx)

	// Enumerator: one goroutine walks the tree and applies the path-level
	// skip rules (junk patterns, size cap, unknown extension).
	g.Go(func() error {
		defer close(paths)
		return w.enumerate(ctx, root, paths, stats)
	})

	// Parse workers apply the content-level skip rule and chunk.
	workers := &errgroup.Group{}
	for i := 0; i < w.cfg.ParserParallelism; i++ {
		workers.Go(func() error {
			for relPath := range paths {
				group, ok, err := w.processFile(root, relPath)
				if err != nil {
					// Unreadable files are skipped, not fatal.
					w.log.Warn("skipping unreadable file", "path", relPath, "error", err)
					stats.SkippedFiles.Add(1)
					continue
				}
				if !ok {
					stats.SkippedFiles.Add(1)
					continue
				}
				stats.RetainedFiles.Add(1)
				select {
				case out <- group:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			return nil
		})
	}

	g.Go(func() error {
		defer close(out)
		return workers.Wait()
	})

	return out, stats, g.Wait
}

// enumerate walks the tree and feeds candidate paths to the parse workers.
func (w *Walker) enumerate(ctx context.Context, root string, paths chan<- string, stats *Stats) error {
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("failed to stat checkout root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("checkout root is not a directory: %s", root)
	}

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			w.log.Warn("walk error", "path", path, "error", err)
			return nil
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			relPath = path
		}
		relPath = filepath.ToSlash(relPath)

		if d.IsDir() {
			if relPath != "." && (strings.HasPrefix(d.Name(), ".") || w.matcher.ShouldIgnore(relPath)) {
				return fs.SkipDir
			}
			return nil
		}

		stats.TotalFiles.Add(1)

		if w.matcher.ShouldIgnore(relPath) {
			stats.SkippedFiles.Add(1)
			return nil
		}

		if !w.detector.IsSupported(relPath) {
			stats.SkippedFiles.Add(1)
			return nil
		}

		fileInfo, err := d.Info()
		if err != nil || fileInfo.Size() > w.cfg.MaxFileBytes {
			stats.SkippedFiles.Add(1)
			return nil
		}

		select {
		case paths <- relPath:
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	})
}

// processFile reads and chunks one candidate. ok is false when the content
// fails the minimum-length rule.
func (w *Walker) processFile(root, relPath string) (models.FileChunks, bool, error) {
	content, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(relPath)))
	if err != nil {
		return models.FileChunks{}, false, err
	}

	if len(strings.TrimSpace(string(content))) < w.cfg.MinFileBytes {
		return models.FileChunks{}, false, nil
	}

	lang, ok := w.detector.Detect(relPath)
	if !ok {
		return models.FileChunks{}, false, nil
	}

	group, err := w.chunker.ChunkFile(relPath, lang.Name, content)
	if err != nil {
		return models.FileChunks{}, false, err
	}

	return group, true, nil
}
