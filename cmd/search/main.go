// Command search runs ad-hoc queries against the index from the terminal.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/codesmriti/codesmriti/internal/embeddings"
	"github.com/codesmriti/codesmriti/internal/logging"
	"github.com/codesmriti/codesmriti/internal/models"
	"github.com/codesmriti/codesmriti/internal/search"
	"github.com/codesmriti/codesmriti/internal/storage"
	"github.com/codesmriti/codesmriti/pkg/config"
)

func main() {
	tenantID := flag.String("tenant", "", "tenant identifier")
	repoID := flag.String("repo", "", "restrict the search to one repository")
	level := flag.String("level", "", "result granularity: symbol, file, module, repo or doc")
	limit := flag.Int("limit", 10, "maximum number of results")
	flag.Parse()

	query := flag.Arg(0)
	if *tenantID == "" || query == "" {
		fmt.Fprintln(os.Stderr, "usage: search -tenant <id> [-repo <id>] [-level <level>] [-limit N] <query>")
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

	encoder := embeddings.NewClient(&cfg.Embeddings)
	batcher := embeddings.NewBatcher(&cfg.Embeddings, encoder, logger.With("component", "embeddings"))
	engine, err := search.NewEngine(&cfg.Search, store, batcher, logger.With("component", "search"))
	if err != nil {
		logger.Error("failed to create search engine", "error", err)
		os.Exit(1)
	}

	hits, err := engine.Search(context.Background(), models.SearchRequest{
		TenantID:   *tenantID,
		QueryText:  query,
		Level:      models.SearchLevel(*level),
		Limit:      *limit,
		RepoFilter: *repoID,
	})
	if err != nil {
		logger.Error("search failed", "error", err)
		os.Exit(1)
	}

	if len(hits) == 0 {
		fmt.Println("No results.")
		return
	}
	for i, hit := range hits {
		doc := hit.Document
		switch doc.Type {
		case models.DocTypeSymbolIndex:
			fmt.Printf("%2d. [%.3f] %s (%s) %s:%d-%d\n", i+1, hit.Score, doc.SymbolName, doc.SymbolKind, doc.Path, doc.StartLine, doc.EndLine)
		case models.DocTypeFileIndex:
			fmt.Printf("%2d. [%.3f] %s (%s)\n", i+1, hit.Score, doc.Path, doc.Language)
		case models.DocTypeModuleSummary:
			path := doc.Path
			if path == "" {
				path = "(root)"
			}
			fmt.Printf("%2d. [%.3f] module %s\n", i+1, hit.Score, path)
		default:
			fmt.Printf("%2d. [%.3f] repository %s\n", i+1, hit.Score, doc.RepoID)
		}
		fmt.Printf("    %s\n", doc.SummaryText)
	}
}
