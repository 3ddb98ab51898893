package search

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/codesmriti/codesmriti/internal/models"
	"github.com/codesmriti/codesmriti/internal/storage"
	"github.com/codesmriti/codesmriti/internal/walker"
	"github.com/codesmriti/codesmriti/pkg/config"
)

// Navigator answers the non-vector operations: repo listing, hierarchy
// browsing and on-demand source fetch from the local checkout.
type Navigator struct {
	cfg       *config.SearchConfig
	store     storage.Store
	reposRoot string
	detector  *walker.LanguageDetector
}

// NewNavigator creates a navigator. reposRoot is the directory holding the
// tenant checkouts.
func NewNavigator(cfg *config.SearchConfig, store storage.Store, reposRoot string) *Navigator {
	return &Navigator{
		cfg:       cfg,
		store:     store,
		reposRoot: reposRoot,
		detector:  walker.NewLanguageDetector(),
	}
}

// ListRepos returns the repo_summary documents of a tenant.
func (n *Navigator) ListRepos(ctx context.Context, tenantID string) ([]models.Document, error) {
	return n.store.ListRepoSummaries(ctx, tenantID)
}

// Structure is one level of the hierarchy: a module document and its
// direct children.
type Structure struct {
	Module   models.Document   `json:"module"`
	Children []models.Document `json:"children"`
}

// ExploreStructure returns a module document and its children. An empty
// path explores the repository root module.
func (n *Navigator) ExploreStructure(ctx context.Context, tenantID, repoID, path string) (*Structure, error) {
	moduleID := models.ModuleDocID(tenantID, repoID, path)
	module, err := n.store.FetchDocument(ctx, moduleID)
	if err != nil {
		return nil, err
	}
	if module == nil {
		return nil, fmt.Errorf("module not found: %s/%s", repoID, path)
	}

	children, err := n.store.FetchChildren(ctx, moduleID)
	if err != nil {
		return nil, err
	}
	sort.Slice(children, func(i, j int) bool {
		// Modules before files, then by path.
		if children[i].Type != children[j].Type {
			return children[i].Type == models.DocTypeModuleSummary
		}
		return children[i].Path < children[j].Path
	})

	return &Structure{Module: *module, Children: children}, nil
}

// FileContent is one source fetch result. TotalLines counts the whole file
// regardless of the requested slice; Language is empty for unrecognized
// extensions.
type FileContent struct {
	Path       string `json:"path"`
	Content    string `json:"content"`
	StartLine  int    `json:"start_line"`
	EndLine    int    `json:"end_line"`
	TotalLines int    `json:"total_lines"`
	Language   string `json:"language,omitempty"`
	Truncated  bool   `json:"truncated,omitempty"`
}

// GetFile reads a slice of a checked-out file. startLine and endLine are
// 1-based and inclusive; zero values mean the whole file. The result is
// capped at the configured byte limit with the cut recorded.
func (n *Navigator) GetFile(ctx context.Context, tenantID, repoID, path string, startLine, endLine int) (*FileContent, error) {
	full, err := n.resolvePath(tenantID, repoID, path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	lines := strings.Split(string(data), "\n")
	total := len(lines)

	if startLine < 1 {
		startLine = 1
	}
	if endLine < 1 || endLine > total {
		endLine = total
	}
	if startLine > endLine {
		return nil, fmt.Errorf("invalid line range %d-%d for %d-line file", startLine, endLine, total)
	}

	content := strings.Join(lines[startLine-1:endLine], "\n")
	truncated := false
	if len(content) > n.cfg.FileFetchMaxBytes {
		content = content[:n.cfg.FileFetchMaxBytes]
		if idx := strings.LastIndexByte(content, '\n'); idx > 0 {
			content = content[:idx]
		}
		truncated = true
		endLine = startLine + strings.Count(content, "\n")
	}

	language := ""
	if lang, ok := n.detector.Detect(path); ok {
		language = lang.Name
	}

	return &FileContent{
		Path:       path,
		Content:    content,
		StartLine:  startLine,
		EndLine:    endLine,
		TotalLines: total,
		Language:   language,
		Truncated:  truncated,
	}, nil
}

// resolvePath joins the checkout root with a repository-relative path and
// rejects anything that escapes the checkout.
func (n *Navigator) resolvePath(tenantID, repoID, path string) (string, error) {
	if filepath.IsAbs(path) {
		return "", fmt.Errorf("path must be repository-relative: %s", path)
	}
	clean := filepath.Clean(filepath.FromSlash(path))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes the repository: %s", path)
	}
	return filepath.Join(n.reposRoot, tenantID, repoID, clean), nil
}
