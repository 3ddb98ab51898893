package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/codesmriti/codesmriti/internal/models"
)

// getTools returns the tool definitions registered with the MCP server.
// Every tool carries tenant_id; nothing crosses a tenant boundary.
func (s *Server) getTools() []mcp.Tool {
	return []mcp.Tool{
		{
			Name:        "search_code",
			Description: "Semantic search over indexed repositories. Returns scored summaries at the requested level (symbol, file, module, repo) with paths and line ranges for follow-up reads.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]interface{}{
					"tenant_id": map[string]interface{}{
						"type":        "string",
						"description": "Tenant whose index to search",
					},
					"query": map[string]interface{}{
						"type":        "string",
						"description": "Natural-language query, e.g. 'where is retry backoff computed'",
					},
					"level": map[string]interface{}{
						"type":        "string",
						"description": "Granularity: symbol, file, module, repo or doc. Inferred from the query when omitted.",
						"enum":        []string{"symbol", "file", "module", "repo", "doc"},
					},
					"repo": map[string]interface{}{
						"type":        "string",
						"description": "Restrict the search to one repository",
					},
					"limit": map[string]interface{}{
						"type":        "number",
						"description": "Maximum number of results (default 10)",
					},
					"preview": map[string]interface{}{
						"type":        "boolean",
						"description": "Return shortened summaries",
					},
				},
				Required: []string{"tenant_id", "query"},
			},
		},
		{
			Name:        "list_repos",
			Description: "List the indexed repositories of a tenant with their summaries, languages and document counts.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]interface{}{
					"tenant_id": map[string]interface{}{
						"type":        "string",
						"description": "Tenant whose repositories to list",
					},
				},
				Required: []string{"tenant_id"},
			},
		},
		{
			Name:        "explore_structure",
			Description: "Browse the module hierarchy of an indexed repository: one module's summary plus its child modules and files.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]interface{}{
					"tenant_id": map[string]interface{}{
						"type":        "string",
						"description": "Tenant owning the repository",
					},
					"repo": map[string]interface{}{
						"type":        "string",
						"description": "Repository identifier",
					},
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Module path to explore; empty for the repository root",
					},
				},
				Required: []string{"tenant_id", "repo"},
			},
		},
		{
			Name:        "get_file",
			Description: "Read source lines from a checked-out repository file. Lines are 1-based and inclusive; omit the range for the whole file.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]interface{}{
					"tenant_id": map[string]interface{}{
						"type":        "string",
						"description": "Tenant owning the repository",
					},
					"repo": map[string]interface{}{
						"type":        "string",
						"description": "Repository identifier",
					},
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Repository-relative file path",
					},
					"start_line": map[string]interface{}{
						"type":        "number",
						"description": "First line to return",
					},
					"end_line": map[string]interface{}{
						"type":        "number",
						"description": "Last line to return",
					},
				},
				Required: []string{"tenant_id", "repo", "path"},
			},
		},
		{
			Name:        "index_repository",
			Description: "Start an ingestion job for a repository checkout. Incremental runs reuse unchanged files; full runs rebuild everything.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]interface{}{
					"tenant_id": map[string]interface{}{
						"type":        "string",
						"description": "Tenant owning the repository",
					},
					"repo": map[string]interface{}{
						"type":        "string",
						"description": "Repository identifier",
					},
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Checkout directory; defaults to <repos_root>/<tenant>/<repo>",
					},
					"full": map[string]interface{}{
						"type":        "boolean",
						"description": "Rebuild every document instead of reconciling",
					},
				},
				Required: []string{"tenant_id", "repo"},
			},
		},
		{
			Name:        "get_job_status",
			Description: "Report the state, progress and timing of one ingestion job.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]interface{}{
					"tenant_id": map[string]interface{}{
						"type":        "string",
						"description": "Tenant that enqueued the job",
					},
					"job_id": map[string]interface{}{
						"type":        "string",
						"description": "Job identifier returned by index_repository",
					},
				},
				Required: []string{"tenant_id", "job_id"},
			},
		},
		{
			Name:        "list_jobs",
			Description: "List the ingestion jobs of a tenant in enqueue order.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]interface{}{
					"tenant_id": map[string]interface{}{
						"type":        "string",
						"description": "Tenant whose jobs to list",
					},
				},
				Required: []string{"tenant_id"},
			},
		},
		{
			Name:        "cancel_job",
			Description: "Request cancellation of a queued or running ingestion job. The job stops at its next checkpoint.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]interface{}{
					"tenant_id": map[string]interface{}{
						"type":        "string",
						"description": "Tenant that enqueued the job",
					},
					"job_id": map[string]interface{}{
						"type":        "string",
						"description": "Job identifier to cancel",
					},
				},
				Required: []string{"tenant_id", "job_id"},
			},
		},
		{
			Name:        "remove_repository",
			Description: "Delete every indexed document of a repository. The checkout on disk is untouched.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]interface{}{
					"tenant_id": map[string]interface{}{
						"type":        "string",
						"description": "Tenant owning the repository",
					},
					"repo": map[string]interface{}{
						"type":        "string",
						"description": "Repository identifier to remove",
					},
				},
				Required: []string{"tenant_id", "repo"},
			},
		},
	}
}

func (s *Server) handleSearchCode(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
	tenantID := stringArg(args, "tenant_id")
	query := stringArg(args, "query")
	if tenantID == "" || query == "" {
		return errorResult("tenant_id and query are required"), nil
	}

	req := models.SearchRequest{
		TenantID:    tenantID,
		QueryText:   query,
		Level:       models.SearchLevel(stringArg(args, "level")),
		Limit:       intArg(args, "limit"),
		RepoFilter:  stringArg(args, "repo"),
		PreviewMode: boolArg(args, "preview"),
	}

	hits, err := s.engine.Search(ctx, req)
	if err != nil {
		s.log.Error("search failed", "tenant", tenantID, "error", err)
		return errorResult(fmt.Sprintf("search failed: %v", err)), nil
	}

	return textResult(formatSearchResults(hits)), nil
}

func (s *Server) handleListRepos(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
	tenantID := stringArg(args, "tenant_id")
	if tenantID == "" {
		return errorResult("tenant_id is required"), nil
	}

	repos, err := s.navigator.ListRepos(ctx, tenantID)
	if err != nil {
		return errorResult(fmt.Sprintf("failed to list repositories: %v", err)), nil
	}
	if len(repos) == 0 {
		return textResult("No repositories indexed for this tenant."), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Indexed repositories (%d):\n\n", len(repos))
	for _, repo := range repos {
		fmt.Fprintf(&sb, "## %s\n", repo.RepoID)
		if len(repo.Languages) > 0 {
			fmt.Fprintf(&sb, "Languages: %s\n", strings.Join(repo.Languages, ", "))
		}
		if len(repo.DocCounts) > 0 {
			fmt.Fprintf(&sb, "Documents: %d modules, %d files, %d symbols\n",
				repo.DocCounts["module_summary"], repo.DocCounts["file_index"], repo.DocCounts["symbol_index"])
		}
		fmt.Fprintf(&sb, "%s\n\n", repo.SummaryText)
	}
	return textResult(sb.String()), nil
}

func (s *Server) handleExploreStructure(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
	tenantID := stringArg(args, "tenant_id")
	repoID := stringArg(args, "repo")
	if tenantID == "" || repoID == "" {
		return errorResult("tenant_id and repo are required"), nil
	}

	structure, err := s.navigator.ExploreStructure(ctx, tenantID, repoID, stringArg(args, "path"))
	if err != nil {
		return errorResult(fmt.Sprintf("failed to explore structure: %v", err)), nil
	}

	var sb strings.Builder
	label := structure.Module.Path
	if label == "" {
		label = "(root)"
	}
	fmt.Fprintf(&sb, "Module %s\n%s\n\n", label, structure.Module.SummaryText)
	fmt.Fprintf(&sb, "Children (%d):\n", len(structure.Children))
	for _, child := range structure.Children {
		switch child.Type {
		case models.DocTypeModuleSummary:
			fmt.Fprintf(&sb, "- [module] %s\n", child.Path)
		default:
			fmt.Fprintf(&sb, "- [file] %s (%s, %d lines)\n", child.Path, child.Language, child.LineCount)
		}
	}
	return textResult(sb.String()), nil
}

func (s *Server) handleGetFile(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
	tenantID := stringArg(args, "tenant_id")
	repoID := stringArg(args, "repo")
	path := stringArg(args, "path")
	if tenantID == "" || repoID == "" || path == "" {
		return errorResult("tenant_id, repo and path are required"), nil
	}

	file, err := s.navigator.GetFile(ctx, tenantID, repoID, path, intArg(args, "start_line"), intArg(args, "end_line"))
	if err != nil {
		return errorResult(fmt.Sprintf("failed to read file: %v", err)), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s (lines %d-%d of %d)", file.Path, file.StartLine, file.EndLine, file.TotalLines)
	if file.Language != "" {
		fmt.Fprintf(&sb, " [%s]", file.Language)
	}
	if file.Truncated {
		sb.WriteString(" [truncated]")
	}
	sb.WriteString("\n\n")
	sb.WriteString(file.Content)
	return textResult(sb.String()), nil
}

func (s *Server) handleIndexRepository(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
	tenantID := stringArg(args, "tenant_id")
	repoID := stringArg(args, "repo")
	if tenantID == "" || repoID == "" {
		return errorResult("tenant_id and repo are required"), nil
	}

	kind := models.JobKindIncremental
	if boolArg(args, "full") {
		kind = models.JobKindFull
	}

	job, err := s.orchestrator.Enqueue(tenantID, repoID, kind, stringArg(args, "path"))
	if err != nil {
		return errorResult(fmt.Sprintf("failed to enqueue job: %v", err)), nil
	}

	return jsonResult(job.Snapshot())
}

func (s *Server) handleGetJobStatus(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
	tenantID := stringArg(args, "tenant_id")
	jobID := stringArg(args, "job_id")
	if tenantID == "" || jobID == "" {
		return errorResult("tenant_id and job_id are required"), nil
	}

	snap, ok := s.orchestrator.Get(jobID)
	if !ok || snap.TenantID != tenantID {
		return errorResult(fmt.Sprintf("job not found: %s", jobID)), nil
	}
	return jsonResult(snap)
}

func (s *Server) handleListJobs(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
	tenantID := stringArg(args, "tenant_id")
	if tenantID == "" {
		return errorResult("tenant_id is required"), nil
	}

	jobs := s.orchestrator.List(tenantID)
	if len(jobs) == 0 {
		return textResult("No jobs for this tenant."), nil
	}
	return jsonResult(jobs)
}

func (s *Server) handleCancelJob(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
	tenantID := stringArg(args, "tenant_id")
	jobID := stringArg(args, "job_id")
	if tenantID == "" || jobID == "" {
		return errorResult("tenant_id and job_id are required"), nil
	}

	snap, ok := s.orchestrator.Get(jobID)
	if !ok || snap.TenantID != tenantID {
		return errorResult(fmt.Sprintf("job not found: %s", jobID)), nil
	}
	if !s.orchestrator.Cancel(jobID) {
		return errorResult(fmt.Sprintf("job already finished: %s (%s)", jobID, snap.State)), nil
	}
	return textResult(fmt.Sprintf("Cancellation requested for job %s.", jobID)), nil
}

func (s *Server) handleRemoveRepository(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
	tenantID := stringArg(args, "tenant_id")
	repoID := stringArg(args, "repo")
	if tenantID == "" || repoID == "" {
		return errorResult("tenant_id and repo are required"), nil
	}

	if err := s.orchestrator.RemoveRepository(ctx, tenantID, repoID); err != nil {
		return errorResult(fmt.Sprintf("failed to remove repository: %v", err)), nil
	}
	s.log.Info("repository removed", "tenant", tenantID, "repo", repoID)
	return textResult(fmt.Sprintf("Removed every indexed document of %s/%s.", tenantID, repoID)), nil
}

// formatSearchResults renders hits as readable text with paths and line
// ranges an agent can follow up on.
func formatSearchResults(hits []models.SearchHit) string {
	if len(hits) == 0 {
		return "No results found."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d results:\n\n", len(hits))
	for i, hit := range hits {
		doc := hit.Document
		fmt.Fprintf(&sb, "## %d. ", i+1)
		switch doc.Type {
		case models.DocTypeSymbolIndex:
			fmt.Fprintf(&sb, "%s (%s) in %s:%d-%d", doc.SymbolName, doc.SymbolKind, doc.Path, doc.StartLine, doc.EndLine)
		case models.DocTypeFileIndex:
			fmt.Fprintf(&sb, "%s (%s, %d lines)", doc.Path, doc.Language, doc.LineCount)
		case models.DocTypeModuleSummary:
			path := doc.Path
			if path == "" {
				path = "(root)"
			}
			fmt.Fprintf(&sb, "module %s", path)
		default:
			fmt.Fprintf(&sb, "repository %s", doc.RepoID)
		}
		fmt.Fprintf(&sb, " [score %.3f, repo %s]\n", hit.Score, doc.RepoID)
		if doc.SummaryDegraded {
			sb.WriteString("(mechanical summary)\n")
		}
		fmt.Fprintf(&sb, "%s\n\n", doc.SummaryText)
	}
	return sb.String()
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return textResult(string(data)), nil
}

func errorResult(message string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: message},
		},
		IsError: true,
	}
}

func stringArg(args map[string]interface{}, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

func intArg(args map[string]interface{}, key string) int {
	if v, ok := args[key].(float64); ok {
		return int(v)
	}
	return 0
}

func boolArg(args map[string]interface{}, key string) bool {
	if v, ok := args[key].(bool); ok {
		return v
	}
	return false
}
