// Package mcp exposes the engine over the Model Context Protocol on stdio.
package mcp

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/codesmriti/codesmriti/internal/embeddings"
	"github.com/codesmriti/codesmriti/internal/jobs"
	"github.com/codesmriti/codesmriti/internal/search"
	"github.com/codesmriti/codesmriti/internal/storage"
	"github.com/codesmriti/codesmriti/internal/summarize"
	"github.com/codesmriti/codesmriti/pkg/config"
)

// Server wires the engine components behind the MCP tool surface.
type Server struct {
	config       *config.Config
	mcpServer    *server.MCPServer
	engine       *search.Engine
	navigator    *search.Navigator
	orchestrator *jobs.Orchestrator
	store        storage.Store
	log          *slog.Logger
}

// NewServer builds the full engine and registers the tools.
func NewServer(cfg *config.Config, log *slog.Logger) (*Server, error) {
	store, err := storage.NewQdrantStore(&cfg.Storage, cfg.Embeddings.Dims, log.With("component", "storage"))
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	if err := store.Initialize(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	encoder := embeddings.NewClient(&cfg.Embeddings)
	batcher := embeddings.NewBatcher(&cfg.Embeddings, encoder, log.With("component", "embeddings"))

	summarizer, err := summarize.New(&cfg.Summarizer, summarize.NewClient(&cfg.Summarizer), log.With("component", "summarizer"))
	if err != nil {
		return nil, fmt.Errorf("failed to create summarizer: %w", err)
	}

	engine, err := search.NewEngine(&cfg.Search, store, batcher, log.With("component", "search"))
	if err != nil {
		return nil, fmt.Errorf("failed to create search engine: %w", err)
	}
	navigator := search.NewNavigator(&cfg.Search, store, cfg.Jobs.ReposRoot)

	pipeline := jobs.NewPipeline(cfg, summarizer, batcher, store, log.With("component", "pipeline"))
	orchestrator := jobs.NewOrchestrator(&cfg.Jobs, pipeline, store, log.With("component", "jobs"))

	s := &Server{
		config:       cfg,
		engine:       engine,
		navigator:    navigator,
		orchestrator: orchestrator,
		store:        store,
		log:          log,
	}

	mcpServer := server.NewMCPServer(
		cfg.Server.Name,
		cfg.Server.Version,
	)

	tools := s.getTools()
	for _, tool := range tools {
		mcpServer.AddTool(tool, s.createToolHandler(tool.Name))
	}
	s.mcpServer = mcpServer

	log.Info("server initialized", "name", cfg.Server.Name, "version", cfg.Server.Version, "tools", len(tools))
	return s, nil
}

// createToolHandler routes one registered tool to its handler.
func (s *Server) createToolHandler(toolName string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		s.log.Debug("handling tool call", "tool", toolName)

		var args map[string]interface{}
		if request.Params.Arguments != nil {
			var ok bool
			args, ok = request.Params.Arguments.(map[string]interface{})
			if !ok {
				return errorResult("invalid arguments format"), nil
			}
		} else {
			args = make(map[string]interface{})
		}

		switch toolName {
		case "search_code":
			return s.handleSearchCode(ctx, args)
		case "list_repos":
			return s.handleListRepos(ctx, args)
		case "explore_structure":
			return s.handleExploreStructure(ctx, args)
		case "get_file":
			return s.handleGetFile(ctx, args)
		case "index_repository":
			return s.handleIndexRepository(ctx, args)
		case "get_job_status":
			return s.handleGetJobStatus(ctx, args)
		case "list_jobs":
			return s.handleListJobs(ctx, args)
		case "cancel_job":
			return s.handleCancelJob(ctx, args)
		case "remove_repository":
			return s.handleRemoveRepository(ctx, args)
		default:
			return errorResult(fmt.Sprintf("unknown tool: %s", toolName)), nil
		}
	}
}

// Start serves MCP over stdio until the transport closes.
func (s *Server) Start(ctx context.Context) error {
	s.log.Info("starting stdio transport")
	if err := server.ServeStdio(s.mcpServer); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Close drains running jobs and releases the storage connection.
func (s *Server) Close() error {
	s.log.Info("shutting down")
	s.orchestrator.Shutdown()
	return s.store.Close()
}
