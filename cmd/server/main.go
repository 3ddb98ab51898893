package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/codesmriti/codesmriti/internal/logging"
	"github.com/codesmriti/codesmriti/internal/mcp"
	"github.com/codesmriti/codesmriti/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, cleanup, err := logging.Setup(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to setup logging: %v", err)
	}
	defer cleanup()

	logger.Info("configuration loaded",
		"embedding_model", cfg.Embeddings.Model,
		"summarizer_model", cfg.Summarizer.Model,
		"storage", cfg.Storage.Host,
		"collection", cfg.Storage.Collection)

	server, err := mcp.NewServer(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", "error", err)
		os.Exit(1)
	}
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("received shutdown signal")
		cancel()
	}()

	if err := server.Start(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
