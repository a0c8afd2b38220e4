package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"filippo.io/age"

	"github.com/roadmap-ai/orchestrator/internal/agents"
	"github.com/roadmap-ai/orchestrator/internal/api"
	"github.com/roadmap-ai/orchestrator/internal/brain"
	"github.com/roadmap-ai/orchestrator/internal/checkpoint"
	"github.com/roadmap-ai/orchestrator/internal/config"
	"github.com/roadmap-ai/orchestrator/internal/content"
	"github.com/roadmap-ai/orchestrator/internal/execlog"
	"github.com/roadmap-ai/orchestrator/internal/nodes"
	"github.com/roadmap-ai/orchestrator/internal/notify"
	"github.com/roadmap-ai/orchestrator/internal/statemgr"
	"github.com/roadmap-ai/orchestrator/internal/storage"
	"github.com/roadmap-ai/orchestrator/internal/workflow"
)

func main() {
	if err := config.LoadDotenv(filepath.Join(config.ConfigDir(), ".env")); err != nil {
		slog.Warn("failed to load .env", "error", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(config.ConfigPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := storage.Open(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer db.Close()

	nodeTimeout := cfg.Workflow.NodeTimeout.Duration()
	uow := storage.New(db, nodeTimeout)

	cp, err := buildCheckpointer(cfg.Checkpoint, uow)
	if err != nil {
		return fmt.Errorf("build checkpointer: %w", err)
	}

	bus := notify.NewBus(cfg.Events.BufferSize)
	defer bus.Close()

	b := brain.New(uow, cp, statemgr.New(), execlog.New(uow), bus)

	agentRegistry := agents.NewRegistry(cfg.Models)
	nodeRunners := nodes.New(b, agentRegistry)
	contentEngine := content.New(b, agentRegistry, cfg.Workflow.ContentConcurrency)

	exec := workflow.New(b, nodeRunners, contentEngine, cfg.Workflow.MaxActiveTasks, cfg.Workflow.MaxValidationRounds)

	sweeper := workflow.NewTimeoutSweeper(exec, nodeTimeout)
	if err := sweeper.Start(ctx, cfg.Workflow.TimeoutSweep.Duration()); err != nil {
		return fmt.Errorf("start timeout sweeper: %w", err)
	}
	defer sweeper.Stop()

	server := api.NewServer(b, exec, contentEngine, bus, cfg.Server.Host, cfg.Server.Port)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	case <-ctx.Done():
		slog.Info("shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	}
}

func buildCheckpointer(cfg config.CheckpointConfig, uow *storage.UnitOfWork) (checkpoint.Checkpointer, error) {
	var base checkpoint.Checkpointer
	switch cfg.Backend {
	case "file", "local":
		if cfg.Dir == "" {
			return nil, fmt.Errorf("checkpoint.dir is required for the file backend")
		}
		base = checkpoint.NewFileCheckpointer(cfg.Dir)
	default:
		base = checkpoint.NewSQLiteCheckpointer(uow)
	}

	if cfg.EncryptionKey == "" {
		return base, nil
	}

	identity, err := age.ParseX25519Identity(cfg.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("parse checkpoint encryption key: %w", err)
	}
	return checkpoint.NewEncryptedCheckpointer(base, identity), nil
}
