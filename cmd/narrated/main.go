package main

import (
	"context"
	"log"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"narrate/internal/acquire"
	"narrate/internal/config"
	"narrate/internal/daemon"
	"narrate/internal/logging"
	"narrate/internal/pipeline"
	"narrate/internal/queue"
	"narrate/internal/render"
	"narrate/internal/tts"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("prepare directories: %v", err)
	}

	logger, err := logging.New(logging.Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", filepath.Join(cfg.Paths.LogDir, "narrated.log")},
	})
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open queue store", logging.Error(err))
		return
	}

	manager := pipeline.NewManager(
		cfg,
		store,
		tts.NewEngineFromConfig(cfg),
		acquire.NewFetcher(time.Duration(cfg.Workflow.DownloadTimeout)*time.Second),
		render.NewRenderer(cfg),
		logger,
	)

	d, err := daemon.New(cfg, store, logger, manager)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		return
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		logger.Error("daemon start", logging.Error(err))
		return
	}

	<-ctx.Done()
	logger.Info("narrated shutting down")
}
