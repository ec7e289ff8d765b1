package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/vboughner/brain-lambda/internal/api"
	"github.com/vboughner/brain-lambda/internal/config"
	"github.com/vboughner/brain-lambda/internal/engine"
	"github.com/vboughner/brain-lambda/internal/logging"
	"github.com/vboughner/brain-lambda/internal/storage"
)

func main() {
	configPath := flag.String("config", os.Getenv("BRAIN_CONFIG"), "path to a config file")
	flag.Parse()

	// 1. Config
	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	// 2. Logging
	entry, err := logging.New(cfg.Log, "brain-api")
	if err != nil {
		logrus.Fatalf("Failed to set up logging: %v", err)
	}
	entry.WithField("server_version", engine.ServerVersion).Info("Starting memory service")

	// 3. Storage
	store, err := storage.Open(storage.Options{
		Driver: cfg.Storage.Driver,
		Dir:    cfg.Storage.Dir,
		DSN:    cfg.Storage.DSN,
	})
	if err != nil {
		entry.Fatalf("Failed to initialize storage: %v", err)
	}
	defer store.Close()

	// 4. Engine
	eng, err := engine.NewEngine(cfg, entry, store)
	if err != nil {
		entry.Fatalf("Failed to initialize engine: %v", err)
	}

	// 5. API Server
	server, err := api.NewServer(eng, entry)
	if err != nil {
		entry.Fatalf("Failed to initialize API server: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() { errc <- server.Start(cfg.Server.Addr) }()

	select {
	case err := <-errc:
		if err != nil {
			entry.WithError(err).Error("API server stopped")
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			entry.WithError(err).Error("Graceful shutdown failed")
		}
		if err := <-errc; err != nil {
			entry.WithError(err).Error("API server stopped")
		}
	}
	entry.Info("Memory service stopped")
}
