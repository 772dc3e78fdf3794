// Package main runs the certificate generation worker pool.
package main

import (
	"context"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/aura-seminar/certificates/config"
	"github.com/aura-seminar/certificates/internal/app"
	"github.com/aura-seminar/certificates/internal/worker"
)

func main() {
	logger := app.NewLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("init", zap.Error(err))
	}
	defer a.Close()

	processor := worker.NewCertificateProcessor(a.Queue, a.Generator, cfg.Worker.Concurrency, logger)
	logger.Info("worker started", zap.Int("concurrency", cfg.Worker.Concurrency))
	if err := processor.Run(ctx); err != nil {
		logger.Error("worker", zap.Error(err))
	}
	logger.Info("worker stopped")
}
