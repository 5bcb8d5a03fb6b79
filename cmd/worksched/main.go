package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"worksched/internal/amqp"
	"worksched/internal/cli"
	"worksched/internal/evidence"
	apphttp "worksched/internal/http"
	"worksched/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()

	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	files, err := evidence.NewStore(cfg.EvidenceDir)
	if err != nil {
		logger.Error("Failed to initialize evidence store", "error", err, "dir", cfg.EvidenceDir)
		os.Exit(1)
	}

	// The broker is optional for the web server: uploads and completions
	// still work without it, the finance worker just never hears about them.
	var publisher services.Publisher
	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, cfg.AMQPJobsQueue)
	if err != nil {
		logger.Warn("AMQP unavailable, continuing without messaging", "error", err)
	} else {
		defer amqpClient.Close()
		publisher = amqpClient
		logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange)
	}

	uploads := services.NewUploadService(repo, publisher)
	uploads.DefaultRegion = cfg.DefaultRegion
	items := services.NewItemService(repo, files, publisher)

	srv := apphttp.NewServer(":"+cfg.Port, uploads, items, repo)

	// Configure server timeouts and limits
	srv.ReadTimeout = 30 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
	})

	logger.Info("Starting worksched server", "port", cfg.Port, "db", cfg.SQLiteDBPath)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
