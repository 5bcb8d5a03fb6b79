package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"worksched/internal/amqp"
	"worksched/internal/backend"
	"worksched/internal/cli"
	"worksched/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()

	logger.Info("Starting worksched-worker")

	cfg := cli.LoadAndValidateConfig(logger)

	sqliteRepo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer sqliteRepo.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The ledger backend records completed items for the finance team.
	ledger, err := backend.NewLedger(ctx, backend.LedgerType(cfg.LedgerBackend), logger)
	if err != nil {
		logger.Error("Failed to initialize ledger backend", "error", err, "backend", cfg.LedgerBackend)
		os.Exit(1)
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, cfg.AMQPJobsQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	financeWorker := worker.NewFinanceWorker(sqliteRepo, ledger, cfg.SyncBatchSize)

	// On startup, process any completed items that missed their message.
	logger.Info("Performing startup sync check...")
	if err := financeWorker.StartupSyncCheck(ctx); err != nil {
		logger.Error("Failed startup sync check", "error", err)
		// Don't exit - continue with normal operation
	}

	go func() {
		handler := func(msg *amqp.ItemCompletedMessage) error {
			return financeWorker.HandleCompletedMessage(ctx, msg)
		}
		if err := amqpClient.ConsumeItemCompleted(ctx, handler); err != nil {
			if err != context.Canceled {
				logger.Error("Message consumption failed", "error", err)
			}
			cancel()
		}
	}()

	// Upload announcements are informational for this worker; completed
	// items arrive on their own queue.
	go func() {
		handler := func(msg *amqp.JobUploadedMessage) error {
			logger.Info("Job uploaded", "job_id", msg.JobID, "item_count", msg.ItemCount)
			return nil
		}
		if err := amqpClient.ConsumeJobUploaded(ctx, handler); err != nil {
			if err != context.Canceled {
				logger.Error("Job message consumption failed", "error", err)
			}
		}
	}()

	// Periodic sweep for items whose message was lost or nacked.
	ticker := time.NewTicker(cfg.SyncInterval)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := financeWorker.ProcessPendingItems(ctx); err != nil {
					logger.Error("Periodic sync failed", "error", err)
				}
			}
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Give the worker time to finish current operations
	logger.Info("Shutting down worker...")
	cancel()

	select {
	case <-shutdownCtx.Done():
		logger.Warn("Shutdown timeout reached")
	case <-time.After(5 * time.Second):
		logger.Info("Worker shutdown complete")
	}
}
