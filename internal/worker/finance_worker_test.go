package worker

import (
	"context"
	"path/filepath"
	"testing"

	"worksched/internal/amqp"
	"worksched/internal/core"
	"worksched/internal/finance/memory"
	"worksched/internal/storage"
)

func setupWorker(t *testing.T) (*FinanceWorker, *storage.SQLiteRepository, *memory.Recorder) {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "worksched.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	ledger := memory.New()
	return NewFinanceWorker(repo, ledger, 10), repo, ledger
}

func completedItem(t *testing.T, repo *storage.SQLiteRepository) int64 {
	t.Helper()
	ctx := context.Background()

	job, err := repo.CreateJob(ctx, core.Property{
		OrderNo:      "ORD-55",
		AddressLine1: "3 Mill Lane",
		Region:       "Gloucester",
	})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	drafts := []core.LineItemDraft{
		{Code: "GAS01", Description: "service boiler", Category: "Gas",
			Status: core.StatusStarted, Total: core.Money{Pence: 8500}},
	}
	if err := repo.BulkInsertLineItems(ctx, job.ID, drafts); err != nil {
		t.Fatalf("BulkInsertLineItems: %v", err)
	}
	items, err := repo.ListLineItems(ctx, job.ID)
	if err != nil {
		t.Fatalf("ListLineItems: %v", err)
	}

	status := core.StatusCompleted
	if _, err := repo.UpdateLineItem(ctx, items[0].ID, core.LineItemPatch{Status: &status}); err != nil {
		t.Fatalf("UpdateLineItem: %v", err)
	}
	return items[0].ID
}

func TestHandleCompletedMessage(t *testing.T) {
	worker, repo, ledger := setupWorker(t)
	ctx := context.Background()
	itemID := completedItem(t, repo)

	if err := worker.HandleCompletedMessage(ctx, amqp.NewItemCompletedMessage(itemID)); err != nil {
		t.Fatalf("HandleCompletedMessage: %v", err)
	}

	entries := ledger.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 ledger entry, got %d", len(entries))
	}
	if entries[0].OrderNo != "ORD-55" || entries[0].TotalPence != 8500 {
		t.Fatalf("unexpected entry: %+v", entries[0])
	}

	// The item is now synced and leaves the pending queue.
	pending, err := repo.PendingFinanceItems(ctx, 10)
	if err != nil {
		t.Fatalf("PendingFinanceItems: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected empty pending queue, got %+v", pending)
	}
}

func TestHandleCompletedMessageUnknownItem(t *testing.T) {
	worker, _, _ := setupWorker(t)

	if err := worker.HandleCompletedMessage(context.Background(), amqp.NewItemCompletedMessage(9999)); err == nil {
		t.Fatal("expected error for unknown item")
	}
}

func TestProcessPendingItemsSweep(t *testing.T) {
	worker, repo, ledger := setupWorker(t)
	ctx := context.Background()
	completedItem(t, repo)

	if err := worker.ProcessPendingItems(ctx); err != nil {
		t.Fatalf("ProcessPendingItems: %v", err)
	}
	if len(ledger.Entries()) != 1 {
		t.Fatalf("expected 1 ledger entry, got %d", len(ledger.Entries()))
	}

	// A second sweep finds nothing new.
	if err := worker.ProcessPendingItems(ctx); err != nil {
		t.Fatalf("ProcessPendingItems: %v", err)
	}
	if len(ledger.Entries()) != 1 {
		t.Fatalf("sweep should not duplicate entries, got %d", len(ledger.Entries()))
	}
}

func TestStartupSyncCheck(t *testing.T) {
	worker, repo, ledger := setupWorker(t)
	ctx := context.Background()
	completedItem(t, repo)
	completedItem(t, repo)

	if err := worker.StartupSyncCheck(ctx); err != nil {
		t.Fatalf("StartupSyncCheck: %v", err)
	}
	if len(ledger.Entries()) != 2 {
		t.Fatalf("expected 2 ledger entries, got %d", len(ledger.Entries()))
	}
}
