package worker

import (
	"context"
	"fmt"
	"log/slog"

	"worksched/internal/amqp"
	"worksched/internal/finance"
	"worksched/internal/storage"
)

// FinanceWorker copies completed line items from SQLite into the finance
// ledger. Completion messages drive the normal path; a periodic sweep over
// the finance_synced flag recovers anything a lost message left behind.
type FinanceWorker struct {
	storage   *storage.SQLiteRepository
	ledger    finance.Recorder
	batchSize int
}

func NewFinanceWorker(storage *storage.SQLiteRepository, ledger finance.Recorder, batchSize int) *FinanceWorker {
	return &FinanceWorker{
		storage:   storage,
		ledger:    ledger,
		batchSize: batchSize,
	}
}

// HandleCompletedMessage processes one completion message from AMQP.
func (w *FinanceWorker) HandleCompletedMessage(ctx context.Context, msg *amqp.ItemCompletedMessage) error {
	slog.InfoContext(ctx, "Processing completion message", "item_id", msg.ItemID)

	item, err := w.storage.FinanceItem(ctx, msg.ItemID)
	if err != nil {
		return fmt.Errorf("get finance item: %w", err)
	}

	if err := w.record(ctx, item); err != nil {
		return fmt.Errorf("record finance item: %w", err)
	}
	return nil
}

// ProcessPendingItems sweeps completed items that never made it to the
// ledger. Backup mechanism in case AMQP messages are lost.
func (w *FinanceWorker) ProcessPendingItems(ctx context.Context) error {
	pending, err := w.storage.PendingFinanceItems(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("get pending finance items: %w", err)
	}

	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending finance items", "count", len(pending))

	for _, item := range pending {
		if err := w.record(ctx, item); err != nil {
			slog.ErrorContext(ctx, "Failed to record pending item",
				"item_id", item.ItemID, "error", err)
			continue
		}
	}
	return nil
}

// StartupSyncCheck drains the pending queue with a larger batch before the
// consumer starts, recovering from worker downtime.
func (w *FinanceWorker) StartupSyncCheck(ctx context.Context) error {
	pending, err := w.storage.PendingFinanceItems(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("get pending finance items for startup check: %w", err)
	}

	if len(pending) == 0 {
		slog.InfoContext(ctx, "No pending finance items found on startup")
		return nil
	}

	slog.InfoContext(ctx, "Found pending finance items on startup, processing...",
		"count", len(pending))

	successCount := 0
	errorCount := 0
	for _, item := range pending {
		if err := w.record(ctx, item); err != nil {
			slog.ErrorContext(ctx, "Failed to record item during startup",
				"item_id", item.ItemID, "error", err)
			errorCount++
			continue
		}
		successCount++
	}

	slog.InfoContext(ctx, "Startup sync check complete",
		"synced", successCount,
		"errors", errorCount)
	return nil
}

func (w *FinanceWorker) record(ctx context.Context, item storage.FinanceItemRow) error {
	entry := finance.Entry{
		ItemID:      item.ItemID,
		JobID:       item.JobID,
		OrderNo:     item.OrderNo,
		Address:     item.Address,
		Region:      item.Region,
		Code:        item.Code,
		Description: item.Description,
		TotalPence:  item.TotalPence,
	}

	if err := w.ledger.AppendCompletedItem(ctx, entry); err != nil {
		if markErr := w.storage.MarkFinanceSyncError(ctx, item.ItemID); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark sync error",
				"item_id", item.ItemID, "error", markErr)
		}
		return err
	}

	if err := w.storage.MarkFinanceSynced(ctx, item.ItemID); err != nil {
		return fmt.Errorf("mark finance synced: %w", err)
	}

	slog.InfoContext(ctx, "Item recorded in finance ledger",
		"item_id", item.ItemID,
		"order_no", item.OrderNo)
	return nil
}
