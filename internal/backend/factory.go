package backend

import (
	"context"
	"fmt"
	"log/slog"

	"worksched/internal/finance"
	gsheet "worksched/internal/finance/google"
	"worksched/internal/finance/memory"
)

// NewLedger builds the configured finance ledger recorder. The memory
// recorder lets the worker run without Google credentials.
func NewLedger(ctx context.Context, ledgerType LedgerType, logger *slog.Logger) (finance.Recorder, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if !ledgerType.IsValid() {
		return nil, fmt.Errorf("invalid ledger type: %s", ledgerType)
	}

	switch ledgerType {
	case SheetsLedger:
		cli, err := gsheet.NewFromEnv(ctx)
		if err != nil {
			return nil, fmt.Errorf("initialize Google Sheets ledger: %w", err)
		}
		logger.Info("Initialized Google Sheets ledger")
		return cli, nil
	case MemoryLedger:
		logger.Info("Initialized in-memory ledger")
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unsupported ledger type: %s", ledgerType)
	}
}
