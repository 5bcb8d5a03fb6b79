package finance

import "context"

// Entry is one completed line item as it appears in the finance ledger.
type Entry struct {
	ItemID      int64
	JobID       int64
	OrderNo     string
	Address     string
	Region      string
	Code        string
	Description string
	TotalPence  int64
}

// Recorder appends completed line items to the finance ledger. The Google
// Sheets client is the production implementation; the memory recorder backs
// local development and tests.
type Recorder interface {
	AppendCompletedItem(ctx context.Context, e Entry) error
}
