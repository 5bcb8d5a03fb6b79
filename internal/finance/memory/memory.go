package memory

import (
	"context"
	"sync"

	"worksched/internal/finance"
)

// Recorder keeps ledger entries in memory. Used when no spreadsheet is
// configured, and by tests.
type Recorder struct {
	mu      sync.Mutex
	entries []finance.Entry
}

func New() *Recorder {
	return &Recorder{}
}

func (r *Recorder) AppendCompletedItem(_ context.Context, e finance.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	return nil
}

// Entries returns a copy of everything recorded so far.
func (r *Recorder) Entries() []finance.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]finance.Entry(nil), r.entries...)
}
