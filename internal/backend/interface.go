package backend

// LedgerType selects the finance ledger implementation.
type LedgerType string

const (
	SheetsLedger LedgerType = "sheets"
	MemoryLedger LedgerType = "memory"
)

// String implements fmt.Stringer
func (lt LedgerType) String() string {
	return string(lt)
}

// IsValid returns true if the ledger type is known.
func (lt LedgerType) IsValid() bool {
	switch lt {
	case SheetsLedger, MemoryLedger:
		return true
	default:
		return false
	}
}
