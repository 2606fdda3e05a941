package cache

import "fmt"

// Stats contains ShardedCache statistics.
type Stats struct {
	// Len is the current number of entries.
	Len int

	// Capacity is the maximum number of entries across all shards.
	Capacity int

	// Hits and Misses count lookups.
	Hits   uint64
	Misses uint64

	// HitRate is Hits / (Hits + Misses), or 0 before the first lookup.
	HitRate float64

	// Evictions counts entries dropped for capacity.
	Evictions uint64
}

// LedgerStats contains Manager statistics.
type LedgerStats struct {
	// Entries is the number of entries in the ledger.
	Entries int

	// TotalBytes is the summed size of all ledger entries.
	TotalBytes int64

	// BudgetBytes is the configured budget.
	BudgetBytes int64

	// Records counts Record calls since creation.
	Records uint64

	// Evictions counts entries removed for budget.
	Evictions uint64
}

// String returns a human-readable summary.
func (s LedgerStats) String() string {
	return fmt.Sprintf("Ledger[%d entries, %d/%d bytes, %d records, %d evictions]",
		s.Entries, s.TotalBytes, s.BudgetBytes, s.Records, s.Evictions)
}
