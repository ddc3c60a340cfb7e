// Package counters holds the per-PE traffic counters Core B exposes to
// the CLI's observe subcommand. Every field is an atomic.Int64 so the
// four PE goroutines and the bus can bump them without a shared mutex.
package counters

import "sync/atomic"

const NumPEs = 4

// Counters is monotonically increasing traffic/miss/invalidation/
// transition counters, one slot per PE plus a few bus-wide totals.
type Counters struct {
	Hits          [NumPEs]atomic.Int64
	Misses        [NumPEs]atomic.Int64
	Invalidations [NumPEs]atomic.Int64
	Upgrades      [NumPEs]atomic.Int64

	BusTransactions       atomic.Int64
	CacheToCacheTransfers atomic.Int64
	DRAMFetches           atomic.Int64
	WriteBacks            atomic.Int64
}

// New returns a zeroed Counters.
func New() *Counters { return &Counters{} }

// Reset zeroes every counter, for the CLI's "reset scenario" affordance.
func (c *Counters) Reset() { *c = Counters{} }

// Snapshot is a read-only copy of the counter values, for the observe
// package's table rendering (tablewriter needs plain values, not atomics).
type Snapshot struct {
	Hits          [NumPEs]int64
	Misses        [NumPEs]int64
	Invalidations [NumPEs]int64
	Upgrades      [NumPEs]int64

	BusTransactions       int64
	CacheToCacheTransfers int64
	DRAMFetches           int64
	WriteBacks            int64
}

func (c *Counters) Snapshot() Snapshot {
	var s Snapshot
	for i := 0; i < NumPEs; i++ {
		s.Hits[i] = c.Hits[i].Load()
		s.Misses[i] = c.Misses[i].Load()
		s.Invalidations[i] = c.Invalidations[i].Load()
		s.Upgrades[i] = c.Upgrades[i].Load()
	}
	s.BusTransactions = c.BusTransactions.Load()
	s.CacheToCacheTransfers = c.CacheToCacheTransfers.Load()
	s.DRAMFetches = c.DRAMFetches.Load()
	s.WriteBacks = c.WriteBacks.Load()
	return s
}
