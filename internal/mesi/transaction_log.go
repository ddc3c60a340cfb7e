// Package mesi is the root of Core B, the four-processor MESI
// shared-cache simulator. The subpackages (bus, l1, dram, pe, system,
// counters) hold the protocol implementation; this file holds the one
// type that sits above all of them: a running record of bus traffic for
// a debug trace, grounded on the original simulator's transaction-log
// debug overlay.
package mesi

import (
	"sync"

	"github.com/archsim/simcore/internal/mesi/bus"
)

const transactionLogDepth = 256

// TransactionLog is a fixed-depth ring buffer of recent bus
// transactions. It implements bus.Logger, so a bus.Bus can be told to
// feed it directly.
type TransactionLog struct {
	mu      sync.Mutex
	entries [transactionLogDepth]bus.Transaction
	next    int
	filled  bool
}

// NewTransactionLog returns an empty log.
func NewTransactionLog() *TransactionLog { return &TransactionLog{} }

// Append records one transaction, overwriting the oldest once full.
func (l *TransactionLog) Append(tx bus.Transaction) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[l.next] = tx
	l.next = (l.next + 1) % transactionLogDepth
	if l.next == 0 {
		l.filled = true
	}
}

// Recent returns the logged transactions in oldest-to-newest order.
func (l *TransactionLog) Recent() []bus.Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.filled {
		out := make([]bus.Transaction, l.next)
		copy(out, l.entries[:l.next])
		return out
	}
	out := make([]bus.Transaction, transactionLogDepth)
	for i := 0; i < transactionLogDepth; i++ {
		out[i] = l.entries[(l.next+i)%transactionLogDepth]
	}
	return out
}

// Reset empties the log.
func (l *TransactionLog) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = [transactionLogDepth]bus.Transaction{}
	l.next = 0
	l.filled = false
}
