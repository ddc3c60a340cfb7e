// Package bus implements the shared bus of Core B's four-processor
// MESI system: round-robin arbitration, snoop broadcast, cache-to-cache
// transfer, and DRAM-backed fill. Every agent (an l1.Controller) reaches
// the bus through this package's exported types, never through a shared
// mutable record the way Core A's signalbus does — Core B is genuinely
// concurrent, so the bus is the one lock a requester actually blocks on
// (spec's "1-lock-per-agent" rule: the bus serializes itself, each L1
// serializes its own cache state, and nothing else is shared mutable
// state).
package bus

import (
	"fmt"
	"sync"

	"github.com/archsim/simcore/internal/mesi/counters"
)

// Mesi is one of the four MESI cache-line states.
type Mesi uint8

const (
	I Mesi = iota
	S
	E
	M
)

func (m Mesi) String() string {
	switch m {
	case I:
		return "I"
	case S:
		return "S"
	case E:
		return "E"
	case M:
		return "M"
	}
	return "?"
}

// Cmd is a bus transaction kind, named after the protocol's own command
// set (BusRd, BusRdX, BusUpgr, WriteBack).
type Cmd uint8

const (
	BusRd Cmd = iota
	BusRdX
	BusUpgr
	WriteBack
)

func (c Cmd) String() string {
	switch c {
	case BusRd:
		return "BusRd"
	case BusRdX:
		return "BusRdX"
	case BusUpgr:
		return "BusUpgr"
	case WriteBack:
		return "WriteBack"
	}
	return "?"
}

// LineBytes is the cache line / DRAM transfer granularity: eight
// 4-byte words, matching the four-byte-addressable DRAM handshake.
const LineBytes = 32

// DRAMBackend is what the bus needs from main memory: line-granular
// fetch and write-back. dram.DRAM implements this.
type DRAMBackend interface {
	Fetch(addr uint64) [LineBytes]byte
	WriteBack(addr uint64, data [LineBytes]byte)
}

// SnoopResult is what an Agent reports in response to another agent's
// bus command.
type SnoopResult struct {
	Hit            bool
	Supplied       bool // this agent is forwarding the line's data (cache-to-cache transfer)
	Data           [LineBytes]byte
	DirtyWriteback bool // the line was Modified; its data must also land in DRAM
}

// Agent is the snoop-side interface every L1 controller implements.
type Agent interface {
	Snoop(addr uint64, cmd Cmd, requester int) SnoopResult
}

// Transaction is one completed bus operation, as recorded in a Logger.
type Transaction struct {
	Requester int
	Addr      uint64
	Cmd       Cmd
	Shared    bool
	Supplied  bool
}

func (t Transaction) String() string {
	return fmt.Sprintf("PE%d %s addr=0x%x shared=%v supplied=%v", t.Requester, t.Cmd, t.Addr, t.Shared, t.Supplied)
}

// Logger receives a record of every completed transaction. mesi.TransactionLog
// implements this; tests may supply their own to assert on bus traffic.
type Logger interface {
	Append(tx Transaction)
}

type nopLogger struct{}

func (nopLogger) Append(Transaction) {}

// Bus is the single shared bus. Agents attach by PE id (0..3); NumAgents
// must match counters.NumPEs.
const NumAgents = 4

type Bus struct {
	mu      sync.Mutex
	cond    *sync.Cond
	busy    bool
	waiting [NumAgents]bool
	nextTurn int

	agents [NumAgents]Agent
	dram   DRAMBackend
	log    Logger
	cs     *counters.Counters
}

// New builds a bus backed by dram, bumping the bus-wide traffic counters in
// cs as transactions complete. cs must not be nil. log may be nil (no
// transaction history kept).
func New(dram DRAMBackend, cs *counters.Counters, log Logger) *Bus {
	b := &Bus{dram: dram, cs: cs, log: log}
	if b.log == nil {
		b.log = nopLogger{}
	}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Attach registers the L1 controller that will answer snoops for PE id.
func (b *Bus) Attach(id int, a Agent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.agents[id] = a
}

func (b *Bus) isMyTurnLocked(id int) bool {
	for i := 0; i < NumAgents; i++ {
		cand := (b.nextTurn + i) % NumAgents
		if b.waiting[cand] {
			return cand == id
		}
	}
	return false
}

func (b *Bus) acquire(id int) {
	b.mu.Lock()
	b.waiting[id] = true
	for b.busy || !b.isMyTurnLocked(id) {
		b.cond.Wait()
	}
	b.waiting[id] = false
	b.busy = true
	b.mu.Unlock()
}

func (b *Bus) release(id int) {
	b.mu.Lock()
	b.busy = false
	b.nextTurn = (id + 1) % NumAgents
	b.cond.Broadcast()
	b.mu.Unlock()
}

// Transact performs a BusRd / BusRdX / BusUpgr transaction on behalf of
// requester, snooping every other attached agent, forwarding a
// cache-to-cache transfer when one of them can supply the line, and
// falling back to DRAM otherwise. Before the bus is released to the next
// master, it calls commit with the resolved line data and whether any
// other cache held it, so the requester can install the fill into its own
// array while still holding the bus — matching spec §4.L point 6's "holds
// the transaction until the requester drops its request line, guaranteeing
// the requester's cache has committed the fill before the bus entertains
// another master". Releasing the bus before commit runs would let a second
// master snoop this requester while its line is still cleared/invalid,
// letting two caches end up Exclusive/Modified on the same address.
func (b *Bus) Transact(requester int, addr uint64, cmd Cmd, commit func(data [LineBytes]byte, sharedByOthers bool)) {
	b.acquire(requester)

	b.cs.BusTransactions.Add(1)

	var supplied, sharedByOthers bool
	var data [LineBytes]byte
	for i := 0; i < NumAgents; i++ {
		if i == requester {
			continue
		}
		a := b.agents[i]
		if a == nil {
			continue
		}
		res := a.Snoop(addr, cmd, requester)
		if !res.Hit {
			continue
		}
		sharedByOthers = true
		if res.Supplied && !supplied {
			data = res.Data
			supplied = true
			b.cs.CacheToCacheTransfers.Add(1)
		}
		if res.DirtyWriteback {
			b.dram.WriteBack(addr, res.Data)
			b.cs.WriteBacks.Add(1)
		}
	}

	if cmd != BusUpgr && !supplied {
		data = b.dram.Fetch(addr)
		b.cs.DRAMFetches.Add(1)
	}

	commit(data, sharedByOthers)

	b.log.Append(Transaction{Requester: requester, Addr: addr, Cmd: cmd, Shared: sharedByOthers, Supplied: supplied})
	b.release(requester)
}

// WriteBack sends an evicted dirty line to DRAM. It still goes through
// the bus's arbitration since DRAM is a single shared resource.
func (b *Bus) WriteBack(requester int, addr uint64, data [LineBytes]byte) {
	b.acquire(requester)
	defer b.release(requester)

	b.dram.WriteBack(addr, data)
	b.cs.WriteBacks.Add(1)
	b.cs.BusTransactions.Add(1)
	b.log.Append(Transaction{Requester: requester, Addr: addr, Cmd: WriteBack})
}
