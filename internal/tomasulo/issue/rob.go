package issue

import "github.com/archsim/simcore/internal/tomasulo/signalbus"

// RobSize is the 32-entry circular reorder buffer (spec §3).
const RobSize = 32

// RobEntry mirrors spec §3's ROB entry field list.
type RobEntry struct {
	Busy       bool
	Ready      bool
	Class      uint8 // AllocClass, kept untyped here to avoid an import cycle
	DestReg    uint8
	Value      uint64
	Exception  uint8
	PC         uint64
	Opcode     uint8
	SourceStn  uint8 // signalbus.StationID, for commit-time Free signalling
	FlagsValid bool
	Flags      uint8
	ModifiesFlags bool

	// Branch fields.
	Predicted  bool
	Mispredict bool
	Target     uint64

	// Store fields.
	StoreAddr  uint64
	StoreData  uint64
	StoreReady bool

	// Timestamps for PipelineTracker; not consulted by any functional logic.
	IssueCycle   uint64
	ExecuteCycle uint64
}

// Rob is the 32-entry circular reorder buffer (spec §4.D).
type Rob struct {
	entries [RobSize]RobEntry
	head    int
	tail    int
	count   int

	// Evaluate-phase allocate request, set by the control unit.
	AllocRequest bool
	AllocEntry   RobEntry

	// ClockEdge-phase commit-pop signal, set by the commit unit.
	CommitPop bool
}

func NewRob() *Rob { return &Rob{} }

// Full reports whether the ROB cannot accept a new allocation this cycle.
func (r *Rob) Full() bool { return r.count == RobSize }

// Empty reports whether there is nothing to commit.
func (r *Rob) Empty() bool { return r.count == 0 }

// TailTag returns the index a new allocation would receive.
func (r *Rob) TailTag() uint8 { return uint8(r.tail) }

// HeadTag returns the index currently at the head (next to commit).
func (r *Rob) HeadTag() uint8 { return uint8(r.head) }

// Entry returns a copy of the entry at the given tag, for observers.
func (r *Rob) Entry(tag uint8) RobEntry { return r.entries[tag] }

// Forward is the middle tier of the three-tier operand resolution
// sequence (spec §4.E step 2): given a pending producer tag, report
// whether that entry already holds a value (computed but not yet
// committed). Called directly by the control unit while building a new
// reservation-station allocation, and by FlagsUnit for its own consumers
// — not bus-mediated, since several lookups (Rn's tag, Rm's tag, the
// flags tag) can happen in the same cycle and the flat record has no
// multi-ported forwarding port.
func (r *Rob) Forward(tag uint8) (value uint64, ready bool) {
	e := &r.entries[tag]
	if e.Busy && e.Ready {
		return e.Value, true
	}
	return 0, false
}

// ForwardFlags is Forward's flags-result analogue.
func (r *Rob) ForwardFlags(tag uint8) (value uint8, ready bool) {
	e := &r.entries[tag]
	if e.Busy && e.FlagsValid {
		return e.Flags, true
	}
	return 0, false
}

// Evaluate drives the head-exposure read port (spec §4.D).
func (r *Rob) Evaluate(b *signalbus.Bus) {
	b.ROBHeadBusy = r.entries[r.head].Busy
	b.ROBHeadReady = r.entries[r.head].Ready
	b.ROBHeadTag = uint8(r.head)
}

// ClockEdge applies, in order: allocate at tail, CDB snoop (both buses,
// may mark multiple entries ready the same cycle), branch-result snoop,
// store-complete snoop, commit-pop (advance head), flush (clear all).
func (r *Rob) ClockEdge(b *signalbus.Bus) {
	if r.AllocRequest && !r.Full() {
		r.entries[r.tail] = r.AllocEntry
		r.entries[r.tail].Busy = true
		r.entries[r.tail].IssueCycle = b.Cycle
		r.tail = (r.tail + 1) % RobSize
		r.count++
	}

	snoop := func(v signalbus.CDBValue) {
		if !v.Valid {
			return
		}
		e := &r.entries[v.Tag]
		if e.Busy {
			if !e.Ready {
				e.ExecuteCycle = b.Cycle
			}
			e.Ready = true
			e.Value = v.Value
			e.Exception = v.Exception
			if v.FlagsValid {
				e.FlagsValid = true
				e.Flags = v.Flags
			}
		}
	}
	snoop(b.CDBA)
	snoop(b.CDBB)

	if b.Branch.Valid {
		e := &r.entries[b.Branch.Tag]
		if e.Busy {
			if !e.Ready {
				e.ExecuteCycle = b.Cycle
			}
			e.Ready = true
			e.Mispredict = b.Branch.Mispredict
			e.Target = b.Branch.Target
		}
	}

	for _, sc := range b.StoreComplete {
		if !sc.Valid {
			continue
		}
		e := &r.entries[sc.Tag]
		if e.Busy {
			if !e.Ready {
				e.ExecuteCycle = b.Cycle
			}
			e.StoreAddr = sc.Addr
			e.StoreData = sc.Data
			e.StoreReady = true
			e.Ready = true
		}
	}

	if r.CommitPop && r.count > 0 {
		r.entries[r.head] = RobEntry{}
		r.head = (r.head + 1) % RobSize
		r.count--
	}

	if b.Flush {
		r.entries = [RobSize]RobEntry{}
		r.head, r.tail, r.count = 0, 0, 0
	}

	r.AllocRequest = false
	r.CommitPop = false
}

func (r *Rob) Reset() {
	r.entries = [RobSize]RobEntry{}
	r.head, r.tail, r.count = 0, 0, 0
}
