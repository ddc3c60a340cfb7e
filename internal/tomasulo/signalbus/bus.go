// Package signalbus holds the flat signal record shared by every Tomasulo
// component (spec §4.A) and the cycle coordinator that drives it.
package signalbus

// StationID names one of the dispatch-stage wait stations, used to index
// signals keyed by station (spec §9's "single concrete type parameterized
// by a small enum" note).
type StationID uint8

const (
	RS_IntALU0 StationID = iota
	RS_IntALU1
	RS_FPALU
	RS_IntMUL
	RS_FPMUL
	RS_Branch
	SB0
	SB1
	LB0
	LB1
	LB2
	NumStations
)

func (s StationID) IsStoreBuffer() bool { return s == SB0 || s == SB1 }
func (s StationID) IsLoadBuffer() bool  { return s == LB0 || s == LB1 || s == LB2 }
func (s StationID) IsReservation() bool { return s < SB0 }

// AGUSourceID is the carried tag the AGU arbiter uses to route a result
// back to its requester (spec §4.F): 0=SB0 .. 4=LB2.
type AGUSourceID uint8

const (
	AGUSrcSB0 AGUSourceID = iota
	AGUSrcSB1
	AGUSrcLB0
	AGUSrcLB1
	AGUSrcLB2
)

// CDBValue is what a functional unit or load buffer broadcasts on a common
// data bus (spec §4.H).
type CDBValue struct {
	Valid      bool
	Tag        uint8 // ROB index
	Value      uint64
	Exception  uint8
	FlagsValid bool
	Flags      uint8 // N,Z,C,V packed into low 4 bits
}

// StoreCompleteValue is the signal a store buffer raises once its address
// and data are both ready (spec §4.E). It is not one-shot: the buffer
// raises it again on every cycle until commit frees it.
type StoreCompleteValue struct {
	Valid bool
	Tag   uint8
	Addr  uint64
	Data  uint64
}

// BranchResult is what the branch executor writes directly to the ROB
// snoop bus, bypassing the CDB (spec §4.G).
type BranchResult struct {
	Valid      bool
	Tag        uint8
	Taken      bool
	Target     uint64
	Mispredict bool
}

// Bus is the flat signal record (spec §4.A): zeroed at the start of every
// cycle, written only by each signal's designated producer, read by any
// number of consumers. Grouped by stage for readability; still a single
// value passed by pointer into every component's Evaluate/ClockEdge call.
type Bus struct {
	// Cycle is the coordinator's current cycle number, stamped after Reset
	// so components that timestamp events (PipelineTracker's feed) don't
	// need their own cycle counter threaded in separately.
	Cycle uint64

	// --- Fetch ---
	PC         uint64
	PCNext     uint64
	FetchWord  uint64
	FetchValid bool
	StallIF    bool
	Flush      bool
	RedirectPC uint64
	RedirectOK bool

	// --- Decode / issue control ---
	DecodeValid    bool
	Decode         DecodedInstr
	AllocStation   StationID
	AllocStationOK bool
	ROBAllocOK     bool
	ROBTailTag     uint8
	TagWriteEnable bool
	TagWriteReg    uint8
	FlagsTagWrite  bool

	// --- Register file read ports: address in, value+tag out ---
	RegReadAddrRn, RegReadAddrRm, RegReadAddrRdStore uint8
	RegReadRn, RegReadRm, RegReadRdStore             RegPort

	// --- Flags unit ---
	FlagsArch      uint8
	FlagsQiValid   bool
	FlagsQi        uint8
	FlagsForward   bool
	FlagsForwardV  uint8

	// --- ROB ---
	ROBHeadBusy  bool
	ROBHeadReady bool
	ROBHeadTag   uint8

	// --- Reservation stations / buffers, indexed by StationID ---
	StationBusy    [NumStations]bool
	StationRequest [NumStations]bool
	StationGrantFU [NumStations]bool // granted onto a functional-unit arbiter
	StationFree    [NumStations]bool // commit asserts this to recycle the station

	// StationOperands is the bus-resident snapshot of a ready station's
	// operands, published by the station itself each Evaluate so that
	// execution units read only from the bus (Design Note §9: "Bus access
	// is factored as indexed reads/writes into the signal record keyed
	// on that enum").
	StationOperands [NumStations]StationOperandSnapshot

	// AGU requests, indexed by AGUSourceID
	AGURequest [5]bool
	AGUDone    [5]bool
	AGUAddr    [5]uint64
	AGUFault   [5]bool

	// --- Common data buses ---
	// Requester order, fixed priority (spec §4.H): IntALU, FPALU, IntMUL,
	// FPMUL, LB0, LB1, LB2.
	CDBRequest [7]bool
	CDBStall   [7]bool
	CDBValue   [7]CDBValue // each requester's candidate broadcast, valid iff CDBRequest[i]
	CDBA       CDBValue
	CDBB       CDBValue

	// StoreComplete is indexed by StationID (only SB0/SB1 ever populate
	// it) rather than a single shared field: both store buffers can
	// complete the same cycle, and a shared scalar would let the later
	// one in Evaluate order silently clobber the earlier one's signal.
	StoreComplete [NumStations]StoreCompleteValue
	Branch        BranchResult

	// --- Memory ---
	MemRequest   bool
	MemRequester StationID
	MemAddr      uint64
	MemIsWrite   bool
	MemIsByte    bool
	MemWriteData uint64
	MemDone      bool
	MemReadData  uint64
	MemFault     bool

	// --- Commit ---
	CommitValid     bool
	CommitTag       uint8
	CommitException uint8
	CommitPC        uint64
	Halted          bool
}

// DecodedInstr is what the decoder publishes each cycle for the control
// unit to read (spec §4.C); AllocClass is carried as a plain uint8 to
// avoid signalbus importing the opcode-table package.
type DecodedInstr struct {
	Op              uint8
	Rd, Rn, Rm      uint8
	ImmExt          uint64
	Legal           bool
	Class           uint8
	UseImm          bool
	WritesRd        bool
	ModifiesFlags   bool
	NeedsFlags      bool
	IsCMPOnly       bool
	IsUnconditional bool
	IsUnary         bool
	IsFP            bool
	NoExecute       bool
}

// StationOperandSnapshot is what a ready reservation station publishes for
// its candidate execution unit to read.
type StationOperandSnapshot struct {
	Opcode     uint8
	RobTag     uint8
	Vj, Vk     uint64
	FlagsIn    uint8
	NeedsFlags bool
}

// RegPort is a combinational register-file read result (spec §4.D).
type RegPort struct {
	Value    uint64
	Qi       uint8
	QiValid  bool
}

// Reset zeroes the entire bus; called once per cycle before Evaluate runs
// (spec §4.A: "Before a cycle begins the entire record is zero-initialized").
func (b *Bus) Reset() {
	*b = Bus{}
}

// Component is the single polymorphic interface every microarchitectural
// block implements (spec §9: "a single polymorphic interface with three
// methods suffices"). Evaluate is combinational and runs exactly once per
// cycle, in whichever Coordinator pass lists the component; ClockEdge latches sequential state exactly
// once per cycle; Reset returns the component to its power-on state.
type Component interface {
	Evaluate(b *Bus)
	ClockEdge(b *Bus)
	Reset()
}

// Coordinator drives one cycle across an ordered component list (spec
// §4.A, §9): clear the bus, run Evaluate in two passes (pre-pass for
// components whose outputs depend only on latched state, then a
// propagation pass for combinational fan-out), then run ClockEdge exactly
// once per component, in order.
type Coordinator struct {
	PrePass      []Component // producers whose outputs depend only on latched state
	Propagation  []Component // combinational consumers of the pre-pass outputs
	Bus          Bus
	Cycle        uint64
}

// NewCoordinator builds a coordinator over the given ordered component
// lists. Order within each pass must be deterministic; the caller is
// responsible for listing producers before their consumers.
func NewCoordinator(prePass, propagation []Component) *Coordinator {
	return &Coordinator{PrePass: prePass, Propagation: propagation}
}

// Step advances the simulation by exactly one cycle.
func (c *Coordinator) Step() {
	c.Bus.Reset()
	c.Bus.Cycle = c.Cycle
	for _, comp := range c.PrePass {
		comp.Evaluate(&c.Bus)
	}
	for _, comp := range c.Propagation {
		comp.Evaluate(&c.Bus)
	}
	for _, comp := range c.PrePass {
		comp.ClockEdge(&c.Bus)
	}
	for _, comp := range c.Propagation {
		comp.ClockEdge(&c.Bus)
	}
	c.Cycle++
}

// StepN advances exactly n cycles. It does not check Bus.Halted and does
// not stop early on a halt; a caller that has to stop there steps one
// cycle at a time and checks Bus.Halted itself.
func (c *Coordinator) StepN(n uint64) {
	for i := uint64(0); i < n; i++ {
		c.Step()
	}
}

// Reset restores every component and the bus to power-on state.
func (c *Coordinator) Reset() {
	c.Bus = Bus{}
	c.Cycle = 0
	for _, comp := range c.PrePass {
		comp.Reset()
	}
	for _, comp := range c.Propagation {
		comp.Reset()
	}
}
