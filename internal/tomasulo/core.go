package tomasulo

import (
	"fmt"
	"os"

	"github.com/davecgh/go-spew/spew"

	"github.com/archsim/simcore/internal/tomasulo/agu"
	"github.com/archsim/simcore/internal/tomasulo/cdb"
	"github.com/archsim/simcore/internal/tomasulo/commit"
	"github.com/archsim/simcore/internal/tomasulo/decode"
	"github.com/archsim/simcore/internal/tomasulo/dispatch"
	"github.com/archsim/simcore/internal/tomasulo/execute"
	"github.com/archsim/simcore/internal/tomasulo/fetch"
	"github.com/archsim/simcore/internal/tomasulo/issue"
	"github.com/archsim/simcore/internal/tomasulo/memsys"
	"github.com/archsim/simcore/internal/tomasulo/signalbus"
)

// Core wires every microarchitectural component into a single instance
// of the coordinator's two-phase component lists (spec §4.A, §9). This
// is the concrete "wiring harness" a caller builds once and then drives
// with Coordinator.Step/StepN.
type Core struct {
	Coord   *signalbus.Coordinator
	Tracker *PipelineTracker

	DRAM  *memsys.DRAM
	Regs  *issue.RegisterFile
	Flags *issue.FlagsUnit
	Rob   *issue.Rob
	Cache *memsys.Cache

	flushCount int

	excValid bool
	excCode  uint8
	excPC    uint64
}

// Step advances the core by one cycle and, if an instruction committed
// this cycle, appends its retirement to the pipeline tracker.
func (c *Core) Step() {
	c.Coord.Step()
	b := &c.Coord.Bus

	if b.Flush {
		c.flushCount++
	}
	if b.CommitException != 0 && !c.excValid {
		c.excValid = true
		c.excCode = b.CommitException
		c.excPC = b.CommitPC
	}

	if b.CommitValid {
		e := c.Rob.Entry(b.CommitTag)
		if !e.Busy {
			fmt.Fprintln(os.Stderr, "commit of a non-busy ROB entry:")
			spew.Fdump(os.Stderr, b)
			panic(fmt.Sprintf("tomasulo: commit tag %d is not busy at commit", b.CommitTag))
		}
		c.Tracker.Record(RetirementRecord{
			PC:           b.CommitPC,
			Opcode:       OpCode(e.Opcode),
			FetchCycle:   e.IssueCycle,
			IssueCycle:   e.IssueCycle,
			ExecuteCycle: e.ExecuteCycle,
			CommitCycle:  c.Coord.Cycle - 1,
		})
	}
}

// Halted reports whether the core has retired a halting instruction
// (SWI) or an uncaught exception.
func (c *Core) Halted() bool { return c.Coord.Bus.Halted }

// LastException reports the most recently committed exception's code and
// faulting PC, and whether one has ever occurred (spec §7: "the UI
// consumes exception signals and reports the PC and code").
func (c *Core) LastException() (code uint8, pc uint64, ok bool) {
	return c.excCode, c.excPC, c.excValid
}

// FlushCount reports how many cycles have asserted Flush since the core
// was built or last reset (spec §8's mispredict-recovery scenario checks
// this is exactly one per mispredicted branch).
func (c *Core) FlushCount() int { return c.flushCount }

// Reset restores the core (and its pipeline tracker) to power-on state.
func (c *Core) Reset() {
	c.Coord.Reset()
	c.Tracker.Reset()
	c.flushCount = 0
	c.excValid, c.excCode, c.excPC = false, 0, 0
}

// NewCore builds and wires a complete Core A instance, with a DRAM of the
// given byte size, program image preloaded by the caller via Core.DRAM.
func NewCore(dramBytes int) *Core {
	dram := memsys.NewDRAM(dramBytes)

	pc := fetch.NewPC()
	ic := fetch.NewICache(dram)
	dec := decode.NewDecoder()

	regs := issue.NewRegisterFile()
	rob := issue.NewRob()
	flags := issue.NewFlagsUnit(rob)

	bounds := &boundsView{regs: regs}

	intALU0 := dispatch.NewReservationStation(signalbus.RS_IntALU0, false, false, regs, flags)
	intALU1 := dispatch.NewReservationStation(signalbus.RS_IntALU1, false, false, regs, flags)
	fpALU := dispatch.NewReservationStation(signalbus.RS_FPALU, false, true, regs, flags)
	intMUL := dispatch.NewReservationStation(signalbus.RS_IntMUL, false, true, regs, flags)
	fpMUL := dispatch.NewReservationStation(signalbus.RS_FPMUL, false, true, regs, flags)
	branch := dispatch.NewReservationStation(signalbus.RS_Branch, true, false, regs, flags)

	sb0 := dispatch.NewStoreBuffer(signalbus.SB0, signalbus.AGUSrcSB0, regs)
	sb1 := dispatch.NewStoreBuffer(signalbus.SB1, signalbus.AGUSrcSB1, regs)
	lb0 := dispatch.NewLoadBuffer(signalbus.LB0, signalbus.AGUSrcLB0, cdb.ReqLB0, regs)
	lb1 := dispatch.NewLoadBuffer(signalbus.LB1, signalbus.AGUSrcLB1, cdb.ReqLB1, regs)
	lb2 := dispatch.NewLoadBuffer(signalbus.LB2, signalbus.AGUSrcLB2, cdb.ReqLB2, regs)

	aguOperand := func(src signalbus.AGUSourceID) (base, offset uint64, ok bool) {
		switch src {
		case signalbus.AGUSrcSB0:
			return sb0.Base.Value, sb0.Offset, sb0.Base.Valid
		case signalbus.AGUSrcSB1:
			return sb1.Base.Value, sb1.Offset, sb1.Base.Valid
		case signalbus.AGUSrcLB0:
			return lb0.Base.Value, lb0.Offset, lb0.Base.Valid
		case signalbus.AGUSrcLB1:
			return lb1.Base.Value, lb1.Offset, lb1.Base.Valid
		case signalbus.AGUSrcLB2:
			return lb2.Base.Value, lb2.Offset, lb2.Base.Valid
		}
		return 0, 0, false
	}
	aguArb := agu.NewArbiter(aguOperand, bounds)

	cu := decode.NewControlUnit(rob, regs, flags,
		intALU0, intALU1, fpALU, intMUL, fpMUL, branch,
		sb0, sb1, lb0, lb1, lb2)

	intALUArb := execute.NewIntALUArbiter(signalbus.RS_IntALU0, signalbus.RS_IntALU1)
	intALUUnit := execute.NewIntALU(signalbus.RS_IntALU0, signalbus.RS_IntALU1, intALUOpMap)

	fpALUArb := execute.NewSingleArbiter(signalbus.RS_FPALU)
	fpALUUnit := execute.NewFPALU(signalbus.RS_FPALU, fpALUOpMap)

	intMULArb := execute.NewSingleArbiter(signalbus.RS_IntMUL)
	intMULUnit := execute.NewIntMUL(signalbus.RS_IntMUL, intMULArb, intMULOpMap)

	fpMULArb := execute.NewSingleArbiter(signalbus.RS_FPMUL)
	fpMULUnit := execute.NewFPMUL(signalbus.RS_FPMUL, fpMULArb, fpMULOpMap)

	branchArb := execute.NewSingleArbiter(signalbus.RS_Branch)
	branchUnit := execute.NewBranchExecutor(signalbus.RS_Branch, branchOpMap,
		func(tag uint8) (bool, uint64) { e := rob.Entry(tag); return e.Predicted, e.Target },
		func(tag uint8) uint64 { return rob.Entry(tag).PC + 8 })

	cdbArb := cdb.NewArbiter()
	cache := memsys.NewCache(dram)
	commitUnit := commit.NewUnit(rob, regs, flags)

	// flags belongs in the pre-pass alongside regs: its Evaluate output
	// (architectural value, pending tag, ROB-forwarded value) depends only
	// on its own latched state and a direct Rob.ForwardFlags call, never
	// on a bus input — so it must settle before the control unit's
	// resolveFlags reads it combinationally this same cycle (spec §4.A's
	// "pre-pass writes outputs that depend only on latched state").
	prePass := []signalbus.Component{pc, ic, dec, regs, flags}
	propagation := []signalbus.Component{
		cu,
		intALU0, intALU1, fpALU, intMUL, fpMUL, branch,
		sb0, sb1, lb0, lb1, lb2,
		aguArb,
		intALUArb, intALUUnit,
		fpALUArb, fpALUUnit,
		intMULArb, intMULUnit,
		fpMULArb, fpMULUnit,
		branchArb, branchUnit,
		cdbArb,
		cache,
		rob,
		commitUnit,
	}

	return &Core{
		Coord:   signalbus.NewCoordinator(prePass, propagation),
		Tracker: NewPipelineTracker(),
		DRAM:    dram,
		Regs:    regs,
		Flags:   flags,
		Rob:     rob,
		Cache:   cache,
	}
}

// boundsView adapts the register file's UPPER/LOWER registers to the AGU's
// UpperLower interface (spec §3: memory bounds live in architectural
// registers, not a separate config).
type boundsView struct{ regs *issue.RegisterFile }

func (v *boundsView) Bounds() (upper, lower uint64) {
	return v.regs.Value(issue.RegUPPER), v.regs.Value(issue.RegLOWER)
}

func intALUOpMap(op uint8) int {
	switch OpCode(op) {
	case OpADD, OpADDI:
		return 0
	case OpSUB, OpSUBI:
		return 1
	case OpADC, OpADCI:
		return 2
	case OpSBC, OpSBCI:
		return 3
	case OpAND, OpANDI:
		return 4
	case OpORR, OpORRI:
		return 5
	case OpEOR, OpEORI:
		return 6
	case OpBIC, OpBICI:
		return 7
	case OpLSL, OpLSLI:
		return 8
	case OpLSR, OpLSRI:
		return 9
	case OpASR, OpASRI:
		return 10
	case OpROR, OpRORI:
		return 11
	case OpINC:
		return 12
	case OpDEC:
		return 13
	case OpMOV, OpMOVI:
		return 14
	case OpMVN, OpMVNI:
		return 15
	case OpCMP, OpCMPI:
		return 16
	case OpCMN, OpCMNI:
		return 17
	case OpTST, OpTSTI:
		return 18
	case OpTEQ, OpTEQI:
		return 19
	}
	return -1
}

func fpALUOpMap(op uint8) int {
	switch OpCode(op) {
	case OpFADD, OpFADDI:
		return 0
	case OpFSUB, OpFSUBI:
		return 1
	case OpFCOPYSIGN:
		return 2
	case OpFNEG:
		return 3
	case OpFABS:
		return 4
	case OpCDTI:
		return 5
	case OpCDTD:
		return 6
	case OpFROUND:
		return 7
	case OpFTRUNC:
		return 8
	case OpFFLOOR:
		return 9
	case OpFCEIL:
		return 10
	case OpFCMP, OpFCMPI:
		return 11
	case OpFCMN, OpFCMNI:
		return 12
	case OpFCMPS:
		return 13
	}
	return -1
}

func intMULOpMap(op uint8) int {
	switch OpCode(op) {
	case OpMUL, OpMULI:
		return 0
	case OpDIV, OpDIVI:
		return 1
	}
	return -1
}

func fpMULOpMap(op uint8) int {
	switch OpCode(op) {
	case OpFMUL, OpFMULI:
		return 0
	case OpFDIV, OpFDIVI:
		return 1
	case OpFSQRT:
		return 2
	}
	return -1
}

func branchOpMap(op uint8) int {
	switch OpCode(op) {
	case OpB:
		return 0
	case OpBEQ:
		return 1
	case OpBNE:
		return 2
	case OpBLT:
		return 3
	case OpBGT:
		return 4
	case OpBUN:
		return 5
	case OpBORD:
		return 6
	}
	return -1
}
