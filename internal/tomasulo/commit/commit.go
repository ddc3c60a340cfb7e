// Package commit implements the in-order retirement stage (spec §4.J):
// at most one ROB entry retires per cycle, from the head, and only once
// it is both busy and ready.
package commit

import (
	"github.com/archsim/simcore/internal/tomasulo"
	"github.com/archsim/simcore/internal/tomasulo/issue"
	"github.com/archsim/simcore/internal/tomasulo/signalbus"
)

// Unit is the commit stage. It holds direct references to the register
// file, flags unit and ROB for the same reason the control unit does:
// retiring an entry touches several of them together, conditioned on a
// single head-of-queue check, which the flat bus has no clean port for.
type Unit struct {
	Rob   *issue.Rob
	Regs  *issue.RegisterFile
	Flags *issue.FlagsUnit

	// Store retirement is a two-cycle handshake with the memory arbiter:
	// assert MemRequest at the unit's own (highest) priority, wait for
	// MemDone, then pop. storePending tracks which ROB entry is mid-store.
	storePending    bool
	storeTag        uint8
	storeRequested  bool

	halted bool // latched once an exception or SWI retires; never clears
}

func NewUnit(rob *issue.Rob, regs *issue.RegisterFile, flags *issue.FlagsUnit) *Unit {
	return &Unit{Rob: rob, Regs: regs, Flags: flags}
}

// Evaluate drives the memory port request for an in-flight store (at the
// highest fixed priority among memory requesters, spec §4.I) and
// republishes Halted once latched, since the bus is zeroed every cycle.
func (u *Unit) Evaluate(b *signalbus.Bus) {
	if u.halted {
		b.Halted = true
	}
	if u.storePending && !u.storeRequested {
		e := u.Rob.Entry(u.storeTag)
		b.MemRequest = true
		b.MemRequester = signalbus.StationID(e.SourceStn)
		b.MemAddr = e.StoreAddr
		b.MemIsWrite = true
		b.MemIsByte = u.storeIsByte(e.Opcode)
		b.MemWriteData = e.StoreData
	}
}

func (u *Unit) storeIsByte(op uint8) bool {
	return tomasulo.OpCode(op) == tomasulo.OpSTRB
}

// ClockEdge implements spec §4.J's per-class retirement behavior. At most
// one entry retires per cycle; a store in progress blocks the head until
// its memory write completes.
func (u *Unit) ClockEdge(b *signalbus.Bus) {
	if u.storePending {
		if b.MemDone && b.MemRequester == signalbus.StationID(u.Rob.Entry(u.storeTag).SourceStn) {
			u.retireStore(b, u.storeTag)
			u.storePending = false
			u.storeRequested = false
		} else {
			u.storeRequested = true
		}
		return
	}

	if !b.ROBHeadBusy || !b.ROBHeadReady {
		return
	}

	tag := b.ROBHeadTag
	e := u.Rob.Entry(tag)

	if e.Exception != 0 {
		u.retireException(b, tag, e)
		return
	}
	if e.Opcode == uint8(tomasulo.OpSWI) {
		u.retireSWI(b, tag, e)
		return
	}
	if e.Opcode == uint8(tomasulo.OpNOP) {
		u.retireNOP(b, tag, e)
		return
	}

	switch tomasulo.AllocClass(e.Class) {
	case tomasulo.ClassStore:
		if !e.StoreReady {
			return // address/data not both resolved yet; head stays put
		}
		u.storePending = true
		u.storeTag = tag
		u.storeRequested = false
	case tomasulo.ClassBranch:
		u.retireBranch(b, tag, e)
	case tomasulo.ClassLoad:
		u.retireValue(b, tag, e)
	case tomasulo.ClassCMPOnly:
		u.retireFlagsOnly(b, tag, e)
	default:
		u.retireValue(b, tag, e)
	}
}

func (u *Unit) free(b *signalbus.Bus, e issue.RobEntry) {
	b.StationFree[e.SourceStn] = true
}

func (u *Unit) commitValue(b *signalbus.Bus, tag uint8, e issue.RobEntry) {
	u.Regs.CommitWriteEnable = true
	u.Regs.CommitReg = e.DestReg
	u.Regs.CommitValue = e.Value
	u.Regs.CommitTag = tag

	if e.ModifiesFlags && e.FlagsValid {
		u.Flags.CommitWriteEnable = true
		u.Flags.CommitValue = e.Flags
		u.Flags.CommitTag = tag
	}

	b.CommitValid = true
	b.CommitTag = tag
	b.CommitPC = e.PC
	u.Rob.CommitPop = true
	u.free(b, e)
}

// retireValue handles every class that simply writes its destination
// register: IntALU, IntMUL, FPALU, FPMUL, Load.
func (u *Unit) retireValue(b *signalbus.Bus, tag uint8, e issue.RobEntry) {
	u.commitValue(b, tag, e)
}

// retireFlagsOnly handles CMP/CMN/TST/TEQ: flags commit, no register write.
func (u *Unit) retireFlagsOnly(b *signalbus.Bus, tag uint8, e issue.RobEntry) {
	if e.ModifiesFlags && e.FlagsValid {
		u.Flags.CommitWriteEnable = true
		u.Flags.CommitValue = e.Flags
		u.Flags.CommitTag = tag
	}
	b.CommitValid = true
	b.CommitTag = tag
	b.CommitPC = e.PC
	u.Rob.CommitPop = true
	u.free(b, e)
}

func (u *Unit) retireNOP(b *signalbus.Bus, tag uint8, e issue.RobEntry) {
	b.CommitValid = true
	b.CommitTag = tag
	b.CommitPC = e.PC
	u.Rob.CommitPop = true
	u.free(b, e)
}

// retireSWI halts the core: no further instructions are fetched or
// retired after this cycle (spec §4.J).
func (u *Unit) retireSWI(b *signalbus.Bus, tag uint8, e issue.RobEntry) {
	b.CommitValid = true
	b.CommitTag = tag
	b.CommitPC = e.PC
	u.Rob.CommitPop = true
	u.free(b, e)
	u.halted = true
	b.Halted = true
}

// retireException halts the core on any committed non-zero exception code
// (illegal opcode, segfault, divide by zero, ...), leaving the faulting
// PC and code visible for the observer layer (spec §4.J, §7.1).
func (u *Unit) retireException(b *signalbus.Bus, tag uint8, e issue.RobEntry) {
	b.CommitException = e.Exception
	b.CommitPC = e.PC
	b.Flush = true
	u.Rob.CommitPop = true
	u.free(b, e)
	u.halted = true
	b.Halted = true
}

// retireStore completes the store handshake: no register write, just pop
// and free the buffer.
func (u *Unit) retireStore(b *signalbus.Bus, tag uint8) {
	e := u.Rob.Entry(tag)
	b.CommitValid = true
	b.CommitTag = tag
	b.CommitPC = e.PC
	u.Rob.CommitPop = true
	u.free(b, e)
}

// retireBranch commits the flags-independent branch classes: always pops
// and writes no register, but on mispredict asserts Flush/Redirect and
// resets renaming so the next cycle's fetch restarts clean (spec §4.G,
// §4.J).
func (u *Unit) retireBranch(b *signalbus.Bus, tag uint8, e issue.RobEntry) {
	b.CommitValid = true
	b.CommitTag = tag
	b.CommitPC = e.PC
	u.Rob.CommitPop = true
	u.free(b, e)

	if e.Mispredict {
		b.Flush = true
		b.RedirectOK = true
		b.RedirectPC = e.Target
	}
}

func (u *Unit) Reset() {
	*u = Unit{Rob: u.Rob, Regs: u.Regs, Flags: u.Flags}
}
