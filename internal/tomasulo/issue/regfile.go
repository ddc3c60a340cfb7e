// Package issue implements the issue-stage sequential state: the
// register file with rename tags, the flags unit, and the reorder buffer
// (spec §4.D).
package issue

import "github.com/archsim/simcore/internal/tomasulo/signalbus"

// NumRegs is the architectural register count: R0-R12, UPPER, LOWER, PEID
// (spec §3).
const NumRegs = 16

const (
	RegUPPER = 13
	RegLOWER = 14
	RegPEID  = 15
)

// RegisterFile exposes three combinational read ports and latches renamed
// writes / commit writes on the clock edge (spec §4.D).
type RegisterFile struct {
	value   [NumRegs]uint64
	qi      [NumRegs]uint8
	qiValid [NumRegs]bool

	// ClockEdge-phase write requests, set by commit / control-unit logic.
	CommitWriteEnable bool
	CommitReg         uint8
	CommitValue       uint64
	CommitTag         uint8 // must match stored Qi to clear QiValid

	IssueTagWriteEnable bool
	IssueTagWriteReg    uint8
	IssueTagWriteTag    uint8
}

// NewRegisterFile returns a register file with LOWER initialized to all
// ones, per spec §3 ("LOWER initialized to all-ones").
func NewRegisterFile() *RegisterFile {
	rf := &RegisterFile{}
	rf.value[RegLOWER] = ^uint64(0)
	return rf
}

// Evaluate drives the three combinational read ports onto the bus, keyed
// by the addresses the decode stage wrote this cycle.
func (rf *RegisterFile) Evaluate(b *signalbus.Bus) {
	b.RegReadRn = rf.read(b.RegReadAddrRn)
	b.RegReadRm = rf.read(b.RegReadAddrRm)
	b.RegReadRdStore = rf.read(b.RegReadAddrRdStore)
}

func (rf *RegisterFile) read(r uint8) signalbus.RegPort {
	return signalbus.RegPort{Value: rf.value[r], Qi: rf.qi[r], QiValid: rf.qiValid[r]}
}

// Value returns the current architectural value of a register (used by
// observers and by the three-tier resolution's fallback tier).
func (rf *RegisterFile) Value(r uint8) uint64 { return rf.value[r] }

// Qi returns the current rename tag state of a register.
func (rf *RegisterFile) Qi(r uint8) (tag uint8, valid bool) { return rf.qi[r], rf.qiValid[r] }

// Values returns a snapshot copy of all sixteen architectural registers, for
// observers and for snapshot save/restore.
func (rf *RegisterFile) Values() [NumRegs]uint64 { return rf.value }

// SetValue writes an architectural register directly, bypassing the
// rename/commit pipeline. For use before a core's first Step — loading an
// initial register image from a scenario file or a test fixture — never
// while instructions are in flight, since it does not touch qi/qiValid.
func (rf *RegisterFile) SetValue(r uint8, v uint64) { rf.value[r] = v }

// ClockEdge latches commit writes, then rename-tag writes, then flush
// (spec §4.D's fixed ordering: commit-write, then issue-tag-write,
// overwriting any prior tag; flush clears all valid bits last).
func (rf *RegisterFile) ClockEdge(b *signalbus.Bus) {
	if rf.CommitWriteEnable {
		r := rf.CommitReg
		rf.value[r] = rf.CommitValue
		if rf.qiValid[r] && rf.qi[r] == rf.CommitTag {
			rf.qiValid[r] = false
		}
	}
	if rf.IssueTagWriteEnable {
		r := rf.IssueTagWriteReg
		rf.qi[r] = rf.IssueTagWriteTag
		rf.qiValid[r] = true
	}
	if b.Flush {
		for i := range rf.qiValid {
			rf.qiValid[i] = false
		}
	}
	rf.CommitWriteEnable = false
	rf.IssueTagWriteEnable = false
}

// Reset returns the register file to power-on state (LOWER all-ones).
func (rf *RegisterFile) Reset() {
	*rf = RegisterFile{}
	rf.value[RegLOWER] = ^uint64(0)
}
