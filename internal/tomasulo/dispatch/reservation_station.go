package dispatch

import "github.com/archsim/simcore/internal/tomasulo/signalbus"

type rsState uint8

const (
	rsIdle rsState = iota
	rsBusy
	rsGranted
)

// RegFallback is satisfied by the register file / flags unit so a
// reservation station can apply the fallback tier of the three-tier
// operand resolution sequence (spec §4.E step 2): if the tag a station is
// waiting on stops being the architectural Qi (because commit cleared it)
// before a CDB broadcast ever satisfies it, the station re-reads the
// refreshed architectural value directly instead of waiting forever.
type RegFallback interface {
	Qi(reg uint8) (tag uint8, valid bool)
	Value(reg uint8) uint64
}

// FlagsFallback is the flags-unit analogue of RegFallback.
type FlagsFallback interface {
	Qi() (tag uint8, valid bool)
	Value() uint8
}

// ReservationStation is the shared concrete type behind all five RS
// families (spec §9): two IntALU, one FPALU, one IntMUL, one FPMUL, one
// Branch. Family differences are expressed as behavioral flags rather
// than a type hierarchy.
type ReservationStation struct {
	ID StationID

	// Family behavior.
	IsUnary     bool // MOV-like: skip Vj, only Vk (or no Rn operand)
	IsMultiCycle bool // executing-bit tracking instead of dispatched-bit

	state rsState

	Opcode     uint8
	UseImm     bool
	RobTag     uint8
	NeedsFlags bool

	Vj, Vk Operand
	VjSrcReg, VkSrcReg uint8 // architectural source registers, for fallback

	Flags      Operand
	FlagsValid bool // snapshot of whether this op even modifies/needs flags

	Dispatched bool // single-cycle units: set on grant, held until Free
	Executing  bool // multi-cycle units: set on grant, held until Free

	Regs  RegFallback
	Flag  FlagsFallback
}

type StationID = signalbus.StationID

// NewReservationStation constructs an idle station for the given family.
func NewReservationStation(id StationID, isUnary, isMultiCycle bool, regs RegFallback, flags FlagsFallback) *ReservationStation {
	return &ReservationStation{ID: id, IsUnary: isUnary, IsMultiCycle: isMultiCycle, Regs: regs, Flag: flags}
}

// Allocate is called (from the control unit's Evaluate) when this
// station is chosen for a newly-decoded instruction.
type AllocateArgs struct {
	Opcode     uint8
	UseImm     bool
	Imm        uint64
	RobTag     uint8
	NeedsFlags bool
	ModifiesFlags bool
	Rn, Rm     signalbus.RegPort
	RnReg, RmReg uint8
	FlagsQi    uint8
	FlagsQiValid bool
	FlagsValue uint8
}

func (rs *ReservationStation) Allocate(a AllocateArgs) {
	rs.state = rsBusy
	rs.Opcode = a.Opcode
	rs.UseImm = a.UseImm
	rs.RobTag = a.RobTag
	rs.NeedsFlags = a.NeedsFlags
	rs.Dispatched = false
	rs.Executing = false

	if !rs.IsUnary {
		rs.Vj = fromPort(a.Rn)
		rs.VjSrcReg = a.RnReg
	} else {
		rs.Vj = Operand{Valid: true}
	}

	if a.UseImm {
		rs.Vk = Operand{Value: a.Imm, Valid: true}
	} else {
		rs.Vk = fromPort(a.Rm)
		rs.VkSrcReg = a.RmReg
	}

	if a.ModifiesFlags || a.NeedsFlags {
		if !a.FlagsQiValid {
			rs.Flags = Operand{Value: uint64(a.FlagsValue), Valid: true}
		} else {
			rs.Flags = Operand{Qi: a.FlagsQi, Valid: false}
		}
	} else {
		rs.Flags = Operand{Valid: true}
	}
}

// Busy reports whether the station currently holds an instruction.
func (rs *ReservationStation) Busy() bool { return rs.state != rsIdle }

// Ready reports whether both operands (and flags, if needed) are valid.
func (rs *ReservationStation) Ready() bool {
	return rs.state == rsBusy && rs.Vj.Valid && rs.Vk.Valid && rs.Flags.Valid
}

// Evaluate publishes busy/request state for the arbiter (spec §4.E step 3)
// and, when ready, the operand snapshot the execution unit will consume.
func (rs *ReservationStation) Evaluate(b *signalbus.Bus) {
	b.StationBusy[rs.ID] = rs.Busy()
	if rs.Ready() && !rs.Dispatched && !rs.Executing {
		b.StationRequest[rs.ID] = true
		b.StationOperands[rs.ID] = signalbus.StationOperandSnapshot{
			Opcode:     rs.Opcode,
			RobTag:     rs.RobTag,
			Vj:         rs.Vj.Value,
			Vk:         rs.Vk.Value,
			FlagsIn:    uint8(rs.Flags.Value),
			NeedsFlags: rs.NeedsFlags,
		}
	}
}

// ClockEdge applies CDB snooping, the fallback tier, arbiter grants, and
// the Free transition back to IDLE (spec §4.E steps 2, 4, 5).
func (rs *ReservationStation) ClockEdge(b *signalbus.Bus) {
	if rs.state != rsBusy {
		if b.StationFree[rs.ID] {
			rs.state = rsIdle
			rs.Dispatched, rs.Executing = false, false
		}
		return
	}

	rs.Vj.snoopCDB(b)
	rs.Vk.snoopCDB(b)
	rs.Flags.snoopCDB(b)

	// Fallback tier: if a waited-on producer tag is no longer the
	// architectural Qi (commit retired it without a station ever seeing
	// the broadcast — e.g. a restart after flush), re-read directly.
	if !rs.Vj.Valid && rs.Regs != nil {
		if tag, valid := rs.Regs.Qi(rs.VjSrcReg); !valid || tag != rs.Vj.Qi {
			rs.Vj.Value, rs.Vj.Valid = rs.Regs.Value(rs.VjSrcReg), true
		}
	}
	if !rs.Vk.Valid && !rs.UseImm && rs.Regs != nil {
		if tag, valid := rs.Regs.Qi(rs.VkSrcReg); !valid || tag != rs.Vk.Qi {
			rs.Vk.Value, rs.Vk.Valid = rs.Regs.Value(rs.VkSrcReg), true
		}
	}
	if !rs.Flags.Valid && rs.Flag != nil {
		if tag, valid := rs.Flag.Qi(); !valid || tag != rs.Flags.Qi {
			rs.Flags.Value, rs.Flags.Valid = uint64(rs.Flag.Value()), true
		}
	}

	if b.StationGrantFU[rs.ID] {
		if rs.IsMultiCycle {
			rs.Executing = true
		} else {
			rs.Dispatched = true
		}
	}

	if b.Flush {
		rs.state = rsIdle
		rs.Dispatched, rs.Executing = false, false
		return
	}

	if b.StationFree[rs.ID] {
		rs.state = rsIdle
		rs.Dispatched, rs.Executing = false, false
	}
}

func (rs *ReservationStation) Reset() {
	rs.state = rsIdle
	rs.Vj, rs.Vk, rs.Flags = Operand{}, Operand{}, Operand{}
	rs.Dispatched, rs.Executing = false, false
}
