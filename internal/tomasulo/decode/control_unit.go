package decode

import (
	"github.com/archsim/simcore/internal/tomasulo"
	"github.com/archsim/simcore/internal/tomasulo/dispatch"
	"github.com/archsim/simcore/internal/tomasulo/issue"
	"github.com/archsim/simcore/internal/tomasulo/signalbus"
)

// ControlUnit is spec §4.C's allocation logic: pick a free reservation
// station / buffer for the class the decoder reported, rename the
// destination register (and flags, if the op sets them), and push a new
// entry onto the ROB tail. It runs in the coordinator's propagation pass,
// after RegisterFile's pre-pass read ports have settled.
//
// It holds direct references to the issue- and dispatch-stage objects
// rather than routing allocation through bus ports: unlike a functional
// unit's single request/grant pair, a single cycle's allocation decision
// touches several of them at once (the chosen station, the ROB tail, the
// register file's rename port, and possibly the flags unit's), and the
// flat bus has no clean way to express "write these five destinations
// together, conditioned on a single free-resource check."
type ControlUnit struct {
	Rob   *issue.Rob
	Regs  *issue.RegisterFile
	Flags *issue.FlagsUnit

	IntALU [2]*dispatch.ReservationStation // RS_IntALU0, RS_IntALU1
	FPALU  *dispatch.ReservationStation
	IntMUL *dispatch.ReservationStation
	FPMUL  *dispatch.ReservationStation
	Branch *dispatch.ReservationStation

	Store [2]*dispatch.StoreBuffer
	Load  [3]*dispatch.LoadBuffer
}

func NewControlUnit(rob *issue.Rob, regs *issue.RegisterFile, flags *issue.FlagsUnit,
	intALU0, intALU1, fpALU, intMUL, fpMUL, branch *dispatch.ReservationStation,
	sb0, sb1 *dispatch.StoreBuffer, lb0, lb1, lb2 *dispatch.LoadBuffer) *ControlUnit {
	return &ControlUnit{
		Rob:    rob,
		Regs:   regs,
		Flags:  flags,
		IntALU: [2]*dispatch.ReservationStation{intALU0, intALU1},
		FPALU:  fpALU,
		IntMUL: intMUL,
		FPMUL:  fpMUL,
		Branch: branch,
		Store:  [2]*dispatch.StoreBuffer{sb0, sb1},
		Load:   [3]*dispatch.LoadBuffer{lb0, lb1, lb2},
	}
}

// Evaluate implements spec §4.C's allocation sequence. Stalling fetch on
// a resource conflict (no free station, or a full ROB) is signalled by
// leaving StallIF set and performing no allocation at all this cycle.
func (c *ControlUnit) Evaluate(b *signalbus.Bus) {
	if !b.DecodeValid {
		return
	}
	d := b.Decode

	if d.NoExecute {
		c.allocateNoExecute(b, d)
		return
	}

	switch tomasulo.AllocClass(d.Class) {
	case tomasulo.ClassLoad:
		lb := c.freeLoad()
		if lb == nil || c.Rob.Full() {
			b.StallIF = true
			return
		}
		c.allocateLoad(b, d, lb)
	case tomasulo.ClassStore:
		sb := c.freeStore()
		if sb == nil || c.Rob.Full() {
			b.StallIF = true
			return
		}
		c.allocateStore(b, d, sb)
	default:
		rs, id := c.stationFor(d)
		if rs == nil || c.Rob.Full() {
			b.StallIF = true
			return
		}
		c.allocateRS(b, d, rs, id)
	}
}

func (c *ControlUnit) ClockEdge(b *signalbus.Bus) {}
func (c *ControlUnit) Reset()                     {}

// stationFor picks the reservation-station family for a class, and
// within the two-deep IntALU family the first idle one.
func (c *ControlUnit) stationFor(d signalbus.DecodedInstr) (*dispatch.ReservationStation, signalbus.StationID) {
	switch tomasulo.AllocClass(d.Class) {
	case tomasulo.ClassIntALU, tomasulo.ClassCMPOnly:
		if !c.IntALU[0].Busy() {
			return c.IntALU[0], signalbus.RS_IntALU0
		}
		if !c.IntALU[1].Busy() {
			return c.IntALU[1], signalbus.RS_IntALU1
		}
		return nil, 0
	case tomasulo.ClassFPALU:
		if c.FPALU.Busy() {
			return nil, 0
		}
		return c.FPALU, signalbus.RS_FPALU
	case tomasulo.ClassIntMUL:
		if c.IntMUL.Busy() {
			return nil, 0
		}
		return c.IntMUL, signalbus.RS_IntMUL
	case tomasulo.ClassFPMUL:
		if c.FPMUL.Busy() {
			return nil, 0
		}
		return c.FPMUL, signalbus.RS_FPMUL
	case tomasulo.ClassBranch:
		if c.Branch.Busy() {
			return nil, 0
		}
		return c.Branch, signalbus.RS_Branch
	default:
		return nil, 0
	}
}

func (c *ControlUnit) freeLoad() *dispatch.LoadBuffer {
	for _, lb := range c.Load {
		if !lb.Busy() {
			return lb
		}
	}
	return nil
}

func (c *ControlUnit) freeStore() *dispatch.StoreBuffer {
	for _, sb := range c.Store {
		if !sb.Busy() {
			return sb
		}
	}
	return nil
}

// resolvePort applies the middle tier of the three-tier operand
// resolution sequence (spec §4.E step 2) to a register-file read port:
// if it's waiting on a pending tag and the ROB entry behind that tag has
// already computed its result (just not committed), substitute the
// forwarded value so the station is born ready instead of waiting for a
// CDB broadcast that may be cycles away.
func (c *ControlUnit) resolvePort(p signalbus.RegPort) signalbus.RegPort {
	if !p.QiValid {
		return p
	}
	if v, ready := c.Rob.Forward(p.Qi); ready {
		return signalbus.RegPort{Value: v, QiValid: false}
	}
	return p
}

// resolveFlags is resolvePort's analogue for the flags operand: b.FlagsForward
// was computed by FlagsUnit.Evaluate this same cycle against the same tag.
func (c *ControlUnit) resolveFlags(b *signalbus.Bus) (qi uint8, qiValid bool, value uint8) {
	if !b.FlagsQiValid {
		return 0, false, b.FlagsArch
	}
	if b.FlagsForward {
		return 0, false, b.FlagsForwardV
	}
	return b.FlagsQi, true, 0
}

func (c *ControlUnit) allocateNoExecute(b *signalbus.Bus, d signalbus.DecodedInstr) {
	if c.Rob.Full() {
		b.StallIF = true
		return
	}
	var exc uint8
	if !d.Legal {
		exc = 1
	}
	tag := c.Rob.TailTag()
	c.Rob.AllocRequest = true
	c.Rob.AllocEntry = issue.RobEntry{
		Class:     d.Class,
		PC:        b.PC,
		Opcode:    d.Op,
		Ready:     true,
		Exception: exc,
	}
	b.ROBAllocOK = true
	b.ROBTailTag = tag
}

func (c *ControlUnit) allocateRS(b *signalbus.Bus, d signalbus.DecodedInstr, rs *dispatch.ReservationStation, id signalbus.StationID) {
	tag := c.Rob.TailTag()

	flagsQi, flagsQiValid, flagsValue := c.resolveFlags(b)
	rs.Allocate(dispatch.AllocateArgs{
		Opcode:        d.Op,
		UseImm:        d.UseImm,
		Imm:           d.ImmExt,
		RobTag:        tag,
		NeedsFlags:    d.NeedsFlags,
		ModifiesFlags: d.ModifiesFlags,
		Rn:            c.resolvePort(b.RegReadRn),
		Rm:            c.resolvePort(b.RegReadRm),
		RnReg:         d.Rn,
		RmReg:         d.Rm,
		FlagsQi:       flagsQi,
		FlagsQiValid:  flagsQiValid,
		FlagsValue:    flagsValue,
	})

	isBranch := tomasulo.AllocClass(d.Class) == tomasulo.ClassBranch
	entry := issue.RobEntry{
		Class:         d.Class,
		DestReg:       d.Rd,
		PC:            b.PC,
		Opcode:        d.Op,
		SourceStn:     uint8(id),
		ModifiesFlags: d.ModifiesFlags,
	}
	if isBranch {
		// Unconditional branches are statically predicted taken, to their
		// only possible target; conditionals are predicted not-taken, so
		// Target here is never consulted (see branch.go's mispredict check).
		entry.Predicted = d.IsUnconditional
		entry.Target = d.ImmExt
	}
	c.Rob.AllocRequest = true
	c.Rob.AllocEntry = entry

	if d.WritesRd {
		c.Regs.IssueTagWriteEnable = true
		c.Regs.IssueTagWriteReg = d.Rd
		c.Regs.IssueTagWriteTag = tag
	}
	if d.ModifiesFlags {
		c.Flags.IssueTagWriteEnable = true
		c.Flags.IssueTagWriteTag = tag
	}

	b.ROBAllocOK = true
	b.ROBTailTag = tag
	b.AllocStation = id
	b.AllocStationOK = true
	if d.WritesRd {
		b.TagWriteEnable = true
		b.TagWriteReg = d.Rd
	}
	b.FlagsTagWrite = d.ModifiesFlags
}

func (c *ControlUnit) allocateLoad(b *signalbus.Bus, d signalbus.DecodedInstr, lb *dispatch.LoadBuffer) {
	tag := c.Rob.TailTag()

	lb.Allocate(dispatch.LoadAllocateArgs{
		Base:    c.resolvePort(b.RegReadRn),
		BaseReg: d.Rn,
		Offset:  d.ImmExt,
		RobTag:  tag,
		IsByte:  d.Op == uint8(tomasulo.OpLDRB),
	})

	c.Rob.AllocRequest = true
	c.Rob.AllocEntry = issue.RobEntry{
		Class:     d.Class,
		DestReg:   d.Rd,
		PC:        b.PC,
		Opcode:    d.Op,
		SourceStn: uint8(lb.ID),
	}

	c.Regs.IssueTagWriteEnable = true
	c.Regs.IssueTagWriteReg = d.Rd
	c.Regs.IssueTagWriteTag = tag

	b.ROBAllocOK = true
	b.ROBTailTag = tag
	b.AllocStation = lb.ID
	b.AllocStationOK = true
	b.TagWriteEnable = true
	b.TagWriteReg = d.Rd
}

func (c *ControlUnit) allocateStore(b *signalbus.Bus, d signalbus.DecodedInstr, sb *dispatch.StoreBuffer) {
	tag := c.Rob.TailTag()

	sb.Allocate(dispatch.StoreAllocateArgs{
		Base:    c.resolvePort(b.RegReadRn),
		BaseReg: d.Rn,
		Data:    c.resolvePort(b.RegReadRdStore),
		DataReg: d.Rd,
		Offset:  d.ImmExt,
		RobTag:  tag,
	})

	c.Rob.AllocRequest = true
	c.Rob.AllocEntry = issue.RobEntry{
		Class:     d.Class,
		PC:        b.PC,
		Opcode:    d.Op,
		SourceStn: uint8(sb.ID),
	}

	b.ROBAllocOK = true
	b.ROBTailTag = tag
	b.AllocStation = sb.ID
	b.AllocStationOK = true
}
