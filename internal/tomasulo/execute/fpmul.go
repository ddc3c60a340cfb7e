package execute

import (
	"math"

	"github.com/archsim/simcore/internal/tomasulo/signalbus"
)

const (
	opFMUL = iota
	opFDIV
	opFSQRT
)

// FPMUL is the non-pipelined FMUL/FDIV/FSQRT unit: FMUL 5 cycles, FDIV 20,
// FSQRT 25 (spec §4.G). Divide-by-zero yields a signed infinity and
// exception code 4; negative sqrt yields NaN and exception code 5. Does
// not write flags.
type FPMUL struct {
	RS      signalbus.StationID
	Arbiter *SingleArbiter
	OpMap   func(uint8) int

	active    bool
	remaining int
	op        int
	robTag    uint8
	a, bv     uint64

	done   bool
	result uint64
	exc    uint8
}

func NewFPMUL(rs signalbus.StationID, arb *SingleArbiter, opMap func(uint8) int) *FPMUL {
	return &FPMUL{RS: rs, Arbiter: arb, OpMap: opMap}
}

func (u *FPMUL) Evaluate(b *signalbus.Bus) {
	if u.done {
		b.CDBRequest[ReqFPMUL] = true
		b.CDBValue[ReqFPMUL] = signalbus.CDBValue{Valid: true, Tag: u.robTag, Value: u.result, Exception: u.exc}
	}
}

func (u *FPMUL) ClockEdge(b *signalbus.Bus) {
	if u.done {
		if !b.CDBStall[ReqFPMUL] {
			u.done = false
			u.Arbiter.SetBusy(false)
		}
	}

	if b.Flush {
		u.active, u.done = false, false
		u.Arbiter.SetBusy(false)
		return
	}

	if !u.active && !u.done && b.StationGrantFU[u.RS] {
		op := b.StationOperands[u.RS]
		u.op = u.OpMap(op.Opcode)
		u.robTag = op.RobTag
		u.a, u.bv = op.Vj, op.Vk
		u.active = true
		u.Arbiter.SetBusy(true)
		switch u.op {
		case opFMUL:
			u.remaining = 5
		case opFDIV:
			u.remaining = 20
		case opFSQRT:
			u.remaining = 25
		}
		return
	}

	if u.active {
		u.remaining--
		if u.remaining <= 0 {
			u.active = false
			u.done = true
			a := math.Float64frombits(u.a)
			bv := math.Float64frombits(u.bv)
			switch u.op {
			case opFMUL:
				u.result, u.exc = math.Float64bits(a*bv), 0
			case opFDIV:
				if bv == 0 {
					u.result = math.Float64bits(math.Copysign(math.Inf(1), a) * math.Copysign(1, bv))
					u.exc = 4
				} else {
					u.result, u.exc = math.Float64bits(a/bv), 0
				}
			case opFSQRT:
				if bv < 0 {
					u.result, u.exc = math.Float64bits(math.NaN()), 5
				} else {
					u.result, u.exc = math.Float64bits(math.Sqrt(bv)), 0
				}
			}
		}
	}
}

func (u *FPMUL) Reset() {
	*u = FPMUL{RS: u.RS, Arbiter: u.Arbiter, OpMap: u.OpMap}
}
