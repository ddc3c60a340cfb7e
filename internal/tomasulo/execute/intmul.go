package execute

import "github.com/archsim/simcore/internal/tomasulo/signalbus"

const (
	opMUL = iota
	opDIV
)

// IntMUL is the non-pipelined integer MUL/DIV unit: MUL takes 4 cycles,
// DIV takes 16 (spec §4.G). Divide-by-zero raises exception code 3 and
// result 0. Sets N and Z of the result.
type IntMUL struct {
	RS       signalbus.StationID
	Arbiter  *SingleArbiter
	OpMap    func(uint8) int

	active    bool
	remaining int
	op        int
	robTag    uint8
	a, bv     uint64

	done    bool
	result  uint64
	exc     uint8
}

func NewIntMUL(rs signalbus.StationID, arb *SingleArbiter, opMap func(uint8) int) *IntMUL {
	return &IntMUL{RS: rs, Arbiter: arb, OpMap: opMap}
}

func (u *IntMUL) Evaluate(b *signalbus.Bus) {
	if u.done {
		cv := signalbus.CDBValue{Valid: true, Tag: u.robTag, Value: u.result, Exception: u.exc, FlagsValid: true, Flags: nz(u.result)}
		b.CDBRequest[ReqIntMUL] = true
		b.CDBValue[ReqIntMUL] = cv
	}
}

func (u *IntMUL) ClockEdge(b *signalbus.Bus) {
	if u.done {
		if !b.CDBStall[ReqIntMUL] {
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
		if u.op == opMUL {
			u.remaining = 4
		} else {
			u.remaining = 16
		}
		return
	}

	if u.active {
		u.remaining--
		if u.remaining <= 0 {
			u.active = false
			u.done = true
			switch u.op {
			case opMUL:
				u.result = u.a * u.bv
				u.exc = 0
			case opDIV:
				if u.bv == 0 {
					u.result = 0
					u.exc = 3
				} else {
					u.result = u.a / u.bv
					u.exc = 0
				}
			}
		}
	}
}

func (u *IntMUL) Reset() {
	*u = IntMUL{RS: u.RS, Arbiter: u.Arbiter, OpMap: u.OpMap}
}
