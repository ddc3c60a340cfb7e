// Package execute implements the Tomasulo execution units and their
// one-cycle arbiters (spec §4.G).
package execute

import "github.com/archsim/simcore/internal/tomasulo/signalbus"

const (
	flagN uint8 = 1 << 3
	flagZ uint8 = 1 << 2
	flagC uint8 = 1 << 1
	flagV uint8 = 1 << 0
)

// opcode identifiers mirrored locally to avoid an import cycle with the
// top-level tomasulo package; kept in sync with opcodes.go by the core
// wiring code, which passes the right numeric values in.
const (
	opADD = iota
	opSUB
	opADC
	opSBC
	opAND
	opORR
	opEOR
	opBIC
	opLSL
	opLSR
	opASR
	opROR
	opINC
	opDEC
	opMOV
	opMVN
	opCMP
	opCMN
	opTST
	opTEQ
)

// IntALUArbiter selects between the two IntALU reservation stations each
// cycle, priority RS0 > RS1 (spec §4.G: "the IntALU arbiter is the only
// non-trivial one").
type IntALUArbiter struct {
	RS0, RS1 signalbus.StationID
}

func NewIntALUArbiter(rs0, rs1 signalbus.StationID) *IntALUArbiter {
	return &IntALUArbiter{RS0: rs0, RS1: rs1}
}

func (a *IntALUArbiter) Evaluate(b *signalbus.Bus) {
	if b.StationRequest[a.RS0] {
		b.StationGrantFU[a.RS0] = true
	} else if b.StationRequest[a.RS1] {
		b.StationGrantFU[a.RS1] = true
	}
}
func (a *IntALUArbiter) ClockEdge(b *signalbus.Bus) {}
func (a *IntALUArbiter) Reset()                     {}

// IntALU is the single-cycle combinational integer ALU (spec §4.G).
// OpMap translates the RS-local opcode byte (set by the control unit) to
// the local opXXX identifiers above.
type IntALU struct {
	RS0, RS1 signalbus.StationID
	OpMap    func(uint8) int

	pending    bool
	pendingVal signalbus.CDBValue
}

func NewIntALU(rs0, rs1 signalbus.StationID, opMap func(uint8) int) *IntALU {
	return &IntALU{RS0: rs0, RS1: rs1, OpMap: opMap}
}

// Evaluate computes combinationally when newly granted; if the previous
// cycle's result lost CDB arbitration (CDBStall), it keeps re-requesting
// the held value instead of recomputing (spec §4.G: "Stalls when the CDB
// arbiter asserts CDBStall").
func (u *IntALU) Evaluate(b *signalbus.Bus) {
	if u.pending {
		b.CDBRequest[0] = true
		b.CDBValue[0] = u.pendingVal
		return
	}

	var id signalbus.StationID
	switch {
	case b.StationGrantFU[u.RS0]:
		id = u.RS0
	case b.StationGrantFU[u.RS1]:
		id = u.RS1
	default:
		return
	}
	op := b.StationOperands[id]
	result, flags, writes := intALUCompute(u.OpMap(op.Opcode), op.Vj, op.Vk, op.FlagsIn)

	cv := signalbus.CDBValue{Valid: true, Tag: op.RobTag}
	if writes {
		cv.Value = result
	}
	if flagsWritten(u.OpMap(op.Opcode)) {
		cv.FlagsValid = true
		cv.Flags = flags
	}
	b.CDBRequest[0] = true
	b.CDBValue[0] = cv
}

func (u *IntALU) ClockEdge(b *signalbus.Bus) {
	if b.CDBStall[0] {
		if u.pending {
			return
		}
		u.pending = true
		u.pendingVal = b.CDBValue[0]
		return
	}
	u.pending = false
}
func (u *IntALU) Reset() { u.pending = false }

func flagsWritten(op int) bool {
	switch op {
	case opMOV, opMVN:
		return false
	}
	return true
}

// intALUCompute implements every integer-ALU op with precise N/Z/C/V
// computation (spec §4.G). Carry/overflow follow two's-complement
// conventions: overflow = (¬(A⊕B) ∧ (A⊕result)) >> 63 for add,
// ((A⊕B) ∧ (A⊕result)) >> 63 for subtract; for shifts the last bit
// shifted out is C. ADC/SBC consume carry from the supplied flags.
// CMP/CMN/TST/TEQ write flags only, from a temporary.
func intALUCompute(op int, a, bOperand uint64, flagsIn uint8) (result uint64, flags uint8, writesValue bool) {
	carryIn := uint64(0)
	if flagsIn&flagC != 0 {
		carryIn = 1
	}

	addWithFlags := func(x, y, cin uint64) (uint64, uint8) {
		sum := x + y + cin
		var f uint8
		if sum < x || (cin == 1 && sum == x) {
			f |= flagC
		}
		if (^(x ^ y) & (x ^ sum)) >> 63 & 1 != 0 {
			f |= flagV
		}
		f |= nz(sum)
		return sum, f
	}
	subWithFlags := func(x, y, bin uint64) (uint64, uint8) {
		diff := x - y - bin
		var f uint8
		if x < y+bin || (bin == 1 && y == ^uint64(0)) {
			// borrow occurred; C is "no borrow" in this model (C set = no borrow)
		} else {
			f |= flagC
		}
		if (x ^ y) & (x ^ diff) >> 63 & 1 != 0 {
			f |= flagV
		}
		f |= nz(diff)
		return diff, f
	}

	switch op {
	case opADD:
		r, f := addWithFlags(a, bOperand, 0)
		return r, f, true
	case opSUB:
		r, f := subWithFlags(a, bOperand, 0)
		return r, f, true
	case opADC:
		r, f := addWithFlags(a, bOperand, carryIn)
		return r, f, true
	case opSBC:
		r, f := subWithFlags(a, bOperand, 1-carryIn)
		return r, f, true
	case opAND:
		r := a & bOperand
		return r, nz(r), true
	case opORR:
		r := a | bOperand
		return r, nz(r), true
	case opEOR:
		r := a ^ bOperand
		return r, nz(r), true
	case opBIC:
		r := a &^ bOperand
		return r, nz(r), true
	case opLSL:
		sh := bOperand & 63
		var c uint8
		if sh > 0 && sh <= 64 && (a>>(64-sh))&1 != 0 {
			c = flagC
		}
		r := a << sh
		return r, nz(r) | c, true
	case opLSR:
		sh := bOperand & 63
		var c uint8
		if sh > 0 && (a>>(sh-1))&1 != 0 {
			c = flagC
		}
		r := a >> sh
		return r, nz(r) | c, true
	case opASR:
		sh := bOperand & 63
		var c uint8
		if sh > 0 && (a>>(sh-1))&1 != 0 {
			c = flagC
		}
		r := uint64(int64(a) >> sh)
		return r, nz(r) | c, true
	case opROR:
		sh := bOperand & 63
		r := (a >> sh) | (a << (64 - sh))
		var c uint8
		if sh > 0 && (a>>(sh-1))&1 != 0 {
			c = flagC
		}
		return r, nz(r) | c, true
	case opINC:
		r, f := addWithFlags(a, 1, 0)
		return r, f, true
	case opDEC:
		r, f := subWithFlags(a, 1, 0)
		return r, f, true
	case opMOV:
		return bOperand, 0, true
	case opMVN:
		return ^bOperand, 0, true
	case opCMP:
		_, f := subWithFlags(a, bOperand, 0)
		return 0, f, false
	case opCMN:
		_, f := addWithFlags(a, bOperand, 0)
		return 0, f, false
	case opTST:
		r := a & bOperand
		return 0, nz(r), false
	case opTEQ:
		r := a ^ bOperand
		return 0, nz(r), false
	default:
		return 0, 0, false
	}
}

func nz(v uint64) uint8 {
	var f uint8
	if v == 0 {
		f |= flagZ
	}
	if v>>63&1 != 0 {
		f |= flagN
	}
	return f
}
