package execute

import "math"

import "github.com/archsim/simcore/internal/tomasulo/signalbus"

const (
	opFADD = iota
	opFSUB
	opFCOPYSIGN
	opFNEG
	opFABS
	opCDTI
	opCDTD
	opFROUND
	opFTRUNC
	opFFLOOR
	opFCEIL
	opFCMP
	opFCMN
	opFCMPS
)

// fpStage is one pipeline register of the three-stage FPALU.
type fpStage struct {
	valid  bool
	op     int
	robTag uint8
	a, b   uint64
}

// FPALU is a three-stage pipeline (spec §4.G): each clock edge advances
// stage1->stage2->stage3/output-hold; output-hold drives the CDB request
// and is released only when accepted.
type FPALU struct {
	RS    signalbus.StationID
	OpMap func(uint8) int

	s1, s2, s3 fpStage
	held       bool
	heldVal    signalbus.CDBValue
}

func NewFPALU(rs signalbus.StationID, opMap func(uint8) int) *FPALU {
	return &FPALU{RS: rs, OpMap: opMap}
}

func (u *FPALU) Evaluate(b *signalbus.Bus) {
	if u.held {
		b.CDBRequest[ReqFPALU] = true
		b.CDBValue[ReqFPALU] = u.heldVal
		return
	}
	if u.s3.valid {
		result, flags, writesValue := fpaluCompute(u.s3.op, u.s3.a, u.s3.b)
		cv := signalbus.CDBValue{Valid: true, Tag: u.s3.robTag}
		if writesValue {
			cv.Value = result
		}
		if isFPFlagsOp(u.s3.op) {
			cv.FlagsValid = true
			cv.Flags = flags
		}
		b.CDBRequest[ReqFPALU] = true
		b.CDBValue[ReqFPALU] = cv
	}
	if b.StationGrantFU[u.RS] {
		// a request is being admitted into stage 1 this cycle
	}
}

func (u *FPALU) ClockEdge(b *signalbus.Bus) {
	if u.held {
		if !b.CDBStall[ReqFPALU] {
			u.held = false
		}
	} else if u.s3.valid && b.CDBStall[ReqFPALU] {
		u.held = true
		u.heldVal = b.CDBValue[ReqFPALU]
	}

	u.s3 = u.s2
	u.s2 = u.s1
	u.s1 = fpStage{}
	if b.StationGrantFU[u.RS] {
		op := b.StationOperands[u.RS]
		u.s1 = fpStage{valid: true, op: u.OpMap(op.Opcode), robTag: op.RobTag, a: op.Vj, b: op.Vk}
	}

	if b.Flush {
		u.s1, u.s2, u.s3 = fpStage{}, fpStage{}, fpStage{}
		u.held = false
	}
}

func (u *FPALU) Reset() { *u = FPALU{RS: u.RS, OpMap: u.OpMap} }

func isFPFlagsOp(op int) bool {
	switch op {
	case opFCMP, opFCMN, opFCMPS:
		return true
	}
	return false
}

// fpaluCompute implements FADD/FSUB/sign ops/rounding conversions/FCMP.
// FCMP sets N=(a<b), Z=(a==b), C=(a>=b), V=unordered.
func fpaluCompute(op int, av, bv uint64) (result uint64, flags uint8, writesValue bool) {
	a := math.Float64frombits(av)
	b := math.Float64frombits(bv)

	switch op {
	case opFADD:
		return math.Float64bits(a + b), 0, true
	case opFSUB:
		return math.Float64bits(a - b), 0, true
	case opFCOPYSIGN:
		return math.Float64bits(math.Copysign(a, b)), 0, true
	case opFNEG:
		return math.Float64bits(-b), 0, true
	case opFABS:
		return math.Float64bits(math.Abs(b)), 0, true
	case opCDTI:
		return uint64(int64(b)), 0, true
	case opCDTD:
		return math.Float64bits(float64(int64(bv))), 0, true
	case opFROUND:
		return math.Float64bits(math.Round(b)), 0, true
	case opFTRUNC:
		return math.Float64bits(math.Trunc(b)), 0, true
	case opFFLOOR:
		return math.Float64bits(math.Floor(b)), 0, true
	case opFCEIL:
		return math.Float64bits(math.Ceil(b)), 0, true
	case opFCMP, opFCMN, opFCMPS:
		var f uint8
		unordered := math.IsNaN(a) || math.IsNaN(b)
		if unordered {
			f |= flagV
		} else {
			if a < b {
				f |= flagN
			}
			if a == b {
				f |= flagZ
			}
			if a >= b {
				f |= flagC
			}
		}
		return 0, f, false
	default:
		return 0, 0, false
	}
}
