package execute

import "github.com/archsim/simcore/internal/tomasulo/signalbus"

const (
	opB = iota
	opBEQ
	opBNE
	opBLT
	opBGT
	opBUN
	opBORD
)

// BranchExecutor is combinational (spec §4.G): condition table B always,
// BEQ=Z, BNE=!Z, BLT=N!=V, BGT=!Z && N==V, BUN=V, BORD=!V. Produces
// taken/target/mispredict written directly to the ROB snoop bus, not
// through the CDB.
type BranchExecutor struct {
	RS    signalbus.StationID
	OpMap func(uint8) int

	// PredictedTaken/PredictedTarget are read from the ROB entry
	// (allocated with the statically-predicted outcome); supplied by the
	// caller each cycle via Predicted, since the branch RS snapshot on
	// the bus doesn't carry prediction bits.
	Predicted       func(robTag uint8) (taken bool, target uint64)
	SequentialNext  func(robTag uint8) uint64
}

func NewBranchExecutor(rs signalbus.StationID, opMap func(uint8) int, predicted func(uint8) (bool, uint64), seqNext func(uint8) uint64) *BranchExecutor {
	return &BranchExecutor{RS: rs, OpMap: opMap, Predicted: predicted, SequentialNext: seqNext}
}

func (u *BranchExecutor) Evaluate(b *signalbus.Bus) {
	if !b.StationGrantFU[u.RS] {
		return
	}
	op := b.StationOperands[u.RS]
	taken := evalCondition(u.OpMap(op.Opcode), op.FlagsIn)

	var target uint64
	if taken {
		target = op.Vk // branch target carried as the immediate operand
	} else {
		target = u.SequentialNext(op.RobTag)
	}

	predTaken, predTarget := u.Predicted(op.RobTag)
	mis := predTaken != taken || (taken && predTarget != target)

	b.Branch = signalbus.BranchResult{Valid: true, Tag: op.RobTag, Taken: taken, Target: target, Mispredict: mis}
}

func (u *BranchExecutor) ClockEdge(b *signalbus.Bus) {}
func (u *BranchExecutor) Reset()                     {}

func evalCondition(op int, flags uint8) bool {
	n := flags&flagN != 0
	z := flags&flagZ != 0
	v := flags&flagV != 0
	switch op {
	case opB:
		return true
	case opBEQ:
		return z
	case opBNE:
		return !z
	case opBLT:
		return n != v
	case opBGT:
		return !z && n == v
	case opBUN:
		return v
	case opBORD:
		return !v
	default:
		return false
	}
}
