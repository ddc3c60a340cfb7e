package execute

import "github.com/archsim/simcore/internal/tomasulo/signalbus"

// CDB requester indices (spec §4.H fixed priority order: IntALU, FPALU,
// IntMUL, FPMUL, LB0, LB1, LB2). Mirrored from package cdb's own constants
// rather than imported, since execute has no other reason to depend on
// cdb and the indices are part of the bus contract, not cdb's internals.
const (
	ReqIntALU = 0
	ReqFPALU  = 1
	ReqIntMUL = 2
	ReqFPMUL  = 3
)

// SingleArbiter grants the lone reservation station feeding a functional
// unit that has no sibling RS to arbitrate against (FPALU, IntMUL, FPMUL,
// Branch) — trivial pass-through, kept as its own Component so every
// functional unit has a uniform "arbiter, then unit" pair in the
// coordinator's component list.
type SingleArbiter struct {
	RS     signalbus.StationID
	busy   bool // true while a non-pipelined unit is still processing
}

func NewSingleArbiter(rs signalbus.StationID) *SingleArbiter { return &SingleArbiter{RS: rs} }

func (a *SingleArbiter) Evaluate(b *signalbus.Bus) {
	if a.busy {
		return
	}
	if b.StationRequest[a.RS] {
		b.StationGrantFU[a.RS] = true
	}
}
func (a *SingleArbiter) ClockEdge(b *signalbus.Bus) {}
func (a *SingleArbiter) Reset()                     { a.busy = false }

// SetBusy lets a multi-cycle unit tell its arbiter to stop granting new
// work while an operation is in flight (IntMUL/DIV, FPMUL/DIV/SQRT are
// non-pipelined: only one operation in the unit at a time).
func (a *SingleArbiter) SetBusy(v bool) { a.busy = v }
