// Package cdb implements the common-data-bus arbiter and the two buses it
// drives (spec §4.H).
package cdb

import "github.com/archsim/simcore/internal/tomasulo/signalbus"

const (
	ReqIntALU = 0
	ReqFPALU  = 1
	ReqIntMUL = 2
	ReqFPMUL  = 3
	ReqLB0    = 4
	ReqLB1    = 5
	ReqLB2    = 6
	numReq    = 7
)

// Arbiter picks up to two winners per cycle among the seven potential
// requesters, in fixed priority order, and drives CDB_A and CDB_B.
// Everything else in Evaluate/ClockEdge is trivial pass-through so the
// component holds no latched state of its own.
type Arbiter struct{}

func NewArbiter() *Arbiter { return &Arbiter{} }

func (a *Arbiter) Evaluate(b *signalbus.Bus) {
	won := 0
	for i := 0; i < numReq; i++ {
		if !b.CDBRequest[i] {
			continue
		}
		if won == 0 {
			b.CDBA = b.CDBValue[i]
			won++
		} else if won == 1 {
			b.CDBB = b.CDBValue[i]
			won++
		} else {
			b.CDBStall[i] = true
		}
	}
}

func (a *Arbiter) ClockEdge(b *signalbus.Bus) {}
func (a *Arbiter) Reset()                     {}
