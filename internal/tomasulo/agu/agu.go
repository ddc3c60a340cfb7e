// Package agu implements the address-generation arbiter and its two AGUs
// (spec §4.F).
package agu

import "github.com/archsim/simcore/internal/tomasulo/signalbus"

// requesters in fixed priority order: SB0, SB1, LB0, LB1, LB2.
var priority = [5]signalbus.AGUSourceID{
	signalbus.AGUSrcSB0, signalbus.AGUSrcSB1,
	signalbus.AGUSrcLB0, signalbus.AGUSrcLB1, signalbus.AGUSrcLB2,
}

// Arbiter gathers up to two requests per cycle in fixed priority order
// (stores first, to minimize commit-blocking) and dispatches them onto
// AGU0/AGU1 when free.
type Arbiter struct {
	// Operand is reported back by the requester the same cycle the grant
	// happens; the AGU itself asks the arbiter which source won each
	// slot, then pulls operands from the requester through this callback
	// (kept as a small indirection instead of duplicating per-source
	// operand fields on the bus).
	Operand func(src signalbus.AGUSourceID) (base, offset uint64, ok bool)
	Bounds  UpperLower

	slot0, slot1 signalbus.AGUSourceID
	busy0, busy1 bool
}

func NewArbiter(operand func(signalbus.AGUSourceID) (uint64, uint64, bool), bounds UpperLower) *Arbiter {
	return &Arbiter{Operand: operand, Bounds: bounds}
}

func (a *Arbiter) Evaluate(b *signalbus.Bus) {
	granted := 0
	for _, src := range priority {
		if !b.AGURequest[src] {
			continue
		}
		if granted == 0 {
			a.slot0, a.busy0 = src, true
			granted++
		} else if granted == 1 {
			a.slot1, a.busy1 = src, true
			granted++
		} else {
			break
		}
	}

	if a.busy0 {
		base, off, ok := a.Operand(a.slot0)
		if ok {
			a.compute(b, a.slot0, base, off)
		}
	}
	if a.busy1 {
		base, off, ok := a.Operand(a.slot1)
		if ok {
			a.compute(b, a.slot1, base, off)
		}
	}
}

func (a *Arbiter) ClockEdge(b *signalbus.Bus) {
	a.busy0, a.busy1 = false, false
}
func (a *Arbiter) Reset() { a.busy0, a.busy1 = false, false }

// UpperLower supplies the memory-bounds registers for the segfault check
// (spec §3: UPPER <= addr <= LOWER).
type UpperLower interface {
	Bounds() (upper, lower uint64)
}

func (a *Arbiter) compute(b *signalbus.Bus, src signalbus.AGUSourceID, base, offset uint64) {
	addr := base + offset
	var fault bool
	if a.Bounds != nil {
		upper, lower := a.Bounds.Bounds()
		fault = addr < upper || addr > lower
	}
	b.AGUDone[src] = true
	b.AGUAddr[src] = addr
	b.AGUFault[src] = fault
}
