// Package fetch implements the PC register, its mux/adder, and the
// instruction cache (spec §4.B).
package fetch

import "github.com/archsim/simcore/internal/tomasulo/signalbus"

// PC is the 64-bit program counter register. Evaluate exposes the
// currently-latched value for the rest of the fetch stage to read;
// ClockEdge latches the mux output (PC+8, or the commit redirect on
// Flush) unless StallIF holds it — Flush always overrides a stall (spec
// §4.B).
type PC struct {
	value uint64
}

func NewPC() *PC { return &PC{} }

func (p *PC) Evaluate(b *signalbus.Bus) {
	b.PC = p.value
}

// ClockEdge runs after every component's Evaluate for the cycle, so it
// sees the commit unit's final Flush/RedirectPC regardless of where PC
// sits in the component-list order.
func (p *PC) ClockEdge(b *signalbus.Bus) {
	if b.Halted {
		b.PCNext = p.value
		return
	}
	next := p.value + 8
	if b.Flush && b.RedirectOK {
		next = b.RedirectPC
	}
	b.PCNext = next
	if b.Flush || !b.StallIF {
		p.value = next
	}
}

func (p *PC) Reset() { p.value = 0 }
