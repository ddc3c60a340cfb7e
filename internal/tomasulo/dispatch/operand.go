// Package dispatch implements the reservation stations, store buffers and
// load buffers of the wait/dispatch stage (spec §4.E), sharing a common
// operand-resolution protocol (spec §9's "single concrete type
// parameterized by a small enum" design note).
package dispatch

import "github.com/archsim/simcore/internal/tomasulo/signalbus"

// Operand is one Vj/Vk-style slot: either already valid, or waiting on a
// producer tag. Shared by reservation-station and store/load-buffer
// operands.
type Operand struct {
	Value uint64
	Qi    uint8
	Valid bool
}

// fromPort builds an Operand from a register-file (or immediate) read.
func fromPort(p signalbus.RegPort) Operand {
	if !p.QiValid {
		return Operand{Value: p.Value, Valid: true}
	}
	return Operand{Qi: p.Qi, Valid: false}
}

// snoopCDB applies the three-tier resolution's CDB tier: if this operand
// is waiting on tag t and either bus broadcasts t, latch the value.
func (o *Operand) snoopCDB(b *signalbus.Bus) {
	if o.Valid {
		return
	}
	if b.CDBA.Valid && b.CDBA.Tag == o.Qi {
		o.Value, o.Valid = b.CDBA.Value, true
		return
	}
	if b.CDBB.Valid && b.CDBB.Tag == o.Qi {
		o.Value, o.Valid = b.CDBB.Value, true
	}
}
