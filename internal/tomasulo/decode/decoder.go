// Package decode implements the decoder, the immediate extender, and the
// control unit (spec §4.C).
package decode

import (
	"github.com/archsim/simcore/internal/tomasulo"
	"github.com/archsim/simcore/internal/tomasulo/signalbus"
)

// Decoder is pure bit-slice extraction plus immediate widening, published
// onto the bus for the control unit to read (spec §4.C: "Decoder: pure
// bit-slice extraction").
type Decoder struct{}

func NewDecoder() *Decoder { return &Decoder{} }

func (d *Decoder) Evaluate(b *signalbus.Bus) {
	if !b.FetchValid {
		return
	}
	dec := tomasulo.DecodeWord(tomasulo.Word(b.FetchWord))
	b.DecodeValid = true
	b.RegReadAddrRn = dec.Rn
	b.RegReadAddrRm = dec.Rm
	b.RegReadAddrRdStore = dec.Rd
	b.Decode = signalbus.DecodedInstr{
		Op:              uint8(dec.Op),
		Rd:              dec.Rd,
		Rn:              dec.Rn,
		Rm:              dec.Rm,
		ImmExt:          tomasulo.ExtendImm(dec),
		Legal:           dec.Legal,
		Class:           uint8(dec.Info.Class),
		UseImm:          dec.Info.UseImm,
		WritesRd:        dec.Info.WritesRd,
		ModifiesFlags:   dec.Info.ModifiesFlags,
		NeedsFlags:      dec.Info.NeedsFlags,
		IsCMPOnly:       dec.Info.IsCMPOnly,
		IsUnconditional: dec.Info.IsUnconditional,
		IsUnary:         dec.Info.IsUnary,
		IsFP:            dec.Info.IsFP,
		NoExecute:       dec.Info.NoExecute,
	}
}

func (d *Decoder) ClockEdge(b *signalbus.Bus) {}
func (d *Decoder) Reset()                     {}
