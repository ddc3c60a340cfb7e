package dispatch

import "github.com/archsim/simcore/internal/tomasulo/signalbus"

// StoreBuffer implements spec §4.E's store-buffer protocol: allocate,
// request the AGU once the base is ready, latch the resolved address,
// then assert StoreComplete once address and data are both ready.
// StoreComplete is not one-shot: it is re-asserted with the same tag,
// address and data on every cycle until commit frees the buffer. Freed by
// commit.
type StoreBuffer struct {
	ID  StationID
	AGU signalbus.AGUSourceID

	busy bool

	Base   Operand
	BaseSrcReg uint8
	Offset uint64
	Data   Operand
	DataSrcReg uint8
	RobTag uint8

	aguRequested bool
	Addr         uint64
	AddrReady    bool
	Segfault     bool

	Regs RegFallback
}

func NewStoreBuffer(id StationID, agu signalbus.AGUSourceID, regs RegFallback) *StoreBuffer {
	return &StoreBuffer{ID: id, AGU: agu, Regs: regs}
}

type StoreAllocateArgs struct {
	Base, Data     signalbus.RegPort
	BaseReg, DataReg uint8
	Offset         uint64
	RobTag         uint8
}

func (sb *StoreBuffer) Allocate(a StoreAllocateArgs) {
	sb.busy = true
	sb.Base = fromPort(a.Base)
	sb.BaseSrcReg = a.BaseReg
	sb.Data = fromPort(a.Data)
	sb.DataSrcReg = a.DataReg
	sb.Offset = a.Offset
	sb.RobTag = a.RobTag
	sb.aguRequested = false
	sb.AddrReady = false
	sb.Segfault = false
}

func (sb *StoreBuffer) Busy() bool { return sb.busy }

func (sb *StoreBuffer) Evaluate(b *signalbus.Bus) {
	b.StationBusy[sb.ID] = sb.busy
	if !sb.busy {
		return
	}
	if sb.Base.Valid && !sb.AddrReady && !sb.aguRequested {
		b.AGURequest[sb.AGU] = true
	}
	if sb.AddrReady && sb.Data.Valid {
		b.StoreComplete[sb.ID] = signalbus.StoreCompleteValue{Valid: true, Tag: sb.RobTag, Addr: sb.Addr, Data: sb.Data.Value}
	}
}

func (sb *StoreBuffer) ClockEdge(b *signalbus.Bus) {
	if !sb.busy {
		if b.StationFree[sb.ID] {
			// already idle; nothing to do
		}
		return
	}

	sb.Base.snoopCDB(b)
	sb.Data.snoopCDB(b)
	if !sb.Base.Valid && sb.Regs != nil {
		if tag, valid := sb.Regs.Qi(sb.BaseSrcReg); !valid || tag != sb.Base.Qi {
			sb.Base.Value, sb.Base.Valid = sb.Regs.Value(sb.BaseSrcReg), true
		}
	}
	if !sb.Data.Valid && sb.Regs != nil {
		if tag, valid := sb.Regs.Qi(sb.DataSrcReg); !valid || tag != sb.Data.Qi {
			sb.Data.Value, sb.Data.Valid = sb.Regs.Value(sb.DataSrcReg), true
		}
	}

	if sb.Base.Valid && !sb.AddrReady && !sb.aguRequested {
		sb.aguRequested = true
	}
	if sb.aguRequested && b.AGUDone[sb.AGU] {
		sb.Addr = b.AGUAddr[sb.AGU]
		sb.Segfault = b.AGUFault[sb.AGU]
		sb.AddrReady = true
	}

	if b.Flush {
		sb.busy = false
		return
	}
	if b.StationFree[sb.ID] {
		sb.busy = false
	}
}

func (sb *StoreBuffer) Reset() { *sb = StoreBuffer{ID: sb.ID, AGU: sb.AGU, Regs: sb.Regs} }
