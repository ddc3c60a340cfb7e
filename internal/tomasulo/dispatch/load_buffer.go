package dispatch

import "github.com/archsim/simcore/internal/tomasulo/signalbus"

// loadPhase tracks a load buffer's progress through AGU -> memory -> CDB
// (spec §4.E).
type loadPhase uint8

const (
	loadIdle loadPhase = iota
	loadWaitBase
	loadWaitAGU
	loadWaitMem
	loadWaitCDB
	loadDone
)

// LoadBuffer implements spec §4.E's load-buffer protocol.
type LoadBuffer struct {
	ID  StationID
	AGU signalbus.AGUSourceID

	phase loadPhase

	Base    Operand
	BaseSrcReg uint8
	Offset  uint64
	RobTag  uint8
	IsByte  bool

	Addr     uint64
	Segfault bool
	Value    uint64
	Exception uint8

	cdbIdx int // index into b.CDBRequest (4,5,6 for LB0,LB1,LB2)

	Regs RegFallback
}

func NewLoadBuffer(id StationID, agu signalbus.AGUSourceID, cdbIdx int, regs RegFallback) *LoadBuffer {
	return &LoadBuffer{ID: id, AGU: agu, cdbIdx: cdbIdx, Regs: regs}
}

type LoadAllocateArgs struct {
	Base    signalbus.RegPort
	BaseReg uint8
	Offset  uint64
	RobTag  uint8
	IsByte  bool
}

func (lb *LoadBuffer) Allocate(a LoadAllocateArgs) {
	lb.phase = loadWaitBase
	lb.Base = fromPort(a.Base)
	lb.BaseSrcReg = a.BaseReg
	lb.Offset = a.Offset
	lb.RobTag = a.RobTag
	lb.IsByte = a.IsByte
}

func (lb *LoadBuffer) Busy() bool { return lb.phase != loadIdle }

func (lb *LoadBuffer) Evaluate(b *signalbus.Bus) {
	b.StationBusy[lb.ID] = lb.Busy()
	switch lb.phase {
	case loadWaitBase, loadWaitAGU:
		if lb.Base.Valid {
			b.AGURequest[lb.AGU] = true
		}
	case loadWaitMem:
		if !b.MemRequest {
			b.MemRequest = true
			b.MemRequester = lb.ID
			b.MemAddr = lb.Addr
			b.MemIsWrite = false
			b.MemIsByte = lb.IsByte
		}
	case loadWaitCDB:
		b.CDBRequest[lb.cdbIdx] = true
		b.CDBValue[lb.cdbIdx] = signalbus.CDBValue{
			Valid:     true,
			Tag:       lb.RobTag,
			Value:     lb.Value,
			Exception: lb.Exception,
		}
	}
}

func (lb *LoadBuffer) ClockEdge(b *signalbus.Bus) {
	if lb.phase == loadIdle {
		return
	}

	lb.Base.snoopCDB(b)
	if !lb.Base.Valid && lb.Regs != nil {
		if tag, valid := lb.Regs.Qi(lb.BaseSrcReg); !valid || tag != lb.Base.Qi {
			lb.Base.Value, lb.Base.Valid = lb.Regs.Value(lb.BaseSrcReg), true
		}
	}

	switch lb.phase {
	case loadWaitBase:
		if lb.Base.Valid {
			lb.phase = loadWaitAGU
		}
	case loadWaitAGU:
		if b.AGUDone[lb.AGU] {
			lb.Addr = b.AGUAddr[lb.AGU]
			lb.Segfault = b.AGUFault[lb.AGU]
			if lb.Segfault {
				lb.Exception = 2
				lb.phase = loadWaitCDB
			} else {
				lb.phase = loadWaitMem
			}
		}
	case loadWaitMem:
		if b.MemDone && b.MemRequester == lb.ID {
			lb.Value = b.MemReadData
			lb.phase = loadWaitCDB
		}
	case loadWaitCDB:
		if (b.CDBA.Valid && b.CDBA.Tag == lb.RobTag) || (b.CDBB.Valid && b.CDBB.Tag == lb.RobTag) {
			lb.phase = loadDone
		}
	}

	if b.Flush {
		lb.phase = loadIdle
		return
	}
	if b.StationFree[lb.ID] {
		lb.phase = loadIdle
	}
}

func (lb *LoadBuffer) Reset() { *lb = LoadBuffer{ID: lb.ID, AGU: lb.AGU, cdbIdx: lb.cdbIdx, Regs: lb.Regs} }
