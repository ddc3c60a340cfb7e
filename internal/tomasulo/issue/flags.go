package issue

import "github.com/archsim/simcore/internal/tomasulo/signalbus"

// Flag bit positions within the packed 4-bit flags value (N,Z,C,V).
const (
	FlagN uint8 = 1 << 3
	FlagZ uint8 = 1 << 2
	FlagC uint8 = 1 << 1
	FlagV uint8 = 1 << 0
)

// FlagsUnit holds the one architectural flags register plus its rename
// tag, and resolves consumers through the same three-tier sequence as
// register operands (spec §4.D): architectural value, else ROB-forwarded
// if ready, else wait for CDB.
type FlagsUnit struct {
	value   uint8
	qi      uint8
	qiValid bool

	CommitWriteEnable bool
	CommitValue       uint8
	CommitTag         uint8

	IssueTagWriteEnable bool
	IssueTagWriteTag    uint8

	// Rob is consulted directly for the middle tier of the three-tier
	// resolution sequence (the ROB entry for the pending flags tag may
	// already be ready, just not yet committed) — a direct reference
	// rather than a bus port, matching Rob.Forward's rationale.
	Rob *Rob
}

func NewFlagsUnit(rob *Rob) *FlagsUnit { return &FlagsUnit{Rob: rob} }

// Evaluate publishes the architectural flags, the pending tag, and (if
// resolvable) a forwarded value for consumers that need flags this cycle.
func (f *FlagsUnit) Evaluate(b *signalbus.Bus) {
	b.FlagsArch = f.value
	b.FlagsQiValid = f.qiValid
	b.FlagsQi = f.qi
	if f.qiValid && f.Rob != nil {
		if v, ready := f.Rob.ForwardFlags(f.qi); ready {
			b.FlagsForward = true
			b.FlagsForwardV = v
		}
	}
}

func (f *FlagsUnit) ClockEdge(b *signalbus.Bus) {
	if f.CommitWriteEnable {
		f.value = f.CommitValue
		if f.qiValid && f.qi == f.CommitTag {
			f.qiValid = false
		}
	}
	if f.IssueTagWriteEnable {
		f.qi = f.IssueTagWriteTag
		f.qiValid = true
	}
	if b.Flush {
		f.qiValid = false
	}
	f.CommitWriteEnable = false
	f.IssueTagWriteEnable = false
}

func (f *FlagsUnit) Reset() { *f = FlagsUnit{Rob: f.Rob} }

func (f *FlagsUnit) Value() uint8          { return f.value }
func (f *FlagsUnit) Qi() (uint8, bool)     { return f.qi, f.qiValid }
