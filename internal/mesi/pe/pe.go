// Package pe models the four processing elements driving Core B's
// coherence traffic. An instruction set for the PEs is out of scope
// (spec.md §2); Driver is the minimal seam a test or scenario needs to
// generate a load/store stream.
package pe

// Request is one memory access a PE wants its L1 to perform.
type Request struct {
	Addr    uint64
	IsWrite bool
	Value   byte
}

// Driver produces a PE's request stream one operation at a time. Next
// returns ok=false once the PE has no more work, and must keep returning
// false afterward (system.System stops polling a driver once it has
// returned false, and polls it again after System.Reset).
type Driver interface {
	Next() (Request, bool)
}

// ScriptedDriver replays a fixed sequence of requests, in order. It is
// the only Driver this package provides — enough to exercise the
// coherence protocol in tests without inventing an instruction set.
type ScriptedDriver struct {
	ops []Request
	idx int
}

// NewScriptedDriver returns a driver that plays back ops in order.
func NewScriptedDriver(ops []Request) *ScriptedDriver {
	return &ScriptedDriver{ops: ops}
}

func (d *ScriptedDriver) Next() (Request, bool) {
	if d.idx >= len(d.ops) {
		return Request{}, false
	}
	r := d.ops[d.idx]
	d.idx++
	return r, true
}

// Done reports whether the script is exhausted.
func (d *ScriptedDriver) Done() bool { return d.idx >= len(d.ops) }

// Reset rewinds the script to its start.
func (d *ScriptedDriver) Reset() { d.idx = 0 }
