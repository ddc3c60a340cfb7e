package tomasulo

// RetirementRecord captures the cycle at which one instruction passed
// each pipeline milestone, for post-mortem pipeline diagrams (the CLI's
// "trace" rendering). Mirrors the retirement log the original simulator
// kept per instruction (apps/cpu_tomasulo/simulation/PipelineTracker).
type RetirementRecord struct {
	PC           uint64
	Opcode       OpCode
	FetchCycle   uint64
	IssueCycle   uint64
	ExecuteCycle uint64
	CommitCycle  uint64
}

// pipelineTrackerDepth is how many retirements PipelineTracker remembers.
const pipelineTrackerDepth = 64

// PipelineTracker is a fixed-depth ring buffer of the most recently
// retired instructions' per-stage cycle numbers. It observes the core
// from the outside — callers append a record each time Core.Rob commits
// an entry — and never influences simulation state itself.
type PipelineTracker struct {
	records [pipelineTrackerDepth]RetirementRecord
	next    int
	filled  bool
}

// NewPipelineTracker returns an empty tracker.
func NewPipelineTracker() *PipelineTracker { return &PipelineTracker{} }

// Record appends a completed retirement, overwriting the oldest entry
// once the buffer is full.
func (t *PipelineTracker) Record(r RetirementRecord) {
	t.records[t.next] = r
	t.next = (t.next + 1) % pipelineTrackerDepth
	if t.next == 0 {
		t.filled = true
	}
}

// Recent returns the recorded retirements in oldest-to-newest order.
func (t *PipelineTracker) Recent() []RetirementRecord {
	if !t.filled {
		out := make([]RetirementRecord, t.next)
		copy(out, t.records[:t.next])
		return out
	}
	out := make([]RetirementRecord, pipelineTrackerDepth)
	for i := 0; i < pipelineTrackerDepth; i++ {
		out[i] = t.records[(t.next+i)%pipelineTrackerDepth]
	}
	return out
}

// Len reports how many retirements are currently held.
func (t *PipelineTracker) Len() int {
	if t.filled {
		return pipelineTrackerDepth
	}
	return t.next
}

// Reset empties the tracker.
func (t *PipelineTracker) Reset() { *t = PipelineTracker{} }
