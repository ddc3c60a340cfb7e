package tomasulo_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/archsim/simcore/internal/tomasulo"
	"github.com/archsim/simcore/internal/tomasulo/asm"
	"github.com/archsim/simcore/internal/tomasulo/issue"
)

const invariantProgram = `
	MOVI R1, #3
	MOVI R2, #7
	ADD  R3, R1, R2
	SUB  R4, R2, R1
	MUL  R5, R3, R4
	CMP  R3, R4
	BGT  skip
	MOVI R6, #1
skip: ADDI R7, R5, #2
	STR  R7, [R1, #64]
	LDR  R8, [R1, #64]
	SWI
`

// Running the same program twice from a freshly built core must produce
// bit-identical architectural state and the same retirement count: nothing
// in the coordinator's component list may depend on real time or map
// iteration order.
func TestDeterminism(t *testing.T) {
	run := func() ([16]uint64, int) {
		words, err := asm.Assemble(invariantProgram)
		require.NoError(t, err)
		core := tomasulo.NewCore(1 << 16)
		for i, w := range words {
			core.DRAM.WriteWord(uint64(i*8), w)
		}
		for i := 0; i < 3000 && !core.Halted(); i++ {
			core.Step()
		}
		require.True(t, core.Halted())
		return core.Regs.Values(), core.Tracker.Len()
	}

	regsA, lenA := run()
	regsB, lenB := run()
	assert.Equal(t, regsA, regsB)
	assert.Equal(t, lenA, lenB)
}

// Commit is strictly in order: the pipeline tracker's recorded retirements
// must have non-decreasing commit cycles.
func TestCommitOrderMonotonic(t *testing.T) {
	words, err := asm.Assemble(invariantProgram)
	require.NoError(t, err)
	core := tomasulo.NewCore(1 << 16)
	for i, w := range words {
		core.DRAM.WriteWord(uint64(i*8), w)
	}
	for i := 0; i < 3000 && !core.Halted(); i++ {
		core.Step()
	}
	require.True(t, core.Halted())

	recent := core.Tracker.Recent()
	require.NotEmpty(t, recent)
	for i := 1; i < len(recent); i++ {
		assert.LessOrEqualf(t, recent[i-1].CommitCycle, recent[i].CommitCycle,
			"retirement %d committed before retirement %d", i, i-1)
	}
}

// Rename-uniqueness: at any cycle, at most one architectural register may
// hold a given ROB tag as its pending producer (Qi). Two registers racing
// to claim the same tag would mean the register file handed out a rename
// that does not uniquely identify its producing instruction.
func TestRenameUniqueness(t *testing.T) {
	words, err := asm.Assemble(invariantProgram)
	require.NoError(t, err)
	core := tomasulo.NewCore(1 << 16)
	for i, w := range words {
		core.DRAM.WriteWord(uint64(i*8), w)
	}
	for i := 0; i < 3000 && !core.Halted(); i++ {
		core.Step()

		owner := map[uint8]uint8{}
		for r := uint8(0); r < issue.NumRegs; r++ {
			tag, valid := core.Regs.Qi(r)
			if !valid {
				continue
			}
			e := core.Rob.Entry(tag)
			if !e.Busy {
				continue
			}
			info, ok := tomasulo.Decode(tomasulo.OpCode(e.Opcode))
			if !ok || !info.WritesRd {
				continue
			}
			if prev, taken := owner[tag]; taken {
				t.Fatalf("cycle %d: ROB tag %d claimed as pending producer by both R%d and R%d", i, tag, prev, r)
			}
			owner[tag] = r
		}
	}
}

// Every ROB entry the Rob reports as Ready must also be Busy: the zero
// value of RobEntry leaves both false, and no code path may set Ready on an
// entry it hasn't also marked Busy first.
func TestROBReadyImpliesBusy(t *testing.T) {
	words, err := asm.Assemble(invariantProgram)
	require.NoError(t, err)
	core := tomasulo.NewCore(1 << 16)
	for i, w := range words {
		core.DRAM.WriteWord(uint64(i*8), w)
	}
	for i := 0; i < 3000 && !core.Halted(); i++ {
		core.Step()
		for tag := 0; tag < issue.RobSize; tag++ {
			e := core.Rob.Entry(uint8(tag))
			if e.Ready {
				assert.Truef(t, e.Busy, "ROB tag %d is Ready but not Busy at cycle %d", tag, i)
			}
		}
	}
}
