package tomasulo_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/archsim/simcore/internal/tomasulo"
	"github.com/archsim/simcore/internal/tomasulo/asm"
)

// buildAndRun assembles source at address 0, runs the core for up to
// maxCycles cycles (stopping early once halted) and returns it for
// inspection.
func buildAndRun(t *testing.T, source string, maxCycles int) *tomasulo.Core {
	t.Helper()
	words, err := asm.Assemble(source)
	require.NoError(t, err)

	core := tomasulo.NewCore(1 << 16)
	for i, w := range words {
		core.DRAM.WriteWord(uint64(i*8), w)
	}
	for i := 0; i < maxCycles && !core.Halted(); i++ {
		core.Step()
	}
	return core
}

func TestAssembleRoundTrip(t *testing.T) {
	words, err := asm.Assemble(`
		MOVI R1, #5
		ADD  R2, R1, R1
		SWI
	`)
	require.NoError(t, err)
	require.Len(t, words, 3)

	dec := tomasulo.DecodeWord(tomasulo.Word(words[0]))
	assert.Equal(t, tomasulo.OpMOVI, dec.Op)
	assert.EqualValues(t, 1, dec.Rd)
	assert.EqualValues(t, 5, int32(dec.Imm))

	dec = tomasulo.DecodeWord(tomasulo.Word(words[1]))
	assert.Equal(t, tomasulo.OpADD, dec.Op)
	assert.EqualValues(t, 2, dec.Rd)
	assert.EqualValues(t, 1, dec.Rn)
	assert.EqualValues(t, 1, dec.Rm)

	dec = tomasulo.DecodeWord(tomasulo.Word(words[2]))
	assert.Equal(t, tomasulo.OpSWI, dec.Op)
}

// RAW-hazard-forward: R3's producer (ADDI) consumes R2 the instant after
// R2 itself is produced, with no independent instructions between them to
// absorb the CDB round-trip latency, exercising the ROB-forward and CDB-
// snoop tiers of operand resolution.
func TestRAWHazardForwarding(t *testing.T) {
	core := buildAndRun(t, `
		MOVI R1, #5
		ADD  R2, R1, R1
		ADDI R3, R2, #1
		SWI
	`, 2000)

	require.True(t, core.Halted(), "program did not halt")
	assert.EqualValues(t, 10, core.Regs.Value(2))
	assert.EqualValues(t, 11, core.Regs.Value(3))
}

// Mispredict-recovery: a conditional branch statically predicted not-taken
// actually taken. The instruction fetched into its shadow (MOVI R2) must
// never commit, and execution must resume from the branch target.
func TestMispredictRecovery(t *testing.T) {
	core := buildAndRun(t, `
		MOVI   R1, #1
		CMPI   R1, #1
		BEQ    target
		MOVI   R2, #99
target: MOVI   R3, #7
		SWI
	`, 2000)

	require.True(t, core.Halted(), "program did not halt")
	assert.EqualValues(t, 0, core.Regs.Value(2), "wrong-path instruction must not commit")
	assert.EqualValues(t, 7, core.Regs.Value(3))
	assert.Equal(t, 1, core.FlushCount(), "exactly one flush event for the single mispredicted branch")
}

// Integer divide-by-zero: DIV raises exception code 3 at commit, halting
// the core before the following instruction (already fetched into its
// shadow, since nothing stalls fetch on an in-flight divide) ever commits.
func TestDivideByZeroException(t *testing.T) {
	core := buildAndRun(t, `
		MOVI R1, #10
		MOVI R2, #0
		DIV  R3, R1, R2
		MOVI R4, #99
		SWI
	`, 2000)

	require.True(t, core.Halted(), "program did not halt on divide-by-zero")
	assert.EqualValues(t, 0, core.Regs.Value(4), "instruction past the faulting divide must not commit")

	code, pc, ok := core.LastException()
	require.True(t, ok, "divide-by-zero must surface a committed exception")
	assert.EqualValues(t, 3, code)
	assert.EqualValues(t, 16, pc, "faulting PC must be the DIV instruction's own PC")
}

// Load-after-store: with enough independent instructions between the store
// and the load to the same address for the store to retire (stores commit
// strictly in program order), the load must observe the stored value.
func TestLoadAfterStore(t *testing.T) {
	var filler strings.Builder
	for i := 0; i < 80; i++ {
		filler.WriteString("NOP\n")
	}

	core := buildAndRun(t, `
		MOVI R1, #256
		MOVI R2, #42
		STR  R2, [R1, #0]
		`+filler.String()+`
		LDR  R3, [R1, #0]
		SWI
	`, 6000)

	require.True(t, core.Halted(), "program did not halt")
	assert.EqualValues(t, 42, core.Regs.Value(3))
	assert.Equal(t, 1, core.Cache.Misses(), "the store's fill is the only D-cache miss")
	assert.Equal(t, 1, core.Cache.Hits(), "the load hits the line the store already filled")
}

// Store-order: two stores to the same address, different values, in
// program order. Commit is strictly in order, so the architecturally
// visible value after both have retired must be the second store's value;
// the first store's value surviving would mean the stores committed (or
// were observed) out of order.
func TestStoreOrder(t *testing.T) {
	var filler strings.Builder
	for i := 0; i < 80; i++ {
		filler.WriteString("NOP\n")
	}

	core := buildAndRun(t, `
		MOVI R1, #256
		MOVI R2, #11
		STR  R2, [R1, #0]
		MOVI R3, #22
		STR  R3, [R1, #0]
		`+filler.String()+`
		LDR  R4, [R1, #0]
		SWI
	`, 6000)

	require.True(t, core.Halted(), "program did not halt")
	assert.EqualValues(t, 22, core.Regs.Value(4), "load must observe the later store's value")
}
