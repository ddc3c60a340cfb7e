// Package memsys implements the data cache and the DRAM backing store
// shared with the instruction cache (spec §4.I, §3 "Data cache").
package memsys

import "encoding/binary"

// DRAM is the flat byte-addressable backing store behind both the
// instruction cache and the data cache. It has no timing of its own; the
// 50-cycle miss latency is modeled entirely by the cache components that
// front it (spec §4.B, §4.I: "same 50-cycle model").
type DRAM struct {
	mem []byte
}

// NewDRAM allocates a zeroed backing store of the given byte size.
func NewDRAM(size int) *DRAM {
	return &DRAM{mem: make([]byte, size)}
}

// ReadLine returns a copy of the LineBytes-byte line starting at addr,
// which must already be line-aligned.
func (d *DRAM) ReadLine(addr uint64) [LineBytes]byte {
	var out [LineBytes]byte
	copy(out[:], d.mem[addr:addr+LineBytes])
	return out
}

// WriteLine stores a full line back to addr, which must be line-aligned.
func (d *DRAM) WriteLine(addr uint64, line [LineBytes]byte) {
	copy(d.mem[addr:addr+LineBytes], line[:])
}

// ReadWord and WriteWord give the assembler/snapshot tooling direct access
// to the program image without going through a cache (spec §6: the
// program image is laid out at address 0 and fetched by word index).
func (d *DRAM) ReadWord(addr uint64) uint64 {
	return binary.LittleEndian.Uint64(d.mem[addr : addr+8])
}

func (d *DRAM) WriteWord(addr uint64, v uint64) {
	binary.LittleEndian.PutUint64(d.mem[addr:addr+8], v)
}

// Size reports the backing store's capacity in bytes.
func (d *DRAM) Size() int { return len(d.mem) }

// Bytes returns a copy of the full backing store, for snapshot save/restore.
func (d *DRAM) Bytes() []byte {
	out := make([]byte, len(d.mem))
	copy(out, d.mem)
	return out
}

// LoadBytes replaces the backing store's contents. len(b) must equal Size().
func (d *DRAM) LoadBytes(b []byte) { copy(d.mem, b) }

func getWord(b []byte) uint64 { return binary.LittleEndian.Uint64(b[:8]) }
func putWord(b []byte, v uint64) { binary.LittleEndian.PutUint64(b[:8], v) }
