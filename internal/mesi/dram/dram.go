// Package dram is Core B's main memory: a byte array behind a
// line-granular fetch/write-back handshake, addressed in 4-byte words
// (spec's DRAM word size) and accessed a bus.LineBytes line at a time.
package dram

import (
	"fmt"
	"sync"

	"github.com/archsim/simcore/internal/mesi/bus"
)

// DRAM is the single shared memory backing every L1's misses.
type DRAM struct {
	mu  sync.Mutex
	mem []byte
}

// New allocates a zeroed DRAM of the given byte size.
func New(size int) *DRAM { return &DRAM{mem: make([]byte, size)} }

func lineBase(addr uint64) uint64 { return addr &^ (bus.LineBytes - 1) }

// Fetch returns the bus.LineBytes-aligned line containing addr.
// Implements bus.DRAMBackend.
func (d *DRAM) Fetch(addr uint64) [bus.LineBytes]byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	var line [bus.LineBytes]byte
	base := lineBase(addr)
	copy(line[:], d.mem[base:base+bus.LineBytes])
	return line
}

// WriteBack stores a dirty line evicted from an L1 cache.
// Implements bus.DRAMBackend.
func (d *DRAM) WriteBack(addr uint64, data [bus.LineBytes]byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	base := lineBase(addr)
	copy(d.mem[base:base+bus.LineBytes], data[:])
}

// ReadWord and WriteWord give scenario setup (simconfig's DRAM seed) and
// observers direct 4-byte-word access without going through a cache.
func (d *DRAM) ReadWord(addr uint64) uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	base := addr &^ 3
	return uint32(d.mem[base]) | uint32(d.mem[base+1])<<8 | uint32(d.mem[base+2])<<16 | uint32(d.mem[base+3])<<24
}

func (d *DRAM) WriteWord(addr uint64, v uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	base := addr &^ 3
	d.mem[base] = byte(v)
	d.mem[base+1] = byte(v >> 8)
	d.mem[base+2] = byte(v >> 16)
	d.mem[base+3] = byte(v >> 24)
}

// Size reports the DRAM's byte capacity.
func (d *DRAM) Size() int { return len(d.mem) }

// Bytes returns a copy of the full backing store, for snapshot save/restore.
func (d *DRAM) Bytes() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]byte, len(d.mem))
	copy(out, d.mem)
	return out
}

// LoadBytes replaces the backing store's contents. len(b) must equal Size().
func (d *DRAM) LoadBytes(b []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	copy(d.mem, b)
}

func (d *DRAM) String() string {
	return fmt.Sprintf("dram(%d bytes)", len(d.mem))
}
