// Package snapshot saves and restores a paused simulator session, the
// debugger convenience original_source exposes through
// TomasuloSimController / CpuTLPControlAPI's save/resume calls. This is a
// CLI-host affordance, not architectural state the simulated programs
// themselves can observe: gob-encoded, adapted from the teacher's
// pkg/result/checkpoint.go pattern.
package snapshot

import (
	"encoding/gob"
	"fmt"
	"os"

	"github.com/archsim/simcore/internal/mesi/counters"
	"github.com/archsim/simcore/internal/mesi/l1"
	"github.com/archsim/simcore/internal/mesi/system"
	"github.com/archsim/simcore/internal/tomasulo"
	"github.com/archsim/simcore/internal/tomasulo/issue"
)

// Tomasulo is everything needed to resume a Core A session at the cycle it
// was paused on: the DRAM image (program plus data), the architectural
// register file, and the cycle counter. Microarchitectural state in
// flight (reservation stations, the ROB, in-flight loads/stores) is not
// captured — a restore resumes at an instruction boundary, not mid-cycle,
// matching the CLI's "pause between cycles" invariant. The program counter
// is not captured either: Restore resets the core, so fetch starts again
// from address 0 with the restored registers, DRAM and cycle count.
type Tomasulo struct {
	DRAM      []byte
	Registers [issue.NumRegs]uint64
	Cycle     uint64
}

// CaptureTomasulo builds a Tomasulo snapshot of c's current state.
func CaptureTomasulo(c *tomasulo.Core) Tomasulo {
	return Tomasulo{
		DRAM:      c.DRAM.Bytes(),
		Registers: c.Regs.Values(),
		Cycle:     c.Coord.Cycle,
	}
}

// SaveTomasulo writes a Core A snapshot to path.
func SaveTomasulo(path string, c *tomasulo.Core) error {
	return save(path, CaptureTomasulo(c))
}

// LoadTomasulo reads a Core A snapshot and applies it to a freshly built
// core of the same DRAM size. The caller builds the core (tomasulo.NewCore)
// before calling Restore so buffer sizing stays the caller's decision.
func LoadTomasulo(path string, c *tomasulo.Core) error {
	var snap Tomasulo
	if err := load(path, &snap); err != nil {
		return err
	}
	return snap.Restore(c)
}

// Restore applies a captured snapshot onto c. c must already exist with a
// DRAM of exactly len(s.DRAM) bytes.
func (s Tomasulo) Restore(c *tomasulo.Core) error {
	if c.DRAM.Size() != len(s.DRAM) {
		return fmt.Errorf("snapshot DRAM size %d does not match core's %d", len(s.DRAM), c.DRAM.Size())
	}
	c.Reset()
	c.DRAM.LoadBytes(s.DRAM)
	for r, v := range s.Registers {
		c.Regs.SetValue(uint8(r), v)
	}
	c.Coord.Cycle = s.Cycle
	return nil
}

// Mesi is a paused Core B session: DRAM contents, each PE's cache array,
// and the traffic counters. PE driver progress (which script index each
// PE is on) is intentionally not captured — a restored session resumes
// coherence state but not a half-played request script, since scripts are
// supplied fresh by whatever scenario loads the snapshot.
type Mesi struct {
	DRAM     []byte
	Lines    [4][l1.NumLines]l1.Line
	Counters counters.Snapshot
	Cycle    int
}

// CaptureMesi builds a Mesi snapshot of s's current state.
func CaptureMesi(s *system.System) Mesi {
	var lines [4][l1.NumLines]l1.Line
	for i, pe := range s.PEs {
		lines[i] = pe.Lines()
	}
	return Mesi{
		DRAM:     s.DRAM.Bytes(),
		Lines:    lines,
		Counters: s.Counters.Snapshot(),
		Cycle:    s.Cycle(),
	}
}

// SaveMesi writes a Core B snapshot to path.
func SaveMesi(path string, s *system.System) error {
	return save(path, CaptureMesi(s))
}

// LoadMesi reads a Core B snapshot and applies it onto s.
func LoadMesi(path string, s *system.System) error {
	var snap Mesi
	if err := load(path, &snap); err != nil {
		return err
	}
	return snap.Restore(s)
}

// Restore applies a captured snapshot onto s. s must already exist with a
// DRAM of exactly len(m.DRAM) bytes. m.Cycle is not applied: s.Reset sets
// the step count to zero and Restore leaves it there.
func (m Mesi) Restore(s *system.System) error {
	if s.DRAM.Size() != len(m.DRAM) {
		return fmt.Errorf("snapshot DRAM size %d does not match system's %d", len(m.DRAM), s.DRAM.Size())
	}
	s.Reset()
	s.DRAM.LoadBytes(m.DRAM)
	for i, pe := range s.PEs {
		pe.LoadLines(m.Lines[i])
	}
	loadCounters(s.Counters, m.Counters)
	return nil
}

func loadCounters(c *counters.Counters, snap counters.Snapshot) {
	c.Reset()
	for i := 0; i < counters.NumPEs; i++ {
		c.Hits[i].Store(snap.Hits[i])
		c.Misses[i].Store(snap.Misses[i])
		c.Invalidations[i].Store(snap.Invalidations[i])
		c.Upgrades[i].Store(snap.Upgrades[i])
	}
	c.BusTransactions.Store(snap.BusTransactions)
	c.CacheToCacheTransfers.Store(snap.CacheToCacheTransfers)
	c.DRAMFetches.Store(snap.DRAMFetches)
	c.WriteBacks.Store(snap.WriteBacks)
}

func save(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return gob.NewEncoder(f).Encode(v)
}

func load(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return gob.NewDecoder(f).Decode(v)
}
