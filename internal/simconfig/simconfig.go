// Package simconfig parses the TOML scenario files cmd/simcore loads before
// driving either core: a program image, an initial register file, memory
// bounds, a DRAM seed, and how many cycles to trace. Keeping this parsing
// out of cmd/simcore's cobra handlers is what lets those stay thin wrappers
// around control.Run, matching the teacher's own cmd/z80opt split between
// flag parsing and the search/stoke packages doing the actual work.
package simconfig

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// RegisterImage is a sparse initial register load: register name ("R0"-"R12",
// "UPPER", "LOWER", "PEID") to starting value. Any register not
// listed keeps its power-on default (all zero, except LOWER which the core
// itself initializes to all-ones).
type RegisterImage map[string]uint64

// DRAMWord is one seeded word: a byte offset and the value to place there
// before the first Step. Core A stores all 64 bits; Core B stores only the
// low 32 bits, as one 4-byte word.
type DRAMWord struct {
	Addr  uint64 `toml:"addr"`
	Value uint64 `toml:"value"`
}

// Tomasulo is a Core A scenario file.
type Tomasulo struct {
	Program      string         `toml:"program"`       // path to an assembly source file (internal/tomasulo/asm grammar)
	DRAMBytes    int            `toml:"dram_bytes"`
	Registers    RegisterImage  `toml:"registers"`
	DRAMSeed     []DRAMWord     `toml:"dram_seed"`
	TraceCycles  int            `toml:"trace_cycles"`  // how many retirements to keep resident beyond PipelineTracker's own ring depth; informational only
}

// LoadTomasulo reads and parses a Core A scenario file.
func LoadTomasulo(path string) (*Tomasulo, error) {
	var cfg Tomasulo
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("parsing scenario %s: %w", path, err)
	}
	if cfg.DRAMBytes == 0 {
		cfg.DRAMBytes = 1 << 20
	}
	return &cfg, nil
}

// PEScript is one processing element's fixed request script (pe.Request
// without importing the mesi package here, to keep simconfig dependency-
// free of the simulator internals it's merely describing).
type PEScript struct {
	Addr    uint64 `toml:"addr"`
	Write   bool   `toml:"write"`
	Value   byte   `toml:"value"`
}

// Mesi is a Core B scenario file: one script per PE, plus a DRAM seed.
type Mesi struct {
	DRAMBytes   int                    `toml:"dram_bytes"`
	DRAMSeed    []DRAMWord             `toml:"dram_seed"`
	Scripts     map[string][]PEScript  `toml:"scripts"` // keyed "pe0".."pe3"
	TraceCycles int                    `toml:"trace_cycles"`
}

// LoadMesi reads and parses a Core B scenario file.
func LoadMesi(path string) (*Mesi, error) {
	var cfg Mesi
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("parsing scenario %s: %w", path, err)
	}
	if cfg.DRAMBytes == 0 {
		cfg.DRAMBytes = 1 << 16
	}
	return &cfg, nil
}
