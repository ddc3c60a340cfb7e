// Package system wires the four L1 controllers, the shared bus, and
// DRAM into a runnable Core B instance, and drives the four PEs'
// drivers concurrently one operation per Step.
package system

import (
	"sync"

	"github.com/archsim/simcore/internal/mesi"
	"github.com/archsim/simcore/internal/mesi/bus"
	"github.com/archsim/simcore/internal/mesi/counters"
	"github.com/archsim/simcore/internal/mesi/dram"
	"github.com/archsim/simcore/internal/mesi/l1"
	"github.com/archsim/simcore/internal/mesi/pe"
)

// System is a complete Core B instance.
type System struct {
	PEs      [bus.NumAgents]*l1.Controller
	Drivers  [bus.NumAgents]pe.Driver
	Bus      *bus.Bus
	DRAM     *dram.DRAM
	Counters *counters.Counters
	Log      *mesi.TransactionLog

	cycle int
	done  [bus.NumAgents]bool
}

// New builds a Core B system with the given DRAM size, one scripted
// driver per PE (scripts[i] may be empty for an idle PE).
func New(dramBytes int, scripts [bus.NumAgents][]pe.Request) *System {
	d := dram.New(dramBytes)
	cs := counters.New()
	log := mesi.NewTransactionLog()
	b := bus.New(d, cs, log)

	s := &System{Bus: b, DRAM: d, Counters: cs, Log: log}
	for i := 0; i < bus.NumAgents; i++ {
		s.PEs[i] = l1.New(i, b, cs)
		s.Drivers[i] = pe.NewScriptedDriver(scripts[i])
	}
	return s
}

// Step lets every PE whose driver still has work perform exactly one
// memory operation, concurrently, and reports whether any PE did
// anything this step.
func (s *System) Step() bool {
	var wg sync.WaitGroup
	var moved [bus.NumAgents]bool

	wg.Add(bus.NumAgents)
	for i := 0; i < bus.NumAgents; i++ {
		i := i
		go func() {
			defer wg.Done()
			if s.done[i] {
				return
			}
			req, ok := s.Drivers[i].Next()
			if !ok {
				s.done[i] = true
				return
			}
			if req.IsWrite {
				s.PEs[i].Write(req.Addr, req.Value)
			} else {
				s.PEs[i].Read(req.Addr)
			}
			moved[i] = true
		}()
	}
	wg.Wait()

	s.cycle++
	for _, m := range moved {
		if m {
			return true
		}
	}
	return false
}

// StepUntil advances the system n steps, stopping early once quiescent.
func (s *System) StepUntil(n int) {
	for i := 0; i < n; i++ {
		if !s.Step() {
			return
		}
	}
}

// RunUntilQuiescent steps the system until no PE has any remaining work,
// returning the number of steps taken. Safe to call on an
// already-quiescent system (returns 0 immediately).
func (s *System) RunUntilQuiescent() int {
	taken := 0
	for !s.Done() {
		s.Step()
		taken++
	}
	return taken
}

// Done reports whether every PE's driver is exhausted.
func (s *System) Done() bool {
	for _, d := range s.done {
		if !d {
			return false
		}
	}
	return true
}

// Cycle reports how many Step calls have run.
func (s *System) Cycle() int { return s.cycle }

// Reset restores every L1 and the counters to power-on state. DRAM
// contents and the transaction log are left untouched, matching the
// CLI's "reset architecture, keep memory image" scenario affordance.
func (s *System) Reset() {
	for i := range s.PEs {
		s.PEs[i].Reset()
		s.done[i] = false
	}
	s.Counters.Reset()
	s.cycle = 0
}
