// Package control gives both cores a single command surface: Reset, Step,
// StepUntil(n), StepIndefinitely, Stop. cmd/simcore drives either core
// through the same Core interface so the subcommand wiring doesn't need to
// know which architecture it's holding.
package control

import (
	"context"
	"fmt"

	"github.com/archsim/simcore/internal/mesi/system"
	"github.com/archsim/simcore/internal/tomasulo"
)

// Core is the minimal surface cmd/simcore needs from either simulator.
type Core interface {
	Step() error
	Reset()
	Halted() bool
}

// CommandKind names one of the control commands §6 of the architecture
// describes: a single cycle, a bounded run, an unbounded run, or a halt
// request.
type CommandKind int

const (
	CmdReset CommandKind = iota
	CmdStep
	CmdStepUntil
	CmdStepIndefinitely
	CmdStop
)

// Command is one control request. N is only meaningful for CmdStepUntil.
type Command struct {
	Kind CommandKind
	N    int
}

// TomasuloAdapter wraps tomasulo.Core behind the Core interface. Core.Step
// never fails on its own, but the adapter still returns an error once the
// core has halted, so a run loop driven purely through Core doesn't need a
// second Halted() check wedged between every Step call.
type TomasuloAdapter struct {
	Core *tomasulo.Core
}

func (a TomasuloAdapter) Step() error {
	if a.Core.Halted() {
		return fmt.Errorf("core halted")
	}
	a.Core.Step()
	return nil
}

func (a TomasuloAdapter) Reset()       { a.Core.Reset() }
func (a TomasuloAdapter) Halted() bool { return a.Core.Halted() }

// MesiAdapter wraps system.System behind the Core interface. A MESI system
// never halts on its own terms (§5 has no halt instruction); "Halted" here
// means quiescent — every PE's driver has run dry.
type MesiAdapter struct {
	System *system.System
}

func (a MesiAdapter) Step() error {
	if a.System.Done() {
		return fmt.Errorf("system quiescent")
	}
	a.System.Step()
	return nil
}

func (a MesiAdapter) Reset()       { a.System.Reset() }
func (a MesiAdapter) Halted() bool { return a.System.Done() }

// Run executes a single Command against a Core. StepIndefinitely runs until
// Halted() or ctx is cancelled, returning the number of cycles executed.
func Run(ctx context.Context, c Core, cmd Command) (cycles int, err error) {
	switch cmd.Kind {
	case CmdReset:
		c.Reset()
		return 0, nil
	case CmdStop:
		return 0, nil
	case CmdStep:
		if err := c.Step(); err != nil {
			return 0, err
		}
		return 1, nil
	case CmdStepUntil:
		for i := 0; i < cmd.N; i++ {
			if c.Halted() {
				return i, nil
			}
			if err := c.Step(); err != nil {
				return i, err
			}
		}
		return cmd.N, nil
	case CmdStepIndefinitely:
		n := 0
		for !c.Halted() {
			select {
			case <-ctx.Done():
				return n, ctx.Err()
			default:
			}
			if err := c.Step(); err != nil {
				return n, err
			}
			n++
		}
		return n, nil
	default:
		return 0, fmt.Errorf("unknown command kind %d", cmd.Kind)
	}
}
