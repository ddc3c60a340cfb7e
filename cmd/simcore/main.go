package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/archsim/simcore/internal/control"
	"github.com/archsim/simcore/internal/mesi/bus"
	"github.com/archsim/simcore/internal/mesi/pe"
	"github.com/archsim/simcore/internal/mesi/system"
	"github.com/archsim/simcore/internal/observe"
	"github.com/archsim/simcore/internal/simconfig"
	"github.com/archsim/simcore/internal/snapshot"
	"github.com/archsim/simcore/internal/tomasulo"
	"github.com/archsim/simcore/internal/tomasulo/asm"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "simcore",
		Short: "Cycle-accurate Tomasulo and MESI simulators",
	}

	rootCmd.AddCommand(tomasuloCmd(), mesiCmd())
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func tomasuloCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tomasulo",
		Short: "Out-of-order single-core simulator (Core A)",
	}
	cmd.AddCommand(tomasuloRunCmd(), tomasuloStepCmd(), tomasuloAssembleCmd())
	return cmd
}

func buildTomasuloCore(scenarioPath string) (*tomasulo.Core, *simconfig.Tomasulo, error) {
	cfg, err := simconfig.LoadTomasulo(scenarioPath)
	if err != nil {
		return nil, nil, err
	}

	core := tomasulo.NewCore(cfg.DRAMBytes)

	if cfg.Program != "" {
		src, err := os.ReadFile(cfg.Program)
		if err != nil {
			return nil, nil, fmt.Errorf("reading program %s: %w", cfg.Program, err)
		}
		words, err := asm.Assemble(string(src))
		if err != nil {
			return nil, nil, fmt.Errorf("assembling %s: %w", cfg.Program, err)
		}
		for i, w := range words {
			core.DRAM.WriteWord(uint64(i*8), w)
		}
	}
	for _, w := range cfg.DRAMSeed {
		core.DRAM.WriteWord(w.Addr, w.Value)
	}
	for name, v := range cfg.Registers {
		r, err := parseRegisterName(name)
		if err != nil {
			return nil, nil, err
		}
		core.Regs.SetValue(r, v)
	}

	return core, cfg, nil
}

func parseRegisterName(name string) (uint8, error) {
	switch name {
	case "UPPER":
		return 13, nil
	case "LOWER":
		return 14, nil
	case "PEID":
		return 15, nil
	}
	var n int
	if _, err := fmt.Sscanf(name, "R%d", &n); err != nil || n < 0 || n > 12 {
		return 0, fmt.Errorf("unknown register name %q", name)
	}
	return uint8(n), nil
}

func tomasuloRunCmd() *cobra.Command {
	var scenario string
	var cycles int
	var verbose bool
	var saveState string

	c := &cobra.Command{
		Use:   "run",
		Short: "Run a Core A scenario to completion or a cycle bound",
		RunE: func(cmd *cobra.Command, args []string) error {
			core, _, err := buildTomasuloCore(scenario)
			if err != nil {
				return err
			}
			a := control.TomasuloAdapter{Core: core}

			ran, err := control.Run(context.Background(), a, control.Command{Kind: control.CmdStepUntil, N: cycles})
			if err != nil && !core.Halted() {
				return err
			}
			if verbose {
				fmt.Printf("ran %d cycles, halted=%v\n", ran, core.Halted())
				observe.TomasuloException(os.Stdout, core)
				observe.TomasuloRegisters(os.Stdout, core)
				observe.TomasuloRetirements(os.Stdout, core)
			}
			if saveState != "" {
				if err := snapshot.SaveTomasulo(saveState, core); err != nil {
					return err
				}
			}
			return nil
		},
	}
	c.Flags().StringVar(&scenario, "scenario", "", "TOML scenario file (required)")
	c.Flags().IntVar(&cycles, "cycles", 10000, "Maximum cycles to run")
	c.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print registers and retirement trace after running")
	c.Flags().StringVar(&saveState, "dump-state", "", "Save a snapshot to this path after running")
	c.MarkFlagRequired("scenario")
	return c
}

func tomasuloStepCmd() *cobra.Command {
	var scenario string
	var n int
	var loadState string

	c := &cobra.Command{
		Use:   "step",
		Short: "Advance a Core A scenario by a fixed number of cycles and print its state",
		RunE: func(cmd *cobra.Command, args []string) error {
			core, _, err := buildTomasuloCore(scenario)
			if err != nil {
				return err
			}
			if loadState != "" {
				if err := snapshot.LoadTomasulo(loadState, core); err != nil {
					return err
				}
			}
			a := control.TomasuloAdapter{Core: core}
			if _, err := control.Run(context.Background(), a, control.Command{Kind: control.CmdStepUntil, N: n}); err != nil && !core.Halted() {
				return err
			}
			observe.TomasuloRegisters(os.Stdout, core)
			observe.TomasuloROB(os.Stdout, core)
			return nil
		},
	}
	c.Flags().StringVar(&scenario, "scenario", "", "TOML scenario file (required)")
	c.Flags().IntVar(&n, "n", 1, "Number of cycles to step")
	c.Flags().StringVar(&loadState, "load-state", "", "Resume from a saved snapshot")
	c.MarkFlagRequired("scenario")
	return c
}

func tomasuloAssembleCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "assemble [source.asm]",
		Short: "Assemble a source file and print the resulting 64-bit words",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			words, err := asm.Assemble(string(src))
			if err != nil {
				return err
			}
			for i, w := range words {
				fmt.Printf("%4d  0x%016x\n", i*8, w)
			}
			return nil
		},
	}
	return c
}

func mesiCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mesi",
		Short: "Four-processor MESI shared-cache simulator (Core B)",
	}
	cmd.AddCommand(mesiRunCmd(), mesiStepCmd())
	return cmd
}

func buildMesiSystem(scenarioPath string) (*system.System, *simconfig.Mesi, error) {
	cfg, err := simconfig.LoadMesi(scenarioPath)
	if err != nil {
		return nil, nil, err
	}

	var scripts [bus.NumAgents][]pe.Request
	for name, ops := range cfg.Scripts {
		idx, err := parsePEName(name)
		if err != nil {
			return nil, nil, err
		}
		reqs := make([]pe.Request, len(ops))
		for i, op := range ops {
			reqs[i] = pe.Request{Addr: op.Addr, IsWrite: op.Write, Value: op.Value}
		}
		scripts[idx] = reqs
	}

	s := system.New(cfg.DRAMBytes, scripts)
	for _, w := range cfg.DRAMSeed {
		s.DRAM.WriteWord(w.Addr, uint32(w.Value))
	}
	return s, cfg, nil
}

func parsePEName(name string) (int, error) {
	var n int
	if _, err := fmt.Sscanf(name, "pe%d", &n); err != nil || n < 0 || n >= bus.NumAgents {
		return 0, fmt.Errorf("unknown PE name %q (want pe0..pe%d)", name, bus.NumAgents-1)
	}
	return n, nil
}

func mesiRunCmd() *cobra.Command {
	var scenario string
	var verbose bool
	var saveState string

	c := &cobra.Command{
		Use:   "run",
		Short: "Run a Core B scenario until every PE's script is exhausted",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, err := buildMesiSystem(scenario)
			if err != nil {
				return err
			}
			steps := s.RunUntilQuiescent()
			if verbose {
				fmt.Printf("ran %d steps\n", steps)
				observe.MesiLines(os.Stdout, s)
				observe.MesiCounters(os.Stdout, s)
				observe.MesiTransactions(os.Stdout, s)
			}
			if saveState != "" {
				if err := snapshot.SaveMesi(saveState, s); err != nil {
					return err
				}
			}
			return nil
		},
	}
	c.Flags().StringVar(&scenario, "scenario", "", "TOML scenario file (required)")
	c.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print cache lines, counters, and bus trace after running")
	c.Flags().StringVar(&saveState, "dump-state", "", "Save a snapshot to this path after running")
	c.MarkFlagRequired("scenario")
	return c
}

func mesiStepCmd() *cobra.Command {
	var scenario string
	var n int
	var loadState string

	c := &cobra.Command{
		Use:   "step",
		Short: "Advance a Core B scenario by a fixed number of steps and print its state",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, err := buildMesiSystem(scenario)
			if err != nil {
				return err
			}
			if loadState != "" {
				if err := snapshot.LoadMesi(loadState, s); err != nil {
					return err
				}
			}
			s.StepUntil(n)
			observe.MesiLines(os.Stdout, s)
			observe.MesiCounters(os.Stdout, s)
			return nil
		},
	}
	c.Flags().StringVar(&scenario, "scenario", "", "TOML scenario file (required)")
	c.Flags().IntVar(&n, "n", 1, "Number of steps to advance")
	c.Flags().StringVar(&loadState, "load-state", "", "Resume from a saved snapshot")
	c.MarkFlagRequired("scenario")
	return c
}
