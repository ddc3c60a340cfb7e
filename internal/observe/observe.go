// Package observe renders read-only snapshots of either core as tables,
// the CLI's textual stand-in for the GUI's RegTable / CacheMemTable
// widgets. Nothing here mutates simulator state; every function takes a
// snapshot (or the live core, read through its exported accessors) and
// writes formatted output to the given writer.
package observe

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"

	"github.com/archsim/simcore/internal/mesi/system"
	"github.com/archsim/simcore/internal/tomasulo"
	"github.com/archsim/simcore/internal/tomasulo/issue"
)

// TomasuloRegisters prints the sixteen architectural registers.
func TomasuloRegisters(w io.Writer, c *tomasulo.Core) {
	t := tablewriter.NewWriter(w)
	t.SetHeader([]string{"Reg", "Value", "Hex"})
	names := []string{
		"R0", "R1", "R2", "R3", "R4", "R5", "R6", "R7", "R8", "R9", "R10", "R11", "R12",
		"UPPER", "LOWER", "PEID",
	}
	vals := c.Regs.Values()
	for r, v := range vals {
		t.Append([]string{names[r], fmt.Sprintf("%d", v), fmt.Sprintf("0x%016x", v)})
	}
	t.Render()
}

// TomasuloROB prints the reorder buffer's occupied entries, head to tail.
func TomasuloROB(w io.Writer, c *tomasulo.Core) {
	t := tablewriter.NewWriter(w)
	t.SetHeader([]string{"Tag", "Busy", "Ready", "PC", "Opcode", "Dest", "Value"})
	head := c.Rob.HeadTag()
	for i := 0; i < issue.RobSize; i++ {
		tag := uint8((int(head) + i) % issue.RobSize)
		e := c.Rob.Entry(tag)
		if !e.Busy {
			continue
		}
		t.Append([]string{
			fmt.Sprintf("%d", tag),
			fmt.Sprintf("%v", e.Busy),
			fmt.Sprintf("%v", e.Ready),
			fmt.Sprintf("0x%x", e.PC),
			tomasulo.OpCode(e.Opcode).String(),
			fmt.Sprintf("%d", e.DestReg),
			fmt.Sprintf("%d", e.Value),
		})
	}
	t.Render()
}

// TomasuloRetirements prints the pipeline tracker's recent commit history.
func TomasuloRetirements(w io.Writer, c *tomasulo.Core) {
	t := tablewriter.NewWriter(w)
	t.SetHeader([]string{"PC", "Opcode", "Fetch", "Issue", "Execute", "Commit"})
	for _, r := range c.Tracker.Recent() {
		t.Append([]string{
			fmt.Sprintf("0x%x", r.PC),
			r.Opcode.String(),
			fmt.Sprintf("%d", r.FetchCycle),
			fmt.Sprintf("%d", r.IssueCycle),
			fmt.Sprintf("%d", r.ExecuteCycle),
			fmt.Sprintf("%d", r.CommitCycle),
		})
	}
	t.Render()
}

// TomasuloException prints the most recently committed exception, if any
// has occurred (spec §7: the UI reports the PC and code of a committed
// exception).
func TomasuloException(w io.Writer, c *tomasulo.Core) {
	code, pc, ok := c.LastException()
	if !ok {
		fmt.Fprintln(w, "no exception")
		return
	}
	fmt.Fprintf(w, "exception code=%d pc=0x%x\n", code, pc)
}

// MesiLines prints every PE's L1 cache array.
func MesiLines(w io.Writer, s *system.System) {
	t := tablewriter.NewWriter(w)
	t.SetHeader([]string{"PE", "Line", "Valid", "Tag", "State", "Dirty"})
	for i, pe := range s.PEs {
		lines := pe.Lines()
		for idx, ln := range lines {
			if !ln.Valid {
				continue
			}
			t.Append([]string{
				fmt.Sprintf("%d", i),
				fmt.Sprintf("%d", idx),
				fmt.Sprintf("%v", ln.Valid),
				fmt.Sprintf("0x%x", ln.Tag),
				ln.State.String(),
				fmt.Sprintf("%v", ln.Dirty),
			})
		}
	}
	t.Render()
}

// MesiCounters prints per-PE traffic counters plus the bus-wide totals.
func MesiCounters(w io.Writer, s *system.System) {
	snap := s.Counters.Snapshot()
	t := tablewriter.NewWriter(w)
	t.SetHeader([]string{"PE", "Hits", "Misses", "Invalidations", "Upgrades"})
	for i := 0; i < len(snap.Hits); i++ {
		t.Append([]string{
			fmt.Sprintf("%d", i),
			fmt.Sprintf("%d", snap.Hits[i]),
			fmt.Sprintf("%d", snap.Misses[i]),
			fmt.Sprintf("%d", snap.Invalidations[i]),
			fmt.Sprintf("%d", snap.Upgrades[i]),
		})
	}
	t.Render()

	fmt.Fprintf(w, "bus transactions=%d cache-to-cache=%d dram fetches=%d writebacks=%d\n",
		snap.BusTransactions, snap.CacheToCacheTransfers, snap.DRAMFetches, snap.WriteBacks)
}

// MesiTransactions prints the recent bus transaction log.
func MesiTransactions(w io.Writer, s *system.System) {
	t := tablewriter.NewWriter(w)
	t.SetHeader([]string{"Requester", "Cmd", "Addr", "Shared", "Supplied"})
	for _, tx := range s.Log.Recent() {
		t.Append([]string{
			fmt.Sprintf("PE%d", tx.Requester),
			tx.Cmd.String(),
			fmt.Sprintf("0x%x", tx.Addr),
			fmt.Sprintf("%v", tx.Shared),
			fmt.Sprintf("%v", tx.Supplied),
		})
	}
	t.Render()
}
