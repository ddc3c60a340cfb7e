// Package l1 implements one processing element's private L1 cache and
// its MESI bus controller (spec's Core B cache model). Each Controller
// owns its cache state behind its own mutex and only ever reaches other
// agents through the shared bus.Bus — never through a shared record.
package l1

import (
	"sync"
	"sync/atomic"

	"github.com/archsim/simcore/internal/mesi/bus"
	"github.com/archsim/simcore/internal/mesi/counters"
)

// NumSets and NumWays give the private L1 its 8-set x 2-way geometry;
// NumLines is the flattened total used for snapshot/observe array sizing.
const (
	NumSets  = 8
	NumWays  = 2
	NumLines = NumSets * NumWays
)

// Line is one resident cache line.
type Line struct {
	Valid bool
	Tag   uint64
	State bus.Mesi
	Data  [bus.LineBytes]byte
	Dirty bool
}

// way adds the LRU bookkeeping bit to a resident line; never exposed
// outside the package (Lines/LoadLines flatten to/from the plain Line).
type way struct {
	Line
	lru uint8 // 0 = most recently used
}

// Controller is one PE's L1: the cache array plus the bus-facing
// request/snoop logic.
type Controller struct {
	ID  int
	Bus *bus.Bus

	mu   sync.Mutex
	sets [NumSets][NumWays]way

	Counters *counters.Counters
}

// New builds a controller for PE id and attaches it to the bus as that
// PE's snoop responder.
func New(id int, b *bus.Bus, cs *counters.Counters) *Controller {
	c := &Controller{ID: id, Bus: b, Counters: cs}
	b.Attach(id, c)
	return c
}

func splitAddr(addr uint64) (set int, tag uint64) {
	lineIdx := addr / bus.LineBytes
	return int(lineIdx % NumSets), lineIdx / NumSets
}

func lineAddr(tag uint64, set int) uint64 {
	return (tag*NumSets + uint64(set)) * bus.LineBytes
}

func offset(addr uint64) uint64 { return addr % bus.LineBytes }

func (c *Controller) findWay(set int, tag uint64) (int, bool) {
	for w := 0; w < NumWays; w++ {
		e := &c.sets[set][w]
		if e.Valid && e.Tag == tag && e.State != bus.I {
			return w, true
		}
	}
	return 0, false
}

func (c *Controller) touchLRU(set, w int) {
	touched := c.sets[set][w].lru
	for i := 0; i < NumWays; i++ {
		if i == w {
			continue
		}
		if c.sets[set][i].lru <= touched {
			c.sets[set][i].lru++
		}
	}
	c.sets[set][w].lru = 0
}

func (c *Controller) victim(set int) int {
	for w := 0; w < NumWays; w++ {
		if !c.sets[set][w].Valid {
			return w
		}
	}
	worst, worstLRU := 0, c.sets[set][0].lru
	for w := 1; w < NumWays; w++ {
		if c.sets[set][w].lru > worstLRU {
			worst, worstLRU = w, c.sets[set][w].lru
		}
	}
	return worst
}

// Read performs a CPU-side load, blocking until the line is resident in
// a readable state.
func (c *Controller) Read(addr uint64) byte {
	set, tag := splitAddr(addr)

	c.mu.Lock()
	if w, hit := c.findWay(set, tag); hit {
		c.bump(&c.Counters.Hits[c.ID])
		c.touchLRU(set, w)
		v := c.sets[set][w].Data[offset(addr)]
		c.mu.Unlock()
		return v
	}
	c.bump(&c.Counters.Misses[c.ID])
	w := c.victim(set)
	evictAddr, evictData, needWriteback := c.prepareEvictLocked(set, w)
	c.mu.Unlock()

	if needWriteback {
		c.Bus.WriteBack(c.ID, evictAddr, evictData)
	}

	var v byte
	c.Bus.Transact(c.ID, addr, bus.BusRd, func(data [bus.LineBytes]byte, shared bool) {
		c.mu.Lock()
		defer c.mu.Unlock()
		state := bus.E
		if shared {
			state = bus.S
		}
		c.sets[set][w].Line = Line{Valid: true, Tag: tag, State: state, Data: data}
		c.touchLRU(set, w)
		v = c.sets[set][w].Data[offset(addr)]
	})
	return v
}

// Write performs a CPU-side store, blocking until this cache holds the
// line exclusively (Modified). The fill (or upgrade) is installed from
// inside bus.Bus.Transact's commit callback, while the bus is still held,
// so no other master can observe this line cleared/invalid mid-fill.
func (c *Controller) Write(addr uint64, v byte) {
	set, tag := splitAddr(addr)

	c.mu.Lock()
	if w, hit := c.findWay(set, tag); hit {
		line := &c.sets[set][w]
		switch line.State {
		case bus.M:
			c.bump(&c.Counters.Hits[c.ID])
			c.touchLRU(set, w)
			line.Data[offset(addr)] = v
			c.mu.Unlock()
			return
		case bus.E:
			c.bump(&c.Counters.Hits[c.ID])
			c.touchLRU(set, w)
			line.State = bus.M
			line.Dirty = true
			line.Data[offset(addr)] = v
			c.mu.Unlock()
			return
		case bus.S:
			c.bump(&c.Counters.Hits[c.ID])
			c.bump(&c.Counters.Upgrades[c.ID])
			c.mu.Unlock()
			c.Bus.Transact(c.ID, addr, bus.BusUpgr, func(_ [bus.LineBytes]byte, _ bool) {
				c.mu.Lock()
				defer c.mu.Unlock()
				line.State = bus.M
				line.Dirty = true
				line.Data[offset(addr)] = v
				c.touchLRU(set, w)
			})
			return
		}
	}

	c.bump(&c.Counters.Misses[c.ID])
	w := c.victim(set)
	evictAddr, evictData, needWriteback := c.prepareEvictLocked(set, w)
	c.mu.Unlock()

	if needWriteback {
		c.Bus.WriteBack(c.ID, evictAddr, evictData)
	}

	c.Bus.Transact(c.ID, addr, bus.BusRdX, func(data [bus.LineBytes]byte, _ bool) {
		c.mu.Lock()
		defer c.mu.Unlock()
		data[offset(addr)] = v
		c.sets[set][w].Line = Line{Valid: true, Tag: tag, State: bus.M, Data: data, Dirty: true}
		c.touchLRU(set, w)
	})
}

// prepareEvictLocked clears way w of set (if occupied) and reports
// whether its prior contents need writing back. Caller holds c.mu.
// Victim selection (spec §4.K: "any Invalid slot first, else LRU") is
// the caller's job via victim(); this only performs the clear.
func (c *Controller) prepareEvictLocked(set, w int) (addr uint64, data [bus.LineBytes]byte, needWriteback bool) {
	e := &c.sets[set][w]
	if e.Valid && e.Dirty {
		addr = lineAddr(e.Tag, set)
		data = e.Data
		needWriteback = true
	}
	e.Line = Line{}
	return
}

// Snoop answers another PE's bus transaction. Implements bus.Agent.
func (c *Controller) Snoop(addr uint64, cmd bus.Cmd, requester int) bus.SnoopResult {
	set, tag := splitAddr(addr)

	c.mu.Lock()
	defer c.mu.Unlock()
	w, hit := c.findWay(set, tag)
	if !hit {
		return bus.SnoopResult{}
	}
	e := &c.sets[set][w]

	res := bus.SnoopResult{Hit: true}
	switch cmd {
	case bus.BusRd:
		res.Supplied = true
		res.Data = e.Data
		if e.State == bus.M {
			res.DirtyWriteback = true
		}
		e.State = bus.S
		e.Dirty = false
	case bus.BusRdX:
		if e.State == bus.M || e.State == bus.E {
			res.Supplied = true
			res.Data = e.Data
		}
		if e.State == bus.M {
			res.DirtyWriteback = true
		}
		c.bump(&c.Counters.Invalidations[c.ID])
		e.State = bus.I
		e.Dirty = false
	case bus.BusUpgr:
		c.bump(&c.Counters.Invalidations[c.ID])
		e.State = bus.I
		e.Dirty = false
	}
	return res
}

// bump increments one of this PE's counter slots. Counters is always
// non-nil for a Controller built via New.
func (c *Controller) bump(n *atomic.Int64) { n.Add(1) }

// Lines returns a snapshot of this controller's cache state, flattened
// set-major/way-minor (index = set*NumWays + way), for the observe
// package's per-line table and for snapshot save/restore.
func (c *Controller) Lines() [NumLines]Line {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out [NumLines]Line
	for s := 0; s < NumSets; s++ {
		for w := 0; w < NumWays; w++ {
			out[s*NumWays+w] = c.sets[s][w].Line
		}
	}
	return out
}

// LoadLines overwrites this controller's cache array, for snapshot
// restore. LRU state resets to all-ways-equal; the next access on any
// set re-establishes it.
func (c *Controller) LoadLines(lines [NumLines]Line) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for s := 0; s < NumSets; s++ {
		for w := 0; w < NumWays; w++ {
			c.sets[s][w] = way{Line: lines[s*NumWays+w]}
		}
	}
}

// Reset clears every line back to Invalid.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets = [NumSets][NumWays]way{}
}
