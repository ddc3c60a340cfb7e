package memsys

import "github.com/archsim/simcore/internal/tomasulo/signalbus"

const (
	NumSets     = 32
	NumWays     = 4
	LineBytes   = 64
	MissLatency = 50
)

type way struct {
	valid bool
	dirty bool
	tag   uint64
	data  [LineBytes]byte
	lru   uint8 // 0 = most recently used
}

// Cache is the combined memory arbiter and data cache of spec §4.I. The
// arbiter half is distributed: the commit unit and the three load buffers
// self-arbitrate for the single memory port by asserting MemRequest in
// fixed priority order (store, then LB0, LB1, LB2) during their own
// Evaluate, relying on component-list ordering to enforce the priority.
// Cache runs before all of them in that same ordered list so that, while
// a miss is in flight, it can re-assert MemRequest/MemRequester itself and
// pin the port to its current owner before any other requester gets a
// chance to look at the (freshly zeroed) bus and think the port is free.
type Cache struct {
	DRAM *DRAM

	sets [NumSets][NumWays]way

	filling   bool
	fillDone  bool
	remaining int

	owner     signalbus.StationID
	addr      uint64
	isWrite   bool
	isByte    bool
	writeData uint64

	victimSet int
	victimWay int
	missTag   uint64
	missLine  [LineBytes]byte

	hits   int
	misses int
}

func NewCache(dram *DRAM) *Cache { return &Cache{DRAM: dram} }

func splitAddr(addr uint64) (set int, tag uint64, offset int) {
	lineIdx := addr / LineBytes
	return int(lineIdx % NumSets), lineIdx / NumSets, int(addr % LineBytes)
}

func lineBase(tag uint64, set int) uint64 {
	return (tag*NumSets + uint64(set)) * LineBytes
}

func (c *Cache) findWay(set int, tag uint64) (int, bool) {
	for w := 0; w < NumWays; w++ {
		if e := &c.sets[set][w]; e.valid && e.tag == tag {
			return w, true
		}
	}
	return 0, false
}

func (c *Cache) touchLRU(set, way int) {
	touched := c.sets[set][way].lru
	for w := 0; w < NumWays; w++ {
		if w == way {
			continue
		}
		if c.sets[set][w].lru <= touched {
			c.sets[set][w].lru++
		}
	}
	c.sets[set][way].lru = 0
}

func (c *Cache) victim(set int) int {
	for w := 0; w < NumWays; w++ {
		if !c.sets[set][w].valid {
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

// Evaluate is combinational for hits: a tag match the same cycle the
// request arrives supplies MemDone. Misses are silent here; ClockEdge
// starts the fill.
func (c *Cache) Evaluate(b *signalbus.Bus) {
	if c.filling {
		b.MemRequest = true
		b.MemRequester = c.owner
		return
	}
	if c.fillDone {
		_, _, offset := splitAddr(c.addr)
		c.access(b, c.victimSet, c.victimWay, offset, c.isWrite, c.isByte, c.writeData)
		b.MemRequester = c.owner
		return
	}
	if !b.MemRequest {
		return
	}
	c.owner = b.MemRequester
	c.addr = b.MemAddr
	c.isWrite = b.MemIsWrite
	c.isByte = b.MemIsByte
	c.writeData = b.MemWriteData

	set, tag, offset := splitAddr(b.MemAddr)
	if w, hit := c.findWay(set, tag); hit {
		c.hits++
		c.access(b, set, w, offset, b.MemIsWrite, b.MemIsByte, b.MemWriteData)
		c.touchLRU(set, w)
	}
}

// access performs the read or write against a resident way and drives the
// response signals; shared by the hit path and the post-fill completion.
func (c *Cache) access(b *signalbus.Bus, set, w, offset int, isWrite, isByte bool, writeData uint64) {
	e := &c.sets[set][w]
	if isWrite {
		if isByte {
			e.data[offset] = byte(writeData)
		} else {
			putWord(e.data[offset:], writeData)
		}
		e.dirty = true
	} else if isByte {
		b.MemReadData = uint64(e.data[offset])
	} else {
		b.MemReadData = getWord(e.data[offset:])
	}
	b.MemDone = true
}

func (c *Cache) ClockEdge(b *signalbus.Bus) {
	if c.filling {
		c.remaining--
		if c.remaining <= 0 {
			c.filling = false
			c.fillDone = true
			// Fill the way now that the fetch has returned (spec §4.I:
			// "fills the way on return, then completes the original
			// request"); the eviction/writeback already happened when
			// the miss was recorded below.
			victim := &c.sets[c.victimSet][c.victimWay]
			*victim = way{valid: true, dirty: false, tag: c.missTag, data: c.missLine, lru: victim.lru}
			c.touchLRU(c.victimSet, c.victimWay)
		}
		return
	}
	if c.fillDone {
		c.fillDone = false
		return
	}
	if !b.MemRequest {
		return
	}

	set, tag, _ := splitAddr(b.MemAddr)
	if _, hit := c.findWay(set, tag); hit {
		return // already serviced combinationally above
	}

	c.misses++
	w := c.victim(set)
	victim := &c.sets[set][w]
	if victim.valid && victim.dirty {
		c.DRAM.WriteLine(lineBase(victim.tag, set), victim.data)
	}
	c.missLine = c.DRAM.ReadLine(lineBase(tag, set))
	c.missTag = tag
	c.victimSet, c.victimWay = set, w
	c.filling = true
	c.remaining = MissLatency
}

func (c *Cache) Reset() {
	*c = Cache{DRAM: c.DRAM}
}

// Hits and Misses report the cumulative combinational-hit and miss-start
// counts since the last Reset, for observers and determinism tests.
func (c *Cache) Hits() int   { return c.hits }
func (c *Cache) Misses() int { return c.misses }
