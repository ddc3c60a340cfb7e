package fetch

import (
	"encoding/binary"

	"github.com/archsim/simcore/internal/tomasulo/memsys"
	"github.com/archsim/simcore/internal/tomasulo/signalbus"
)

const (
	NumSets     = 8
	NumWays     = 4
	LineBytes   = 64
	MissLatency = 50
	NumPrefetch = 2
)

type iway struct {
	valid bool
	tag   uint64
	data  [LineBytes]byte
	lru   uint8
}

type prefetchSlot struct {
	active    bool
	lineAddr  uint64
	remaining int
}

// ICache is the 8-set x 4-way instruction cache plus its two prefetch
// slots (spec §3, §4.B). Instruction fetch is by 8-byte word; a line holds
// eight words. Demand misses are a dedicated 50-cycle countdown
// independent of the prefetch slots, so a prefetch in flight never
// preempts a demand fetch (spec §9, open question 2); a new prefetch
// never starts for a line that is already cached or already being
// prefetched.
type ICache struct {
	DRAM *memsys.DRAM

	sets [NumSets][NumWays]iway

	filling      bool
	remaining    int
	missSet      int
	missTag      uint64
	missLineAddr uint64
	missData     [LineBytes]byte

	prefetch [NumPrefetch]prefetchSlot

	halted bool // latched once commit raises Halted; fetch never resumes
}

func NewICache(dram *memsys.DRAM) *ICache { return &ICache{DRAM: dram} }

func split(pc uint64) (set int, tag uint64, offset int) {
	lineIdx := pc / LineBytes
	return int(lineIdx % NumSets), lineIdx / NumSets, int(pc % LineBytes)
}

func alignLine(pc uint64) uint64 { return pc - pc%LineBytes }

func (ic *ICache) findWay(set int, tag uint64) (int, bool) {
	for w := 0; w < NumWays; w++ {
		if e := &ic.sets[set][w]; e.valid && e.tag == tag {
			return w, true
		}
	}
	return 0, false
}

func (ic *ICache) touchLRU(set, way int) {
	touched := ic.sets[set][way].lru
	for w := 0; w < NumWays; w++ {
		if w == way {
			continue
		}
		if ic.sets[set][w].lru <= touched {
			ic.sets[set][w].lru++
		}
	}
	ic.sets[set][way].lru = 0
}

func (ic *ICache) victim(set int) int {
	for w := 0; w < NumWays; w++ {
		if !ic.sets[set][w].valid {
			return w
		}
	}
	worst, worstLRU := 0, ic.sets[set][0].lru
	for w := 1; w < NumWays; w++ {
		if ic.sets[set][w].lru > worstLRU {
			worst, worstLRU = w, ic.sets[set][w].lru
		}
	}
	return worst
}

func (ic *ICache) Evaluate(b *signalbus.Bus) {
	if ic.halted {
		b.StallIF = true
		return
	}
	set, tag, offset := split(b.PC)
	if w, hit := ic.findWay(set, tag); hit {
		b.FetchValid = true
		b.FetchWord = binary.LittleEndian.Uint64(ic.sets[set][w].data[offset : offset+8])
		ic.touchLRU(set, w)
		ic.startPrefetches(alignLine(b.PC))
		return
	}
	b.StallIF = true
}

func (ic *ICache) ClockEdge(b *signalbus.Bus) {
	if b.Halted {
		ic.halted = true
	}
	if ic.halted {
		return
	}
	if ic.filling {
		ic.remaining--
		if ic.remaining <= 0 {
			ic.filling = false
			w := ic.victim(ic.missSet)
			victim := &ic.sets[ic.missSet][w]
			*victim = iway{valid: true, tag: ic.missTag, data: ic.missData, lru: victim.lru}
			ic.touchLRU(ic.missSet, w)
		}
	}

	for i := range ic.prefetch {
		p := &ic.prefetch[i]
		if !p.active {
			continue
		}
		p.remaining--
		if p.remaining <= 0 {
			p.active = false
			set, tag, _ := split(p.lineAddr)
			if _, hit := ic.findWay(set, tag); !hit {
				w := ic.victim(set)
				victim := &ic.sets[set][w]
				*victim = iway{valid: true, tag: tag, data: ic.DRAM.ReadLine(p.lineAddr), lru: victim.lru}
				ic.touchLRU(set, w)
			}
		}
	}

	if b.FetchValid || ic.filling {
		return
	}
	set, tag, _ := split(b.PC)
	if _, hit := ic.findWay(set, tag); hit {
		return
	}
	ic.missSet, ic.missTag = set, tag
	ic.missLineAddr = alignLine(b.PC)
	ic.missData = ic.DRAM.ReadLine(ic.missLineAddr)
	ic.filling = true
	ic.remaining = MissLatency
}

func (ic *ICache) startPrefetches(lineAddr uint64) {
	ic.maybeStartPrefetch(lineAddr + LineBytes)
	ic.maybeStartPrefetch(lineAddr + 2*LineBytes)
}

func (ic *ICache) maybeStartPrefetch(lineAddr uint64) {
	set, tag, _ := split(lineAddr)
	if _, hit := ic.findWay(set, tag); hit {
		return
	}
	for i := range ic.prefetch {
		if ic.prefetch[i].active && ic.prefetch[i].lineAddr == lineAddr {
			return
		}
	}
	for i := range ic.prefetch {
		if !ic.prefetch[i].active {
			ic.prefetch[i] = prefetchSlot{active: true, lineAddr: lineAddr, remaining: MissLatency}
			return
		}
	}
}

func (ic *ICache) Reset() {
	*ic = ICache{DRAM: ic.DRAM}
}
