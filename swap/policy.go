package swap

import "fmt"
import "math/bits"

import "github.com/EliasA5/xv6-riscv/vm"

// Policy_i chooses which resident page of an address space to evict. all
// methods are called with the address space's pmap lock held.
type Policy_i interface {
	// returns the va of the victim, or -1 if there is no resident user
	// page
	Pick(as *vm.Vm_t) int
	// puts the counter of the page at va in its neutral state after the
	// page was swapped in
	Reset(va int)
	// forget all history; the process is being freed
	Clear()
}

// Mkpolicy returns a fresh policy for an address space of at most npages
// pages. "none" disables paging and yields a nil policy.
func Mkpolicy(name string, npages int) (Policy_i, error) {
	switch name {
	case "scfifo":
		return &Scfifo_t{}, nil
	case "nfua":
		return &Nfua_t{aging_t: mkaging(npages, 0)}, nil
	case "lapa":
		return &Lapa_t{aging_t: mkaging(npages, ^uint32(0))}, nil
	case "none":
		return nil, nil
	}
	return nil, fmt.Errorf("swap: unknown policy %q", name)
}

// Scfifo_t is second-chance FIFO: a cursor sweeps the address space
// circularly, clearing accessed bits, and stops at the first resident page
// whose accessed bit is already clear.
type Scfifo_t struct {
	cur int
}

func (sc *Scfifo_t) Pick(as *vm.Vm_t) int {
	as.Lockassert_pmap()
	// two full sweeps clear every accessed bit, so a third finds a victim
	// if one exists
	lim := 2*(as.Sz/vm.PGSIZE+2) + 1
	for i := 0; i < lim; i++ {
		if sc.cur > as.Sz {
			sc.cur = 0
		}
		va := sc.cur
		if pte := as.Walk(va, false); pte != nil && vm.Isresident(*pte) {
			if *pte&vm.PTE_A == 0 {
				return va
			}
			*pte &^= vm.PTE_A
		}
		sc.cur += vm.PGSIZE
	}
	return -1
}

func (sc *Scfifo_t) Reset(va int) {
}

func (sc *Scfifo_t) Clear() {
	sc.cur = 0
}

// per-page aging counters shared by NFUA and LAPA
type aging_t struct {
	ctr   []uint32
	reset uint32
}

func mkaging(npages int, reset uint32) aging_t {
	ag := aging_t{ctr: make([]uint32, npages), reset: reset}
	ag.Clear()
	return ag
}

// shift every resident page's counter right by one, setting the top bit
// if the page was accessed. accessed bits are left alone.
func (ag *aging_t) tick(as *vm.Vm_t) {
	n := vm.Pgroundup(as.Sz) / vm.PGSIZE
	for i := 0; i < n && i < len(ag.ctr); i++ {
		pte := as.Walk(i*vm.PGSIZE, false)
		if pte == nil || !vm.Isresident(*pte) {
			continue
		}
		ag.ctr[i] >>= 1
		if *pte&vm.PTE_A != 0 {
			ag.ctr[i] |= 1 << 31
		}
	}
}

// ticks, then returns the resident page whose counter is least according
// to less; ties go to the lowest index.
func (ag *aging_t) pick(as *vm.Vm_t, less func(a, b uint32) bool) int {
	as.Lockassert_pmap()
	ag.tick(as)
	n := vm.Pgroundup(as.Sz) / vm.PGSIZE
	min := -1
	for i := 0; i < n && i < len(ag.ctr); i++ {
		pte := as.Walk(i*vm.PGSIZE, false)
		if pte == nil || !vm.Isresident(*pte) {
			continue
		}
		if min == -1 || less(ag.ctr[i], ag.ctr[min]) {
			min = i
		}
	}
	if min == -1 {
		return -1
	}
	return min * vm.PGSIZE
}

func (ag *aging_t) Reset(va int) {
	i := va / vm.PGSIZE
	if i < len(ag.ctr) {
		ag.ctr[i] = ag.reset
	}
}

func (ag *aging_t) Clear() {
	for i := range ag.ctr {
		ag.ctr[i] = ag.reset
	}
}

func (ag *aging_t) Counter(va int) uint32 {
	return ag.ctr[va/vm.PGSIZE]
}

// Nfua_t evicts the page with the smallest aging counter.
type Nfua_t struct {
	aging_t
}

func (nf *Nfua_t) Pick(as *vm.Vm_t) int {
	return nf.pick(as, func(a, b uint32) bool {
		return a < b
	})
}

// Lapa_t evicts the page whose aging counter has the fewest set bits,
// breaking ties by the smaller counter.
type Lapa_t struct {
	aging_t
}

func (la *Lapa_t) Pick(as *vm.Vm_t) int {
	return la.pick(as, func(a, b uint32) bool {
		pa, pb := bits.OnesCount32(a), bits.OnesCount32(b)
		if pa != pb {
			return pa < pb
		}
		return a < b
	})
}
