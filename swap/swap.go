package swap

import "fmt"

import "github.com/EliasA5/xv6-riscv/defs"
import "github.com/EliasA5/xv6-riscv/klog"
import "github.com/EliasA5/xv6-riscv/limits"
import "github.com/EliasA5/xv6-riscv/mem"
import "github.com/EliasA5/xv6-riscv/stats"
import "github.com/EliasA5/xv6-riscv/vm"

type swapstats_t struct {
	Faults   stats.Counter_t
	Swapins  stats.Counter_t
	Swapouts stats.Counter_t
}

var Stats swapstats_t

func Stats2String() string {
	return stats.Stats2String(&Stats)
}

type meta_t struct {
	off  int
	used bool
}

// Swap_t is the paging state of one process: which slots of its backing
// store hold pages, the replacement policy's history and the store itself.
// everything is protected by the pmap lock of the address space it serves.
type Swap_t struct {
	meta  []meta_t
	Pol   Policy_i
	store Store_i
	pid   defs.Pid_t
}

// Mkswap builds the paging state for process pid according to lim. it
// returns nil when paging is disabled.
func Mkswap(lim *limits.Syslimit_t, pid defs.Pid_t) (*Swap_t, error) {
	pol, err := Mkpolicy(lim.Swapalgo, lim.Totalpages)
	if err != nil {
		return nil, err
	}
	if pol == nil {
		return nil, nil
	}
	nslots := lim.Swapslots()
	st, err := Mkstore(lim.Swapdir, pid, nslots)
	if err != nil {
		return nil, err
	}
	sw := &Swap_t{Pol: pol, store: st, pid: pid}
	sw.meta = make([]meta_t, nslots)
	for i := range sw.meta {
		sw.meta[i].off = i * mem.PGSIZE
	}
	return sw, nil
}

func (sw *Swap_t) allocslot() int {
	for i := range sw.meta {
		if !sw.meta[i].used {
			sw.meta[i].used = true
			return i
		}
	}
	return -1
}

// number of slots holding pages
func (sw *Swap_t) Used() int {
	n := 0
	for i := range sw.meta {
		if sw.meta[i].used {
			n++
		}
	}
	return n
}

func (sw *Swap_t) Nslots() int {
	return len(sw.meta)
}

// Freeslot releases the slot of a paged-out page that is being unmapped.
func (sw *Swap_t) Freeslot(slot int) {
	if slot < 0 || slot >= len(sw.meta) || !sw.meta[slot].used {
		panic(fmt.Sprintf("freeslot: bad slot %d", slot))
	}
	sw.meta[slot].used = false
}

// Swapout_inner writes the resident page at va to a free slot, frees its
// frame and turns its PTE into a paged-out entry holding the slot index.
func (sw *Swap_t) Swapout_inner(as *vm.Vm_t, va int) defs.Err_t {
	as.Lockassert_pmap()
	pte := as.Walk(va, false)
	if pte == nil {
		panic("swapout: walk")
	}
	if vm.Ispaged(*pte) {
		panic("swapout: already swapped")
	}
	if !vm.Isresident(*pte) {
		panic("swapout: not a resident user page")
	}
	slot := sw.allocslot()
	if slot == -1 {
		return -defs.ENOSPC
	}
	pa := vm.PTE2PA(*pte)
	if err := sw.store.Writeat(as.Phys.Dmap8(pa)[:], sw.meta[slot].off); err != nil {
		sw.meta[slot].used = false
		klog.Sub("swap").Error("swapout failed", "pid", sw.pid, "va", va,
			"err", err)
		return -defs.EIO
	}
	as.Phys.Kfree(pa)
	*pte = vm.Slot2pte(slot) | *pte&vm.PTE_FLAGS&^vm.PTE_V | vm.PTE_PG
	Stats.Swapouts.Inc()
	klog.Sub("swap").Debug("swapout", "pid", sw.pid, "va", va, "slot", slot)
	return 0
}

// Evictrange_inner swaps out the n resident pages starting at va.
func (sw *Swap_t) Evictrange_inner(as *vm.Vm_t, va, n int) defs.Err_t {
	for i := 0; i < n; i++ {
		if err := sw.Swapout_inner(as, va+i*vm.PGSIZE); err != 0 {
			return err
		}
	}
	return 0
}

func (sw *Swap_t) Pgfault(as *vm.Vm_t, va int) defs.Err_t {
	as.Lock_pmap()
	ret := sw.Pgfault_inner(as, va)
	as.Unlock_pmap()
	return ret
}

// Pgfault_inner brings the paged-out page at va back into memory and evicts
// a victim chosen by the policy in its place, so the number of resident
// pages does not change.
func (sw *Swap_t) Pgfault_inner(as *vm.Vm_t, va int) defs.Err_t {
	as.Lockassert_pmap()
	if va < 0 || va >= vm.MAXVA {
		return -defs.EFAULT
	}
	pte := as.Walk(va, false)
	if pte == nil {
		return -defs.EFAULT
	}
	if vm.Isresident(*pte) {
		// another thread got here first
		return 0
	}
	if !vm.Ispaged(*pte) {
		return -defs.EFAULT
	}
	Stats.Faults.Inc()
	victim := sw.Pol.Pick(as)

	npa, ok := as.Phys.Kalloc()
	if !ok {
		return -defs.ENOMEM
	}
	slot := vm.Pte2slot(*pte)
	if slot >= len(sw.meta) || !sw.meta[slot].used {
		panic(fmt.Sprintf("pgfault: pte %#x names free slot", *pte))
	}
	if err := sw.store.Readat(as.Phys.Dmap8(npa)[:], sw.meta[slot].off); err != nil {
		panic(fmt.Sprintf("pgfault: %v", err))
	}
	sw.meta[slot].used = false
	*pte = vm.PA2PTE(npa) | *pte&vm.PTE_FLAGS&^(vm.PTE_PG|vm.PTE_A) | vm.PTE_V
	sw.Pol.Reset(va)
	Stats.Swapins.Inc()
	klog.Sub("swap").Debug("swapin", "pid", sw.pid, "va", va, "slot", slot,
		"victim", victim)

	if victim != -1 {
		if err := sw.Swapout_inner(as, victim); err != 0 {
			panic(fmt.Sprintf("pgfault: cannot evict %#x: %v", victim, err))
		}
	}
	return 0
}

// Fork copies the used slots, and the pages they hold, into child. the
// parent's pmap lock must be held.
func (sw *Swap_t) Fork(child *Swap_t) error {
	if len(child.meta) != len(sw.meta) {
		panic("swap fork: slot count mismatch")
	}
	// the child's pmap already names these slots
	for i := range sw.meta {
		child.meta[i].used = sw.meta[i].used
	}
	var buf mem.Bytepg_t
	for i := range sw.meta {
		if !sw.meta[i].used {
			continue
		}
		if err := sw.store.Readat(buf[:], sw.meta[i].off); err != nil {
			return err
		}
		if err := child.store.Writeat(buf[:], child.meta[i].off); err != nil {
			return err
		}
	}
	if s, ok := child.store.(interface{ Sync() error }); ok {
		return s.Sync()
	}
	return nil
}

// Remove releases the backing store. slots stay allocated until their
// pages are unmapped; no page can be swapped after Remove.
func (sw *Swap_t) Remove() {
	if sw.store == nil {
		return
	}
	if err := sw.store.Remove(); err != nil {
		klog.Sub("swap").Warn("remove store", "pid", sw.pid, "err", err)
	}
	sw.store = nil
}
